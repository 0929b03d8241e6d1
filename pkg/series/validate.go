package series

import (
	"math"

	"gonum.org/v1/gonum/floats/scalar"

	"dicomseries/internal/models"
)

// Tolerances controls how strictly slices must agree with each other
type Tolerances struct {
	// Relative is the relative tolerance for spacing and rescale comparisons
	Relative float64

	// Position is the tolerance for two slices to count as coincident along
	// the depth axis. It is relative to max(1, |a|, |b|), so it behaves as an
	// absolute tolerance in mm near the origin.
	Position float64

	// MaxSpacingCV is the largest accepted coefficient of variation of
	// consecutive slice gaps
	MaxSpacingCV float64
}

// DefaultTolerances returns the tolerances used when none are configured
func DefaultTolerances() Tolerances {
	return Tolerances{
		Relative:     1e-5,
		Position:     1e-5,
		MaxSpacingCV: 0.05,
	}
}

// Validate checks that slices share geometry, pixel representation and
// series identity. It returns the input unchanged on success and an
// UnsupportedFormat error otherwise. An empty input is rejected as well,
// although Load reports that case as NoFiles before reaching here.
func Validate(slices []models.SliceRecord, tol Tolerances) ([]models.SliceRecord, error) {
	const op = "validate"

	if len(slices) == 0 {
		return nil, unsupported(op, "empty slice set")
	}

	for _, s := range slices {
		if err := checkFinite(s); err != nil {
			return nil, err
		}
	}

	ref := slices[0]
	if ref.Rows <= 0 || ref.Cols <= 0 {
		return nil, unsupported(op, "%s: invalid dimensions %dx%d", ref.Path, ref.Cols, ref.Rows)
	}
	if ref.BitsAllocated != 8 && ref.BitsAllocated != 16 {
		return nil, unsupported(op, "%s: %d bits allocated, need 8 or 16", ref.Path, ref.BitsAllocated)
	}
	if ref.SpacingX <= 0 || ref.SpacingY <= 0 {
		return nil, unsupported(op, "%s: invalid pixel spacing %gx%g", ref.Path, ref.SpacingX, ref.SpacingY)
	}

	for _, s := range slices[1:] {
		if err := compareSlices(ref, s, tol); err != nil {
			return nil, err
		}
	}

	return slices, nil
}

// compareSlices reports the first attribute on which s differs from ref
func compareSlices(ref, s models.SliceRecord, tol Tolerances) error {
	const op = "validate"

	switch {
	case s.Rows != ref.Rows || s.Cols != ref.Cols:
		return unsupported(op, "%s: dimensions %dx%d differ from %dx%d", s.Path, s.Cols, s.Rows, ref.Cols, ref.Rows)
	case s.BitsAllocated != ref.BitsAllocated:
		return unsupported(op, "%s: bits allocated %d differs from %d", s.Path, s.BitsAllocated, ref.BitsAllocated)
	case s.SignedPixel != ref.SignedPixel:
		return unsupported(op, "%s: pixel representation differs", s.Path)
	case s.SeriesInstanceUID != ref.SeriesInstanceUID:
		return unsupported(op, "%s: series %q differs from %q", s.Path, s.SeriesInstanceUID, ref.SeriesInstanceUID)
	case !scalar.EqualWithinRel(s.RescaleSlope, ref.RescaleSlope, tol.Relative):
		return unsupported(op, "%s: rescale slope %g differs from %g", s.Path, s.RescaleSlope, ref.RescaleSlope)
	case !scalar.EqualWithinRel(s.RescaleIntercept, ref.RescaleIntercept, tol.Relative):
		return unsupported(op, "%s: rescale intercept %g differs from %g", s.Path, s.RescaleIntercept, ref.RescaleIntercept)
	case !scalar.EqualWithinRel(s.SpacingX, ref.SpacingX, tol.Relative) ||
		!scalar.EqualWithinRel(s.SpacingY, ref.SpacingY, tol.Relative):
		return unsupported(op, "%s: pixel spacing %gx%g differs from %gx%g", s.Path, s.SpacingX, s.SpacingY, ref.SpacingX, ref.SpacingY)
	}
	return nil
}

// checkFinite rejects NaN or infinite geometry and rescale values, which
// would otherwise slip through every ordered comparison
func checkFinite(s models.SliceRecord) error {
	fields := []struct {
		name  string
		value float64
	}{
		{"position x", s.Position.X},
		{"position y", s.Position.Y},
		{"position z", s.Position.Z},
		{"spacing x", s.SpacingX},
		{"spacing y", s.SpacingY},
		{"slice thickness", s.SliceThickness},
		{"rescale slope", s.RescaleSlope},
		{"rescale intercept", s.RescaleIntercept},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return unsupported("validate", "%s: %s is %g", s.Path, f.name, f.value)
		}
	}
	return nil
}
