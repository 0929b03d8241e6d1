package series

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"dicomseries/internal/models"
)

// DepthAxis returns the patient axis along which slice positions vary the
// most. Ties, including a single slice, resolve to the z axis.
func DepthAxis(slices []models.SliceRecord) models.Axis {
	if len(slices) < 2 {
		return models.AxisZ
	}

	best := models.AxisZ
	bestVar := positionVariance(slices, models.AxisZ)
	for _, axis := range []models.Axis{models.AxisX, models.AxisY} {
		if v := positionVariance(slices, axis); v > bestVar {
			best, bestVar = axis, v
		}
	}
	return best
}

func positionVariance(slices []models.SliceRecord, axis models.Axis) float64 {
	values := make([]float64, len(slices))
	for i, s := range slices {
		values[i] = s.Position.Component(axis)
	}
	return stat.Variance(values, nil)
}

// Order returns a new slice holding the records sorted ascending along the
// dominant axis, together with that axis. Two records sharing a position
// along the axis make placement ambiguous and yield UnsupportedFormat.
func Order(slices []models.SliceRecord, tol Tolerances) ([]models.SliceRecord, models.Axis, error) {
	axis := DepthAxis(slices)

	ordered := make([]models.SliceRecord, len(slices))
	copy(ordered, slices)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position.Component(axis) < ordered[j].Position.Component(axis)
	})

	for i := 1; i < len(ordered); i++ {
		a := ordered[i-1].Position.Component(axis)
		b := ordered[i].Position.Component(axis)
		if samePosition(a, b, tol.Position) {
			return nil, axis, unsupported("order", "%s and %s share position %g along %s",
				ordered[i-1].Path, ordered[i].Path, b, axis)
		}
	}

	return ordered, axis, nil
}

func samePosition(a, b, tol float64) bool {
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= tol*scale
}
