package series

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"dicomseries/internal/models"
)

// defaultSliceSpacing is used for a single-slice volume without a thickness
const defaultSliceSpacing = 1.0

// Assemble concatenates ordered slices and their normalized samples into
// one volume. samples[i] must belong to ordered[i]. The spacing along depth
// is the median gap between consecutive slices; gaps whose coefficient of
// variation exceeds tol.MaxSpacingCV are rejected as UnsupportedFormat.
// Either a complete volume is returned or none at all.
func Assemble(ordered []models.SliceRecord, samples [][]float64, axis models.Axis, tol Tolerances) (models.Volume, error) {
	const op = "assemble"

	if len(ordered) == 0 {
		return models.Volume{}, unsupported(op, "no slices to assemble")
	}
	if len(samples) != len(ordered) {
		return models.Volume{}, newError(KindNative, op, nil, "%d sample arrays for %d slices", len(samples), len(ordered))
	}

	spacingZ, err := sliceSpacing(ordered, axis, tol)
	if err != nil {
		return models.Volume{}, err
	}

	ref := ordered[0]
	sliceLen := ref.Rows * ref.Cols
	data := make([]float64, sliceLen*len(ordered))
	for i, s := range samples {
		if len(s) != sliceLen {
			return models.Volume{}, newError(KindNative, op, nil, "%s: %d samples, expected %d", ordered[i].Path, len(s), sliceLen)
		}
		copy(data[i*sliceLen:], s)
	}

	return models.Volume{
		Data:              data,
		Width:             ref.Cols,
		Height:            ref.Rows,
		Depth:             len(ordered),
		SpacingX:          ref.SpacingX,
		SpacingY:          ref.SpacingY,
		SpacingZ:          spacingZ,
		RescaleSlope:      ref.RescaleSlope,
		RescaleIntercept:  ref.RescaleIntercept,
		BitsAllocated:     ref.BitsAllocated,
		SignedPixel:       ref.SignedPixel,
		SeriesDescription: ref.SeriesDescription,
		Origin:            ref.Position,
		DepthAxis:         axis,
	}, nil
}

// sliceSpacing derives the depth spacing from consecutive position gaps
func sliceSpacing(ordered []models.SliceRecord, axis models.Axis, tol Tolerances) (float64, error) {
	if len(ordered) == 1 {
		if t := ordered[0].SliceThickness; t > 0 {
			return t, nil
		}
		return defaultSliceSpacing, nil
	}

	deltas := make([]float64, len(ordered)-1)
	for i := range deltas {
		deltas[i] = ordered[i+1].Position.Component(axis) - ordered[i].Position.Component(axis)
	}

	mean, std := stat.PopMeanStdDev(deltas, nil)
	if mean <= 0 {
		return 0, unsupported("assemble", "slices are not ordered along %s", axis)
	}
	if cv := std / mean; cv > tol.MaxSpacingCV {
		return 0, unsupported("assemble", "non-uniform slice spacing: gaps vary by %.1f%% (limit %.1f%%)",
			cv*100, tol.MaxSpacingCV*100)
	}

	return median(deltas), nil
}

// median returns the middle value of values, averaging the two middle
// values for an even count. values is not modified.
func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
