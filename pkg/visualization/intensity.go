package visualization

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"dicomseries/internal/models"
)

// Hounsfield clamp applied when quantizing CT volumes
const (
	MinHU = -1024
	MaxHU = 3071
)

// IntensityRange returns the smallest and largest sample in the volume
func IntensityRange(vol models.Volume) (lo, hi float64) {
	if len(vol.Data) == 0 {
		return 0, 0
	}
	return floats.Min(vol.Data), floats.Max(vol.Data)
}

// Quantized is a volume rounded into int16 display units
type Quantized struct {
	Data []int16

	// Min and Max are the observed rounded values after clamping
	Min, Max int32
}

// QuantizeInt16 rounds every sample, clamps it to [lo, hi] and stores it as
// int16. lo and hi are themselves clamped into the int16 range. For CT
// volumes use MinHU and MaxHU.
func QuantizeInt16(vol models.Volume, lo, hi int32) Quantized {
	lo = max(lo, math.MinInt16)
	hi = min(hi, math.MaxInt16)

	q := Quantized{
		Data: make([]int16, len(vol.Data)),
		Min:  math.MaxInt32,
		Max:  math.MinInt32,
	}
	for i, v := range vol.Data {
		r := int32(math.Max(math.MinInt32, math.Min(math.MaxInt32, math.Round(v))))
		r = max(lo, min(hi, r))
		q.Min = min(q.Min, r)
		q.Max = max(q.Max, r)
		q.Data[i] = int16(r)
	}

	if q.Min > q.Max {
		q.Min, q.Max = lo, hi
	}
	return q
}
