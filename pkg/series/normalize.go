package series

import (
	"encoding/binary"

	"dicomseries/internal/models"
)

// Normalize reinterprets raw little-endian samples and applies the linear
// rescale canonical = raw*slope + intercept. The result has rows*cols
// entries. A payload whose length does not match the geometry is reported
// as a Native error since it points at a truncated or corrupt decode.
func Normalize(raw []byte, rows, cols, bitsAllocated int, signed bool, slope, intercept float64) ([]float64, error) {
	const op = "normalize"

	n := rows * cols
	switch bitsAllocated {
	case 8, 16:
	default:
		return nil, unsupported(op, "%d bits allocated, need 8 or 16", bitsAllocated)
	}
	bytesPerSample := bitsAllocated / 8
	if len(raw) != n*bytesPerSample {
		return nil, newError(KindNative, op, nil, "pixel data is %d bytes, expected %d (%dx%dx%d)",
			len(raw), n*bytesPerSample, cols, rows, bytesPerSample)
	}

	out := make([]float64, n)
	switch {
	case bitsAllocated == 8 && signed:
		for i := range out {
			out[i] = float64(int8(raw[i]))*slope + intercept
		}
	case bitsAllocated == 8:
		for i := range out {
			out[i] = float64(raw[i])*slope + intercept
		}
	case signed:
		for i := range out {
			out[i] = float64(int16(binary.LittleEndian.Uint16(raw[2*i:])))*slope + intercept
		}
	default:
		for i := range out {
			out[i] = float64(binary.LittleEndian.Uint16(raw[2*i:]))*slope + intercept
		}
	}

	return out, nil
}

// NormalizeSlice applies Normalize using the slice's own metadata
func NormalizeSlice(s models.SliceRecord) ([]float64, error) {
	samples, err := Normalize(s.Pixels, s.Rows, s.Cols, s.BitsAllocated, s.SignedPixel, s.RescaleSlope, s.RescaleIntercept)
	if err != nil {
		if e, ok := err.(*Error); ok && e.Msg != "" {
			e.Msg = s.Path + ": " + e.Msg
		}
		return nil, err
	}
	return samples, nil
}
