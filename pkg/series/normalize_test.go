package series

import (
	"encoding/binary"
	"errors"
	"strings"
	"testing"
)

// TestNormalizeRescale checks raw 100 with slope 2 and intercept -50 gives 150
func TestNormalizeRescale(t *testing.T) {
	raw := make([]byte, 2)
	binary.LittleEndian.PutUint16(raw, 100)

	out, err := Normalize(raw, 1, 1, 16, false, 2.0, -50)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if len(out) != 1 || out[0] != 150.0 {
		t.Errorf("Expected [150], got %v", out)
	}
}

// TestNormalizeSampleFormats covers every supported width and signedness
func TestNormalizeSampleFormats(t *testing.T) {
	tests := []struct {
		name   string
		raw    []byte
		bits   int
		signed bool
		want   []float64
	}{
		{"uint8", []byte{0, 127, 255}, 8, false, []float64{0, 127, 255}},
		{"int8", []byte{0x00, 0x7f, 0xff}, 8, true, []float64{0, 127, -1}},
		{"uint16", []byte{0x00, 0x00, 0xff, 0xff, 0x34, 0x12}, 16, false, []float64{0, 65535, 0x1234}},
		{"int16", []byte{0x00, 0x00, 0xff, 0xff, 0x00, 0x80}, 16, true, []float64{0, -1, -32768}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Normalize(tt.raw, 1, 3, tt.bits, tt.signed, 1, 0)
			if err != nil {
				t.Fatalf("Normalize failed: %v", err)
			}
			for i := range tt.want {
				if out[i] != tt.want[i] {
					t.Errorf("Sample %d: expected %g, got %g", i, tt.want[i], out[i])
				}
			}
		})
	}
}

// TestNormalizeIdentity verifies slope 1 and intercept 0 leave samples unchanged
func TestNormalizeIdentity(t *testing.T) {
	raw := []byte{0x10, 0x00, 0x20, 0x00}

	out, err := Normalize(raw, 2, 1, 16, false, 1, 0)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if out[0] != 16 || out[1] != 32 {
		t.Errorf("Expected [16 32], got %v", out)
	}
}

// TestNormalizeLengthMismatch verifies truncated payloads are native errors
func TestNormalizeLengthMismatch(t *testing.T) {
	for _, n := range []int{0, 7, 9} {
		_, err := Normalize(make([]byte, n), 2, 2, 16, false, 1, 0)
		if !errors.Is(err, ErrNative) {
			t.Errorf("Length %d: expected native error, got %v", n, err)
		}
	}
}

// TestNormalizeSliceAddsPath checks errors name the offending file
func TestNormalizeSliceAddsPath(t *testing.T) {
	s := makeSlice(2, 2, 0, 1)
	s.Pixels = s.Pixels[:3]

	_, err := NormalizeSlice(s)
	if Classify(err) != KindNative {
		t.Fatalf("Expected native error, got %v", err)
	}
	var e *Error
	if !errors.As(err, &e) || !strings.HasPrefix(e.Msg, s.Path) {
		t.Errorf("Expected message to start with %q, got %v", s.Path, err)
	}
}
