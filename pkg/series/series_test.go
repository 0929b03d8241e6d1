package series

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"

	"dicomseries/internal/models"
)

// makeSlice creates a 16-bit unsigned slice whose every sample is value,
// positioned at z along the z axis
func makeSlice(rows, cols int, z float64, value uint16) models.SliceRecord {
	pixels := make([]byte, rows*cols*2)
	for i := 0; i < rows*cols; i++ {
		binary.LittleEndian.PutUint16(pixels[2*i:], value)
	}
	return models.SliceRecord{
		Path:              fmt.Sprintf("slice_%g.dcm", z),
		Pixels:            pixels,
		Rows:              rows,
		Cols:              cols,
		BitsAllocated:     16,
		RescaleSlope:      1,
		SpacingX:          0.5,
		SpacingY:          0.5,
		Position:          models.Vec3{X: -100, Y: -100, Z: z},
		SeriesDescription: "AX T1",
		SeriesInstanceUID: "1.2.3.4",
	}
}

// makeSeries creates one slice per position, each filled with its index
func makeSeries(rows, cols int, positions ...float64) []models.SliceRecord {
	slices := make([]models.SliceRecord, len(positions))
	for i, z := range positions {
		slices[i] = makeSlice(rows, cols, z, uint16(z))
	}
	return slices
}

// fakeSource returns a fixed file list
type fakeSource struct {
	files    []string
	err      error
	cleanups *atomic.Int32
}

func (s fakeSource) Open(ctx context.Context, location string) ([]string, func() error, error) {
	cleanup := func() error {
		if s.cleanups != nil {
			s.cleanups.Add(1)
		}
		return nil
	}
	return s.files, cleanup, s.err
}

// fakeDecoder serves records keyed by path
type fakeDecoder struct {
	records  map[string]models.SliceRecord
	errs     map[string]error
	probeErr error
	calls    atomic.Int32
}

func newFakeDecoder(slices []models.SliceRecord) *fakeDecoder {
	d := &fakeDecoder{
		records: make(map[string]models.SliceRecord),
		errs:    make(map[string]error),
	}
	for _, s := range slices {
		d.records[s.Path] = s
	}
	return d
}

func (d *fakeDecoder) Probe() error { return d.probeErr }

func (d *fakeDecoder) Decode(ctx context.Context, path string) (models.SliceRecord, error) {
	d.calls.Add(1)
	if err, ok := d.errs[path]; ok {
		return models.SliceRecord{}, err
	}
	rec, ok := d.records[path]
	if !ok {
		return models.SliceRecord{}, errors.New("unknown file " + path)
	}
	return rec, nil
}

// pathsOf lists the record paths in order
func pathsOf(slices []models.SliceRecord) []string {
	paths := make([]string, len(slices))
	for i, s := range slices {
		paths[i] = s.Path
	}
	return paths
}
