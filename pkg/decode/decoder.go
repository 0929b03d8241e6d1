// Package decode reads DICOM slice files into SliceRecords using
// github.com/suyashkumar/dicom. Pixel data is taken as the raw native
// little-endian payload; compressed and big-endian transfer syntaxes
// are rejected.
package decode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"dicomseries/internal/models"
	"dicomseries/pkg/series"
)

const (
	preambleLength = 128
	magic          = "DICM"

	explicitVRBigEndian = "1.2.840.10008.1.2.2"
)

// Errors describing slice files this decoder cannot handle
var (
	ErrEncapsulated = errors.New("encapsulated (compressed) pixel data is not supported")
	ErrBigEndian    = errors.New("big endian transfer syntax is not supported")
	ErrNoPixelData  = errors.New("no pixel data")
	ErrColorSamples = errors.New("only single-sample (grayscale) pixels are supported")
	ErrMissingTag   = errors.New("missing required tag")
	ErrMalformedTag = errors.New("malformed tag value")
)

// Decoder implements series.Decoder for Part 10 DICOM files
type Decoder struct{}

// New creates a decoder
func New() *Decoder {
	return &Decoder{}
}

// Probe always succeeds: the parser is pure Go and needs no native library
func (d *Decoder) Probe() error {
	return nil
}

// Decode parses one file. Files without the DICM preamble or without pixel
// data are reported as series.ErrNotSlice so the loader skips them.
func (d *Decoder) Decode(ctx context.Context, path string) (models.SliceRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.SliceRecord{}, err
	}

	ok, err := hasPreamble(path)
	if err != nil {
		return models.SliceRecord{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !ok {
		return models.SliceRecord{}, fmt.Errorf("%s: %w", path, series.ErrNotSlice)
	}

	ds, err := dicom.ParseFile(path, nil, dicom.SkipProcessingPixelDataValue())
	if err != nil {
		return models.SliceRecord{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	rec, err := RecordFromDataset(path, ds)
	if err != nil {
		return models.SliceRecord{}, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}

// hasPreamble reports whether the file carries the 128 byte preamble
// followed by the DICM marker
func hasPreamble(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	header := make([]byte, preambleLength+len(magic))
	if _, err := io.ReadFull(f, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, err
	}
	return bytes.Equal(header[preambleLength:], []byte(magic)), nil
}

// RecordFromDataset extracts slice metadata and the raw pixel payload
// from a parsed dataset
func RecordFromDataset(path string, ds dicom.Dataset) (models.SliceRecord, error) {
	if syntax, err := stringValue(ds, tag.TransferSyntaxUID); err == nil && syntax == explicitVRBigEndian {
		return models.SliceRecord{}, ErrBigEndian
	}

	// Part 10 files without pixel data (DICOMDIR, SR, presentation states)
	// are not slices
	if _, err := ds.FindElementByTag(tag.PixelData); err != nil {
		return models.SliceRecord{}, fmt.Errorf("%w: %w", series.ErrNotSlice, ErrNoPixelData)
	}

	rec := models.SliceRecord{Path: path}

	var err error
	if rec.Rows, err = intValue(ds, tag.Rows); err != nil {
		return models.SliceRecord{}, err
	}
	if rec.Cols, err = intValue(ds, tag.Columns); err != nil {
		return models.SliceRecord{}, err
	}
	if rec.BitsAllocated, err = intValue(ds, tag.BitsAllocated); err != nil {
		return models.SliceRecord{}, err
	}
	if samples, err := intValue(ds, tag.SamplesPerPixel); err == nil && samples != 1 {
		return models.SliceRecord{}, ErrColorSamples
	}
	if rep, err := intValue(ds, tag.PixelRepresentation); err == nil {
		rec.SignedPixel = rep == 1
	}

	rec.RescaleSlope = 1
	if slope, err := floatValues(ds, tag.RescaleSlope); err == nil && len(slope) > 0 && slope[0] != 0 {
		rec.RescaleSlope = slope[0]
	}
	if intercept, err := floatValues(ds, tag.RescaleIntercept); err == nil && len(intercept) > 0 {
		rec.RescaleIntercept = intercept[0]
	}

	// PixelSpacing is row spacing \ column spacing
	if spacing, err := floatValues(ds, tag.PixelSpacing); err == nil && len(spacing) >= 2 {
		rec.SpacingY = spacing[0]
		rec.SpacingX = spacing[1]
	}
	if thickness, err := floatValues(ds, tag.SliceThickness); err == nil && len(thickness) > 0 {
		rec.SliceThickness = thickness[0]
	}
	if pos, err := floatValues(ds, tag.ImagePositionPatient); err == nil && len(pos) >= 3 {
		rec.Position = models.Vec3{X: pos[0], Y: pos[1], Z: pos[2]}
	}
	if n, err := floatValues(ds, tag.InstanceNumber); err == nil && len(n) > 0 {
		rec.InstanceNumber = int(n[0])
	}
	rec.SeriesDescription, _ = stringValue(ds, tag.SeriesDescription)
	rec.SeriesInstanceUID, _ = stringValue(ds, tag.SeriesInstanceUID)

	if rec.Pixels, err = pixelBytes(ds, rec.ExpectedLength()); err != nil {
		return models.SliceRecord{}, err
	}
	return rec, nil
}

// pixelBytes copies the raw payload. Values are padded to an even length,
// so an odd expected length may carry one trailing pad byte, which is dropped.
func pixelBytes(ds dicom.Dataset, expected int) ([]byte, error) {
	el, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, ErrNoPixelData
	}
	info, ok := el.Value.GetValue().(dicom.PixelDataInfo)
	if !ok {
		return nil, fmt.Errorf("pixel data: %w", ErrMalformedTag)
	}
	if info.IsEncapsulated {
		return nil, ErrEncapsulated
	}
	if !info.IntentionallyUnprocessed {
		return nil, fmt.Errorf("pixel data was not kept raw: %w", ErrMalformedTag)
	}
	data := info.UnprocessedValueData
	if expected%2 == 1 && len(data) == expected+1 {
		data = data[:expected]
	}
	raw := make([]byte, len(data))
	copy(raw, data)
	return raw, nil
}

func intValue(ds dicom.Dataset, t tag.Tag) (int, error) {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return 0, fmt.Errorf("%v: %w", t, ErrMissingTag)
	}
	switch v := el.Value.GetValue().(type) {
	case []int:
		if len(v) > 0 {
			return v[0], nil
		}
	case []string:
		if len(v) > 0 {
			n, err := strconv.Atoi(strings.TrimSpace(v[0]))
			if err == nil {
				return n, nil
			}
		}
	}
	return 0, fmt.Errorf("%v: %w", t, ErrMalformedTag)
}

func floatValues(ds dicom.Dataset, t tag.Tag) ([]float64, error) {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", t, ErrMissingTag)
	}
	switch v := el.Value.GetValue().(type) {
	case []string:
		out := make([]float64, 0, len(v))
		for _, s := range v {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("%v: %w", t, ErrMalformedTag)
			}
			out = append(out, f)
		}
		return out, nil
	case []float64:
		return v, nil
	case []int:
		out := make([]float64, len(v))
		for i, n := range v {
			out[i] = float64(n)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%v: %w", t, ErrMalformedTag)
}

func stringValue(ds dicom.Dataset, t tag.Tag) (string, error) {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return "", fmt.Errorf("%v: %w", t, ErrMissingTag)
	}
	v, ok := el.Value.GetValue().([]string)
	if !ok || len(v) == 0 {
		return "", fmt.Errorf("%v: %w", t, ErrMalformedTag)
	}
	return strings.TrimRight(strings.Join(v, `\`), " \x00"), nil
}
