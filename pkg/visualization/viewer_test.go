package visualization

import (
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"testing"

	"dicomseries/internal/models"
)

// makeVolume builds a volume with 1mm in-plane spacing whose voxels are
// given by fn
func makeVolume(width, height, depth int, spacingZ float64, fn func(x, y, z int) float64) models.Volume {
	vol := models.Volume{
		Data:     make([]float64, width*height*depth),
		Width:    width,
		Height:   height,
		Depth:    depth,
		SpacingX: 1,
		SpacingY: 1,
		SpacingZ: spacingZ,
	}
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				vol.Data[vol.Index(x, y, z)] = fn(x, y, z)
			}
		}
	}
	return vol
}

// TestNewViewer verifies the default window spans the volume's range
func TestNewViewer(t *testing.T) {
	vol := makeVolume(4, 4, 3, 1, func(x, y, z int) float64 { return float64(100*z - 50) })

	viewer := NewViewer(vol)

	if viewer.window.Center != 50 || viewer.window.Width != 200 {
		t.Errorf("Expected window 50/200, got %+v", viewer.window)
	}
	if viewer.colormap != Gray {
		t.Errorf("Expected gray colormap, got %s", viewer.colormap.Name)
	}

	// A flat volume still gets a usable window
	flat := NewViewer(makeVolume(2, 2, 1, 1, func(x, y, z int) float64 { return 7 }))
	if flat.window.Width <= 0 {
		t.Errorf("Expected positive width, got %g", flat.window.Width)
	}
}

// TestExtractSlice verifies that slices are correctly extracted from the volume
func TestExtractSlice(t *testing.T) {
	width, height, depth := 10, 8, 5

	// Each slice along Z has a unique value
	vol := makeVolume(width, height, depth, 1, func(x, y, z int) float64 { return float64(z) })
	viewer := NewViewer(vol)

	for z := 0; z < depth; z++ {
		img, err := viewer.ExtractSlice("z", z)
		if err != nil {
			t.Fatalf("Failed to extract Z slice at position %d: %v", z, err)
		}

		bounds := img.Bounds()
		if bounds.Dx() != width || bounds.Dy() != height {
			t.Errorf("Expected Z slice dimensions %dx%d, got %dx%d",
				width, height, bounds.Dx(), bounds.Dy())
		}

		gray16Img, ok := img.(*image.Gray16)
		if !ok {
			t.Fatalf("Expected *image.Gray16, got %T", img)
		}
		expected := math.Round(float64(z) / float64(depth-1) * 65535)
		got := float64(gray16Img.Gray16At(width/2, height/2).Y)
		if math.Abs(got-expected) > 1 {
			t.Errorf("Expected Z slice value ~%g at center, got %g", expected, got)
		}
	}

	imgX, err := viewer.ExtractSlice("x", width/2)
	if err != nil {
		t.Fatalf("Failed to extract X slice: %v", err)
	}
	if b := imgX.Bounds(); b.Dx() != depth || b.Dy() != height {
		t.Errorf("Expected X slice dimensions %dx%d, got %dx%d", depth, height, b.Dx(), b.Dy())
	}

	imgY, err := viewer.ExtractSlice("Y", height/2)
	if err != nil {
		t.Fatalf("Failed to extract Y slice: %v", err)
	}
	if b := imgY.Bounds(); b.Dx() != width || b.Dy() != depth {
		t.Errorf("Expected Y slice dimensions %dx%d, got %dx%d", width, depth, b.Dx(), b.Dy())
	}

	if _, err := viewer.ExtractSlice("invalid", 0); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
	if _, err := viewer.ExtractSlice("z", depth); err == nil {
		t.Error("Expected error for out of bounds position, got nil")
	}
	if _, err := viewer.ExtractSlice("z", -1); err == nil {
		t.Error("Expected error for negative position, got nil")
	}
}

// TestExtractSliceWindowAndColormap checks windowing clamps and colour output
func TestExtractSliceWindowAndColormap(t *testing.T) {
	vol := makeVolume(3, 1, 1, 1, func(x, y, z int) float64 { return float64(x) * 1000 })
	viewer := NewViewer(vol)
	viewer.SetWindow(Window{Center: 1000, Width: 10})

	img, err := viewer.ExtractSlice("z", 0)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}
	g := img.(*image.Gray16)
	if g.Gray16At(0, 0).Y != 0 || g.Gray16At(2, 0).Y != 65535 {
		t.Errorf("Expected values outside the window to clamp, got %d and %d",
			g.Gray16At(0, 0).Y, g.Gray16At(2, 0).Y)
	}

	// Non-positive widths are ignored
	viewer.SetWindow(Window{Center: 0, Width: 0})
	if viewer.window.Width != 10 {
		t.Errorf("Expected window to be kept, got %+v", viewer.window)
	}

	viewer.SetColormap(Hot)
	img, err = viewer.ExtractSlice("z", 0)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}
	if _, ok := img.(*image.NRGBA); !ok {
		t.Errorf("Expected *image.NRGBA for hot map, got %T", img)
	}

	viewer.SetColormap(nil)
	if viewer.colormap != Gray {
		t.Error("Expected nil colormap to select gray")
	}
}

// TestExtractRegion verifies that 3D regions are correctly extracted
func TestExtractRegion(t *testing.T) {
	width, height, depth := 10, 10, 5
	vol := makeVolume(width, height, depth, 1, func(x, y, z int) float64 {
		return float64(x)/float64(width) + float64(y)/float64(height) + float64(z)/float64(depth)
	})
	viewer := NewViewer(vol)

	startX, startY, startZ := 2, 3, 1
	sizeX, sizeY, sizeZ := 4, 3, 2

	region, err := viewer.ExtractRegion(startX, startY, startZ, sizeX, sizeY, sizeZ)
	if err != nil {
		t.Fatalf("Failed to extract region: %v", err)
	}

	if len(region) != sizeX*sizeY*sizeZ {
		t.Errorf("Expected region size %d, got %d", sizeX*sizeY*sizeZ, len(region))
	}

	for z := 0; z < sizeZ; z++ {
		for y := 0; y < sizeY; y++ {
			for x := 0; x < sizeX; x++ {
				regionIdx := z*sizeX*sizeY + y*sizeX + x
				want := vol.At(startX+x, startY+y, startZ+z)
				if region[regionIdx] != want {
					t.Errorf("Region value mismatch at (%d,%d,%d): expected %f, got %f",
						x, y, z, want, region[regionIdx])
				}
			}
		}
	}

	if _, err := viewer.ExtractRegion(-1, 0, 0, 1, 1, 1); err == nil {
		t.Error("Expected error for negative start coordinate, got nil")
	}
	if _, err := viewer.ExtractRegion(0, 0, 0, 0, 1, 1); err == nil {
		t.Error("Expected error for zero size, got nil")
	}
	if _, err := viewer.ExtractRegion(width-1, 0, 0, 2, 1, 1); err == nil {
		t.Error("Expected error for region extending beyond volume, got nil")
	}
}

// TestSaveSlice verifies that slices can be saved to disk
func TestSaveSlice(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	vol := makeVolume(10, 10, 5, 1, func(x, y, z int) float64 { return float64(x * y) })
	viewer := NewViewer(vol)

	img, err := viewer.ExtractSlice("z", 0)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}

	filename := filepath.Join(t.TempDir(), "test_slice.png")
	if err := viewer.SaveSlice(img, filename); err != nil {
		t.Fatalf("Failed to save slice: %v", err)
	}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		t.Errorf("Saved file does not exist: %s", filename)
	}
}

// TestSaveSliceSequence verifies that a sequence of slices can be saved
func TestSaveSliceSequence(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	width, height, depth := 5, 4, 3
	vol := makeVolume(width, height, depth, 1, func(x, y, z int) float64 { return float64(x + z) })
	viewer := NewViewer(vol)

	outputDir := filepath.Join(t.TempDir(), "slices")
	if err := viewer.SaveSliceSequence("z", outputDir); err != nil {
		t.Fatalf("Failed to save slice sequence: %v", err)
	}

	for z := 0; z < depth; z++ {
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_z_%03d.png", z))
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			t.Errorf("Expected slice file does not exist: %s", filename)
		}
	}

	if err := viewer.SaveSliceSequence("invalid", outputDir); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
}

// TestPhysicalSize checks aspect correction stretches the coarser axis
func TestPhysicalSize(t *testing.T) {
	vol := makeVolume(4, 6, 3, 2.5, func(x, y, z int) float64 { return 0 })
	viewer := NewViewer(vol)

	// YZ plane: image x runs along depth at 2.5mm, image y along rows at 1mm
	if w, h := viewer.physicalSize("x", 3, 6); w != 8 || h != 6 {
		t.Errorf("Expected 8x6 for x slices, got %dx%d", w, h)
	}
	// XZ plane: image y runs along depth
	if w, h := viewer.physicalSize("y", 4, 3); w != 4 || h != 8 {
		t.Errorf("Expected 4x8 for y slices, got %dx%d", w, h)
	}
	if w, h := viewer.physicalSize("z", 4, 6); w != 4 || h != 6 {
		t.Errorf("Expected unchanged 4x6 for z slices, got %dx%d", w, h)
	}

	viewer.SetAspectCorrection(true)
	outputDir := t.TempDir()
	if err := viewer.SaveSliceSequence("x", outputDir); err != nil {
		t.Fatalf("Failed to save slice sequence: %v", err)
	}
}
