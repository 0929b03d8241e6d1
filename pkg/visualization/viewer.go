package visualization

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"dicomseries/internal/models"
)

// Window maps sample values to display intensity. Samples at or below
// Center-Width/2 render black, at or above Center+Width/2 white.
type Window struct {
	Center float64
	Width  float64
}

// FullRangeWindow returns a window spanning the volume's intensity range
func FullRangeWindow(vol models.Volume) Window {
	lo, hi := IntensityRange(vol)
	w := hi - lo
	if w <= 0 {
		w = 1
	}
	return Window{Center: lo + (hi-lo)/2, Width: w}
}

// level returns v mapped into [0, 1]
func (w Window) level(v float64) float64 {
	lo := w.Center - w.Width/2
	t := (v - lo) / w.Width
	return math.Max(0, math.Min(1, t))
}

// Viewer extracts orthogonal slices of an assembled volume as images
type Viewer struct {
	// volume is read only; the viewer never modifies its buffer
	volume models.Volume

	window   Window
	colormap *Colormap

	// aspect resizes exported images so pixels are physically square
	aspect bool
}

// NewViewer creates a viewer using the full intensity range and the gray map
func NewViewer(vol models.Volume) *Viewer {
	return &Viewer{
		volume:   vol,
		window:   FullRangeWindow(vol),
		colormap: Gray,
	}
}

// SetWindow changes the display window. A non-positive width is ignored.
func (v *Viewer) SetWindow(w Window) {
	if w.Width > 0 {
		v.window = w
	}
}

// SetColormap selects the colour ramp; nil means gray
func (v *Viewer) SetColormap(c *Colormap) {
	if c == nil {
		c = Gray
	}
	v.colormap = c
}

// SetAspectCorrection enables resampling exported slices to physical aspect
func (v *Viewer) SetAspectCorrection(on bool) {
	v.aspect = on
}

// planeSize returns the image size of slices along axis and its bound
func (v *Viewer) planeSize(axis string) (w, h, limit int, err error) {
	vol := v.volume
	switch axis {
	case "x", "X":
		return vol.Depth, vol.Height, vol.Width, nil
	case "y", "Y":
		return vol.Width, vol.Depth, vol.Height, nil
	case "z", "Z":
		return vol.Width, vol.Height, vol.Depth, nil
	}
	return 0, 0, 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
}

// ExtractSlice extracts a 2D slice from the 3D volume along the specified
// axis. Gray maps produce *image.Gray16, other maps *image.NRGBA.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	w, h, limit, err := v.planeSize(axis)
	if err != nil {
		return nil, err
	}
	if position >= limit {
		return nil, fmt.Errorf("position %d exceeds %s extent %d", position, axis, limit)
	}

	// sample returns the voxel shown at image pixel (i, j)
	var sample func(i, j int) float64
	vol := v.volume
	switch axis {
	case "x", "X":
		// YZ plane
		sample = func(i, j int) float64 { return vol.At(position, j, i) }
	case "y", "Y":
		// XZ plane
		sample = func(i, j int) float64 { return vol.At(i, position, j) }
	default:
		// XY plane
		sample = func(i, j int) float64 { return vol.At(i, j, position) }
	}

	if v.colormap == Gray {
		img := image.NewGray16(image.Rect(0, 0, w, h))
		for j := 0; j < h; j++ {
			for i := 0; i < w; i++ {
				value := uint16(math.Round(v.window.level(sample(i, j)) * 65535))
				img.SetGray16(i, j, color.Gray16{Y: value})
			}
		}
		return img, nil
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			img.SetNRGBA(i, j, v.colormap.At(v.window.level(sample(i, j))))
		}
	}
	return img, nil
}

// ExtractRegion extracts a 3D subregion from the volume
func (v *Viewer) ExtractRegion(startX, startY, startZ, sizeX, sizeY, sizeZ int) ([]float64, error) {
	if startX < 0 || startY < 0 || startZ < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}

	if sizeX <= 0 || sizeY <= 0 || sizeZ <= 0 {
		return nil, fmt.Errorf("size dimensions must be positive")
	}

	vol := v.volume
	if startX+sizeX > vol.Width || startY+sizeY > vol.Height || startZ+sizeZ > vol.Depth {
		return nil, fmt.Errorf("region extends beyond volume boundaries")
	}

	region := make([]float64, sizeX*sizeY*sizeZ)
	for z := 0; z < sizeZ; z++ {
		for y := 0; y < sizeY; y++ {
			src := vol.Index(startX, startY+y, startZ+z)
			dst := z*sizeX*sizeY + y*sizeX
			copy(region[dst:dst+sizeX], vol.Data[src:src+sizeX])
		}
	}

	return region, nil
}

// physicalSize returns the image size in pixels with square physical pixels,
// keeping the larger pixel dimension
func (v *Viewer) physicalSize(axis string, w, h int) (int, int) {
	vol := v.volume
	var sx, sy float64
	switch axis {
	case "x", "X":
		sx, sy = vol.SpacingZ, vol.SpacingY
	case "y", "Y":
		sx, sy = vol.SpacingX, vol.SpacingZ
	default:
		sx, sy = vol.SpacingX, vol.SpacingY
	}
	if sx <= 0 || sy <= 0 || sx == sy {
		return w, h
	}
	if sx > sy {
		return int(math.Round(float64(w) * sx / sy)), h
	}
	return w, int(math.Round(float64(h) * sy / sx))
}

// SaveSlice saves an extracted slice. The format follows the extension
// of filename (png, jpg, tif, bmp, gif).
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	return imaging.Save(img, filename)
}

// SaveSliceSequence extracts and saves every slice along the specified
// axis as PNG files in outputDir
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	w, h, maxPos, err := v.planeSize(axis)
	if err != nil {
		return err
	}
	pw, ph := v.physicalSize(axis, w, h)

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}
		if v.aspect && (pw != w || ph != h) {
			img = imaging.Resize(img, pw, ph, imaging.Linear)
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
