package models

// Vec3 is a point or direction in patient space, in millimetres
type Vec3 struct {
	X, Y, Z float64
}

// Component returns the coordinate of v along axis a
func (v Vec3) Component(a Axis) float64 {
	switch a {
	case AxisX:
		return v.X
	case AxisY:
		return v.Y
	default:
		return v.Z
	}
}

// Axis identifies one of the three cardinal patient-space axes
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return "unknown"
}

// SliceRecord represents one decoded slice file with the metadata needed
// to place it inside a volume. A record is never modified after decoding.
type SliceRecord struct {
	// Path is the file the record was decoded from
	Path string

	// Pixels holds the raw little-endian samples, Rows*Cols*BytesPerSample() bytes
	Pixels []byte

	// Rows and Cols are the in-plane dimensions in samples
	Rows int
	Cols int

	// BitsAllocated is the storage width of one sample (8 or 16)
	BitsAllocated int

	// SignedPixel reports two's complement samples (PixelRepresentation = 1)
	SignedPixel bool

	// RescaleSlope and RescaleIntercept map stored values to physical units
	RescaleSlope     float64
	RescaleIntercept float64

	// SpacingX is the column spacing and SpacingY the row spacing, in mm
	SpacingX float64
	SpacingY float64

	// SliceThickness is the nominal thickness in mm, zero when absent
	SliceThickness float64

	// Position is the patient-space location of the first transmitted pixel
	Position Vec3

	// InstanceNumber is kept for diagnostics only; ordering never uses it
	InstanceNumber int

	SeriesDescription string
	SeriesInstanceUID string
}

// BytesPerSample returns the number of bytes one raw sample occupies
func (s SliceRecord) BytesPerSample() int {
	return s.BitsAllocated / 8
}

// ExpectedLength is the raw pixel length implied by the slice geometry
func (s SliceRecord) ExpectedLength() int {
	return s.Rows * s.Cols * s.BytesPerSample()
}

// Volume represents a 3D volume assembled from an ordered slice series
type Volume struct {
	// Data is the voxel buffer in row-major, slice-major order:
	// index = z*Width*Height + y*Width + x
	Data []float64

	// Width is the number of columns, Height the number of rows
	// and Depth the number of slices
	Width  int
	Height int
	Depth  int

	// SpacingX, SpacingY and SpacingZ are the voxel dimensions in mm
	SpacingX float64
	SpacingY float64
	SpacingZ float64

	// RescaleSlope and RescaleIntercept are the series' shared rescale
	// parameters. Data already has them applied.
	RescaleSlope     float64
	RescaleIntercept float64

	BitsAllocated int
	SignedPixel   bool

	SeriesDescription string

	// Origin is the position of the first slice in the buffer
	Origin Vec3

	// DepthAxis is the patient axis the slices were ordered along
	DepthAxis Axis
}

// VoxelCount returns Width*Height*Depth
func (v Volume) VoxelCount() int {
	return v.Width * v.Height * v.Depth
}

// Extent returns the physical size of the volume in mm
func (v Volume) Extent() Vec3 {
	return Vec3{
		X: v.SpacingX * float64(v.Width),
		Y: v.SpacingY * float64(v.Height),
		Z: v.SpacingZ * float64(v.Depth),
	}
}

// Index returns the buffer offset of voxel (x, y, z)
func (v Volume) Index(x, y, z int) int {
	return z*v.Width*v.Height + y*v.Width + x
}

// At returns the sample at voxel (x, y, z). It panics when out of range.
func (v Volume) At(x, y, z int) float64 {
	return v.Data[v.Index(x, y, z)]
}

// SliceData returns the samples of slice z. The returned slice aliases Data.
func (v Volume) SliceData(z int) []float64 {
	n := v.Width * v.Height
	return v.Data[z*n : (z+1)*n]
}

// WithData returns a copy of v carrying a different buffer and depth,
// leaving v untouched.
func (v Volume) WithData(data []float64, depth int, spacingZ float64) Volume {
	out := v
	out.Data = data
	out.Depth = depth
	out.SpacingZ = spacingZ
	return out
}
