package models

// Raster represents a single-band geospatial raster as an owned grid of samples
type Raster struct {
	// Data holds the sample values as a 1D array in row-major order
	Data []float64

	// Width is the number of samples per row
	Width int

	// Height is the number of rows
	Height int

	// PixelWidth is the physical distance covered by one pixel along the x-axis
	PixelWidth float64

	// PixelHeight is the physical distance covered by one pixel along the y-axis
	PixelHeight float64

	// ColorDepthBits is the bit width of the source digital sample encoding
	ColorDepthBits int
}

// NewRaster allocates a raster of the given dimensions with zeroed samples.
// Pixel sizes and color depth are copied from the prototype raster so that
// pipeline stages producing derived rasters keep the physical metadata intact.
func NewRaster(width, height int, proto *Raster) *Raster {
	r := &Raster{
		Data:   make([]float64, width*height),
		Width:  width,
		Height: height,
	}
	if proto != nil {
		r.PixelWidth = proto.PixelWidth
		r.PixelHeight = proto.PixelHeight
		r.ColorDepthBits = proto.ColorDepthBits
	}
	return r
}

// At returns the sample at (x, y). Out-of-range coordinates return 0.
func (r *Raster) At(x, y int) float64 {
	if x < 0 || x >= r.Width || y < 0 || y >= r.Height {
		return 0
	}
	return r.Data[y*r.Width+x]
}

// Set stores a sample at (x, y). Out-of-range coordinates are ignored.
func (r *Raster) Set(x, y int, v float64) {
	if x < 0 || x >= r.Width || y < 0 || y >= r.Height {
		return
	}
	r.Data[y*r.Width+x] = v
}

// Clone returns a deep copy of the raster. Pipeline stages never mutate their
// input; a stage that needs a scratch buffer works on a clone instead.
func (r *Raster) Clone() *Raster {
	out := NewRaster(r.Width, r.Height, r)
	copy(out.Data, r.Data)
	return out
}

// NormalizedRaster is the output of the normalization stage: an unsigned
// 16-bit grid together with the physical meaning of one output color step.
type NormalizedRaster struct {
	// Data holds the normalized values as a 1D array in row-major order
	Data []uint16

	// Width and Height are the post-resample dimensions
	Width, Height int

	// ColorStepDist is the physical distance represented by incrementing
	// an output value by one step
	ColorStepDist float64
}

// ColorDepthBits of a normalized raster is always 16.
func (n *NormalizedRaster) ColorDepthBits() int { return 16 }
