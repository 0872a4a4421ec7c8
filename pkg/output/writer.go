// Package output serializes normalized rasters to lossless 16-bit grayscale
// PNG files. It carries no numeric policy; the values are written exactly as
// the normalization stage produced them.
package output

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"tiffnorm/internal/models"
)

// ErrWrite reports an output path that cannot be written.
var ErrWrite = errors.New("cannot write image")

// DerivePath returns the output filename for an input raster: the input path
// with its extension replaced by .png. A path without an extension gets .png
// appended.
func DerivePath(inputPath string) string {
	return strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".png"
}

// WritePNG16 encodes the normalized raster as a 16-bit grayscale PNG with the
// same dimensions. Failures are wrapped in ErrWrite and surfaced unmodified.
func WritePNG16(n *models.NormalizedRaster, path string) error {
	img := image.NewGray16(image.Rect(0, 0, n.Width, n.Height))
	for y := 0; y < n.Height; y++ {
		for x := 0; x < n.Width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: n.Data[y*n.Width+x]})
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("%w: encoding %s: %v", ErrWrite, path, err)
	}
	return nil
}
