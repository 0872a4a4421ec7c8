// Package report renders raster metadata as human-readable text. It is pure
// presentation; all values are computed by the numeric stages and passed in.
package report

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/stat"

	"tiffnorm/internal/models"
)

// Info describes one raster for reporting, either the input file or the
// produced output.
type Info struct {
	// Path is the raster's file path
	Path string

	// ColorDepthBits is the bit width of the raster's digital encoding
	ColorDepthBits int

	// PixelWidth and PixelHeight are the physical distances covered by one
	// pixel along each axis
	PixelWidth  float64
	PixelHeight float64

	// ColorStepDist is the physical distance covered by one color step.
	// Not printed in binary mode, where step semantics do not apply.
	ColorStepDist float64

	// BinaryMode suppresses the step-distance line
	BinaryMode bool
}

// Describe writes the metadata block for one raster.
func Describe(w io.Writer, info Info) {
	fmt.Fprintln(w, "File path:", info.Path)
	fmt.Fprintln(w, "Color depth:", info.ColorDepthBits, "bit")
	fmt.Fprintln(w, "Pixel width:", info.PixelWidth, "units")
	fmt.Fprintln(w, "Pixel height:", info.PixelHeight, "units")
	if !info.BinaryMode {
		fmt.Fprintln(w, "Distance covered by one color step:", info.ColorStepDist, "units")
	}
}

// Summary writes the observed value statistics of the input raster. The
// extrema come from the range analysis that also feeds the step-distance
// computation; mean and standard deviation are informational.
func Summary(w io.Writer, r *models.Raster, min, max float64) {
	fmt.Fprintf(w, "Value range: %g to %g\n", min, max)
	mean, std := stat.MeanStdDev(r.Data, nil)
	fmt.Fprintf(w, "Mean value: %.6g (stddev %.6g)\n", mean, std)
}
