// Package normalize implements the value-normalization core: it analyzes the
// raw value range of a raster and remaps the samples into the unsigned 16-bit
// domain, either continuously (preserving a requested color-step distance) or
// as a two-level classification image.
package normalize

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"tiffnorm/internal/models"
)

// MaxColorRange is the number of steps spanned by the full 16-bit output domain.
const MaxColorRange = 65535.0

// ErrDegenerateRange reports a constant-valued raster entering normalization.
// No meaningful remapping exists for such input, so the pipeline aborts instead
// of propagating NaN values into the output.
var ErrDegenerateRange = errors.New("degenerate value range")

// Range returns the observed minimum and maximum sample values of the raster.
// An empty raster yields (0, 0).
func Range(r *models.Raster) (min, max float64) {
	if len(r.Data) == 0 {
		return 0, 0
	}
	return floats.Min(r.Data), floats.Max(r.Data)
}

// StepDistance computes the physical distance represented by one digital color
// step: the observed value span divided by the number of steps the encoding can
// express. A constant raster has a step distance of 0; callers must not divide
// by the result without checking.
func StepDistance(min, max float64, colorDepthBits int) float64 {
	steps := math.Pow(2, float64(colorDepthBits)) - 1
	if steps <= 0 {
		return 0
	}
	return (max - min) / steps
}

// ToUint16 remaps the raster's samples into the 16-bit output domain and
// reports the physical distance covered by one resulting color step.
//
// The value policy, in order:
//  1. Rescale samples linearly to [0, 1] using the observed extrema.
//  2. In binary mode, round each unit value to the nearest integer (ties to
//     even), collapsing the image to a two-level classification.
//  3. Choose the output color range: the full 65535 steps, unless continuous
//     mode requests a positive step distance below 65535, in which case the
//     range is span/targetStepDist. The range is kept real-valued; it is not
//     rounded to an integer step count.
//  4. Scale unit values by the color range, clip to [0, colorRange], then
//     recenter by (65535-colorRange)/2 so a narrower range sits in the middle
//     of the 16-bit space with symmetric headroom. Truncate to uint16.
//
// A constant-valued raster has no usable range and fails with
// ErrDegenerateRange rather than emitting a NaN-filled image.
func ToUint16(r *models.Raster, targetStepDist float64, binaryMode bool) (*models.NormalizedRaster, error) {
	imgMin, imgMax := Range(r)
	if imgMax == imgMin {
		return nil, fmt.Errorf("normalize: every sample equals %g: %w", imgMin, ErrDegenerateRange)
	}
	span := imgMax - imgMin

	colorRange := MaxColorRange
	if !binaryMode && targetStepDist > 0 && targetStepDist < MaxColorRange {
		colorRange = span / targetStepDist
	}
	offset := (MaxColorRange - colorRange) / 2

	out := &models.NormalizedRaster{
		Data:   make([]uint16, len(r.Data)),
		Width:  r.Width,
		Height: r.Height,
	}
	for i, v := range r.Data {
		u := (v - imgMin) / span
		if binaryMode {
			u = math.RoundToEven(u)
		}
		u *= colorRange
		if u < 0 {
			u = 0
		} else if u > colorRange {
			u = colorRange
		}
		out.Data[i] = uint16(u + offset)
	}

	out.ColorStepDist = span / colorRange
	return out, nil
}
