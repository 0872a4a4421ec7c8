// Package transform provides the spatial stages of the pipeline: resampling a
// raster to a target physical pixel size and optional Gaussian smoothing. Both
// stages return new rasters and never mutate their input.
package transform

import (
	"errors"
	"fmt"
	"math"

	"tiffnorm/internal/models"
)

// ErrInvalidParameter reports a rejected stage parameter: a non-positive target
// pixel size, an even or non-positive blur kernel, or a resample that would
// produce an empty image. Parameters are validated before any numeric work.
var ErrInvalidParameter = errors.New("invalid parameter")

// ComputeResizeFactors derives the per-axis resize factors that bring a raster
// from its original physical pixel size to a uniform target pixel size. The
// factors multiply pixel dimensions, not physical extents.
func ComputeResizeFactors(origPixelWidth, origPixelHeight, targetPixelSize float64) (fx, fy float64, err error) {
	if targetPixelSize <= 0 {
		return 0, 0, fmt.Errorf("target pixel size %g must be positive: %w", targetPixelSize, ErrInvalidParameter)
	}
	return origPixelWidth / targetPixelSize, origPixelHeight / targetPixelSize, nil
}

// Resize produces a resampled raster whose dimensions are the original
// dimensions scaled by the given factors and truncated to integers. A result
// with zero width or height is rejected rather than silently producing an
// empty image.
//
// Downsampling (both factors below 1) uses area averaging to avoid aliasing;
// any other combination uses bilinear interpolation.
func Resize(r *models.Raster, fx, fy float64) (*models.Raster, error) {
	newWidth := int(float64(r.Width) * fx)
	newHeight := int(float64(r.Height) * fy)
	if newWidth <= 0 || newHeight <= 0 {
		return nil, fmt.Errorf("resize factors (%g, %g) of %dx%d raster yield empty %dx%d output: %w",
			fx, fy, r.Width, r.Height, newWidth, newHeight, ErrInvalidParameter)
	}

	out := models.NewRaster(newWidth, newHeight, r)
	out.PixelWidth = r.PixelWidth / fx
	out.PixelHeight = r.PixelHeight / fy

	if fx < 1 && fy < 1 {
		resizeArea(r, out)
	} else {
		resizeBilinear(r, out)
	}
	return out, nil
}

// resizeArea fills dst by averaging, for each destination pixel, the source
// samples covered by its footprint, weighting partially covered samples by
// their overlap fraction.
func resizeArea(src, dst *models.Raster) {
	scaleX := float64(src.Width) / float64(dst.Width)
	scaleY := float64(src.Height) / float64(dst.Height)

	for y := 0; y < dst.Height; y++ {
		y0 := float64(y) * scaleY
		y1 := float64(y+1) * scaleY
		for x := 0; x < dst.Width; x++ {
			x0 := float64(x) * scaleX
			x1 := float64(x+1) * scaleX

			var sum, weight float64
			for sy := int(y0); sy < src.Height && float64(sy) < y1; sy++ {
				hy := overlap(y0, y1, float64(sy), float64(sy+1))
				for sx := int(x0); sx < src.Width && float64(sx) < x1; sx++ {
					w := hy * overlap(x0, x1, float64(sx), float64(sx+1))
					sum += src.Data[sy*src.Width+sx] * w
					weight += w
				}
			}
			if weight > 0 {
				dst.Data[y*dst.Width+x] = sum / weight
			}
		}
	}
}

// overlap returns the length of the intersection of intervals [a0,a1) and [b0,b1).
func overlap(a0, a1, b0, b1 float64) float64 {
	lo := math.Max(a0, b0)
	hi := math.Min(a1, b1)
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// resizeBilinear fills dst by sampling the source at each destination pixel
// center and interpolating between the four surrounding samples.
func resizeBilinear(src, dst *models.Raster) {
	scaleX := float64(src.Width) / float64(dst.Width)
	scaleY := float64(src.Height) / float64(dst.Height)

	for y := 0; y < dst.Height; y++ {
		srcY := (float64(y)+0.5)*scaleY - 0.5
		if srcY < 0 {
			srcY = 0
		}
		y0 := int(srcY)
		y1 := y0 + 1
		if y1 >= src.Height {
			y1 = src.Height - 1
		}
		ty := srcY - float64(y0)

		for x := 0; x < dst.Width; x++ {
			srcX := (float64(x)+0.5)*scaleX - 0.5
			if srcX < 0 {
				srcX = 0
			}
			x0 := int(srcX)
			x1 := x0 + 1
			if x1 >= src.Width {
				x1 = src.Width - 1
			}
			tx := srcX - float64(x0)

			top := (1-tx)*src.Data[y0*src.Width+x0] + tx*src.Data[y0*src.Width+x1]
			bottom := (1-tx)*src.Data[y1*src.Width+x0] + tx*src.Data[y1*src.Width+x1]
			dst.Data[y*dst.Width+x] = (1-ty)*top + ty*bottom
		}
	}
}
