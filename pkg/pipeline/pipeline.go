// Package pipeline wires the processing stages into the single-shot batch
// transform: open the source raster, report its metadata, optionally resample
// and smooth, normalize to 16 bits, report the result, and write the PNG.
// Every stage runs to completion before the next begins and owns its input;
// stages return fresh rasters rather than mutating shared buffers.
package pipeline

import (
	"fmt"
	"io"
	"os"

	"tiffnorm/internal/models"
	"tiffnorm/pkg/geotiff"
	"tiffnorm/pkg/normalize"
	"tiffnorm/pkg/output"
	"tiffnorm/pkg/report"
	"tiffnorm/pkg/transform"
)

// Params holds the conversion parameters. All of them are validated before
// the first numeric stage runs; any failure aborts the run with no partial
// output.
type Params struct {
	// InputFile is the path to the source GeoTIFF raster.
	InputFile string

	// OutputFile is the path of the PNG to produce. When empty it is derived
	// from InputFile by replacing the extension with .png.
	OutputFile string

	// NewPixelSize is the physical size one output pixel should cover.
	// 0 disables the resampling stage.
	NewPixelSize float64

	// NewColorStepDist is the physical distance one output color step should
	// cover. 0 requests the full 16-bit range.
	NewColorStepDist float64

	// BlurEnabled turns on the Gaussian smoothing stage.
	BlurEnabled bool

	// BlurKernelSize is the smoothing kernel size; must be a positive odd
	// integer when BlurEnabled is set.
	BlurKernelSize int

	// BlurSigma is the Gaussian spread; 0 or below derives the spread from
	// the kernel size.
	BlurSigma float64

	// BinaryMode collapses the normalized output to a two-level
	// classification image and suppresses step-distance reporting.
	BinaryMode bool
}

// Pipeline runs the conversion described by its parameters.
type Pipeline struct {
	params *Params
	stdout io.Writer
	result *models.NormalizedRaster
}

// New creates a pipeline instance for the given parameters.
func New(params *Params) *Pipeline {
	return &Pipeline{
		params: params,
		stdout: os.Stdout,
	}
}

// Result returns the normalized raster produced by the last successful Run.
func (p *Pipeline) Result() *models.NormalizedRaster {
	return p.result
}

// validate rejects bad parameters eagerly, before any file is opened or
// numeric work is wasted.
func (p *Pipeline) validate() error {
	if p.params.InputFile == "" {
		return fmt.Errorf("no input file given: %w", transform.ErrInvalidParameter)
	}
	if p.params.NewPixelSize < 0 {
		return fmt.Errorf("target pixel size %g must not be negative: %w",
			p.params.NewPixelSize, transform.ErrInvalidParameter)
	}
	if p.params.BlurEnabled {
		if err := transform.ValidateKernelSize(p.params.BlurKernelSize); err != nil {
			return err
		}
	}
	return nil
}

// Run executes the complete conversion.
func (p *Pipeline) Run() error {
	if err := p.validate(); err != nil {
		return err
	}

	outputPath := p.params.OutputFile
	if outputPath == "" {
		outputPath = output.DerivePath(p.params.InputFile)
	}

	// Stage 1: open the source raster and analyze its value range
	raster, sourceStepDist, err := geotiff.Open(p.params.InputFile)
	if err != nil {
		return fmt.Errorf("failed to open source raster: %w", err)
	}

	min, max := normalize.Range(raster)
	fmt.Fprintln(p.stdout, "INPUT")
	report.Describe(p.stdout, report.Info{
		Path:           p.params.InputFile,
		ColorDepthBits: raster.ColorDepthBits,
		PixelWidth:     raster.PixelWidth,
		PixelHeight:    raster.PixelHeight,
		ColorStepDist:  sourceStepDist,
		BinaryMode:     p.params.BinaryMode,
	})
	report.Summary(p.stdout, raster, min, max)

	fmt.Fprintln(p.stdout, "Processing...")

	// Stage 2: resample to the requested physical pixel size
	if p.params.NewPixelSize > 0 {
		fx, fy, err := transform.ComputeResizeFactors(raster.PixelWidth, raster.PixelHeight, p.params.NewPixelSize)
		if err != nil {
			return fmt.Errorf("failed to compute resize factors: %w", err)
		}
		raster, err = transform.Resize(raster, fx, fy)
		if err != nil {
			return fmt.Errorf("failed to resize raster: %w", err)
		}
	}

	// Stage 3: optional Gaussian smoothing
	if p.params.BlurEnabled {
		raster, err = transform.GaussianBlur(raster, p.params.BlurKernelSize, p.params.BlurSigma)
		if err != nil {
			return fmt.Errorf("failed to blur raster: %w", err)
		}
	}

	// Stage 4: normalize to the 16-bit output domain
	normalized, err := normalize.ToUint16(raster, p.params.NewColorStepDist, p.params.BinaryMode)
	if err != nil {
		return fmt.Errorf("failed to normalize raster: %w", err)
	}
	p.result = normalized

	fmt.Fprintln(p.stdout, "Done")

	fmt.Fprintln(p.stdout, "RESULT")
	report.Describe(p.stdout, report.Info{
		Path:           outputPath,
		ColorDepthBits: normalized.ColorDepthBits(),
		PixelWidth:     raster.PixelWidth,
		PixelHeight:    raster.PixelHeight,
		ColorStepDist:  normalized.ColorStepDist,
		BinaryMode:     p.params.BinaryMode,
	})

	// Stage 5: write the 16-bit PNG
	if err := output.WritePNG16(normalized, outputPath); err != nil {
		return fmt.Errorf("failed to write output image: %w", err)
	}
	return nil
}
