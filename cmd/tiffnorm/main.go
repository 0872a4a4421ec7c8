package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"tiffnorm/pkg/config"
	"tiffnorm/pkg/pipeline"
)

func main() {
	// Parse command line arguments
	newPixelSize := flag.Float64("new_pixel_size", 0, "Width and height that should be covered by one pixel in the output image (0 = no resampling)")
	flag.Float64Var(newPixelSize, "s", 0, "Shorthand for -new_pixel_size")
	newColorStepDist := flag.Float64("new_color_step_dist", 0, "Distance that should be covered vertically by one color step in the output image (0 = full 16-bit range)")
	flag.Float64Var(newColorStepDist, "c", 0, "Shorthand for -new_color_step_dist")
	gblur := flag.Bool("gblur", false, "Add gaussian blur")
	flag.BoolVar(gblur, "g", false, "Shorthand for -gblur")
	binary := flag.Bool("binary", false, "Enable binary mode")
	flag.BoolVar(binary, "b", false, "Shorthand for -binary")
	kernelSize := flag.Int("kernel", 0, "Gaussian blur kernel size (positive odd integer; 0 = use config default)")
	sigma := flag.Float64("sigma", 0, "Gaussian blur spread (0 = derive from kernel size)")
	outputFile := flag.String("output", "", "Output PNG path (default: input path with .png extension)")
	configPath := flag.String("config", "", "Optional YAML config file with processing defaults")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] input_file\n\nConvert/Adjust GeoTIFF files.\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// Validate inputs
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	inputFile := flag.Arg(0)

	// Load configuration defaults; flags override config values
	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	params := &pipeline.Params{
		InputFile:        inputFile,
		OutputFile:       *outputFile,
		NewPixelSize:     cfg.Processing.NewPixelSize,
		NewColorStepDist: cfg.Processing.NewColorStepDist,
		BlurEnabled:      cfg.Blur.Enabled || *gblur,
		BlurKernelSize:   cfg.Blur.KernelSize,
		BlurSigma:        cfg.Blur.Sigma,
		BinaryMode:       cfg.Processing.BinaryMode || *binary,
	}
	if *newPixelSize != 0 {
		params.NewPixelSize = *newPixelSize
	}
	if *newColorStepDist != 0 {
		params.NewColorStepDist = *newColorStepDist
	}
	if *kernelSize != 0 {
		params.BlurKernelSize = *kernelSize
	}
	if *sigma != 0 {
		params.BlurSigma = *sigma
	}

	// Run the conversion pipeline
	if err := pipeline.New(params).Run(); err != nil {
		log.Fatalf("Conversion failed: %v", err)
	}
}
