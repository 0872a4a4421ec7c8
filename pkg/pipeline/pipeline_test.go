package pipeline

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tiffnorm/pkg/normalize"
	"tiffnorm/pkg/transform"
)

// writeTIFF writes a minimal single-strip little-endian 16-bit GeoTIFF with
// the given samples and a square pixel of the given physical size
func writeTIFF(t *testing.T, path string, width, height int, pixelSize float64, samples []uint16) {
	t.Helper()

	bo := binary.LittleEndian
	pixelData := make([]byte, 2*len(samples))
	for i, v := range samples {
		bo.PutUint16(pixelData[2*i:], v)
	}

	scaleOffset := uint32(8 + len(pixelData))
	scale := make([]byte, 24)
	bo.PutUint64(scale[0:], math.Float64bits(pixelSize))
	bo.PutUint64(scale[8:], math.Float64bits(pixelSize))
	ifdOffset := scaleOffset + 24

	type tag struct {
		id        uint16
		fieldType uint16
		count     uint32
		value     uint32
	}
	tags := []tag{
		{256, 4, 1, uint32(width)},
		{257, 4, 1, uint32(height)},
		{258, 3, 1, 16},
		{259, 3, 1, 1}, // uncompressed
		{273, 4, 1, 8}, // strip starts right after the header
		{277, 3, 1, 1},
		{278, 4, 1, uint32(height)},
		{279, 4, 1, uint32(len(pixelData))},
		{339, 3, 1, 1}, // unsigned integer samples
		{33550, 12, 3, scaleOffset},
	}

	var buf bytes.Buffer
	buf.WriteString("II")
	binary.Write(&buf, bo, uint16(42))
	binary.Write(&buf, bo, ifdOffset)
	buf.Write(pixelData)
	buf.Write(scale)
	binary.Write(&buf, bo, uint16(len(tags)))
	for _, e := range tags {
		binary.Write(&buf, bo, e.id)
		binary.Write(&buf, bo, e.fieldType)
		binary.Write(&buf, bo, e.count)
		if e.fieldType == 3 {
			// SHORT values sit in the low half of the value field
			binary.Write(&buf, bo, uint16(e.value))
			binary.Write(&buf, bo, uint16(0))
		} else {
			binary.Write(&buf, bo, e.value)
		}
	}
	binary.Write(&buf, bo, uint32(0))

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
}

// rampSamples returns n samples ramping upward from lo in unit steps
func rampSamples(n int, lo uint16) []uint16 {
	out := make([]uint16, n)
	for i := range out {
		out[i] = lo + uint16(i)
	}
	return out
}

// decodePNG reads back a written 16-bit grayscale PNG
func decodePNG(t *testing.T, path string) *image.Gray16 {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open output image: %v", err)
	}
	defer file.Close()

	decoded, err := png.Decode(file)
	if err != nil {
		t.Fatalf("Failed to decode output image: %v", err)
	}
	gray, ok := decoded.(*image.Gray16)
	if !ok {
		t.Fatalf("Expected 16-bit grayscale output, got %T", decoded)
	}
	return gray
}

// TestRunEndToEnd converts a small raster with the default parameters and
// checks the written PNG spans the full 16-bit range
func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "dem.tif")
	writeTIFF(t, input, 4, 4, 1.0, rampSamples(16, 1000))

	p := New(&Params{InputFile: input})
	p.stdout = &bytes.Buffer{}
	if err := p.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	gray := decodePNG(t, filepath.Join(dir, "dem.png"))
	if gray.Bounds().Dx() != 4 || gray.Bounds().Dy() != 4 {
		t.Fatalf("Expected 4x4 output, got %v", gray.Bounds())
	}
	if gray.Gray16At(0, 0).Y != 0 {
		t.Errorf("Expected minimum sample to map to 0, got %d", gray.Gray16At(0, 0).Y)
	}
	if gray.Gray16At(3, 3).Y != 65535 {
		t.Errorf("Expected maximum sample to map to 65535, got %d", gray.Gray16At(3, 3).Y)
	}

	result := p.Result()
	if result == nil {
		t.Fatal("Expected a stored result after Run")
	}
	wantStep := 15.0 / 65535.0
	if math.Abs(result.ColorStepDist-wantStep) > 1e-12 {
		t.Errorf("Expected step distance %g, got %g", wantStep, result.ColorStepDist)
	}
}

// TestRunWithResampling converts with a target pixel size and checks the
// output dimensions follow the resize factors
func TestRunWithResampling(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "dem.tif")
	writeTIFF(t, input, 8, 8, 2.0, rampSamples(64, 0))

	p := New(&Params{
		InputFile:    input,
		NewPixelSize: 4.0,
	})
	p.stdout = &bytes.Buffer{}
	if err := p.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Factor 2/4 = 0.5 halves each dimension
	gray := decodePNG(t, filepath.Join(dir, "dem.png"))
	if gray.Bounds().Dx() != 4 || gray.Bounds().Dy() != 4 {
		t.Errorf("Expected 4x4 output after resampling, got %v", gray.Bounds())
	}
}

// TestRunBinaryMode converts in binary mode and checks the two-level output
func TestRunBinaryMode(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "mask.tif")
	writeTIFF(t, input, 4, 4, 1.0, rampSamples(16, 0))

	var out bytes.Buffer
	p := New(&Params{InputFile: input, BinaryMode: true})
	p.stdout = &out
	if err := p.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	gray := decodePNG(t, filepath.Join(dir, "mask.png"))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if v := gray.Gray16At(x, y).Y; v != 0 && v != 65535 {
				t.Errorf("Pixel (%d, %d): expected 0 or 65535 in binary mode, got %d", x, y, v)
			}
		}
	}

	// Binary mode suppresses the step-distance reporting
	if strings.Contains(out.String(), "color step") {
		t.Errorf("Expected no step-distance lines in binary mode, got:\n%s", out.String())
	}
}

// TestRunWithBlur converts with smoothing enabled
func TestRunWithBlur(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "dem.tif")
	writeTIFF(t, input, 8, 8, 1.0, rampSamples(64, 100))

	p := New(&Params{
		InputFile:      input,
		BlurEnabled:    true,
		BlurKernelSize: 3,
		BlurSigma:      1.0,
	})
	p.stdout = &bytes.Buffer{}
	if err := p.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "dem.png")); err != nil {
		t.Errorf("Expected output file to exist: %v", err)
	}
}

// TestRunExplicitOutputPath checks that an explicit output path overrides the
// derived one
func TestRunExplicitOutputPath(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "dem.tif")
	output := filepath.Join(dir, "custom-name.png")
	writeTIFF(t, input, 2, 2, 1.0, []uint16{0, 100, 200, 300})

	p := New(&Params{InputFile: input, OutputFile: output})
	p.stdout = &bytes.Buffer{}
	if err := p.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, err := os.Stat(output); err != nil {
		t.Errorf("Expected explicit output file to exist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "dem.png")); !os.IsNotExist(err) {
		t.Error("Expected no derived-path output when an explicit path is given")
	}
}

// TestRunValidatesEagerly checks that bad parameters fail before any file is
// touched
func TestRunValidatesEagerly(t *testing.T) {
	tests := []struct {
		name   string
		params *Params
	}{
		{"empty input", &Params{}},
		{"negative pixel size", &Params{InputFile: "dem.tif", NewPixelSize: -2}},
		{"even blur kernel", &Params{InputFile: "dem.tif", BlurEnabled: true, BlurKernelSize: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.params)
			p.stdout = &bytes.Buffer{}
			err := p.Run()
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			if !errors.Is(err, transform.ErrInvalidParameter) {
				t.Errorf("Expected ErrInvalidParameter, got %v", err)
			}
		})
	}
}

// TestRunConstantRaster checks that a constant input aborts with the
// degenerate-range error and writes no output
func TestRunConstantRaster(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "flat.tif")
	samples := make([]uint16, 16)
	for i := range samples {
		samples[i] = 777
	}
	writeTIFF(t, input, 4, 4, 1.0, samples)

	p := New(&Params{InputFile: input})
	p.stdout = &bytes.Buffer{}
	err := p.Run()
	if err == nil {
		t.Fatal("Expected error for constant raster, got nil")
	}
	if !errors.Is(err, normalize.ErrDegenerateRange) {
		t.Errorf("Expected ErrDegenerateRange, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "flat.png")); !os.IsNotExist(statErr) {
		t.Error("Expected no output file after a failed run")
	}
}

// TestRunReportsStages checks the stage banners and metadata lines
func TestRunReportsStages(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "dem.tif")
	writeTIFF(t, input, 4, 4, 2.5, rampSamples(16, 50))

	var out bytes.Buffer
	p := New(&Params{InputFile: input})
	p.stdout = &out
	if err := p.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	text := out.String()
	for _, want := range []string{
		"INPUT",
		"File path: " + input,
		"Color depth: 16 bit",
		"Pixel width: 2.5 units",
		"Value range: 50 to 65",
		"Processing...",
		"Done",
		"RESULT",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, text)
		}
	}
}
