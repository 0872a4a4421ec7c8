// Package geotiff opens single-band GeoTIFF rasters without cgo. It reads
// classic TIFF files in either byte order, stripped or tiled, with None, LZW
// or Deflate compression, and extracts the first band as a float64 sample
// grid together with the physical pixel size declared by the file's
// georeferencing tags.
package geotiff

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"golang.org/x/image/tiff/lzw"

	"tiffnorm/internal/models"
	"tiffnorm/pkg/normalize"
)

// ErrOpen reports a source file that is missing, unreadable, or not a TIFF.
var ErrOpen = errors.New("cannot open GeoTIFF")

// ErrNoBand reports a TIFF file with no raster band the reader can decode.
var ErrNoBand = errors.New("no readable raster band")

// Open reads the raster band of a GeoTIFF file and returns it together with
// the source color-step distance: the observed value span divided by the
// number of steps of the band's native encoding. A constant-valued raster
// yields a step distance of 0.
//
// Pixel size comes from the ModelPixelScale tag, falling back to the scale
// terms of ModelTransformation; shear and rotation terms are ignored. Files
// without georeferencing default to a pixel size of 1. Of multi-band files
// only the first band is read.
func Open(path string) (*models.Raster, float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: reading %s: %v", ErrOpen, path, err)
	}

	dir, err := parseIFD(data)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", ErrOpen, path, err)
	}

	raster, err := readBand(data, dir)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}

	pw, ph := pixelScale(dir)
	raster.PixelWidth = pw
	raster.PixelHeight = ph

	min, max := normalize.Range(raster)
	stepDist := normalize.StepDistance(min, max, raster.ColorDepthBits)
	return raster, stepDist, nil
}

// pixelScale extracts the per-axis physical pixel size. Only the scale terms
// are used; a file with neither georeferencing tag gets a unit pixel size.
func pixelScale(dir *ifd) (float64, float64) {
	if scale := dir.floatTagValues(tagModelPixelScale); len(scale) >= 2 {
		return math.Abs(scale[0]), math.Abs(scale[1])
	}
	if m := dir.floatTagValues(tagModelTransformation); len(m) >= 16 {
		return math.Abs(m[0]), math.Abs(m[5])
	}
	return 1, 1
}

// readBand decodes the first band of the image into a float64 grid.
func readBand(data []byte, dir *ifd) (*models.Raster, error) {
	width := int(dir.uintTag(tagImageWidth, 0))
	height := int(dir.uintTag(tagImageLength, 0))
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: image dimensions %dx%d", ErrNoBand, width, height)
	}

	bits := int(dir.uintTag(tagBitsPerSample, 1))
	switch bits {
	case 8, 16, 32, 64:
	default:
		return nil, fmt.Errorf("%w: unsupported sample width %d bits", ErrNoBand, bits)
	}

	format := uint16(dir.uintTag(tagSampleFormat, sampleFormatUint))
	if format == sampleFormatFloat && bits < 32 {
		return nil, fmt.Errorf("%w: %d-bit floating-point samples", ErrNoBand, bits)
	}

	compression := uint16(dir.uintTag(tagCompression, compressionNone))
	predictor := uint16(dir.uintTag(tagPredictor, 1))
	if predictor > 2 {
		return nil, fmt.Errorf("%w: unsupported predictor %d", ErrNoBand, predictor)
	}
	if predictor == 2 && format == sampleFormatFloat {
		return nil, fmt.Errorf("%w: horizontal-differencing predictor on float samples", ErrNoBand)
	}

	samplesPerPixel := int(dir.uintTag(tagSamplesPerPixel, 1))
	planar := dir.uintTag(tagPlanarConfiguration, 1) == 2

	// With planar configuration the first band's segments are stored
	// contiguously ahead of the other bands, each holding one sample per pixel.
	segSamples := samplesPerPixel
	if planar {
		segSamples = 1
	}

	raster := &models.Raster{
		Data:           make([]float64, width*height),
		Width:          width,
		Height:         height,
		ColorDepthBits: bits,
	}
	bytesPer := bits / 8

	dec := segmentDecoder{
		raster:      raster,
		bits:        bits,
		format:      format,
		bytesPer:    bytesPer,
		segSamples:  segSamples,
		compression: compression,
		predictor:   predictor,
		byteOrder:   dir.byteOrder,
	}

	switch {
	case dir.has(tagTileOffsets):
		return raster, dec.readTiles(data, dir)
	case dir.has(tagStripOffsets):
		return raster, dec.readStrips(data, dir)
	default:
		return nil, fmt.Errorf("%w: image is neither stripped nor tiled", ErrNoBand)
	}
}

// segmentDecoder carries the per-file decoding parameters shared by every
// strip or tile.
type segmentDecoder struct {
	raster      *models.Raster
	bits        int
	format      uint16
	bytesPer    int
	segSamples  int
	compression uint16
	predictor   uint16
	byteOrder   binary.ByteOrder
}

// readStrips decodes the strips covering the first band.
func (d *segmentDecoder) readStrips(data []byte, dir *ifd) error {
	offsets := dir.uintTagValues(tagStripOffsets)
	counts := dir.uintTagValues(tagStripByteCounts)
	if len(offsets) == 0 || len(counts) < len(offsets) {
		return fmt.Errorf("%w: inconsistent strip layout", ErrNoBand)
	}

	rowsPerStrip := int(dir.uintTag(tagRowsPerStrip, uint64(d.raster.Height)))
	if rowsPerStrip <= 0 {
		rowsPerStrip = d.raster.Height
	}
	stripsPerBand := (d.raster.Height + rowsPerStrip - 1) / rowsPerStrip
	if stripsPerBand > len(offsets) {
		return fmt.Errorf("%w: %d strips present, %d required", ErrNoBand, len(offsets), stripsPerBand)
	}

	for s := 0; s < stripsPerBand; s++ {
		y0 := s * rowsPerStrip
		rows := rowsPerStrip
		if y0+rows > d.raster.Height {
			rows = d.raster.Height - y0
		}

		seg, err := d.segment(data, offsets[s], counts[s], d.raster.Width, rows)
		if err != nil {
			return fmt.Errorf("strip %d: %w", s, err)
		}
		d.copySegment(seg, 0, y0, d.raster.Width, rows)
	}
	return nil
}

// readTiles decodes the tiles covering the first band.
func (d *segmentDecoder) readTiles(data []byte, dir *ifd) error {
	offsets := dir.uintTagValues(tagTileOffsets)
	counts := dir.uintTagValues(tagTileByteCounts)
	tileWidth := int(dir.uintTag(tagTileWidth, 0))
	tileHeight := int(dir.uintTag(tagTileLength, 0))
	if len(offsets) == 0 || len(counts) < len(offsets) || tileWidth <= 0 || tileHeight <= 0 {
		return fmt.Errorf("%w: inconsistent tile layout", ErrNoBand)
	}

	tilesAcross := (d.raster.Width + tileWidth - 1) / tileWidth
	tilesDown := (d.raster.Height + tileHeight - 1) / tileHeight
	if tilesAcross*tilesDown > len(offsets) {
		return fmt.Errorf("%w: %d tiles present, %d required", ErrNoBand, len(offsets), tilesAcross*tilesDown)
	}

	for ty := 0; ty < tilesDown; ty++ {
		for tx := 0; tx < tilesAcross; tx++ {
			idx := ty*tilesAcross + tx
			seg, err := d.segment(data, offsets[idx], counts[idx], tileWidth, tileHeight)
			if err != nil {
				return fmt.Errorf("tile %d: %w", idx, err)
			}
			d.copySegment(seg, tx*tileWidth, ty*tileHeight, tileWidth, tileHeight)
		}
	}
	return nil
}

// segment reads, decompresses and un-predicts one strip or tile, returning
// at least segWidth*segHeight pixels worth of sample bytes.
func (d *segmentDecoder) segment(data []byte, offset, count uint64, segWidth, segHeight int) ([]byte, error) {
	if offset+count > uint64(len(data)) {
		return nil, fmt.Errorf("%w: segment at %d (+%d bytes) beyond end of file", ErrNoBand, offset, count)
	}
	raw := data[offset : offset+count]

	expected := segWidth * segHeight * d.segSamples * d.bytesPer
	seg, err := decompress(raw, d.compression, expected)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoBand, err)
	}
	if len(seg) < expected {
		return nil, fmt.Errorf("%w: segment holds %d bytes, need %d", ErrNoBand, len(seg), expected)
	}

	if d.predictor == 2 {
		d.undoHorizontalPredictor(seg, segWidth, segHeight)
	}
	return seg, nil
}

// undoHorizontalPredictor reverses per-row horizontal differencing in place.
func (d *segmentDecoder) undoHorizontalPredictor(seg []byte, segWidth, segHeight int) {
	rowSamples := segWidth * d.segSamples
	for row := 0; row < segHeight; row++ {
		base := row * rowSamples * d.bytesPer
		for i := d.segSamples; i < rowSamples; i++ {
			off := base + i*d.bytesPer
			prev := off - d.segSamples*d.bytesPer
			switch d.bytesPer {
			case 1:
				seg[off] += seg[prev]
			case 2:
				v := d.byteOrder.Uint16(seg[off:off+2]) + d.byteOrder.Uint16(seg[prev:prev+2])
				d.byteOrder.PutUint16(seg[off:off+2], v)
			case 4:
				v := d.byteOrder.Uint32(seg[off:off+4]) + d.byteOrder.Uint32(seg[prev:prev+4])
				d.byteOrder.PutUint32(seg[off:off+4], v)
			}
		}
	}
}

// copySegment writes the first band of a decoded segment into the raster,
// clipping edge segments that extend past the image bounds.
func (d *segmentDecoder) copySegment(seg []byte, x0, y0, segWidth, segHeight int) {
	for sy := 0; sy < segHeight; sy++ {
		dy := y0 + sy
		if dy >= d.raster.Height {
			break
		}
		for sx := 0; sx < segWidth; sx++ {
			dx := x0 + sx
			if dx >= d.raster.Width {
				break
			}
			off := (sy*segWidth + sx) * d.segSamples * d.bytesPer
			if off+d.bytesPer > len(seg) {
				return
			}
			d.raster.Data[dy*d.raster.Width+dx] = d.sampleAt(seg, off)
		}
	}
}

// sampleAt decodes one sample value starting at the given byte offset.
func (d *segmentDecoder) sampleAt(seg []byte, off int) float64 {
	bo := d.byteOrder
	switch d.bits {
	case 8:
		if d.format == sampleFormatInt {
			return float64(int8(seg[off]))
		}
		return float64(seg[off])
	case 16:
		if d.format == sampleFormatInt {
			return float64(int16(bo.Uint16(seg[off : off+2])))
		}
		return float64(bo.Uint16(seg[off : off+2]))
	case 32:
		bits := bo.Uint32(seg[off : off+4])
		switch d.format {
		case sampleFormatFloat:
			return float64(math.Float32frombits(bits))
		case sampleFormatInt:
			return float64(int32(bits))
		default:
			return float64(bits)
		}
	default: // 64
		bits := bo.Uint64(seg[off : off+8])
		switch d.format {
		case sampleFormatFloat:
			return math.Float64frombits(bits)
		case sampleFormatInt:
			return float64(int64(bits))
		default:
			return float64(bits)
		}
	}
}

// decompress expands one strip or tile according to the file's compression
// scheme, trimming any padding past the expected size.
func decompress(raw []byte, compression uint16, expected int) ([]byte, error) {
	switch compression {
	case compressionNone:
		return raw, nil

	case compressionLZW:
		r := lzw.NewReader(bytes.NewReader(raw), lzw.MSB, 8)
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("LZW decompression failed: %v", err)
		}
		if len(out) > expected {
			out = out[:expected]
		}
		return out, nil

	case compressionDeflate, compressionDeflateOld:
		r, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("deflate decompression failed: %v", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("deflate decompression failed: %v", err)
		}
		if len(out) > expected {
			out = out[:expected]
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported compression scheme %d", compression)
	}
}
