package geotiff

import (
	"encoding/binary"
	"fmt"
	"math"
)

// TIFF tags used by the reader.
const (
	tagImageWidth          = 256
	tagImageLength         = 257
	tagBitsPerSample       = 258
	tagCompression         = 259
	tagStripOffsets        = 273
	tagSamplesPerPixel     = 277
	tagRowsPerStrip        = 278
	tagStripByteCounts     = 279
	tagPlanarConfiguration = 284
	tagPredictor           = 317
	tagTileWidth           = 322
	tagTileLength          = 323
	tagTileOffsets         = 324
	tagTileByteCounts      = 325
	tagSampleFormat        = 339
	tagModelPixelScale     = 33550
	tagModelTransformation = 34264
)

// Compression schemes supported by the reader.
const (
	compressionNone       = 1
	compressionLZW        = 5
	compressionDeflate    = 8
	compressionDeflateOld = 32946
)

// Sample formats (tag 339).
const (
	sampleFormatUint  = 1
	sampleFormatInt   = 2
	sampleFormatFloat = 3
)

// entry is a single parsed IFD entry. Values are kept raw; the typed
// accessors below decode them on demand.
type entry struct {
	fieldType uint16
	count     uint32
	raw       []byte
	byteOrder binary.ByteOrder
}

// ifd holds the parsed tag directory of the first TIFF image file directory.
type ifd struct {
	entries   map[uint16]entry
	byteOrder binary.ByteOrder
}

// typeSize returns the byte width of a TIFF field type, or 0 if unknown.
func typeSize(fieldType uint16) int {
	switch fieldType {
	case 1, 2, 6, 7: // BYTE, ASCII, SBYTE, UNDEFINED
		return 1
	case 3, 8: // SHORT, SSHORT
		return 2
	case 4, 9, 11: // LONG, SLONG, FLOAT
		return 4
	case 5, 10, 12: // RATIONAL, SRATIONAL, DOUBLE
		return 8
	default:
		return 0
	}
}

// parseIFD reads the first image file directory of a classic TIFF file held
// fully in memory.
func parseIFD(data []byte) (*ifd, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("file too short for TIFF header (%d bytes)", len(data))
	}

	var bo binary.ByteOrder
	switch {
	case data[0] == 'I' && data[1] == 'I':
		bo = binary.LittleEndian
	case data[0] == 'M' && data[1] == 'M':
		bo = binary.BigEndian
	default:
		return nil, fmt.Errorf("not a TIFF file (bad byte-order mark %q)", data[:2])
	}

	if magic := bo.Uint16(data[2:4]); magic != 42 {
		return nil, fmt.Errorf("not a classic TIFF file (magic %d)", magic)
	}

	offset := bo.Uint32(data[4:8])
	if int(offset)+2 > len(data) {
		return nil, fmt.Errorf("IFD offset %d beyond end of file", offset)
	}

	count := int(bo.Uint16(data[offset : offset+2]))
	dir := &ifd{
		entries:   make(map[uint16]entry, count),
		byteOrder: bo,
	}

	pos := int(offset) + 2
	for i := 0; i < count; i++ {
		if pos+12 > len(data) {
			return nil, fmt.Errorf("truncated IFD entry %d", i)
		}
		tag := bo.Uint16(data[pos : pos+2])
		fieldType := bo.Uint16(data[pos+2 : pos+4])
		valueCount := bo.Uint32(data[pos+4 : pos+8])

		size := typeSize(fieldType) * int(valueCount)
		var raw []byte
		if size > 0 && size <= 4 {
			raw = data[pos+8 : pos+8+size]
		} else if size > 4 {
			valueOffset := int(bo.Uint32(data[pos+8 : pos+12]))
			if valueOffset+size > len(data) {
				return nil, fmt.Errorf("tag %d value at %d beyond end of file", tag, valueOffset)
			}
			raw = data[valueOffset : valueOffset+size]
		}

		dir.entries[tag] = entry{
			fieldType: fieldType,
			count:     valueCount,
			raw:       raw,
			byteOrder: bo,
		}
		pos += 12
	}

	return dir, nil
}

// uintValues decodes an integer-typed entry into a uint64 slice.
func (e entry) uintValues() []uint64 {
	size := typeSize(e.fieldType)
	if size == 0 || e.raw == nil {
		return nil
	}
	out := make([]uint64, 0, e.count)
	for i := 0; i+size <= len(e.raw); i += size {
		switch size {
		case 1:
			out = append(out, uint64(e.raw[i]))
		case 2:
			out = append(out, uint64(e.byteOrder.Uint16(e.raw[i:i+2])))
		case 4:
			out = append(out, uint64(e.byteOrder.Uint32(e.raw[i:i+4])))
		case 8:
			out = append(out, e.byteOrder.Uint64(e.raw[i:i+8]))
		}
	}
	return out
}

// floatValues decodes a FLOAT or DOUBLE entry into a float64 slice.
func (e entry) floatValues() []float64 {
	if e.raw == nil {
		return nil
	}
	out := make([]float64, 0, e.count)
	switch e.fieldType {
	case 11: // FLOAT
		for i := 0; i+4 <= len(e.raw); i += 4 {
			out = append(out, float64(math.Float32frombits(e.byteOrder.Uint32(e.raw[i:i+4]))))
		}
	case 12: // DOUBLE
		for i := 0; i+8 <= len(e.raw); i += 8 {
			out = append(out, math.Float64frombits(e.byteOrder.Uint64(e.raw[i:i+8])))
		}
	}
	return out
}

// uintTag returns the first value of an integer tag, or def when absent.
func (d *ifd) uintTag(tag uint16, def uint64) uint64 {
	e, ok := d.entries[tag]
	if !ok {
		return def
	}
	vals := e.uintValues()
	if len(vals) == 0 {
		return def
	}
	return vals[0]
}

// uintTagValues returns all values of an integer tag, or nil when absent.
func (d *ifd) uintTagValues(tag uint16) []uint64 {
	e, ok := d.entries[tag]
	if !ok {
		return nil
	}
	return e.uintValues()
}

// floatTagValues returns all values of a FLOAT/DOUBLE tag, or nil when absent.
func (d *ifd) floatTagValues(tag uint16) []float64 {
	e, ok := d.entries[tag]
	if !ok {
		return nil
	}
	return e.floatValues()
}

// has reports whether the directory contains the tag.
func (d *ifd) has(tag uint16) bool {
	_, ok := d.entries[tag]
	return ok
}
