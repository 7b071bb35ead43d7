// Package exifx rewrites the EXIF block of a JPEG stream so that its capture
// timestamps read as the upload time. Compressed scan data is never touched.
package exifx

import (
	"encoding/binary"
	"errors"
	"time"
)

// ErrNotJPEG is returned when the input lacks the SOI signature.
var ErrNotJPEG = errors.New("exifx: missing JPEG start-of-image marker")

const (
	markerPrefix = 0xFF
	markerSOI    = 0xD8
	markerEOI    = 0xD9
	markerSOS    = 0xDA
	markerAPP1   = 0xE1
	markerTEM    = 0x01
	markerRST0   = 0xD0
	markerRST7   = 0xD7
)

// TIFF tags and types.
const (
	tagDateTime          = 0x0132
	tagExifIFDPointer    = 0x8769
	tagDateTimeOriginal  = 0x9003
	tagDateTimeDigitized = 0x9004

	typeASCII = 2
	typeLong  = 4
)

// DateTimeLayout is the EXIF timestamp layout; stored values carry a
// trailing NUL.
const DateTimeLayout = "2006:01:02 15:04:05"

// Block geometry. Offsets are relative to the TIFF header.
const (
	exifHeader   = "Exif\x00\x00"
	tiffHeaderSz = 8
	ifdEntrySz   = 12
	ifdCountSz   = 2
	ifdNextSz    = 4
	dateValueSz  = len(DateTimeLayout) + 1

	ifd0Offset    = tiffHeaderSz
	ifd0Entries   = 1
	exifIFDOffset = ifd0Offset + ifdCountSz + ifd0Entries*ifdEntrySz + ifdNextSz

	exifEntries   = 3
	valuesOffset  = exifIFDOffset + ifdCountSz + exifEntries*ifdEntrySz + ifdNextSz
	tiffSize      = valuesOffset + exifEntries*dateValueSz
	app1PayloadSz = len(exifHeader) + tiffSize
)

// Rewrite returns a copy of data whose APP1 block is replaced with a fresh
// EXIF block stamped with now (local wall-clock). Any existing APP1 segment
// is dropped. Everything from SOS (or EOI) onward is copied verbatim, as is
// the remainder of a stream whose segment lengths run past its end.
func Rewrite(data []byte, now time.Time) ([]byte, error) {
	if len(data) < 2 || data[0] != markerPrefix || data[1] != markerSOI {
		return nil, ErrNotJPEG
	}

	app1 := BuildAPP1(now)
	out := make([]byte, 0, len(data)+len(app1))
	out = append(out, markerPrefix, markerSOI)
	out = append(out, app1...)

	pos := 2
	for pos < len(data) {
		if pos+2 > len(data) || data[pos] != markerPrefix {
			break
		}
		marker := data[pos+1]

		if marker == markerPrefix {
			// fill byte
			out = append(out, markerPrefix)
			pos++
			continue
		}
		if (marker >= markerRST0 && marker <= markerRST7) || marker == markerTEM {
			out = append(out, data[pos:pos+2]...)
			pos += 2
			continue
		}
		if marker == markerSOS || marker == markerEOI {
			break
		}

		if pos+4 > len(data) {
			break
		}
		length := int(binary.BigEndian.Uint16(data[pos+2 : pos+4]))
		end := pos + 2 + length
		if length < 2 || end > len(data) {
			break
		}
		if marker != markerAPP1 {
			out = append(out, data[pos:end]...)
		}
		pos = end
	}

	return append(out, data[pos:]...), nil
}

// BuildAPP1 encodes a complete APP1 segment, marker included, carrying a
// big-endian TIFF structure: IFD0 with a single ExifIFD pointer, and an Exif
// IFD with DateTime, DateTimeOriginal and DateTimeDigitized each pointing at
// its own copy of the timestamp.
func BuildAPP1(now time.Time) []byte {
	stamp := append([]byte(now.Format(DateTimeLayout)), 0)

	seg := make([]byte, 4+app1PayloadSz)
	seg[0] = markerPrefix
	seg[1] = markerAPP1
	binary.BigEndian.PutUint16(seg[2:4], uint16(2+app1PayloadSz))
	copy(seg[4:], exifHeader)

	tiff := seg[4+len(exifHeader):]
	be := binary.BigEndian
	copy(tiff[0:2], "MM")
	be.PutUint16(tiff[2:4], 0x002A)
	be.PutUint32(tiff[4:8], ifd0Offset)

	be.PutUint16(tiff[ifd0Offset:], ifd0Entries)
	putEntry(tiff[ifd0Offset+ifdCountSz:], tagExifIFDPointer, typeLong, 1, exifIFDOffset)
	be.PutUint32(tiff[ifd0Offset+ifdCountSz+ifd0Entries*ifdEntrySz:], 0)

	tags := [exifEntries]uint16{tagDateTime, tagDateTimeOriginal, tagDateTimeDigitized}
	be.PutUint16(tiff[exifIFDOffset:], exifEntries)
	for i, tag := range tags {
		valueAt := valuesOffset + i*dateValueSz
		putEntry(tiff[exifIFDOffset+ifdCountSz+i*ifdEntrySz:], tag, typeASCII, uint32(dateValueSz), uint32(valueAt))
		copy(tiff[valueAt:valueAt+dateValueSz], stamp)
	}
	be.PutUint32(tiff[exifIFDOffset+ifdCountSz+exifEntries*ifdEntrySz:], 0)

	return seg
}

func putEntry(b []byte, tag, typ uint16, count, value uint32) {
	binary.BigEndian.PutUint16(b[0:2], tag)
	binary.BigEndian.PutUint16(b[2:4], typ)
	binary.BigEndian.PutUint32(b[4:8], count)
	binary.BigEndian.PutUint32(b[8:12], value)
}
