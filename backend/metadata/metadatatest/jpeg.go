// Package metadatatest builds small images with hand-assembled EXIF blocks
// for tests.
package metadatatest

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"math"

	"vukamap/backend/geo"
)

const (
	typeASCII    = 2
	typeLong     = 4
	typeRational = 5

	tagMake             = 0x010F
	tagModel            = 0x0110
	tagSoftware         = 0x0131
	tagDateTime         = 0x0132
	tagExifIFD          = 0x8769
	tagGPSIFD           = 0x8825
	tagDateTimeOriginal = 0x9003
	tagGPSLatitudeRef   = 0x0001
	tagGPSLatitude      = 0x0002
	tagGPSLongitudeRef  = 0x0003
	tagGPSLongitude     = 0x0004
)

var le = binary.LittleEndian

// Tags selects what goes into the EXIF block. Zero values are omitted.
type Tags struct {
	GPS              *geo.Coordinate
	DateTimeOriginal string // "2006:01:02 15:04:05"
	DateTime         string
	Make             string
	Model            string
	Software         string
}

type entry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
	sub   []entry
}

// PlainJPEG returns an 8x8 JPEG without any EXIF block.
func PlainJPEG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 30), uint8(y * 30), 90, 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// JPEG returns PlainJPEG with an APP1 EXIF segment built from tags.
func JPEG(tags Tags) []byte {
	return WithAPP1(PlainJPEG(), append([]byte("Exif\x00\x00"), TIFF(tags)...))
}

// WithAPP1 inserts an APP1 segment carrying payload right after SOI.
func WithAPP1(jpg, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Write(jpg[:2])
	buf.Write([]byte{0xFF, 0xE1})
	binary.Write(&buf, binary.BigEndian, uint16(len(payload)+2))
	buf.Write(payload)
	buf.Write(jpg[2:])
	return buf.Bytes()
}

// TIFF returns a little-endian TIFF structure holding tags.
func TIFF(tags Tags) []byte {
	var ifd0, exifIFD, gpsIFD []entry
	if tags.Make != "" {
		ifd0 = append(ifd0, ascii(tagMake, tags.Make))
	}
	if tags.Model != "" {
		ifd0 = append(ifd0, ascii(tagModel, tags.Model))
	}
	if tags.Software != "" {
		ifd0 = append(ifd0, ascii(tagSoftware, tags.Software))
	}
	if tags.DateTime != "" {
		ifd0 = append(ifd0, ascii(tagDateTime, tags.DateTime))
	}
	if tags.DateTimeOriginal != "" {
		exifIFD = append(exifIFD, ascii(tagDateTimeOriginal, tags.DateTimeOriginal))
	}
	if tags.GPS != nil {
		latRef, lngRef := "N", "E"
		if tags.GPS.Latitude < 0 {
			latRef = "S"
		}
		if tags.GPS.Longitude < 0 {
			lngRef = "W"
		}
		gpsIFD = append(gpsIFD,
			ascii(tagGPSLatitudeRef, latRef),
			dms(tagGPSLatitude, math.Abs(tags.GPS.Latitude)),
			ascii(tagGPSLongitudeRef, lngRef),
			dms(tagGPSLongitude, math.Abs(tags.GPS.Longitude)),
		)
	}
	if len(exifIFD) > 0 {
		ifd0 = append(ifd0, entry{tag: tagExifIFD, typ: typeLong, count: 1, sub: exifIFD})
	}
	if len(gpsIFD) > 0 {
		ifd0 = append(ifd0, entry{tag: tagGPSIFD, typ: typeLong, count: 1, sub: gpsIFD})
	}

	var buf bytes.Buffer
	buf.WriteString("II")
	binary.Write(&buf, le, uint16(42))
	binary.Write(&buf, le, uint32(8))
	buf.Write(buildIFD(ifd0, 8))
	return buf.Bytes()
}

// buildIFD lays out entries at offset, followed by their out-of-line values
// and sub-directories.
func buildIFD(entries []entry, offset uint32) []byte {
	extraOff := offset + uint32(2+12*len(entries)+4)
	var table, extra bytes.Buffer
	binary.Write(&table, le, uint16(len(entries)))
	for _, e := range entries {
		data := e.data
		if e.sub != nil {
			ptr := extraOff + uint32(extra.Len())
			extra.Write(buildIFD(e.sub, ptr))
			data = make([]byte, 4)
			le.PutUint32(data, ptr)
		}
		binary.Write(&table, le, e.tag)
		binary.Write(&table, le, e.typ)
		binary.Write(&table, le, e.count)
		if len(data) <= 4 {
			inline := make([]byte, 4)
			copy(inline, data)
			table.Write(inline)
			continue
		}
		binary.Write(&table, le, extraOff+uint32(extra.Len()))
		extra.Write(data)
		if extra.Len()%2 == 1 {
			extra.WriteByte(0)
		}
	}
	binary.Write(&table, le, uint32(0))
	return append(table.Bytes(), extra.Bytes()...)
}

func ascii(tag uint16, s string) entry {
	data := append([]byte(s), 0)
	return entry{tag: tag, typ: typeASCII, count: uint32(len(data)), data: data}
}

// dms encodes decimal degrees as three rationals with 1/10000 second precision.
func dms(tag uint16, deg float64) entry {
	d := math.Floor(deg)
	m := math.Floor((deg - d) * 60)
	s := (deg - d - m/60) * 3600

	data := make([]byte, 24)
	le.PutUint32(data[0:], uint32(d))
	le.PutUint32(data[4:], 1)
	le.PutUint32(data[8:], uint32(m))
	le.PutUint32(data[12:], 1)
	le.PutUint32(data[16:], uint32(math.Round(s*10000)))
	le.PutUint32(data[20:], 10000)
	return entry{tag: tag, typ: typeRational, count: 3, data: data}
}
