// Copyright 2026 The mediameta authors
// SPDX-License-Identifier: MIT

package mediameta

import (
	"encoding/binary"
	"testing"

	qt "github.com/frankban/quicktest"
)

func u16be(v uint16) []byte { return binary.BigEndian.AppendUint16(nil, v) }
func u32be(v uint32) []byte { return binary.BigEndian.AppendUint32(nil, v) }

// makeSegment wraps a payload in a marker segment with its length field.
func makeSegment(marker uint16, payload []byte) []byte {
	var b []byte
	b = binary.BigEndian.AppendUint16(b, marker)
	b = binary.BigEndian.AppendUint16(b, uint16(len(payload)+2))
	return append(b, payload...)
}

func TestLocateJPEGMultipleAPP1(t *testing.T) {
	c := qt.New(t)

	xmp := append([]byte("http://ns.adobe.com/xap/1.0/\x00"), []byte("<x:xmpmeta/>")...)
	tiffBlob := []byte{'I', 'I', 42, 0, 8, 0, 0, 0, 0, 0}
	exifPayload := append(append([]byte{}, exifSignature...), tiffBlob...)

	var img []byte
	img = append(img, 0xff, 0xd8)
	img = append(img, makeSegment(markerAPP1, xmp)...)
	img = append(img, makeSegment(markerAPP0, []byte("JFIF\x00"))...)
	img = append(img, makeSegment(markerAPP1, exifPayload)...)
	img = append(img, 0xff, 0xda, 0x00, 0x02)

	seg, err := locateJPEG(img, LocateOptions{FileSize: int64(len(img))})
	c.Assert(err, qt.IsNil)
	c.Assert(seg.Length, qt.Equals, int64(len(tiffBlob)))
	c.Assert(img[seg.Offset], qt.Equals, byte('I'))
	c.Assert(seg.ByteOrderHint, qt.Equals, binary.ByteOrder(binary.LittleEndian))
}

func TestLocateJPEGStandaloneMarkers(t *testing.T) {
	c := qt.New(t)

	tiffBlob := []byte{'M', 'M', 0, 42, 0, 0, 0, 8, 0, 0}
	exifPayload := append(append([]byte{}, exifSignature...), tiffBlob...)

	var img []byte
	img = append(img, 0xff, 0xd8)
	img = append(img, 0xff, 0x01) // TEM, no length field
	img = append(img, 0xff, 0xff) // fill byte before the next marker
	img = append(img, makeSegment(markerAPP1, exifPayload)...)
	img = append(img, 0xff, 0xd9)

	seg, err := locateJPEG(img, LocateOptions{FileSize: int64(len(img))})
	c.Assert(err, qt.IsNil)
	c.Assert(seg.ByteOrderHint, qt.Equals, binary.ByteOrder(binary.BigEndian))
}

func TestLocateJPEGNoExif(t *testing.T) {
	c := qt.New(t)

	var img []byte
	img = append(img, 0xff, 0xd8)
	img = append(img, makeSegment(markerAPP0, []byte("JFIF\x00"))...)
	img = append(img, 0xff, 0xda, 0x00, 0x02)

	_, err := locateJPEG(img, LocateOptions{FileSize: int64(len(img))})
	c.Assert(err, qt.ErrorIs, ErrSegmentNotFound)
}

func TestLocateJPEGTruncated(t *testing.T) {
	c := qt.New(t)

	var img []byte
	img = append(img, 0xff, 0xd8)
	img = append(img, 0xff, 0xe1, 0xff, 0x00) // declares a payload that is not there

	_, err := locateJPEG(img, LocateOptions{FileSize: 1 << 20})
	c.Assert(err, qt.ErrorIs, errScanTruncated)
}

func TestLocateJPEGNotAJPEG(t *testing.T) {
	c := qt.New(t)

	_, err := locateJPEG([]byte("GIF89a"), LocateOptions{FileSize: 6})
	var ife *InvalidFormatError
	c.Assert(err, qt.ErrorAs, &ife)
}

func TestLocateTIFF(t *testing.T) {
	c := qt.New(t)

	seg, err := locateTIFF([]byte{'I', 'I', 42, 0, 8, 0, 0, 0}, LocateOptions{FileSize: 8})
	c.Assert(err, qt.IsNil)
	c.Assert(seg.Offset, qt.Equals, int64(0))
	c.Assert(seg.Length, qt.Equals, int64(8))
	c.Assert(seg.ByteOrderHint, qt.Equals, binary.ByteOrder(binary.LittleEndian))

	// ORF magic needs the explicit flag.
	orf := []byte{'I', 'I', 'R', 'O', 8, 0, 0, 0}
	_, err = locateTIFF(orf, LocateOptions{FileSize: 8})
	c.Assert(err, qt.ErrorIs, ErrInvalidHeader)
	_, err = locateTIFF(orf, LocateOptions{FileSize: 8, RawTrailer: true})
	c.Assert(err, qt.IsNil)
}

// makeBox wraps payload chunks in a size+type box.
func makeBox(typ string, payload ...[]byte) []byte {
	size := 8
	for _, p := range payload {
		size += len(p)
	}
	b := u32be(uint32(size))
	b = append(b, typ...)
	for _, p := range payload {
		b = append(b, p...)
	}
	return b
}

// makeHEIC assembles a minimal box-structured container whose meta box
// points at an Exif item appended after it.
func makeHEIC(tiffBlob []byte) []byte {
	ftyp := makeBox("ftyp", []byte("heic"), u32be(0))

	infe := makeBox("infe",
		[]byte{2, 0, 0, 0}, // FullBox version 2
		u16be(1),           // item ID
		u16be(0),           // protection index
		[]byte("Exif"),
	)
	iinf := makeBox("iinf", []byte{0, 0, 0, 0}, u16be(1), infe)

	item := append(u32be(uint32(len(exifSignature))), exifSignature...)
	item = append(item, tiffBlob...)

	hdlr := makeBox("hdlr", []byte{0, 0, 0, 0})

	// iloc offsets depend on the total meta size; compute it first.
	ilocSize := 8 + 4 + 2 + 2 + 2 + 2 + 2 + 4 + 4
	metaSize := 8 + 4 + len(hdlr) + len(iinf) + ilocSize
	itemOffset := len(ftyp) + metaSize

	iloc := makeBox("iloc",
		[]byte{0, 0, 0, 0}, // FullBox version 0
		[]byte{0x44, 0x00}, // offset/length size 4, no base offset or index
		u16be(1),           // item count
		u16be(1),           // item ID
		u16be(0),           // data reference index
		u16be(1),           // extent count
		u32be(uint32(itemOffset)),
		u32be(uint32(len(item))),
	)
	meta := makeBox("meta", []byte{0, 0, 0, 0}, hdlr, iinf, iloc)

	var img []byte
	img = append(img, ftyp...)
	img = append(img, meta...)
	img = append(img, item...)
	return img
}

func TestLocateBox(t *testing.T) {
	c := qt.New(t)

	tiffBlob := []byte{'I', 'I', 42, 0, 8, 0, 0, 0, 0, 0}
	img := makeHEIC(tiffBlob)

	seg, err := LocateSegment(img, FormatISOBMFF, LocateOptions{})
	c.Assert(err, qt.IsNil)
	c.Assert(seg.Length, qt.Equals, int64(len(tiffBlob)))
	c.Assert(img[seg.Offset], qt.Equals, byte('I'))
	c.Assert(seg.ByteOrderHint, qt.Equals, binary.ByteOrder(binary.LittleEndian))
}

func TestLocateBoxNoMeta(t *testing.T) {
	c := qt.New(t)

	img := makeBox("ftyp", []byte("heic"), u32be(0))
	img = append(img, makeBox("mdat", []byte{1, 2, 3})...)

	_, err := LocateSegment(img, FormatISOBMFF, LocateOptions{})
	c.Assert(err, qt.ErrorIs, ErrSegmentNotFound)
}

func TestLocateBoxMalformedSize(t *testing.T) {
	c := qt.New(t)

	// A meta box whose declared size runs far past the file must not push
	// the walk outside the buffer.
	img := makeBox("ftyp", []byte("heic"), u32be(0))
	img = append(img, u32be(1<<30)...)
	img = append(img, "meta"...)

	_, err := LocateSegment(img, FormatISOBMFF, LocateOptions{})
	c.Assert(err, qt.ErrorIs, ErrSegmentNotFound)
}

func TestReadBoxLargeSize(t *testing.T) {
	c := qt.New(t)

	payload := []byte("xxxxxxxx")
	var b []byte
	b = append(b, u32be(1)...) // size 1 means 64-bit largesize follows
	b = append(b, "mdat"...)
	b = append(b, binary.BigEndian.AppendUint64(nil, uint64(16+len(payload)))...)
	b = append(b, payload...)

	box, ok := readBox(b, 0, int64(len(b)))
	c.Assert(ok, qt.IsTrue)
	c.Assert(box.payload, qt.Equals, int64(16))
	c.Assert(box.end, qt.Equals, int64(len(b)))
}
