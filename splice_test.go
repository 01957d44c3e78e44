// Copyright 2026 The mediameta authors
// SPDX-License-Identifier: MIT

package mediameta_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/gomedia/mediameta"

	qt "github.com/frankban/quicktest"
	"github.com/garyhouston/jpegsegs"
)

func TestSpliceJPEGInsert(t *testing.T) {
	c := qt.New(t)

	orig := newBaseJPEG()
	out, err := mediameta.SpliceJPEG(orig, newTestExifBlob(c))
	c.Assert(err, qt.IsNil)

	// Verified against an independent segment scanner: APP0 must stay
	// first, the new APP1 right behind it.
	scanner, err := jpegsegs.NewScanner(bytes.NewReader(out))
	c.Assert(err, qt.IsNil)
	segments, err := jpegsegs.ReadSegments(scanner)
	c.Assert(err, qt.IsNil)
	c.Assert(segments[0].Marker, qt.Equals, jpegsegs.Marker(jpegsegs.APP0))
	c.Assert(segments[1].Marker, qt.Equals, jpegsegs.Marker(jpegsegs.APP0+1))
	c.Assert(bytes.HasPrefix(segments[1].Data, []byte("Exif\x00\x00")), qt.IsTrue)

	meta, err := mediameta.DecodeBytes(out, mediameta.Options{})
	c.Assert(err, qt.IsNil)
	c.Assert(meta.Tags["IFD0/Make"].Value, qt.Equals, "Canon")
}

func TestSpliceJPEGReplace(t *testing.T) {
	c := qt.New(t)

	img := newTestJPEG(c)

	updated := newTestIFD()
	updated.SetField(mediameta.NewASCIIField(0x0110, "EOS R5"))
	blob, err := mediameta.EncodeIFDTree(updated, le)
	c.Assert(err, qt.IsNil)

	out, err := mediameta.SpliceJPEG(img, blob)
	c.Assert(err, qt.IsNil)

	// Still exactly one Exif APP1.
	scanner, err := jpegsegs.NewScanner(bytes.NewReader(out))
	c.Assert(err, qt.IsNil)
	segments, err := jpegsegs.ReadSegments(scanner)
	c.Assert(err, qt.IsNil)
	n := 0
	for _, seg := range segments {
		if seg.Marker == jpegsegs.APP0+1 && bytes.HasPrefix(seg.Data, []byte("Exif\x00\x00")) {
			n++
		}
	}
	c.Assert(n, qt.Equals, 1)

	meta, err := mediameta.DecodeBytes(out, mediameta.Options{})
	c.Assert(err, qt.IsNil)
	c.Assert(meta.Tags["IFD0/Model"].Value, qt.Equals, "EOS R5")
}

// A minimal container with Make and Model must survive the full write cycle.
func TestSpliceRoundTrip(t *testing.T) {
	c := qt.New(t)

	ifd := &mediameta.IFD{}
	ifd.SetField(mediameta.NewASCIIField(0x010f, "Canon"))
	ifd.SetField(mediameta.NewASCIIField(0x0110, "EOS 70D"))
	blob, err := mediameta.EncodeIFDTree(ifd, le)
	c.Assert(err, qt.IsNil)

	out, err := mediameta.Splice(newBaseJPEG(), blob)
	c.Assert(err, qt.IsNil)

	meta, err := mediameta.DecodeBytes(out, mediameta.Options{})
	c.Assert(err, qt.IsNil)
	c.Assert(meta.Tags["IFD0/Make"].Value, qt.Equals, "Canon")
	c.Assert(meta.Tags["IFD0/Model"].Value, qt.Equals, "EOS 70D")
}

func TestSpliceJPEGTooLarge(t *testing.T) {
	c := qt.New(t)

	_, err := mediameta.SpliceJPEG(newBaseJPEG(), make([]byte, 0x10000))
	c.Assert(err, qt.ErrorIs, mediameta.ErrSegmentTooLarge)
}

func TestSpliceLeavesOriginalUntouched(t *testing.T) {
	c := qt.New(t)

	orig := newTestJPEG(c)
	snapshot := append([]byte(nil), orig...)

	_, err := mediameta.SpliceJPEG(orig, newTestExifBlob(c))
	c.Assert(err, qt.IsNil)
	c.Assert(orig, qt.DeepEquals, snapshot)
}

func TestSpliceISOBMFFUnsupported(t *testing.T) {
	c := qt.New(t)

	heic := []byte{0, 0, 0, 16, 'f', 't', 'y', 'p', 'h', 'e', 'i', 'c', 0, 0, 0, 0}
	_, err := mediameta.Splice(heic, []byte{'I', 'I', 42, 0, 8, 0, 0, 0})
	c.Assert(err, qt.ErrorIs, mediameta.ErrUnsupportedFormat)
}

// newRebaseTIFF is a little-endian TIFF with an out-of-line rational at
// offset 38 and image data at offset 46, both referenced from the directory.
func newRebaseTIFF() []byte {
	b := []byte{'I', 'I', 42, 0}
	b = binary.LittleEndian.AppendUint32(b, 8) // IFD0

	b = binary.LittleEndian.AppendUint16(b, 2) // entry count

	// StripOffsets, LONG, pointing at the image data.
	b = binary.LittleEndian.AppendUint16(b, 0x0111)
	b = binary.LittleEndian.AppendUint16(b, 4)
	b = binary.LittleEndian.AppendUint32(b, 1)
	b = binary.LittleEndian.AppendUint32(b, 46)

	// XResolution, RATIONAL, out-of-line at offset 38.
	b = binary.LittleEndian.AppendUint16(b, 0x011a)
	b = binary.LittleEndian.AppendUint16(b, 5)
	b = binary.LittleEndian.AppendUint32(b, 1)
	b = binary.LittleEndian.AppendUint32(b, 38)

	b = binary.LittleEndian.AppendUint32(b, 0) // next IFD

	b = binary.LittleEndian.AppendUint32(b, 72) // rational 72/1
	b = binary.LittleEndian.AppendUint32(b, 1)

	b = append(b, 'I', 'M', 'G', '!')
	return b
}

func TestSpliceTIFFRebase(t *testing.T) {
	c := qt.New(t)

	orig := newRebaseTIFF()
	snapshot := append([]byte(nil), orig...)

	// Grow the file by four bytes right before the rational value block.
	out, err := mediameta.SpliceTIFF(orig, 38, 0, []byte{0xaa, 0xbb, 0xcc, 0xdd})
	c.Assert(err, qt.IsNil)
	c.Assert(orig, qt.DeepEquals, snapshot)
	c.Assert(len(out), qt.Equals, len(orig)+4)

	root, order, diags, err := mediameta.DecodeIFDTree(out)
	c.Assert(err, qt.IsNil)
	c.Assert(diags, qt.HasLen, 0)

	num, den := root.Field(0x011a).Rational(0, order)
	c.Assert(num, qt.Equals, uint32(72))
	c.Assert(den, qt.Equals, uint32(1))

	strip := root.Field(0x0111).Long(0, order)
	c.Assert(strip, qt.Equals, uint32(50))
	c.Assert(string(out[strip:strip+4]), qt.Equals, "IMG!")
}

func TestSpliceTIFFRebaseAtHeader(t *testing.T) {
	c := qt.New(t)

	orig := newRebaseTIFF()

	// Insert right after the header: everything shifts, including the
	// first-directory offset itself.
	out, err := mediameta.SpliceTIFF(orig, 8, 0, []byte{0, 0})
	c.Assert(err, qt.IsNil)

	c.Assert(binary.LittleEndian.Uint32(out[4:8]), qt.Equals, uint32(10))

	root, order, _, err := mediameta.DecodeIFDTree(out)
	c.Assert(err, qt.IsNil)
	num, _ := root.Field(0x011a).Rational(0, order)
	c.Assert(num, qt.Equals, uint32(72))
	c.Assert(string(out[len(out)-4:]), qt.Equals, "IMG!")
}

func TestSpliceTIFFSameSize(t *testing.T) {
	c := qt.New(t)

	orig := newRebaseTIFF()
	out, err := mediameta.SpliceTIFF(orig, 38, 4, []byte{1, 0, 0, 0})
	c.Assert(err, qt.IsNil)
	c.Assert(len(out), qt.Equals, len(orig))

	root, order, _, err := mediameta.DecodeIFDTree(out)
	c.Assert(err, qt.IsNil)
	num, _ := root.Field(0x011a).Rational(0, order)
	c.Assert(num, qt.Equals, uint32(1))
}

func TestSpliceTIFFCircularChain(t *testing.T) {
	c := qt.New(t)

	// Next-offset pointing back at the directory itself must trip the
	// cycle guard, not loop.
	b := []byte{'I', 'I', 42, 0}
	b = binary.LittleEndian.AppendUint32(b, 8)
	b = binary.LittleEndian.AppendUint16(b, 0)
	b = binary.LittleEndian.AppendUint32(b, 8)

	_, err := mediameta.SpliceTIFF(b, 14, 0, []byte{0, 0})
	c.Assert(err, qt.ErrorIs, mediameta.ErrCircularIFD)
}
