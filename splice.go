// Copyright 2026 The mediameta authors
// SPDX-License-Identifier: MIT

package mediameta

import (
	"encoding/binary"
	"errors"
	"math"
)

// Splice merges a newly encoded metadata blob into a copy of the original
// container bytes. The input is never mutated; the returned buffer is fully
// built before the function returns, so a failure partway leaves nothing
// half-written.
//
// For JPEG the blob becomes the payload of an Exif APP1 segment, replacing an
// existing one or inserted at the canonical position. For TIFF-family files
// the file is the directory structure itself, so the blob replaces the whole
// file; partial in-place edits go through SpliceTIFF. Box-structured
// containers are read-only here.
func Splice(orig, encoded []byte) ([]byte, error) {
	switch DetectFormat(orig) {
	case FormatJPEG:
		return SpliceJPEG(orig, encoded)
	case FormatTIFF:
		if _, err := locateTIFF(encoded, LocateOptions{FileSize: int64(len(encoded))}); err != nil {
			return nil, err
		}
		return append([]byte(nil), encoded...), nil
	case FormatISOBMFF:
		// Rewriting iloc extents and shifting mdat is out of scope.
		return nil, ErrUnsupportedFormat
	default:
		return nil, ErrUnsupportedFormat
	}
}

// SpliceJPEG returns a copy of the JPEG stream with tiffBlob wrapped in an
// Exif APP1 segment. An existing Exif APP1 is replaced in place; otherwise
// the segment is inserted right after the start-of-image marker, behind any
// APP0 segments, which must stay first.
func SpliceJPEG(orig, tiffBlob []byte) ([]byte, error) {
	payloadLen := len(exifSignature) + len(tiffBlob)
	if payloadLen > maxJPEGSegmentPayload {
		return nil, ErrSegmentTooLarge
	}

	segment := make([]byte, 0, 4+payloadLen)
	segment = binary.BigEndian.AppendUint16(segment, markerAPP1)
	segment = binary.BigEndian.AppendUint16(segment, uint16(payloadLen+2))
	segment = append(segment, exifSignature...)
	segment = append(segment, tiffBlob...)

	seg, err := locateJPEG(orig, LocateOptions{FileSize: int64(len(orig))})
	var cutStart, cutEnd int64
	switch {
	case err == nil:
		cutStart = seg.Offset - int64(exifSegmentOverhead)
		cutEnd = seg.Offset + seg.Length
	case errors.Is(err, ErrSegmentNotFound):
		cutStart = jpegInsertOffset(orig)
		cutEnd = cutStart
	case errors.Is(err, errScanTruncated):
		return nil, newInvalidFormatErrorf("truncated marker stream")
	default:
		return nil, err
	}

	out := make([]byte, 0, int64(len(orig))-(cutEnd-cutStart)+int64(len(segment)))
	out = append(out, orig[:cutStart]...)
	out = append(out, segment...)
	out = append(out, orig[cutEnd:]...)
	return out, nil
}

// jpegInsertOffset is the position right after SOI and any APP0 segments.
func jpegInsertOffset(buf []byte) int64 {
	pos := int64(2)
	for pos+4 <= int64(len(buf)) &&
		binary.BigEndian.Uint16(buf[pos:]) == markerAPP0 {
		pos += 2 + int64(binary.BigEndian.Uint16(buf[pos+2:]))
	}
	return pos
}

// SpliceTIFF replaces the byte range [start, start+length) of a TIFF-family
// file with replacement and returns the new buffer. When the replacement
// changes the length, every stored offset pointing past the removed range is
// rewritten by the size delta: the header's first-directory offset, each
// directory's next pointer, value-overflow offsets, sub-directory pointers
// and the data-offset tags (strips, tiles, thumbnail). Offsets are walked
// with the same cycle guard as the decoder.
func SpliceTIFF(orig []byte, start, length int64, replacement []byte) ([]byte, error) {
	if start < 0 || length < 0 || start+length > int64(len(orig)) {
		return nil, newInvalidFormatErrorf("splice range [%d,%d) exceeds buffer size %d",
			start, start+length, len(orig))
	}
	if len(orig) < tiffHeaderSize {
		return nil, newInvalidFormatError(ErrInvalidHeader)
	}
	order := byteOrderFromMark(uint16(orig[0])<<8 | uint16(orig[1]))
	if order == nil || order.Uint16(orig[2:4]) != tiffMagic {
		return nil, newInvalidFormatError(ErrInvalidHeader)
	}

	out := make([]byte, 0, int64(len(orig))-length+int64(len(replacement)))
	out = append(out, orig[:start]...)
	out = append(out, replacement...)
	out = append(out, orig[start+length:]...)

	delta := int64(len(replacement)) - length
	if delta == 0 {
		return out, nil
	}

	r := &tiffRebaser{
		orig:    orig,
		out:     out,
		order:   order,
		start:   start,
		cut:     start + length,
		delta:   delta,
		visited: map[uint32]bool{},
	}
	if err := r.rebaseAt(4); err != nil {
		return nil, err
	}
	if err := r.walkIFD(order.Uint32(orig[4:8])); err != nil {
		return nil, err
	}
	return out, nil
}

// tiffRebaser walks the original buffer, whose offsets are still internally
// consistent, and patches the corresponding positions of the already-spliced
// output buffer.
type tiffRebaser struct {
	orig    []byte
	out     []byte
	order   binary.ByteOrder
	start   int64 // first removed byte
	cut     int64 // first byte past the removed range, original coordinates
	delta   int64
	visited map[uint32]bool
}

// outPos maps a position in the original buffer to the output buffer.
// Positions inside the removed range have no image.
func (r *tiffRebaser) outPos(p int64) (int64, bool) {
	switch {
	case p < r.start:
		return p, true
	case p < r.cut:
		return 0, false
	default:
		return p + r.delta, true
	}
}

// rebaseAt reads the 4-byte offset stored at p and, when it points past the
// removed range, rewrites it in the output shifted by the delta. Offsets
// into the removed range are left for the replacement bytes to supersede.
func (r *tiffRebaser) rebaseAt(p int64) error {
	if p+4 > int64(len(r.orig)) {
		return nil
	}
	v := int64(r.order.Uint32(r.orig[p:]))
	if v < r.cut {
		return nil
	}
	op, ok := r.outPos(p)
	if !ok {
		return nil
	}
	nv := v + r.delta
	if nv < 0 || nv > math.MaxUint32 {
		return newInvalidFormatErrorf("rebased offset %d out of range", nv)
	}
	r.order.PutUint32(r.out[op:], uint32(nv))
	return nil
}

func (r *tiffRebaser) walkIFD(offset uint32) error {
	if offset == 0 {
		return nil
	}
	if r.visited[offset] {
		return ErrCircularIFD
	}
	r.visited[offset] = true

	pos := int64(offset)
	if pos+2 > int64(len(r.orig)) {
		return nil
	}
	count := int64(r.order.Uint16(r.orig[pos:]))
	pos += 2

	for i := int64(0); i < count; i++ {
		entry := pos + i*tableEntrySize
		if entry+tableEntrySize > int64(len(r.orig)) {
			return nil
		}
		if err := r.rebaseEntry(entry); err != nil {
			return err
		}
	}

	next := pos + count*tableEntrySize
	if next+4 > int64(len(r.orig)) {
		return nil
	}
	if err := r.rebaseAt(next); err != nil {
		return err
	}
	return r.walkIFD(r.order.Uint32(r.orig[next:]))
}

func (r *tiffRebaser) rebaseEntry(entry int64) error {
	var (
		id    = r.order.Uint16(r.orig[entry:])
		typ   = Type(r.order.Uint16(r.orig[entry+2:]))
		count = int64(r.order.Uint32(r.orig[entry+4:]))
		size  = int64(typ.Size()) * count
	)
	if size <= 0 {
		return nil
	}

	// Position of the value bytes, original coordinates.
	dataPos := entry + 8
	if size > 4 {
		dataPos = int64(r.order.Uint32(r.orig[entry+8:]))
		if err := r.rebaseAt(entry + 8); err != nil {
			return err
		}
		if dataPos+size > int64(len(r.orig)) {
			// Corrupt overflow offset; nothing past the pointer to patch.
			return nil
		}
	}

	rebaseElems := false
	switch id {
	case tagExifIFDPointer, tagGPSIFDPointer, tagInteropIFDPointer, tagSubIFDs:
		if typ != TypeUnsignedLong {
			return nil
		}
		for j := int64(0); j < count; j++ {
			sub := r.order.Uint32(r.orig[dataPos+4*j:])
			if err := r.rebaseAt(dataPos + 4*j); err != nil {
				return err
			}
			if err := r.walkIFD(sub); err != nil {
				return err
			}
		}
	case tagStripOffsets, tagTileOffsets, tagThumbnailOffset:
		rebaseElems = typ == TypeUnsignedLong
	}

	if rebaseElems {
		for j := int64(0); j < count; j++ {
			if err := r.rebaseAt(dataPos + 4*j); err != nil {
				return err
			}
		}
	}
	return nil
}
