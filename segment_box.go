// Copyright 2026 The mediameta authors
// SPDX-License-Identifier: MIT

package mediameta

import (
	"encoding/binary"
)

// ISOBMFF box and item types used to reach the Exif item.
var (
	fccFtyp = fourCC{'f', 't', 'y', 'p'}
	fccMeta = fourCC{'m', 'e', 't', 'a'}
	fccIinf = fourCC{'i', 'i', 'n', 'f'}
	fccInfe = fourCC{'i', 'n', 'f', 'e'}
	fccIloc = fourCC{'i', 'l', 'o', 'c'}
	fccExif = fourCC{'E', 'x', 'i', 'f'}
)

// box is a size+type chunk at an absolute position within the file.
type box struct {
	start   int64 // position of the size field
	payload int64 // position of the first payload byte
	end     int64 // position one past the last payload byte
	typ     fourCC
}

// readBox parses the box header at pos. Declared sizes are clamped against
// limit so an adversarial or malformed size can never push the walk outside
// the file.
func readBox(buf []byte, pos, limit int64) (box, bool) {
	if pos+8 > int64(len(buf)) || pos+8 > limit {
		return box{}, false
	}
	b := box{start: pos, payload: pos + 8}
	size := int64(binary.BigEndian.Uint32(buf[pos:]))
	copy(b.typ[:], buf[pos+4:pos+8])
	switch size {
	case 0:
		// Box extends to the end of the enclosing bound.
		b.end = limit
	case 1:
		if pos+16 > int64(len(buf)) {
			return box{}, false
		}
		large := binary.BigEndian.Uint64(buf[pos+8:])
		if large < 16 || large > uint64(limit-pos) {
			return box{}, false
		}
		b.payload = pos + 16
		b.end = pos + int64(large)
	default:
		if size < 8 || size > limit-pos {
			return box{}, false
		}
		b.end = pos + size
	}
	return b, true
}

// locateBox walks the box structure of an ISOBMFF container: top-level scan
// for meta, then iinf/infe to find the Exif item ID and iloc to resolve its
// file offset. Box ordering inside meta does not matter; iloc entries are
// collected and resolved after the full scan.
func locateBox(buf []byte, opts LocateOptions) (Segment, error) {
	bufEnd := int64(len(buf))

	ftyp, ok := readBox(buf, 0, bufEnd)
	if !ok || ftyp.typ != fccFtyp {
		return Segment{}, newInvalidFormatErrorf("missing ftyp box")
	}

	var meta box
	foundMeta := false
	for pos := ftyp.end; ; {
		b, ok := readBox(buf, pos, bufEnd)
		if !ok {
			break
		}
		if b.typ == fccMeta {
			meta = b
			foundMeta = true
			break
		}
		if b.end <= pos {
			break
		}
		pos = b.end
	}
	if !foundMeta {
		return Segment{}, ErrSegmentNotFound
	}

	var exifItemID uint32
	type ilocEntry struct {
		offset, length uint64
	}
	ilocEntries := make(map[uint32]ilocEntry)

	// meta is a FullBox: 4 bytes version+flags before the child boxes.
	for pos := meta.payload + 4; pos+8 <= meta.end; {
		b, ok := readBox(buf, pos, meta.end)
		if !ok || b.end <= pos {
			break
		}
		switch b.typ {
		case fccIinf:
			parseIinf(buf, b, &exifItemID)
		case fccIloc:
			parseIloc(buf, b, func(itemID uint32, offset, length uint64) {
				ilocEntries[itemID] = ilocEntry{offset: offset, length: length}
			})
		}
		pos = b.end
	}

	if exifItemID == 0 {
		return Segment{}, ErrSegmentNotFound
	}
	loc, ok := ilocEntries[exifItemID]
	if !ok || loc.length <= 4 {
		return Segment{}, ErrSegmentNotFound
	}
	if loc.offset+loc.length > uint64(opts.FileSize) {
		return Segment{}, newInvalidFormatErrorf("exif item [%d,%d) exceeds file size %d",
			loc.offset, loc.offset+loc.length, opts.FileSize)
	}

	seg := Segment{Offset: int64(loc.offset), Length: int64(loc.length)}

	// The Exif item starts with a 4-byte big-endian offset to the TIFF
	// header. Resolve it when the bytes are at hand; otherwise the I/O
	// layer resolves it after the follow-up read.
	if seg.Offset+4 <= bufEnd {
		hdrOffset := int64(binary.BigEndian.Uint32(buf[seg.Offset:]))
		if hdrOffset > seg.Length-4 {
			return Segment{}, newInvalidFormatErrorf("invalid exif item header offset %d", hdrOffset)
		}
		seg.Offset += 4 + hdrOffset
		seg.Length -= 4 + hdrOffset
		if seg.Offset+2 <= bufEnd {
			seg.ByteOrderHint = byteOrderFromMark(binary.BigEndian.Uint16(buf[seg.Offset:]))
		}
	} else {
		seg.rawExifItem = true
	}

	return seg, nil
}

// parseIinf scans item info entries for the one with item type "Exif".
func parseIinf(buf []byte, iinf box, exifItemID *uint32) {
	pos := iinf.payload
	if pos+4 > iinf.end {
		return
	}
	vf := binary.BigEndian.Uint32(buf[pos:])
	pos += 4
	var count uint32
	if vf>>24 == 0 {
		if pos+2 > iinf.end {
			return
		}
		count = uint32(binary.BigEndian.Uint16(buf[pos:]))
		pos += 2
	} else {
		if pos+4 > iinf.end {
			return
		}
		count = binary.BigEndian.Uint32(buf[pos:])
		pos += 4
	}

	for i := uint32(0); i < count; i++ {
		infe, ok := readBox(buf, pos, iinf.end)
		if !ok || infe.end <= pos {
			return
		}
		if infe.typ == fccInfe && infe.payload+4 <= infe.end {
			p := infe.payload
			version := buf[p] // FullBox version
			p += 4
			if version >= 2 {
				var itemID uint32
				if version == 2 {
					if p+2 > infe.end {
						return
					}
					itemID = uint32(binary.BigEndian.Uint16(buf[p:]))
					p += 2
				} else {
					if p+4 > infe.end {
						return
					}
					itemID = binary.BigEndian.Uint32(buf[p:])
					p += 4
				}
				p += 2 // protectionIndex
				if p+4 <= infe.end {
					var itemType fourCC
					copy(itemType[:], buf[p:])
					if itemType == fccExif {
						*exifItemID = itemID
					}
				}
			}
		}
		pos = infe.end
	}
}

// parseIloc reports the first extent of every file-offset item (construction
// method 0) to emit.
func parseIloc(buf []byte, iloc box, emit func(itemID uint32, offset, length uint64)) {
	pos := iloc.payload
	readVar := func(n int) (uint64, bool) {
		if n == 0 {
			return 0, true
		}
		if pos+int64(n) > iloc.end {
			return 0, false
		}
		var v uint64
		switch n {
		case 2:
			v = uint64(binary.BigEndian.Uint16(buf[pos:]))
		case 4:
			v = uint64(binary.BigEndian.Uint32(buf[pos:]))
		case 8:
			v = binary.BigEndian.Uint64(buf[pos:])
		default:
			return 0, false
		}
		pos += int64(n)
		return v, true
	}

	if pos+8 > iloc.end {
		return
	}
	version := buf[pos] // FullBox version
	pos += 4
	b1 := buf[pos]
	offsetSize := int(b1 >> 4)
	lengthSize := int(b1 & 0x0f)
	pos++
	b2 := buf[pos]
	baseOffsetSize := int(b2 >> 4)
	indexSize := int(b2 & 0x0f)
	pos++

	var count uint32
	if version < 2 {
		count = uint32(binary.BigEndian.Uint16(buf[pos:]))
		pos += 2
	} else {
		if pos+4 > iloc.end {
			return
		}
		count = binary.BigEndian.Uint32(buf[pos:])
		pos += 4
	}

	for i := uint32(0); i < count; i++ {
		var itemID uint32
		if version < 2 {
			v, ok := readVar(2)
			if !ok {
				return
			}
			itemID = uint32(v)
		} else {
			v, ok := readVar(4)
			if !ok {
				return
			}
			itemID = uint32(v)
		}

		var constructionMethod uint64
		if version >= 1 {
			var ok bool
			if constructionMethod, ok = readVar(2); !ok {
				return
			}
		}
		if _, ok := readVar(2); !ok { // dataReferenceIndex
			return
		}
		baseOffset, ok := readVar(baseOffsetSize)
		if !ok {
			return
		}
		extentCount, ok := readVar(2)
		if !ok {
			return
		}

		var firstOffset, firstLength uint64
		for j := uint64(0); j < extentCount; j++ {
			if version >= 1 && indexSize > 0 {
				if _, ok := readVar(indexSize); !ok {
					return
				}
			}
			off, ok := readVar(offsetSize)
			if !ok {
				return
			}
			length, ok := readVar(lengthSize)
			if !ok {
				return
			}
			if j == 0 {
				firstOffset = baseOffset + off
				firstLength = length
			}
		}

		if constructionMethod == 0 {
			emit(itemID, firstOffset, firstLength)
		}
	}
}
