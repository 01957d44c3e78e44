// Copyright 2026 The mediameta authors
// SPDX-License-Identifier: MIT

package mediameta

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
)

// MakerNoteContext hands a sub-decoder everything it needs to resolve the
// vendor's offset convention: the whole TIFF arena (Canon offsets are
// relative to it), the maker-note bytes, and the field's position within the
// arena.
type MakerNoteContext struct {
	Arena  []byte
	Data   []byte
	Offset uint32 // position of Data within Arena; 0 when the value was inline
	Order  binary.ByteOrder
}

// MakerNoteFunc decodes a manufacturer's opaque maker-note blob. Decoded
// tags are delivered through add as they are produced, so a decoder that
// fails partway has already returned whatever it managed to decode.
type MakerNoteFunc func(ctx MakerNoteContext, add func(tag string, value any)) error

var makerNoteRegistry = struct {
	sync.RWMutex
	m map[string]MakerNoteFunc
}{m: map[string]MakerNoteFunc{
	"canon": decodeCanonMakerNote,
	"nikon": decodeNikonMakerNote,
	"apple": decodeAppleMakerNote,
}}

// RegisterMakerNoteDecoder installs a sub-decoder for the given manufacturer
// (as found in the Make tag; matching is case-insensitive on the first word).
// Passing nil removes an existing decoder.
func RegisterMakerNoteDecoder(manufacturer string, fn MakerNoteFunc) {
	key := normalizeMake(manufacturer)
	makerNoteRegistry.Lock()
	defer makerNoteRegistry.Unlock()
	if fn == nil {
		delete(makerNoteRegistry.m, key)
		return
	}
	makerNoteRegistry.m[key] = fn
}

func lookupMakerNoteDecoder(manufacturer string) (MakerNoteFunc, string) {
	key := normalizeMake(manufacturer)
	makerNoteRegistry.RLock()
	defer makerNoteRegistry.RUnlock()
	return makerNoteRegistry.m[key], key
}

// normalizeMake reduces a Make tag value to a registry key: "NIKON
// CORPORATION" and "Nikon" both map to "nikon".
func normalizeMake(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexByte(s, ' '); i > 0 {
		s = s[:i]
	}
	return s
}

// vendorNamespace returns the display namespace for a registry key.
func vendorNamespace(key string) string {
	if key == "" {
		return "MakerNotes"
	}
	return "MakerNotes/" + strings.ToUpper(key[:1]) + key[1:]
}

// decodeBareIFD scans a directory table whose value offsets are indexes into
// base. Bad entries are skipped; the scan keeps whatever it decoded so far.
func decodeBareIFD(base []byte, offset uint32, order binary.ByteOrder, names map[uint16]string, add func(tag string, value any)) error {
	if int64(offset)+2 > int64(len(base)) {
		return fmt.Errorf("maker note directory at %d outside buffer", offset)
	}
	count := order.Uint16(base[offset:])
	if int64(offset)+2+12*int64(count) > int64(len(base)) {
		return fmt.Errorf("maker note directory at %d truncated (%d entries)", offset, count)
	}

	for i := 0; i < int(count); i++ {
		pos := offset + 2 + 12*uint32(i)
		id := order.Uint16(base[pos:])
		typ := Type(order.Uint16(base[pos+2:]))
		n := order.Uint32(base[pos+4:])

		size := typ.Size()
		if size == 0 || n > defaultLimitTagSize/size {
			continue
		}
		total := size * n

		var data []byte
		if total <= 4 {
			data = base[pos+8 : pos+8+total]
		} else {
			valueOffset := order.Uint32(base[pos+8:])
			end := int64(valueOffset) + int64(total)
			if end > int64(len(base)) {
				continue
			}
			data = base[valueOffset:end]
		}

		name := names[id]
		if name == "" {
			name = fmt.Sprintf("%s0x%x", UnknownPrefix, id)
		}
		v := fieldValue(Field{ID: id, Type: typ, Count: n, Data: data}, order)
		add(name, toPrintableValue(v))
	}
	return nil
}

var canonFields = map[uint16]string{
	0x0001: "CameraSettings",
	0x0002: "FocalLength",
	0x0004: "ShotInfo",
	0x0006: "ImageType",
	0x0007: "FirmwareVersion",
	0x0008: "FileNumber",
	0x0009: "OwnerName",
	0x000c: "SerialNumber",
	0x0010: "ModelID",
	0x0013: "ThumbnailImageValidArea",
	0x0035: "TimeInfo",
	0x0095: "LensModel",
}

// decodeCanonMakerNote handles Canon's convention: the maker note is a plain
// directory with no header and value offsets relative to the TIFF arena.
func decodeCanonMakerNote(ctx MakerNoteContext, add func(tag string, value any)) error {
	if ctx.Offset == 0 {
		return fmt.Errorf("canon maker note stored inline")
	}
	return decodeBareIFD(ctx.Arena, ctx.Offset, ctx.Order, canonFields, add)
}

var nikonFields = map[uint16]string{
	0x0001: "MakerNoteVersion",
	0x0002: "ISO",
	0x0004: "Quality",
	0x0005: "WhiteBalance",
	0x0007: "FocusMode",
	0x0084: "Lens",
	0x009e: "RetouchHistory",
	0x00a7: "ShutterCount",
}

var nikonHeader = []byte("Nikon\x00")

// decodeNikonMakerNote handles both Nikon conventions: the modern one with
// an embedded TIFF header at byte 10 (offsets relative to that header) and
// the bare-directory one used by early bodies.
func decodeNikonMakerNote(ctx MakerNoteContext, add func(tag string, value any)) error {
	flatten := func(node *IFD, order binary.ByteOrder) {
		for _, f := range node.Fields {
			name := nikonFields[f.ID]
			if name == "" {
				name = fmt.Sprintf("%s0x%x", UnknownPrefix, f.ID)
			}
			add(name, toPrintableValue(fieldValue(f, order)))
		}
	}

	if bytes.HasPrefix(ctx.Data, nikonHeader) {
		if len(ctx.Data) < 10+tiffHeaderSize {
			return fmt.Errorf("nikon maker note truncated")
		}
		root, order, _, err := DecodeIFDTree(ctx.Data[10:])
		if err != nil {
			return err
		}
		flatten(root, order)
		return nil
	}

	if ctx.Offset == 0 {
		return fmt.Errorf("nikon maker note stored inline")
	}
	return decodeBareIFD(ctx.Arena, ctx.Offset, ctx.Order, nikonFields, add)
}

var appleFields = map[uint16]string{
	0x0001: "MakerNoteVersion",
	0x0003: "RunTime",
	0x0008: "AccelerationVector",
	0x000a: "HDRImageType",
	0x0011: "ContentIdentifier",
	0x0015: "ImageUniqueID",
}

var appleHeader = []byte("Apple iOS\x00")

// decodeAppleMakerNote handles Apple's convention: a 14-byte header followed
// by a directory whose offsets are relative to the maker-note start.
func decodeAppleMakerNote(ctx MakerNoteContext, add func(tag string, value any)) error {
	if !bytes.HasPrefix(ctx.Data, appleHeader) {
		return fmt.Errorf("missing apple maker note header")
	}
	if len(ctx.Data) < 16 {
		return fmt.Errorf("apple maker note truncated")
	}
	order := byteOrderFromMark(binary.BigEndian.Uint16(ctx.Data[12:]))
	if order == nil {
		return fmt.Errorf("apple maker note byte order mark missing")
	}
	return decodeBareIFD(ctx.Data, 14, order, appleFields, add)
}
