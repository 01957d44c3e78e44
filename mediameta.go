// Copyright 2026 The mediameta authors
// SPDX-License-Identifier: MIT

// Package mediameta extracts and rewrites the embedded metadata of binary
// media containers: JPEG, TIFF-based RAW variants, and box-structured
// HEIF/MP4-family files. It locates the metadata segment without reading the
// whole file, decodes and encodes the nested directory structure holding the
// typed tag values, and splices rewritten metadata back into the container.
//
// Every call is synchronous and side-effect-free over its input; nothing is
// shared between calls except immutable configuration, so independent files
// can be processed on as many goroutines as the caller likes with no
// coordination.
package mediameta

import (
	"encoding/binary"
	"fmt"
	"io"
	"path"
)

// TagInfo is one decoded tag.
type TagInfo struct {
	// Namespace is the path to the directory the tag came from, e.g.
	// "IFD0/GPSInfoIFD" or "MakerNotes/Canon".
	Namespace string
	// Tag is the tag name, or UnknownPrefix plus the hex ID when unnamed.
	Tag string
	// Value is the decoded value.
	Value any
}

// Key is the namespaced map key of the tag. Identical numeric IDs in
// different directories never collide.
func (t TagInfo) Key() string {
	return path.Join(t.Namespace, t.Tag)
}

// ParsedMetadata is the result of a decode: the namespaced tag map plus the
// non-fatal per-tag failures encountered while building it. It is owned by
// the caller; the decoder keeps no reference to it.
type ParsedMetadata struct {
	Tags        map[string]TagInfo
	Diagnostics []Diagnostic
}

// Get looks a tag up by its namespaced key.
func (m ParsedMetadata) Get(key string) (TagInfo, bool) {
	ti, ok := m.Tags[key]
	return ti, ok
}

// Render flattens the tag map to display strings. Rationals render as
// "num/den", byte blobs as a size summary.
func (m ParsedMetadata) Render() map[string]string {
	out := make(map[string]string, len(m.Tags))
	for k, ti := range m.Tags {
		out[k] = renderValue(ti.Value)
	}
	return out
}

func renderValue(v any) string {
	switch vv := v.(type) {
	case []byte:
		return fmt.Sprintf("(Binary data %d bytes)", len(vv))
	case fmt.Stringer:
		return vv.String()
	case string:
		return vv
	default:
		return fmt.Sprint(v)
	}
}

// HandleTagFunc is the function called for each decoded tag when set.
type HandleTagFunc func(info TagInfo) error

// Options configures Decode.
type Options struct {
	// R is the byte source, typically an *os.File. Either R+Size or Buf
	// must be set.
	R    io.ReaderAt
	Size int64

	// Buf is an in-memory alternative to R.
	Buf []byte

	// Format of the source. FormatUnknown means detect from the leading
	// bytes.
	Format Format

	// Thresholds for the read-strategy selector. Zero value = defaults.
	Thresholds Thresholds

	// If set, tags for which this returns false are skipped. The tag's
	// Value is not populated at filter time.
	ShouldHandleTag func(TagInfo) bool

	// Warnf is called for non-fatal oddities. Defaults to a no-op.
	Warnf func(string, ...any)

	// LimitNumTags caps the number of tags read. Default 5000.
	LimitNumTags uint32

	// LimitTagSize caps the byte size of a single tag value. Larger values
	// are skipped with a diagnostic. Default 10000.
	LimitTagSize uint32

	// RawTrailer tolerates manufacturer RAW headers that repurpose trailer
	// bytes of the TIFF header. Decode also sets it when the sniffer
	// recognizes the variant.
	RawTrailer bool

	// SkipDerived disables the computed-value post-pass.
	SkipDerived bool
}

// Decode reads the metadata of the source in opts and returns the decoded
// tag map. A container without a metadata segment yields an empty
// ParsedMetadata and no error; only unsupported formats, broken headers and
// directory cycles fail the call.
func Decode(opts Options) (ParsedMetadata, error) {
	meta := ParsedMetadata{Tags: map[string]TagInfo{}}

	if opts.Warnf == nil {
		opts.Warnf = func(string, ...any) {}
	}
	if opts.ShouldHandleTag == nil {
		opts.ShouldHandleTag = func(TagInfo) bool { return true }
	}

	var (
		head []byte
		size int64
	)
	switch {
	case opts.Buf != nil:
		head = opts.Buf
		if len(head) > SniffLen {
			head = head[:SniffLen]
		}
		size = int64(len(opts.Buf))
	case opts.R != nil:
		size = opts.Size
		head = make([]byte, min(int64(SniffLen), size))
		if _, err := opts.R.ReadAt(head, 0); err != nil && err != io.EOF {
			return meta, err
		}
	default:
		return meta, fmt.Errorf("mediameta: no byte source provided")
	}

	format := opts.Format
	if format == FormatUnknown {
		format = DetectFormat(head)
	}
	if format == FormatUnknown {
		return meta, ErrUnsupportedFormat
	}

	rawTrailer := opts.RawTrailer
	if format.IsTIFFLike() {
		rawTrailer = rawTrailer || DetectRawVariant(head) != ""
	}
	lopts := LocateOptions{RawTrailer: rawTrailer}

	var (
		data []byte
		err  error
	)
	if opts.Buf != nil {
		var seg Segment
		seg, err = LocateSegment(opts.Buf, format, lopts)
		if err == nil {
			data = opts.Buf[seg.Offset : seg.Offset+seg.Length]
		}
	} else {
		plan := SelectReadStrategy(size, opts.Thresholds)
		_, data, err = ReadSource(opts.R, size, format, plan, lopts)
	}
	if err != nil {
		if err == ErrSegmentNotFound || err == errScanTruncated {
			// Absence of metadata is legitimate.
			return meta, nil
		}
		return meta, err
	}

	root, order, diags, err := decodeIFDTree(data, decodeConfig{
		lenient:      rawTrailer,
		limitNumTags: opts.LimitNumTags,
		limitTagSize: opts.LimitTagSize,
	})
	if err != nil {
		return meta, err
	}
	meta.Diagnostics = diags

	b := &metadataBuilder{
		meta:  &meta,
		arena: data,
		opts:  opts,
	}
	b.addIFD(root, "IFD0", order)

	if !opts.SkipDerived {
		addDerivedValues(&meta)
	}

	return meta, nil
}

// DecodeBytes decodes metadata from an in-memory container.
func DecodeBytes(buf []byte, opts Options) (ParsedMetadata, error) {
	if buf == nil {
		buf = []byte{}
	}
	opts.Buf = buf
	opts.R = nil
	return Decode(opts)
}

type metadataBuilder struct {
	meta  *ParsedMetadata
	arena []byte
	opts  Options
}

func (b *metadataBuilder) add(ti TagInfo) {
	b.meta.Tags[ti.Key()] = ti
}

func (b *metadataBuilder) addIFD(node *IFD, namespace string, order binary.ByteOrder) {
	idx := 0
	for ; node != nil; node = node.Next {
		ns := namespace
		if idx > 0 {
			ns = fmt.Sprintf("IFD%d", idx)
		}
		b.addOneIFD(node, ns, order)
		idx++
	}
}

func (b *metadataBuilder) addOneIFD(node *IFD, namespace string, order binary.ByteOrder) {
	for _, f := range node.Fields {
		if f.ID == tagMakerNote {
			b.addMakerNote(node, f, namespace, order)
			continue
		}

		ti := TagInfo{
			Namespace: namespace,
			Tag:       fieldName(namespace, f.ID),
		}
		if !b.opts.ShouldHandleTag(ti) {
			continue
		}

		val := fieldValue(f, order)
		if convert, found := valueConverterMap[ti.Tag]; found {
			val = convert(order, val)
		} else {
			val = toPrintableValue(val)
		}
		if val == nil {
			val = ""
		}
		ti.Value = val
		b.add(ti)
	}

	if node.Exif != nil {
		b.addOneIFD(node.Exif, path.Join(namespace, "ExifIFD"), order)
	}
	if node.GPS != nil {
		b.addOneIFD(node.GPS, path.Join(namespace, "GPSInfoIFD"), order)
	}
	if node.Interop != nil {
		b.addOneIFD(node.Interop, path.Join(namespace, "InteropIFD"), order)
	}
}

// addMakerNote hands the opaque blob to the manufacturer registry. Unknown
// manufacturers keep the bytes stored unparsed; a sub-decoder that fails
// partway keeps whatever it already produced, with a diagnostic.
func (b *metadataBuilder) addMakerNote(node *IFD, f Field, namespace string, order binary.ByteOrder) {
	manufacturer := b.makeTag()
	dec, key := lookupMakerNoteDecoder(manufacturer)
	if dec == nil {
		ti := TagInfo{Namespace: namespace, Tag: fieldName(namespace, f.ID)}
		if !b.opts.ShouldHandleTag(ti) {
			return
		}
		ti.Value = append([]byte(nil), f.Data...)
		b.add(ti)
		return
	}

	ns := vendorNamespace(key)
	err := dec(MakerNoteContext{
		Arena:  b.arena,
		Data:   f.Data,
		Offset: f.offset,
		Order:  order,
	}, func(tag string, value any) {
		ti := TagInfo{Namespace: ns, Tag: tag, Value: value}
		if b.opts.ShouldHandleTag(TagInfo{Namespace: ns, Tag: tag}) {
			b.add(ti)
		}
	})
	if err != nil {
		b.opts.Warnf("maker note (%s): %v", key, err)
		b.meta.Diagnostics = append(b.meta.Diagnostics, Diagnostic{
			Namespace: ns, Tag: "MakerNote", Err: err,
		})
	}
}

// makeTag returns the already-decoded manufacturer string, if present.
func (b *metadataBuilder) makeTag() string {
	if ti, ok := b.meta.Tags["IFD0/Make"]; ok {
		if s, ok := ti.Value.(string); ok {
			return s
		}
	}
	return ""
}
