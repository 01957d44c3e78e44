// Copyright 2026 The mediameta authors
// SPDX-License-Identifier: MIT

package mediameta

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// ReadSource executes a read plan against r and returns the located metadata
// segment together with its bytes. It performs the leading read the plan asks
// for, runs the segment locator over it, and issues at most one follow-up
// read when the segment extends past the materialized range. A scan that
// outruns the leading window triggers one guard-bounded rescan before the
// file is declared metadata-free. The bulk payload of large files is never
// materialized.
func ReadSource(r io.ReaderAt, size int64, f Format, plan ReadPlan, opts LocateOptions) (Segment, []byte, error) {
	initial := plan.InitialLen
	if plan.Kind == PlanSeekProbe {
		initial = plan.ProbeLen
	}
	if initial > size {
		initial = size
	}
	if initial < SniffLen && size > initial {
		initial = min(int64(SniffLen), size)
	}

	prefix := make([]byte, initial)
	if _, err := r.ReadAt(prefix, 0); err != nil && err != io.EOF {
		return Segment{}, nil, errors.Wrap(err, "mediameta: leading read")
	}

	opts.FileSize = size
	seg, err := LocateSegment(prefix, f, opts)
	if err == errScanTruncated {
		// The scan ran past the materialized range without a verdict. One
		// bounded rescan with a guard-sized window separates a long marker
		// list from genuine absence.
		if grown := min(size, plan.MaxSegmentLen); grown > initial {
			prefix = make([]byte, grown)
			if _, rerr := r.ReadAt(prefix, 0); rerr != nil && rerr != io.EOF {
				return Segment{}, nil, errors.Wrap(rerr, "mediameta: leading read")
			}
			seg, err = LocateSegment(prefix, f, opts)
		}
		if err == errScanTruncated {
			err = ErrSegmentNotFound
		}
	}
	if err != nil {
		return Segment{}, nil, err
	}

	// A segment longer than the guard is windowed, not refused. Directory
	// structures sit at the front of the segment; values stored past the
	// window surface as per-tag diagnostics during decode.
	readLen := min(seg.Length, plan.MaxSegmentLen)

	data := make([]byte, readLen)
	inPrefix := int64(len(prefix)) - seg.Offset
	if inPrefix < 0 {
		inPrefix = 0
	}
	if inPrefix > readLen {
		inPrefix = readLen
	}
	if inPrefix > 0 {
		copy(data, prefix[seg.Offset:seg.Offset+inPrefix])
	}
	if inPrefix < readLen {
		// The one precise follow-up read, sized to the missing remainder.
		if _, err := r.ReadAt(data[inPrefix:], seg.Offset+inPrefix); err != nil && err != io.EOF {
			return Segment{}, nil, errors.Wrap(err, "mediameta: segment read")
		}
	}

	if seg.rawExifItem {
		seg, data, err = stripExifItemHeader(seg, data)
		if err != nil {
			return Segment{}, nil, err
		}
	}
	if seg.ByteOrderHint == nil && len(data) >= 2 {
		seg.ByteOrderHint = byteOrderFromMark(binary.BigEndian.Uint16(data))
	}

	return seg, data, nil
}

// stripExifItemHeader resolves the 4-byte header-offset prefix of an ISOBMFF
// Exif item once its bytes are at hand.
func stripExifItemHeader(seg Segment, data []byte) (Segment, []byte, error) {
	if len(data) < 4 {
		return Segment{}, nil, newInvalidFormatErrorf("exif item shorter than its header")
	}
	hdrOffset := int64(binary.BigEndian.Uint32(data))
	if hdrOffset > int64(len(data))-4 {
		return Segment{}, nil, newInvalidFormatErrorf("invalid exif item header offset %d", hdrOffset)
	}
	seg.Offset += 4 + hdrOffset
	seg.Length -= 4 + hdrOffset
	seg.rawExifItem = false
	return seg, data[4+hdrOffset:], nil
}
