package mediameta

import (
	"encoding/binary"
	"errors"
)

// Segment is the located byte range holding the TIFF-structured metadata
// inside a container. Offsets are absolute within the file. For JPEG the
// range starts at the TIFF header inside the APP1 payload (after the 6-byte
// Exif signature); for TIFF-family files it is the whole file.
type Segment struct {
	Offset        int64
	Length        int64
	ByteOrderHint binary.ByteOrder // nil when the locator did not see the header

	// rawExifItem marks an ISOBMFF segment whose 4-byte item header could
	// not be resolved because the range was outside the supplied buffer.
	// The I/O layer strips it after the follow-up read.
	rawExifItem bool
}

// LocateOptions configures the segment locator.
type LocateOptions struct {
	// RawTrailer tolerates manufacturer RAW headers that repurpose the
	// trailer bytes of the 8-byte TIFF header (CR2 sub-offset, ORF magic).
	// It is caller-supplied, never inferred by the locator.
	RawTrailer bool

	// FileSize is the total size of the file when buf is only a leading
	// portion of it (hybrid and seek-probe plans). Zero means buf is the
	// whole file. Located ranges are validated against this bound.
	FileSize int64
}

// errScanTruncated signals that the scan ran off the end of the supplied
// buffer before reaching a terminal marker. Callers holding only a prefix of
// the file treat it the same as absence.
var errScanTruncated = errors.New("mediameta: segment scan truncated")

// LocateSegment finds the metadata segment for the given container family.
// It returns ErrSegmentNotFound when the container has no such segment;
// absence is not a failure.
func LocateSegment(buf []byte, f Format, opts LocateOptions) (Segment, error) {
	if opts.FileSize == 0 {
		opts.FileSize = int64(len(buf))
	}
	switch f {
	case FormatJPEG:
		return locateJPEG(buf, opts)
	case FormatTIFF:
		return locateTIFF(buf, opts)
	case FormatISOBMFF:
		return locateBox(buf, opts)
	default:
		return Segment{}, ErrUnsupportedFormat
	}
}

func locateTIFF(buf []byte, opts LocateOptions) (Segment, error) {
	if len(buf) < 8 {
		return Segment{}, newInvalidFormatError(ErrInvalidHeader)
	}

	var order binary.ByteOrder
	switch uint16(buf[0])<<8 | uint16(buf[1]) {
	case byteOrderBigEndian:
		order = binary.BigEndian
	case byteOrderLittleEndian:
		order = binary.LittleEndian
	default:
		return Segment{}, newInvalidFormatError(ErrInvalidHeader)
	}

	if magic := order.Uint16(buf[2:4]); magic != tiffMagic {
		// ORF and friends repurpose the magic; only tolerated when the
		// caller asked for it.
		ok := opts.RawTrailer && (magic == orfMagicIIRO || magic == orfMagicIIRS)
		if !ok {
			return Segment{}, newInvalidFormatError(ErrInvalidHeader)
		}
	}

	return Segment{Offset: 0, Length: opts.FileSize, ByteOrderHint: order}, nil
}
