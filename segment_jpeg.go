package mediameta

import (
	"encoding/binary"
)

const (
	markerSOI  = 0xffd8
	markerEOI  = 0xffd9
	markerSOS  = 0xffda
	markerTEM  = 0xff01
	markerAPP0 = 0xffe0
	markerAPP1 = 0xffe1
	markerRST0 = 0xffd0
	markerRST7 = 0xffd7
)

// exifSignature prefixes the APP1 payload that carries Exif metadata.
// Other APP1 uses (XMP, Extended XMP) carry different signatures.
const exifSignature = "Exif\x00\x00"

// exifSegmentOverhead is the marker, the length field and the signature that
// wrap the TIFF blob inside an Exif APP1 segment.
const exifSegmentOverhead = 2 + 2 + len(exifSignature)

// maxJPEGSegmentPayload is the largest payload a single marker segment can
// carry: the 16-bit length field includes its own two bytes.
const maxJPEGSegmentPayload = 0xffff - 2

func isStandaloneMarker(m uint16) bool {
	return m == markerSOI || m == markerEOI || m == markerTEM ||
		(m >= markerRST0 && m <= markerRST7)
}

// locateJPEG scans marker segments from byte 2 looking for the APP1 segment
// whose payload begins with the Exif signature. Multiple APP1 segments are
// legal (XMP uses APP1 too); only the Exif one matches. The scan stops at
// SOS or EOI.
func locateJPEG(buf []byte, opts LocateOptions) (Segment, error) {
	if len(buf) < 2 || binary.BigEndian.Uint16(buf) != markerSOI {
		return Segment{}, newInvalidFormatErrorf("not a JPEG stream")
	}

	pos := int64(2)
	for {
		if pos+2 > int64(len(buf)) {
			return Segment{}, errScanTruncated
		}
		if buf[pos] != 0xff {
			return Segment{}, newInvalidFormatErrorf("expected marker at offset %d", pos)
		}
		// Fill bytes before a marker are permitted.
		for buf[pos+1] == 0xff {
			pos++
			if pos+2 > int64(len(buf)) {
				return Segment{}, errScanTruncated
			}
		}
		marker := binary.BigEndian.Uint16(buf[pos:])

		if marker == markerSOS || marker == markerEOI {
			return Segment{}, ErrSegmentNotFound
		}
		if isStandaloneMarker(marker) {
			pos += 2
			continue
		}

		if pos+4 > int64(len(buf)) {
			return Segment{}, errScanTruncated
		}
		length := int64(binary.BigEndian.Uint16(buf[pos+2:]))
		if length < 2 {
			return Segment{}, newInvalidFormatErrorf("segment length %d at offset %d", length, pos)
		}
		payload := pos + 4
		payloadLen := length - 2

		if marker == markerAPP1 {
			sigEnd := payload + int64(len(exifSignature))
			if sigEnd <= int64(len(buf)) &&
				payloadLen >= int64(len(exifSignature)) &&
				string(buf[payload:sigEnd]) == exifSignature {
				seg := Segment{
					Offset: sigEnd,
					Length: payloadLen - int64(len(exifSignature)),
				}
				if seg.Offset+seg.Length > opts.FileSize {
					return Segment{}, newInvalidFormatErrorf("segment [%d,%d) exceeds file size %d",
						seg.Offset, seg.Offset+seg.Length, opts.FileSize)
				}
				if len(buf) >= int(sigEnd)+2 {
					seg.ByteOrderHint = byteOrderFromMark(binary.BigEndian.Uint16(buf[sigEnd:]))
				}
				return seg, nil
			}
		}

		pos = payload + payloadLen
	}
}

func byteOrderFromMark(mark uint16) binary.ByteOrder {
	switch mark {
	case byteOrderBigEndian:
		return binary.BigEndian
	case byteOrderLittleEndian:
		return binary.LittleEndian
	default:
		return nil
	}
}
