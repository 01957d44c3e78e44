package mediameta

import "encoding/binary"

// Format is the container family a byte source belongs to.
type Format int

const (
	// FormatUnknown doubles as "detect automatically" in Options.
	FormatUnknown Format = iota
	// FormatJPEG is a marker-segmented JPEG stream.
	FormatJPEG
	// FormatTIFF covers standalone TIFF and the TIFF-based RAW variants
	// (CR2, NEF, DNG, ORF) where the whole file is the directory structure.
	FormatTIFF
	// FormatISOBMFF covers box-structured containers (HEIF, HEIC, AVIF, MP4, MOV).
	FormatISOBMFF
)

func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "JPEG"
	case FormatTIFF:
		return "TIFF"
	case FormatISOBMFF:
		return "ISOBMFF"
	default:
		return "Unknown"
	}
}

// IsTIFFLike reports whether the whole file carries the directory structure
// directly, as opposed to wrapping it in a container segment.
func (f Format) IsTIFFLike() bool {
	return f == FormatTIFF
}

// SniffLen is the number of leading bytes DetectFormat needs at most.
const SniffLen = 32

const (
	byteOrderBigEndian    = 0x4d4d
	byteOrderLittleEndian = 0x4949

	tiffMagic = 42

	// Olympus repurposes the magic of the TIFF header in ORF files.
	orfMagicIIRO = 0x4f52
	orfMagicIIRS = 0x5253
)

var isobmffBrands = map[fourCC]bool{
	{'h', 'e', 'i', 'c'}: true,
	{'h', 'e', 'i', 'x'}: true,
	{'h', 'e', 'v', 'c'}: true,
	{'m', 'i', 'f', '1'}: true,
	{'m', 's', 'f', '1'}: true,
	{'a', 'v', 'i', 'f'}: true,
	{'a', 'v', 'c', '1'}: true,
	{'m', 'p', '4', '1'}: true,
	{'m', 'p', '4', '2'}: true,
	{'i', 's', 'o', 'm'}: true,
	{'q', 't', ' ', ' '}: true,
	{'3', 'g', 'p', '4'}: true,
	{'3', 'g', 'p', '5'}: true,
}

type fourCC [4]byte

// DetectFormat identifies the container family from the first bytes of a
// source. It needs at most SniffLen bytes, performs no I/O and never fails:
// truncated or unrecognized input yields FormatUnknown.
func DetectFormat(head []byte) Format {
	if len(head) < 4 {
		return FormatUnknown
	}

	if head[0] == 0xff && head[1] == 0xd8 {
		return FormatJPEG
	}

	order := uint16(head[0])<<8 | uint16(head[1])
	if order == byteOrderBigEndian || order == byteOrderLittleEndian {
		var bo binary.ByteOrder = binary.BigEndian
		if order == byteOrderLittleEndian {
			bo = binary.LittleEndian
		}
		magic := bo.Uint16(head[2:4])
		if magic == tiffMagic || magic == orfMagicIIRO || magic == orfMagicIIRS {
			return FormatTIFF
		}
		return FormatUnknown
	}

	if len(head) >= 12 {
		var boxType fourCC
		copy(boxType[:], head[4:8])
		if boxType == fccFtyp {
			var brand fourCC
			copy(brand[:], head[8:12])
			if isobmffBrands[brand] {
				return FormatISOBMFF
			}
			// Unknown major brand: fall back to the compatible-brand
			// list, as far as the sniff window reaches.
			boxSize := int(binary.BigEndian.Uint32(head))
			end := min(len(head), boxSize)
			for pos := 16; pos+4 <= end; pos += 4 {
				copy(brand[:], head[pos:pos+4])
				if isobmffBrands[brand] {
					return FormatISOBMFF
				}
			}
		}
	}

	return FormatUnknown
}

// DetectRawVariant reports the manufacturer RAW flavor of a TIFF-family
// header, or "" for plain TIFF. Callers use this to decide whether to set
// LocateOptions.RawTrailer; the locator itself never infers it.
func DetectRawVariant(head []byte) string {
	if DetectFormat(head) != FormatTIFF {
		return ""
	}
	if len(head) >= 10 && head[8] == 'C' && head[9] == 'R' {
		return "CR2"
	}
	var bo binary.ByteOrder = binary.BigEndian
	if head[0] == 0x49 {
		bo = binary.LittleEndian
	}
	switch bo.Uint16(head[2:4]) {
	case orfMagicIIRO, orfMagicIIRS:
		return "ORF"
	}
	return ""
}
