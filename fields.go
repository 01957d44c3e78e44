package mediameta

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// UnknownPrefix is used as prefix for tags with no name-table entry.
const UnknownPrefix = "UnknownTag_"

const (
	tagExifIFDPointer    = 0x8769
	tagGPSIFDPointer     = 0x8825
	tagInteropIFDPointer = 0xa005
	tagMakerNote         = 0x927c

	tagMake             = 0x010f
	tagModel            = 0x0110
	tagStripOffsets     = 0x0111
	tagTileOffsets      = 0x0144
	tagSubIFDs          = 0x014a
	tagThumbnailOffset  = 0x0201
	tagExifImageWidth   = 0xa002
	tagExifImageHeight  = 0xa003
	tagDateTime         = 0x0132
	tagDateTimeOriginal = 0x9003
)

// ifdPointerNamespaces maps recognized sub-directory pointer tags to the
// namespace their tags are merged under. Identical numeric tag IDs in
// different sub-directories never collide because the namespace is part of
// the key.
var ifdPointerNamespaces = map[uint16]string{
	tagExifIFDPointer:    "ExifIFD",
	tagGPSIFDPointer:     "GPSInfoIFD",
	tagInteropIFDPointer: "InteropIFD",
}

// exifFields names the tags of IFD0/IFD1 and the Exif sub-IFD.
var exifFields = map[uint16]string{
	0x0100: "ImageWidth",
	0x0101: "ImageHeight",
	0x0102: "BitsPerSample",
	0x0103: "Compression",
	0x0106: "PhotometricInterpretation",
	0x010e: "ImageDescription",
	0x010f: "Make",
	0x0110: "Model",
	0x0111: "StripOffsets",
	0x0112: "Orientation",
	0x0115: "SamplesPerPixel",
	0x0116: "RowsPerStrip",
	0x0117: "StripByteCounts",
	0x011a: "XResolution",
	0x011b: "YResolution",
	0x011c: "PlanarConfiguration",
	0x0128: "ResolutionUnit",
	0x0131: "Software",
	0x0132: "DateTime",
	0x013b: "Artist",
	0x013e: "WhitePoint",
	0x013f: "PrimaryChromaticities",
	0x0144: "TileOffsets",
	0x0145: "TileByteCounts",
	0x014a: "SubIFDs",
	0x0201: "ThumbnailOffset",
	0x0202: "ThumbnailLength",
	0x0211: "YCbCrCoefficients",
	0x0213: "YCbCrPositioning",
	0x0214: "ReferenceBlackWhite",
	0x8298: "Copyright",
	0x829a: "ExposureTime",
	0x829d: "FNumber",
	0x8769: "ExifIFDPointer",
	0x8822: "ExposureProgram",
	0x8825: "GPSInfoIFDPointer",
	0x8827: "ISO",
	0x8830: "SensitivityType",
	0x8832: "RecommendedExposureIndex",
	0x9000: "ExifVersion",
	0x9003: "DateTimeOriginal",
	0x9004: "DateTimeDigitized",
	0x9010: "OffsetTime",
	0x9011: "OffsetTimeOriginal",
	0x9012: "OffsetTimeDigitized",
	0x9101: "ComponentsConfiguration",
	0x9102: "CompressedBitsPerPixel",
	0x9201: "ShutterSpeedValue",
	0x9202: "ApertureValue",
	0x9203: "BrightnessValue",
	0x9204: "ExposureCompensation",
	0x9205: "MaxApertureValue",
	0x9206: "SubjectDistance",
	0x9207: "MeteringMode",
	0x9208: "LightSource",
	0x9209: "Flash",
	0x920a: "FocalLength",
	0x9214: "SubjectArea",
	0x927c: "MakerNote",
	0x9286: "UserComment",
	0x9290: "SubSecTime",
	0x9291: "SubSecTimeOriginal",
	0x9292: "SubSecTimeDigitized",
	0xa000: "FlashpixVersion",
	0xa001: "ColorSpace",
	0xa002: "ExifImageWidth",
	0xa003: "ExifImageHeight",
	0xa004: "RelatedSoundFile",
	0xa005: "InteropIFDPointer",
	0xa20b: "FlashEnergy",
	0xa20e: "FocalPlaneXResolution",
	0xa20f: "FocalPlaneYResolution",
	0xa210: "FocalPlaneResolutionUnit",
	0xa214: "SubjectLocation",
	0xa215: "ExposureIndex",
	0xa217: "SensingMethod",
	0xa300: "FileSource",
	0xa301: "SceneType",
	0xa302: "CFAPattern",
	0xa401: "CustomRendered",
	0xa402: "ExposureMode",
	0xa403: "WhiteBalance",
	0xa404: "DigitalZoomRatio",
	0xa405: "FocalLengthIn35mmFormat",
	0xa406: "SceneCaptureType",
	0xa407: "GainControl",
	0xa408: "Contrast",
	0xa409: "Saturation",
	0xa40a: "Sharpness",
	0xa40c: "SubjectDistanceRange",
	0xa420: "ImageUniqueID",
	0xa430: "OwnerName",
	0xa431: "SerialNumber",
	0xa432: "LensInfo",
	0xa433: "LensMake",
	0xa434: "LensModel",
	0xa435: "LensSerialNumber",
	0xc620: "DefaultCropSize",
	0xc634: "DNGPrivateData",
}

// exifFieldsGPS names the tags of the GPS sub-IFD.
var exifFieldsGPS = map[uint16]string{
	0x0000: "GPSVersionID",
	0x0001: "GPSLatitudeRef",
	0x0002: "GPSLatitude",
	0x0003: "GPSLongitudeRef",
	0x0004: "GPSLongitude",
	0x0005: "GPSAltitudeRef",
	0x0006: "GPSAltitude",
	0x0007: "GPSTimeStamp",
	0x0008: "GPSSatellites",
	0x0009: "GPSStatus",
	0x000a: "GPSMeasureMode",
	0x000b: "GPSDOP",
	0x000c: "GPSSpeedRef",
	0x000d: "GPSSpeed",
	0x000e: "GPSTrackRef",
	0x000f: "GPSTrack",
	0x0010: "GPSImgDirectionRef",
	0x0011: "GPSImgDirection",
	0x0012: "GPSMapDatum",
	0x001d: "GPSDateStamp",
	0x001f: "GPSHPositioningError",
}

// exifFieldsInterop names the tags of the Interoperability sub-IFD.
var exifFieldsInterop = map[uint16]string{
	0x0001: "InteropIndex",
	0x0002: "InteropVersion",
	0x1001: "RelatedImageWidth",
	0x1002: "RelatedImageHeight",
}

// fieldName resolves a tag ID to its name within a namespace.
func fieldName(namespace string, id uint16) string {
	var name string
	switch {
	case strings.HasSuffix(namespace, "GPSInfoIFD"):
		name = exifFieldsGPS[id]
	case strings.HasSuffix(namespace, "InteropIFD"):
		name = exifFieldsInterop[id]
	default:
		name = exifFields[id]
	}
	if name == "" {
		name = fmt.Sprintf("%s0x%x", UnknownPrefix, id)
	}
	return name
}

type valueConverter func(binary.ByteOrder, any) any

var valueConverterMap = map[string]valueConverter{
	"ApertureValue":           apexToFNumber,
	"MaxApertureValue":        apexToFNumber,
	"ShutterSpeedValue":       apexToSeconds,
	"GPSLatitude":             degreesToDecimal,
	"GPSLongitude":            degreesToDecimal,
	"GPSMeasureMode":          stringToInt,
	"SubSecTime":              stringToInt,
	"SubSecTimeOriginal":      stringToInt,
	"SubSecTimeDigitized":     stringToInt,
	"GPSTimeStamp":            timestampString,
	"GPSVersionID":            bytesToSpaceDelim,
	"SubjectArea":             numbersToSpaceDelim,
	"ComponentsConfiguration": bytesToSpaceDelim,
	"LensInfo":                ratsToSpaceDelim,
	"UserComment": func(byteOrder binary.ByteOrder, v any) any {
		return strings.TrimPrefix(printableString(toString(v)), "ASCII")
	},
}
