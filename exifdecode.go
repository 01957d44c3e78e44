package mediameta

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	defaultLimitNumTags = 5000
	defaultLimitTagSize = 10000
)

type decodeConfig struct {
	// lenient tolerates the repurposed magic of manufacturer RAW headers.
	lenient      bool
	limitNumTags uint32
	limitTagSize uint32
}

func (c decodeConfig) withDefaults() decodeConfig {
	if c.limitNumTags == 0 {
		c.limitNumTags = defaultLimitNumTags
	}
	if c.limitTagSize == 0 {
		c.limitTagSize = defaultLimitTagSize
	}
	return c
}

// DecodeIFDTree decodes the TIFF structure in buf into a raw directory tree.
// buf is treated as an arena: every stored offset is a bounds-checked index
// into it, never followed outside. Per-tag failures (out-of-bounds value
// offsets, unknown type codes) are recorded as diagnostics and the tag is
// skipped; only header-level failures and directory cycles abort the call.
func DecodeIFDTree(buf []byte) (*IFD, binary.ByteOrder, []Diagnostic, error) {
	return decodeIFDTree(buf, decodeConfig{})
}

func decodeIFDTree(buf []byte, cfg decodeConfig) (*IFD, binary.ByteOrder, []Diagnostic, error) {
	cfg = cfg.withDefaults()

	if len(buf) < 8 {
		return nil, nil, nil, newInvalidFormatError(ErrInvalidHeader)
	}

	var order binary.ByteOrder
	switch uint16(buf[0])<<8 | uint16(buf[1]) {
	case byteOrderBigEndian:
		order = binary.BigEndian
	case byteOrderLittleEndian:
		order = binary.LittleEndian
	default:
		return nil, nil, nil, newInvalidFormatError(ErrInvalidHeader)
	}

	if magic := order.Uint16(buf[2:4]); magic != tiffMagic {
		ok := cfg.lenient && (magic == orfMagicIIRO || magic == orfMagicIIRS)
		if !ok {
			return nil, nil, nil, newInvalidFormatError(ErrInvalidHeader)
		}
	}

	ifd0Offset := order.Uint32(buf[4:8])
	if ifd0Offset < 8 {
		return nil, nil, nil, newInvalidFormatError(ErrInvalidHeader)
	}

	d := &ifdDecoder{
		buf:     buf,
		order:   order,
		cfg:     cfg,
		visited: map[uint32]bool{},
	}

	var root, prev *IFD
	offset := ifd0Offset
	for idx := 0; offset != 0; idx++ {
		ns := fmt.Sprintf("IFD%d", idx)
		node, next, err := d.readIFD(offset, ns)
		if err != nil {
			if idx == 0 {
				return nil, nil, d.diags, err
			}
			if err == ErrCircularIFD {
				return nil, nil, d.diags, err
			}
			// A bad next-offset loses only the trailing directories.
			d.diag(ns, "", err)
			break
		}
		if prev == nil {
			root = node
		} else {
			prev.Next = node
		}
		prev = node
		offset = next
	}

	if root == nil {
		return nil, nil, d.diags, newInvalidFormatError(ErrInvalidHeader)
	}
	return root, order, d.diags, nil
}

type ifdDecoder struct {
	buf     []byte
	order   binary.ByteOrder
	cfg     decodeConfig
	visited map[uint32]bool
	diags   []Diagnostic
	numTags uint32
}

func (d *ifdDecoder) diag(namespace, tag string, err error) {
	d.diags = append(d.diags, Diagnostic{Namespace: namespace, Tag: tag, Err: err})
}

// readIFD decodes the directory table at offset. It returns the directory
// and the stored next-directory offset (0 = terminal).
func (d *ifdDecoder) readIFD(offset uint32, namespace string) (*IFD, uint32, error) {
	if d.visited[offset] {
		return nil, 0, ErrCircularIFD
	}
	d.visited[offset] = true

	if int64(offset)+2 > int64(len(d.buf)) {
		return nil, 0, newInvalidFormatErrorf("directory offset %d outside buffer", offset)
	}
	count := d.order.Uint16(d.buf[offset:])
	entriesEnd := int64(offset) + 2 + 12*int64(count)
	if entriesEnd+4 > int64(len(d.buf)) {
		return nil, 0, newInvalidFormatErrorf("directory at %d truncated (%d entries)", offset, count)
	}

	node := &IFD{}
	for i := 0; i < int(count); i++ {
		d.numTags++
		if d.numTags > d.cfg.limitNumTags {
			d.diag(namespace, "", fmt.Errorf("tag limit %d reached", d.cfg.limitNumTags))
			break
		}
		if err := d.readEntry(node, offset+2+12*uint32(i), namespace); err != nil {
			return nil, 0, err
		}
	}

	next := d.order.Uint32(d.buf[entriesEnd:])
	return node, next, nil
}

func (d *ifdDecoder) readEntry(node *IFD, pos uint32, namespace string) error {
	id := d.order.Uint16(d.buf[pos:])
	typ := Type(d.order.Uint16(d.buf[pos+2:]))
	count := d.order.Uint32(d.buf[pos+4:])
	tagName := fieldName(namespace, id)

	size := typ.Size()
	if size == 0 {
		d.diag(namespace, tagName, fmt.Errorf("unknown type code %d", uint16(typ)))
		return nil
	}
	if count > d.cfg.limitTagSize/size {
		// Covers both the tag-size limit and uint32 overflow in one check.
		d.diag(namespace, tagName, fmt.Errorf("value size %d×%d exceeds limit %d", size, count, d.cfg.limitTagSize))
		return nil
	}
	total := size * count

	field := Field{ID: id, Type: typ, Count: count}
	if total <= 4 {
		field.Data = d.buf[pos+8 : pos+8+total]
	} else {
		valueOffset := d.order.Uint32(d.buf[pos+8:])
		end := int64(valueOffset) + int64(total)
		if end > int64(len(d.buf)) {
			// Per-tag failure only. The rest of the parse continues.
			d.diag(namespace, tagName, fmt.Errorf("value [%d,%d) outside buffer", valueOffset, end))
			return nil
		}
		field.Data = d.buf[valueOffset:end]
		field.offset = valueOffset
	}

	if sub, isPointer := ifdPointerNamespaces[id]; isPointer && count == 1 && size == 4 {
		subOffset := d.order.Uint32(field.Data)
		subNode, _, err := d.readIFD(subOffset, namespace+"/"+sub)
		if err != nil {
			if err == ErrCircularIFD {
				// The cycle guard is fatal wherever it trips; a repeated
				// offset means the graph is adversarial or corrupt.
				return err
			}
			d.diag(namespace, tagName, err)
			return nil
		}
		switch id {
		case tagExifIFDPointer:
			node.Exif = subNode
		case tagGPSIFDPointer:
			node.GPS = subNode
		case tagInteropIFDPointer:
			node.Interop = subNode
		}
		return nil
	}

	node.Fields = append(node.Fields, field)
	return nil
}

// fieldValue converts a raw field into its decoded Go value, following the
// type decode table: scalars for count 1, []any (or []byte) otherwise, text
// for ASCII. A RATIONAL with a zero denominator yields +Inf, never a fault.
func fieldValue(f Field, order binary.ByteOrder) any {
	if f.Count == 0 {
		return nil
	}

	if f.Type == TypeASCII {
		// Content up to the first NUL; embedded text after it is lost.
		return decodeLossyText([]byte(f.ASCII()))
	}

	if f.Count == 1 {
		return scalarValue(f.Type, f.Data, order)
	}

	values := make([]any, f.Count)
	size := f.Type.Size()
	allBytes := true
	for i := range values {
		v := scalarValue(f.Type, f.Data[uint32(i)*size:], order)
		values[i] = v
		if _, ok := v.(byte); !ok {
			allBytes = false
		}
	}

	if allBytes {
		bs := make([]byte, len(values))
		for i, v := range values {
			bs[i] = v.(byte)
		}
		return bs
	}
	return values
}

func scalarValue(typ Type, data []byte, order binary.ByteOrder) any {
	switch typ {
	case TypeUnsignedByte, TypeUndef:
		return data[0]
	case TypeSignedByte:
		return int8(data[0])
	case TypeUnsignedShort:
		return order.Uint16(data)
	case TypeSignedShort:
		return int16(order.Uint16(data))
	case TypeUnsignedLong:
		return order.Uint32(data)
	case TypeSignedLong:
		return int32(order.Uint32(data))
	case TypeUnsignedRat:
		n, d := order.Uint32(data), order.Uint32(data[4:])
		if d == 0 {
			return math.Inf(1)
		}
		return NewRat[uint32](n, d)
	case TypeSignedRat:
		n, d := int32(order.Uint32(data)), int32(order.Uint32(data[4:]))
		if d == 0 {
			if n < 0 {
				return math.Inf(-1)
			}
			return math.Inf(1)
		}
		return NewRat[int32](n, d)
	case TypeSignedFloat:
		return math.Float32frombits(order.Uint32(data))
	case TypeSignedDouble:
		return math.Float64frombits(order.Uint64(data))
	default:
		return nil
	}
}
