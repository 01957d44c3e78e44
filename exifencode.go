package mediameta

import (
	"encoding/binary"
	"fmt"
	"sort"
)

const (
	tiffHeaderSize = 8
	// 2 bytes for the entry count and 4 for the next-directory offset.
	tableOverhead  = 6
	tableEntrySize = 12
)

// align rounds pos up to the word boundary the TIFF specification requires
// for directory starts.
func align(pos uint32) uint32 {
	return (pos + 1) &^ 1
}

// EncodeIFDTree serializes a directory tree into a standalone TIFF blob in
// the given byte order: header, then each directory as fixed-size entries
// followed by its overflow value area, sub-directories and the next
// directory after that. Offsets are resolved in a sizing pass before any
// byte is written. Entries are sorted into ascending tag order and ASCII
// values get their missing NUL terminators, as the TIFF specification
// requires.
func EncodeIFDTree(root *IFD, order binary.ByteOrder) ([]byte, error) {
	if root == nil {
		return nil, fmt.Errorf("mediameta: encode: nil directory")
	}
	if order == nil {
		order = binary.BigEndian
	}

	fixIFDTree(root)

	// Pass one: assign positions.
	positions := map[*IFD]uint32{}
	end, err := assignPositions(root, tiffHeaderSize, positions)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, end)
	putTIFFHeader(buf, order, tiffHeaderSize)

	// Pass two: write with all offsets known.
	if err := writeIFD(buf, root, order, positions); err != nil {
		return nil, err
	}
	return buf, nil
}

func putTIFFHeader(buf []byte, order binary.ByteOrder, ifd0Offset uint32) {
	if order == binary.LittleEndian {
		buf[0], buf[1] = 'I', 'I'
	} else {
		buf[0], buf[1] = 'M', 'M'
	}
	order.PutUint16(buf[2:], tiffMagic)
	order.PutUint32(buf[4:], ifd0Offset)
}

// fixIFDTree normalizes a tree for encoding: entries sorted by ascending tag
// ID, ASCII data NUL-terminated, stale pointer entries dropped (they are
// re-derived from the tree structure).
func fixIFDTree(node *IFD) {
	for node != nil {
		for _, id := range []uint16{tagExifIFDPointer, tagGPSIFDPointer, tagInteropIFDPointer} {
			node.DeleteField(id)
		}
		for i := range node.Fields {
			f := &node.Fields[i]
			if f.Type == TypeASCII && (f.Count == 0 || f.Data[f.Count-1] != 0) {
				data := make([]byte, f.Count+1)
				copy(data, f.Data)
				f.Data = data
				f.Count++
			}
		}
		sort.SliceStable(node.Fields, func(i, j int) bool {
			return node.Fields[i].ID < node.Fields[j].ID
		})
		for _, sub := range []*IFD{node.Exif, node.GPS, node.Interop} {
			if sub != nil {
				fixIFDTree(sub)
			}
		}
		node = node.Next
	}
}

// entryCount includes the synthesized sub-directory pointer entries.
func entryCount(node *IFD) (uint32, error) {
	n := uint32(len(node.Fields))
	for _, sub := range []*IFD{node.Exif, node.GPS, node.Interop} {
		if sub != nil {
			n++
		}
	}
	if n == 0 {
		return 0, fmt.Errorf("mediameta: encode: directory with no entries")
	}
	if n > 0xffff {
		return 0, fmt.Errorf("mediameta: encode: %d entries exceed the 16-bit entry count", n)
	}
	return n, nil
}

// nodeSize is the table plus the overflow value area.
func nodeSize(node *IFD) (uint32, error) {
	n, err := entryCount(node)
	if err != nil {
		return 0, err
	}
	size := tableOverhead + tableEntrySize*n
	for _, f := range node.Fields {
		if s := f.Size(); s > 4 {
			size += s
			size = align(size)
		}
	}
	return size, nil
}

func assignPositions(node *IFD, pos uint32, positions map[*IFD]uint32) (uint32, error) {
	pos = align(pos)
	positions[node] = pos
	size, err := nodeSize(node)
	if err != nil {
		return 0, err
	}
	pos += size
	for _, sub := range []*IFD{node.Exif, node.GPS, node.Interop} {
		if sub == nil {
			continue
		}
		if pos, err = assignPositions(sub, pos, positions); err != nil {
			return 0, err
		}
	}
	if node.Next != nil {
		if pos, err = assignPositions(node.Next, pos, positions); err != nil {
			return 0, err
		}
	}
	return pos, nil
}

func writeIFD(buf []byte, node *IFD, order binary.ByteOrder, positions map[*IFD]uint32) error {
	pos := positions[node]

	count, err := entryCount(node)
	if err != nil {
		return err
	}

	// Entries with the pointer tags spliced in at their numeric position.
	type entry struct {
		field Field
		sub   *IFD
	}
	entries := make([]entry, 0, count)
	for _, f := range node.Fields {
		entries = append(entries, entry{field: f})
	}
	for id, sub := range map[uint16]*IFD{
		tagExifIFDPointer:    node.Exif,
		tagGPSIFDPointer:     node.GPS,
		tagInteropIFDPointer: node.Interop,
	} {
		if sub != nil {
			entries = append(entries, entry{
				field: Field{ID: id, Type: TypeUnsignedLong, Count: 1},
				sub:   sub,
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].field.ID < entries[j].field.ID })

	order.PutUint16(buf[pos:], uint16(count))
	pos += 2
	valuePos := positions[node] + tableOverhead + tableEntrySize*count

	for _, e := range entries {
		f := e.field
		order.PutUint16(buf[pos:], f.ID)
		order.PutUint16(buf[pos+2:], uint16(f.Type))
		order.PutUint32(buf[pos+4:], f.Count)

		switch {
		case e.sub != nil:
			order.PutUint32(buf[pos+8:], positions[e.sub])
		case f.Size() <= 4:
			copy(buf[pos+8:pos+12], "\x00\x00\x00\x00")
			copy(buf[pos+8:], f.Data[:f.Size()])
		default:
			order.PutUint32(buf[pos+8:], valuePos)
			copy(buf[valuePos:], f.Data[:f.Size()])
			valuePos = align(valuePos + f.Size())
		}
		pos += tableEntrySize
	}

	var next uint32
	if node.Next != nil {
		next = positions[node.Next]
	}
	order.PutUint32(buf[pos:], next)

	for _, sub := range []*IFD{node.Exif, node.GPS, node.Interop} {
		if sub != nil {
			if err := writeIFD(buf, sub, order, positions); err != nil {
				return err
			}
		}
	}
	if node.Next != nil {
		return writeIFD(buf, node.Next, order, positions)
	}
	return nil
}

// MergeFields decodes an existing TIFF blob and overlays the caller's
// updates on its primary directory. Every tag the caller did not touch is
// carried through unchanged, maker notes and unknown foreign tags included.
func MergeFields(orig []byte, updates ...Field) (*IFD, binary.ByteOrder, error) {
	root, order, _, err := DecodeIFDTree(orig)
	if err != nil {
		return nil, nil, err
	}
	for _, f := range updates {
		root.SetField(f)
	}
	return root, order, nil
}
