// Copyright 2026 The mediameta authors
// SPDX-License-Identifier: MIT

package mediameta_test

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomedia/mediameta"
	"github.com/stretchr/testify/assert"
)

// End to end pipeline tests: encode a directory tree, splice it into a
// container, hand the result back through the file-based decode path and the
// edit path. Everything runs on fixtures built in-process so the tests stay
// hermetic.

func newCameraIFD(order binary.ByteOrder) *mediameta.IFD {
	root := &mediameta.IFD{}
	root.SetField(mediameta.NewASCIIField(0x010f, "Canon"))
	root.SetField(mediameta.NewASCIIField(0x0110, "EOS 70D"))

	root.Exif = &mediameta.IFD{}
	root.Exif.SetField(mediameta.NewRationalField(0x829a, order, [2]uint32{1, 200}))
	root.Exif.SetField(mediameta.NewRationalField(0x829d, order, [2]uint32{28, 10}))
	root.Exif.SetField(mediameta.NewShortField(0x8827, order, 100))

	return root
}

func newCameraJPEG(t *testing.T, order binary.ByteOrder) []byte {
	t.Helper()

	blob, err := mediameta.EncodeIFDTree(newCameraIFD(order), order)
	assert.NoError(t, err)

	img, err := mediameta.SpliceJPEG(newBaseJPEG(), blob)
	assert.NoError(t, err)

	return img
}

func writeFixture(t *testing.T, name string, data []byte) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), name)
	assert.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestE2EDecodeFromFile(t *testing.T) {
	p := writeFixture(t, "camera.jpg", newCameraJPEG(t, binary.LittleEndian))

	f, err := os.Open(p)
	assert.NoError(t, err)
	defer f.Close()

	fi, err := f.Stat()
	assert.NoError(t, err)

	meta, err := mediameta.Decode(mediameta.Options{R: f, Size: fi.Size()})
	assert.NoError(t, err)

	rendered := meta.Render()
	assert.Equal(t, "Canon", rendered["IFD0/Make"])
	assert.Equal(t, "EOS 70D", rendered["IFD0/Model"])
	assert.Equal(t, "1/200", rendered["IFD0/ExifIFD/ExposureTime"])
	assert.Equal(t, "14/5", rendered["IFD0/ExifIFD/FNumber"])
	assert.Equal(t, "2.8", rendered["Composite/Aperture"])
}

func TestE2EDecodeStrategies(t *testing.T) {
	img := newCameraJPEG(t, binary.BigEndian)

	for _, tc := range []struct {
		name       string
		thresholds mediameta.Thresholds
	}{
		{"direct-map", mediameta.Thresholds{}},
		{"hybrid", mediameta.Thresholds{Small: 64, Large: 1 << 20}},
		{"seek-probe", mediameta.Thresholds{Small: 16, Large: 32}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			meta, err := mediameta.Decode(mediameta.Options{
				R:          bytes.NewReader(img),
				Size:       int64(len(img)),
				Thresholds: tc.thresholds,
			})
			assert.NoError(t, err)
			assert.Equal(t, "Canon", meta.Render()["IFD0/Make"])
		})
	}
}

func TestE2EEditPipeline(t *testing.T) {
	order := binary.ByteOrder(binary.LittleEndian)

	blob, err := mediameta.EncodeIFDTree(newCameraIFD(order), order)
	assert.NoError(t, err)

	img, err := mediameta.SpliceJPEG(newBaseJPEG(), blob)
	assert.NoError(t, err)

	// Overlay a new model name, re-encode, splice back over the old segment.
	merged, mergedOrder, err := mediameta.MergeFields(blob,
		mediameta.NewASCIIField(0x0110, "EOS R6"))
	assert.NoError(t, err)

	updated, err := mediameta.EncodeIFDTree(merged, mergedOrder)
	assert.NoError(t, err)

	edited, err := mediameta.Splice(img, updated)
	assert.NoError(t, err)

	meta, err := mediameta.DecodeBytes(edited, mediameta.Options{})
	assert.NoError(t, err)

	rendered := meta.Render()
	assert.Equal(t, "Canon", rendered["IFD0/Make"])
	assert.Equal(t, "EOS R6", rendered["IFD0/Model"])
	assert.Equal(t, "1/200", rendered["IFD0/ExifIFD/ExposureTime"])

	// The edit must not disturb the source image.
	again, err := mediameta.DecodeBytes(img, mediameta.Options{})
	assert.NoError(t, err)
	assert.Equal(t, "EOS 70D", again.Render()["IFD0/Model"])
}

func TestE2ETIFFFile(t *testing.T) {
	blob, err := mediameta.EncodeIFDTree(newCameraIFD(binary.LittleEndian), binary.LittleEndian)
	assert.NoError(t, err)

	p := writeFixture(t, "camera.tif", blob)

	f, err := os.Open(p)
	assert.NoError(t, err)
	defer f.Close()

	fi, err := f.Stat()
	assert.NoError(t, err)

	meta, err := mediameta.Decode(mediameta.Options{R: f, Size: fi.Size()})
	assert.NoError(t, err)
	assert.Equal(t, "EOS 70D", meta.Render()["IFD0/Model"])
}
