// Copyright 2026 The mediameta authors
// SPDX-License-Identifier: MIT

package mediameta

import (
	"encoding/binary"
	"math"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestRat(t *testing.T) {
	c := qt.New(t)

	r := NewRat[uint32](1, 200)
	c.Assert(r.Num(), qt.Equals, uint32(1))
	c.Assert(r.Den(), qt.Equals, uint32(200))
	c.Assert(r.String(), qt.Equals, "1/200")
	c.Assert(r.Float64(), qt.Equals, 0.005)

	// Reduced on construction.
	c.Assert(NewRat[uint32](28, 10).String(), qt.Equals, "14/5")

	// Negative denominators normalize to the numerator.
	c.Assert(NewRat[int32](1, -2).String(), qt.Equals, "-1/2")
}

func TestAPEXConversions(t *testing.T) {
	c := qt.New(t)

	// ApertureValue 5 in APEX units is f/5.6.
	v := apexToFNumber(binary.LittleEndian, NewRat[uint32](5, 1))
	c.Assert(math.Abs(v.(float64)-5.656854) < 1e-5, qt.IsTrue)

	// ShutterSpeedValue 8 in APEX units is 1/256 s.
	v = apexToSeconds(binary.LittleEndian, NewRat[uint32](8, 1))
	c.Assert(v.(float64), qt.Equals, 1.0/256)
}

func TestConvertDegreesToDecimal(t *testing.T) {
	c := qt.New(t)

	v := degreesToDecimal(binary.LittleEndian, []any{
		NewRat[uint32](54, 1),
		NewRat[uint32](59, 1),
		NewRat[uint32](2316, 100),
	})
	c.Assert(math.Abs(v.(float64)-54.989766) < 1e-5, qt.IsTrue)
}

func TestConvertToTimestampString(t *testing.T) {
	c := qt.New(t)

	v := timestampString(binary.LittleEndian, []any{
		NewRat[uint32](13, 1),
		NewRat[uint32](3, 1),
		NewRat[uint32](42, 1),
	})
	c.Assert(v, qt.Equals, "13:03:42")

	// Fractional seconds survive.
	v = timestampString(binary.LittleEndian, []any{
		NewRat[uint32](13, 1),
		NewRat[uint32](3, 1),
		NewRat[uint32](4279, 100),
	})
	c.Assert(v, qt.Equals, "13:03:42.79")

	v = timestampString(binary.LittleEndian, "17,00000,8,00000,29,0000")
	c.Assert(v, qt.Equals, "17:08:29")
}

func TestPrintableString(t *testing.T) {
	c := qt.New(t)

	c.Assert(printableString("  Canon\x00\x01 "), qt.Equals, "Canon")
	c.Assert(printableString("EOS 70D"), qt.Equals, "EOS 70D")
}

func TestDecodeLossyText(t *testing.T) {
	c := qt.New(t)

	c.Assert(decodeLossyText([]byte("plain")), qt.Equals, "plain")

	// Latin-1 bytes that are not valid UTF-8 reinterpret instead of
	// failing the tag.
	c.Assert(decodeLossyText([]byte{'B', 'j', 0xf8, 'r', 'n'}), qt.Equals, "Bjørn")
}

func TestTrimBytesNulls(t *testing.T) {
	c := qt.New(t)

	c.Assert(trimBytesNulls([]byte{0, 0, 'a', 'b', 0}), qt.DeepEquals, []byte("ab"))
	c.Assert(trimBytesNulls([]byte{0, 0}), qt.IsNil)
	c.Assert(trimBytesNulls([]byte("abc")), qt.DeepEquals, []byte("abc"))
}

func TestToFloat64(t *testing.T) {
	c := qt.New(t)

	c.Assert(toFloat64(NewRat[uint32](1, 4)), qt.Equals, 0.25)
	c.Assert(toFloat64(uint16(3)), qt.Equals, 3.0)
	c.Assert(toFloat64(uint32(7)), qt.Equals, 7.0)
	c.Assert(toFloat64("nope"), qt.Equals, 0.0)
}
