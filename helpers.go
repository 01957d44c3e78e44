package mediameta

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Rat is a rational number.
type Rat[T int32 | uint32] interface {
	Num() T
	Den() T
	Float64() float64

	// String returns "num/den", or just "num" when the denominator is 1.
	String() string
}

type rat[T int32 | uint32] struct {
	num T
	den T
}

func (r rat[T]) Num() T {
	return r.num
}

func (r rat[T]) Den() T {
	return r.den
}

func (r rat[T]) Float64() float64 {
	return float64(r.num) / float64(r.den)
}

func (r rat[T]) String() string {
	if r.den == 1 {
		return strconv.FormatInt(int64(r.num), 10)
	}
	return strconv.FormatInt(int64(r.num), 10) + "/" + strconv.FormatInt(int64(r.den), 10)
}

// NewRat returns the reduced rational num/den with a positive denominator.
// A zero denominator panics; decoded zero-denominator rationals never reach
// this constructor (they become infinity sentinels instead).
func NewRat[T int32 | uint32](num, den T) Rat[T] {
	if den == 0 {
		panic("division by zero")
	}

	a, b := num, den
	for b != 0 {
		a, b = b, a%b
	}
	if a != 0 && a != 1 {
		num, den = num/a, den/a
	}
	if den < 0 {
		num, den = -num, -den
	}

	return rat[T]{num: num, den: den}
}

// The value converters below rewrite raw tag values into the text or numeric
// forms tools conventionally show. They are wired per tag name in
// valueConverterMap and must tolerate any value shape the decoder can emit.

type floatValuer interface {
	Float64() float64
}

func apexToFNumber(_ binary.ByteOrder, v any) any {
	r, ok := v.(floatValuer)
	if !ok {
		return 0
	}
	return math.Pow(2, r.Float64()/2)
}

func apexToSeconds(_ binary.ByteOrder, v any) any {
	r, ok := v.(floatValuer)
	if !ok {
		return 0
	}
	return math.Pow(2, -r.Float64())
}

func bytesToSpaceDelim(_ binary.ByteOrder, v any) any {
	bb, ok := v.([]byte)
	if !ok {
		return ""
	}
	parts := make([]string, len(bb))
	for i, b := range bb {
		parts[i] = strconv.Itoa(int(b))
	}
	return strings.Join(parts, " ")
}

func numbersToSpaceDelim(_ binary.ByteOrder, v any) any {
	vals, ok := v.([]any)
	if !ok {
		return fmt.Sprintf("%d", v)
	}
	parts := make([]string, len(vals))
	for i, n := range vals {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, " ")
}

func ratsToSpaceDelim(_ binary.ByteOrder, v any) any {
	vals, ok := v.([]any)
	if !ok {
		return ""
	}
	parts := make([]string, len(vals))
	for i, n := range vals {
		f := toFloat64(n)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			parts[i] = "undef"
		} else {
			parts[i] = strconv.FormatFloat(f, 'f', -1, 64)
		}
	}
	return strings.Join(parts, " ")
}

func stringToInt(_ binary.ByteOrder, v any) any {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, _ := strconv.Atoi(printableString(s))
	return n
}

// degreesToDecimal collapses a degrees/minutes/seconds triple into decimal
// degrees. GPS coordinates arrive as three rationals; some writers store
// them as a comma-separated string instead.
func degreesToDecimal(_ binary.ByteOrder, v any) any {
	switch vv := v.(type) {
	case []any:
		if len(vv) != 3 {
			return 0.0
		}
		return toFloat64(vv[0]) + toFloat64(vv[1])/60 + toFloat64(vv[2])/3600
	case float64:
		return vv
	case string:
		var deg, min, sec float64
		if _, err := fmt.Sscanf(vv, "%f,%f,%f", &deg, &min, &sec); err != nil {
			return 0.0
		}
		return deg + min/60 + sec/3600
	default:
		return 0.0
	}
}

// timestampString renders a GPSTimeStamp as HH:MM:SS, keeping fractional
// seconds when the third rational carries them.
func timestampString(_ binary.ByteOrder, v any) any {
	switch vv := v.(type) {
	case []any:
		if len(vv) != 3 {
			return ""
		}
		sec := toFloat64(vv[2])
		s := fmt.Sprintf("%02d:%02d:%02d", int(toFloat64(vv[0])), int(toFloat64(vv[1])), int(sec))
		if frac := sec - math.Trunc(sec); frac > 1e-9 {
			s += fmt.Sprintf(".%02d", int(math.Round(frac*100)))
		}
		return s
	case string:
		// "17,00000,8,00000,29,0000": value then denominator, three times.
		parts := strings.Split(vv, ",")
		if len(parts) != 6 {
			return ""
		}
		var hms [3]int
		for i := range hms {
			hms[i], _ = strconv.Atoi(parts[2*i])
		}
		return fmt.Sprintf("%02d:%02d:%02d", hms[0], hms[1], hms[2])
	default:
		return ""
	}
}

func printableString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsGraphic(r) {
			return r
		}
		return -1
	}, s)
	return strings.TrimSpace(s)
}

func toPrintableValue(v any) any {
	switch vv := v.(type) {
	case string:
		return printableString(vv)
	case []byte:
		return printableString(string(trimBytesNulls(vv)))
	default:
		return v
	}
}

func toFloat64(v any) float64 {
	switch vv := v.(type) {
	case floatValuer:
		return vv.Float64()
	case float64:
		return vv
	case uint16:
		return float64(vv)
	case uint32:
		return float64(vv)
	case int32:
		return float64(vv)
	case int:
		return float64(vv)
	default:
		return 0
	}
}

func toString(v any) string {
	switch vv := v.(type) {
	case string:
		return vv
	case []byte:
		return string(trimBytesNulls(vv))
	default:
		return fmt.Sprintf("%v", vv)
	}
}

func trimBytesNulls(b []byte) []byte {
	b = bytes.Trim(b, "\x00")
	if len(b) == 0 {
		return nil
	}
	return b
}

// decodeLossyText turns tag text content into a string, falling back to an
// ISO-8859-1 reinterpretation when the bytes are not valid UTF-8. Text is
// never a reason to fail a tag.
func decodeLossyText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	s, err := charmap.ISO8859_1.NewDecoder().String(string(b))
	if err != nil {
		return string(b)
	}
	return s
}
