package filter

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
)

// TimeZone is the time zone attached to every timestamp literal.
const TimeZone = "UTC"

// String literals arrive framed the way Parquet filter2 prints a binary value:
// Binary{"value"}. Coercion strips the frame positionally.
const (
	stringFramePrefix = `Binary{"`
	stringFrameSuffix = `"}`
)

// TimestampType is the type of every timestamp literal.
var TimestampType = &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: TimeZone}

// Literal is a constant paired with the Arrow type it was coerced to.
//
// Value holds one of: bool, int8, int16, int32, int64, float32, float64,
// decimal128.Num, []byte, arrow.Date32, arrow.Timestamp or string. A string
// Value under a non-string Type is the raw text of a literal for a type
// without a dedicated encoding. Null is set for a binary literal without byte-list brackets.
type Literal struct {
	Type  arrow.DataType
	Value any
	Null  bool
}

// Text renders the literal in the textual form Coerce accepts for its type,
// so that Coerce(l.Type, l.Text()) yields l again.
func (l Literal) Text() string {
	if l.Null {
		return ""
	}

	switch v := l.Value.(type) {
	case bool:
		return strconv.FormatBool(v)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case decimal128.Num:
		if dt, ok := l.Type.(*arrow.Decimal128Type); ok && dt.Precision > 18 {
			return formatByteList(decimalBytes(v))
		}
		return v.BigInt().String()
	case []byte:
		return formatByteList(v)
	case arrow.Date32:
		return strconv.FormatInt(int64(v), 10)
	case arrow.Timestamp:
		return strconv.FormatInt(int64(v), 10)
	case string:
		if l.Type != nil && l.Type.ID() == arrow.STRING {
			return stringFramePrefix + v + stringFrameSuffix
		}
		return v
	}
	return ""
}

// decimalBytes returns the minimal big-endian rendering of n that decodes
// back to n when right-aligned into a zeroed 16-byte buffer.
func decimalBytes(n decimal128.Num) []byte {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(n.HighBits()))
	binary.BigEndian.PutUint64(buf[8:], n.LowBits())
	i := 0
	for i < len(buf) && buf[i] == 0 {
		i++
	}
	return buf[i:]
}

// formatByteList renders bytes as a bracketed list of signed values,
// e.g. [0, -1, 127].
func formatByteList(b []byte) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, c := range b {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Itoa(int(int8(c))))
	}
	sb.WriteByte(']')
	return sb.String()
}
