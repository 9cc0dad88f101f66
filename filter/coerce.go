package filter

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
)

// maxDirectDecimalPrecision is the widest decimal whose literals are rendered
// as plain integers. Wider decimals arrive as big-endian byte lists.
const maxDirectDecimalPrecision = 18

// Coerce converts the raw text of a literal into a value of type dt.
// Returns a *CoercionError if raw is not a valid encoding for dt.
func Coerce(dt arrow.DataType, raw string) (Literal, error) {
	lit, err := coerce(dt, raw)
	if err != nil {
		return Literal{}, &CoercionError{Type: dt, Raw: raw, Err: err}
	}
	return lit, nil
}

func coerce(dt arrow.DataType, raw string) (Literal, error) {
	switch t := dt.(type) {
	case *arrow.Decimal128Type:
		n, err := parseDecimal(t, raw)
		if err != nil {
			return Literal{}, err
		}
		return Literal{Type: dt, Value: n}, nil

	case *arrow.BooleanType:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return Literal{}, err
		}
		return Literal{Type: dt, Value: v}, nil

	case *arrow.Int8Type:
		v, err := strconv.ParseInt(raw, 10, 8)
		if err != nil {
			return Literal{}, err
		}
		return Literal{Type: dt, Value: int8(v)}, nil

	case *arrow.Int16Type:
		v, err := strconv.ParseInt(raw, 10, 16)
		if err != nil {
			return Literal{}, err
		}
		return Literal{Type: dt, Value: int16(v)}, nil

	case *arrow.Int32Type:
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return Literal{}, err
		}
		return Literal{Type: dt, Value: int32(v)}, nil

	case *arrow.Int64Type:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Literal{}, err
		}
		return Literal{Type: dt, Value: v}, nil

	case *arrow.Float32Type:
		v, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return Literal{}, err
		}
		return Literal{Type: dt, Value: float32(v)}, nil

	case *arrow.Float64Type:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Literal{}, err
		}
		return Literal{Type: dt, Value: v}, nil

	case *arrow.Date32Type:
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return Literal{}, err
		}
		return Literal{Type: dt, Value: arrow.Date32(v)}, nil

	case *arrow.BinaryType:
		b, ok, err := parseByteList(raw)
		if err != nil {
			return Literal{}, err
		}
		if !ok {
			return Literal{Type: dt, Null: true}, nil
		}
		return Literal{Type: dt, Value: b}, nil

	case *arrow.TimestampType:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Literal{}, err
		}
		return Literal{Type: TimestampType, Value: arrow.Timestamp(v)}, nil

	case *arrow.StringType:
		if len(raw) < len(stringFramePrefix)+len(stringFrameSuffix) {
			return Literal{}, fmt.Errorf("string literal must be framed as %s...%s", stringFramePrefix, stringFrameSuffix)
		}
		return Literal{Type: dt, Value: raw[len(stringFramePrefix) : len(raw)-len(stringFrameSuffix)]}, nil

	default:
		// No dedicated encoding: keep the raw text and compare as text.
		return Literal{Type: dt, Value: raw}, nil
	}
}

// parseDecimal parses a decimal literal. Narrow decimals are integer text;
// wide decimals are a byte list right-aligned into a 16-byte big-endian
// buffer and read as a signed 128-bit integer.
func parseDecimal(dt *arrow.Decimal128Type, raw string) (decimal128.Num, error) {
	if dt.Precision <= maxDirectDecimalPrecision {
		v, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return decimal128.Num{}, fmt.Errorf("not an integer")
		}
		if v.BitLen() > 127 {
			return decimal128.Num{}, fmt.Errorf("overflows 128 bits")
		}
		return decimal128.FromBigInt(v), nil
	}

	b, ok, err := parseByteList(raw)
	if err != nil {
		return decimal128.Num{}, err
	}
	if !ok {
		return decimal128.Num{}, errors.New("expected a byte list")
	}
	if len(b) > 16 {
		return decimal128.Num{}, fmt.Errorf("%d bytes exceed 128 bits", len(b))
	}

	var buf [16]byte
	copy(buf[16-len(b):], b)
	hi := int64(binary.BigEndian.Uint64(buf[:8]))
	lo := binary.BigEndian.Uint64(buf[8:])
	return decimal128.New(hi, lo), nil
}

// parseByteList parses a bracketed list of signed 16-bit integers into bytes.
// Negative values are shifted by 256 before truncation, recovering the
// unsigned byte from a signed rendering.
//
// Returns ok=false, and no error, when raw has no opening bracket.
func parseByteList(raw string) (b []byte, ok bool, err error) {
	left := strings.IndexByte(raw, '[')
	if left < 0 {
		return nil, false, nil
	}
	right := strings.IndexByte(raw[left:], ']')
	if right < 0 {
		return nil, false, errors.New("unterminated byte list")
	}

	body := strings.ReplaceAll(raw[left+1:left+right], " ", "")
	if body == "" {
		return []byte{}, true, nil
	}

	tokens := strings.Split(body, ",")
	out := make([]byte, 0, len(tokens))
	for _, tok := range tokens {
		v, err := strconv.ParseInt(tok, 10, 16)
		if err != nil {
			return nil, false, fmt.Errorf("byte list element %q: %w", tok, err)
		}
		if v < 0 {
			v += 256
		}
		out = append(out, byte(v))
	}
	return out, true, nil
}
