package filter

import (
	"errors"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
)

var (
	// ErrMalformedFilter indicates a predicate string that does not follow the
	// op(args) grammar. Predicates are machine generated, so this is a
	// contract violation by the upstream writer.
	ErrMalformedFilter = errors.New("malformed filter")

	// ErrInvalidLiteral indicates a literal whose text is not a valid encoding
	// for the type of the field it is compared against.
	ErrInvalidLiteral = errors.New("invalid literal")

	// ErrUnsupportedComparison indicates a comparison that cannot be evaluated
	// against the column it references.
	ErrUnsupportedComparison = errors.New("unsupported comparison")
)

// ParseError describes a structural problem in a predicate string.
type ParseError struct {
	Filter string
	Offset int
	Reason string
}

func (e *ParseError) Error() string {
	msg := "malformed filter " + strconv.Quote(e.Filter) + ": " + e.Reason
	if e.Offset >= 0 {
		msg += " at offset " + strconv.Itoa(e.Offset)
	}
	return msg
}

func (e *ParseError) Unwrap() error { return ErrMalformedFilter }

// CoercionError describes a literal that could not be coerced to a field type.
type CoercionError struct {
	Type arrow.DataType
	Raw  string
	Err  error
}

func (e *CoercionError) Error() string {
	msg := "invalid literal " + strconv.Quote(e.Raw) + " for type " + e.Type.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *CoercionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidLiteral}
	}
	return []error{ErrInvalidLiteral, e.Err}
}
