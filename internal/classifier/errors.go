package classifier

import (
	"errors"
	"fmt"

	"github.com/and161185/elasticsearch-exporter/model"
)

// ErrorKind identifies why a value could not be classified.
type ErrorKind uint8

const (
	UnknownValue      ErrorKind = iota + 1 // Value shape fits no rule for the key.
	ParseIntFailure                        // Value looked numeric but is not an integer.
	ParseFloatFailure                      // Value looked numeric but is not a float.
)

func (k ErrorKind) String() string {
	switch k {
	case UnknownValue:
		return "unknown value"
	case ParseIntFailure:
		return "parse int"
	case ParseFloatFailure:
		return "parse float"
	default:
		return "unknown error kind"
	}
}

var (
	ErrUnknownValue = errors.New("unknown value")
	ErrParseInt     = errors.New("parse int")
	ErrParseFloat   = errors.New("parse float")
)

// Error describes a failed classification of one raw metric.
type Error struct {
	Key  string
	Raw  *model.Scalar // Original value; nil when unavailable.
	Kind ErrorKind
	Err  error // Underlying parse error, if any.
}

func newError(kind ErrorKind, key string, raw model.Scalar, cause error) *Error {
	return &Error{Key: key, Raw: &raw, Kind: kind, Err: cause}
}

func (e *Error) Error() string {
	raw := "<none>"
	if e.Raw != nil {
		raw = e.Raw.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("classify %s=%s: %s: %v", e.Key, raw, e.Kind, e.Err)
	}
	return fmt.Sprintf("classify %s=%s: %s", e.Key, raw, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the package sentinels by kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnknownValue:
		return e.Kind == UnknownValue
	case ErrParseInt:
		return e.Kind == ParseIntFailure
	case ErrParseFloat:
		return e.Kind == ParseFloatFailure
	}
	return false
}
