// Package classifier maps flattened (key, JSON value) pairs to typed metrics.
//
// The decision is an ordered ladder: value shape first (bool, null), then
// byte and time keys, then native numbers, then the remaining key
// vocabularies, and finally a catch-all that turns strings into labels.
// The order is part of the contract; see Classify.
package classifier

import (
	"strconv"
	"strings"

	"github.com/and161185/elasticsearch-exporter/model"
)

// CatchAllHook observes values that reached the catch-all branch while
// looking like canonical integers. It must not retain the value.
type CatchAllHook func(key string, value model.Scalar)

// Classifier is a stateless classifier with an optional diagnostic hook.
// The zero value is ready to use and safe for concurrent use.
type Classifier struct {
	onCatchAll CatchAllHook
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithCatchAllHook installs a diagnostic hook for unhandled numeric-looking values.
func WithCatchAllHook(h CatchAllHook) Option {
	return func(c *Classifier) { c.onCatchAll = h }
}

// New returns a Classifier with the given options applied.
func New(opts ...Option) Classifier {
	var c Classifier
	for _, o := range opts {
		o(&c)
	}
	return c
}

// Classify classifies with a hook-less Classifier.
func Classify(key string, value model.Scalar) (model.Type, error) {
	return Classifier{}.Classify(key, value)
}

// ClassifyRaw classifies a raw metric by the suffix of its key.
func (c Classifier) ClassifyRaw(m model.RawMetric) (model.Type, error) {
	return c.Classify(m.Suffix(), m.Value)
}

// Classify maps key and value to a metric type. First match wins:
//
//  1. bool         -> Switch(0|1), for any key
//  2. null         -> Null, for any key
//  3. byte key     -> Bytes(parseInt)
//  4. time key     -> Time(parseInt ms), unparsable values give Time(0)
//  5. number       -> Gauge when integral, GaugeF otherwise; label keys reject numbers
//  6. switch key   -> Switch of the value's bool reading (strings read false)
//  7. "data"       -> Gauge when it parses as int, Label otherwise
//  8. gauge key    -> Gauge(parseInt)
//  9. float key    -> GaugeF(parseFloat), "%" stripped
//  10. label key   -> Label
//  11. anything    -> Label, string values only
func (c Classifier) Classify(key string, value model.Scalar) (model.Type, error) {
	switch value.Kind() {
	case model.ScalarBool:
		return model.SwitchOf(value.AsBool()), nil
	case model.ScalarNull:
		return model.NullType(), nil
	}

	r := rules[key]

	switch r {
	case ruleBytes:
		n, err := parseInt(key, value)
		if err != nil {
			return model.Type{}, err
		}
		return model.Bytes(n), nil
	case ruleTime:
		// Time keys are lenient on purpose: noisy timestamp fields degrade to
		// a zero duration instead of dropping the sample. Byte and gauge keys
		// stay strict.
		n, err := parseInt(key, value)
		if err != nil {
			n = 0
		}
		return model.Time(n), nil
	}

	if r == ruleLabel && value.IsNumber() {
		// Label keys never carry samples; a number there is malformed input.
		return label(key, value)
	}
	if i, ok := value.AsInt(); ok {
		return model.Gauge(i), nil
	}
	if f, ok := value.AsFloat(); ok {
		return model.GaugeF(f), nil
	}

	switch r {
	case ruleSwitch:
		return model.SwitchOf(value.AsBool()), nil
	case ruleData:
		if n, err := parseInt(key, value); err == nil {
			return model.Gauge(n), nil
		}
		return label(key, value)
	case ruleGauge:
		n, err := parseInt(key, value)
		if err != nil {
			return model.Type{}, err
		}
		return model.Gauge(n), nil
	case ruleGaugeF:
		f, err := parseFloat(key, value)
		if err != nil {
			return model.Type{}, err
		}
		return model.GaugeF(f), nil
	case ruleLabel:
		return label(key, value)
	}

	if c.onCatchAll != nil {
		if s, ok := value.AsString(); ok {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(n, 10) == s {
				c.onCatchAll(key, value)
			}
		}
	}
	return label(key, value)
}

func label(key string, value model.Scalar) (model.Type, error) {
	s, ok := value.AsString()
	if !ok {
		return model.Type{}, newError(UnknownValue, key, value, nil)
	}
	return model.Label(s), nil
}

// parseInt accepts a native number (floats are truncated) or a base-10 numeric string.
func parseInt(key string, value model.Scalar) (int64, error) {
	if i, ok := value.AsInt(); ok {
		return i, nil
	}
	if f, ok := value.AsFloat(); ok {
		return int64(f), nil
	}
	s, ok := value.AsString()
	if !ok {
		return 0, newError(UnknownValue, key, value, nil)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, newError(ParseIntFailure, key, value, err)
	}
	return n, nil
}

// parseFloat accepts a native number or a numeric string with any "%" removed.
func parseFloat(key string, value model.Scalar) (float64, error) {
	if f, ok := value.AsFloat(); ok {
		return f, nil
	}
	s, ok := value.AsString()
	if !ok {
		return 0, newError(UnknownValue, key, value, nil)
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, "%", ""), 64)
	if err != nil {
		return 0, newError(ParseFloatFailure, key, value, err)
	}
	return f, nil
}
