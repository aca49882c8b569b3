// Package model contains core data types for the project.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Kind defines the semantic kind of a classified metric.
type Kind uint8

const (
	KindNull   Kind = iota // KindNull marks an explicit absence of value.
	KindTime               // KindTime is a duration stored in milliseconds.
	KindBytes              // KindBytes is a byte count.
	KindGauge              // KindGauge is an integer point-in-time value.
	KindGaugeF             // KindGaugeF is a floating point-in-time value.
	KindSwitch             // KindSwitch is a boolean encoded as 0 or 1.
	KindLabel              // KindLabel is a descriptive value that becomes a label.
)

var kindNames = [...]string{
	KindNull:   "null",
	KindTime:   "time",
	KindBytes:  "bytes",
	KindGauge:  "gauge",
	KindGaugeF: "gauge_f",
	KindSwitch: "switch",
	KindLabel:  "label",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Type is the typed result of classifying one raw metric.
// Only the field matching Kind is meaningful.
type Type struct {
	Kind     Kind
	Duration time.Duration // Time
	Int      int64         // Bytes, Gauge, Switch
	Float    float64       // GaugeF
	Text     string        // Label
}

// Time builds a Time metric from a millisecond count.
func Time(millis int64) Type {
	return Type{Kind: KindTime, Duration: time.Duration(millis) * time.Millisecond}
}

// Bytes builds a byte-count metric.
func Bytes(n int64) Type { return Type{Kind: KindBytes, Int: n} }

// Gauge builds an integer gauge.
func Gauge(n int64) Type { return Type{Kind: KindGauge, Int: n} }

// GaugeF builds a float gauge.
func GaugeF(f float64) Type { return Type{Kind: KindGaugeF, Float: f} }

// Switch builds a switch metric; any non-zero v is stored as 1.
func Switch(v uint8) Type {
	if v != 0 {
		v = 1
	}
	return Type{Kind: KindSwitch, Int: int64(v)}
}

// SwitchOf builds a switch metric from a bool.
func SwitchOf(on bool) Type {
	if on {
		return Switch(1)
	}
	return Switch(0)
}

// Label builds a label metric.
func Label(s string) Type { return Type{Kind: KindLabel, Text: s} }

// NullType builds the null marker.
func NullType() Type { return Type{Kind: KindNull} }

// Sample returns the exported sample value. Time is exported as float seconds.
// Label and Null carry no sample value and report false.
func (t Type) Sample() (float64, bool) {
	switch t.Kind {
	case KindTime:
		return t.Duration.Seconds(), true
	case KindBytes, KindGauge, KindSwitch:
		return float64(t.Int), true
	case KindGaugeF:
		return t.Float, true
	default:
		return 0, false
	}
}

func (t Type) String() string {
	switch t.Kind {
	case KindTime:
		return fmt.Sprintf("Time(%s)", t.Duration)
	case KindBytes:
		return fmt.Sprintf("Bytes(%d)", t.Int)
	case KindGauge:
		return fmt.Sprintf("Gauge(%d)", t.Int)
	case KindGaugeF:
		return fmt.Sprintf("GaugeF(%v)", t.Float)
	case KindSwitch:
		return fmt.Sprintf("Switch(%d)", t.Int)
	case KindLabel:
		return fmt.Sprintf("Label(%q)", t.Text)
	default:
		return "Null"
	}
}

// RawMetric is one flattened leaf of upstream telemetry.
type RawMetric struct {
	Key   string `json:"key"`   // Flattened leaf name, e.g. jvm_mem_heap_used_in_bytes.
	Value Scalar `json:"value"` // Leaf value.
	Row   int    `json:"row"`   // Upstream record the leaf belongs to.
}

// Suffix returns the last underscore-separated segment of the key.
// It is the token the classifier dispatches on.
func (m RawMetric) Suffix() string {
	if i := strings.LastIndexByte(m.Key, '_'); i >= 0 && i < len(m.Key)-1 {
		return m.Key[i+1:]
	}
	return m.Key
}

// Sample is a classified metric handed to a sink.
type Sample struct {
	Key  string
	Row  int
	Type Type
}

// SubsystemConfig holds the per-subsystem polling and labeling settings.
type SubsystemConfig struct {
	PollInterval  time.Duration       // Zero means the process-wide default.
	SkipLabels    map[string]struct{} // Labels dropped from every series.
	SkipMetrics   map[string]struct{} // Metric keys never exported.
	IncludeLabels map[string]struct{} // When non-empty, the only labels kept.
	ConstLabels   map[string]string   // Labels added to every series.
}

// Set builds a lookup set from a list, ignoring blank entries.
func Set(items ...string) map[string]struct{} {
	res := make(map[string]struct{}, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		res[it] = struct{}{}
	}
	return res
}
