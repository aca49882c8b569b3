package elastic

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/and161185/elasticsearch-exporter/model"
)

// ErrEmptyKey is returned when a scalar has no path to name it by.
var ErrEmptyKey = errors.New("flatten: scalar without key")

// Flatten turns a decoded JSON document into raw metrics of one row.
//
// Nested object keys are joined with "_" and dots inside keys become "_"
// ("node.total" -> "node_total"), so the last segment of every key is the
// token the classifier looks at. Arrays of scalars are joined into one
// comma-separated string and empty arrays are dropped. Arrays of objects get
// the element index as a path segment. Object keys are visited in sorted order.
func Flatten(v any, row int) ([]model.RawMetric, error) {
	var out []model.RawMetric
	if err := flattenInto(&out, "", v, row); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenInto(out *[]model.RawMetric, prefix string, v any, row int) error {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := flattenInto(out, join(prefix, normalizeKey(k)), t[k], row); err != nil {
				return err
			}
		}
		return nil
	case []any:
		if len(t) == 0 {
			return nil
		}
		if isScalarList(t) {
			if prefix == "" {
				return ErrEmptyKey
			}
			*out = append(*out, model.RawMetric{Key: prefix, Value: model.String(joinScalars(t)), Row: row})
			return nil
		}
		for i, item := range t {
			if err := flattenInto(out, join(prefix, fmt.Sprint(i)), item, row); err != nil {
				return err
			}
		}
		return nil
	}

	if prefix == "" {
		return ErrEmptyKey
	}
	s, err := model.ScalarFromJSON(v)
	if err != nil {
		return fmt.Errorf("flatten %s: %w", prefix, err)
	}
	*out = append(*out, model.RawMetric{Key: prefix, Value: s, Row: row})
	return nil
}

func normalizeKey(k string) string {
	return strings.ReplaceAll(k, ".", "_")
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "_" + key
}

func isScalarList(items []any) bool {
	for _, it := range items {
		switch it.(type) {
		case map[string]any, []any:
			return false
		}
	}
	return true
}

func joinScalars(items []any) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		parts = append(parts, fmt.Sprint(it))
	}
	return strings.Join(parts, ",")
}
