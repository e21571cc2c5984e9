package labels

import (
	"fmt"
	"strconv"

	"k8s.io/apimachinery/pkg/util/sets"
)

// DefaultLabelField is the record field labels are nested under.
const DefaultLabelField = "labels"

// =============================================================================
// Record Types
// =============================================================================

// Record is a single host or package as decoded from configuration.
// Everything except the label field is opaque to this package.
type Record map[string]any

// Collection maps a unique entity key to its record.
type Collection map[string]Record

// Keys returns the key set of the collection.
func (c Collection) Keys() sets.Set[string] {
	return sets.KeySet(c)
}

// labelFunc extracts the raw labels of a record.
type labelFunc func(Record) map[string]any

// labelsAt returns the accessor for labels nested under field.
// An empty field means the record itself holds the labels.
func labelsAt(field string) labelFunc {
	if field == "" {
		return func(r Record) map[string]any {
			return r
		}
	}
	return func(r Record) map[string]any {
		m, _ := asMap(r[field])
		return m
	}
}

// =============================================================================
// Options
// =============================================================================

type options struct {
	labelField string
}

// Option configures how a Matcher or Group reads labels.
type Option func(*options)

// WithLabelField reads labels from the named record field.
func WithLabelField(field string) Option {
	return func(o *options) {
		o.labelField = field
	}
}

// WithoutLabelField treats the whole record as its label map.
func WithoutLabelField() Option {
	return WithLabelField("")
}

func newOptions(opts []Option) options {
	o := options{labelField: DefaultLabelField}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// =============================================================================
// Projection Helpers
// =============================================================================

// WithData projects a key set back onto the records of source.
// Keys missing from source are skipped.
func WithData(keys sets.Set[string], source Collection) Collection {
	result := make(Collection, keys.Len())
	for k := range keys {
		if r, ok := source[k]; ok {
			result[k] = r
		}
	}
	return result
}

// FromKeys builds a collection with empty records, for joining on keys alone.
func FromKeys(keys sets.Set[string]) Collection {
	result := make(Collection, keys.Len())
	for k := range keys {
		result[k] = Record{}
	}
	return result
}

// =============================================================================
// Value Conversion
// =============================================================================

// Canonical returns the string form used to compare label values.
// The boolean is false for values that cannot be compared exactly
// (nil, lists and maps).
func Canonical(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case []any, []string, map[string]any, map[any]any, Record:
		return "", false
	default:
		return fmt.Sprint(t), true
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case Record:
		return m, true
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// asStrings converts a list (or a single scalar) into canonical strings.
func asStrings(v any) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			if s, ok := Canonical(item); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		if s, ok := Canonical(l); ok {
			return []string{s}
		}
		return nil
	}
}
