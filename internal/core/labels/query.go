package labels

import (
	"fmt"
	"slices"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

// =============================================================================
// Operator
// =============================================================================

// Operator is the predicate a Query applies to its label key.
type Operator int

const (
	In Operator = iota + 1
	NotIn
	Exists
	DoesNotExist
)

var operatorNames = map[string]Operator{
	"In":           In,
	"NotIn":        NotIn,
	"Exists":       Exists,
	"DoesNotExist": DoesNotExist,
}

// ParseOperator looks an operator up by its name.
func ParseOperator(name string) (Operator, error) {
	op, ok := operatorNames[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownOperator, name)
	}
	return op, nil
}

func (o Operator) String() string {
	switch o {
	case In:
		return "In"
	case NotIn:
		return "NotIn"
	case Exists:
		return "Exists"
	case DoesNotExist:
		return "DoesNotExist"
	default:
		return fmt.Sprintf("Operator(%d)", int(o))
	}
}

// subtracts reports whether the operator removes its found set from the match.
func (o Operator) subtracts() bool {
	return o == NotIn || o == DoesNotExist
}

// =============================================================================
// Query
// =============================================================================

// Query is an immutable predicate over a single label key.
// Values are sorted and deduplicated, and always empty for Exists and DoesNotExist.
type Query struct {
	Key      string
	Operator Operator
	Values   []string
}

// NewQuery builds a Query with canonical values.
func NewQuery(key string, op Operator, values ...string) Query {
	q := Query{Key: key, Operator: op}
	if op == In || op == NotIn {
		q.Values = sets.List(sets.New(values...))
	}
	return q
}

// Equal reports structural equality.
func (q Query) Equal(other Query) bool {
	return q.Key == other.Key && q.Operator == other.Operator && slices.Equal(q.Values, other.Values)
}

// String renders the query in the compact selector grammar.
func (q Query) String() string {
	switch q.Operator {
	case In:
		return fmt.Sprintf("%s in (%s)", q.Key, strings.Join(q.Values, ", "))
	case NotIn:
		return fmt.Sprintf("%s notin (%s)", q.Key, strings.Join(q.Values, ", "))
	case DoesNotExist:
		return "!" + q.Key
	default:
		return q.Key
	}
}

// =============================================================================
// Query Parsing
// =============================================================================

// ParseQuery parses the compact selector grammar. The first matching form wins:
//
//	key!=value          NotIn with one value
//	key=value           In with one value
//	key in (v1, v2)     In
//	key notin (v1, v2)  NotIn
//	!key                DoesNotExist
//	key                 Exists
func ParseQuery(s string) (Query, error) {
	var q Query
	switch {
	case strings.Contains(s, "!="):
		key, value, _ := strings.Cut(s, "!=")
		q = NewQuery(strings.TrimSpace(key), NotIn, strings.TrimSpace(value))
	case strings.Contains(s, "="):
		key, value, _ := strings.Cut(s, "=")
		q = NewQuery(strings.TrimSpace(key), In, strings.TrimSpace(value))
	case strings.Contains(s, " in ("):
		key, values, _ := strings.Cut(s, " in (")
		q = NewQuery(strings.TrimSpace(key), In, splitValues(values)...)
	case strings.Contains(s, " notin ("):
		key, values, _ := strings.Cut(s, " notin (")
		q = NewQuery(strings.TrimSpace(key), NotIn, splitValues(values)...)
	case strings.HasPrefix(s, "!"):
		q = NewQuery(strings.TrimSpace(s[1:]), DoesNotExist)
	default:
		q = NewQuery(strings.TrimSpace(s), Exists)
	}

	if q.Key == "" {
		return Query{}, fmt.Errorf("%w: %q", ErrEmptySelector, s)
	}
	return q, nil
}

// ParseQueries parses every selector, stopping at the first error.
func ParseQueries(selectors []string) ([]Query, error) {
	queries := make([]Query, 0, len(selectors))
	for _, s := range selectors {
		q, err := ParseQuery(s)
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	return queries, nil
}

func splitValues(s string) []string {
	s = strings.TrimRight(strings.TrimSpace(s), ")")
	parts := strings.Split(s, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		values = append(values, strings.TrimSpace(p))
	}
	return values
}

// QueryFromObject builds a Query from a structured selector such as
//
//	{key: pogo.deploy.environment, operator: NotIn, values: [prod-aws]}
//
// A missing key or operator is a *SelectorError wrapping ErrMalformedSelector.
func QueryFromObject(obj map[string]any) (Query, error) {
	rawKey, ok := obj["key"]
	if !ok {
		return Query{}, &SelectorError{Field: "key", Err: ErrMalformedSelector}
	}
	key, ok := Canonical(rawKey)
	if !ok || key == "" {
		return Query{}, &SelectorError{Field: "key", Value: rawKey, Err: ErrMalformedSelector}
	}

	rawOp, ok := obj["operator"]
	if !ok {
		return Query{}, &SelectorError{Field: "operator", Err: ErrMalformedSelector}
	}
	name, _ := rawOp.(string)
	op, err := ParseOperator(name)
	if err != nil {
		return Query{}, &SelectorError{Field: "operator", Value: rawOp, Err: ErrUnknownOperator}
	}

	return NewQuery(key, op, asStrings(obj["values"])...), nil
}

// QueriesFromObjects converts a list of structured selectors.
func QueriesFromObjects(objs []map[string]any) ([]Query, error) {
	queries := make([]Query, 0, len(objs))
	for _, obj := range objs {
		q, err := QueryFromObject(obj)
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	return queries, nil
}
