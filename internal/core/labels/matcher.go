package labels

import (
	"sort"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

// =============================================================================
// Inverted Index
// =============================================================================

// index maps label keys, and label key/value pairs, to entity keys.
type index struct {
	exists map[string]sets.Set[string]
	values map[string]map[string]sets.Set[string]
}

func buildIndex(source Collection, labelsOf labelFunc) *index {
	idx := &index{
		exists: make(map[string]sets.Set[string]),
		values: make(map[string]map[string]sets.Set[string]),
	}

	for key, record := range source {
		for label, raw := range labelsOf(record) {
			if idx.exists[label] == nil {
				idx.exists[label] = sets.New[string]()
			}
			idx.exists[label].Insert(key)

			value, ok := Canonical(raw)
			if !ok {
				continue
			}
			byValue := idx.values[label]
			if byValue == nil {
				byValue = make(map[string]sets.Set[string])
				idx.values[label] = byValue
			}
			if byValue[value] == nil {
				byValue[value] = sets.New[string]()
			}
			byValue[value].Insert(key)
		}
	}

	return idx
}

// lookup returns the entity keys a query refers to, before applying its operator.
func (idx *index) lookup(q Query) sets.Set[string] {
	switch q.Operator {
	case In, NotIn:
		found := sets.New[string]()
		byValue := idx.values[q.Key]
		for _, v := range q.Values {
			found = found.Union(byValue[v])
		}
		return found
	default:
		if found, ok := idx.exists[q.Key]; ok {
			return found
		}
		return sets.New[string]()
	}
}

// =============================================================================
// Matcher
// =============================================================================

// Matcher evaluates the conjunction of label queries over a collection.
// The index is built on the first call to Match and reused afterwards.
type Matcher struct {
	source   Collection
	labelsOf labelFunc
	queries  map[string]Query
	idx      *index
}

// NewMatcher creates a Matcher over source. Labels are read from the
// "labels" field unless an Option says otherwise.
func NewMatcher(source Collection, opts ...Option) *Matcher {
	o := newOptions(opts)
	return &Matcher{
		source:   source,
		labelsOf: labelsAt(o.labelField),
		queries:  make(map[string]Query),
	}
}

// Add accumulates queries. Structurally equal queries collapse into one.
func (m *Matcher) Add(queries ...Query) *Matcher {
	for _, q := range queries {
		m.queries[queryID(q)] = q
	}
	return m
}

// Queries returns the accumulated queries in evaluation order.
func (m *Matcher) Queries() []Query {
	ids := make([]string, 0, len(m.queries))
	for id := range m.queries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	queries := make([]Query, 0, len(ids))
	for _, id := range ids {
		queries = append(queries, m.queries[id])
	}
	return queries
}

// Match returns the keys of every entity satisfying all queries.
// With no queries every key matches.
func (m *Matcher) Match() sets.Set[string] {
	if m.idx == nil {
		m.idx = buildIndex(m.source, m.labelsOf)
	}

	matched := m.source.Keys()
	for _, q := range m.Queries() {
		// Nothing left to narrow; later queries can only keep it empty.
		if matched.Len() == 0 {
			break
		}

		found := m.idx.lookup(q)
		if q.Operator.subtracts() {
			matched = matched.Difference(found)
		} else {
			matched = matched.Intersection(found)
		}
	}

	return matched
}

// queryID is a structural identity for a query. It also fixes evaluation order.
func queryID(q Query) string {
	return strings.Join(append([]string{q.Key, q.Operator.String()}, q.Values...), "\x00")
}
