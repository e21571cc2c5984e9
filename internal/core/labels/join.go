package labels

import (
	"sort"

	"k8s.io/apimachinery/pkg/util/sets"
)

// =============================================================================
// Relation
// =============================================================================

// Relation maps each left key to the right keys it joined with.
// Left keys without any match are absent rather than mapped to an empty set.
type Relation map[string]sets.Set[string]

// Keys returns the left keys that joined with at least one right key.
func (r Relation) Keys() sets.Set[string] {
	return sets.KeySet(r)
}

// Values returns every right key that joined with some left key.
func (r Relation) Values() sets.Set[string] {
	all := sets.New[string]()
	for _, matched := range r {
		all.Insert(matched.UnsortedList()...)
	}
	return all
}

// SortedKeys returns the left keys in ascending order.
func (r Relation) SortedKeys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// =============================================================================
// Join
// =============================================================================

// Join relates the entities of a left collection to those of a right one.
// Two entities match when their join values overlap. When no join field is
// given for a side, the entity key is that side's only join value.
type Join struct {
	left      Collection
	leftField string
}

// NewJoin prepares a join with left as the driving collection.
func NewJoin(left Collection, field string) *Join {
	return &Join{left: left, leftField: field}
}

// Match joins the left collection against right.
//
// Example:
//
//	hosts := Collection{"web-1": {"packages": []any{"nginx"}}}
//	pkgs := FromKeys(sets.New("nginx", "redis"))
//	rel, _ := NewJoin(hosts, "packages").Match(pkgs, "")
//	// rel: {"web-1": {"nginx"}}
func (j *Join) Match(right Collection, field string) (Relation, error) {
	// value -> right keys carrying it
	byValue := make(map[string]sets.Set[string])
	for key, record := range right {
		values, err := joinValues(key, record, field)
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			if byValue[v] == nil {
				byValue[v] = sets.New[string]()
			}
			byValue[v].Insert(key)
		}
	}

	result := make(Relation)
	for key, record := range j.left {
		values, err := joinValues(key, record, j.leftField)
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			matched, ok := byValue[v]
			if !ok {
				continue
			}
			if result[key] == nil {
				result[key] = sets.New[string]()
			}
			result[key].Insert(matched.UnsortedList()...)
		}
	}

	return result, nil
}

func joinValues(key string, record Record, field string) ([]string, error) {
	if field == "" {
		return []string{key}, nil
	}
	raw, ok := record[field]
	if !ok {
		return nil, &MissingJoinFieldError{Key: key, Field: field}
	}
	return asStrings(raw), nil
}
