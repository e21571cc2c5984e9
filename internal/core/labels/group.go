package labels

import (
	"k8s.io/apimachinery/pkg/util/sets"
)

// =============================================================================
// Group
// =============================================================================

// Group partitions a collection by the value of a single label.
type Group struct {
	source   Collection
	labelsOf labelFunc
}

// NewGroup creates a Group over source. Labels are read the same way a
// Matcher reads them.
func NewGroup(source Collection, opts ...Option) *Group {
	o := newOptions(opts)
	return &Group{source: source, labelsOf: labelsAt(o.labelField)}
}

// By returns the entity keys bucketed by their value for label.
// Every entity must carry the label; the first one that does not fails the
// whole grouping with a *MissingLabelError.
//
// Example:
//
//	waves, err := NewGroup(hosts).By("pogo.deploy.stage")
//	// waves: {"0": {"web-1", "web-2"}, "1": {"web-3"}}
func (g *Group) By(label string) (map[string]sets.Set[string], error) {
	result := make(map[string]sets.Set[string])
	for _, key := range sets.List(g.source.Keys()) {
		raw, ok := g.labelsOf(g.source[key])[label]
		if !ok {
			return nil, &MissingLabelError{Key: key, Label: label}
		}
		value, ok := Canonical(raw)
		if !ok {
			return nil, &MissingLabelError{Key: key, Label: label}
		}
		if result[value] == nil {
			result[value] = sets.New[string]()
		}
		result[value].Insert(key)
	}
	return result, nil
}
