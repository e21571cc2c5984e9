// Package vars merges template variables from their layered sources.
//
// Variables come from JSON files, then "key=value" arguments, then
// environment variables carrying EnvPrefix; later layers win. All functions
// are pure and return a new map instead of modifying their input.
package vars

import (
	"errors"
	"fmt"
	"maps"
	"strings"
)

// EnvPrefix marks environment variables that become template variables.
const EnvPrefix = "DEPLOY_VAR_"

// ErrInvalidVar is returned for a variable argument without "=".
var ErrInvalidVar = errors.New("invalid variable, expected key=value")

// Vars is the merged variable tree handed to templates.
type Vars map[string]any

// With returns a copy of base overlaid with layer. Keys are replaced whole;
// nested maps are not merged.
func With(base Vars, layer map[string]any) Vars {
	result := make(Vars, len(base)+len(layer))
	maps.Copy(result, base)
	maps.Copy(result, layer)
	return result
}

// WithArg overlays a single "key=value" argument, split on the first "=".
func WithArg(base Vars, arg string) (Vars, error) {
	key, value, ok := strings.Cut(arg, "=")
	if !ok || key == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVar, arg)
	}
	return With(base, map[string]any{key: value}), nil
}

// WithEnviron overlays every "NAME=value" entry of environ whose name starts
// with EnvPrefix, with the prefix removed. Entries are applied in order.
func WithEnviron(base Vars, environ []string) Vars {
	layer := make(map[string]any)
	for _, entry := range environ {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		if key := strings.TrimPrefix(name, EnvPrefix); key != "" {
			layer[key] = value
		}
	}
	return With(base, layer)
}

// Lookup returns the value stored under key, or an empty map when there is none.
func (v Vars) Lookup(key string) any {
	if value, ok := v[key]; ok && key != "" {
		return value
	}
	return map[string]any{}
}
