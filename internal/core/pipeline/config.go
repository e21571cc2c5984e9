package pipeline

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/artpar/deploy-pipeline/internal/core/labels"
)

// =============================================================================
// Config Types
// =============================================================================

// Selectors holds the structured host and package selectors of a pipeline or job.
type Selectors struct {
	Host    []map[string]any
	Package []map[string]any
}

// JobConfig is a validated job entry of the pipeline file.
type JobConfig struct {
	Name      string
	Phase     string
	VarKey    string
	Template  string
	Selectors Selectors
}

// Config is a validated pipeline file.
type Config struct {
	Phases         []string
	Template       string
	Includes       []string
	HostOrderLabel string
	Selectors      Selectors
	Jobs           []JobConfig // file order, or name order without WithJobOrder
}

// ConfigOption configures ValidateConfig.
type ConfigOption func(*configOptions)

type configOptions struct {
	jobOrder []string
}

// WithJobOrder lists job names in the order they appear in the pipeline
// file. A decoded map has no order of its own; jobs missing from names
// follow in name order.
func WithJobOrder(names []string) ConfigOption {
	return func(o *configOptions) {
		o.jobOrder = names
	}
}

// =============================================================================
// Validation
// =============================================================================

var (
	rootKeys     = map[string]bool{"phases": true, "template": true, "includes": false, "selectors": false, "host_order_label": true, "jobs": true}
	jobKeys      = map[string]bool{"phase": true, "var_key": true, "template": true, "selectors": true}
	selectorKeys = map[string]bool{"host": false, "package": false}
)

// ValidateConfig checks the structure of a decoded pipeline file and converts
// it into a Config. It never touches the filesystem; template paths are
// returned as written.
//
// Keys starting with "." are ignored so the file can hold YAML anchors.
// Errors are *ValidationError values whose Path names the offending node.
func ValidateConfig(raw map[string]any, opts ...ConfigOption) (*Config, error) {
	var options configOptions
	for _, opt := range opts {
		opt(&options)
	}
	path := []string{RootPath}

	if missing := missingKeys(rootKeys, raw); len(missing) > 0 {
		return nil, newValidationError(KindRoot, path, "Missing Required Key(s): "+strings.Join(missing, ","), nil)
	}

	cfg := &Config{}

	phases, ok := raw["phases"].([]any)
	if !ok {
		return nil, newValidationError(KindRoot, path, "Invalid phases Key: List is Required", nil)
	}
	for _, p := range phases {
		name, ok := labels.Canonical(p)
		if !ok || name == "" {
			return nil, newValidationError(KindRoot, subPath(path, "phases"), fmt.Sprintf("Invalid Phase: %v", p), nil)
		}
		cfg.Phases = append(cfg.Phases, name)
	}

	var err error
	if cfg.Template, err = requireString(raw, "template", KindRoot, path); err != nil {
		return nil, err
	}
	if cfg.HostOrderLabel, err = requireString(raw, "host_order_label", KindRoot, path); err != nil {
		return nil, err
	}

	if includes, ok := raw["includes"]; ok && includes != nil {
		list, ok := includes.([]any)
		if !ok {
			return nil, newValidationError(KindRoot, path, "Invalid includes Key: List is Required", nil)
		}
		for _, inc := range list {
			s, ok := inc.(string)
			if !ok || s == "" {
				return nil, newValidationError(KindRoot, subPath(path, "includes"), fmt.Sprintf("Invalid Include: %v", inc), nil)
			}
			cfg.Includes = append(cfg.Includes, s)
		}
	}

	if selectors, ok := raw["selectors"]; ok && selectors != nil {
		if cfg.Selectors, err = validateSelectors(selectors, subPath(path, "selectors")); err != nil {
			return nil, err
		}
	}

	if cfg.Jobs, err = validateJobs(raw["jobs"], options.jobOrder, subPath(path, "jobs")); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validateJobs(raw any, order []string, path []string) ([]JobConfig, error) {
	jobs, ok := toMap(raw)
	if !ok {
		return nil, newValidationError(KindJob, path, "Invalid Key: Dict is Required", nil)
	}

	seen := make(map[string]bool, len(jobs))
	names := make([]string, 0, len(jobs))
	for _, name := range order {
		if _, ok := jobs[name]; ok && !seen[name] && !strings.HasPrefix(name, ".") {
			seen[name] = true
			names = append(names, name)
		}
	}
	var rest []string
	for name := range jobs {
		if !seen[name] && !strings.HasPrefix(name, ".") {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	names = append(names, rest...)

	result := make([]JobConfig, 0, len(names))
	for _, name := range names {
		job, err := validateJob(name, jobs[name], subPath(path, name))
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	return result, nil
}

func validateJob(name string, raw any, path []string) (JobConfig, error) {
	job, ok := toMap(raw)
	if !ok {
		return JobConfig{}, newValidationError(KindJob, path, "Invalid Job: Dict is Required", nil)
	}
	if missing := missingKeys(jobKeys, job); len(missing) > 0 {
		return JobConfig{}, newValidationError(KindJob, path, "Missing Job Key(s): "+strings.Join(missing, ", "), nil)
	}

	// Phases may be written as numbers, like the phases list.
	phase, ok := labels.Canonical(job["phase"])
	if !ok || phase == "" {
		return JobConfig{}, newValidationError(KindJob, path, fmt.Sprintf("Invalid Phase: %v", job["phase"]), nil)
	}

	cfg := JobConfig{Name: name, Phase: phase}
	var err error
	if cfg.Template, err = requireString(job, "template", KindJob, path); err != nil {
		return JobConfig{}, err
	}
	// var_key may be null, meaning the job sees no variables.
	cfg.VarKey, _ = labels.Canonical(job["var_key"])

	if cfg.Selectors, err = validateSelectors(job["selectors"], subPath(path, "selectors")); err != nil {
		return JobConfig{}, err
	}
	return cfg, nil
}

func validateSelectors(raw any, path []string) (Selectors, error) {
	selectors, ok := toMap(raw)
	if !ok {
		return Selectors{}, newValidationError(KindSelector, path, "Invalid Selectors: Dict is Required", nil)
	}

	kinds := make([]string, 0, len(selectors))
	for kind := range selectors {
		if !strings.HasPrefix(kind, ".") {
			kinds = append(kinds, kind)
		}
	}
	sort.Strings(kinds)

	var result Selectors
	for _, kind := range kinds {
		value := selectors[kind]
		if _, known := selectorKeys[kind]; !known {
			return Selectors{}, newValidationError(KindSelector, path, fmt.Sprintf("Unknown Selector Type: %s", kind), nil)
		}

		var list []any
		if value != nil {
			if list, ok = value.([]any); !ok {
				return Selectors{}, newValidationError(KindSelector, path, fmt.Sprintf("Invalid Selector: Expected '%s' List", kind), nil)
			}
		}

		objs := make([]map[string]any, 0, len(list))
		for i, item := range list {
			obj, err := validateFormedSelector(item, subPath(subPath(path, kind), strconv.Itoa(i)))
			if err != nil {
				return Selectors{}, err
			}
			objs = append(objs, obj)
		}

		if kind == "host" {
			result.Host = objs
		} else {
			result.Package = objs
		}
	}
	return result, nil
}

func validateFormedSelector(raw any, path []string) (map[string]any, error) {
	obj, ok := toMap(raw)
	if !ok {
		return nil, newValidationError(KindSelector, path, fmt.Sprintf("Malformed Selector: %v", raw), labels.ErrMalformedSelector)
	}
	if _, err := labels.QueryFromObject(obj); err != nil {
		return nil, newValidationError(KindSelector, path, fmt.Sprintf("Malformed Selector: %v", raw), err)
	}
	return obj, nil
}

// =============================================================================
// Helpers
// =============================================================================

// subPath extends path without sharing its backing array.
func subPath(path []string, key string) []string {
	return append(slices.Clip(path), key)
}

// missingKeys returns the sorted required keys absent from present.
func missingKeys(level map[string]bool, present map[string]any) []string {
	var missing []string
	for key, required := range level {
		if _, ok := present[key]; required && !ok {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}

func requireString(m map[string]any, key string, kind ValidationKind, path []string) (string, error) {
	s, ok := m[key].(string)
	if !ok || s == "" {
		return "", newValidationError(kind, path, fmt.Sprintf("Invalid %s Key: String is Required", key), nil)
	}
	return s, nil
}

func toMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
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
