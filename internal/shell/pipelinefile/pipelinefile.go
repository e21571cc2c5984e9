// Package pipelinefile reads pipeline definitions from disk.
// This is part of the Imperative Shell - it decodes the YAML file, runs the
// pure structural validation and checks that referenced templates exist.
package pipelinefile

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/artpar/deploy-pipeline/internal/core/pipeline"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrReadFailed is returned when the pipeline file cannot be read.
	ErrReadFailed = errors.New("failed to read pipeline file")

	// ErrInvalidYAML is returned when the pipeline file is not a YAML mapping.
	ErrInvalidYAML = errors.New("invalid pipeline YAML")

	// ErrFileNotFound is returned when a referenced template or include does not exist.
	ErrFileNotFound = errors.New("file not found")
)

// =============================================================================
// Loader
// =============================================================================

// Loader reads pipeline files. Relative template paths are resolved against
// BaseDir, or the working directory when BaseDir is empty.
type Loader struct {
	BaseDir string
	logger  *slog.Logger
}

// NewLoader creates a new Loader.
func NewLoader(baseDir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{BaseDir: baseDir, logger: logger}
}

// Load reads, validates and loads the pipeline file at path.
// The returned Config carries absolute template and include paths.
func (l *Loader) Load(path string) (*pipeline.Config, *pipeline.Pipeline, error) {
	l.logger.Info("parsing pipeline file", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if raw == nil {
		raw = make(map[string]any)
	}

	cfg, err := pipeline.ValidateConfig(raw, pipeline.WithJobOrder(jobOrder(data)))
	if err != nil {
		return nil, nil, err
	}
	if err := l.resolvePaths(cfg); err != nil {
		return nil, nil, err
	}

	p, err := pipeline.Load(cfg)
	if err != nil {
		return nil, nil, err
	}

	l.logger.Debug("pipeline loaded",
		"phases", len(cfg.Phases),
		"jobs", len(cfg.Jobs),
		"host_order_label", cfg.HostOrderLabel,
	)
	return cfg, p, nil
}

// jobOrder returns the keys of the top-level jobs mapping in file order.
// It returns nil when the document has no such mapping.
func jobOrder(data []byte) []string {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil
	}
	root := resolveAlias(&doc)
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = resolveAlias(root.Content[0])
	}
	if root.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "jobs" {
			continue
		}
		jobs := resolveAlias(root.Content[i+1])
		if jobs.Kind != yaml.MappingNode {
			return nil
		}
		var names []string
		for j := 0; j+1 < len(jobs.Content); j += 2 {
			// Merge keys pull in jobs defined elsewhere; those fall back to
			// name order.
			if key := jobs.Content[j]; key.Value != "<<" {
				names = append(names, key.Value)
			}
		}
		return names
	}
	return nil
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func (l *Loader) resolvePaths(cfg *pipeline.Config) error {
	root := []string{pipeline.RootPath}

	var err error
	if cfg.Template, err = l.fullPath(cfg.Template, pipeline.KindRoot, append(root, "template")); err != nil {
		return err
	}
	for i, inc := range cfg.Includes {
		if cfg.Includes[i], err = l.fullPath(inc, pipeline.KindRoot, append(root, "includes")); err != nil {
			return err
		}
	}
	for i := range cfg.Jobs {
		job := &cfg.Jobs[i]
		path := []string{pipeline.RootPath, "jobs", job.Name, "template"}
		if job.Template, err = l.fullPath(job.Template, pipeline.KindJob, path); err != nil {
			return err
		}
	}
	return nil
}

// fullPath returns the absolute, symlink-free form of an existing file.
func (l *Loader) fullPath(path string, kind pipeline.ValidationKind, at []string) (string, error) {
	if !filepath.IsAbs(path) && l.BaseDir != "" {
		path = filepath.Join(l.BaseDir, path)
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		abs, err = filepath.EvalSymlinks(abs)
	}
	if err != nil {
		return "", &pipeline.ValidationError{
			Kind:    kind,
			Path:    at,
			Message: fmt.Sprintf("Invalid Path: %s", path),
			Err:     ErrFileNotFound,
		}
	}
	return abs, nil
}
