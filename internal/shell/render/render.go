// Package render turns a resolved pipeline into its text output.
// This is part of the Imperative Shell - it reads template files from disk,
// executes them with text/template and writes the result.
//
// Job templates are executed once per target with:
//
//	.stagename  stage name, e.g. "0-deploy"
//	.jobname    job name
//	.hostname   target host
//	.packages   sorted package names for the host
//	.vars       the variables stored under the job's var_key
//
// The pipeline template is executed once with:
//
//	.stages     ordered stage names
//	.includes   include file paths
//	.jobs       rendered job snippets in stage order
//	.vars       all variables
//
// A template that references a missing variable, e.g. {{ .vars.port }}
// without a port, fails instead of printing "<no value>". Optional values
// are written as {{ default "8080" (index .vars "port") }}.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/artpar/deploy-pipeline/internal/core/pipeline"
	"github.com/artpar/deploy-pipeline/internal/core/resolve"
	"github.com/artpar/deploy-pipeline/internal/core/vars"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrTemplateParse is returned when a template file cannot be read or parsed.
	ErrTemplateParse = errors.New("failed to parse template")

	// ErrTemplateExecute is returned when a template fails during execution.
	ErrTemplateExecute = errors.New("failed to execute template")

	// ErrWriteFailed is returned when the rendered output cannot be written.
	ErrWriteFailed = errors.New("failed to write output")
)

// =============================================================================
// Template Functions
// =============================================================================

// Funcs returns the functions available to every template: the sprig
// text functions plus toYaml.
func Funcs() template.FuncMap {
	funcs := sprig.TxtFuncMap()
	funcs["toYaml"] = func(v any) (string, error) {
		out, err := yaml.Marshal(v)
		if err != nil {
			return "", err
		}
		return strings.TrimSuffix(string(out), "\n"), nil
	}
	return funcs
}

// =============================================================================
// Renderer
// =============================================================================

// Renderer loads and executes templates. Parsed templates are cached by path.
type Renderer struct {
	templates map[string]*template.Template
	logger    *slog.Logger
}

// NewRenderer creates a new Renderer.
func NewRenderer(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		templates: make(map[string]*template.Template),
		logger:    logger,
	}
}

// Template returns the parsed template at path. Referencing a missing map
// key is an execution error; use index with default for optional values.
func (r *Renderer) Template(path string) (*template.Template, error) {
	if tpl, ok := r.templates[path]; ok {
		return tpl, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}
	tpl, err := template.New(filepath.Base(path)).
		Option("missingkey=error").
		Funcs(Funcs()).
		Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	r.templates[path] = tpl
	return tpl, nil
}

// JobData builds the template data for one job target.
func JobData(jr resolve.JobResult, target resolve.Target, v vars.Vars) map[string]any {
	return map[string]any{
		"stagename": jr.Name,
		"jobname":   jr.Job.Name,
		"hostname":  target.Host,
		"packages":  target.Packages,
		"vars":      v.Lookup(jr.Job.VarKey),
	}
}

// RenderJob executes the job template once per target, in host order.
// A job without targets renders nothing.
func (r *Renderer) RenderJob(jr resolve.JobResult, v vars.Vars) ([]string, error) {
	if len(jr.Targets) == 0 {
		r.logger.Info("no matched targets", "stage", jr.Name, "job", jr.Job.Name)
		return nil, nil
	}

	tpl, err := r.Template(jr.Job.Template)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", jr.Job.Name, err)
	}

	out := make([]string, 0, len(jr.Targets))
	for _, target := range jr.Targets {
		r.logger.Info("rendering job template",
			"stage", jr.Name,
			"job", jr.Job.Name,
			"host", target.Host,
			"packages", strings.Join(target.Packages, ", "),
		)
		s, err := execute(tpl, JobData(jr, target, v))
		if err != nil {
			return nil, fmt.Errorf("job %s host %s: %w", jr.Job.Name, target.Host, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// RenderPipeline renders every job and then the pipeline template.
// The result has surrounding whitespace removed.
func (r *Renderer) RenderPipeline(p *pipeline.Pipeline, result *resolve.Result, v vars.Vars) (string, error) {
	jobs := []string{}
	for _, jr := range result.Jobs {
		rendered, err := r.RenderJob(jr, v)
		if err != nil {
			return "", err
		}
		jobs = append(jobs, rendered...)
	}

	tpl, err := r.Template(p.Template)
	if err != nil {
		return "", fmt.Errorf("pipeline: %w", err)
	}

	includes := p.Includes
	if includes == nil {
		includes = []string{}
	}
	s, err := execute(tpl, map[string]any{
		"stages":   result.Stages,
		"includes": includes,
		"jobs":     jobs,
		"vars":     v,
	})
	if err != nil {
		return "", fmt.Errorf("pipeline: %w", err)
	}
	return strings.TrimSpace(s), nil
}

func execute(tpl *template.Template, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateExecute, err)
	}
	return buf.String(), nil
}

// =============================================================================
// Output
// =============================================================================

// Write stores content at path, or prints it to stdout when path is empty.
func Write(path, content string, stdout io.Writer) error {
	if path == "" {
		if _, err := fmt.Fprintln(stdout, content); err != nil {
			return fmt.Errorf("%w: %v", ErrWriteFailed, err)
		}
		return nil
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}
