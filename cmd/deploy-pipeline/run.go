package main

import (
	"errors"
	"io"
	"log/slog"

	"github.com/artpar/deploy-pipeline/internal/core/labels"
	"github.com/artpar/deploy-pipeline/internal/core/pipeline"
	"github.com/artpar/deploy-pipeline/internal/core/resolve"
	"github.com/artpar/deploy-pipeline/internal/shell/inventory"
	"github.com/artpar/deploy-pipeline/internal/shell/pipelinefile"
	"github.com/artpar/deploy-pipeline/internal/shell/render"
	"github.com/artpar/deploy-pipeline/internal/shell/varfile"
	"github.com/google/uuid"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess        = 0
	ExitConfigError    = 1
	ExitPipelineError  = 2
	ExitSelectionError = 3
	ExitRenderError    = 4
)

// =============================================================================
// Runner
// =============================================================================

// Runner executes one pipeline generation.
type Runner struct {
	config  *Config
	stdout  io.Writer
	environ []string
	logger  *slog.Logger
}

// NewRunner creates a runner. Every log record carries a fresh run_id.
func NewRunner(cfg *Config, stdout io.Writer, environ []string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		config:  cfg,
		stdout:  stdout,
		environ: environ,
		logger:  logger.With("run_id", uuid.NewString()),
	}
}

// Run loads all inputs, resolves the stages and renders the pipeline.
func (r *Runner) Run() error {
	cfg := r.config
	r.logger.Info("starting deploy-pipeline", "version", Version)
	r.logger.Debug("captured arguments",
		"pipeline", cfg.Pipeline,
		"config", cfg.Inventory,
		"output", cfg.Output,
		"host_selector", cfg.HostSelectors,
		"package_selector", cfg.PackageSelectors,
		"vars", cfg.Vars,
		"var_files", cfg.VarFiles,
		"reverse", cfg.Reverse,
	)

	if err := cfg.Validate(); err != nil {
		return &RunError{Op: "validate_config", Err: err, ExitCode: ExitConfigError}
	}

	r.logger.Info("parsing inventory")
	inv, err := inventory.NewLoader(r.logger).Load(cfg.Inventory...)
	if err != nil {
		return &RunError{Op: "load_inventory", Err: err, ExitCode: ExitConfigError}
	}

	r.logger.Info("parsing input variables")
	variables, err := varfile.Collect(varfile.Sources{
		Files:   cfg.VarFiles,
		Args:    cfg.Vars,
		Environ: r.environ,
	}, r.logger)
	if err != nil {
		return &RunError{Op: "load_vars", Err: err, ExitCode: ExitConfigError}
	}

	pipelineCfg, p, err := pipelinefile.NewLoader("", r.logger).Load(cfg.Pipeline)
	if err != nil {
		return &RunError{Op: "load_pipeline", Err: err, ExitCode: ExitPipelineError}
	}

	hostQueries, err := labels.ParseQueries(cfg.HostSelectors)
	if err != nil {
		return &RunError{Op: "parse_host_selector", Err: err, ExitCode: ExitConfigError}
	}
	packageQueries, err := labels.ParseQueries(cfg.PackageSelectors)
	if err != nil {
		return &RunError{Op: "parse_package_selector", Err: err, ExitCode: ExitConfigError}
	}

	result, err := resolve.Resolve(resolve.Request{
		Hosts:          inv.Hosts,
		Packages:       inv.Packages,
		Pipeline:       p,
		OrderLabel:     pipelineCfg.HostOrderLabel,
		HostQueries:    hostQueries,
		PackageQueries: packageQueries,
		Reverse:        cfg.Reverse,
	})
	if err != nil {
		return &RunError{Op: "resolve", Err: err, ExitCode: resolveExitCode(err)}
	}

	for _, stage := range result.Stages {
		r.logger.Info("processing stage", "stage", stage)
	}
	for _, jr := range result.Jobs {
		r.logger.Info("processing stage job",
			"stage", jr.Name,
			"job", jr.Job.Name,
			"hosts", len(jr.Hosts),
			"packages", len(jr.Packages),
			"targets", len(jr.Targets),
		)
	}

	rendered, err := render.NewRenderer(r.logger).RenderPipeline(p, result, variables)
	if err != nil {
		return &RunError{Op: "render", Err: err, ExitCode: ExitRenderError}
	}

	if cfg.Output != "" {
		r.logger.Info("writing pipeline file", "path", cfg.Output)
	}
	if err := render.Write(cfg.Output, rendered, r.stdout); err != nil {
		return &RunError{Op: "write_output", Err: err, ExitCode: ExitRenderError}
	}

	r.logger.Info("pipeline generated",
		"stages", len(result.Stages),
		"jobs", len(result.Jobs),
	)
	return nil
}

func resolveExitCode(err error) int {
	switch {
	case errors.Is(err, resolve.ErrNoHosts),
		errors.Is(err, resolve.ErrNoPackages),
		errors.Is(err, resolve.ErrNoGroups):
		return ExitSelectionError
	case errors.Is(err, pipeline.ErrInvalidConfig):
		return ExitPipelineError
	default:
		return ExitConfigError
	}
}

// =============================================================================
// Run Error
// =============================================================================

// RunError represents a failed step of a run.
type RunError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *RunError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *RunError) Unwrap() error {
	return e.Err
}
