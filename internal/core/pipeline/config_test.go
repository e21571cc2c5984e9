package pipeline

import (
	"errors"
	"testing"

	"github.com/artpar/deploy-pipeline/internal/core/labels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Fixtures
// =============================================================================

const validPipelineYAML = `
.defaults: &defaults
  var_key: common
  template: templates/job.yml.tmpl

phases: [pre, changebroker, partition]
template: templates/pipeline.yml.tmpl
host_order_label: pogo.deploy.stage
includes:
  - templates/include.yml
selectors:
  host:
    - key: pogo.deploy.environment
      operator: In
      values: [prod-aws]
jobs:
  job-partition:
    <<: *defaults
    phase: partition
    selectors:
      host: []
      package:
        - key: pogo.package.type
          operator: Exists
  job-changebroker:
    <<: *defaults
    phase: changebroker
    var_key: broker
    selectors:
      host: []
      package: []
`

func decode(t *testing.T, doc string) map[string]any {
	t.Helper()
	var raw map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(doc), &raw))
	return raw
}

// =============================================================================
// ValidateConfig Tests
// =============================================================================

func TestValidateConfig_Valid(t *testing.T) {
	cfg, err := ValidateConfig(decode(t, validPipelineYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"pre", "changebroker", "partition"}, cfg.Phases)
	assert.Equal(t, "templates/pipeline.yml.tmpl", cfg.Template)
	assert.Equal(t, "pogo.deploy.stage", cfg.HostOrderLabel)
	assert.Equal(t, []string{"templates/include.yml"}, cfg.Includes)
	require.Len(t, cfg.Selectors.Host, 1)
	assert.Empty(t, cfg.Selectors.Package)

	require.Len(t, cfg.Jobs, 2)
	assert.Equal(t, "job-changebroker", cfg.Jobs[0].Name)
	assert.Equal(t, "broker", cfg.Jobs[0].VarKey)
	assert.Equal(t, "job-partition", cfg.Jobs[1].Name)
	assert.Equal(t, "common", cfg.Jobs[1].VarKey)
	assert.Equal(t, "templates/job.yml.tmpl", cfg.Jobs[1].Template)
	require.Len(t, cfg.Jobs[1].Selectors.Package, 1)
}

func TestValidateConfig_MissingRootKeys(t *testing.T) {
	_, err := ValidateConfig(map[string]any{"phases": []any{"a"}})
	require.ErrorIs(t, err, ErrInvalidConfig)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, KindRoot, vErr.Kind)
	assert.Equal(t, []string{RootPath}, vErr.Path)
	assert.Contains(t, err.Error(), "host_order_label,jobs,template")
}

func TestValidateConfig_PhasesNotList(t *testing.T) {
	raw := decode(t, validPipelineYAML)
	raw["phases"] = "pre"
	_, err := ValidateConfig(raw)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "List is Required")
}

func TestValidateConfig_JobsNotMap(t *testing.T) {
	raw := decode(t, validPipelineYAML)
	raw["jobs"] = []any{"a"}

	_, err := ValidateConfig(raw)
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, KindJob, vErr.Kind)
	assert.Equal(t, []string{RootPath, "jobs"}, vErr.Path)
}

func TestValidateConfig_MissingJobKeys(t *testing.T) {
	raw := decode(t, `
phases: [pre]
template: p.tmpl
host_order_label: stage
jobs:
  broken:
    phase: pre
`)
	_, err := ValidateConfig(raw)
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, KindJob, vErr.Kind)
	assert.Equal(t, []string{RootPath, "jobs", "broken"}, vErr.Path)
	assert.Contains(t, vErr.Message, "selectors, template, var_key")
}

func TestValidateConfig_MalformedJobSelector(t *testing.T) {
	raw := decode(t, `
phases: [pre]
template: p.tmpl
host_order_label: stage
jobs:
  deploy:
    phase: pre
    var_key: x
    template: j.tmpl
    selectors:
      host:
        - operator: In
          values: [a]
`)
	_, err := ValidateConfig(raw)
	require.ErrorIs(t, err, labels.ErrMalformedSelector)
	require.ErrorIs(t, err, ErrInvalidConfig)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, KindSelector, vErr.Kind)
	assert.Equal(t, []string{RootPath, "jobs", "deploy", "selectors", "host", "0"}, vErr.Path)
	assert.Contains(t, err.Error(), "[Path: <root>->jobs->deploy->selectors->host->0]")

	var selErr *labels.SelectorError
	require.True(t, errors.As(err, &selErr))
	assert.Equal(t, "key", selErr.Field)
}

func TestValidateConfig_UnknownOperatorInPipelineSelector(t *testing.T) {
	raw := decode(t, validPipelineYAML)
	raw["selectors"] = map[string]any{
		"package": []any{map[string]any{"key": "k", "operator": "Like"}},
	}
	_, err := ValidateConfig(raw)
	require.ErrorIs(t, err, labels.ErrUnknownOperator)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, []string{RootPath, "selectors", "package", "0"}, vErr.Path)
}

func TestValidateConfig_SelectorPathNamesIndex(t *testing.T) {
	raw := decode(t, validPipelineYAML)
	raw["selectors"] = map[string]any{
		"host": []any{
			map[string]any{"key": "pogo.deploy.environment", "operator": "In", "values": []any{"prod-aws"}},
			map[string]any{"key": "pogo.deploy.stage", "operator": "Exists"},
			map[string]any{"key": "pogo.deploy.stage", "operator": "Gt"},
		},
	}
	_, err := ValidateConfig(raw)
	require.ErrorIs(t, err, labels.ErrUnknownOperator)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, []string{RootPath, "selectors", "host", "2"}, vErr.Path)
	assert.Contains(t, err.Error(), "[Path: <root>->selectors->host->2]")
}

func TestValidateConfig_SelectorsNotMap(t *testing.T) {
	raw := decode(t, validPipelineYAML)
	raw["selectors"] = []any{}
	_, err := ValidateConfig(raw)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, KindSelector, vErr.Kind)
}

func TestValidateConfig_UnknownSelectorType(t *testing.T) {
	raw := decode(t, validPipelineYAML)
	raw["selectors"] = map[string]any{"service": []any{}}
	_, err := ValidateConfig(raw)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "Unknown Selector Type: service")
}

func TestValidateConfig_SelectorListRequired(t *testing.T) {
	raw := decode(t, validPipelineYAML)
	raw["selectors"] = map[string]any{"host": "pogo.deploy.stage"}
	_, err := ValidateConfig(raw)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "Expected 'host' List")
}

const orderedJobsYAML = `
phases: [pre]
template: p.tmpl
host_order_label: stage
jobs:
  z-drain:
    phase: pre
    var_key: drain
    template: j.tmpl
    selectors: {}
  m-notify:
    phase: pre
    var_key: notify
    template: j.tmpl
    selectors: {}
  a-restart:
    phase: pre
    var_key: restart
    template: j.tmpl
    selectors: {}
`

func jobNames(cfg *Config) []string {
	names := make([]string, 0, len(cfg.Jobs))
	for _, job := range cfg.Jobs {
		names = append(names, job.Name)
	}
	return names
}

func TestValidateConfig_JobOrder(t *testing.T) {
	raw := decode(t, orderedJobsYAML)

	tests := []struct {
		name     string
		order    []string
		expected []string
	}{
		{"no order sorts by name", nil, []string{"a-restart", "m-notify", "z-drain"}},
		{"file order", []string{"z-drain", "m-notify", "a-restart"}, []string{"z-drain", "m-notify", "a-restart"}},
		{"unlisted jobs follow sorted", []string{"z-drain"}, []string{"z-drain", "a-restart", "m-notify"}},
		{"unknown and duplicate names ignored", []string{"z-drain", "ghost", "z-drain", ".hidden", "a-restart"}, []string{"z-drain", "a-restart", "m-notify"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ValidateConfig(raw, WithJobOrder(tt.order))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, jobNames(cfg))
		})
	}
}

func TestValidateConfig_NumericJobPhase(t *testing.T) {
	raw := decode(t, `
phases: [1, 2]
template: p.tmpl
host_order_label: stage
jobs:
  deploy:
    phase: 2
    var_key: x
    template: j.tmpl
    selectors: {}
`)
	cfg, err := ValidateConfig(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, cfg.Phases)
	require.Len(t, cfg.Jobs, 1)
	assert.Equal(t, "2", cfg.Jobs[0].Phase)

	p, err := Load(cfg)
	require.NoError(t, err)
	jobs := p.Jobs("2")
	require.Len(t, jobs, 1)
	assert.Equal(t, "deploy", jobs[0].Name)
}

func TestValidateConfig_InvalidJobPhase(t *testing.T) {
	for _, phase := range []any{nil, "", []any{"pre"}} {
		raw := decode(t, orderedJobsYAML)
		jobs := raw["jobs"].(map[string]any)
		jobs["z-drain"].(map[string]any)["phase"] = phase

		_, err := ValidateConfig(raw)
		var vErr *ValidationError
		require.True(t, errors.As(err, &vErr), "phase %v", phase)
		assert.Equal(t, KindJob, vErr.Kind)
		assert.Equal(t, []string{RootPath, "jobs", "z-drain"}, vErr.Path)
		assert.Contains(t, vErr.Message, "Invalid Phase")
	}
}

func TestValidateConfig_DoesNotMutateInput(t *testing.T) {
	raw := decode(t, validPipelineYAML)
	before := len(raw)
	_, err := ValidateConfig(raw)
	require.NoError(t, err)
	assert.Len(t, raw, before)
}

// =============================================================================
// Load Tests
// =============================================================================

func TestLoad(t *testing.T) {
	cfg, err := ValidateConfig(decode(t, validPipelineYAML))
	require.NoError(t, err)

	p, err := Load(cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"pre", "changebroker", "partition"}, p.Phases())
	assert.Equal(t, "templates/pipeline.yml.tmpl", p.Template)
	assert.Len(t, p.HostSelectors, 1)

	job, ok := p.Job("job-partition")
	require.True(t, ok)
	assert.Equal(t, "common", job.VarKey)
	assert.Len(t, job.PackageSelectors, 1)
	assert.Empty(t, job.HostSelectors)
}

func TestLoad_JobWithUnknownPhase(t *testing.T) {
	cfg := &Config{
		Phases: []string{"pre"},
		Jobs:   []JobConfig{{Name: "deploy", Phase: "post"}},
	}
	_, err := Load(cfg)
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestLoad_DuplicatePhase(t *testing.T) {
	_, err := Load(&Config{Phases: []string{"pre", "pre"}})
	assert.ErrorIs(t, err, ErrDuplicatePhase)
}
