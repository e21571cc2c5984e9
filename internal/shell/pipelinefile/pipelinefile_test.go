package pipelinefile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/artpar/deploy-pipeline/internal/core/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

const pipelineYAML = `
phases: [pre, changebroker, partition]
template: pipeline.tpl
includes: [common.inc]
host_order_label: pogo.deploy.stage
selectors:
  package:
    - {key: pogo.package.retired, operator: DoesNotExist}
jobs:
  job-changebroker:
    phase: changebroker
    var_key: broker
    template: job.tpl
    selectors:
      host: []
      package:
        - {key: pogo.package.type, operator: In, values: [broker]}
  job-partition:
    phase: partition
    var_key:
    template: job.tpl
    selectors:
      host:
        - {key: pogo.deploy.environment, operator: NotIn, values: [prod-se3]}
`

func setupDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	// Resolve TempDir symlinks (macOS /var -> /private/var) so paths compare equal.
	dir, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func allFiles() map[string]string {
	return map[string]string{
		"pipeline.yml": pipelineYAML,
		"pipeline.tpl": "{{ .stages }}",
		"common.inc":   "# common",
		"job.tpl":      "{{ .jobname }}",
	}
}

// =============================================================================
// Load Tests
// =============================================================================

func TestLoad_Valid(t *testing.T) {
	dir := setupDir(t, allFiles())

	cfg, p, err := NewLoader(dir, nil).Load(filepath.Join(dir, "pipeline.yml"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "pipeline.tpl"), cfg.Template)
	assert.Equal(t, []string{filepath.Join(dir, "common.inc")}, cfg.Includes)
	assert.Equal(t, "pogo.deploy.stage", cfg.HostOrderLabel)

	assert.Equal(t, []string{"pre", "changebroker", "partition"}, p.Phases())
	assert.Equal(t, 2, p.JobCount())
	assert.Equal(t, filepath.Join(dir, "pipeline.tpl"), p.Template)

	job, ok := p.Job("job-changebroker")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "job.tpl"), job.Template)
	assert.Equal(t, "broker", job.VarKey)
	assert.Len(t, job.PackageSelectors, 1)

	partition, ok := p.Job("job-partition")
	require.True(t, ok)
	assert.Empty(t, partition.VarKey)
	assert.Len(t, partition.HostSelectors, 1)
}

func TestLoad_JobsKeepFileOrder(t *testing.T) {
	files := allFiles()
	files["pipeline.yml"] = `
phases: [restart]
template: pipeline.tpl
host_order_label: pogo.deploy.stage
jobs:
  z-drain:
    phase: restart
    var_key: drain
    template: job.tpl
    selectors: {}
  a-restart:
    phase: restart
    var_key: restart
    template: job.tpl
    selectors: {}
`
	dir := setupDir(t, files)

	cfg, p, err := NewLoader(dir, nil).Load(filepath.Join(dir, "pipeline.yml"))
	require.NoError(t, err)

	require.Len(t, cfg.Jobs, 2)
	assert.Equal(t, "z-drain", cfg.Jobs[0].Name)
	assert.Equal(t, "a-restart", cfg.Jobs[1].Name)

	jobs := p.Jobs("restart")
	require.Len(t, jobs, 2)
	assert.Equal(t, "z-drain", jobs[0].Name)
	assert.Equal(t, "a-restart", jobs[1].Name)
}

func TestJobOrder(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		expected []string
	}{
		{
			name:     "file order",
			doc:      "jobs:\n  z-drain: {}\n  a-restart: {}\n  m-notify: {}\n",
			expected: []string{"z-drain", "a-restart", "m-notify"},
		},
		{
			name:     "anchor entries are listed",
			doc:      ".base: &base {phase: pre}\njobs:\n  b: *base\n  .hidden: {}\n  a: *base\n",
			expected: []string{"b", ".hidden", "a"},
		},
		{
			name:     "aliased jobs mapping",
			doc:      ".all: &all\n  y: {}\n  x: {}\njobs: *all\n",
			expected: []string{"y", "x"},
		},
		{
			name:     "merge key skipped",
			doc:      ".more: &more\n  c: {}\njobs:\n  b: {}\n  <<: *more\n  a: {}\n",
			expected: []string{"b", "a"},
		},
		{"no jobs key", "phases: [a]\n", nil},
		{"jobs not a mapping", "jobs: [a, b]\n", nil},
		{"empty document", "", nil},
		{"invalid yaml", "jobs: [a\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, jobOrder([]byte(tt.doc)))
		})
	}
}

func TestLoad_RelativeToBaseDir(t *testing.T) {
	dir := setupDir(t, allFiles())
	other := setupDir(t, nil)

	// Templates are looked up under BaseDir, not next to the pipeline file.
	cfg, _, err := NewLoader(other, nil).Load(filepath.Join(dir, "pipeline.yml"))
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestLoad_MissingTemplate(t *testing.T) {
	files := allFiles()
	delete(files, "job.tpl")
	dir := setupDir(t, files)

	_, _, err := NewLoader(dir, nil).Load(filepath.Join(dir, "pipeline.yml"))
	require.ErrorIs(t, err, ErrFileNotFound)
	assert.ErrorIs(t, err, pipeline.ErrInvalidConfig)

	var vErr *pipeline.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, pipeline.KindJob, vErr.Kind)
	assert.Equal(t, []string{pipeline.RootPath, "jobs", "job-changebroker", "template"}, vErr.Path)
	assert.Contains(t, err.Error(), "<root>->jobs->job-changebroker->template")
}

func TestLoad_MissingInclude(t *testing.T) {
	files := allFiles()
	delete(files, "common.inc")
	dir := setupDir(t, files)

	_, _, err := NewLoader(dir, nil).Load(filepath.Join(dir, "pipeline.yml"))
	var vErr *pipeline.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, pipeline.KindRoot, vErr.Kind)
	assert.Equal(t, []string{pipeline.RootPath, "includes"}, vErr.Path)
}

func TestLoad_StructuralErrorBeforePaths(t *testing.T) {
	dir := setupDir(t, map[string]string{"pipeline.yml": "phases: [a]\ntemplate: x\n"})

	_, _, err := NewLoader(dir, nil).Load(filepath.Join(dir, "pipeline.yml"))
	require.ErrorIs(t, err, pipeline.ErrInvalidConfig)
	assert.NotErrorIs(t, err, ErrFileNotFound)
	assert.Contains(t, err.Error(), "host_order_label,jobs")
}

func TestLoad_ReadFailed(t *testing.T) {
	_, _, err := NewLoader("", nil).Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorIs(t, err, ErrReadFailed)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := setupDir(t, map[string]string{"pipeline.yml": "phases: [a\n"})
	_, _, err := NewLoader(dir, nil).Load(filepath.Join(dir, "pipeline.yml"))
	assert.ErrorIs(t, err, ErrInvalidYAML)
}
