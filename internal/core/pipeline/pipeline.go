package pipeline

import (
	"fmt"
	"slices"
)

// =============================================================================
// Job
// =============================================================================

// Job is a unit of work bound to one phase. It runs once for every order
// group, so a single Job appears in as many stages as there are waves.
type Job struct {
	Name     string
	Phase    string
	Template string
	VarKey   string

	// Structured selectors, narrowing hosts and packages for this job only.
	HostSelectors    []map[string]any
	PackageSelectors []map[string]any
}

// NewJob creates a job for phase. The name must not be empty.
func NewJob(name, phase string) (*Job, error) {
	if name == "" {
		return nil, ErrEmptyJobName
	}
	return &Job{Name: name, Phase: phase}, nil
}

// =============================================================================
// Pipeline
// =============================================================================

// Pipeline holds ordered phases and the jobs registered under them.
// It validates on every mutation: phase names are unique, job names are
// unique across all phases and a job's phase must already exist.
type Pipeline struct {
	Template         string
	Includes         []string
	HostSelectors    []map[string]any
	PackageSelectors []map[string]any

	phases    []string
	jobs      map[string]*Job
	jobPhases map[string][]*Job
}

// New creates an empty pipeline.
func New() *Pipeline {
	return &Pipeline{
		jobs:      make(map[string]*Job),
		jobPhases: make(map[string][]*Job),
	}
}

// AddPhase appends a phase. Phase order is the order phases run in every stage.
func (p *Pipeline) AddPhase(name string) error {
	if slices.Contains(p.phases, name) {
		return fmt.Errorf("%w: %s", ErrDuplicatePhase, name)
	}
	p.phases = append(p.phases, name)
	return nil
}

// AddJob registers a job under its phase.
func (p *Pipeline) AddJob(job *Job) error {
	if job.Name == "" {
		return ErrEmptyJobName
	}
	if _, ok := p.jobs[job.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.Name)
	}
	if !slices.Contains(p.phases, job.Phase) {
		return fmt.Errorf("%w: %s", ErrInvalidPhase, job.Phase)
	}

	p.jobs[job.Name] = job
	p.jobPhases[job.Phase] = append(p.jobPhases[job.Phase], job)
	return nil
}

// Phases returns the phases in insertion order.
func (p *Pipeline) Phases() []string {
	return slices.Clone(p.phases)
}

// Jobs returns the jobs of a phase in insertion order.
func (p *Pipeline) Jobs(phase string) []*Job {
	return slices.Clone(p.jobPhases[phase])
}

// Job looks a job up by name.
func (p *Pipeline) Job(name string) (*Job, bool) {
	job, ok := p.jobs[name]
	return job, ok
}

// JobCount returns the number of registered jobs.
func (p *Pipeline) JobCount() int {
	return len(p.jobs)
}
