package pipeline

import (
	"fmt"
	"slices"
	"strconv"
)

// StageSeparator joins an order group and a phase into a stage name.
const StageSeparator = "-"

// =============================================================================
// Order Groups
// =============================================================================

// OrderGroup is one deployment wave, identified by the value of the order label.
type OrderGroup string

// Compare orders groups numerically when both are integers and
// lexicographically otherwise. Integers sort before everything else.
func (g OrderGroup) Compare(other OrderGroup) int {
	a, aErr := strconv.ParseInt(string(g), 10, 64)
	b, bErr := strconv.ParseInt(string(other), 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
		// "01" and "1" are equal numerically; fall back to the text.
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	}

	switch {
	case g < other:
		return -1
	case g > other:
		return 1
	default:
		return 0
	}
}

// SortOrderGroups returns a sorted copy of groups, descending when reverse is set.
func SortOrderGroups(groups []OrderGroup, reverse bool) []OrderGroup {
	sorted := slices.Clone(groups)
	slices.SortFunc(sorted, func(a, b OrderGroup) int {
		if reverse {
			return b.Compare(a)
		}
		return a.Compare(b)
	})
	return sorted
}

// StageName names the stage of a group and phase, e.g. "0-partition".
func StageName(group OrderGroup, phase string) string {
	return fmt.Sprintf("%s%s%s", group, StageSeparator, phase)
}

// =============================================================================
// Stage Expansion
// =============================================================================

// Stage is a resolved (order group, phase) pair.
type Stage struct {
	Group OrderGroup
	Phase string
	Name  string
}

// StageJob is one invocation of a job within a stage.
type StageJob struct {
	Stage
	Job *Job
}

// Expansion is the cartesian product of sorted order groups and pipeline phases.
type Expansion struct {
	pipeline *Pipeline
	groups   []OrderGroup
}

// Expand sorts groups (descending when reverse is set) and pairs them with the
// pipeline's phases. Phases keep their insertion order.
func Expand(p *Pipeline, groups []OrderGroup, reverse bool) *Expansion {
	return &Expansion{
		pipeline: p,
		groups:   SortOrderGroups(groups, reverse),
	}
}

// Groups returns the order groups in expansion order.
func (e *Expansion) Groups() []OrderGroup {
	return slices.Clone(e.groups)
}

// Stages returns every stage, group-major. Phases without jobs still appear.
//
// Example:
//
//	// phases: pre, deploy   groups: 1, 0
//	// stages: 0-pre, 0-deploy, 1-pre, 1-deploy
func (e *Expansion) Stages() []Stage {
	phases := e.pipeline.Phases()
	stages := make([]Stage, 0, len(e.groups)*len(phases))
	for _, group := range e.groups {
		for _, phase := range phases {
			stages = append(stages, Stage{
				Group: group,
				Phase: phase,
				Name:  StageName(group, phase),
			})
		}
	}
	return stages
}

// StageNames returns the names of Stages.
func (e *Expansion) StageNames() []string {
	stages := e.Stages()
	names := make([]string, 0, len(stages))
	for _, s := range stages {
		names = append(names, s.Name)
	}
	return names
}

// StageJobs returns every job invocation in execution order.
func (e *Expansion) StageJobs() []StageJob {
	var result []StageJob
	for _, stage := range e.Stages() {
		for _, job := range e.pipeline.Jobs(stage.Phase) {
			result = append(result, StageJob{Stage: stage, Job: job})
		}
	}
	return result
}
