// Package pipeline provides the pipeline model and stage expansion.
//
// A Pipeline is an ordered list of phases plus jobs bound to those phases.
// Stage expansion pairs every order group (deployment wave) with every phase
// and yields the jobs of each stage in a fully deterministic order. All
// functions are pure (no I/O, no side effects).
//
// # Functions
//
//   - ValidateConfig: Check a decoded pipeline file and convert it to a Config
//   - Load: Build a Pipeline from a Config
//   - Expand: Pair sorted order groups with phases (Stages, StageNames, StageJobs)
//
// # Usage
//
//	cfg, err := pipeline.ValidateConfig(raw)
//	p, err := pipeline.Load(cfg)
//	for _, sj := range pipeline.Expand(p, groups, false).StageJobs() {
//	    // sj.Name == "0-partition", sj.Job.Name == "job-partition"
//	}
package pipeline
