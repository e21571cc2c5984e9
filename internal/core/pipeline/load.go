package pipeline

import "fmt"

// Load builds a Pipeline from a validated config. Phases are added in file
// order, jobs in cfg.Jobs order; the first invariant violation is returned.
func Load(cfg *Config) (*Pipeline, error) {
	p := New()
	p.Template = cfg.Template
	p.Includes = append([]string(nil), cfg.Includes...)
	p.HostSelectors = cfg.Selectors.Host
	p.PackageSelectors = cfg.Selectors.Package

	for _, phase := range cfg.Phases {
		if err := p.AddPhase(phase); err != nil {
			return nil, err
		}
	}

	for _, jc := range cfg.Jobs {
		job, err := NewJob(jc.Name, jc.Phase)
		if err != nil {
			return nil, err
		}
		job.Template = jc.Template
		job.VarKey = jc.VarKey
		// Selectors must be explicit; an empty list selects everything.
		job.HostSelectors = append(job.HostSelectors, jc.Selectors.Host...)
		job.PackageSelectors = append(job.PackageSelectors, jc.Selectors.Package...)

		if err := p.AddJob(job); err != nil {
			return nil, fmt.Errorf("job %s: %w", jc.Name, err)
		}
	}

	return p, nil
}
