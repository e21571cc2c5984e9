// Package resolve turns inventory, pipeline and selectors into the ordered
// list of job invocations a deployment pipeline is rendered from.
//
// This is part of the Functional Core - all functions are pure with no I/O.
// Resolve performs, in order:
//  1. Narrow hosts: order label exists + pipeline host selectors + extra selectors
//  2. Narrow packages: extra selectors + pipeline package selectors
//  3. Join hosts to packages through the host "packages" field
//  4. Group joined hosts into waves by the order label
//  5. Expand waves x phases x jobs and re-narrow hosts and packages per job
package resolve

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/artpar/deploy-pipeline/internal/core/labels"
	"github.com/artpar/deploy-pipeline/internal/core/pipeline"
	"k8s.io/apimachinery/pkg/util/sets"
)

// DefaultPackagesField is the host field listing the packages a host supports.
const DefaultPackagesField = "packages"

// =============================================================================
// Resolve Errors
// =============================================================================

var (
	// ErrNoHosts is returned when no host matches the initial selection.
	ErrNoHosts = errors.New("no host(s) matching label query")

	// ErrNoPackages is returned when no package matches the initial selection.
	ErrNoPackages = errors.New("no package(s) matching label query")

	// ErrNoGroups is returned when the joined hosts form no wave.
	ErrNoGroups = errors.New("unable to determine group(s)")
)

// =============================================================================
// Request / Result
// =============================================================================

// Request contains all inputs of a resolution.
type Request struct {
	Hosts    labels.Collection
	Packages labels.Collection
	Pipeline *pipeline.Pipeline

	// OrderLabel is the host label that defines deployment waves.
	OrderLabel string

	// Extra selectors, typically given on the command line.
	HostQueries    []labels.Query
	PackageQueries []labels.Query

	// Reverse runs waves in descending order.
	Reverse bool

	// PackagesField overrides DefaultPackagesField.
	PackagesField string
}

// Target is one host and the packages to deploy on it.
type Target struct {
	Host     string
	Packages []string // sorted
}

// JobResult is one job invocation with its resolved targets.
type JobResult struct {
	pipeline.StageJob

	// Hosts and Packages are the per-job selections before joining.
	Hosts    []string
	Packages []string

	Targets []Target // sorted by host
}

// Result is the outcome of a resolution.
type Result struct {
	// Joined maps every selected host to its selected packages.
	Joined labels.Relation

	Groups []pipeline.OrderGroup
	Stages []string
	Jobs   []JobResult
}

// =============================================================================
// Resolution
// =============================================================================

// Resolve runs the full selection. Empty per-job selections are not errors;
// only an empty initial host, package or group selection is.
func Resolve(req Request) (*Result, error) {
	packagesField := req.PackagesField
	if packagesField == "" {
		packagesField = DefaultPackagesField
	}

	pipelineHostQueries, err := selectorQueries(req.Pipeline.HostSelectors, pipeline.RootPath, "selectors", "host")
	if err != nil {
		return nil, err
	}
	pipelinePackageQueries, err := selectorQueries(req.Pipeline.PackageSelectors, pipeline.RootPath, "selectors", "package")
	if err != nil {
		return nil, err
	}

	// The order label doubles as a guard: hosts without a wave are never selected.
	hostMatcher := labels.NewMatcher(req.Hosts).
		Add(labels.NewQuery(req.OrderLabel, labels.Exists)).
		Add(pipelineHostQueries...).
		Add(req.HostQueries...)
	matchedHosts := hostMatcher.Match()
	if matchedHosts.Len() == 0 {
		return nil, ErrNoHosts
	}

	packageMatcher := labels.NewMatcher(req.Packages).
		Add(req.PackageQueries...).
		Add(pipelinePackageQueries...)
	matchedPackages := packageMatcher.Match()
	if matchedPackages.Len() == 0 {
		return nil, ErrNoPackages
	}

	joined, err := labels.NewJoin(labels.WithData(matchedHosts, req.Hosts), packagesField).
		Match(labels.FromKeys(matchedPackages), "")
	if err != nil {
		return nil, err
	}

	waves, err := labels.NewGroup(labels.WithData(joined.Keys(), req.Hosts)).By(req.OrderLabel)
	if err != nil {
		return nil, err
	}
	if len(waves) == 0 {
		return nil, ErrNoGroups
	}

	groups := make([]pipeline.OrderGroup, 0, len(waves))
	for value := range waves {
		groups = append(groups, pipeline.OrderGroup(value))
	}
	expansion := pipeline.Expand(req.Pipeline, groups, req.Reverse)

	result := &Result{
		Joined: joined,
		Groups: expansion.Groups(),
		Stages: expansion.StageNames(),
	}

	stageHosts := labels.WithData(joined.Keys(), req.Hosts)
	stagePackages := labels.WithData(joined.Values(), req.Packages)

	for _, sj := range expansion.StageJobs() {
		jr, err := resolveJob(sj, req.OrderLabel, packagesField, stageHosts, stagePackages)
		if err != nil {
			return nil, err
		}
		result.Jobs = append(result.Jobs, jr)
	}

	return result, nil
}

// resolveJob narrows the joined hosts and packages with the job's own selectors
// and joins them again, so only supported host/package pairs remain.
func resolveJob(sj pipeline.StageJob, orderLabel, packagesField string, hosts, packages labels.Collection) (JobResult, error) {
	jobPath := []string{pipeline.RootPath, "jobs", sj.Job.Name, "selectors"}

	hostQueries, err := selectorQueries(sj.Job.HostSelectors, append(jobPath, "host")...)
	if err != nil {
		return JobResult{}, err
	}
	packageQueries, err := selectorQueries(sj.Job.PackageSelectors, append(jobPath, "package")...)
	if err != nil {
		return JobResult{}, err
	}

	jobHosts := labels.NewMatcher(hosts).
		Add(labels.NewQuery(orderLabel, labels.In, string(sj.Group))).
		Add(hostQueries...).
		Match()
	jobPackages := labels.NewMatcher(packages).
		Add(packageQueries...).
		Match()

	rel, err := labels.NewJoin(labels.WithData(jobHosts, hosts), packagesField).
		Match(labels.FromKeys(jobPackages), "")
	if err != nil {
		return JobResult{}, err
	}

	jr := JobResult{
		StageJob: sj,
		Hosts:    sets.List(jobHosts),
		Packages: sets.List(jobPackages),
	}
	for _, host := range rel.SortedKeys() {
		jr.Targets = append(jr.Targets, Target{Host: host, Packages: sets.List(rel[host])})
	}
	return jr, nil
}

// selectorQueries converts structured selectors, reporting the index of the
// first malformed one under path.
func selectorQueries(objs []map[string]any, path ...string) ([]labels.Query, error) {
	queries := make([]labels.Query, 0, len(objs))
	for i, obj := range objs {
		q, err := labels.QueryFromObject(obj)
		if err != nil {
			return nil, &pipeline.ValidationError{
				Kind:    pipeline.KindSelector,
				Path:    append(append([]string(nil), path...), strconv.Itoa(i)),
				Message: fmt.Sprintf("Malformed Selector: %v", obj),
				Err:     err,
			}
		}
		queries = append(queries, q)
	}
	return queries, nil
}
