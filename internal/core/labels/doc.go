// Package labels provides pure functions for selecting, joining and grouping
// labeled entities.
//
// This package contains the functional core of host and package selection.
// All functions are pure (no I/O, no side effects) and never mutate the
// collections they are given.
//
// # Types
//
//   - Query: a single predicate over one label key (In, NotIn, Exists, DoesNotExist)
//   - Matcher: evaluates the conjunction of queries against an inverted label index
//   - Join: relates two collections through overlapping join values
//   - Group: partitions a collection by the value of one label
//
// # Usage
//
// The resolver narrows hosts and packages independently, then joins them:
//
//	hosts := labels.NewMatcher(inventory.Hosts).Add(
//	    labels.NewQuery("pogo.deploy.stage", labels.Exists),
//	).Match()
//	pairs, err := labels.NewJoin(labels.WithData(hosts, inventory.Hosts), "packages").
//	    Match(labels.FromKeys(packages), "")
//	waves, err := labels.NewGroup(labels.WithData(pairs.Keys(), inventory.Hosts)).
//	    By("pogo.deploy.stage")
package labels
