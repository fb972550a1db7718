package pipeline

import (
	"errors"
	"sort"
	"time"
)

// PassStats counts the worklist items handled by one pass.
type PassStats struct {
	Pass      int
	Attempted int
	Resolved  int
	Deferred  int
	Failed    int
}

// Result reports the outcome of a Compile or Unload.
type Result struct {
	Compiled []string
	Skipped  []string
	Removed  []string
	Failed   map[string]error
	Passes   []PassStats
	Unbound  int
	Duration time.Duration
}

func newResult() *Result {
	return &Result{Failed: make(map[string]error)}
}

// FailedSources returns the ids of failed sources in sorted order.
func (r *Result) FailedSources() []string {
	out := make([]string, 0, len(r.Failed))
	for id := range r.Failed {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Err joins the errors of all failed sources, or returns nil.
func (r *Result) Err() error {
	var errs []error
	for _, id := range r.FailedSources() {
		errs = append(errs, r.Failed[id])
	}
	return errors.Join(errs...)
}

// SourceInfo describes a registered source.
type SourceInfo struct {
	ID        string
	Hash      string
	Compiled  bool
	Immutable bool
	Elements  int
	Err       error
}
