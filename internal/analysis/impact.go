package analysis

import (
	"sort"

	"modelc/internal/graph"
	"modelc/internal/model"
	"modelc/internal/skeleton"
)

// ImpactReport summarizes the elements affected by removing or changing
// sources.
type ImpactReport struct {
	DirectlyAffected   []graph.NodeID
	IndirectlyAffected []graph.NodeID
}

// Analyzer performs impact analysis on a read-only view of the graph.
type Analyzer struct {
	v *graph.View
}

// NewAnalyzer creates a new analyzer.
func NewAnalyzer(v *graph.View) *Analyzer {
	return &Analyzer{v: v}
}

// AnalyzeImpact lists the elements declared by the given sources and every
// element that transitively depends on them through recorded usages. Nothing
// is modified.
func (a *Analyzer) AnalyzeImpact(sources []string) *ImpactReport {
	report := &ImpactReport{}
	seen := make(map[graph.NodeID]bool)

	// 1. Find Direct Impacts
	for _, id := range sources {
		src, ok := skeleton.SourceNode(a.v, id)
		if !ok {
			continue
		}
		for _, el := range a.v.MustGet(src).Refs(model.PropNewInstances) {
			if !seen[el] {
				seen[el] = true
				report.DirectlyAffected = append(report.DirectlyAffected, el)
			}
		}
	}

	// 2. Find Indirect Impacts (dependents of dependents)
	work := append([]graph.NodeID(nil), report.DirectlyAffected...)
	for len(work) > 0 {
		el := work[0]
		work = work[1:]
		for _, dep := range a.Dependents(el) {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			report.IndirectlyAffected = append(report.IndirectlyAffected, dep)
			work = append(work, dep)
		}
	}
	sortIDs(report.IndirectlyAffected)
	return report
}

// Dependents returns the elements, other than el, holding usages on any
// node of el's subtree.
func (a *Analyzer) Dependents(el graph.NodeID) []graph.NodeID {
	seen := map[graph.NodeID]bool{el: true}
	var out []graph.NodeID
	for _, id := range a.v.Subtree(el) {
		for _, owner := range a.v.Dependents(id) {
			dep, ok := a.v.OwningElement(owner)
			if ok && !seen[dep] {
				seen[dep] = true
				out = append(out, dep)
			}
		}
	}
	sortIDs(out)
	return out
}

func sortIDs(ids []graph.NodeID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
