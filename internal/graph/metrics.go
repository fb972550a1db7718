package graph

// KindCounts tallies the nodes visible through v by kind.
func (v *View) KindCounts() map[Kind]int {
	counts := make(map[Kind]int)
	defer v.lock()()
	for id, n := range v.ctx.nodes {
		if _, ok := v.get(id); ok {
			counts[n.Kind]++
		}
	}
	if t := v.txn; t != nil && !t.done {
		for id := range t.created {
			counts[t.nodes[id].Kind]++
		}
	}
	return counts
}
