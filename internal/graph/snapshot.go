package graph

import (
	"encoding/json"
	"fmt"

	"github.com/go-logr/logr"
)

// Snapshot is a deterministic copy of every node visible through a view.
type Snapshot struct {
	Nodes []Node `json:"nodes"`
}

// Snapshot captures the view in id order.
func (v *View) Snapshot() Snapshot {
	ids := v.IDs()
	s := Snapshot{Nodes: make([]Node, 0, len(ids))}
	for _, id := range ids {
		n, ok := v.Get(id)
		if !ok {
			continue
		}
		s.Nodes = append(s.Nodes, *n.clone())
	}
	return s
}

// Encode renders the snapshot as JSON. Map keys are emitted sorted, so equal
// graphs encode to equal bytes.
func (s Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

// Restore builds a fresh context holding exactly the snapshot's nodes.
func Restore(s Snapshot, log logr.Logger) (*Context, error) {
	c := newEmptyContext(log)
	var max NodeID
	for i := range s.Nodes {
		n := s.Nodes[i].clone()
		if _, dup := c.nodes[n.ID]; dup {
			return nil, fmt.Errorf("restore: duplicate node id %d", n.ID)
		}
		c.insert(n)
		if n.ID > max {
			max = n.ID
		}
	}
	if _, ok := c.nodes[RootID]; !ok {
		return nil, fmt.Errorf("restore: snapshot has no root package")
	}
	c.nextID.Store(uint64(max))
	return c, nil
}
