package graph

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
)

var (
	ErrNotFound = errors.New("graph: node not found")
	ErrNotOwner = errors.New("graph: transaction is owned by another caller")
	ErrTxnDone  = errors.New("graph: transaction already committed or rolled back")
	ErrReadOnly = errors.New("graph: view is read-only")
)

// RootID is the id of the root package every other package hangs from.
const RootID NodeID = 1

const RootName = "Root"

type nameKey struct {
	parent NodeID
	name   string
}

// indexed reports whether nodes of kind k are reachable by (parent, name).
func indexed(k Kind) bool {
	return k.IsPackageable() || k == KindProperty || k == KindEnum || k == KindSource
}

// Context owns the committed graph. Committed nodes are never mutated in
// place: transactions copy on write and swap the new versions in on commit.
type Context struct {
	mu     sync.RWMutex
	nodes  map[NodeID]*Node
	byName map[nameKey][]NodeID
	byBare map[string][]NodeID
	byKind map[Kind]map[NodeID]struct{}
	nextID atomic.Uint64
	log    logr.Logger
}

// NewContext creates a graph holding only the root package.
func NewContext(log logr.Logger) *Context {
	c := newEmptyContext(log)
	root := &Node{ID: RootID, Kind: KindPackage, Name: RootName}
	c.insert(root)
	c.nextID.Store(uint64(RootID))
	return c
}

func newEmptyContext(log logr.Logger) *Context {
	return &Context{
		nodes:  make(map[NodeID]*Node),
		byName: make(map[nameKey][]NodeID),
		byBare: make(map[string][]NodeID),
		byKind: make(map[Kind]map[NodeID]struct{}),
		log:    log,
	}
}

func (c *Context) Logger() logr.Logger { return c.log }

func (c *Context) allocID() NodeID {
	return NodeID(c.nextID.Add(1))
}

// insert and remove require c.mu held for writing.
func (c *Context) insert(n *Node) {
	c.nodes[n.ID] = n
	if indexed(n.Kind) && n.Name != "" {
		k := nameKey{n.Parent, n.Name}
		c.byName[k] = append(c.byName[k], n.ID)
		if n.Kind.IsPackageable() {
			c.byBare[n.Name] = append(c.byBare[n.Name], n.ID)
		}
	}
	set, ok := c.byKind[n.Kind]
	if !ok {
		set = make(map[NodeID]struct{})
		c.byKind[n.Kind] = set
	}
	set[n.ID] = struct{}{}
}

func (c *Context) remove(id NodeID) {
	n, ok := c.nodes[id]
	if !ok {
		return
	}
	delete(c.nodes, id)
	if indexed(n.Kind) && n.Name != "" {
		k := nameKey{n.Parent, n.Name}
		c.byName[k] = dropID(c.byName[k], id)
		if len(c.byName[k]) == 0 {
			delete(c.byName, k)
		}
		if n.Kind.IsPackageable() {
			c.byBare[n.Name] = dropID(c.byBare[n.Name], id)
			if len(c.byBare[n.Name]) == 0 {
				delete(c.byBare, n.Name)
			}
		}
	}
	delete(c.byKind[n.Kind], id)
}

// View returns a read-only view of the committed state.
func (c *Context) View() *View {
	return &View{ctx: c}
}

// NewTransaction opens a transaction owned by owner. When shared is true any
// owner may enter, commit or roll it back.
func (c *Context) NewTransaction(owner Owner, shared bool) *Transaction {
	t := newTransaction(c, owner, shared)
	c.log.V(1).Info("transaction opened", "txn", t.ID, "owner", string(owner), "shared", shared)
	return t
}

// Within enters txn as owner and runs fn against its view.
func (c *Context) Within(txn *Transaction, owner Owner, fn func(*View) error) error {
	v, err := txn.Enter(owner)
	if err != nil {
		return err
	}
	return fn(v)
}

// Len returns the number of committed nodes.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.nodes)
}

func dropID(ids []NodeID, id NodeID) []NodeID {
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

func sortIDs(ids []NodeID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
