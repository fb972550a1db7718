package graph

import (
	"sync"

	"github.com/google/uuid"
)

// Owner identifies the logical caller a transaction belongs to.
type Owner string

// NewOwner returns a fresh owner token.
func NewOwner() Owner {
	return Owner(uuid.NewString())
}

// Transaction is a private overlay over the committed graph. Reads fall
// through to committed state; writes land in the overlay until Commit.
type Transaction struct {
	ID     string
	owner  Owner
	shared bool
	ctx    *Context

	mu      sync.Mutex
	nodes   map[NodeID]*Node
	created map[NodeID]struct{}
	deleted map[NodeID]struct{}
	byName  map[nameKey][]NodeID
	byBare  map[string][]NodeID
	byKind  map[Kind][]NodeID
	done    bool
}

func newTransaction(c *Context, owner Owner, shared bool) *Transaction {
	return &Transaction{
		ID:      uuid.NewString(),
		owner:   owner,
		shared:  shared,
		ctx:     c,
		nodes:   make(map[NodeID]*Node),
		created: make(map[NodeID]struct{}),
		deleted: make(map[NodeID]struct{}),
		byName:  make(map[nameKey][]NodeID),
		byBare:  make(map[string][]NodeID),
		byKind:  make(map[Kind][]NodeID),
	}
}

func (t *Transaction) Owner() Owner { return t.owner }

func (t *Transaction) checkOwner(owner Owner) error {
	if !t.shared && owner != t.owner {
		return ErrNotOwner
	}
	return nil
}

// Enter returns a writable view of the transaction for owner.
func (t *Transaction) Enter(owner Owner) (*View, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil, ErrTxnDone
	}
	if err := t.checkOwner(owner); err != nil {
		return nil, err
	}
	return &View{ctx: t.ctx, txn: t}, nil
}

// Done reports whether the transaction has been committed or rolled back.
func (t *Transaction) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Commit publishes the overlay. It is the only place committed state changes.
func (t *Transaction) Commit(owner Owner) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxnDone
	}
	if err := t.checkOwner(owner); err != nil {
		return err
	}

	c := t.ctx
	c.mu.Lock()
	for id := range t.deleted {
		c.remove(id)
	}
	for id, n := range t.nodes {
		c.remove(id)
		c.insert(n)
	}
	c.mu.Unlock()

	c.log.V(1).Info("transaction committed", "txn", t.ID,
		"written", len(t.nodes), "created", len(t.created), "deleted", len(t.deleted))
	t.release()
	return nil
}

// Rollback discards the overlay. Committed state is untouched.
func (t *Transaction) Rollback(owner Owner) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxnDone
	}
	if err := t.checkOwner(owner); err != nil {
		return err
	}
	t.ctx.log.V(1).Info("transaction rolled back", "txn", t.ID, "discarded", len(t.nodes))
	t.release()
	return nil
}

func (t *Transaction) release() {
	t.done = true
	t.nodes = nil
	t.created = nil
	t.deleted = nil
	t.byName = nil
	t.byBare = nil
	t.byKind = nil
}
