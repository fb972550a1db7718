package graph

import (
	"sync"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext() *Context {
	return NewContext(logr.Discard())
}

func TestContext_CommitPublishesOverlay(t *testing.T) {
	c := newTestContext()
	owner := NewOwner()
	txn := c.NewTransaction(owner, false)

	v, err := txn.Enter(owner)
	require.NoError(t, err)

	pkg := v.EnsurePackage("meta::pure")
	cls := v.Create(KindClass, "Person", pkg, "src1")
	v.AddChild(pkg, cls.ID)

	// 1. Invisible from committed state before commit
	assert.Empty(t, c.View().Lookup("meta::pure::Person"))
	assert.Equal(t, []NodeID{cls.ID}, v.Lookup("meta::pure::Person"))

	// 2. Visible after commit
	require.NoError(t, txn.Commit(owner))
	committed := c.View()
	assert.Equal(t, []NodeID{cls.ID}, committed.Lookup("meta::pure::Person"))
	assert.Equal(t, "meta::pure::Person", committed.Path(cls.ID))
	assert.Equal(t, []NodeID{cls.ID}, committed.Children(pkg))

	// 3. Closed transactions reject further use
	_, err = txn.Enter(owner)
	assert.ErrorIs(t, err, ErrTxnDone)
	assert.ErrorIs(t, txn.Commit(owner), ErrTxnDone)
}

func TestTransaction_RollbackRestoresExactState(t *testing.T) {
	c := newTestContext()
	owner := NewOwner()

	seed := c.NewTransaction(owner, false)
	v, err := seed.Enter(owner)
	require.NoError(t, err)
	pkg := v.EnsurePackage("model")
	a := v.Create(KindClass, "A", pkg, "s")
	v.AddChild(pkg, a.ID)
	fn := v.Create(KindConcreteFunction, "f", pkg, "s")
	v.AddChild(pkg, fn.ID)
	require.NoError(t, v.Link(fn.ID, "returnType", a.ID))
	require.NoError(t, seed.Commit(owner))

	before, err := c.View().Snapshot().Encode()
	require.NoError(t, err)

	txn := c.NewTransaction(owner, false)
	v, err = txn.Enter(owner)
	require.NoError(t, err)
	require.NoError(t, v.Unlink(fn.ID, "returnType"))
	require.NoError(t, v.Delete(a.ID))
	v.Create(KindClass, "B", pkg, "s")
	m, err := v.Mutable(fn.ID)
	require.NoError(t, err)
	m.Bound = true
	require.NoError(t, txn.Rollback(owner))

	after, err := c.View().Snapshot().Encode()
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestTransaction_OwnerChecks(t *testing.T) {
	c := newTestContext()
	alice, bob := NewOwner(), NewOwner()

	t.Run("Private transaction", func(t *testing.T) {
		txn := c.NewTransaction(alice, false)
		_, err := txn.Enter(bob)
		assert.ErrorIs(t, err, ErrNotOwner)
		assert.ErrorIs(t, txn.Commit(bob), ErrNotOwner)
		assert.ErrorIs(t, txn.Rollback(bob), ErrNotOwner)
		assert.NoError(t, txn.Rollback(alice))
	})

	t.Run("Shared transaction", func(t *testing.T) {
		txn := c.NewTransaction(alice, true)
		_, err := txn.Enter(bob)
		assert.NoError(t, err)
		assert.NoError(t, txn.Commit(bob))
	})
}

func TestTransaction_IsolationAcrossGoroutines(t *testing.T) {
	c := newTestContext()
	const workers = 8

	var wg sync.WaitGroup
	ids := make([]NodeID, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			owner := NewOwner()
			txn := c.NewTransaction(owner, false)
			err := c.Within(txn, owner, func(v *View) error {
				n := v.Create(KindClass, "C", RootID, "")
				ids[i] = n.ID
				// Other goroutines' uncommitted nodes are never visible.
				for _, id := range v.ByKind(KindClass) {
					if id != n.ID {
						if _, ok := c.View().Get(id); !ok {
							t.Errorf("saw uncommitted node %d", id)
						}
					}
				}
				return nil
			})
			if err != nil {
				t.Error(err)
				return
			}
			if i%2 == 0 {
				_ = txn.Commit(owner)
			} else {
				_ = txn.Rollback(owner)
			}
		}(i)
	}
	wg.Wait()

	committed := c.View().ByKind(KindClass)
	assert.Len(t, committed, workers/2)
	for i, id := range ids {
		_, ok := c.View().Get(id)
		assert.Equal(t, i%2 == 0, ok)
	}
}

func TestView_UsagesTrackReverseDependencies(t *testing.T) {
	c := newTestContext()
	owner := NewOwner()
	txn := c.NewTransaction(owner, false)
	v, err := txn.Enter(owner)
	require.NoError(t, err)

	target := v.Create(KindClass, "T", RootID, "")
	user1 := v.Create(KindGenericType, "", 0, "")
	user2 := v.Create(KindGenericType, "", 0, "")
	require.NoError(t, v.Link(user1.ID, "rawType", target.ID))
	require.NoError(t, v.Link(user2.ID, "rawType", target.ID))

	assert.Equal(t, []NodeID{user1.ID, user2.ID}, v.Dependents(target.ID))

	require.NoError(t, v.Unlink(user1.ID, "rawType"))
	assert.Equal(t, []NodeID{user2.ID}, v.Dependents(target.ID))
	n := v.MustGet(user1.ID)
	assert.False(t, n.Has("rawType"))
}

func TestSnapshot_RestoreContinuesIDs(t *testing.T) {
	c := newTestContext()
	owner := NewOwner()
	txn := c.NewTransaction(owner, false)
	v, err := txn.Enter(owner)
	require.NoError(t, err)
	v.EnsurePackage("a::b")
	require.NoError(t, txn.Commit(owner))

	data, err := c.View().Snapshot().Encode()
	require.NoError(t, err)
	s, err := DecodeSnapshot(data)
	require.NoError(t, err)

	restored, err := Restore(s, logr.Discard())
	require.NoError(t, err)
	pkg, ok := restored.View().Package("a::b")
	require.True(t, ok)

	txn = restored.NewTransaction(owner, false)
	v, err = txn.Enter(owner)
	require.NoError(t, err)
	n := v.Create(KindClass, "X", pkg, "")
	assert.Greater(t, n.ID, pkg)
	assert.Equal(t, 3, restored.View().KindCounts()[KindPackage])
}
