package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelc/internal/graph"
	"modelc/internal/pipeline"
	"modelc/internal/skeleton"
)

const people = `
id: people.pure
elements:
  - {kind: Class, package: test, name: Person, properties: [{name: name, type: {name: String}, multiplicity: 1}]}
  - kind: Function
    package: test
    name: nameOf
    parameters: [{name: p, type: {name: Person}}]
    return: {name: String}
    return_multiplicity: 1
    body: [{kind: property, name: name, args: [{kind: var, name: p}]}]
`

const greeting = `
id: greet.pure
elements:
  - kind: Function
    package: test
    name: greet
    parameters: [{name: p, type: {name: Person}}]
    return: {name: String}
    return_multiplicity: 1
    body: [{kind: call, name: nameOf, args: [{kind: var, name: p}]}]
`

func compiledRuntime(t *testing.T, c *graph.Context, docs ...string) *pipeline.Runtime {
	t.Helper()
	rt := pipeline.New(c, pipeline.Options{}, logr.Discard())
	var parsed []*skeleton.Document
	for _, d := range docs {
		doc, err := skeleton.Decode([]byte(d))
		require.NoError(t, err)
		parsed = append(parsed, doc)
	}
	res, err := rt.Compile(parsed...)
	require.NoError(t, err)
	require.NoError(t, res.Err())
	return rt
}

func openStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	_, err := store.LoadSnapshot(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	rt := compiledRuntime(t, graph.NewContext(logr.Discard()), people)
	saved := rt.Context().View().Snapshot()
	require.NoError(t, store.SaveSnapshot(ctx, saved))

	hashes, err := store.SourceHashes(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"people.pure": skeleton.ContentHash(mustDecode(t, people).Text)}, hashes)

	restored, err := Load(ctx, store, logr.Discard())
	require.NoError(t, err)
	want, err := saved.Encode()
	require.NoError(t, err)
	got, err := restored.View().Snapshot().Encode()
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
	assert.Equal(t, rt.Context().View().KindCounts(), restored.View().KindCounts())

	t.Run("Restored graph compiles new sources against cached ones", func(t *testing.T) {
		next := compiledRuntime(t, restored, greeting)
		info, ok := next.Source("greet.pure")
		require.True(t, ok)
		assert.True(t, info.Compiled)

		// Unchanged cached sources are skipped.
		res, err := next.Compile(mustDecode(t, people))
		require.NoError(t, err)
		assert.Equal(t, []string{"people.pure"}, res.Skipped)
	})
}

func TestSQLiteStore_SaveReplacesSnapshot(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	rt := compiledRuntime(t, graph.NewContext(logr.Discard()), people, greeting)
	require.NoError(t, store.SaveSnapshot(ctx, rt.Context().View().Snapshot()))

	require.NoError(t, rt.Delete("greet.pure"))
	_, err := rt.Unload()
	require.NoError(t, err)
	require.NoError(t, store.SaveSnapshot(ctx, rt.Context().View().Snapshot()))

	hashes, err := store.SourceHashes(ctx)
	require.NoError(t, err)
	assert.Len(t, hashes, 1)
	assert.Contains(t, hashes, "people.pure")

	snap, err := store.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Nodes, len(rt.Context().View().Snapshot().Nodes))
}

func mustDecode(t *testing.T, text string) *skeleton.Document {
	t.Helper()
	doc, err := skeleton.Decode([]byte(text))
	require.NoError(t, err)
	return doc
}
