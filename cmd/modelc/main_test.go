package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"modelc/internal/skeleton"
)

func TestClassify(t *testing.T) {
	docs := []*skeleton.Document{
		{ID: "a.pure", Text: "class A"},
		{ID: "b.pure", Text: "class B"},
		{ID: "c.pure", Text: "class C"},
	}
	cached := map[string]string{
		"a.pure":    skeleton.ContentHash("class A"),
		"b.pure":    skeleton.ContentHash("class B, edited"),
		"gone.pure": skeleton.ContentHash("gone"),
	}

	added, modified, unchanged := classify(docs, cached)
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, modified)
	assert.Equal(t, 1, unchanged)
}
