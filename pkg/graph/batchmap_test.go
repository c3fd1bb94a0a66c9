package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBatchMapPutAndGetNormalizesCase(t *testing.T) {
	m := NewBatchMap()
	m.Put("Ada Lovelace", "obj-1")

	id, ok := m.Get("  ada lovelace  ")
	assert.True(t, ok)
	assert.Equal(t, "obj-1", id)
}

func TestBatchMapStripsLeadingArticle(t *testing.T) {
	m := NewBatchMap()
	m.Put("The Analytical Engine", "obj-2")

	id, ok := m.Get("Analytical Engine")
	assert.True(t, ok)
	assert.Equal(t, "obj-2", id)
}

func TestBatchMapMissReturnsFalse(t *testing.T) {
	m := NewBatchMap()
	_, ok := m.Get("nobody")
	assert.False(t, ok)
}
