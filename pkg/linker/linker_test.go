package linker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarsy-labs/extrakt/pkg/config"
	"github.com/tarsy-labs/extrakt/pkg/external"
	"github.com/tarsy-labs/extrakt/pkg/models"
)

type fakeGraph struct {
	byName map[string]*models.GraphObject
}

func (f fakeGraph) CreateObject(context.Context, models.GraphObject) (string, error) { return "", nil }
func (f fakeGraph) MergeObjectProperties(context.Context, string, map[string]interface{}) error {
	return nil
}
func (f fakeGraph) GetObject(context.Context, string) (*models.GraphObject, error) { return nil, nil }
func (f fakeGraph) FindObjectByName(_ context.Context, _ string, name string) (*models.GraphObject, error) {
	return f.byName[name], nil
}
func (f fakeGraph) ListTags(context.Context, string) ([]string, error) { return nil, nil }
func (f fakeGraph) CreateRelationship(context.Context, models.GraphRelationship) (string, error) {
	return "", nil
}
func (f fakeGraph) LinkObjectToChunk(context.Context, models.ObjectChunkLink) error { return nil }
func (f fakeGraph) ListNeighbors(context.Context, string, int) ([]models.RelatedObject, error) {
	return nil, nil
}

type fakeEmbeddings struct {
	matches []external.VectorMatch
}

func (fakeEmbeddings) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	return [][]float32{{0.1, 0.2}}, nil
}
func (f fakeEmbeddings) SearchByVector(context.Context, []float32, external.VectorSearchOptions) ([]external.VectorMatch, error) {
	return f.matches, nil
}

func TestLinkAlwaysNewNeverMergesOrSkips(t *testing.T) {
	l := New(fakeGraph{byName: map[string]*models.GraphObject{"Ada": {ID: "obj-1"}}}, fakeEmbeddings{})
	d, err := l.Link(context.Background(), "proj-1", models.CandidateEntity{Name: "Ada"}, config.LinkingAlwaysNew, 0.5)
	require.NoError(t, err)
	assert.Equal(t, ActionCreate, d.Action)
}

func TestLinkKeyMatchMergesOnExactName(t *testing.T) {
	l := New(fakeGraph{byName: map[string]*models.GraphObject{"Ada": {ID: "obj-1"}}}, fakeEmbeddings{})
	d, err := l.Link(context.Background(), "proj-1", models.CandidateEntity{Name: "Ada"}, config.LinkingKeyMatch, 0.5)
	require.NoError(t, err)
	assert.Equal(t, ActionMerge, d.Action)
	assert.Equal(t, "obj-1", d.ExistingObjectID)
}

func TestLinkKeyMatchCreatesWhenNoMatch(t *testing.T) {
	l := New(fakeGraph{byName: map[string]*models.GraphObject{}}, fakeEmbeddings{})
	d, err := l.Link(context.Background(), "proj-1", models.CandidateEntity{Name: "Ada"}, config.LinkingKeyMatch, 0.5)
	require.NoError(t, err)
	assert.Equal(t, ActionCreate, d.Action)
}

func TestLinkVectorSimilaritySkipsVeryCloseMatch(t *testing.T) {
	emb := fakeEmbeddings{matches: []external.VectorMatch{{ID: "obj-1", Distance: 0.01}}}
	l := New(fakeGraph{}, emb)
	d, err := l.Link(context.Background(), "proj-1", models.CandidateEntity{Name: "Ada"}, config.LinkingVectorSimilarity, 0.5)
	require.NoError(t, err)
	assert.Equal(t, ActionSkip, d.Action)
}

func TestLinkVectorSimilarityMergesModerateMatch(t *testing.T) {
	emb := fakeEmbeddings{matches: []external.VectorMatch{{ID: "obj-1", Distance: 0.2}}}
	l := New(fakeGraph{}, emb)
	d, err := l.Link(context.Background(), "proj-1", models.CandidateEntity{Name: "Ada"}, config.LinkingVectorSimilarity, 0.5)
	require.NoError(t, err)
	assert.Equal(t, ActionMerge, d.Action)
}

func TestLinkVectorSimilarityCreatesWhenNoMatch(t *testing.T) {
	l := New(fakeGraph{}, fakeEmbeddings{})
	d, err := l.Link(context.Background(), "proj-1", models.CandidateEntity{Name: "Ada"}, config.LinkingVectorSimilarity, 0.5)
	require.NoError(t, err)
	assert.Equal(t, ActionCreate, d.Action)
}

func TestLinkUnknownStrategyErrors(t *testing.T) {
	l := New(fakeGraph{}, fakeEmbeddings{})
	_, err := l.Link(context.Background(), "proj-1", models.CandidateEntity{Name: "Ada"}, config.LinkingStrategy("bogus"), 0.5)
	require.Error(t, err)
}
