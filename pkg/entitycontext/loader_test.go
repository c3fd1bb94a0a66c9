package entitycontext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarsy-labs/extrakt/pkg/external"
	"github.com/tarsy-labs/extrakt/pkg/models"
)

type fakeEmbeddings struct {
	matches []external.VectorMatch
}

func (fakeEmbeddings) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func (f fakeEmbeddings) SearchByVector(_ context.Context, _ []float32, _ external.VectorSearchOptions) ([]external.VectorMatch, error) {
	return f.matches, nil
}

type fakeGraph struct {
	objects   map[string]*models.GraphObject
	neighbors map[string][]models.RelatedObject
}

func (f fakeGraph) CreateObject(context.Context, models.GraphObject) (string, error) { return "", nil }
func (f fakeGraph) MergeObjectProperties(context.Context, string, map[string]interface{}) error {
	return nil
}
func (f fakeGraph) GetObject(_ context.Context, id string) (*models.GraphObject, error) {
	obj, ok := f.objects[id]
	if !ok {
		return nil, assert.AnError
	}
	return obj, nil
}
func (f fakeGraph) FindObjectByName(context.Context, string, string) (*models.GraphObject, error) {
	return nil, nil
}
func (f fakeGraph) ListTags(context.Context, string) ([]string, error) { return nil, nil }
func (f fakeGraph) CreateRelationship(context.Context, models.GraphRelationship) (string, error) {
	return "", nil
}
func (f fakeGraph) LinkObjectToChunk(context.Context, models.ObjectChunkLink) error { return nil }
func (f fakeGraph) ListNeighbors(_ context.Context, id string, _ int) ([]models.RelatedObject, error) {
	return f.neighbors[id], nil
}

func TestLoadReturnsEntitiesWithStrippedInternalProps(t *testing.T) {
	emb := fakeEmbeddings{matches: []external.VectorMatch{{ID: "obj-1", Distance: 0.1}}}
	graph := fakeGraph{
		objects: map[string]*models.GraphObject{
			"obj-1": {
				ID:   "obj-1",
				Type: "Person",
				Properties: map[string]interface{}{
					"name":                    "Ada Lovelace",
					"description":             "mathematician",
					models.PropExtractionJobID: "job-9",
				},
			},
		},
		neighbors: map[string][]models.RelatedObject{
			"obj-1": {{RelatedName: "Analytical Engine", RelatedType: "Device", Direction: "outgoing"}},
		},
	}

	l := New(emb, graph)
	entities, err := l.Load(context.Background(), "proj-1", []string{"some chunk text"}, 0, 0)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "Ada Lovelace", entities[0].Name)
	assert.Equal(t, "Person", entities[0].Type)
	assert.NotContains(t, entities[0].Properties, models.PropExtractionJobID)
	assert.Len(t, entities[0].Neighbors, 1)
}

func TestLoadReturnsEmptyWhenNoChunks(t *testing.T) {
	l := New(fakeEmbeddings{}, fakeGraph{})
	entities, err := l.Load(context.Background(), "proj-1", nil, 30, 0.5)
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func TestLoadSkipsEntityThatFailsToLoad(t *testing.T) {
	emb := fakeEmbeddings{matches: []external.VectorMatch{{ID: "missing"}}}
	l := New(emb, fakeGraph{objects: map[string]*models.GraphObject{}})
	entities, err := l.Load(context.Background(), "proj-1", []string{"chunk"}, 30, 0.5)
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func TestLoadRespectsLimit(t *testing.T) {
	emb := fakeEmbeddings{matches: []external.VectorMatch{{ID: "obj-1"}, {ID: "obj-2"}}}
	graph := fakeGraph{objects: map[string]*models.GraphObject{
		"obj-1": {ID: "obj-1", Type: "Person", Properties: map[string]interface{}{"name": "A"}},
		"obj-2": {ID: "obj-2", Type: "Person", Properties: map[string]interface{}{"name": "B"}},
	}}

	l := New(emb, graph)
	entities, err := l.Load(context.Background(), "proj-1", []string{"chunk"}, 1, 0.5)
	require.NoError(t, err)
	assert.Len(t, entities, 1)
}
