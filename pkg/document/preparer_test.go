package document

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarsy-labs/extrakt/pkg/external"
	"github.com/tarsy-labs/extrakt/pkg/models"
)

type fakeDocuments struct{ content string }

func (f fakeDocuments) Get(_ context.Context, id string) (*models.Document, error) {
	return &models.Document{DocumentID: id, Content: f.content}, nil
}

type fakeChunker struct{}

func (fakeChunker) ChunkWithMetadata(_ context.Context, text string, _ *models.ChunkingConfig) ([]external.ChunkedText, error) {
	return []external.ChunkedText{{Text: text, Metadata: map[string]interface{}{"index": 0}}}, nil
}

type fakeChunkStore struct {
	ids     []string
	missing []string
	texts   []string
	saved   map[string][]float32
}

func (f *fakeChunkStore) EnsureChunks(_ context.Context, _ string, chunked []external.ChunkedText) ([]string, bool, error) {
	ids := make([]string, len(chunked))
	for i := range chunked {
		ids[i] = "chunk-0"
	}
	f.ids = ids
	return ids, true, nil
}

func (f *fakeChunkStore) ChunksMissingEmbeddings(_ context.Context, ids []string) ([]string, []string, error) {
	return f.missing, f.texts, nil
}

func (f *fakeChunkStore) SaveEmbeddings(_ context.Context, ids []string, embeddings [][]float32) error {
	f.saved = map[string][]float32{}
	for i, id := range ids {
		f.saved[id] = embeddings[i]
	}
	return nil
}

type fakeEmbeddings struct{}

func (fakeEmbeddings) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func (fakeEmbeddings) SearchByVector(context.Context, []float32, external.VectorSearchOptions) ([]external.VectorMatch, error) {
	return nil, nil
}

func TestPrepareFromDocumentGeneratesEmbeddings(t *testing.T) {
	store := &fakeChunkStore{missing: []string{"chunk-0"}, texts: []string{"hello"}}
	p := New(fakeDocuments{content: "hello"}, fakeChunker{}, store, fakeEmbeddings{}, true)

	job := &models.Job{SourceType: models.SourceDocument, SourceID: "doc-1"}
	prepared, err := p.Prepare(context.Background(), job, nil)
	require.NoError(t, err)

	assert.Equal(t, "hello", prepared.Content)
	assert.Equal(t, []string{"chunk-0"}, prepared.ChunkIDs)
	assert.True(t, prepared.ChunksCreated)
	assert.Equal(t, 1, prepared.EmbeddingsGenerated)
}

func TestPrepareManualUsesInlineText(t *testing.T) {
	p := New(nil, nil, nil, nil, false)
	job := &models.Job{
		SourceType:     models.SourceManual,
		SourceMetadata: map[string]interface{}{"text": "Paragraph one.\n\nParagraph two."},
	}

	prepared, err := p.Prepare(context.Background(), job, nil)
	require.NoError(t, err)
	assert.False(t, prepared.ChunksCreated)
	assert.Equal(t, []string{"Paragraph one.", "Paragraph two."}, prepared.ChunkTexts)
}

func TestPrepareManualRejectsEmptyText(t *testing.T) {
	p := New(nil, nil, nil, nil, false)
	job := &models.Job{SourceType: models.SourceManual, SourceMetadata: map[string]interface{}{}}

	_, err := p.Prepare(context.Background(), job, nil)
	require.Error(t, err)
}

func TestPrepareRejectsUnsupportedSourceType(t *testing.T) {
	p := New(nil, nil, nil, nil, false)
	job := &models.Job{SourceType: models.SourceAPI}

	_, err := p.Prepare(context.Background(), job, nil)
	require.Error(t, err)
}
