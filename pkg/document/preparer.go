// Package document ensures source content, chunked text, and chunk
// embeddings exist before extraction can run, creating them on demand.
package document

import (
	"context"
	"fmt"
	"strings"

	"github.com/tarsy-labs/extrakt/pkg/external"
	"github.com/tarsy-labs/extrakt/pkg/models"
)

// ChunkStore persists chunks created on demand and reports which of a
// document's chunks still lack an embedding.
type ChunkStore interface {
	EnsureChunks(ctx context.Context, documentID string, chunked []external.ChunkedText) (chunkIDs []string, created bool, err error)
	ChunksMissingEmbeddings(ctx context.Context, chunkIDs []string) (ids []string, texts []string, err error)
	SaveEmbeddings(ctx context.Context, chunkIDs []string, embeddings [][]float32) error
}

// Preparer implements DocumentPreparer: it loads or synthesizes content,
// guarantees chunks exist, and triggers on-demand embedding generation.
type Preparer struct {
	documents       external.DocumentsService
	chunker         external.ChunkerService
	chunks          ChunkStore
	embeddings      external.EmbeddingsService
	embeddingsOn    bool
}

// New constructs a Preparer. embeddingsEnabled mirrors
// config.Defaults.EmbeddingsEnabled.
func New(documents external.DocumentsService, chunker external.ChunkerService, chunks ChunkStore, embeddings external.EmbeddingsService, embeddingsEnabled bool) *Preparer {
	return &Preparer{
		documents:    documents,
		chunker:      chunker,
		chunks:       chunks,
		embeddings:   embeddings,
		embeddingsOn: embeddingsEnabled,
	}
}

// Prepare fulfils the DocumentPreparer contract for one job's source.
func (p *Preparer) Prepare(ctx context.Context, job *models.Job, chunkCfg *models.ChunkingConfig) (*models.PreparedDocument, error) {
	switch job.SourceType {
	case models.SourceDocument:
		return p.prepareFromDocument(ctx, job, chunkCfg)
	case models.SourceManual:
		return p.prepareManual(job)
	default:
		return nil, fmt.Errorf("source type %q is not supported", job.SourceType)
	}
}

func (p *Preparer) prepareFromDocument(ctx context.Context, job *models.Job, chunkCfg *models.ChunkingConfig) (*models.PreparedDocument, error) {
	if job.SourceID == "" {
		return nil, fmt.Errorf("document job requires source_id")
	}
	doc, err := p.documents.Get(ctx, job.SourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", job.SourceID, err)
	}

	chunked, err := p.chunker.ChunkWithMetadata(ctx, doc.Content, chunkCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk document %s: %w", job.SourceID, err)
	}
	if len(chunked) == 0 {
		return nil, fmt.Errorf("document %s produced no chunks", job.SourceID)
	}

	chunkIDs, created, err := p.chunks.EnsureChunks(ctx, job.SourceID, chunked)
	if err != nil {
		return nil, fmt.Errorf("failed to persist chunks for document %s: %w", job.SourceID, err)
	}

	embeddingsGenerated := 0
	if p.embeddingsOn {
		embeddingsGenerated, err = p.ensureEmbeddings(ctx, chunkIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings for document %s: %w", job.SourceID, err)
		}
	}

	chunkTexts := make([]string, len(chunked))
	for i, c := range chunked {
		chunkTexts[i] = c.Text
	}

	return &models.PreparedDocument{
		Content:             doc.Content,
		ChunkIDs:            chunkIDs,
		ChunkTexts:          chunkTexts,
		ChunksCreated:       created,
		EmbeddingsGenerated: embeddingsGenerated,
	}, nil
}

func (p *Preparer) prepareManual(job *models.Job) (*models.PreparedDocument, error) {
	content, _ := job.SourceMetadata["text"].(string)
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("manual job requires non-empty source_metadata.text")
	}

	paragraphs := paragraphChunks(content)
	return &models.PreparedDocument{
		Content:       content,
		ChunkTexts:    paragraphs,
		ChunksCreated: false,
	}, nil
}

func (p *Preparer) ensureEmbeddings(ctx context.Context, chunkIDs []string) (int, error) {
	missingIDs, missingTexts, err := p.chunks.ChunksMissingEmbeddings(ctx, chunkIDs)
	if err != nil {
		return 0, err
	}
	if len(missingIDs) == 0 {
		return 0, nil
	}

	vectors, err := p.embeddings.EmbedDocuments(ctx, missingTexts)
	if err != nil {
		return 0, err
	}
	if err := p.chunks.SaveEmbeddings(ctx, missingIDs, vectors); err != nil {
		return 0, err
	}
	return len(missingIDs), nil
}

// paragraphChunks splits text on blank lines, used for manual jobs whose
// chunks exist only in-memory for relationship-building purposes.
func paragraphChunks(text string) []string {
	raw := strings.Split(text, "\n\n")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		out = append(out, text)
	}
	return out
}
