// Package entitycontext loads a bounded set of semantically related existing
// graph entities to give the LLM deduplication context before extraction.
// Named to avoid colliding with the standard library's context package,
// which every function here also takes as its first argument.
package entitycontext

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tarsy-labs/extrakt/pkg/external"
	"github.com/tarsy-labs/extrakt/pkg/models"
)

// DefaultLimitPerType is how many existing entities Loader surfaces by
// default, mirroring the server-wide default of 30.
const DefaultLimitPerType = 30

// DefaultSimilarityThreshold is the default vector-distance cutoff.
const DefaultSimilarityThreshold = 0.5

// DefaultNeighborLimit bounds how many one-hop neighbors are fetched per entity.
const DefaultNeighborLimit = 10

// Loader implements ContextLoader.
type Loader struct {
	embeddings external.EmbeddingsService
	graph      external.GraphService
}

// New constructs a Loader.
func New(embeddings external.EmbeddingsService, graph external.GraphService) *Loader {
	return &Loader{embeddings: embeddings, graph: graph}
}

// Load returns up to limit existing entities from projectID that are
// semantically related to the document, using the first few chunk
// embeddings to drive a vector search. Failure is non-fatal: callers should
// log and proceed with an empty slice rather than fail the job.
func (l *Loader) Load(ctx context.Context, projectID string, firstChunks []string, limit int, similarityThreshold float64) ([]models.ContextEntity, error) {
	if limit <= 0 {
		limit = DefaultLimitPerType
	}
	if similarityThreshold <= 0 {
		similarityThreshold = DefaultSimilarityThreshold
	}
	if len(firstChunks) == 0 {
		return nil, nil
	}

	// Only the first few chunks drive the search — the document's opening
	// content is assumed representative of its overall subject matter.
	probe := firstChunks
	if len(probe) > 3 {
		probe = probe[:3]
	}

	vectors, err := l.embeddings.EmbedDocuments(ctx, probe)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []models.ContextEntity
	for _, vec := range vectors {
		if len(out) >= limit {
			break
		}
		matches, err := l.embeddings.SearchByVector(ctx, vec, external.VectorSearchOptions{
			ProjectID:   projectID,
			Limit:       limit,
			MaxDistance: similarityThreshold,
		})
		if err != nil {
			return nil, err
		}

		for _, m := range matches {
			if len(out) >= limit || seen[m.ID] {
				continue
			}
			entity, err := l.loadEntity(ctx, m.ID)
			if err != nil {
				slog.Warn("failed to load context entity, skipping", "object_id", m.ID, "error", err)
				continue
			}
			seen[m.ID] = true
			out = append(out, *entity)
		}
	}

	return out, nil
}

func (l *Loader) loadEntity(ctx context.Context, objectID string) (*models.ContextEntity, error) {
	obj, err := l.graph.GetObject(ctx, objectID)
	if err != nil {
		return nil, err
	}

	neighbors, err := l.graph.ListNeighbors(ctx, objectID, DefaultNeighborLimit)
	if err != nil {
		slog.Warn("failed to load neighbors for context entity", "object_id", objectID, "error", err)
		neighbors = nil
	}

	name, _ := obj.Properties["name"].(string)
	description, _ := obj.Properties["description"].(string)

	return &models.ContextEntity{
		ID:          obj.ID,
		Name:        name,
		Type:        obj.Type,
		Description: description,
		Properties:  stripInternal(obj.Properties),
		Neighbors:   neighbors,
	}, nil
}

// stripInternal removes every _-prefixed key (the reserved _extraction_*
// audit keys among them) so they don't leak
// into the LLM prompt as if they were domain properties.
func stripInternal(props map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(props))
	for k, v := range props {
		if strings.HasPrefix(k, "_") {
			continue
		}
		out[k] = v
	}
	return out
}
