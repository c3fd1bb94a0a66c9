// Package linker decides, for each candidate entity, whether to create a
// new graph object, merge into an existing one, or skip entirely.
package linker

import (
	"context"
	"fmt"

	"github.com/tarsy-labs/extrakt/pkg/config"
	"github.com/tarsy-labs/extrakt/pkg/external"
	"github.com/tarsy-labs/extrakt/pkg/models"
)

// Action is the outcome of linking one candidate entity.
type Action string

// Recognized actions.
const (
	ActionCreate Action = "create"
	ActionMerge  Action = "merge"
	ActionSkip   Action = "skip"
)

// Decision is the result of Link for one candidate.
type Decision struct {
	Action           Action
	ExistingObjectID string
}

// SkipThreshold is the vector distance at or below which an existing match is
// considered close enough to skip re-creation entirely rather than merge;
// above it (but still within the linking similarity threshold) the
// match is merged instead. Reserved for the vector_similarity strategy,
// where "so similar that re-creation adds no value" needs a concrete
// cutoff.
const SkipThreshold = 0.05

// Linker implements EntityLinker.
type Linker struct {
	graph      external.GraphService
	embeddings external.EmbeddingsService
}

// New constructs a Linker.
func New(graph external.GraphService, embeddings external.EmbeddingsService) *Linker {
	return &Linker{graph: graph, embeddings: embeddings}
}

// Link resolves one candidate against existing graph content in projectID
// using the given strategy.
func (l *Linker) Link(ctx context.Context, projectID string, candidate models.CandidateEntity, strategy config.LinkingStrategy, similarityThreshold float64) (Decision, error) {
	switch strategy {
	case config.LinkingAlwaysNew:
		return Decision{Action: ActionCreate}, nil

	case config.LinkingKeyMatch:
		existing, err := l.graph.FindObjectByName(ctx, projectID, candidate.Name)
		if err != nil {
			return Decision{}, fmt.Errorf("key_match lookup failed: %w", err)
		}
		if existing == nil {
			return Decision{Action: ActionCreate}, nil
		}
		return Decision{Action: ActionMerge, ExistingObjectID: existing.ID}, nil

	case config.LinkingVectorSimilarity:
		return l.linkByVector(ctx, projectID, candidate, similarityThreshold)

	default:
		return Decision{}, fmt.Errorf("unknown entity linking strategy %q", strategy)
	}
}

func (l *Linker) linkByVector(ctx context.Context, projectID string, candidate models.CandidateEntity, similarityThreshold float64) (Decision, error) {
	text := candidate.Name
	if candidate.Description != "" {
		text = candidate.Name + ": " + candidate.Description
	}

	vectors, err := l.embeddings.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return Decision{}, fmt.Errorf("vector_similarity embedding failed: %w", err)
	}
	if len(vectors) == 0 {
		return Decision{Action: ActionCreate}, nil
	}

	matches, err := l.embeddings.SearchByVector(ctx, vectors[0], external.VectorSearchOptions{
		ProjectID:   projectID,
		Limit:       1,
		MaxDistance: similarityThreshold,
	})
	if err != nil {
		return Decision{}, fmt.Errorf("vector_similarity search failed: %w", err)
	}
	if len(matches) == 0 {
		return Decision{Action: ActionCreate}, nil
	}

	best := matches[0]
	if best.Distance <= SkipThreshold {
		return Decision{Action: ActionSkip, ExistingObjectID: best.ID}, nil
	}
	return Decision{Action: ActionMerge, ExistingObjectID: best.ID}, nil
}
