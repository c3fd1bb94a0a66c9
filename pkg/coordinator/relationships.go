package coordinator

import (
	"context"
	"log/slog"

	"github.com/tarsy-labs/extrakt/pkg/graph"
	"github.com/tarsy-labs/extrakt/pkg/models"
)

// relationshipResult accumulates the outcome of resolving and persisting
// every candidate relationship from one job's extraction result.
type relationshipResult struct {
	createdCount int
	skipped      []models.TimelineEvent
	failedCount  int
}

// processRelationships resolves each candidate's endpoints against batch
// (objects created earlier in this same job, or pre-existing ones) and
// writes the edge, recording every skip reason for the debug timeline.
func (c *Coordinator) processRelationships(
	ctx context.Context,
	jobID, projectID string,
	candidates []models.CandidateRelationship,
	schemas map[string]models.RelationshipTypeSchema,
	batch *graph.BatchMap,
) relationshipResult {
	var out relationshipResult

	for _, candidate := range candidates {
		outcome := c.relWriter.Write(ctx, projectID, jobID, candidate, schemas, batch)

		switch {
		case outcome.Created:
			out.createdCount++

		case outcome.Skipped:
			out.skipped = append(out.skipped, models.TimelineEvent{
				Step:    "relationship_write",
				Status:  models.TimelineWarning,
				Message: outcome.Reason,
				Metadata: map[string]interface{}{
					"relationship_type": candidate.RelationshipType,
					"source":            candidate.Source.Name,
					"target":            candidate.Target.Name,
				},
			})

		case outcome.Failed:
			out.failedCount++
			slog.Error("failed to write relationship", "job_id", jobID, "type", candidate.RelationshipType, "reason", outcome.Reason)
			out.skipped = append(out.skipped, models.TimelineEvent{
				Step:    "relationship_write",
				Status:  models.TimelineError,
				Message: outcome.Reason,
				Metadata: map[string]interface{}{
					"relationship_type": candidate.RelationshipType,
					"source":            candidate.Source.Name,
					"target":            candidate.Target.Name,
				},
			})
		}
	}

	return out
}
