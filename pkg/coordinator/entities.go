package coordinator

import (
	"context"
	"log/slog"

	"github.com/tarsy-labs/extrakt/pkg/confidence"
	"github.com/tarsy-labs/extrakt/pkg/config"
	"github.com/tarsy-labs/extrakt/pkg/graph"
	"github.com/tarsy-labs/extrakt/pkg/linker"
	"github.com/tarsy-labs/extrakt/pkg/models"
	"github.com/tarsy-labs/extrakt/pkg/verify"
)

// entityProcessingResult accumulates the outcome of scoring, gating,
// linking, and persisting every candidate entity from one job's extraction
// result.
type entityProcessingResult struct {
	outcomes          []models.EntityOutcome
	createdObjectIDs  []string
	reviewObjectIDs   []string
	rejectedCount     int
}

// processEntities runs every candidate through score -> gate -> link ->
// persist, in LLM order, registering each create/merge/skip outcome into
// batch before the next candidate is resolved (so same-batch relationships
// can reference it). Progress is reported at every 10% boundary and always
// at 1/N and N/N; totalEntities == 0 reports no progress at all.
func (c *Coordinator) processEntities(
	ctx context.Context,
	job *models.Job,
	projectID, organizationID string,
	candidates []models.CandidateEntity,
	thresholds confidence.Thresholds,
	verifyResults map[string]verify.Result,
	strategy config.LinkingStrategy,
	similarityThreshold float64,
	batch *graph.BatchMap,
	progressFn func(done, total int),
) entityProcessingResult {
	total := len(candidates)
	var out entityProcessingResult

	lastReportedTenth := -1
	for i, candidate := range candidates {
		done := i + 1

		finalConfidence := confidence.Score(candidate, verifyResults)
		band := confidence.Gate(finalConfidence, thresholds)

		outcome := models.EntityOutcome{
			Name:       candidate.Name,
			Type:       candidate.TypeName,
			Confidence: finalConfidence,
		}

		switch band {
		case confidence.BandReject:
			outcome.Action = "reject"
			outcome.Reason = "confidence below minimum threshold"
			out.rejectedCount++

		default:
			decision, err := c.linker.Link(ctx, projectID, candidate, strategy, similarityThreshold)
			if err != nil {
				slog.Warn("entity linking failed, treating as create", "job_id", job.ID, "entity", candidate.Name, "error", err)
				decision = linker.Decision{Action: linker.ActionCreate}
			}

			switch decision.Action {
			case linker.ActionSkip:
				outcome.Action = "skip"
				outcome.ObjectID = decision.ExistingObjectID
				batch.Put(candidate.Name, decision.ExistingObjectID)

			case linker.ActionMerge:
				if err := c.writer.MergeObject(ctx, decision.ExistingObjectID, candidate, finalConfidence, job.ID); err != nil {
					slog.Error("failed to merge entity", "job_id", job.ID, "entity", candidate.Name, "error", err)
					outcome.Action = "merge_failed"
					outcome.Reason = err.Error()
				} else {
					outcome.Action = "merge"
					outcome.ObjectID = decision.ExistingObjectID
					batch.Put(candidate.Name, decision.ExistingObjectID)
				}

			default: // create
				id, err := c.writer.CreateObject(ctx, candidate, finalConfidence, band, projectID, organizationID, job.SourceID, job.ID)
				if err != nil {
					slog.Error("failed to create entity", "job_id", job.ID, "entity", candidate.Name, "error", err)
					outcome.Action = "create_failed"
					outcome.Reason = err.Error()
				} else {
					outcome.Action = "create"
					outcome.ObjectID = id
					batch.Put(candidate.Name, id)
					out.createdObjectIDs = append(out.createdObjectIDs, id)
					if band.RequiresReviewLabel() {
						out.reviewObjectIDs = append(out.reviewObjectIDs, id)
					}
				}
			}
		}

		out.outcomes = append(out.outcomes, outcome)

		if total > 0 {
			tenth := done * 10 / total
			if done == 1 || done == total || tenth != lastReportedTenth {
				progressFn(done, total)
				lastReportedTenth = tenth
			}
		}
	}

	return out
}
