// Package verify runs the optional post-hoc verification pass over a
// batch of candidate entities, merging the result into a name-keyed map
// ConfidenceScorer consults when adjusting heuristic scores.
package verify

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tarsy-labs/extrakt/pkg/external"
	"github.com/tarsy-labs/extrakt/pkg/models"
)

// Result is one entity's verification outcome, keyed by normalized name.
type Result struct {
	Verified   bool
	Confidence float64
	Tier       int
}

// Verifier wraps an external.VerifierService and normalizes its per-entity
// results into a name-keyed map.
type Verifier struct {
	service external.VerifierService
}

// New constructs a Verifier. A nil service makes Verify a no-op, which is
// how callers disable verification for pipelines that embed it elsewhere.
func New(service external.VerifierService) *Verifier {
	return &Verifier{service: service}
}

// Verify submits sourceText and entities to the backing service and returns
// a name-keyed result map. Verification failure is non-fatal: Verify logs
// it and returns an empty map with a nil error.
func (v *Verifier) Verify(ctx context.Context, jobID string, sourceText string, entities []models.CandidateEntity) (map[string]Result, error) {
	if v.service == nil || len(entities) == 0 {
		return map[string]Result{}, nil
	}

	inputs := make([]external.VerifyEntityInput, len(entities))
	for i, e := range entities {
		inputs[i] = external.VerifyEntityInput{
			ID:         e.Name,
			Name:       e.Name,
			Type:       e.TypeName,
			Properties: e.Properties,
		}
	}

	resp, err := v.service.VerifyBatch(ctx, external.VerifyBatchRequest{
		SourceText: sourceText,
		Entities:   inputs,
		JobID:      jobID,
	})
	if err != nil {
		slog.Warn("entity verification failed, proceeding without adjustment", "job_id", jobID, "error", err)
		return map[string]Result{}, nil
	}

	out := make(map[string]Result, len(resp.Results))
	for _, r := range resp.Results {
		out[NormalizeName(r.EntityName)] = Result{
			Verified:   r.EntityVerified,
			Confidence: r.OverallConfidence,
			Tier:       r.EntityVerificationTier,
		}
	}
	return out, nil
}

// NormalizeName lowercases and trims an entity name for use as a
// verification/linking map key.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
