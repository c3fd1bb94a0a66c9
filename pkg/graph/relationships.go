package graph

import (
	"context"
	"strings"

	"github.com/tarsy-labs/extrakt/pkg/external"
	"github.com/tarsy-labs/extrakt/pkg/models"
)

// RelationshipOutcome is the result of writing one candidate relationship.
type RelationshipOutcome struct {
	Created bool
	Skipped bool
	Failed  bool
	Reason  string // rejected_verification, source_not_resolved, target_not_resolved, type_mismatch, duplicate
}

// RelationshipWriter resolves endpoints and writes relationship edges.
type RelationshipWriter struct {
	graph    external.GraphService
	resolver *Resolver
}

// NewRelationshipWriter constructs a RelationshipWriter.
func NewRelationshipWriter(graph external.GraphService, resolver *Resolver) *RelationshipWriter {
	return &RelationshipWriter{graph: graph, resolver: resolver}
}

// Write resolves candidate's endpoints against batch (falling back to a
// database lookup) and, absent a skip condition, creates the relationship
// edge. Relationship-schema endpoint-type validation is enforced uniformly:
// a resolved pair whose types don't match the schema's declared allowed
// types is skipped with reason type_mismatch rather than treated as
// advisory.
func (w *RelationshipWriter) Write(ctx context.Context, projectID, jobID string, candidate models.CandidateRelationship, schemas map[string]models.RelationshipTypeSchema, batch *BatchMap) RelationshipOutcome {
	if candidate.VerificationStatus == models.VerificationRejected {
		return RelationshipOutcome{Skipped: true, Reason: "rejected_verification"}
	}

	sourceID, ok, err := w.resolver.Resolve(ctx, projectID, candidate.Source, batch)
	if err != nil {
		return RelationshipOutcome{Failed: true, Reason: err.Error()}
	}
	if !ok {
		return RelationshipOutcome{Skipped: true, Reason: "source_not_resolved"}
	}

	targetID, ok, err := w.resolver.Resolve(ctx, projectID, candidate.Target, batch)
	if err != nil {
		return RelationshipOutcome{Failed: true, Reason: err.Error()}
	}
	if !ok {
		return RelationshipOutcome{Skipped: true, Reason: "target_not_resolved"}
	}

	if schema, defined := schemas[candidate.RelationshipType]; defined {
		sourceObj, err := w.graph.GetObject(ctx, sourceID)
		if err == nil && sourceObj != nil && !typeAllowed(sourceObj.Type, schema.AllowedSrcTypes) {
			return RelationshipOutcome{Skipped: true, Reason: "type_mismatch"}
		}
		targetObj, err := w.graph.GetObject(ctx, targetID)
		if err == nil && targetObj != nil && !typeAllowed(targetObj.Type, schema.AllowedDstTypes) {
			return RelationshipOutcome{Skipped: true, Reason: "type_mismatch"}
		}
	}

	props := map[string]interface{}{
		"description":               candidate.Description,
		models.PropExtractionJobID:  jobID,
		models.PropExtractionSource: "llm",
	}
	if candidate.Confidence != nil {
		props[models.PropExtractionConfidence] = *candidate.Confidence
	}

	_, err = w.graph.CreateRelationship(ctx, models.GraphRelationship{
		ProjectID:  projectID,
		Type:       candidate.RelationshipType,
		SourceID:   sourceID,
		TargetID:   targetID,
		Properties: props,
	})
	if err != nil {
		if isDuplicateErr(err) {
			return RelationshipOutcome{Skipped: true, Reason: "duplicate"}
		}
		return RelationshipOutcome{Failed: true, Reason: err.Error()}
	}

	return RelationshipOutcome{Created: true}
}

// typeAllowed reports whether typeName is in allowed, or whether allowed is
// empty (meaning the schema declares no restriction for that side).
func typeAllowed(typeName string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, t := range allowed {
		if t == typeName {
			return true
		}
	}
	return false
}

// isDuplicateErr recognizes a unique-constraint violation reported by the
// graph backend, independent of which underlying driver raised it.
func isDuplicateErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint") || strings.Contains(msg, "already exists")
}
