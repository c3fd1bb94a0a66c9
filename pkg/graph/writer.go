package graph

import (
	"context"
	"fmt"

	"github.com/tarsy-labs/extrakt/pkg/confidence"
	"github.com/tarsy-labs/extrakt/pkg/external"
	"github.com/tarsy-labs/extrakt/pkg/models"
)

// WriteOutcome is the result of writing one candidate entity: its
// persisted object id, the quality band it landed in, and whether a new
// object was created (vs. merged or skipped).
type WriteOutcome struct {
	ObjectID string
	Band     confidence.Band
	Action   string // "create", "merge", "skip"
}

// Writer implements GraphWriter's object side.
type Writer struct {
	graph external.GraphService
}

// New constructs a Writer.
func New(graph external.GraphService) *Writer {
	return &Writer{graph: graph}
}

// CreateObject inserts a new object for candidate in the given band,
// stamping the reserved _extraction_* audit properties.
func (w *Writer) CreateObject(ctx context.Context, candidate models.CandidateEntity, finalConfidence float64, band confidence.Band, projectID, organizationID, sourceID, jobID string) (string, error) {
	props := map[string]interface{}{
		"name":        candidate.Name,
		"description": candidate.Description,
	}
	for k, v := range candidate.Properties {
		props[k] = v
	}
	props[models.PropExtractionConfidence] = finalConfidence
	if candidate.Confidence != nil {
		props[models.PropExtractionLLMConfidence] = *candidate.Confidence
	} else {
		props[models.PropExtractionLLMConfidence] = finalConfidence
	}
	props[models.PropExtractionSource] = "llm"
	props[models.PropExtractionSourceID] = sourceID
	props[models.PropExtractionJobID] = jobID

	var labels []string
	if band.RequiresReviewLabel() {
		labels = []string{models.LabelRequiresReview}
	}

	obj := models.GraphObject{
		ProjectID:      projectID,
		OrganizationID: organizationID,
		Type:           candidate.TypeName,
		Status:         models.ObjectStatus(band.Status()),
		Properties:     props,
		Labels:         labels,
	}

	id, err := w.graph.CreateObject(ctx, obj)
	if err != nil {
		return "", fmt.Errorf("failed to create object %q: %w", candidate.Name, err)
	}
	return id, nil
}

// MergeObject idempotently folds candidate's properties into an existing
// object. Scalar fields are overwritten by the candidate's value; list-
// valued fields are union-appended with de-duplication; _extraction_* audit
// fields are overwritten except _extraction_source_id, which is
// first-write-wins so the object's original provenance document is never
// lost to a later partial re-extraction.
func (w *Writer) MergeObject(ctx context.Context, existingObjectID string, candidate models.CandidateEntity, finalConfidence float64, jobID string) error {
	existing, err := w.graph.GetObject(ctx, existingObjectID)
	if err != nil {
		return fmt.Errorf("failed to load existing object %s for merge: %w", existingObjectID, err)
	}

	merged := mergeProperties(existing.Properties, candidate.Properties)
	if candidate.Name != "" {
		merged["name"] = candidate.Name
	}
	if candidate.Description != "" {
		merged["description"] = candidate.Description
	}

	merged[models.PropExtractionConfidence] = finalConfidence
	if candidate.Confidence != nil {
		merged[models.PropExtractionLLMConfidence] = *candidate.Confidence
	}
	merged[models.PropExtractionSource] = "llm"
	merged[models.PropExtractionJobID] = jobID
	if existingSourceID, ok := existing.Properties[models.PropExtractionSourceID]; ok {
		merged[models.PropExtractionSourceID] = existingSourceID
	}

	if err := w.graph.MergeObjectProperties(ctx, existingObjectID, merged); err != nil {
		return fmt.Errorf("failed to merge object %s: %w", existingObjectID, err)
	}
	return nil
}

func mergeProperties(existing, incoming map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		existingVal, had := merged[k]
		if !had {
			merged[k] = v
			continue
		}
		if existingList, ok := asSlice(existingVal); ok {
			incomingList, _ := asSlice(v)
			merged[k] = unionAppend(existingList, incomingList)
			continue
		}
		merged[k] = v
	}
	return merged
}

func asSlice(v interface{}) ([]interface{}, bool) {
	s, ok := v.([]interface{})
	return s, ok
}

func unionAppend(existing, incoming []interface{}) []interface{} {
	seen := make(map[interface{}]bool, len(existing))
	out := make([]interface{}, 0, len(existing)+len(incoming))
	for _, v := range existing {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, v := range incoming {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// LinkChunks links objectID to every chunk id in chunkIDs at weight 0.8,
// tagged by jobID. Failure is non-fatal: callers should log and continue.
func (w *Writer) LinkChunks(ctx context.Context, objectID string, chunkIDs []string, jobID string) error {
	const provenanceWeight = 0.8
	for _, chunkID := range chunkIDs {
		if err := w.graph.LinkObjectToChunk(ctx, models.ObjectChunkLink{
			ObjectID: objectID,
			ChunkID:  chunkID,
			Weight:   provenanceWeight,
			JobID:    jobID,
		}); err != nil {
			return fmt.Errorf("failed to link object %s to chunk %s: %w", objectID, chunkID, err)
		}
	}
	return nil
}
