package models

import "time"

// ObjectStatus is the persistence status of a GraphObject.
type ObjectStatus string

// Recognized object statuses.
const (
	ObjectAccepted ObjectStatus = "accepted"
	ObjectDraft    ObjectStatus = "draft"
)

// Reserved property keys written onto every extraction-created GraphObject.
const (
	PropExtractionConfidence    = "_extraction_confidence"
	PropExtractionLLMConfidence = "_extraction_llm_confidence"
	PropExtractionSource        = "_extraction_source"
	PropExtractionSourceID      = "_extraction_source_id"
	PropExtractionJobID         = "_extraction_job_id"
)

// LabelRequiresReview marks an object that landed in the review confidence band.
const LabelRequiresReview = "requires_review"

// GraphObject is a persisted entity, exclusively owned by its
// (OrganizationID, ProjectID) tenant scope.
type GraphObject struct {
	ID             string
	ProjectID      string
	OrganizationID string
	Type           string
	Status         ObjectStatus
	Properties     map[string]interface{}
	Labels         []string
	CreatedAt      time.Time
	DeletedAt      *time.Time
}

// GraphRelationship is a directed typed edge between two GraphObjects in the
// same project.
type GraphRelationship struct {
	ID         string
	ProjectID  string
	Type       string
	SourceID   string
	TargetID   string
	Properties map[string]interface{}
	CreatedAt  time.Time
}

// ObjectChunkLink is a provenance edge from a GraphObject to a source Chunk.
type ObjectChunkLink struct {
	ObjectID string
	ChunkID  string
	Weight   float64
	JobID    string
}

// RelatedObject is a one-hop neighbor of a context entity, as returned by
// ContextLoader.
type RelatedObject struct {
	Type        string `json:"type"`
	Direction   string `json:"direction"` // "outgoing" or "incoming"
	RelatedName string `json:"related_name"`
	RelatedType string `json:"related_type"`
}

// ContextEntity is one existing graph object surfaced to the LLM as
// deduplication context.
type ContextEntity struct {
	ID          string
	Name        string
	Type        string
	Description string
	Properties  map[string]interface{}
	Neighbors   []RelatedObject
}
