// Package models holds the plain data-transfer types shared across the
// extraction pipeline's components: schema packs, documents and chunks,
// LLM candidates, and the persisted graph shapes written by GraphWriter.
package models

import "time"

// SourceType identifies where a Job's content comes from.
type SourceType string

// Recognized source types.
const (
	SourceDocument   SourceType = "document"
	SourceManual     SourceType = "manual"
	SourceAPI        SourceType = "api"
	SourceBulkImport SourceType = "bulk_import"
)

// JobStatus is a Job's position in the lifecycle state machine.
type JobStatus string

// Recognized job statuses.
const (
	JobQueued          JobStatus = "queued"
	JobRunning         JobStatus = "running"
	JobCompleted       JobStatus = "completed"
	JobRequiresReview  JobStatus = "requires_review"
	JobFailed          JobStatus = "failed"
)

// ExtractionConfig carries per-job overrides to server/project defaults.
type ExtractionConfig struct {
	AllowedTypes              []string `json:"allowed_types,omitempty"`
	ConfidenceThresholdMin    *float64 `json:"confidence_threshold_min,omitempty"`
	ConfidenceThresholdReview *float64 `json:"confidence_threshold_review,omitempty"`
	ConfidenceThresholdAuto   *float64 `json:"confidence_threshold_auto,omitempty"`
	ExtractionMethod          string   `json:"extraction_method,omitempty"`
	TimeoutSeconds            *int     `json:"extraction_timeout_seconds,omitempty"`
	BatchSizeChars            *int     `json:"extraction_batch_size_chars,omitempty"`
	EntitySimilarityThreshold *float64 `json:"entity_similarity_threshold,omitempty"`
}

// Job is a unit of scheduled extraction work.
type Job struct {
	ID               string
	SourceType       SourceType
	SourceID         string
	SourceMetadata   map[string]interface{}
	ProjectID        string
	SubjectID        string
	Status           JobStatus
	CreatedAt        time.Time
	StartedAt        *time.Time
	UpdatedAt        time.Time
	PodID            string
	Attempts         int
	ProcessedItems   int
	TotalItems       int
	ExtractionConfig *ExtractionConfig
	Result           *JobResult
	DebugInfo        *DebugInfo
	ErrorMessage     string
}

// JobResult is the produced outcome of a completed job.
type JobResult struct {
	CreatedObjects      []string `json:"created_objects"`
	DiscoveredTypes     []string `json:"discovered_types"`
	SuccessfulItems     int      `json:"successful_items"`
	TotalItems          int      `json:"total_items"`
	RejectedItems       int      `json:"rejected_items"`
	ReviewRequiredCount int      `json:"review_required_count,omitempty"`
}

// ThresholdAudit records the effective confidence thresholds and where each
// one was sourced from (job override, project default, server default).
type ThresholdAudit struct {
	Min      float64 `json:"min"`
	Review   float64 `json:"review"`
	Auto     float64 `json:"auto"`
	Sources  struct {
		Min    string `json:"min"`
		Review string `json:"review"`
		Auto   string `json:"auto"`
	} `json:"sources"`
	Interpretation struct {
		Rejected string `json:"rejected"`
		Draft    string `json:"draft"`
		Accepted string `json:"accepted"`
	} `json:"interpretation"`
}

// DebugInfo is the terminal debug envelope written into Job.DebugInfo.
type DebugInfo struct {
	Timeline            []TimelineEvent        `json:"timeline"`
	Provider            string                 `json:"provider,omitempty"`
	JobID               string                 `json:"job_id"`
	ProjectID           string                 `json:"project_id"`
	OrganizationID      string                 `json:"organization_id"`
	JobStartedAt        time.Time              `json:"job_started_at"`
	JobCompletedAt      time.Time              `json:"job_completed_at"`
	JobDurationMs       int64                  `json:"job_duration_ms"`
	TotalEntities       int                    `json:"total_entities"`
	TypesProcessed      []string               `json:"types_processed"`
	Usage               *LLMUsage              `json:"usage,omitempty"`
	EntityOutcomes      []EntityOutcome        `json:"entity_outcomes"`
	CreatedObjectCount  int                    `json:"created_object_count"`
	RejectedCount       int                    `json:"rejected_count"`
	ReviewRequiredCount int                    `json:"review_required_count"`
	ErrorMessage        string                 `json:"error_message,omitempty"`
	ConfidenceThreshold ThresholdAudit         `json:"confidence_thresholds"`
	RawResponse         map[string]interface{} `json:"raw_response,omitempty"`
}

// EntityOutcome records what happened to one candidate entity, for the
// debug-info audit trail.
type EntityOutcome struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Action     string  `json:"action"` // create, merge, skip, reject
	ObjectID   string  `json:"object_id,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// LLMUsage is token accounting reported by the LLM provider.
type LLMUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
