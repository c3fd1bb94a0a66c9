// Package external declares the typed contracts the extraction pipeline
// consumes but does not implement: the LLM provider, the embeddings and
// document/chunking services, the graph store's CRUD surface, the
// template-pack catalog, the optional verifier, notification delivery, and
// the tracing/structured-logging sinks. Production-grade implementations of
// these live outside this module; callers inject whichever adapter fits
// their deployment (including, for tests, the in-memory fakes in this
// package's fakes.go).
package external

import (
	"context"

	"github.com/tarsy-labs/extrakt/pkg/models"
)

// LLMOptions is the configuration bundle LLMOrchestrator passes alongside a
// document to LLMProvider.ExtractEntities.
type LLMOptions struct {
	ObjectSchemas       map[string]models.ObjectTypeSchema
	RelationshipSchemas map[string]models.RelationshipTypeSchema
	AllowedTypes        []string
	AvailableTags       []string
	ExistingEntities    []models.ContextEntity
	DocumentChunks      []string
	ExtractionMethod    string
	TimeoutMs           int
	BatchSizeChars      int
	SimilarityThreshold float64
	Context             CallContext
}

// CallContext identifies the job a single LLM call belongs to, for
// downstream tracing/logging correlation.
type CallContext struct {
	JobID                 string
	ProjectID             string
	TraceID               string
	ParentObservationID   string
}

// LLMProvider invokes the configured LLM to extract entities and
// relationships from a document.
type LLMProvider interface {
	Name() string
	IsConfigured() bool
	ExtractEntities(ctx context.Context, document string, basePrompt string, opts LLMOptions) (*models.ExtractionResult, error)
}

// EmbeddingsService embeds text and performs similarity search over
// previously embedded graph objects.
type EmbeddingsService interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	SearchByVector(ctx context.Context, vector []float32, opts VectorSearchOptions) ([]VectorMatch, error)
}

// VectorSearchOptions bounds a vector similarity search.
type VectorSearchOptions struct {
	ProjectID   string
	Limit       int
	MaxDistance float64
}

// VectorMatch is one result of a vector similarity search.
type VectorMatch struct {
	ID       string
	Distance float64
}

// DocumentsService loads source document content by id.
type DocumentsService interface {
	Get(ctx context.Context, documentID string) (*models.Document, error)
}

// ChunkerService splits text into chunks with positional metadata.
type ChunkerService interface {
	ChunkWithMetadata(ctx context.Context, text string, cfg *models.ChunkingConfig) ([]ChunkedText, error)
}

// ChunkedText is one chunk produced by ChunkerService, prior to persistence.
type ChunkedText struct {
	Text     string
	Metadata map[string]interface{}
}

// GraphService is the graph store's CRUD surface: object/relationship
// creation and merge, tag listing, and chunk linking. All operations are
// scoped to the tenant context established by the caller.
type GraphService interface {
	CreateObject(ctx context.Context, obj models.GraphObject) (string, error)
	MergeObjectProperties(ctx context.Context, objectID string, properties map[string]interface{}) error
	GetObject(ctx context.Context, objectID string) (*models.GraphObject, error)
	FindObjectByName(ctx context.Context, projectID, name string) (*models.GraphObject, error)
	ListTags(ctx context.Context, projectID string) ([]string, error)
	CreateRelationship(ctx context.Context, rel models.GraphRelationship) (string, error)
	LinkObjectToChunk(ctx context.Context, link models.ObjectChunkLink) error
	ListNeighbors(ctx context.Context, objectID string, limit int) ([]models.RelatedObject, error)
}

// TemplatePackService lists a project's active schema packs and assigns a
// default pack when none are installed.
type TemplatePackService interface {
	ListActivePacks(ctx context.Context, projectID string) ([]models.SchemaPack, error)
	AssignDefaultPack(ctx context.Context, projectID, packID string) error
}

// VerifierService performs post-hoc verification of a batch of extracted entities.
type VerifierService interface {
	VerifyBatch(ctx context.Context, req VerifyBatchRequest) (*VerifyBatchResult, error)
}

// VerifyBatchRequest is the input to VerifierService.VerifyBatch.
type VerifyBatchRequest struct {
	SourceText string
	Entities   []VerifyEntityInput
	JobID      string
}

// VerifyEntityInput identifies one entity submitted for verification.
type VerifyEntityInput struct {
	ID         string
	Name       string
	Type       string
	Properties map[string]interface{}
}

// VerifyBatchResult is the output of VerifierService.VerifyBatch.
type VerifyBatchResult struct {
	Results           []VerifyEntityResult
	Summary           map[string]interface{}
	ProcessingTimeMs  int64
}

// VerifyEntityResult is one entity's verification outcome.
type VerifyEntityResult struct {
	EntityName              string
	EntityVerified           bool
	OverallConfidence        float64
	EntityVerificationTier   int // 1, 2, or 3
}

// Notifier dispatches terminal job notifications to subject-scoped channels.
type Notifier interface {
	NotifyExtractionCompleted(ctx context.Context, n ExtractionCompletedNotification) error
	NotifyExtractionFailed(ctx context.Context, n ExtractionFailedNotification) error
}

// ExtractionCompletedNotification is sent when a job reaches completed or
// requires_review with a SubjectID set.
type ExtractionCompletedNotification struct {
	JobID            string
	SubjectID        string
	Status           models.JobStatus
	PerTypeCounts    map[string]int
	AverageConfidence float64
}

// ExtractionFailedNotification is sent when a job reaches failed with a
// SubjectID set.
type ExtractionFailedNotification struct {
	JobID      string
	SubjectID  string
	Message    string
	Attempts   int
	WillRetry  bool
}

// Tracer opens and closes spans around the coordinator's major steps.
type Tracer interface {
	StartSpan(ctx context.Context, name string, attrs map[string]interface{}) (context.Context, Span)
}

// Span is a single open tracing span.
type Span interface {
	SetAttributes(attrs map[string]interface{})
	RecordError(err error)
	End()
}

// StructuredLogger records a single pipeline step to an external
// observability sink, independent of local process logs.
type StructuredLogger interface {
	LogStep(ctx context.Context, entry StepLogEntry)
}

// StepLogEntry is one structured-logging record for a pipeline step.
type StepLogEntry struct {
	JobID         string
	StepIndex     int
	OperationType string
	OperationName string
	Status        string // queued, completed, failed
	InputData     map[string]interface{}
	OutputData    map[string]interface{}
	DurationMs    *int64
	ErrorMessage  string
	ErrorStack    string
	ErrorDetails  map[string]interface{}
	TokensUsed    *int
}
