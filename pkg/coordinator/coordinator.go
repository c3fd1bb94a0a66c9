// Package coordinator implements JobProcessor: the end-to-end extraction
// pipeline run for one job, from tenant scoping through graph persistence.
package coordinator

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tarsy-labs/extrakt/pkg/config"
	"github.com/tarsy-labs/extrakt/pkg/document"
	"github.com/tarsy-labs/extrakt/pkg/entitycontext"
	"github.com/tarsy-labs/extrakt/pkg/external"
	"github.com/tarsy-labs/extrakt/pkg/graph"
	"github.com/tarsy-labs/extrakt/pkg/linker"
	"github.com/tarsy-labs/extrakt/pkg/llm"
	"github.com/tarsy-labs/extrakt/pkg/models"
	"github.com/tarsy-labs/extrakt/pkg/queue"
	"github.com/tarsy-labs/extrakt/pkg/ratelimit"
	"github.com/tarsy-labs/extrakt/pkg/schemapack"
	"github.com/tarsy-labs/extrakt/pkg/tenant"
	"github.com/tarsy-labs/extrakt/pkg/verify"
)

// ProjectStore loads the project a job belongs to: its organization id and
// its extraction/chunking overrides.
type ProjectStore interface {
	GetProject(ctx context.Context, projectID string) (*models.Project, error)
}

// scopeEnterer acquires a tenant-scoped connection for the duration of one
// job and returns a release function that must run on every exit path.
// dbScopeEnterer is the production implementation; tests substitute a fake
// that skips the real database round trip.
type scopeEnterer interface {
	Enter(ctx context.Context, scope tenant.Scope) (release func(), err error)
}

// dbScopeEnterer implements scopeEnterer over a pooled *sql.DB: it checks
// out a connection, sets the tenant session variables on it via
// tenant.Enter, and closes the connection when released.
type dbScopeEnterer struct {
	db *stdsql.DB
}

func (d dbScopeEnterer) Enter(ctx context.Context, scope tenant.Scope) (func(), error) {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return func() {}, fmt.Errorf("failed to acquire tenant connection: %w", err)
	}

	release, err := tenant.Enter(ctx, conn, scope)
	if err != nil {
		_ = conn.Close()
		return func() {}, err
	}

	return func() {
		release()
		_ = conn.Close()
	}, nil
}

// Deps bundles every collaborator Coordinator needs. All fields are
// required except Verifier, Tracer, StepLogger, and Notifier, which may be
// left nil (Verifier is additionally gated by Defaults.VerificationEnabled).
type Deps struct {
	Projects     ProjectStore
	DB           *stdsql.DB
	Defaults     *config.Defaults
	RateLimit    *config.RateLimiterConfig
	Limiter      *ratelimit.Limiter
	Schemas      *schemapack.Resolver
	Documents    *document.Preparer
	Context      *entitycontext.Loader
	LLM          *llm.Orchestrator
	Verifier     *verify.Verifier
	Linker       *linker.Linker
	Writer       *graph.Writer
	Resolver     *graph.Resolver
	RelWriter    *graph.RelationshipWriter
	Graph        external.GraphService
	Tracer       external.Tracer
	StepLogger   external.StructuredLogger
	Notifier     external.Notifier
}

// Coordinator implements queue.JobProcessor, running every step of one
// job's extraction from tenant scoping through graph persistence.
type Coordinator struct {
	projects   ProjectStore
	scopes     scopeEnterer
	defaults   *config.Defaults
	rateCfg    *config.RateLimiterConfig
	limiter    *ratelimit.Limiter
	schemas    *schemapack.Resolver
	documents  *document.Preparer
	context    *entitycontext.Loader
	llmOrch    *llm.Orchestrator
	verifier   *verify.Verifier
	linker     *linker.Linker
	writer     *graph.Writer
	resolver   *graph.Resolver
	relWriter  *graph.RelationshipWriter
	graph      external.GraphService
	tracer     external.Tracer
	stepLogger external.StructuredLogger
	notifier   external.Notifier
}

// New constructs a Coordinator. A nil Tracer is replaced with a no-op; a nil
// StepLogger or Notifier is skipped at each use.
func New(deps Deps) *Coordinator {
	tracer := deps.Tracer
	if tracer == nil {
		tracer = external.NopTracer{}
	}
	return &Coordinator{
		projects:   deps.Projects,
		scopes:     dbScopeEnterer{db: deps.DB},
		defaults:   deps.Defaults,
		rateCfg:    deps.RateLimit,
		limiter:    deps.Limiter,
		schemas:    deps.Schemas,
		documents:  deps.Documents,
		context:    deps.Context,
		llmOrch:    deps.LLM,
		verifier:   deps.Verifier,
		linker:     deps.Linker,
		writer:     deps.Writer,
		resolver:   deps.Resolver,
		relWriter:  deps.RelWriter,
		graph:      deps.Graph,
		tracer:     tracer,
		stepLogger: deps.StepLogger,
		notifier:   deps.Notifier,
	}
}

var _ queue.JobProcessor = (*Coordinator)(nil)

// Process runs the full extraction pipeline for job and returns its
// terminal outcome. It never panics: every collaborator error is either
// recorded as a non-fatal timeline entry or converted into a *pipelineError
// that decides the returned status and Retryable flag.
func (c *Coordinator) Process(ctx context.Context, job *models.Job, progressFn func(done, total int)) *queue.ProcessResult {
	startedAt := time.Now()
	var timeline []models.TimelineEvent

	ctx, span := c.tracer.StartSpan(ctx, "process_job", map[string]interface{}{"job_id": job.ID})
	defer span.End()

	result, err := c.process(ctx, job, progressFn, &timeline)

	completedAt := time.Now()
	var perr *pipelineError
	if err != nil {
		span.RecordError(err)
		if !errors.As(err, &perr) {
			perr = fatalError("internal", err)
		}
	}

	return c.finalize(job, result, perr, startedAt, completedAt, timeline)
}

// pipelineRunResult is the in-progress accumulation of everything Process
// needs to build a JobResult/DebugInfo once the pipeline either completes
// or fails partway through.
type pipelineRunResult struct {
	project             *models.Project
	thresholdAudit      models.ThresholdAudit
	entityOutcomes      []models.EntityOutcome
	createdObjectIDs    []string
	reviewObjectIDs     []string
	rejectedCount       int
	relationshipsWritten int
	discoveredTypes     []string
	usage               *models.LLMUsage
	rawResponse         map[string]interface{}
}

// 1. resolve organization/project and enter tenant scope
// 2. resolve effective confidence thresholds
// 3. prepare the source document into content + chunks
// 4. resolve the project's effective schema pack
// 5. reserve LLM token budget
// 6. load existing-entity context for deduplication
// 7. invoke the LLM orchestrator
// 8. optionally verify extracted entities
// 9. score, gate, link, and persist each candidate entity
// 10. resolve and persist each candidate relationship
// 11. link created objects back to their source chunks
// 12. build the terminal result (finalize, below)
func (c *Coordinator) process(ctx context.Context, job *models.Job, progressFn func(done, total int), timeline *[]models.TimelineEvent) (*pipelineRunResult, error) {
	run := &pipelineRunResult{}

	// 1. resolve organization/project and enter tenant scope
	project, err := c.projects.GetProject(ctx, job.ProjectID)
	if err != nil {
		return run, fatalError("tenant", fmt.Errorf("failed to load project %s: %w", job.ProjectID, err))
	}
	run.project = project

	release, err := c.scopes.Enter(ctx, tenant.Scope{OrganizationID: project.OrganizationID, ProjectID: job.ProjectID})
	if err != nil {
		return run, fatalError("tenant", err)
	}
	defer release()

	c.addEvent(ctx, job, timeline, "tenant_scope", models.TimelineSuccess, "")

	// 2. resolve effective confidence thresholds
	thresholds, audit := resolveThresholds(job, project, c.defaults)
	run.thresholdAudit = audit

	// 3. prepare the source document into content + chunks
	prepared, err := c.documents.Prepare(ctx, job, project.ChunkingConfig)
	if err != nil {
		return run, fatalError("input", err)
	}
	c.addEvent(ctx, job, timeline, "document_prepare", models.TimelineSuccess, "")

	// 4. resolve the project's effective schema pack
	effective, err := c.schemas.Resolve(ctx, job.ProjectID)
	if err != nil {
		if errors.Is(err, schemapack.ErrNoSchemas) {
			return run, fatalError("config", err)
		}
		return run, fatalError("config", err)
	}
	allowedTypes := allowedTypesFor(job, project, effective)
	basePrompt := effective.ExtractionPrompts["_base"]
	c.addEvent(ctx, job, timeline, "schema_resolve", models.TimelineSuccess, "")

	// 5. reserve LLM token budget
	method := resolveExtractionMethod(job, project, c.defaults)
	timeoutSeconds := resolveTimeoutSeconds(job, project, c.defaults)
	batchSizeChars := resolveBatchSizeChars(job, project, c.defaults)
	similarityThreshold := resolveSimilarityThreshold(job, project, c.defaults)

	estimatedTokens := ratelimit.EstimateTokens(len(prepared.Content), len(basePrompt))
	if !c.limiter.WaitForCapacity(ctx, estimatedTokens, c.rateCfg.MaxWait) {
		c.addEvent(ctx, job, timeline, "rate_limit_wait", models.TimelineWarning, "capacity not available within max wait")
		return run, rateLimitedError(fmt.Errorf("rate limiter refused capacity for %d estimated tokens", estimatedTokens))
	}
	c.addEvent(ctx, job, timeline, "rate_limit_wait", models.TimelineSuccess, "")

	// 6. load existing-entity context for deduplication
	existingEntities, err := c.context.Load(ctx, job.ProjectID, prepared.ChunkTexts, entitycontext.DefaultLimitPerType, similarityThreshold)
	if err != nil {
		slog.Warn("failed to load entity context, proceeding without it", "job_id", job.ID, "error", err)
		c.addEvent(ctx, job, timeline, "entity_context", models.TimelineWarning, err.Error())
	} else {
		c.addEvent(ctx, job, timeline, "entity_context", models.TimelineSuccess, "")
	}

	availableTags, err := c.graph.ListTags(ctx, job.ProjectID)
	if err != nil {
		slog.Warn("failed to load tags, proceeding without them", "job_id", job.ID, "error", err)
	}

	// 7. invoke the LLM orchestrator
	extraction, err := c.llmOrch.Extract(ctx, prepared.Content, basePrompt, effective, llm.Options{
		AllowedTypes:        allowedTypes,
		AvailableTags:       availableTags,
		ExistingEntities:    existingEntities,
		ExtractionMethod:    method,
		TimeoutSeconds:      timeoutSeconds,
		BatchSizeChars:      batchSizeChars,
		SimilarityThreshold: similarityThreshold,
	})
	if err != nil {
		return run, fatalError("llm", err)
	}
	run.discoveredTypes = extraction.DiscoveredTypes
	run.usage = extraction.Usage
	run.rawResponse = extraction.RawResponse
	if extraction.Usage != nil {
		c.limiter.ReportActualUsage(estimatedTokens, int64(extraction.Usage.TotalTokens))
	}
	c.addEvent(ctx, job, timeline, "llm_extract", models.TimelineSuccess, fmt.Sprintf("%d entities, %d relationships", len(extraction.Entities), len(extraction.Relationships)))

	// 8. optionally verify extracted entities
	verifyResults := map[string]verify.Result{}
	if c.defaults.VerificationEnabled && c.verifier != nil {
		verifyResults, err = c.verifier.Verify(ctx, job.ID, prepared.Content, extraction.Entities)
		if err != nil {
			slog.Warn("verification failed, proceeding without adjustment", "job_id", job.ID, "error", err)
			c.addEvent(ctx, job, timeline, "verify", models.TimelineWarning, err.Error())
		} else {
			c.addEvent(ctx, job, timeline, "verify", models.TimelineSuccess, "")
		}
	}

	// 9. score, gate, link, and persist each candidate entity
	batch := graph.NewBatchMap()
	entities := c.processEntities(ctx, job, job.ProjectID, project.OrganizationID, extraction.Entities, thresholds, verifyResults, c.defaults.EntityLinkingStrategy, similarityThreshold, batch, progressFn)
	run.entityOutcomes = entities.outcomes
	run.createdObjectIDs = entities.createdObjectIDs
	run.reviewObjectIDs = entities.reviewObjectIDs
	run.rejectedCount = entities.rejectedCount
	c.addEvent(ctx, job, timeline, "entity_processing", models.TimelineSuccess, fmt.Sprintf("%d created, %d rejected", len(entities.createdObjectIDs), entities.rejectedCount))

	// 10. resolve and persist each candidate relationship
	relationships := c.processRelationships(ctx, job.ID, job.ProjectID, extraction.Relationships, effective.RelationshipSchemas, batch)
	run.relationshipsWritten = relationships.createdCount
	*timeline = append(*timeline, relationships.skipped...)
	c.addEvent(ctx, job, timeline, "relationship_processing", models.TimelineSuccess, fmt.Sprintf("%d created, %d skipped/failed", relationships.createdCount, len(relationships.skipped)))

	// 11. link created objects back to their source chunks
	for _, objectID := range run.createdObjectIDs {
		if err := c.writer.LinkChunks(ctx, objectID, prepared.ChunkIDs, job.ID); err != nil {
			slog.Error("failed to link object to source chunks", "job_id", job.ID, "object_id", objectID, "error", err)
		}
	}
	c.addEvent(ctx, job, timeline, "chunk_linking", models.TimelineSuccess, "")

	return run, nil
}

// finalize converts one pipeline run (successful or not) into the terminal
// ProcessResult the worker persists.
func (c *Coordinator) finalize(job *models.Job, run *pipelineRunResult, perr *pipelineError, startedAt, completedAt time.Time, timeline []models.TimelineEvent) *queue.ProcessResult {
	status := models.JobCompleted
	var resultErr error
	retryable := false

	if perr != nil {
		status = models.JobFailed
		resultErr = perr
		retryable = perr.countsAsRetry
	} else if len(run.reviewObjectIDs) > 0 {
		status = models.JobRequiresReview
	}

	debug := &models.DebugInfo{
		Timeline:            timeline,
		JobID:               job.ID,
		ProjectID:            job.ProjectID,
		JobStartedAt:        startedAt,
		JobCompletedAt:      completedAt,
		JobDurationMs:       completedAt.Sub(startedAt).Milliseconds(),
		TotalEntities:       len(run.entityOutcomes),
		TypesProcessed:      run.discoveredTypes,
		Usage:               run.usage,
		EntityOutcomes:      run.entityOutcomes,
		CreatedObjectCount:  len(run.createdObjectIDs),
		RejectedCount:       run.rejectedCount,
		ReviewRequiredCount: len(run.reviewObjectIDs),
		ConfidenceThreshold: run.thresholdAudit,
		RawResponse:         run.rawResponse,
	}
	if run.project != nil {
		debug.OrganizationID = run.project.OrganizationID
	}
	if perr != nil {
		debug.ErrorMessage = perr.Error()
	}

	var jobResult *models.JobResult
	if status != models.JobFailed {
		jobResult = &models.JobResult{
			CreatedObjects:      run.createdObjectIDs,
			DiscoveredTypes:     run.discoveredTypes,
			SuccessfulItems:     len(run.createdObjectIDs) + run.relationshipsWritten,
			TotalItems:          len(run.entityOutcomes),
			RejectedItems:       run.rejectedCount,
			ReviewRequiredCount: len(run.reviewObjectIDs),
		}
	}

	c.notify(job, status, run, perr)

	return &queue.ProcessResult{
		Status:    status,
		Result:    jobResult,
		DebugInfo: debug,
		Error:     resultErr,
		Retryable: retryable,
	}
}

// notify dispatches a terminal notification when job carries a subject to
// notify. Failures are logged, never escalated: a notification is best
// effort and must not turn an otherwise successful job into a failed one.
func (c *Coordinator) notify(job *models.Job, status models.JobStatus, run *pipelineRunResult, perr *pipelineError) {
	if c.notifier == nil || job.SubjectID == "" {
		return
	}

	ctx := context.Background()
	var err error
	switch status {
	case models.JobCompleted, models.JobRequiresReview:
		perType := map[string]int{}
		var confidenceSum float64
		var accepted int
		for _, o := range run.entityOutcomes {
			if o.Action != "create" && o.Action != "merge" {
				continue
			}
			perType[o.Type]++
			confidenceSum += o.Confidence
			accepted++
		}
		var avgConfidence float64
		if accepted > 0 {
			avgConfidence = confidenceSum / float64(accepted)
		}
		err = c.notifier.NotifyExtractionCompleted(ctx, external.ExtractionCompletedNotification{
			JobID:             job.ID,
			SubjectID:         job.SubjectID,
			Status:            status,
			PerTypeCounts:     perType,
			AverageConfidence: avgConfidence,
		})
	case models.JobFailed:
		message := ""
		if perr != nil {
			message = perr.Error()
		}
		attempts := job.Attempts
		if perr != nil && perr.countsAsRetry {
			attempts++
		}
		willRetry := perr != nil && attempts < c.defaults.MaxRetries
		err = c.notifier.NotifyExtractionFailed(ctx, external.ExtractionFailedNotification{
			JobID:     job.ID,
			SubjectID: job.SubjectID,
			Message:   message,
			Attempts:  job.Attempts,
			WillRetry: willRetry,
		})
	}
	if err != nil {
		slog.Warn("failed to dispatch job notification", "job_id", job.ID, "status", status, "error", err)
	}
}

func (c *Coordinator) addEvent(ctx context.Context, job *models.Job, timeline *[]models.TimelineEvent, step string, status models.TimelineStatus, message string) {
	*timeline = append(*timeline, models.TimelineEvent{
		Step:        step,
		Status:      status,
		TimestampMs: time.Now().UnixMilli(),
		Message:     message,
	})

	if c.stepLogger == nil {
		return
	}
	logStatus := "completed"
	if status == models.TimelineError || status == models.TimelineWarning {
		logStatus = "failed"
	}
	c.stepLogger.LogStep(ctx, external.StepLogEntry{
		JobID:         job.ID,
		OperationName: step,
		Status:        logStatus,
		ErrorMessage:  message,
	})
}

// allowedTypesFor resolves the job's allowed-entity-type filter: job override,
// then project override, then every type the effective schema declares.
func allowedTypesFor(job *models.Job, project *models.Project, effective *models.EffectiveSchema) []string {
	if job.ExtractionConfig != nil && len(job.ExtractionConfig.AllowedTypes) > 0 {
		return job.ExtractionConfig.AllowedTypes
	}
	if project.AutoExtract != nil && len(project.AutoExtract.AllowedTypes) > 0 {
		return project.AutoExtract.AllowedTypes
	}
	return schemapack.AllowedTypes(effective)
}

