package events

import (
	"context"
	"log/slog"

	"github.com/tarsy-labs/extrakt/pkg/external"
)

// SlogNotifier logs terminal job outcomes via slog. Deployments that need
// real delivery (email, Slack, webhook) supply their own external.Notifier.
type SlogNotifier struct{}

// NotifyExtractionCompleted implements external.Notifier.
func (SlogNotifier) NotifyExtractionCompleted(_ context.Context, n external.ExtractionCompletedNotification) error {
	slog.Info("extraction completed",
		"job_id", n.JobID,
		"subject_id", n.SubjectID,
		"status", n.Status,
		"average_confidence", n.AverageConfidence,
		"per_type_counts", n.PerTypeCounts,
	)
	return nil
}

// NotifyExtractionFailed implements external.Notifier.
func (SlogNotifier) NotifyExtractionFailed(_ context.Context, n external.ExtractionFailedNotification) error {
	slog.Warn("extraction failed",
		"job_id", n.JobID,
		"subject_id", n.SubjectID,
		"message", n.Message,
		"attempts", n.Attempts,
		"will_retry", n.WillRetry,
	)
	return nil
}

// SlogStructuredLogger logs each pipeline step via slog. Deployments that
// need a dedicated observability sink (Langfuse-style) supply their own
// external.StructuredLogger.
type SlogStructuredLogger struct{}

// LogStep implements external.StructuredLogger.
func (SlogStructuredLogger) LogStep(_ context.Context, entry external.StepLogEntry) {
	log := slog.With(
		"job_id", entry.JobID,
		"step_index", entry.StepIndex,
		"operation_type", entry.OperationType,
		"operation_name", entry.OperationName,
		"status", entry.Status,
	)
	if entry.DurationMs != nil {
		log = log.With("duration_ms", *entry.DurationMs)
	}
	if entry.TokensUsed != nil {
		log = log.With("tokens_used", *entry.TokensUsed)
	}
	if entry.Status == "failed" {
		log.Error("pipeline step failed", "error_message", entry.ErrorMessage)
		return
	}
	log.Debug("pipeline step")
}
