// Package events provides the in-process timeline sink the coordinator
// accumulates over a job's lifetime, plus slog-backed default
// implementations of the Notifier and StructuredLogger contracts for
// deployments that don't wire an external observability/notification
// backend.
package events

import (
	"sync"
	"time"

	"github.com/tarsy-labs/extrakt/pkg/models"
)

// Timeline is an append-only event sink. beginStep/endStep form a stack of
// open steps whose nesting mirrors trace-span nesting; Events() returns the
// accumulated record for persistence into Job.DebugInfo on terminal
// transition.
type Timeline struct {
	mu     sync.Mutex
	events []models.TimelineEvent
	open   []openStep
	clock  func() time.Time
}

type openStep struct {
	name      string
	startedAt time.Time
	metadata  map[string]interface{}
}

// NewTimeline constructs an empty Timeline.
func NewTimeline() *Timeline {
	return &Timeline{clock: time.Now}
}

// BeginStep opens a named step; it returns nothing. Steps may
// nest; each Begin must be matched by exactly one End.
func (t *Timeline) BeginStep(name string, metadata map[string]interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open = append(t.open, openStep{name: name, startedAt: t.clock(), metadata: metadata})
}

// EndStep closes the most recently opened step with the given outcome.
func (t *Timeline) EndStep(status models.TimelineStatus, message string, metadata map[string]interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.open) == 0 {
		return
	}
	step := t.open[len(t.open)-1]
	t.open = t.open[:len(t.open)-1]

	duration := t.clock().Sub(step.startedAt).Milliseconds()
	merged := mergeMetadata(step.metadata, metadata)

	t.events = append(t.events, models.TimelineEvent{
		Step:        step.name,
		Status:      status,
		TimestampMs: step.startedAt.UnixMilli(),
		DurationMs:  &duration,
		Message:     message,
		Metadata:    merged,
	})
}

// Record appends a standalone, instantaneous event without begin/end framing.
func (t *Timeline) Record(step string, status models.TimelineStatus, message string, metadata map[string]interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, models.TimelineEvent{
		Step:        step,
		Status:      status,
		TimestampMs: t.clock().UnixMilli(),
		Message:     message,
		Metadata:    metadata,
	})
}

// Events returns a snapshot of the accumulated timeline in order.
func (t *Timeline) Events() []models.TimelineEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.TimelineEvent, len(t.events))
	copy(out, t.events)
	return out
}

func mergeMetadata(base, extra map[string]interface{}) map[string]interface{} {
	if base == nil && extra == nil {
		return nil
	}
	merged := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}
