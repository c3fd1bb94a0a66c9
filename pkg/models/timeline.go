package models

// TimelineStatus is the outcome recorded against a TimelineEvent.
type TimelineStatus string

// Recognized timeline event statuses.
const (
	TimelineSuccess TimelineStatus = "success"
	TimelineInfo    TimelineStatus = "info"
	TimelineWarning TimelineStatus = "warning"
	TimelineError   TimelineStatus = "error"
)

// TimelineEvent is an in-memory structured record accumulated by the
// coordinator over the course of one job and written into Job.DebugInfo on
// terminal transition.
type TimelineEvent struct {
	Step        string                 `json:"step"`
	Status      TimelineStatus         `json:"status"`
	TimestampMs int64                  `json:"timestamp_ms"`
	DurationMs  *int64                 `json:"duration_ms,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}
