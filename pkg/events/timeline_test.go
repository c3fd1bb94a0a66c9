package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarsy-labs/extrakt/pkg/models"
)

func TestTimelineBeginEndRecordsDuration(t *testing.T) {
	tl := NewTimeline()
	tl.BeginStep("prepare_document", map[string]interface{}{"job_id": "j1"})
	tl.EndStep(models.TimelineSuccess, "prepared", map[string]interface{}{"chunks": 3})

	events := tl.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "prepare_document", events[0].Step)
	assert.Equal(t, models.TimelineSuccess, events[0].Status)
	assert.Equal(t, "j1", events[0].Metadata["job_id"])
	assert.Equal(t, 3, events[0].Metadata["chunks"])
	require.NotNil(t, events[0].DurationMs)
}

func TestTimelineEndWithoutBeginIsNoop(t *testing.T) {
	tl := NewTimeline()
	tl.EndStep(models.TimelineError, "oops", nil)
	assert.Empty(t, tl.Events())
}

func TestTimelineNestedSteps(t *testing.T) {
	tl := NewTimeline()
	tl.BeginStep("outer", nil)
	tl.BeginStep("inner", nil)
	tl.EndStep(models.TimelineSuccess, "", nil)
	tl.EndStep(models.TimelineSuccess, "", nil)

	events := tl.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "inner", events[0].Step)
	assert.Equal(t, "outer", events[1].Step)
}

func TestTimelineRecordInstantaneousEvent(t *testing.T) {
	tl := NewTimeline()
	tl.Record("rate_limit", models.TimelineWarning, "waitForCapacity refused", nil)

	events := tl.Events()
	require.Len(t, events, 1)
	assert.Nil(t, events[0].DurationMs)
}
