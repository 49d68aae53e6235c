package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draftDefinition(t *testing.T) *SlaDefinition {
	t.Helper()
	calendar, err := NewCalendar("cal", "UTC", businessHours(), nil, true)
	require.NoError(t, err)
	calendar.UUID = "cal-uuid"

	definition, err := NewSlaDefinition("Gold", calendar, 240, 480, nil)
	require.NoError(t, err)
	return definition
}

func TestNewSlaDefinitionValidation(t *testing.T) {
	calendar, err := NewCalendar("cal", "UTC", businessHours(), nil, true)
	require.NoError(t, err)

	_, err = NewSlaDefinition(" ", calendar, 240, 480, nil)
	assert.Error(t, err, "blank name")

	_, err = NewSlaDefinition("Gold", nil, 240, 480, nil)
	assert.Error(t, err, "missing calendar")

	_, err = NewSlaDefinition("Gold", calendar, 0, 480, nil)
	assert.Error(t, err, "zero response target")

	_, err = NewSlaDefinition("Gold", calendar, 240, -1, nil)
	assert.Error(t, err, "negative resolution target")

	_, err = NewSlaDefinition("Gold", calendar, 481, 480, nil)
	assert.Error(t, err, "response target above resolution target")

	_, err = NewSlaDefinition("Gold", calendar, 240, 480, []EscalationRule{{ThresholdPercent: 101}})
	assert.Error(t, err, "threshold above 100")

	_, err = NewSlaDefinition("Gold", calendar, 240, 480, []EscalationRule{{ThresholdPercent: 0}})
	assert.Error(t, err, "threshold below 1")
}

func TestNewSlaDefinitionDefaults(t *testing.T) {
	definition := draftDefinition(t)
	assert.Equal(t, SlaStatusDraft, definition.Status)
	assert.Equal(t, 1, definition.VersionNumber)
	assert.NotEmpty(t, definition.UUID)
}

func TestPublishLifecycle(t *testing.T) {
	definition := draftDefinition(t)
	require.NoError(t, definition.Publish())
	assert.Equal(t, SlaStatusPublished, definition.Status)

	// publishing is one-way and not repeatable
	assert.Error(t, definition.Publish())

	definition.Status = SlaStatusDeprecated
	assert.Error(t, definition.Publish())
}

func TestCreateSnapshotRequiresPublished(t *testing.T) {
	definition := draftDefinition(t)
	_, err := definition.CreateSnapshot(nil)
	require.Error(t, err)
}

func TestCreateSnapshotFreezesDefinition(t *testing.T) {
	definition := draftDefinition(t)
	require.NoError(t, definition.Publish())

	ticketID := "ticket-1"
	snapshot, err := definition.CreateSnapshot(&ticketID)
	require.NoError(t, err)

	assert.NotEmpty(t, snapshot.UUID)
	assert.Equal(t, definition.UUID, snapshot.SlaOriginalID)
	assert.Equal(t, definition.VersionNumber, snapshot.SlaVersionAtBinding)
	assert.Equal(t, "Gold", snapshot.SlaNameAtBinding)
	assert.Equal(t, 240, snapshot.ResponseTargetMinutes)
	assert.Equal(t, 480, snapshot.ResolutionTargetMinutes)
	assert.Equal(t, "cal-uuid", snapshot.CalendarSnapshot.CalendarUUID)
	require.NotNil(t, snapshot.BoundEntityID)
	assert.Equal(t, ticketID, *snapshot.BoundEntityID)
	assert.WithinDuration(t, time.Now().UTC(), snapshot.BoundAt, time.Minute)

	// later edits to the live calendar never reach the frozen copy
	definition.Calendar.WorkingWindows[0].StartTime = "05:00"
	assert.Equal(t, "09:00", snapshot.CalendarSnapshot.Windows[0].StartTime)
}
