package careplan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantcare/internal/models"
)

func TestDueToday(t *testing.T) {
	tasks := []models.CareTask{
		{ID: "1", ListingID: "fern", DueDate: now.AddDate(0, 0, -3)},
		{ID: "2", ListingID: "cactus", DueDate: now.Add(8 * time.Hour)}, // later today
		{ID: "3", ListingID: "fern", DueDate: now.AddDate(0, 0, 1)},     // tomorrow
		{ID: "4", ListingID: "fern", DueDate: now.AddDate(0, 0, -1), Completed: true},
		{ID: "5", ListingID: "fern", DueDate: now},
	}
	species := map[string]string{"fern": "Boston Fern"}

	got := DueToday(tasks, species, now)

	require.Len(t, got, 2)
	assert.Equal(t, "fern", got[0].ListingID)
	assert.Equal(t, "Boston Fern", got[0].Species)
	require.Len(t, got[0].Tasks, 2)
	assert.Equal(t, "1", got[0].Tasks[0].ID)
	assert.Equal(t, "5", got[0].Tasks[1].ID)

	assert.Equal(t, "cactus", got[1].ListingID)
	assert.Equal(t, "Unknown Plant", got[1].Species)
	require.Len(t, got[1].Tasks, 1)
}

func TestDueToday_UsesCallerLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	localNow := time.Date(2024, 1, 15, 20, 0, 0, 0, loc) // 01:00 UTC on the 16th
	// Due 2024-01-16 03:00 UTC is still the 15th in UTC-5.
	tasks := []models.CareTask{{ID: "1", ListingID: "x", DueDate: time.Date(2024, 1, 16, 3, 0, 0, 0, time.UTC)}}

	got := DueToday(tasks, nil, localNow)

	require.Len(t, got, 1)
}

func TestDueToday_Empty(t *testing.T) {
	assert.Empty(t, DueToday(nil, nil, now))
}
