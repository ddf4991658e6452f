package careplan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallback(t *testing.T) {
	got := Fallback(now)

	require.Len(t, got, 3)
	assert.Equal(t, "Water your new plant", got[0].Title)
	assert.Equal(t, "Check the soil", got[1].Title)
	assert.Equal(t, "Turn me around!", got[2].Title)
	assert.Equal(t, []time.Time{
		now.AddDate(0, 0, 1),
		now.AddDate(0, 0, 3),
		now.AddDate(0, 0, 7),
	}, dueDates(got))
	for _, task := range got {
		assert.NotEmpty(t, task.Description)
	}
}

func TestFallback_ReturnsFreshSlice(t *testing.T) {
	a := Fallback(now)
	a[0].Title = "changed"

	assert.Equal(t, "Water your new plant", Fallback(now)[0].Title)
}
