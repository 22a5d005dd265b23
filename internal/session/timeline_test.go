package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StudioDesk/server/internal/models"
)

func msgAt(id string, ts time.Time) models.Message {
	return models.Message{ID: id, Body: "m" + id, Kind: models.KindText, Timestamp: ts}
}

func TestGroupByDaySplitsAtMidnight(t *testing.T) {
	d1 := time.Date(2025, 6, 1, 23, 50, 0, 0, time.UTC)
	d2 := time.Date(2025, 6, 2, 0, 10, 0, 0, time.UTC)

	groups := GroupByDay([]models.Message{
		msgAt("1", d1),
		msgAt("2", d1.Add(5*time.Minute)),
		msgAt("3", d2),
	})

	require.Len(t, groups, 2)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), groups[0].Day)
	assert.Len(t, groups[0].Messages, 2)
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), groups[1].Day)
	assert.Len(t, groups[1].Messages, 1)
}

func TestGroupByDayOrdersAscending(t *testing.T) {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	// Input deliberately shuffled.
	groups := GroupByDay([]models.Message{
		msgAt("3", base.Add(2*time.Hour)),
		msgAt("1", base),
		msgAt("2", base.Add(time.Hour)),
	})

	require.Len(t, groups, 1)
	msgs := groups[0].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, "1", msgs[0].ID)
	assert.Equal(t, "2", msgs[1].ID)
	assert.Equal(t, "3", msgs[2].ID)
}

func TestGroupByDayStableForEqualTimestamps(t *testing.T) {
	ts := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	groups := GroupByDay([]models.Message{
		msgAt("a", ts),
		msgAt("b", ts),
	})

	require.Len(t, groups, 1)
	require.Len(t, groups[0].Messages, 2)
	assert.Equal(t, "a", groups[0].Messages[0].ID)
	assert.Equal(t, "b", groups[0].Messages[1].ID)
}

func TestGroupByDayEmptyInput(t *testing.T) {
	assert.Nil(t, GroupByDay(nil))
	assert.Nil(t, GroupByDay([]models.Message{}))
}

func TestGroupByDayDoesNotMutateInput(t *testing.T) {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	in := []models.Message{
		msgAt("2", base.Add(time.Hour)),
		msgAt("1", base),
	}

	GroupByDay(in)
	assert.Equal(t, "2", in[0].ID)
	assert.Equal(t, "1", in[1].ID)
}

func TestSameDay(t *testing.T) {
	morning := time.Date(2025, 6, 1, 0, 0, 1, 0, time.UTC)
	night := time.Date(2025, 6, 1, 23, 59, 59, 0, time.UTC)
	nextDay := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	assert.True(t, SameDay(morning, night))
	assert.False(t, SameDay(night, nextDay))
}
