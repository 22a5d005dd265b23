package session

import (
	"sort"
	"time"

	"StudioDesk/server/internal/models"
)

// DayGroup is a run of consecutive messages from the same calendar day,
// used to place date separators.
type DayGroup struct {
	Day      time.Time
	Messages []models.Message
}

// GroupByDay orders messages by timestamp ascending and splits them at
// calendar-day boundaries.
func GroupByDay(msgs []models.Message) []DayGroup {
	if len(msgs) == 0 {
		return nil
	}

	sorted := make([]models.Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var groups []DayGroup
	for _, msg := range sorted {
		day := truncateToDay(msg.Timestamp)
		if len(groups) == 0 || !groups[len(groups)-1].Day.Equal(day) {
			groups = append(groups, DayGroup{Day: day})
		}
		last := len(groups) - 1
		groups[last].Messages = append(groups[last].Messages, msg)
	}
	return groups
}

// SameDay reports whether two timestamps fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return truncateToDay(a).Equal(truncateToDay(b))
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
