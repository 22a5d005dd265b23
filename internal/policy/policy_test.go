package policy

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"

	"StudioDesk/server/internal/models"
)

func messageAt(t0 time.Time) models.Message {
	return models.Message{
		ID:         "42",
		RoomKey:    "project-1",
		SenderID:   10,
		SenderName: "alice",
		Body:       "hello",
		Kind:       models.KindText,
		Timestamp:  t0,
	}
}

func TestCanEditWindow(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	msg := messageAt(t0)

	cases := []struct {
		name string
		now  time.Time
		user int
		want bool
	}{
		{"owner just under 24h", t0.Add(23*time.Hour + 59*time.Minute), 10, true},
		{"owner exactly 24h", t0.Add(24 * time.Hour), 10, true},
		{"owner past 24h", t0.Add(24*time.Hour + time.Minute), 10, false},
		{"other user inside window", t0.Add(time.Minute), 20, false},
		{"other user outside window", t0.Add(48 * time.Hour), 20, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := New(clockwork.NewFakeClockAt(tc.now))
			assert.Equal(t, tc.want, p.CanEdit(msg, tc.user))
		})
	}
}

func TestCanDeleteForEveryoneWindow(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	msg := messageAt(t0)

	cases := []struct {
		name string
		now  time.Time
		user int
		want bool
	}{
		{"owner just under 1h", t0.Add(59 * time.Minute), 10, true},
		{"owner past 1h", t0.Add(time.Hour + time.Minute), 10, false},
		{"other user", t0.Add(time.Minute), 20, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := New(clockwork.NewFakeClockAt(tc.now))
			assert.Equal(t, tc.want, p.CanDeleteForEveryone(msg, tc.user))
		})
	}
}

func TestCanDeleteForSelfAlwaysAllowed(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	msg := messageAt(t0)
	p := New(clockwork.NewFakeClockAt(t0.Add(1000 * time.Hour)))

	assert.True(t, p.CanDeleteForSelf(msg, 10))
	assert.True(t, p.CanDeleteForSelf(msg, 20))
}

func TestTombstone(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	msg := messageAt(t0)
	msg.Kind = models.KindImage
	msg.Attachment = &models.Attachment{URL: "data:image/png;base64,AAAA", Name: "x.png", Size: 4, MimeType: "image/png"}

	tomb := Tombstone(msg)

	assert.Equal(t, DeletedPlaceholder, tomb.Body)
	assert.Equal(t, models.KindText, tomb.Kind)
	assert.Nil(t, tomb.Attachment)
	assert.True(t, tomb.Deleted)

	// Identity and ordering fields survive.
	assert.Equal(t, msg.ID, tomb.ID)
	assert.Equal(t, msg.SenderID, tomb.SenderID)
	assert.Equal(t, msg.Timestamp, tomb.Timestamp)
}
