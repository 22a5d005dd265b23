// Package policy enforces the time-windowed mutation permissions for
// messages: edits within 24 hours, delete-for-everyone within 1 hour, both
// restricted to the original sender. Delete-for-self has no window.
package policy

import (
	"time"

	"github.com/jonboulle/clockwork"

	"StudioDesk/server/internal/models"
)

const (
	EditWindow   = 24 * time.Hour
	DeleteWindow = 1 * time.Hour

	// DeletedPlaceholder replaces the body after a delete-for-everyone.
	DeletedPlaceholder = "this message has been deleted"
)

type Policy struct {
	clock clockwork.Clock
}

func New(clock clockwork.Clock) *Policy {
	return &Policy{clock: clock}
}

// CanEdit reports whether the acting user may edit the message right now.
func (p *Policy) CanEdit(msg models.Message, actingUserID int) bool {
	if msg.SenderID != actingUserID {
		return false
	}
	return p.clock.Now().Sub(msg.Timestamp) <= EditWindow
}

// CanDeleteForEveryone reports whether the acting user may irreversibly
// delete the message for all participants.
func (p *Policy) CanDeleteForEveryone(msg models.Message, actingUserID int) bool {
	if msg.SenderID != actingUserID {
		return false
	}
	return p.clock.Now().Sub(msg.Timestamp) <= DeleteWindow
}

// CanDeleteForSelf always holds: it only hides the message from the acting
// user's own view.
func (p *Policy) CanDeleteForSelf(models.Message, int) bool {
	return true
}

// Tombstone returns the message as it must look after a delete-for-everyone:
// body replaced, attachment cleared, id/sender/timestamp untouched.
func Tombstone(msg models.Message) models.Message {
	msg.Body = DeletedPlaceholder
	msg.Kind = models.KindText
	msg.Attachment = nil
	msg.Deleted = true
	return msg
}
