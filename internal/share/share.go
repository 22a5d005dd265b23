// Package share re-sends existing messages to additional rooms. Attachments
// are re-materialized into fresh inline payloads rather than passed by
// reference, because target rooms may not be able to dereference the source
// URL. Delivery across targets is not atomic: partial success is reported
// per target, never rolled back.
package share

import (
	"context"
	"fmt"
	"log"

	"go.uber.org/multierr"

	"StudioDesk/server/internal/attachments"
	"StudioDesk/server/internal/models"
	"StudioDesk/server/internal/notifier"
)

// Creator is the slice of the message store the engine needs.
type Creator interface {
	CreateMessage(ctx context.Context, roomKey string, sender models.Identity, draft models.Draft) (models.Message, error)
}

// Resolver fetches the bytes behind a remote attachment URL.
type Resolver interface {
	Fetch(ctx context.Context, url string) (mimeType string, data []byte, err error)
}

type TargetFailure struct {
	RoomKey   string `json:"room_key"`
	MessageID string `json:"message_id"`
	Reason    string `json:"reason"`
	err       error
}

type Result struct {
	Succeeded int             `json:"succeeded"`
	Failures  []TargetFailure `json:"failures,omitempty"`
}

// Partial reports whether some, but not all, deliveries succeeded.
func (r Result) Partial() bool {
	return r.Succeeded > 0 && len(r.Failures) > 0
}

// Err aggregates the per-target errors, nil when everything succeeded.
func (r Result) Err() error {
	var err error
	for _, f := range r.Failures {
		err = multierr.Append(err, fmt.Errorf("room %s, message %s: %w", f.RoomKey, f.MessageID, f.err))
	}
	return err
}

type Engine struct {
	store    Creator
	notifier *notifier.Notifier
	resolver Resolver
}

func NewEngine(store Creator, n *notifier.Notifier, resolver Resolver) *Engine {
	return &Engine{
		store:    store,
		notifier: n,
		resolver: resolver,
	}
}

// Share re-creates each selected message in each target room, in order, and
// notifies every room that received a copy.
func (e *Engine) Share(ctx context.Context, sender models.Identity, messages []models.Message, roomKeys []string) Result {
	var result Result

	for _, msg := range messages {
		draft, err := e.prepare(ctx, msg)
		if err != nil {
			// The payload itself is unusable; every target for this
			// message fails the same way.
			log.Printf("Error preparing message %s for sharing: %v", msg.ID, err)
			for _, roomKey := range roomKeys {
				result.Failures = append(result.Failures, TargetFailure{
					RoomKey:   roomKey,
					MessageID: msg.ID,
					Reason:    err.Error(),
					err:       err,
				})
			}
			continue
		}

		for _, roomKey := range roomKeys {
			if _, err := e.store.CreateMessage(ctx, roomKey, sender, draft); err != nil {
				log.Printf("Error sharing message %s to room %s: %v", msg.ID, roomKey, err)
				result.Failures = append(result.Failures, TargetFailure{
					RoomKey:   roomKey,
					MessageID: msg.ID,
					Reason:    err.Error(),
					err:       err,
				})
				continue
			}
			result.Succeeded++
			e.notifier.Publish(roomKey, notifier.Event{
				Type:       notifier.EventChatMessage,
				Sender:     sender.ID,
				SenderName: sender.Name,
			})
		}
	}

	log.Printf("Share by user %d: %d succeeded, %d failed", sender.ID, result.Succeeded, len(result.Failures))
	return result
}

// prepare builds the target-room draft. Text messages are copied verbatim;
// attachments are decoded or re-fetched, then re-encoded inline.
func (e *Engine) prepare(ctx context.Context, msg models.Message) (models.Draft, error) {
	if msg.Attachment == nil {
		return models.Draft{Body: msg.Body, Kind: models.KindText}, nil
	}

	var (
		mimeType string
		data     []byte
		err      error
	)
	if attachments.IsDataURI(msg.Attachment.URL) {
		mimeType, data, err = attachments.Decode(msg.Attachment.URL)
	} else {
		if e.resolver == nil {
			return models.Draft{}, fmt.Errorf("no resolver for remote attachment %s", msg.Attachment.URL)
		}
		mimeType, data, err = e.resolver.Fetch(ctx, msg.Attachment.URL)
	}
	if err != nil {
		return models.Draft{}, fmt.Errorf("failed to materialize attachment: %w", err)
	}
	if mimeType == "" {
		mimeType = msg.Attachment.MimeType
	}

	att, err := attachments.Encode(msg.Attachment.Name, mimeType, data)
	if err != nil {
		return models.Draft{}, err
	}

	return models.Draft{
		Body:       attachments.Caption(mimeType, msg.Attachment.Name),
		Kind:       attachments.KindForMime(mimeType),
		Attachment: &att,
	}, nil
}
