// Package session drives one open conversation: it loads history, sends
// optimistically, and reconciles the visible list against the message store
// whenever the room changes, no matter which trigger fired (push event,
// poll tick, explicit reload).
package session

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"StudioDesk/server/internal/attachments"
	"StudioDesk/server/internal/models"
	"StudioDesk/server/internal/notifier"
)

type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
)

// PollInterval is the fallback re-fetch cadence. Polling runs alongside the
// push feed so the conversation stays usable when the push channel is down.
const PollInterval = 3 * time.Second

const tempPrefix = "temp-"

// typingTTL is how long a peer's typing indicator stays visible after the
// last typing event.
const typingTTL = 4 * time.Second

// Gateway is the slice of the message store contract the controller needs.
type Gateway interface {
	ListMessages(ctx context.Context, roomKey string) ([]models.Message, error)
	CreateMessage(ctx context.Context, roomKey string, draft models.Draft) (models.Message, error)
}

// Feed delivers advisory room events. The returned cancel stops delivery.
type Feed interface {
	Subscribe(roomKey string, h func(notifier.Event)) (cancel func(), err error)
}

// Entry is a tagged list element: either a server-confirmed message or a
// pending optimistic one awaiting its create call. Reconciliation is total
// over this distinction.
type Entry struct {
	models.Message
	Pending bool
}

type Controller struct {
	roomKey string
	user    models.Identity
	gateway Gateway
	feed    Feed
	clock   clockwork.Clock

	mu       sync.Mutex
	state    State
	entries  []Entry
	input    string
	inflight map[string]struct{}
	sendSeq  uint64

	typingName string
	typingAt   time.Time

	onUpdate func()

	refresh   chan struct{}
	done      chan struct{}
	cancel    func()
	closeOnce sync.Once
}

func NewController(roomKey string, user models.Identity, gateway Gateway, feed Feed, clock clockwork.Clock) *Controller {
	return &Controller{
		roomKey:  roomKey,
		user:     user,
		gateway:  gateway,
		feed:     feed,
		clock:    clock,
		inflight: make(map[string]struct{}),
		refresh:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Open loads history and starts the refresh loop. A failed initial load is
// not fatal: the controller stays in Loading and retries on poll ticks.
func (c *Controller) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return fmt.Errorf("session for room %s already open", c.roomKey)
	}
	c.state = StateLoading
	c.mu.Unlock()

	if c.feed != nil {
		cancel, err := c.feed.Subscribe(c.roomKey, c.handleEvent)
		if err != nil {
			// Push is a nicety; polling alone keeps the room live.
			log.Printf("Push feed unavailable for room %s, relying on polling: %v", c.roomKey, err)
		} else {
			c.cancel = cancel
		}
	}

	if err := c.Reload(ctx); err != nil {
		log.Printf("Initial load failed for room %s: %v", c.roomKey, err)
	}

	go c.run(ctx)
	return nil
}

// Close stops polling and event delivery. Pending timers never outlive the
// view they belong to.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		close(c.done)
	})
}

func (c *Controller) run(ctx context.Context) {
	ticker := c.clock.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case <-c.refresh:
			if err := c.Reload(ctx); err != nil {
				log.Printf("Refresh failed for room %s: %v", c.roomKey, err)
			}
		case <-ticker.Chan():
			if err := c.Reload(ctx); err != nil {
				log.Printf("Poll refresh failed for room %s: %v", c.roomKey, err)
			}
		}
	}
}

// handleEvent is the single entry point for push events. Typing updates
// local indicator state; everything else collapses into "refresh now".
func (c *Controller) handleEvent(ev notifier.Event) {
	if ev.Type == notifier.EventTyping {
		if ev.Sender == c.user.ID {
			return
		}
		c.mu.Lock()
		c.typingName = ev.SenderName
		c.typingAt = c.clock.Now()
		c.mu.Unlock()
		return
	}
	c.signalRefresh()
}

func (c *Controller) signalRefresh() {
	select {
	case c.refresh <- struct{}{}:
	default:
	}
}

// Reload re-fetches the room wholesale and replaces confirmed state. The
// store result is the source of truth; optimistic entries survive only while
// their create call is still in flight.
func (c *Controller) Reload(ctx context.Context) error {
	fetched, err := c.gateway.ListMessages(ctx, c.roomKey)
	if err != nil {
		return err
	}

	c.mu.Lock()
	next := make([]Entry, 0, len(fetched)+len(c.inflight))
	for _, msg := range fetched {
		if strings.HasPrefix(msg.ID, tempPrefix) {
			continue
		}
		next = append(next, Entry{Message: msg})
	}
	for _, e := range c.entries {
		if e.Pending {
			if _, ok := c.inflight[e.ID]; ok {
				next = append(next, e)
			}
		}
	}
	c.entries = next
	c.state = StateReady
	notify := c.onUpdate
	c.mu.Unlock()

	if notify != nil {
		notify()
	}
	return nil
}

// SetOnUpdate registers a callback fired after the visible list changes.
// Must be called before Open.
func (c *Controller) SetOnUpdate(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUpdate = fn
}

// Send appends an optimistic entry, clears the compose input, and persists
// the message. On failure the entry is removed and the input restored so
// the user can retry.
func (c *Controller) Send(ctx context.Context, body string) (models.Message, error) {
	if strings.TrimSpace(body) == "" {
		return models.Message{}, models.ErrEmptyMessage
	}
	draft := models.Draft{Body: body, Kind: models.KindText}
	return c.send(ctx, draft)
}

// SendFile validates and encodes the file, then sends it as an attachment
// message. Oversized files fail here, before any store call.
func (c *Controller) SendFile(ctx context.Context, name, mimeType string, data []byte, caption string) (models.Message, error) {
	att, err := attachments.Encode(name, mimeType, data)
	if err != nil {
		return models.Message{}, err
	}
	if caption == "" {
		caption = attachments.Caption(mimeType, name)
	}
	draft := models.Draft{
		Body:       caption,
		Kind:       attachments.KindForMime(mimeType),
		Attachment: &att,
	}
	return c.send(ctx, draft)
}

func (c *Controller) send(ctx context.Context, draft models.Draft) (models.Message, error) {
	c.mu.Lock()
	// The sequence suffix keeps ids distinct when two sends land on the
	// same clock reading.
	c.sendSeq++
	tempID := fmt.Sprintf("%s%d-%d", tempPrefix, c.clock.Now().UnixNano(), c.sendSeq)

	optimistic := models.Message{
		ID:         tempID,
		RoomKey:    c.roomKey,
		SenderID:   c.user.ID,
		SenderName: c.user.Name,
		Body:       draft.Body,
		Kind:       draft.Kind,
		Attachment: draft.Attachment,
		Timestamp:  c.clock.Now(),
	}

	c.entries = append(c.entries, Entry{Message: optimistic, Pending: true})
	c.inflight[tempID] = struct{}{}
	c.input = ""
	c.mu.Unlock()

	saved, err := c.gateway.CreateMessage(ctx, c.roomKey, draft)

	c.mu.Lock()
	delete(c.inflight, tempID)
	if err != nil {
		c.removeLocked(tempID)
		if draft.Kind == models.KindText {
			c.input = draft.Body
		}
	} else {
		c.reconcileLocked(tempID, saved)
	}
	notify := c.onUpdate
	c.mu.Unlock()

	if notify != nil {
		notify()
	}
	if err != nil {
		log.Printf("Send failed in room %s, optimistic entry reverted: %v", c.roomKey, err)
		return models.Message{}, err
	}
	return saved, nil
}

// reconcileLocked replaces the pending entry matching tempID with the
// confirmed message, preserving its position. If a wholesale reload already
// superseded the pending entry, the confirmed message is appended unless the
// reload already brought it in.
func (c *Controller) reconcileLocked(tempID string, saved models.Message) {
	for i, e := range c.entries {
		if e.Pending && e.ID == tempID {
			c.entries[i] = Entry{Message: saved}
			return
		}
	}
	for _, e := range c.entries {
		if e.ID == saved.ID {
			return
		}
	}
	c.entries = append(c.entries, Entry{Message: saved})
}

func (c *Controller) removeLocked(id string) {
	for i, e := range c.entries {
		if e.ID == id {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return
		}
	}
}

// Messages returns a snapshot of the visible list, pending entries included.
func (c *Controller) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.Message, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Message
	}
	return out
}

// Entries returns the tagged snapshot, for callers that render pending
// messages differently.
func (c *Controller) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Input returns the compose box text the controller holds for the user.
func (c *Controller) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = text
}

// TypingUser returns the display name of a peer who signalled typing
// recently, or "" when nobody is.
func (c *Controller) TypingUser() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.typingName == "" || c.clock.Now().Sub(c.typingAt) > typingTTL {
		return ""
	}
	return c.typingName
}

// ShouldAutoScroll decides whether a newly arrived message may move the
// viewport: only when the viewer is already at the bottom, or the message is
// their own. Otherwise the UI shows an unread affordance instead.
func ShouldAutoScroll(atBottom bool, msg models.Message, viewerID int) bool {
	return atBottom || msg.SenderID == viewerID
}
