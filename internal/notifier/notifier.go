// Package notifier is the per-room publish/subscribe channel. Events are
// advisory signals ("refresh your view of this room"), never authoritative
// message payloads: consumers reconcile against the message store, so missed
// or duplicated events are harmless.
package notifier

import (
	"sync"

	"github.com/google/uuid"
)

const (
	EventChatMessage    = "chat_message"
	EventMessageEdited  = "message_edited"
	EventMessageDeleted = "message_deleted"
	EventTyping         = "typing"
)

type Event struct {
	Type       string `json:"type"`
	Sender     int    `json:"sender,omitempty"`
	SenderName string `json:"sender_name,omitempty"`
	Typing     bool   `json:"typing,omitempty"`
}

type Handler func(Event)

// Subscription identifies one handler registration on one room.
type Subscription struct {
	ID      string
	RoomKey string
}

type Notifier struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Handler
}

func New() *Notifier {
	return &Notifier{
		rooms: make(map[string]map[string]Handler),
	}
}

// Subscribe registers a handler for all events published to the room.
func (n *Notifier) Subscribe(roomKey string, h Handler) *Subscription {
	sub := &Subscription{
		ID:      uuid.NewString(),
		RoomKey: roomKey,
	}

	n.mu.Lock()
	room := n.rooms[roomKey]
	if room == nil {
		room = make(map[string]Handler)
		n.rooms[roomKey] = room
	}
	room[sub.ID] = h
	n.mu.Unlock()

	return sub
}

// Unsubscribe removes the handler. Safe to call more than once.
func (n *Notifier) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	n.mu.Lock()
	room := n.rooms[sub.RoomKey]
	if room != nil {
		delete(room, sub.ID)
		if len(room) == 0 {
			delete(n.rooms, sub.RoomKey)
		}
	}
	n.mu.Unlock()
}

// Publish delivers the event to every subscriber of the room, including the
// publisher's own subscriptions. Handlers run synchronously outside the
// notifier lock; they must not block for long.
func (n *Notifier) Publish(roomKey string, ev Event) {
	n.mu.RLock()
	room := n.rooms[roomKey]
	handlers := make([]Handler, 0, len(room))
	for _, h := range room {
		handlers = append(handlers, h)
	}
	n.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
