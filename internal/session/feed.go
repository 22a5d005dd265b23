package session

import (
	"StudioDesk/server/internal/notifier"
)

// NotifierFeed adapts the in-process notifier to the Feed interface for
// sessions living in the same process as the hub.
type NotifierFeed struct {
	Notifier *notifier.Notifier
}

func (f NotifierFeed) Subscribe(roomKey string, h func(notifier.Event)) (func(), error) {
	sub := f.Notifier.Subscribe(roomKey, notifier.Handler(h))
	return func() { f.Notifier.Unsubscribe(sub) }, nil
}
