// Package presence tracks which users currently hold at least one live
// connection. Records are ephemeral: created on connect, dropped when the
// last session of the user disconnects.
package presence

import (
	"log"
	"sync"
)

type Tracker struct {
	mu       sync.RWMutex
	sessions map[int]int
}

func NewTracker() *Tracker {
	return &Tracker{
		sessions: make(map[int]int),
	}
}

// Connect records a new live session for the user. A user may hold several
// sessions at once (multiple tabs), each counts separately.
func (t *Tracker) Connect(userID int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sessions[userID]++
	log.Printf("User %d connected, sessions: %d", userID, t.sessions[userID])
}

// Disconnect drops one live session for the user.
func (t *Tracker) Disconnect(userID int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.sessions[userID]
	if n <= 1 {
		delete(t.sessions, userID)
		log.Printf("User %d disconnected, now offline", userID)
		return
	}
	t.sessions[userID] = n - 1
	log.Printf("User %d disconnected, sessions: %d", userID, n-1)
}

// IsOnline reports whether the user holds at least one live session.
// Unknown users are offline.
func (t *Tracker) IsOnline(userID int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.sessions[userID] > 0
}
