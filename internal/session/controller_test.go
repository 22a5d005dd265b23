package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StudioDesk/server/internal/models"
	"StudioDesk/server/internal/notifier"
)

// fakeGateway is an in-memory message store with injectable failures and an
// optional gate that parks CreateMessage until the test releases it.
type fakeGateway struct {
	mu          sync.Mutex
	messages    []models.Message
	nextID      int
	listErr     error
	createErr   error
	listCalls   int
	createCalls int
	createGate  chan struct{}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{nextID: 1}
}

func (g *fakeGateway) ListMessages(_ context.Context, roomKey string) ([]models.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.listCalls++
	if g.listErr != nil {
		return nil, g.listErr
	}
	out := make([]models.Message, 0, len(g.messages))
	for _, m := range g.messages {
		if m.RoomKey == roomKey {
			out = append(out, m)
		}
	}
	return out, nil
}

func (g *fakeGateway) CreateMessage(_ context.Context, roomKey string, draft models.Draft) (models.Message, error) {
	g.mu.Lock()
	gate := g.createGate
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.createCalls++
	if g.createErr != nil {
		return models.Message{}, g.createErr
	}
	msg := models.Message{
		ID:        strconv.Itoa(g.nextID),
		RoomKey:   roomKey,
		SenderID:  1,
		Body:      draft.Body,
		Kind:      draft.Kind,
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, g.nextID, time.UTC),
	}
	g.nextID++
	g.messages = append(g.messages, msg)
	return msg, nil
}

func (g *fakeGateway) seed(roomKey string, bodies ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, body := range bodies {
		g.messages = append(g.messages, models.Message{
			ID:        strconv.Itoa(g.nextID),
			RoomKey:   roomKey,
			SenderID:  2,
			Body:      body,
			Kind:      models.KindText,
			Timestamp: time.Date(2025, 6, 1, 11, 0, 0, g.nextID, time.UTC),
		})
		g.nextID++
	}
}

func (g *fakeGateway) setListErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listErr = err
}

func (g *fakeGateway) listCallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.listCalls
}

func (g *fakeGateway) createCallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.createCalls
}

func alice() models.Identity { return models.Identity{ID: 1, Name: "alice"} }

func openController(t *testing.T, gw Gateway, feed Feed, clock clockwork.Clock) *Controller {
	t.Helper()

	ctrl := NewController("project-7", alice(), gw, feed, clock)
	require.NoError(t, ctrl.Open(context.Background()))
	t.Cleanup(ctrl.Close)
	return ctrl
}

func TestOpenLoadsHistory(t *testing.T) {
	gw := newFakeGateway()
	gw.seed("project-7", "first", "second")
	gw.seed("project-8", "elsewhere")

	ctrl := openController(t, gw, nil, clockwork.NewFakeClock())

	assert.Equal(t, StateReady, ctrl.State())
	msgs := ctrl.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Body)
	assert.Equal(t, "second", msgs[1].Body)
}

func TestOpenTwiceFails(t *testing.T) {
	gw := newFakeGateway()
	ctrl := openController(t, gw, nil, clockwork.NewFakeClock())

	assert.Error(t, ctrl.Open(context.Background()))
}

func TestSendReconcilesToServerMessage(t *testing.T) {
	gw := newFakeGateway()
	ctrl := openController(t, gw, nil, clockwork.NewFakeClock())

	saved, err := ctrl.Send(context.Background(), "hello there")
	require.NoError(t, err)
	assert.Equal(t, "1", saved.ID)

	entries := ctrl.Entries()
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Pending)
	assert.Equal(t, "1", entries[0].ID)
	assert.Equal(t, "hello there", entries[0].Body)
	assert.NotContains(t, entries[0].ID, tempPrefix)
	assert.Empty(t, ctrl.Input())
}

func TestSendFailureRestoresState(t *testing.T) {
	gw := newFakeGateway()
	gw.seed("project-7", "existing")
	ctrl := openController(t, gw, nil, clockwork.NewFakeClock())

	gw.mu.Lock()
	gw.createErr = errors.New("store unavailable")
	gw.mu.Unlock()

	ctrl.SetInput("my draft")
	_, err := ctrl.Send(context.Background(), "my draft")
	require.Error(t, err)

	// The optimistic entry is gone and the compose text is back.
	msgs := ctrl.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "existing", msgs[0].Body)
	assert.Equal(t, "my draft", ctrl.Input())
}

func TestSendEmptyIsNoop(t *testing.T) {
	gw := newFakeGateway()
	ctrl := openController(t, gw, nil, clockwork.NewFakeClock())

	_, err := ctrl.Send(context.Background(), "   \n\t ")
	assert.ErrorIs(t, err, models.ErrEmptyMessage)
	assert.Zero(t, gw.createCallCount())
	assert.Empty(t, ctrl.Messages())
}

func TestSendFileTooLargeNeverHitsGateway(t *testing.T) {
	gw := newFakeGateway()
	ctrl := openController(t, gw, nil, clockwork.NewFakeClock())

	data := make([]byte, 10*1024*1024+1)
	_, err := ctrl.SendFile(context.Background(), "huge.bin", "application/zip", data, "")
	require.Error(t, err)
	assert.Zero(t, gw.createCallCount())
	assert.Empty(t, ctrl.Messages())
}

func TestSendFileBuildsCaptionAndKind(t *testing.T) {
	gw := newFakeGateway()
	ctrl := openController(t, gw, nil, clockwork.NewFakeClock())

	saved, err := ctrl.SendFile(context.Background(), "shot.png", "image/png", []byte{1, 2, 3}, "")
	require.NoError(t, err)
	assert.Equal(t, models.KindImage, saved.Kind)
	assert.Equal(t, "📷 Shared an image: shot.png", saved.Body)
}

func TestReloadDuringInflightSendKeepsPending(t *testing.T) {
	gw := newFakeGateway()
	gw.seed("project-7", "existing")
	ctrl := openController(t, gw, nil, clockwork.NewFakeClock())

	gate := make(chan struct{})
	gw.mu.Lock()
	gw.createGate = gate
	gw.mu.Unlock()

	sendDone := make(chan error, 1)
	go func() {
		_, err := ctrl.Send(context.Background(), "inflight")
		sendDone <- err
	}()

	// Wait for the optimistic entry to appear.
	require.Eventually(t, func() bool {
		for _, e := range ctrl.Entries() {
			if e.Pending {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	// A wholesale reload while the create is still in flight must not drop
	// the pending entry.
	require.NoError(t, ctrl.Reload(context.Background()))
	entries := ctrl.Entries()
	require.Len(t, entries, 2)
	assert.True(t, entries[1].Pending)
	assert.Equal(t, "inflight", entries[1].Body)

	// Let the create finish: the pending entry collapses into exactly one
	// confirmed message.
	close(gate)
	require.NoError(t, <-sendDone)

	var inflight int
	for _, e := range ctrl.Entries() {
		if e.Body == "inflight" {
			inflight++
			assert.False(t, e.Pending)
		}
	}
	assert.Equal(t, 1, inflight)

	// A further reload, now that the store has the message, still yields one.
	require.NoError(t, ctrl.Reload(context.Background()))
	inflight = 0
	for _, e := range ctrl.Entries() {
		if e.Body == "inflight" {
			inflight++
		}
	}
	assert.Equal(t, 1, inflight)
}

func TestReloadDropsOrphanedPending(t *testing.T) {
	gw := newFakeGateway()
	ctrl := openController(t, gw, nil, clockwork.NewFakeClock())

	// An optimistic entry whose create is no longer in flight must not
	// survive a reload.
	ctrl.mu.Lock()
	ctrl.entries = append(ctrl.entries, Entry{
		Message: models.Message{ID: tempPrefix + "999", RoomKey: "project-7", Body: "ghost"},
		Pending: true,
	})
	ctrl.mu.Unlock()

	require.NoError(t, ctrl.Reload(context.Background()))
	assert.Empty(t, ctrl.Messages())
}

func TestFeedEventTriggersRefresh(t *testing.T) {
	gw := newFakeGateway()
	hub := notifier.New()
	ctrl := openController(t, gw, NotifierFeed{Notifier: hub}, clockwork.NewFakeClock())

	// New message lands in the store, then the advisory event fires.
	gw.seed("project-7", "pushed")
	hub.Publish("project-7", notifier.Event{Type: notifier.EventChatMessage, Sender: 2})

	require.Eventually(t, func() bool {
		msgs := ctrl.Messages()
		return len(msgs) == 1 && msgs[0].Body == "pushed"
	}, time.Second, 5*time.Millisecond)
}

func TestInitialLoadFailureRecoversOnPoll(t *testing.T) {
	gw := newFakeGateway()
	gw.setListErr(errors.New("store down"))
	clock := clockwork.NewFakeClock()

	ctrl := openController(t, gw, nil, clock)
	assert.Equal(t, StateLoading, ctrl.State())

	// Store comes back; the next poll tick picks it up.
	gw.setListErr(nil)
	gw.seed("project-7", "recovered")

	clock.BlockUntil(1)
	clock.Advance(PollInterval)

	require.Eventually(t, func() bool {
		return ctrl.State() == StateReady
	}, time.Second, 5*time.Millisecond)
	msgs := ctrl.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "recovered", msgs[0].Body)
}

func TestReloadFiltersTempIDsFromStore(t *testing.T) {
	gw := newFakeGateway()
	gw.mu.Lock()
	gw.messages = append(gw.messages, models.Message{
		ID: tempPrefix + "123", RoomKey: "project-7", Body: "leaked temp",
	})
	gw.mu.Unlock()

	ctrl := openController(t, gw, nil, clockwork.NewFakeClock())
	assert.Empty(t, ctrl.Messages())
}

func TestTypingIndicatorExpires(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	ctrl := NewController("project-7", alice(), newFakeGateway(), nil, clock)

	ctrl.handleEvent(notifier.Event{Type: notifier.EventTyping, Sender: 2, SenderName: "bob", Typing: true})
	assert.Equal(t, "bob", ctrl.TypingUser())

	clock.Advance(typingTTL + time.Second)
	assert.Equal(t, "", ctrl.TypingUser())
}

func TestOwnTypingEventIgnored(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ctrl := NewController("project-7", alice(), newFakeGateway(), nil, clock)

	ctrl.handleEvent(notifier.Event{Type: notifier.EventTyping, Sender: 1, SenderName: "alice", Typing: true})
	assert.Equal(t, "", ctrl.TypingUser())
}

func TestOnUpdateFiresOnSend(t *testing.T) {
	gw := newFakeGateway()
	clock := clockwork.NewFakeClock()
	ctrl := NewController("project-7", alice(), gw, nil, clock)

	var mu sync.Mutex
	var fired int
	ctrl.SetOnUpdate(func() {
		mu.Lock()
		fired++
		mu.Unlock()
	})
	require.NoError(t, ctrl.Open(context.Background()))
	defer ctrl.Close()

	mu.Lock()
	afterOpen := fired
	mu.Unlock()
	assert.GreaterOrEqual(t, afterOpen, 1)

	_, err := ctrl.Send(context.Background(), "ping")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Greater(t, fired, afterOpen)
}

func TestShouldAutoScroll(t *testing.T) {
	own := models.Message{SenderID: 1}
	other := models.Message{SenderID: 2}

	cases := []struct {
		name     string
		atBottom bool
		msg      models.Message
		want     bool
	}{
		{"at bottom, other sender", true, other, true},
		{"at bottom, own message", true, own, true},
		{"scrolled up, other sender", false, other, false},
		{"scrolled up, own message", false, own, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ShouldAutoScroll(tc.atBottom, tc.msg, 1))
		})
	}
}

func TestSimultaneousSendsGetDistinctTempIDs(t *testing.T) {
	gw := newFakeGateway()
	// A fake clock never moves on its own, so both sends read the exact
	// same instant.
	ctrl := openController(t, gw, nil, clockwork.NewFakeClock())

	gate := make(chan struct{})
	gw.mu.Lock()
	gw.createGate = gate
	gw.mu.Unlock()

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		body := fmt.Sprintf("msg %d", i)
		go func() {
			_, err := ctrl.Send(context.Background(), body)
			done <- err
		}()
	}

	require.Eventually(t, func() bool {
		pending := 0
		for _, e := range ctrl.Entries() {
			if e.Pending {
				pending++
			}
		}
		return pending == 2
	}, time.Second, 5*time.Millisecond)

	ids := map[string]bool{}
	for _, e := range ctrl.Entries() {
		ids[e.ID] = true
	}
	assert.Len(t, ids, 2)

	close(gate)
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	// Each pending entry reconciled to its own confirmed message.
	confirmed := map[string]bool{}
	for _, e := range ctrl.Entries() {
		assert.False(t, e.Pending)
		confirmed[e.ID] = true
	}
	assert.Len(t, confirmed, 2)
}
