package gateway

import (
	"encoding/json"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"StudioDesk/server/internal/notifier"
	"StudioDesk/server/internal/pool"
)

const redialDelay = 2 * time.Second

// WSFeed is the client side of the realtime notifier transport. It keeps one
// websocket to the server, multiplexes room subscriptions over it, and
// redials on failure. Missed events during an outage are harmless: sessions
// reconcile against the store on every poll tick anyway.
type WSFeed struct {
	wsURL string

	mu       sync.Mutex
	conn     *websocket.Conn
	handlers map[string]map[string]func(notifier.Event)
	closed   bool

	// wmu serializes writers; gorilla allows only one concurrent writer.
	wmu sync.Mutex
}

// DialFeed connects to the server's websocket endpoint. baseURL is the HTTP
// base; the scheme is rewritten to ws/wss.
func DialFeed(baseURL, token string) (*WSFeed, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = "token=" + url.QueryEscape(token)

	f := &WSFeed{
		wsURL:    u.String(),
		handlers: make(map[string]map[string]func(notifier.Event)),
	}
	if err := f.dial(); err != nil {
		return nil, err
	}
	go f.readLoop()
	return f, nil
}

// Subscribe registers a handler for the room and tells the server to start
// forwarding its events.
func (f *WSFeed) Subscribe(roomKey string, h func(notifier.Event)) (func(), error) {
	id := uuid.NewString()

	f.mu.Lock()
	room := f.handlers[roomKey]
	first := room == nil
	if first {
		room = make(map[string]func(notifier.Event))
		f.handlers[roomKey] = room
	}
	room[id] = h
	conn := f.conn
	f.mu.Unlock()

	if first && conn != nil {
		if err := f.writeFrame(conn, "subscribe", roomKey, false); err != nil {
			log.Printf("Error subscribing to room %s: %v", roomKey, err)
		}
	}

	cancel := func() {
		f.mu.Lock()
		room := f.handlers[roomKey]
		if room != nil {
			delete(room, id)
			if len(room) == 0 {
				delete(f.handlers, roomKey)
				if f.conn != nil {
					_ = f.writeFrame(f.conn, "unsubscribe", roomKey, false)
				}
			}
		}
		f.mu.Unlock()
	}
	return cancel, nil
}

// SendTyping propagates a typing indicator to the room.
func (f *WSFeed) SendTyping(roomKey string, typing bool) {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn == nil {
		return
	}
	if err := f.writeFrame(conn, "typing", roomKey, typing); err != nil {
		log.Printf("Error sending typing indicator to room %s: %v", roomKey, err)
	}
}

func (f *WSFeed) Close() {
	f.mu.Lock()
	f.closed = true
	if f.conn != nil {
		_ = f.conn.Close()
		f.conn = nil
	}
	f.mu.Unlock()
}

func (f *WSFeed) dial() error {
	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL, nil)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.conn = conn
	rooms := make([]string, 0, len(f.handlers))
	for roomKey := range f.handlers {
		rooms = append(rooms, roomKey)
	}
	f.mu.Unlock()

	// Reconnection re-subscribes; no event replay is needed.
	for _, roomKey := range rooms {
		if err := f.writeFrame(conn, "subscribe", roomKey, false); err != nil {
			log.Printf("Error re-subscribing to room %s: %v", roomKey, err)
		}
	}
	return nil
}

func (f *WSFeed) readLoop() {
	for {
		f.mu.Lock()
		conn := f.conn
		closed := f.closed
		f.mu.Unlock()
		if closed {
			return
		}
		if conn == nil {
			time.Sleep(redialDelay)
			if err := f.dial(); err != nil {
				log.Printf("Feed redial failed: %v", err)
			}
			continue
		}

		var frame pool.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			log.Printf("Feed connection lost: %v", err)
			f.mu.Lock()
			if f.conn == conn {
				_ = f.conn.Close()
				f.conn = nil
			}
			f.mu.Unlock()
			continue
		}

		f.dispatch(frame)
	}
}

func (f *WSFeed) dispatch(frame pool.Frame) {
	f.mu.Lock()
	room := f.handlers[frame.Room]
	hs := make([]func(notifier.Event), 0, len(room))
	for _, h := range room {
		hs = append(hs, h)
	}
	f.mu.Unlock()

	for _, h := range hs {
		h(frame.Data)
	}
}

func (f *WSFeed) writeFrame(conn *websocket.Conn, event, roomKey string, typing bool) error {
	frame := map[string]interface{}{
		"event": event,
		"room":  roomKey,
	}
	if event == "typing" {
		frame["typing"] = typing
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	f.wmu.Lock()
	defer f.wmu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, payload)
}
