// Package pool tracks live websocket clients and bridges their room
// subscriptions onto the notifier. A user may hold several sessions at once;
// each session subscribes to rooms independently, so a sender's other tabs
// receive the same advisory events as everyone else.
package pool

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"StudioDesk/server/internal/notifier"
	"StudioDesk/server/internal/presence"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

// Frame is the envelope pushed to websocket clients.
type Frame struct {
	Room  string         `json:"room"`
	Event string         `json:"event"`
	Data  notifier.Event `json:"data"`
}

type Client struct {
	ID       string
	UserID   int
	Username string

	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once
	closed chan struct{}

	mu   sync.Mutex
	subs map[string]*notifier.Subscription
}

type Pool struct {
	mu       sync.Mutex
	clients  map[string]*Client
	notifier *notifier.Notifier
	presence *presence.Tracker
}

func NewPool(n *notifier.Notifier, p *presence.Tracker) *Pool {
	return &Pool{
		clients:  make(map[string]*Client),
		notifier: n,
		presence: p,
	}
}

// AddClient registers a connection, marks the user online, and starts the
// write pump.
func (p *Pool) AddClient(userID int, username string, conn *websocket.Conn) *Client {
	client := &Client{
		ID:       uuid.NewString(),
		UserID:   userID,
		Username: username,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		closed:   make(chan struct{}),
		subs:     make(map[string]*notifier.Subscription),
	}

	p.mu.Lock()
	p.clients[client.ID] = client
	p.mu.Unlock()

	p.presence.Connect(userID)
	go client.writeLoop()

	log.Printf("Client %s added to pool for user %d", client.ID, userID)
	return client
}

// RemoveClient drops the session, its room subscriptions, and its presence
// record.
func (p *Pool) RemoveClient(client *Client) {
	p.mu.Lock()
	_, tracked := p.clients[client.ID]
	delete(p.clients, client.ID)
	p.mu.Unlock()

	if !tracked {
		return
	}

	client.mu.Lock()
	for roomKey, sub := range client.subs {
		p.notifier.Unsubscribe(sub)
		delete(client.subs, roomKey)
	}
	client.mu.Unlock()

	p.presence.Disconnect(client.UserID)
	client.close()
	log.Printf("Client %s removed from pool for user %d", client.ID, client.UserID)
}

// Join subscribes the session to a room. Events published to that room are
// forwarded to the client as frames.
func (p *Pool) Join(client *Client, roomKey string) {
	client.mu.Lock()
	defer client.mu.Unlock()

	if _, ok := client.subs[roomKey]; ok {
		return
	}

	sub := p.notifier.Subscribe(roomKey, func(ev notifier.Event) {
		payload, err := json.Marshal(Frame{Room: roomKey, Event: ev.Type, Data: ev})
		if err != nil {
			log.Printf("Error marshaling event for room %s: %v", roomKey, err)
			return
		}
		client.enqueue(payload)
	})
	client.subs[roomKey] = sub
	log.Printf("Client %s joined room %s", client.ID, roomKey)
}

// Leave drops the session's subscription to a room.
func (p *Pool) Leave(client *Client, roomKey string) {
	client.mu.Lock()
	defer client.mu.Unlock()

	sub, ok := client.subs[roomKey]
	if !ok {
		return
	}
	p.notifier.Unsubscribe(sub)
	delete(client.subs, roomKey)
	log.Printf("Client %s left room %s", client.ID, roomKey)
}

// enqueue hands off the payload without blocking. A client that cannot keep
// up only loses advisory events; its next poll reconciles the view.
func (c *Client) enqueue(payload []byte) {
	select {
	case <-c.closed:
	case c.send <- payload:
	default:
		log.Printf("Client %s send buffer full, dropping event", c.ID)
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("Error writing to client %s: %v", c.ID, err)
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}
