package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"StudioDesk/server/internal/appMiddleware"
	"StudioDesk/server/internal/notifier"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}

	userID, username, err := appMiddleware.ParseToken(tokenStr)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Error upgrading to WebSocket: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("User %d (%s) connected to WebSocket", userID, username)

	client := clientPool.AddClient(userID, username, conn)
	defer clientPool.RemoveClient(client)

	for {
		var msg struct {
			Event  string `json:"event"`
			Room   string `json:"room"`
			Typing bool   `json:"typing"`
		}

		err := conn.ReadJSON(&msg)
		if err != nil {
			log.Printf("Error reading message from user %d: %v", userID, err)
			break
		}

		switch msg.Event {
		case "subscribe":
			if !roomAccess(msg.Room, userID) {
				log.Printf("User %d denied subscription to room %s", userID, msg.Room)
				continue
			}
			clientPool.Join(client, msg.Room)

		case "unsubscribe":
			clientPool.Leave(client, msg.Room)

		case "typing":
			if !roomAccess(msg.Room, userID) {
				continue
			}
			roomNotifier.Publish(msg.Room, notifier.Event{
				Type:       notifier.EventTyping,
				Sender:     userID,
				SenderName: username,
				Typing:     msg.Typing,
			})

		case "chat_message":
			// Clients may nudge a room after a send made outside this
			// socket; the event stays advisory either way.
			if !roomAccess(msg.Room, userID) {
				continue
			}
			roomNotifier.Publish(msg.Room, notifier.Event{
				Type:       notifier.EventChatMessage,
				Sender:     userID,
				SenderName: username,
			})

		default:
			log.Printf("Unknown event '%s' from user %d", msg.Event, userID)
		}
	}
}
