package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"StudioDesk/server/internal/models"
	"StudioDesk/server/internal/rooms"
)

// peerResult is a search hit shaped for opening a direct room: the room key
// is derived server-side so the client never builds one by hand.
type peerResult struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	RoomKey  string `json:"room_key"`
	Online   bool   `json:"online"`
}

func SearchUsers(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	searchTerm := r.URL.Query().Get("q")
	if searchTerm == "" {
		http.Error(w, "Search term is required", http.StatusBadRequest)
		return
	}

	users, err := userService.SearchUsers(r.Context(), searchTerm)
	if err != nil {
		log.Printf("Error searching users for %q: %v", searchTerm, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(peerResults(users, identity))
}

// peerResults drops the searcher from their own results and attaches the
// direct-room key and presence for each remaining peer.
func peerResults(users []models.User, viewer models.Identity) []peerResult {
	out := make([]peerResult, 0, len(users))
	for _, u := range users {
		if u.ID == viewer.ID {
			continue
		}
		out = append(out, peerResult{
			ID:       u.ID,
			Username: u.Username,
			Email:    u.Email,
			RoomKey:  rooms.ForPair(viewer.ID, u.ID),
			Online:   presenceTracker.IsOnline(u.ID),
		})
	}
	return out
}
