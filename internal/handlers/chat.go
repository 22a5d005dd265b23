package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"StudioDesk/server/internal/attachments"
	"StudioDesk/server/internal/models"
	"StudioDesk/server/internal/notifier"
	"StudioDesk/server/internal/rooms"
	"StudioDesk/server/internal/share"
)

// roomAccess rejects outsiders on direct-message rooms. Project rooms are
// open to any authenticated user here; project membership lives outside the
// chat subsystem.
func roomAccess(roomKey string, userID int) bool {
	if !rooms.IsDirect(roomKey) {
		return true
	}
	_, err := rooms.PairPeer(roomKey, userID)
	return err == nil
}

func ListMessages(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	roomKey := chi.URLParam(r, "roomKey")
	if !roomAccess(roomKey, identity.ID) {
		http.Error(w, "User is not a participant of this room", http.StatusForbidden)
		return
	}

	messages, err := messageStore.ListMessages(r.Context(), roomKey, identity.ID)
	if err != nil {
		log.Printf("Error getting messages for room %s: %v", roomKey, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(messages)
}

func CreateMessage(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	roomKey := chi.URLParam(r, "roomKey")
	if !roomAccess(roomKey, identity.ID) {
		http.Error(w, "User is not a participant of this room", http.StatusForbidden)
		return
	}

	var draft models.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		log.Printf("Error decoding request body: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(draft.Body) == "" && draft.Attachment == nil {
		http.Error(w, "Message is empty", http.StatusBadRequest)
		return
	}
	if draft.Kind != "" && !models.ValidKind(draft.Kind) {
		http.Error(w, "Unknown message kind", http.StatusBadRequest)
		return
	}
	if draft.Attachment != nil && draft.Attachment.Size > attachments.MaxSize {
		http.Error(w, "Attachment exceeds the 10MB limit", http.StatusRequestEntityTooLarge)
		return
	}

	saved, err := messageStore.CreateMessage(r.Context(), roomKey, identity, draft)
	if err != nil {
		if errors.Is(err, models.ErrEmptyMessage) {
			http.Error(w, "Message is empty", http.StatusBadRequest)
			return
		}
		log.Printf("Error creating message in room %s: %v", roomKey, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	roomNotifier.Publish(roomKey, notifier.Event{
		Type:       notifier.EventChatMessage,
		Sender:     identity.ID,
		SenderName: identity.Name,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(saved)
}

func EditMessage(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	roomKey := chi.URLParam(r, "roomKey")
	messageID := chi.URLParam(r, "messageID")

	var patch models.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		log.Printf("Error decoding request body: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if patch.Attachment != nil && patch.Attachment.Size > attachments.MaxSize {
		http.Error(w, "Attachment exceeds the 10MB limit", http.StatusRequestEntityTooLarge)
		return
	}

	updated, err := messageStore.EditMessage(r.Context(), roomKey, messageID, identity.ID, patch)
	if err != nil {
		writeMutationError(w, roomKey, messageID, err)
		return
	}

	roomNotifier.Publish(roomKey, notifier.Event{
		Type:       notifier.EventMessageEdited,
		Sender:     identity.ID,
		SenderName: identity.Name,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

func DeleteMessage(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	roomKey := chi.URLParam(r, "roomKey")
	messageID := chi.URLParam(r, "messageID")

	var req struct {
		Scope string `json:"scope"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Error decoding request body: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Scope != models.DeleteScopeSelf && req.Scope != models.DeleteScopeEveryone {
		http.Error(w, "Scope must be 'self' or 'everyone'", http.StatusBadRequest)
		return
	}

	if err := messageStore.DeleteMessage(r.Context(), roomKey, messageID, identity.ID, req.Scope); err != nil {
		writeMutationError(w, roomKey, messageID, err)
		return
	}

	// Hiding a message for yourself changes nobody else's view.
	if req.Scope == models.DeleteScopeEveryone {
		roomNotifier.Publish(roomKey, notifier.Event{
			Type:       notifier.EventMessageDeleted,
			Sender:     identity.ID,
			SenderName: identity.Name,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Message deleted"})
}

func ShareMessages(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		SourceRoom string   `json:"source_room"`
		MessageIDs []string `json:"message_ids"`
		RoomKeys   []string `json:"room_keys"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Error decoding request body: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.MessageIDs) == 0 || len(req.RoomKeys) == 0 {
		http.Error(w, "message_ids and room_keys are required", http.StatusBadRequest)
		return
	}
	if !roomAccess(req.SourceRoom, identity.ID) {
		http.Error(w, "User is not a participant of room "+req.SourceRoom, http.StatusForbidden)
		return
	}
	for _, roomKey := range req.RoomKeys {
		if !roomAccess(roomKey, identity.ID) {
			http.Error(w, "User is not a participant of room "+roomKey, http.StatusForbidden)
			return
		}
	}

	var selected []models.Message
	for _, id := range req.MessageIDs {
		msg, err := messageStore.GetMessage(r.Context(), req.SourceRoom, id)
		if err != nil {
			writeMutationError(w, req.SourceRoom, id, err)
			return
		}
		selected = append(selected, msg)
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	engine := share.NewEngine(messageStore, roomNotifier, share.NewHTTPResolver(token))

	result := engine.Share(r.Context(), identity, selected, req.RoomKeys)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func GetConversations(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conversations, err := messageStore.Conversations(r.Context(), identity.ID)
	if err != nil {
		log.Printf("Error getting conversations for user %d: %v", identity.ID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if conversations == nil {
		conversations = []models.Conversation{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(conversations)
}

func GetPresence(w http.ResponseWriter, r *http.Request) {
	userIDStr := chi.URLParam(r, "userID")
	userID, err := strconv.Atoi(userIDStr)
	if err != nil || userID <= 0 {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"user_id": userID,
		"online":  presenceTracker.IsOnline(userID),
	})
}

func writeMutationError(w http.ResponseWriter, roomKey, messageID string, err error) {
	switch {
	case errors.Is(err, models.ErrEmptyPatch):
		http.Error(w, "Nothing to update", http.StatusBadRequest)
	case errors.Is(err, models.ErrMessageNotFound):
		http.Error(w, "Message not found", http.StatusNotFound)
	case errors.Is(err, models.ErrRoomMismatch):
		http.Error(w, "Message does not belong to this room", http.StatusBadRequest)
	case errors.Is(err, models.ErrNotSender):
		http.Error(w, "Only the sender can modify this message", http.StatusForbidden)
	case errors.Is(err, models.ErrWindowExpired):
		http.Error(w, "The time window for this action has expired", http.StatusForbidden)
	default:
		log.Printf("Error mutating message %s in room %s: %v", messageID, roomKey, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
