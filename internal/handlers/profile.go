package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"StudioDesk/server/internal/models"
)

func GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := identityFromContext(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := userService.GetUserById(r.Context(), userID.ID)
	if err != nil {
		log.Printf("Error fetching user profile: %v", err)
		if errors.Is(err, models.ErrUserNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
		} else {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// identityFromContext pulls the authenticated identity the middleware stored.
func identityFromContext(r *http.Request) (models.Identity, bool) {
	userIDRaw := r.Context().Value("user_id")
	if userIDRaw == nil {
		log.Println("Missing user_id in context")
		return models.Identity{}, false
	}
	userID, ok := userIDRaw.(int)
	if !ok {
		log.Println("Invalid user_id type in context")
		return models.Identity{}, false
	}

	name, _ := r.Context().Value("username").(string)
	return models.Identity{ID: userID, Name: name}, true
}
