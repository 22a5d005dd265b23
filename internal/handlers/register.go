package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/jonboulle/clockwork"

	"StudioDesk/server/internal/models"
	"StudioDesk/server/internal/notifier"
	"StudioDesk/server/internal/policy"
	"StudioDesk/server/internal/pool"
	"StudioDesk/server/internal/presence"
	"StudioDesk/server/internal/services"
)

var (
	userService     *services.UserService
	messageStore    services.MessageStore
	roomNotifier    *notifier.Notifier
	presenceTracker *presence.Tracker
	clientPool      *pool.Pool
)

func init() {
	userService = services.NewUserService()
	messageStore = services.NewMessageService(policy.New(clockwork.NewRealClock()), userService)
	roomNotifier = notifier.New()
	presenceTracker = presence.NewTracker()
	clientPool = pool.NewPool(roomNotifier, presenceTracker)
}

func Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Email == "" || req.Password == "" {
		log.Printf("Invalid request: %v", err)
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	exists, err := userService.CheckUserExists(ctx, req.Username, req.Email)
	if err != nil {
		log.Printf("Error checking user existence: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if exists {
		http.Error(w, "User with this email or username already exists", http.StatusConflict)
		return
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		Role:         req.Role,
		PasswordHash: req.Password,
	}

	userId, err := userService.CreateUser(ctx, user)
	if err != nil {
		log.Printf("Error creating user: %v", err)
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"message": "User created", "user_id": strconv.Itoa(userId)})
}
