package models

import (
	"time"
)

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         string    `json:"role,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity is the acting user as established by the auth layer. The chat
// core trusts it for sender_id/sender_name.
type Identity struct {
	ID   int
	Name string
}
