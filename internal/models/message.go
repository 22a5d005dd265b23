package models

import (
	"time"
)

const (
	KindText    = "text"
	KindFile    = "file"
	KindImage   = "image"
	KindTaskTag = "task_tag"
)

const (
	DeleteScopeSelf     = "self"
	DeleteScopeEveryone = "everyone"
)

// ValidKind reports whether kind is one of the known message kinds.
func ValidKind(kind string) bool {
	switch kind {
	case KindText, KindFile, KindImage, KindTaskTag:
		return true
	}
	return false
}

// Attachment is the transportable inline representation of a shared file.
// URL is either a data URI or a resolvable remote URL.
type Attachment struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

type Message struct {
	ID          string      `json:"id"`
	RoomKey     string      `json:"room_key"`
	SenderID    int         `json:"sender_id"`
	SenderName  string      `json:"sender_name"`
	RecipientID int         `json:"recipient_id,omitempty"`
	Body        string      `json:"body"`
	Kind        string      `json:"kind"`
	Attachment  *Attachment `json:"attachment,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
	Edited      bool        `json:"edited"`
	Deleted     bool        `json:"deleted"`
	ReadAt      *time.Time  `json:"read_at,omitempty"`
}

// Draft is the client-supplied part of a message before the store assigns
// id and timestamp.
type Draft struct {
	Body        string      `json:"body"`
	Kind        string      `json:"kind"`
	RecipientID int         `json:"recipient_id,omitempty"`
	Attachment  *Attachment `json:"attachment,omitempty"`
}

// Patch carries the mutable fields of an edit. Nil fields are left untouched.
type Patch struct {
	Body       *string     `json:"body,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// Conversation is a direct-message peer summary for the conversation list.
type Conversation struct {
	UserID          int       `json:"user_id"`
	UserName        string    `json:"user_name"`
	LastMessage     string    `json:"last_message"`
	LastMessageTime time.Time `json:"last_message_time"`
	UnreadCount     int       `json:"unread_count"`
}
