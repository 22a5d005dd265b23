package models

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrEmptyMessage    = errors.New("message is empty")
	ErrEmptyPatch      = errors.New("patch contains no changes")
	ErrNotSender       = errors.New("user is not the message sender")
	ErrWindowExpired   = errors.New("mutation window has expired")
	ErrRoomMismatch    = errors.New("message does not belong to room")
	ErrNotParticipant  = errors.New("user is not a participant of this room")
)
