package services

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"StudioDesk/server/internal/db"
	"StudioDesk/server/internal/models"
	"StudioDesk/server/internal/policy"
	"StudioDesk/server/internal/rooms"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// MessageStore is the durable source of truth for messages. Notifier events
// are only hints; every consumer reconciles against this contract.
type MessageStore interface {
	ListMessages(ctx context.Context, roomKey string, viewerID int) ([]models.Message, error)
	CreateMessage(ctx context.Context, roomKey string, sender models.Identity, draft models.Draft) (models.Message, error)
	GetMessage(ctx context.Context, roomKey, messageID string) (models.Message, error)
	EditMessage(ctx context.Context, roomKey, messageID string, actingUserID int, patch models.Patch) (models.Message, error)
	DeleteMessage(ctx context.Context, roomKey, messageID string, actingUserID int, scope string) error
	Conversations(ctx context.Context, userID int) ([]models.Conversation, error)
	UnreadCount(ctx context.Context, roomKey string, userID int) (int, error)
}

type messageService struct {
	policy      *policy.Policy
	UserService *UserService
}

func NewMessageService(p *policy.Policy, userService *UserService) *messageService {
	return &messageService{
		policy:      p,
		UserService: userService,
	}
}

var messageColumns = []string{
	"id", "room_key", "sender_id", "sender_name", "recipient_id",
	"body", "kind", "file_url", "file_name", "file_size", "file_type",
	"edited", "deleted", "sent_at", "read_at",
}

func (ms *messageService) ListMessages(ctx context.Context, roomKey string, viewerID int) ([]models.Message, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select(prefixed("messages", messageColumns)...).
		From("messages").
		LeftJoin("message_hides ON messages.id = message_hides.message_id AND message_hides.user_id = ?", viewerID).
		Where(squirrel.Eq{"messages.room_key": roomKey}).
		Where("message_hides.message_id IS NULL").
		OrderBy("messages.sent_at ASC")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	rows, err := db.Pool.Query(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error getting messages for room %s: %v", roomKey, err)
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			log.Printf("Error scanning message row: %v", err)
			return nil, err
		}
		messages = append(messages, msg)
	}
	if rows.Err() != nil {
		log.Printf("Error after iterating rows: %v", rows.Err())
		return nil, rows.Err()
	}

	// Listing a direct room counts as reading it.
	if rooms.IsDirect(roomKey) {
		if err := ms.markRead(ctx, roomKey, viewerID); err != nil {
			log.Printf("Error marking messages as read in room %s for user %d: %v", roomKey, viewerID, err)
		}
	}

	log.Printf("Fetched %d messages for room %s", len(messages), roomKey)
	return messages, nil
}

func (ms *messageService) CreateMessage(ctx context.Context, roomKey string, sender models.Identity, draft models.Draft) (models.Message, error) {
	if strings.TrimSpace(draft.Body) == "" && draft.Attachment == nil {
		return models.Message{}, models.ErrEmptyMessage
	}

	kind := draft.Kind
	if kind == "" {
		kind = models.KindText
	}

	recipientID := draft.RecipientID
	if recipientID == 0 && rooms.IsDirect(roomKey) {
		peer, err := rooms.PairPeer(roomKey, sender.ID)
		if err != nil {
			log.Printf("Error deriving recipient for room %s: %v", roomKey, err)
			return models.Message{}, models.ErrNotParticipant
		}
		recipientID = peer
	}

	var fileURL, fileName, fileType *string
	var fileSize *int64
	if draft.Attachment != nil {
		fileURL = &draft.Attachment.URL
		fileName = &draft.Attachment.Name
		fileSize = &draft.Attachment.Size
		fileType = &draft.Attachment.MimeType
	}

	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Insert("messages").
		Columns("room_key", "sender_id", "sender_name", "recipient_id",
			"body", "kind", "file_url", "file_name", "file_size", "file_type", "sent_at").
		Values(roomKey, sender.ID, sender.Name, nullableInt(recipientID),
			draft.Body, kind, fileURL, fileName, fileSize, fileType, squirrel.Expr("NOW()")).
		Suffix("RETURNING id, sent_at")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return models.Message{}, err
	}

	var messageID int
	var sentAt time.Time
	err = db.Pool.QueryRow(ctx, sqlStr, args...).Scan(&messageID, &sentAt)
	if err != nil {
		log.Printf("Error saving message: %v", err)
		return models.Message{}, err
	}

	msg := models.Message{
		ID:          strconv.Itoa(messageID),
		RoomKey:     roomKey,
		SenderID:    sender.ID,
		SenderName:  sender.Name,
		RecipientID: recipientID,
		Body:        draft.Body,
		Kind:        kind,
		Attachment:  draft.Attachment,
		Timestamp:   sentAt,
	}

	log.Printf("Message saved: room %s, sender %d (%s), message ID %d", roomKey, sender.ID, sender.Name, messageID)
	return msg, nil
}

func (ms *messageService) GetMessage(ctx context.Context, roomKey, messageID string) (models.Message, error) {
	id, err := strconv.Atoi(messageID)
	if err != nil {
		return models.Message{}, models.ErrMessageNotFound
	}

	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select(messageColumns...).
		From("messages").
		Where(squirrel.Eq{"id": id})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return models.Message{}, err
	}

	row := db.Pool.QueryRow(ctx, sqlStr, args...)
	msg, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Message{}, models.ErrMessageNotFound
		}
		log.Printf("Error getting message %s: %v", messageID, err)
		return models.Message{}, err
	}

	// A message never moves between rooms; a mismatched key is a bad request.
	if msg.RoomKey != roomKey {
		return models.Message{}, models.ErrRoomMismatch
	}
	return msg, nil
}

func (ms *messageService) EditMessage(ctx context.Context, roomKey, messageID string, actingUserID int, patch models.Patch) (models.Message, error) {
	if patch.Body == nil && patch.Attachment == nil {
		return models.Message{}, models.ErrEmptyPatch
	}

	msg, err := ms.GetMessage(ctx, roomKey, messageID)
	if err != nil {
		return models.Message{}, err
	}

	if !ms.policy.CanEdit(msg, actingUserID) {
		if msg.SenderID != actingUserID {
			log.Printf("User %d attempted to edit message %s owned by %d", actingUserID, messageID, msg.SenderID)
			return models.Message{}, models.ErrNotSender
		}
		log.Printf("Edit window expired for message %s", messageID)
		return models.Message{}, models.ErrWindowExpired
	}

	update := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Update("messages").
		Set("edited", true).
		Where(squirrel.Eq{"id": msg.ID})

	if patch.Body != nil {
		update = update.Set("body", *patch.Body)
		msg.Body = *patch.Body
	}
	if patch.Attachment != nil {
		update = update.
			Set("file_url", patch.Attachment.URL).
			Set("file_name", patch.Attachment.Name).
			Set("file_size", patch.Attachment.Size).
			Set("file_type", patch.Attachment.MimeType).
			Set("kind", KindForAttachment(patch.Attachment))
		msg.Attachment = patch.Attachment
		msg.Kind = KindForAttachment(patch.Attachment)
	}

	sqlStr, args, err := update.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return models.Message{}, err
	}

	_, err = db.Pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error editing message %s: %v", messageID, err)
		return models.Message{}, err
	}

	msg.Edited = true
	log.Printf("Message %s edited by user %d", messageID, actingUserID)
	return msg, nil
}

func (ms *messageService) DeleteMessage(ctx context.Context, roomKey, messageID string, actingUserID int, scope string) error {
	msg, err := ms.GetMessage(ctx, roomKey, messageID)
	if err != nil {
		return err
	}

	switch scope {
	case models.DeleteScopeSelf:
		query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
			Insert("message_hides").
			Columns("message_id", "user_id").
			Values(msg.ID, actingUserID).
			Suffix("ON CONFLICT DO NOTHING")

		sqlStr, args, err := query.ToSql()
		if err != nil {
			log.Printf("Failed to build SQL query: %v", err)
			return err
		}
		if _, err := db.Pool.Exec(ctx, sqlStr, args...); err != nil {
			log.Printf("Error hiding message %s for user %d: %v", messageID, actingUserID, err)
			return err
		}
		log.Printf("Message %s hidden for user %d", messageID, actingUserID)
		return nil

	case models.DeleteScopeEveryone:
		if !ms.policy.CanDeleteForEveryone(msg, actingUserID) {
			if msg.SenderID != actingUserID {
				log.Printf("User %d attempted to delete message %s owned by %d", actingUserID, messageID, msg.SenderID)
				return models.ErrNotSender
			}
			log.Printf("Delete window expired for message %s", messageID)
			return models.ErrWindowExpired
		}

		tomb := policy.Tombstone(msg)
		query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
			Update("messages").
			Set("body", tomb.Body).
			Set("kind", tomb.Kind).
			Set("file_url", nil).
			Set("file_name", nil).
			Set("file_size", nil).
			Set("file_type", nil).
			Set("deleted", true).
			Where(squirrel.Eq{"id": msg.ID})

		sqlStr, args, err := query.ToSql()
		if err != nil {
			log.Printf("Failed to build SQL query: %v", err)
			return err
		}
		if _, err := db.Pool.Exec(ctx, sqlStr, args...); err != nil {
			log.Printf("Error deleting message %s: %v", messageID, err)
			return err
		}
		log.Printf("Message %s deleted for everyone by user %d", messageID, actingUserID)
		return nil

	default:
		return errors.New("unknown delete scope: " + scope)
	}
}

func (ms *messageService) Conversations(ctx context.Context, userID int) ([]models.Conversation, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select(messageColumns...).
		From("messages").
		Where("room_key LIKE 'dm-%'").
		Where(squirrel.Or{
			squirrel.Eq{"sender_id": userID},
			squirrel.Eq{"recipient_id": userID},
		}).
		OrderBy("sent_at DESC")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	rows, err := db.Pool.Query(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error getting conversations for user %d: %v", userID, err)
		return nil, err
	}
	defer rows.Close()

	seen := make(map[int]bool)
	var conversations []models.Conversation
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			log.Printf("Error scanning conversation row: %v", err)
			return nil, err
		}

		peerID, err := rooms.PairPeer(msg.RoomKey, userID)
		if err != nil {
			continue
		}
		if seen[peerID] {
			continue
		}
		seen[peerID] = true

		conv := models.Conversation{
			UserID:          peerID,
			LastMessage:     msg.Body,
			LastMessageTime: msg.Timestamp,
		}
		if msg.SenderID == peerID {
			conv.UserName = msg.SenderName
		} else if peer, err := ms.UserService.GetUserById(ctx, peerID); err == nil {
			conv.UserName = peer.Username
		}

		unread, err := ms.UnreadCount(ctx, msg.RoomKey, userID)
		if err != nil {
			log.Printf("Error getting unread count for room %s: %v", msg.RoomKey, err)
		} else {
			conv.UnreadCount = unread
		}

		conversations = append(conversations, conv)
	}
	if rows.Err() != nil {
		log.Printf("Error after iterating rows: %v", rows.Err())
		return nil, rows.Err()
	}

	log.Printf("Found %d conversations for user %d", len(conversations), userID)
	return conversations, nil
}

func (ms *messageService) UnreadCount(ctx context.Context, roomKey string, userID int) (int, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("COUNT(*)").
		From("messages").
		Where(squirrel.And{
			squirrel.Eq{"room_key": roomKey},
			squirrel.NotEq{"sender_id": userID},
			squirrel.Eq{"read_at": nil},
		})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return 0, err
	}

	var count int
	err = db.Pool.QueryRow(ctx, sqlStr, args...).Scan(&count)
	if err != nil {
		log.Printf("Error getting unread count for room %s and user %d: %v", roomKey, userID, err)
		return 0, err
	}
	return count, nil
}

func (ms *messageService) markRead(ctx context.Context, roomKey string, viewerID int) error {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Update("messages").
		Set("read_at", squirrel.Expr("NOW()")).
		Where(squirrel.And{
			squirrel.Eq{"room_key": roomKey},
			squirrel.Eq{"recipient_id": viewerID},
			squirrel.Eq{"read_at": nil},
		})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return err
	}

	_, err = db.Pool.Exec(ctx, sqlStr, args...)
	return err
}

// KindForAttachment picks the message kind from the attachment media type.
func KindForAttachment(att *models.Attachment) string {
	if att != nil && strings.HasPrefix(att.MimeType, "image/") {
		return models.KindImage
	}
	return models.KindFile
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanMessage normalizes a database row into the one canonical Message
// shape. Field-name ambiguity stops here; nothing above this layer sees
// nullable columns.
func scanMessage(row rowScanner) (models.Message, error) {
	var (
		msg         models.Message
		id          int
		recipientID *int
		fileURL     *string
		fileName    *string
		fileSize    *int64
		fileType    *string
		readAt      *time.Time
	)

	err := row.Scan(&id, &msg.RoomKey, &msg.SenderID, &msg.SenderName, &recipientID,
		&msg.Body, &msg.Kind, &fileURL, &fileName, &fileSize, &fileType,
		&msg.Edited, &msg.Deleted, &msg.Timestamp, &readAt)
	if err != nil {
		return models.Message{}, err
	}

	msg.ID = strconv.Itoa(id)
	if recipientID != nil {
		msg.RecipientID = *recipientID
	}
	if fileURL != nil {
		msg.Attachment = &models.Attachment{
			URL:      *fileURL,
			MimeType: deref(fileType),
			Name:     deref(fileName),
		}
		if fileSize != nil {
			msg.Attachment.Size = *fileSize
		}
	}
	msg.ReadAt = readAt
	return msg, nil
}

func prefixed(table string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = table + "." + c
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullableInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}
