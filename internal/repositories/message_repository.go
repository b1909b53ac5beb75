package repositories

import (
	"database/sql"

	"kakachat/internal/models"
)

type MessageRepository interface {
	Create(msg *models.Message) error
	ListByConversation(conversationID int64) ([]*models.Message, error)
}

type messageRepository struct {
	DB *sql.DB
}

func NewMessageRepository(db *sql.DB) MessageRepository {
	return &messageRepository{DB: db}
}

func (r *messageRepository) Create(msg *models.Message) error {
	const q = `
		INSERT INTO messages (conversation_id, sender_kind, sender_id, message_type, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	var senderID sql.NullInt64
	if msg.SenderID != nil {
		senderID = sql.NullInt64{Int64: *msg.SenderID, Valid: true}
	}
	return r.DB.QueryRow(q,
		msg.ConversationID,
		msg.SenderKind,
		senderID,
		msg.MessageType,
		msg.Content,
	).Scan(&msg.ID, &msg.CreatedAt)
}

func (r *messageRepository) ListByConversation(conversationID int64) ([]*models.Message, error) {
	const q = `
		SELECT id, conversation_id, sender_kind, sender_id, message_type, content, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.DB.Query(q, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m := &models.Message{}
		var senderID sql.NullInt64
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderKind, &senderID, &m.MessageType, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		if senderID.Valid {
			m.SenderID = &senderID.Int64
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
