package repositories

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"kakachat/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

type ConversationRepository interface {
	Create(conv *models.Conversation) error
	GetByID(id int64) (*models.Conversation, error)
	ListForUser(userID int64) ([]*models.Conversation, error)
	IsParticipant(conversationID, userID int64) (bool, error)
	AddParticipant(conversationID, userID int64) error
	RemoveParticipant(conversationID, userID int64) error
}

type conversationRepository struct {
	DB *sql.DB
}

func NewConversationRepository(db *sql.DB) ConversationRepository {
	return &conversationRepository{DB: db}
}

// Create inserts the conversation record and its participant rows in one
// transaction so a failed membership insert never leaves a half-built chat.
func (r *conversationRepository) Create(conv *models.Conversation) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const q = `
		INSERT INTO conversations (is_group, group_name, group_image, admin_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	if err := tx.QueryRow(q, conv.IsGroup, conv.GroupName, conv.GroupImage, conv.Admin).
		Scan(&conv.ID, &conv.CreatedAt); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, userID := range conv.Participants {
		if _, err := stmt.Exec(conv.ID, userID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *conversationRepository) GetByID(id int64) (*models.Conversation, error) {
	const q = `
		SELECT c.id, c.is_group, c.group_name, c.group_image, c.admin_id, c.created_at,
		       COALESCE(array_agg(cp.user_id ORDER BY cp.user_id), '{}') AS participants
		FROM conversations c
		JOIN conversation_participants cp ON cp.conversation_id = c.id
		WHERE c.id = $1
		GROUP BY c.id, c.is_group, c.group_name, c.group_image, c.admin_id, c.created_at
	`
	conv := &models.Conversation{}
	var participants pq.Int64Array
	err := r.DB.QueryRow(q, id).Scan(
		&conv.ID, &conv.IsGroup, &conv.GroupName, &conv.GroupImage, &conv.Admin, &conv.CreatedAt, &participants,
	)
	if err == sql.ErrNoRows {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	conv.Participants = participants
	return conv, nil
}

func (r *conversationRepository) ListForUser(userID int64) ([]*models.Conversation, error) {
	const q = `
		SELECT c.id, c.is_group, c.group_name, c.group_image, c.admin_id, c.created_at,
		       COALESCE(array_agg(cp.user_id ORDER BY cp.user_id), '{}') AS participants
		FROM conversations c
		JOIN conversation_participants cp ON cp.conversation_id = c.id
		WHERE c.id IN (SELECT conversation_id FROM conversation_participants WHERE user_id = $1)
		GROUP BY c.id, c.is_group, c.group_name, c.group_image, c.admin_id, c.created_at
		ORDER BY c.id
	`
	rows, err := r.DB.Query(q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []*models.Conversation
	for rows.Next() {
		conv := &models.Conversation{}
		var participants pq.Int64Array
		if err := rows.Scan(&conv.ID, &conv.IsGroup, &conv.GroupName, &conv.GroupImage, &conv.Admin, &conv.CreatedAt, &participants); err != nil {
			return nil, err
		}
		conv.Participants = participants
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// подтягиваем последнее сообщение для каждого диалога
	for _, conv := range convs {
		last, err := r.lastMessage(conv.ID)
		if err != nil {
			return nil, err
		}
		conv.LastMessage = last
	}
	return convs, nil
}

func (r *conversationRepository) lastMessage(conversationID int64) (*models.Message, error) {
	const q = `
		SELECT id, conversation_id, sender_kind, sender_id, message_type, content, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	m := &models.Message{}
	var senderID sql.NullInt64
	err := r.DB.QueryRow(q, conversationID).Scan(
		&m.ID, &m.ConversationID, &m.SenderKind, &senderID, &m.MessageType, &m.Content, &m.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if senderID.Valid {
		m.SenderID = &senderID.Int64
	}
	return m, nil
}

func (r *conversationRepository) IsParticipant(conversationID, userID int64) (bool, error) {
	const q = `
		SELECT 1 FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2 LIMIT 1
	`
	var dummy int
	err := r.DB.QueryRow(q, conversationID, userID).Scan(&dummy)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *conversationRepository) AddParticipant(conversationID, userID int64) error {
	const q = `
		INSERT INTO conversation_participants (conversation_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	_, err := r.DB.Exec(q, conversationID, userID)
	return err
}

func (r *conversationRepository) RemoveParticipant(conversationID, userID int64) error {
	_, err := r.DB.Exec(
		`DELETE FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID,
	)
	return err
}
