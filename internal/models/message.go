package models

import "time"

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageVideo MessageType = "video"
)

// SenderKind tags the author of a message: a real user or one of the two
// synthetic assistant identities. Assistant messages carry no user id.
type SenderKind string

const (
	SenderUser           SenderKind = "user"
	SenderAssistantText  SenderKind = "assistant_text"
	SenderAssistantImage SenderKind = "assistant_image"
)

type Message struct {
	ID             int64       `json:"id"`
	ConversationID int64       `json:"conversation_id"`
	SenderKind     SenderKind  `json:"sender_kind"`
	SenderID       *int64      `json:"sender_id,omitempty"` // nil для ассистента
	MessageType    MessageType `json:"message_type"`
	Content        string      `json:"content"`
	CreatedAt      time.Time   `json:"created_at"`
}

// SenderProfile is the public display info attached to listed messages.
type SenderProfile struct {
	ID       *int64 `json:"id,omitempty"`
	Name     string `json:"name"`
	Image    string `json:"image"`
	IsOnline bool   `json:"is_online"`
}

// EnrichedMessage is a message with its sender profile resolved.
type EnrichedMessage struct {
	Message
	Sender SenderProfile `json:"sender"`
}
