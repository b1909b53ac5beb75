package models

import "time"

type Conversation struct {
	ID           int64   `json:"id"`
	IsGroup      bool    `json:"is_group"`
	GroupName    *string `json:"group_name,omitempty"`
	GroupImage   *string `json:"group_image,omitempty"`
	Admin        *int64  `json:"admin,omitempty"`
	Participants []int64 `json:"participants"`

	// последнее сообщение для списка диалогов, может быть nil
	LastMessage *Message `json:"last_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// HasParticipant reports whether the user belongs to the conversation.
func (c *Conversation) HasParticipant(userID int64) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}
