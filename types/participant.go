package types

import "time"

type Participant struct {
	ConversationID string    `json:"conversationID" db:"conversation_id"`
	UserID         string    `json:"userID" db:"user_id"`
	IsAdmin        bool      `json:"isAdmin" db:"is_admin"`
	JoinedAt       time.Time `json:"joinedAt" db:"joined_at"`

	User *User `json:"user,omitempty" db:"user,omitempty"`
}
