package types

import (
	"time"

	"github.com/voxa-chat/voxa/id"
	"github.com/voxa-chat/voxa/validator"
)

type MessageReadStatus struct {
	ID        string    `json:"id" db:"id"`
	MessageID string    `json:"messageID" db:"message_id"`
	UserID    string    `json:"userID" db:"user_id"`
	ReadAt    time.Time `json:"readAt" db:"read_at"`
}

// MarkMessageAsRead is idempotent: re-marking neither duplicates the
// row nor moves read_at backward. Marking your own message is a no-op.
type MarkMessageAsRead struct {
	MessageID string

	loggedInUserID string
}

func (in *MarkMessageAsRead) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in MarkMessageAsRead) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *MarkMessageAsRead) Validate() error {
	v := validator.New()

	if in.MessageID == "" {
		v.AddError("MessageID", "Message ID is required")
	}
	if !id.Valid(in.MessageID) {
		v.AddError("MessageID", "Message ID is invalid")
	}

	return v.AsError()
}
