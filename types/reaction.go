package types

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/voxa-chat/voxa/id"
	"github.com/voxa-chat/voxa/validator"
)

type MessageReaction struct {
	ID        string    `json:"id" db:"id"`
	MessageID string    `json:"messageID" db:"message_id"`
	UserID    string    `json:"userID" db:"user_id"`
	Reaction  string    `json:"reaction" db:"reaction"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// ReactToMessage upserts the logged-in user's reaction on a message.
// A user holds at most one reaction per message; reacting again
// overwrites the previous one.
type ReactToMessage struct {
	MessageID string
	Reaction  string

	loggedInUserID string
}

func (in *ReactToMessage) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in ReactToMessage) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *ReactToMessage) Validate() error {
	v := validator.New()

	in.Reaction = strings.TrimSpace(in.Reaction)

	if in.MessageID == "" {
		v.AddError("MessageID", "Message ID is required")
	}
	if !id.Valid(in.MessageID) {
		v.AddError("MessageID", "Message ID is invalid")
	}
	if in.Reaction == "" {
		v.AddError("Reaction", "Reaction is required")
	}
	if utf8.RuneCountInString(in.Reaction) > 32 {
		v.AddError("Reaction", "Reaction must be at most 32 characters")
	}

	return v.AsError()
}
