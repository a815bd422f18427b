package types

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/voxa-chat/voxa/id"
	"github.com/voxa-chat/voxa/validator"
)

type Message struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"conversationID" db:"conversation_id"`
	UserID         string    `json:"userID" db:"user_id"`
	Content        string    `json:"content" db:"content"`
	Attachments    []string  `json:"attachments" db:"attachments"`
	IsDeleted      bool      `json:"isDeleted" db:"is_deleted"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`

	User         *User               `json:"user,omitempty" db:"user,omitempty"`
	Reactions    []MessageReaction   `json:"reactions,omitempty" db:"reactions,omitempty"`
	ReadStatuses []MessageReadStatus `json:"readStatuses,omitempty" db:"read_statuses,omitempty"`
}

// Before reports whether m sorts before other in display order:
// created_at ascending with the id as tiebreak. IDs are time-ordered so
// the pair is a strict total order consistent with creation.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

type CreateMessage struct {
	ConversationID string
	Content        string
	Attachments    []Attachment

	loggedInUserID  string
	attachmentPaths []string
}

func (in *CreateMessage) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in CreateMessage) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *CreateMessage) SetAttachmentPaths(paths []string) {
	in.attachmentPaths = paths
}

func (in CreateMessage) AttachmentPaths() []string {
	return in.attachmentPaths
}

func (in *CreateMessage) Validate() error {
	v := validator.New()

	in.Content = strings.TrimSpace(in.Content)

	if in.ConversationID == "" {
		v.AddError("ConversationID", "Conversation ID is required")
	}
	if !id.Valid(in.ConversationID) {
		v.AddError("ConversationID", "Conversation ID is invalid")
	}
	if in.Content == "" && len(in.Attachments) == 0 {
		v.AddError("Content", "Content is required")
	}
	if utf8.RuneCountInString(in.Content) > 1000 {
		v.AddError("Content", "Content must be at most 1000 characters")
	}
	if len(in.Attachments) > 10 {
		v.AddError("Attachments", "At most 10 attachments per message")
	}

	return v.AsError()
}

// ListMessages fetches one descending page of a conversation's log.
// Page 1 holds the most recent Limit messages; higher pages walk
// backward in time.
type ListMessages struct {
	ConversationID string
	Page           int
	Limit          int

	loggedInUserID string
}

func (in *ListMessages) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in ListMessages) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in ListMessages) Offset() int {
	return (in.Page - 1) * in.Limit
}

func (in *ListMessages) Validate() error {
	v := validator.New()

	if in.ConversationID == "" {
		v.AddError("ConversationID", "Conversation ID is required")
	}
	if !id.Valid(in.ConversationID) {
		v.AddError("ConversationID", "Conversation ID is invalid")
	}
	if in.Page < 1 {
		in.Page = 1
	}
	if in.Limit <= 0 {
		in.Limit = 20
	}
	if in.Limit > 100 {
		v.AddError("Limit", "Limit must be at most 100")
	}

	return v.AsError()
}

type DeleteMessage struct {
	MessageID string

	loggedInUserID string
}

func (in *DeleteMessage) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in DeleteMessage) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *DeleteMessage) Validate() error {
	v := validator.New()

	if in.MessageID == "" {
		v.AddError("MessageID", "Message ID is required")
	}
	if !id.Valid(in.MessageID) {
		v.AddError("MessageID", "Message ID is invalid")
	}

	return v.AsError()
}
