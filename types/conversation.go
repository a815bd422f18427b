package types

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/voxa-chat/voxa/id"
	"github.com/voxa-chat/voxa/validator"
)

type Conversation struct {
	ID        string    `json:"id" db:"id"`
	Name      *string   `json:"name" db:"name"`
	IsGroup   bool      `json:"isGroup" db:"is_group"`
	CreatedBy string    `json:"createdBy" db:"created_by"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	LastMessage  *Message      `json:"lastMessage,omitempty" db:"last_message,omitempty"`
	Participants []Participant `json:"participants,omitempty" db:"participants,omitempty"`
}

type CreateDirectConversation struct {
	OtherUserID string

	loggedInUserID string
}

func (in *CreateDirectConversation) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in CreateDirectConversation) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *CreateDirectConversation) Validate() error {
	v := validator.New()

	if in.OtherUserID == "" {
		v.AddError("OtherUserID", "Other user ID is required")
	}
	if in.OtherUserID == in.loggedInUserID {
		v.AddError("OtherUserID", "Cannot start a conversation with yourself")
	}

	return v.AsError()
}

type CreateGroupConversation struct {
	Name           string
	ParticipantIDs []string

	loggedInUserID string
}

func (in *CreateGroupConversation) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in CreateGroupConversation) LoggedInUserID() string {
	return in.loggedInUserID
}

// Validate also normalizes ParticipantIDs: duplicates collapse and the
// creator is always included.
func (in *CreateGroupConversation) Validate() error {
	v := validator.New()

	in.Name = strings.TrimSpace(in.Name)

	if in.Name == "" {
		v.AddError("Name", "Group name is required")
	}
	if utf8.RuneCountInString(in.Name) > 100 {
		v.AddError("Name", "Group name must be at most 100 characters")
	}

	ids := append([]string{in.loggedInUserID}, in.ParticipantIDs...)
	slices.Sort(ids)
	in.ParticipantIDs = slices.Compact(ids)

	for _, participantID := range in.ParticipantIDs {
		if participantID == "" {
			v.AddError("ParticipantIDs", "Participant IDs cannot be empty")
			break
		}
	}

	return v.AsError()
}

type RetrieveConversation struct {
	ConversationID string

	loggedInUserID string
}

func (in *RetrieveConversation) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in RetrieveConversation) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *RetrieveConversation) Validate() error {
	v := validator.New()

	if in.ConversationID == "" {
		v.AddError("ConversationID", "Conversation ID is required")
	}
	if !id.Valid(in.ConversationID) {
		v.AddError("ConversationID", "Conversation ID is invalid")
	}

	return v.AsError()
}

type ListConversations struct {
	loggedInUserID string
}

func (in *ListConversations) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in ListConversations) LoggedInUserID() string {
	return in.loggedInUserID
}

type AddParticipant struct {
	ConversationID string
	UserID         string

	loggedInUserID string
}

func (in *AddParticipant) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in AddParticipant) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *AddParticipant) Validate() error {
	v := validator.New()

	if in.ConversationID == "" {
		v.AddError("ConversationID", "Conversation ID is required")
	}
	if !id.Valid(in.ConversationID) {
		v.AddError("ConversationID", "Conversation ID is invalid")
	}
	if in.UserID == "" {
		v.AddError("UserID", "User ID is required")
	}

	return v.AsError()
}

type RemoveParticipant struct {
	ConversationID string
	UserID         string

	loggedInUserID string
}

func (in *RemoveParticipant) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in RemoveParticipant) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in RemoveParticipant) IsSelfRemoval() bool {
	return in.UserID == in.loggedInUserID
}

func (in *RemoveParticipant) Validate() error {
	v := validator.New()

	if in.ConversationID == "" {
		v.AddError("ConversationID", "Conversation ID is required")
	}
	if !id.Valid(in.ConversationID) {
		v.AddError("ConversationID", "Conversation ID is invalid")
	}
	if in.UserID == "" {
		v.AddError("UserID", "User ID is required")
	}

	return v.AsError()
}
