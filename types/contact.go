package types

import (
	"time"

	"github.com/voxa-chat/voxa/id"
	"github.com/voxa-chat/voxa/validator"
)

type Contact struct {
	ID        string        `json:"id" db:"id"`
	UserID    string        `json:"userID" db:"user_id"`
	ContactID string        `json:"contactID" db:"contact_id"`
	Status    ContactStatus `json:"status" db:"status"`
	CreatedAt time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time     `json:"updatedAt" db:"updated_at"`

	// User is the row owner, ContactUser the other end. Listings fill
	// whichever side the viewer is not.
	User        *User `json:"user,omitempty" db:"user,omitempty"`
	ContactUser *User `json:"contactUser,omitempty" db:"contact_user,omitempty"`
}

type ContactStatus string

const (
	ContactStatusPending  ContactStatus = "pending"
	ContactStatusAccepted ContactStatus = "accepted"
	ContactStatusBlocked  ContactStatus = "blocked"
)

func (s ContactStatus) Valid() bool {
	switch s {
	case ContactStatusPending, ContactStatusAccepted, ContactStatusBlocked:
		return true
	}
	return false
}

type CreateContactRequest struct {
	ContactID string

	loggedInUserID string
}

func (in *CreateContactRequest) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in CreateContactRequest) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *CreateContactRequest) Validate() error {
	v := validator.New()

	if in.ContactID == "" {
		v.AddError("ContactID", "Contact ID is required")
	}
	if in.ContactID == in.loggedInUserID {
		v.AddError("ContactID", "Cannot add yourself as a contact")
	}

	return v.AsError()
}

type AcceptContactRequest struct {
	RequestID string

	loggedInUserID string
}

func (in *AcceptContactRequest) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in AcceptContactRequest) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *AcceptContactRequest) Validate() error {
	v := validator.New()

	if in.RequestID == "" {
		v.AddError("RequestID", "Request ID is required")
	}
	if !id.Valid(in.RequestID) {
		v.AddError("RequestID", "Request ID is invalid")
	}

	return v.AsError()
}

type RejectContactRequest struct {
	RequestID string

	loggedInUserID string
}

func (in *RejectContactRequest) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in RejectContactRequest) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *RejectContactRequest) Validate() error {
	v := validator.New()

	if in.RequestID == "" {
		v.AddError("RequestID", "Request ID is required")
	}
	if !id.Valid(in.RequestID) {
		v.AddError("RequestID", "Request ID is invalid")
	}

	return v.AsError()
}

// BlockContact is an unconditional upsert to blocked. It only touches
// the (viewer, target) direction.
type BlockContact struct {
	ContactID string

	loggedInUserID string
}

func (in *BlockContact) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in BlockContact) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *BlockContact) Validate() error {
	v := validator.New()

	if in.ContactID == "" {
		v.AddError("ContactID", "Contact ID is required")
	}
	if in.ContactID == in.loggedInUserID {
		v.AddError("ContactID", "Cannot block yourself")
	}

	return v.AsError()
}

type ListContacts struct {
	Status ContactStatus

	loggedInUserID string
}

func (in *ListContacts) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in ListContacts) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *ListContacts) Validate() error {
	v := validator.New()

	if in.Status == "" {
		in.Status = ContactStatusAccepted
	}
	if !in.Status.Valid() {
		v.AddError("Status", "Status is invalid")
	}

	return v.AsError()
}

type ListContactRequests struct {
	loggedInUserID string
}

func (in *ListContactRequests) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in ListContactRequests) LoggedInUserID() string {
	return in.loggedInUserID
}
