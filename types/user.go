package types

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/voxa-chat/voxa/validator"
)

type User struct {
	ID          string     `json:"id" db:"id"`
	Email       string     `json:"email" db:"email"`
	DisplayName string     `json:"displayName" db:"display_name"`
	AvatarURL   *string    `json:"avatarURL" db:"avatar"`
	Status      UserStatus `json:"status" db:"status"`
	LastSeenAt  time.Time  `json:"lastSeenAt" db:"last_seen_at"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
}

type UserStatus string

const (
	UserStatusOnline  UserStatus = "online"
	UserStatusOffline UserStatus = "offline"
	UserStatusAway    UserStatus = "away"
	UserStatusBusy    UserStatus = "busy"
)

func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusOnline, UserStatusOffline, UserStatusAway, UserStatusBusy:
		return true
	}
	return false
}

type UpsertUser struct {
	UserID      string
	Email       string
	DisplayName string
}

func (in *UpsertUser) Validate() error {
	v := validator.New()

	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.DisplayName = strings.TrimSpace(in.DisplayName)

	if in.UserID == "" {
		v.AddError("UserID", "User ID is required")
	}
	if !ValidEmail(in.Email) {
		v.AddError("Email", "Email is invalid")
	}
	if in.DisplayName == "" {
		v.AddError("DisplayName", "Display name is required")
	}
	if utf8.RuneCountInString(in.DisplayName) > 80 {
		v.AddError("DisplayName", "Display name must be at most 80 characters")
	}

	return v.AsError()
}

type RetrieveUser struct {
	UserID string
}

func (in *RetrieveUser) Validate() error {
	v := validator.New()

	if in.UserID == "" {
		v.AddError("UserID", "User ID is required")
	}

	return v.AsError()
}

// ListUsers searches users by display name or email, excluding the
// logged-in user.
type ListUsers struct {
	Query string
	Limit int

	loggedInUserID string
}

func (in *ListUsers) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in ListUsers) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *ListUsers) Validate() error {
	v := validator.New()

	in.Query = strings.TrimSpace(in.Query)

	if in.Query == "" {
		v.AddError("Query", "Search query is required")
	}
	if in.Limit <= 0 || in.Limit > 50 {
		in.Limit = 20
	}

	return v.AsError()
}

type UpdateUser struct {
	DisplayName *string
	AvatarURL   *string
	Status      *UserStatus

	loggedInUserID string
}

func (in *UpdateUser) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in UpdateUser) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *UpdateUser) Validate() error {
	v := validator.New()

	if in.DisplayName != nil {
		*in.DisplayName = strings.TrimSpace(*in.DisplayName)
		if *in.DisplayName == "" {
			v.AddError("DisplayName", "Display name cannot be empty")
		}
		if utf8.RuneCountInString(*in.DisplayName) > 80 {
			v.AddError("DisplayName", "Display name must be at most 80 characters")
		}
	}
	if in.Status != nil && !in.Status.Valid() {
		v.AddError("Status", "Status is invalid")
	}
	if in.DisplayName == nil && in.AvatarURL == nil && in.Status == nil {
		v.AddError("UpdateUser", "Nothing to update")
	}

	return v.AsError()
}

var reEmail = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func ValidEmail(s string) bool {
	return reEmail.MatchString(s)
}
