package service

import (
	"context"

	"github.com/nicolasparada/go-errs"

	"github.com/voxa-chat/voxa/auth"
	"github.com/voxa-chat/voxa/types"
)

// EnsureUser upserts the profile row for an authenticated identity.
// The authenticator calls this on every request so a first-time caller
// gets a profile without a separate signup step.
func (svc *Service) EnsureUser(ctx context.Context, in types.UpsertUser) (types.User, error) {
	var out types.User

	if err := in.Validate(); err != nil {
		return out, err
	}

	return svc.Postgres.UpsertUser(ctx, in)
}

func (svc *Service) User(ctx context.Context, in types.RetrieveUser) (types.User, error) {
	var out types.User

	if _, loggedIn := auth.UserFromContext(ctx); !loggedIn {
		return out, errs.Unauthenticated
	}

	if err := in.Validate(); err != nil {
		return out, err
	}

	return svc.Postgres.User(ctx, in)
}

// Users searches profiles by display name or email. The caller is
// excluded from the results.
func (svc *Service) Users(ctx context.Context, in types.ListUsers) ([]types.User, error) {
	user, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return nil, errs.Unauthenticated
	}

	in.SetLoggedInUserID(user.ID)

	if err := in.Validate(); err != nil {
		return nil, err
	}

	return svc.Postgres.Users(ctx, in)
}

func (svc *Service) UpdateUser(ctx context.Context, in types.UpdateUser) (types.User, error) {
	var out types.User

	user, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(user.ID)

	if err := in.Validate(); err != nil {
		return out, err
	}

	return svc.Postgres.UpdateUser(ctx, in)
}

// MarkUserConnected counts a live connection. The stored status flips
// to online only on the offline→online transition, so a second tab does
// not rewrite the row.
func (svc *Service) MarkUserConnected(ctx context.Context, userID string) error {
	first, err := svc.Presence.Connect(ctx, userID)
	if err != nil {
		return err
	}

	if !first {
		return nil
	}

	return svc.Postgres.SetUserPresence(ctx, userID, types.UserStatusOnline)
}

// MarkUserDisconnected is the counterpart: the row goes offline only
// when the last connection drops, and last_seen_at is stamped then.
func (svc *Service) MarkUserDisconnected(ctx context.Context, userID string) error {
	last, err := svc.Presence.Disconnect(ctx, userID)
	if err != nil {
		return err
	}

	if !last {
		return nil
	}

	return svc.Postgres.SetUserPresence(ctx, userID, types.UserStatusOffline)
}

// HeartbeatUser keeps the shared presence entry fresh while a
// connection stays open.
func (svc *Service) HeartbeatUser(ctx context.Context, userID string) error {
	return svc.Presence.Heartbeat(ctx, userID)
}
