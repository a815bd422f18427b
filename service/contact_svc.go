package service

import (
	"context"

	"github.com/nicolasparada/go-errs"

	"github.com/voxa-chat/voxa/auth"
	"github.com/voxa-chat/voxa/types"
)

// CreateContactRequest sends a pending request to another user, unless
// a block exists in either direction. A row of the caller's own in any
// status conflicts before the block gate gets a say, so blocking
// someone and then requesting them reads as "already related", not
// "forbidden".
func (svc *Service) CreateContactRequest(ctx context.Context, in types.CreateContactRequest) (types.Contact, error) {
	var out types.Contact

	user, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(user.ID)

	if err := in.Validate(); err != nil {
		return out, err
	}

	exists, err := svc.Postgres.HasContactRow(ctx, user.ID, in.ContactID)
	if err != nil {
		return out, err
	}

	if exists {
		return out, errs.ConflictError("contact already exists")
	}

	blocked, err := svc.Postgres.HasBlock(ctx, user.ID, in.ContactID)
	if err != nil {
		return out, err
	}

	if blocked {
		return out, errs.PermissionDeniedError("cannot send a contact request to this user")
	}

	return svc.Postgres.CreateContactRequest(ctx, in)
}

// AcceptContactRequest flips the inbound pending row to accepted and
// writes the reciprocal row so the relation reads accepted from both
// sides.
func (svc *Service) AcceptContactRequest(ctx context.Context, in types.AcceptContactRequest) (types.Contact, error) {
	var out types.Contact

	user, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(user.ID)

	if err := in.Validate(); err != nil {
		return out, err
	}

	return svc.Postgres.AcceptContactRequest(ctx, in)
}

func (svc *Service) RejectContactRequest(ctx context.Context, in types.RejectContactRequest) error {
	user, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return errs.Unauthenticated
	}

	in.SetLoggedInUserID(user.ID)

	if err := in.Validate(); err != nil {
		return err
	}

	return svc.Postgres.RejectContactRequest(ctx, in)
}

// BlockContact blocks unconditionally, whether or not a prior relation
// exists.
func (svc *Service) BlockContact(ctx context.Context, in types.BlockContact) (types.Contact, error) {
	var out types.Contact

	user, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(user.ID)

	if err := in.Validate(); err != nil {
		return out, err
	}

	return svc.Postgres.BlockContact(ctx, in)
}

func (svc *Service) Contacts(ctx context.Context, in types.ListContacts) ([]types.Contact, error) {
	user, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return nil, errs.Unauthenticated
	}

	in.SetLoggedInUserID(user.ID)

	if err := in.Validate(); err != nil {
		return nil, err
	}

	return svc.Postgres.Contacts(ctx, in)
}

// ContactRequests lists inbound pending requests.
func (svc *Service) ContactRequests(ctx context.Context, in types.ListContactRequests) ([]types.Contact, error) {
	user, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return nil, errs.Unauthenticated
	}

	in.SetLoggedInUserID(user.ID)

	return svc.Postgres.ContactRequests(ctx, in)
}
