package service

import (
	"context"

	"github.com/nicolasparada/go-errs"

	"github.com/voxa-chat/voxa/auth"
	"github.com/voxa-chat/voxa/emoji"
	"github.com/voxa-chat/voxa/types"
)

// MarkMessageAsRead records the read receipt. Re-reading is a no-op and
// read_at never moves; marking your own message is a silent no-op too.
func (svc *Service) MarkMessageAsRead(ctx context.Context, in types.MarkMessageAsRead) error {
	user, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return errs.Unauthenticated
	}

	in.SetLoggedInUserID(user.ID)

	if err := in.Validate(); err != nil {
		return err
	}

	if err := svc.Postgres.MarkMessageAsRead(ctx, in); err != nil {
		return err
	}

	svc.broadcastAnnotatedMessage(in.MessageID)

	return nil
}

// ReactToMessage upserts the caller's reaction. One reaction per user
// per message; reacting again replaces the previous one.
func (svc *Service) ReactToMessage(ctx context.Context, in types.ReactToMessage) (types.MessageReaction, error) {
	var out types.MessageReaction

	user, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(user.ID)

	if err := in.Validate(); err != nil {
		return out, err
	}

	if !emoji.IsValid(in.Reaction) {
		return out, errs.InvalidArgumentError("invalid reaction emoji")
	}

	out, err := svc.Postgres.ReactToMessage(ctx, in)
	if err != nil {
		return out, err
	}

	svc.broadcastAnnotatedMessage(in.MessageID)

	return out, nil
}
