package service

import (
	"context"

	"github.com/nicolasparada/go-errs"

	"github.com/voxa-chat/voxa/auth"
	"github.com/voxa-chat/voxa/types"
)

// CreateDirectConversation is idempotent: if a direct conversation
// between the two users already exists it is returned instead of a new
// one being created. A block in either direction refuses the creation.
func (svc *Service) CreateDirectConversation(ctx context.Context, in types.CreateDirectConversation) (types.Conversation, error) {
	var out types.Conversation

	user, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(user.ID)

	if err := in.Validate(); err != nil {
		return out, err
	}

	blocked, err := svc.Postgres.HasBlock(ctx, user.ID, in.OtherUserID)
	if err != nil {
		return out, err
	}

	if blocked {
		return out, errs.PermissionDeniedError("cannot start a conversation with this user")
	}

	out, err = svc.Postgres.CreateDirectConversation(ctx, in)
	if err != nil {
		return out, err
	}

	svc.broadcastConversationEvent(types.OperationInsert, out)

	return out, nil
}

func (svc *Service) CreateGroupConversation(ctx context.Context, in types.CreateGroupConversation) (types.Conversation, error) {
	var out types.Conversation

	user, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(user.ID)

	if err := in.Validate(); err != nil {
		return out, err
	}

	out, err := svc.Postgres.CreateGroupConversation(ctx, in)
	if err != nil {
		return out, err
	}

	svc.broadcastConversationEvent(types.OperationInsert, out)

	return out, nil
}

// Conversations lists the logged-in user's conversations, most recently
// active first, each with its last message for preview.
func (svc *Service) Conversations(ctx context.Context, in types.ListConversations) ([]types.Conversation, error) {
	user, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return nil, errs.Unauthenticated
	}

	in.SetLoggedInUserID(user.ID)

	return svc.Postgres.Conversations(ctx, in)
}

func (svc *Service) Conversation(ctx context.Context, in types.RetrieveConversation) (types.Conversation, error) {
	var out types.Conversation

	user, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(user.ID)

	if err := in.Validate(); err != nil {
		return out, err
	}

	return svc.Postgres.Conversation(ctx, in)
}

func (svc *Service) AddParticipant(ctx context.Context, in types.AddParticipant) (types.Participant, error) {
	var out types.Participant

	user, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(user.ID)

	if err := in.Validate(); err != nil {
		return out, err
	}

	out, err := svc.Postgres.AddParticipant(ctx, in)
	if err != nil {
		return out, err
	}

	retrieve := types.RetrieveConversation{ConversationID: in.ConversationID}
	retrieve.SetLoggedInUserID(user.ID)
	if conversation, err := svc.Postgres.Conversation(ctx, retrieve); err == nil {
		svc.broadcastConversationEvent(types.OperationUpdate, conversation)
	}

	return out, nil
}

// RemoveParticipant removes a user from a group conversation. Anyone
// may remove themselves; removing others takes admin.
func (svc *Service) RemoveParticipant(ctx context.Context, in types.RemoveParticipant) error {
	user, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return errs.Unauthenticated
	}

	in.SetLoggedInUserID(user.ID)

	if err := in.Validate(); err != nil {
		return err
	}

	if err := svc.Postgres.RemoveParticipant(ctx, in); err != nil {
		return err
	}

	// remaining participants see an update; the removed user sees the
	// conversation leave their inbox. Both carry just the id; consumers
	// refetch what they still can see.
	svc.broadcastConversationEvent(types.OperationUpdate, types.Conversation{ID: in.ConversationID})
	svc.publishConversationEventTo(in.UserID, types.ConversationEvent{
		Op:           types.OperationDelete,
		Conversation: types.Conversation{ID: in.ConversationID},
	})

	return nil
}
