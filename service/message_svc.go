package service

import (
	"context"
	"path"

	"github.com/nicolasparada/go-errs"

	"github.com/voxa-chat/voxa/auth"
	"github.com/voxa-chat/voxa/id"
	"github.com/voxa-chat/voxa/types"
)

// CreateMessage uploads the attachments first, then inserts the row. If
// the insert fails the uploaded objects are removed again so the bucket
// holds no orphans.
func (svc *Service) CreateMessage(ctx context.Context, in types.CreateMessage) (types.Message, error) {
	var out types.Message

	user, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(user.ID)

	if err := in.Validate(); err != nil {
		return out, err
	}

	urls := make([]string, len(in.Attachments))
	for i := range in.Attachments {
		storedPath := in.ConversationID + "/" + id.Generate() + path.Ext(in.Attachments[i].Path)
		in.Attachments[i].Path = storedPath
		urls[i] = svc.Minio.FileURL(svc.mediaBucket, storedPath)
	}
	in.SetAttachmentPaths(urls)

	cleanup, err := svc.Minio.UploadMany(ctx, svc.mediaBucket, in.Attachments)
	if err != nil {
		return out, err
	}

	out, err = svc.Postgres.CreateMessage(ctx, in)
	if err != nil {
		go cleanup()
		return out, err
	}

	out.User = &user

	svc.broadcastMessageEvent(types.OperationInsert, out)
	svc.broadcastConversationEvent(types.OperationUpdate, types.Conversation{ID: in.ConversationID})

	return out, nil
}

// Messages returns one page in descending display order and marks the
// returned messages as read for the caller.
func (svc *Service) Messages(ctx context.Context, in types.ListMessages) (types.Page[types.Message], error) {
	var out types.Page[types.Message]

	user, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(user.ID)

	if err := in.Validate(); err != nil {
		return out, err
	}

	return svc.Postgres.Messages(ctx, in)
}

// DeleteMessage soft-deletes the caller's own message. Subscribers get
// an update event with the tombstoned row, not a hard delete.
func (svc *Service) DeleteMessage(ctx context.Context, in types.DeleteMessage) (types.Message, error) {
	var out types.Message

	user, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(user.ID)

	if err := in.Validate(); err != nil {
		return out, err
	}

	out, err := svc.Postgres.DeleteMessage(ctx, in)
	if err != nil {
		return out, err
	}

	svc.broadcastMessageEvent(types.OperationUpdate, out)

	return out, nil
}
