package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/nicolasparada/go-errs"
	"github.com/voxa-chat/voxa/id"
	"github.com/voxa-chat/voxa/types"
)

// MarkMessageAsRead upserts a single read receipt. Re-marking keeps the
// original read_at. Marking your own message is a no-op, not an error.
func (pg *Postgres) MarkMessageAsRead(ctx context.Context, in types.MarkMessageAsRead) error {
	return pg.db.RunTx(ctx, func(ctx context.Context) error {
		authorID, err := pg.messageAuthor(ctx, in.MessageID)
		if err != nil {
			return err
		}

		if authorID == in.LoggedInUserID() {
			return nil
		}

		conversationID, err := pg.messageConversationID(ctx, in.MessageID)
		if err != nil {
			return err
		}

		isParticipant, err := pg.IsParticipant(ctx, conversationID, in.LoggedInUserID())
		if err != nil {
			return err
		}

		if !isParticipant {
			return errs.PermissionDeniedError("only participants can mark messages as read")
		}

		const q = `
			INSERT INTO message_read_statuses (id, message_id, user_id)
			VALUES (@read_status_id, @message_id, @user_id)
			ON CONFLICT (message_id, user_id) DO NOTHING
		`

		if _, err := pg.db.Exec(ctx, q, pgx.StrictNamedArgs{
			"read_status_id": id.Generate(),
			"message_id":     in.MessageID,
			"user_id":        in.LoggedInUserID(),
		}); err != nil {
			return fmt.Errorf("sql upsert read status: %w", err)
		}

		return nil
	})
}

// ReactToMessage upserts the user's single reaction on the message;
// reacting again replaces the stored value instead of stacking.
func (pg *Postgres) ReactToMessage(ctx context.Context, in types.ReactToMessage) (types.MessageReaction, error) {
	var out types.MessageReaction
	return out, pg.db.RunTx(ctx, func(ctx context.Context) error {
		conversationID, err := pg.messageConversationID(ctx, in.MessageID)
		if err != nil {
			return err
		}

		isParticipant, err := pg.IsParticipant(ctx, conversationID, in.LoggedInUserID())
		if err != nil {
			return err
		}

		if !isParticipant {
			return errs.PermissionDeniedError("only participants can react to messages")
		}

		const q = `
			INSERT INTO message_reactions (id, message_id, user_id, reaction)
			VALUES (@reaction_id, @message_id, @user_id, @reaction)
			ON CONFLICT (message_id, user_id) DO UPDATE
			SET reaction = EXCLUDED.reaction
			RETURNING *
		`

		rows, err := pg.db.Query(ctx, q, pgx.StrictNamedArgs{
			"reaction_id": id.Generate(),
			"message_id":  in.MessageID,
			"user_id":     in.LoggedInUserID(),
			"reaction":    in.Reaction,
		})
		if err != nil {
			return fmt.Errorf("sql upsert reaction: %w", err)
		}

		out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.MessageReaction])
		if err != nil {
			return fmt.Errorf("sql collect upserted reaction: %w", err)
		}

		return nil
	})
}
