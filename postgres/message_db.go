package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/nicolasparada/go-db"
	"github.com/nicolasparada/go-errs"
	"github.com/voxa-chat/voxa/id"
	"github.com/voxa-chat/voxa/types"
)

// CreateMessage appends to the conversation's log. The insert, the
// participant check and the conversation updated_at bump commit
// together.
func (pg *Postgres) CreateMessage(ctx context.Context, in types.CreateMessage) (types.Message, error) {
	var out types.Message
	return out, pg.db.RunTx(ctx, func(ctx context.Context) error {
		isParticipant, err := pg.IsParticipant(ctx, in.ConversationID, in.LoggedInUserID())
		if err != nil {
			return err
		}

		if !isParticipant {
			return errs.PermissionDeniedError("only participants can send messages")
		}

		msg, err := pg.insertMessage(ctx, in)
		if err != nil {
			return err
		}

		if err := pg.touchConversation(ctx, in.ConversationID); err != nil {
			return err
		}

		out = msg
		return nil
	})
}

func (pg *Postgres) insertMessage(ctx context.Context, in types.CreateMessage) (types.Message, error) {
	var out types.Message

	const q = `
		INSERT INTO messages (id, conversation_id, user_id, content, attachments)
		VALUES (@message_id, @conversation_id, @user_id, @content, @attachments)
		RETURNING *
	`

	rows, err := pg.db.Query(ctx, q, pgx.StrictNamedArgs{
		"message_id":      id.Generate(),
		"conversation_id": in.ConversationID,
		"user_id":         in.LoggedInUserID(),
		"content":         in.Content,
		"attachments":     in.AttachmentPaths(),
	})
	if err != nil {
		return out, fmt.Errorf("sql insert message: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Message])
	if err != nil {
		return out, fmt.Errorf("sql collect inserted message: %w", err)
	}

	return out, nil
}

// Messages returns one descending page joined with sender, reactions
// and read statuses, and marks the fetched messages read for the
// viewer in the same transaction.
func (pg *Postgres) Messages(ctx context.Context, in types.ListMessages) (types.Page[types.Message], error) {
	var out types.Page[types.Message]
	return out, pg.db.RunTx(ctx, func(ctx context.Context) error {
		isParticipant, err := pg.IsParticipant(ctx, in.ConversationID, in.LoggedInUserID())
		if err != nil {
			return err
		}

		if !isParticipant {
			return errs.PermissionDeniedError("only participants can read messages")
		}

		page, err := pg.messages(ctx, in)
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(page.Items))
		for _, msg := range page.Items {
			ids = append(ids, msg.ID)
		}

		if err := pg.markMessagesAsRead(ctx, ids, in.LoggedInUserID()); err != nil {
			return err
		}

		out = page
		return nil
	})
}

const annotatedMessageSelect = `
	SELECT messages.*,
		` + userJSON + ` AS user,
		(
			SELECT COALESCE(json_agg(json_build_object(
				'id', r.id,
				'messageID', r.message_id,
				'userID', r.user_id,
				'reaction', r.reaction,
				'createdAt', r.created_at
			) ORDER BY r.created_at), '[]')
			FROM message_reactions AS r
			WHERE r.message_id = messages.id
		) AS reactions,
		(
			SELECT COALESCE(json_agg(json_build_object(
				'id', s.id,
				'messageID', s.message_id,
				'userID', s.user_id,
				'readAt', s.read_at
			) ORDER BY s.read_at), '[]')
			FROM message_read_statuses AS s
			WHERE s.message_id = messages.id
		) AS read_statuses
	FROM messages
	INNER JOIN users ON users.id = messages.user_id
`

func (pg *Postgres) messages(ctx context.Context, in types.ListMessages) (types.Page[types.Message], error) {
	var out types.Page[types.Message]

	const q = annotatedMessageSelect + `
		WHERE messages.conversation_id = @conversation_id
		ORDER BY messages.created_at DESC, messages.id DESC
		LIMIT @limit OFFSET @offset
	`

	rows, err := pg.db.Query(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": in.ConversationID,
		"limit":           in.Limit + 1,
		"offset":          in.Offset(),
	})
	if err != nil {
		return out, fmt.Errorf("sql select messages: %w", err)
	}

	out.Items, err = pgx.CollectRows(rows, pgx.RowToStructByNameLax[types.Message])
	if err != nil {
		return out, fmt.Errorf("sql collect messages: %w", err)
	}

	// one extra row fetched to learn whether older pages remain
	out.PageInfo = types.PageInfo{Page: in.Page, Limit: in.Limit}
	if len(out.Items) > in.Limit {
		out.Items = out.Items[:in.Limit]
		out.PageInfo.HasMore = true
	}

	return out, nil
}

// Message fetches a single message joined with sender, reactions and
// read statuses.
func (pg *Postgres) Message(ctx context.Context, messageID string) (types.Message, error) {
	var out types.Message

	const q = annotatedMessageSelect + `
		WHERE messages.id = @message_id
	`

	rows, err := pg.db.Query(ctx, q, pgx.StrictNamedArgs{
		"message_id": messageID,
	})
	if err != nil {
		return out, fmt.Errorf("sql select message: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Message])
	if db.IsNotFoundError(err) {
		return out, errs.NotFoundError("message not found")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect message: %w", err)
	}

	return out, nil
}

// markMessagesAsRead upserts read receipts for every listed message not
// authored by the viewer. Conflicting rows stay untouched so read_at
// never moves.
func (pg *Postgres) markMessagesAsRead(ctx context.Context, messageIDs []string, userID string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	const q = `
		INSERT INTO message_read_statuses (id, message_id, user_id)
		SELECT gen_random_uuid()::VARCHAR, messages.id, @user_id
		FROM messages
		WHERE messages.id = ANY(@message_ids::VARCHAR[])
			AND messages.user_id != @user_id
		ON CONFLICT (message_id, user_id) DO NOTHING
	`

	if _, err := pg.db.Exec(ctx, q, pgx.StrictNamedArgs{
		"message_ids": messageIDs,
		"user_id":     userID,
	}); err != nil {
		return fmt.Errorf("sql mark messages as read: %w", err)
	}

	return nil
}

// DeleteMessage soft-deletes; only the author may do it.
func (pg *Postgres) DeleteMessage(ctx context.Context, in types.DeleteMessage) (types.Message, error) {
	var out types.Message
	return out, pg.db.RunTx(ctx, func(ctx context.Context) error {
		authorID, err := pg.messageAuthor(ctx, in.MessageID)
		if err != nil {
			return err
		}

		if authorID != in.LoggedInUserID() {
			return errs.PermissionDeniedError("only the author can delete a message")
		}

		const q = `
			UPDATE messages
			SET is_deleted = true,
				updated_at = now()
			WHERE id = @message_id
			RETURNING *
		`

		rows, err := pg.db.Query(ctx, q, pgx.StrictNamedArgs{
			"message_id": in.MessageID,
		})
		if err != nil {
			return fmt.Errorf("sql soft delete message: %w", err)
		}

		out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Message])
		if err != nil {
			return fmt.Errorf("sql collect deleted message: %w", err)
		}

		return nil
	})
}

func (pg *Postgres) messageAuthor(ctx context.Context, messageID string) (string, error) {
	const q = `
		SELECT user_id
		FROM messages
		WHERE id = @message_id
	`

	var authorID string
	err := pg.db.QueryRow(ctx, q, pgx.StrictNamedArgs{
		"message_id": messageID,
	}).Scan(&authorID)
	if db.IsNotFoundError(err) {
		return "", errs.NotFoundError("message not found")
	}

	if err != nil {
		return "", fmt.Errorf("sql select message author: %w", err)
	}

	return authorID, nil
}

func (pg *Postgres) messageConversationID(ctx context.Context, messageID string) (string, error) {
	const q = `
		SELECT conversation_id
		FROM messages
		WHERE id = @message_id
	`

	var conversationID string
	err := pg.db.QueryRow(ctx, q, pgx.StrictNamedArgs{
		"message_id": messageID,
	}).Scan(&conversationID)
	if db.IsNotFoundError(err) {
		return "", errs.NotFoundError("message not found")
	}

	if err != nil {
		return "", fmt.Errorf("sql select message conversation: %w", err)
	}

	return conversationID, nil
}
