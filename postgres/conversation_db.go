package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/nicolasparada/go-db"
	"github.com/nicolasparada/go-errs"
	"github.com/voxa-chat/voxa/id"
	"github.com/voxa-chat/voxa/types"
)

// JSON fragments for joined rows. Keys follow the Go types' json tags
// since nested columns decode through encoding/json.
const userJSON = `json_build_object(
	'id', users.id,
	'email', users.email,
	'displayName', users.display_name,
	'avatarURL', users.avatar,
	'status', users.status,
	'lastSeenAt', users.last_seen_at,
	'createdAt', users.created_at,
	'updatedAt', users.updated_at
)`

const messageJSON = `json_build_object(
	'id', messages.id,
	'conversationID', messages.conversation_id,
	'userID', messages.user_id,
	'content', messages.content,
	'attachments', messages.attachments,
	'isDeleted', messages.is_deleted,
	'createdAt', messages.created_at,
	'updatedAt', messages.updated_at
)`

func (pg *Postgres) DirectConversationBetween(ctx context.Context, userID, otherUserID string) (types.Conversation, error) {
	var out types.Conversation

	const q = `
		SELECT conversations.*
		FROM conversations
		INNER JOIN conversation_participants AS mine
			ON mine.conversation_id = conversations.id
			AND mine.user_id = @user_id
		INNER JOIN conversation_participants AS theirs
			ON theirs.conversation_id = conversations.id
			AND theirs.user_id = @other_user_id
		WHERE NOT conversations.is_group
		LIMIT 1
	`

	rows, err := pg.db.Query(ctx, q, pgx.StrictNamedArgs{
		"user_id":       userID,
		"other_user_id": otherUserID,
	})
	if err != nil {
		return out, fmt.Errorf("sql select direct conversation: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Conversation])
	if db.IsNotFoundError(err) {
		return out, errs.NotFoundError("conversation not found")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect direct conversation: %w", err)
	}

	return out, nil
}

// CreateDirectConversation is idempotent by intent: when a non-group
// conversation between the two users already exists it is returned
// instead of creating a duplicate. Otherwise the conversation and both
// participant rows commit atomically.
func (pg *Postgres) CreateDirectConversation(ctx context.Context, in types.CreateDirectConversation) (types.Conversation, error) {
	var out types.Conversation
	return out, pg.db.RunTx(ctx, func(ctx context.Context) error {
		existing, err := pg.DirectConversationBetween(ctx, in.LoggedInUserID(), in.OtherUserID)
		if err == nil {
			out = existing
			return nil
		}

		if !errors.Is(err, errs.NotFound) {
			return err
		}

		conversation, err := pg.insertConversation(ctx, nil, false, in.LoggedInUserID())
		if err != nil {
			return err
		}

		const q = `
			INSERT INTO conversation_participants (conversation_id, user_id, is_admin)
			VALUES (@conversation_id, @creator_id, true)
				 , (@conversation_id, @other_user_id, false)
		`

		if _, err := pg.db.Exec(ctx, q, pgx.StrictNamedArgs{
			"conversation_id": conversation.ID,
			"creator_id":      in.LoggedInUserID(),
			"other_user_id":   in.OtherUserID,
		}); err != nil {
			return fmt.Errorf("sql insert direct participants: %w", err)
		}

		out = conversation
		return nil
	})
}

func (pg *Postgres) CreateGroupConversation(ctx context.Context, in types.CreateGroupConversation) (types.Conversation, error) {
	var out types.Conversation
	return out, pg.db.RunTx(ctx, func(ctx context.Context) error {
		name := in.Name
		conversation, err := pg.insertConversation(ctx, &name, true, in.LoggedInUserID())
		if err != nil {
			return err
		}

		const q = `
			INSERT INTO conversation_participants (conversation_id, user_id, is_admin)
			SELECT @conversation_id
				 , unnest(@user_ids::VARCHAR[])
				 , unnest(@user_ids::VARCHAR[]) = @creator_id
		`

		if _, err := pg.db.Exec(ctx, q, pgx.StrictNamedArgs{
			"conversation_id": conversation.ID,
			"user_ids":        in.ParticipantIDs,
			"creator_id":      in.LoggedInUserID(),
		}); err != nil {
			return fmt.Errorf("sql insert group participants: %w", err)
		}

		out = conversation
		return nil
	})
}

func (pg *Postgres) insertConversation(ctx context.Context, name *string, isGroup bool, createdBy string) (types.Conversation, error) {
	var out types.Conversation

	const q = `
		INSERT INTO conversations (id, name, is_group, created_by)
		VALUES (@conversation_id, @name, @is_group, @created_by)
		RETURNING *
	`

	rows, err := pg.db.Query(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": id.Generate(),
		"name":            name,
		"is_group":        isGroup,
		"created_by":      createdBy,
	})
	if err != nil {
		return out, fmt.Errorf("sql insert conversation: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Conversation])
	if err != nil {
		return out, fmt.Errorf("sql collect inserted conversation: %w", err)
	}

	return out, nil
}

// Conversations lists every conversation the user participates in,
// annotated with the most recent message, most recently active first.
func (pg *Postgres) Conversations(ctx context.Context, in types.ListConversations) ([]types.Conversation, error) {
	const q = `
		SELECT conversations.*, last_message.message AS last_message
		FROM conversations
		INNER JOIN conversation_participants
			ON conversation_participants.conversation_id = conversations.id
			AND conversation_participants.user_id = @user_id
		LEFT JOIN LATERAL (
			SELECT ` + messageJSON + ` AS message
			FROM messages
			WHERE messages.conversation_id = conversations.id
			ORDER BY messages.created_at DESC, messages.id DESC
			LIMIT 1
		) AS last_message ON true
		ORDER BY conversations.updated_at DESC
	`

	rows, err := pg.db.Query(ctx, q, pgx.StrictNamedArgs{
		"user_id": in.LoggedInUserID(),
	})
	if err != nil {
		return nil, fmt.Errorf("sql select conversations: %w", err)
	}

	out, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[types.Conversation])
	if err != nil {
		return nil, fmt.Errorf("sql collect conversations: %w", err)
	}

	return out, nil
}

func (pg *Postgres) Conversation(ctx context.Context, in types.RetrieveConversation) (types.Conversation, error) {
	var out types.Conversation

	const q = `
		SELECT conversations.*,
			(
				SELECT COALESCE(json_agg(json_build_object(
					'conversationID', participants.conversation_id,
					'userID', participants.user_id,
					'isAdmin', participants.is_admin,
					'joinedAt', participants.joined_at,
					'user', ` + userJSON + `
				) ORDER BY participants.joined_at, participants.user_id), '[]')
				FROM conversation_participants AS participants
				INNER JOIN users ON users.id = participants.user_id
				WHERE participants.conversation_id = conversations.id
			) AS participants
		FROM conversations
		INNER JOIN conversation_participants AS viewer
			ON viewer.conversation_id = conversations.id
			AND viewer.user_id = @user_id
		WHERE conversations.id = @conversation_id
	`

	rows, err := pg.db.Query(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": in.ConversationID,
		"user_id":         in.LoggedInUserID(),
	})
	if err != nil {
		return out, fmt.Errorf("sql select conversation: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Conversation])
	if db.IsNotFoundError(err) {
		return out, errs.NotFoundError("conversation not found")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect conversation: %w", err)
	}

	return out, nil
}

func (pg *Postgres) AddParticipant(ctx context.Context, in types.AddParticipant) (types.Participant, error) {
	var out types.Participant
	return out, pg.db.RunTx(ctx, func(ctx context.Context) error {
		acting, err := pg.participant(ctx, in.ConversationID, in.LoggedInUserID())
		if errors.Is(err, errs.NotFound) {
			return errs.PermissionDeniedError("not a participant of this conversation")
		}

		if err != nil {
			return err
		}

		isGroup, err := pg.conversationIsGroup(ctx, in.ConversationID)
		if err != nil {
			return err
		}

		if !isGroup {
			return errs.PermissionDeniedError("cannot add participants to a direct conversation")
		}

		if !acting.IsAdmin {
			return errs.PermissionDeniedError("only admins can add participants")
		}

		const q = `
			INSERT INTO conversation_participants (conversation_id, user_id, is_admin)
			VALUES (@conversation_id, @user_id, false)
			RETURNING conversation_id, user_id, is_admin, joined_at
		`

		rows, err := pg.db.Query(ctx, q, pgx.StrictNamedArgs{
			"conversation_id": in.ConversationID,
			"user_id":         in.UserID,
		})
		if err != nil {
			return fmt.Errorf("sql insert participant: %w", err)
		}

		out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Participant])
		if db.IsUniqueViolationError(err) {
			return errs.ConflictError("already a participant")
		}

		if err != nil {
			return fmt.Errorf("sql collect inserted participant: %w", err)
		}

		return nil
	})
}

func (pg *Postgres) RemoveParticipant(ctx context.Context, in types.RemoveParticipant) error {
	return pg.db.RunTx(ctx, func(ctx context.Context) error {
		if !in.IsSelfRemoval() {
			acting, err := pg.participant(ctx, in.ConversationID, in.LoggedInUserID())
			if errors.Is(err, errs.NotFound) {
				return errs.PermissionDeniedError("not a participant of this conversation")
			}

			if err != nil {
				return err
			}

			isGroup, err := pg.conversationIsGroup(ctx, in.ConversationID)
			if err != nil {
				return err
			}

			if !isGroup || !acting.IsAdmin {
				return errs.PermissionDeniedError("only admins can remove other participants")
			}
		}

		const q = `
			DELETE FROM conversation_participants
			WHERE conversation_id = @conversation_id
				AND user_id = @user_id
			RETURNING conversation_id
		`

		rows, err := pg.db.Query(ctx, q, pgx.StrictNamedArgs{
			"conversation_id": in.ConversationID,
			"user_id":         in.UserID,
		})
		if err != nil {
			return fmt.Errorf("sql delete participant: %w", err)
		}

		_, err = pgx.CollectExactlyOneRow(rows, pgx.RowTo[string])
		if db.IsNotFoundError(err) {
			return errs.NotFoundError("participant not found")
		}

		if err != nil {
			return fmt.Errorf("sql collect deleted participant: %w", err)
		}

		return nil
	})
}

func (pg *Postgres) participant(ctx context.Context, conversationID, userID string) (types.Participant, error) {
	var out types.Participant

	const q = `
		SELECT conversation_id, user_id, is_admin, joined_at
		FROM conversation_participants
		WHERE conversation_id = @conversation_id
			AND user_id = @user_id
	`

	rows, err := pg.db.Query(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": conversationID,
		"user_id":         userID,
	})
	if err != nil {
		return out, fmt.Errorf("sql select participant: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Participant])
	if db.IsNotFoundError(err) {
		return out, errs.NotFoundError("participant not found")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect participant: %w", err)
	}

	return out, nil
}

// IsParticipant reports whether userID currently belongs to the
// conversation.
func (pg *Postgres) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	_, err := pg.participant(ctx, conversationID, userID)
	if errors.Is(err, errs.NotFound) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}

func (pg *Postgres) ParticipantIDs(ctx context.Context, conversationID string) ([]string, error) {
	const q = `
		SELECT user_id
		FROM conversation_participants
		WHERE conversation_id = @conversation_id
	`

	rows, err := pg.db.Query(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": conversationID,
	})
	if err != nil {
		return nil, fmt.Errorf("sql select participant ids: %w", err)
	}

	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("sql collect participant ids: %w", err)
	}

	return out, nil
}

func (pg *Postgres) conversationIsGroup(ctx context.Context, conversationID string) (bool, error) {
	const q = `
		SELECT is_group
		FROM conversations
		WHERE id = @conversation_id
	`

	var isGroup bool
	err := pg.db.QueryRow(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": conversationID,
	}).Scan(&isGroup)
	if db.IsNotFoundError(err) {
		return false, errs.NotFoundError("conversation not found")
	}

	if err != nil {
		return false, fmt.Errorf("sql select conversation is_group: %w", err)
	}

	return isGroup, nil
}

// touchConversation bumps updated_at so the inbox keeps its
// most-recently-active-first ordering.
func (pg *Postgres) touchConversation(ctx context.Context, conversationID string) error {
	const q = `
		UPDATE conversations
		SET updated_at = now()
		WHERE id = @conversation_id
	`

	if _, err := pg.db.Exec(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": conversationID,
	}); err != nil {
		return fmt.Errorf("sql touch conversation: %w", err)
	}

	return nil
}
