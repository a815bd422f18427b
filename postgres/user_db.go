package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/nicolasparada/go-db"
	"github.com/nicolasparada/go-errs"
	"github.com/voxa-chat/voxa/types"
)

// UpsertUser keeps the local profile row in sync with the identity
// provider. The provider owns the user id; this store only mirrors it.
func (pg *Postgres) UpsertUser(ctx context.Context, in types.UpsertUser) (types.User, error) {
	var out types.User

	const q = `
		INSERT INTO users (id, email, display_name)
		VALUES (@user_id, LOWER(@email), @display_name)
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email,
			display_name = EXCLUDED.display_name,
			updated_at = now()
		RETURNING *
	`

	rows, err := pg.db.Query(ctx, q, pgx.StrictNamedArgs{
		"user_id":      in.UserID,
		"email":        in.Email,
		"display_name": in.DisplayName,
	})
	if err != nil {
		return out, fmt.Errorf("sql upsert user: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.User])
	if db.IsUniqueViolationError(err, "email") {
		return out, errs.ConflictError("email already taken")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect upserted user: %w", err)
	}

	return out, nil
}

func (pg *Postgres) User(ctx context.Context, in types.RetrieveUser) (types.User, error) {
	var out types.User

	const q = `
		SELECT *
		FROM users
		WHERE id = @user_id
	`

	rows, err := pg.db.Query(ctx, q, pgx.StrictNamedArgs{
		"user_id": in.UserID,
	})
	if err != nil {
		return out, fmt.Errorf("sql select user: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.User])
	if db.IsNotFoundError(err) {
		return out, errs.NotFoundError("user not found")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect user: %w", err)
	}

	return out, nil
}

// Users searches by display name or email, excluding the viewer.
func (pg *Postgres) Users(ctx context.Context, in types.ListUsers) ([]types.User, error) {
	const q = `
		SELECT *
		FROM users
		WHERE id != @user_id
			AND (display_name ILIKE @pattern OR email ILIKE @pattern)
		ORDER BY display_name
		LIMIT @limit
	`

	rows, err := pg.db.Query(ctx, q, pgx.StrictNamedArgs{
		"user_id": in.LoggedInUserID(),
		"pattern": "%" + escapeLike(in.Query) + "%",
		"limit":   in.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("sql search users: %w", err)
	}

	out, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[types.User])
	if err != nil {
		return nil, fmt.Errorf("sql collect searched users: %w", err)
	}

	return out, nil
}

func (pg *Postgres) UpdateUser(ctx context.Context, in types.UpdateUser) (types.User, error) {
	var out types.User

	const q = `
		UPDATE users
		SET display_name = COALESCE(@display_name, display_name),
			avatar = COALESCE(@avatar, avatar),
			status = COALESCE(@status, status),
			updated_at = now()
		WHERE id = @user_id
		RETURNING *
	`

	rows, err := pg.db.Query(ctx, q, pgx.NamedArgs{
		"user_id":      in.LoggedInUserID(),
		"display_name": in.DisplayName,
		"avatar":       in.AvatarURL,
		"status":       in.Status,
	})
	if err != nil {
		return out, fmt.Errorf("sql update user: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.User])
	if db.IsNotFoundError(err) {
		return out, errs.NotFoundError("user not found")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect updated user: %w", err)
	}

	return out, nil
}

// SetUserPresence records status transitions driven by connect and
// disconnect, stamping last_seen_at on the way offline.
func (pg *Postgres) SetUserPresence(ctx context.Context, userID string, status types.UserStatus) error {
	const q = `
		UPDATE users
		SET status = @status,
			last_seen_at = now(),
			updated_at = now()
		WHERE id = @user_id
	`

	if _, err := pg.db.Exec(ctx, q, pgx.StrictNamedArgs{
		"user_id": userID,
		"status":  status,
	}); err != nil {
		return fmt.Errorf("sql set user presence: %w", err)
	}

	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
