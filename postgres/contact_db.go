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

func (pg *Postgres) CreateContactRequest(ctx context.Context, in types.CreateContactRequest) (types.Contact, error) {
	var out types.Contact

	const q = `
		INSERT INTO contacts (id, user_id, contact_id, status)
		VALUES (@contact_row_id, @user_id, @contact_id, @status)
		RETURNING *
	`

	rows, err := pg.db.Query(ctx, q, pgx.StrictNamedArgs{
		"contact_row_id": id.Generate(),
		"user_id":        in.LoggedInUserID(),
		"contact_id":     in.ContactID,
		"status":         types.ContactStatusPending,
	})
	if err != nil {
		return out, fmt.Errorf("sql insert contact request: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Contact])
	if db.IsUniqueViolationError(err) {
		return out, errs.ConflictError("contact request already exists")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect inserted contact request: %w", err)
	}

	return out, nil
}

// AcceptContactRequest flips the inbound pending row to accepted and
// creates the mirrored reciprocal row. Both commit together so the
// graph never ends up asymmetric.
func (pg *Postgres) AcceptContactRequest(ctx context.Context, in types.AcceptContactRequest) (types.Contact, error) {
	var out types.Contact
	return out, pg.db.RunTx(ctx, func(ctx context.Context) error {
		const accept = `
			UPDATE contacts
			SET status = @accepted,
				updated_at = now()
			WHERE id = @request_id
				AND contact_id = @user_id
				AND status = @pending
			RETURNING *
		`

		rows, err := pg.db.Query(ctx, accept, pgx.StrictNamedArgs{
			"request_id": in.RequestID,
			"user_id":    in.LoggedInUserID(),
			"accepted":   types.ContactStatusAccepted,
			"pending":    types.ContactStatusPending,
		})
		if err != nil {
			return fmt.Errorf("sql accept contact request: %w", err)
		}

		request, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Contact])
		if db.IsNotFoundError(err) {
			return errs.NotFoundError("contact request not found")
		}

		if err != nil {
			return fmt.Errorf("sql collect accepted contact request: %w", err)
		}

		const reciprocal = `
			INSERT INTO contacts (id, user_id, contact_id, status)
			VALUES (@contact_row_id, @user_id, @contact_id, @accepted)
			ON CONFLICT (user_id, contact_id) DO UPDATE
			SET status = @accepted,
				updated_at = now()
			RETURNING *
		`

		rows, err = pg.db.Query(ctx, reciprocal, pgx.StrictNamedArgs{
			"contact_row_id": id.Generate(),
			"user_id":        in.LoggedInUserID(),
			"contact_id":     request.UserID,
			"accepted":       types.ContactStatusAccepted,
		})
		if err != nil {
			return fmt.Errorf("sql insert reciprocal contact: %w", err)
		}

		out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Contact])
		if err != nil {
			return fmt.Errorf("sql collect reciprocal contact: %w", err)
		}

		return nil
	})
}

func (pg *Postgres) RejectContactRequest(ctx context.Context, in types.RejectContactRequest) error {
	const q = `
		DELETE FROM contacts
		WHERE id = @request_id
			AND contact_id = @user_id
			AND status = @pending
		RETURNING id
	`

	rows, err := pg.db.Query(ctx, q, pgx.StrictNamedArgs{
		"request_id": in.RequestID,
		"user_id":    in.LoggedInUserID(),
		"pending":    types.ContactStatusPending,
	})
	if err != nil {
		return fmt.Errorf("sql reject contact request: %w", err)
	}

	_, err = pgx.CollectExactlyOneRow(rows, pgx.RowTo[string])
	if db.IsNotFoundError(err) {
		return errs.NotFoundError("contact request not found")
	}

	if err != nil {
		return fmt.Errorf("sql collect rejected contact request: %w", err)
	}

	return nil
}

// BlockContact overwrites whatever state the (viewer, target) row is in.
// The other direction's row is deliberately untouched.
func (pg *Postgres) BlockContact(ctx context.Context, in types.BlockContact) (types.Contact, error) {
	var out types.Contact

	const q = `
		INSERT INTO contacts (id, user_id, contact_id, status)
		VALUES (@contact_row_id, @user_id, @contact_id, @blocked)
		ON CONFLICT (user_id, contact_id) DO UPDATE
		SET status = @blocked,
			updated_at = now()
		RETURNING *
	`

	rows, err := pg.db.Query(ctx, q, pgx.StrictNamedArgs{
		"contact_row_id": id.Generate(),
		"user_id":        in.LoggedInUserID(),
		"contact_id":     in.ContactID,
		"blocked":        types.ContactStatusBlocked,
	})
	if err != nil {
		return out, fmt.Errorf("sql block contact: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Contact])
	if err != nil {
		return out, fmt.Errorf("sql collect blocked contact: %w", err)
	}

	return out, nil
}

func (pg *Postgres) Contacts(ctx context.Context, in types.ListContacts) ([]types.Contact, error) {
	const q = `
		SELECT contacts.*, ` + userJSON + ` AS contact_user
		FROM contacts
		INNER JOIN users ON users.id = contacts.contact_id
		WHERE contacts.user_id = @user_id
			AND contacts.status = @status
		ORDER BY users.display_name
	`

	rows, err := pg.db.Query(ctx, q, pgx.StrictNamedArgs{
		"user_id": in.LoggedInUserID(),
		"status":  in.Status,
	})
	if err != nil {
		return nil, fmt.Errorf("sql select contacts: %w", err)
	}

	out, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[types.Contact])
	if err != nil {
		return nil, fmt.Errorf("sql collect contacts: %w", err)
	}

	return out, nil
}

// ContactRequests lists inbound pending rows, joined with the
// requester's profile.
func (pg *Postgres) ContactRequests(ctx context.Context, in types.ListContactRequests) ([]types.Contact, error) {
	const q = `
		SELECT contacts.*, ` + userJSON + ` AS user
		FROM contacts
		INNER JOIN users ON users.id = contacts.user_id
		WHERE contacts.contact_id = @user_id
			AND contacts.status = @pending
		ORDER BY contacts.created_at DESC
	`

	rows, err := pg.db.Query(ctx, q, pgx.StrictNamedArgs{
		"user_id": in.LoggedInUserID(),
		"pending": types.ContactStatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("sql select contact requests: %w", err)
	}

	out, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[types.Contact])
	if err != nil {
		return nil, fmt.Errorf("sql collect contact requests: %w", err)
	}

	return out, nil
}

// HasContactRow reports whether the viewer already holds a row for the
// target, in any status.
func (pg *Postgres) HasContactRow(ctx context.Context, userID, contactID string) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM contacts
			WHERE user_id = @user_id AND contact_id = @contact_id
		)
	`

	var exists bool
	err := pg.db.QueryRow(ctx, q, pgx.StrictNamedArgs{
		"user_id":    userID,
		"contact_id": contactID,
	}).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sql select contact row existence: %w", err)
	}

	return exists, nil
}

// HasBlock reports whether either direction of the pair carries a
// blocked row.
func (pg *Postgres) HasBlock(ctx context.Context, userID, otherUserID string) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM contacts
			WHERE status = @blocked
				AND (
					(user_id = @user_id AND contact_id = @other_user_id)
					OR (user_id = @other_user_id AND contact_id = @user_id)
				)
		)
	`

	var blocked bool
	err := pg.db.QueryRow(ctx, q, pgx.StrictNamedArgs{
		"user_id":       userID,
		"other_user_id": otherUserID,
		"blocked":       types.ContactStatusBlocked,
	}).Scan(&blocked)
	if err != nil {
		return false, fmt.Errorf("sql select block existence: %w", err)
	}

	return blocked, nil
}
