package postgres

import (
	"context"
	"errors"
	"fmt"

	"contactdesk/internal/domain/contact"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ContactRepository struct {
	pool *pgxpool.Pool
}

func NewContactRepository(pool *pgxpool.Pool) *ContactRepository {
	return &ContactRepository{pool: pool}
}

const contactColumns = `
	id,
	COALESCE(parent_id::text, ''),
	kind,
	name,
	COALESCE(email, ''),
	COALESCE(phone, ''),
	revision,
	created_at,
	updated_at
`

func (r *ContactRepository) Create(ctx context.Context, c *contact.Contact) error {
	const sql = `
		INSERT INTO contacts (id, parent_id, kind, name, email, phone, revision, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	var executor interface {
		Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	} = r.pool

	if tx := GetTx(ctx); tx != nil {
		executor = tx
	}

	_, err := executor.Exec(ctx, sql,
		c.ID, nullIfEmpty(c.ParentID), c.Kind, c.Name, nullIfEmpty(c.Email), nullIfEmpty(c.Phone),
		c.Revision, c.CreatedAt, c.UpdatedAt)

	if err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}

	return nil
}

func (r *ContactRepository) GetByID(ctx context.Context, id string) (*contact.Contact, error) {
	sql := `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1`

	c := &contact.Contact{}
	err := r.pool.QueryRow(ctx, sql, id).Scan(
		&c.ID, &c.ParentID, &c.Kind, &c.Name, &c.Email, &c.Phone, &c.Revision, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contact.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select contact: %w", err)
	}

	return c, nil
}

func (r *ContactRepository) List(ctx context.Context, parentID string) ([]*contact.Contact, error) {
	sql := `SELECT ` + contactColumns + ` FROM contacts`
	args := []any{}
	if parentID != "" {
		sql += ` WHERE parent_id = $1`
		args = append(args, parentID)
	}
	sql += ` ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*contact.Contact
	for rows.Next() {
		c := &contact.Contact{}
		if err := rows.Scan(&c.ID, &c.ParentID, &c.Kind, &c.Name, &c.Email, &c.Phone, &c.Revision, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}

	return contacts, nil
}

// UpdateRevision is the server-side compare-and-bump: the patch applies only
// if the stored revision still matches, and the revision advances in the
// same statement. No row back means either the contact is gone or the
// revision moved; the caller gets the distinction plus the current revision.
func (r *ContactRepository) UpdateRevision(ctx context.Context, id string, expected int64, p contact.Patch) (*contact.Contact, error) {
	sql := `
		UPDATE contacts
		SET name = COALESCE($3, name),
		    email = COALESCE($4, email),
		    phone = COALESCE($5, phone),
		    revision = revision + 1,
		    updated_at = NOW()
		WHERE id = $1 AND revision = $2
		RETURNING ` + contactColumns

	var executor interface {
		QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	} = r.pool

	if tx := GetTx(ctx); tx != nil {
		executor = tx
	}

	c := &contact.Contact{}
	err := executor.QueryRow(ctx, sql, id, expected, p.Name, p.Email, p.Phone).Scan(
		&c.ID, &c.ParentID, &c.Kind, &c.Name, &c.Email, &c.Phone, &c.Revision, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.revisionFailure(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update contact: %w", err)
	}

	return c, nil
}

func (r *ContactRepository) DeleteRevision(ctx context.Context, id string, expected int64) error {
	const sql = `DELETE FROM contacts WHERE id = $1 AND revision = $2`

	var executor interface {
		Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	} = r.pool

	if tx := GetTx(ctx); tx != nil {
		executor = tx
	}

	tag, err := executor.Exec(ctx, sql, id, expected)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.revisionFailure(ctx, id)
	}

	return nil
}

func (r *ContactRepository) CountChildren(ctx context.Context, id string) (int64, error) {
	const sql = `SELECT COUNT(*) FROM contacts WHERE parent_id = $1`

	var n int64
	if err := r.pool.QueryRow(ctx, sql, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("count children: %w", err)
	}

	return n, nil
}

func (r *ContactRepository) revisionFailure(ctx context.Context, id string) error {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err // contact.ErrNotFound or a query failure
	}
	return &contact.RevisionMismatchError{ID: id, CurrentRevision: current.Revision}
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
