package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"inviteservice/internal/domain"
)

const pqUniqueViolation = "23505"

type invitationRepository struct {
	DB *sql.DB
}

// NewInvitationRepository returns a domain.InvitationRepository implemented
// with Postgres. Expected schema: invitations(id uuid primary key,
// token varchar(64) unique not null, email varchar not null,
// accepted boolean not null default false, sent timestamptz null,
// created_at timestamptz not null, inviter_id uuid null), with an index on
// (lower(email), accepted, sent).
func NewInvitationRepository(db *sql.DB) domain.InvitationRepository {
	return &invitationRepository{DB: db}
}

func (r *invitationRepository) Create(ctx context.Context, inv *domain.Invitation) error {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	query := `
		INSERT INTO invitations (id, token, email, accepted, sent, created_at, inviter_id)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
	`
	_, err := r.DB.ExecContext(ctx, query,
		inv.ID, inv.Token, inv.Email, inv.Accepted, inv.Sent, inv.CreatedAt, inv.InviterID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return domain.ErrDuplicateToken
		}
		return err
	}
	return nil
}

const invitationColumns = `id, token, email, accepted, sent, created_at, COALESCE(inviter_id::text, '')`

func (r *invitationRepository) GetByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM invitations
		WHERE token = $1
	`
	return r.scanOne(r.DB.QueryRowContext(ctx, query, token))
}

func (r *invitationRepository) GetValidByEmail(ctx context.Context, email string, sentBefore time.Time) (*domain.Invitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM invitations
		WHERE lower(email) = lower($1)
		  AND accepted = FALSE
		  AND (sent IS NULL OR sent >= $2)
		LIMIT 1
	`
	return r.scanOne(r.DB.QueryRowContext(ctx, query, email, sentBefore))
}

func (r *invitationRepository) ExistsAcceptedByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM invitations
			WHERE lower(email) = lower($1) AND accepted = TRUE
		)
	`
	if err := r.DB.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *invitationRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	query := `UPDATE invitations SET sent = $1 WHERE id = $2`
	res, err := r.DB.ExecContext(ctx, query, sentAt, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrInvitationNotFound
	}
	return nil
}

// MarkAccepted is the single-row atomic guard for redemption: the condition
// on accepted = FALSE means only one of two concurrent redemptions observes
// a row flip.
func (r *invitationRepository) MarkAccepted(ctx context.Context, id string) (bool, error) {
	query := `UPDATE invitations SET accepted = TRUE WHERE id = $1 AND accepted = FALSE`
	res, err := r.DB.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *invitationRepository) ListValid(ctx context.Context, sentBefore time.Time) ([]*domain.Invitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM invitations
		WHERE accepted = FALSE AND (sent IS NULL OR sent >= $1)
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, sentBefore)
}

func (r *invitationRepository) ListExpired(ctx context.Context, sentBefore time.Time) ([]*domain.Invitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM invitations
		WHERE accepted = TRUE OR sent < $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, sentBefore)
}

func (r *invitationRepository) DeleteExpired(ctx context.Context, sentBefore time.Time) (int64, error) {
	query := `DELETE FROM invitations WHERE accepted = TRUE OR sent < $1`
	res, err := r.DB.ExecContext(ctx, query, sentBefore)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *invitationRepository) scanOne(row *sql.Row) (*domain.Invitation, error) {
	inv := &domain.Invitation{}
	err := row.Scan(&inv.ID, &inv.Token, &inv.Email, &inv.Accepted, &inv.Sent, &inv.CreatedAt, &inv.InviterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInvitationNotFound
		}
		return nil, err
	}
	return inv, nil
}

func (r *invitationRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Invitation, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invs := []*domain.Invitation{}
	for rows.Next() {
		inv := &domain.Invitation{}
		if err := rows.Scan(&inv.ID, &inv.Token, &inv.Email, &inv.Accepted, &inv.Sent, &inv.CreatedAt, &inv.InviterID); err != nil {
			return nil, err
		}
		invs = append(invs, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return invs, nil
}
