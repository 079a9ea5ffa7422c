package postgres

import (
	"context"
	"database/sql"
	"errors"

	"inviteservice/internal/domain"
)

type userRepository struct {
	DB *sql.DB
}

// NewUserRepository returns the read-only identity store backed by the
// application's users table. The invitation service never writes to it.
func NewUserRepository(db *sql.DB) domain.UserReader {
	return &userRepository{DB: db}
}

func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM users WHERE lower(email) = lower($1)
		)
	`
	if err := r.DB.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user := &domain.User{}
	query := `
		SELECT id, email, name, last_name, created_at
		FROM users
		WHERE id = $1
	`
	err := r.DB.QueryRowContext(ctx, query, id).
		Scan(&user.ID, &user.Email, &user.Name, &user.LastName, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
