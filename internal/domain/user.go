package domain

import (
	"context"
	"time"
)

// User is a registered account in the identity store. The invitation service
// only reads it: existence checks at issuance time and display data for the
// inviter reference.
// swagger:model User
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	LastName  string    `json:"last_name"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName returns the inviter's human-readable name for mail content,
// falling back to the email address.
func (u *User) DisplayName() string {
	name := u.Name
	if u.LastName != "" {
		name += " " + u.LastName
	}
	if name == "" {
		return u.Email
	}
	return name
}

// UserReader is the read-only identity store port.
type UserReader interface {
	// ExistsByEmail reports whether an active account uses the email
	// (case-insensitive).
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	GetByID(ctx context.Context, id string) (*User, error)
}

// TokenIssuer issues bearer tokens (e.g. JWT) for an authenticated user.
type TokenIssuer interface {
	Issue(userID, email string, expiry time.Duration) (string, error)
}

// TokenVerifier verifies a bearer token and returns the authenticated user ID.
type TokenVerifier interface {
	Verify(token string) (userID string, err error)
}
