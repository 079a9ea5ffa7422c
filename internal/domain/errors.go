package domain

import "errors"

// Sentinel errors for the invitation lifecycle.
var (
	// ErrInvalidEmail: the candidate email fails syntax or length validation.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrAlreadyInvited: a valid, pending invitation exists for this email.
	ErrAlreadyInvited = errors.New("email has already been invited")
	// ErrAlreadyAccepted: an accepted invitation exists for this email.
	ErrAlreadyAccepted = errors.New("email has already accepted an invite")
	// ErrUserRegistered: an active account already uses this email.
	ErrUserRegistered = errors.New("an active user is using this email address")

	ErrInvitationNotFound = errors.New("invitation not found")
	ErrInvitationExpired  = errors.New("invitation expired")
	// ErrInvitationAccepted: the token was already redeemed.
	ErrInvitationAccepted = errors.New("invitation already accepted")

	// ErrDuplicateToken: the storage unique constraint on token fired.
	ErrDuplicateToken = errors.New("invitation token already exists")
	// ErrMailDispatch: the invite mail could not be sent. The invitation
	// record exists but its sent timestamp stays NULL.
	ErrMailDispatch = errors.New("failed to dispatch invitation email")

	ErrUserNotFound = errors.New("user not found")
)
