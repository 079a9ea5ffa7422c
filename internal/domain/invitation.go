package domain

import (
	"context"
	"time"
)

// Invitation represents a single-use invitation to register an account.
// The token is the redemption credential: an opaque random string stored
// lower-cased and unique across all invitations ever created.
// swagger:model Invitation
type Invitation struct {
	ID        string     `json:"id"`
	Token     string     `json:"token"`
	Email     string     `json:"email"`
	Accepted  bool       `json:"accepted"`
	Sent      *time.Time `json:"sent"`
	CreatedAt time.Time  `json:"created_at"`
	InviterID string     `json:"inviter_id,omitempty"`
}

// IsExpired reports whether the invitation's redemption window has closed.
// An invitation that was never dispatched (Sent == nil) has not started its
// expiry clock and is never expired, regardless of its age. Evaluated against
// the caller's "now" on every check, never cached.
func (i *Invitation) IsExpired(now time.Time, expiry time.Duration) bool {
	if i.Sent == nil {
		return false
	}
	return !i.Sent.Add(expiry).After(now)
}

// IsValid reports whether the invitation is still redeemable: not accepted
// and not expired.
func (i *Invitation) IsValid(now time.Time, expiry time.Duration) bool {
	return !i.Accepted && !i.IsExpired(now, expiry)
}

func (i *Invitation) String() string {
	return "Invite: " + i.Email
}

// InvitationRepository defines storage operations for invitations.
//
// Callers pass sentBefore (now minus the configured expiry window) so that the
// valid/expired split is always evaluated against query-time "now": a row is
// expired iff accepted, or sent earlier than sentBefore. Rows with a NULL sent
// timestamp are always on the valid side.
type InvitationRepository interface {
	// Create persists a new invitation. The token column carries a unique
	// constraint; a collision surfaces as ErrDuplicateToken.
	Create(ctx context.Context, inv *Invitation) error
	// GetByToken looks an invitation up by its lower-cased token.
	GetByToken(ctx context.Context, token string) (*Invitation, error)
	// GetValidByEmail returns the pending, unexpired invitation for the email
	// (case-insensitive), or ErrInvitationNotFound.
	GetValidByEmail(ctx context.Context, email string, sentBefore time.Time) (*Invitation, error)
	// ExistsAcceptedByEmail reports whether an accepted invitation exists for
	// the email (case-insensitive).
	ExistsAcceptedByEmail(ctx context.Context, email string) (bool, error)
	// MarkSent records the dispatch timestamp. Called only after the mail send
	// returned without error.
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	// MarkAccepted flips accepted on the row iff it is still pending, and
	// reports whether this call performed the transition. The conditional
	// update is the guard against two concurrent redemptions both succeeding.
	MarkAccepted(ctx context.Context, id string) (accepted bool, err error)
	ListValid(ctx context.Context, sentBefore time.Time) ([]*Invitation, error)
	ListExpired(ctx context.Context, sentBefore time.Time) ([]*Invitation, error)
	// DeleteExpired purges accepted-or-expired rows and returns the count.
	// Safe to run repeatedly; deleting nothing is a no-op.
	DeleteExpired(ctx context.Context, sentBefore time.Time) (int64, error)
}

// IssuanceService validates candidate emails against the business rules and
// creates and dispatches new invitations.
type IssuanceService interface {
	// Invite issues an invitation for one email, sends the invite mail, and
	// emits EventInvitationSent. Fails with ErrInvalidEmail, ErrAlreadyInvited,
	// ErrAlreadyAccepted, ErrUserRegistered, or ErrMailDispatch. On
	// ErrMailDispatch the record exists with a NULL sent timestamp and the
	// send may be retried by issuing again after cleanup, or externally.
	Invite(ctx context.Context, email, inviterID string) (*Invitation, error)
	// InviteBatch evaluates every candidate independently: one email's
	// rejection does not abort the rest.
	InviteBatch(ctx context.Context, emails []string, inviterID string) (*BatchResult, error)
	// SignupOpen reports whether open (uninvited) registration is allowed.
	SignupOpen() bool
}

// BatchRejection is one rejected candidate from a bulk issuance.
type BatchRejection struct {
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

// BatchResult partitions a bulk issuance into issued invitations and
// per-email rejections.
type BatchResult struct {
	Issued   []*Invitation    `json:"issued"`
	Rejected []BatchRejection `json:"rejected"`
}

// RedemptionOutcome is the final state of one redemption attempt.
type RedemptionOutcome string

const (
	// OutcomeAccepted: the invitation was valid and is now accepted.
	OutcomeAccepted RedemptionOutcome = "accepted"
	// OutcomePending: the invitation was valid but acceptance is deferred
	// until the registration-completed callback for the same email.
	OutcomePending RedemptionOutcome = "pending"
	OutcomeAlreadyAccepted RedemptionOutcome = "already-accepted"
	OutcomeExpired         RedemptionOutcome = "expired"
	OutcomeNotFound        RedemptionOutcome = "not-found"
	// OutcomeGone: undifferentiated failure, strict mode only.
	OutcomeGone RedemptionOutcome = "gone"
)

// RedemptionResult carries the outcome of a redemption attempt plus the
// redirect target the caller should send the recipient to.
type RedemptionResult struct {
	Outcome     RedemptionOutcome `json:"outcome"`
	RedirectURL string            `json:"redirect_url,omitempty"`
	// Email is the verified invited address, set on success (including the
	// deferred pending outcome) for the caller to stash.
	Email      string      `json:"email,omitempty"`
	Invitation *Invitation `json:"-"`
}

// RedemptionService drives the token redemption state machine.
type RedemptionService interface {
	Redeem(ctx context.Context, token string) (*RedemptionResult, error)
	// HandleSignupCompleted correlates a completed registration with a
	// still-pending invitation for the same email and applies the acceptance
	// transition. Used in deferred-acceptance mode; a no-op when no pending
	// invitation matches.
	HandleSignupCompleted(ctx context.Context, email string) error
}

// InvitationQueryService classifies the record set into valid and expired
// subsets and supports the bulk cleanup sweep.
type InvitationQueryService interface {
	ListValid(ctx context.Context) ([]*Invitation, error)
	ListExpired(ctx context.Context) ([]*Invitation, error)
	DeleteExpired(ctx context.Context) (int64, error)
}
