package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"inviteservice/config"
	"inviteservice/internal/domain"
)

type redemptionService struct {
	invitationRepo domain.InvitationRepository
	bus            domain.EventBus
	cfg            *config.Config
	contextTimeout time.Duration
}

// NewRedemptionService creates the redemption workflow with the given
// storage and event bus.
func NewRedemptionService(invitationRepo domain.InvitationRepository,
	bus domain.EventBus,
	cfg *config.Config,
	timeout time.Duration,
) domain.RedemptionService {
	return &redemptionService{
		invitationRepo: invitationRepo,
		bus:            bus,
		cfg:            cfg,
		contextTimeout: timeout,
	}
}

// Redeem walks the redemption state machine for one token. Error-path
// outcomes come back as results, not errors; a non-nil error means
// infrastructure failed, not that the token was bad.
func (s *redemptionService) Redeem(ctx context.Context, token string) (*domain.RedemptionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	token = strings.ToLower(strings.TrimSpace(token))
	inv, err := s.invitationRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrInvitationNotFound) {
			return s.failure(domain.OutcomeNotFound, s.cfg.LoginURL), nil
		}
		return nil, fmt.Errorf("lookup token: %w", err)
	}
	if inv.Accepted {
		return s.failure(domain.OutcomeAlreadyAccepted, s.cfg.LoginURL), nil
	}
	if inv.IsExpired(time.Now(), s.cfg.InvitationExpiry) {
		// Permissive mode still sends the recipient to signup so they may
		// register the ordinary way.
		return s.failure(domain.OutcomeExpired, s.cfg.SignupURL), nil
	}

	if s.cfg.AcceptInviteAfterSignup {
		// Acceptance is deferred until the registration-completed callback
		// arrives for this email; the caller stashes the verified address.
		return &domain.RedemptionResult{
			Outcome:     domain.OutcomePending,
			RedirectURL: s.cfg.SignupURL,
			Email:       inv.Email,
			Invitation:  inv,
		}, nil
	}

	won, err := s.accept(ctx, inv)
	if err != nil {
		return nil, err
	}
	if !won {
		// A concurrent redemption flipped the flag first.
		return s.failure(domain.OutcomeAlreadyAccepted, s.cfg.LoginURL), nil
	}
	return &domain.RedemptionResult{
		Outcome:     domain.OutcomeAccepted,
		RedirectURL: s.cfg.SignupURL,
		Email:       inv.Email,
		Invitation:  inv,
	}, nil
}

func (s *redemptionService) HandleSignupCompleted(ctx context.Context, email string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	email = strings.TrimSpace(strings.ToLower(email))
	sentBefore := time.Now().Add(-s.cfg.InvitationExpiry)
	inv, err := s.invitationRepo.GetValidByEmail(ctx, email, sentBefore)
	if err != nil {
		if errors.Is(err, domain.ErrInvitationNotFound) {
			// Signup without a pending invitation; nothing to correlate.
			return nil
		}
		return fmt.Errorf("find pending invitation: %w", err)
	}
	if _, err := s.accept(ctx, inv); err != nil {
		return err
	}
	return nil
}

// accept applies the single terminal transition. The conditional update in
// MarkAccepted decides the winner under concurrency; only the winner emits
// the redeemed event, so the notification never fires twice per invitation.
func (s *redemptionService) accept(ctx context.Context, inv *domain.Invitation) (won bool, err error) {
	won, err = s.invitationRepo.MarkAccepted(ctx, inv.ID)
	if err != nil {
		return false, fmt.Errorf("mark accepted: %w", err)
	}
	inv.Accepted = true
	if won {
		s.bus.Emit(ctx, domain.EventInvitationRedeemed, domain.InvitationRedeemedPayload{
			Email:      inv.Email,
			Invitation: inv,
			InviterID:  inv.InviterID,
		})
	}
	return won, nil
}

// failure shapes an error-path outcome per the configured mode: strict mode
// collapses everything into a single undifferentiated "gone", permissive
// mode keeps the distinct outcome and a redirect target.
func (s *redemptionService) failure(outcome domain.RedemptionOutcome, redirectURL string) *domain.RedemptionResult {
	if s.cfg.GoneOnAcceptError {
		return &domain.RedemptionResult{Outcome: domain.OutcomeGone}
	}
	return &domain.RedemptionResult{Outcome: outcome, RedirectURL: redirectURL}
}
