package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"inviteservice/config"
	"inviteservice/internal/domain"
)

var emailRegexp = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

const tokenLength = 64

var tokenAlphabet = []rune("abcdefghijklmnopqrstuvwxyz0123456789")

// generateToken returns a fresh redemption token: tokenLength characters from
// a cryptographically strong source, lower-cased alphabet so lookups stay
// case-insensitive by construction.
func generateToken() (string, error) {
	b := make([]rune, tokenLength)
	max := big.NewInt(int64(len(tokenAlphabet)))
	for i := 0; i < tokenLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = tokenAlphabet[n.Int64()]
	}
	return string(b), nil
}

type issuanceService struct {
	invitationRepo domain.InvitationRepository
	userReader     domain.UserReader
	emailService   domain.EmailService
	bus            domain.EventBus
	cfg            *config.Config
	contextTimeout time.Duration
}

// NewIssuanceService creates the issuance gateway with the given storage,
// identity store, mail service, and event bus.
func NewIssuanceService(invitationRepo domain.InvitationRepository,
	userReader domain.UserReader,
	emailService domain.EmailService,
	bus domain.EventBus,
	cfg *config.Config,
	timeout time.Duration,
) domain.IssuanceService {
	return &issuanceService{
		invitationRepo: invitationRepo,
		userReader:     userReader,
		emailService:   emailService,
		bus:            bus,
		cfg:            cfg,
		contextTimeout: timeout,
	}
}

func (s *issuanceService) Invite(ctx context.Context, email, inviterID string) (*domain.Invitation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	return s.invite(ctx, email, inviterID)
}

// invite runs the full issuance flow for one candidate without installing
// another timeout, so InviteBatch shares one deadline across the batch.
func (s *issuanceService) invite(ctx context.Context, email, inviterID string) (*domain.Invitation, error) {
	email, err := s.cleanEmail(email)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, email); err != nil {
		return nil, err
	}

	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	inv := &domain.Invitation{
		Token:     token,
		Email:     email,
		CreatedAt: time.Now(),
		InviterID: inviterID,
	}
	if err := s.invitationRepo.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}

	inviteURL := s.cfg.BaseURL + "/invitations/accept/" + token
	data := &domain.InvitationEmailData{
		Email:       email,
		Token:       token,
		InviteURL:   inviteURL,
		InviterName: s.inviterName(ctx, inviterID),
		SiteName:    s.cfg.SiteName,
	}
	if err := s.emailService.SendInvitation(ctx, data); err != nil {
		// The record stays with a NULL sent timestamp; the send can be
		// retried by the caller. No internal retry here.
		return nil, fmt.Errorf("%w: %w", domain.ErrMailDispatch, err)
	}

	sentAt := time.Now()
	if err := s.invitationRepo.MarkSent(ctx, inv.ID, sentAt); err != nil {
		return nil, fmt.Errorf("mark sent: %w", err)
	}
	inv.Sent = &sentAt

	s.bus.Emit(ctx, domain.EventInvitationSent, domain.InvitationSentPayload{
		Invitation: inv,
		InviteURL:  inviteURL,
		InviterID:  inviterID,
	})
	return inv, nil
}

func (s *issuanceService) InviteBatch(ctx context.Context, emails []string, inviterID string) (*domain.BatchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	result := &domain.BatchResult{
		Issued:   []*domain.Invitation{},
		Rejected: []domain.BatchRejection{},
	}
	for _, email := range emails {
		inv, err := s.invite(ctx, email, inviterID)
		if err != nil {
			reason := rejectionReason(err)
			if reason == "" {
				// Infrastructure failure, not a per-candidate verdict.
				return nil, fmt.Errorf("invite %q: %w", email, err)
			}
			result.Rejected = append(result.Rejected, domain.BatchRejection{
				Email:  strings.TrimSpace(strings.ToLower(email)),
				Reason: reason,
			})
			continue
		}
		result.Issued = append(result.Issued, inv)
	}
	return result, nil
}

func (s *issuanceService) SignupOpen() bool {
	return !s.cfg.InvitationOnly
}

// validate applies the issuance business rules in order; the first match
// wins. An expired-but-unaccepted invitation matches none of them and falls
// through to success, so re-issuing after expiry works.
func (s *issuanceService) validate(ctx context.Context, email string) error {
	sentBefore := time.Now().Add(-s.cfg.InvitationExpiry)
	_, err := s.invitationRepo.GetValidByEmail(ctx, email, sentBefore)
	if err == nil {
		return domain.ErrAlreadyInvited
	}
	if !errors.Is(err, domain.ErrInvitationNotFound) {
		return fmt.Errorf("check pending invitation: %w", err)
	}

	accepted, err := s.invitationRepo.ExistsAcceptedByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("check accepted invitation: %w", err)
	}
	if accepted {
		return domain.ErrAlreadyAccepted
	}

	registered, err := s.userReader.ExistsByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("check registered user: %w", err)
	}
	if registered {
		return domain.ErrUserRegistered
	}
	return nil
}

func (s *issuanceService) cleanEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || len(email) > s.cfg.EmailMaxLength || !emailRegexp.MatchString(email) {
		return "", domain.ErrInvalidEmail
	}
	return email, nil
}

func (s *issuanceService) inviterName(ctx context.Context, inviterID string) string {
	if inviterID == "" {
		return ""
	}
	inviter, err := s.userReader.GetByID(ctx, inviterID)
	if err != nil {
		// Mail still goes out without inviter display data.
		return ""
	}
	return inviter.DisplayName()
}

// rejectionReason maps an issuance error to the user-facing per-candidate
// reason, or "" if the error is not a candidate verdict.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidEmail):
		return domain.ErrInvalidEmail.Error()
	case errors.Is(err, domain.ErrAlreadyInvited):
		return domain.ErrAlreadyInvited.Error()
	case errors.Is(err, domain.ErrAlreadyAccepted):
		return domain.ErrAlreadyAccepted.Error()
	case errors.Is(err, domain.ErrUserRegistered):
		return domain.ErrUserRegistered.Error()
	case errors.Is(err, domain.ErrMailDispatch):
		return domain.ErrMailDispatch.Error()
	default:
		return ""
	}
}
