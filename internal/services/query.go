package services

import (
	"context"
	"fmt"
	"time"

	"inviteservice/config"
	"inviteservice/internal/domain"
)

type invitationQueryService struct {
	invitationRepo domain.InvitationRepository
	cfg            *config.Config
	contextTimeout time.Duration
}

// NewInvitationQueryService creates the query engine over the invitation
// record set. The valid/expired split is computed from the configured expiry
// window against "now" at call time.
func NewInvitationQueryService(invitationRepo domain.InvitationRepository,
	cfg *config.Config,
	timeout time.Duration,
) domain.InvitationQueryService {
	return &invitationQueryService{
		invitationRepo: invitationRepo,
		cfg:            cfg,
		contextTimeout: timeout,
	}
}

func (s *invitationQueryService) ListValid(ctx context.Context) ([]*domain.Invitation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	invs, err := s.invitationRepo.ListValid(ctx, s.sentBefore())
	if err != nil {
		return nil, fmt.Errorf("list valid invitations: %w", err)
	}
	return invs, nil
}

func (s *invitationQueryService) ListExpired(ctx context.Context) ([]*domain.Invitation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	invs, err := s.invitationRepo.ListExpired(ctx, s.sentBefore())
	if err != nil {
		return nil, fmt.Errorf("list expired invitations: %w", err)
	}
	return invs, nil
}

// DeleteExpired purges exactly the expired set. Re-running when nothing is
// expired deletes zero rows.
func (s *invitationQueryService) DeleteExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	deleted, err := s.invitationRepo.DeleteExpired(ctx, s.sentBefore())
	if err != nil {
		return 0, fmt.Errorf("delete expired invitations: %w", err)
	}
	return deleted, nil
}

func (s *invitationQueryService) sentBefore() time.Time {
	return time.Now().Add(-s.cfg.InvitationExpiry)
}
