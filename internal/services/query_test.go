package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inviteservice/internal/domain"
)

// seedQueryRepo loads one invitation of each lifecycle shape: pending and
// fresh, pending and expired, never sent, accepted.
func seedQueryRepo() *fakeInvitationRepo {
	repo := newFakeInvitationRepo()
	fresh := time.Now().Add(-time.Hour)
	stale := time.Now().Add(-4 * 24 * time.Hour)
	repo.add(&domain.Invitation{Token: "fresh", Email: "fresh@example.com", Sent: &fresh})
	repo.add(&domain.Invitation{Token: "stale", Email: "stale@example.com", Sent: &stale})
	repo.add(&domain.Invitation{Token: "draft", Email: "draft@example.com"})
	repo.add(&domain.Invitation{Token: "used", Email: "used@example.com", Sent: &fresh, Accepted: true})
	return repo
}

func TestInvitationQueryService_Partition(t *testing.T) {
	repo := seedQueryRepo()
	service := NewInvitationQueryService(repo, testConfig(), time.Second)

	valid, err := service.ListValid(context.Background())
	require.NoError(t, err)
	expired, err := service.ListExpired(context.Background())
	require.NoError(t, err)

	validEmails := emails(valid)
	expiredEmails := emails(expired)

	assert.ElementsMatch(t, []string{"fresh@example.com", "draft@example.com"}, validEmails)
	assert.ElementsMatch(t, []string{"stale@example.com", "used@example.com"}, expiredEmails)

	// The two sets partition the full record set.
	assert.Len(t, append(validEmails, expiredEmails...), len(repo.byID))
	for _, e := range validEmails {
		assert.NotContains(t, expiredEmails, e)
	}
}

func TestInvitationQueryService_DeleteExpired(t *testing.T) {
	repo := seedQueryRepo()
	service := NewInvitationQueryService(repo, testConfig(), time.Second)

	deleted, err := service.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	valid, err := service.ListValid(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"fresh@example.com", "draft@example.com"}, emails(valid))

	// Re-running with nothing expired deletes zero rows.
	deleted, err = service.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Len(t, repo.byID, 2)
}

func emails(invs []*domain.Invitation) []string {
	out := make([]string, 0, len(invs))
	for _, inv := range invs {
		out = append(out, inv.Email)
	}
	return out
}
