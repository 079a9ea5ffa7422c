package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"inviteservice/internal/domain"
)

// fakeInvitationRepo is an in-memory domain.InvitationRepository sharing the
// Postgres repository's threshold semantics: a row is expired iff accepted
// or sent strictly before sentBefore.
type fakeInvitationRepo struct {
	byID map[string]*domain.Invitation
	seq  int

	createErr       error
	getErr          error
	markSentErr     error
	markAcceptedErr error
}

func newFakeInvitationRepo() *fakeInvitationRepo {
	return &fakeInvitationRepo{byID: make(map[string]*domain.Invitation)}
}

func (f *fakeInvitationRepo) add(inv *domain.Invitation) *domain.Invitation {
	f.seq++
	if inv.ID == "" {
		inv.ID = fmt.Sprintf("inv-%d", f.seq)
	}
	cp := *inv
	f.byID[cp.ID] = &cp
	return &cp
}

func (f *fakeInvitationRepo) Create(ctx context.Context, inv *domain.Invitation) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.byID {
		if existing.Token == inv.Token {
			return domain.ErrDuplicateToken
		}
	}
	f.seq++
	inv.ID = fmt.Sprintf("inv-%d", f.seq)
	cp := *inv
	f.byID[cp.ID] = &cp
	return nil
}

func (f *fakeInvitationRepo) GetByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, inv := range f.byID {
		if inv.Token == token {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, domain.ErrInvitationNotFound
}

func (f *fakeInvitationRepo) GetValidByEmail(ctx context.Context, email string, sentBefore time.Time) (*domain.Invitation, error) {
	for _, inv := range f.byID {
		if strings.EqualFold(inv.Email, email) && !expired(inv, sentBefore) && !inv.Accepted {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, domain.ErrInvitationNotFound
}

func (f *fakeInvitationRepo) ExistsAcceptedByEmail(ctx context.Context, email string) (bool, error) {
	for _, inv := range f.byID {
		if strings.EqualFold(inv.Email, email) && inv.Accepted {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeInvitationRepo) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	if f.markSentErr != nil {
		return f.markSentErr
	}
	inv, ok := f.byID[id]
	if !ok {
		return domain.ErrInvitationNotFound
	}
	inv.Sent = &sentAt
	return nil
}

func (f *fakeInvitationRepo) MarkAccepted(ctx context.Context, id string) (bool, error) {
	if f.markAcceptedErr != nil {
		return false, f.markAcceptedErr
	}
	inv, ok := f.byID[id]
	if !ok || inv.Accepted {
		return false, nil
	}
	inv.Accepted = true
	return true, nil
}

func (f *fakeInvitationRepo) ListValid(ctx context.Context, sentBefore time.Time) ([]*domain.Invitation, error) {
	var out []*domain.Invitation
	for _, inv := range f.byID {
		if !expired(inv, sentBefore) {
			cp := *inv
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeInvitationRepo) ListExpired(ctx context.Context, sentBefore time.Time) ([]*domain.Invitation, error) {
	var out []*domain.Invitation
	for _, inv := range f.byID {
		if expired(inv, sentBefore) {
			cp := *inv
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeInvitationRepo) DeleteExpired(ctx context.Context, sentBefore time.Time) (int64, error) {
	var deleted int64
	for id, inv := range f.byID {
		if expired(inv, sentBefore) {
			delete(f.byID, id)
			deleted++
		}
	}
	return deleted, nil
}

func expired(inv *domain.Invitation, sentBefore time.Time) bool {
	return inv.Accepted || (inv.Sent != nil && inv.Sent.Before(sentBefore))
}

// fakeUserReader implements domain.UserReader for tests.
type fakeUserReader struct {
	registered map[string]bool
	users      map[string]*domain.User
	existsErr  error
}

func newFakeUserReader() *fakeUserReader {
	return &fakeUserReader{
		registered: make(map[string]bool),
		users:      make(map[string]*domain.User),
	}
}

func (f *fakeUserReader) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.registered[strings.ToLower(email)], nil
}

func (f *fakeUserReader) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

// fakeEmailService implements domain.EmailService for tests.
type fakeEmailService struct {
	err  error
	sent []*domain.InvitationEmailData
}

func (f *fakeEmailService) SendInvitation(ctx context.Context, data *domain.InvitationEmailData) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, data)
	return nil
}

// fakeBus implements domain.EventBus for tests, recording every emit.
type fakeBus struct {
	emitted  []busEvent
	handlers map[string][]func(ctx context.Context, payload any)
}

type busEvent struct {
	name    string
	payload any
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: make(map[string][]func(ctx context.Context, payload any))}
}

func (f *fakeBus) Emit(ctx context.Context, event string, payload any) {
	f.emitted = append(f.emitted, busEvent{name: event, payload: payload})
	for _, h := range f.handlers[event] {
		h(ctx, payload)
	}
}

func (f *fakeBus) Subscribe(event string, handler func(ctx context.Context, payload any)) {
	f.handlers[event] = append(f.handlers[event], handler)
}

func (f *fakeBus) count(event string) int {
	n := 0
	for _, e := range f.emitted {
		if e.name == event {
			n++
		}
	}
	return n
}
