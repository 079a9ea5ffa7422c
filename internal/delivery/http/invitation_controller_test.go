package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inviteservice/config"
	"inviteservice/internal/delivery/http/helpers"
	"inviteservice/internal/domain"
)

// fakeIssuanceService implements domain.IssuanceService for handler tests.
type fakeIssuanceService struct {
	inv         *domain.Invitation
	inviteErr   error
	batchResult *domain.BatchResult
	batchErr    error
	signupOpen  bool

	lastEmail     string
	lastInviterID string
}

func (f *fakeIssuanceService) Invite(ctx context.Context, email, inviterID string) (*domain.Invitation, error) {
	f.lastEmail = email
	f.lastInviterID = inviterID
	if f.inviteErr != nil {
		return nil, f.inviteErr
	}
	return f.inv, nil
}

func (f *fakeIssuanceService) InviteBatch(ctx context.Context, emails []string, inviterID string) (*domain.BatchResult, error) {
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	return f.batchResult, nil
}

func (f *fakeIssuanceService) SignupOpen() bool {
	return f.signupOpen
}

// fakeRedemptionService implements domain.RedemptionService for handler tests.
type fakeRedemptionService struct {
	result    *domain.RedemptionResult
	redeemErr error
	lastToken string
}

func (f *fakeRedemptionService) Redeem(ctx context.Context, token string) (*domain.RedemptionResult, error) {
	f.lastToken = token
	if f.redeemErr != nil {
		return nil, f.redeemErr
	}
	return f.result, nil
}

func (f *fakeRedemptionService) HandleSignupCompleted(ctx context.Context, email string) error {
	return nil
}

// fakeQueryService implements domain.InvitationQueryService for handler tests.
type fakeQueryService struct {
	valid   []*domain.Invitation
	expired []*domain.Invitation
	deleted int64
	err     error
}

func (f *fakeQueryService) ListValid(ctx context.Context) ([]*domain.Invitation, error) {
	return f.valid, f.err
}

func (f *fakeQueryService) ListExpired(ctx context.Context) ([]*domain.Invitation, error) {
	return f.expired, f.err
}

func (f *fakeQueryService) DeleteExpired(ctx context.Context) (int64, error) {
	return f.deleted, f.err
}

// recordingBus implements domain.EventBus for handler tests.
type recordingBus struct {
	events   []string
	payloads []any
}

func (b *recordingBus) Emit(ctx context.Context, event string, payload any) {
	b.events = append(b.events, event)
	b.payloads = append(b.payloads, payload)
}

func (b *recordingBus) Subscribe(event string, handler func(ctx context.Context, payload any)) {}

func testController(issuance *fakeIssuanceService, redemption *fakeRedemptionService, query *fakeQueryService, bus *recordingBus, cfg *config.Config) *InvitationController {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	if cfg == nil {
		cfg = &config.Config{}
	}
	if issuance == nil {
		issuance = &fakeIssuanceService{}
	}
	if redemption == nil {
		redemption = &fakeRedemptionService{}
	}
	if query == nil {
		query = &fakeQueryService{}
	}
	if bus == nil {
		bus = &recordingBus{}
	}
	return NewInvitationController(logger, issuance, redemption, query, bus, cfg)
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) helpers.APIResponse {
	t.Helper()
	var resp helpers.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestInvitationController_Invite(t *testing.T) {
	sent := time.Now()

	tests := []struct {
		name         string
		body         string
		inviteErr    error
		wantStatus   int
		wantBodyCode string
	}{
		{
			name:       "success",
			body:       `{"email":"new@example.com"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:         "missing email",
			body:         `{}`,
			wantStatus:   http.StatusBadRequest,
			wantBodyCode: helpers.ErrCodeBadRequest,
		},
		{
			name:         "malformed json",
			body:         `{"email":`,
			wantStatus:   http.StatusBadRequest,
			wantBodyCode: helpers.ErrCodeBadRequest,
		},
		{
			name:         "already invited",
			body:         `{"email":"taken@example.com"}`,
			inviteErr:    domain.ErrAlreadyInvited,
			wantStatus:   http.StatusBadRequest,
			wantBodyCode: helpers.ErrCodeBadRequest,
		},
		{
			name:         "user registered",
			body:         `{"email":"member@example.com"}`,
			inviteErr:    domain.ErrUserRegistered,
			wantStatus:   http.StatusBadRequest,
			wantBodyCode: helpers.ErrCodeBadRequest,
		},
		{
			name:         "mail dispatch failure",
			body:         `{"email":"new@example.com"}`,
			inviteErr:    domain.ErrMailDispatch,
			wantStatus:   http.StatusBadGateway,
			wantBodyCode: helpers.ErrCodeBadGateway,
		},
		{
			name:         "service error",
			body:         `{"email":"new@example.com"}`,
			inviteErr:    assert.AnError,
			wantStatus:   http.StatusInternalServerError,
			wantBodyCode: helpers.ErrCodeInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issuance := &fakeIssuanceService{
				inv:       &domain.Invitation{ID: "inv-1", Token: "tok", Email: "new@example.com", Sent: &sent},
				inviteErr: tt.inviteErr,
			}
			controller := testController(issuance, nil, nil, nil, nil)

			req := httptest.NewRequest(http.MethodPost, "/invitations", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			controller.Invite(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeResponse(t, rec)
			if tt.wantBodyCode != "" {
				require.NotNil(t, resp.Error)
				assert.Equal(t, tt.wantBodyCode, resp.Error.Code)
			} else {
				assert.Nil(t, resp.Error)
				assert.NotNil(t, resp.Data)
			}
		})
	}
}

func TestInvitationController_InviteBatch(t *testing.T) {
	t.Run("partial success is created", func(t *testing.T) {
		issuance := &fakeIssuanceService{batchResult: &domain.BatchResult{
			Issued:   []*domain.Invitation{{ID: "inv-1", Email: "new@example.com"}},
			Rejected: []domain.BatchRejection{{Email: "bad", Reason: domain.ErrInvalidEmail.Error()}},
		}}
		controller := testController(issuance, nil, nil, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/invitations/batch", bytes.NewBufferString(`{"emails":["new@example.com","bad"]}`))
		rec := httptest.NewRecorder()
		controller.InviteBatch(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("all rejected is a bad request with the partition", func(t *testing.T) {
		issuance := &fakeIssuanceService{batchResult: &domain.BatchResult{
			Issued:   []*domain.Invitation{},
			Rejected: []domain.BatchRejection{{Email: "bad", Reason: domain.ErrInvalidEmail.Error()}},
		}}
		controller := testController(issuance, nil, nil, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/invitations/batch", bytes.NewBufferString(`{"emails":["bad"]}`))
		rec := httptest.NewRecorder()
		controller.InviteBatch(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeResponse(t, rec)
		assert.NotNil(t, resp.Data)
	})

	t.Run("empty emails is rejected", func(t *testing.T) {
		controller := testController(nil, nil, nil, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/invitations/batch", bytes.NewBufferString(`{"emails":[]}`))
		rec := httptest.NewRecorder()
		controller.InviteBatch(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestInvitationController_Accept(t *testing.T) {
	t.Run("GET is not found when confirm-on-GET is off", func(t *testing.T) {
		controller := testController(nil, nil, nil, nil, &config.Config{})

		req := httptest.NewRequest(http.MethodGet, "/invitations/accept/tok", nil)
		req.SetPathValue("token", "tok")
		rec := httptest.NewRecorder()
		controller.Accept(rec, req)

		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("GET redirects when confirm-on-GET is on", func(t *testing.T) {
		redemption := &fakeRedemptionService{result: &domain.RedemptionResult{
			Outcome:     domain.OutcomeAccepted,
			RedirectURL: "http://localhost:8080/signup",
		}}
		controller := testController(nil, redemption, nil, nil, &config.Config{ConfirmInviteOnGet: true})

		req := httptest.NewRequest(http.MethodGet, "/invitations/accept/tok", nil)
		req.SetPathValue("token", "tok")
		rec := httptest.NewRecorder()
		controller.Accept(rec, req)

		require.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "http://localhost:8080/signup", rec.Header().Get("Location"))
		assert.Equal(t, "tok", redemption.lastToken)
	})

	t.Run("POST redirects to the outcome target", func(t *testing.T) {
		redemption := &fakeRedemptionService{result: &domain.RedemptionResult{
			Outcome:     domain.OutcomeExpired,
			RedirectURL: "http://localhost:8080/signup",
		}}
		controller := testController(nil, redemption, nil, nil, &config.Config{})

		req := httptest.NewRequest(http.MethodPost, "/invitations/accept/tok", nil)
		req.SetPathValue("token", "tok")
		rec := httptest.NewRecorder()
		controller.Accept(rec, req)

		require.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "http://localhost:8080/signup", rec.Header().Get("Location"))
	})

	t.Run("strict mode failure is a 410", func(t *testing.T) {
		redemption := &fakeRedemptionService{result: &domain.RedemptionResult{Outcome: domain.OutcomeGone}}
		controller := testController(nil, redemption, nil, nil, &config.Config{})

		req := httptest.NewRequest(http.MethodPost, "/invitations/accept/tok", nil)
		req.SetPathValue("token", "tok")
		rec := httptest.NewRecorder()
		controller.Accept(rec, req)

		require.Equal(t, http.StatusGone, rec.Code)
		resp := decodeResponse(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, helpers.ErrCodeGone, resp.Error.Code)
	})
}

func TestInvitationController_Redeem(t *testing.T) {
	tests := []struct {
		name       string
		result     *domain.RedemptionResult
		wantStatus int
	}{
		{
			name:       "accepted",
			result:     &domain.RedemptionResult{Outcome: domain.OutcomeAccepted, Email: "new@example.com"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "pending",
			result:     &domain.RedemptionResult{Outcome: domain.OutcomePending, Email: "new@example.com"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "not found",
			result:     &domain.RedemptionResult{Outcome: domain.OutcomeNotFound},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "already accepted",
			result:     &domain.RedemptionResult{Outcome: domain.OutcomeAlreadyAccepted},
			wantStatus: http.StatusConflict,
		},
		{
			name:       "expired",
			result:     &domain.RedemptionResult{Outcome: domain.OutcomeExpired},
			wantStatus: http.StatusGone,
		},
		{
			name:       "gone",
			result:     &domain.RedemptionResult{Outcome: domain.OutcomeGone},
			wantStatus: http.StatusGone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			redemption := &fakeRedemptionService{result: tt.result}
			controller := testController(nil, redemption, nil, nil, nil)

			req := httptest.NewRequest(http.MethodPost, "/invitations/redeem", bytes.NewBufferString(`{"token":"tok"}`))
			rec := httptest.NewRecorder()
			controller.Redeem(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeResponse(t, rec)
			require.NotNil(t, resp.Data)
			data, ok := resp.Data.(map[string]any)
			require.True(t, ok)
			assert.Equal(t, string(tt.result.Outcome), data["outcome"])
		})
	}

	t.Run("missing token is rejected", func(t *testing.T) {
		controller := testController(nil, nil, nil, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/invitations/redeem", bytes.NewBufferString(`{}`))
		rec := httptest.NewRecorder()
		controller.Redeem(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestInvitationController_Queries(t *testing.T) {
	t.Run("list valid", func(t *testing.T) {
		query := &fakeQueryService{valid: []*domain.Invitation{{ID: "inv-1", Email: "fresh@example.com"}}}
		controller := testController(nil, nil, query, nil, nil)

		req := httptest.NewRequest(http.MethodGet, "/invitations/valid", nil)
		rec := httptest.NewRecorder()
		controller.ListValid(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("list expired", func(t *testing.T) {
		query := &fakeQueryService{expired: []*domain.Invitation{{ID: "inv-2", Email: "stale@example.com"}}}
		controller := testController(nil, nil, query, nil, nil)

		req := httptest.NewRequest(http.MethodGet, "/invitations/expired", nil)
		rec := httptest.NewRecorder()
		controller.ListExpired(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("delete expired returns the count", func(t *testing.T) {
		query := &fakeQueryService{deleted: 3}
		controller := testController(nil, nil, query, nil, nil)

		req := httptest.NewRequest(http.MethodDelete, "/invitations/expired", nil)
		rec := httptest.NewRecorder()
		controller.DeleteExpired(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		resp := decodeResponse(t, rec)
		data, ok := resp.Data.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(3), data["deleted"])
	})

	t.Run("query error is an internal error", func(t *testing.T) {
		query := &fakeQueryService{err: assert.AnError}
		controller := testController(nil, nil, query, nil, nil)

		req := httptest.NewRequest(http.MethodGet, "/invitations/valid", nil)
		rec := httptest.NewRecorder()
		controller.ListValid(rec, req)

		require.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestInvitationController_SignupCompleted(t *testing.T) {
	t.Run("emits the signed-up event and accepts", func(t *testing.T) {
		bus := &recordingBus{}
		controller := testController(nil, nil, nil, bus, nil)

		req := httptest.NewRequest(http.MethodPost, "/hooks/signup", bytes.NewBufferString(`{"email":"new@example.com"}`))
		rec := httptest.NewRecorder()
		controller.SignupCompleted(rec, req)

		require.Equal(t, http.StatusAccepted, rec.Code)
		require.Equal(t, []string{domain.EventUserSignedUp}, bus.events)
		payload, ok := bus.payloads[0].(domain.UserSignedUpPayload)
		require.True(t, ok)
		assert.Equal(t, "new@example.com", payload.Email)
	})

	t.Run("missing email is rejected without emitting", func(t *testing.T) {
		bus := &recordingBus{}
		controller := testController(nil, nil, nil, bus, nil)

		req := httptest.NewRequest(http.MethodPost, "/hooks/signup", bytes.NewBufferString(`{}`))
		rec := httptest.NewRecorder()
		controller.SignupCompleted(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, bus.events)
	})
}

func TestInvitationController_SignupOpen(t *testing.T) {
	controller := testController(&fakeIssuanceService{signupOpen: true}, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/signup/open", nil)
	rec := httptest.NewRecorder()
	controller.SignupOpen(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, data["open"])
}
