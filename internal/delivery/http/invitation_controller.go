package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"inviteservice/config"
	"inviteservice/internal/delivery/http/helpers"
	"inviteservice/internal/delivery/http/middleware"
	"inviteservice/internal/domain"
)

// InviteRequest is the request body for POST /invitations.
type InviteRequest struct {
	Email string `json:"email"`
}

// Validate implements Validator.
func (r InviteRequest) Validate() []string {
	if strings.TrimSpace(r.Email) == "" {
		return []string{"email is required"}
	}
	return nil
}

// InviteBatchRequest is the request body for POST /invitations/batch.
type InviteBatchRequest struct {
	Emails []string `json:"emails"`
}

// Validate implements Validator.
func (r InviteBatchRequest) Validate() []string {
	if len(r.Emails) == 0 {
		return []string{"emails is required"}
	}
	return nil
}

// RedeemRequest is the request body for POST /invitations/redeem.
type RedeemRequest struct {
	Token string `json:"token"`
}

// Validate implements Validator.
func (r RedeemRequest) Validate() []string {
	if strings.TrimSpace(r.Token) == "" {
		return []string{"token is required"}
	}
	return nil
}

// SignupCompletedRequest is the request body for POST /hooks/signup.
type SignupCompletedRequest struct {
	Email string `json:"email"`
}

// Validate implements Validator.
func (r SignupCompletedRequest) Validate() []string {
	if strings.TrimSpace(r.Email) == "" {
		return []string{"email is required"}
	}
	return nil
}

// DeleteExpiredResponse is the response body for DELETE /invitations/expired.
type DeleteExpiredResponse struct {
	Deleted int64 `json:"deleted"`
}

// SignupOpenResponse is the response body for GET /signup/open.
type SignupOpenResponse struct {
	Open bool `json:"open"`
}

// InvitationController handles invitation issuance, redemption, listing, and
// the expiry sweep.
type InvitationController struct {
	Logger     *slog.Logger
	Issuance   domain.IssuanceService
	Redemption domain.RedemptionService
	Query      domain.InvitationQueryService
	Bus        domain.EventBus
	Cfg        *config.Config
}

// NewInvitationController creates an InvitationController.
func NewInvitationController(logger *slog.Logger,
	issuance domain.IssuanceService,
	redemption domain.RedemptionService,
	query domain.InvitationQueryService,
	bus domain.EventBus,
	cfg *config.Config,
) *InvitationController {
	return &InvitationController{
		Logger:     logger,
		Issuance:   issuance,
		Redemption: redemption,
		Query:      query,
		Bus:        bus,
		Cfg:        cfg,
	}
}

// Invite godoc
// @Summary Invite an email address
// @Description Issue a single-use invitation for the email and send the invite mail. The authenticated user becomes the inviter reference.
// @Tags invitations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body InviteRequest true "Candidate email"
// @Success 201 {object} helpers.APIResponse "data contains the created invitation"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 502 {object} helpers.APIResponse "error.code: bad_gateway (mail dispatch failed; the invitation exists but was not sent)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /invitations [post]
func (c *InvitationController) Invite(w http.ResponseWriter, r *http.Request) {
	var req InviteRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	inviterID, _ := middleware.UserIDFromContext(r.Context())
	inv, err := c.Issuance.Invite(r.Context(), req.Email, inviterID)
	if err != nil {
		c.writeIssuanceError(w, r, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, inv)
}

// InviteBatch godoc
// @Summary Invite multiple email addresses
// @Description Issue invitations for a set of emails. Candidates are evaluated independently; the response partitions them into issued and rejected-with-reason.
// @Tags invitations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body InviteBatchRequest true "Candidate emails"
// @Success 201 {object} helpers.APIResponse "data contains issued and rejected partitions; at least one candidate was issued"
// @Failure 400 {object} helpers.APIResponse "every candidate was rejected; data-shaped partition in error.message absent, body carries the partition"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /invitations/batch [post]
func (c *InvitationController) InviteBatch(w http.ResponseWriter, r *http.Request) {
	var req InviteBatchRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	inviterID, _ := middleware.UserIDFromContext(r.Context())
	result, err := c.Issuance.InviteBatch(r.Context(), req.Emails, inviterID)
	if err != nil {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	// Partial success still counts as created; all-rejected is a 400.
	status := http.StatusCreated
	if len(result.Issued) == 0 {
		status = http.StatusBadRequest
	}
	helpers.WriteJSONSuccess(w, status, result)
}

// Accept godoc
// @Summary Accept an invitation (browser flow)
// @Description Redeem the invite link token and redirect the recipient. GET confirms only when confirm-on-GET is enabled. In strict mode every failure is a 410.
// @Tags invitations
// @Produce json
// @Param token path string true "Invitation token"
// @Success 302 {string} string "redirect to signup (success) or login/signup (failure, permissive mode)"
// @Failure 404 {object} helpers.APIResponse "confirm-on-GET disabled"
// @Failure 410 {object} helpers.APIResponse "error.code: gone (strict mode)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /invitations/accept/{token} [get]
func (c *InvitationController) Accept(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && !c.Cfg.ConfirmInviteOnGet {
		helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "not found")
		return
	}
	result, err := c.Redemption.Redeem(r.Context(), r.PathValue("token"))
	if err != nil {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	if result.Outcome == domain.OutcomeGone {
		helpers.WriteJSONError(w, http.StatusGone, helpers.ErrCodeGone, "invitation gone")
		return
	}
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

// Redeem godoc
// @Summary Redeem an invitation token (API flow)
// @Description Walk the redemption state machine for the token and return the outcome plus the redirect target. Outcomes: accepted, pending (deferred acceptance), already-accepted, expired, not-found, gone (strict mode).
// @Tags invitations
// @Accept json
// @Produce json
// @Param body body RedeemRequest true "Invitation token"
// @Success 200 {object} helpers.APIResponse "data contains outcome, redirect_url, and the verified email on success"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (already accepted)"
// @Failure 410 {object} helpers.APIResponse "error.code: gone (expired, or any failure in strict mode)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /invitations/redeem [post]
func (c *InvitationController) Redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	result, err := c.Redemption.Redeem(r.Context(), req.Token)
	if err != nil {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	helpers.WriteJSONSuccess(w, redemptionStatus(result.Outcome), result)
}

// ListValid godoc
// @Summary List valid invitations
// @Description Pending invitations that are neither accepted nor expired, evaluated against the current time.
// @Tags invitations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse "data contains the invitations"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /invitations/valid [get]
func (c *InvitationController) ListValid(w http.ResponseWriter, r *http.Request) {
	invs, err := c.Query.ListValid(r.Context())
	if err != nil {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, invs)
}

// ListExpired godoc
// @Summary List expired invitations
// @Description Accepted invitations plus pending ones whose expiry window has closed.
// @Tags invitations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse "data contains the invitations"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /invitations/expired [get]
func (c *InvitationController) ListExpired(w http.ResponseWriter, r *http.Request) {
	invs, err := c.Query.ListExpired(r.Context())
	if err != nil {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, invs)
}

// DeleteExpired godoc
// @Summary Purge expired invitations
// @Description Delete every accepted-or-expired invitation. Idempotent: re-running when nothing is expired deletes zero rows.
// @Tags invitations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse "data contains the deleted count"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /invitations/expired [delete]
func (c *InvitationController) DeleteExpired(w http.ResponseWriter, r *http.Request) {
	deleted, err := c.Query.DeleteExpired(r.Context())
	if err != nil {
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, DeleteExpiredResponse{Deleted: deleted})
}

// SignupCompleted godoc
// @Summary Registration-completed callback
// @Description Called by the web application when a registration finishes. Emits the signed-up event; in deferred-acceptance mode a listener correlates it with the pending invitation for the same email.
// @Tags hooks
// @Accept json
// @Produce json
// @Param body body SignupCompletedRequest true "Registered email"
// @Success 202 {object} helpers.APIResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Router /hooks/signup [post]
func (c *InvitationController) SignupCompleted(w http.ResponseWriter, r *http.Request) {
	var req SignupCompletedRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	c.Bus.Emit(r.Context(), domain.EventUserSignedUp, domain.UserSignedUpPayload{Email: req.Email})
	helpers.WriteJSONSuccess(w, http.StatusAccepted, nil)
}

// SignupOpen godoc
// @Summary Is open signup allowed
// @Description Reports whether uninvited registration is allowed (invitation-only mode toggle).
// @Tags hooks
// @Produce json
// @Success 200 {object} helpers.APIResponse "data contains the open flag"
// @Router /signup/open [get]
func (c *InvitationController) SignupOpen(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSONSuccess(w, http.StatusOK, SignupOpenResponse{Open: c.Issuance.SignupOpen()})
}

// writeIssuanceError maps issuance errors onto the envelope: business-rule
// verdicts become field-level 400s, a failed mail dispatch is a 502 (the
// record exists, unsent), everything else is a 500.
func (c *InvitationController) writeIssuanceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrAlreadyInvited),
		errors.Is(err, domain.ErrAlreadyAccepted),
		errors.Is(err, domain.ErrUserRegistered):
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, err.Error())
	case errors.Is(err, domain.ErrMailDispatch):
		helpers.WriteJSONError(w, http.StatusBadGateway, helpers.ErrCodeBadGateway, err.Error())
	default:
		c.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "method", r.Method, "err", err)
		helpers.WriteJSONError(w, http.StatusInternalServerError, helpers.ErrCodeInternalError, err.Error())
	}
}

func redemptionStatus(outcome domain.RedemptionOutcome) int {
	switch outcome {
	case domain.OutcomeAccepted, domain.OutcomePending:
		return http.StatusOK
	case domain.OutcomeNotFound:
		return http.StatusNotFound
	case domain.OutcomeAlreadyAccepted:
		return http.StatusConflict
	default:
		return http.StatusGone
	}
}
