package http

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"inviteservice/internal/delivery/http/middleware"
	"inviteservice/internal/domain"
)

// NewRouter initializes the HTTP router with all application routes.
// Issuance, listing, and the expiry sweep require a Bearer token; the accept
// and redeem endpoints are public since the token itself is the credential.
func NewRouter(invitations *InvitationController, verifier domain.TokenVerifier) *http.ServeMux {
	mux := http.NewServeMux()
	requireAuth := middleware.RequireAuth(verifier)

	// Issuance
	mux.HandleFunc("POST /invitations", requireAuth(invitations.Invite))
	mux.HandleFunc("POST /invitations/batch", requireAuth(invitations.InviteBatch))

	// Redemption
	mux.HandleFunc("GET /invitations/accept/{token}", invitations.Accept)
	mux.HandleFunc("POST /invitations/accept/{token}", invitations.Accept)
	mux.HandleFunc("POST /invitations/redeem", invitations.Redeem)

	// Queries and cleanup sweep
	mux.HandleFunc("GET /invitations/valid", requireAuth(invitations.ListValid))
	mux.HandleFunc("GET /invitations/expired", requireAuth(invitations.ListExpired))
	mux.HandleFunc("DELETE /invitations/expired", requireAuth(invitations.DeleteExpired))

	// Registration hooks
	mux.HandleFunc("POST /hooks/signup", invitations.SignupCompleted)
	mux.HandleFunc("GET /signup/open", invitations.SignupOpen)

	// Swagger
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}
