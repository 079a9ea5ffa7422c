package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"inviteservice/config"
	_ "inviteservice/docs"
	"inviteservice/internal/adapters/auth"
	"inviteservice/internal/adapters/email"
	deliveryhttp "inviteservice/internal/delivery/http"
	"inviteservice/internal/delivery/http/middleware"
	"inviteservice/internal/domain"
	"inviteservice/internal/events"
	"inviteservice/internal/repository/postgres"
	"inviteservice/internal/services"
)

const requestTimeout = 10 * time.Second

// @title Invite Service API
// @version 1.0
// @description Issues single-use, time-limited invitation tokens that gate account registration, and validates them on redemption.
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	logger := config.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		logger.Error("failed to open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "err", err)
		os.Exit(1)
	}

	invitationRepo := postgres.NewInvitationRepository(db)
	userRepo := postgres.NewUserRepository(db)

	mailer, err := email.NewMailer(cfg.Mail, logger)
	if err != nil {
		logger.Error("failed to create mailer", "err", err)
		os.Exit(1)
	}
	emailService := services.NewEmailService(mailer, email.NewTemplateRenderer())

	bus := events.NewBus(logger)

	issuance := services.NewIssuanceService(invitationRepo, userRepo, emailService, bus, cfg, requestTimeout)
	redemption := services.NewRedemptionService(invitationRepo, bus, cfg, requestTimeout)
	query := services.NewInvitationQueryService(invitationRepo, cfg, requestTimeout)

	// Subscribers registered at startup; no global dispatch.
	bus.Subscribe(domain.EventUserSignedUp, func(ctx context.Context, payload any) {
		if !cfg.AcceptInviteAfterSignup {
			return
		}
		p, ok := payload.(domain.UserSignedUpPayload)
		if !ok {
			return
		}
		if err := redemption.HandleSignupCompleted(ctx, p.Email); err != nil {
			logger.Error("failed to accept invitation after signup", "email", p.Email, "err", err)
		}
	})
	bus.Subscribe(domain.EventInvitationRedeemed, func(ctx context.Context, payload any) {
		if p, ok := payload.(domain.InvitationRedeemedPayload); ok {
			logger.Info("invitation redeemed", "email", p.Email, "inviter_id", p.InviterID)
		}
	})

	verifier := auth.NewJWTVerifier(cfg.JWTSecret)
	controller := deliveryhttp.NewInvitationController(logger, issuance, redemption, query, bus, cfg)
	mux := deliveryhttp.NewRouter(controller, verifier)

	handler := middleware.LoggingMiddleware(logger, middleware.CORS(nil, mux))
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Port, "env", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "err", err)
	}
	logger.Info("server stopped")
}
