package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/confero/checkin-api/internal/domain"
	"github.com/confero/checkin-api/internal/http/handlers"
	mw "github.com/confero/checkin-api/internal/http/middleware"
	"github.com/confero/checkin-api/internal/mailer"
	"github.com/confero/checkin-api/internal/notify"
	"github.com/confero/checkin-api/internal/repo/postgres"
	"github.com/confero/checkin-api/internal/service"
	"github.com/confero/checkin-api/pkg/config"
	"github.com/confero/checkin-api/pkg/database"
	"github.com/confero/checkin-api/pkg/events"
	"github.com/confero/checkin-api/pkg/logger"
	pkgmw "github.com/confero/checkin-api/pkg/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx := context.Background()

	// Connect to database and apply migrations
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.Migrate(cfg.Database); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Connect to redis (rate limiting)
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Error("Invalid redis URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	// Connect to event bus
	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// Repositories
	participantRepo := postgres.NewParticipantRepo(pool)
	adminRepo := postgres.NewAdminRepo(pool)

	// Services
	approvalService := service.NewApprovalService(participantRepo, eventBus)
	authService := service.NewAuthService(adminRepo, participantRepo, cfg)

	// Event consumers
	roster := notify.NewRoster()
	for offset := 0; ; offset += 100 {
		page, err := participantRepo.List(ctx, nil, 100, offset)
		if err != nil {
			logger.Warn("Failed to prime roster", "error", err)
			break
		}
		roster.Prime(page)
		if len(page) < 100 {
			break
		}
	}
	if err := roster.Start(eventBus); err != nil {
		logger.Error("Failed to subscribe roster", "error", err)
		os.Exit(1)
	}

	var mailService mailer.Service
	switch cfg.Email.Provider {
	case "mailersend":
		mailService = mailer.NewMailerSend(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.FromAddress)
	case "smtp":
		mailService = mailer.NewSMTPMailer(
			cfg.Email.SMTPHost, cfg.Email.SMTPPort,
			cfg.Email.FromAddress, cfg.Email.FromName,
			cfg.Email.SMTPUser, cfg.Email.SMTPPass, cfg.Email.SMTPUseTLS,
		)
	default:
		mailService = mailer.NewDevMailer()
	}
	emailNotifier := notify.NewEmailNotifier(mailService)
	if err := emailNotifier.Start(eventBus); err != nil {
		logger.Error("Failed to subscribe email notifier", "error", err)
		os.Exit(1)
	}

	// Handlers
	h := handlers.New(approvalService, authService, roster)

	loginLimiter := mw.NewRateLimiter(rdb, mw.RateLimitConfig{
		Requests: 10,
		Window:   time.Minute,
	})
	scanLimiter := mw.NewRateLimiter(rdb, mw.RateLimitConfig{
		Requests: 60,
		Window:   time.Minute,
	})

	// Setup router
	r := chi.NewRouter()

	r.Use(pkgmw.RequestID)
	r.Use(pkgmw.ServiceName("checkin-api"))
	r.Use(pkgmw.Logging)
	r.Use(pkgmw.Recover)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(pkgmw.Health)

	secret := cfg.Auth.JWTSecret

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(loginLimiter.Middleware()).Post("/login", h.Login)
			r.Post("/refresh", h.RefreshToken)
		})

		// Participant routes. Status and QR fetch are never gated on
		// approval; the schedule is.
		r.Route("/me", func(r chi.Router) {
			r.Use(mw.RequireJWT(secret, domain.RoleParticipant))
			r.Get("/status", h.OwnStatus)
			r.Get("/qr", h.OwnCredential)
			r.With(mw.RequireApproved(participantRepo)).Get("/schedule", h.OwnSchedule)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(mw.RequireJWT(secret, domain.RoleAdmin, domain.RoleSuperAdmin))
			r.With(scanLimiter.Middleware()).Post("/scan", h.Scan)
			r.Route("/participants", func(r chi.Router) {
				r.Get("/", h.ListParticipants)
				r.Post("/reset", h.BulkReset)
				r.Get("/{id}", h.GetParticipant)
				r.Post("/{id}/approve", h.Approve)
				r.Post("/{id}/reject", h.Reject)
			})
			r.Get("/roster/summary", h.RosterSummary)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down checkin-api...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Shutdown error", "error", err)
		}
	}()

	logger.Info("Starting checkin-api", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
