package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/creditd/creditd-api/internal/config"
	"github.com/creditd/creditd-api/internal/domain/checkout"
	"github.com/creditd/creditd-api/internal/domain/ledger"
	"github.com/creditd/creditd-api/internal/domain/reconcile"
	"github.com/creditd/creditd-api/internal/middleware"
	"github.com/creditd/creditd-api/internal/pkg/database"
	"github.com/creditd/creditd-api/internal/pkg/email"
	"github.com/creditd/creditd-api/internal/pkg/gateway"
	"github.com/creditd/creditd-api/internal/pkg/jwt"
	"github.com/creditd/creditd-api/internal/pkg/logger"
	pkgresponse "github.com/creditd/creditd-api/internal/pkg/response"
)

// repairInterval is how often the reconciler sweeps for sessions whose
// credit grant never landed.
const repairInterval = 5 * time.Minute

func main() {
	cfg := config.Load()

	if err := logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Int("credit_packs", len(cfg.CreditPacks)).
		Msg("Starting Creditd API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	gatewayClient, err := gateway.NewClient(gateway.Config{
		BaseURL:       cfg.GatewayBaseURL,
		APIKey:        cfg.GatewayAPIKey,
		WebhookSecret: cfg.GatewayWebhookSecret,
		Timeout:       cfg.GatewayTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create gateway client")
	}

	var emailService *email.Service
	if cfg.EmailEnabled {
		emailService = email.NewService(email.Config{
			APIKey:    cfg.EmailAPIKey,
			FromEmail: cfg.EmailFromAddr,
			FromName:  cfg.EmailFromName,
		})
	}

	// ---------- Repositories ----------
	ledgerRepo := ledger.NewRepository(db)
	attemptRepo := checkout.NewRepository(db)
	sessionRepo := reconcile.NewRepository(db)

	// ---------- Services ----------
	ledgerService := ledger.NewService(ledgerRepo, emailService)
	limiter := checkout.NewLimiter(attemptRepo)
	checkoutService := checkout.NewService(attemptRepo, limiter, gatewayClient, cfg.CreditPacks, checkout.Options{
		SuccessURL:  cfg.FrontendURL + "/credits/success",
		CancelURL:   cfg.FrontendURL + "/credits/cancel",
		CheckoutTTL: cfg.CheckoutTTL,
	})
	reconcileService := reconcile.NewService(gatewayClient, sessionRepo, ledgerService, redis, emailService)

	// ---------- Handlers ----------
	ledgerHandler := ledger.NewHandler(ledgerService)
	checkoutHandler := checkout.NewHandler(checkoutService)
	reconcileHandler := reconcile.NewHandler(reconcileService)

	authMiddleware := middleware.Auth(jwtService)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/checkout", checkoutHandler.Routes(authMiddleware))
		r.Mount("/credits", ledgerHandler.Routes(authMiddleware))
		r.Mount("/webhooks", reconcileHandler.Routes())
	})

	// Background sweep for grants interrupted between the session insert
	// and the balance update. Runs once at startup, then on a ticker.
	repairCtx, stopRepair := context.WithCancel(context.Background())
	go runRepairLoop(repairCtx, reconcileService)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	stopRepair()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

func runRepairLoop(ctx context.Context, svc *reconcile.Service) {
	runRepair(ctx, svc)

	ticker := time.NewTicker(repairInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runRepair(ctx, svc)
		}
	}
}

func runRepair(ctx context.Context, svc *reconcile.Service) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	repaired, err := svc.RepairPending(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Pending grant repair sweep failed")
		return
	}
	if repaired > 0 {
		log.Info().Int("repaired", repaired).Msg("Repaired pending credit grants")
	}
}
