package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/querydesk/querydesk/internal/background"
	"github.com/querydesk/querydesk/internal/config"
	"github.com/querydesk/querydesk/internal/database"
	"github.com/querydesk/querydesk/internal/gate"
	"github.com/querydesk/querydesk/internal/handlers"
	"github.com/querydesk/querydesk/internal/metrics"
	middlewareCustom "github.com/querydesk/querydesk/internal/middleware"
	"github.com/querydesk/querydesk/internal/repositories"
	"github.com/querydesk/querydesk/internal/routes"
	"github.com/querydesk/querydesk/internal/search"
	"github.com/querydesk/querydesk/internal/services"
	"github.com/querydesk/querydesk/internal/session"
	"github.com/querydesk/querydesk/internal/vpn"
	pkglogger "github.com/querydesk/querydesk/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("variant", cfg.Variant.Name))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories. The account table is variant-selected so the
	// two deployments never share credentials.
	accountRepo := repositories.NewAccountRepository(db, cfg.Variant.AccountTable)
	historyRepo := repositories.NewHistoryRepository(db)

	// Sessions
	sessions := session.NewStore(cfg.Session.TTL)
	sweeper := background.NewSessionSweeper(sessions, logger, cfg.Session.CleanupInterval)

	// Strict SameSite needs the dashboard served from the API origin;
	// development runs them on separate ports, so fall back to Lax there.
	sameSite := "lax"
	if cfg.Server.IsProduction() {
		sameSite = "strict"
	}
	cookieCfg := session.CookieConfig{
		Secure:   cfg.Server.IsProduction(),
		SameSite: sameSite,
		MaxAge:   int(cfg.Session.TTL.Seconds()),
	}

	// Observability
	m := metrics.New()
	auditLogger := pkglogger.NewAuditLogger(logger)

	// VPN/proxy detection
	detector := vpn.NewDetector(vpn.DefaultBlocklist(), vpn.Config{
		BaseURL:  cfg.Upstream.VPNBaseURL,
		APIKey:   cfg.Upstream.VPNAPIKey,
		Timeout:  cfg.Upstream.VPNTimeout,
		CacheTTL: cfg.Upstream.VPNCacheTTL,
	}, logger)

	// Upstream clients
	lookupClient := search.NewLookupClient(cfg.Upstream.LookupBaseURL, cfg.Upstream.LookupAltBaseURL, cfg.Upstream.LookupTimeout)
	vehicleClient := search.NewVehicleClient(cfg.Upstream.VehicleBaseURL, cfg.Upstream.VehicleAPIKey, cfg.Upstream.VehicleTimeout)
	geoipClient := search.NewGeoIPClient(cfg.Upstream.GeoIPBaseURL, cfg.Upstream.GeoIPTimeout)

	// Initialize services
	authService := services.NewAuthService(accountRepo, cfg.Variant, cfg.Superuser.Username, cfg.Superuser.Password, logger, auditLogger)
	accountService := services.NewAccountService(accountRepo, historyRepo, cfg.Variant, logger, auditLogger)
	searchService := search.NewService(lookupClient, vehicleClient, geoipClient, accountRepo, historyRepo, cfg.Variant, auditLogger, m, logger)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, sessions, cfg.Session.Secret, cookieCfg)
	accountHandler := handlers.NewAccountHandler(accountService, cfg.Variant)
	searchHandler := handlers.NewSearchHandler(searchService)

	if cfg.Superuser.Username == "" || cfg.Superuser.Password == "" {
		logger.Warn("superuser login disabled, credentials not configured",
			slog.String("env_prefix", cfg.Variant.SuperuserEnv))
	} else {
		logger.Info("superuser login enabled",
			pkglogger.RedactedAttr("superuser_username", cfg.Superuser.Username, cfg.Server.Env))
	}

	// Setup router. The first three gate checks apply to every request;
	// routes attach the rest per group.
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(m.Middleware)
	router.Use(gate.SecurityHeaders())
	router.Use(gate.InterceptGuard(auditLogger, m))
	router.Use(gate.OriginGate(gate.OriginConfig{AllowedOrigins: cfg.Server.AllowedOrigins}, auditLogger, m))
	router.Use(middlewareCustom.RequestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, accountHandler, searchHandler,
		gate.Deps{
			Detector: detector,
			Sessions: sessions,
			Secret:   cfg.Session.Secret,
			Cookie:   cookieCfg,
			Variant:  cfg.Variant,
			Audit:    auditLogger,
			Metrics:  m,
		},
		routes.RateLimits{
			LoginLimit:   cfg.RateLimit.LoginLimit,
			LoginWindow:  cfg.RateLimit.LoginWindow,
			SearchLimit:  cfg.RateLimit.SearchLimit,
			SearchWindow: cfg.RateLimit.SearchWindow,
		})

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := db.HealthCheck(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Prometheus scrape endpoint
	router.Method(http.MethodGet, "/metrics", m.Handler())

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start session sweeper
	sweeperCtx, sweeperCancel := context.WithCancel(context.Background())
	defer sweeperCancel()

	go sweeper.Start(sweeperCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	sweeperCancel()
	sweeper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
