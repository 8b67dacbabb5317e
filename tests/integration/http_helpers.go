package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/querydesk/querydesk/internal/database"
	"github.com/querydesk/querydesk/internal/gate"
	"github.com/querydesk/querydesk/internal/handlers"
	"github.com/querydesk/querydesk/internal/metrics"
	"github.com/querydesk/querydesk/internal/models"
	"github.com/querydesk/querydesk/internal/repositories"
	"github.com/querydesk/querydesk/internal/routes"
	"github.com/querydesk/querydesk/internal/search"
	"github.com/querydesk/querydesk/internal/services"
	"github.com/querydesk/querydesk/internal/session"
	"github.com/querydesk/querydesk/internal/vpn"
	pkglogger "github.com/querydesk/querydesk/pkg/logger"
)

const (
	testSessionSecret = "integration-test-session-secret"

	// A Chrome-shaped UA so the origin gate reads requests as dashboard
	// traffic rather than scripted access.
	browserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

// TestServerConfig selects the variant and upstream stubs for one server
type TestServerConfig struct {
	Variant           models.Variant
	AllowedOrigin     string
	SuperuserUsername string
	SuperuserPassword string
	LookupURL         string
	LookupAltURL      string
	VehicleURL        string
	GeoIPURL          string
	LoginLimit        int
	SearchLimit       int
}

// DefaultTestServerConfig returns the admin-user variant with limits high
// enough that only the dedicated rate-limit tests can trip them.
func DefaultTestServerConfig() TestServerConfig {
	return TestServerConfig{
		Variant:           models.VariantAdminUser,
		AllowedOrigin:     "http://localhost:3000",
		SuperuserUsername: "root",
		SuperuserPassword: "integration-super-secret",
		LoginLimit:        1000,
		SearchLimit:       1000,
	}
}

// TestServer wraps httptest.Server with the full production middleware
// chain, a real session store and real services over the test database.
type TestServer struct {
	Server   *httptest.Server
	DB       *database.DB
	Sessions *session.Store
	Config   TestServerConfig
}

// NewTestServer initializes a complete HTTP server wired like production
func NewTestServer(db *database.DB, cfg TestServerConfig) *TestServer {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	sessions := session.NewStore(30 * time.Minute)
	cookieCfg := session.CookieConfig{Secure: false, SameSite: "lax", MaxAge: 1800}

	m := metrics.New()
	auditLogger := pkglogger.NewAuditLogger(logger)

	// Empty blocklist and no reputation key: the detector passes loopback
	// traffic, which is all a testcontainer run ever sees
	detector := vpn.NewDetector(vpn.NewBlocklist(nil), vpn.Config{
		Timeout:  time.Second,
		CacheTTL: time.Minute,
	}, logger)

	accountRepo := repositories.NewAccountRepository(db, cfg.Variant.AccountTable)
	historyRepo := repositories.NewHistoryRepository(db)

	lookupClient := search.NewLookupClient(cfg.LookupURL, cfg.LookupAltURL, 2*time.Second)
	vehicleClient := search.NewVehicleClient(cfg.VehicleURL, "test-key", 2*time.Second)
	geoipClient := search.NewGeoIPClient(cfg.GeoIPURL, 2*time.Second)

	authService := services.NewAuthService(accountRepo, cfg.Variant, cfg.SuperuserUsername, cfg.SuperuserPassword, logger, auditLogger)
	accountService := services.NewAccountService(accountRepo, historyRepo, cfg.Variant, logger, auditLogger)
	searchService := search.NewService(lookupClient, vehicleClient, geoipClient, accountRepo, historyRepo, cfg.Variant, auditLogger, m, logger)

	authHandler := handlers.NewAuthHandler(authService, sessions, testSessionSecret, cookieCfg)
	accountHandler := handlers.NewAccountHandler(accountService, cfg.Variant)
	searchHandler := handlers.NewSearchHandler(searchService)

	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(m.Middleware)
	router.Use(gate.SecurityHeaders())
	router.Use(gate.InterceptGuard(auditLogger, m))
	router.Use(gate.OriginGate(gate.OriginConfig{AllowedOrigins: []string{cfg.AllowedOrigin}}, auditLogger, m))
	router.Use(chiMiddleware.Recoverer)
	router.Use(chiMiddleware.Timeout(30 * time.Second))

	routes.RegisterRoutes(router, authHandler, accountHandler, searchHandler,
		gate.Deps{
			Detector: detector,
			Sessions: sessions,
			Secret:   testSessionSecret,
			Cookie:   cookieCfg,
			Variant:  cfg.Variant,
			Audit:    auditLogger,
			Metrics:  m,
		},
		routes.RateLimits{
			LoginLimit:   cfg.LoginLimit,
			LoginWindow:  time.Minute,
			SearchLimit:  cfg.SearchLimit,
			SearchWindow: time.Minute,
		})

	return &TestServer{
		Server:   httptest.NewServer(router),
		DB:       db,
		Sessions: sessions,
		Config:   cfg,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Request makes a JSON request with browser-shaped headers so it clears the
// origin gate. A non-nil cookie authenticates the call.
func (ts *TestServer) Request(method, path string, body interface{}, cookie *http.Cookie) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", ts.Config.AllowedOrigin)
	req.Header.Set("User-Agent", browserUserAgent)
	if cookie != nil {
		req.AddCookie(cookie)
	}

	return http.DefaultClient.Do(req)
}

// RawRequest makes a request with only the given headers, for exercising
// the gate's rejection paths.
func (ts *TestServer) RawRequest(method, path string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequest(method, ts.Server.URL+path, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", "")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// Login authenticates and returns the session cookie (nil when login failed)
func (ts *TestServer) Login(username, password, loginType string) (*http.Cookie, *http.Response, error) {
	resp, err := ts.Request("POST", "/api/auth/login", map[string]string{
		"username":  username,
		"password":  password,
		"loginType": loginType,
	}, nil)
	if err != nil {
		return nil, nil, err
	}

	for _, c := range resp.Cookies() {
		if c.Name == session.CookieName {
			return c, resp, nil
		}
	}
	return nil, resp, nil
}

// ParseJSONResponse parses a JSON response body into target
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}
