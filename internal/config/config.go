package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/querydesk/querydesk/internal/models"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Session   SessionConfig
	Superuser SuperuserConfig
	Upstream  UpstreamConfig
	RateLimit RateLimitConfig
	Variant   models.Variant
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type SessionConfig struct {
	Secret          string
	TTL             time.Duration
	CleanupInterval time.Duration
}

// SuperuserConfig holds the environment-configured privileged login. An
// unset pair disables superuser login entirely; it is not an error at load
// time because managed accounts can still authenticate.
type SuperuserConfig struct {
	Username string
	Password string
}

type UpstreamConfig struct {
	LookupBaseURL    string
	LookupAltBaseURL string
	LookupTimeout    time.Duration
	VehicleBaseURL   string
	VehicleAPIKey    string
	VehicleTimeout   time.Duration
	GeoIPBaseURL     string
	GeoIPTimeout     time.Duration
	VPNBaseURL       string
	VPNAPIKey        string
	VPNTimeout       time.Duration
	VPNCacheTTL      time.Duration
}

type RateLimitConfig struct {
	LoginLimit   int
	LoginWindow  time.Duration
	SearchLimit  int
	SearchWindow time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	sessionSecret := getEnv("SESSION_SECRET", "")
	if sessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}

	env := getEnv("ENV", "development")
	variant := models.VariantByName(getEnv("DASHBOARD_VARIANT", models.VariantNameAdminUser))

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "querydesk"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Session: SessionConfig{
			Secret:          sessionSecret,
			TTL:             getEnvAsDuration("SESSION_TTL", 30*time.Minute),
			CleanupInterval: getEnvAsDuration("SESSION_CLEANUP_INTERVAL", 5*time.Minute),
		},
		Superuser: SuperuserConfig{
			Username: getEnv(variant.SuperuserEnv+"_USERNAME", ""),
			Password: getEnv(variant.SuperuserEnv+"_PASSWORD", ""),
		},
		Upstream: UpstreamConfig{
			LookupBaseURL:    getEnv("LOOKUP_API_URL", ""),
			LookupAltBaseURL: getEnv("LOOKUP_ALT_API_URL", ""),
			LookupTimeout:    getEnvAsDuration("LOOKUP_API_TIMEOUT", 15*time.Second),
			VehicleBaseURL:   getEnv("VEHICLE_API_URL", ""),
			VehicleAPIKey:    getEnv("VEHICLE_API_KEY", ""),
			VehicleTimeout:   getEnvAsDuration("VEHICLE_API_TIMEOUT", 20*time.Second),
			GeoIPBaseURL:     getEnv("GEOIP_API_URL", "http://ip-api.com/json"),
			GeoIPTimeout:     getEnvAsDuration("GEOIP_API_TIMEOUT", 10*time.Second),
			VPNBaseURL:       getEnv("VPN_API_URL", "https://vpnapi.io/api"),
			VPNAPIKey:        getEnv("VPN_API_KEY", ""),
			VPNTimeout:       getEnvAsDuration("VPN_API_TIMEOUT", 3*time.Second),
			VPNCacheTTL:      getEnvAsDuration("VPN_CACHE_TTL", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			LoginLimit:   getEnvAsInt("LOGIN_RATE_LIMIT", 10),
			LoginWindow:  getEnvAsDuration("LOGIN_RATE_WINDOW", 15*time.Minute),
			SearchLimit:  getEnvAsInt("SEARCH_RATE_LIMIT", 30),
			SearchWindow: getEnvAsDuration("SEARCH_RATE_WINDOW", 60*time.Second),
		},
		Variant: variant,
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	// Validate session secret strength
	if err := validateSessionSecret(sessionSecret, env); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSessionSecret enforces minimum security standards for the cookie
// signing secret
func validateSessionSecret(secret, env string) error {
	// Minimum length based on environment
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // Production requires stronger secret (256 bits)
	}

	if len(secret) < minLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	// Check against common weak secrets
	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("SESSION_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		originsStr := getEnv("ALLOWED_ORIGINS", "")
		if originsStr == "" {
			return []string{} // Default to no origins in production
		}
		origins := strings.Split(originsStr, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		return origins
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:8080",
		"http://localhost:5173", // Vite default
		"http://localhost:3001",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:8080",
		"http://127.0.0.1:5173",
		"http://127.0.0.1:3001",
	}
}
