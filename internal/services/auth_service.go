package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"

	"github.com/querydesk/querydesk/internal/models"
	"github.com/querydesk/querydesk/internal/session"
	"github.com/querydesk/querydesk/pkg/auth"
	pkglogger "github.com/querydesk/querydesk/pkg/logger"
)

// AuthService resolves login credentials to a session identity. The
// privileged role authenticates against the env-configured superuser pair,
// the managed role against the variant's account table.
type AuthService struct {
	repo              AccountRepository
	variant           models.Variant
	superuserUsername string
	superuserPassword string
	dummyHash         string
	logger            *slog.Logger
	audit             *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService. An empty superuser pair disables
// privileged login; managed accounts still authenticate.
func NewAuthService(repo AccountRepository, variant models.Variant, superuserUsername, superuserPassword string, logger *slog.Logger, audit *pkglogger.AuditLogger) *AuthService {
	// Verified against unknown usernames so credential probes cost the
	// same as wrong passwords.
	dummyHash, err := auth.HashPassword("timing-equalization")
	if err != nil {
		dummyHash = ""
	}

	return &AuthService{
		repo:              repo,
		variant:           variant,
		superuserUsername: superuserUsername,
		superuserPassword: superuserPassword,
		dummyHash:         dummyHash,
		logger:            logger,
		audit:             audit,
	}
}

// Login authenticates a credential pair for the requested role and returns
// the identity to bind to a fresh session. Unknown accounts, wrong passwords
// and inactive accounts all collapse into ErrUnauthorized.
func (s *AuthService) Login(ctx context.Context, username, password, loginType, ip, userAgent string) (session.Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		s.logger.Info("login failed: missing credentials")
		s.logLoginFailure("", "invalid_credentials", ip, userAgent)
		return session.Identity{}, models.ErrUnauthorized
	}

	switch loginType {
	case s.variant.PrivilegedRole:
		return s.loginSuperuser(username, password, ip, userAgent)
	case s.variant.ManagedRole:
		return s.loginManaged(ctx, username, password, ip, userAgent)
	default:
		s.logger.Warn("login attempt with unknown login type", slog.String("login_type", loginType))
		return session.Identity{}, models.ErrBadRequest
	}
}

func (s *AuthService) loginSuperuser(username, password, ip, userAgent string) (session.Identity, error) {
	if s.superuserUsername == "" || s.superuserPassword == "" {
		s.logger.Warn("superuser login attempted but no credentials are configured")
		s.logLoginFailure("", "superuser_disabled", ip, userAgent)
		return session.Identity{}, models.ErrUnauthorized
	}

	usernameOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.superuserUsername))
	passwordOK := s.superuserPasswordMatches(password)
	if usernameOK != 1 || !passwordOK {
		s.logger.Info("login failed: invalid credentials")
		s.logLoginFailure("", "invalid_credentials", ip, userAgent)
		return session.Identity{}, models.ErrUnauthorized
	}

	identity := session.Identity{
		ID:       s.variant.PrivilegedRole,
		Username: s.superuserUsername,
		Name:     s.superuserUsername,
		Role:     s.variant.PrivilegedRole,
	}

	s.logger.Info("superuser logged in")
	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		ActorID:   identity.ID,
		IPAddress: ip,
		UserAgent: userAgent,
		Success:   true,
	})

	return identity, nil
}

func (s *AuthService) loginManaged(ctx context.Context, username, password, ip, userAgent string) (session.Identity, error) {
	account, err := s.repo.GetActiveByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			if s.dummyHash != "" {
				auth.ComparePassword(s.dummyHash, password)
			}
			s.logger.Info("login failed: invalid credentials")
			s.logLoginFailure("", "invalid_credentials", ip, userAgent)
			return session.Identity{}, models.ErrUnauthorized
		}
		s.logger.Error("failed to get account for login", slog.Any("error", err))
		return session.Identity{}, models.ErrInternalServer
	}

	if err := auth.ComparePassword(account.PasswordHash, password); err != nil {
		s.logger.Info("login failed: invalid credentials")
		s.logLoginFailure(account.ID.String(), "invalid_credentials", ip, userAgent)
		return session.Identity{}, models.ErrUnauthorized
	}

	// Best-effort; a failed timestamp write must not block the login
	if err := s.repo.TouchLastLogin(ctx, account.ID.String()); err != nil {
		s.logger.Warn("failed to record last login",
			slog.String("account_id", account.ID.String()),
			slog.Any("error", err))
	}

	identity := session.Identity{
		ID:       account.ID.String(),
		Username: account.Username,
		Name:     account.Name,
		Role:     s.variant.ManagedRole,
	}

	s.logger.Info("account logged in", slog.String("account_id", identity.ID))
	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		ActorID:   identity.ID,
		IPAddress: ip,
		UserAgent: userAgent,
		Success:   true,
	})

	return identity, nil
}

// superuserPasswordMatches accepts either a plaintext env value or a bcrypt
// hash, so deployments can keep the secret hashed at rest.
func (s *AuthService) superuserPasswordMatches(password string) bool {
	configured := s.superuserPassword
	if strings.HasPrefix(configured, "$2a$") || strings.HasPrefix(configured, "$2b$") || strings.HasPrefix(configured, "$2y$") {
		return auth.ComparePassword(configured, password) == nil
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(configured)) == 1
}

func (s *AuthService) logLoginFailure(actorID, reason, ip, userAgent string) {
	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login_failed",
		ActorID:       actorID,
		IPAddress:     ip,
		UserAgent:     userAgent,
		FailureReason: reason,
		Success:       false,
	})
}
