package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/querydesk/querydesk/internal/models"
	"github.com/querydesk/querydesk/pkg/auth"
	pkglogger "github.com/querydesk/querydesk/pkg/logger"
)

// AccountRepository defines the interface for account data access. Both
// deployment variants use the same implementation bound to their own table.
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetActiveByUsername(ctx context.Context, username string) (*models.Account, error)
	GetByUsernameOrEmail(ctx context.Context, username, email string) (*models.Account, error)
	List(ctx context.Context, limit, offset int) ([]*models.Account, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	Update(ctx context.Context, id string, account *models.Account) (*models.Account, error)
	UpdateFeatures(ctx context.Context, id string, features []string) (*models.Account, error)
	TouchLastLogin(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	CountTotal(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context, status string) (int, error)
}

// HistoryRepository defines the interface for search history reads used by
// account details and dashboard stats. Appends happen in the search layer.
type HistoryRepository interface {
	ListByActor(ctx context.Context, actorID string, limit, offset int) ([]*models.SearchRecord, error)
	CountByKindForActor(ctx context.Context, actorID string) (map[models.SearchKind]int, error)
	CountAll(ctx context.Context) (int, error)
	CountByKind(ctx context.Context) (map[models.SearchKind]int, error)
}

// AccountDetails bundles one account with its recent searches and per-kind
// totals for the management detail view.
type AccountDetails struct {
	Account    *models.Account
	History    []*models.SearchRecord
	KindCounts map[models.SearchKind]int
}

// DashboardStats aggregates account and search totals across the deployment.
type DashboardStats struct {
	TotalAccounts    int
	ActiveAccounts   int
	InactiveAccounts int
	TotalSearches    int
	SearchesByKind   map[models.SearchKind]int
}

// AccountService handles managed-account business logic
type AccountService struct {
	repo    AccountRepository
	history HistoryRepository
	variant models.Variant
	logger  *slog.Logger
	audit   *pkglogger.AuditLogger
}

// NewAccountService creates a new AccountService
func NewAccountService(repo AccountRepository, history HistoryRepository, variant models.Variant, logger *slog.Logger, audit *pkglogger.AuditLogger) *AccountService {
	return &AccountService{
		repo:    repo,
		history: history,
		variant: variant,
		logger:  logger,
		audit:   audit,
	}
}

// GetAccountByID retrieves a single account
func (s *AccountService) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("account not found", slog.String("account_id", id))
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get account", slog.String("account_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return account, nil
}

// ListAccounts retrieves accounts with pagination, newest first
func (s *AccountService) ListAccounts(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	accounts, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("failed to list accounts", slog.Int("limit", limit), slog.Int("offset", offset), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return accounts, nil
}

// CreateAccount provisions a managed account. Username and email must be
// unique; the unique indexes back the pre-check under concurrent creates.
func (s *AccountService) CreateAccount(ctx context.Context, account *models.Account, password, actorID, ip string) (*models.Account, error) {
	account.Username = strings.TrimSpace(account.Username)
	account.Email = strings.ToLower(strings.TrimSpace(account.Email))
	account.Name = strings.TrimSpace(account.Name)

	existing, err := s.repo.GetByUsernameOrEmail(ctx, account.Username, account.Email)
	if err == nil && existing != nil {
		s.logger.Info("account already exists", slog.String("username", account.Username))
		return nil, models.ErrConflict
	}
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check account uniqueness", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if password == "" {
		return nil, models.ErrBadRequest
	}
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	account.PasswordHash = hashedPassword

	created, err := s.repo.Create(ctx, account)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("account created",
		slog.String("account_id", created.ID.String()),
		slog.String("email", pkglogger.SanitizedEmail(created.Email)))
	s.audit.LogAccountAction("account_created", actorID, created.ID.String(), ip, map[string]string{
		"email": pkglogger.SanitizedEmail(created.Email),
	})
	return created, nil
}

// UpdateAccount applies a partial update. Username is immutable; an email
// change re-checks uniqueness before writing.
func (s *AccountService) UpdateAccount(ctx context.Context, id string, updates *models.Account, password, actorID, ip string) (*models.Account, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("account not found", slog.String("account_id", id))
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get account", slog.String("account_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if email := strings.ToLower(strings.TrimSpace(updates.Email)); email != "" && email != existing.Email {
		other, err := s.repo.GetByUsernameOrEmail(ctx, "", email)
		if err == nil && other != nil && other.ID != existing.ID {
			s.logger.Info("email already in use", slog.String("account_id", id))
			return nil, models.ErrConflict
		}
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to check email uniqueness", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		existing.Email = email
	}

	if name := strings.TrimSpace(updates.Name); name != "" {
		existing.Name = name
	}

	if updates.Status != "" {
		if updates.Status != models.AccountStatusActive && updates.Status != models.AccountStatusInactive {
			return nil, models.ErrBadRequest
		}
		existing.Status = updates.Status
	}

	if password != "" {
		hashedPassword, err := auth.HashPassword(password)
		if err != nil {
			s.logger.Error("failed to hash password", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		existing.PasswordHash = hashedPassword
	}

	updated, err := s.repo.Update(ctx, id, existing)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			return nil, models.ErrNotFound
		case errors.Is(err, models.ErrConflict):
			return nil, models.ErrConflict
		default:
			s.logger.Error("failed to update account", slog.String("account_id", id), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
	}

	s.logger.Info("account updated", slog.String("account_id", id))
	s.audit.LogAccountAction("account_updated", actorID, id, ip, nil)
	return updated, nil
}

// DeleteAccount removes an account. Its search history stays; records are
// append-only and survive their author.
func (s *AccountService) DeleteAccount(ctx context.Context, id, actorID, ip string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("account not found", slog.String("account_id", id))
			return models.ErrNotFound
		}
		s.logger.Error("failed to delete account", slog.String("account_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("account deleted", slog.String("account_id", id))
	s.audit.LogAccountAction("account_deleted", actorID, id, ip, nil)
	return nil
}

// UpdateAccountFeatures replaces an account's feature grant. Unknown names
// are dropped rather than rejected; an empty result grants everything.
func (s *AccountService) UpdateAccountFeatures(ctx context.Context, id string, features []string, actorID, ip string) (*models.Account, error) {
	if !s.variant.HasFeatures {
		return nil, models.ErrNotFound
	}

	normalized := models.NormalizeFeatures(features)

	updated, err := s.repo.UpdateFeatures(ctx, id, normalized)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("account not found", slog.String("account_id", id))
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to update features", slog.String("account_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("account features updated", slog.String("account_id", id))
	s.audit.LogAccountAction("features_updated", actorID, id, ip, map[string]string{
		"features": strings.Join(normalized, ","),
	})
	return updated, nil
}

// AccountDetails loads one account together with its recent searches and
// per-kind search totals.
func (s *AccountService) AccountDetails(ctx context.Context, id string, historyLimit, historyOffset int) (*AccountDetails, error) {
	account, err := s.GetAccountByID(ctx, id)
	if err != nil {
		return nil, err
	}

	history, err := s.history.ListByActor(ctx, id, historyLimit, historyOffset)
	if err != nil {
		s.logger.Error("failed to list account history", slog.String("account_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	counts, err := s.history.CountByKindForActor(ctx, id)
	if err != nil {
		s.logger.Error("failed to count account history", slog.String("account_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &AccountDetails{
		Account:    account,
		History:    history,
		KindCounts: counts,
	}, nil
}

// DashboardStats aggregates totals for the management overview.
func (s *AccountService) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	total, err := s.repo.CountTotal(ctx)
	if err != nil {
		s.logger.Error("failed to count accounts", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	active, err := s.repo.CountByStatus(ctx, models.AccountStatusActive)
	if err != nil {
		s.logger.Error("failed to count active accounts", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	searches, err := s.history.CountAll(ctx)
	if err != nil {
		s.logger.Error("failed to count searches", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	byKind, err := s.history.CountByKind(ctx)
	if err != nil {
		s.logger.Error("failed to count searches by kind", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &DashboardStats{
		TotalAccounts:    total,
		ActiveAccounts:   active,
		InactiveAccounts: total - active,
		TotalSearches:    searches,
		SearchesByKind:   byKind,
	}, nil
}
