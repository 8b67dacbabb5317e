package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/querydesk/querydesk/internal/models"
	pkglogger "github.com/querydesk/querydesk/pkg/logger"
)

func newTestAccountService(repo *MockAccountRepository, history *MockHistoryRepository, variant models.Variant) *AccountService {
	logger := slog.Default()
	return NewAccountService(repo, history, variant, logger, pkglogger.NewAuditLogger(logger))
}

func TestAccountService_GetAccountByID_Success(t *testing.T) {
	account := NewTestAccount("analyst", "analyst@example.com", "Analyst")
	mockRepo := &MockAccountRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			return account, nil
		},
	}
	svc := newTestAccountService(mockRepo, &MockHistoryRepository{}, models.VariantAdminUser)

	result, err := svc.GetAccountByID(context.Background(), account.ID.String())

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, "analyst", result.Username)
}

func TestAccountService_GetAccountByID_NotFound(t *testing.T) {
	mockRepo := &MockAccountRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			return nil, models.ErrNotFound
		},
	}
	svc := newTestAccountService(mockRepo, &MockHistoryRepository{}, models.VariantAdminUser)

	result, err := svc.GetAccountByID(context.Background(), "nonexistent")

	assert.Nil(t, result)
	assert.Equal(t, models.ErrNotFound, err)
}

func TestAccountService_ListAccounts_Success(t *testing.T) {
	mockRepo := &MockAccountRepository{
		ListFunc: func(ctx context.Context, limit, offset int) ([]*models.Account, error) {
			assert.Equal(t, 20, limit)
			assert.Equal(t, 40, offset)
			return []*models.Account{
				NewTestAccount("a", "a@example.com", "A"),
				NewTestAccount("b", "b@example.com", "B"),
			}, nil
		},
	}
	svc := newTestAccountService(mockRepo, &MockHistoryRepository{}, models.VariantAdminUser)

	accounts, err := svc.ListAccounts(context.Background(), 20, 40)

	assert.NoError(t, err)
	assert.Len(t, accounts, 2)
}

func TestAccountService_ListAccounts_DatabaseError(t *testing.T) {
	mockRepo := &MockAccountRepository{
		ListFunc: func(ctx context.Context, limit, offset int) ([]*models.Account, error) {
			return nil, assert.AnError
		},
	}
	svc := newTestAccountService(mockRepo, &MockHistoryRepository{}, models.VariantAdminUser)

	accounts, err := svc.ListAccounts(context.Background(), 20, 0)

	assert.Nil(t, accounts)
	assert.Equal(t, models.ErrInternalServer, err)
}

func TestAccountService_CreateAccount_Success(t *testing.T) {
	var created *models.Account
	mockRepo := &MockAccountRepository{
		GetByUsernameOrEmailFunc: func(ctx context.Context, username, email string) (*models.Account, error) {
			return nil, models.ErrNotFound
		},
		CreateFunc: func(ctx context.Context, account *models.Account) (*models.Account, error) {
			created = account
			return account, nil
		},
	}
	svc := newTestAccountService(mockRepo, &MockHistoryRepository{}, models.VariantAdminUser)

	input := &models.Account{Username: "analyst", Email: "Analyst@Example.com", Name: "Analyst"}
	result, err := svc.CreateAccount(context.Background(), input, "password123", models.RoleAdmin, "203.0.113.10")

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, "analyst@example.com", created.Email)
	assert.NotEmpty(t, created.PasswordHash)
	assert.NotEqual(t, "password123", created.PasswordHash)
}

func TestAccountService_CreateAccount_Duplicate(t *testing.T) {
	existing := NewTestAccount("analyst", "analyst@example.com", "Analyst")
	mockRepo := &MockAccountRepository{
		GetByUsernameOrEmailFunc: func(ctx context.Context, username, email string) (*models.Account, error) {
			return existing, nil
		},
		CreateFunc: func(ctx context.Context, account *models.Account) (*models.Account, error) {
			t.Error("create must not run when the pre-check finds a duplicate")
			return nil, models.ErrInternalServer
		},
	}
	svc := newTestAccountService(mockRepo, &MockHistoryRepository{}, models.VariantAdminUser)

	input := &models.Account{Username: "analyst", Email: "other@example.com", Name: "Analyst"}
	_, err := svc.CreateAccount(context.Background(), input, "password123", models.RoleAdmin, "203.0.113.10")

	assert.Equal(t, models.ErrConflict, err)
}

func TestAccountService_CreateAccount_UniqueIndexRace(t *testing.T) {
	// Pre-check misses a concurrent insert; the unique index reports it
	mockRepo := &MockAccountRepository{
		GetByUsernameOrEmailFunc: func(ctx context.Context, username, email string) (*models.Account, error) {
			return nil, models.ErrNotFound
		},
		CreateFunc: func(ctx context.Context, account *models.Account) (*models.Account, error) {
			return nil, models.ErrConflict
		},
	}
	svc := newTestAccountService(mockRepo, &MockHistoryRepository{}, models.VariantAdminUser)

	input := &models.Account{Username: "analyst", Email: "analyst@example.com", Name: "Analyst"}
	_, err := svc.CreateAccount(context.Background(), input, "password123", models.RoleAdmin, "203.0.113.10")

	assert.Equal(t, models.ErrConflict, err)
}

func TestAccountService_CreateAccount_EmptyPassword(t *testing.T) {
	mockRepo := &MockAccountRepository{
		GetByUsernameOrEmailFunc: func(ctx context.Context, username, email string) (*models.Account, error) {
			return nil, models.ErrNotFound
		},
	}
	svc := newTestAccountService(mockRepo, &MockHistoryRepository{}, models.VariantAdminUser)

	input := &models.Account{Username: "analyst", Email: "analyst@example.com", Name: "Analyst"}
	_, err := svc.CreateAccount(context.Background(), input, "", models.RoleAdmin, "203.0.113.10")

	assert.Equal(t, models.ErrBadRequest, err)
}

func TestAccountService_UpdateAccount_PartialFields(t *testing.T) {
	existing := NewTestAccountWithPassword("analyst", "analyst@example.com", "Analyst", "password123")
	originalHash := existing.PasswordHash
	var updated *models.Account
	mockRepo := &MockAccountRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			return existing, nil
		},
		UpdateFunc: func(ctx context.Context, id string, account *models.Account) (*models.Account, error) {
			updated = account
			return account, nil
		},
	}
	svc := newTestAccountService(mockRepo, &MockHistoryRepository{}, models.VariantAdminUser)

	_, err := svc.UpdateAccount(context.Background(), existing.ID.String(), &models.Account{Name: "Renamed"}, "", models.RoleAdmin, "203.0.113.10")

	assert.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "analyst@example.com", updated.Email)
	assert.Equal(t, models.AccountStatusActive, updated.Status)
	assert.Equal(t, originalHash, updated.PasswordHash)
}

func TestAccountService_UpdateAccount_EmailConflict(t *testing.T) {
	existing := NewTestAccount("analyst", "analyst@example.com", "Analyst")
	other := NewTestAccount("other", "taken@example.com", "Other")
	mockRepo := &MockAccountRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			return existing, nil
		},
		GetByUsernameOrEmailFunc: func(ctx context.Context, username, email string) (*models.Account, error) {
			assert.Equal(t, "taken@example.com", email)
			return other, nil
		},
	}
	svc := newTestAccountService(mockRepo, &MockHistoryRepository{}, models.VariantAdminUser)

	_, err := svc.UpdateAccount(context.Background(), existing.ID.String(), &models.Account{Email: "taken@example.com"}, "", models.RoleAdmin, "203.0.113.10")

	assert.Equal(t, models.ErrConflict, err)
}

func TestAccountService_UpdateAccount_EmailChangeToFreeAddress(t *testing.T) {
	existing := NewTestAccount("analyst", "analyst@example.com", "Analyst")
	var updated *models.Account
	mockRepo := &MockAccountRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			return existing, nil
		},
		GetByUsernameOrEmailFunc: func(ctx context.Context, username, email string) (*models.Account, error) {
			return nil, models.ErrNotFound
		},
		UpdateFunc: func(ctx context.Context, id string, account *models.Account) (*models.Account, error) {
			updated = account
			return account, nil
		},
	}
	svc := newTestAccountService(mockRepo, &MockHistoryRepository{}, models.VariantAdminUser)

	_, err := svc.UpdateAccount(context.Background(), existing.ID.String(), &models.Account{Email: "New@Example.com"}, "", models.RoleAdmin, "203.0.113.10")

	assert.NoError(t, err)
	assert.Equal(t, "new@example.com", updated.Email)
}

func TestAccountService_UpdateAccount_InvalidStatus(t *testing.T) {
	existing := NewTestAccount("analyst", "analyst@example.com", "Analyst")
	mockRepo := &MockAccountRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			return existing, nil
		},
	}
	svc := newTestAccountService(mockRepo, &MockHistoryRepository{}, models.VariantAdminUser)

	_, err := svc.UpdateAccount(context.Background(), existing.ID.String(), &models.Account{Status: "banned"}, "", models.RoleAdmin, "203.0.113.10")

	assert.Equal(t, models.ErrBadRequest, err)
}

func TestAccountService_UpdateAccount_PasswordRehash(t *testing.T) {
	existing := NewTestAccountWithPassword("analyst", "analyst@example.com", "Analyst", "password123")
	originalHash := existing.PasswordHash
	var updated *models.Account
	mockRepo := &MockAccountRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			return existing, nil
		},
		UpdateFunc: func(ctx context.Context, id string, account *models.Account) (*models.Account, error) {
			updated = account
			return account, nil
		},
	}
	svc := newTestAccountService(mockRepo, &MockHistoryRepository{}, models.VariantAdminUser)

	_, err := svc.UpdateAccount(context.Background(), existing.ID.String(), &models.Account{}, "newpassword", models.RoleAdmin, "203.0.113.10")

	assert.NoError(t, err)
	assert.NotEmpty(t, updated.PasswordHash)
	assert.NotEqual(t, originalHash, updated.PasswordHash)
}

func TestAccountService_UpdateAccount_NotFound(t *testing.T) {
	mockRepo := &MockAccountRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			return nil, models.ErrNotFound
		},
	}
	svc := newTestAccountService(mockRepo, &MockHistoryRepository{}, models.VariantAdminUser)

	_, err := svc.UpdateAccount(context.Background(), "nonexistent", &models.Account{Name: "X"}, "", models.RoleAdmin, "203.0.113.10")

	assert.Equal(t, models.ErrNotFound, err)
}

func TestAccountService_DeleteAccount_Success(t *testing.T) {
	deleted := ""
	mockRepo := &MockAccountRepository{
		DeleteFunc: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	svc := newTestAccountService(mockRepo, &MockHistoryRepository{}, models.VariantAdminUser)

	err := svc.DeleteAccount(context.Background(), "acc-1", models.RoleAdmin, "203.0.113.10")

	assert.NoError(t, err)
	assert.Equal(t, "acc-1", deleted)
}

func TestAccountService_DeleteAccount_NotFound(t *testing.T) {
	mockRepo := &MockAccountRepository{
		DeleteFunc: func(ctx context.Context, id string) error {
			return models.ErrNotFound
		},
	}
	svc := newTestAccountService(mockRepo, &MockHistoryRepository{}, models.VariantAdminUser)

	err := svc.DeleteAccount(context.Background(), "nonexistent", models.RoleAdmin, "203.0.113.10")

	assert.Equal(t, models.ErrNotFound, err)
}

func TestAccountService_UpdateAccountFeatures_NormalizesInput(t *testing.T) {
	var stored []string
	mockRepo := &MockAccountRepository{
		UpdateFeaturesFunc: func(ctx context.Context, id string, features []string) (*models.Account, error) {
			stored = features
			return NewTestAccountWithFeatures("analyst", "analyst@example.com", "Analyst", features), nil
		},
	}
	svc := newTestAccountService(mockRepo, &MockHistoryRepository{}, models.VariantAdminUser)

	input := []string{models.FeatureIP, "bogus", models.FeatureMobile, models.FeatureIP}
	result, err := svc.UpdateAccountFeatures(context.Background(), "acc-1", input, models.RoleAdmin, "203.0.113.10")

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, []string{models.FeatureMobile, models.FeatureIP}, stored)
}

func TestAccountService_UpdateAccountFeatures_FeaturelessVariant(t *testing.T) {
	mockRepo := &MockAccountRepository{
		UpdateFeaturesFunc: func(ctx context.Context, id string, features []string) (*models.Account, error) {
			t.Error("feature updates must not reach the repository in the owner-admin variant")
			return nil, models.ErrInternalServer
		},
	}
	svc := newTestAccountService(mockRepo, &MockHistoryRepository{}, models.VariantOwnerAdmin)

	_, err := svc.UpdateAccountFeatures(context.Background(), "acc-1", []string{models.FeatureIP}, models.RoleOwner, "203.0.113.10")

	assert.Equal(t, models.ErrNotFound, err)
}

func TestAccountService_AccountDetails_Success(t *testing.T) {
	account := NewTestAccount("analyst", "analyst@example.com", "Analyst")
	mockRepo := &MockAccountRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			return account, nil
		},
	}
	mockHistory := &MockHistoryRepository{
		ListByActorFunc: func(ctx context.Context, actorID string, limit, offset int) ([]*models.SearchRecord, error) {
			assert.Equal(t, account.ID.String(), actorID)
			return []*models.SearchRecord{
				NewTestSearchRecord(2, actorID, models.SearchKindMobile, "9876543210", 3),
				NewTestSearchRecord(1, actorID, models.SearchKindIP, "1.1.1.1", 1),
			}, nil
		},
		CountByKindForActorFunc: func(ctx context.Context, actorID string) (map[models.SearchKind]int, error) {
			return map[models.SearchKind]int{
				models.SearchKindMobile: 12,
				models.SearchKindIP:     4,
			}, nil
		},
	}
	svc := newTestAccountService(mockRepo, mockHistory, models.VariantAdminUser)

	details, err := svc.AccountDetails(context.Background(), account.ID.String(), 10, 0)

	assert.NoError(t, err)
	assert.Equal(t, account, details.Account)
	assert.Len(t, details.History, 2)
	assert.Equal(t, 12, details.KindCounts[models.SearchKindMobile])
}

func TestAccountService_AccountDetails_NotFound(t *testing.T) {
	mockRepo := &MockAccountRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			return nil, models.ErrNotFound
		},
	}
	svc := newTestAccountService(mockRepo, &MockHistoryRepository{}, models.VariantAdminUser)

	details, err := svc.AccountDetails(context.Background(), "nonexistent", 10, 0)

	assert.Nil(t, details)
	assert.Equal(t, models.ErrNotFound, err)
}

func TestAccountService_DashboardStats_Success(t *testing.T) {
	mockRepo := &MockAccountRepository{
		CountTotalFunc: func(ctx context.Context) (int, error) {
			return 10, nil
		},
		CountByStatusFunc: func(ctx context.Context, status string) (int, error) {
			assert.Equal(t, models.AccountStatusActive, status)
			return 7, nil
		},
	}
	mockHistory := &MockHistoryRepository{
		CountAllFunc: func(ctx context.Context) (int, error) {
			return 42, nil
		},
		CountByKindFunc: func(ctx context.Context) (map[models.SearchKind]int, error) {
			return map[models.SearchKind]int{models.SearchKindEmail: 42}, nil
		},
	}
	svc := newTestAccountService(mockRepo, mockHistory, models.VariantAdminUser)

	stats, err := svc.DashboardStats(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 10, stats.TotalAccounts)
	assert.Equal(t, 7, stats.ActiveAccounts)
	assert.Equal(t, 3, stats.InactiveAccounts)
	assert.Equal(t, 42, stats.TotalSearches)
	assert.Equal(t, 42, stats.SearchesByKind[models.SearchKindEmail])
}
