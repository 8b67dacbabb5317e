package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/querydesk/querydesk/internal/models"
)

// MockAccountRepository implements AccountRepository for testing
type MockAccountRepository struct {
	GetByIDFunc              func(ctx context.Context, id string) (*models.Account, error)
	GetActiveByUsernameFunc  func(ctx context.Context, username string) (*models.Account, error)
	GetByUsernameOrEmailFunc func(ctx context.Context, username, email string) (*models.Account, error)
	ListFunc                 func(ctx context.Context, limit, offset int) ([]*models.Account, error)
	CreateFunc               func(ctx context.Context, account *models.Account) (*models.Account, error)
	UpdateFunc               func(ctx context.Context, id string, account *models.Account) (*models.Account, error)
	UpdateFeaturesFunc       func(ctx context.Context, id string, features []string) (*models.Account, error)
	TouchLastLoginFunc       func(ctx context.Context, id string) error
	DeleteFunc               func(ctx context.Context, id string) error
	CountTotalFunc           func(ctx context.Context) (int, error)
	CountByStatusFunc        func(ctx context.Context, status string) (int, error)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) GetActiveByUsername(ctx context.Context, username string) (*models.Account, error) {
	if m.GetActiveByUsernameFunc != nil {
		return m.GetActiveByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) GetByUsernameOrEmail(ctx context.Context, username, email string) (*models.Account, error) {
	if m.GetByUsernameOrEmailFunc != nil {
		return m.GetByUsernameOrEmailFunc(ctx, username, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) List(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.Account{}, nil
}

func (m *MockAccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountRepository) Update(ctx context.Context, id string, account *models.Account) (*models.Account, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, account)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountRepository) UpdateFeatures(ctx context.Context, id string, features []string) (*models.Account, error) {
	if m.UpdateFeaturesFunc != nil {
		return m.UpdateFeaturesFunc(ctx, id, features)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountRepository) TouchLastLogin(ctx context.Context, id string) error {
	if m.TouchLastLoginFunc != nil {
		return m.TouchLastLoginFunc(ctx, id)
	}
	return nil
}

func (m *MockAccountRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockAccountRepository) CountTotal(ctx context.Context) (int, error) {
	if m.CountTotalFunc != nil {
		return m.CountTotalFunc(ctx)
	}
	return 0, nil
}

func (m *MockAccountRepository) CountByStatus(ctx context.Context, status string) (int, error) {
	if m.CountByStatusFunc != nil {
		return m.CountByStatusFunc(ctx, status)
	}
	return 0, nil
}

// MockHistoryRepository implements HistoryRepository for testing
type MockHistoryRepository struct {
	ListByActorFunc         func(ctx context.Context, actorID string, limit, offset int) ([]*models.SearchRecord, error)
	CountByKindForActorFunc func(ctx context.Context, actorID string) (map[models.SearchKind]int, error)
	CountAllFunc            func(ctx context.Context) (int, error)
	CountByKindFunc         func(ctx context.Context) (map[models.SearchKind]int, error)
}

func (m *MockHistoryRepository) ListByActor(ctx context.Context, actorID string, limit, offset int) ([]*models.SearchRecord, error) {
	if m.ListByActorFunc != nil {
		return m.ListByActorFunc(ctx, actorID, limit, offset)
	}
	return []*models.SearchRecord{}, nil
}

func (m *MockHistoryRepository) CountByKindForActor(ctx context.Context, actorID string) (map[models.SearchKind]int, error) {
	if m.CountByKindForActorFunc != nil {
		return m.CountByKindForActorFunc(ctx, actorID)
	}
	return map[models.SearchKind]int{}, nil
}

func (m *MockHistoryRepository) CountAll(ctx context.Context) (int, error) {
	if m.CountAllFunc != nil {
		return m.CountAllFunc(ctx)
	}
	return 0, nil
}

func (m *MockHistoryRepository) CountByKind(ctx context.Context) (map[models.SearchKind]int, error) {
	if m.CountByKindFunc != nil {
		return m.CountByKindFunc(ctx)
	}
	return map[models.SearchKind]int{}, nil
}

// NewTestAccount creates an active account with a fresh id
func NewTestAccount(username, email, name string) *models.Account {
	return &models.Account{
		ID:        uuid.New(),
		Username:  username,
		Email:     email,
		Name:      name,
		Status:    models.AccountStatusActive,
		Features:  []string{},
		CreatedAt: time.Now(),
	}
}

// NewTestAccountWithPassword creates an account whose hash verifies against
// password. MinCost keeps the test suite fast; verification does not care.
func NewTestAccountWithPassword(username, email, name, password string) *models.Account {
	account := NewTestAccount(username, email, name)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	account.PasswordHash = string(hash)
	return account
}

// NewTestAccountWithStatus creates an account with the given status
func NewTestAccountWithStatus(username, email, name, status string) *models.Account {
	account := NewTestAccount(username, email, name)
	account.Status = status
	return account
}

// NewTestAccountWithFeatures creates an account with an explicit grant
func NewTestAccountWithFeatures(username, email, name string, features []string) *models.Account {
	account := NewTestAccount(username, email, name)
	account.Features = features
	return account
}

// NewTestSearchRecord creates one history entry
func NewTestSearchRecord(id int64, actorID string, kind models.SearchKind, query string, resultCount int) *models.SearchRecord {
	return &models.SearchRecord{
		ID:          id,
		ActorID:     actorID,
		ActorRole:   models.RoleUser,
		Kind:        kind,
		Query:       query,
		ResultCount: resultCount,
		CreatedAt:   time.Now(),
	}
}
