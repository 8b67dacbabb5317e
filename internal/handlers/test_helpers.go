package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/querydesk/querydesk/internal/gate"
	"github.com/querydesk/querydesk/internal/models"
	"github.com/querydesk/querydesk/internal/search"
	"github.com/querydesk/querydesk/internal/services"
	"github.com/querydesk/querydesk/internal/session"
	pkghttp "github.com/querydesk/querydesk/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithIdentity attaches an authenticated identity to the request context,
// standing in for the middleware chain
func WithIdentity(req *http.Request, identity session.Identity) *http.Request {
	return gate.WithIdentity(req, identity)
}

// WithChiRouteContext adds chi URL parameters to the request context so
// handlers can be tested without mounting a router
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks the status code and decodes the JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "response status mismatch")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "failed to decode response JSON")
	}
}

// AssertErrorResponse checks status code and the error envelope message
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "failed to decode error response")
	assert.False(t, resp.Success)
	assert.Equal(t, expectedError, resp.Error)
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc func(ctx context.Context, username, password, loginType, ip, userAgent string) (session.Identity, error)
}

func (m *MockAuthService) Login(ctx context.Context, username, password, loginType, ip, userAgent string) (session.Identity, error) {
	if m.LoginFunc == nil {
		return session.Identity{}, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, username, password, loginType, ip, userAgent)
}

// MockAccountService implements AccountServiceInterface for testing
type MockAccountService struct {
	GetAccountByIDFunc        func(ctx context.Context, id string) (*models.Account, error)
	ListAccountsFunc          func(ctx context.Context, limit, offset int) ([]*models.Account, error)
	CreateAccountFunc         func(ctx context.Context, account *models.Account, password, actorID, ip string) (*models.Account, error)
	UpdateAccountFunc         func(ctx context.Context, id string, updates *models.Account, password, actorID, ip string) (*models.Account, error)
	DeleteAccountFunc         func(ctx context.Context, id, actorID, ip string) error
	UpdateAccountFeaturesFunc func(ctx context.Context, id string, features []string, actorID, ip string) (*models.Account, error)
	AccountDetailsFunc        func(ctx context.Context, id string, historyLimit, historyOffset int) (*services.AccountDetails, error)
	DashboardStatsFunc        func(ctx context.Context) (*services.DashboardStats, error)
}

func (m *MockAccountService) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	if m.GetAccountByIDFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetAccountByIDFunc(ctx, id)
}

func (m *MockAccountService) ListAccounts(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	if m.ListAccountsFunc == nil {
		return []*models.Account{}, nil
	}
	return m.ListAccountsFunc(ctx, limit, offset)
}

func (m *MockAccountService) CreateAccount(ctx context.Context, account *models.Account, password, actorID, ip string) (*models.Account, error) {
	if m.CreateAccountFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.CreateAccountFunc(ctx, account, password, actorID, ip)
}

func (m *MockAccountService) UpdateAccount(ctx context.Context, id string, updates *models.Account, password, actorID, ip string) (*models.Account, error) {
	if m.UpdateAccountFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateAccountFunc(ctx, id, updates, password, actorID, ip)
}

func (m *MockAccountService) DeleteAccount(ctx context.Context, id, actorID, ip string) error {
	if m.DeleteAccountFunc == nil {
		return nil
	}
	return m.DeleteAccountFunc(ctx, id, actorID, ip)
}

func (m *MockAccountService) UpdateAccountFeatures(ctx context.Context, id string, features []string, actorID, ip string) (*models.Account, error) {
	if m.UpdateAccountFeaturesFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateAccountFeaturesFunc(ctx, id, features, actorID, ip)
}

func (m *MockAccountService) AccountDetails(ctx context.Context, id string, historyLimit, historyOffset int) (*services.AccountDetails, error) {
	if m.AccountDetailsFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.AccountDetailsFunc(ctx, id, historyLimit, historyOffset)
}

func (m *MockAccountService) DashboardStats(ctx context.Context) (*services.DashboardStats, error) {
	if m.DashboardStatsFunc == nil {
		return &services.DashboardStats{}, nil
	}
	return m.DashboardStatsFunc(ctx)
}

// MockSearchService implements SearchServiceInterface for testing
type MockSearchService struct {
	LookupFunc   func(ctx context.Context, route search.Route, query string, actor session.Identity) (search.Result, error)
	FeaturesFunc func(ctx context.Context, actor session.Identity) ([]string, error)
}

func (m *MockSearchService) Lookup(ctx context.Context, route search.Route, query string, actor session.Identity) (search.Result, error) {
	if m.LookupFunc == nil {
		return search.Result{}, models.ErrInternalServer
	}
	return m.LookupFunc(ctx, route, query, actor)
}

func (m *MockSearchService) Features(ctx context.Context, actor session.Identity) ([]string, error) {
	if m.FeaturesFunc == nil {
		return append([]string(nil), models.AllFeatures...), nil
	}
	return m.FeaturesFunc(ctx, actor)
}
