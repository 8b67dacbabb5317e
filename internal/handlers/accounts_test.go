package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/querydesk/querydesk/internal/handlers"
	"github.com/querydesk/querydesk/internal/models"
	"github.com/querydesk/querydesk/internal/services"
	"github.com/querydesk/querydesk/internal/session"
)

const testAccountID = "7f9c24e5-1df2-4a96-9f0c-fd4472335e01"

func adminIdentity() session.Identity {
	return session.Identity{ID: models.RoleAdmin, Username: "root", Name: "root", Role: models.RoleAdmin}
}

func testAccount(id string) *models.Account {
	account := services.NewTestAccount("casey", "casey@example.com", "Casey Smith")
	if id != "" {
		account.ID = uuid.MustParse(id)
	}
	return account
}

func TestStats_Success(t *testing.T) {
	mockService := &handlers.MockAccountService{
		DashboardStatsFunc: func(ctx context.Context) (*services.DashboardStats, error) {
			return &services.DashboardStats{
				TotalAccounts:    12,
				ActiveAccounts:   9,
				InactiveAccounts: 3,
				TotalSearches:    321,
				SearchesByKind: map[models.SearchKind]int{
					models.SearchKindMobile: 200,
					models.SearchKindIP:     121,
				},
			}, nil
		},
	}
	handler := handlers.NewAccountHandler(mockService, models.VariantAdminUser)

	req := handlers.NewTestRequest(t, "GET", "/api/admin/stats", nil)
	req = handlers.WithIdentity(req, adminIdentity())
	w := httptest.NewRecorder()

	handler.Stats(w, req)

	var resp struct {
		Success bool `json:"success"`
		Stats   struct {
			TotalAccounts    int            `json:"total_accounts"`
			ActiveAccounts   int            `json:"active_accounts"`
			InactiveAccounts int            `json:"inactive_accounts"`
			TotalSearches    int            `json:"total_searches"`
			SearchesByKind   map[string]int `json:"searches_by_kind"`
		} `json:"stats"`
	}
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, 12, resp.Stats.TotalAccounts)
	assert.Equal(t, 9, resp.Stats.ActiveAccounts)
	assert.Equal(t, 3, resp.Stats.InactiveAccounts)
	assert.Equal(t, 321, resp.Stats.TotalSearches)
	assert.Equal(t, 200, resp.Stats.SearchesByKind["mobile"])
}

func TestListAccounts_Success(t *testing.T) {
	var gotLimit, gotOffset int
	mockService := &handlers.MockAccountService{
		ListAccountsFunc: func(ctx context.Context, limit, offset int) ([]*models.Account, error) {
			gotLimit, gotOffset = limit, offset
			return []*models.Account{
				services.NewTestAccount("casey", "casey@example.com", "Casey Smith"),
				services.NewTestAccount("jordan", "jordan@example.com", "Jordan Lee"),
			}, nil
		},
	}
	handler := handlers.NewAccountHandler(mockService, models.VariantAdminUser)

	req := handlers.NewTestRequest(t, "GET", "/api/admin/users", nil)
	w := httptest.NewRecorder()

	handler.ListAccounts(w, req)

	var resp struct {
		Success  bool                        `json:"success"`
		Accounts []*handlers.AccountResponse `json:"accounts"`
		Total    int                         `json:"total"`
	}
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Total)
	assert.Len(t, resp.Accounts, 2)
	assert.Equal(t, "casey", resp.Accounts[0].Username)
	assert.Equal(t, 50, gotLimit, "default limit")
	assert.Equal(t, 0, gotOffset, "default offset")
}

func TestListAccounts_InvalidPagination(t *testing.T) {
	handler := handlers.NewAccountHandler(&handlers.MockAccountService{
		ListAccountsFunc: func(ctx context.Context, limit, offset int) ([]*models.Account, error) {
			t.Error("service must not be called for invalid pagination")
			return nil, nil
		},
	}, models.VariantAdminUser)

	cases := []struct {
		name  string
		query string
		error string
	}{
		{"non-numeric limit", "?limit=abc", "Invalid limit parameter"},
		{"zero limit", "?limit=0", "Invalid limit parameter"},
		{"oversized limit", "?limit=1000", "Invalid limit parameter"},
		{"negative offset", "?offset=-5", "Invalid offset parameter"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := handlers.NewTestRequest(t, "GET", "/api/admin/users"+tc.query, nil)
			w := httptest.NewRecorder()

			handler.ListAccounts(w, req)

			handlers.AssertErrorResponse(t, w, http.StatusBadRequest, tc.error)
		})
	}
}

func TestGetAccount_Success(t *testing.T) {
	account := testAccount(testAccountID)
	lastLogin := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	account.LastLoginAt = &lastLogin

	mockService := &handlers.MockAccountService{
		GetAccountByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			assert.Equal(t, testAccountID, id)
			return account, nil
		},
	}
	handler := handlers.NewAccountHandler(mockService, models.VariantAdminUser)

	req := handlers.NewTestRequest(t, "GET", "/api/admin/users/"+testAccountID, nil)
	req = handlers.WithChiRouteContext(req, map[string]string{"id": testAccountID})
	w := httptest.NewRecorder()

	handler.GetAccount(w, req)

	var resp struct {
		Success bool                      `json:"success"`
		Account *handlers.AccountResponse `json:"account"`
	}
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.True(t, resp.Success)
	if assert.NotNil(t, resp.Account) {
		assert.Equal(t, testAccountID, resp.Account.ID)
		assert.Equal(t, "casey", resp.Account.Username)
		assert.Equal(t, "2025-03-10T09:30:00Z", resp.Account.LastLoginAt)
	}
	assert.NotContains(t, w.Body.String(), "password", "hash must never appear in a response")
}

func TestGetAccount_InvalidID(t *testing.T) {
	handler := handlers.NewAccountHandler(&handlers.MockAccountService{
		GetAccountByIDFunc: func(ctx context.Context, id string) (*models.Account, error) {
			t.Error("service must not be called for a malformed id")
			return nil, nil
		},
	}, models.VariantAdminUser)

	req := handlers.NewTestRequest(t, "GET", "/api/admin/users/not-a-uuid", nil)
	req = handlers.WithChiRouteContext(req, map[string]string{"id": "not-a-uuid"})
	w := httptest.NewRecorder()

	handler.GetAccount(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "Invalid account id")
}

func TestGetAccount_NotFound(t *testing.T) {
	handler := handlers.NewAccountHandler(&handlers.MockAccountService{}, models.VariantAdminUser)

	req := handlers.NewTestRequest(t, "GET", "/api/admin/users/"+testAccountID, nil)
	req = handlers.WithChiRouteContext(req, map[string]string{"id": testAccountID})
	w := httptest.NewRecorder()

	handler.GetAccount(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusNotFound, "Account not found")
}

func TestCreateAccount_Success(t *testing.T) {
	var gotPassword, gotActorID string
	mockService := &handlers.MockAccountService{
		CreateAccountFunc: func(ctx context.Context, account *models.Account, password, actorID, ip string) (*models.Account, error) {
			gotPassword, gotActorID = password, actorID
			assert.Equal(t, "casey", account.Username)
			assert.Equal(t, "casey@example.com", account.Email)
			created := testAccount("")
			created.Username = account.Username
			created.Email = account.Email
			created.Name = account.Name
			return created, nil
		},
	}
	handler := handlers.NewAccountHandler(mockService, models.VariantAdminUser)

	req := handlers.NewTestRequest(t, "POST", "/api/admin/users", handlers.CreateAccountRequest{
		Username: "casey",
		Email:    "casey@example.com",
		Name:     "Casey Smith",
		Password: "password123",
	})
	req = handlers.WithIdentity(req, adminIdentity())
	w := httptest.NewRecorder()

	handler.CreateAccount(w, req)

	var resp struct {
		Success bool                      `json:"success"`
		Account *handlers.AccountResponse `json:"account"`
	}
	handlers.AssertJSONResponse(t, w, http.StatusCreated, &resp)
	assert.True(t, resp.Success)
	if assert.NotNil(t, resp.Account) {
		assert.Equal(t, "casey", resp.Account.Username)
	}
	assert.Equal(t, "password123", gotPassword)
	assert.Equal(t, models.RoleAdmin, gotActorID, "creating admin is recorded as the actor")
}

func TestCreateAccount_ValidationFailures(t *testing.T) {
	handler := handlers.NewAccountHandler(&handlers.MockAccountService{
		CreateAccountFunc: func(ctx context.Context, account *models.Account, password, actorID, ip string) (*models.Account, error) {
			t.Error("service must not be called for an invalid request")
			return nil, nil
		},
	}, models.VariantAdminUser)

	valid := handlers.CreateAccountRequest{
		Username: "casey",
		Email:    "casey@example.com",
		Name:     "Casey Smith",
		Password: "password123",
	}

	cases := []struct {
		name   string
		mutate func(*handlers.CreateAccountRequest)
		error  string
	}{
		{
			"short username",
			func(r *handlers.CreateAccountRequest) { r.Username = "ab" },
			"validation failed: Username: must have a minimum of 3 characters",
		},
		{
			"username with dash",
			func(r *handlers.CreateAccountRequest) { r.Username = "casey-smith" },
			"validation failed: Username: may only contain letters, numbers and underscores",
		},
		{
			"invalid email",
			func(r *handlers.CreateAccountRequest) { r.Email = "not-an-email" },
			"validation failed: Email: must be a valid email address",
		},
		{
			"missing name",
			func(r *handlers.CreateAccountRequest) { r.Name = "" },
			"validation failed: Name: this field is required",
		},
		{
			"short password",
			func(r *handlers.CreateAccountRequest) { r.Password = "12345" },
			"validation failed: Password: must have a minimum of 6 characters",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := valid
			tc.mutate(&body)

			req := handlers.NewTestRequest(t, "POST", "/api/admin/users", body)
			req = handlers.WithIdentity(req, adminIdentity())
			w := httptest.NewRecorder()

			handler.CreateAccount(w, req)

			handlers.AssertErrorResponse(t, w, http.StatusBadRequest, tc.error)
		})
	}
}

func TestCreateAccount_Conflict(t *testing.T) {
	mockService := &handlers.MockAccountService{
		CreateAccountFunc: func(ctx context.Context, account *models.Account, password, actorID, ip string) (*models.Account, error) {
			return nil, models.ErrConflict
		},
	}
	handler := handlers.NewAccountHandler(mockService, models.VariantAdminUser)

	req := handlers.NewTestRequest(t, "POST", "/api/admin/users", handlers.CreateAccountRequest{
		Username: "casey",
		Email:    "casey@example.com",
		Name:     "Casey Smith",
		Password: "password123",
	})
	req = handlers.WithIdentity(req, adminIdentity())
	w := httptest.NewRecorder()

	handler.CreateAccount(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "Username or email already exists")
}

func TestUpdateAccount_PartialBody(t *testing.T) {
	var gotUpdates *models.Account
	var gotPassword string
	mockService := &handlers.MockAccountService{
		UpdateAccountFunc: func(ctx context.Context, id string, updates *models.Account, password, actorID, ip string) (*models.Account, error) {
			gotUpdates, gotPassword = updates, password
			updated := testAccount(id)
			updated.Name = updates.Name
			return updated, nil
		},
	}
	handler := handlers.NewAccountHandler(mockService, models.VariantAdminUser)

	req := handlers.NewTestRequest(t, "PUT", "/api/admin/users/"+testAccountID, handlers.UpdateAccountRequest{
		Name: "Casey Jordan",
	})
	req = handlers.WithChiRouteContext(req, map[string]string{"id": testAccountID})
	req = handlers.WithIdentity(req, adminIdentity())
	w := httptest.NewRecorder()

	handler.UpdateAccount(w, req)

	var resp struct {
		Success bool                      `json:"success"`
		Account *handlers.AccountResponse `json:"account"`
	}
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.True(t, resp.Success)
	if assert.NotNil(t, gotUpdates) {
		assert.Equal(t, "Casey Jordan", gotUpdates.Name)
		assert.Empty(t, gotUpdates.Email, "omitted fields pass through empty")
		assert.Empty(t, gotUpdates.Status)
	}
	assert.Empty(t, gotPassword)
}

func TestUpdateAccount_InvalidStatus(t *testing.T) {
	handler := handlers.NewAccountHandler(&handlers.MockAccountService{
		UpdateAccountFunc: func(ctx context.Context, id string, updates *models.Account, password, actorID, ip string) (*models.Account, error) {
			t.Error("service must not be called for an invalid status")
			return nil, nil
		},
	}, models.VariantAdminUser)

	req := handlers.NewTestRequest(t, "PUT", "/api/admin/users/"+testAccountID, handlers.UpdateAccountRequest{
		Status: "banned",
	})
	req = handlers.WithChiRouteContext(req, map[string]string{"id": testAccountID})
	w := httptest.NewRecorder()

	handler.UpdateAccount(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "validation failed: Status: must be one of: active inactive")
}

func TestUpdateAccount_NotFound(t *testing.T) {
	handler := handlers.NewAccountHandler(&handlers.MockAccountService{}, models.VariantAdminUser)

	req := handlers.NewTestRequest(t, "PUT", "/api/admin/users/"+testAccountID, handlers.UpdateAccountRequest{
		Name: "Casey Jordan",
	})
	req = handlers.WithChiRouteContext(req, map[string]string{"id": testAccountID})
	w := httptest.NewRecorder()

	handler.UpdateAccount(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusNotFound, "Account not found")
}

func TestDeleteAccount_Success(t *testing.T) {
	var gotID, gotActorID string
	mockService := &handlers.MockAccountService{
		DeleteAccountFunc: func(ctx context.Context, id, actorID, ip string) error {
			gotID, gotActorID = id, actorID
			return nil
		},
	}
	handler := handlers.NewAccountHandler(mockService, models.VariantAdminUser)

	req := handlers.NewTestRequest(t, "DELETE", "/api/admin/users/"+testAccountID, nil)
	req = handlers.WithChiRouteContext(req, map[string]string{"id": testAccountID})
	req = handlers.WithIdentity(req, adminIdentity())
	w := httptest.NewRecorder()

	handler.DeleteAccount(w, req)

	var resp struct {
		Success bool `json:"success"`
	}
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, testAccountID, gotID)
	assert.Equal(t, models.RoleAdmin, gotActorID)
}

func TestDeleteAccount_NotFound(t *testing.T) {
	mockService := &handlers.MockAccountService{
		DeleteAccountFunc: func(ctx context.Context, id, actorID, ip string) error {
			return models.ErrNotFound
		},
	}
	handler := handlers.NewAccountHandler(mockService, models.VariantAdminUser)

	req := handlers.NewTestRequest(t, "DELETE", "/api/admin/users/"+testAccountID, nil)
	req = handlers.WithChiRouteContext(req, map[string]string{"id": testAccountID})
	w := httptest.NewRecorder()

	handler.DeleteAccount(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusNotFound, "Account not found")
}

func TestAccountDetails_Success(t *testing.T) {
	account := testAccount(testAccountID)
	mockService := &handlers.MockAccountService{
		AccountDetailsFunc: func(ctx context.Context, id string, historyLimit, historyOffset int) (*services.AccountDetails, error) {
			assert.Equal(t, testAccountID, id)
			assert.Equal(t, 100, historyLimit, "default history limit")
			return &services.AccountDetails{
				Account: account,
				History: []*models.SearchRecord{
					services.NewTestSearchRecord(2, testAccountID, models.SearchKindMobile, "9812345678", 3),
					services.NewTestSearchRecord(1, testAccountID, models.SearchKindIP, "8.8.8.8", 1),
				},
				KindCounts: map[models.SearchKind]int{
					models.SearchKindMobile: 5,
					models.SearchKindIP:     2,
				},
			}, nil
		},
	}
	handler := handlers.NewAccountHandler(mockService, models.VariantAdminUser)

	req := handlers.NewTestRequest(t, "GET", "/api/admin/users/"+testAccountID+"/details", nil)
	req = handlers.WithChiRouteContext(req, map[string]string{"id": testAccountID})
	w := httptest.NewRecorder()

	handler.AccountDetails(w, req)

	var resp struct {
		Success    bool                             `json:"success"`
		Account    *handlers.AccountResponse        `json:"account"`
		History    []*handlers.SearchRecordResponse `json:"history"`
		KindCounts map[string]int                   `json:"kind_counts"`
		Features   []string                         `json:"features"`
	}
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.True(t, resp.Success)
	if assert.NotNil(t, resp.Account) {
		assert.Equal(t, testAccountID, resp.Account.ID)
	}
	if assert.Len(t, resp.History, 2) {
		assert.Equal(t, "mobile", resp.History[0].Kind)
		assert.Equal(t, "9812345678", resp.History[0].Query)
		assert.Equal(t, 3, resp.History[0].ResultCount)
	}
	assert.Equal(t, 5, resp.KindCounts["mobile"])
	assert.Equal(t, models.AllFeatures, resp.Features, "feature vocabulary rides along for the edit form")
}

func TestAccountDetails_NotFound(t *testing.T) {
	handler := handlers.NewAccountHandler(&handlers.MockAccountService{}, models.VariantAdminUser)

	req := handlers.NewTestRequest(t, "GET", "/api/admin/users/"+testAccountID+"/details", nil)
	req = handlers.WithChiRouteContext(req, map[string]string{"id": testAccountID})
	w := httptest.NewRecorder()

	handler.AccountDetails(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusNotFound, "Account not found")
}

func TestUpdateFeatures_Success(t *testing.T) {
	var gotFeatures []string
	mockService := &handlers.MockAccountService{
		UpdateAccountFeaturesFunc: func(ctx context.Context, id string, features []string, actorID, ip string) (*models.Account, error) {
			gotFeatures = features
			updated := testAccount(id)
			updated.Features = []string{"mobile", "ip"}
			return updated, nil
		},
	}
	handler := handlers.NewAccountHandler(mockService, models.VariantAdminUser)

	req := handlers.NewTestRequest(t, "PUT", "/api/admin/users/"+testAccountID+"/features", handlers.UpdateFeaturesRequest{
		Features: []string{"ip", "mobile"},
	})
	req = handlers.WithChiRouteContext(req, map[string]string{"id": testAccountID})
	req = handlers.WithIdentity(req, adminIdentity())
	w := httptest.NewRecorder()

	handler.UpdateFeatures(w, req)

	var resp struct {
		Success bool                      `json:"success"`
		Account *handlers.AccountResponse `json:"account"`
	}
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"ip", "mobile"}, gotFeatures)
	if assert.NotNil(t, resp.Account) {
		assert.Equal(t, []string{"mobile", "ip"}, resp.Account.Features)
	}
}

func TestUpdateFeatures_MissingList(t *testing.T) {
	handler := handlers.NewAccountHandler(&handlers.MockAccountService{
		UpdateAccountFeaturesFunc: func(ctx context.Context, id string, features []string, actorID, ip string) (*models.Account, error) {
			t.Error("service must not be called without a feature list")
			return nil, nil
		},
	}, models.VariantAdminUser)

	req := handlers.NewTestRequest(t, "PUT", "/api/admin/users/"+testAccountID+"/features", map[string]interface{}{})
	req = handlers.WithChiRouteContext(req, map[string]string{"id": testAccountID})
	w := httptest.NewRecorder()

	handler.UpdateFeatures(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "validation failed: Features: this field is required")
}
