package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/querydesk/querydesk/internal/gate"
	"github.com/querydesk/querydesk/internal/models"
	"github.com/querydesk/querydesk/internal/services"
	pkghttp "github.com/querydesk/querydesk/pkg/http"
)

// AccountServiceInterface defines the interface for account management logic
type AccountServiceInterface interface {
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)
	ListAccounts(ctx context.Context, limit, offset int) ([]*models.Account, error)
	CreateAccount(ctx context.Context, account *models.Account, password, actorID, ip string) (*models.Account, error)
	UpdateAccount(ctx context.Context, id string, updates *models.Account, password, actorID, ip string) (*models.Account, error)
	DeleteAccount(ctx context.Context, id, actorID, ip string) error
	UpdateAccountFeatures(ctx context.Context, id string, features []string, actorID, ip string) (*models.Account, error)
	AccountDetails(ctx context.Context, id string, historyLimit, historyOffset int) (*services.AccountDetails, error)
	DashboardStats(ctx context.Context) (*services.DashboardStats, error)
}

// AccountHandler handles the privileged account management endpoints
type AccountHandler struct {
	service AccountServiceInterface
	variant models.Variant
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(service AccountServiceInterface, variant models.Variant) *AccountHandler {
	return &AccountHandler{
		service: service,
		variant: variant,
	}
}

// Request/Response DTOs

// CreateAccountRequest represents the request body for creating an account
type CreateAccountRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50,username"`
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Password string `json:"password" validate:"required,min=6,max=100"`
}

// UpdateAccountRequest represents the request body for updating an account.
// Every field is optional; the username is immutable.
type UpdateAccountRequest struct {
	Email    string `json:"email" validate:"omitempty,email"`
	Name     string `json:"name" validate:"omitempty,min=2,max=100"`
	Password string `json:"password" validate:"omitempty,min=6,max=100"`
	Status   string `json:"status" validate:"omitempty,oneof=active inactive"`
}

// UpdateFeaturesRequest represents the request body for a feature grant update
type UpdateFeaturesRequest struct {
	Features []string `json:"features" validate:"required"`
}

// AccountResponse represents an account in HTTP responses. The password hash
// never leaves the server.
type AccountResponse struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Status      string   `json:"status"`
	Features    []string `json:"features"`
	CreatedAt   string   `json:"created_at"`
	LastLoginAt string   `json:"last_login_at,omitempty"`
}

// SearchRecordResponse represents one history entry in HTTP responses
type SearchRecordResponse struct {
	ID          int64  `json:"id"`
	Kind        string `json:"kind"`
	Query       string `json:"query"`
	ResultCount int    `json:"result_count"`
	CreatedAt   string `json:"created_at"`
}

const timestampLayout = "2006-01-02T15:04:05Z07:00"

func accountToResponse(account *models.Account) *AccountResponse {
	features := account.Features
	if features == nil {
		features = []string{}
	}

	resp := &AccountResponse{
		ID:        account.ID.String(),
		Username:  account.Username,
		Email:     account.Email,
		Name:      account.Name,
		Status:    account.Status,
		Features:  features,
		CreatedAt: account.CreatedAt.Format(timestampLayout),
	}
	if account.LastLoginAt != nil {
		resp.LastLoginAt = account.LastLoginAt.Format(timestampLayout)
	}
	return resp
}

func recordToResponse(record *models.SearchRecord) *SearchRecordResponse {
	return &SearchRecordResponse{
		ID:          record.ID,
		Kind:        string(record.Kind),
		Query:       record.Query,
		ResultCount: record.ResultCount,
		CreatedAt:   record.CreatedAt.Format(timestampLayout),
	}
}

// Stats returns aggregate account and search totals
func (h *AccountHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.DashboardStats(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	byKind := make(map[string]int, len(stats.SearchesByKind))
	for kind, count := range stats.SearchesByKind {
		byKind[string(kind)] = count
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stats": map[string]interface{}{
			"total_accounts":    stats.TotalAccounts,
			"active_accounts":   stats.ActiveAccounts,
			"inactive_accounts": stats.InactiveAccounts,
			"total_searches":    stats.TotalSearches,
			"searches_by_kind":  byKind,
		},
	})
}

// ListAccounts returns accounts with pagination, newest first
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	limit, err := parseQueryInt(r, "limit", 50, 1, 200)
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid limit parameter")
		return
	}
	offset, err := parseQueryInt(r, "offset", 0, 0, 100000)
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid offset parameter")
		return
	}

	accounts, err := h.service.ListAccounts(r.Context(), limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	responses := make([]*AccountResponse, len(accounts))
	for i, account := range accounts {
		responses[i] = accountToResponse(account)
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"accounts": responses,
		"total":    len(responses),
	})
}

// GetAccount returns one account by id
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	account, err := h.service.GetAccountByID(r.Context(), id)
	if err != nil {
		h.writeAccountError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"account": accountToResponse(account),
	})
}

// CreateAccount provisions a managed account
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	actor, _ := gate.GetIdentity(r)
	account := &models.Account{
		Username: req.Username,
		Email:    req.Email,
		Name:     req.Name,
	}

	created, err := h.service.CreateAccount(r.Context(), account, req.Password, actor.ID, pkghttp.ExtractClientIP(r))
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			pkghttp.WriteBadRequest(w, "Username or email already exists")
			return
		}
		h.writeAccountError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"account": accountToResponse(created),
	})
}

// UpdateAccount applies a partial update to an account
func (h *AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	var req UpdateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	actor, _ := gate.GetIdentity(r)
	updates := &models.Account{
		Email:  req.Email,
		Name:   req.Name,
		Status: req.Status,
	}

	updated, err := h.service.UpdateAccount(r.Context(), id, updates, req.Password, actor.ID, pkghttp.ExtractClientIP(r))
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			pkghttp.WriteBadRequest(w, "Username or email already exists")
			return
		}
		h.writeAccountError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"account": accountToResponse(updated),
	})
}

// DeleteAccount removes an account
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	actor, _ := gate.GetIdentity(r)
	if err := h.service.DeleteAccount(r.Context(), id, actor.ID, pkghttp.ExtractClientIP(r)); err != nil {
		h.writeAccountError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
	})
}

// AccountDetails returns one account with its search history and per-kind
// totals. Mounted only in the admin-user variant.
func (h *AccountHandler) AccountDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	limit, err := parseQueryInt(r, "limit", 100, 1, 500)
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid limit parameter")
		return
	}
	offset, err := parseQueryInt(r, "offset", 0, 0, 100000)
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid offset parameter")
		return
	}

	details, err := h.service.AccountDetails(r.Context(), id, limit, offset)
	if err != nil {
		h.writeAccountError(w, err)
		return
	}

	history := make([]*SearchRecordResponse, len(details.History))
	for i, record := range details.History {
		history[i] = recordToResponse(record)
	}
	kindCounts := make(map[string]int, len(details.KindCounts))
	for kind, count := range details.KindCounts {
		kindCounts[string(kind)] = count
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"account":     accountToResponse(details.Account),
		"history":     history,
		"kind_counts": kindCounts,
		"features":    models.AllFeatures,
	})
}

// UpdateFeatures replaces an account's search feature grant. Mounted only in
// the admin-user variant.
func (h *AccountHandler) UpdateFeatures(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	var req UpdateFeaturesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	actor, _ := gate.GetIdentity(r)
	updated, err := h.service.UpdateAccountFeatures(r.Context(), id, req.Features, actor.ID, pkghttp.ExtractClientIP(r))
	if err != nil {
		h.writeAccountError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"account": accountToResponse(updated),
	})
}

func (h *AccountHandler) writeAccountError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Account not found")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid request")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// accountID extracts and validates the {id} route parameter. Rejecting
// malformed ids here keeps garbage out of the uuid-typed SQL parameters.
func accountID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if uuid.Validate(id) != nil {
		pkghttp.WriteBadRequest(w, "Invalid account id")
		return "", false
	}
	return id, true
}

func parseQueryInt(r *http.Request, name string, def, min, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < min || value > max {
		return 0, errors.New("out of range")
	}
	return value, nil
}
