package gate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/querydesk/querydesk/internal/models"
	"github.com/querydesk/querydesk/internal/session"
)

func requestWithIdentity(role string) *http.Request {
	req := httptest.NewRequest("GET", "/api/admin/accounts", nil)
	identity := session.Identity{ID: "id-1", Username: "someone", Role: role}
	ctx := context.WithValue(req.Context(), identityContextKey, identity)
	return req.WithContext(ctx)
}

func TestRequirePrivileged_AllowsPrivilegedRole(t *testing.T) {
	handler := RequirePrivileged(models.VariantAdminUser)(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestWithIdentity(models.RoleAdmin))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for admin, got %d", w.Code)
	}
}

func TestRequirePrivileged_RejectsManagedRole(t *testing.T) {
	handler := RequirePrivileged(models.VariantAdminUser)(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestWithIdentity(models.RoleUser))

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for user, got %d", w.Code)
	}
	if envelope := decodeError(t, w); envelope.Error != "Forbidden" {
		t.Errorf("unexpected message %q", envelope.Error)
	}
}

func TestRequirePrivileged_RejectsUnauthenticated(t *testing.T) {
	handler := RequirePrivileged(models.VariantAdminUser)(okHandler())

	req := httptest.NewRequest("GET", "/api/admin/accounts", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without identity, got %d", w.Code)
	}
}

func TestRequirePrivileged_OwnerVariant(t *testing.T) {
	handler := RequirePrivileged(models.VariantOwnerAdmin)(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestWithIdentity(models.RoleOwner))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for owner, got %d", w.Code)
	}

	// The admin role is the managed one in this variant
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, requestWithIdentity(models.RoleAdmin))
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for admin under owner variant, got %d", w.Code)
	}
}
