package gate

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/querydesk/querydesk/internal/vpn"
)

func vpnGuardHandler() http.Handler {
	detector := vpn.NewDetector(
		vpn.DefaultBlocklist(),
		vpn.Config{Timeout: time.Second, CacheTTL: time.Minute},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return VPNGuard(detector, discardAudit(), nil)(okHandler())
}

func TestVPNGuard_BlocksDatacenterIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/search/mobile/9876543210", nil)
	req.Header.Set("X-Forwarded-For", "104.131.0.50")
	w := httptest.NewRecorder()

	vpnGuardHandler().ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	envelope := decodeError(t, w)
	if envelope.Code != CodeVPNDetected {
		t.Errorf("expected code %s, got %q", CodeVPNDetected, envelope.Code)
	}
	if envelope.Error != "Access denied: VPN or proxy detected" {
		t.Errorf("unexpected message %q", envelope.Error)
	}
}

func TestVPNGuard_AllowsCleanIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/search/mobile/9876543210", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.10")
	w := httptest.NewRecorder()

	vpnGuardHandler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestVPNGuard_AllowsPrivateIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/auth/login", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.5")
	w := httptest.NewRecorder()

	vpnGuardHandler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for private IP, got %d", w.Code)
	}
}
