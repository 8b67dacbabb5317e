package integration

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/querydesk/querydesk/internal/models"
)

// TestCredentials generates unique account credentials using a timestamp
func TestCredentials(suffix string) (username, email, password string) {
	ts := time.Now().UnixNano()
	username = fmt.Sprintf("acct%d%s", ts, suffix)
	email = fmt.Sprintf("test-%d-%s@example.com", ts, suffix)
	password = "TestPassword123"
	return
}

// AccountFixture builds an unsaved account with unique credentials
func AccountFixture(suffix string) *models.Account {
	username, email, _ := TestCredentials(suffix)
	return &models.Account{
		Username: username,
		Email:    email,
		Name:     "Integration " + suffix,
		Status:   models.AccountStatusActive,
		Features: []string{},
	}
}

// StaticJSONServer answers every request with the given status and body,
// standing in for an upstream search provider.
func StaticJSONServer(status int, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
}
