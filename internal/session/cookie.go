package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
)

// CookieName is the session cookie issued to the browser.
const CookieName = "qd_session"

// CookieConfig holds session cookie attributes
type CookieConfig struct {
	Secure   bool   // HTTPS only
	SameSite string // "strict", "lax", or "none"
	MaxAge   int    // Seconds; mirrors the store TTL
}

// SignToken binds a store token to the signing secret. The cookie value is
// "<token>.<base64url hmac>" so a tampered token fails verification before
// any store lookup.
func SignToken(token, secret string) string {
	return token + "." + computeMAC(token, secret)
}

// VerifyToken checks the cookie value's signature and returns the embedded
// store token.
func VerifyToken(value, secret string) (string, bool) {
	idx := strings.LastIndex(value, ".")
	if idx <= 0 || idx == len(value)-1 {
		return "", false
	}

	token := value[:idx]
	mac := value[idx+1:]

	expected := computeMAC(token, secret)
	if !hmac.Equal([]byte(mac), []byte(expected)) {
		return "", false
	}
	return token, true
}

// SetSessionCookie sets the signed session token in an httpOnly cookie
func SetSessionCookie(w http.ResponseWriter, signedValue string, config CookieConfig) {
	cookie := &http.Cookie{
		Name:     CookieName,
		Value:    signedValue,
		Path:     "/",
		MaxAge:   config.MaxAge,
		HttpOnly: true, // Critical: prevents JavaScript access (XSS protection)
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	}
	http.SetCookie(w, cookie)
}

// ClearSessionCookie clears the session cookie
func ClearSessionCookie(w http.ResponseWriter, config CookieConfig) {
	cookie := &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // Negative MaxAge deletes the cookie
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	}
	http.SetCookie(w, cookie)
}

// GetSessionCookie retrieves the raw signed value from the request cookies
func GetSessionCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

func computeMAC(token, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(token))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// parseSameSite converts string to http.SameSite constant
func parseSameSite(sameSite string) http.SameSite {
	switch sameSite {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
