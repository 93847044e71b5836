// Package auth carries the session plumbing for the HTTP surface and the
// default credential verifier. Sessions are HMAC-signed cookies holding
// the username; the core never sees the cookie, only the identity the
// middleware resolves from it.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type ctxKey string

const (
	sessionCookieName = "session"
	usernameCtxKey    = ctxKey("username")
	issuedAtCtxKey    = ctxKey("issuedAt")
)

// Secret returns SESSION_SECRET or a default dev value.
func Secret() string {
	if s := os.Getenv("SESSION_SECRET"); s != "" {
		return s
	}
	return "devsessionsecret"
}

func sign(payload string) string {
	mac := hmac.New(sha256.New, []byte(Secret()))
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// CreateSession sets a signed cookie carrying the username and issue
// time. The issue time is covered by the signature, so the server can
// enforce the session TTL on every request; the cookie Expires attribute
// is only a courtesy to the browser.
func CreateSession(w http.ResponseWriter, username string, ttl time.Duration) {
	issuedAt := time.Now()
	payload := fmt.Sprintf("%s|%d", username, issuedAt.Unix())
	encoded := base64.RawURLEncoding.EncodeToString([]byte(payload))
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    encoded + "." + sign(payload),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  issuedAt.Add(ttl),
	})
}

// ClearSession deletes the session cookie.
func ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "", Path: "/", Expires: time.Unix(0, 0), HttpOnly: true, SameSite: http.SameSiteLaxMode})
}

// ParseSession validates the cookie and returns the username and issue
// time. Expiry is not judged here; the caller owns the TTL policy.
func ParseSession(r *http.Request) (string, time.Time, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return "", time.Time{}, false
	}
	parts := strings.Split(c.Value, ".")
	if len(parts) != 2 {
		return "", time.Time{}, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", time.Time{}, false
	}
	payload := string(raw)
	if !hmac.Equal([]byte(parts[1]), []byte(sign(payload))) {
		return "", time.Time{}, false
	}
	sep := strings.LastIndex(payload, "|")
	if sep <= 0 {
		return "", time.Time{}, false
	}
	secs, err := strconv.ParseInt(payload[sep+1:], 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	return payload[:sep], time.Unix(secs, 0), true
}

// WithSession stores the session username and issue time in context.
func WithSession(ctx context.Context, username string, issuedAt time.Time) context.Context {
	ctx = context.WithValue(ctx, usernameCtxKey, username)
	return context.WithValue(ctx, issuedAtCtxKey, issuedAt)
}

// SessionFromContext extracts the session username and issue time.
func SessionFromContext(ctx context.Context) (string, time.Time, bool) {
	u, ok := ctx.Value(usernameCtxKey).(string)
	if !ok || u == "" {
		return "", time.Time{}, false
	}
	issuedAt, _ := ctx.Value(issuedAtCtxKey).(time.Time)
	return u, issuedAt, true
}

// Middleware attaches the session username and issue time to the request
// context if a valid cookie is present.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if username, issuedAt, ok := ParseSession(r); ok {
			r = r.WithContext(WithSession(r.Context(), username, issuedAt))
		}
		next.ServeHTTP(w, r)
	})
}

// BcryptVerifier is the default credential verifier: stored hashes are
// bcrypt. It satisfies the access layer's opaque Verify contract.
type BcryptVerifier struct{}

func (BcryptVerifier) Verify(hash, credential string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(credential)) == nil
}

// HashPassword produces a stored hash for a new credential.
func HashPassword(credential string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
