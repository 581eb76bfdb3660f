package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

type contextKey string

const (
	clientHashKey contextKey = "client_hash"
	profileKey    contextKey = "profile"
)

type Middleware struct{}

func NewMiddleware() *Middleware {
	return &Middleware{}
}

// FingerprintMiddleware derives a stable anonymous client hash from the
// request's network identity and stores it on the context. The hash is
// the rate-limit and audit identity for unauthenticated callers.
func (m *Middleware) FingerprintMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), clientHashKey, fingerprint(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ProfileMiddleware classifies the caller. Requests carrying a Bearer
// token run under the "api_key" profile with its larger rate and budget
// allowances; everything else is "anonymous".
func (m *Middleware) ProfileMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		profile := "anonymous"

		authHeader := r.Header.Get("Authorization")
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" && parts[1] != "" {
			profile = "api_key"
		}

		ctx := context.WithValue(r.Context(), profileKey, profile)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CORSMiddleware handles CORS
func (m *Middleware) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ClientHash returns the fingerprint set by FingerprintMiddleware.
func ClientHash(ctx context.Context) string {
	hash, _ := ctx.Value(clientHashKey).(string)
	return hash
}

// Profile returns the caller profile set by ProfileMiddleware.
func Profile(ctx context.Context) string {
	profile, ok := ctx.Value(profileKey).(string)
	if !ok || profile == "" {
		return "anonymous"
	}
	return profile
}

func fingerprint(r *http.Request) string {
	ip := r.Header.Get("X-Forwarded-For")
	if ip != "" {
		// First hop is the original client.
		ip = strings.TrimSpace(strings.Split(ip, ",")[0])
	} else {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ip = host
	}

	sum := sha256.Sum256([]byte(ip + "|" + r.UserAgent()))
	return hex.EncodeToString(sum[:])
}
