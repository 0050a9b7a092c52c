package api

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// AuthMiddleware validates Bearer tokens against a bcrypt hash from the
// configuration, so the plaintext token never rests on disk.
type AuthMiddleware struct {
	tokenHash string
	logger    *slog.Logger

	mu      sync.Mutex
	checked map[string]bool // token → verified, caches the bcrypt work
}

// NewAuthMiddleware creates the middleware. An empty hash disables
// authentication (bind to localhost in that case).
func NewAuthMiddleware(tokenHash string, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokenHash: tokenHash,
		logger:    logger,
		checked:   make(map[string]bool),
	}
}

// RequireAuth wraps a handler to require a valid bearer token.
func (a *AuthMiddleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.authenticate(r) {
			JSONError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		next(w, r)
	}
}

func (a *AuthMiddleware) authenticate(r *http.Request) bool {
	if a.tokenHash == "" {
		return true
	}

	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return false
	}
	token := strings.TrimPrefix(header, "Bearer ")

	a.mu.Lock()
	verified, seen := a.checked[token]
	a.mu.Unlock()
	if seen {
		return verified
	}

	ok := bcrypt.CompareHashAndPassword([]byte(a.tokenHash), []byte(token)) == nil
	a.mu.Lock()
	// Bound the verification cache; a rotating attacker must not grow it.
	if len(a.checked) > 64 {
		a.checked = make(map[string]bool)
	}
	a.checked[token] = ok
	a.mu.Unlock()

	if !ok {
		a.logger.Warn("rejected API request with invalid token", "remote", r.RemoteAddr)
	}
	return ok
}
