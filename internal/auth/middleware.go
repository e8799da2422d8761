package auth

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"shared-tasks-backend/internal/httpx"
	"shared-tasks-backend/internal/store"
)

type ctxKey string

const userKey ctxKey = "user"

type Middleware struct {
	secret []byte
	users  store.Users
	logger *log.Logger
}

func New(secret []byte, users store.Users, logger *log.Logger) Middleware {
	return Middleware{secret: secret, users: users, logger: logger}
}

// Wrap authenticates the bearer token and loads the user it names.
func (m Middleware) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			httpx.Error(w, http.StatusUnauthorized, "access token required")
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		userID, err := ParseToken(m.secret, tokenString)
		if err != nil {
			httpx.Error(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		u, err := m.users.UserByID(r.Context(), userID)
		if errors.Is(err, store.ErrNotFound) {
			httpx.Error(w, http.StatusUnauthorized, "user not found")
			return
		}
		if err != nil {
			m.logger.Printf("[WARN] auth: load user %s: %v", userID, err)
			httpx.Error(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if !u.IsActive {
			httpx.Error(w, http.StatusForbidden, "account is deactivated")
			return
		}

		next(w, r.WithContext(WithUser(r.Context(), u)))
	}
}

func WithUser(ctx context.Context, u store.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func UserFromContext(ctx context.Context) (store.User, bool) {
	u, ok := ctx.Value(userKey).(store.User)
	return u, ok
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	u, ok := UserFromContext(ctx)
	if !ok {
		return "", false
	}
	return u.ID, true
}
