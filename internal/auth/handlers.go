package auth

import (
	"errors"
	"log"
	"net/http"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"shared-tasks-backend/internal/httpx"
	"shared-tasks-backend/internal/store"
)

// Tokens carries what the handlers need to hash passwords and sign tokens.
type Tokens struct {
	Secret     []byte
	TTL        time.Duration
	BcryptCost int
}

func (t Tokens) issue(userID string) (string, error) {
	ttl := t.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return GenerateToken(t.Secret, userID, ttl)
}

func (t Tokens) hash(password string) (string, error) {
	cost := t.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(b), err
}

func checkPassword(u store.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func RegisterHandler(users store.Users, tokens Tokens, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Username  string `json:"username"`
			Email     string `json:"email"`
			Password  string `json:"password"`
			FirstName string `json:"firstName"`
			LastName  string `json:"lastName"`
		}
		if err := httpx.Decode(r, &body); err != nil {
			httpx.Error(w, http.StatusBadRequest, "invalid json")
			return
		}

		email := strings.ToLower(strings.TrimSpace(body.Email))
		username := strings.ToLower(strings.TrimSpace(body.Username))
		switch {
		case !validEmail(email):
			httpx.Error(w, http.StatusBadRequest, "invalid email")
			return
		case utf8.RuneCountInString(username) < 3 || utf8.RuneCountInString(username) > 50:
			httpx.Error(w, http.StatusBadRequest, "username must be between 3 and 50 characters")
			return
		case len(body.Password) < 6:
			httpx.Error(w, http.StatusBadRequest, "password must be at least 6 characters")
			return
		}

		if existing, err := users.UserByLogin(r.Context(), email); err == nil && existing.Email == email {
			httpx.Error(w, http.StatusConflict, "email already in use")
			return
		}
		if existing, err := users.UserByLogin(r.Context(), username); err == nil && existing.Username == username {
			httpx.Error(w, http.StatusConflict, "username already taken")
			return
		}

		hash, err := tokens.hash(body.Password)
		if err != nil {
			logger.Printf("[WARN] register: hash password: %v", err)
			httpx.Error(w, http.StatusInternalServerError, "internal server error")
			return
		}

		u, err := users.CreateUser(r.Context(), store.User{
			Email:           email,
			Username:        username,
			PasswordHash:    hash,
			FirstName:       strings.TrimSpace(body.FirstName),
			LastName:        strings.TrimSpace(body.LastName),
			ThemePreference: store.ThemeLight,
			Role:            store.RoleUser,
			IsActive:        true,
			DefaultContext:  store.ContextSelf,
		})
		if errors.Is(err, store.ErrConflict) {
			httpx.Error(w, http.StatusConflict, "email or username already in use")
			return
		}
		if err != nil {
			logger.Printf("[WARN] register: create user %s: %v", username, err)
			httpx.Error(w, http.StatusInternalServerError, "internal server error")
			return
		}

		token, err := tokens.issue(u.ID)
		if err != nil {
			logger.Printf("[WARN] register: sign token: %v", err)
			httpx.Error(w, http.StatusInternalServerError, "internal server error")
			return
		}

		httpx.JSON(w, http.StatusCreated, map[string]any{"user": u, "token": token})
	}
}

func LoginHandler(users store.Users, tokens Tokens, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Identifier string `json:"identifier"`
			Login      string `json:"login"`
			Password   string `json:"password"`
		}
		if err := httpx.Decode(r, &body); err != nil {
			httpx.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		identifier := strings.TrimSpace(body.Identifier)
		if identifier == "" {
			identifier = strings.TrimSpace(body.Login)
		}
		if identifier == "" || body.Password == "" {
			httpx.Error(w, http.StatusBadRequest, "identifier and password are required")
			return
		}

		u, err := users.UserByLogin(r.Context(), identifier)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			logger.Printf("[WARN] login: lookup %s: %v", identifier, err)
			httpx.Error(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if err != nil || !checkPassword(u, body.Password) {
			httpx.Error(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		if !u.IsActive {
			httpx.Error(w, http.StatusForbidden, "account is deactivated")
			return
		}

		now := time.Now().UTC()
		if updated, err := users.UpdateUser(r.Context(), u.ID, store.UserPatch{LastLoginAt: &now}); err != nil {
			logger.Printf("[WARN] login: update last login %s: %v", u.ID, err)
		} else {
			u = updated
		}

		token, err := tokens.issue(u.ID)
		if err != nil {
			logger.Printf("[WARN] login: sign token: %v", err)
			httpx.Error(w, http.StatusInternalServerError, "internal server error")
			return
		}

		httpx.JSON(w, http.StatusOK, map[string]any{"user": u, "token": token})
	}
}

func MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFromContext(r.Context())
		if !ok {
			httpx.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"user": u})
	}
}

func UpdateProfileHandler(users store.Users, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			httpx.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var body struct {
			FirstName       *string `json:"firstName"`
			LastName        *string `json:"lastName"`
			ThemePreference *string `json:"themePreference"`
		}
		if err := httpx.Decode(r, &body); err != nil {
			httpx.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		patch := store.UserPatch{FirstName: body.FirstName, LastName: body.LastName}
		if body.ThemePreference != nil && *body.ThemePreference != "" {
			if *body.ThemePreference != store.ThemeLight && *body.ThemePreference != store.ThemeDark {
				httpx.Error(w, http.StatusBadRequest, "themePreference must be light or dark")
				return
			}
			patch.ThemePreference = body.ThemePreference
		}

		u, err := users.UpdateUser(r.Context(), uid, patch)
		if err != nil {
			logger.Printf("[WARN] update profile %s: %v", uid, err)
			httpx.Error(w, http.StatusInternalServerError, "internal server error")
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"user": u})
	}
}

func UpdateEmailHandler(users store.Users, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me, ok := UserFromContext(r.Context())
		if !ok {
			httpx.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var body struct {
			NewEmail string `json:"newEmail"`
			Password string `json:"password"`
		}
		if err := httpx.Decode(r, &body); err != nil {
			httpx.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		email := strings.ToLower(strings.TrimSpace(body.NewEmail))
		if !validEmail(email) {
			httpx.Error(w, http.StatusBadRequest, "invalid email")
			return
		}
		if body.Password == "" {
			httpx.Error(w, http.StatusBadRequest, "password is required to confirm")
			return
		}
		if !checkPassword(me, body.Password) {
			httpx.Error(w, http.StatusBadRequest, "incorrect password")
			return
		}

		u, err := users.UpdateUser(r.Context(), me.ID, store.UserPatch{Email: &email})
		if errors.Is(err, store.ErrConflict) {
			httpx.Error(w, http.StatusConflict, "email already in use")
			return
		}
		if err != nil {
			logger.Printf("[WARN] update email %s: %v", me.ID, err)
			httpx.Error(w, http.StatusInternalServerError, "internal server error")
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"user": u, "message": "email updated"})
	}
}

func UpdatePasswordHandler(users store.Users, tokens Tokens, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me, ok := UserFromContext(r.Context())
		if !ok {
			httpx.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var body struct {
			CurrentPassword string `json:"currentPassword"`
			NewPassword     string `json:"newPassword"`
		}
		if err := httpx.Decode(r, &body); err != nil {
			httpx.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		if len(body.NewPassword) < 6 {
			httpx.Error(w, http.StatusBadRequest, "new password must be at least 6 characters")
			return
		}
		if !checkPassword(me, body.CurrentPassword) {
			httpx.Error(w, http.StatusBadRequest, "current password is incorrect")
			return
		}

		hash, err := tokens.hash(body.NewPassword)
		if err != nil {
			logger.Printf("[WARN] update password: hash: %v", err)
			httpx.Error(w, http.StatusInternalServerError, "internal server error")
			return
		}
		mustChange := false
		if _, err := users.UpdateUser(r.Context(), me.ID, store.UserPatch{PasswordHash: &hash, MustChangePassword: &mustChange}); err != nil {
			logger.Printf("[WARN] update password %s: %v", me.ID, err)
			httpx.Error(w, http.StatusInternalServerError, "internal server error")
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"message": "password updated", "mustChangePassword": false})
	}
}

// UpdateDefaultContextHandler accepts "self" or the id of an owner who has an
// accepted delegation to the caller.
func UpdateDefaultContextHandler(st store.Store, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			httpx.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var body struct {
			DefaultContext string `json:"defaultContext"`
		}
		if err := httpx.Decode(r, &body); err != nil {
			httpx.Error(w, http.StatusBadRequest, "invalid json")
			return
		}

		if body.DefaultContext != store.ContextSelf {
			d, err := st.DelegationBetween(r.Context(), body.DefaultContext, uid)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				logger.Printf("[WARN] default context %s: %v", uid, err)
				httpx.Error(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if err != nil || !d.Accepted() {
				httpx.Error(w, http.StatusBadRequest, "invalid context or delegation not accepted")
				return
			}
		}

		u, err := st.UpdateUser(r.Context(), uid, store.UserPatch{DefaultContext: &body.DefaultContext})
		if err != nil {
			logger.Printf("[WARN] default context %s: %v", uid, err)
			httpx.Error(w, http.StatusInternalServerError, "internal server error")
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"user": u, "message": "default context updated"})
	}
}
