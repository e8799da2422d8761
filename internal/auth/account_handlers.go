package auth

import (
	"log"
	"net/http"

	"shared-tasks-backend/internal/httpx"
	"shared-tasks-backend/internal/store"
)

// LogoutHandler only acknowledges: tokens are stateless and the client drops its copy.
func LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func DeleteAccountHandler(users store.Users, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			httpx.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		// Tasks, categories, delegations and activity go with the user.
		if err := users.DeleteUser(r.Context(), uid); err != nil {
			logger.Printf("[WARN] delete account %s: %v", uid, err)
			httpx.Error(w, http.StatusInternalServerError, "delete user failed")
			return
		}

		httpx.JSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}
