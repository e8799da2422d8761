package delegations

import (
	"errors"
	"log"
	"net/http"

	"shared-tasks-backend/internal/auth"
	"shared-tasks-backend/internal/httpx"
	"shared-tasks-backend/internal/store"
)

// Authorize resolves the caller's grant over ownerID's data for a handler.
// An empty ownerID means the caller's own data. On failure the response has
// already been written and ok is false.
func Authorize(w http.ResponseWriter, r *http.Request, st store.Delegations, logger *log.Logger, ownerID string) (g Grant, ok bool) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized")
		return Grant{}, false
	}
	g, err := Resolve(r.Context(), st, uid, ownerID)
	if errors.Is(err, ErrNoAccess) {
		httpx.Error(w, http.StatusForbidden, "access denied")
		return g, false
	}
	if err != nil {
		logger.Printf("[WARN] authorize %s on %s: %v", uid, ownerID, err)
		httpx.Error(w, http.StatusInternalServerError, "internal server error")
		return g, false
	}
	return g, true
}

// Require is Authorize followed by a permission check answering 403.
func Require(w http.ResponseWriter, r *http.Request, st store.Delegations, logger *log.Logger,
	ownerID string, res Resource, act Action) (Grant, bool) {
	g, ok := Authorize(w, r, st, logger, ownerID)
	if !ok {
		return g, false
	}
	if !g.Can(res, act) {
		httpx.Error(w, http.StatusForbidden, DeniedMessage(res, act))
		return g, false
	}
	return g, true
}
