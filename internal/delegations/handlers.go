package delegations

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"shared-tasks-backend/internal/auth"
	"shared-tasks-backend/internal/httpx"
	"shared-tasks-backend/internal/store"
)

const searchLimit = 10

// view is a delegation with the counterpart user embedded.
type view struct {
	store.Delegation
	Delegate *store.UserRef `json:"delegate,omitempty"`
	Owner    *store.UserRef `json:"owner,omitempty"`
}

func withDelegate(st store.Users, r *http.Request, d store.Delegation) view {
	v := view{Delegation: d}
	if u, err := st.UserByID(r.Context(), d.DelegateID); err == nil {
		ref := u.Ref()
		v.Delegate = &ref
	}
	return v
}

func withOwner(st store.Users, r *http.Request, d store.Delegation) view {
	v := view{Delegation: d}
	if u, err := st.UserByID(r.Context(), d.OwnerID); err == nil {
		ref := u.Ref()
		v.Owner = &ref
	}
	return v
}

func internalError(w http.ResponseWriter, logger *log.Logger, what string, err error) {
	logger.Printf("[WARN] delegations: %s: %v", what, err)
	httpx.Error(w, http.StatusInternalServerError, "internal server error")
}

func SearchUsersHandler(st store.Users, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpx.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		q := strings.TrimSpace(r.URL.Query().Get("query"))
		refs := []store.UserRef{}
		if len([]rune(q)) < 2 {
			httpx.JSON(w, http.StatusOK, map[string]any{"users": refs})
			return
		}

		users, err := st.SearchUsers(r.Context(), uid, q, searchLimit)
		if err != nil {
			internalError(w, logger, "search users", err)
			return
		}
		for _, u := range users {
			refs = append(refs, u.Ref())
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"users": refs})
	}
}

func ListHandler(st store.Store, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpx.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		given, err := st.DelegationsByOwner(r.Context(), uid)
		if err != nil {
			internalError(w, logger, "list given", err)
			return
		}
		received, err := st.DelegationsByDelegate(r.Context(), uid)
		if err != nil {
			internalError(w, logger, "list received", err)
			return
		}

		givenViews := make([]view, 0, len(given))
		for _, d := range given {
			givenViews = append(givenViews, withDelegate(st, r, d))
		}
		receivedViews := make([]view, 0, len(received))
		pending := 0
		for _, d := range received {
			if d.Status == store.DelegationPending {
				pending++
			}
			receivedViews = append(receivedViews, withOwner(st, r, d))
		}

		httpx.JSON(w, http.StatusOK, map[string]any{
			"given":        givenViews,
			"received":     receivedViews,
			"pendingCount": pending,
		})
	}
}

type permissionBody struct {
	CanCreateTasks      *bool     `json:"canCreateTasks"`
	CanEditTasks        *bool     `json:"canEditTasks"`
	CanDeleteTasks      *bool     `json:"canDeleteTasks"`
	CanCreateCategories *bool     `json:"canCreateCategories"`
	HiddenCategoryIDs   *[]string `json:"hiddenCategoryIds"`
}

func (b permissionBody) patch() store.DelegationPatch {
	return store.DelegationPatch{
		CanCreateTasks:      b.CanCreateTasks,
		CanEditTasks:        b.CanEditTasks,
		CanDeleteTasks:      b.CanDeleteTasks,
		CanCreateCategories: b.CanCreateCategories,
		HiddenCategoryIDs:   b.HiddenCategoryIDs,
	}
}

func flag(p *bool) bool { return p != nil && *p }

func CreateHandler(st store.Store, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpx.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var body struct {
			DelegateID string `json:"delegateId"`
			Identifier string `json:"identifier"`
			permissionBody
		}
		if err := httpx.Decode(r, &body); err != nil {
			httpx.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		delegateID := strings.TrimSpace(body.DelegateID)
		identifier := strings.TrimSpace(body.Identifier)
		if delegateID == "" && identifier == "" {
			httpx.Error(w, http.StatusBadRequest, "email, username or id required")
			return
		}

		var (
			delegate store.User
			err      error
		)
		if delegateID != "" {
			delegate, err = st.UserByID(r.Context(), delegateID)
		} else {
			delegate, err = st.UserByLogin(r.Context(), identifier)
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			internalError(w, logger, "find delegate", err)
			return
		}
		if err != nil || !delegate.IsActive {
			httpx.Error(w, http.StatusNotFound, "user not found")
			return
		}
		if delegate.ID == uid {
			httpx.Error(w, http.StatusBadRequest, "you cannot invite yourself")
			return
		}

		hidden := []string{}
		if body.HiddenCategoryIDs != nil {
			hidden = *body.HiddenCategoryIDs
		}
		d, err := st.CreateDelegation(r.Context(), store.Delegation{
			OwnerID:             uid,
			DelegateID:          delegate.ID,
			CanCreateTasks:      flag(body.CanCreateTasks),
			CanEditTasks:        flag(body.CanEditTasks),
			CanDeleteTasks:      flag(body.CanDeleteTasks),
			CanCreateCategories: flag(body.CanCreateCategories),
			HiddenCategoryIDs:   hidden,
			Status:              store.DelegationPending,
		})
		if errors.Is(err, store.ErrConflict) {
			httpx.Error(w, http.StatusBadRequest, "an invitation already exists for this user")
			return
		}
		if err != nil {
			internalError(w, logger, "create", err)
			return
		}

		ref := delegate.Ref()
		httpx.JSON(w, http.StatusCreated, map[string]any{"delegation": view{Delegation: d, Delegate: &ref}})
	}
}

// loadFor fetches the delegation at {id} when match accepts it, answering
// 404 otherwise. It reports whether the handler should continue.
func loadFor(w http.ResponseWriter, r *http.Request, st store.Delegations, logger *log.Logger,
	notFound string, match func(store.Delegation) bool) (store.Delegation, bool) {
	d, err := st.DelegationByID(r.Context(), r.PathValue("id"))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		internalError(w, logger, "load", err)
		return d, false
	}
	if err != nil || !match(d) {
		httpx.Error(w, http.StatusNotFound, notFound)
		return d, false
	}
	return d, true
}

func UpdateHandler(st store.Store, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpx.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		var body permissionBody
		if err := httpx.Decode(r, &body); err != nil {
			httpx.Error(w, http.StatusBadRequest, "invalid json")
			return
		}

		d, ok := loadFor(w, r, st, logger, "delegation not found", func(d store.Delegation) bool { return d.OwnerID == uid })
		if !ok {
			return
		}
		updated, err := st.UpdateDelegation(r.Context(), d.ID, body.patch())
		if err != nil {
			internalError(w, logger, "update", err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"delegation": withDelegate(st, r, updated)})
	}
}

func DeleteHandler(st store.Delegations, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpx.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		d, ok := loadFor(w, r, st, logger, "delegation not found", func(d store.Delegation) bool { return d.OwnerID == uid })
		if !ok {
			return
		}
		if err := st.DeleteDelegation(r.Context(), d.ID); err != nil {
			internalError(w, logger, "delete", err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"message": "delegation deleted"})
	}
}

func AcceptHandler(st store.Store, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpx.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		d, ok := loadFor(w, r, st, logger, "invitation not found", func(d store.Delegation) bool {
			return d.DelegateID == uid && d.Status == store.DelegationPending
		})
		if !ok {
			return
		}
		accepted := store.DelegationAccepted
		updated, err := st.UpdateDelegation(r.Context(), d.ID, store.DelegationPatch{Status: &accepted})
		if err != nil {
			internalError(w, logger, "accept", err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"delegation": withOwner(st, r, updated)})
	}
}

func RejectHandler(st store.Delegations, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpx.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		d, ok := loadFor(w, r, st, logger, "invitation not found", func(d store.Delegation) bool {
			return d.DelegateID == uid && d.Status == store.DelegationPending
		})
		if !ok {
			return
		}
		if err := st.DeleteDelegation(r.Context(), d.ID); err != nil {
			internalError(w, logger, "reject", err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"message": "invitation declined"})
	}
}

func LeaveHandler(st store.Delegations, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpx.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		d, ok := loadFor(w, r, st, logger, "delegation not found", func(d store.Delegation) bool {
			return d.DelegateID == uid && d.Accepted()
		})
		if !ok {
			return
		}
		if err := st.DeleteDelegation(r.Context(), d.ID); err != nil {
			internalError(w, logger, "leave", err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"message": "you left this delegation"})
	}
}

// ownerGrant resolves the caller's accepted delegation from {ownerId},
// answering 403 when there is none.
func ownerGrant(w http.ResponseWriter, r *http.Request, st store.Delegations, logger *log.Logger) (Grant, bool) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized")
		return Grant{}, false
	}
	g, err := Resolve(r.Context(), st, uid, r.PathValue("ownerId"))
	if errors.Is(err, ErrNoAccess) || (err == nil && g.IsOwner()) {
		httpx.Error(w, http.StatusForbidden, "access denied")
		return g, false
	}
	if err != nil {
		internalError(w, logger, "resolve", err)
		return g, false
	}
	return g, true
}

func OwnerTasksHandler(st store.Store, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, ok := ownerGrant(w, r, st, logger)
		if !ok {
			return
		}
		tasks, _, err := st.ListTasks(r.Context(), store.TaskFilter{
			OwnerID:           g.OwnerID,
			HiddenCategoryIDs: g.Hidden(),
			SortBy:            store.SortCreatedAt,
		})
		if err != nil {
			internalError(w, logger, "owner tasks", err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"tasks": tasks, "permissions": g.Permissions()})
	}
}

func OwnerCategoriesHandler(st store.Store, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, ok := ownerGrant(w, r, st, logger)
		if !ok {
			return
		}
		cats, err := st.ListCategories(r.Context(), g.OwnerID, g.Hidden())
		if err != nil {
			internalError(w, logger, "owner categories", err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"categories": cats, "permissions": g.Permissions()})
	}
}
