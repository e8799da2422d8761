package activity

import (
	"errors"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"shared-tasks-backend/internal/auth"
	"shared-tasks-backend/internal/delegations"
	"shared-tasks-backend/internal/httpx"
	"shared-tasks-backend/internal/store"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

type userRef struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type entryView struct {
	ID          string         `json:"id"`
	Owner       *userRef       `json:"owner"`
	Actor       *userRef       `json:"actor"`
	TargetOwner *userRef       `json:"targetOwner"`
	Action      string         `json:"action"`
	EntityType  string         `json:"entityType"`
	EntityID    string         `json:"entityId"`
	EntityTitle string         `json:"entityTitle"`
	Details     map[string]any `json:"details"`
	CreatedAt   time.Time      `json:"createdAt"`
	IsOwnAction bool           `json:"isOwnAction"`
	IsForOther  bool           `json:"isForOther"`
}

type pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// refs resolves user ids once per request.
type refs struct {
	users store.Users
	r     *http.Request
	cache map[string]*userRef
}

func (c *refs) get(id string) *userRef {
	if ref, ok := c.cache[id]; ok {
		return ref
	}
	var ref *userRef
	if u, err := c.users.UserByID(c.r.Context(), id); err == nil {
		ref = &userRef{ID: u.ID, Username: u.Username, FirstName: u.FirstName, LastName: u.LastName}
	}
	c.cache[id] = ref
	return ref
}

func ListHandler(st store.Store, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpx.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ownerID := strings.TrimSpace(r.URL.Query().Get("ownerId"))
		g, err := delegations.Resolve(r.Context(), st, uid, ownerID)
		if errors.Is(err, delegations.ErrNoAccess) {
			httpx.Error(w, http.StatusForbidden, "access denied")
			return
		}
		if err != nil {
			logger.Printf("[WARN] activity: resolve %s: %v", ownerID, err)
			httpx.Error(w, http.StatusInternalServerError, "internal server error")
			return
		}

		page := max(httpx.QueryInt(r, "page", 1), 1)
		limit := httpx.QueryInt(r, "limit", defaultLimit)
		if limit <= 0 {
			limit = defaultLimit
		}
		limit = min(limit, maxLimit)
		page = min(page, math.MaxInt/limit)

		entries, total, err := st.ListActivity(r.Context(), g.OwnerID, (page-1)*limit, limit)
		if err != nil {
			logger.Printf("[WARN] activity: list %s: %v", g.OwnerID, err)
			httpx.Error(w, http.StatusInternalServerError, "internal server error")
			return
		}

		c := &refs{users: st, r: r, cache: map[string]*userRef{}}
		logs := make([]entryView, 0, len(entries))
		for _, e := range entries {
			v := entryView{
				ID:          e.ID,
				Owner:       c.get(e.OwnerID),
				Actor:       c.get(e.ActorID),
				Action:      e.Action,
				EntityType:  e.EntityType,
				EntityID:    e.EntityID,
				EntityTitle: e.EntityTitle,
				Details:     e.Details,
				CreatedAt:   e.CreatedAt,
				IsOwnAction: e.ActorID == uid,
				IsForOther:  e.TargetOwnerID != nil,
			}
			if e.TargetOwnerID != nil {
				v.TargetOwner = c.get(*e.TargetOwnerID)
			}
			logs = append(logs, v)
		}

		httpx.JSON(w, http.StatusOK, map[string]any{
			"logs": logs,
			"pagination": pagination{
				Page:       page,
				Limit:      limit,
				Total:      total,
				TotalPages: (total + limit - 1) / limit,
			},
		})
	}
}
