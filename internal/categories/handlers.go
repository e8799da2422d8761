package categories

import (
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"shared-tasks-backend/internal/activity"
	"shared-tasks-backend/internal/auth"
	"shared-tasks-backend/internal/delegations"
	"shared-tasks-backend/internal/httpx"
	"shared-tasks-backend/internal/store"
)

const (
	maxNameLen = 50
	maxIconLen = 50
)

var colorRe = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

func validName(s string) bool {
	n := utf8.RuneCountInString(s)
	return n >= 1 && n <= maxNameLen
}

func internalError(w http.ResponseWriter, logger *log.Logger, what string, err error) {
	logger.Printf("[WARN] categories: %s: %v", what, err)
	httpx.Error(w, http.StatusInternalServerError, "internal server error")
}

func ListHandler(st store.Store, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, ok := delegations.Authorize(w, r, st, logger, strings.TrimSpace(r.URL.Query().Get("ownerId")))
		if !ok {
			return
		}
		cats, err := st.ListCategories(r.Context(), g.OwnerID, g.Hidden())
		if err != nil {
			internalError(w, logger, "list", err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"categories": cats})
	}
}

// load fetches {id} and the caller's grant over its owner. Hidden categories
// answer 403 like categories the caller has no access to.
func load(w http.ResponseWriter, r *http.Request, st store.Store, logger *log.Logger) (store.Category, delegations.Grant, bool) {
	c, err := st.CategoryByID(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		httpx.Error(w, http.StatusNotFound, "category not found")
		return c, delegations.Grant{}, false
	}
	if err != nil {
		internalError(w, logger, "load", err)
		return c, delegations.Grant{}, false
	}
	g, ok := delegations.Authorize(w, r, st, logger, c.UserID)
	if !ok {
		return c, g, false
	}
	if g.Hides(c.ID) {
		httpx.Error(w, http.StatusForbidden, "access denied")
		return c, g, false
	}
	return c, g, true
}

func GetHandler(st store.Store, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, _, ok := load(w, r, st, logger)
		if !ok {
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"category": c})
	}
}

func CreateHandler(st store.Store, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name    string  `json:"name"`
			Color   string  `json:"color"`
			Icon    *string `json:"icon"`
			OwnerID string  `json:"ownerId"`
		}
		if err := httpx.Decode(r, &body); err != nil {
			httpx.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		name := strings.TrimSpace(body.Name)
		if !validName(name) {
			httpx.Error(w, http.StatusBadRequest, "name is required (max 50 characters)")
			return
		}
		color := body.Color
		if color == "" {
			color = store.DefaultCategoryColor
		}
		if !colorRe.MatchString(color) {
			httpx.Error(w, http.StatusBadRequest, "invalid color")
			return
		}
		if body.Icon != nil && (*body.Icon == "" || utf8.RuneCountInString(*body.Icon) > maxIconLen) {
			body.Icon = nil
		}

		g, ok := delegations.Require(w, r, st, logger, strings.TrimSpace(body.OwnerID), delegations.Categories, delegations.Create)
		if !ok {
			return
		}

		c, err := st.CreateCategory(r.Context(), store.Category{
			UserID: g.OwnerID,
			Name:   name,
			Color:  color,
			Icon:   body.Icon,
		})
		if errors.Is(err, store.ErrConflict) {
			httpx.Error(w, http.StatusConflict, "a category with this name already exists")
			return
		}
		if err != nil {
			internalError(w, logger, "create", err)
			return
		}

		activity.Log(r.Context(), st, logger, activity.Event{
			OwnerID:     g.OwnerID,
			ActorID:     g.ActorID,
			Action:      activity.CreatedCategory,
			EntityType:  store.EntityCategory,
			EntityID:    c.ID,
			EntityTitle: c.Name,
		})

		httpx.JSON(w, http.StatusCreated, map[string]any{"category": c})
	}
}

func UpdateHandler(st store.Store, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpx.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		var body struct {
			Name  *string             `json:"name"`
			Color *string             `json:"color"`
			Icon  store.Field[string] `json:"icon"`
		}
		if err := httpx.Decode(r, &body); err != nil {
			httpx.Error(w, http.StatusBadRequest, "invalid json")
			return
		}

		existing, err := st.CategoryByID(r.Context(), r.PathValue("id"))
		if errors.Is(err, store.ErrNotFound) {
			httpx.Error(w, http.StatusNotFound, "category not found")
			return
		}
		if err != nil {
			internalError(w, logger, "load", err)
			return
		}
		if existing.UserID != uid {
			httpx.Error(w, http.StatusForbidden, "only the owner can edit this category")
			return
		}

		patch := store.CategoryPatch{Icon: body.Icon}
		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if !validName(name) {
				httpx.Error(w, http.StatusBadRequest, "name is required (max 50 characters)")
				return
			}
			patch.Name = &name
		}
		if body.Color != nil {
			if !colorRe.MatchString(*body.Color) {
				httpx.Error(w, http.StatusBadRequest, "invalid color")
				return
			}
			patch.Color = body.Color
		}
		if body.Icon.Valid && utf8.RuneCountInString(body.Icon.Value) > maxIconLen {
			httpx.Error(w, http.StatusBadRequest, "icon is too long")
			return
		}

		c, err := st.UpdateCategory(r.Context(), existing.ID, patch)
		if errors.Is(err, store.ErrConflict) {
			httpx.Error(w, http.StatusConflict, "a category with this name already exists")
			return
		}
		if err != nil {
			internalError(w, logger, "update", err)
			return
		}

		activity.Log(r.Context(), st, logger, activity.Event{
			OwnerID:     existing.UserID,
			ActorID:     uid,
			Action:      activity.UpdatedCategory,
			EntityType:  store.EntityCategory,
			EntityID:    c.ID,
			EntityTitle: c.Name,
		})

		httpx.JSON(w, http.StatusOK, map[string]any{"category": c})
	}
}

func DeleteHandler(st store.Store, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpx.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		existing, err := st.CategoryByID(r.Context(), r.PathValue("id"))
		if errors.Is(err, store.ErrNotFound) {
			httpx.Error(w, http.StatusNotFound, "category not found")
			return
		}
		if err != nil {
			internalError(w, logger, "load", err)
			return
		}
		if existing.UserID != uid {
			httpx.Error(w, http.StatusForbidden, "only the owner can delete this category")
			return
		}

		if err := st.DeleteCategory(r.Context(), existing.ID); err != nil {
			internalError(w, logger, "delete", err)
			return
		}

		activity.Log(r.Context(), st, logger, activity.Event{
			OwnerID:     existing.UserID,
			ActorID:     uid,
			Action:      activity.DeletedCategory,
			EntityType:  store.EntityCategory,
			EntityID:    existing.ID,
			EntityTitle: existing.Name,
		})

		httpx.NoContent(w)
	}
}
