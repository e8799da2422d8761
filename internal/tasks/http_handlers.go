package tasks

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"shared-tasks-backend/internal/activity"
	"shared-tasks-backend/internal/auth"
	"shared-tasks-backend/internal/delegations"
	"shared-tasks-backend/internal/httpx"
	"shared-tasks-backend/internal/store"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

func internalError(w http.ResponseWriter, logger *log.Logger, what string, err error) {
	logger.Printf("[WARN] tasks: %s: %v", what, err)
	httpx.Error(w, http.StatusInternalServerError, "internal server error")
}

// checkCategory answers 400 when categoryID is not the owner's and 403 when
// it is hidden from the caller.
func checkCategory(w http.ResponseWriter, r *http.Request, st store.Categories, logger *log.Logger,
	g delegations.Grant, categoryID string) bool {
	c, err := st.CategoryByID(r.Context(), categoryID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		internalError(w, logger, "load category", err)
		return false
	}
	if err != nil || c.UserID != g.OwnerID {
		httpx.Error(w, http.StatusBadRequest, "invalid category")
		return false
	}
	if g.Hides(c.ID) {
		httpx.Error(w, http.StatusForbidden, "this category is not accessible")
		return false
	}
	return true
}

// load fetches {id} and checks that the caller may perform act on it.
func load(w http.ResponseWriter, r *http.Request, st store.Store, logger *log.Logger,
	act delegations.Action) (store.Task, delegations.Grant, bool) {
	t, err := st.TaskByID(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		httpx.Error(w, http.StatusNotFound, "task not found")
		return t, delegations.Grant{}, false
	}
	if err != nil {
		internalError(w, logger, "load", err)
		return t, delegations.Grant{}, false
	}
	g, ok := delegations.Require(w, r, st, logger, t.UserID, delegations.Tasks, act)
	if !ok {
		return t, g, false
	}
	if t.CategoryID != nil && g.Hides(*t.CategoryID) {
		// Hidden tasks do not exist as far as the delegate is concerned.
		httpx.Error(w, http.StatusForbidden, "access denied")
		return t, g, false
	}
	return t, g, true
}

func ListHandler(st store.Store, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		g, ok := delegations.Authorize(w, r, st, logger, strings.TrimSpace(q.Get("ownerId")))
		if !ok {
			return
		}

		limit := httpx.QueryInt(r, "limit", defaultLimit)
		if limit <= 0 {
			limit = defaultLimit
		}
		limit = min(limit, maxLimit)
		offset := httpx.QueryInt(r, "offset", 0)

		f := store.TaskFilter{
			OwnerID:           g.OwnerID,
			Importance:        q.Get("importance"),
			HiddenCategoryIDs: g.Hidden(),
			Search:            strings.TrimSpace(q.Get("search")),
			SortBy:            q.Get("sort_by"),
			Ascending:         q.Get("sort_order") == "asc",
			Limit:             limit,
			Offset:            offset,
		}
		if s := q.Get("status"); s != "" && s != "all" {
			f.Status = s
		}
		switch c := q.Get("categoryId"); {
		case c == "none":
			f.CategoryID = store.Null[string]()
		case c != "":
			if g.Hides(c) {
				httpx.JSON(w, http.StatusOK, map[string]any{"tasks": []store.Task{}, "total": 0, "limit": limit, "offset": offset})
				return
			}
			f.CategoryID = store.Some(c)
		}

		list, total, err := st.ListTasks(r.Context(), f)
		if err != nil {
			internalError(w, logger, "list", err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{
			"tasks":  list,
			"total":  total,
			"limit":  limit,
			"offset": offset,
		})
	}
}

func GetHandler(st store.Store, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, _, ok := load(w, r, st, logger, delegations.View)
		if !ok {
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"task": t})
	}
}

func CreateHandler(st store.Store, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createBody
		if err := httpx.Decode(r, &body); err != nil {
			httpx.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		t, msg := body.task()
		if msg != "" {
			httpx.Error(w, http.StatusBadRequest, msg)
			return
		}

		g, ok := delegations.Require(w, r, st, logger, strings.TrimSpace(body.OwnerID), delegations.Tasks, delegations.Create)
		if !ok {
			return
		}
		if t.CategoryID != nil && !checkCategory(w, r, st, logger, g, *t.CategoryID) {
			return
		}

		t.UserID = g.OwnerID
		created, err := st.CreateTask(r.Context(), t)
		if err != nil {
			internalError(w, logger, "create", err)
			return
		}

		activity.Log(r.Context(), st, logger, activity.Event{
			OwnerID:     g.OwnerID,
			ActorID:     g.ActorID,
			Action:      activity.CreatedTask,
			EntityType:  store.EntityTask,
			EntityID:    created.ID,
			EntityTitle: created.Title,
		})

		httpx.JSON(w, http.StatusCreated, map[string]any{"task": created})
	}
}

func UpdateHandler(st store.Store, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body updateBody
		if err := httpx.Decode(r, &body); err != nil {
			httpx.Error(w, http.StatusBadRequest, "invalid json")
			return
		}

		existing, g, ok := load(w, r, st, logger, delegations.Edit)
		if !ok {
			return
		}
		patch, msg := body.patch(existing, time.Now().UTC())
		if msg != "" {
			httpx.Error(w, http.StatusBadRequest, msg)
			return
		}
		if patch.CategoryID.Valid && !checkCategory(w, r, st, logger, g, patch.CategoryID.Value) {
			return
		}

		updated, err := st.UpdateTask(r.Context(), existing.ID, patch)
		if err != nil {
			internalError(w, logger, "update", err)
			return
		}

		activity.Log(r.Context(), st, logger, activity.Event{
			OwnerID:     existing.UserID,
			ActorID:     g.ActorID,
			Action:      activity.UpdatedTask,
			EntityType:  store.EntityTask,
			EntityID:    updated.ID,
			EntityTitle: updated.Title,
			Details: activity.Diff(map[string]activity.Change{
				"title":      {Old: existing.Title, New: updated.Title},
				"status":     {Old: existing.Status, New: updated.Status},
				"importance": {Old: existing.Importance, New: updated.Importance},
			}),
		})

		httpx.JSON(w, http.StatusOK, map[string]any{"task": updated})
	}
}

func DeleteHandler(st store.Store, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		existing, g, ok := load(w, r, st, logger, delegations.Delete)
		if !ok {
			return
		}
		if err := st.DeleteTask(r.Context(), existing.ID); err != nil {
			internalError(w, logger, "delete", err)
			return
		}

		activity.Log(r.Context(), st, logger, activity.Event{
			OwnerID:     existing.UserID,
			ActorID:     g.ActorID,
			Action:      activity.DeletedTask,
			EntityType:  store.EntityTask,
			EntityID:    existing.ID,
			EntityTitle: existing.Title,
		})

		httpx.NoContent(w)
	}
}

// statusHandler serves complete and reopen, which differ only in the
// resulting status and the activity action.
func statusHandler(st store.Store, logger *log.Logger, status, action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		existing, g, ok := load(w, r, st, logger, delegations.Edit)
		if !ok {
			return
		}
		patch := store.TaskPatch{Status: &status, CompletedAt: store.Null[time.Time]()}
		if status == store.StatusCompleted {
			patch.CompletedAt = store.Some(time.Now().UTC())
		}
		updated, err := st.UpdateTask(r.Context(), existing.ID, patch)
		if err != nil {
			internalError(w, logger, action, err)
			return
		}

		activity.Log(r.Context(), st, logger, activity.Event{
			OwnerID:     existing.UserID,
			ActorID:     g.ActorID,
			Action:      action,
			EntityType:  store.EntityTask,
			EntityID:    updated.ID,
			EntityTitle: updated.Title,
		})

		httpx.JSON(w, http.StatusOK, map[string]any{"task": updated})
	}
}

func CompleteHandler(st store.Store, logger *log.Logger) http.HandlerFunc {
	return statusHandler(st, logger, store.StatusCompleted, activity.CompletedTask)
}

func ReopenHandler(st store.Store, logger *log.Logger) http.HandlerFunc {
	return statusHandler(st, logger, store.StatusActive, activity.ReopenedTask)
}

func StatsHandler(st store.Tasks, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			httpx.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		stats, err := st.TaskStats(r.Context(), uid, time.Now().UTC())
		if err != nil {
			internalError(w, logger, "stats", err)
			return
		}
		httpx.JSON(w, http.StatusOK, stats)
	}
}
