package tasks

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"shared-tasks-backend/internal/store"
)

const maxTitleLen = 255

var errBadDate = errors.New("invalid dueDate")

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, errBadDate
}

func validTitle(s string) bool {
	n := utf8.RuneCountInString(s)
	return n >= 1 && n <= maxTitleLen
}

type createBody struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Importance  string  `json:"importance"`
	CategoryID  *string `json:"categoryId"`
	DueDate     *string `json:"dueDate"`
	DueTime     *string `json:"dueTime"`
	OwnerID     string  `json:"ownerId"`
}

// task validates the body into a new task, returning a 400 message on failure.
func (b createBody) task() (store.Task, string) {
	t := store.Task{
		Title:      strings.TrimSpace(b.Title),
		Importance: b.Importance,
		Status:     store.StatusActive,
	}
	if !validTitle(t.Title) {
		return t, "title is required (max 255 characters)"
	}
	if t.Importance == "" {
		t.Importance = store.ImportanceNormal
	}
	if !store.ValidImportance(t.Importance) {
		return t, "importance must be low, normal or high"
	}
	if b.Description != nil && *b.Description != "" {
		t.Description = b.Description
	}
	if b.CategoryID != nil && *b.CategoryID != "" {
		t.CategoryID = b.CategoryID
	}
	if b.DueDate != nil && *b.DueDate != "" {
		d, err := parseDate(*b.DueDate)
		if err != nil {
			return t, err.Error()
		}
		t.DueDate = &d
	}
	if b.DueTime != nil && *b.DueTime != "" {
		t.DueTime = b.DueTime
	}
	return t, ""
}

type updateBody struct {
	Title       *string             `json:"title"`
	Description store.Field[string] `json:"description"`
	Importance  *string             `json:"importance"`
	Status      *string             `json:"status"`
	CategoryID  store.Field[string] `json:"categoryId"`
	DueDate     store.Field[string] `json:"dueDate"`
	DueTime     store.Field[string] `json:"dueTime"`
}

// patch validates the body against the current task. Moving into or out of
// "completed" sets or clears completedAt.
func (b updateBody) patch(current store.Task, now time.Time) (store.TaskPatch, string) {
	p := store.TaskPatch{Description: b.Description, DueTime: b.DueTime}
	if b.Title != nil {
		title := strings.TrimSpace(*b.Title)
		if !validTitle(title) {
			return p, "title is required (max 255 characters)"
		}
		p.Title = &title
	}
	if b.Importance != nil {
		if !store.ValidImportance(*b.Importance) {
			return p, "importance must be low, normal or high"
		}
		p.Importance = b.Importance
	}
	if b.Status != nil {
		if !store.ValidStatus(*b.Status) {
			return p, "status must be active, completed or archived"
		}
		p.Status = b.Status
		switch {
		case *b.Status == store.StatusCompleted && current.Status != store.StatusCompleted:
			p.CompletedAt = store.Some(now)
		case *b.Status != store.StatusCompleted && current.CompletedAt != nil:
			p.CompletedAt = store.Null[time.Time]()
		}
	}
	if b.CategoryID.Set {
		if b.CategoryID.Valid && b.CategoryID.Value == "" {
			p.CategoryID = store.Null[string]()
		} else {
			p.CategoryID = b.CategoryID
		}
	}
	if b.DueDate.Set {
		if !b.DueDate.Valid || b.DueDate.Value == "" {
			p.DueDate = store.Null[time.Time]()
		} else {
			d, err := parseDate(b.DueDate.Value)
			if err != nil {
				return p, err.Error()
			}
			p.DueDate = store.Some(d)
		}
	}
	return p, ""
}
