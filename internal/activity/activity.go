// Package activity records who changed what in an owner's tasks and
// categories, and serves the resulting log.
package activity

import (
	"context"
	"log"

	"shared-tasks-backend/internal/store"
)

const (
	CreatedTask     = "created_task"
	UpdatedTask     = "updated_task"
	DeletedTask     = "deleted_task"
	CompletedTask   = "completed_task"
	ReopenedTask    = "reopened_task"
	CreatedCategory = "created_category"
	UpdatedCategory = "updated_category"
	DeletedCategory = "deleted_category"
)

// Event is one mutation performed by ActorID on OwnerID's data.
type Event struct {
	OwnerID     string
	ActorID     string
	Action      string
	EntityType  string
	EntityID    string
	EntityTitle string
	Details     map[string]any
}

// Change is the old/new pair stored under a field name in Details.
type Change struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Log stores the event in the owner's log and, when someone else acted, a
// copy in the actor's log pointing back at the owner. Failures are logged
// and never returned: the mutation already happened.
func Log(ctx context.Context, st store.Activity, logger *log.Logger, ev Event) {
	if ev.Action == "" || ev.OwnerID == "" {
		return
	}

	entry := store.ActivityEntry{
		OwnerID:     ev.OwnerID,
		ActorID:     ev.ActorID,
		Action:      ev.Action,
		EntityType:  ev.EntityType,
		EntityID:    ev.EntityID,
		EntityTitle: ev.EntityTitle,
		Details:     ev.Details,
	}
	if err := st.AddActivity(ctx, entry); err != nil {
		logger.Printf("[WARN] activity %s owner=%s entity=%s: %v", ev.Action, ev.OwnerID, ev.EntityID, err)
	}

	if ev.ActorID == "" || ev.ActorID == ev.OwnerID {
		return
	}
	owner := ev.OwnerID
	entry.OwnerID = ev.ActorID
	entry.TargetOwnerID = &owner
	if err := st.AddActivity(ctx, entry); err != nil {
		logger.Printf("[WARN] activity %s actor=%s entity=%s: %v", ev.Action, ev.ActorID, ev.EntityID, err)
	}
}

// Diff collects the changed fields, or nil when nothing changed.
func Diff(pairs map[string]Change) map[string]any {
	var out map[string]any
	for k, c := range pairs {
		if c.Old == c.New {
			continue
		}
		if out == nil {
			out = map[string]any{}
		}
		out[k] = c
	}
	return out
}
