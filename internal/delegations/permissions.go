package delegations

import (
	"context"
	"errors"
	"fmt"

	"shared-tasks-backend/internal/store"
)

// ErrNoAccess means the actor holds no accepted delegation from the owner.
var ErrNoAccess = errors.New("no accepted delegation")

type Resource string

const (
	Tasks      Resource = "tasks"
	Categories Resource = "categories"
)

type Action string

const (
	View   Action = "view"
	Create Action = "create"
	Edit   Action = "edit"
	Delete Action = "delete"
)

// Grant is what one actor may do with one owner's data.
type Grant struct {
	ActorID    string
	OwnerID    string
	Delegation *store.Delegation
}

func (g Grant) IsOwner() bool { return g.ActorID == g.OwnerID }

func (g Grant) Can(res Resource, act Action) bool {
	if g.IsOwner() {
		return true
	}
	if g.Delegation == nil || !g.Delegation.Accepted() {
		return false
	}
	d := g.Delegation
	switch {
	case act == View:
		return true
	case res == Tasks && act == Create:
		return d.CanCreateTasks
	case res == Tasks && act == Edit:
		return d.CanEditTasks
	case res == Tasks && act == Delete:
		return d.CanDeleteTasks
	case res == Categories && act == Create:
		return d.CanCreateCategories
	}
	// Category edit and delete stay with the owner.
	return false
}

// Hidden lists the owner's categories the actor must not see.
func (g Grant) Hidden() []string {
	if g.IsOwner() || g.Delegation == nil {
		return nil
	}
	return g.Delegation.HiddenCategoryIDs
}

func (g Grant) Hides(categoryID string) bool {
	if g.IsOwner() || g.Delegation == nil {
		return false
	}
	return g.Delegation.Hides(categoryID)
}

// Permissions is the delegate-facing summary of a delegation's flags.
type Permissions struct {
	CanCreateTasks      bool `json:"canCreateTasks"`
	CanEditTasks        bool `json:"canEditTasks"`
	CanDeleteTasks      bool `json:"canDeleteTasks"`
	CanCreateCategories bool `json:"canCreateCategories"`
}

func (g Grant) Permissions() Permissions {
	return Permissions{
		CanCreateTasks:      g.Can(Tasks, Create),
		CanEditTasks:        g.Can(Tasks, Edit),
		CanDeleteTasks:      g.Can(Tasks, Delete),
		CanCreateCategories: g.Can(Categories, Create),
	}
}

// Resolve returns the actor's grant over owner's data. It fails with
// ErrNoAccess unless the actor is the owner or holds an accepted delegation.
func Resolve(ctx context.Context, st store.Delegations, actorID, ownerID string) (Grant, error) {
	g := Grant{ActorID: actorID, OwnerID: ownerID}
	if ownerID == "" || ownerID == actorID {
		g.OwnerID = actorID
		return g, nil
	}
	d, err := st.DelegationBetween(ctx, ownerID, actorID)
	if errors.Is(err, store.ErrNotFound) {
		return g, ErrNoAccess
	}
	if err != nil {
		return g, fmt.Errorf("resolve delegation %s->%s: %w", ownerID, actorID, err)
	}
	if !d.Accepted() {
		return g, ErrNoAccess
	}
	g.Delegation = &d
	return g, nil
}

// DeniedMessage is the 403 body for a refused action.
func DeniedMessage(res Resource, act Action) string {
	return fmt.Sprintf("you do not have permission to %s %s for this user", act, res)
}
