// Package store holds the domain records of the shared-tasks API and the
// persistence backends behind them.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

type Users interface {
	CreateUser(ctx context.Context, u User) (User, error)
	UserByID(ctx context.Context, id string) (User, error)
	// UserByLogin matches identifier against email or username, case-insensitively.
	UserByLogin(ctx context.Context, identifier string) (User, error)
	UpdateUser(ctx context.Context, id string, p UserPatch) (User, error)
	// DeleteUser removes the user along with everything they own.
	DeleteUser(ctx context.Context, id string) error
	SearchUsers(ctx context.Context, excludeID, query string, limit int) ([]User, error)
}

type Delegations interface {
	CreateDelegation(ctx context.Context, d Delegation) (Delegation, error)
	DelegationByID(ctx context.Context, id string) (Delegation, error)
	DelegationBetween(ctx context.Context, ownerID, delegateID string) (Delegation, error)
	DelegationsByOwner(ctx context.Context, ownerID string) ([]Delegation, error)
	DelegationsByDelegate(ctx context.Context, delegateID string) ([]Delegation, error)
	UpdateDelegation(ctx context.Context, id string, p DelegationPatch) (Delegation, error)
	DeleteDelegation(ctx context.Context, id string) error
}

type Categories interface {
	CreateCategory(ctx context.Context, c Category) (Category, error)
	CategoryByID(ctx context.Context, id string) (Category, error)
	ListCategories(ctx context.Context, ownerID string, hidden []string) ([]Category, error)
	UpdateCategory(ctx context.Context, id string, p CategoryPatch) (Category, error)
	// DeleteCategory detaches the category from its tasks before removing it.
	DeleteCategory(ctx context.Context, id string) error
}

type Tasks interface {
	CreateTask(ctx context.Context, t Task) (Task, error)
	TaskByID(ctx context.Context, id string) (Task, error)
	ListTasks(ctx context.Context, f TaskFilter) ([]Task, int, error)
	UpdateTask(ctx context.Context, id string, p TaskPatch) (Task, error)
	DeleteTask(ctx context.Context, id string) error
	TaskStats(ctx context.Context, ownerID string, now time.Time) (TaskStats, error)
}

type Activity interface {
	AddActivity(ctx context.Context, e ActivityEntry) error
	ListActivity(ctx context.Context, ownerID string, offset, limit int) ([]ActivityEntry, int, error)
}

type Store interface {
	Users
	Delegations
	Categories
	Tasks
	Activity
	Close() error
}

// CompletionRate returns completed/total as a percentage rounded to one decimal.
func CompletionRate(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	r := float64(completed) / float64(total) * 1000
	return float64(int(r+0.5)) / 10
}
