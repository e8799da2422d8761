package client

import (
	"strings"
	"time"
)

type User struct {
	ID                 string `json:"id"`
	Email              string `json:"email"`
	Username           string `json:"username"`
	FirstName          string `json:"firstName"`
	LastName           string `json:"lastName"`
	DefaultContext     string `json:"defaultContext"`
	MustChangePassword bool   `json:"mustChangePassword"`
}

type UserRef struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// DisplayName is "First Last", falling back to the username.
func (u *UserRef) DisplayName() string {
	if u == nil {
		return ""
	}
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return u.Username
}

type Delegation struct {
	ID                  string   `json:"id"`
	OwnerID             string   `json:"ownerId"`
	DelegateID          string   `json:"delegateId"`
	CanCreateTasks      bool     `json:"canCreateTasks"`
	CanEditTasks        bool     `json:"canEditTasks"`
	CanDeleteTasks      bool     `json:"canDeleteTasks"`
	CanCreateCategories bool     `json:"canCreateCategories"`
	HiddenCategoryIDs   []string `json:"hiddenCategoryIds"`
	Status              string   `json:"status"`
	Owner               *UserRef `json:"owner"`
	Delegate            *UserRef `json:"delegate"`
}

type DelegationList struct {
	Given        []Delegation `json:"given"`
	Received     []Delegation `json:"received"`
	PendingCount int          `json:"pendingCount"`
}

type DelegationRequest struct {
	DelegateID          string   `json:"delegateId,omitempty"`
	Identifier          string   `json:"identifier,omitempty"`
	CanCreateTasks      bool     `json:"canCreateTasks"`
	CanEditTasks        bool     `json:"canEditTasks"`
	CanDeleteTasks      bool     `json:"canDeleteTasks"`
	CanCreateCategories bool     `json:"canCreateCategories"`
	HiddenCategoryIDs   []string `json:"hiddenCategoryIds,omitempty"`
}

type PermissionPatch struct {
	CanCreateTasks      *bool     `json:"canCreateTasks,omitempty"`
	CanEditTasks        *bool     `json:"canEditTasks,omitempty"`
	CanDeleteTasks      *bool     `json:"canDeleteTasks,omitempty"`
	CanCreateCategories *bool     `json:"canCreateCategories,omitempty"`
	HiddenCategoryIDs   *[]string `json:"hiddenCategoryIds,omitempty"`
}

type Category struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Color  string `json:"color"`
}

type CategoryRequest struct {
	Name    string `json:"name"`
	Color   string `json:"color,omitempty"`
	OwnerID string `json:"ownerId,omitempty"`
}

type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Importance  string     `json:"importance"`
	Status      string     `json:"status"`
	CategoryID  *string    `json:"categoryId"`
	CompletedAt *time.Time `json:"completedAt"`
}

type TaskList struct {
	Tasks []Task `json:"tasks"`
	Total int    `json:"total"`
}

type TaskRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	CategoryID  *string `json:"categoryId,omitempty"`
	OwnerID     string  `json:"ownerId,omitempty"`
}

type TaskUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
}

type ActivityEntry struct {
	ID          string         `json:"id"`
	Owner       *UserRef       `json:"owner"`
	Actor       *UserRef       `json:"actor"`
	TargetOwner *UserRef       `json:"targetOwner"`
	Action      string         `json:"action"`
	EntityType  string         `json:"entityType"`
	EntityID    string         `json:"entityId"`
	EntityTitle string         `json:"entityTitle"`
	Details     map[string]any `json:"details"`
	IsOwnAction bool           `json:"isOwnAction"`
	IsForOther  bool           `json:"isForOther"`
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type ActivityPage struct {
	Logs       []ActivityEntry `json:"logs"`
	Pagination Pagination      `json:"pagination"`
}
