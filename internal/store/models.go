package store

import (
	"slices"
	"time"
)

const (
	ContextSelf = "self"

	RoleUser = "user"

	ThemeLight = "light"
	ThemeDark  = "dark"
)

type User struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	Username           string     `json:"username"`
	PasswordHash       string     `json:"-"`
	FirstName          string     `json:"firstName"`
	LastName           string     `json:"lastName"`
	ThemePreference    string     `json:"themePreference"`
	Role               string     `json:"role"`
	MustChangePassword bool       `json:"mustChangePassword"`
	IsActive           bool       `json:"isActive"`
	DefaultContext     string     `json:"defaultContext"`
	CreatedAt          time.Time  `json:"createdAt"`
	LastLoginAt        *time.Time `json:"lastLoginAt,omitempty"`
}

// UserRef is the public projection of a user embedded in other resources.
type UserRef struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (u User) Ref() UserRef {
	return UserRef{ID: u.ID, Email: u.Email, Username: u.Username, FirstName: u.FirstName, LastName: u.LastName}
}

type UserPatch struct {
	FirstName          *string
	LastName           *string
	ThemePreference    *string
	Email              *string
	PasswordHash       *string
	MustChangePassword *bool
	DefaultContext     *string
	LastLoginAt        *time.Time
}

const (
	DelegationPending  = "pending"
	DelegationAccepted = "accepted"
)

// Delegation grants DelegateID a subset of rights over OwnerID's tasks and categories.
type Delegation struct {
	ID                  string    `json:"id"`
	OwnerID             string    `json:"ownerId"`
	DelegateID          string    `json:"delegateId"`
	CanCreateTasks      bool      `json:"canCreateTasks"`
	CanEditTasks        bool      `json:"canEditTasks"`
	CanDeleteTasks      bool      `json:"canDeleteTasks"`
	CanCreateCategories bool      `json:"canCreateCategories"`
	HiddenCategoryIDs   []string  `json:"hiddenCategoryIds"`
	Status              string    `json:"status"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

func (d Delegation) Accepted() bool { return d.Status == DelegationAccepted }

// Hides reports whether categoryID is hidden from the delegate.
func (d Delegation) Hides(categoryID string) bool {
	return slices.Contains(d.HiddenCategoryIDs, categoryID)
}

type DelegationPatch struct {
	CanCreateTasks      *bool
	CanEditTasks        *bool
	CanDeleteTasks      *bool
	CanCreateCategories *bool
	HiddenCategoryIDs   *[]string
	Status              *string
}

const DefaultCategoryColor = "#6366f1"

type Category struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Icon      *string   `json:"icon"`
	TaskCount int       `json:"taskCount"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CategoryRef is the category summary embedded in a task.
type CategoryRef struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Color string  `json:"color"`
	Icon  *string `json:"icon,omitempty"`
}

func (c Category) Ref() *CategoryRef {
	return &CategoryRef{ID: c.ID, Name: c.Name, Color: c.Color, Icon: c.Icon}
}

type CategoryPatch struct {
	Name  *string
	Color *string
	Icon  Field[string]
}

const (
	ImportanceLow    = "low"
	ImportanceNormal = "normal"
	ImportanceHigh   = "high"

	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusArchived  = "archived"
)

// ImportanceRank orders importance values low < normal < high.
func ImportanceRank(v string) int {
	switch v {
	case ImportanceLow:
		return 0
	case ImportanceHigh:
		return 2
	default:
		return 1
	}
}

func ValidImportance(v string) bool {
	return v == ImportanceLow || v == ImportanceNormal || v == ImportanceHigh
}

func ValidStatus(v string) bool {
	return v == StatusActive || v == StatusCompleted || v == StatusArchived
}

type Task struct {
	ID          string       `json:"id"`
	UserID      string       `json:"userId"`
	Title       string       `json:"title"`
	Description *string      `json:"description"`
	Importance  string       `json:"importance"`
	Status      string       `json:"status"`
	CategoryID  *string      `json:"categoryId"`
	Category    *CategoryRef `json:"category"`
	DueDate     *time.Time   `json:"dueDate"`
	DueTime     *string      `json:"dueTime"`
	CompletedAt *time.Time   `json:"completedAt"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

type TaskPatch struct {
	Title       *string
	Description Field[string]
	Importance  *string
	Status      *string
	CategoryID  Field[string]
	DueDate     Field[time.Time]
	DueTime     Field[string]
	CompletedAt Field[time.Time]
}

const (
	SortCreatedAt  = "created_at"
	SortDueDate    = "due_date"
	SortImportance = "importance"
	SortTitle      = "title"
	SortUpdatedAt  = "updated_at"
)

// TaskFilter selects one owner's tasks. Zero values mean "no constraint".
type TaskFilter struct {
	OwnerID    string
	Status     string
	Importance string
	// CategoryID set with Valid=false selects tasks without a category.
	CategoryID        Field[string]
	HiddenCategoryIDs []string
	Search            string
	SortBy            string
	Ascending         bool
	Limit             int
	Offset            int
}

type TaskStats struct {
	Total          int     `json:"total_tasks"`
	Active         int     `json:"active_tasks"`
	Completed      int     `json:"completed_tasks"`
	HighPriority   int     `json:"high_priority_tasks"`
	Overdue        int     `json:"overdue_tasks"`
	CompletionRate float64 `json:"completion_rate"`
}

const (
	EntityTask     = "task"
	EntityCategory = "category"
)

// ActivityEntry is one line of an owner's activity log. TargetOwnerID is set
// on the copy kept in a delegate's own log.
type ActivityEntry struct {
	ID            string
	OwnerID       string
	ActorID       string
	TargetOwnerID *string
	Action        string
	EntityType    string
	EntityID      string
	EntityTitle   string
	Details       map[string]any
	CreatedAt     time.Time
}
