package store

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a process-local Store. It backs tests and STORE=memory runs.
type Memory struct {
	mu sync.RWMutex

	seq         int64
	order       map[string]int64
	users       map[string]User
	delegations map[string]Delegation
	categories  map[string]Category
	tasks       map[string]Task
	activity    []ActivityEntry

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		order:       map[string]int64{},
		users:       map[string]User{},
		delegations: map[string]Delegation{},
		categories:  map[string]Category{},
		tasks:       map[string]Task{},
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) track(id string) {
	m.seq++
	m.order[id] = m.seq
}

// ----- users -----

func (m *Memory) CreateUser(_ context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) || strings.EqualFold(existing.Username, u.Username) {
			return User{}, fmt.Errorf("user %s: %w", u.Username, ErrConflict)
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = m.now()
	}
	m.users[u.ID] = u
	m.track(u.ID)
	return u, nil
}

func (m *Memory) UserByID(_ context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return u, nil
}

func (m *Memory) UserByLogin(_ context.Context, identifier string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, identifier) || strings.EqualFold(u.Username, identifier) {
			return u, nil
		}
	}
	return User{}, fmt.Errorf("user %s: %w", identifier, ErrNotFound)
}

func (m *Memory) UpdateUser(_ context.Context, id string, p UserPatch) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if p.Email != nil {
		for _, other := range m.users {
			if other.ID != id && strings.EqualFold(other.Email, *p.Email) {
				return User{}, fmt.Errorf("email %s: %w", *p.Email, ErrConflict)
			}
		}
		u.Email = *p.Email
	}
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.ThemePreference != nil {
		u.ThemePreference = *p.ThemePreference
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	if p.MustChangePassword != nil {
		u.MustChangePassword = *p.MustChangePassword
	}
	if p.DefaultContext != nil {
		u.DefaultContext = *p.DefaultContext
	}
	if p.LastLoginAt != nil {
		t := *p.LastLoginAt
		u.LastLoginAt = &t
	}
	m.users[id] = u
	return u, nil
}

func (m *Memory) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	delete(m.users, id)
	for k, t := range m.tasks {
		if t.UserID == id {
			delete(m.tasks, k)
		}
	}
	for k, c := range m.categories {
		if c.UserID == id {
			delete(m.categories, k)
		}
	}
	for k, d := range m.delegations {
		if d.OwnerID == id || d.DelegateID == id {
			delete(m.delegations, k)
		}
	}
	kept := m.activity[:0]
	for _, e := range m.activity {
		if e.OwnerID == id || e.ActorID == id {
			continue
		}
		if e.TargetOwnerID != nil && *e.TargetOwnerID == id {
			e.TargetOwnerID = nil
		}
		kept = append(kept, e)
	}
	m.activity = kept
	return nil
}

func (m *Memory) SearchUsers(_ context.Context, excludeID, query string, limit int) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := strings.ToLower(query)
	out := []User{}
	for _, u := range m.users {
		if u.ID == excludeID || !u.IsActive {
			continue
		}
		if strings.Contains(strings.ToLower(u.Email), q) ||
			strings.Contains(strings.ToLower(u.Username), q) ||
			strings.Contains(strings.ToLower(u.FirstName), q) ||
			strings.Contains(strings.ToLower(u.LastName), q) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ----- delegations -----

func cloneDelegation(d Delegation) Delegation {
	d.HiddenCategoryIDs = slices.Clone(d.HiddenCategoryIDs)
	if d.HiddenCategoryIDs == nil {
		d.HiddenCategoryIDs = []string{}
	}
	return d
}

func (m *Memory) CreateDelegation(_ context.Context, d Delegation) (Delegation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.delegations {
		if existing.OwnerID == d.OwnerID && existing.DelegateID == d.DelegateID {
			return Delegation{}, fmt.Errorf("delegation %s->%s: %w", d.OwnerID, d.DelegateID, ErrConflict)
		}
	}
	now := m.now()
	d.ID = uuid.NewString()
	d.CreatedAt = now
	d.UpdatedAt = now
	if d.Status == "" {
		d.Status = DelegationPending
	}
	d = cloneDelegation(d)
	m.delegations[d.ID] = d
	m.track(d.ID)
	return cloneDelegation(d), nil
}

func (m *Memory) DelegationByID(_ context.Context, id string) (Delegation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.delegations[id]
	if !ok {
		return Delegation{}, fmt.Errorf("delegation %s: %w", id, ErrNotFound)
	}
	return cloneDelegation(d), nil
}

func (m *Memory) DelegationBetween(_ context.Context, ownerID, delegateID string) (Delegation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, d := range m.delegations {
		if d.OwnerID == ownerID && d.DelegateID == delegateID {
			return cloneDelegation(d), nil
		}
	}
	return Delegation{}, fmt.Errorf("delegation %s->%s: %w", ownerID, delegateID, ErrNotFound)
}

func (m *Memory) delegationsWhere(match func(Delegation) bool) []Delegation {
	out := []Delegation{}
	for _, d := range m.delegations {
		if match(d) {
			out = append(out, cloneDelegation(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.order[out[i].ID] > m.order[out[j].ID] })
	return out
}

func (m *Memory) DelegationsByOwner(_ context.Context, ownerID string) ([]Delegation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.delegationsWhere(func(d Delegation) bool { return d.OwnerID == ownerID }), nil
}

func (m *Memory) DelegationsByDelegate(_ context.Context, delegateID string) ([]Delegation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.delegationsWhere(func(d Delegation) bool { return d.DelegateID == delegateID }), nil
}

func (m *Memory) UpdateDelegation(_ context.Context, id string, p DelegationPatch) (Delegation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.delegations[id]
	if !ok {
		return Delegation{}, fmt.Errorf("delegation %s: %w", id, ErrNotFound)
	}
	if p.CanCreateTasks != nil {
		d.CanCreateTasks = *p.CanCreateTasks
	}
	if p.CanEditTasks != nil {
		d.CanEditTasks = *p.CanEditTasks
	}
	if p.CanDeleteTasks != nil {
		d.CanDeleteTasks = *p.CanDeleteTasks
	}
	if p.CanCreateCategories != nil {
		d.CanCreateCategories = *p.CanCreateCategories
	}
	if p.HiddenCategoryIDs != nil {
		d.HiddenCategoryIDs = slices.Clone(*p.HiddenCategoryIDs)
	}
	if p.Status != nil {
		d.Status = *p.Status
	}
	d.UpdatedAt = m.now()
	m.delegations[id] = d
	return cloneDelegation(d), nil
}

func (m *Memory) DeleteDelegation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.delegations[id]; !ok {
		return fmt.Errorf("delegation %s: %w", id, ErrNotFound)
	}
	delete(m.delegations, id)
	return nil
}

// ----- categories -----

func (m *Memory) countTasks(categoryID string) int {
	n := 0
	for _, t := range m.tasks {
		if t.CategoryID != nil && *t.CategoryID == categoryID {
			n++
		}
	}
	return n
}

func (m *Memory) CreateCategory(_ context.Context, c Category) (Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.categories {
		if existing.UserID == c.UserID && strings.EqualFold(existing.Name, c.Name) {
			return Category{}, fmt.Errorf("category %s: %w", c.Name, ErrConflict)
		}
	}
	now := m.now()
	c.ID = uuid.NewString()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.TaskCount = 0
	m.categories[c.ID] = c
	m.track(c.ID)
	return c, nil
}

func (m *Memory) CategoryByID(_ context.Context, id string) (Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.categories[id]
	if !ok {
		return Category{}, fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	c.TaskCount = m.countTasks(id)
	return c, nil
}

func (m *Memory) ListCategories(_ context.Context, ownerID string, hidden []string) ([]Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []Category{}
	for _, c := range m.categories {
		if c.UserID != ownerID || slices.Contains(hidden, c.ID) {
			continue
		}
		c.TaskCount = m.countTasks(c.ID)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) UpdateCategory(_ context.Context, id string, p CategoryPatch) (Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.categories[id]
	if !ok {
		return Category{}, fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	if p.Name != nil {
		for _, other := range m.categories {
			if other.ID != id && other.UserID == c.UserID && strings.EqualFold(other.Name, *p.Name) {
				return Category{}, fmt.Errorf("category %s: %w", *p.Name, ErrConflict)
			}
		}
		c.Name = *p.Name
	}
	if p.Color != nil {
		c.Color = *p.Color
	}
	if p.Icon.Set {
		c.Icon = p.Icon.Ptr()
	}
	c.UpdatedAt = m.now()
	m.categories[id] = c
	c.TaskCount = m.countTasks(id)
	return c, nil
}

func (m *Memory) DeleteCategory(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.categories[id]; !ok {
		return fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	for k, t := range m.tasks {
		if t.CategoryID != nil && *t.CategoryID == id {
			t.CategoryID = nil
			m.tasks[k] = t
		}
	}
	delete(m.categories, id)
	return nil
}

// ----- tasks -----

func (m *Memory) withCategory(t Task) Task {
	t.Category = nil
	if t.CategoryID != nil {
		if c, ok := m.categories[*t.CategoryID]; ok {
			t.Category = c.Ref()
		}
	}
	return t
}

func (m *Memory) CreateTask(_ context.Context, t Task) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	t.ID = uuid.NewString()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Importance == "" {
		t.Importance = ImportanceNormal
	}
	if t.Status == "" {
		t.Status = StatusActive
	}
	m.tasks[t.ID] = t
	m.track(t.ID)
	return m.withCategory(t), nil
}

func (m *Memory) TaskByID(_ context.Context, id string) (Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return m.withCategory(t), nil
}

func taskMatches(t Task, f TaskFilter) bool {
	if t.UserID != f.OwnerID {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Importance != "" && t.Importance != f.Importance {
		return false
	}
	if f.CategoryID.Set {
		if !f.CategoryID.Valid {
			if t.CategoryID != nil {
				return false
			}
		} else if t.CategoryID == nil || *t.CategoryID != f.CategoryID.Value {
			return false
		}
	} else if t.CategoryID != nil && slices.Contains(f.HiddenCategoryIDs, *t.CategoryID) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		desc := ""
		if t.Description != nil {
			desc = *t.Description
		}
		if !strings.Contains(strings.ToLower(t.Title), q) && !strings.Contains(strings.ToLower(desc), q) {
			return false
		}
	}
	return true
}

// compareTasks mirrors PostgreSQL ordering: NULL due dates sort as the largest value.
func compareTasks(a, b Task, sortBy string) int {
	switch sortBy {
	case SortDueDate:
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			return 0
		case a.DueDate == nil:
			return 1
		case b.DueDate == nil:
			return -1
		}
		return a.DueDate.Compare(*b.DueDate)
	case SortImportance:
		return cmp.Compare(ImportanceRank(a.Importance), ImportanceRank(b.Importance))
	case SortTitle:
		return strings.Compare(a.Title, b.Title)
	case SortUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func (m *Memory) ListTasks(_ context.Context, f TaskFilter) ([]Task, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := []Task{}
	for _, t := range m.tasks {
		if taskMatches(t, f) {
			matched = append(matched, t)
		}
	}
	slices.SortFunc(matched, func(a, b Task) int {
		c := compareTasks(a, b, f.SortBy)
		if c == 0 {
			c = cmp.Compare(m.order[a.ID], m.order[b.ID])
		}
		if !f.Ascending {
			c = -c
		}
		return c
	})

	total := len(matched)
	start := min(max(f.Offset, 0), total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}
	out := make([]Task, 0, end-start)
	for _, t := range matched[start:end] {
		out = append(out, m.withCategory(t))
	}
	return out, total, nil
}

func (m *Memory) UpdateTask(_ context.Context, id string, p TaskPatch) (Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description.Set {
		t.Description = p.Description.Ptr()
	}
	if p.Importance != nil {
		t.Importance = *p.Importance
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.CategoryID.Set {
		t.CategoryID = p.CategoryID.Ptr()
	}
	if p.DueDate.Set {
		t.DueDate = p.DueDate.Ptr()
	}
	if p.DueTime.Set {
		t.DueTime = p.DueTime.Ptr()
	}
	if p.CompletedAt.Set {
		t.CompletedAt = p.CompletedAt.Ptr()
	}
	t.UpdatedAt = m.now()
	m.tasks[id] = t
	return m.withCategory(t), nil
}

func (m *Memory) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[id]; !ok {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	delete(m.tasks, id)
	return nil
}

func (m *Memory) TaskStats(_ context.Context, ownerID string, now time.Time) (TaskStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var s TaskStats
	for _, t := range m.tasks {
		if t.UserID != ownerID {
			continue
		}
		s.Total++
		switch t.Status {
		case StatusActive:
			s.Active++
			if t.Importance == ImportanceHigh {
				s.HighPriority++
			}
			if t.DueDate != nil && t.DueDate.Before(now) {
				s.Overdue++
			}
		case StatusCompleted:
			s.Completed++
		}
	}
	s.CompletionRate = CompletionRate(s.Completed, s.Total)
	return s, nil
}

// ----- activity -----

func (m *Memory) AddActivity(_ context.Context, e ActivityEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.ID = uuid.NewString()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = m.now()
	}
	e.Details = maps.Clone(e.Details)
	m.activity = append(m.activity, e)
	return nil
}

func (m *Memory) ListActivity(_ context.Context, ownerID string, offset, limit int) ([]ActivityEntry, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var owned []ActivityEntry
	for i := len(m.activity) - 1; i >= 0; i-- {
		if m.activity[i].OwnerID == ownerID {
			owned = append(owned, m.activity[i])
		}
	}
	total := len(owned)
	start := min(max(offset, 0), total)
	end := total
	if limit > 0 {
		end = min(start+limit, total)
	}
	return slices.Clone(owned[start:end]), total, nil
}
