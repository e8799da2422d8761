package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ----- categories -----

const categoryColumns = `c.id, c.user_id, c.name, c.color, c.icon, c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM tasks t WHERE t.category_id = c.id)`

func scanCategory(row rowScanner) (Category, error) {
	var (
		c    Category
		icon sql.NullString
	)
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Color, &icon, &c.CreatedAt, &c.UpdatedAt, &c.TaskCount)
	if icon.Valid {
		c.Icon = &icon.String
	}
	return c, err
}

func (p *Postgres) CreateCategory(ctx context.Context, c Category) (Category, error) {
	c.ID = uuid.NewString()
	_, err := p.DB.ExecContext(ctx, `
		INSERT INTO categories (id, user_id, name, color, icon)
		VALUES ($1, $2, $3, $4, $5)`, c.ID, c.UserID, c.Name, c.Color, c.Icon)
	if err != nil {
		return Category{}, translate(err, "category "+c.Name)
	}
	return p.CategoryByID(ctx, c.ID)
}

func (p *Postgres) CategoryByID(ctx context.Context, id string) (Category, error) {
	if uuid.Validate(id) != nil {
		return Category{}, fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	row := p.DB.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories c WHERE c.id = $1`, id)
	c, err := scanCategory(row)
	return c, translate(err, "category "+id)
}

func (p *Postgres) ListCategories(ctx context.Context, ownerID string, hidden []string) ([]Category, error) {
	if hidden == nil {
		hidden = []string{}
	}
	rows, err := p.DB.QueryContext(ctx, `
		SELECT `+categoryColumns+` FROM categories c
		WHERE c.user_id = $1 AND NOT (c.id::text = ANY($2))
		ORDER BY c.name`, ownerID, pq.Array(hidden))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateCategory(ctx context.Context, id string, patch CategoryPatch) (Category, error) {
	var s setList
	if patch.Name != nil {
		s.add("name", *patch.Name)
	}
	if patch.Color != nil {
		s.add("color", *patch.Color)
	}
	if patch.Icon.Set {
		s.add("icon", patch.Icon.Ptr())
	}
	s.raw("updated_at = now()")
	where := s.next(id)
	res, err := p.DB.ExecContext(ctx,
		`UPDATE categories SET `+strings.Join(s.parts, ", ")+` WHERE id = `+where, s.args...)
	if err != nil {
		return Category{}, translate(err, "category "+id)
	}
	if err := expectRow(res, "category "+id); err != nil {
		return Category{}, err
	}
	return p.CategoryByID(ctx, id)
}

func (p *Postgres) DeleteCategory(ctx context.Context, id string) error {
	// tasks.category_id is ON DELETE SET NULL.
	res, err := p.DB.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return translate(err, "category "+id)
	}
	return expectRow(res, "category "+id)
}

// ----- tasks -----

const taskColumns = `t.id, t.user_id, t.title, t.description, t.importance, t.status, t.category_id,
	t.due_date, t.due_time, t.completed_at, t.created_at, t.updated_at,
	c.id, c.name, c.color, c.icon`

const taskFrom = ` FROM tasks t LEFT JOIN categories c ON c.id = t.category_id`

func scanTask(row rowScanner) (Task, error) {
	var (
		t                              Task
		desc, catID, dueTime           sql.NullString
		dueDate, completedAt           sql.NullTime
		refID, refName, refColor, icon sql.NullString
	)
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &desc, &t.Importance, &t.Status, &catID,
		&dueDate, &dueTime, &completedAt, &t.CreatedAt, &t.UpdatedAt,
		&refID, &refName, &refColor, &icon)
	if err != nil {
		return Task{}, err
	}
	if desc.Valid {
		t.Description = &desc.String
	}
	if catID.Valid {
		t.CategoryID = &catID.String
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.Time
	}
	if dueTime.Valid {
		t.DueTime = &dueTime.String
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	if refID.Valid {
		t.Category = &CategoryRef{ID: refID.String, Name: refName.String, Color: refColor.String}
		if icon.Valid {
			t.Category.Icon = &icon.String
		}
	}
	return t, nil
}

func (p *Postgres) CreateTask(ctx context.Context, t Task) (Task, error) {
	t.ID = uuid.NewString()
	if t.Importance == "" {
		t.Importance = ImportanceNormal
	}
	if t.Status == "" {
		t.Status = StatusActive
	}
	_, err := p.DB.ExecContext(ctx, `
		INSERT INTO tasks (id, user_id, title, description, importance, status, category_id, due_date, due_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.UserID, t.Title, t.Description, t.Importance, t.Status, t.CategoryID, t.DueDate, t.DueTime)
	if err != nil {
		return Task{}, translate(err, "task")
	}
	return p.TaskByID(ctx, t.ID)
}

func (p *Postgres) TaskByID(ctx context.Context, id string) (Task, error) {
	if uuid.Validate(id) != nil {
		return Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	row := p.DB.QueryRowContext(ctx, `SELECT `+taskColumns+taskFrom+` WHERE t.id = $1`, id)
	t, err := scanTask(row)
	return t, translate(err, "task "+id)
}

var taskOrderColumns = map[string]string{
	SortCreatedAt:  "t.created_at",
	SortDueDate:    "t.due_date",
	SortImportance: "CASE t.importance WHEN 'low' THEN 0 WHEN 'high' THEN 2 ELSE 1 END",
	SortTitle:      "t.title",
	SortUpdatedAt:  "t.updated_at",
}

func (p *Postgres) ListTasks(ctx context.Context, f TaskFilter) ([]Task, int, error) {
	var s setList
	where := []string{"t.user_id = " + s.next(f.OwnerID)}
	if f.Status != "" {
		where = append(where, "t.status = "+s.next(f.Status))
	}
	if f.Importance != "" {
		where = append(where, "t.importance = "+s.next(f.Importance))
	}
	switch {
	case f.CategoryID.Set && !f.CategoryID.Valid:
		where = append(where, "t.category_id IS NULL")
	case f.CategoryID.Set:
		where = append(where, "t.category_id::text = "+s.next(f.CategoryID.Value))
	case len(f.HiddenCategoryIDs) > 0:
		where = append(where, "(t.category_id IS NULL OR NOT (t.category_id::text = ANY("+s.next(pq.Array(f.HiddenCategoryIDs))+")))")
	}
	if f.Search != "" {
		ph := s.next(likePattern(f.Search))
		where = append(where, "(t.title ILIKE "+ph+" OR t.description ILIKE "+ph+")")
	}
	cond := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := p.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks t`+cond, s.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	col, ok := taskOrderColumns[f.SortBy]
	if !ok {
		col = taskOrderColumns[SortCreatedAt]
	}
	dir := "DESC"
	if f.Ascending {
		dir = "ASC"
	}
	query := `SELECT ` + taskColumns + taskFrom + cond +
		fmt.Sprintf(" ORDER BY %s %s, t.created_at %s, t.id %s", col, dir, dir, dir)
	if f.Limit > 0 {
		query += " LIMIT " + s.next(f.Limit)
	}
	if f.Offset > 0 {
		query += " OFFSET " + s.next(f.Offset)
	}

	rows, err := p.DB.QueryContext(ctx, query, s.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

func (p *Postgres) UpdateTask(ctx context.Context, id string, patch TaskPatch) (Task, error) {
	var s setList
	if patch.Title != nil {
		s.add("title", *patch.Title)
	}
	if patch.Description.Set {
		s.add("description", patch.Description.Ptr())
	}
	if patch.Importance != nil {
		s.add("importance", *patch.Importance)
	}
	if patch.Status != nil {
		s.add("status", *patch.Status)
	}
	if patch.CategoryID.Set {
		s.add("category_id", patch.CategoryID.Ptr())
	}
	if patch.DueDate.Set {
		s.add("due_date", patch.DueDate.Ptr())
	}
	if patch.DueTime.Set {
		s.add("due_time", patch.DueTime.Ptr())
	}
	if patch.CompletedAt.Set {
		s.add("completed_at", patch.CompletedAt.Ptr())
	}
	s.raw("updated_at = now()")
	where := s.next(id)
	res, err := p.DB.ExecContext(ctx,
		`UPDATE tasks SET `+strings.Join(s.parts, ", ")+` WHERE id = `+where, s.args...)
	if err != nil {
		return Task{}, translate(err, "task "+id)
	}
	if err := expectRow(res, "task "+id); err != nil {
		return Task{}, err
	}
	return p.TaskByID(ctx, id)
}

func (p *Postgres) DeleteTask(ctx context.Context, id string) error {
	res, err := p.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return translate(err, "task "+id)
	}
	return expectRow(res, "task "+id)
}

func (p *Postgres) TaskStats(ctx context.Context, ownerID string, now time.Time) (TaskStats, error) {
	var s TaskStats
	err := p.DB.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'active'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'active' AND importance = 'high'),
			COUNT(*) FILTER (WHERE status = 'active' AND due_date < $2)
		FROM tasks WHERE user_id = $1`, ownerID, now).
		Scan(&s.Total, &s.Active, &s.Completed, &s.HighPriority, &s.Overdue)
	if err != nil {
		return TaskStats{}, err
	}
	s.CompletionRate = CompletionRate(s.Completed, s.Total)
	return s, nil
}

// ----- activity -----

func (p *Postgres) AddActivity(ctx context.Context, e ActivityEntry) error {
	var details []byte
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return err
		}
		details = b
	}
	_, err := p.DB.ExecContext(ctx, `
		INSERT INTO activity_logs (id, owner_id, actor_id, target_owner_id, action,
			entity_type, entity_id, entity_title, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb)`,
		uuid.NewString(), e.OwnerID, e.ActorID, e.TargetOwnerID, e.Action,
		e.EntityType, e.EntityID, e.EntityTitle, nullJSON(details))
	return err
}

func nullJSON(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func (p *Postgres) ListActivity(ctx context.Context, ownerID string, offset, limit int) ([]ActivityEntry, int, error) {
	var total int
	if err := p.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activity_logs WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := p.DB.QueryContext(ctx, `
		SELECT id, owner_id, actor_id, target_owner_id, action, entity_type, entity_id,
			entity_title, details, created_at
		FROM activity_logs
		WHERE owner_id = $1
		ORDER BY created_at DESC, seq DESC
		OFFSET $2 LIMIT $3`, ownerID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []ActivityEntry{}
	for rows.Next() {
		var (
			e       ActivityEntry
			target  sql.NullString
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.ActorID, &target, &e.Action, &e.EntityType,
			&e.EntityID, &e.EntityTitle, &details, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		if target.Valid {
			e.TargetOwnerID = &target.String
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, 0, fmt.Errorf("activity %s details: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}
