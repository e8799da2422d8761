package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Postgres is the Store backed by PostgreSQL through lib/pq.
type Postgres struct {
	DB *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{DB: db}
}

func (p *Postgres) Close() error { return p.DB.Close() }

const uniqueViolation = "23505"

// translate maps driver errors onto the store sentinels.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", what, ErrConflict)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func expectRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

// likePattern escapes LIKE metacharacters and wraps q in wildcards.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}

// setList accumulates "col = $n" fragments for dynamic UPDATE statements.
type setList struct {
	parts []string
	args  []any
}

func (s *setList) add(col string, v any) {
	s.args = append(s.args, v)
	s.parts = append(s.parts, fmt.Sprintf("%s = $%d", col, len(s.args)))
}

func (s *setList) raw(fragment string) {
	s.parts = append(s.parts, fragment)
}

func (s *setList) next(v any) string {
	s.args = append(s.args, v)
	return fmt.Sprintf("$%d", len(s.args))
}

// ----- users -----

const userColumns = `id, email, username, password_hash, first_name, last_name, theme_preference,
	role, must_change_password, is_active, default_context, created_at, last_login_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var (
		u         User
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.ThemePreference, &u.Role, &u.MustChangePassword, &u.IsActive, &u.DefaultContext,
		&u.CreatedAt, &lastLogin)
	if err != nil {
		return User{}, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return u, nil
}

func (p *Postgres) CreateUser(ctx context.Context, u User) (User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	row := p.DB.QueryRowContext(ctx, `
		INSERT INTO users (id, email, username, password_hash, first_name, last_name,
			theme_preference, role, must_change_password, is_active, default_context)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+userColumns,
		u.ID, u.Email, u.Username, u.PasswordHash, u.FirstName, u.LastName,
		u.ThemePreference, u.Role, u.MustChangePassword, u.IsActive, u.DefaultContext)
	created, err := scanUser(row)
	return created, translate(err, "user "+u.Username)
}

func (p *Postgres) UserByID(ctx context.Context, id string) (User, error) {
	if uuid.Validate(id) != nil {
		return User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	row := p.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	return u, translate(err, "user "+id)
}

func (p *Postgres) UserByLogin(ctx context.Context, identifier string) (User, error) {
	row := p.DB.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE lower(email) = lower($1) OR lower(username) = lower($1)
		LIMIT 1`, identifier)
	u, err := scanUser(row)
	return u, translate(err, "user "+identifier)
}

func (p *Postgres) UpdateUser(ctx context.Context, id string, patch UserPatch) (User, error) {
	var s setList
	if patch.FirstName != nil {
		s.add("first_name", *patch.FirstName)
	}
	if patch.LastName != nil {
		s.add("last_name", *patch.LastName)
	}
	if patch.ThemePreference != nil {
		s.add("theme_preference", *patch.ThemePreference)
	}
	if patch.Email != nil {
		s.add("email", *patch.Email)
	}
	if patch.PasswordHash != nil {
		s.add("password_hash", *patch.PasswordHash)
	}
	if patch.MustChangePassword != nil {
		s.add("must_change_password", *patch.MustChangePassword)
	}
	if patch.DefaultContext != nil {
		s.add("default_context", *patch.DefaultContext)
	}
	if patch.LastLoginAt != nil {
		s.add("last_login_at", *patch.LastLoginAt)
	}
	if len(s.parts) == 0 {
		return p.UserByID(ctx, id)
	}
	where := s.next(id)
	row := p.DB.QueryRowContext(ctx,
		`UPDATE users SET `+strings.Join(s.parts, ", ")+` WHERE id = `+where+` RETURNING `+userColumns,
		s.args...)
	u, err := scanUser(row)
	return u, translate(err, "user "+id)
}

func (p *Postgres) DeleteUser(ctx context.Context, id string) error {
	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Foreign keys cascade to delegations, categories, tasks and activity.
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return translate(err, "user "+id)
	}
	if err := expectRow(res, "user "+id); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *Postgres) SearchUsers(ctx context.Context, excludeID, query string, limit int) ([]User, error) {
	rows, err := p.DB.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE id <> $1 AND is_active
		  AND (email ILIKE $2 OR username ILIKE $2 OR first_name ILIKE $2 OR last_name ILIKE $2)
		ORDER BY username
		LIMIT $3`, excludeID, likePattern(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ----- delegations -----

const delegationColumns = `id, owner_id, delegate_id, can_create_tasks, can_edit_tasks, can_delete_tasks,
	can_create_categories, hidden_category_ids, status, created_at, updated_at`

func scanDelegation(row rowScanner) (Delegation, error) {
	var d Delegation
	err := row.Scan(&d.ID, &d.OwnerID, &d.DelegateID, &d.CanCreateTasks, &d.CanEditTasks,
		&d.CanDeleteTasks, &d.CanCreateCategories, pq.Array(&d.HiddenCategoryIDs), &d.Status,
		&d.CreatedAt, &d.UpdatedAt)
	if d.HiddenCategoryIDs == nil {
		d.HiddenCategoryIDs = []string{}
	}
	return d, err
}

func (p *Postgres) CreateDelegation(ctx context.Context, d Delegation) (Delegation, error) {
	d.ID = uuid.NewString()
	if d.Status == "" {
		d.Status = DelegationPending
	}
	hidden := d.HiddenCategoryIDs
	if hidden == nil {
		hidden = []string{}
	}
	row := p.DB.QueryRowContext(ctx, `
		INSERT INTO task_delegations (id, owner_id, delegate_id, can_create_tasks, can_edit_tasks,
			can_delete_tasks, can_create_categories, hidden_category_ids, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+delegationColumns,
		d.ID, d.OwnerID, d.DelegateID, d.CanCreateTasks, d.CanEditTasks, d.CanDeleteTasks,
		d.CanCreateCategories, pq.Array(hidden), d.Status)
	created, err := scanDelegation(row)
	return created, translate(err, "delegation")
}

func (p *Postgres) DelegationByID(ctx context.Context, id string) (Delegation, error) {
	if uuid.Validate(id) != nil {
		return Delegation{}, fmt.Errorf("delegation %s: %w", id, ErrNotFound)
	}
	row := p.DB.QueryRowContext(ctx, `SELECT `+delegationColumns+` FROM task_delegations WHERE id = $1`, id)
	d, err := scanDelegation(row)
	return d, translate(err, "delegation "+id)
}

func (p *Postgres) DelegationBetween(ctx context.Context, ownerID, delegateID string) (Delegation, error) {
	if uuid.Validate(ownerID) != nil || uuid.Validate(delegateID) != nil {
		return Delegation{}, fmt.Errorf("delegation %s->%s: %w", ownerID, delegateID, ErrNotFound)
	}
	row := p.DB.QueryRowContext(ctx, `
		SELECT `+delegationColumns+` FROM task_delegations
		WHERE owner_id = $1 AND delegate_id = $2`, ownerID, delegateID)
	d, err := scanDelegation(row)
	return d, translate(err, "delegation "+ownerID+"->"+delegateID)
}

func (p *Postgres) listDelegations(ctx context.Context, column, userID string) ([]Delegation, error) {
	rows, err := p.DB.QueryContext(ctx, `
		SELECT `+delegationColumns+` FROM task_delegations
		WHERE `+column+` = $1
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Delegation{}
	for rows.Next() {
		d, err := scanDelegation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) DelegationsByOwner(ctx context.Context, ownerID string) ([]Delegation, error) {
	return p.listDelegations(ctx, "owner_id", ownerID)
}

func (p *Postgres) DelegationsByDelegate(ctx context.Context, delegateID string) ([]Delegation, error) {
	return p.listDelegations(ctx, "delegate_id", delegateID)
}

func (p *Postgres) UpdateDelegation(ctx context.Context, id string, patch DelegationPatch) (Delegation, error) {
	var s setList
	if patch.CanCreateTasks != nil {
		s.add("can_create_tasks", *patch.CanCreateTasks)
	}
	if patch.CanEditTasks != nil {
		s.add("can_edit_tasks", *patch.CanEditTasks)
	}
	if patch.CanDeleteTasks != nil {
		s.add("can_delete_tasks", *patch.CanDeleteTasks)
	}
	if patch.CanCreateCategories != nil {
		s.add("can_create_categories", *patch.CanCreateCategories)
	}
	if patch.HiddenCategoryIDs != nil {
		s.add("hidden_category_ids", pq.Array(*patch.HiddenCategoryIDs))
	}
	if patch.Status != nil {
		s.add("status", *patch.Status)
	}
	s.raw("updated_at = now()")
	where := s.next(id)
	row := p.DB.QueryRowContext(ctx,
		`UPDATE task_delegations SET `+strings.Join(s.parts, ", ")+` WHERE id = `+where+` RETURNING `+delegationColumns,
		s.args...)
	d, err := scanDelegation(row)
	return d, translate(err, "delegation "+id)
}

func (p *Postgres) DeleteDelegation(ctx context.Context, id string) error {
	res, err := p.DB.ExecContext(ctx, `DELETE FROM task_delegations WHERE id = $1`, id)
	if err != nil {
		return translate(err, "delegation "+id)
	}
	return expectRow(res, "delegation "+id)
}
