package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

func Connect(connString string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id                   UUID PRIMARY KEY,
		email                TEXT NOT NULL UNIQUE,
		username             TEXT NOT NULL UNIQUE,
		password_hash        TEXT NOT NULL,
		first_name           TEXT NOT NULL DEFAULT '',
		last_name            TEXT NOT NULL DEFAULT '',
		theme_preference     TEXT NOT NULL DEFAULT 'light',
		role                 TEXT NOT NULL DEFAULT 'user',
		must_change_password BOOLEAN NOT NULL DEFAULT FALSE,
		is_active            BOOLEAN NOT NULL DEFAULT TRUE,
		default_context      TEXT NOT NULL DEFAULT 'self',
		created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_login_at        TIMESTAMPTZ
	);`,
	`CREATE TABLE IF NOT EXISTS task_delegations (
		id                    UUID PRIMARY KEY,
		owner_id              UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		delegate_id           UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		can_create_tasks      BOOLEAN NOT NULL DEFAULT FALSE,
		can_edit_tasks        BOOLEAN NOT NULL DEFAULT FALSE,
		can_delete_tasks      BOOLEAN NOT NULL DEFAULT FALSE,
		can_create_categories BOOLEAN NOT NULL DEFAULT FALSE,
		hidden_category_ids   TEXT[] NOT NULL DEFAULT '{}',
		status                TEXT NOT NULL DEFAULT 'pending',
		created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (owner_id, delegate_id)
	);`,
	`CREATE TABLE IF NOT EXISTS categories (
		id         UUID PRIMARY KEY,
		user_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name       TEXT NOT NULL,
		color      TEXT NOT NULL DEFAULT '#6366f1',
		icon       TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS categories_user_name_idx ON categories (user_id, lower(name));`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id           UUID PRIMARY KEY,
		user_id      UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title        TEXT NOT NULL,
		description  TEXT,
		importance   TEXT NOT NULL DEFAULT 'normal',
		status       TEXT NOT NULL DEFAULT 'active',
		category_id  UUID REFERENCES categories(id) ON DELETE SET NULL,
		due_date     TIMESTAMPTZ,
		due_time     TEXT,
		completed_at TIMESTAMPTZ,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS tasks_user_idx ON tasks (user_id);`,
	`CREATE TABLE IF NOT EXISTS activity_logs (
		seq             BIGSERIAL,
		id              UUID PRIMARY KEY,
		owner_id        UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		actor_id        UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		target_owner_id UUID REFERENCES users(id) ON DELETE SET NULL,
		action          TEXT NOT NULL,
		entity_type     TEXT NOT NULL,
		entity_id       TEXT NOT NULL,
		entity_title    TEXT NOT NULL DEFAULT '',
		details         JSONB,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS activity_logs_owner_idx ON activity_logs (owner_id, created_at DESC);`,
}

// Migrate creates the schema when it is missing. Statements are idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, q := range schema {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
