package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the full schema as ordered migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create principals, groups and membership tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS principals (
					id BIGSERIAL PRIMARY KEY,
					login VARCHAR(255) NOT NULL UNIQUE,
					enabled BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS groups (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL UNIQUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS group_edges (
					parent_id BIGINT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
					child_id BIGINT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
					PRIMARY KEY (parent_id, child_id)
				);

				CREATE TABLE IF NOT EXISTS group_members (
					group_id BIGINT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
					principal_id BIGINT NOT NULL REFERENCES principals(id) ON DELETE CASCADE,
					PRIMARY KEY (group_id, principal_id)
				);

				CREATE INDEX idx_group_members_principal_id ON group_members(principal_id);
				CREATE INDEX idx_group_edges_child_id ON group_edges(child_id);
			`,
		},
		{
			Version:     2,
			Description: "Create roles, role assignments and rules tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL UNIQUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS principal_roles (
					principal_id BIGINT NOT NULL REFERENCES principals(id) ON DELETE CASCADE,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					PRIMARY KEY (principal_id, role_id)
				);

				CREATE TABLE IF NOT EXISTS group_roles (
					group_id BIGINT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					PRIMARY KEY (group_id, role_id)
				);

				CREATE TABLE IF NOT EXISTS rules (
					id BIGSERIAL PRIMARY KEY,
					kind VARCHAR(20) NOT NULL,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					site_id BIGINT,
					path TEXT,
					mode VARCHAR(20),
					pagetree VARCHAR(20),
					template_key VARCHAR(255),
					grants JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_rules_role_id ON rules(role_id);
				CREATE INDEX idx_rules_kind ON rules(kind);
			`,
		},
		{
			Version:     3,
			Description: "Create sites and pagetrees tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS sites (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					delete_state VARCHAR(20) NOT NULL DEFAULT 'NOTDELETED',
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS pagetrees (
					id BIGSERIAL PRIMARY KEY,
					site_id BIGINT NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
					type VARCHAR(20) NOT NULL,
					delete_state VARCHAR(20) NOT NULL DEFAULT 'NOTDELETED',
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_pagetrees_site_id ON pagetrees(site_id);
			`,
		},
		{
			Version:     4,
			Description: "Create tree_entities table",
			SQL: `
				CREATE TABLE IF NOT EXISTS tree_entities (
					id BIGSERIAL PRIMARY KEY,
					kind VARCHAR(20) NOT NULL,
					external_id VARCHAR(64) NOT NULL,
					path TEXT NOT NULL,
					name VARCHAR(255) NOT NULL,
					display_order INT NOT NULL,
					delete_state VARCHAR(20) NOT NULL DEFAULT 'NOTDELETED',
					deleted_at TIMESTAMP,
					deleted_by VARCHAR(255),
					site_id BIGINT NOT NULL REFERENCES sites(id),
					pagetree_id BIGINT REFERENCES pagetrees(id),
					pagetree_type VARCHAR(20),
					template_key VARCHAR(255) NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					created_by VARCHAR(255) NOT NULL DEFAULT '',
					UNIQUE (kind, external_id)
				);

				CREATE INDEX idx_tree_entities_path ON tree_entities(kind, path);
				CREATE INDEX idx_tree_entities_site_id ON tree_entities(site_id);
				CREATE INDEX idx_tree_entities_delete_state ON tree_entities(delete_state);
			`,
		},
		{
			Version:     5,
			Description: "Create data_entries table",
			SQL: `
				CREATE TABLE IF NOT EXISTS data_entries (
					id BIGSERIAL PRIMARY KEY,
					external_id VARCHAR(64) NOT NULL UNIQUE,
					folder_id BIGINT NOT NULL REFERENCES tree_entities(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					display_order INT NOT NULL,
					delete_state VARCHAR(20) NOT NULL DEFAULT 'NOTDELETED',
					deleted_at TIMESTAMP,
					deleted_by VARCHAR(255),
					template_key VARCHAR(255) NOT NULL DEFAULT '',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					created_by VARCHAR(255) NOT NULL DEFAULT ''
				);

				CREATE INDEX idx_data_entries_folder_id ON data_entries(folder_id);
			`,
		},
		{
			Version:     6,
			Description: "Create template registry tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS templates (
					key VARCHAR(255) PRIMARY KEY,
					type VARCHAR(20) NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS template_children (
					parent_key VARCHAR(255) NOT NULL REFERENCES templates(key) ON DELETE CASCADE,
					area VARCHAR(255) NOT NULL DEFAULT '',
					child_key VARCHAR(255) NOT NULL,
					PRIMARY KEY (parent_key, area, child_key)
				);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
