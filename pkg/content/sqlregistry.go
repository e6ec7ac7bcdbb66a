package content

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLRegistry reads template metadata from the templates tables. A template
// with no template_children rows places no restriction on what may nest
// beneath it.
type SQLRegistry struct {
	db *sql.DB
}

// NewSQLRegistry creates a registry backed by the given database.
func NewSQLRegistry(db *sql.DB) *SQLRegistry {
	return &SQLRegistry{db: db}
}

func (r *SQLRegistry) IsTemplateKnown(ctx context.Context, key string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM templates WHERE key = $1", key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up template %s: %w", key, err)
	}
	return true, nil
}

func (r *SQLRegistry) TemplateType(ctx context.Context, key string) (TemplateType, error) {
	var t string
	err := r.db.QueryRowContext(ctx, "SELECT type FROM templates WHERE key = $1", key).Scan(&t)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("unknown template %s", key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up template %s: %w", key, err)
	}
	return TemplateType(t), nil
}

func (r *SQLRegistry) AllowedChildren(ctx context.Context, templateKey, areaName string) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT child_key FROM template_children WHERE parent_key = $1 AND area = $2",
		templateKey, areaName)
	if err != nil {
		return nil, fmt.Errorf("failed to load allowed children of %s: %w", templateKey, err)
	}
	defer rows.Close()

	var allowed map[string]bool
	for rows.Next() {
		var child string
		if err := rows.Scan(&child); err != nil {
			return nil, fmt.Errorf("failed to scan allowed child: %w", err)
		}
		if allowed == nil {
			allowed = make(map[string]bool)
		}
		allowed[child] = true
	}
	return allowed, rows.Err()
}
