package authz

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// Store reads principals, memberships, roles and rules. All methods are
// read-only; rule administration is outside this service's scope.
type Store struct {
	db *sql.DB
}

// NewStore creates an authorization store over the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetPrincipal resolves an opaque principal id. Returns ErrPrincipalNotFound
// when no such principal exists.
func (s *Store) GetPrincipal(ctx context.Context, id string) (*Principal, error) {
	query := `SELECT login, enabled FROM principals WHERE login = $1`

	var p Principal
	err := s.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Enabled)
	if err == sql.ErrNoRows {
		return nil, ErrPrincipalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get principal: %w", err)
	}
	return &p, nil
}

// DirectRoles returns the roles assigned directly to a principal.
func (s *Store) DirectRoles(ctx context.Context, principalID string) ([]Role, error) {
	query := `
		SELECT r.id, r.name, r.created_at
		FROM roles r
		JOIN principal_roles pr ON pr.role_id = r.id
		JOIN principals p ON p.id = pr.principal_id
		WHERE p.login = $1
		ORDER BY r.id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to get direct roles: %w", err)
	}
	defer rows.Close()

	return scanRoles(rows)
}

// GroupsOf returns the ids of every group the principal belongs to directly.
func (s *Store) GroupsOf(ctx context.Context, principalID string) ([]int64, error) {
	query := `
		SELECT gm.group_id
		FROM group_members gm
		JOIN principals p ON p.id = gm.principal_id
		WHERE p.login = $1
		ORDER BY gm.group_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group memberships: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RolesForGroups returns the roles assigned to any of the given groups.
func (s *Store) RolesForGroups(ctx context.Context, groupIDs []int64) ([]Role, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(groupIDs))
	args := make([]interface{}, len(groupIDs))
	for i, id := range groupIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT r.id, r.name, r.created_at
		FROM roles r
		JOIN group_roles gr ON gr.role_id = r.id
		WHERE gr.group_id IN (%s)
		ORDER BY r.id ASC
	`, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get group roles: %w", err)
	}
	defer rows.Close()

	return scanRoles(rows)
}

// RulesForRoles returns all rules of one kind across the given roles.
func (s *Store) RulesForRoles(ctx context.Context, kind RuleKind, roleIDs []int64) ([]Rule, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(roleIDs))
	args := make([]interface{}, 0, len(roleIDs)+1)
	args = append(args, string(kind))
	for i, id := range roleIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT id, kind, role_id, site_id, path, mode, pagetree, template_key, grants, created_at
		FROM rules
		WHERE kind = $1 AND role_id IN (%s)
		ORDER BY id ASC
	`, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

// LoadGroupGraph loads every group and every group-to-group edge. Implements
// GraphLoader for the group service's refresh-ahead cache.
func (s *Store) LoadGroupGraph(ctx context.Context) ([]Group, []GroupEdge, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM groups ORDER BY id ASC`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	edgeRows, err := s.db.QueryContext(ctx, `SELECT parent_id, child_id FROM group_edges`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load group edges: %w", err)
	}
	defer edgeRows.Close()

	var edges []GroupEdge
	for edgeRows.Next() {
		var e GroupEdge
		if err := edgeRows.Scan(&e.ParentID, &e.ChildID); err != nil {
			return nil, nil, fmt.Errorf("failed to scan group edge: %w", err)
		}
		edges = append(edges, e)
	}
	return groups, edges, edgeRows.Err()
}

func scanRoles(rows *sql.Rows) ([]Role, error) {
	var roles []Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Name, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func scanRule(scanner interface {
	Scan(dest ...interface{}) error
}) (*Rule, error) {
	var r Rule
	var siteID sql.NullInt64
	var path, mode, pagetree, templateKey sql.NullString
	var grantsJSON string

	err := scanner.Scan(
		&r.ID,
		&r.Kind,
		&r.RoleID,
		&siteID,
		&path,
		&mode,
		&pagetree,
		&templateKey,
		&grantsJSON,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}

	if siteID.Valid {
		id := siteID.Int64
		r.SiteID = &id
	}
	if path.Valid {
		r.Path = path.String
	}
	if mode.Valid {
		r.Mode = RuleMode(mode.String)
	}
	if pagetree.Valid {
		pt := PagetreeType(pagetree.String)
		r.Pagetree = &pt
	}
	if templateKey.Valid {
		r.TemplateKey = templateKey.String
	}

	if err := json.Unmarshal([]byte(grantsJSON), &r.Grants); err != nil {
		return nil, fmt.Errorf("failed to unmarshal grants: %w", err)
	}
	return &r, nil
}
