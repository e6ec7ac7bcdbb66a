package tree

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/arborcms/arbor/pkg/authz"
	"github.com/arborcms/arbor/pkg/pathtree"
	"github.com/arborcms/arbor/pkg/storage"
)

// Dialect selects the SQL flavor. Queries use lib/pq placeholders with each
// one bound exactly once in ascending order, so the same statements run on
// the sqlite driver used for local development and tests; the dialect only
// gates features sqlite lacks, like row locks.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// SQLStore implements Store over database/sql.
type SQLStore struct {
	db *sql.DB
	queries
}

// NewSQLStore wraps an open database handle.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, queries: queries{q: db, dialect: dialect}}
}

// InTx runs fn in one transaction; mutator operations are all-or-nothing.
func (s *SQLStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return storage.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(&sqlTx{queries{q: tx, dialect: s.dialect}})
	})
}

// PurgeDeleted removes finalized rows whose delete stamp is older than the
// cutoff. Maintenance only; it bypasses authorization and runs outside the
// mutator, so it must never touch rows in any other delete state.
func (s *SQLStore) PurgeDeleted(ctx context.Context, before time.Time) (int64, error) {
	var purged int64
	err := storage.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"DELETE FROM data_entries WHERE delete_state = $1 AND deleted_at < $2",
			Deleted, before)
		if err != nil {
			return fmt.Errorf("failed to purge data entries: %w", err)
		}
		n, _ := res.RowsAffected()
		purged += n

		res, err = tx.ExecContext(ctx,
			"DELETE FROM tree_entities WHERE delete_state = $1 AND deleted_at < $2",
			Deleted, before)
		if err != nil {
			return fmt.Errorf("failed to purge tree entities: %w", err)
		}
		n, _ = res.RowsAffected()
		purged += n
		return nil
	})
	return purged, err
}

type sqlTx struct {
	queries
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// queries holds the statements shared by the store and its transactions.
type queries struct {
	q       querier
	dialect Dialect
}

// argList numbers bind arguments so every placeholder appears exactly once
// in ascending order.
type argList struct {
	vals []interface{}
}

func (a *argList) add(v interface{}) string {
	a.vals = append(a.vals, v)
	return fmt.Sprintf("$%d", len(a.vals))
}

func (a *argList) addAll(vs ...interface{}) string {
	placeholders := make([]string, len(vs))
	for i, v := range vs {
		placeholders[i] = a.add(v)
	}
	return strings.Join(placeholders, ", ")
}

const entityColumns = `id, kind, external_id, path, name, display_order, delete_state,
	deleted_at, deleted_by, site_id, pagetree_id, pagetree_type, template_key, created_at, created_by`

// descendantLike is the LIKE pattern matching every path strictly beneath p.
func descendantLike(p string) string {
	if p == pathtree.Root {
		return "/%"
	}
	return p + "/%"
}

func (q queries) GetByInternalID(ctx context.Context, kind Kind, id int64) (*PathEntity, error) {
	var a argList
	query := fmt.Sprintf(`SELECT %s FROM tree_entities WHERE kind = %s AND id = %s`,
		entityColumns, a.add(string(kind)), a.add(id))
	return q.getOne(ctx, query, a.vals)
}

func (q queries) GetByExternalID(ctx context.Context, kind Kind, externalID string) (*PathEntity, error) {
	var a argList
	query := fmt.Sprintf(`SELECT %s FROM tree_entities WHERE kind = %s AND external_id = %s`,
		entityColumns, a.add(string(kind)), a.add(externalID))
	return q.getOne(ctx, query, a.vals)
}

func (q queries) LockForUpdate(ctx context.Context, kind Kind, id int64) (*PathEntity, error) {
	var a argList
	query := fmt.Sprintf(`SELECT %s FROM tree_entities WHERE kind = %s AND id = %s`,
		entityColumns, a.add(string(kind)), a.add(id))
	if q.dialect == DialectPostgres {
		query += " FOR UPDATE"
	}
	return q.getOne(ctx, query, a.vals)
}

func (q queries) LockScope(ctx context.Context, scope SiblingScope) error {
	var a argList
	var query string
	if scope.PagetreeID != nil {
		query = fmt.Sprintf(`SELECT id FROM pagetrees WHERE id = %s`, a.add(*scope.PagetreeID))
	} else {
		query = fmt.Sprintf(`SELECT id FROM sites WHERE id = %s`, a.add(scope.SiteID))
	}
	if q.dialect == DialectPostgres {
		query += " FOR UPDATE"
	}

	var id int64
	if err := q.q.QueryRowContext(ctx, query, a.vals...).Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("failed to lock sibling scope: %w", err)
	}
	return nil
}

func (q queries) getOne(ctx context.Context, query string, args []interface{}) (*PathEntity, error) {
	row := q.q.QueryRowContext(ctx, query, args...)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}
	return e, nil
}

func (q queries) Find(ctx context.Context, kind Kind, filter Filter) ([]PathEntity, error) {
	var a argList
	conds := []string{fmt.Sprintf("e.kind = %s", a.add(string(kind)))}

	if len(filter.InternalIDs) > 0 {
		conds = append(conds, fmt.Sprintf("e.id IN (%s)", a.addAll(toAny(filter.InternalIDs)...)))
	}
	if len(filter.ExternalIDs) > 0 {
		ids := make([]interface{}, len(filter.ExternalIDs))
		for i, v := range filter.ExternalIDs {
			ids[i] = v
		}
		conds = append(conds, fmt.Sprintf("e.external_id IN (%s)", a.addAll(ids...)))
	}
	if filter.Path != "" {
		id := pathtree.LastSegment(filter.Path)
		if id == 0 {
			return nil, fmt.Errorf("invalid path filter %q", filter.Path)
		}
		conds = append(conds,
			fmt.Sprintf("e.id = %s", a.add(id)),
			fmt.Sprintf("e.path = %s", a.add(pathtree.ParentPath(filter.Path))))
	}
	if filter.BeneathPath != "" {
		conds = append(conds, fmt.Sprintf("(e.path = %s OR e.path LIKE %s)",
			a.add(filter.BeneathPath), a.add(descendantLike(filter.BeneathPath))))
	}
	if filter.ChildrenOf != 0 {
		parent, err := q.GetByInternalID(ctx, kind, filter.ChildrenOf)
		if err != nil {
			return nil, err
		}
		conds = append(conds, fmt.Sprintf("e.path = %s", a.add(parent.ResourcePath())))
	}
	if filter.SiteID != nil {
		conds = append(conds, fmt.Sprintf("e.site_id = %s", a.add(*filter.SiteID)))
	}
	if filter.PagetreeID != nil {
		conds = append(conds, fmt.Sprintf("e.pagetree_id = %s", a.add(*filter.PagetreeID)))
	}
	if filter.Name != "" {
		conds = append(conds, fmt.Sprintf("e.name = %s", a.add(filter.Name)))
	}

	states := filter.EffectiveDeleteStates()
	stateArgs := make([]interface{}, len(states))
	for i, s := range states {
		stateArgs[i] = string(s)
	}
	conds = append(conds, fmt.Sprintf("e.delete_state IN (%s)", a.addAll(stateArgs...)))

	if !filter.IncludeOrphaned {
		conds = append(conds, fmt.Sprintf(
			"e.site_id IN (SELECT id FROM sites WHERE delete_state = %s)", a.add(string(NotDeleted))))
		conds = append(conds, fmt.Sprintf(
			"(e.pagetree_id IS NULL OR e.pagetree_id IN (SELECT id FROM pagetrees WHERE delete_state = %s))",
			a.add(string(NotDeleted))))
	}

	query := fmt.Sprintf(`
		SELECT %s FROM tree_entities e
		WHERE %s
		ORDER BY e.path ASC, e.display_order ASC
	`, prefixColumns("e"), strings.Join(conds, " AND "))

	rows, err := q.q.QueryContext(ctx, query, a.vals...)
	if err != nil {
		return nil, fmt.Errorf("failed to find entities: %w", err)
	}
	defer rows.Close()

	return scanEntities(rows)
}

func (q queries) ChildrenOf(ctx context.Context, scope SiblingScope) ([]PathEntity, error) {
	var a argList
	conds := scopeConds(&a, scope)

	query := fmt.Sprintf(`
		SELECT %s FROM tree_entities e
		WHERE %s
		ORDER BY e.display_order ASC
	`, prefixColumns("e"), strings.Join(conds, " AND "))

	rows, err := q.q.QueryContext(ctx, query, a.vals...)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	defer rows.Close()

	return scanEntities(rows)
}

func (q queries) Subtree(ctx context.Context, kind Kind, e *PathEntity) ([]PathEntity, error) {
	rp := e.ResourcePath()
	var a argList
	query := fmt.Sprintf(`
		SELECT %s FROM tree_entities t
		WHERE t.kind = %s AND (t.id = %s OR t.path = %s OR t.path LIKE %s)
		ORDER BY t.path ASC, t.display_order ASC
	`, prefixColumns("t"), a.add(string(kind)), a.add(e.InternalID), a.add(rp), a.add(descendantLike(rp)))

	rows, err := q.q.QueryContext(ctx, query, a.vals...)
	if err != nil {
		return nil, fmt.Errorf("failed to load subtree: %w", err)
	}
	defer rows.Close()

	return scanEntities(rows)
}

func (q queries) Insert(ctx context.Context, e *PathEntity) error {
	var a argList
	query := fmt.Sprintf(`
		INSERT INTO tree_entities
			(kind, external_id, path, name, display_order, delete_state,
			 site_id, pagetree_id, pagetree_type, template_key, created_at, created_by)
		VALUES (%s)
		RETURNING id
	`, a.addAll(
		string(e.Kind), e.ExternalID, e.Path, e.Name, e.DisplayOrder, string(e.DeleteState),
		e.SiteID, nullInt(e.PagetreeID), nullPagetree(e.PagetreeType), e.TemplateKey, e.CreatedAt, e.CreatedBy,
	))

	if err := q.q.QueryRowContext(ctx, query, a.vals...).Scan(&e.InternalID); err != nil {
		return fmt.Errorf("failed to insert entity: %w", err)
	}
	return nil
}

func (q queries) SetPlacement(ctx context.Context, kind Kind, id int64, path string, order int) error {
	var a argList
	query := fmt.Sprintf(
		`UPDATE tree_entities SET path = %s, display_order = %s WHERE kind = %s AND id = %s`,
		a.add(path), a.add(order), a.add(string(kind)), a.add(id))
	if _, err := q.q.ExecContext(ctx, query, a.vals...); err != nil {
		return fmt.Errorf("failed to set placement: %w", err)
	}
	return nil
}

func (q queries) RewriteDescendantPaths(ctx context.Context, kind Kind, oldPrefix, newPrefix string) error {
	var a argList
	query := fmt.Sprintf(`
		UPDATE tree_entities
		SET path = %s || substr(path, %s)
		WHERE kind = %s AND (path = %s OR path LIKE %s)
	`, a.add(newPrefix), a.add(len(oldPrefix)+1), a.add(string(kind)),
		a.add(oldPrefix), a.add(descendantLike(oldPrefix)))

	if _, err := q.q.ExecContext(ctx, query, a.vals...); err != nil {
		return fmt.Errorf("failed to rewrite descendant paths: %w", err)
	}
	return nil
}

func (q queries) ShiftOrders(ctx context.Context, scope SiblingScope, fromOrder, delta int) error {
	var a argList
	set := fmt.Sprintf("display_order = display_order + %s", a.add(delta))
	conds := scopeConds(&a, scope)
	conds = append(conds, fmt.Sprintf("e.display_order >= %s", a.add(fromOrder)))

	query := fmt.Sprintf(`UPDATE tree_entities SET %s WHERE id IN (
		SELECT e.id FROM tree_entities e WHERE %s
	)`, set, strings.Join(conds, " AND "))

	if _, err := q.q.ExecContext(ctx, query, a.vals...); err != nil {
		return fmt.Errorf("failed to shift orders: %w", err)
	}
	return nil
}

func (q queries) CompactOrders(ctx context.Context, scope SiblingScope) error {
	siblings, err := q.ChildrenOf(ctx, scope)
	if err != nil {
		return err
	}
	for i, sib := range siblings {
		want := i + 1
		if sib.DisplayOrder == want {
			continue
		}
		var a argList
		query := fmt.Sprintf(`UPDATE tree_entities SET display_order = %s WHERE kind = %s AND id = %s`,
			a.add(want), a.add(string(sib.Kind)), a.add(sib.InternalID))
		if _, err := q.q.ExecContext(ctx, query, a.vals...); err != nil {
			return fmt.Errorf("failed to compact orders: %w", err)
		}
	}
	return nil
}

func (q queries) StampSubtree(ctx context.Context, kind Kind, e *PathEntity, state DeleteState, actor string, at time.Time) error {
	rp := e.ResourcePath()
	var a argList
	query := fmt.Sprintf(`
		UPDATE tree_entities
		SET delete_state = %s, deleted_at = %s, deleted_by = %s
		WHERE kind = %s AND (id = %s OR path = %s OR path LIKE %s)
	`, a.add(string(state)), a.add(at), a.add(actor),
		a.add(string(kind)), a.add(e.InternalID), a.add(rp), a.add(descendantLike(rp)))

	if _, err := q.q.ExecContext(ctx, query, a.vals...); err != nil {
		return fmt.Errorf("failed to stamp subtree: %w", err)
	}
	return nil
}

func (q queries) ClearDeleteState(ctx context.Context, kind Kind, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	var a argList
	query := fmt.Sprintf(`
		UPDATE tree_entities
		SET delete_state = %s, deleted_at = NULL, deleted_by = ''
		WHERE kind = %s AND id IN (%s)
	`, a.add(string(NotDeleted)), a.add(string(kind)), a.addAll(toAny(ids)...))

	if _, err := q.q.ExecContext(ctx, query, a.vals...); err != nil {
		return fmt.Errorf("failed to clear delete state: %w", err)
	}
	return nil
}

func (q queries) SetExternalID(ctx context.Context, kind Kind, id int64, externalID string) error {
	var a argList
	query := fmt.Sprintf(`UPDATE tree_entities SET external_id = %s WHERE kind = %s AND id = %s`,
		a.add(externalID), a.add(string(kind)), a.add(id))
	if _, err := q.q.ExecContext(ctx, query, a.vals...); err != nil {
		return fmt.Errorf("failed to set external id: %w", err)
	}
	return nil
}

func (q queries) InsertEntry(ctx context.Context, entry *DataEntry) error {
	var a argList
	query := fmt.Sprintf(`
		INSERT INTO data_entries
			(external_id, folder_id, name, display_order, delete_state, template_key, created_at, created_by)
		VALUES (%s)
		RETURNING id
	`, a.addAll(
		entry.ExternalID, entry.FolderID, entry.Name, entry.DisplayOrder,
		string(entry.DeleteState), entry.TemplateKey, entry.CreatedAt, entry.CreatedBy,
	))

	if err := q.q.QueryRowContext(ctx, query, a.vals...).Scan(&entry.InternalID); err != nil {
		return fmt.Errorf("failed to insert data entry: %w", err)
	}
	return nil
}

func (q queries) EntriesOf(ctx context.Context, folderID int64) ([]DataEntry, error) {
	var a argList
	query := fmt.Sprintf(`
		SELECT id, external_id, folder_id, name, display_order, delete_state,
			deleted_at, deleted_by, template_key, created_at, created_by
		FROM data_entries
		WHERE folder_id = %s
		ORDER BY display_order ASC
	`, a.add(folderID))

	rows, err := q.q.QueryContext(ctx, query, a.vals...)
	if err != nil {
		return nil, fmt.Errorf("failed to list data entries: %w", err)
	}
	defer rows.Close()

	var entries []DataEntry
	for rows.Next() {
		var e DataEntry
		var deletedAt sql.NullTime
		var deletedBy sql.NullString
		err := rows.Scan(&e.InternalID, &e.ExternalID, &e.FolderID, &e.Name, &e.DisplayOrder,
			&e.DeleteState, &deletedAt, &deletedBy, &e.TemplateKey, &e.CreatedAt, &e.CreatedBy)
		if err != nil {
			return nil, fmt.Errorf("failed to scan data entry: %w", err)
		}
		if deletedAt.Valid {
			t := deletedAt.Time
			e.DeletedAt = &t
		}
		e.DeletedBy = deletedBy.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scopeConds(a *argList, scope SiblingScope) []string {
	conds := []string{
		fmt.Sprintf("e.kind = %s", a.add(string(scope.Kind))),
		fmt.Sprintf("e.site_id = %s", a.add(scope.SiteID)),
	}
	if scope.PagetreeID != nil {
		conds = append(conds, fmt.Sprintf("e.pagetree_id = %s", a.add(*scope.PagetreeID)))
	} else {
		conds = append(conds, "e.pagetree_id IS NULL")
	}
	conds = append(conds, fmt.Sprintf("e.path = %s", a.add(scope.ParentPath)))
	return conds
}

func prefixColumns(alias string) string {
	cols := strings.Split(entityColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

func toAny(ids []int64) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func nullInt(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullPagetree(v *authz.PagetreeType) interface{} {
	if v == nil {
		return nil
	}
	return string(*v)
}

func scanEntity(scanner interface {
	Scan(dest ...interface{}) error
}) (*PathEntity, error) {
	var e PathEntity
	var deletedAt sql.NullTime
	var deletedBy sql.NullString
	var pagetreeID sql.NullInt64
	var pagetreeType sql.NullString

	err := scanner.Scan(
		&e.InternalID,
		&e.Kind,
		&e.ExternalID,
		&e.Path,
		&e.Name,
		&e.DisplayOrder,
		&e.DeleteState,
		&deletedAt,
		&deletedBy,
		&e.SiteID,
		&pagetreeID,
		&pagetreeType,
		&e.TemplateKey,
		&e.CreatedAt,
		&e.CreatedBy,
	)
	if err != nil {
		return nil, err
	}

	if deletedAt.Valid {
		t := deletedAt.Time
		e.DeletedAt = &t
	}
	e.DeletedBy = deletedBy.String
	if pagetreeID.Valid {
		id := pagetreeID.Int64
		e.PagetreeID = &id
	}
	if pagetreeType.Valid {
		pt := authz.PagetreeType(pagetreeType.String)
		e.PagetreeType = &pt
	}
	return &e, nil
}

func scanEntities(rows *sql.Rows) ([]PathEntity, error) {
	var entities []PathEntity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, *e)
	}
	return entities, rows.Err()
}
