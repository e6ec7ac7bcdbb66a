package tree

import (
	"context"

	"github.com/arborcms/arbor/pkg/authz"
	"github.com/arborcms/arbor/pkg/observability"
)

// Reader is the permission-aware query surface. Every result is filtered
// through the request's authorization service; entities the principal may
// not view behave as if they did not exist.
type Reader struct {
	store Store
	cache *EntityCache
	log   *observability.Logger
}

// NewReader wires the reader. cache may be nil.
func NewReader(store Store, cache *EntityCache, log *observability.Logger) *Reader {
	return &Reader{store: store, cache: cache, log: log}
}

// Find lists entities matching the filter, dropping anything the principal
// may not view. MayView widens plain view with container browsability, so
// ancestors of a permitted subtree stay listed.
func (r *Reader) Find(ctx context.Context, kind Kind, filter Filter) ([]PathEntity, error) {
	svc, err := authz.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	entities, err := r.store.Find(ctx, kind, filter)
	if err != nil {
		return nil, err
	}

	visible := make([]PathEntity, 0, len(entities))
	for _, e := range entities {
		ok, err := svc.MayView(ctx, e.Resource())
		if err != nil {
			return nil, err
		}
		if ok {
			visible = append(visible, e)
		}
	}
	return visible, nil
}

// GetByExternalID loads one entity by its external id, reading through the
// cache when one is configured. Invisible entities return ErrNotFound.
func (r *Reader) GetByExternalID(ctx context.Context, kind Kind, externalID string) (*PathEntity, error) {
	svc, err := authz.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	e, err := r.lookup(ctx, kind, externalID)
	if err != nil {
		return nil, err
	}

	ok, err := svc.MayView(ctx, e.Resource())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// GetByInternalID loads one entity by internal id with the same visibility
// rules as GetByExternalID.
func (r *Reader) GetByInternalID(ctx context.Context, kind Kind, id int64) (*PathEntity, error) {
	svc, err := authz.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	e, err := r.store.GetByInternalID(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	ok, err := svc.MayView(ctx, e.Resource())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// Permissions reports the principal's grants on one entity, one boolean per
// grant in the kind's vocabulary, for UI affordances.
func (r *Reader) Permissions(ctx context.Context, e *PathEntity) (map[string]bool, error) {
	svc, err := authz.FromContext(ctx)
	if err != nil {
		return nil, err
	}

	res := e.Resource()
	out := make(map[string]bool)
	for _, grant := range authz.GrantsForKind(res.Kind) {
		ok, err := svc.HavePermission(ctx, res, grant)
		if err != nil {
			return nil, err
		}
		out[grant] = ok
	}
	return out, nil
}

// EntriesOf lists a data folder's ordered entries, gated on viewing the
// folder itself.
func (r *Reader) EntriesOf(ctx context.Context, folderID int64) ([]DataEntry, error) {
	folder, err := r.GetByInternalID(ctx, KindDataFolder, folderID)
	if err != nil {
		return nil, err
	}
	return r.store.EntriesOf(ctx, folder.InternalID)
}

func (r *Reader) lookup(ctx context.Context, kind Kind, externalID string) (*PathEntity, error) {
	if r.cache != nil {
		if e, err := r.cache.Get(ctx, kind, externalID); err == nil && e != nil {
			return e, nil
		} else if err != nil {
			r.log.WithError(err).Warn("entity cache read failed, falling back to store")
		}
	}

	e, err := r.store.GetByExternalID(ctx, kind, externalID)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		if err := r.cache.Set(ctx, e); err != nil {
			r.log.WithError(err).Warn("entity cache write failed")
		}
	}
	return e, nil
}
