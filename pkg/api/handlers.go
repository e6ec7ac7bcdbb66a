package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/arborcms/arbor/pkg/authz"
	"github.com/arborcms/arbor/pkg/contextkeys"
	"github.com/arborcms/arbor/pkg/httputil"
	"github.com/arborcms/arbor/pkg/observability"
	"github.com/arborcms/arbor/pkg/storage"
	"github.com/arborcms/arbor/pkg/tree"
)

func (s *Server) findEntities(kind tree.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := filterFromQuery(r)
		if err != nil {
			httputil.WriteBadRequest(w, err.Error())
			return
		}

		entities, err := s.reader.Find(r.Context(), kind, filter)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		httputil.WriteSuccess(w, toEntities(entities))
	}
}

func (s *Server) getEntity(kind tree.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		externalID, ok := httputil.ParsePathStringOrError(w, r, "externalId")
		if !ok {
			return
		}

		e, err := s.reader.GetByExternalID(r.Context(), kind, externalID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		httputil.WriteSuccess(w, toEntity(e))
	}
}

func (s *Server) getPermissions(kind tree.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		externalID, ok := httputil.ParsePathStringOrError(w, r, "externalId")
		if !ok {
			return
		}

		e, err := s.reader.GetByExternalID(r.Context(), kind, externalID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		grants, err := s.reader.Permissions(r.Context(), e)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		httputil.WriteSuccess(w, grants)
	}
}

func (s *Server) createEntity(kind tree.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateEntityRequest
		if !httputil.ParseJSONOrError(w, r, &req) {
			return
		}

		created, err := s.mutator.Create(r.Context(), tree.CreateRequest{
			Kind:        kind,
			TargetID:    req.TargetID,
			Above:       req.Above,
			Name:        req.Name,
			TemplateKey: req.TemplateKey,
			Actor:       contextkeys.GetPrincipalID(r.Context()),
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		httputil.WriteMutationSuccess(w, toEntity(created))
	}
}

func (s *Server) moveEntities(kind tree.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MoveEntitiesRequest
		if !httputil.ParseJSONOrError(w, r, &req) {
			return
		}

		err := s.mutator.Move(r.Context(), tree.MoveRequest{
			Kind:     kind,
			IDs:      req.IDs,
			TargetID: req.TargetID,
			Above:    req.Above,
			Actor:    contextkeys.GetPrincipalID(r.Context()),
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		httputil.WriteMutationSuccess(w, nil)
	}
}

func (s *Server) copyEntities(kind tree.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CopyEntitiesRequest
		if !httputil.ParseJSONOrError(w, r, &req) {
			return
		}

		copies, err := s.mutator.Copy(r.Context(), tree.CopyRequest{
			Kind:            kind,
			IDs:             req.IDs,
			TargetID:        req.TargetID,
			Above:           req.Above,
			WithDescendants: req.WithDescendants,
			Actor:           contextkeys.GetPrincipalID(r.Context()),
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		httputil.WriteMutationSuccess(w, toEntities(copies))
	}
}

func (s *Server) deleteEntities(kind tree.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DeleteEntitiesRequest
		if !httputil.ParseJSONOrError(w, r, &req) {
			return
		}

		err := s.mutator.Delete(r.Context(), tree.DeleteRequest{
			Kind:     kind,
			IDs:      req.IDs,
			Finalize: req.Finalize,
			Actor:    contextkeys.GetPrincipalID(r.Context()),
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		httputil.WriteMutationSuccess(w, nil)
	}
}

func (s *Server) undeleteEntities(kind tree.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UndeleteEntitiesRequest
		if !httputil.ParseJSONOrError(w, r, &req) {
			return
		}

		err := s.mutator.Undelete(r.Context(), tree.UndeleteRequest{
			Kind:               kind,
			IDs:                req.IDs,
			IncludeDescendants: req.IncludeDescendants,
			Actor:              contextkeys.GetPrincipalID(r.Context()),
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		httputil.WriteMutationSuccess(w, nil)
	}
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	externalID, ok := httputil.ParsePathStringOrError(w, r, "externalId")
	if !ok {
		return
	}

	folder, err := s.reader.GetByExternalID(r.Context(), tree.KindDataFolder, externalID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	entries, err := s.reader.EntriesOf(r.Context(), folder.InternalID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]Entry, len(entries))
	for i := range entries {
		out[i] = toEntry(&entries[i])
	}
	httputil.WriteSuccess(w, out)
}

func (s *Server) createEntry(w http.ResponseWriter, r *http.Request) {
	externalID, ok := httputil.ParsePathStringOrError(w, r, "externalId")
	if !ok {
		return
	}

	folder, err := s.reader.GetByExternalID(r.Context(), tree.KindDataFolder, externalID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req CreateEntryRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	entry, err := s.mutator.CreateEntry(r.Context(), tree.CreateEntryRequest{
		FolderID:    folder.InternalID,
		Name:        req.Name,
		TemplateKey: req.TemplateKey,
		Actor:       contextkeys.GetPrincipalID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteMutationSuccess(w, toEntry(entry))
}

// writeError maps domain errors onto the response contract. Validation is a
// business outcome, not a failure: it answers 200 with success=false.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if ve, ok := tree.AsValidation(err); ok {
		httputil.WriteMutationRejected(w, ve.Messages)
		return
	}

	switch {
	case errors.Is(err, authz.ErrUnauthorized):
		httputil.WriteForbidden(w, "permission denied")
	case errors.Is(err, authz.ErrNoAuthorizer):
		httputil.WriteUnauthorized(w, "no principal resolved")
	case errors.Is(err, tree.ErrNotFound):
		httputil.WriteNotFoundError(w, "entity not found")
	case errors.Is(err, tree.ErrCycle),
		errors.Is(err, tree.ErrCrossPagetree),
		errors.Is(err, tree.ErrTemplateIncompatible):
		httputil.WriteConflict(w, err.Error())
	case errors.Is(err, storage.ErrTransientConflict):
		s.requestLog(r).WithError(err).Error("mutation failed after retry")
		httputil.WriteInternalError(w, errors.New("temporary conflict, please retry"))
	default:
		s.requestLog(r).WithError(err).WithField("path", r.URL.Path).Error("request failed")
		httputil.WriteInternalError(w, errors.New("internal error"))
	}
}

// requestLog prefers the request-scoped logger, which carries the request id.
func (s *Server) requestLog(r *http.Request) *observability.Logger {
	if log, ok := observability.LoggerFromContext(r.Context()); ok {
		return log
	}
	return s.log
}

func filterFromQuery(r *http.Request) (tree.Filter, error) {
	q := r.URL.Query()
	var filter tree.Filter

	filter.Path = q.Get("path")
	filter.BeneathPath = q.Get("beneath")
	filter.Name = q.Get("name")

	if v := q.Get("parent"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, errors.New("invalid parent id")
		}
		filter.ChildrenOf = id
	}
	if v := q.Get("site"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, errors.New("invalid site id")
		}
		filter.SiteID = &id
	}
	if v := q.Get("pagetree"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, errors.New("invalid pagetree id")
		}
		filter.PagetreeID = &id
	}
	if v := q.Get("states"); v != "" {
		for _, raw := range strings.Split(v, ",") {
			switch state := tree.DeleteState(strings.TrimSpace(raw)); state {
			case tree.NotDeleted, tree.MarkedForDelete, tree.Deleted:
				filter.DeleteStates = append(filter.DeleteStates, state)
			default:
				return filter, errors.New("invalid delete state: " + raw)
			}
		}
	}
	includeOrphaned, err := httputil.ParseQueryBool(r, "includeOrphaned", false)
	if err != nil {
		return filter, errors.New("invalid includeOrphaned flag")
	}
	filter.IncludeOrphaned = includeOrphaned

	return filter, nil
}
