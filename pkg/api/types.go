package api

import (
	"time"

	"github.com/arborcms/arbor/pkg/tree"
)

// Entity is the wire representation of a tree entity. Internal ids are
// exposed for tree addressing; external ids are the stable public handle.
type Entity struct {
	ID           int64      `json:"id"`
	ExternalID   string     `json:"external_id"`
	Kind         string     `json:"kind"`
	Path         string     `json:"path"`
	ResourcePath string     `json:"resource_path"`
	Name         string     `json:"name"`
	DisplayOrder int        `json:"display_order"`
	DeleteState  string     `json:"delete_state"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
	DeletedBy    string     `json:"deleted_by,omitempty"`
	SiteID       int64      `json:"site_id"`
	PagetreeID   *int64     `json:"pagetree_id,omitempty"`
	TemplateKey  string     `json:"template_key,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CreatedBy    string     `json:"created_by,omitempty"`
}

func toEntity(e *tree.PathEntity) Entity {
	return Entity{
		ID:           e.InternalID,
		ExternalID:   e.ExternalID,
		Kind:         string(e.Kind),
		Path:         e.Path,
		ResourcePath: e.ResourcePath(),
		Name:         e.Name,
		DisplayOrder: e.DisplayOrder,
		DeleteState:  string(e.DeleteState),
		DeletedAt:    e.DeletedAt,
		DeletedBy:    e.DeletedBy,
		SiteID:       e.SiteID,
		PagetreeID:   e.PagetreeID,
		TemplateKey:  e.TemplateKey,
		CreatedAt:    e.CreatedAt,
		CreatedBy:    e.CreatedBy,
	}
}

func toEntities(entities []tree.PathEntity) []Entity {
	out := make([]Entity, len(entities))
	for i := range entities {
		out[i] = toEntity(&entities[i])
	}
	return out
}

// Entry is the wire representation of a data folder entry.
type Entry struct {
	ID           int64     `json:"id"`
	ExternalID   string    `json:"external_id"`
	FolderID     int64     `json:"folder_id"`
	Name         string    `json:"name"`
	DisplayOrder int       `json:"display_order"`
	DeleteState  string    `json:"delete_state"`
	TemplateKey  string    `json:"template_key,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	CreatedBy    string    `json:"created_by,omitempty"`
}

func toEntry(e *tree.DataEntry) Entry {
	return Entry{
		ID:           e.InternalID,
		ExternalID:   e.ExternalID,
		FolderID:     e.FolderID,
		Name:         e.Name,
		DisplayOrder: e.DisplayOrder,
		DeleteState:  string(e.DeleteState),
		TemplateKey:  e.TemplateKey,
		CreatedAt:    e.CreatedAt,
		CreatedBy:    e.CreatedBy,
	}
}

// CreateEntityRequest is the create payload. TargetID addresses the parent,
// or the sibling to insert above when Above is set.
type CreateEntityRequest struct {
	TargetID    int64  `json:"target_id"`
	Above       bool   `json:"above"`
	Name        string `json:"name"`
	TemplateKey string `json:"template_key"`
}

// MoveEntitiesRequest moves a batch to a new destination.
type MoveEntitiesRequest struct {
	IDs      []int64 `json:"ids"`
	TargetID int64   `json:"target_id"`
	Above    bool    `json:"above"`
}

// CopyEntitiesRequest copies a batch, optionally with descendants.
type CopyEntitiesRequest struct {
	IDs             []int64 `json:"ids"`
	TargetID        int64   `json:"target_id"`
	Above           bool    `json:"above"`
	WithDescendants bool    `json:"with_descendants"`
}

// DeleteEntitiesRequest soft-deletes a batch; Finalize makes it permanent.
type DeleteEntitiesRequest struct {
	IDs      []int64 `json:"ids"`
	Finalize bool    `json:"finalize"`
}

// UndeleteEntitiesRequest restores a batch of soft-deleted entities.
type UndeleteEntitiesRequest struct {
	IDs                []int64 `json:"ids"`
	IncludeDescendants bool    `json:"include_descendants"`
}

// CreateEntryRequest adds an entry to a data folder.
type CreateEntryRequest struct {
	Name        string `json:"name"`
	TemplateKey string `json:"template_key"`
}
