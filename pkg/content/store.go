// Package content declares the collaborators the tree service talks to: the
// versioned content store that owns entity payloads, and the template
// registry that says which templates may nest where. The content store is
// consumed as an interface and implemented outside this service; the
// registry ships with a SQL implementation plus an LRU-caching wrapper.
package content

import (
	"context"
	"time"
)

// Version is a snapshot of a content record at one point in its history.
type Version struct {
	Payload   []byte
	Version   int
	Author    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GetOptions selects which snapshot of a record to read. Zero value means
// the latest version.
type GetOptions struct {
	Version int
	Tag     string
}

// UpdateOptions carries the write metadata for an update.
type UpdateOptions struct {
	Author  string
	Version int
	Comment string
}

// Store is the versioned content store. Content ids are opaque to this
// service; they are stored on tree entities and passed through unchanged.
type Store interface {
	Create(ctx context.Context, kind string, payload []byte, indexKeys []string, author string) (string, error)
	Get(ctx context.Context, contentID string, opts GetOptions) (*Version, error)
	Update(ctx context.Context, contentID string, payload []byte, indexKeys []string, opts UpdateOptions) error
	Tag(ctx context.Context, contentID, tagName string, version int, author string) error
	Restore(ctx context.Context, contentID string, version int) error
}
