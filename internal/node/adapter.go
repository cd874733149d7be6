// Package node defines the NodeAdapter abstraction: the capability set the
// Syncer needs from a source or destination catalog endpoint. Concrete
// transports (HTTP, gRPC) live in sibling packages; the core depends only
// on this interface, per spec.md §4.3 and §9 ("no need for a class
// hierarchy").
package node

import (
	"context"
	"io"
	"time"

	"github.com/catalogsync/replicator/internal/catalog"
)

// QueryRequest describes a change-set request to a source adapter.
type QueryRequest struct {
	// Query is the filter's opaque query expression.
	Query string
	// ExcludeAt lists destination system names whose existing records
	// should be excluded from the result, except for ids in FailedIDs.
	ExcludeAt []string
	// FailedIDs forces re-inclusion of these record ids regardless of
	// ExcludeAt or ModifiedAfter.
	FailedIDs []string
	// ModifiedAfter restricts results to metadataModified > this value,
	// when non-nil.
	ModifiedAfter *time.Time
}

// MetadataSequence streams Metadata records one at a time. Implementations
// must support exactly one pass: Next returns (nil, false, nil) at
// exhaustion and the sequence is not meant to be restarted. The core pulls
// one record at a time and holds no unbounded in-memory buffer over the
// result (spec.md §5).
type MetadataSequence interface {
	// Next returns the next record, or ok=false when exhausted. An error
	// aborts iteration.
	Next(ctx context.Context) (m *catalog.Metadata, ok bool, err error)
	// Close releases any resources (open connections, cursors) held by
	// the sequence.
	Close() error
}

// ResourceResponse streams a binary resource payload from a source.
type ResourceResponse struct {
	Body io.ReadCloser
	Size int64
}

// ReadResourceRequest identifies the resource to stream.
type ReadResourceRequest struct {
	Metadata *catalog.Metadata
}

// Adapter is the capability set a Syncer.Job needs from one catalog
// endpoint, whether it is playing the source or destination role in a
// given Job. All operations may fail for any transport or remote-side
// reason; the Job's failure classifier interprets the error alongside
// IsAvailable.
type Adapter interface {
	// SystemName is a stable identifier used for lineage and log context.
	SystemName() string

	// IsAvailable is a cheap liveness probe, used only to classify
	// failures as CONNECTION_LOST vs FAILURE.
	IsAvailable(ctx context.Context) bool

	// Query requests records matching req, as source. The sequence is
	// consumed once and may be lazily streamed.
	Query(ctx context.Context, req QueryRequest) (MetadataSequence, error)

	// Exists reports whether this (destination) adapter already holds a
	// record with the same id as metadata.
	Exists(ctx context.Context, metadata *catalog.Metadata) (bool, error)

	// ReadResource streams the binary payload for a record, as source.
	ReadResource(ctx context.Context, req ReadResourceRequest) (*ResourceResponse, error)

	// CreateRequest / UpdateRequest / DeleteRequest are metadata-only
	// operations against a destination; they return false (not an error)
	// on an ordinary, recorded failure.
	CreateRequest(ctx context.Context, metadata *catalog.Metadata) (bool, error)
	UpdateRequest(ctx context.Context, metadata *catalog.Metadata) (bool, error)
	DeleteRequest(ctx context.Context, metadata *catalog.Metadata) (bool, error)

	// CreateResource / UpdateResource are metadata+binary operations
	// against a destination.
	CreateResource(ctx context.Context, metadata *catalog.Metadata, resource *ResourceResponse) (bool, error)
	UpdateResource(ctx context.Context, metadata *catalog.Metadata, resource *ResourceResponse) (bool, error)
}
