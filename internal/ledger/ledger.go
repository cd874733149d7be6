// Package ledger defines the replication item ledger: the durable,
// append-only history of per-(filter, record) transfer attempts that the
// Syncer consults to decide CREATE/UPDATE/DELETE and to build the failure
// (retry) list.
package ledger

import (
	"context"

	"github.com/catalogsync/replicator/internal/catalog"
)

// Ledger is the storage contract the Syncer depends on. Implementations
// must be safe for concurrent use by multiple Jobs across different
// filters (see spec.md §5): writes are serialized internally.
//
// Lookup failures (storage errors) are swallowed by GetLatest and surfaced
// as a nil entry rather than an error, so the Job treats "unknown history"
// uniformly whether the record is genuinely new or the store hiccuped —
// this mirrors spec.md §4.1. Save, GetFailureList, GetAllForFilter, and
// RemoveAllForFilter do propagate errors: those are used outside the hot
// per-record path, or (for Save) the one place a failure must be visible
// to the Job, which counts and logs it.
type Ledger interface {
	// GetLatest returns the entry with the greatest DoneTime for
	// (filterID, metadataID), or nil if none exists or the lookup failed.
	GetLatest(ctx context.Context, filterID, metadataID string) *catalog.ReplicationItem

	// GetFailureList returns the metadata ids whose latest entry for this
	// filter has a status other than SUCCESS. No duplicates; order is
	// unspecified.
	GetFailureList(ctx context.Context, filterID string) ([]string, error)

	// Save durably appends item. Must be durable before it returns.
	Save(ctx context.Context, item *catalog.ReplicationItem) error

	// GetAllForFilter returns a page of entries for filterID, ordered by
	// DoneTime ascending, for operator-facing listings.
	GetAllForFilter(ctx context.Context, filterID string, startIndex, pageSize int) ([]*catalog.ReplicationItem, error)

	// RemoveAllForFilter purges every entry for filterID. Used when a
	// filter is deleted; invisible to the Syncer's own contract.
	RemoveAllForFilter(ctx context.Context, filterID string) error
}
