// Package filterindex defines the per-filter watermark store: the
// high-water metadataModified value a Syncer.Job has observed, used to
// scope the next run's change query.
package filterindex

import (
	"context"

	"github.com/catalogsync/replicator/internal/catalog"
)

// Store is the storage contract the Syncer depends on for watermarks.
//
// GetOrCreate never fails for a valid filter: a missing index is treated
// as "no successful observation yet" and a fresh, empty one is both
// returned and persisted. Save durably persists the current
// ModifiedSince; implementations must reject reads of entries whose
// on-disk version predates what this package can interpret (see
// SPEC_FULL.md §6 / spec.md §6 external interface contract) and must
// stamp the current version on every write.
type Store interface {
	GetOrCreate(ctx context.Context, filter *catalog.Filter) (*catalog.FilterIndex, error)
	Save(ctx context.Context, index *catalog.FilterIndex) error
}
