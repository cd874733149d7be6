// Package docindex implements filterindex.Store on gocloud.dev/docstore,
// honoring the version compatibility rule of spec.md §6: entries with a
// version older than MinimumVersion are rejected as unsupported, entries
// newer than CurrentVersion are accepted (forward-compatible), and every
// write stamps CurrentVersion.
package docindex

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gocloud.dev/docstore"
	"gocloud.dev/gcerrors"

	"github.com/catalogsync/replicator/internal/catalog"
)

// MinimumVersion is the oldest on-disk schema version this package can
// interpret. CurrentVersion is stamped on every write.
const (
	MinimumVersion = 1
	CurrentVersion = 1
)

// ErrUnsupportedVersion is returned by GetOrCreate when a stored index's
// version predates MinimumVersion.
var ErrUnsupportedVersion = errors.New("filter index version is older than this package supports")

type document struct {
	ID              string `docstore:"id"`
	ModifiedSinceMS int64  `docstore:"modifiedSince"`
	HasModified     bool   `docstore:"hasModifiedSince"`
	Version         int    `docstore:"version"`
}

// Store is a docstore-backed filterindex.Store.
type Store struct {
	coll *docstore.Collection
}

// New wraps an already-opened docstore.Collection whose key field is "id"
// (the filterId).
func New(coll *docstore.Collection) *Store {
	return &Store{coll: coll}
}

func (s *Store) GetOrCreate(ctx context.Context, filter *catalog.Filter) (*catalog.FilterIndex, error) {
	doc := document{ID: filter.ID}
	err := s.coll.Get(ctx, &doc)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			fresh := &catalog.FilterIndex{FilterID: filter.ID, Version: CurrentVersion}
			if err := s.Save(ctx, fresh); err != nil {
				return nil, err
			}
			return fresh, nil
		}
		return nil, errors.Wrap(err, "reading filter index")
	}

	if doc.Version < MinimumVersion {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "filter %q has version %d", filter.ID, doc.Version)
	}

	idx := &catalog.FilterIndex{FilterID: filter.ID, Version: doc.Version}
	if doc.HasModified {
		t := time.UnixMilli(doc.ModifiedSinceMS).UTC()
		idx.ModifiedSince = &t
	}
	return idx, nil
}

func (s *Store) Save(ctx context.Context, index *catalog.FilterIndex) error {
	doc := document{
		ID:      index.FilterID,
		Version: CurrentVersion,
	}
	if index.ModifiedSince != nil {
		doc.HasModified = true
		doc.ModifiedSinceMS = index.ModifiedSince.UnixMilli()
	}
	if err := s.coll.Put(ctx, &doc); err != nil {
		return errors.Wrap(err, "saving filter index")
	}
	return nil
}
