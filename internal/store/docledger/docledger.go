// Package docledger implements ledger.Ledger on top of gocloud.dev/docstore,
// the teacher's own document-store abstraction (pkg/backend/filestate uses
// the sibling gocloud.dev/blob package the same way, to keep a storage
// backend swappable behind a single Go interface). Any docstore driver —
// in-memory, DynamoDB, Firestore, MongoDB — works unmodified.
package docledger

import (
	"context"
	"io"
	"sort"

	"gocloud.dev/docstore"

	"github.com/pkg/errors"

	"github.com/catalogsync/replicator/internal/catalog"
)

// document is the docstore wire shape for a ReplicationItem. Field names
// match spec.md §6 exactly except for the docstore partition/sort key
// pair (FilterID, ID), which docstore requires for querying.
type document struct {
	ID              string `docstore:"id"`
	FilterID        string `docstore:"filterId"`
	MetadataID      string `docstore:"metadataId"`
	Source          string `docstore:"source"`
	Destination     string `docstore:"destination"`
	Action          string `docstore:"action"`
	Status          string `docstore:"status"`
	StartTimeUnixMS int64  `docstore:"startTime"`
	DoneTimeUnixMS  int64  `docstore:"doneTime"`
	MetadataModifiedUnixMS int64 `docstore:"metadataModified"`
	ResourceModifiedUnixMS int64 `docstore:"resourceModified"`
	MetadataSize    int64  `docstore:"metadataSize"`
	ResourceSize    int64  `docstore:"resourceSize"`
}

// Ledger is a docstore-backed ledger.Ledger.
type Ledger struct {
	coll *docstore.Collection
}

// New wraps an already-opened docstore.Collection. The collection's key
// field must be "id" (document.ID), and items store docstore:"id" values
// synthesized by catalog.NewReplicationItemID.
func New(coll *docstore.Collection) *Ledger {
	return &Ledger{coll: coll}
}

func (l *Ledger) GetLatest(ctx context.Context, filterID, metadataID string) *catalog.ReplicationItem {
	iter := l.coll.Query().
		Where("filterId", "=", filterID).
		Where("metadataId", "=", metadataID).
		Get(ctx)
	defer iter.Stop()

	var latest *document
	for {
		var doc document
		err := iter.Next(ctx, &doc)
		if err != nil {
			break
		}
		if latest == nil || doc.DoneTimeUnixMS > latest.DoneTimeUnixMS {
			d := doc
			latest = &d
		}
	}
	if latest == nil {
		return nil
	}
	return fromDocument(latest)
}

func (l *Ledger) GetFailureList(ctx context.Context, filterID string) ([]string, error) {
	iter := l.coll.Query().Where("filterId", "=", filterID).Get(ctx)
	defer iter.Stop()

	latestByID := make(map[string]document)
	for {
		var doc document
		err := iter.Next(ctx, &doc)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "querying ledger for failure list")
		}
		cur, ok := latestByID[doc.MetadataID]
		if !ok || doc.DoneTimeUnixMS > cur.DoneTimeUnixMS {
			latestByID[doc.MetadataID] = doc
		}
	}

	var failed []string
	for id, doc := range latestByID {
		if doc.Status != string(catalog.StatusSuccess) {
			failed = append(failed, id)
		}
	}
	sort.Strings(failed)
	return failed, nil
}

func (l *Ledger) Save(ctx context.Context, item *catalog.ReplicationItem) error {
	doc := toDocument(item)
	if err := l.coll.Put(ctx, doc); err != nil {
		return errors.Wrap(err, "saving ledger entry")
	}
	return nil
}

func (l *Ledger) GetAllForFilter(ctx context.Context, filterID string, startIndex, pageSize int) ([]*catalog.ReplicationItem, error) {
	iter := l.coll.Query().Where("filterId", "=", filterID).Get(ctx)
	defer iter.Stop()

	var all []*catalog.ReplicationItem
	for {
		var doc document
		err := iter.Next(ctx, &doc)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "listing ledger entries")
		}
		all = append(all, fromDocument(&doc))
	}

	sort.Slice(all, func(i, j int) bool { return all[i].DoneTime.Before(all[j].DoneTime) })

	if startIndex >= len(all) {
		return nil, nil
	}
	end := startIndex + pageSize
	if end > len(all) || pageSize <= 0 {
		end = len(all)
	}
	return all[startIndex:end], nil
}

func (l *Ledger) RemoveAllForFilter(ctx context.Context, filterID string) error {
	iter := l.coll.Query().Where("filterId", "=", filterID).Get(ctx)
	defer iter.Stop()

	actions := l.coll.Actions()
	for {
		var doc document
		err := iter.Next(ctx, &doc)
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "listing ledger entries for removal")
		}
		actions.Delete(&doc)
	}
	if err := actions.Do(ctx); err != nil {
		return errors.Wrap(err, "removing ledger entries")
	}
	return nil
}
