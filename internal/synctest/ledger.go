// Package synctest provides in-memory fakes for Ledger, FilterIndexStore,
// and NodeAdapter, in the spirit of the teacher's deploytest package (which
// supplies fake language hosts and providers to drive engine tests without
// a real plugin process). The syncer package's tests drive Jobs with
// these fakes.
package synctest

import (
	"context"
	"sort"
	"sync"

	"github.com/catalogsync/replicator/internal/catalog"
)

// MemoryLedger is a concurrency-safe, in-process Ledger.
type MemoryLedger struct {
	mu    sync.Mutex
	items map[string][]*catalog.ReplicationItem // keyed by filterID
}

// NewMemoryLedger constructs an empty MemoryLedger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{items: make(map[string][]*catalog.ReplicationItem)}
}

func (l *MemoryLedger) GetLatest(_ context.Context, filterID, metadataID string) *catalog.ReplicationItem {
	l.mu.Lock()
	defer l.mu.Unlock()

	var latest *catalog.ReplicationItem
	for _, item := range l.items[filterID] {
		if item.MetadataID != metadataID {
			continue
		}
		if latest == nil || item.DoneTime.After(latest.DoneTime) {
			latest = item
		}
	}
	return latest
}

func (l *MemoryLedger) GetFailureList(_ context.Context, filterID string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	latestByID := make(map[string]*catalog.ReplicationItem)
	for _, item := range l.items[filterID] {
		cur := latestByID[item.MetadataID]
		if cur == nil || item.DoneTime.After(cur.DoneTime) {
			latestByID[item.MetadataID] = item
		}
	}

	var failed []string
	for id, item := range latestByID {
		if item.Status != catalog.StatusSuccess {
			failed = append(failed, id)
		}
	}
	sort.Strings(failed)
	return failed, nil
}

func (l *MemoryLedger) Save(_ context.Context, item *catalog.ReplicationItem) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cp := *item
	l.items[item.FilterID] = append(l.items[item.FilterID], &cp)
	return nil
}

func (l *MemoryLedger) GetAllForFilter(_ context.Context, filterID string, startIndex, pageSize int) ([]*catalog.ReplicationItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	all := append([]*catalog.ReplicationItem(nil), l.items[filterID]...)
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

func (l *MemoryLedger) RemoveAllForFilter(_ context.Context, filterID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.items, filterID)
	return nil
}

// All returns every item saved for filterID, for test assertions.
func (l *MemoryLedger) All(filterID string) []*catalog.ReplicationItem {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]*catalog.ReplicationItem(nil), l.items[filterID]...)
}
