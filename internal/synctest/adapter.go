package synctest

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/catalogsync/replicator/internal/catalog"
	"github.com/catalogsync/replicator/internal/node"
)

// MemoryAdapter is an in-process NodeAdapter fake. It holds a flat set of
// records keyed by id, playing either the source or destination role in a
// test depending on how it's wired into a Job. Grounded on the teacher's
// deploytest fake providers, which give engine tests a scriptable provider
// without a real plugin process.
type MemoryAdapter struct {
	Name      string
	Available bool

	mu      sync.Mutex
	records map[string]*catalog.Metadata
	bodies  map[string]string

	// Source-role scripting: QueueRecords seeds what Query streams back.
	queued []*catalog.Metadata

	// Force* let tests script adapter-level failures.
	ForceCreateErr error
	ForceUpdateErr error
	ForceDeleteErr error
	ForceExistsErr error
	ForceReadErr   error

	// Call counters, for tests asserting which method was actually used.
	UpdateRequestCalls  int
	UpdateResourceCalls int
}

// NewMemoryAdapter constructs an available MemoryAdapter named name.
func NewMemoryAdapter(name string) *MemoryAdapter {
	return &MemoryAdapter{
		Name:      name,
		Available: true,
		records:   make(map[string]*catalog.Metadata),
		bodies:    make(map[string]string),
	}
}

func (a *MemoryAdapter) SystemName() string { return a.Name }

func (a *MemoryAdapter) IsAvailable(context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Available
}

// QueueRecords seeds the sequence Query will stream, in order, for this
// adapter acting as a source.
func (a *MemoryAdapter) QueueRecords(records ...*catalog.Metadata) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queued = append(a.queued, records...)
}

// SetBody sets the resource payload returned by ReadResource for id.
func (a *MemoryAdapter) SetBody(id, body string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bodies[id] = body
}

func (a *MemoryAdapter) Query(_ context.Context, req node.QueryRequest) (node.MetadataSequence, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	items := make([]*catalog.Metadata, len(a.queued))
	copy(items, a.queued)
	return &memorySequence{items: items}, nil
}

func (a *MemoryAdapter) Exists(_ context.Context, metadata *catalog.Metadata) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ForceExistsErr != nil {
		return false, a.ForceExistsErr
	}
	_, ok := a.records[metadata.ID]
	return ok, nil
}

func (a *MemoryAdapter) ReadResource(_ context.Context, req node.ReadResourceRequest) (*node.ResourceResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ForceReadErr != nil {
		return nil, a.ForceReadErr
	}
	body := a.bodies[req.Metadata.ID]
	return &node.ResourceResponse{
		Body: io.NopCloser(strings.NewReader(body)),
		Size: int64(len(body)),
	}, nil
}

func (a *MemoryAdapter) CreateRequest(_ context.Context, metadata *catalog.Metadata) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ForceCreateErr != nil {
		return false, a.ForceCreateErr
	}
	a.records[metadata.ID] = cloneMetadata(metadata)
	return true, nil
}

func (a *MemoryAdapter) UpdateRequest(_ context.Context, metadata *catalog.Metadata) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.UpdateRequestCalls++
	return a.storeLocked(a.ForceUpdateErr, metadata)
}

func (a *MemoryAdapter) DeleteRequest(_ context.Context, metadata *catalog.Metadata) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ForceDeleteErr != nil {
		return false, a.ForceDeleteErr
	}
	delete(a.records, metadata.ID)
	return true, nil
}

func (a *MemoryAdapter) CreateResource(ctx context.Context, metadata *catalog.Metadata, resource *node.ResourceResponse) (bool, error) {
	return a.CreateRequest(ctx, metadata)
}

func (a *MemoryAdapter) UpdateResource(_ context.Context, metadata *catalog.Metadata, resource *node.ResourceResponse) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.UpdateResourceCalls++
	return a.storeLocked(a.ForceUpdateErr, metadata)
}

// storeLocked writes metadata into records, assuming mu is already held.
func (a *MemoryAdapter) storeLocked(forceErr error, metadata *catalog.Metadata) (bool, error) {
	if forceErr != nil {
		return false, forceErr
	}
	a.records[metadata.ID] = cloneMetadata(metadata)
	return true, nil
}

// Has reports whether id is present, for test assertions.
func (a *MemoryAdapter) Has(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.records[id]
	return ok
}

func cloneMetadata(m *catalog.Metadata) *catalog.Metadata {
	cp := *m
	cp.Tags = make(map[string]struct{}, len(m.Tags))
	for t := range m.Tags {
		cp.Tags[t] = struct{}{}
	}
	cp.Lineage = append([]string(nil), m.Lineage...)
	return &cp
}

type memorySequence struct {
	items []*catalog.Metadata
	pos   int
}

func (s *memorySequence) Next(context.Context) (*catalog.Metadata, bool, error) {
	if s.pos >= len(s.items) {
		return nil, false, nil
	}
	m := s.items[s.pos]
	s.pos++
	return m, true, nil
}

func (s *memorySequence) Close() error { return nil }
