package syncer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogsync/replicator/internal/catalog"
	"github.com/catalogsync/replicator/internal/synctest"
	"github.com/catalogsync/replicator/internal/syncer"
)

func ts(seconds int64) time.Time {
	return time.Unix(seconds, 0).UTC()
}

func newFixture(t *testing.T) (*synctest.MemoryAdapter, *synctest.MemoryAdapter, *synctest.MemoryLedger, *synctest.MemoryFilterIndexStore, *catalog.Filter) {
	t.Helper()
	source := synctest.NewMemoryAdapter("source")
	destination := synctest.NewMemoryAdapter("destination")
	led := synctest.NewMemoryLedger()
	idx := synctest.NewMemoryFilterIndexStore()
	filter := &catalog.Filter{ID: "F1", Name: "f1", Query: "*"}
	return source, destination, led, idx, filter
}

// S1 — first-run create, no resource.
func TestFirstRunCreateNoResource(t *testing.T) {
	source, destination, led, idx, filter := newFixture(t)
	source.QueueRecords(&catalog.Metadata{ID: "r1", MetadataModified: ts(100)})

	job := syncer.New(source, destination, filter, led, idx)
	require.NoError(t, job.Sync(context.Background()))

	items := led.All(filter.ID)
	require.Len(t, items, 1)
	assert.Equal(t, catalog.ActionCreate, items[0].Action)
	assert.Equal(t, catalog.StatusSuccess, items[0].Status)
	assert.True(t, destination.Has("r1"))

	saved := idx.Get(filter.ID)
	require.NotNil(t, saved)
	require.NotNil(t, saved.ModifiedSince)
	assert.Equal(t, ts(100), *saved.ModifiedSince)
}

// S2 — update skipped: unchanged timestamps, prior SUCCESS, destination
// already holds the record.
func TestUpdateSkippedWhenUnchanged(t *testing.T) {
	source, destination, led, idx, filter := newFixture(t)

	existing := &catalog.Metadata{ID: "r1", MetadataModified: ts(100)}
	_, err := destination.CreateRequest(context.Background(), existing)
	require.NoError(t, err)
	require.NoError(t, led.Save(context.Background(), &catalog.ReplicationItem{
		MetadataID: "r1", FilterID: filter.ID, Action: catalog.ActionCreate,
		Status: catalog.StatusSuccess, StartTime: ts(100), DoneTime: ts(100),
		MetadataModified: ts(100),
	}))
	require.NoError(t, idx.Save(context.Background(), &catalog.FilterIndex{FilterID: filter.ID, ModifiedSince: timePtr(ts(100))}))

	source.QueueRecords(&catalog.Metadata{ID: "r1", MetadataModified: ts(100)})

	job := syncer.New(source, destination, filter, led, idx)
	require.NoError(t, job.Sync(context.Background()))

	items := led.All(filter.ID)
	assert.Len(t, items, 1, "no new ledger entry should be written")
	assert.Equal(t, 1, job.Stats.UpdatesSkipped)

	saved := idx.Get(filter.ID)
	require.NotNil(t, saved.ModifiedSince)
	assert.Equal(t, ts(100), *saved.ModifiedSince)
}

// S3 — retry after failure: prior status FAILURE forces both update
// tracks regardless of timestamps.
func TestRetryAfterFailure(t *testing.T) {
	source, destination, led, idx, filter := newFixture(t)

	seed := &catalog.Metadata{ID: "r1", MetadataModified: ts(100)}
	_, err := destination.CreateRequest(context.Background(), seed)
	require.NoError(t, err)
	require.NoError(t, led.Save(context.Background(), &catalog.ReplicationItem{
		MetadataID: "r1", FilterID: filter.ID, Action: catalog.ActionUpdate,
		Status: catalog.StatusFailure, StartTime: ts(90), DoneTime: ts(90),
		MetadataModified: ts(100),
	}))

	source.QueueRecords(&catalog.Metadata{ID: "r1", MetadataModified: ts(100)})

	job := syncer.New(source, destination, filter, led, idx)
	require.NoError(t, job.Sync(context.Background()))

	items := led.All(filter.ID)
	require.Len(t, items, 2)
	last := items[len(items)-1]
	assert.Equal(t, catalog.ActionUpdate, last.Action)
	assert.Equal(t, catalog.StatusSuccess, last.Status)
}

// S4 — connection loss: destination create fails and reports unavailable.
func TestConnectionLoss(t *testing.T) {
	source, destination, led, idx, filter := newFixture(t)
	destination.ForceCreateErr = assertErr{"boom"}
	destination.Available = false

	source.QueueRecords(&catalog.Metadata{ID: "r2", MetadataModified: ts(200)})

	job := syncer.New(source, destination, filter, led, idx)
	require.NoError(t, job.Sync(context.Background()))

	items := led.All(filter.ID)
	require.Len(t, items, 1)
	assert.Equal(t, catalog.StatusConnectionLost, items[0].Status)

	failureList, err := led.GetFailureList(context.Background(), filter.ID)
	require.NoError(t, err)
	assert.Contains(t, failureList, "r2")

	saved := idx.Get(filter.ID)
	require.NotNil(t, saved.ModifiedSince)
	assert.Equal(t, ts(200), *saved.ModifiedSince, "watermark advances despite failure")
}

// S5 — delete without history is ignored (treated as CREATE).
func TestDeleteWithoutHistoryBecomesCreate(t *testing.T) {
	source, destination, led, idx, filter := newFixture(t)
	source.QueueRecords(&catalog.Metadata{ID: "r3", MetadataModified: ts(50), IsDeleted: true})

	job := syncer.New(source, destination, filter, led, idx)
	require.NoError(t, job.Sync(context.Background()))

	items := led.All(filter.ID)
	require.Len(t, items, 1)
	assert.Equal(t, catalog.ActionCreate, items[0].Action)
}

// S6 — resource update supersedes metadata update.
func TestResourceUpdateSupersedesMetadataUpdate(t *testing.T) {
	source, destination, led, idx, filter := newFixture(t)

	seed := &catalog.Metadata{ID: "r1", MetadataModified: ts(100), ResourceURI: "blob://r1", ResourceModified: ts(100)}
	_, err := destination.CreateRequest(context.Background(), seed)
	require.NoError(t, err)
	require.NoError(t, led.Save(context.Background(), &catalog.ReplicationItem{
		MetadataID: "r1", FilterID: filter.ID, Action: catalog.ActionCreate,
		Status: catalog.StatusSuccess, StartTime: ts(90), DoneTime: ts(90),
		MetadataModified: ts(100), ResourceModified: ts(100),
	}))

	source.SetBody("r1", "updated-body")
	source.QueueRecords(&catalog.Metadata{
		ID: "r1", MetadataModified: ts(150), ResourceURI: "blob://r1", ResourceModified: ts(150),
	})

	job := syncer.New(source, destination, filter, led, idx)
	require.NoError(t, job.Sync(context.Background()))

	items := led.All(filter.ID)
	require.Len(t, items, 2)
	last := items[len(items)-1]
	assert.Equal(t, catalog.ActionUpdate, last.Action)
	assert.Equal(t, catalog.StatusSuccess, last.Status)
	assert.Equal(t, 1, job.Stats.Updated)
	assert.Equal(t, 1, destination.UpdateResourceCalls)
	assert.Equal(t, 0, destination.UpdateRequestCalls, "resource update must subsume the metadata-only update")
}

// Observer fan-out is exhaustive and ordered.
func TestObserverFanOut(t *testing.T) {
	source, destination, led, idx, filter := newFixture(t)
	source.QueueRecords(
		&catalog.Metadata{ID: "r1", MetadataModified: ts(100)},
		&catalog.Metadata{ID: "r2", MetadataModified: ts(101)},
	)

	var obsA, obsB recordingObserver
	job := syncer.New(source, destination, filter, led, idx, &obsA, &obsB)
	require.NoError(t, job.Sync(context.Background()))

	require.Len(t, obsA.ids, 2)
	require.Len(t, obsB.ids, 2)
	assert.Equal(t, []string{"r1", "r2"}, obsA.ids)
	assert.Equal(t, obsA.ids, obsB.ids)
}

// Idempotence: running the same Job twice over an unchanged source
// produces no new ledger entries on the second run.
func TestIdempotentRerun(t *testing.T) {
	source, destination, led, idx, filter := newFixture(t)
	record := &catalog.Metadata{ID: "r1", MetadataModified: ts(100)}
	source.QueueRecords(record)

	job := syncer.New(source, destination, filter, led, idx)
	require.NoError(t, job.Sync(context.Background()))
	require.Len(t, led.All(filter.ID), 1)

	source2 := synctest.NewMemoryAdapter("source")
	source2.QueueRecords(&catalog.Metadata{ID: "r1", MetadataModified: ts(100)})
	job2 := syncer.New(source2, destination, filter, led, idx)
	require.NoError(t, job2.Sync(context.Background()))

	assert.Len(t, led.All(filter.ID), 1, "second run must not add a non-null ledger entry")
}

func timePtr(t time.Time) *time.Time { return &t }

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }

type recordingObserver struct {
	ids []string
}

func (o *recordingObserver) Notify(item *catalog.ReplicationItem) {
	o.ids = append(o.ids, item.MetadataID)
}
