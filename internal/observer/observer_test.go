package observer_test

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogsync/replicator/internal/catalog"
	"github.com/catalogsync/replicator/internal/observer"
)

type recordingObserver struct {
	items []*catalog.ReplicationItem
}

func (r *recordingObserver) Notify(item *catalog.ReplicationItem) {
	r.items = append(r.items, item)
}

type panickyObserver struct{}

func (panickyObserver) Notify(*catalog.ReplicationItem) {
	panic("boom")
}

func TestNotifyAllDeliversInOrder(t *testing.T) {
	a, b := &recordingObserver{}, &recordingObserver{}
	set := observer.NewSet(logrus.NewEntry(logrus.New()), a, b)

	item := &catalog.ReplicationItem{ID: "1"}
	set.NotifyAll(item)

	require.Len(t, a.items, 1)
	require.Len(t, b.items, 1)
	assert.Same(t, item, a.items[0])
	assert.Same(t, item, b.items[0])
}

func TestAddDeduplicatesByIdentity(t *testing.T) {
	a := &recordingObserver{}
	set := observer.NewSet(logrus.NewEntry(logrus.New()))
	set.Add(a)
	set.Add(a)

	set.NotifyAll(&catalog.ReplicationItem{ID: "1"})
	assert.Len(t, a.items, 1)
}

func TestAddIgnoresNil(t *testing.T) {
	set := observer.NewSet(logrus.NewEntry(logrus.New()))
	set.Add(nil)
	set.NotifyAll(&catalog.ReplicationItem{ID: "1"})
}

func TestNotifyAllContinuesAfterPanic(t *testing.T) {
	after := &recordingObserver{}
	set := observer.NewSet(logrus.NewEntry(logrus.New()), panickyObserver{}, after)

	assert.NotPanics(t, func() {
		set.NotifyAll(&catalog.ReplicationItem{ID: "1"})
	})
	assert.Len(t, after.items, 1)
}
