package docindex_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/docstore/memdocstore"

	"github.com/catalogsync/replicator/internal/catalog"
	"github.com/catalogsync/replicator/internal/store/docindex"
)

func newTestStore(t *testing.T) *docindex.Store {
	t.Helper()
	coll, err := memdocstore.OpenCollection("id", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = coll.Close() })
	return docindex.New(coll)
}

func TestGetOrCreateFresh(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	idx, err := s.GetOrCreate(ctx, &catalog.Filter{ID: "f1"})
	require.NoError(t, err)
	assert.Nil(t, idx.ModifiedSince)
	assert.Equal(t, docindex.CurrentVersion, idx.Version)
}

func TestSaveThenGetOrCreateRoundTrips(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	filter := &catalog.Filter{ID: "f1"}

	when := time.Unix(500, 0).UTC()
	require.NoError(t, s.Save(ctx, &catalog.FilterIndex{FilterID: "f1", ModifiedSince: &when}))

	idx, err := s.GetOrCreate(ctx, filter)
	require.NoError(t, err)
	require.NotNil(t, idx.ModifiedSince)
	assert.True(t, idx.ModifiedSince.Equal(when))
}
