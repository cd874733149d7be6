package logobserver_test

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogsync/replicator/internal/catalog"
	"github.com/catalogsync/replicator/internal/observer/logobserver"
)

func TestNotifySuccessLogsAtInfo(t *testing.T) {
	logger, hook := test.NewNullLogger()
	o := logobserver.New(logrus.NewEntry(logger))

	o.Notify(&catalog.ReplicationItem{
		MetadataID:   "m1",
		Action:       catalog.ActionCreate,
		Status:       catalog.StatusSuccess,
		MetadataSize: 2048,
		StartTime:    time.Unix(0, 0),
		DoneTime:     time.Unix(1, 0),
	})

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.InfoLevel, hook.Entries[0].Level)
	assert.Equal(t, "m1", hook.Entries[0].Data["metadata_id"])
}

func TestNotifyFailureLogsAtWarn(t *testing.T) {
	logger, hook := test.NewNullLogger()
	o := logobserver.New(logrus.NewEntry(logger))

	o.Notify(&catalog.ReplicationItem{
		MetadataID: "m2",
		Action:     catalog.ActionUpdate,
		Status:     catalog.StatusFailure,
	})

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.Entries[0].Level)
}

func TestNotifyConnectionLostLogsAtWarn(t *testing.T) {
	logger, hook := test.NewNullLogger()
	o := logobserver.New(logrus.NewEntry(logger))

	o.Notify(&catalog.ReplicationItem{
		MetadataID: "m3",
		Action:     catalog.ActionDelete,
		Status:     catalog.StatusConnectionLost,
	})

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.Entries[0].Level)
}
