// Package logobserver provides a reference observer.Observer that logs
// each completed ledger entry via logrus, formatting sizes with
// github.com/dustin/go-humanize the way an operator-facing log line
// should read.
package logobserver

import (
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/catalogsync/replicator/internal/catalog"
)

// Observer logs every notified ReplicationItem at info (SUCCESS) or warn
// (FAILURE/CONNECTION_LOST).
type Observer struct {
	Log *logrus.Entry
}

// New constructs a logging Observer.
func New(log *logrus.Entry) *Observer {
	return &Observer{Log: log}
}

func (o *Observer) Notify(item *catalog.ReplicationItem) {
	entry := o.Log.WithFields(logrus.Fields{
		"metadata_id":   item.MetadataID,
		"action":        item.Action,
		"status":        item.Status,
		"metadata_size": humanize.Bytes(uint64(maxInt64(item.MetadataSize, 0))),
		"resource_size": humanize.Bytes(uint64(maxInt64(item.ResourceSize, 0))),
		"duration":      item.DoneTime.Sub(item.StartTime),
	})

	switch item.Status {
	case catalog.StatusSuccess:
		entry.Info("replicated record")
	case catalog.StatusConnectionLost:
		entry.Warn("record transfer lost connection; will retry next run")
	default:
		entry.Warn("record transfer failed; will retry next run")
	}
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
