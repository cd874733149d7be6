package docledger

import (
	"time"

	"github.com/catalogsync/replicator/internal/catalog"
)

func toDocument(item *catalog.ReplicationItem) *document {
	return &document{
		ID:                     item.ID,
		FilterID:               item.FilterID,
		MetadataID:             item.MetadataID,
		Source:                 item.SourceName,
		Destination:            item.DestinationName,
		Action:                 string(item.Action),
		Status:                 string(item.Status),
		StartTimeUnixMS:        toUnixMS(item.StartTime),
		DoneTimeUnixMS:         toUnixMS(item.DoneTime),
		MetadataModifiedUnixMS: toUnixMS(item.MetadataModified),
		ResourceModifiedUnixMS: toUnixMS(item.ResourceModified),
		MetadataSize:           item.MetadataSize,
		ResourceSize:           item.ResourceSize,
	}
}

func fromDocument(doc *document) *catalog.ReplicationItem {
	return &catalog.ReplicationItem{
		ID:               doc.ID,
		FilterID:         doc.FilterID,
		MetadataID:       doc.MetadataID,
		SourceName:       doc.Source,
		DestinationName:  doc.Destination,
		Action:           catalog.Action(doc.Action),
		Status:           catalog.Status(doc.Status),
		StartTime:        fromUnixMS(doc.StartTimeUnixMS),
		DoneTime:         fromUnixMS(doc.DoneTimeUnixMS),
		MetadataModified: fromUnixMS(doc.MetadataModifiedUnixMS),
		ResourceModified: fromUnixMS(doc.ResourceModifiedUnixMS),
		MetadataSize:     doc.MetadataSize,
		ResourceSize:     doc.ResourceSize,
	}
}

func toUnixMS(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMS(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
