// Package catalog defines the data model shared by the replication core:
// filters, metadata records, and ledger entries. Types here carry no
// persistence or transport behavior of their own — they are the vocabulary
// that Ledger, FilterIndexStore, NodeAdapter, and Syncer.Job all speak.
package catalog

import (
	"time"

	"github.com/pborman/uuid"
)

// Action is the transfer decision the Syncer makes for a single record.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Status is the outcome of a single transfer attempt.
type Status string

const (
	StatusSuccess        Status = "SUCCESS"
	StatusFailure        Status = "FAILURE"
	StatusConnectionLost Status = "CONNECTION_LOST"
)

// ReplicatedTag is appended to every record's tag set on CREATE and UPDATE.
const ReplicatedTag = "replicated"

// Filter is a named, stored query describing which source records are
// subject to replication. Immutable from the core's perspective.
type Filter struct {
	ID    string
	Name  string
	Query string
}

// Metadata is a record yielded by a source query. Tags and Lineage are
// mutated in place by the Syncer before a record is handed to the
// destination adapter.
type Metadata struct {
	ID               string
	MetadataModified time.Time
	ResourceURI      string
	ResourceModified time.Time
	ResourceSize     int64
	MetadataSize     int64
	IsDeleted        bool
	Tags             map[string]struct{}
	Lineage          []string
}

// HasResource reports whether this record carries an associated binary
// resource, i.e. ResourceURI is set.
func (m *Metadata) HasResource() bool {
	return m.ResourceURI != ""
}

// AddTag adds tag to the record's tag set. No-op if already present.
func (m *Metadata) AddTag(tag string) {
	if m.Tags == nil {
		m.Tags = make(map[string]struct{})
	}
	m.Tags[tag] = struct{}{}
}

// HasTag reports whether tag is present in the record's tag set.
func (m *Metadata) HasTag(tag string) bool {
	_, ok := m.Tags[tag]
	return ok
}

// AppendLineage appends systemName to the record's lineage, preserving
// insertion order. Duplicates are permitted — lineage is a trail, not a set.
func (m *Metadata) AppendLineage(systemName string) {
	m.Lineage = append(m.Lineage, systemName)
}

// ReplicationItem is an immutable ledger entry: one transfer attempt for
// one (filterID, metadataID) pair. Identity is storage-assigned.
type ReplicationItem struct {
	// ID is a synthetic, storage-assigned identity. Populated by NewReplicationItemID
	// when a Job builds the entry after the transfer attempt returns.
	ID string

	MetadataID      string
	FilterID        string
	SourceName      string
	DestinationName string
	Action          Action
	Status          Status

	StartTime time.Time
	DoneTime  time.Time

	MetadataModified time.Time
	ResourceModified time.Time
	MetadataSize     int64
	ResourceSize     int64
}

// NewReplicationItemID synthesizes a fresh ledger entry identity.
func NewReplicationItemID() string {
	return uuid.NewRandom().String()
}

// FilterIndex is the per-filter incremental-sync cursor: the greatest
// metadataModified timestamp observed by any Job for this filter.
// ModifiedSince is nil until the first successful observation.
type FilterIndex struct {
	FilterID      string
	ModifiedSince *time.Time
	// Version is a storage schema version, stamped on every save and
	// checked on read per the external-interface contract in spec.md §6.
	Version int
}

// Advance sets ModifiedSince to t if t is strictly greater than the current
// value (or the current value is unset). Returns true if the index changed.
func (fi *FilterIndex) Advance(t time.Time) bool {
	if fi.ModifiedSince == nil || t.After(*fi.ModifiedSince) {
		tCopy := t
		fi.ModifiedSince = &tCopy
		return true
	}
	return false
}
