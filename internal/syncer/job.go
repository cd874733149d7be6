// Package syncer implements the per-filter synchronization engine: one
// Job runs a single, one-shot replication pass for one Filter between one
// source and one destination NodeAdapter. This is the core described in
// spec.md §4.4 — change detection, the CREATE/UPDATE/DELETE decision tree,
// the resource-vs-metadata transfer split, failure classification, and the
// watermark-advance rule.
package syncer

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/catalogsync/replicator/internal/catalog"
	"github.com/catalogsync/replicator/internal/filterindex"
	"github.com/catalogsync/replicator/internal/ledger"
	"github.com/catalogsync/replicator/internal/node"
	"github.com/catalogsync/replicator/internal/observer"
)

// Job is constructed once per (filter, source, destination) replication
// pass and exposes one operation, Sync. A Job is single-threaded and
// blocking: Sync owns the calling goroutine for the duration of one pass
// over the filter's change set (spec.md §5). Running two Jobs
// concurrently over the same filter is forbidden by the outer scheduler;
// Job performs no locking of its own to guard against that.
type Job struct {
	Source      node.Adapter
	Destination node.Adapter
	Filter      *catalog.Filter
	Ledger      ledger.Ledger
	FilterIndex filterindex.Store
	Observers   *observer.Set
	Log         *logrus.Entry

	// Stats accumulates counters across the run, for the outer scheduler
	// to surface as metrics. Zero value is ready to use.
	Stats Stats
}

// Stats accumulates per-run counters. See SPEC_FULL.md §10.2: persistence
// failures abort only the current record, and are counted here rather
// than aborting the Job.
type Stats struct {
	Observed              int
	Created               int
	Updated               int
	UpdatesSkipped        int
	Deleted               int
	Succeeded             int
	Failed                int
	ConnectionLost        int
	LedgerSaveErrors      int
	FilterIndexSaveErrors int
}

// New constructs a Job. observers may be nil or empty.
func New(
	source, destination node.Adapter,
	filter *catalog.Filter,
	ledgerStore ledger.Ledger,
	filterIndexStore filterindex.Store,
	observers ...observer.Observer,
) *Job {
	log := logrus.WithFields(logrus.Fields{
		"filter_id":   filter.ID,
		"source":      source.SystemName(),
		"destination": destination.SystemName(),
	})
	return &Job{
		Source:      source,
		Destination: destination,
		Filter:      filter,
		Ledger:      ledgerStore,
		FilterIndex: filterIndexStore,
		Observers:   observer.NewSet(log, observers...),
		Log:         log,
	}
}

// Sync runs one replication pass to completion. It returns an error only
// for conditions that abort the whole pass: resolving the watermark,
// building the failure list, starting or streaming the change query, or
// cancellation of ctx. Panics from the per-record pipeline are not
// recovered and propagate to the caller. Per-record failures are recorded
// to the ledger and do not themselves cause Sync to return an error.
//
// Sync is cooperatively cancellable at record boundaries: once ctx is
// done, the current record finishes (including its ledger save and
// watermark advance) and Sync returns ctx.Err().
func (j *Job) Sync(ctx context.Context) error {
	index, err := j.FilterIndex.GetOrCreate(ctx, j.Filter)
	if err != nil {
		return errors.Wrap(err, "resolving filter watermark")
	}

	failedIDs, err := j.Ledger.GetFailureList(ctx, j.Filter.ID)
	if err != nil {
		return errors.Wrap(err, "loading failure list")
	}

	req := node.QueryRequest{
		Query:         j.Filter.Query,
		ExcludeAt:     []string{j.Destination.SystemName()},
		FailedIDs:     failedIDs,
		ModifiedAfter: index.ModifiedSince,
	}

	seq, err := j.Source.Query(ctx, req)
	if err != nil {
		return errors.Wrap(err, "starting change query")
	}
	defer seq.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		metadata, ok, err := seq.Next(ctx)
		if err != nil {
			return errors.Wrap(err, "streaming change query")
		}
		if !ok {
			return nil
		}

		j.processRecord(ctx, index, metadata)
	}
}

// processRecord runs the per-record pipeline of spec.md §4.4 steps 1-8 for
// a single Metadata, never returning an error: all per-record failures are
// classified, recorded, and logged in place.
func (j *Job) processRecord(ctx context.Context, index *catalog.FilterIndex, metadata *catalog.Metadata) {
	j.Stats.Observed++
	log := j.Log.WithField("metadata_id", metadata.ID)

	existing := j.Ledger.GetLatest(ctx, j.Filter.ID, metadata.ID)

	action, err := j.decideAction(ctx, metadata, existing)
	if err != nil {
		// destination.Exists failed before an action could be chosen.
		// Spec.md §4.4 step 5's classifier applies equally here; we
		// label the entry CREATE, the decision tree's own fallback when
		// destination state can't be confirmed (self-healing branch).
		status := j.classifyFailure(ctx, err)
		j.finishRecord(ctx, log, metadata, catalog.ActionCreate, status, index)
		return
	}

	startTime := nowFunc()

	status, execErr := j.execute(ctx, action, metadata, existing)
	if execErr != nil {
		status = j.classifyFailure(ctx, execErr)
		log.WithError(execErr).WithField("action", action).Warn("transfer attempt failed")
	}

	doneTime := nowFunc()

	if status == nil {
		// UPDATE with nothing to do: spec.md §4.6 — no ledger entry, no
		// observer call, but the watermark still advances below.
		j.Stats.UpdatesSkipped++
	} else {
		item := &catalog.ReplicationItem{
			ID:               catalog.NewReplicationItemID(),
			MetadataID:       metadata.ID,
			FilterID:         j.Filter.ID,
			SourceName:       j.Source.SystemName(),
			DestinationName:  j.Destination.SystemName(),
			Action:           action,
			Status:           *status,
			StartTime:        startTime,
			DoneTime:         doneTime,
			MetadataModified: metadata.MetadataModified,
			ResourceModified: metadata.ResourceModified,
			MetadataSize:     metadata.MetadataSize,
			ResourceSize:     metadata.ResourceSize,
		}
		j.recordOutcome(ctx, log, item)
	}

	j.advanceWatermark(ctx, log, index, metadata)
}

// decideAction implements the action decision tree of spec.md §4.4 step 2.
func (j *Job) decideAction(ctx context.Context, metadata *catalog.Metadata, existing *catalog.ReplicationItem) (catalog.Action, error) {
	if metadata.IsDeleted && existing != nil {
		return catalog.ActionDelete, nil
	}

	exists, err := j.Destination.Exists(ctx, metadata)
	if err != nil {
		return "", err
	}
	if exists && existing != nil {
		return catalog.ActionUpdate, nil
	}

	return catalog.ActionCreate, nil
}

// execute performs the transfer for action and returns the resulting
// Status, or (nil, nil) for an UPDATE that had nothing to do.
func (j *Job) execute(ctx context.Context, action catalog.Action, metadata *catalog.Metadata, existing *catalog.ReplicationItem) (*catalog.Status, error) {
	switch action {
	case catalog.ActionCreate:
		return j.executeCreate(ctx, metadata)
	case catalog.ActionUpdate:
		return j.executeUpdate(ctx, metadata, existing)
	case catalog.ActionDelete:
		return j.executeDelete(ctx, metadata)
	default:
		return nil, errors.Errorf("unknown action %q", action)
	}
}

// augment applies the CREATE/UPDATE side effects of spec.md §4.5-4.6:
// append the source's system name to lineage, add the replicated tag.
func (j *Job) augment(metadata *catalog.Metadata) {
	metadata.AppendLineage(j.Source.SystemName())
	metadata.AddTag(catalog.ReplicatedTag)
}

func (j *Job) executeCreate(ctx context.Context, metadata *catalog.Metadata) (*catalog.Status, error) {
	j.augment(metadata)

	var ok bool
	var err error
	if metadata.HasResource() {
		resp, rerr := j.Source.ReadResource(ctx, node.ReadResourceRequest{Metadata: metadata})
		if rerr != nil {
			return nil, rerr
		}
		defer resp.Body.Close()
		ok, err = j.Destination.CreateResource(ctx, metadata, resp)
	} else {
		ok, err = j.Destination.CreateRequest(ctx, metadata)
	}
	if err != nil {
		return nil, err
	}

	j.Stats.Created++
	return statusFromBool(ok), nil
}

func (j *Job) executeUpdate(ctx context.Context, metadata *catalog.Metadata, existing *catalog.ReplicationItem) (*catalog.Status, error) {
	j.augment(metadata)

	shouldUpdateMetadata := metadata.MetadataModified.After(existing.MetadataModified) ||
		existing.Status != catalog.StatusSuccess
	shouldUpdateResource := metadata.HasResource() &&
		(metadata.ResourceModified.After(existing.ResourceModified) || existing.Status != catalog.StatusSuccess)

	var ok bool
	var err error
	switch {
	case shouldUpdateResource:
		resp, rerr := j.Source.ReadResource(ctx, node.ReadResourceRequest{Metadata: metadata})
		if rerr != nil {
			return nil, rerr
		}
		defer resp.Body.Close()
		ok, err = j.Destination.UpdateResource(ctx, metadata, resp)
	case shouldUpdateMetadata:
		ok, err = j.Destination.UpdateRequest(ctx, metadata)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	j.Stats.Updated++
	return statusFromBool(ok), nil
}

func (j *Job) executeDelete(ctx context.Context, metadata *catalog.Metadata) (*catalog.Status, error) {
	ok, err := j.Destination.DeleteRequest(ctx, metadata)
	if err != nil {
		return nil, err
	}

	j.Stats.Deleted++
	return statusFromBool(ok), nil
}

// classifyFailure implements spec.md §4.4 step 5 / §7's error taxonomy:
// a transport error coincident with either endpoint reporting unavailable
// classifies as CONNECTION_LOST, otherwise FAILURE. Fatal machine-level
// errors are expected to propagate as panics from the adapter layer and
// are not handled here — they are the caller's (Sync's) responsibility to
// let escape uncaught.
func (j *Job) classifyFailure(ctx context.Context, _ error) *catalog.Status {
	status := catalog.StatusFailure
	if !j.Source.IsAvailable(ctx) || !j.Destination.IsAvailable(ctx) {
		status = catalog.StatusConnectionLost
	}
	return &status
}

func (j *Job) recordOutcome(ctx context.Context, log *logrus.Entry, item *catalog.ReplicationItem) {
	switch item.Status {
	case catalog.StatusSuccess:
		j.Stats.Succeeded++
	case catalog.StatusConnectionLost:
		j.Stats.ConnectionLost++
	default:
		j.Stats.Failed++
	}

	if err := j.Ledger.Save(ctx, item); err != nil {
		j.Stats.LedgerSaveErrors++
		log.WithError(err).Error("failed to save ledger entry; observers not notified for this record")
		return
	}

	j.Observers.NotifyAll(item)
}

// finishRecord is used when Exists() itself failed before an action could
// be chosen: we still owe the ledger a record of the attempt, labelled
// with the action the caller passes (CREATE, the decision tree's
// fallback, since we never learned whether this would have been a CREATE
// or UPDATE).
func (j *Job) finishRecord(ctx context.Context, log *logrus.Entry, metadata *catalog.Metadata, action catalog.Action, status *catalog.Status, index *catalog.FilterIndex) {
	now := nowFunc()
	item := &catalog.ReplicationItem{
		ID:               catalog.NewReplicationItemID(),
		MetadataID:       metadata.ID,
		FilterID:         j.Filter.ID,
		SourceName:       j.Source.SystemName(),
		DestinationName:  j.Destination.SystemName(),
		Action:           action,
		Status:           *status,
		StartTime:        now,
		DoneTime:         now,
		MetadataModified: metadata.MetadataModified,
		ResourceModified: metadata.ResourceModified,
		MetadataSize:     metadata.MetadataSize,
		ResourceSize:     metadata.ResourceSize,
	}
	j.recordOutcome(ctx, log, item)
	j.advanceWatermark(ctx, log, index, metadata)
}

// advanceWatermark implements spec.md §4.4 step 8: the watermark tracks
// observation, not success, and advances regardless of transfer status.
func (j *Job) advanceWatermark(ctx context.Context, log *logrus.Entry, index *catalog.FilterIndex, metadata *catalog.Metadata) {
	if !index.Advance(metadata.MetadataModified) {
		return
	}
	if err := j.FilterIndex.Save(ctx, index); err != nil {
		j.Stats.FilterIndexSaveErrors++
		log.WithError(err).Error("failed to persist advanced watermark")
	}
}

func statusFromBool(ok bool) *catalog.Status {
	status := catalog.StatusFailure
	if ok {
		status = catalog.StatusSuccess
	}
	return &status
}
