package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math/rand/v2"
	"path"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/kapetan-io/tackle/set"
	"github.com/maypok86/otter"
	"github.com/oklog/ulid/v2"
	"github.com/samber/mo"
	"github.com/thanos-io/objstore"

	"github.com/slatedb/slatesink/slatesink/common"
	"github.com/slatedb/slatesink/slatesink/table"
)

// Snapshot summary keys maintained by the table on every commit.
const (
	SummaryAddedDataFiles    = "added-data-files"
	SummaryRemovedDataFiles  = "removed-data-files"
	SummaryAddedDeleteFiles  = "added-delete-files"
	SummaryTotalDataFiles    = "total-data-files"
	SummaryTotalDeleteFiles  = "total-delete-files"
	SummaryAddedRecords      = "added-records"
	SummaryTotalRecords      = "total-records"
	SummaryChangedPartitions = "changed-partition-count"
)

type TableOptions struct {
	// CommitRetries is how often a commit is retried after losing a race for
	// the next metadata version.
	CommitRetries int
	// Timeout bounds each object store call. Zero means no timeout.
	Timeout time.Duration
	// SnapshotCacheSize is the number of decoded snapshots kept in memory.
	SnapshotCacheSize int
	Log               *slog.Logger
}

func DefaultTableOptions() TableOptions {
	return TableOptions{
		CommitRetries:     4,
		SnapshotCacheSize: 1000,
	}
}

// ------------------------------------------------
// Table
// ------------------------------------------------

// Table is a snapshot-versioned table stored in an object store bucket. Every
// transaction writes an immutable snapshot file and then claims the next
// metadata version with put-if-not-exists, so concurrent writers from any
// process are serialized by the bucket.
type Table struct {
	location  string
	store     *DelegatingObjectStore
	opts      TableOptions
	log       *slog.Logger
	snapshots otter.Cache[uint64, *table.Snapshot]

	mu       sync.Mutex
	version  uint64
	metadata *metadataFile
}

var _ table.Table = (*Table)(nil)

// CreateTable writes the first metadata version of a new table at location.
func CreateTable(ctx context.Context, bucket objstore.Bucket, location string,
	properties map[string]string, opts TableOptions) (*Table, error) {

	t, err := newTable(bucket, location, opts)
	if err != nil {
		return nil, err
	}

	md := &metadataFile{
		FormatVersion: formatVersion,
		TableUUID:     ulid.Make().String(),
		Location:      location,
		LastUpdatedMS: time.Now().UnixMilli(),
		Properties:    maps.Clone(properties),
		Snapshots:     []uint64{},
		SnapshotLog:   []snapshotLogEntry{},
	}
	if md.Properties == nil {
		md.Properties = map[string]string{}
	}

	err = t.writeMetadata(ctx, 1, md)
	if err != nil {
		if errors.Is(err, common.ErrMetadataVersionExists) {
			return nil, fmt.Errorf("%w: %s", common.ErrTableExists, location)
		}
		return nil, err
	}
	t.version = 1
	t.metadata = md
	t.log.Info("created table", "location", location, "table_uuid", md.TableUUID)
	return t, nil
}

// LoadTable opens the latest metadata version of the table at location.
func LoadTable(ctx context.Context, bucket objstore.Bucket, location string, opts TableOptions) (*Table, error) {
	t, err := newTable(bucket, location, opts)
	if err != nil {
		return nil, err
	}
	if err := t.Refresh(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

func newTable(bucket objstore.Bucket, location string, opts TableOptions) (*Table, error) {
	set.Default(&opts.Log, slog.Default())
	set.Default(&opts.SnapshotCacheSize, DefaultTableOptions().SnapshotCacheSize)

	cache, err := otter.MustBuilder[uint64, *table.Snapshot](opts.SnapshotCacheSize).Build()
	if err != nil {
		return nil, err
	}

	return &Table{
		location:  location,
		store:     NewDelegatingObjectStore(location, bucket).WithTimeout(opts.Timeout),
		opts:      opts,
		log:       opts.Log.With("table", location),
		snapshots: cache,
	}, nil
}

func (t *Table) Name() string {
	return path.Base(t.location)
}

func (t *Table) Location() string {
	return t.location
}

func (t *Table) String() string {
	return t.Name()
}

func (t *Table) Properties() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return maps.Clone(t.metadata.Properties)
}

func (t *Table) IO() table.FileIO {
	return t.store.FileIO()
}

func (t *Table) CurrentSnapshot(ctx context.Context) (mo.Option[*table.Snapshot], error) {
	md := t.currentMetadata()
	id, ok := md.currentSnapshotID().Get()
	if !ok {
		return mo.None[*table.Snapshot](), nil
	}
	return t.Snapshot(ctx, id)
}

// Snapshot returns the snapshot with the given id if the table still retains
// it. Expired snapshots are reported as absent.
func (t *Table) Snapshot(ctx context.Context, id uint64) (mo.Option[*table.Snapshot], error) {
	if !t.currentMetadata().hasSnapshot(id) {
		return mo.None[*table.Snapshot](), nil
	}
	if s, ok := t.snapshots.Get(id); ok {
		return mo.Some(s), nil
	}

	data, err := t.store.Get(ctx, snapshotPath(id))
	if err != nil {
		return mo.None[*table.Snapshot](), fmt.Errorf("while reading snapshot %d: %w", id, err)
	}
	s, err := decodeSnapshot(data)
	if err != nil {
		return mo.None[*table.Snapshot](), err
	}
	t.snapshots.Set(id, s)
	return mo.Some(s), nil
}

// Refresh loads the latest metadata version from the object store.
func (t *Table) Refresh(ctx context.Context) error {
	version, md, err := t.readLatestMetadata(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.version = version
	t.metadata = md
	return nil
}

func (t *Table) currentMetadata() *metadataFile {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.metadata
}

func (t *Table) NewAppend() table.AppendFiles {
	return &appendFiles{update: t.newUpdate()}
}

func (t *Table) NewReplacePartitions() table.ReplacePartitions {
	return &replacePartitions{update: t.newUpdate()}
}

func (t *Table) NewRowDelta() table.RowDelta {
	return &rowDelta{update: t.newUpdate()}
}

func (t *Table) NewRewrite() table.RewriteFiles {
	return &rewriteFiles{update: t.newUpdate()}
}

func (t *Table) ManageSnapshots() table.ManageSnapshots {
	return manageSnapshots{table: t}
}

// ExpireSnapshots drops the given snapshots from the table and deletes their
// snapshot files. The current snapshot cannot be expired.
func (t *Table) ExpireSnapshots(ctx context.Context, ids ...uint64) error {
	return t.commitMetadata(ctx, func(md *metadataFile) error {
		current := md.currentSnapshotID()
		for _, id := range ids {
			if current.IsPresent() && current.MustGet() == id {
				return fmt.Errorf("%w: cannot expire current snapshot %d", common.ErrInvalidState, id)
			}
		}
		md.Snapshots = slices.DeleteFunc(md.Snapshots, func(id uint64) bool {
			return slices.Contains(ids, id)
		})
		return nil
	}, func() {
		for _, id := range ids {
			t.snapshots.Delete(id)
			if err := t.store.Delete(ctx, snapshotPath(id)); err != nil {
				t.log.Warn("failed to delete expired snapshot file", "snapshot_id", id, "error", err)
			}
		}
	})
}

// ------------------------------------------------
// Commit
// ------------------------------------------------

// changes is what a transaction computes against the base snapshot.
type changes struct {
	operation   table.Operation
	dataFiles   []table.DataFile
	deleteFiles []table.DataFile

	addedData    []table.DataFile
	addedDeletes []table.DataFile
	removedData  []table.DataFile
}

type applyFunc func(base mo.Option[*table.Snapshot]) (changes, error)

// commitSnapshot applies a transaction on top of the current snapshot. When
// another writer claims the next metadata version first, the table is
// refreshed and the transaction is applied again on the new base.
func (t *Table) commitSnapshot(ctx context.Context, properties map[string]string, apply applyFunc) error {
	for attempt := 0; ; attempt++ {
		t.mu.Lock()
		version := t.version
		md := t.metadata.clone()
		t.mu.Unlock()

		base := mo.None[*table.Snapshot]()
		if id, ok := md.currentSnapshotID().Get(); ok {
			s, err := t.Snapshot(ctx, id)
			if err != nil {
				return err
			}
			base = s
		}

		c, err := apply(base)
		if err != nil {
			return err
		}

		snapshot, err := t.writeSnapshot(ctx, md, base, properties, c)
		if err != nil {
			return err
		}

		md.Snapshots = append(md.Snapshots, snapshot.ID)
		md.SnapshotLog = append(md.SnapshotLog, snapshotLogEntry{snapshot.ID, snapshot.TimestampMS})
		md.CurrentSnapshotID = &snapshot.ID
		md.LastSequenceNumber = snapshot.SequenceNumber
		md.LastUpdatedMS = snapshot.TimestampMS

		err = t.writeMetadata(ctx, version+1, md)
		if err == nil {
			t.mu.Lock()
			t.version = version + 1
			t.metadata = md
			t.mu.Unlock()
			t.snapshots.Set(snapshot.ID, snapshot)
			return nil
		}

		// The snapshot file is unreachable, no metadata version references it.
		if delErr := t.store.Delete(ctx, snapshotPath(snapshot.ID)); delErr != nil {
			t.log.Warn("failed to delete orphaned snapshot file", "snapshot_id", snapshot.ID, "error", delErr)
		}
		if !errors.Is(err, common.ErrMetadataVersionExists) || attempt >= t.opts.CommitRetries {
			return err
		}
		t.log.Warn("conflicting metadata version. retry commit", "version", version+1, "error", err)
		if err := t.Refresh(ctx); err != nil {
			return err
		}
	}
}

func (t *Table) writeSnapshot(ctx context.Context, md *metadataFile, base mo.Option[*table.Snapshot],
	properties map[string]string, c changes) (*table.Snapshot, error) {

	summary := maps.Clone(properties)
	if summary == nil {
		summary = map[string]string{}
	}
	maps.Copy(summary, summarize(c))

	snapshot := &table.Snapshot{
		ParentID:       mo.None[uint64](),
		SequenceNumber: md.LastSequenceNumber + 1,
		TimestampMS:    time.Now().UnixMilli(),
		Operation:      c.operation,
		Summary:        summary,
		DataFiles:      c.dataFiles,
		DeleteFiles:    c.deleteFiles,
	}
	if b, ok := base.Get(); ok {
		snapshot.ParentID = mo.Some(b.ID)
	}

	// Snapshot ids are random, retry the rare collision with a fresh id.
	for {
		snapshot.ID = newSnapshotID()
		if md.hasSnapshot(snapshot.ID) {
			continue
		}
		data, err := encodeSnapshot(snapshot)
		if err != nil {
			return nil, err
		}
		err = t.store.PutIfNotExists(ctx, snapshotPath(snapshot.ID), data)
		if errors.Is(err, common.ErrObjectExists) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("while writing snapshot %d: %w", snapshot.ID, err)
		}
		return snapshot, nil
	}
}

// commitMetadata applies a change that does not produce a new snapshot, such as
// a rollback. onSuccess runs once the new version is written.
func (t *Table) commitMetadata(ctx context.Context, update func(md *metadataFile) error, onSuccess func()) error {
	for attempt := 0; ; attempt++ {
		t.mu.Lock()
		version := t.version
		md := t.metadata.clone()
		t.mu.Unlock()

		if err := update(md); err != nil {
			return err
		}
		md.LastUpdatedMS = time.Now().UnixMilli()

		err := t.writeMetadata(ctx, version+1, md)
		if err == nil {
			t.mu.Lock()
			t.version = version + 1
			t.metadata = md
			t.mu.Unlock()
			if onSuccess != nil {
				onSuccess()
			}
			return nil
		}
		if !errors.Is(err, common.ErrMetadataVersionExists) || attempt >= t.opts.CommitRetries {
			return err
		}
		t.log.Warn("conflicting metadata version. retry write", "version", version+1, "error", err)
		if err := t.Refresh(ctx); err != nil {
			return err
		}
	}
}

func (t *Table) writeMetadata(ctx context.Context, version uint64, md *metadataFile) error {
	data, err := encodeMetadata(md)
	if err != nil {
		return err
	}
	err = t.store.PutIfNotExists(ctx, metadataPath(version), data)
	if err != nil {
		if errors.Is(err, common.ErrObjectExists) {
			return common.ErrMetadataVersionExists
		}
		return fmt.Errorf("%w: %s", common.ErrObjectStore, err)
	}
	return nil
}

func (t *Table) readLatestMetadata(ctx context.Context) (uint64, *metadataFile, error) {
	objMetaList, err := t.store.List(ctx, mo.Some(metadataDir))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s", common.ErrObjectStore, err)
	}

	versions := make([]uint64, 0, len(objMetaList))
	for _, objMeta := range objMetaList {
		version, err := parseVersion(objMeta.Location, metadataSuffix)
		if err != nil {
			continue
		}
		versions = append(versions, version)
	}
	if len(versions) == 0 {
		return 0, nil, fmt.Errorf("%w: %s", common.ErrTableNotFound, t.location)
	}

	latest := slices.MaxFunc(versions, cmp.Compare[uint64])
	data, err := t.store.Get(ctx, metadataPath(latest))
	if err != nil {
		return 0, nil, err
	}
	md, err := decodeMetadata(data)
	if err != nil {
		return 0, nil, err
	}
	return latest, md, nil
}

func newSnapshotID() uint64 {
	return rand.Uint64() >> 1
}

func summarize(c changes) map[string]string {
	var addedRecords, totalRecords uint64
	partitions := make(map[string]struct{})
	for _, f := range c.addedData {
		addedRecords += f.RecordCount
		partitions[f.Partition] = struct{}{}
	}
	for _, f := range c.addedDeletes {
		partitions[f.Partition] = struct{}{}
	}
	for _, f := range c.dataFiles {
		totalRecords += f.RecordCount
	}

	return map[string]string{
		SummaryAddedDataFiles:    strconv.Itoa(len(c.addedData)),
		SummaryRemovedDataFiles:  strconv.Itoa(len(c.removedData)),
		SummaryAddedDeleteFiles:  strconv.Itoa(len(c.addedDeletes)),
		SummaryTotalDataFiles:    strconv.Itoa(len(c.dataFiles)),
		SummaryTotalDeleteFiles:  strconv.Itoa(len(c.deleteFiles)),
		SummaryAddedRecords:      strconv.FormatUint(addedRecords, 10),
		SummaryTotalRecords:      strconv.FormatUint(totalRecords, 10),
		SummaryChangedPartitions: strconv.Itoa(len(partitions)),
	}
}
