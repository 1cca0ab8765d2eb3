package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thanos-io/objstore"

	"github.com/slatedb/slatesink/slatesink/common"
	"github.com/slatedb/slatesink/slatesink/table"
)

func dataFile(path, partition string, records uint64) table.DataFile {
	return table.DataFile{
		Content:       table.ContentData,
		Path:          path,
		Partition:     partition,
		RecordCount:   records,
		FileSizeBytes: records * 10,
	}
}

func newTestTable(t *testing.T, bucket objstore.Bucket) *Table {
	t.Helper()
	tbl, err := CreateTable(context.Background(), bucket, rootPath, map[string]string{"owner": "tests"}, DefaultTableOptions())
	require.NoError(t, err)
	return tbl
}

func current(t *testing.T, tbl table.Table) *table.Snapshot {
	t.Helper()
	s, err := tbl.CurrentSnapshot(context.Background())
	require.NoError(t, err)
	require.True(t, s.IsPresent())
	return s.MustGet()
}

func paths(files []table.DataFile) []string {
	result := make([]string, 0, len(files))
	for _, f := range files {
		result = append(result, f.Path)
	}
	return result
}

func TestCreateAndLoadTable(t *testing.T) {
	ctx := context.Background()
	bucket := objstore.NewInMemBucket()
	tbl := newTestTable(t, bucket)

	assert.Equal(t, "events", tbl.Name())
	assert.Equal(t, rootPath, tbl.Location())
	assert.Equal(t, "tests", tbl.Properties()["owner"])

	s, err := tbl.CurrentSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, s.IsAbsent())

	_, err = CreateTable(ctx, bucket, rootPath, nil, DefaultTableOptions())
	assert.ErrorIs(t, err, common.ErrTableExists)

	loaded, err := LoadTable(ctx, bucket, rootPath, DefaultTableOptions())
	require.NoError(t, err)
	assert.Equal(t, "tests", loaded.Properties()["owner"])

	_, err = LoadTable(ctx, bucket, "warehouse/db/missing", DefaultTableOptions())
	assert.ErrorIs(t, err, common.ErrTableNotFound)
}

func TestAppendBuildsHistory(t *testing.T) {
	ctx := context.Background()
	tbl := newTestTable(t, objstore.NewInMemBucket())

	a := tbl.NewAppend()
	a.AppendFile(dataFile("data/p=1/a.dat", "p=1", 5))
	a.AppendFile(dataFile("data/p=2/b.dat", "p=2", 7))
	a.Set(common.FlinkJobIDProperty, "run-1")
	require.NoError(t, a.Commit(ctx))
	first := current(t, tbl)

	assert.Equal(t, table.OpAppend, first.Operation)
	assert.True(t, first.ParentID.IsAbsent())
	assert.Equal(t, uint64(1), first.SequenceNumber)
	assert.Equal(t, "run-1", first.Summary[common.FlinkJobIDProperty])
	assert.Equal(t, "2", first.Summary[SummaryAddedDataFiles])
	assert.Equal(t, "12", first.Summary[SummaryTotalRecords])

	// Committing the same transaction twice is refused
	assert.ErrorIs(t, a.Commit(ctx), common.ErrInvalidState)

	// An empty append still produces a snapshot
	empty := tbl.NewAppend()
	empty.Set(common.MaxCommittedCheckpointIDProperty, "3")
	require.NoError(t, empty.Commit(ctx))
	second := current(t, tbl)

	assert.Equal(t, first.ID, second.ParentID.MustGet())
	assert.Equal(t, uint64(2), second.SequenceNumber)
	assert.Equal(t, "0", second.Summary[SummaryAddedDataFiles])
	assert.Equal(t, "2", second.Summary[SummaryTotalDataFiles])
	assert.Equal(t, uint64(3), second.Uint64Property(common.MaxCommittedCheckpointIDProperty).MustGet())

	// A fresh instance decodes the same history from the bucket
	loaded, err := LoadTable(ctx, tbl.store.bucket, rootPath, DefaultTableOptions())
	require.NoError(t, err)
	reloaded := current(t, loaded)
	assert.Equal(t, second.ID, reloaded.ID)
	assert.Equal(t, []string{"data/p=1/a.dat", "data/p=2/b.dat"}, paths(reloaded.DataFiles))
}

func TestCommitRetriesOnVersionConflict(t *testing.T) {
	ctx := context.Background()
	bucket := objstore.NewInMemBucket()
	tbl := newTestTable(t, bucket)

	stale, err := LoadTable(ctx, bucket, rootPath, DefaultTableOptions())
	require.NoError(t, err)

	a := tbl.NewAppend()
	a.AppendFile(dataFile("data/a.dat", "", 1))
	require.NoError(t, a.Commit(ctx))
	winner := current(t, tbl)

	b := stale.NewAppend()
	b.AppendFile(dataFile("data/b.dat", "", 1))
	require.NoError(t, b.Commit(ctx))

	latest := current(t, stale)
	assert.Equal(t, winner.ID, latest.ParentID.MustGet())
	assert.Equal(t, []string{"data/a.dat", "data/b.dat"}, paths(latest.DataFiles))
}

func TestCommitFailsWithoutRetries(t *testing.T) {
	ctx := context.Background()
	bucket := objstore.NewInMemBucket()
	tbl := newTestTable(t, bucket)

	opts := DefaultTableOptions()
	opts.CommitRetries = 0
	stale, err := LoadTable(ctx, bucket, rootPath, opts)
	require.NoError(t, err)

	require.NoError(t, tbl.NewAppend().Commit(ctx))

	err = stale.NewAppend().Commit(ctx)
	assert.ErrorIs(t, err, common.ErrMetadataVersionExists)

	// The losing transaction left no snapshot behind
	s, err := stale.CurrentSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, s.IsAbsent())
}

func TestReplacePartitions(t *testing.T) {
	ctx := context.Background()
	tbl := newTestTable(t, objstore.NewInMemBucket())

	a := tbl.NewAppend()
	a.AppendFile(dataFile("data/p=1/a.dat", "p=1", 1))
	a.AppendFile(dataFile("data/p=2/b.dat", "p=2", 1))
	require.NoError(t, a.Commit(ctx))

	r := tbl.NewReplacePartitions()
	r.AddFile(dataFile("data/p=1/c.dat", "p=1", 4))
	require.NoError(t, r.Commit(ctx))

	s := current(t, tbl)
	assert.Equal(t, table.OpOverwrite, s.Operation)
	assert.ElementsMatch(t, []string{"data/p=2/b.dat", "data/p=1/c.dat"}, paths(s.DataFiles))
	assert.Equal(t, "1", s.Summary[SummaryRemovedDataFiles])
}

func TestRowDelta(t *testing.T) {
	ctx := context.Background()
	tbl := newTestTable(t, objstore.NewInMemBucket())

	rd := tbl.NewRowDelta()
	rd.AddRows(dataFile("data/a.dat", "", 3))
	rd.AddDeletes(table.DataFile{Content: table.ContentEqualityDeletes, Path: "data/a.eq-del", RecordCount: 1})
	require.NoError(t, rd.Commit(ctx))

	s := current(t, tbl)
	assert.Equal(t, table.OpOverwrite, s.Operation)
	assert.Equal(t, []string{"data/a.dat"}, paths(s.DataFiles))
	assert.Equal(t, []string{"data/a.eq-del"}, paths(s.DeleteFiles))
	assert.Equal(t, "1", s.Summary[SummaryAddedDeleteFiles])

	onlyRows := tbl.NewRowDelta()
	onlyRows.AddRows(dataFile("data/b.dat", "", 1))
	require.NoError(t, onlyRows.Commit(ctx))
	assert.Equal(t, table.OpAppend, current(t, tbl).Operation)
}

func TestRewriteFiles(t *testing.T) {
	ctx := context.Background()
	tbl := newTestTable(t, objstore.NewInMemBucket())

	a := tbl.NewAppend()
	a.AppendFile(dataFile("data/a.dat", "", 1))
	a.AppendFile(dataFile("data/b.dat", "", 1))
	require.NoError(t, a.Commit(ctx))

	rw := tbl.NewRewrite()
	rw.DeleteFile(dataFile("data/a.dat", "", 1))
	rw.DeleteFile(dataFile("data/b.dat", "", 1))
	rw.AddFile(dataFile("data/compacted.dat", "", 2))
	require.NoError(t, rw.Commit(ctx))

	s := current(t, tbl)
	assert.Equal(t, table.OpReplace, s.Operation)
	assert.Equal(t, []string{"data/compacted.dat"}, paths(s.DataFiles))

	conflict := tbl.NewRewrite()
	conflict.DeleteFile(dataFile("data/a.dat", "", 1))
	conflict.AddFile(dataFile("data/other.dat", "", 1))
	assert.ErrorIs(t, conflict.Commit(ctx), common.ErrCommitConflict)
	assert.Equal(t, s.ID, current(t, tbl).ID)
}

func TestRollbackTo(t *testing.T) {
	ctx := context.Background()
	tbl := newTestTable(t, objstore.NewInMemBucket())

	require.NoError(t, tbl.NewAppend().Commit(ctx))
	first := current(t, tbl)
	require.NoError(t, tbl.NewAppend().Commit(ctx))
	second := current(t, tbl)

	require.NoError(t, tbl.ManageSnapshots().RollbackTo(ctx, first.ID))
	assert.Equal(t, first.ID, current(t, tbl).ID)

	// The rolled back snapshot is retained but no longer an ancestor
	s, err := tbl.Snapshot(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, s.IsPresent())
	err = tbl.ManageSnapshots().RollbackTo(ctx, second.ID)
	assert.ErrorIs(t, err, common.ErrNotAncestor)

	// New commits build on the rollback target
	require.NoError(t, tbl.NewAppend().Commit(ctx))
	assert.Equal(t, first.ID, current(t, tbl).ParentID.MustGet())
}

func TestExpireSnapshots(t *testing.T) {
	ctx := context.Background()
	tbl := newTestTable(t, objstore.NewInMemBucket())

	require.NoError(t, tbl.NewAppend().Commit(ctx))
	first := current(t, tbl)
	require.NoError(t, tbl.NewAppend().Commit(ctx))
	second := current(t, tbl)

	assert.ErrorIs(t, tbl.ExpireSnapshots(ctx, second.ID), common.ErrInvalidState)
	require.NoError(t, tbl.ExpireSnapshots(ctx, first.ID))

	s, err := tbl.Snapshot(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, s.IsAbsent())

	exists, err := tbl.store.Exists(ctx, snapshotPath(first.ID))
	require.NoError(t, err)
	assert.False(t, exists)

	var walked []uint64
	for s, err := range table.Ancestors(ctx, tbl) {
		require.NoError(t, err)
		walked = append(walked, s.ID)
	}
	assert.Equal(t, []uint64{second.ID}, walked)
}

func TestLoader(t *testing.T) {
	ctx := context.Background()
	bucket := objstore.NewInMemBucket()
	newTestTable(t, bucket)

	loader := NewLoader(bucket, rootPath, DefaultTableOptions())
	_, err := loader.Load(ctx)
	assert.ErrorIs(t, err, common.ErrInvalidState)

	require.NoError(t, loader.Open(ctx))
	first, err := loader.Load(ctx)
	require.NoError(t, err)
	second, err := loader.Load(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)

	require.NoError(t, loader.Close())
	assert.ErrorIs(t, loader.Open(ctx), common.ErrDisposed)
	assert.NoError(t, loader.Close())
}
