package compaction

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thanos-io/objstore"

	"github.com/slatedb/slatesink/slatesink/store"
	"github.com/slatedb/slatesink/slatesink/table"
)

func testOptions() Options {
	return Options{MinInputFiles: 2, SmallFileBytes: 1024, Timeout: time.Second}
}

func newTable(t *testing.T) *store.Table {
	t.Helper()
	tbl, err := store.CreateTable(context.Background(), objstore.NewInMemBucket(), "warehouse/db/events", nil,
		store.DefaultTableOptions())
	require.NoError(t, err)
	return tbl
}

// writeFile stores content as a data file and returns its descriptor.
func writeFile(t *testing.T, tbl table.Table, partition string, n int, content string) table.DataFile {
	t.Helper()
	f := table.DataFile{
		Content:       table.ContentData,
		Path:          fmt.Sprintf("data/%s/%05d.dat", partition, n),
		Partition:     partition,
		RecordCount:   1,
		FileSizeBytes: uint64(len(content)),
	}
	require.NoError(t, tbl.IO().Write(context.Background(), f.Path, []byte(content)))
	return f
}

func appendFiles(t *testing.T, tbl table.Table, files ...table.DataFile) {
	t.Helper()
	a := tbl.NewAppend()
	for _, f := range files {
		a.AppendFile(f)
	}
	require.NoError(t, a.Commit(context.Background()))
}

func waitForResult(t *testing.T, e *Executor) Result {
	t.Helper()
	var result Result
	require.Eventually(t, func() bool {
		r, ok := e.NextResult()
		result = r
		return ok
	}, 5*time.Second, 10*time.Millisecond)
	return result
}

func current(t *testing.T, tbl table.Table) *table.Snapshot {
	t.Helper()
	s, err := tbl.CurrentSnapshot(context.Background())
	require.NoError(t, err)
	return s.MustGet()
}

func TestPlanJob(t *testing.T) {
	opts := testOptions()
	file := func(partition string, n int, size uint64, content table.FileContent) table.DataFile {
		return table.DataFile{Content: content, Path: fmt.Sprintf("%s/%d", partition, n), Partition: partition,
			RecordCount: 1, FileSizeBytes: size}
	}

	snapshot := &table.Snapshot{
		DataFiles: []table.DataFile{
			file("p=1", 0, 10, table.ContentData),
			file("p=1", 1, 4096, table.ContentData),
			file("p=1", 2, 10, table.ContentData),
			file("p=2", 0, 10, table.ContentData),
			file("p=2", 1, 10, table.ContentData),
			file("p=2", 2, 10, table.ContentData),
			file("p=3", 0, 10, table.ContentData),
		},
		DeleteFiles: []table.DataFile{file("p=2", 3, 10, table.ContentPositionDeletes)},
	}

	job, ok := planJob(snapshot, opts)
	require.True(t, ok)
	assert.Equal(t, "p=1", job.Partition)
	assert.Equal(t, []table.DataFile{snapshot.DataFiles[0], snapshot.DataFiles[2]}, job.Sources)
	assert.Equal(t, "p=1", job.Output.Partition)
	assert.Equal(t, uint64(2), job.Output.RecordCount)
	assert.Contains(t, job.Output.Path, "data/p=1/compacted-")

	_, ok = planJob(&table.Snapshot{DataFiles: snapshot.DataFiles[3:]}, Options{MinInputFiles: 4, SmallFileBytes: 1024})
	assert.False(t, ok)
}

func TestExecutorRewritesSmallFiles(t *testing.T) {
	ctx := context.Background()
	tbl := newTable(t)
	a := writeFile(t, tbl, "p=1", 0, "alpha\n")
	b := writeFile(t, tbl, "p=1", 1, "beta\n")
	c := writeFile(t, tbl, "p=2", 0, "gamma\n")
	appendFiles(t, tbl, a, b, c)
	appendFiles(t, tbl, writeFile(t, tbl, "p=1", 2, "delta\n"))

	e := NewExecutor(tbl, testOptions())
	defer e.Stop()

	started, err := e.Execute(ctx)
	require.NoError(t, err)
	require.True(t, started)

	result := waitForResult(t, e)
	require.NoError(t, result.Error)
	assert.Equal(t, "p=1", result.Job.Partition)
	assert.Len(t, result.Job.Sources, 3)

	s := current(t, tbl)
	assert.Equal(t, table.OpReplace, s.Operation)
	require.Len(t, s.DataFiles, 2)
	assert.Equal(t, c, s.DataFiles[0])
	compacted := s.DataFiles[1]
	assert.Equal(t, result.Job.Output.Path, compacted.Path)
	assert.Equal(t, uint64(3), compacted.RecordCount)

	data, err := tbl.IO().Read(ctx, compacted.Path)
	require.NoError(t, err)
	assert.Equal(t, "alpha\nbeta\ndelta\n", string(data))
	assert.Equal(t, uint64(len(data)), compacted.FileSizeBytes)

	// A single file per partition is left, nothing to do.
	started, err = e.Execute(ctx)
	require.NoError(t, err)
	assert.False(t, started)
}

func TestExecutorReportsFailure(t *testing.T) {
	ctx := context.Background()
	tbl := newTable(t)
	a := writeFile(t, tbl, "p=1", 0, "alpha\n")
	missing := table.DataFile{Content: table.ContentData, Path: "data/p=1/missing.dat", Partition: "p=1",
		RecordCount: 1, FileSizeBytes: 10}
	appendFiles(t, tbl, a, missing)
	before := current(t, tbl)

	e := NewExecutor(tbl, testOptions())
	defer e.Stop()

	started, err := e.Execute(ctx)
	require.NoError(t, err)
	require.True(t, started)

	result := waitForResult(t, e)
	require.Error(t, result.Error)
	assert.Equal(t, before.ID, current(t, tbl).ID)
}

func TestExecutorSkipsEmptyTable(t *testing.T) {
	e := NewExecutor(newTable(t), testOptions())
	started, err := e.Execute(context.Background())
	require.NoError(t, err)
	assert.False(t, started)
	e.Stop()
}

func TestExecutorStopped(t *testing.T) {
	tbl := newTable(t)
	appendFiles(t, tbl, writeFile(t, tbl, "p=1", 0, "a"), writeFile(t, tbl, "p=1", 1, "b"))

	e := NewExecutor(tbl, testOptions())
	e.Stop()

	started, err := e.Execute(context.Background())
	require.NoError(t, err)
	assert.False(t, started)
}

func TestNewExecutorPanicsOnSingleInput(t *testing.T) {
	assert.Panics(t, func() {
		NewExecutor(newTable(t), Options{MinInputFiles: 1})
	})
}
