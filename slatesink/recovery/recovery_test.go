package recovery_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thanos-io/objstore"

	"github.com/slatedb/slatesink/slatesink/common"
	"github.com/slatedb/slatesink/slatesink/coordinator"
	"github.com/slatedb/slatesink/slatesink/manifest"
	"github.com/slatedb/slatesink/slatesink/metrics"
	"github.com/slatedb/slatesink/slatesink/pending"
	"github.com/slatedb/slatesink/slatesink/recovery"
	"github.com/slatedb/slatesink/slatesink/store"
	"github.com/slatedb/slatesink/slatesink/table"
)

const runID = "run-1"

type harness struct {
	t           *testing.T
	table       *store.Table
	coordinator *coordinator.Coordinator
	recorder    *actionRecorder
	recoverer   *recovery.Recoverer
}

func newHarness(t *testing.T) *harness {
	tbl, err := store.CreateTable(context.Background(), objstore.NewInMemBucket(), "warehouse/db/events", nil,
		store.DefaultTableOptions())
	require.NoError(t, err)

	rec := &actionRecorder{}
	c := coordinator.New(tbl, coordinator.Options{MaxContinuousEmptyCommits: 10})
	return &harness{
		t:           t,
		table:       tbl,
		coordinator: c,
		recorder:    rec,
		recoverer:   recovery.New(tbl, c, recovery.Options{Metrics: rec}),
	}
}

func dataFile(checkpointID uint64) table.DataFile {
	return table.DataFile{
		Content:       table.ContentData,
		Path:          fmt.Sprintf("data/p=1/%05d.dat", checkpointID),
		Partition:     "p=1",
		RecordCount:   10,
		FileSizeBytes: 1024,
	}
}

// payload writes the manifest of one data file for checkpointID.
func (h *harness) payload(checkpointID uint64) []byte {
	w := manifest.NewWriter(h.table.IO(), manifest.NewOutputFileFactory(runID, "sink", 0, 0), manifest.WriterOptions{})
	w.Record(manifest.WriteResult{DataFiles: []table.DataFile{dataFile(checkpointID)}})
	p, err := w.Flush(context.Background(), checkpointID)
	require.NoError(h.t, err)
	return p
}

// commit runs checkpoints through the coordinator as a live committer would
// and returns their payloads.
func (h *harness) commit(ids ...uint64) map[uint64][]byte {
	payloads := make(map[uint64][]byte)
	for _, id := range ids {
		p := pending.New()
		payloads[id] = h.payload(id)
		p.Put(id, payloads[id])
		require.NoError(h.t, h.coordinator.CommitUpTo(context.Background(), p, runID, id))
	}
	return payloads
}

func (h *harness) current() *table.Snapshot {
	s, err := h.table.CurrentSnapshot(context.Background())
	require.NoError(h.t, err)
	require.True(h.t, s.IsPresent())
	return s.MustGet()
}

func (h *harness) watermark() uint64 {
	id, err := table.MaxCommittedCheckpointID(context.Background(), h.table, runID)
	require.NoError(h.t, err)
	return id.MustGet()
}

type actionRecorder struct {
	metrics.Noop
	actions []string
}

func (a *actionRecorder) RecordRecovery(_ context.Context, action string) {
	a.actions = append(a.actions, action)
}

func TestRecoverNothingPending(t *testing.T) {
	h := newHarness(t)

	out, err := h.recoverer.RollbackAndRecover(context.Background(), runID, pending.New())
	require.NoError(t, err)
	assert.Equal(t, recovery.ActionNone, out.Action)
	assert.Equal(t, []string{"none"}, h.recorder.actions)
}

func TestRecoverSkipsMissingRunID(t *testing.T) {
	h := newHarness(t)
	restored := pending.FromEntries([]pending.Entry{{CheckpointID: 1, Payload: h.payload(1)}})

	out, err := h.recoverer.RollbackAndRecover(context.Background(), "", restored)
	require.NoError(t, err)
	assert.Equal(t, recovery.ActionSkipped, out.Action)
	assert.True(t, restored.IsEmpty())

	s, err := h.table.CurrentSnapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, s.IsAbsent())
}

func TestRecoverCommitsCheckpointsAfterWatermark(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	payloads := h.commit(1, 2, 3)
	require.Equal(t, uint64(3), h.watermark())

	restored := pending.FromEntries([]pending.Entry{
		{CheckpointID: 3, Payload: payloads[3]},
		{CheckpointID: 4, Payload: h.payload(4)},
		{CheckpointID: 5, Payload: h.payload(5)},
	})
	out, err := h.recoverer.RollbackAndRecover(ctx, runID, restored)
	require.NoError(t, err)

	assert.Equal(t, recovery.ActionRecommit, out.Action)
	assert.Equal(t, uint64(3), out.Watermark.MustGet())
	assert.Equal(t, []uint64{4, 5}, out.Recommitted)
	assert.True(t, restored.IsEmpty())

	s := h.current()
	assert.Equal(t, runID, s.Summary[common.FlinkJobIDProperty])
	assert.Equal(t, uint64(5), h.watermark())
	assert.Equal(t, []table.DataFile{dataFile(1), dataFile(2), dataFile(3), dataFile(4), dataFile(5)}, s.DataFiles)
	assert.Equal(t, []string{"recommit"}, h.recorder.actions)
}

func TestRecoverWithoutWatermarkCommitsEverything(t *testing.T) {
	h := newHarness(t)

	restored := pending.FromEntries([]pending.Entry{
		{CheckpointID: 1, Payload: h.payload(1)},
		{CheckpointID: 2, Payload: manifest.EmptyPayload},
	})
	out, err := h.recoverer.RollbackAndRecover(context.Background(), runID, restored)
	require.NoError(t, err)

	assert.True(t, out.Watermark.IsAbsent())
	assert.Equal(t, []uint64{1, 2}, out.Recommitted)
	assert.Equal(t, uint64(2), h.watermark())
	assert.Equal(t, []table.DataFile{dataFile(1)}, h.current().DataFiles)
}

func TestRecoverRollsBackToRestoredCheckpoint(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	payloads := h.commit(3)
	restoredSnapshot := h.current()
	h.commit(4, 5)
	require.Equal(t, uint64(5), h.watermark())

	restored := pending.FromEntries([]pending.Entry{{CheckpointID: 3, Payload: payloads[3]}})
	out, err := h.recoverer.RollbackAndRecover(ctx, runID, restored)
	require.NoError(t, err)

	assert.Equal(t, recovery.ActionRollback, out.Action)
	assert.Equal(t, uint64(5), out.Watermark.MustGet())
	assert.Equal(t, restoredSnapshot.ID, out.RolledBack.MustGet())
	assert.Empty(t, out.Recommitted)
	assert.True(t, restored.IsEmpty())

	assert.Equal(t, restoredSnapshot.ID, h.current().ID)
	assert.Equal(t, uint64(3), h.watermark())
	assert.Equal(t, []table.DataFile{dataFile(3)}, h.current().DataFiles)
}

func TestRecoverExpiredSnapshotCommitsUnprovenCheckpoints(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	payloads := h.commit(1, 2)
	// Flushed but never committed by the failed run.
	orphan := h.payload(3)
	h.commit(4, 5)
	require.Equal(t, uint64(5), h.watermark())

	restored := pending.FromEntries([]pending.Entry{
		{CheckpointID: 2, Payload: payloads[2]},
		{CheckpointID: 3, Payload: orphan},
	})
	out, err := h.recoverer.RollbackAndRecover(ctx, runID, restored)
	require.NoError(t, err)

	assert.Equal(t, recovery.ActionRecommit, out.Action)
	assert.True(t, out.RolledBack.IsAbsent())
	assert.Equal(t, []uint64{3}, out.Recommitted)
	assert.True(t, restored.IsEmpty())

	s := h.current()
	assert.Equal(t, uint64(3), s.Uint64Property(common.MaxCommittedCheckpointIDProperty).MustGet())
	assert.Contains(t, s.DataFiles, dataFile(3))
	assert.Len(t, s.DataFiles, 5)
}

func TestRecoverExpiredSnapshotNothingProvenCommitted(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.commit(1, 4)

	// Manifests of 2 and 3 are still present, nothing can be proven committed.
	restored := pending.FromEntries([]pending.Entry{
		{CheckpointID: 2, Payload: h.payload(2)},
		{CheckpointID: 3, Payload: h.payload(3)},
	})
	out, err := h.recoverer.RollbackAndRecover(ctx, runID, restored)
	require.NoError(t, err)

	assert.Equal(t, []uint64{2, 3}, out.Recommitted)
	assert.Len(t, h.current().DataFiles, 4)
}

func TestFindEarliestUncommitted(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	committed := h.commit(1, 2)
	entries := []pending.Entry{
		{CheckpointID: 1, Payload: committed[1]},
		{CheckpointID: 2, Payload: committed[2]},
		{CheckpointID: 3, Payload: h.payload(3)},
		{CheckpointID: 4, Payload: manifest.EmptyPayload},
	}

	id, err := recovery.FindEarliestUncommitted(ctx, h.table.IO(), entries)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), id.MustGet())

	id, err = recovery.FindEarliestUncommitted(ctx, h.table.IO(), entries[2:])
	require.NoError(t, err)
	assert.True(t, id.IsAbsent())

	_, err = recovery.FindEarliestUncommitted(ctx, h.table.IO(), []pending.Entry{{CheckpointID: 5, Payload: []byte{1, 2}}})
	assert.Error(t, err)
}
