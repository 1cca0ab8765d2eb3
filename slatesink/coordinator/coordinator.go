package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/kapetan-io/tackle/set"
	"golang.org/x/sync/errgroup"

	"github.com/slatedb/slatesink/internal/assert"
	"github.com/slatedb/slatesink/internal/types"
	"github.com/slatedb/slatesink/slatesink/common"
	"github.com/slatedb/slatesink/slatesink/manifest"
	"github.com/slatedb/slatesink/slatesink/metrics"
	"github.com/slatedb/slatesink/slatesink/pending"
	"github.com/slatedb/slatesink/slatesink/table"
)

const maxConcurrentManifestReads = 8

type Options struct {
	// MaxContinuousEmptyCommits must be positive.
	MaxContinuousEmptyCommits int
	ReplacePartitions         bool
	Log                       *slog.Logger
	Metrics                   metrics.Recorder
}

// Coordinator folds pending checkpoints into table transactions. It is owned
// by one committer and is not safe for concurrent use.
type Coordinator struct {
	table table.Table
	opts  Options
	log   *slog.Logger

	continuousEmptyCheckpoints int
}

func New(t table.Table, opts Options) *Coordinator {
	assert.True(opts.MaxContinuousEmptyCommits > 0,
		"%s must be positive, got %d", common.MaxContinuousEmptyCommitsProperty, opts.MaxContinuousEmptyCommits)
	set.Default(&opts.Log, slog.Default())
	set.Default(&opts.Metrics, metrics.Recorder(metrics.Noop{}))

	return &Coordinator{
		table: t,
		opts:  opts,
		log:   opts.Log,
	}
}

// ContinuousEmptyCheckpoints is the current streak of empty checkpoints that
// did not produce a snapshot.
func (c *Coordinator) ContinuousEmptyCheckpoints() int {
	return c.continuousEmptyCheckpoints
}

type checkpointResult struct {
	checkpointID uint64
	result       manifest.WriteResult
	manifests    []manifest.File
}

// CommitUpTo commits every pending checkpoint up to and including
// checkpointID, recording runID and checkpointID on the produced snapshots.
// On success the committed entries are removed from store and their manifest
// files are deleted. On failure nothing that was not committed is removed.
func (c *Coordinator) CommitUpTo(ctx context.Context, store *pending.Store, runID string, checkpointID uint64) error {
	results, err := c.readPending(ctx, store.HeadUpTo(checkpointID, true))
	if err != nil {
		return err
	}

	totalFiles := 0
	for _, r := range results {
		totalFiles += r.result.TotalFiles()
	}

	// A failed commit leaves the streak unchanged.
	streak := 0
	if totalFiles == 0 {
		streak = c.continuousEmptyCheckpoints + 1
	}

	if totalFiles != 0 || streak%c.opts.MaxContinuousEmptyCommits == 0 {
		if c.opts.ReplacePartitions {
			err = c.replacePartitions(ctx, results, runID, checkpointID)
		} else {
			err = c.commitDeltaTxn(ctx, store, results, runID, checkpointID)
		}
		if err != nil {
			return err
		}
		c.continuousEmptyCheckpoints = 0
	} else {
		c.continuousEmptyCheckpoints = streak
		c.opts.Metrics.RecordEmptySkip(ctx)
		c.log.Debug("skipped empty commit",
			"checkpoint_id", checkpointID,
			"continuous_empty_checkpoints", c.continuousEmptyCheckpoints)
	}

	store.RemoveUpTo(checkpointID, true)
	c.logCleanupWarnings(c.deleteManifests(ctx, results), runID, checkpointID)
	return nil
}

// readPending decodes the non empty entries and reads their manifests
// concurrently. Results keep the order of entries.
func (c *Coordinator) readPending(ctx context.Context, entries []pending.Entry) ([]checkpointResult, error) {
	results := make([]checkpointResult, 0, len(entries))
	deltas := make([]manifest.DeltaManifests, 0, len(entries))
	for _, e := range entries {
		if e.IsEmpty() {
			continue
		}
		d, err := manifest.ReadVersionAndDeserialize[manifest.DeltaManifests](manifest.DeltaManifestsSerializer{}, e.Payload)
		if err != nil {
			return nil, fmt.Errorf("while decoding manifests of checkpoint %d: %w", e.CheckpointID, err)
		}
		results = append(results, checkpointResult{checkpointID: e.CheckpointID, manifests: d.Manifests()})
		deltas = append(deltas, d)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentManifestReads)
	for i := range results {
		g.Go(func() error {
			r, err := manifest.ReadCompletedFiles(gctx, c.table.IO(), deltas[i])
			if err != nil {
				return fmt.Errorf("while reading manifests of checkpoint %d: %w", results[i].checkpointID, err)
			}
			results[i].result = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Coordinator) replacePartitions(ctx context.Context, results []checkpointResult, runID string, checkpointID uint64) error {
	deleteFiles := 0
	for _, r := range results {
		deleteFiles += len(r.result.DeleteFiles)
	}
	assert.True(deleteFiles == 0, "Cannot overwrite partitions with delete files.")

	overwrite := c.table.NewReplacePartitions()
	dataFiles := 0
	for _, r := range results {
		assert.True(len(r.result.ReferencedDataFiles) == 0, "Should have no referenced data files.")
		dataFiles += len(r.result.DataFiles)
		for _, f := range r.result.DataFiles {
			overwrite.AddFile(f)
		}
	}
	return c.commitOperation(ctx, overwrite, dataFiles, 0, "dynamic partition overwrite", runID, checkpointID)
}

func (c *Coordinator) commitDeltaTxn(ctx context.Context, store *pending.Store, results []checkpointResult,
	runID string, checkpointID uint64) error {

	deleteFiles := 0
	for _, r := range results {
		deleteFiles += len(r.result.DeleteFiles)
	}

	if deleteFiles == 0 {
		appendFiles := c.table.NewAppend()
		dataFiles := 0
		for _, r := range results {
			assert.True(len(r.result.ReferencedDataFiles) == 0, "Should have no referenced data files.")
			dataFiles += len(r.result.DataFiles)
			for _, f := range r.result.DataFiles {
				appendFiles.AppendFile(f)
			}
		}
		return c.commitOperation(ctx, appendFiles, dataFiles, 0, "append", runID, checkpointID)
	}

	// Equality deletes of a later checkpoint must apply to the rows of an
	// earlier one, so every checkpoint gets its own sequence number.
	var warn types.ErrWarn
	defer c.logCleanupWarnings(&warn, runID, checkpointID)
	for i := range results {
		r := results[i]
		rowDelta := c.table.NewRowDelta()
		for _, f := range r.result.DataFiles {
			rowDelta.AddRows(f)
		}
		for _, f := range r.result.DeleteFiles {
			rowDelta.AddDeletes(f)
		}
		err := c.commitOperation(ctx, rowDelta, len(r.result.DataFiles), len(r.result.DeleteFiles),
			"rowDelta", runID, r.checkpointID)
		if err != nil {
			return err
		}
		// A later group may still fail, do not commit this one twice.
		store.RemoveUpTo(r.checkpointID, true)
		warn.Merge(c.deleteManifests(ctx, results[i:i+1]))
	}
	return nil
}

func (c *Coordinator) commitOperation(ctx context.Context, op table.SnapshotUpdate, dataFiles, deleteFiles int,
	description, runID string, checkpointID uint64) error {

	c.log.Info("committing "+description,
		"data_files", dataFiles,
		"delete_files", deleteFiles,
		"table", c.table.Name(),
		"checkpoint_id", checkpointID)
	op.Set(common.MaxCommittedCheckpointIDProperty, strconv.FormatUint(checkpointID, 10))
	op.Set(common.FlinkJobIDProperty, runID)

	start := time.Now()
	err := op.Commit(ctx)
	duration := time.Since(start)
	c.opts.Metrics.RecordCommit(ctx, description, dataFiles, deleteFiles, duration, err)
	if err != nil {
		return fmt.Errorf("while committing %s up to checkpoint %d: %w", description, checkpointID, err)
	}
	c.log.Info("committed", "duration_ms", duration.Milliseconds(), "checkpoint_id", checkpointID)
	return nil
}

// deleteManifests removes manifest files of committed checkpoints. Failures
// do not fail the commit, the transaction is already durable.
func (c *Coordinator) deleteManifests(ctx context.Context, results []checkpointResult) *types.ErrWarn {
	var warn types.ErrWarn
	for i := range results {
		for _, m := range results[i].manifests {
			if err := c.table.IO().Delete(ctx, m.Path); err != nil {
				c.opts.Metrics.RecordManifestCleanupFailure(ctx)
				warn.Add("%s: %s", m.Path, err)
			}
		}
		results[i].manifests = nil
	}
	return &warn
}

func (c *Coordinator) logCleanupWarnings(warn *types.ErrWarn, runID string, checkpointID uint64) {
	if warn.Len() == 0 {
		return
	}
	c.log.Warn("the transaction has been committed, but failed to clean the temporary manifests",
		"run_id", runID,
		"checkpoint_id", checkpointID,
		"manifests", warn.Len(),
		"error", warn.If())
}
