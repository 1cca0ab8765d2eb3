package slatesink

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/kapetan-io/tackle/set"
	"github.com/samber/mo"

	"github.com/slatedb/slatesink/internal"
	"github.com/slatedb/slatesink/internal/assert"
	"github.com/slatedb/slatesink/slatesink/common"
	"github.com/slatedb/slatesink/slatesink/compaction"
	"github.com/slatedb/slatesink/slatesink/config"
	"github.com/slatedb/slatesink/slatesink/coordinator"
	"github.com/slatedb/slatesink/slatesink/manifest"
	"github.com/slatedb/slatesink/slatesink/metrics"
	"github.com/slatedb/slatesink/slatesink/pending"
	"github.com/slatedb/slatesink/slatesink/recovery"
	"github.com/slatedb/slatesink/slatesink/table"
)

// Committer turns the write results of a streaming job into table snapshots,
// exactly once per checkpoint. The checkpoint mechanism calls its hooks from a
// single goroutine.
type Committer struct {
	loader table.Loader
	opts   config.Options
	log    *slog.Logger

	runID       string
	table       table.Table
	writer      *manifest.Writer
	pending     *pending.Store
	coordinator *coordinator.Coordinator
	compactor   *compaction.Executor

	// lastConfirmed is the highest checkpoint committed by this instance.
	lastConfirmed uint64
	initialized   bool
	disposed      bool
}

func NewCommitter(loader table.Loader, opts config.Options) *Committer {
	set.Default(&opts.Log, slog.Default())
	set.Default(&opts.Metrics, metrics.Recorder(metrics.Noop{}))
	return &Committer{
		loader:  loader,
		opts:    opts,
		log:     opts.Log,
		pending: pending.New(),
	}
}

// OnInitialize loads the table and prepares the committer for runID. When
// restored holds the state of a previous run, the table is reconciled with it
// before any new input is accepted.
func (c *Committer) OnInitialize(ctx context.Context, runID string, restored mo.Option[[]byte]) error {
	if c.disposed {
		return common.ErrDisposed
	}
	assert.True(!c.initialized, "committer initialized twice")
	if err := c.opts.Validate(); err != nil {
		return err
	}
	if runID == "" {
		return fmt.Errorf("%w: empty run id", config.ErrInvalidOption)
	}

	if err := c.loader.Open(ctx); err != nil {
		return err
	}
	t, err := c.loader.Load(ctx)
	if err != nil {
		return err
	}
	c.table = t
	c.runID = runID

	maxEmpty, err := propertyAsInt(t.Properties(), common.MaxContinuousEmptyCommitsProperty, c.opts.MaxContinuousEmptyCommits)
	if err != nil {
		return err
	}
	compactEnabled, err := propertyAsBool(t.Properties(), common.CompactEnabledProperty, false)
	if err != nil {
		return err
	}
	if compactEnabled || c.opts.CompactEnabled {
		c.compactor = compaction.NewExecutor(t, compaction.Options{
			MinInputFiles:  c.opts.Compaction.MinInputFiles,
			SmallFileBytes: c.opts.Compaction.SmallFileBytes,
			Timeout:        c.opts.Timeout,
			Log:            c.log,
		})
	}

	c.coordinator = coordinator.New(t, coordinator.Options{
		MaxContinuousEmptyCommits: maxEmpty,
		ReplacePartitions:         c.opts.ReplacePartitions,
		Log:                       c.log,
		Metrics:                   c.opts.Metrics,
	})
	factory := manifest.NewOutputFileFactory(runID, c.opts.OperatorID, c.opts.SubtaskIndex, c.opts.AttemptNumber)
	c.writer = manifest.NewWriter(t.IO(), factory, manifest.WriterOptions{
		Codec: c.opts.ManifestCompression,
		Log:   c.log,
	})
	c.initialized = true

	data, ok := restored.Get()
	if !ok {
		return nil
	}
	return c.restore(ctx, data)
}

func (c *Committer) restore(ctx context.Context, data []byte) error {
	state, err := DecodeState(data)
	if err != nil {
		return err
	}
	restored := pending.FromEntries(state.Checkpoints)

	r := recovery.New(c.table, c.coordinator, recovery.Options{Log: c.log, Metrics: c.opts.Metrics})
	outcome, err := r.RollbackAndRecover(ctx, state.RunID, restored)
	if err != nil {
		return err
	}
	c.log.Info("restored committer",
		"restored_run_id", state.RunID,
		"run_id", c.runID,
		"action", outcome.Action,
		"recommitted", outcome.Recommitted)
	if outcome.Action == recovery.ActionNone || outcome.Action == recovery.ActionSkipped {
		return nil
	}

	// Checkpoint ids of the new run continue after the restored watermark.
	c.lastConfirmed = outcome.Watermark.OrElse(0)
	committed, err := table.MaxCommittedCheckpointID(ctx, c.table, state.RunID)
	if err != nil {
		return err
	}
	c.lastConfirmed = max(c.lastConfirmed, committed.OrElse(0))
	return nil
}

// OnRecordArrival buffers a write result of the open checkpoint interval.
func (c *Committer) OnRecordArrival(result manifest.WriteResult) {
	assert.True(c.initialized && !c.disposed, "committer is not running")
	c.writer.Record(result)
}

// OnCheckpointBarrier flushes the open interval into manifests and returns the
// state to persist for checkpointID. A repeated barrier for the same
// checkpoint keeps everything the earlier one flushed.
func (c *Committer) OnCheckpointBarrier(ctx context.Context, checkpointID uint64) ([]byte, error) {
	if err := c.checkRunning(); err != nil {
		return nil, err
	}
	c.log.Info("start to flush snapshot state", "table", c.table.Name(), "checkpoint_id", checkpointID)

	if checkpointID <= c.lastConfirmed {
		return nil, fmt.Errorf("%w: checkpoint %d is already committed", common.ErrInvalidState, checkpointID)
	}
	if last, ok := c.pending.Max().Get(); ok && checkpointID < last {
		return nil, fmt.Errorf("%w: barrier for checkpoint %d after checkpoint %d",
			common.ErrInvalidState, checkpointID, last)
	}

	payload, err := c.writer.Flush(ctx, checkpointID)
	if err != nil {
		return nil, fmt.Errorf("while flushing checkpoint %d: %w", checkpointID, err)
	}
	// A repeated barrier never downgrades a flushed checkpoint to empty.
	if stored, ok := c.pending.Get(checkpointID).Get(); ok && len(stored) != 0 && len(payload) == 0 {
		payload = stored
	}
	c.pending.Put(checkpointID, payload)
	return EncodeState(State{RunID: c.runID, Checkpoints: c.pending.Entries()})
}

// OnCheckpointConfirmed commits every pending checkpoint up to checkpointID.
// Confirmations may arrive out of order; one at or below the last committed
// checkpoint is a no-op.
func (c *Committer) OnCheckpointConfirmed(ctx context.Context, checkpointID uint64) error {
	if err := c.checkRunning(); err != nil {
		return err
	}
	if checkpointID <= c.lastConfirmed {
		c.log.Debug("checkpoint already committed",
			"checkpoint_id", checkpointID,
			"last_confirmed", c.lastConfirmed)
		return nil
	}

	if err := c.coordinator.CommitUpTo(ctx, c.pending, c.runID, checkpointID); err != nil {
		if internal.IsRetryable(err) {
			c.log.Warn("transient failure while committing. checkpoints stay pending",
				"checkpoint_id", checkpointID,
				"error", err)
		}
		return err
	}
	c.lastConfirmed = checkpointID
	c.compact(ctx)
	return nil
}

// OnEndOfInput commits everything buffered and pending once bounded input has
// been fully consumed.
func (c *Committer) OnEndOfInput(ctx context.Context) error {
	if err := c.checkRunning(); err != nil {
		return err
	}
	payload, err := c.writer.Flush(ctx, common.EndInputCheckpointID)
	if err != nil {
		return fmt.Errorf("while flushing final checkpoint: %w", err)
	}
	c.pending.Put(common.EndInputCheckpointID, payload)
	return c.coordinator.CommitUpTo(ctx, c.pending, c.runID, common.EndInputCheckpointID)
}

// OnDispose waits for a running compaction and releases the table. Every hook
// fails with common.ErrDisposed afterwards.
func (c *Committer) OnDispose() error {
	if c.disposed {
		return nil
	}
	c.disposed = true
	if c.compactor != nil {
		c.compactor.Stop()
	}
	return c.loader.Close()
}

func (c *Committer) compact(ctx context.Context) {
	if c.compactor == nil {
		return
	}
	if _, err := c.compactor.Execute(ctx); err != nil {
		c.log.Warn("failed to start compaction", "error", err)
	}
}

func (c *Committer) checkRunning() error {
	if c.disposed {
		return common.ErrDisposed
	}
	if !c.initialized {
		return fmt.Errorf("%w: committer is not initialized", common.ErrInvalidState)
	}
	return nil
}

func (c *Committer) RunID() string {
	return c.runID
}

// LastConfirmed is the highest checkpoint committed by this committer, zero
// before the first commit.
func (c *Committer) LastConfirmed() uint64 {
	return c.lastConfirmed
}

// PendingCheckpoints returns the checkpoints flushed but not yet committed.
func (c *Committer) PendingCheckpoints() []pending.Entry {
	return c.pending.Entries()
}

func (c *Committer) Table() table.Table {
	return c.table
}

func propertyAsInt(props map[string]string, key string, defaultValue int) (int, error) {
	v, ok := props[key]
	if !ok {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: table property %s=%q", config.ErrInvalidOption, key, v)
	}
	return n, nil
}

func propertyAsBool(props map[string]string, key string, defaultValue bool) (bool, error) {
	v, ok := props[key]
	if !ok {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: table property %s=%q", config.ErrInvalidOption, key, v)
	}
	return b, nil
}
