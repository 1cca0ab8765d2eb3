package driver

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kapetan-io/tackle/set"
	"github.com/oklog/ulid/v2"
	"github.com/samber/mo"

	"github.com/slatedb/slatesink/internal/assert"
	"github.com/slatedb/slatesink/slatesink"
	"github.com/slatedb/slatesink/slatesink/common"
	"github.com/slatedb/slatesink/slatesink/config"
	"github.com/slatedb/slatesink/slatesink/manifest"
	"github.com/slatedb/slatesink/slatesink/table"
)

type Options struct {
	Log *slog.Logger
}

// Driver is a minimal in-process checkpoint mechanism. It assigns checkpoint
// ids, calls the committer hooks in order and persists committer state so a
// later job can resume where this one stopped.
type Driver struct {
	committer *slatesink.Committer
	backend   StateBackend
	log       *slog.Logger

	runID          string
	nextCheckpoint uint64
}

func New(c *slatesink.Committer, backend StateBackend, opts Options) *Driver {
	set.Default(&opts.Log, slog.Default())
	return &Driver{committer: c, backend: backend, log: opts.Log}
}

// Start initializes the committer under a new run id, restoring the latest
// saved state if there is one.
func (d *Driver) Start(ctx context.Context) error {
	d.runID = uuid.NewString()

	latest, err := d.backend.Latest(ctx)
	if err != nil {
		return err
	}
	restored := mo.None[[]byte]()
	restoredID := uint64(0)
	if s, ok := latest.Get(); ok {
		restored = mo.Some(s.Data)
		restoredID = s.CheckpointID
		d.log.Info("restoring committer state",
			"restored_run_id", s.RunID,
			"checkpoint_id", s.CheckpointID)
	}

	if err := d.committer.OnInitialize(ctx, d.runID, restored); err != nil {
		return err
	}
	d.nextCheckpoint = max(restoredID, d.committer.LastConfirmed()) + 1
	d.log.Info("started job", "run_id", d.runID, "next_checkpoint_id", d.nextCheckpoint)
	return nil
}

func (d *Driver) RunID() string {
	return d.runID
}

// Record hands a write result to the committer.
func (d *Driver) Record(result manifest.WriteResult) {
	d.committer.OnRecordArrival(result)
}

// Trigger injects a barrier and persists the resulting state. It returns the
// id of the checkpoint, which is complete but not yet confirmed.
func (d *Driver) Trigger(ctx context.Context) (uint64, error) {
	id := d.nextCheckpoint
	assert.True(id != common.EndInputCheckpointID, "checkpoint ids exhausted")

	data, err := d.committer.OnCheckpointBarrier(ctx, id)
	if err != nil {
		return 0, err
	}
	err = d.backend.Save(ctx, SavedState{
		CheckpointID: id,
		RunID:        d.runID,
		Data:         data,
		SavedAt:      time.Now(),
	})
	if err != nil {
		return 0, fmt.Errorf("while saving checkpoint %d: %w", id, err)
	}
	d.nextCheckpoint++
	return id, nil
}

// Confirm notifies the committer that checkpointID is complete.
func (d *Driver) Confirm(ctx context.Context, checkpointID uint64) error {
	return d.committer.OnCheckpointConfirmed(ctx, checkpointID)
}

// Checkpoint triggers a checkpoint and confirms it right away.
func (d *Driver) Checkpoint(ctx context.Context) (uint64, error) {
	id, err := d.Trigger(ctx)
	if err != nil {
		return 0, err
	}
	return id, d.Confirm(ctx, id)
}

// Finish commits everything left once the input is exhausted.
func (d *Driver) Finish(ctx context.Context) error {
	return d.committer.OnEndOfInput(ctx)
}

// Close disposes the committer. The backend stays open.
func (d *Driver) Close() error {
	return d.committer.OnDispose()
}

// OpenBackend returns the state backend named by cfg.
func OpenBackend(cfg config.DriverFile) (StateBackend, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return NewMemoryBackend(), nil
	case "sqlite":
		return NewSQLiteBackend(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("%w: unknown state backend %q", config.ErrInvalidOption, cfg.Backend)
	}
}

// WriteDataFile stores rows as a new data file of partition, one row per line.
func WriteDataFile(ctx context.Context, io table.FileIO, partition string, rows []string) (table.DataFile, error) {
	var b strings.Builder
	for _, r := range rows {
		b.WriteString(r)
		b.WriteByte('\n')
	}
	f := table.DataFile{
		Content:       table.ContentData,
		Path:          path.Join("data", partition, ulid.Make().String()+".dat"),
		Partition:     partition,
		RecordCount:   uint64(len(rows)),
		FileSizeBytes: uint64(b.Len()),
	}
	if err := io.Write(ctx, f.Path, []byte(b.String())); err != nil {
		return table.DataFile{}, err
	}
	return f, nil
}
