package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/kapetan-io/tackle/set"
	"github.com/samber/mo"

	"github.com/slatedb/slatesink/slatesink/coordinator"
	"github.com/slatedb/slatesink/slatesink/manifest"
	"github.com/slatedb/slatesink/slatesink/metrics"
	"github.com/slatedb/slatesink/slatesink/pending"
	"github.com/slatedb/slatesink/slatesink/table"
)

type Action string

const (
	// ActionNone means there was nothing pending to recover.
	ActionNone Action = "none"
	// ActionSkipped means the restored state carried no run id.
	ActionSkipped  Action = "skipped"
	ActionRollback Action = "rollback"
	ActionRecommit Action = "recommit"
)

// Outcome describes what RollbackAndRecover did to the table.
type Outcome struct {
	Action Action
	// Watermark is the highest checkpoint the restored run had committed
	// before recovery started.
	Watermark  mo.Option[uint64]
	RolledBack mo.Option[uint64]
	// Recommitted lists the pending checkpoints handed to the coordinator.
	Recommitted []uint64
}

type Options struct {
	Log     *slog.Logger
	Metrics metrics.Recorder
}

// Recoverer reconciles the pending checkpoints of a restored committer with
// what the table already holds.
type Recoverer struct {
	table       table.Table
	coordinator *coordinator.Coordinator
	opts        Options
}

func New(t table.Table, c *coordinator.Coordinator, opts Options) *Recoverer {
	set.Default(&opts.Log, slog.Default())
	set.Default(&opts.Metrics, metrics.Recorder(metrics.Noop{}))
	return &Recoverer{table: t, coordinator: c, opts: opts}
}

// RollbackAndRecover runs once before any new input is accepted. restored
// holds the pending checkpoints of the persisted state and is empty when it
// returns without error.
//
//	a: highest restored checkpoint, m: watermark of the restored run
//	a >= m: commit the restored checkpoints in (m, a]
//	a <  m: roll back to the snapshot of checkpoint a, or, when it has been
//	        expired, commit what cannot be proven committed
func (r *Recoverer) RollbackAndRecover(ctx context.Context, runID string, restored *pending.Store) (Outcome, error) {
	log := r.opts.Log

	if restored.IsEmpty() {
		return r.done(ctx, Outcome{Action: ActionNone}), nil
	}
	if runID == "" {
		log.Error("run id is missing from restored state, skip restore process",
			"pending_checkpoints", restored.Len())
		restored.Clear()
		return r.done(ctx, Outcome{Action: ActionSkipped}), nil
	}

	restoredID := restored.Max().MustGet()
	watermark, err := table.MaxCommittedCheckpointID(ctx, r.table, runID)
	if err != nil {
		return Outcome{}, fmt.Errorf("while reading watermark of run %s: %w", runID, err)
	}
	associated, err := table.SnapshotAssociatedWithCheckpoint(ctx, r.table, runID, restoredID)
	if err != nil {
		return Outcome{}, fmt.Errorf("while finding snapshot of checkpoint %d: %w", restoredID, err)
	}

	outcome := Outcome{Watermark: watermark}
	m, hasWatermark := watermark.Get()

	if hasWatermark && restoredID < m {
		if s, ok := associated.Get(); ok {
			log.Info("rollback committed snapshot", "snapshot_id", s.ID, "checkpoint_id", restoredID)
			if err := r.table.ManageSnapshots().RollbackTo(ctx, s.ID); err != nil {
				return Outcome{}, fmt.Errorf("while rolling back to snapshot %d: %w", s.ID, err)
			}
			outcome.Action = ActionRollback
			outcome.RolledBack = mo.Some(s.ID)
		} else {
			minID := restored.Min().MustGet()
			if m >= minID {
				log.Warn("it may have some repeat data between checkpoints",
					"from", minID, "to", m)
			}

			committed, err := FindEarliestUncommitted(ctx, r.table.IO(), restored.HeadUpTo(m, true))
			if err != nil {
				return Outcome{}, err
			}
			log.Info("snapshot has been expired, recover uncommitted checkpoints",
				"after", committed.OrElse(0),
				"restored_checkpoint_id", restoredID,
				"watermark", m,
				"min_pending_checkpoint_id", minID)

			entries := restored.Entries()
			if id, ok := committed.Get(); ok {
				entries = restored.TailAfter(id)
			}
			if outcome.Recommitted, err = r.recommit(ctx, runID, entries); err != nil {
				return Outcome{}, err
			}
			outcome.Action = ActionRecommit
		}
	} else {
		log.Info("recover uncommitted checkpoints",
			"watermark", watermark.OrElse(0),
			"restored_checkpoint_id", restoredID)
		entries := restored.Entries()
		if hasWatermark {
			entries = restored.TailAfter(m)
		}
		if outcome.Recommitted, err = r.recommit(ctx, runID, entries); err != nil {
			return Outcome{}, err
		}
		outcome.Action = ActionRecommit
	}

	restored.Clear()
	return r.done(ctx, outcome), nil
}

func (r *Recoverer) recommit(ctx context.Context, runID string, entries []pending.Entry) ([]uint64, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	ids := make([]uint64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.CheckpointID)
	}
	uncommitted := pending.FromEntries(entries)
	if err := r.coordinator.CommitUpTo(ctx, uncommitted, runID, slices.Max(ids)); err != nil {
		return nil, fmt.Errorf("while recommitting checkpoints %v: %w", ids, err)
	}
	return ids, nil
}

func (r *Recoverer) done(ctx context.Context, outcome Outcome) Outcome {
	r.opts.Metrics.RecordRecovery(ctx, string(outcome.Action))
	return outcome
}

// FindEarliestUncommitted scans entries from the highest checkpoint down and
// returns the first one with a manifest file that no longer exists. Manifests
// are only deleted after their checkpoint committed, so that checkpoint and
// everything before it are committed. None means no entry could be proven
// committed. Empty payloads are skipped.
func FindEarliestUncommitted(ctx context.Context, io table.FileIO, entries []pending.Entry) (mo.Option[uint64], error) {
	for _, e := range slices.Backward(entries) {
		if e.IsEmpty() {
			continue
		}
		d, err := manifest.ReadVersionAndDeserialize[manifest.DeltaManifests](manifest.DeltaManifestsSerializer{}, e.Payload)
		if err != nil {
			return mo.None[uint64](), fmt.Errorf("while decoding manifests of checkpoint %d: %w", e.CheckpointID, err)
		}
		for _, m := range d.Manifests() {
			exists, err := io.Exists(ctx, m.Path)
			if err != nil {
				return mo.None[uint64](), err
			}
			if !exists {
				return mo.Some(e.CheckpointID), nil
			}
		}
	}
	return mo.None[uint64](), nil
}
