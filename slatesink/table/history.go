package table

import (
	"context"
	"fmt"
	"iter"

	"github.com/samber/mo"

	"github.com/slatedb/slatesink/slatesink/common"
)

// Ancestors yields the current snapshot and then each parent in turn. The walk
// stops at the first error, which is yielded with a nil snapshot, or when a
// parent is no longer present in the table.
func Ancestors(ctx context.Context, t Table) iter.Seq2[*Snapshot, error] {
	return func(yield func(*Snapshot, error) bool) {
		current, err := t.CurrentSnapshot(ctx)
		if err != nil {
			yield(nil, err)
			return
		}
		for current.IsPresent() {
			snapshot := current.MustGet()
			if !yield(snapshot, nil) {
				return
			}
			parentID, ok := snapshot.ParentID.Get()
			if !ok {
				return
			}
			current, err = t.Snapshot(ctx, parentID)
			if err != nil {
				yield(nil, fmt.Errorf("while loading parent %d of snapshot %d: %w", parentID, snapshot.ID, err))
				return
			}
		}
	}
}

// MaxCommittedCheckpointID walks the history from the current snapshot and
// returns the committed checkpoint id of the newest snapshot written by runID.
// None means runID never committed to this table.
func MaxCommittedCheckpointID(ctx context.Context, t Table, runID string) (mo.Option[uint64], error) {
	for snapshot, err := range Ancestors(ctx, t) {
		if err != nil {
			return mo.None[uint64](), err
		}
		if snapshot.Summary[common.FlinkJobIDProperty] != runID {
			continue
		}
		if id, ok := snapshot.Uint64Property(common.MaxCommittedCheckpointIDProperty).Get(); ok {
			return mo.Some(id), nil
		}
	}
	return mo.None[uint64](), nil
}

// SnapshotAssociatedWithCheckpoint returns the snapshot written by runID that
// records checkpointID as its committed checkpoint, if it is still in the
// current history.
func SnapshotAssociatedWithCheckpoint(ctx context.Context, t Table, runID string, checkpointID uint64) (mo.Option[*Snapshot], error) {
	for snapshot, err := range Ancestors(ctx, t) {
		if err != nil {
			return mo.None[*Snapshot](), err
		}
		if snapshot.Summary[common.FlinkJobIDProperty] != runID {
			continue
		}
		id, ok := snapshot.Uint64Property(common.MaxCommittedCheckpointIDProperty).Get()
		if ok && id == checkpointID {
			return mo.Some(snapshot), nil
		}
	}
	return mo.None[*Snapshot](), nil
}
