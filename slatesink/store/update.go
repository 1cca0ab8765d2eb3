package store

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/samber/mo"

	"github.com/slatedb/slatesink/slatesink/common"
	"github.com/slatedb/slatesink/slatesink/table"
)

// update holds what every snapshot producing transaction shares.
type update struct {
	table      *Table
	properties map[string]string
	committed  bool
}

func (t *Table) newUpdate() update {
	return update{table: t, properties: map[string]string{}}
}

func (u *update) Set(key, value string) {
	u.properties[key] = value
}

func (u *update) commit(ctx context.Context, apply applyFunc) error {
	if u.committed {
		return fmt.Errorf("%w: transaction already committed", common.ErrInvalidState)
	}
	if err := u.table.commitSnapshot(ctx, u.properties, apply); err != nil {
		return err
	}
	u.committed = true
	return nil
}

func liveFiles(base mo.Option[*table.Snapshot]) (data, deletes []table.DataFile) {
	if b, ok := base.Get(); ok {
		return slices.Clone(b.DataFiles), slices.Clone(b.DeleteFiles)
	}
	return nil, nil
}

// ------------------------------------------------
// Append
// ------------------------------------------------

type appendFiles struct {
	update
	added []table.DataFile
}

func (a *appendFiles) AppendFile(file table.DataFile) {
	a.added = append(a.added, file)
}

func (a *appendFiles) Commit(ctx context.Context) error {
	return a.commit(ctx, func(base mo.Option[*table.Snapshot]) (changes, error) {
		data, deletes := liveFiles(base)
		return changes{
			operation:   table.OpAppend,
			dataFiles:   append(data, a.added...),
			deleteFiles: deletes,
			addedData:   a.added,
		}, nil
	})
}

// ------------------------------------------------
// ReplacePartitions
// ------------------------------------------------

type replacePartitions struct {
	update
	added []table.DataFile
}

func (r *replacePartitions) AddFile(file table.DataFile) {
	r.added = append(r.added, file)
}

func (r *replacePartitions) Commit(ctx context.Context) error {
	touched := make(map[string]struct{}, len(r.added))
	for _, f := range r.added {
		touched[f.Partition] = struct{}{}
	}
	inTouched := func(f table.DataFile) bool {
		_, ok := touched[f.Partition]
		return ok
	}

	return r.commit(ctx, func(base mo.Option[*table.Snapshot]) (changes, error) {
		data, deletes := liveFiles(base)
		var removed []table.DataFile
		for _, f := range data {
			if inTouched(f) {
				removed = append(removed, f)
			}
		}
		data = slices.DeleteFunc(data, inTouched)
		deletes = slices.DeleteFunc(deletes, inTouched)
		return changes{
			operation:   table.OpOverwrite,
			dataFiles:   append(data, r.added...),
			deleteFiles: deletes,
			addedData:   r.added,
			removedData: removed,
		}, nil
	})
}

// ------------------------------------------------
// RowDelta
// ------------------------------------------------

type rowDelta struct {
	update
	rows    []table.DataFile
	deletes []table.DataFile
}

func (r *rowDelta) AddRows(file table.DataFile) {
	r.rows = append(r.rows, file)
}

func (r *rowDelta) AddDeletes(file table.DataFile) {
	r.deletes = append(r.deletes, file)
}

func (r *rowDelta) Commit(ctx context.Context) error {
	op := table.OpAppend
	if len(r.deletes) > 0 {
		op = table.OpOverwrite
		if len(r.rows) == 0 {
			op = table.OpDelete
		}
	}
	return r.commit(ctx, func(base mo.Option[*table.Snapshot]) (changes, error) {
		data, deletes := liveFiles(base)
		return changes{
			operation:    op,
			dataFiles:    append(data, r.rows...),
			deleteFiles:  append(deletes, r.deletes...),
			addedData:    r.rows,
			addedDeletes: r.deletes,
		}, nil
	})
}

// ------------------------------------------------
// Rewrite
// ------------------------------------------------

type rewriteFiles struct {
	update
	removed []table.DataFile
	added   []table.DataFile
}

func (r *rewriteFiles) DeleteFile(file table.DataFile) {
	r.removed = append(r.removed, file)
}

func (r *rewriteFiles) AddFile(file table.DataFile) {
	r.added = append(r.added, file)
}

// Commit fails with common.ErrCommitConflict when a file being replaced is no
// longer live, for example because a partition overwrite removed it.
func (r *rewriteFiles) Commit(ctx context.Context) error {
	return r.commit(ctx, func(base mo.Option[*table.Snapshot]) (changes, error) {
		data, deletes := liveFiles(base)
		for _, f := range r.removed {
			idx := slices.IndexFunc(data, func(d table.DataFile) bool { return d.Path == f.Path })
			if idx < 0 {
				return changes{}, fmt.Errorf("%w: %s is no longer live", common.ErrCommitConflict, f.Path)
			}
			data = slices.Delete(data, idx, idx+1)
		}
		return changes{
			operation:   table.OpReplace,
			dataFiles:   append(data, r.added...),
			deleteFiles: deletes,
			addedData:   r.added,
			removedData: r.removed,
		}, nil
	})
}

// ------------------------------------------------
// ManageSnapshots
// ------------------------------------------------

type manageSnapshots struct {
	table *Table
}

// RollbackTo fails with common.ErrNotAncestor unless snapshotID is the current
// snapshot or one of its ancestors.
func (m manageSnapshots) RollbackTo(ctx context.Context, snapshotID uint64) error {
	isAncestor := false
	for s, err := range table.Ancestors(ctx, m.table) {
		if err != nil {
			return err
		}
		if s.ID == snapshotID {
			isAncestor = true
			break
		}
	}
	if !isAncestor {
		return fmt.Errorf("%w: %d", common.ErrNotAncestor, snapshotID)
	}

	return m.table.commitMetadata(ctx, func(md *metadataFile) error {
		if !md.hasSnapshot(snapshotID) {
			return fmt.Errorf("%w: %d", common.ErrSnapshotNotFound, snapshotID)
		}
		id := snapshotID
		md.CurrentSnapshotID = &id
		md.SnapshotLog = append(md.SnapshotLog, snapshotLogEntry{snapshotID, time.Now().UnixMilli()})
		return nil
	}, func() {
		m.table.log.Info("rolled back table", "snapshot_id", snapshotID)
	})
}
