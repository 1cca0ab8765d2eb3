package table

import (
	"context"
	"strconv"

	"github.com/samber/mo"
)

// FileContent distinguishes data files from the two kinds of delete files.
type FileContent int8

const (
	ContentData FileContent = iota
	ContentPositionDeletes
	ContentEqualityDeletes
)

func (c FileContent) String() string {
	switch c {
	case ContentData:
		return "data"
	case ContentPositionDeletes:
		return "position-deletes"
	case ContentEqualityDeletes:
		return "equality-deletes"
	default:
		return "unknown"
	}
}

func (c FileContent) IsDelete() bool {
	return c == ContentPositionDeletes || c == ContentEqualityDeletes
}

// DataFile describes one immutable file written by a sink writer.
type DataFile struct {
	Content       FileContent `json:"content"`
	Path          string      `json:"path"`
	Partition     string      `json:"partition,omitempty"`
	RecordCount   uint64      `json:"record_count"`
	FileSizeBytes uint64      `json:"file_size_bytes"`
}

type Operation string

const (
	OpAppend    Operation = "append"
	OpOverwrite Operation = "overwrite"
	OpDelete    Operation = "delete"
	OpReplace   Operation = "replace"
)

// Snapshot is one immutable version of the table. DataFiles and DeleteFiles
// hold the live file set as of this snapshot.
type Snapshot struct {
	ID             uint64
	ParentID       mo.Option[uint64]
	SequenceNumber uint64
	TimestampMS    int64
	Operation      Operation
	Summary        map[string]string
	DataFiles      []DataFile
	DeleteFiles    []DataFile
}

func (s *Snapshot) Property(key string) mo.Option[string] {
	v, ok := s.Summary[key]
	if !ok {
		return mo.None[string]()
	}
	return mo.Some(v)
}

// Uint64Property parses a numeric summary property. A missing or malformed
// value is reported as absent.
func (s *Snapshot) Uint64Property(key string) mo.Option[uint64] {
	v, ok := s.Summary[key]
	if !ok {
		return mo.None[uint64]()
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return mo.None[uint64]()
	}
	return mo.Some(n)
}

// FileIO is the file access a committer needs from the table's storage.
type FileIO interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
}

// Table is a snapshot-versioned table whose transactions are atomic. Concurrent
// commits from different instances are serialized by the table.
type Table interface {
	Name() string
	Location() string
	Properties() map[string]string

	CurrentSnapshot(ctx context.Context) (mo.Option[*Snapshot], error)
	Snapshot(ctx context.Context, id uint64) (mo.Option[*Snapshot], error)
	Refresh(ctx context.Context) error

	NewAppend() AppendFiles
	NewReplacePartitions() ReplacePartitions
	NewRowDelta() RowDelta
	NewRewrite() RewriteFiles
	ManageSnapshots() ManageSnapshots

	IO() FileIO
}

// SnapshotUpdate is a pending table transaction. Properties given to Set end
// up in the summary of the snapshot produced by Commit. A failed Commit leaves
// the table unchanged.
type SnapshotUpdate interface {
	Set(key, value string)
	Commit(ctx context.Context) error
}

type AppendFiles interface {
	SnapshotUpdate
	AppendFile(file DataFile)
}

// ReplacePartitions replaces every live data file in the partitions touched by
// the added files.
type ReplacePartitions interface {
	SnapshotUpdate
	AddFile(file DataFile)
}

type RowDelta interface {
	SnapshotUpdate
	AddRows(file DataFile)
	AddDeletes(file DataFile)
}

// RewriteFiles swaps a set of live data files for new ones holding the same
// rows.
type RewriteFiles interface {
	SnapshotUpdate
	DeleteFile(file DataFile)
	AddFile(file DataFile)
}

type ManageSnapshots interface {
	// RollbackTo makes an ancestor of the current snapshot current again.
	RollbackTo(ctx context.Context, snapshotID uint64) error
}

// Loader opens a table and releases its resources when the owner is done.
type Loader interface {
	Open(ctx context.Context) error
	Load(ctx context.Context) (Table, error)
	Close() error
}
