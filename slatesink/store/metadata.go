package store

import (
	"fmt"
	"maps"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/mo"
	"github.com/segmentio/encoding/json"

	"github.com/slatedb/slatesink/slatesink/common"
	"github.com/slatedb/slatesink/slatesink/table"
)

const (
	metadataDir    = "metadata"
	snapshotDir    = "snapshots"
	metadataSuffix = ".metadata.json"
	snapshotSuffix = ".snapshot.json"
	formatVersion  = 2
)

type snapshotLogEntry struct {
	SnapshotID  uint64 `json:"snapshot-id"`
	TimestampMS int64  `json:"timestamp-ms"`
}

// metadataFile is the JSON document stored at metadata/<version>.metadata.json.
// Each table transaction writes exactly one new version.
type metadataFile struct {
	FormatVersion      int                `json:"format-version"`
	TableUUID          string             `json:"table-uuid"`
	Location           string             `json:"location"`
	LastSequenceNumber uint64             `json:"last-sequence-number"`
	LastUpdatedMS      int64              `json:"last-updated-ms"`
	CurrentSnapshotID  *uint64            `json:"current-snapshot-id,omitempty"`
	Properties         map[string]string  `json:"properties"`
	Snapshots          []uint64           `json:"snapshots"`
	SnapshotLog        []snapshotLogEntry `json:"snapshot-log"`
}

func (m *metadataFile) clone() *metadataFile {
	c := *m
	c.Properties = maps.Clone(m.Properties)
	c.Snapshots = slices.Clone(m.Snapshots)
	c.SnapshotLog = slices.Clone(m.SnapshotLog)
	if m.CurrentSnapshotID != nil {
		id := *m.CurrentSnapshotID
		c.CurrentSnapshotID = &id
	}
	return &c
}

func (m *metadataFile) currentSnapshotID() mo.Option[uint64] {
	if m.CurrentSnapshotID == nil {
		return mo.None[uint64]()
	}
	return mo.Some(*m.CurrentSnapshotID)
}

func (m *metadataFile) hasSnapshot(id uint64) bool {
	return slices.Contains(m.Snapshots, id)
}

// snapshotFile is the JSON document stored at snapshots/<id>.snapshot.json.
type snapshotFile struct {
	SnapshotID       uint64            `json:"snapshot-id"`
	ParentSnapshotID *uint64           `json:"parent-snapshot-id,omitempty"`
	SequenceNumber   uint64            `json:"sequence-number"`
	TimestampMS      int64             `json:"timestamp-ms"`
	Operation        table.Operation   `json:"operation"`
	Summary          map[string]string `json:"summary"`
	DataFiles        []table.DataFile  `json:"data-files"`
	DeleteFiles      []table.DataFile  `json:"delete-files"`
}

func encodeMetadata(m *metadataFile) ([]byte, error) {
	return json.Marshal(m)
}

func decodeMetadata(data []byte) (*metadataFile, error) {
	var m metadataFile
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: while decoding table metadata: %s", common.ErrInvalidState, err)
	}
	if m.FormatVersion > formatVersion {
		return nil, fmt.Errorf("%w: table format version %d", common.ErrUnsupportedVersion, m.FormatVersion)
	}
	if m.Properties == nil {
		m.Properties = map[string]string{}
	}
	return &m, nil
}

func encodeSnapshot(s *table.Snapshot) ([]byte, error) {
	f := snapshotFile{
		SnapshotID:     s.ID,
		SequenceNumber: s.SequenceNumber,
		TimestampMS:    s.TimestampMS,
		Operation:      s.Operation,
		Summary:        s.Summary,
		DataFiles:      s.DataFiles,
		DeleteFiles:    s.DeleteFiles,
	}
	if parent, ok := s.ParentID.Get(); ok {
		f.ParentSnapshotID = &parent
	}
	return json.Marshal(&f)
}

func decodeSnapshot(data []byte) (*table.Snapshot, error) {
	var f snapshotFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: while decoding snapshot: %s", common.ErrInvalidState, err)
	}
	s := &table.Snapshot{
		ID:             f.SnapshotID,
		ParentID:       mo.None[uint64](),
		SequenceNumber: f.SequenceNumber,
		TimestampMS:    f.TimestampMS,
		Operation:      f.Operation,
		Summary:        f.Summary,
		DataFiles:      f.DataFiles,
		DeleteFiles:    f.DeleteFiles,
	}
	if f.ParentSnapshotID != nil {
		s.ParentID = mo.Some(*f.ParentSnapshotID)
	}
	if s.Summary == nil {
		s.Summary = map[string]string{}
	}
	return s, nil
}

func metadataPath(version uint64) string {
	return path.Join(metadataDir, fmt.Sprintf("%020d%s", version, metadataSuffix))
}

func snapshotPath(id uint64) string {
	return path.Join(snapshotDir, fmt.Sprintf("%020d%s", id, snapshotSuffix))
}

func parseVersion(filepath string, expectedSuffix string) (uint64, error) {
	base := path.Base(filepath)
	if !strings.HasSuffix(base, expectedSuffix) {
		return 0, common.ErrInvalidState
	}

	id, err := strconv.ParseUint(strings.TrimSuffix(base, expectedSuffix), 10, 64)
	if err != nil {
		return 0, common.ErrInvalidState
	}
	return id, nil
}
