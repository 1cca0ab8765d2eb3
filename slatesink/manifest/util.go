package manifest

import (
	"context"
	"fmt"
	"path"
	"sync/atomic"

	"github.com/samber/mo"

	"github.com/slatedb/slatesink/internal/compress"
	"github.com/slatedb/slatesink/slatesink/table"
)

const manifestDir = "flink"

// OutputFileFactory names manifest files so that no two writers of any run,
// operator, subtask or attempt ever produce the same path.
type OutputFileFactory struct {
	runID        string
	operatorID   string
	subtaskIndex int
	attempt      int
	fileCount    atomic.Uint64
}

func NewOutputFileFactory(runID, operatorID string, subtaskIndex, attempt int) *OutputFileFactory {
	return &OutputFileFactory{
		runID:        runID,
		operatorID:   operatorID,
		subtaskIndex: subtaskIndex,
		attempt:      attempt,
	}
}

// Create returns the path of a new manifest file for checkpointID, relative to
// the table location.
func (f *OutputFileFactory) Create(checkpointID uint64) string {
	name := fmt.Sprintf("%s-%s-%05d-%d-%d-%05d.manifest",
		f.runID, f.operatorID, f.subtaskIndex, f.attempt, checkpointID, f.fileCount.Add(1))
	return path.Join(manifestDir, name)
}

// WriteCompletedFiles writes the data files and the delete files of result to
// one manifest each. A kind with no files gets no manifest.
func WriteCompletedFiles(ctx context.Context, io table.FileIO, result WriteResult,
	newPath func() string, codec compress.Codec) (DeltaManifests, error) {

	d := DeltaManifests{
		DataManifest:        mo.None[File](),
		DeleteManifest:      mo.None[File](),
		ReferencedDataFiles: result.ReferencedDataFiles,
	}

	if len(result.DataFiles) > 0 {
		m, err := WriteFile(ctx, io, newPath(), ContentData, result.DataFiles, codec)
		if err != nil {
			return DeltaManifests{}, err
		}
		d.DataManifest = mo.Some(m)
	}

	if len(result.DeleteFiles) > 0 {
		m, err := WriteFile(ctx, io, newPath(), ContentDeletes, result.DeleteFiles, codec)
		if err != nil {
			if data, ok := d.DataManifest.Get(); ok {
				_ = io.Delete(ctx, data.Path)
			}
			return DeltaManifests{}, err
		}
		d.DeleteManifest = mo.Some(m)
	}
	return d, nil
}

// ReadCompletedFiles reads back the write result a DeltaManifests refers to.
func ReadCompletedFiles(ctx context.Context, io table.FileIO, d DeltaManifests) (WriteResult, error) {
	b := NewWriteResultBuilder().AddReferencedDataFiles(d.ReferencedDataFiles...)

	if m, ok := d.DataManifest.Get(); ok {
		files, err := ReadFile(ctx, io, m)
		if err != nil {
			return WriteResult{}, err
		}
		b.AddDataFiles(files...)
	}

	if m, ok := d.DeleteManifest.Get(); ok {
		files, err := ReadFile(ctx, io, m)
		if err != nil {
			return WriteResult{}, err
		}
		b.AddDeleteFiles(files...)
	}
	return b.Build(), nil
}
