package manifest

import (
	"context"
	"log/slog"

	"github.com/gammazero/deque"
	"github.com/kapetan-io/tackle/set"
	"github.com/samber/mo"

	"github.com/slatedb/slatesink/internal/compress"
	"github.com/slatedb/slatesink/slatesink/table"
)

// EmptyPayload is flushed for a checkpoint interval without writes.
var EmptyPayload = []byte{}

type WriterOptions struct {
	Codec compress.Codec
	Log   *slog.Logger
}

// Writer buffers write results of the open checkpoint interval and flushes
// them into one manifest payload per checkpoint.
type Writer struct {
	io      table.FileIO
	factory *OutputFileFactory
	opts    WriterOptions
	buffer  *deque.Deque[WriteResult]

	// flushed holds the last successful flush. A repeated flush of the same
	// checkpoint must cover everything that flush covered.
	flushed mo.Option[flushedCheckpoint]
}

type flushedCheckpoint struct {
	checkpointID uint64
	result       WriteResult
	manifests    []File
	payload      []byte
}

func NewWriter(io table.FileIO, factory *OutputFileFactory, opts WriterOptions) *Writer {
	set.Default(&opts.Log, slog.Default())
	return &Writer{
		io:      io,
		factory: factory,
		opts:    opts,
		buffer:  deque.New[WriteResult](0),
	}
}

// Record adds a write result to the open interval.
func (w *Writer) Record(result WriteResult) {
	w.buffer.PushBack(result)
}

func (w *Writer) Buffered() int {
	return w.buffer.Len()
}

// Flush writes everything recorded since the last successful flush to
// manifest files and returns the versioned DeltaManifests payload. With
// nothing recorded it returns EmptyPayload. On error the buffer is kept so the
// next flush covers the same results.
//
// Flushing the same checkpointID again returns the previous payload when
// nothing was recorded in between. Otherwise the previous results are flushed
// again together with the new ones and the superseded manifests are deleted.
func (w *Writer) Flush(ctx context.Context, checkpointID uint64) ([]byte, error) {
	previous, repeated := w.flushed.Get()
	repeated = repeated && previous.checkpointID == checkpointID
	if repeated && w.buffer.Len() == 0 {
		w.opts.Log.Debug("checkpoint already flushed", "checkpoint_id", checkpointID)
		return previous.payload, nil
	}

	b := NewWriteResultBuilder()
	if repeated {
		b.Add(previous.result)
	}
	for i := 0; i < w.buffer.Len(); i++ {
		b.Add(w.buffer.At(i))
	}
	result := b.Build()

	payload := EmptyPayload
	var manifests []File
	if result.TotalFiles() != 0 {
		deltas, err := WriteCompletedFiles(ctx, w.io, result, func() string {
			return w.factory.Create(checkpointID)
		}, w.opts.Codec)
		if err != nil {
			return nil, err
		}

		payload, err = WriteVersionAndSerialize[DeltaManifests](DeltaManifestsSerializer{}, deltas)
		if err != nil {
			return nil, err
		}
		manifests = deltas.Manifests()

		w.opts.Log.Debug("flushed manifests",
			"checkpoint_id", checkpointID,
			"data_files", len(result.DataFiles),
			"delete_files", len(result.DeleteFiles))
	}

	if repeated {
		for _, m := range previous.manifests {
			if err := w.io.Delete(ctx, m.Path); err != nil {
				w.opts.Log.Warn("failed to delete superseded manifest",
					"checkpoint_id", checkpointID,
					"manifest_path", m.Path,
					"error", err)
			}
		}
	}

	w.flushed = mo.Some(flushedCheckpoint{
		checkpointID: checkpointID,
		result:       result,
		manifests:    manifests,
		payload:      payload,
	})
	w.buffer.Clear()
	return payload, nil
}
