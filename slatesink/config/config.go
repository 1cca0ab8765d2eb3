package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/slatedb/slatesink/internal/compress"
	"github.com/slatedb/slatesink/slatesink/metrics"
)

const DefaultMaxContinuousEmptyCommits = 10

var ErrInvalidOption = errors.New("invalid option")

// Options configures a single committer instance. These options are set when
// the committer is created; table properties may override some of them at
// initialization.
type Options struct {
	// Number of consecutive empty checkpoints after which an empty snapshot is
	// committed anyway, keeping the committed checkpoint id moving forward.
	MaxContinuousEmptyCommits int

	// ReplacePartitions commits every checkpoint as a dynamic partition
	// overwrite instead of an append.
	ReplacePartitions bool

	// CompactEnabled triggers a best-effort compaction after each commit.
	CompactEnabled bool

	// ManifestCompression is applied to the body of every manifest file.
	ManifestCompression compress.Codec

	// OperatorID, SubtaskIndex and AttemptNumber only contribute to the
	// names of manifest files so concurrent writers never collide.
	OperatorID    string
	SubtaskIndex  int
	AttemptNumber int

	// Timeout bounds each object store call. Zero means no timeout.
	Timeout time.Duration

	Compaction CompactionOptions

	Log     *slog.Logger
	Metrics metrics.Recorder
}

type CompactionOptions struct {
	// MinInputFiles is the number of small files a partition must hold
	// before it is rewritten.
	MinInputFiles int
	// SmallFileBytes is the size below which a data file is a candidate.
	SmallFileBytes uint64
}

func DefaultOptions() Options {
	return Options{
		MaxContinuousEmptyCommits: DefaultMaxContinuousEmptyCommits,
		ManifestCompression:       compress.CodecNone,
		OperatorID:                "sink",
		Compaction:                DefaultCompactionOptions(),
	}
}

func DefaultCompactionOptions() CompactionOptions {
	return CompactionOptions{
		MinInputFiles:  2,
		SmallFileBytes: 32 * 1024 * 1024,
	}
}

func (o Options) Validate() error {
	if o.MaxContinuousEmptyCommits <= 0 {
		return fmt.Errorf("%w: max continuous empty commits must be positive, got %d",
			ErrInvalidOption, o.MaxContinuousEmptyCommits)
	}
	if !o.ManifestCompression.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidOption, compress.ErrInvalidCodec)
	}
	if o.Compaction.MinInputFiles < 2 {
		return fmt.Errorf("%w: compaction needs at least 2 input files, got %d",
			ErrInvalidOption, o.Compaction.MinInputFiles)
	}
	if o.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout %s", ErrInvalidOption, o.Timeout)
	}
	return nil
}
