package common

const (
	SizeOfUint32 = 4
	SizeOfUint64 = 8
)

// Snapshot properties the committer stores on every snapshot it produces.
const (
	FlinkJobIDProperty               = "flink.job-id"
	MaxCommittedCheckpointIDProperty = "flink.max-committed-checkpoint-id"
)

// Table properties that tune the committer.
const (
	MaxContinuousEmptyCommitsProperty = "flink.max-continuous-empty-commits"
	CompactEnabledProperty            = "write.compact.enable"
)

// EndInputCheckpointID is the checkpoint id used for the final flush when the
// input is bounded and has been fully consumed.
const EndInputCheckpointID = ^uint64(0)
