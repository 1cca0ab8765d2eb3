package metrics

import (
	"context"
	"time"
)

// Noop is a Recorder that does nothing.
type Noop struct{}

var _ Recorder = Noop{}

func (Noop) RecordCommit(_ context.Context, _ string, _, _ int, _ time.Duration, _ error) {}

func (Noop) RecordEmptySkip(_ context.Context) {}

func (Noop) RecordManifestCleanupFailure(_ context.Context) {}

func (Noop) RecordRecovery(_ context.Context, _ string) {}
