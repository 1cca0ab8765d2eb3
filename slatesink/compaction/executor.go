package compaction

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kapetan-io/tackle/set"
	"golang.org/x/sync/errgroup"

	"github.com/slatedb/slatesink/internal/assert"
	"github.com/slatedb/slatesink/slatesink/table"
)

const maxConcurrentReads = 4

type Options struct {
	// MinInputFiles is the number of small files a partition must hold
	// before it is rewritten.
	MinInputFiles int
	// SmallFileBytes is the size below which a data file is a candidate.
	SmallFileBytes uint64
	// Timeout bounds each object store call of a job. Zero means no timeout.
	Timeout time.Duration
	Log     *slog.Logger
}

// Executor runs rewrite jobs against a table in the background, one at a
// time. Jobs are best effort: a failed job only produces a failed Result.
type Executor struct {
	table table.Table
	opts  Options
	log   *slog.Logger

	resultCh chan Result
	tasksWG  sync.WaitGroup
	running  atomic.Bool
	stopped  atomic.Bool
}

func NewExecutor(t table.Table, opts Options) *Executor {
	assert.True(opts.MinInputFiles >= 2, "compaction needs at least 2 input files, got %d", opts.MinInputFiles)
	set.Default(&opts.Log, slog.Default())
	return &Executor{
		table:    t,
		opts:     opts,
		log:      opts.Log,
		resultCh: make(chan Result, 1),
	}
}

// Execute plans a job on the current snapshot and starts it. It returns false
// when the executor is stopped, a job is still running, or nothing is worth
// rewriting. The result of the previous job is logged and dropped.
func (e *Executor) Execute(ctx context.Context) (bool, error) {
	if e.isStopped() || !e.running.CompareAndSwap(false, true) {
		return false, nil
	}
	if result, ok := e.NextResult(); ok {
		e.logResult(result)
	}

	current, err := e.table.CurrentSnapshot(ctx)
	if err != nil {
		e.running.Store(false)
		return false, err
	}
	snapshot, ok := current.Get()
	if !ok {
		e.running.Store(false)
		return false, nil
	}
	job, ok := planJob(snapshot, e.opts)
	if !ok {
		e.running.Store(false)
		return false, nil
	}

	e.startCompaction(job)
	return true, nil
}

// NextResult returns the result of a finished job if one is waiting.
func (e *Executor) NextResult() (Result, bool) {
	select {
	case result := <-e.resultCh:
		return result, true
	default:
		return Result{}, false
	}
}

func (e *Executor) startCompaction(job Job) {
	e.tasksWG.Add(1)
	go func() {
		defer e.tasksWG.Done()
		defer e.running.Store(false)

		if e.isStopped() {
			return
		}
		e.log.Info("started compaction", "job", job)
		e.resultCh <- Result{Job: job, Error: e.executeCompaction(job)}
	}()
}

// executeCompaction concatenates the sources into the output file and swaps
// them in one rewrite transaction. The output file is removed when the
// transaction fails.
func (e *Executor) executeCompaction(job Job) error {
	contents := make([][]byte, len(job.Sources))
	g, gctx := errgroup.WithContext(context.Background())
	g.SetLimit(maxConcurrentReads)
	for i, source := range job.Sources {
		g.Go(func() error {
			ctx, cancel := e.callCtx(gctx)
			defer cancel()
			data, err := e.table.IO().Read(ctx, source.Path)
			if err != nil {
				return fmt.Errorf("while reading %s: %w", source.Path, err)
			}
			contents[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var output []byte
	for _, c := range contents {
		output = append(output, c...)
	}
	job.Output.FileSizeBytes = uint64(len(output))

	ctx, cancel := e.callCtx(context.Background())
	defer cancel()
	if err := e.table.IO().Write(ctx, job.Output.Path, output); err != nil {
		return fmt.Errorf("while writing %s: %w", job.Output.Path, err)
	}

	rewrite := e.table.NewRewrite()
	for _, source := range job.Sources {
		rewrite.DeleteFile(source)
	}
	rewrite.AddFile(job.Output)
	if err := rewrite.Commit(ctx); err != nil {
		if delErr := e.table.IO().Delete(ctx, job.Output.Path); delErr != nil {
			e.log.Warn("failed to delete compaction output", "path", job.Output.Path, "error", delErr)
		}
		return fmt.Errorf("while committing rewrite of partition %q: %w", job.Partition, err)
	}
	return nil
}

func (e *Executor) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.opts.Timeout)
}

func (e *Executor) logResult(result Result) {
	if result.Error != nil {
		e.log.Warn("compaction failed", "job", result.Job, "error", result.Error)
		return
	}
	e.log.Info("compaction finished", "job", result.Job)
}

// Stop prevents new jobs and waits for the running one.
func (e *Executor) Stop() {
	e.stopped.Store(true)
	e.waitForTasksCompletion()
	if result, ok := e.NextResult(); ok {
		e.logResult(result)
	}
}

func (e *Executor) waitForTasksCompletion() {
	e.tasksWG.Wait()
}

func (e *Executor) isStopped() bool {
	return e.stopped.Load()
}
