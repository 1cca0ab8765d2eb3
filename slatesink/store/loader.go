package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/thanos-io/objstore"

	"github.com/slatedb/slatesink/slatesink/common"
	"github.com/slatedb/slatesink/slatesink/table"
)

// Loader loads the table at a fixed location. Close releases the bucket, so a
// Loader should own the bucket it was given.
type Loader struct {
	bucket   objstore.Bucket
	location string
	opts     TableOptions

	mu     sync.Mutex
	opened bool
	closed bool
	table  *Table
}

var _ table.Loader = (*Loader)(nil)

func NewLoader(bucket objstore.Bucket, location string, opts TableOptions) *Loader {
	return &Loader{bucket: bucket, location: location, opts: opts}
}

func (l *Loader) Open(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return fmt.Errorf("%w: table loader for %s", common.ErrDisposed, l.location)
	}
	l.opened = true
	return nil
}

// Load returns the table, reading its latest metadata on first use.
func (l *Loader) Load(ctx context.Context) (table.Table, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || !l.opened {
		return nil, fmt.Errorf("%w: table loader for %s is not open", common.ErrInvalidState, l.location)
	}
	if l.table != nil {
		return l.table, nil
	}

	t, err := LoadTable(ctx, l.bucket, l.location, l.opts)
	if err != nil {
		return nil, err
	}
	l.table = t
	return t, nil
}

func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.table = nil
	return l.bucket.Close()
}
