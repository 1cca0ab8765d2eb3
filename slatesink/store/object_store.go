package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/samber/mo"
	"github.com/thanos-io/objstore"

	"github.com/slatedb/slatesink/internal"
	"github.com/slatedb/slatesink/slatesink/common"
	"github.com/slatedb/slatesink/slatesink/table"
)

type ObjectMeta struct {
	// LastModified is the time the object was last modified.
	LastModified time.Time

	// Location is the path of the object relative to the store root
	Location string
}

type ObjectStore interface {
	PutIfNotExists(ctx context.Context, path string, data []byte) error

	Put(ctx context.Context, path string, data []byte) error

	Get(ctx context.Context, path string) ([]byte, error)

	Exists(ctx context.Context, path string) (bool, error)

	Delete(ctx context.Context, path string) error

	List(ctx context.Context, path mo.Option[string]) ([]ObjectMeta, error)
}

// DelegatingObjectStore roots every path under rootPath of the bucket.
type DelegatingObjectStore struct {
	rootPath string
	bucket   objstore.Bucket
	timeout  time.Duration
}

func NewDelegatingObjectStore(rootPath string, bucket objstore.Bucket) *DelegatingObjectStore {
	return &DelegatingObjectStore{rootPath: rootPath, bucket: bucket}
}

// WithTimeout bounds every bucket call made through the returned store.
func (d *DelegatingObjectStore) WithTimeout(timeout time.Duration) *DelegatingObjectStore {
	return &DelegatingObjectStore{rootPath: d.rootPath, bucket: d.bucket, timeout: timeout}
}

func (d *DelegatingObjectStore) RootPath() string {
	return d.rootPath
}

func (d *DelegatingObjectStore) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.timeout)
}

// TODO: use conditional writes once objstore exposes them, exists+upload is
// only atomic for a single writer.
func (d *DelegatingObjectStore) PutIfNotExists(ctx context.Context, objPath string, data []byte) error {
	ctx, cancel := d.callCtx(ctx)
	defer cancel()

	fullPath := path.Join(d.rootPath, objPath)
	exists, err := d.bucket.Exists(ctx, fullPath)
	if err != nil {
		return internal.ErrRetryable("during bucket exists check: %s", err)
	}
	if exists {
		return fmt.Errorf("%w: %s", common.ErrObjectExists, objPath)
	}

	err = d.bucket.Upload(ctx, fullPath, bytes.NewReader(data))
	if err != nil {
		return internal.ErrRetryable("during bucket upload: %s", err)
	}
	return nil
}

func (d *DelegatingObjectStore) Put(ctx context.Context, objPath string, data []byte) error {
	ctx, cancel := d.callCtx(ctx)
	defer cancel()

	err := d.bucket.Upload(ctx, path.Join(d.rootPath, objPath), bytes.NewReader(data))
	if err != nil {
		return internal.ErrRetryable("during bucket upload: %s", err)
	}
	return nil
}

func (d *DelegatingObjectStore) Get(ctx context.Context, objPath string) ([]byte, error) {
	ctx, cancel := d.callCtx(ctx)
	defer cancel()

	reader, err := d.bucket.Get(ctx, path.Join(d.rootPath, objPath))
	if err != nil {
		if d.bucket.IsObjNotFoundErr(err) {
			return nil, fmt.Errorf("%w: %s", internal.ErrNotFound, objPath)
		}
		return nil, internal.ErrRetryable("during bucket get: %s", err)
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, internal.ErrRetryable("while reading data from bucket: %s", err)
	}
	return data, nil
}

func (d *DelegatingObjectStore) Exists(ctx context.Context, objPath string) (bool, error) {
	ctx, cancel := d.callCtx(ctx)
	defer cancel()

	exists, err := d.bucket.Exists(ctx, path.Join(d.rootPath, objPath))
	if err != nil {
		return false, internal.ErrRetryable("during bucket exists check: %s", err)
	}
	return exists, nil
}

// Delete removes objPath. Deleting an object that does not exist succeeds.
func (d *DelegatingObjectStore) Delete(ctx context.Context, objPath string) error {
	ctx, cancel := d.callCtx(ctx)
	defer cancel()

	err := d.bucket.Delete(ctx, path.Join(d.rootPath, objPath))
	if err != nil && !d.bucket.IsObjNotFoundErr(err) {
		return internal.ErrRetryable("during bucket delete: %s", err)
	}
	return nil
}

func (d *DelegatingObjectStore) List(ctx context.Context, objPath mo.Option[string]) ([]ObjectMeta, error) {
	ctx, cancel := d.callCtx(ctx)
	defer cancel()

	fullPath := d.rootPath
	if p, ok := objPath.Get(); ok {
		fullPath = path.Join(d.rootPath, p)
	}

	objMetaList := make([]ObjectMeta, 0)
	iterFn := func(attrs objstore.IterObjectAttributes) error {
		lastModified, _ := attrs.LastModified()
		location := strings.TrimPrefix(strings.TrimPrefix(attrs.Name, d.rootPath), "/")
		objMetaList = append(objMetaList, ObjectMeta{lastModified, location})
		return nil
	}
	err := d.bucket.IterWithAttributes(ctx, fullPath, iterFn, objStoreIterOptions(d.bucket)...)
	if err != nil {
		return nil, internal.ErrRetryable("during bucket listing: %s", err)
	}

	return objMetaList, nil
}

// FileIO exposes the store as table.FileIO.
func (d *DelegatingObjectStore) FileIO() table.FileIO {
	return fileIO{store: d}
}

type fileIO struct {
	store ObjectStore
}

func (f fileIO) Read(ctx context.Context, path string) ([]byte, error) {
	return f.store.Get(ctx, path)
}

func (f fileIO) Write(ctx context.Context, path string, data []byte) error {
	return f.store.Put(ctx, path, data)
}

func (f fileIO) Exists(ctx context.Context, path string) (bool, error) {
	return f.store.Exists(ctx, path)
}

func (f fileIO) Delete(ctx context.Context, path string) error {
	return f.store.Delete(ctx, path)
}

// objStoreIterOptions gets IterOptions supported by the storage provider
func objStoreIterOptions(bucket objstore.Bucket) []objstore.IterOption {
	iterOptions := make([]objstore.IterOption, 0)
	requiredOptions := []objstore.IterOption{objstore.WithRecursiveIter(), objstore.WithUpdatedAt()}

	for _, required := range requiredOptions {
		if slices.Contains(bucket.SupportedIterOptions(), required.Type) {
			iterOptions = append(iterOptions, required)
		}
	}
	return iterOptions
}
