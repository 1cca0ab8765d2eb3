package common

import "errors"

var (
	ErrObjectStore             = errors.New("object store error")
	ErrObjectExists            = errors.New("error Object Exists")
	ErrMetadataVersionExists   = errors.New("table metadata version already exists")
	ErrSnapshotNotFound        = errors.New("snapshot not found")
	ErrNotAncestor             = errors.New("snapshot is not an ancestor of the current snapshot")
	ErrInvalidManifest         = errors.New("invalid manifest")
	ErrUnsupportedVersion      = errors.New("unsupported serializer version")
	ErrInvalidState            = errors.New("invalid committer state")
	ErrCommitConflict          = errors.New("commit conflicts with current table state")
	ErrDisposed                = errors.New("committer already disposed")
	ErrInvalidCompressionCodec = errors.New("invalid compression codec")
	ErrTableNotFound           = errors.New("table not found")
	ErrTableExists             = errors.New("table already exists")
)
