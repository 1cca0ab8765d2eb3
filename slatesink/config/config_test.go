package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slatedb/slatesink/internal/compress"
	"github.com/slatedb/slatesink/slatesink/config"
)

func TestDefaultOptionsAreValid(t *testing.T) {
	opts := config.DefaultOptions()
	assert.NoError(t, opts.Validate())
	assert.Equal(t, 10, opts.MaxContinuousEmptyCommits)
	assert.False(t, opts.ReplacePartitions)
}

func TestValidateRejectsNonPositiveThreshold(t *testing.T) {
	for _, n := range []int{0, -1} {
		opts := config.DefaultOptions()
		opts.MaxContinuousEmptyCommits = n
		assert.ErrorIs(t, opts.Validate(), config.ErrInvalidOption)
	}
}

func TestFromYAML(t *testing.T) {
	data := []byte(`
log_level: debug
store:
  directory: /var/lib/slatesink
table:
  location: warehouse/orders
  properties:
    write.compact.enable: "true"
committer:
  max_continuous_empty_commits: 3
  replace_partitions: true
  manifest_compression: zstd
  operator_id: orders-sink
  subtask_index: 2
  timeout: 5s
compaction:
  min_input_files: 4
  small_file_bytes: 1024
driver:
  backend: sqlite
  sqlite_path: /tmp/state.db
`)
	f, err := config.FromYAML(data)
	require.NoError(t, err)
	assert.Equal(t, "debug", f.LogLevel)
	assert.Equal(t, "/var/lib/slatesink", f.Store.Directory)
	assert.Equal(t, 4, f.Store.CommitRetries)
	assert.Equal(t, "warehouse/orders", f.Table.Location)
	assert.Equal(t, "true", f.Table.Properties["write.compact.enable"])
	assert.Equal(t, "sqlite", f.Driver.Backend)
	assert.Equal(t, 5, f.Driver.Checkpoints)

	opts, err := f.Options()
	require.NoError(t, err)
	assert.Equal(t, 3, opts.MaxContinuousEmptyCommits)
	assert.True(t, opts.ReplacePartitions)
	assert.Equal(t, compress.CodecZstd, opts.ManifestCompression)
	assert.Equal(t, "orders-sink", opts.OperatorID)
	assert.Equal(t, 2, opts.SubtaskIndex)
	assert.Equal(t, 5*time.Second, opts.Timeout)
	assert.Equal(t, 4, opts.Compaction.MinInputFiles)
	assert.Equal(t, uint64(1024), opts.Compaction.SmallFileBytes)
}

func TestFromYAMLRejectsInvalid(t *testing.T) {
	_, err := config.FromYAML([]byte("committer:\n  max_continuous_empty_commits: 0\n"))
	assert.ErrorIs(t, err, config.ErrInvalidOption)

	_, err = config.FromYAML([]byte("committer:\n  manifest_compression: brotli\n"))
	assert.ErrorIs(t, err, compress.ErrInvalidCodec)

	_, err = config.FromYAML([]byte("committer: ["))
	assert.Error(t, err)
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slatesink.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o600))

	f, err := config.FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", f.LogLevel)
	assert.Equal(t, config.DefaultOptions().MaxContinuousEmptyCommits,
		func() int { o, _ := f.Options(); return o.MaxContinuousEmptyCommits }())

	_, err = config.FromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
