package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/slatedb/slatesink/internal/compress"
)

// File is the on-disk configuration of the slatesink binary.
type File struct {
	LogLevel   string          `yaml:"log_level"`
	Store      StoreFile       `yaml:"store"`
	Table      TableFile       `yaml:"table"`
	Committer  CommitterFile   `yaml:"committer"`
	Compaction *CompactionFile `yaml:"compaction"`
	Driver     DriverFile      `yaml:"driver"`
}

type StoreFile struct {
	// Directory backs the filesystem bucket.
	Directory     string `yaml:"directory"`
	CommitRetries int    `yaml:"commit_retries"`
}

type TableFile struct {
	Location   string            `yaml:"location"`
	Properties map[string]string `yaml:"properties"`
}

type CommitterFile struct {
	MaxContinuousEmptyCommits *int           `yaml:"max_continuous_empty_commits"`
	ReplacePartitions         bool           `yaml:"replace_partitions"`
	CompactEnabled            bool           `yaml:"compact_enabled"`
	ManifestCompression       compress.Codec `yaml:"manifest_compression"`
	OperatorID                string         `yaml:"operator_id"`
	SubtaskIndex              int            `yaml:"subtask_index"`
	AttemptNumber             int            `yaml:"attempt_number"`
	Timeout                   time.Duration  `yaml:"timeout"`
}

type CompactionFile struct {
	MinInputFiles  int    `yaml:"min_input_files"`
	SmallFileBytes uint64 `yaml:"small_file_bytes"`
}

type DriverFile struct {
	// Backend is either "memory" or "sqlite".
	Backend     string `yaml:"backend"`
	SQLitePath  string `yaml:"sqlite_path"`
	Checkpoints int    `yaml:"checkpoints"`
	BatchSize   int    `yaml:"batch_size"`
}

func DefaultFile() File {
	return File{
		LogLevel: "info",
		Store: StoreFile{
			Directory:     "./data",
			CommitRetries: 4,
		},
		Table: TableFile{
			Location: "warehouse/events",
		},
		Driver: DriverFile{
			Backend:     "memory",
			Checkpoints: 5,
			BatchSize:   3,
		},
	}
}

// FromFile loads the binary configuration from a YAML file.
func FromFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read config file: %w", err)
	}
	return FromYAML(data)
}

// FromYAML parses YAML data on top of DefaultFile.
func FromYAML(data []byte) (File, error) {
	f := DefaultFile()
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse yaml: %w", err)
	}
	if _, err := f.Options(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Options converts the committer section into validated committer Options.
func (f File) Options() (Options, error) {
	opts := DefaultOptions()
	if f.Committer.MaxContinuousEmptyCommits != nil {
		opts.MaxContinuousEmptyCommits = *f.Committer.MaxContinuousEmptyCommits
	}
	opts.ReplacePartitions = f.Committer.ReplacePartitions
	opts.CompactEnabled = f.Committer.CompactEnabled
	opts.ManifestCompression = f.Committer.ManifestCompression
	if f.Committer.OperatorID != "" {
		opts.OperatorID = f.Committer.OperatorID
	}
	opts.SubtaskIndex = f.Committer.SubtaskIndex
	opts.AttemptNumber = f.Committer.AttemptNumber
	opts.Timeout = f.Committer.Timeout
	if f.Compaction != nil {
		opts.Compaction = CompactionOptions{
			MinInputFiles:  f.Compaction.MinInputFiles,
			SmallFileBytes: f.Compaction.SmallFileBytes,
		}
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}
