package compaction

import (
	"fmt"
	"maps"
	"path"
	"slices"

	"github.com/oklog/ulid/v2"

	"github.com/slatedb/slatesink/slatesink/table"
)

type Result struct {
	Job   Job
	Error error
}

// ------------------------------------------------
// Job
// ------------------------------------------------

// Job rewrites the small data files of one partition into a single file.
type Job struct {
	Partition string
	Sources   []table.DataFile
	Output    table.DataFile
}

func (j Job) String() string {
	return fmt.Sprintf("Job{partition=%q, sources=%d, output=%s}", j.Partition, len(j.Sources), j.Output.Path)
}

func newJob(partition string, sources []table.DataFile) Job {
	var records, size uint64
	for _, s := range sources {
		records += s.RecordCount
		size += s.FileSizeBytes
	}
	return Job{
		Partition: partition,
		Sources:   sources,
		Output: table.DataFile{
			Content:       table.ContentData,
			Path:          path.Join("data", partition, "compacted-"+ulid.Make().String()+".dat"),
			Partition:     partition,
			RecordCount:   records,
			FileSizeBytes: size,
		},
	}
}

// ------------------------------------------------
// Planning
// ------------------------------------------------

// planJob picks the partition of snapshot holding the most small data files.
// Partitions holding delete files are skipped.
func planJob(snapshot *table.Snapshot, opts Options) (Job, bool) {
	withDeletes := make(map[string]struct{})
	for _, f := range snapshot.DeleteFiles {
		withDeletes[f.Partition] = struct{}{}
	}

	small := make(map[string][]table.DataFile)
	for _, f := range snapshot.DataFiles {
		if _, ok := withDeletes[f.Partition]; ok || f.FileSizeBytes >= opts.SmallFileBytes {
			continue
		}
		small[f.Partition] = append(small[f.Partition], f)
	}

	partitions := slices.Sorted(maps.Keys(small))
	best, found := "", false
	for _, partition := range partitions {
		files := small[partition]
		if len(files) < opts.MinInputFiles {
			continue
		}
		if !found || len(files) > len(small[best]) {
			best, found = partition, true
		}
	}
	if !found {
		return Job{}, false
	}
	return newJob(best, small[best]), true
}
