package manifest

import (
	"github.com/slatedb/slatesink/slatesink/table"
)

// WriteResult is what one writer produced during one checkpoint interval.
// ReferencedDataFiles are data files that position deletes point at without
// being added by the same result.
type WriteResult struct {
	DataFiles           []table.DataFile
	DeleteFiles         []table.DataFile
	ReferencedDataFiles []string
}

func (r WriteResult) TotalFiles() int {
	return len(r.DataFiles) + len(r.DeleteFiles)
}

func (r WriteResult) IsEmpty() bool {
	return r.TotalFiles() == 0 && len(r.ReferencedDataFiles) == 0
}

// WriteResultBuilder merges write results while keeping the order in which
// files were added.
type WriteResultBuilder struct {
	result WriteResult
}

func NewWriteResultBuilder() *WriteResultBuilder {
	return &WriteResultBuilder{}
}

func (b *WriteResultBuilder) Add(r WriteResult) *WriteResultBuilder {
	b.result.DataFiles = append(b.result.DataFiles, r.DataFiles...)
	b.result.DeleteFiles = append(b.result.DeleteFiles, r.DeleteFiles...)
	b.result.ReferencedDataFiles = append(b.result.ReferencedDataFiles, r.ReferencedDataFiles...)
	return b
}

func (b *WriteResultBuilder) AddDataFiles(files ...table.DataFile) *WriteResultBuilder {
	b.result.DataFiles = append(b.result.DataFiles, files...)
	return b
}

func (b *WriteResultBuilder) AddDeleteFiles(files ...table.DataFile) *WriteResultBuilder {
	b.result.DeleteFiles = append(b.result.DeleteFiles, files...)
	return b
}

func (b *WriteResultBuilder) AddReferencedDataFiles(paths ...string) *WriteResultBuilder {
	b.result.ReferencedDataFiles = append(b.result.ReferencedDataFiles, paths...)
	return b
}

func (b *WriteResultBuilder) Build() WriteResult {
	return b.result
}
