// Package flatbuf encodes the tables described in schemas/manifest.fbs. The
// code is maintained by hand and follows the layout of flatc generated Go.
package flatbuf

import (
	"strconv"

	flatbuffers "github.com/google/flatbuffers/go"
)

type FileContent byte

const (
	FileContentData            FileContent = 0
	FileContentPositionDeletes FileContent = 1
	FileContentEqualityDeletes FileContent = 2
)

var EnumNamesFileContent = map[FileContent]string{
	FileContentData:            "Data",
	FileContentPositionDeletes: "PositionDeletes",
	FileContentEqualityDeletes: "EqualityDeletes",
}

func (v FileContent) String() string {
	if s, ok := EnumNamesFileContent[v]; ok {
		return s
	}
	return "FileContent(" + strconv.Itoa(int(v)) + ")"
}

type DataFileT struct {
	Content       FileContent
	Path          string
	Partition     string
	RecordCount   uint64
	FileSizeBytes uint64
}

func (t *DataFileT) Pack(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	if t == nil {
		return 0
	}
	pathOffset := builder.CreateString(t.Path)
	partitionOffset := flatbuffers.UOffsetT(0)
	if t.Partition != "" {
		partitionOffset = builder.CreateString(t.Partition)
	}
	DataFileStart(builder)
	DataFileAddContent(builder, t.Content)
	DataFileAddPath(builder, pathOffset)
	DataFileAddPartition(builder, partitionOffset)
	DataFileAddRecordCount(builder, t.RecordCount)
	DataFileAddFileSizeBytes(builder, t.FileSizeBytes)
	return DataFileEnd(builder)
}

func (rcv *DataFile) UnPackTo(t *DataFileT) {
	t.Content = rcv.Content()
	t.Path = string(rcv.Path())
	t.Partition = string(rcv.Partition())
	t.RecordCount = rcv.RecordCount()
	t.FileSizeBytes = rcv.FileSizeBytes()
}

func (rcv *DataFile) UnPack() *DataFileT {
	if rcv == nil {
		return nil
	}
	t := &DataFileT{}
	rcv.UnPackTo(t)
	return t
}

type DataFile struct {
	_tab flatbuffers.Table
}

func GetRootAsDataFile(buf []byte, offset flatbuffers.UOffsetT) *DataFile {
	n := flatbuffers.GetUOffsetT(buf[offset:])
	x := &DataFile{}
	x.Init(buf, n+offset)
	return x
}

func (rcv *DataFile) Init(buf []byte, i flatbuffers.UOffsetT) {
	rcv._tab.Bytes = buf
	rcv._tab.Pos = i
}

func (rcv *DataFile) Table() flatbuffers.Table {
	return rcv._tab
}

func (rcv *DataFile) Content() FileContent {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(4))
	if o != 0 {
		return FileContent(rcv._tab.GetByte(o + rcv._tab.Pos))
	}
	return 0
}

func (rcv *DataFile) Path() []byte {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(6))
	if o != 0 {
		return rcv._tab.ByteVector(o + rcv._tab.Pos)
	}
	return nil
}

func (rcv *DataFile) Partition() []byte {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(8))
	if o != 0 {
		return rcv._tab.ByteVector(o + rcv._tab.Pos)
	}
	return nil
}

func (rcv *DataFile) RecordCount() uint64 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(10))
	if o != 0 {
		return rcv._tab.GetUint64(o + rcv._tab.Pos)
	}
	return 0
}

func (rcv *DataFile) FileSizeBytes() uint64 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(12))
	if o != 0 {
		return rcv._tab.GetUint64(o + rcv._tab.Pos)
	}
	return 0
}

func DataFileStart(builder *flatbuffers.Builder) {
	builder.StartObject(5)
}
func DataFileAddContent(builder *flatbuffers.Builder, content FileContent) {
	builder.PrependByteSlot(0, byte(content), 0)
}
func DataFileAddPath(builder *flatbuffers.Builder, path flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(1, path, 0)
}
func DataFileAddPartition(builder *flatbuffers.Builder, partition flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(2, partition, 0)
}
func DataFileAddRecordCount(builder *flatbuffers.Builder, recordCount uint64) {
	builder.PrependUint64Slot(3, recordCount, 0)
}
func DataFileAddFileSizeBytes(builder *flatbuffers.Builder, fileSizeBytes uint64) {
	builder.PrependUint64Slot(4, fileSizeBytes, 0)
}
func DataFileEnd(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	return builder.EndObject()
}

type ManifestFileT struct {
	Content byte
	Entries []*DataFileT
}

func (t *ManifestFileT) Pack(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	if t == nil {
		return 0
	}
	offsets := make([]flatbuffers.UOffsetT, len(t.Entries))
	for j := range t.Entries {
		offsets[j] = t.Entries[j].Pack(builder)
	}
	ManifestFileStartEntriesVector(builder, len(offsets))
	for j := len(offsets) - 1; j >= 0; j-- {
		builder.PrependUOffsetT(offsets[j])
	}
	entriesOffset := builder.EndVector(len(offsets))

	ManifestFileStart(builder)
	ManifestFileAddContent(builder, t.Content)
	ManifestFileAddEntries(builder, entriesOffset)
	return ManifestFileEnd(builder)
}

func (rcv *ManifestFile) UnPack() *ManifestFileT {
	if rcv == nil {
		return nil
	}
	t := &ManifestFileT{Content: rcv.Content()}
	n := rcv.EntriesLength()
	t.Entries = make([]*DataFileT, n)
	for j := 0; j < n; j++ {
		x := DataFile{}
		rcv.Entries(&x, j)
		t.Entries[j] = x.UnPack()
	}
	return t
}

type ManifestFile struct {
	_tab flatbuffers.Table
}

func GetRootAsManifestFile(buf []byte, offset flatbuffers.UOffsetT) *ManifestFile {
	n := flatbuffers.GetUOffsetT(buf[offset:])
	x := &ManifestFile{}
	x.Init(buf, n+offset)
	return x
}

func (rcv *ManifestFile) Init(buf []byte, i flatbuffers.UOffsetT) {
	rcv._tab.Bytes = buf
	rcv._tab.Pos = i
}

func (rcv *ManifestFile) Content() byte {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(4))
	if o != 0 {
		return rcv._tab.GetByte(o + rcv._tab.Pos)
	}
	return 0
}

func (rcv *ManifestFile) Entries(obj *DataFile, j int) bool {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(6))
	if o != 0 {
		x := rcv._tab.Vector(o)
		x += flatbuffers.UOffsetT(j) * 4
		x = rcv._tab.Indirect(x)
		obj.Init(rcv._tab.Bytes, x)
		return true
	}
	return false
}

func (rcv *ManifestFile) EntriesLength() int {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(6))
	if o != 0 {
		return rcv._tab.VectorLen(o)
	}
	return 0
}

func ManifestFileStart(builder *flatbuffers.Builder) {
	builder.StartObject(2)
}
func ManifestFileAddContent(builder *flatbuffers.Builder, content byte) {
	builder.PrependByteSlot(0, content, 0)
}
func ManifestFileAddEntries(builder *flatbuffers.Builder, entries flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(1, entries, 0)
}
func ManifestFileStartEntriesVector(builder *flatbuffers.Builder, numElems int) flatbuffers.UOffsetT {
	return builder.StartVector(4, numElems, 4)
}
func ManifestFileEnd(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	return builder.EndObject()
}
