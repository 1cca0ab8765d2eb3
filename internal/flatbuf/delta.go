package flatbuf

import (
	flatbuffers "github.com/google/flatbuffers/go"
)

type ManifestRefT struct {
	Path            string
	Length          uint64
	Content         byte
	AddedFilesCount uint32
}

func (t *ManifestRefT) Pack(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	if t == nil {
		return 0
	}
	pathOffset := builder.CreateString(t.Path)
	ManifestRefStart(builder)
	ManifestRefAddPath(builder, pathOffset)
	ManifestRefAddLength(builder, t.Length)
	ManifestRefAddContent(builder, t.Content)
	ManifestRefAddAddedFilesCount(builder, t.AddedFilesCount)
	return ManifestRefEnd(builder)
}

func (rcv *ManifestRef) UnPack() *ManifestRefT {
	if rcv == nil {
		return nil
	}
	return &ManifestRefT{
		Path:            string(rcv.Path()),
		Length:          rcv.Length(),
		Content:         rcv.Content(),
		AddedFilesCount: rcv.AddedFilesCount(),
	}
}

type ManifestRef struct {
	_tab flatbuffers.Table
}

func GetRootAsManifestRef(buf []byte, offset flatbuffers.UOffsetT) *ManifestRef {
	n := flatbuffers.GetUOffsetT(buf[offset:])
	x := &ManifestRef{}
	x.Init(buf, n+offset)
	return x
}

func (rcv *ManifestRef) Init(buf []byte, i flatbuffers.UOffsetT) {
	rcv._tab.Bytes = buf
	rcv._tab.Pos = i
}

func (rcv *ManifestRef) Path() []byte {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(4))
	if o != 0 {
		return rcv._tab.ByteVector(o + rcv._tab.Pos)
	}
	return nil
}

func (rcv *ManifestRef) Length() uint64 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(6))
	if o != 0 {
		return rcv._tab.GetUint64(o + rcv._tab.Pos)
	}
	return 0
}

func (rcv *ManifestRef) Content() byte {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(8))
	if o != 0 {
		return rcv._tab.GetByte(o + rcv._tab.Pos)
	}
	return 0
}

func (rcv *ManifestRef) AddedFilesCount() uint32 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(10))
	if o != 0 {
		return rcv._tab.GetUint32(o + rcv._tab.Pos)
	}
	return 0
}

func ManifestRefStart(builder *flatbuffers.Builder) {
	builder.StartObject(4)
}
func ManifestRefAddPath(builder *flatbuffers.Builder, path flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(0, path, 0)
}
func ManifestRefAddLength(builder *flatbuffers.Builder, length uint64) {
	builder.PrependUint64Slot(1, length, 0)
}
func ManifestRefAddContent(builder *flatbuffers.Builder, content byte) {
	builder.PrependByteSlot(2, content, 0)
}
func ManifestRefAddAddedFilesCount(builder *flatbuffers.Builder, count uint32) {
	builder.PrependUint32Slot(3, count, 0)
}
func ManifestRefEnd(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	return builder.EndObject()
}

type DeltaManifestsT struct {
	DataManifest        *ManifestRefT
	DeleteManifest      *ManifestRefT
	ReferencedDataFiles []string
}

func (t *DeltaManifestsT) Pack(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	if t == nil {
		return 0
	}
	dataOffset := t.DataManifest.Pack(builder)
	deleteOffset := t.DeleteManifest.Pack(builder)

	referencedOffset := flatbuffers.UOffsetT(0)
	if t.ReferencedDataFiles != nil {
		offsets := make([]flatbuffers.UOffsetT, len(t.ReferencedDataFiles))
		for j, path := range t.ReferencedDataFiles {
			offsets[j] = builder.CreateString(path)
		}
		DeltaManifestsStartReferencedDataFilesVector(builder, len(offsets))
		for j := len(offsets) - 1; j >= 0; j-- {
			builder.PrependUOffsetT(offsets[j])
		}
		referencedOffset = builder.EndVector(len(offsets))
	}

	DeltaManifestsStart(builder)
	DeltaManifestsAddDataManifest(builder, dataOffset)
	DeltaManifestsAddDeleteManifest(builder, deleteOffset)
	DeltaManifestsAddReferencedDataFiles(builder, referencedOffset)
	return DeltaManifestsEnd(builder)
}

func (rcv *DeltaManifests) UnPack() *DeltaManifestsT {
	if rcv == nil {
		return nil
	}
	t := &DeltaManifestsT{
		DataManifest:   rcv.DataManifest(nil).UnPack(),
		DeleteManifest: rcv.DeleteManifest(nil).UnPack(),
	}
	n := rcv.ReferencedDataFilesLength()
	if n > 0 {
		t.ReferencedDataFiles = make([]string, n)
		for j := 0; j < n; j++ {
			t.ReferencedDataFiles[j] = string(rcv.ReferencedDataFiles(j))
		}
	}
	return t
}

type DeltaManifests struct {
	_tab flatbuffers.Table
}

func GetRootAsDeltaManifests(buf []byte, offset flatbuffers.UOffsetT) *DeltaManifests {
	n := flatbuffers.GetUOffsetT(buf[offset:])
	x := &DeltaManifests{}
	x.Init(buf, n+offset)
	return x
}

func (rcv *DeltaManifests) Init(buf []byte, i flatbuffers.UOffsetT) {
	rcv._tab.Bytes = buf
	rcv._tab.Pos = i
}

func (rcv *DeltaManifests) DataManifest(obj *ManifestRef) *ManifestRef {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(4))
	if o != 0 {
		x := rcv._tab.Indirect(o + rcv._tab.Pos)
		if obj == nil {
			obj = new(ManifestRef)
		}
		obj.Init(rcv._tab.Bytes, x)
		return obj
	}
	return nil
}

func (rcv *DeltaManifests) DeleteManifest(obj *ManifestRef) *ManifestRef {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(6))
	if o != 0 {
		x := rcv._tab.Indirect(o + rcv._tab.Pos)
		if obj == nil {
			obj = new(ManifestRef)
		}
		obj.Init(rcv._tab.Bytes, x)
		return obj
	}
	return nil
}

func (rcv *DeltaManifests) ReferencedDataFiles(j int) []byte {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(8))
	if o != 0 {
		a := rcv._tab.Vector(o)
		return rcv._tab.ByteVector(a + flatbuffers.UOffsetT(j*4))
	}
	return nil
}

func (rcv *DeltaManifests) ReferencedDataFilesLength() int {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(8))
	if o != 0 {
		return rcv._tab.VectorLen(o)
	}
	return 0
}

func DeltaManifestsStart(builder *flatbuffers.Builder) {
	builder.StartObject(3)
}
func DeltaManifestsAddDataManifest(builder *flatbuffers.Builder, dataManifest flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(0, dataManifest, 0)
}
func DeltaManifestsAddDeleteManifest(builder *flatbuffers.Builder, deleteManifest flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(1, deleteManifest, 0)
}
func DeltaManifestsAddReferencedDataFiles(builder *flatbuffers.Builder, referencedDataFiles flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(2, referencedDataFiles, 0)
}
func DeltaManifestsStartReferencedDataFilesVector(builder *flatbuffers.Builder, numElems int) flatbuffers.UOffsetT {
	return builder.StartVector(4, numElems, 4)
}
func DeltaManifestsEnd(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	return builder.EndObject()
}
