package flatbuf

import (
	flatbuffers "github.com/google/flatbuffers/go"
)

type PendingCheckpointT struct {
	CheckpointId uint64
	Manifest     []byte
}

func (t *PendingCheckpointT) Pack(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	if t == nil {
		return 0
	}
	manifestOffset := flatbuffers.UOffsetT(0)
	if t.Manifest != nil {
		manifestOffset = builder.CreateByteVector(t.Manifest)
	}
	PendingCheckpointStart(builder)
	PendingCheckpointAddCheckpointId(builder, t.CheckpointId)
	PendingCheckpointAddManifest(builder, manifestOffset)
	return PendingCheckpointEnd(builder)
}

func (rcv *PendingCheckpoint) UnPack() *PendingCheckpointT {
	if rcv == nil {
		return nil
	}
	t := &PendingCheckpointT{CheckpointId: rcv.CheckpointId()}
	if b := rcv.ManifestBytes(); b != nil {
		t.Manifest = append([]byte{}, b...)
	}
	return t
}

type PendingCheckpoint struct {
	_tab flatbuffers.Table
}

func (rcv *PendingCheckpoint) Init(buf []byte, i flatbuffers.UOffsetT) {
	rcv._tab.Bytes = buf
	rcv._tab.Pos = i
}

func (rcv *PendingCheckpoint) CheckpointId() uint64 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(4))
	if o != 0 {
		return rcv._tab.GetUint64(o + rcv._tab.Pos)
	}
	return 0
}

func (rcv *PendingCheckpoint) ManifestBytes() []byte {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(6))
	if o != 0 {
		return rcv._tab.ByteVector(o + rcv._tab.Pos)
	}
	return nil
}

func (rcv *PendingCheckpoint) ManifestLength() int {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(6))
	if o != 0 {
		return rcv._tab.VectorLen(o)
	}
	return 0
}

func PendingCheckpointStart(builder *flatbuffers.Builder) {
	builder.StartObject(2)
}
func PendingCheckpointAddCheckpointId(builder *flatbuffers.Builder, checkpointId uint64) {
	builder.PrependUint64Slot(0, checkpointId, 0)
}
func PendingCheckpointAddManifest(builder *flatbuffers.Builder, manifest flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(1, manifest, 0)
}
func PendingCheckpointEnd(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	return builder.EndObject()
}

type CommitterStateT struct {
	RunId       string
	Checkpoints []*PendingCheckpointT
}

func (t *CommitterStateT) Pack(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	if t == nil {
		return 0
	}
	runIDOffset := flatbuffers.UOffsetT(0)
	if t.RunId != "" {
		runIDOffset = builder.CreateString(t.RunId)
	}
	offsets := make([]flatbuffers.UOffsetT, len(t.Checkpoints))
	for j := range t.Checkpoints {
		offsets[j] = t.Checkpoints[j].Pack(builder)
	}
	CommitterStateStartCheckpointsVector(builder, len(offsets))
	for j := len(offsets) - 1; j >= 0; j-- {
		builder.PrependUOffsetT(offsets[j])
	}
	checkpointsOffset := builder.EndVector(len(offsets))

	CommitterStateStart(builder)
	CommitterStateAddRunId(builder, runIDOffset)
	CommitterStateAddCheckpoints(builder, checkpointsOffset)
	return CommitterStateEnd(builder)
}

func (rcv *CommitterState) UnPack() *CommitterStateT {
	if rcv == nil {
		return nil
	}
	t := &CommitterStateT{RunId: string(rcv.RunId())}
	n := rcv.CheckpointsLength()
	t.Checkpoints = make([]*PendingCheckpointT, n)
	for j := 0; j < n; j++ {
		x := PendingCheckpoint{}
		rcv.Checkpoints(&x, j)
		t.Checkpoints[j] = x.UnPack()
	}
	return t
}

type CommitterState struct {
	_tab flatbuffers.Table
}

func GetRootAsCommitterState(buf []byte, offset flatbuffers.UOffsetT) *CommitterState {
	n := flatbuffers.GetUOffsetT(buf[offset:])
	x := &CommitterState{}
	x.Init(buf, n+offset)
	return x
}

func (rcv *CommitterState) Init(buf []byte, i flatbuffers.UOffsetT) {
	rcv._tab.Bytes = buf
	rcv._tab.Pos = i
}

func (rcv *CommitterState) RunId() []byte {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(4))
	if o != 0 {
		return rcv._tab.ByteVector(o + rcv._tab.Pos)
	}
	return nil
}

func (rcv *CommitterState) Checkpoints(obj *PendingCheckpoint, j int) bool {
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

func (rcv *CommitterState) CheckpointsLength() int {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(6))
	if o != 0 {
		return rcv._tab.VectorLen(o)
	}
	return 0
}

func CommitterStateStart(builder *flatbuffers.Builder) {
	builder.StartObject(2)
}
func CommitterStateAddRunId(builder *flatbuffers.Builder, runId flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(0, runId, 0)
}
func CommitterStateAddCheckpoints(builder *flatbuffers.Builder, checkpoints flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(1, checkpoints, 0)
}
func CommitterStateStartCheckpointsVector(builder *flatbuffers.Builder, numElems int) flatbuffers.UOffsetT {
	return builder.StartVector(4, numElems, 4)
}
func CommitterStateEnd(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	return builder.EndObject()
}
