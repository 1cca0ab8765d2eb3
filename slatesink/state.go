package slatesink

import (
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/slatedb/slatesink/internal/flatbuf"
	"github.com/slatedb/slatesink/slatesink/common"
	"github.com/slatedb/slatesink/slatesink/manifest"
	"github.com/slatedb/slatesink/slatesink/pending"
)

// State is what a committer persists at each checkpoint barrier.
type State struct {
	RunID       string
	Checkpoints []pending.Entry
}

const stateV1 uint32 = 1

type StateSerializer struct{}

var _ manifest.VersionedSerializer[State] = StateSerializer{}

func (StateSerializer) Version() uint32 {
	return stateV1
}

func (StateSerializer) Serialize(s State) ([]byte, error) {
	t := flatbuf.CommitterStateT{
		RunId:       s.RunID,
		Checkpoints: make([]*flatbuf.PendingCheckpointT, 0, len(s.Checkpoints)),
	}
	for _, e := range s.Checkpoints {
		t.Checkpoints = append(t.Checkpoints, &flatbuf.PendingCheckpointT{
			CheckpointId: e.CheckpointID,
			Manifest:     e.Payload,
		})
	}

	builder := flatbuffers.NewBuilder(0)
	builder.Finish(t.Pack(builder))
	return builder.FinishedBytes(), nil
}

func (StateSerializer) Deserialize(version uint32, data []byte) (s State, err error) {
	if version != stateV1 {
		return State{}, fmt.Errorf("%w: committer state version %d", common.ErrUnsupportedVersion, version)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", common.ErrInvalidState, r)
		}
	}()

	t := flatbuf.GetRootAsCommitterState(data, 0).UnPack()
	s = State{RunID: t.RunId, Checkpoints: make([]pending.Entry, 0, len(t.Checkpoints))}
	for _, c := range t.Checkpoints {
		payload := c.Manifest
		if payload == nil {
			payload = manifest.EmptyPayload
		}
		s.Checkpoints = append(s.Checkpoints, pending.Entry{CheckpointID: c.CheckpointId, Payload: payload})
	}
	return s, nil
}

// EncodeState serializes s with its version header.
func EncodeState(s State) ([]byte, error) {
	return manifest.WriteVersionAndSerialize[State](StateSerializer{}, s)
}

// DecodeState reverses EncodeState.
func DecodeState(data []byte) (State, error) {
	s, err := manifest.ReadVersionAndDeserialize[State](StateSerializer{}, data)
	if err != nil {
		return State{}, fmt.Errorf("while decoding committer state: %w", err)
	}
	return s, nil
}
