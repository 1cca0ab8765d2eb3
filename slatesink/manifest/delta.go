package manifest

import (
	"encoding/binary"
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/samber/mo"

	"github.com/slatedb/slatesink/internal/flatbuf"
	"github.com/slatedb/slatesink/slatesink/common"
)

// DeltaManifests references the manifest files flushed for one checkpoint.
type DeltaManifests struct {
	DataManifest        mo.Option[File]
	DeleteManifest      mo.Option[File]
	ReferencedDataFiles []string
}

// Manifests returns the present manifests, data first.
func (d DeltaManifests) Manifests() []File {
	var result []File
	if m, ok := d.DataManifest.Get(); ok {
		result = append(result, m)
	}
	if m, ok := d.DeleteManifest.Get(); ok {
		result = append(result, m)
	}
	return result
}

// VersionedSerializer converts values to bytes tagged with a version so that
// payloads written by older versions stay readable.
type VersionedSerializer[T any] interface {
	Version() uint32
	Serialize(value T) ([]byte, error)
	Deserialize(version uint32, data []byte) (T, error)
}

// WriteVersionAndSerialize frames the serialized value as
//
//	| version (4) | length (4) | body |
func WriteVersionAndSerialize[T any](s VersionedSerializer[T], value T) ([]byte, error) {
	body, err := s.Serialize(value)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, 2*common.SizeOfUint32+len(body))
	buf = binary.BigEndian.AppendUint32(buf, s.Version())
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(body)))
	return append(buf, body...), nil
}

// ReadVersionAndDeserialize reverses WriteVersionAndSerialize.
func ReadVersionAndDeserialize[T any](s VersionedSerializer[T], data []byte) (T, error) {
	var zero T
	if len(data) < 2*common.SizeOfUint32 {
		return zero, fmt.Errorf("%w: payload of %d bytes is too short", common.ErrInvalidManifest, len(data))
	}
	version := binary.BigEndian.Uint32(data)
	length := binary.BigEndian.Uint32(data[common.SizeOfUint32:])
	body := data[2*common.SizeOfUint32:]
	if uint64(length) != uint64(len(body)) {
		return zero, fmt.Errorf("%w: payload declares %d bytes, has %d", common.ErrInvalidManifest, length, len(body))
	}
	return s.Deserialize(version, body)
}

// ------------------------------------------------
// DeltaManifestsSerializer
// ------------------------------------------------

const (
	// deltaManifestsV1 holds only the data manifest.
	deltaManifestsV1 uint32 = 1
	// deltaManifestsV2 adds the delete manifest and referenced data files.
	deltaManifestsV2 uint32 = 2
)

type DeltaManifestsSerializer struct{}

var _ VersionedSerializer[DeltaManifests] = DeltaManifestsSerializer{}

func (DeltaManifestsSerializer) Version() uint32 {
	return deltaManifestsV2
}

func (DeltaManifestsSerializer) Serialize(d DeltaManifests) ([]byte, error) {
	t := flatbuf.DeltaManifestsT{ReferencedDataFiles: d.ReferencedDataFiles}
	if m, ok := d.DataManifest.Get(); ok {
		t.DataManifest = manifestRef(m)
	}
	if m, ok := d.DeleteManifest.Get(); ok {
		t.DeleteManifest = manifestRef(m)
	}

	builder := flatbuffers.NewBuilder(0)
	builder.Finish(t.Pack(builder))
	return builder.FinishedBytes(), nil
}

func (DeltaManifestsSerializer) Deserialize(version uint32, data []byte) (DeltaManifests, error) {
	switch version {
	case deltaManifestsV1:
		return deserializeV1(data)
	case deltaManifestsV2:
		return deserializeV2(data)
	default:
		return DeltaManifests{}, fmt.Errorf("%w: delta manifests version %d", common.ErrUnsupportedVersion, version)
	}
}

// SerializeV1 writes the single data manifest payload used before delete
// files were supported.
func SerializeV1(m File) []byte {
	builder := flatbuffers.NewBuilder(0)
	builder.Finish(manifestRef(m).Pack(builder))
	return builder.FinishedBytes()
}

func deserializeV1(data []byte) (d DeltaManifests, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", common.ErrInvalidManifest, r)
		}
	}()
	ref := flatbuf.GetRootAsManifestRef(data, 0).UnPack()
	return DeltaManifests{
		DataManifest:   mo.Some(fileFromRef(ref)),
		DeleteManifest: mo.None[File](),
	}, nil
}

func deserializeV2(data []byte) (d DeltaManifests, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", common.ErrInvalidManifest, r)
		}
	}()
	t := flatbuf.GetRootAsDeltaManifests(data, 0).UnPack()
	d = DeltaManifests{
		DataManifest:        mo.None[File](),
		DeleteManifest:      mo.None[File](),
		ReferencedDataFiles: t.ReferencedDataFiles,
	}
	if t.DataManifest != nil {
		d.DataManifest = mo.Some(fileFromRef(t.DataManifest))
	}
	if t.DeleteManifest != nil {
		d.DeleteManifest = mo.Some(fileFromRef(t.DeleteManifest))
	}
	return d, nil
}

func manifestRef(m File) *flatbuf.ManifestRefT {
	return &flatbuf.ManifestRefT{
		Path:            m.Path,
		Length:          m.Length,
		Content:         byte(m.Content),
		AddedFilesCount: m.AddedFilesCount,
	}
}

func fileFromRef(ref *flatbuf.ManifestRefT) File {
	return File{
		Path:            ref.Path,
		Length:          ref.Length,
		Content:         Content(ref.Content),
		AddedFilesCount: ref.AddedFilesCount,
	}
}
