package manifest

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/slatedb/slatesink/internal/compress"
	"github.com/slatedb/slatesink/internal/flatbuf"
	"github.com/slatedb/slatesink/slatesink/common"
	"github.com/slatedb/slatesink/slatesink/table"
)

// Manifest file layout:
//
//	| magic (4) | codec (1) | compressed flatbuf.ManifestFile | crc32 of compressed (4) |
var manifestMagic = []byte("SSMF")

const headerLen = 5

// Content says which kind of files a manifest lists.
type Content byte

const (
	ContentData Content = iota
	ContentDeletes
)

// File is a handle to a manifest file written to the table's storage.
type File struct {
	Path            string
	Length          uint64
	Content         Content
	AddedFilesCount uint32
}

// EncodeFile serializes files into the manifest file format.
func EncodeFile(content Content, files []table.DataFile, codec compress.Codec) ([]byte, error) {
	entries := make([]*flatbuf.DataFileT, 0, len(files))
	for _, f := range files {
		entries = append(entries, &flatbuf.DataFileT{
			Content:       flatbuf.FileContent(f.Content),
			Path:          f.Path,
			Partition:     f.Partition,
			RecordCount:   f.RecordCount,
			FileSizeBytes: f.FileSizeBytes,
		})
	}
	mf := flatbuf.ManifestFileT{Content: byte(content), Entries: entries}

	builder := flatbuffers.NewBuilder(0)
	builder.Finish(mf.Pack(builder))

	compressed, err := compress.Encode(builder.FinishedBytes(), codec)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrInvalidCompressionCodec, err)
	}

	buf := make([]byte, 0, headerLen+len(compressed)+common.SizeOfUint32)
	buf = append(buf, manifestMagic...)
	buf = append(buf, byte(codec))
	buf = append(buf, compressed...)
	return binary.BigEndian.AppendUint32(buf, crc32.ChecksumIEEE(compressed)), nil
}

// DecodeFile parses a manifest file produced by EncodeFile.
func DecodeFile(data []byte) (Content, []table.DataFile, error) {
	if len(data) < headerLen+common.SizeOfUint32 || !bytes.Equal(data[:len(manifestMagic)], manifestMagic) {
		return 0, nil, fmt.Errorf("%w: bad manifest header", common.ErrInvalidManifest)
	}

	checksumIndex := len(data) - common.SizeOfUint32
	compressed := data[headerLen:checksumIndex]
	if binary.BigEndian.Uint32(data[checksumIndex:]) != crc32.ChecksumIEEE(compressed) {
		return 0, nil, fmt.Errorf("%w: checksum mismatch", common.ErrInvalidManifest)
	}

	codec := compress.Codec(data[len(manifestMagic)])
	if !codec.Valid() {
		return 0, nil, fmt.Errorf("%w: %d", common.ErrInvalidCompressionCodec, codec)
	}
	buf, err := compress.Decode(compressed, codec)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s", common.ErrInvalidManifest, err)
	}

	mf, err := unpackManifestFile(buf)
	if err != nil {
		return 0, nil, err
	}
	files := make([]table.DataFile, 0, len(mf.Entries))
	for _, e := range mf.Entries {
		files = append(files, table.DataFile{
			Content:       table.FileContent(e.Content),
			Path:          e.Path,
			Partition:     e.Partition,
			RecordCount:   e.RecordCount,
			FileSizeBytes: e.FileSizeBytes,
		})
	}
	return Content(mf.Content), files, nil
}

// flatbuffers accessors panic on out of range offsets
func unpackManifestFile(buf []byte) (mf *flatbuf.ManifestFileT, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", common.ErrInvalidManifest, r)
		}
	}()
	return flatbuf.GetRootAsManifestFile(buf, 0).UnPack(), nil
}

// WriteFile writes files as a manifest at path and returns its handle.
func WriteFile(ctx context.Context, io table.FileIO, path string, content Content,
	files []table.DataFile, codec compress.Codec) (File, error) {

	data, err := EncodeFile(content, files, codec)
	if err != nil {
		return File{}, err
	}
	if err := io.Write(ctx, path, data); err != nil {
		return File{}, fmt.Errorf("while writing manifest %s: %w", path, err)
	}
	return File{
		Path:            path,
		Length:          uint64(len(data)),
		Content:         content,
		AddedFilesCount: uint32(len(files)),
	}, nil
}

// ReadFile reads back the files listed by the manifest m.
func ReadFile(ctx context.Context, io table.FileIO, m File) ([]table.DataFile, error) {
	data, err := io.Read(ctx, m.Path)
	if err != nil {
		return nil, fmt.Errorf("while reading manifest %s: %w", m.Path, err)
	}
	content, files, err := DecodeFile(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", m.Path, err)
	}
	if content != m.Content {
		return nil, fmt.Errorf("%w: manifest %s holds content %d, expected %d",
			common.ErrInvalidManifest, m.Path, content, m.Content)
	}
	return files, nil
}
