package compress

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

const (
	CodecNone Codec = iota
	CodecSnappy
	CodecZlib
	CodecLz4
	CodecZstd
)

// Codec identifies the compression applied to a manifest file body. The
// numeric value is persisted in the manifest file header and must not change.
type Codec int8

var ErrInvalidCodec = errors.New("invalid compression codec")

var codecNames = map[Codec]string{
	CodecNone:   "None",
	CodecSnappy: "Snappy",
	CodecZlib:   "Zlib",
	CodecLz4:    "LZ4",
	CodecZstd:   "Zstd",
}

// String converts Codec to string
func (c Codec) String() string {
	if name, ok := codecNames[c]; ok {
		return name
	}
	return "Unknown"
}

// Valid reports whether c is one of the known codecs.
func (c Codec) Valid() bool {
	_, ok := codecNames[c]
	return ok
}

// ParseCodec accepts the case-insensitive codec name as it appears in
// configuration files.
func ParseCodec(s string) (Codec, error) {
	for c, name := range codecNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return c, nil
		}
	}
	if s == "" {
		return CodecNone, nil
	}
	return CodecNone, fmt.Errorf("%w: %q", ErrInvalidCodec, s)
}

func (c *Codec) UnmarshalText(text []byte) error {
	parsed, err := ParseCodec(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c Codec) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, ErrInvalidCodec
	}
	return []byte(c.String()), nil
}

// Encode the provided byte slice
func Encode(buf []byte, codec Codec) ([]byte, error) {
	switch codec {
	case CodecNone:
		return buf, nil
	case CodecSnappy:
		return snappy.Encode(nil, buf), nil
	case CodecZlib:
		return streamEncode(buf, func(w io.Writer) (io.WriteCloser, error) {
			return zlib.NewWriter(w), nil
		})
	case CodecLz4:
		return streamEncode(buf, func(w io.Writer) (io.WriteCloser, error) {
			return lz4.NewWriter(w), nil
		})
	case CodecZstd:
		return streamEncode(buf, func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(w)
		})
	default:
		return nil, ErrInvalidCodec
	}
}

func streamEncode(buf []byte, open func(io.Writer) (io.WriteCloser, error)) ([]byte, error) {
	var b bytes.Buffer
	w, err := open(&b)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(buf); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Decode the provided byte slice according to the compression codec
func Decode(buf []byte, codec Codec) ([]byte, error) {
	switch codec {
	case CodecNone:
		return buf, nil

	case CodecSnappy:
		return snappy.Decode(nil, buf)

	case CodecZlib:
		r, err := zlib.NewReader(bytes.NewReader(buf))
		if err != nil {
			return nil, err
		}
		defer func() { _ = r.Close() }()
		return io.ReadAll(r)

	case CodecLz4:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(buf)))

	case CodecZstd:
		r, err := zstd.NewReader(bytes.NewReader(buf))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)

	default:
		return nil, ErrInvalidCodec
	}
}
