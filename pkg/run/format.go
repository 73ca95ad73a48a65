// Package run implements sorted run files: the on-disk spill format written
// by the Spiller and consumed by the merger. A run file is a magic number, a
// codec id, then a (possibly compressed) stream holding the shared header
// block followed by record frames in ascending sort-key order.
package run

import (
	"bufio"
	"errors"
	"fmt"
)

const (
	// FileMagic identifies a run/output file produced by this module
	FileMagic = uint64(0x31454C49464E4C41)

	// preambleSize is the fixed prefix before the compressed stream:
	// magic (8 bytes) plus codec id (1 byte).
	preambleSize = 9

	// writerBufferSize is the buffer in front of the OS file
	writerBufferSize = 256 * 1024
)

// Codec identifies the compression applied to the record stream.
type Codec uint8

const (
	// CodecNone stores the stream uncompressed
	CodecNone Codec = iota
	// CodecSnappy uses snappy framing, cheap and fast
	CodecSnappy
	// CodecZstd uses zstd with a bounded worker pool
	CodecZstd
)

var (
	// ErrBadMagic is returned when a file does not start with FileMagic
	ErrBadMagic = errors.New("not a run file")

	// ErrUnknownCodec is returned for an unsupported codec id
	ErrUnknownCodec = errors.New("unknown compression codec")
)

// String returns the codec name as used on the CLI.
func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecSnappy:
		return "snappy"
	case CodecZstd:
		return "zstd"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// ParseCodec maps a codec name to its id.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "none":
		return CodecNone, nil
	case "snappy":
		return CodecSnappy, nil
	case "zstd":
		return CodecZstd, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// flushWriter adapts a bufio.Writer to io.WriteCloser for the CodecNone path
// so every codec presents the same close-to-flush contract.
type flushWriter struct {
	*bufio.Writer
}

func (f flushWriter) Close() error {
	return f.Flush()
}
