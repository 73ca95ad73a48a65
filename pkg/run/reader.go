package run

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"

	"github.com/alnfile/alnfile/pkg/header"
	"github.com/alnfile/alnfile/pkg/record"
)

// Reader reads a run file (or a final output file) sequentially.
type Reader struct {
	path    string
	file    *os.File
	stream  io.Reader
	decoder *zstd.Decoder
	hdr     *header.Header
}

// OpenReader opens the file at path, validates the preamble, and reads the
// header block. threads sizes the zstd decoder's worker pool.
func OpenReader(path string, threads int) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run file: %w", err)
	}

	r := &Reader{path: path, file: file}
	if err := r.init(threads); err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) init(threads int) error {
	var preamble [preambleSize]byte
	if _, err := io.ReadFull(r.file, preamble[:]); err != nil {
		return fmt.Errorf("failed to read run file preamble: %w", err)
	}
	if binary.LittleEndian.Uint64(preamble[0:8]) != FileMagic {
		return fmt.Errorf("%w: %s", ErrBadMagic, r.path)
	}

	buffered := bufio.NewReaderSize(r.file, writerBufferSize)
	switch Codec(preamble[8]) {
	case CodecNone:
		r.stream = buffered
	case CodecSnappy:
		r.stream = snappy.NewReader(buffered)
	case CodecZstd:
		if threads < 1 {
			threads = 1
		}
		decoder, err := zstd.NewReader(buffered, zstd.WithDecoderConcurrency(threads))
		if err != nil {
			return fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		r.decoder = decoder
		r.stream = decoder
	default:
		return fmt.Errorf("%w: id %d in %s", ErrUnknownCodec, preamble[8], r.path)
	}

	hdr, err := header.ReadBlock(r.stream)
	if err != nil {
		return err
	}
	r.hdr = hdr
	return nil
}

// Header returns the header block read when the file was opened.
func (r *Reader) Header() *header.Header {
	return r.hdr
}

// Next reads the next record into rec. It returns io.EOF at the clean end of
// the stream.
func (r *Reader) Next(rec *record.Record) error {
	return record.Read(r.stream, rec)
}

// Path returns the file path being read.
func (r *Reader) Path() string {
	return r.path
}

// Close releases the decoder and the underlying file.
func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	if r.decoder != nil {
		r.decoder.Close()
		r.decoder = nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
