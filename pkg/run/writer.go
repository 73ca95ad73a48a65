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

// Writer writes one run file (or the final output file, which shares the
// format). Records must be appended in ascending sort-key order.
type Writer struct {
	path       string
	file       *os.File
	compressor io.WriteCloser
	numRecords uint64
}

// NewWriter creates the file at path, writes the preamble and the header
// block, and returns a Writer ready to append records. threads sizes the
// zstd encoder's worker pool; it is ignored by the other codecs.
func NewWriter(path string, codec Codec, threads int, h *header.Header) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create run file: %w", err)
	}

	var preamble [preambleSize]byte
	binary.LittleEndian.PutUint64(preamble[0:8], FileMagic)
	preamble[8] = byte(codec)
	if _, err := file.Write(preamble[:]); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write run file preamble: %w", err)
	}

	compressor, err := newCompressor(file, codec, threads)
	if err != nil {
		file.Close()
		return nil, err
	}

	w := &Writer{
		path:       path,
		file:       file,
		compressor: compressor,
	}

	if err := header.WriteBlock(w.compressor, h); err != nil {
		w.compressor.Close()
		w.file.Close()
		return nil, err
	}
	return w, nil
}

func newCompressor(file *os.File, codec Codec, threads int) (io.WriteCloser, error) {
	switch codec {
	case CodecNone:
		return flushWriter{bufio.NewWriterSize(file, writerBufferSize)}, nil
	case CodecSnappy:
		return snappy.NewBufferedWriter(file), nil
	case CodecZstd:
		if threads < 1 {
			threads = 1
		}
		enc, err := zstd.NewWriter(file,
			zstd.WithEncoderConcurrency(threads),
			zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		return enc, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, codec)
	}
}

// Append writes one record frame.
func (w *Writer) Append(r *record.Record) error {
	if err := record.Write(w.compressor, r); err != nil {
		return err
	}
	w.numRecords++
	return nil
}

// NumRecords returns the number of records appended so far.
func (w *Writer) NumRecords() uint64 {
	return w.numRecords
}

// Path returns the file path being written.
func (w *Writer) Path() string {
	return w.path
}

// Close flushes the compressor and closes the file.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	cerr := w.compressor.Close()
	ferr := w.file.Close()
	w.file = nil
	if cerr != nil {
		return fmt.Errorf("failed to flush run file: %w", cerr)
	}
	if ferr != nil {
		return fmt.Errorf("failed to close run file: %w", ferr)
	}
	return nil
}
