// Package writer implements the sorted-output engine at the tail of a record
// pipeline. Records are buffered in a bounded cache, spilled to sorted run
// files when the cache fills, and merged into one coordinate-sorted output
// file at finalization. In passthrough mode records stream straight to the
// output in arrival order.
package writer

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/alnfile/alnfile/pkg/cache"
	"github.com/alnfile/alnfile/pkg/common/log"
	"github.com/alnfile/alnfile/pkg/header"
	"github.com/alnfile/alnfile/pkg/index"
	"github.com/alnfile/alnfile/pkg/merge"
	"github.com/alnfile/alnfile/pkg/record"
	"github.com/alnfile/alnfile/pkg/run"
)

const (
	// DefaultBufferSize is the cache capacity used when Options.BufferSize
	// is left zero.
	DefaultBufferSize = 64 << 20

	// MinBufferSize is the smallest allowed cache capacity.
	MinBufferSize = cache.MinCapacity

	// Rough divisions of how far through finalization we are at the start
	// of each phase.
	percentStartMerging  = 5
	percentStartIndexing = 50
)

var (
	// ErrHeaderNotSet is returned when a record is written before SetHeader
	ErrHeaderNotSet = errors.New("header not set")

	// ErrClosed is returned when a record is written after Finalize
	ErrClosed = errors.New("writer already finalized")
)

// Mode selects the writer's behavior, fixed at construction.
type Mode int

const (
	// ModePassthrough streams records to the output in arrival order
	ModePassthrough Mode = iota
	// ModeSorted buffers, spills and merges to produce coordinate order
	ModeSorted
)

// State tracks the one-way open-to-closed transition.
type State int

const (
	// StateOpen accepts writes
	StateOpen State = iota
	// StateClosed accepts nothing further
	StateClosed
)

// Options configures a Writer.
type Options struct {
	// BufferSize is the record cache capacity in bytes (sorted mode only).
	// Zero selects DefaultBufferSize; anything below MinBufferSize is
	// rejected.
	BufferSize int

	// Threads sizes the compression worker pool of the underlying file
	// transport. It is passed through, not interpreted.
	Threads int

	// Sorted selects coordinate-sorted output; otherwise records pass
	// straight through in arrival order.
	Sorted bool

	// Codec selects the stream compression of run files and the output.
	Codec run.Codec

	// Logger receives diagnostics. Defaults to the package default logger.
	Logger log.Logger
}

// Writer is the output engine. It is single-writer and non-reentrant: all
// Write calls and the one Finalize call must come from one logical sequence.
type Writer struct {
	path    string
	mode    Mode
	state   State
	codec   run.Codec
	threads int
	logger  log.Logger

	hdr        *header.Header
	cache      *cache.Cache
	spiller    *run.Spiller
	out        *run.Writer // passthrough output, open once the header is set
	numRecords uint64
}

// New creates a writer targeting the given output path. In sorted mode the
// cache capacity is validated before anything else is allocated.
func New(path string, opts Options) (*Writer, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.GetDefaultLogger()
	}

	w := &Writer{
		path:    path,
		codec:   opts.Codec,
		threads: opts.Threads,
		logger:  logger,
	}

	if opts.Sorted {
		bufferSize := opts.BufferSize
		if bufferSize == 0 {
			bufferSize = DefaultBufferSize
		}
		c, err := cache.New(bufferSize)
		if err != nil {
			return nil, err
		}
		w.mode = ModeSorted
		w.cache = c
		w.spiller = run.NewSpiller(path, opts.Codec, opts.Threads, logger)
	}

	// Dropping a writer without finalizing it leaks run files and buffered
	// records; treat it as a programmer error loud enough to stop on.
	runtime.SetFinalizer(w, func(w *Writer) {
		w.logger.Fatal("writer for %s destroyed without Finalize", w.path)
	})
	return w, nil
}

// SetHeader installs a deep copy of the header. It must be called before the
// first Write. In passthrough mode this opens the output file and writes the
// header immediately.
func (w *Writer) SetHeader(h *header.Header) error {
	if w.state == StateClosed {
		return ErrClosed
	}
	w.hdr = h.Clone()

	if w.mode == ModePassthrough && w.out == nil {
		out, err := run.NewWriter(w.path, w.codec, w.threads, w.hdr)
		if err != nil {
			return err
		}
		w.out = out
	}
	return nil
}

// Write accepts one record. In sorted mode a record that does not fit in the
// cache triggers an immediate spill that places it at its correct sorted
// position within the new run.
func (w *Writer) Write(rec *record.Record) error {
	if w.state == StateClosed {
		return ErrClosed
	}
	if w.hdr == nil {
		return ErrHeaderNotSet
	}

	w.numRecords++
	if w.mode == ModePassthrough {
		return w.out.Append(rec)
	}

	if !w.cache.Insert(rec) {
		return w.spiller.Spill(w.cache, w.hdr, rec)
	}
	return nil
}

// NumRecords returns the number of records accepted so far.
func (w *Writer) NumRecords() uint64 {
	return w.numRecords
}

// Finalize closes out the output: it spills any still-buffered records,
// renames a single run directly to the target, or merges multiple runs, and
// builds the positional index when the header carries a reference catalog.
// A second call logs a warning and does nothing. progress may be nil; when
// given it starts at 0 and reaches 100 on every exit path. On merge failure
// the run files are preserved on disk and the error is returned; the writer
// still transitions to closed.
func (w *Writer) Finalize(progress ProgressFn) error {
	if progress == nil {
		progress = func(int) {}
	}
	progress(0)
	defer progress(100)

	if w.state == StateClosed {
		w.logger.Warn("Finalize called twice on writer for %s, ignoring second call", w.path)
		return nil
	}
	w.state = StateClosed
	runtime.SetFinalizer(w, nil)

	if w.mode == ModePassthrough {
		if w.out == nil {
			return nil
		}
		out := w.out
		w.out = nil
		return out.Close()
	}

	if err := w.spiller.Spill(w.cache, w.hdr, nil); err != nil {
		return err
	}

	runs := w.spiller.Runs()
	if len(runs) == 0 {
		// Nothing was ever written; no output file is produced.
		return nil
	}

	if len(runs) == 1 {
		// Single-run fast path: the run already has the final content.
		if err := os.Rename(runs[0], w.path); err != nil {
			return fmt.Errorf("failed to rename run file to %s: %w", w.path, err)
		}
	} else {
		progress(percentStartMerging)
		updater := newProgressUpdater(progress, percentStartMerging, percentStartIndexing, w.numRecords)
		merger := merge.NewMerger(w.codec, w.threads, w.logger, updater.update)
		if err := merger.Merge(runs, w.path); err != nil {
			w.logger.Error("merging of run files failed, skipping indexing: %v", err)
			return err
		}
	}

	if w.hdr != nil && w.hdr.Mapped() {
		progress(percentStartIndexing)
		if _, err := index.Build(w.path, w.threads); err != nil {
			// The data file is valid without its index; don't fail the close.
			w.logger.Error("failed to build index for %s: %v", w.path, err)
		}
	}
	return nil
}
