// Package merge implements the k-way merge of sorted run files into one
// coordinate-sorted output file. It assumes every run was produced by this
// module's spiller and shares one header; it is not a general-purpose file
// merger.
package merge

import (
	"container/heap"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/alnfile/alnfile/pkg/common/log"
	"github.com/alnfile/alnfile/pkg/header"
	"github.com/alnfile/alnfile/pkg/record"
	"github.com/alnfile/alnfile/pkg/run"
)

// ErrHeaderMismatch is returned when the run files being merged do not share
// a byte-identical header. The merge is aborted and every run file is left
// on disk for manual recovery.
var ErrHeaderMismatch = errors.New("run file header mismatch")

// ProgressFn receives the number of records merged so far.
type ProgressFn func(processed uint64)

// Merger merges sorted run files into one sorted output file.
type Merger struct {
	codec    run.Codec
	threads  int
	logger   log.Logger
	progress ProgressFn
}

// NewMerger creates a merger. codec and threads apply to the output file and
// to the run readers. progress may be nil.
func NewMerger(codec run.Codec, threads int, logger log.Logger, progress ProgressFn) *Merger {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &Merger{
		codec:    codec,
		threads:  threads,
		logger:   logger,
		progress: progress,
	}
}

// source is one run being merged: its reader and the current front record.
type source struct {
	reader    *run.Reader
	front     record.Record
	exhausted bool
}

// refill loads the next record from the source. End-of-stream is normal and
// marks the source exhausted; any other failure is fatal to the merge.
func (s *source) refill() error {
	err := s.reader.Next(&s.front)
	if err == io.EOF {
		s.exhausted = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read record from %s: %w", s.reader.Path(), err)
	}
	return nil
}

// Merge interleaves the given run files into outPath in ascending sort-key
// order. On success every run file is deleted. On any failure the run files
// are left untouched so an operator can recover the data; a partially
// written output, if the merge got that far, is left as-is.
func (m *Merger) Merge(runPaths []string, outPath string) error {
	sources := make([]*source, len(runPaths))
	defer func() {
		for _, s := range sources {
			if s != nil {
				s.reader.Close()
			}
		}
	}()

	// Open every run and read its header block concurrently. Ordering is
	// unaffected: the merge itself starts only after all opens finish.
	var g errgroup.Group
	for i, path := range runPaths {
		i, path := i, path
		g.Go(func() error {
			reader, err := run.OpenReader(path, m.threads)
			if err != nil {
				return err
			}
			sources[i] = &source{reader: reader}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// All runs were written by this module with one shared header; anything
	// else is fatal before any output is produced.
	common := sources[0].reader.Header()
	for _, s := range sources[1:] {
		if !common.Equal(s.reader.Header()) {
			return fmt.Errorf("%w: %s does not match %s",
				ErrHeaderMismatch, s.reader.Path(), sources[0].reader.Path())
		}
	}

	// Preload one front record per run. A run that is immediately at
	// end-of-stream simply contributes nothing.
	pending := make(mergeHeap, 0, len(sources))
	for i, s := range sources {
		if err := s.refill(); err != nil {
			return err
		}
		if !s.exhausted {
			pending = append(pending, heapItem{key: s.front.SortKey(), runIdx: i})
		}
	}
	heap.Init(&pending)

	outHeader := common.Clone()
	outHeader.SortOrder = header.SortOrderCoordinate
	out, err := run.NewWriter(outPath, m.codec, m.threads, outHeader)
	if err != nil {
		return err
	}

	var processed uint64
	for pending.Len() > 0 {
		item := heap.Pop(&pending).(heapItem)
		s := sources[item.runIdx]

		if err := out.Append(&s.front); err != nil {
			out.Close()
			return err
		}
		processed++
		if m.progress != nil {
			m.progress(processed)
		}

		if err := s.refill(); err != nil {
			out.Close()
			return err
		}
		if !s.exhausted {
			heap.Push(&pending, heapItem{key: s.front.SortKey(), runIdx: item.runIdx})
		}
	}

	if err := out.Close(); err != nil {
		return err
	}

	for _, s := range sources {
		s.reader.Close()
	}
	for _, path := range runPaths {
		if err := os.Remove(path); err != nil {
			m.logger.Warn("failed to remove merged run file %s: %v", path, err)
		}
	}
	m.logger.Debug("merged %d runs, %d records, into %s", len(runPaths), processed, outPath)
	return nil
}
