package run

import (
	"fmt"

	"github.com/alnfile/alnfile/pkg/cache"
	"github.com/alnfile/alnfile/pkg/common/log"
	"github.com/alnfile/alnfile/pkg/header"
	"github.com/alnfile/alnfile/pkg/record"
)

// Spiller drains the record cache into run files colocated with the target
// output. Run paths are "<target>.<n>.tmp" with n increasing, so leftover
// runs from a failed session are easy to identify.
type Spiller struct {
	target  string
	codec   Codec
	threads int
	runs    []string
	logger  log.Logger
}

// NewSpiller creates a spiller for the given target output path.
func NewSpiller(target string, codec Codec, threads int, logger log.Logger) *Spiller {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &Spiller{
		target:  target,
		codec:   codec,
		threads: threads,
		logger:  logger,
	}
}

// Spill writes the cache's contents as one ascending-sorted run file and
// resets the cache. extra, if non-nil, is a record that did not fit in the
// cache: it is registered under the external sentinel so it lands at its
// correct sorted position in the run. Spilling an empty cache with no extra
// record is a no-op. Write failures are returned as-is; the partial run file
// is left on disk for inspection and is not added to the run list.
func (s *Spiller) Spill(c *cache.Cache, h *header.Header, extra *record.Record) error {
	if c.Len() == 0 && extra == nil {
		return nil
	}

	if extra != nil {
		c.InsertExternal(extra.SortKey())
	}

	path := fmt.Sprintf("%s.%d.tmp", s.target, len(s.runs))
	w, err := NewWriter(path, s.codec, s.threads, h)
	if err != nil {
		return err
	}

	if err := c.Ascend(extra, func(r *record.Record) error {
		return w.Append(r)
	}); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	s.logger.Debug("spilled run %s with %d records", path, w.NumRecords())
	s.runs = append(s.runs, path)
	c.Reset()
	return nil
}

// Runs returns the paths of all run files written so far.
func (s *Spiller) Runs() []string {
	return s.runs
}
