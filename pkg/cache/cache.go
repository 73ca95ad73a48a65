// Package cache implements the bounded in-memory record cache: a fixed-size
// arena of bytes holding copied records, plus an ordered index that yields
// them in ascending sort-key order for spilling.
package cache

import (
	"errors"
	"fmt"

	"github.com/alnfile/alnfile/pkg/record"
)

// MinCapacity is the smallest allowed cache capacity in bytes.
const MinCapacity = 100000

var (
	// ErrCapacityTooSmall is returned when the configured capacity is below MinCapacity
	ErrCapacityTooSmall = errors.New("cache capacity below minimum")

	// ErrCorrupted indicates an index entry resolved outside the arena. This
	// is an internal invariant violation; the operation that hit it must be
	// aborted rather than read out of bounds.
	ErrCorrupted = errors.New("corrupted record cache")
)

// Cache is the bounded record cache. It is owned by a single writer and has
// no internal locking.
type Cache struct {
	arena  []byte
	offset int
	index  *skipList
	seq    uint64
}

// New creates a cache with the given arena capacity in bytes.
func New(capacity int) (*Cache, error) {
	if capacity < MinCapacity {
		return nil, fmt.Errorf("%w: %d bytes, minimum is %d", ErrCapacityTooSmall, capacity, MinCapacity)
	}
	return &Cache{
		arena: make([]byte, capacity),
		index: newSkipList(),
	}, nil
}

// Insert copies the record into the arena and registers it in the index.
// It returns false, with no mutation, when the record does not fit in the
// remaining capacity; the caller is expected to spill.
func (c *Cache) Insert(r *record.Record) bool {
	need := r.Size()
	if c.offset+need > len(c.arena) {
		return false
	}

	record.EncodeEnvelope(c.arena[c.offset:], r)
	copy(c.arena[c.offset+record.EnvelopeSize:], r.Data)

	c.index.insert(slot{key: r.SortKey(), seq: c.seq, offset: int64(c.offset)})
	c.seq++

	// Round the offset up so the next envelope stays 8-byte aligned.
	c.offset += need
	c.offset = (c.offset + 7) &^ 7
	return true
}

// InsertExternal registers a record that is not stored in the arena, so that
// it participates in the ascending traversal at its correct position. The
// record itself is supplied to Ascend by the caller.
func (c *Cache) InsertExternal(key uint64) {
	c.index.insert(slot{key: key, seq: c.seq, offset: externalOffset})
	c.seq++
}

// Len returns the number of registered records, including an external one.
func (c *Cache) Len() int {
	return c.index.len()
}

// Ascend yields every registered record in ascending sort-key order,
// resolving the external sentinel to the supplied record. The record passed
// to fn aliases the arena and is only valid for the duration of the call.
func (c *Cache) Ascend(external *record.Record, fn func(*record.Record) error) error {
	var view record.Record
	return c.index.ascend(func(sl slot) error {
		if sl.offset == externalOffset {
			if external == nil {
				return fmt.Errorf("%w: external slot registered without a record", ErrCorrupted)
			}
			return fn(external)
		}

		offset := int(sl.offset)
		if offset+record.EnvelopeSize > len(c.arena) {
			return fmt.Errorf("%w: envelope at offset %d exceeds arena of %d bytes",
				ErrCorrupted, offset, len(c.arena))
		}
		dataLen := record.DecodeEnvelope(c.arena[offset:], &view)
		if offset+record.EnvelopeSize+int(dataLen) > len(c.arena) {
			return fmt.Errorf("%w: payload of %d bytes at offset %d exceeds arena of %d bytes",
				ErrCorrupted, dataLen, offset, len(c.arena))
		}
		view.Data = c.arena[offset+record.EnvelopeSize : offset+record.EnvelopeSize+int(dataLen)]
		return fn(&view)
	})
}

// Reset clears the index and rewinds the write offset. The arena is reused
// without being zeroed. The registration counter keeps counting so that
// arrival order stays stable across spills.
func (c *Cache) Reset() {
	c.index.reset()
	c.offset = 0
}

// Capacity returns the arena capacity in bytes.
func (c *Cache) Capacity() int {
	return len(c.arena)
}
