package cache

import (
	"bytes"
	"errors"
	"testing"

	"github.com/alnfile/alnfile/pkg/record"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(MinCapacity)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	return c
}

func collectKeys(t *testing.T, c *Cache, external *record.Record) []uint64 {
	t.Helper()
	var keys []uint64
	err := c.Ascend(external, func(r *record.Record) error {
		keys = append(keys, r.SortKey())
		return nil
	})
	if err != nil {
		t.Fatalf("Ascend failed: %v", err)
	}
	return keys
}

func TestNewRejectsSmallCapacity(t *testing.T) {
	_, err := New(MinCapacity - 1)
	if !errors.Is(err, ErrCapacityTooSmall) {
		t.Errorf("expected ErrCapacityTooSmall, got %v", err)
	}

	if _, err := New(MinCapacity); err != nil {
		t.Errorf("minimum capacity should be accepted, got %v", err)
	}
}

func TestInsertAndAscendOrder(t *testing.T) {
	c := newTestCache(t)

	// Arrival order 5, 1, 3; traversal order must be 1, 3, 5.
	for _, pos := range []int32{5, 1, 3} {
		r := &record.Record{RefID: 0, Pos: pos, Data: []byte("x")}
		if !c.Insert(r) {
			t.Fatalf("record with pos %d unexpectedly did not fit", pos)
		}
	}

	keys := collectKeys(t, c, nil)
	want := []uint64{record.Key(0, 1), record.Key(0, 3), record.Key(0, 5)}
	if len(keys) != len(want) {
		t.Fatalf("got %d records, expected %d", len(keys), len(want))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("key %d: got %d, expected %d", i, keys[i], want[i])
		}
	}
}

func TestInsertPreservesPayload(t *testing.T) {
	c := newTestCache(t)

	payload := bytes.Repeat([]byte("payload"), 100)
	r := &record.Record{RefID: 2, Pos: 9, Flags: 77, Data: payload}
	if !c.Insert(r) {
		t.Fatal("record unexpectedly did not fit")
	}

	// Mutate the original; the cache must hold its own copy.
	r.Data[0] = 'X'

	err := c.Ascend(nil, func(got *record.Record) error {
		if got.RefID != 2 || got.Pos != 9 || got.Flags != 77 {
			t.Errorf("envelope mismatch: %+v", *got)
		}
		if got.Data[0] != 'p' {
			t.Error("cache does not hold an independent copy of the payload")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Ascend failed: %v", err)
	}
}

func TestOverflowDoesNotMutate(t *testing.T) {
	c := newTestCache(t)

	small := &record.Record{RefID: 0, Pos: 1, Data: []byte("small")}
	if !c.Insert(small) {
		t.Fatal("small record did not fit")
	}

	huge := &record.Record{RefID: 0, Pos: 2, Data: make([]byte, MinCapacity)}
	if c.Insert(huge) {
		t.Fatal("oversized record unexpectedly fit")
	}

	if c.Len() != 1 {
		t.Errorf("overflow mutated the cache: Len() = %d, expected 1", c.Len())
	}
}

func TestExternalSentinelOrdering(t *testing.T) {
	c := newTestCache(t)

	for _, pos := range []int32{10, 30} {
		if !c.Insert(&record.Record{RefID: 0, Pos: pos, Data: []byte("buffered")}) {
			t.Fatalf("record with pos %d did not fit", pos)
		}
	}

	// The external record belongs between the buffered ones.
	external := &record.Record{RefID: 0, Pos: 20, Data: []byte("external")}
	c.InsertExternal(external.SortKey())

	keys := collectKeys(t, c, external)
	want := []uint64{record.Key(0, 10), record.Key(0, 20), record.Key(0, 30)}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("key %d: got %d, expected %d", i, keys[i], want[i])
		}
	}
}

func TestExternalSlotWithoutRecordIsCorruption(t *testing.T) {
	c := newTestCache(t)
	c.InsertExternal(record.Key(0, 1))

	err := c.Ascend(nil, func(*record.Record) error { return nil })
	if !errors.Is(err, ErrCorrupted) {
		t.Errorf("expected ErrCorrupted, got %v", err)
	}
}

func TestEqualKeysKeepArrivalOrder(t *testing.T) {
	c := newTestCache(t)

	for i := byte(0); i < 5; i++ {
		if !c.Insert(&record.Record{RefID: 1, Pos: 7, Data: []byte{i}}) {
			t.Fatalf("record %d did not fit", i)
		}
	}

	var order []byte
	err := c.Ascend(nil, func(r *record.Record) error {
		order = append(order, r.Data[0])
		return nil
	})
	if err != nil {
		t.Fatalf("Ascend failed: %v", err)
	}
	for i := byte(0); i < 5; i++ {
		if order[i] != i {
			t.Fatalf("equal keys out of arrival order: %v", order)
		}
	}
}

func TestResetReusesArena(t *testing.T) {
	c := newTestCache(t)

	payload := make([]byte, MinCapacity/2)
	if !c.Insert(&record.Record{RefID: 0, Pos: 1, Data: payload}) {
		t.Fatal("first record did not fit")
	}
	if c.Insert(&record.Record{RefID: 0, Pos: 2, Data: payload}) {
		t.Fatal("second record should not fit before reset")
	}

	c.Reset()
	if c.Len() != 0 {
		t.Errorf("Len() = %d after Reset, expected 0", c.Len())
	}
	if !c.Insert(&record.Record{RefID: 0, Pos: 2, Data: payload}) {
		t.Error("record did not fit after Reset")
	}
}

func TestAlignmentOfOffsets(t *testing.T) {
	c := newTestCache(t)

	// Odd-sized payloads must not misalign subsequent envelopes.
	for i := int32(0); i < 10; i++ {
		if !c.Insert(&record.Record{RefID: 0, Pos: i, Data: bytes.Repeat([]byte{1}, 3)}) {
			t.Fatalf("record %d did not fit", i)
		}
	}

	count := 0
	err := c.Ascend(nil, func(r *record.Record) error {
		if len(r.Data) != 3 {
			t.Errorf("payload length %d, expected 3", len(r.Data))
		}
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("Ascend failed: %v", err)
	}
	if count != 10 {
		t.Errorf("traversed %d records, expected 10", count)
	}
}
