package cache

import (
	"math/rand"
	"time"
)

const (
	// maxHeight is the maximum height of the skip list
	maxHeight = 12

	// branchingFactor determines the probability of increasing the height
	branchingFactor = 4
)

// slot is one index entry: a sort key, a registration sequence number that
// keeps equal keys in arrival order, and the arena offset of the record.
// externalOffset marks a record that lives outside the arena.
type slot struct {
	key    uint64
	seq    uint64
	offset int64
}

// externalOffset is the sentinel offset for a record registered into the
// index without being copied into the arena.
const externalOffset int64 = -1

// less orders slots by key, then by registration order.
func (s slot) less(other slot) bool {
	if s.key != other.key {
		return s.key < other.key
	}
	return s.seq < other.seq
}

// node is one skip list node
type node struct {
	slot   slot
	height int
	next   [maxHeight]*node
}

// skipList is an ordered multimap of sort keys to arena offsets. The engine
// is single-writer, so no synchronization is needed.
type skipList struct {
	head      *node
	maxHeight int
	length    int
	rnd       *rand.Rand
}

func newSkipList() *skipList {
	return &skipList{
		head:      &node{height: maxHeight},
		maxHeight: 1,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// randomHeight generates a random height for a new node
func (s *skipList) randomHeight() int {
	height := 1
	for height < maxHeight && s.rnd.Intn(branchingFactor) == 0 {
		height++
	}
	return height
}

// insert adds a slot to the skip list, keeping ascending (key, seq) order.
func (s *skipList) insert(sl slot) {
	var prev [maxHeight]*node
	current := s.head

	for level := s.maxHeight - 1; level >= 0; level-- {
		for current.next[level] != nil && current.next[level].slot.less(sl) {
			current = current.next[level]
		}
		prev[level] = current
	}
	for level := s.maxHeight; level < maxHeight; level++ {
		prev[level] = s.head
	}

	height := s.randomHeight()
	if height > s.maxHeight {
		s.maxHeight = height
	}

	n := &node{slot: sl, height: height}
	for level := 0; level < height; level++ {
		n.next[level] = prev[level].next[level]
		prev[level].next[level] = n
	}
	s.length++
}

// ascend calls fn for every slot in ascending order. It stops and returns
// the first error fn returns.
func (s *skipList) ascend(fn func(slot) error) error {
	for n := s.head.next[0]; n != nil; n = n.next[0] {
		if err := fn(n.slot); err != nil {
			return err
		}
	}
	return nil
}

// len returns the number of slots in the skip list
func (s *skipList) len() int {
	return s.length
}

// reset empties the skip list while keeping it usable.
func (s *skipList) reset() {
	s.head = &node{height: maxHeight}
	s.maxHeight = 1
	s.length = 0
}
