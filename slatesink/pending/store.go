package pending

import (
	"github.com/huandu/skiplist"
	"github.com/samber/mo"

	"github.com/slatedb/slatesink/internal/assert"
)

// ------------------------------------------------
// Entry
// ------------------------------------------------

// Entry is one flushed checkpoint waiting for its table commit. A zero length
// Payload records a checkpoint interval that produced no writes.
type Entry struct {
	CheckpointID uint64
	Payload      []byte
}

func (e Entry) IsEmpty() bool {
	return len(e.Payload) == 0
}

// ------------------------------------------------
// Store
// ------------------------------------------------

// Store is the ordered map of checkpoint id to manifest payload. It is owned
// by a single committer and is not safe for concurrent use.
type Store struct {
	// skl stores checkpoint id (uint64), payload ([]byte) pairs
	skl *skiplist.SkipList
}

func New() *Store {
	return &Store{skl: skiplist.New(skiplist.Uint64)}
}

// FromEntries restores a Store from a persisted list of entries.
func FromEntries(entries []Entry) *Store {
	s := New()
	for _, e := range entries {
		s.Put(e.CheckpointID, e.Payload)
	}
	return s
}

// Put records the payload for checkpointID, replacing any previous payload
// for the same id. Ids must not decrease.
func (s *Store) Put(checkpointID uint64, payload []byte) {
	if last, ok := s.Max().Get(); ok {
		assert.True(checkpointID >= last,
			"checkpoint %d put after checkpoint %d", checkpointID, last)
	}
	s.skl.Set(checkpointID, payload)
}

func (s *Store) Get(checkpointID uint64) mo.Option[[]byte] {
	elem := s.skl.Get(checkpointID)
	if elem == nil {
		return mo.None[[]byte]()
	}
	return mo.Some(elem.Value.([]byte))
}

// HeadUpTo returns entries with id < checkpointID, or id <= checkpointID when
// inclusive, in increasing id order.
func (s *Store) HeadUpTo(checkpointID uint64, inclusive bool) []Entry {
	var result []Entry
	for elem := s.skl.Front(); elem != nil; elem = elem.Next() {
		id := elem.Key().(uint64)
		if id > checkpointID || (id == checkpointID && !inclusive) {
			break
		}
		result = append(result, Entry{CheckpointID: id, Payload: elem.Value.([]byte)})
	}
	return result
}

// TailAfter returns entries with id > checkpointID in increasing id order.
func (s *Store) TailAfter(checkpointID uint64) []Entry {
	var result []Entry
	for elem := s.skl.Find(checkpointID); elem != nil; elem = elem.Next() {
		id := elem.Key().(uint64)
		if id == checkpointID {
			continue
		}
		result = append(result, Entry{CheckpointID: id, Payload: elem.Value.([]byte)})
	}
	return result
}

// RemoveUpTo drops every entry with id < checkpointID, or id <= checkpointID
// when inclusive, and returns the number of removed entries.
func (s *Store) RemoveUpTo(checkpointID uint64, inclusive bool) int {
	removed := 0
	for elem := s.skl.Front(); elem != nil; elem = s.skl.Front() {
		id := elem.Key().(uint64)
		if id > checkpointID || (id == checkpointID && !inclusive) {
			break
		}
		s.skl.RemoveFront()
		removed++
	}
	return removed
}

func (s *Store) Min() mo.Option[uint64] {
	elem := s.skl.Front()
	if elem == nil {
		return mo.None[uint64]()
	}
	return mo.Some(elem.Key().(uint64))
}

func (s *Store) Max() mo.Option[uint64] {
	elem := s.skl.Back()
	if elem == nil {
		return mo.None[uint64]()
	}
	return mo.Some(elem.Key().(uint64))
}

func (s *Store) Len() int {
	return s.skl.Len()
}

func (s *Store) IsEmpty() bool {
	return s.skl.Len() == 0
}

// Entries returns a snapshot of every entry in increasing id order.
func (s *Store) Entries() []Entry {
	result := make([]Entry, 0, s.skl.Len())
	for elem := s.skl.Front(); elem != nil; elem = elem.Next() {
		result = append(result, Entry{CheckpointID: elem.Key().(uint64), Payload: elem.Value.([]byte)})
	}
	return result
}

func (s *Store) Clear() {
	s.skl.Init()
}
