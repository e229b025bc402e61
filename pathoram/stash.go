package pathoram

import (
	"bufio"
	"encoding/binary"
	"io"
	"sync"
)

// Entry is one logical block held client-side in the stash.
type Entry struct {
	ID      uint64
	Leaf    uint64
	Payload []byte
}

// Stash holds blocks that have been read off the tree but not yet placed
// back during eviction. Grounded on the stash handling embedded in
// etclab-pathoram-go/oram.go's access(), pulled out here into its own type
// per spec §4.C so posmap and stash can be persisted and inspected
// independently.
type Stash struct {
	mu      sync.Mutex
	entries []Entry
}

// NewStash returns an empty stash.
func NewStash() *Stash {
	return &Stash{}
}

// Add inserts e. Two entries with the same id in the stash at once would
// indicate a broken invariant upstream (a block duplicated across the tree
// and the stash, or within the tree), so Add refuses it rather than
// silently shadowing one copy.
func (s *Stash) Add(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.entries {
		if existing.ID == e.ID {
			return ErrDuplicateStash
		}
	}
	s.entries = append(s.entries, e)
	return nil
}

// Remove deletes and returns the entry for id, if present.
func (s *Stash) Remove(id uint64) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return e, true
		}
	}
	return Entry{}, false
}

// Find returns the entry for id without removing it.
func (s *Stash) Find(id uint64) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// ForEach calls fn once per entry currently in the stash. fn must not call
// back into the stash.
func (s *Stash) ForEach(fn func(Entry)) {
	s.mu.Lock()
	snapshot := make([]Entry, len(s.entries))
	copy(snapshot, s.entries)
	s.mu.Unlock()
	for _, e := range snapshot {
		fn(e)
	}
}

// Len returns the number of entries currently held.
func (s *Stash) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Serialize writes the stash to w for the local-storage Persist path (spec
// §6). blockSize is not written to the stream and payloads are written as
// held, so Load must be given the same logical block size to read them
// back.
func (s *Stash) Serialize(w io.Writer, blockSize int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bw := bufio.NewWriter(w)
	var header [8]byte
	binary.BigEndian.PutUint64(header[:], uint64(len(s.entries)))
	if _, err := bw.Write(header[:]); err != nil {
		return err
	}
	for _, e := range s.entries {
		var fixed [16]byte
		binary.BigEndian.PutUint64(fixed[:8], e.ID)
		binary.BigEndian.PutUint64(fixed[8:], e.Leaf)
		if _, err := bw.Write(fixed[:]); err != nil {
			return err
		}
		if _, err := bw.Write(e.Payload); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Load replaces the stash's contents with data read from r, previously
// written by Serialize.
func (s *Stash) Load(r io.Reader, blockSize int) error {
	br := bufio.NewReader(r)
	var header [8]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return err
	}
	count := binary.BigEndian.Uint64(header[:])

	entries := make([]Entry, 0, count)
	for i := uint64(0); i < count; i++ {
		var fixed [16]byte
		if _, err := io.ReadFull(br, fixed[:]); err != nil {
			return err
		}
		payload := make([]byte, blockSize)
		if _, err := io.ReadFull(br, payload); err != nil {
			return err
		}
		entries = append(entries, Entry{
			ID:      binary.BigEndian.Uint64(fixed[:8]),
			Leaf:    binary.BigEndian.Uint64(fixed[8:]),
			Payload: payload,
		})
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	return nil
}
