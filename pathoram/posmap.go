package pathoram

import (
	"bufio"
	"encoding/binary"
	"io"
	"sync"

	"github.com/dp-oram/dp-oram/oramcrypto"
)

// PositionMap tracks the current leaf assigned to each live block id.
// Grounded on etclab-pathoram-go/posmap.go's InMemoryPositionMap, but
// generalized per spec §4.C: Get on an id with no recorded assignment
// returns a uniformly random leaf instead of a not-found flag, which is how
// a never-seen id acquires its first position during an access.
type PositionMap struct {
	mu        sync.Mutex
	leaves    map[uint64]uint64
	numLeaves uint64
	rnd       oramcrypto.Source
}

// NewPositionMap creates an empty position map over a tree with numLeaves
// leaves, drawing fresh assignments for unknown ids from rnd.
func NewPositionMap(numLeaves uint64, rnd oramcrypto.Source) *PositionMap {
	return &PositionMap{
		leaves:    make(map[uint64]uint64),
		numLeaves: numLeaves,
		rnd:       rnd,
	}
}

// Get returns the leaf currently assigned to id. If id has never been
// assigned, it returns a fresh uniformly random leaf without recording it;
// the caller (the access protocol) is responsible for calling Set with the
// id's real new assignment.
func (p *PositionMap) Get(id uint64) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if leaf, ok := p.leaves[id]; ok {
		return leaf
	}
	return p.rnd.Uint64n(p.numLeaves)
}

// Set records leaf as id's current assignment.
func (p *PositionMap) Set(id, leaf uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.leaves[id] = leaf
}

// Len returns the number of ids with a recorded assignment.
func (p *PositionMap) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.leaves)
}

// Serialize writes the position map as a stream of (id, leaf) uint64 pairs,
// for the local-storage Persist path (spec §6).
func (p *PositionMap) Serialize(w io.Writer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	bw := bufio.NewWriter(w)
	var header [8]byte
	binary.BigEndian.PutUint64(header[:], uint64(len(p.leaves)))
	if _, err := bw.Write(header[:]); err != nil {
		return err
	}
	var pair [16]byte
	for id, leaf := range p.leaves {
		binary.BigEndian.PutUint64(pair[:8], id)
		binary.BigEndian.PutUint64(pair[8:], leaf)
		if _, err := bw.Write(pair[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Load replaces the map's contents with data read from r, previously
// written by Serialize.
func (p *PositionMap) Load(r io.Reader) error {
	br := bufio.NewReader(r)
	var header [8]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return err
	}
	count := binary.BigEndian.Uint64(header[:])

	leaves := make(map[uint64]uint64, count)
	var pair [16]byte
	for i := uint64(0); i < count; i++ {
		if _, err := io.ReadFull(br, pair[:]); err != nil {
			return err
		}
		id := binary.BigEndian.Uint64(pair[:8])
		leaf := binary.BigEndian.Uint64(pair[8:])
		leaves[id] = leaf
	}

	p.mu.Lock()
	p.leaves = leaves
	p.mu.Unlock()
	return nil
}
