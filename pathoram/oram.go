// Package pathoram implements the Path-ORAM engine: a heap-indexed binary
// bucket tree backed by a storage.Adapter, with a client-side position map
// and stash. Grounded on etclab-pathoram-go/oram.go, eviction.go and
// config.go, generalized per spec §4.C/§4.D: arbitrary eviction strategies
// and the constant-time TEE variant are dropped (see DESIGN.md) in favor of
// the single longest-path-match eviction the spec names, and bulk Load,
// Persist and Restore are added for the dataset-construction and
// checkpointing operations the spec requires that the teacher did not.
package pathoram

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dp-oram/dp-oram/oramcrypto"
	"github.com/dp-oram/dp-oram/storage"
)

// idHeaderSize is the width of the id header prepended to every logical
// block before encryption.
const idHeaderSize = 8

// emptyID marks a slot as holding no live block.
const emptyID = ^uint64(0)

// ORAM is a single Path-ORAM tree: one storage.Adapter, one position map,
// one stash, one AES-CTR codec, all owned by a single goroutine at a time
// (spec §5: one ORAM instance is never shared between shards).
type ORAM struct {
	cfg     Config
	storage storage.Adapter
	posmap  *PositionMap
	stash   *Stash
	codec   *oramcrypto.Codec
	key     []byte
	rnd     oramcrypto.Source
}

// New constructs an ORAM over an existing storage.Adapter, position map and
// stash. If fresh is true, every bucket is initialized to an
// encrypted-empty state before use; fresh must be false when resuming over
// a storage.Adapter that already holds a previously persisted tree. key is
// retained only so Persist can checkpoint it; New does not validate its
// relationship to codec.
func New(cfg Config, store storage.Adapter, posmap *PositionMap, stash *Stash, codec *oramcrypto.Codec, key []byte, rnd oramcrypto.Source, fresh bool) (*ORAM, error) {
	cfg, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	if store.Capacity() < cfg.StorageCapacity() {
		return nil, fmt.Errorf("%w: storage capacity %d below required %d", ErrInvalidConfig, store.Capacity(), cfg.StorageCapacity())
	}
	wantPhysical := cfg.PhysicalBlockSize(codec.Overhead())
	if store.BlockSize() != wantPhysical {
		return nil, fmt.Errorf("%w: storage block size %d, want %d", ErrInvalidConfig, store.BlockSize(), wantPhysical)
	}

	o := &ORAM{cfg: cfg, storage: store, posmap: posmap, stash: stash, codec: codec, key: key, rnd: rnd}
	if fresh {
		if err := o.initializeEmpty(); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// NewInMemory is a convenience constructor for tests and the in-memory
// reference backend: a fresh tree, a freshly generated key, and a
// cryptographic randomness source.
func NewInMemory(cfg Config) (*ORAM, error) {
	cfg, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	key, err := oramcrypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	codec, err := oramcrypto.NewCodec(key)
	if err != nil {
		return nil, err
	}
	rnd := oramcrypto.CryptoSource{}
	store := storage.NewMemory(cfg.StorageCapacity(), cfg.PhysicalBlockSize(codec.Overhead()))
	posmap := NewPositionMap(cfg.NumLeaves(), rnd)
	stash := NewStash()
	return New(cfg, store, posmap, stash, codec, key, rnd, true)
}

// Get returns the current payload for id, or a zero-filled block of length
// BlockSize if id has never been written.
func (o *ORAM) Get(id uint64) ([]byte, error) {
	return o.access(id, nil, false)
}

// Put stores payload under id, padding or truncating to exactly BlockSize
// bytes as dictated by spec §4.A ("every logical block is fixed-size").
func (o *ORAM) Put(id uint64, payload []byte) error {
	_, err := o.access(id, payload, true)
	return err
}

// access implements the spec §4.D four-step protocol: remap, read path into
// stash, update/insert the target entry, evict back to the path.
func (o *ORAM) access(id uint64, newPayload []byte, isWrite bool) ([]byte, error) {
	oldLeaf := o.posmap.Get(id)
	newLeaf := o.rnd.Uint64n(o.cfg.NumLeaves())
	o.posmap.Set(id, newLeaf)

	path := o.pathBuckets(oldLeaf)
	if err := o.readPathIntoStash(path); err != nil {
		return nil, err
	}

	existing, found := o.stash.Remove(id)

	var result []byte
	payload := make([]byte, o.cfg.BlockSize)
	switch {
	case isWrite:
		copy(payload, newPayload)
		result = payload
	case found:
		copy(payload, existing.Payload)
		result = existing.Payload
	default:
		result = payload
	}

	if err := o.stash.Add(Entry{ID: id, Leaf: newLeaf, Payload: payload}); err != nil {
		return nil, err
	}

	if err := o.evict(path); err != nil {
		return nil, err
	}
	return result, nil
}

// pathBuckets returns the heap indices of the L+1 buckets from leaf up to
// the root, leaf first.
func (o *ORAM) pathBuckets(leaf uint64) []uint64 {
	path := make([]uint64, o.cfg.Height+1)
	idx := o.cfg.NumLeaves() + leaf
	for i := range path {
		path[i] = idx
		idx /= 2
	}
	return path
}

// canPlaceAt reports whether a block assigned to leaf may live in
// bucketIdx: true iff bucketIdx lies on leaf's root path.
func (o *ORAM) canPlaceAt(leaf, bucketIdx uint64) bool {
	idx := o.cfg.NumLeaves() + leaf
	for idx >= 1 {
		if idx == bucketIdx {
			return true
		}
		if idx == 1 {
			break
		}
		idx /= 2
	}
	return false
}

// readPathIntoStash decrypts every bucket along path and adds each
// non-empty block found to the stash, tagged with its current position-map
// leaf (spec §4.D step 2).
func (o *ORAM) readPathIntoStash(path []uint64) error {
	for _, bucketIdx := range path {
		entries, err := o.readBucket(bucketIdx)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.ID == emptyID {
				continue
			}
			if _, found := o.stash.Find(e.ID); found {
				continue
			}
			leaf := o.posmap.Get(e.ID)
			if err := o.stash.Add(Entry{ID: e.ID, Leaf: leaf, Payload: e.Payload}); err != nil {
				return err
			}
		}
	}
	return nil
}

// evict rewrites every bucket on path, filling each with up to BucketSize
// stash entries eligible for that bucket, leaf-to-root so a block lands as
// deep as possible (spec §4.D step 4: "longest common prefix ... at or
// below this level"). Entries not placed anywhere on the path remain in the
// stash.
func (o *ORAM) evict(path []uint64) error {
	for _, bucketIdx := range path {
		var selected []Entry
		o.stash.ForEach(func(e Entry) {
			if uint64(len(selected)) < o.cfg.BucketSize && o.canPlaceAt(e.Leaf, bucketIdx) {
				selected = append(selected, e)
			}
		})
		for _, e := range selected {
			o.stash.Remove(e.ID)
		}
		if err := o.writeBucket(bucketIdx, selected); err != nil {
			return err
		}
	}
	if uint64(o.stash.Len()) > o.cfg.StashLimit {
		return ErrStashOverflow
	}
	return nil
}

// readBucket decrypts the BucketSize slots making up bucketIdx.
func (o *ORAM) readBucket(bucketIdx uint64) ([]Entry, error) {
	base := (bucketIdx - 1) * o.cfg.BucketSize
	addrs := make([]uint64, o.cfg.BucketSize)
	for i := range addrs {
		addrs[i] = base + uint64(i)
	}
	raw, err := o.storage.GetBatch(addrs)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(addrs))
	for i, addr := range addrs {
		plaintext, err := o.codec.Decrypt(raw[addr])
		if err != nil {
			if errors.Is(err, oramcrypto.ErrKeyMismatch) {
				return nil, fmt.Errorf("%w: bucket %d slot %d: %v", ErrDecryptFailure, bucketIdx, i, err)
			}
			return nil, err
		}
		id, payload := decodeSlot(plaintext)
		entries[i] = Entry{ID: id, Payload: payload}
	}
	return entries, nil
}

// writeBucket encrypts entries (at most BucketSize of them) into bucketIdx,
// padding any remaining slots with fresh encrypted-empty blocks.
func (o *ORAM) writeBucket(bucketIdx uint64, entries []Entry) error {
	base := (bucketIdx - 1) * o.cfg.BucketSize
	items := make(map[uint64][]byte, o.cfg.BucketSize)
	for i := uint64(0); i < o.cfg.BucketSize; i++ {
		id := emptyID
		payload := make([]byte, o.cfg.BlockSize)
		if i < uint64(len(entries)) {
			id = entries[i].ID
			copy(payload, entries[i].Payload)
		}
		ciphertext, err := o.codec.Encrypt(encodeSlot(id, payload))
		if err != nil {
			return err
		}
		items[base+i] = ciphertext
	}
	return o.storage.SetBatch(items)
}

// initializeEmpty writes encrypted-empty slots across the whole tree, so
// the very first access does not attempt to decrypt zero-filled storage.
func (o *ORAM) initializeEmpty() error {
	for bucketIdx := uint64(1); bucketIdx <= o.cfg.TotalBuckets(); bucketIdx++ {
		if err := o.writeBucket(bucketIdx, nil); err != nil {
			return err
		}
	}
	return nil
}

func encodeSlot(id uint64, payload []byte) []byte {
	buf := make([]byte, idHeaderSize+len(payload))
	binary.BigEndian.PutUint64(buf[:idHeaderSize], id)
	copy(buf[idHeaderSize:], payload)
	return buf
}

func decodeSlot(buf []byte) (uint64, []byte) {
	id := binary.BigEndian.Uint64(buf[:idHeaderSize])
	payload := make([]byte, len(buf)-idHeaderSize)
	copy(payload, buf[idHeaderSize:])
	return id, payload
}
