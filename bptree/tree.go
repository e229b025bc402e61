package bptree

import (
	"encoding/binary"
	"fmt"

	"github.com/dp-oram/dp-oram/storage"
)

// KV is one (key, value) input pair for Build.
type KV struct {
	Key   uint64
	Value []byte
}

// Tree is a persistent, write-once B+-tree over a storage.Adapter. Mirrors
// the shape of original_source/b-plus-tree/include/tree.hpp's Tree class:
// a root address plus a little extra bookkeeping (firstLeaf/leafCount, the
// Go analogue of the original's "leftmostDataBlock // for testing" field)
// that is carried in Meta. Range search does not read these fields: it
// descends once and then follows the leaf links.
type Tree struct {
	cfg        Config
	storage    storage.Adapter
	root       uint64
	firstLeaf  uint64
	leafCount  uint64
}

// Meta is the tree's small persisted bookkeeping record, written alongside
// the block storage (spec §6: tree.bin holds the blocks; Meta is the
// pointer into it).
type Meta struct {
	Root      uint64
	FirstLeaf uint64
	LeafCount uint64
}

// Build constructs a tree bottom-up over pairs, which must already be
// sorted ascending by Key (spec §4.E). Each value is split across a chain
// of data blocks; the leaf layer is packed (key, dataChainHead) pairs, and
// successive layers of node blocks are packed above it until one node
// remains, which becomes the root.
func Build(cfg Config, store storage.Adapter, pairs []KV) (*Tree, error) {
	if cfg.BlockSize <= 0 || cfg.Fanout() < 1 {
		return nil, ErrInvalidConfig
	}
	if len(pairs) == 0 {
		return nil, ErrEmptyInput
	}
	for i := 1; i < len(pairs); i++ {
		if pairs[i].Key < pairs[i-1].Key {
			return nil, ErrNotSorted
		}
	}

	t := &Tree{cfg: cfg, storage: store}

	leaves := make([]pair, len(pairs))
	for i, kv := range pairs {
		addr, err := t.writeChain(kv.Value)
		if err != nil {
			return nil, err
		}
		leaves[i] = pair{addr: addr, key: kv.Key}
	}

	layer, firstLeaf, leafCount, err := t.pushLeafLayer(leaves)
	if err != nil {
		return nil, err
	}
	t.firstLeaf = firstLeaf
	t.leafCount = leafCount

	for len(layer) > 1 {
		layer, err = t.pushLayer(layer)
		if err != nil {
			return nil, err
		}
	}
	t.root = layer[0].addr
	return t, nil
}

// Open attaches a Tree to a storage.Adapter that already holds a
// previously built tree, using a separately persisted Meta record to
// locate the root and leaf layer.
func Open(cfg Config, store storage.Adapter, meta Meta) *Tree {
	return &Tree{cfg: cfg, storage: store, root: meta.Root, firstLeaf: meta.FirstLeaf, leafCount: meta.LeafCount}
}

// Meta returns the tree's persisted bookkeeping record.
func (t *Tree) Meta() Meta {
	return Meta{Root: t.root, FirstLeaf: t.firstLeaf, LeafCount: t.leafCount}
}

// writeChain prefixes value with its 8-byte length, splits the result into
// dataPayloadSize()-sized chunks and writes them as a singly-linked chain,
// terminated by the empty sentinel. Blocks are written tail-first since
// each one's "next" field must be known before it is written; the function
// returns the head address.
func (t *Tree) writeChain(value []byte) (uint64, error) {
	chunkSize := t.cfg.dataPayloadSize()
	prefixed := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(prefixed[:8], uint64(len(value)))
	copy(prefixed[8:], value)
	value = prefixed
	var chunks [][]byte
	if len(value) == 0 {
		chunks = [][]byte{{}}
	}
	for off := 0; off < len(value); off += chunkSize {
		end := off + chunkSize
		if end > len(value) {
			end = len(value)
		}
		chunks = append(chunks, value[off:end])
	}

	next := empty
	var head uint64
	for i := len(chunks) - 1; i >= 0; i-- {
		addr := t.storage.NewAddress()
		plaintext := t.cfg.encodeDataBlock(chunks[i], next)
		if err := t.writeTagged(addr, tagData, plaintext); err != nil {
			return 0, err
		}
		next = addr
		head = addr
	}
	return head, nil
}

// readChain reassembles a value from its chain head address, dropping the
// length prefix and the zero padding of the last chunk.
func (t *Tree) readChain(head uint64) ([]byte, error) {
	var out []byte
	addr := head
	for addr != empty {
		tag, plaintext, err := t.readTagged(addr)
		if err != nil {
			return nil, err
		}
		if tag != tagData {
			return nil, fmt.Errorf("%w: expected data block at %d, got tag %d", ErrCorruptBlock, addr, tag)
		}
		chunk, next := t.cfg.decodeDataBlock(plaintext)
		out = append(out, chunk...)
		addr = next
	}
	if len(out) < 8 {
		return nil, fmt.Errorf("%w: data chain at %d has no length prefix", ErrCorruptBlock, head)
	}
	n := binary.BigEndian.Uint64(out[:8])
	if n > uint64(len(out)-8) {
		return nil, fmt.Errorf("%w: data chain at %d is shorter than its length prefix", ErrCorruptBlock, head)
	}
	return out[8 : 8+n], nil
}

// pushLeafLayer packs the leaf entries into leaf node blocks, chaining
// each to the next with the next-leaf link so SearchRange can walk them in
// key order without a second descent.
func (t *Tree) pushLeafLayer(leaves []pair) (layer []pair, firstLeaf uint64, leafCount uint64, err error) {
	b := t.cfg.Fanout()
	numGroups := (len(leaves) + b - 1) / b
	addrs := make([]uint64, numGroups)
	for i := range addrs {
		addrs[i] = t.storage.NewAddress()
	}
	leafCount = uint64(len(addrs))

	for i, addr := range addrs {
		off := i * b
		end := off + b
		if end > len(leaves) {
			end = len(leaves)
		}
		group := leaves[off:end]
		next := empty
		if i+1 < len(addrs) {
			next = addrs[i+1]
		}
		plaintext := t.cfg.encodeNodeBlock(group, next)
		if err := t.writeTagged(addr, tagLeaf, plaintext); err != nil {
			return nil, 0, 0, err
		}
		layer = append(layer, pair{addr: addr, key: group[0].key})
	}
	if len(addrs) > 0 {
		firstLeaf = addrs[0]
	}
	return layer, firstLeaf, leafCount, nil
}

// pushLayer packs one internal layer above layer, returning the parent
// layer.
func (t *Tree) pushLayer(layer []pair) ([]pair, error) {
	b := t.cfg.Fanout()
	var parent []pair
	for off := 0; off < len(layer); off += b {
		end := off + b
		if end > len(layer) {
			end = len(layer)
		}
		group := layer[off:end]
		addr := t.storage.NewAddress()
		plaintext := t.cfg.encodeNodeBlock(group, empty)
		if err := t.writeTagged(addr, tagInternal, plaintext); err != nil {
			return nil, err
		}
		parent = append(parent, pair{addr: addr, key: group[0].key})
	}
	return parent, nil
}

// Search descends from the root, at each node choosing the child with the
// greatest separator key <= key, and at the leaf layer returns the
// reassembled value for the greatest key <= key. If key is smaller than
// every key in the tree, it returns a nil value, ok=false and a nil error.
func (t *Tree) Search(key uint64) ([]byte, bool, error) {
	addr := t.root
	for {
		tag, plaintext, err := t.readTagged(addr)
		if err != nil {
			return nil, false, err
		}
		pairs, _ := t.cfg.decodeNodeBlock(plaintext)
		idx := floorIndex(pairs, key)
		if idx < 0 {
			return nil, false, nil
		}
		if tag == tagLeaf {
			value, err := t.readChain(pairs[idx].addr)
			return value, true, err
		}
		addr = pairs[idx].addr
	}
}

// SearchRange descends to the leaf containing lo, then walks rightward
// along leaf links collecting every (key, value) with key in [lo, hi]
// (spec §4.E/F: inclusive on both ends, empty result is valid).
func (t *Tree) SearchRange(lo, hi uint64) ([]KV, error) {
	if hi < lo {
		return nil, nil
	}

	addr := t.root
	var leafAddr uint64
	for {
		tag, plaintext, err := t.readTagged(addr)
		if err != nil {
			return nil, err
		}
		pairs, _ := t.cfg.decodeNodeBlock(plaintext)
		// Take the last child whose separator is strictly below lo: with
		// duplicate keys, copies of lo can sit in earlier children too.
		idx := 0
		for i, p := range pairs {
			if p.key >= lo {
				break
			}
			idx = i
		}
		if tag == tagLeaf {
			leafAddr = addr
			break
		}
		addr = pairs[idx].addr
	}

	var out []KV
	for leafAddr != empty {
		_, plaintext, err := t.readTagged(leafAddr)
		if err != nil {
			return nil, err
		}
		pairs, next := t.cfg.decodeNodeBlock(plaintext)
		done := false
		for _, p := range pairs {
			if p.key > hi {
				done = true
				break
			}
			if p.key < lo {
				continue
			}
			value, err := t.readChain(p.addr)
			if err != nil {
				return nil, err
			}
			out = append(out, KV{Key: p.key, Value: value})
		}
		if done {
			break
		}
		leafAddr = next
	}
	return out, nil
}

// floorIndex returns the index of the pair with the greatest key <= key,
// or -1 if every pair's key exceeds key.
func floorIndex(pairs []pair, key uint64) int {
	best := -1
	for i, p := range pairs {
		if p.key <= key {
			best = i
		} else {
			break
		}
	}
	return best
}

func (t *Tree) writeTagged(addr uint64, tag byte, plaintext []byte) error {
	buf := make([]byte, len(plaintext)+1)
	buf[0] = tag
	copy(buf[1:], plaintext)
	return t.storage.Set(addr, buf)
}

func (t *Tree) readTagged(addr uint64) (byte, []byte, error) {
	buf, err := t.storage.Get(addr)
	if err != nil {
		return 0, nil, err
	}
	if len(buf) < 1 {
		return 0, nil, ErrCorruptBlock
	}
	return buf[0], buf[1:], nil
}
