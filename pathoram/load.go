package pathoram

import "sort"

// IDPayload is one (id, payload) pair for bulk loading.
type IDPayload struct {
	ID      uint64
	Payload []byte
}

// Load bulk-inserts initial into a freshly constructed, otherwise-empty
// tree. Grounded on spec §4.D's "greedy bottom-up" construction, itself
// read off original_source/dp-oram/src/main.cpp's generateIndices path:
// every id is assigned a random leaf, the set is stably sorted by the
// reverse-binary representation of that leaf so that blocks destined for
// neighboring leaves cluster together, and each is then placed as deep as
// possible along its own path, overflowing into the stash only when a full
// root-to-leaf path is already saturated.
func (o *ORAM) Load(initial []IDPayload) error {
	type item struct {
		id      uint64
		leaf    uint64
		payload []byte
	}

	items := make([]item, 0, len(initial))
	for _, kv := range initial {
		leaf := o.rnd.Uint64n(o.cfg.NumLeaves())
		o.posmap.Set(kv.ID, leaf)
		payload := make([]byte, o.cfg.BlockSize)
		copy(payload, kv.Payload)
		items = append(items, item{id: kv.ID, leaf: leaf, payload: payload})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return reverseBits(items[i].leaf, o.cfg.Height) < reverseBits(items[j].leaf, o.cfg.Height)
	})

	buckets := make(map[uint64][]Entry)
	for _, it := range items {
		placed := false
		for _, bucketIdx := range o.pathBuckets(it.leaf) {
			if uint64(len(buckets[bucketIdx])) < o.cfg.BucketSize {
				buckets[bucketIdx] = append(buckets[bucketIdx], Entry{ID: it.id, Leaf: it.leaf, Payload: it.payload})
				placed = true
				break
			}
		}
		if !placed {
			if err := o.stash.Add(Entry{ID: it.id, Leaf: it.leaf, Payload: it.payload}); err != nil {
				return err
			}
		}
	}

	for bucketIdx := uint64(1); bucketIdx <= o.cfg.TotalBuckets(); bucketIdx++ {
		if err := o.writeBucket(bucketIdx, buckets[bucketIdx]); err != nil {
			return err
		}
	}

	if uint64(o.stash.Len()) > o.cfg.StashLimit {
		return ErrStashOverflow
	}
	return nil
}

// reverseBits reverses the low `bits` bits of x.
func reverseBits(x uint64, bits uint64) uint64 {
	var out uint64
	for i := uint64(0); i < bits; i++ {
		out = (out << 1) | (x & 1)
		x >>= 1
	}
	return out
}
