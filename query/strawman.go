package query

import (
	"time"

	"github.com/dp-oram/dp-oram/oramcrypto"
	"github.com/dp-oram/dp-oram/storage"
)

// Strawman is the non-oblivious baseline mode (spec §6: useOrams=false):
// it streams every block in a shard's range in batches, decrypts
// client-side, and filters by the true predicate, with no padding or
// access-pattern protection. Grounded on original_source/dp-oram/src/
// main.cpp's STRAWMAN region (BATCH_SIZE=1000 batched get + client-side
// filter).
type Strawman struct {
	storage   storage.Adapter
	codec     *oramcrypto.Codec
	batchSize uint64
}

// NewStrawman wraps a storage.Adapter holding the same encrypted rows an
// ORAM shard would, for streaming scans instead of oblivious access.
func NewStrawman(store storage.Adapter, codec *oramcrypto.Codec, batchSize uint64) *Strawman {
	if batchSize == 0 {
		batchSize = 1000
	}
	return &Strawman{storage: store, codec: codec, batchSize: batchSize}
}

// Query streams every address in [0, storage.Capacity()), decrypting and
// applying the true predicate client-side.
func (s *Strawman) Query(lo, hi uint64) (Measurement, []Row, error) {
	start := time.Now()
	var rows []Row

	capacity := s.storage.Capacity()
	for base := uint64(0); base < capacity; base += s.batchSize {
		end := base + s.batchSize
		if end > capacity {
			end = capacity
		}
		addrs := make([]uint64, 0, end-base)
		for addr := base; addr < end; addr++ {
			addrs = append(addrs, addr)
		}

		raw, err := s.storage.GetBatch(addrs)
		if err != nil {
			return Measurement{}, nil, err
		}
		for _, addr := range addrs {
			plaintext, err := s.codec.Decrypt(raw[addr])
			if err != nil {
				return Measurement{}, nil, err
			}
			row := DecodeRow(addr, plaintext)
			if row.Salary >= lo && row.Salary <= hi {
				rows = append(rows, row)
			}
		}
	}

	elapsed := time.Since(start)
	return Measurement{ElapsedNs: elapsed.Nanoseconds(), ResultCount: len(rows)}, rows, nil
}
