package storage

import (
	"fmt"
	"strconv"

	as "github.com/aerospike/aerospike-client-go/v7"
)

// binName is the single bin every block's bytes are stored under.
const binName = "data"

// Aerospike is an Adapter backed by Aerospike, one record per block
// address. Grounded on github.com/aerospike/aerospike-client-go/v7, a
// real ecosystem client for the backend spec §6 names (`aerospikeHost`);
// not present in the retrieval pack, so it is named rather than grounded
// on a specific example, per the dependency ledger rules in DESIGN.md.
type Aerospike struct {
	client    *as.Client
	namespace string
	set       string
	blockSize int
	capacity  uint64
}

// NewAerospike connects to host:port and prepares an Aerospike-backed
// adapter using namespace/set, with set carrying the shard suffix.
func NewAerospike(host string, port int, namespace, set string, capacity uint64, blockSize int, fresh bool) (*Aerospike, error) {
	client, err := as.NewClient(host, port)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s:%d: %v", ErrBackendUnavailable, host, port, err)
	}
	a := &Aerospike{client: client, namespace: namespace, set: set, blockSize: blockSize, capacity: capacity}
	if fresh {
		if err := client.Truncate(nil, namespace, set, nil); err != nil {
			return nil, fmt.Errorf("%w: truncate %s/%s: %v", ErrBackendUnavailable, namespace, set, err)
		}
	}
	return a, nil
}

// Close releases the underlying Aerospike client connection.
func (a *Aerospike) Close() {
	a.client.Close()
}

func (a *Aerospike) key(addr uint64) (*as.Key, error) {
	k, err := as.NewKey(a.namespace, a.set, strconv.FormatUint(addr, 10))
	if err != nil {
		return nil, fmt.Errorf("%w: key %d: %v", ErrBackendUnavailable, addr, err)
	}
	return k, nil
}

func (a *Aerospike) Get(addr uint64) ([]byte, error) {
	if err := checkRange(addr, a.capacity); err != nil {
		return nil, err
	}
	k, err := a.key(addr)
	if err != nil {
		return nil, err
	}
	rec, err := a.client.Get(nil, k, binName)
	if err != nil {
		if err.Matches(as.KeyNotFoundError()) {
			return make([]byte, a.blockSize), nil
		}
		return nil, fmt.Errorf("%w: get block %d: %v", ErrBackendUnavailable, addr, err)
	}
	data, ok := rec.Bins[binName].([]byte)
	if !ok {
		return make([]byte, a.blockSize), nil
	}
	return data, nil
}

func (a *Aerospike) Set(addr uint64, data []byte) error {
	if err := checkRange(addr, a.capacity); err != nil {
		return err
	}
	if err := checkSize(data, a.blockSize); err != nil {
		return err
	}
	k, err := a.key(addr)
	if err != nil {
		return err
	}
	if err := a.client.Put(nil, k, as.BinMap{binName: data}); err != nil {
		return fmt.Errorf("%w: set block %d: %v", ErrBackendUnavailable, addr, err)
	}
	return nil
}

func (a *Aerospike) GetBatch(addrs []uint64) (map[uint64][]byte, error) {
	out := make(map[uint64][]byte, len(addrs))
	keys := make([]*as.Key, len(addrs))
	for i, addr := range addrs {
		if err := checkRange(addr, a.capacity); err != nil {
			return nil, err
		}
		k, err := a.key(addr)
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}
	if len(keys) == 0 {
		return out, nil
	}
	recs, err := a.client.BatchGet(nil, keys, binName)
	if err != nil {
		return nil, fmt.Errorf("%w: batch get: %v", ErrBackendUnavailable, err)
	}
	for i, addr := range addrs {
		if recs[i] == nil {
			out[addr] = make([]byte, a.blockSize)
			continue
		}
		data, ok := recs[i].Bins[binName].([]byte)
		if !ok {
			out[addr] = make([]byte, a.blockSize)
			continue
		}
		out[addr] = data
	}
	return out, nil
}

func (a *Aerospike) SetBatch(items map[uint64][]byte) error {
	for addr, data := range items {
		if err := a.Set(addr, data); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aerospike) Capacity() uint64 {
	return a.capacity
}

func (a *Aerospike) NewAddress() uint64 {
	addr := a.capacity
	a.capacity++
	return addr
}

func (a *Aerospike) BlockSize() int {
	return a.blockSize
}
