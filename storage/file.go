package storage

import (
	"fmt"
	"os"
)

// File is a local-file-backed Adapter: one contiguous file of
// capacity*blockSize bytes, addressed by ReadAt/WriteAt offsets. Grounded
// on original_source's FileSystemStorageAdapter (one flat file per shard,
// `oram-storage-i.bin`) and on the offset-addressed flat-file layout used
// by compactindexsized in the retrieval pack.
//
// Not safe for concurrent shards sharing the same file: spec §5 requires
// Parallel to be downgraded to false when this backend is in use, which
// config.Options.Validate does.
type File struct {
	f         *os.File
	blockSize int
	capacity  uint64
}

// OpenFile opens (creating if fresh is true) a file-backed adapter at path
// with room for capacity blocks of blockSize bytes each.
func OpenFile(path string, capacity uint64, blockSize int, fresh bool) (*File, error) {
	flags := os.O_RDWR
	if fresh {
		flags |= os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrBackendUnavailable, path, err)
	}
	adapter := &File{f: f, blockSize: blockSize, capacity: capacity}
	if fresh {
		if err := adapter.f.Truncate(int64(capacity) * int64(blockSize)); err != nil {
			return nil, fmt.Errorf("%w: truncate %s: %v", ErrBackendUnavailable, path, err)
		}
	}
	return adapter, nil
}

// Close flushes and releases the underlying file handle.
func (a *File) Close() error {
	return a.f.Close()
}

func (a *File) Get(addr uint64) ([]byte, error) {
	if err := checkRange(addr, a.capacity); err != nil {
		return nil, err
	}
	buf := make([]byte, a.blockSize)
	if _, err := a.f.ReadAt(buf, int64(addr)*int64(a.blockSize)); err != nil {
		return nil, fmt.Errorf("%w: read block %d: %v", ErrBackendUnavailable, addr, err)
	}
	return buf, nil
}

func (a *File) Set(addr uint64, data []byte) error {
	if err := checkRange(addr, a.capacity); err != nil {
		return err
	}
	if err := checkSize(data, a.blockSize); err != nil {
		return err
	}
	if _, err := a.f.WriteAt(data, int64(addr)*int64(a.blockSize)); err != nil {
		return fmt.Errorf("%w: write block %d: %v", ErrBackendUnavailable, addr, err)
	}
	return nil
}

func (a *File) GetBatch(addrs []uint64) (map[uint64][]byte, error) {
	out := make(map[uint64][]byte, len(addrs))
	for _, addr := range addrs {
		data, err := a.Get(addr)
		if err != nil {
			return nil, err
		}
		out[addr] = data
	}
	return out, nil
}

func (a *File) SetBatch(items map[uint64][]byte) error {
	for addr, data := range items {
		if err := a.Set(addr, data); err != nil {
			return err
		}
	}
	return nil
}

func (a *File) Capacity() uint64 {
	return a.capacity
}

func (a *File) NewAddress() uint64 {
	addr := a.capacity
	a.capacity++
	_ = a.f.Truncate(int64(a.capacity) * int64(a.blockSize))
	return addr
}

func (a *File) BlockSize() int {
	return a.blockSize
}
