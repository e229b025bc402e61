package pathoram

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dp-oram/dp-oram/oramcrypto"
	"github.com/dp-oram/dp-oram/storage"
)

// Persist checkpoints the client-side state that cannot be recovered from
// the storage.Adapter alone — the long-term key, position map and stash —
// into dir as key.bin, posmap.bin and stash.bin; the file names carry no
// shard suffix.
// The bucket tree itself lives in the storage.Adapter and is not touched
// here.
func (o *ORAM) Persist(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("pathoram: persist: %w", err)
	}
	if err := oramcrypto.StoreKey(o.key, filepath.Join(dir, "key.bin")); err != nil {
		return fmt.Errorf("pathoram: persist key: %w", err)
	}

	posmapFile, err := os.Create(filepath.Join(dir, "posmap.bin"))
	if err != nil {
		return fmt.Errorf("pathoram: persist posmap: %w", err)
	}
	defer posmapFile.Close()
	if err := o.posmap.Serialize(posmapFile); err != nil {
		return fmt.Errorf("pathoram: persist posmap: %w", err)
	}

	stashFile, err := os.Create(filepath.Join(dir, "stash.bin"))
	if err != nil {
		return fmt.Errorf("pathoram: persist stash: %w", err)
	}
	defer stashFile.Close()
	if err := o.stash.Serialize(stashFile, o.cfg.BlockSize); err != nil {
		return fmt.Errorf("pathoram: persist stash: %w", err)
	}
	return nil
}

// Restore reconstructs an ORAM from a checkpoint written by Persist,
// layered over store, which must already hold the matching bucket tree
// (itself restored by the caller from whatever medium backs the storage
// adapter — a Redis/Aerospike server or a local file keep their own state
// across process restarts).
func Restore(cfg Config, store storage.Adapter, rnd oramcrypto.Source, dir string) (*ORAM, error) {
	key, err := oramcrypto.LoadKey(filepath.Join(dir, "key.bin"))
	if err != nil {
		return nil, fmt.Errorf("pathoram: restore key: %w", err)
	}
	codec, err := oramcrypto.NewCodec(key)
	if err != nil {
		return nil, fmt.Errorf("pathoram: restore codec: %w", err)
	}

	posmap := NewPositionMap(cfg.NumLeaves(), rnd)
	posmapFile, err := os.Open(filepath.Join(dir, "posmap.bin"))
	if err != nil {
		return nil, fmt.Errorf("pathoram: restore posmap: %w", err)
	}
	defer posmapFile.Close()
	if err := posmap.Load(posmapFile); err != nil {
		return nil, fmt.Errorf("pathoram: restore posmap: %w", err)
	}

	stash := NewStash()
	stashFile, err := os.Open(filepath.Join(dir, "stash.bin"))
	if err != nil {
		return nil, fmt.Errorf("pathoram: restore stash: %w", err)
	}
	defer stashFile.Close()
	if err := stash.Load(stashFile, cfg.BlockSize); err != nil {
		return nil, fmt.Errorf("pathoram: restore stash: %w", err)
	}

	return New(cfg, store, posmap, stash, codec, key, rnd, false)
}
