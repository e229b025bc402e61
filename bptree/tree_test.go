package bptree

import (
	"encoding/binary"
	"testing"

	"github.com/dp-oram/dp-oram/storage"
)

func u64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func newTestStore(cfg Config) storage.Adapter {
	return storage.NewMemory(0, cfg.BlockSize+1)
}

func TestBuildSearchPointLookup(t *testing.T) {
	cfg := Config{BlockSize: 64}
	store := newTestStore(cfg)

	pairs := []KV{
		{Key: 10, Value: u64(100)},
		{Key: 20, Value: u64(200)},
		{Key: 30, Value: u64(300)},
		{Key: 40, Value: u64(400)},
	}
	tree, err := Build(cfg, store, pairs)
	if err != nil {
		t.Fatalf("Build() err = %v", err)
	}

	tests := []struct {
		key     uint64
		wantOK  bool
		wantVal uint64
	}{
		{10, true, 100},
		{20, true, 200},
		{25, true, 200}, // greatest key <= 25 is 20
		{40, true, 400},
		{5, false, 0},
	}
	for _, tt := range tests {
		got, ok, err := tree.Search(tt.key)
		if err != nil {
			t.Fatalf("Search(%d) err = %v", tt.key, err)
		}
		if ok != tt.wantOK {
			t.Fatalf("Search(%d) ok = %v, want %v", tt.key, ok, tt.wantOK)
		}
		if ok && binary.BigEndian.Uint64(got) != tt.wantVal {
			t.Fatalf("Search(%d) = %d, want %d", tt.key, binary.BigEndian.Uint64(got), tt.wantVal)
		}
	}
}

func TestBuildRejectsUnsortedInput(t *testing.T) {
	cfg := Config{BlockSize: 64}
	store := newTestStore(cfg)
	pairs := []KV{{Key: 20, Value: u64(1)}, {Key: 10, Value: u64(2)}}
	if _, err := Build(cfg, store, pairs); err != ErrNotSorted {
		t.Fatalf("Build() err = %v, want ErrNotSorted", err)
	}
}

func TestBuildRejectsEmptyInput(t *testing.T) {
	cfg := Config{BlockSize: 64}
	store := newTestStore(cfg)
	if _, err := Build(cfg, store, nil); err != ErrEmptyInput {
		t.Fatalf("Build() err = %v, want ErrEmptyInput", err)
	}
}

func TestSearchRangeInclusiveBounds(t *testing.T) {
	cfg := Config{BlockSize: 64}
	store := newTestStore(cfg)

	var pairs []KV
	for i := uint64(0); i < 50; i++ {
		pairs = append(pairs, KV{Key: i * 2, Value: u64(i)})
	}
	tree, err := Build(cfg, store, pairs)
	if err != nil {
		t.Fatalf("Build() err = %v", err)
	}

	got, err := tree.SearchRange(10, 20)
	if err != nil {
		t.Fatalf("SearchRange() err = %v", err)
	}
	wantKeys := []uint64{10, 12, 14, 16, 18, 20}
	if len(got) != len(wantKeys) {
		t.Fatalf("SearchRange(10,20) returned %d items, want %d", len(got), len(wantKeys))
	}
	for i, kv := range got {
		if kv.Key != wantKeys[i] {
			t.Fatalf("SearchRange(10,20)[%d].Key = %d, want %d", i, kv.Key, wantKeys[i])
		}
	}
}

func TestSearchRangeEmptyResult(t *testing.T) {
	cfg := Config{BlockSize: 64}
	store := newTestStore(cfg)
	pairs := []KV{{Key: 100, Value: u64(1)}, {Key: 200, Value: u64(2)}}
	tree, err := Build(cfg, store, pairs)
	if err != nil {
		t.Fatalf("Build() err = %v", err)
	}
	got, err := tree.SearchRange(0, 50)
	if err != nil {
		t.Fatalf("SearchRange() err = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("SearchRange(0,50) = %v, want empty", got)
	}
}

func TestSearchRangeSpansMultipleLeafBlocks(t *testing.T) {
	// A small block size forces a low fanout, so this range spans several
	// leaf node blocks and exercises the leaf-link walk.
	cfg := Config{BlockSize: 40}
	store := newTestStore(cfg)

	var pairs []KV
	for i := uint64(0); i < 200; i++ {
		pairs = append(pairs, KV{Key: i, Value: u64(i * 7)})
	}
	tree, err := Build(cfg, store, pairs)
	if err != nil {
		t.Fatalf("Build() err = %v", err)
	}

	got, err := tree.SearchRange(50, 150)
	if err != nil {
		t.Fatalf("SearchRange() err = %v", err)
	}
	if len(got) != 101 {
		t.Fatalf("SearchRange(50,150) returned %d items, want 101", len(got))
	}
	for i, kv := range got {
		wantKey := uint64(50 + i)
		if kv.Key != wantKey {
			t.Fatalf("SearchRange(50,150)[%d].Key = %d, want %d", i, kv.Key, wantKey)
		}
		if binary.BigEndian.Uint64(kv.Value) != wantKey*7 {
			t.Fatalf("SearchRange(50,150)[%d].Value = %d, want %d", i, binary.BigEndian.Uint64(kv.Value), wantKey*7)
		}
	}
}

func TestValueChainSpansMultipleDataBlocks(t *testing.T) {
	cfg := Config{BlockSize: 24} // dataPayloadSize = 16 bytes per chunk
	store := newTestStore(cfg)

	bigValue := make([]byte, 100)
	for i := range bigValue {
		bigValue[i] = byte(i)
	}
	pairs := []KV{{Key: 1, Value: bigValue}}
	tree, err := Build(cfg, store, pairs)
	if err != nil {
		t.Fatalf("Build() err = %v", err)
	}
	got, ok, err := tree.Search(1)
	if err != nil {
		t.Fatalf("Search() err = %v", err)
	}
	if !ok {
		t.Fatalf("Search(1) not found")
	}
	if len(got) != len(bigValue) {
		t.Fatalf("Search(1) value len = %d, want %d", len(got), len(bigValue))
	}
	for i := range bigValue {
		if got[i] != bigValue[i] {
			t.Fatalf("Search(1) value[%d] = %d, want %d", i, got[i], bigValue[i])
		}
	}
}

func TestOpenFromMeta(t *testing.T) {
	cfg := Config{BlockSize: 64}
	store := newTestStore(cfg)
	pairs := []KV{{Key: 1, Value: u64(11)}, {Key: 2, Value: u64(22)}}
	built, err := Build(cfg, store, pairs)
	if err != nil {
		t.Fatalf("Build() err = %v", err)
	}

	reopened := Open(cfg, store, built.Meta())
	got, ok, err := reopened.Search(2)
	if err != nil {
		t.Fatalf("Search() err = %v", err)
	}
	if !ok || binary.BigEndian.Uint64(got) != 22 {
		t.Fatalf("Search(2) on reopened tree = %v, %v, want 22, true", got, ok)
	}
}
