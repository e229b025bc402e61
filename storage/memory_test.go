package storage

import "testing"

func TestMemoryGetSetRoundTrip(t *testing.T) {
	m := NewMemory(4, 8)
	data := []byte("12345678")
	if err := m.Set(2, data); err != nil {
		t.Fatalf("Set() err = %v", err)
	}
	got, err := m.Get(2)
	if err != nil {
		t.Fatalf("Get() err = %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("Get() = %q, want %q", got, data)
	}
}

func TestMemoryGetUnwrittenIsZero(t *testing.T) {
	m := NewMemory(4, 8)
	got, err := m.Get(0)
	if err != nil {
		t.Fatalf("Get() err = %v", err)
	}
	for _, b := range got {
		if b != 0 {
			t.Fatalf("Get() unwritten slot = %v, want all zero", got)
		}
	}
}

func TestMemoryOutOfRange(t *testing.T) {
	m := NewMemory(2, 8)
	if _, err := m.Get(5); err == nil {
		t.Fatalf("Get(5) on capacity 2: want error, got nil")
	}
	if err := m.Set(5, make([]byte, 8)); err == nil {
		t.Fatalf("Set(5) on capacity 2: want error, got nil")
	}
}

func TestMemorySizeMismatch(t *testing.T) {
	m := NewMemory(2, 8)
	if err := m.Set(0, make([]byte, 4)); err == nil {
		t.Fatalf("Set() with wrong size: want error, got nil")
	}
}

func TestMemoryBatch(t *testing.T) {
	m := NewMemory(4, 4)
	items := map[uint64][]byte{
		0: []byte("aaaa"),
		1: []byte("bbbb"),
		3: []byte("dddd"),
	}
	if err := m.SetBatch(items); err != nil {
		t.Fatalf("SetBatch() err = %v", err)
	}
	got, err := m.GetBatch([]uint64{0, 1, 2, 3})
	if err != nil {
		t.Fatalf("GetBatch() err = %v", err)
	}
	if string(got[2]) != string(make([]byte, 4)) {
		t.Fatalf("GetBatch()[2] = %q, want zero block", got[2])
	}
	if string(got[1]) != "bbbb" {
		t.Fatalf("GetBatch()[1] = %q, want bbbb", got[1])
	}
}

func TestMemoryNewAddressGrowsCapacity(t *testing.T) {
	m := NewMemory(1, 4)
	addr := m.NewAddress()
	if addr != 1 {
		t.Fatalf("NewAddress() = %d, want 1", addr)
	}
	if m.Capacity() != 2 {
		t.Fatalf("Capacity() after NewAddress() = %d, want 2", m.Capacity())
	}
	if err := m.Set(addr, make([]byte, 4)); err != nil {
		t.Fatalf("Set() on newly grown address err = %v", err)
	}
}
