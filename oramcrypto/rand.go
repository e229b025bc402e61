package oramcrypto

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"
	mrand "math/rand"
	"sync"
)

// Source is a random number source used throughout the module: the
// cryptographic source assigns leaves and generates keys/IVs; the seeded
// source drives Laplace sampling and reshuffles in tests, where
// reproducibility in tests matters more than unpredictability (spec §4.B,
// §9: "a deliberate reproducibility compromise").
type Source interface {
	// Uint64n returns a uniform random value in [0, n).
	Uint64n(n uint64) uint64
	// Float64 returns a uniform random value in [0, 1).
	Float64() float64
}

// CryptoSource draws from crypto/rand. Used for leaf assignment, key
// generation and IVs — anywhere unpredictability is a security property.
type CryptoSource struct{}

func (CryptoSource) Uint64n(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	v, err := rand.Int(rand.Reader, new(big.Int).SetUint64(n))
	if err != nil {
		panic("oramcrypto: crypto/rand failed: " + err.Error())
	}
	return v.Uint64()
}

func (CryptoSource) Float64() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("oramcrypto: crypto/rand failed: " + err.Error())
	}
	// 53 bits of entropy, matching math/rand's Float64 precision.
	bits := binary.BigEndian.Uint64(buf[:]) >> 11
	return float64(bits) / float64(1<<53)
}

// SeededSource is a math/rand-backed PRNG with a user-settable seed, for
// reproducible Laplace draws and reshuffles in tests. Calls are serialized
// by an internal mutex, so an instance may be shared between goroutines;
// draws from a shared instance interleave in call order.
type SeededSource struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewSeededSource creates a deterministic source from an explicit seed.
func NewSeededSource(seed int64) *SeededSource {
	return &SeededSource{rng: mrand.New(mrand.NewSource(seed))}
}

// NewSeededSourceFromCrypto seeds a SeededSource from the cryptographic
// source, per spec §4.B: the PRNG itself is non-cryptographic, but its
// seed comes from crypto/rand so runs are unpredictable in production
// while still reproducible if the seed is logged and replayed.
func NewSeededSourceFromCrypto() *SeededSource {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("oramcrypto: crypto/rand failed: " + err.Error())
	}
	seed := int64(binary.BigEndian.Uint64(buf[:]))
	return NewSeededSource(seed)
}

func (s *SeededSource) Uint64n(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint64(s.rng.Int63n(int64(n)))
}

func (s *SeededSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}
