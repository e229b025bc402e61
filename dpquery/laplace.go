package dpquery

import (
	"math"

	"github.com/dp-oram/dp-oram/oramcrypto"
)

// SampleLaplace draws one sample from a two-sided Laplace distribution
// with mean mu and scale lambda. Per spec §4.G/§9, the draw itself comes
// from a deterministic PRNG (reproducible in tests) seeded from the
// cryptographic random source (unpredictable across runs) — the same
// compromise oramcrypto.SeededSource documents.
func SampleLaplace(mu, lambda float64, seed oramcrypto.Source) float64 {
	u := seed.Float64() - 0.5 // uniform on [-0.5, 0.5)
	sign := 1.0
	if u < 0 {
		sign = -1.0
	}
	return mu - lambda*sign*math.Log(1-2*math.Abs(u))
}
