// Package dpquery implements the differential-privacy utilities behind
// range queries: bucketization, the optimal dummy-access parameter μ, the
// bucket-range-cover decomposition, and Laplace padding. Grounded directly
// on original_source/dp-oram/src/utility.cpp/utility.hpp — no example repo
// in the pack does differential privacy, so this package is a faithful
// transcription of the original algorithms into Go, kept in the teacher's
// plain-function, sentinel-error style rather than the original's
// exception-throwing one.
package dpquery

import "math"

// BucketRange is the result of snapping a query's [lo, hi] onto bucket
// boundaries (spec §4.G).
type BucketRange struct {
	FromBucket uint64
	ToBucket   uint64
	PaddedLo   float64
	PaddedHi   float64
}

// PadToBuckets partitions [min, max) into buckets equal-width buckets and
// returns the bucket indices covering [lo, hi] together with the outward-
// snapped bucket boundaries. A query endpoint equal to max maps to the
// last bucket (spec §4.G edge case).
func PadToBuckets(lo, hi float64, min, max float64, buckets uint64) (BucketRange, error) {
	if buckets == 0 {
		return BucketRange{}, ErrInvalidBuckets
	}
	if max <= min {
		return BucketRange{}, ErrInvalidRange
	}

	step := (max - min) / float64(buckets)

	fromBucket := uint64(math.Floor((lo - min) / step))
	toBucket := uint64(math.Floor((hi - min) / step))

	if fromBucket == buckets {
		fromBucket--
	}
	if toBucket == buckets {
		toBucket--
	}

	return BucketRange{
		FromBucket: fromBucket,
		ToBucket:   toBucket,
		PaddedLo:   float64(fromBucket)*step + min,
		PaddedHi:   float64(toBucket+1)*step + min,
	}, nil
}

// OptimalMu returns the mean number of dummy accesses per bucket needed to
// achieve (epsilon, delta=beta) differential privacy over a k-ary bucket
// tree of N leaves, replicated across Gamma ORAM shards (spec §4.G).
func OptimalMu(beta float64, k uint64, N uint64, epsilon float64, gamma uint64) uint64 {
	kf := float64(k)
	Nf := float64(N)

	m := math.Ceil(logBase(kf, (kf-1)*Nf)) - 1
	eta := float64(gamma)*((math.Pow(kf, m)-1)/(kf-1)) + Nf

	mu := math.Ceil(-math.Log(Nf) / (math.Log(kf) * epsilon) * math.Log(2-2*math.Pow(1-beta, 1/eta)))
	if mu < 0 {
		mu = 0
	}
	return uint64(mu)
}

func logBase(base, x float64) float64 {
	return math.Log(x) / math.Log(base)
}

// Node is one (level, index) entry in a bucket-range-cover decomposition.
type Node struct {
	Level uint64
	Index uint64
}

// BRC returns the minimal set of (level, index) nodes at base fanout that
// exactly covers [from, to], advancing from and to toward each other one
// fanout boundary at a time and climbing a level whenever they have not
// yet met (spec §4.G). Ported directly from
// original_source/dp-oram/src/utility.cpp's BRC.
func BRC(fanout, from, to, maxLevel uint64) ([]Node, error) {
	if fanout < 2 {
		return nil, ErrInvalidFanout
	}

	var result []Node
	level := uint64(0)

	for {
		for (from%fanout != 0 || level == maxLevel) && from < to {
			result = append(result, Node{Level: level, Index: from})
			from++
		}
		for (to%fanout != fanout-1 || level == maxLevel) && from < to {
			result = append(result, Node{Level: level, Index: to})
			to--
		}

		if from != to {
			from /= fanout
			to /= fanout
			level++
		} else {
			result = append(result, Node{Level: level, Index: from})
			return result, nil
		}
	}
}
