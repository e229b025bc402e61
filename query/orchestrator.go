// Package query implements the DP range-query orchestrator: bucketizing a
// query, covering the padded bucket range with the minimal BRC node set,
// resolving each node's recordId list through the B+-tree, partitioning
// across ORAM shards, padding each shard's fetch count with Laplace-
// distributed dummy accesses, and dispatching sequentially or in parallel
// per spec §4.H/§5. Grounded on original_source/dp-oram/src/main.cpp's
// queryOram dispatch (thread/promise/future fan-out, per-shard batching)
// and on johnjansen-torua's worker-per-unit goroutine idiom, using
// golang.org/x/sync/errgroup for the parallel join in place of torua's raw
// sync.WaitGroup since errgroup also propagates the first error.
package query

import (
	"encoding/binary"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dp-oram/dp-oram/bptree"
	"github.com/dp-oram/dp-oram/dplog"
	"github.com/dp-oram/dp-oram/dpquery"
	"github.com/dp-oram/dp-oram/oramcrypto"
	"github.com/dp-oram/dp-oram/pathoram"
)

// Config carries the differential-privacy and sharding parameters a query
// needs (spec §4.G/§4.H).
type Config struct {
	Beta     float64 // delta
	Epsilon  float64
	K        uint64 // BRC / bucket-tree fanout
	Buckets  uint64 // B
	Min, Max uint64 // domain of the indexed column
	N        uint64 // dataset size
	Parallel bool
}

// Orchestrator dispatches range queries across a fixed set of ORAM shards
// and a single shared B+-tree index.
type Orchestrator struct {
	cfg          Config
	tree         *bptree.Tree
	shards       []*pathoram.ORAM
	rnd          oramcrypto.Source
	measurements []Measurement
}

// New constructs an Orchestrator over tree (built once over true salaries)
// and shards (indexed 0..Gamma-1).
func New(cfg Config, tree *bptree.Tree, shards []*pathoram.ORAM, rnd oramcrypto.Source) *Orchestrator {
	return &Orchestrator{cfg: cfg, tree: tree, shards: shards, rnd: rnd}
}

// Measurements returns every Measurement recorded by a prior Query call, in
// call order. JSON emission of these is the caller's responsibility.
func (o *Orchestrator) Measurements() []Measurement {
	return o.measurements
}

// plannedFetch is one access a shard worker must perform: a real recordId
// whose payload feeds the predicate check, or a dummy id whose result is
// discarded.
type plannedFetch struct {
	localID uint64
	real    bool
}

// Query executes the full protocol in spec §4.H for the range [lo, hi]
// and returns the matching rows together with the query's measurement.
func (o *Orchestrator) Query(lo, hi uint64) (Measurement, []Row, error) {
	if len(o.shards) == 0 {
		return Measurement{}, nil, ErrNoShards
	}
	start := time.Now()

	br, err := dpquery.PadToBuckets(float64(lo), float64(hi), float64(o.cfg.Min), float64(o.cfg.Max), o.cfg.Buckets)
	if err != nil {
		return Measurement{}, nil, err
	}

	maxLevel := uint64(math.Ceil(logBase(float64(o.cfg.K), float64(o.cfg.Buckets))))
	nodes, err := dpquery.BRC(o.cfg.K, br.FromBucket, br.ToBucket, maxLevel)
	if err != nil {
		return Measurement{}, nil, err
	}

	mu := float64(dpquery.OptimalMu(o.cfg.Beta, o.cfg.K, o.cfg.N, o.cfg.Epsilon, uint64(len(o.shards))))
	lambda := 1 / o.cfg.Epsilon

	gamma := uint64(len(o.shards))
	byShard := make(map[uint64][]plannedFetch)

	step := float64(o.cfg.Max-o.cfg.Min) / float64(o.cfg.Buckets)
	for _, node := range nodes {
		width := uint64(math.Pow(float64(o.cfg.K), float64(node.Level)))
		saloLo := uint64(float64(o.cfg.Min) + float64(node.Index*width)*step)
		saloHi := uint64(float64(o.cfg.Min) + float64((node.Index+1)*width)*step)
		if saloHi > 0 {
			saloHi--
		}

		matches, err := o.tree.SearchRange(saloLo, saloHi)
		if err != nil {
			return Measurement{}, nil, err
		}
		for _, kv := range matches {
			id := decodeID(kv.Value)
			shard := id % gamma
			local := id / gamma
			byShard[shard] = append(byShard[shard], plannedFetch{localID: local, real: true})
		}

		dummyCount := int(math.Ceil(dpquery.SampleLaplace(mu, lambda, o.rnd)))
		for i := 0; i < dummyCount; i++ {
			id := o.rnd.Uint64n(o.cfg.N)
			shard := id % gamma
			local := id / gamma
			byShard[shard] = append(byShard[shard], plannedFetch{localID: local, real: false})
		}
	}

	var results []Row
	resultsCh := make(chan []Row, len(o.shards))

	dispatch := func(shard uint64, fetches []plannedFetch) error {
		rows, err := o.runShard(shard, fetches, lo, hi)
		if err != nil {
			return err
		}
		resultsCh <- rows
		return nil
	}

	if o.cfg.Parallel {
		var g errgroup.Group
		for shard, fetches := range byShard {
			shard, fetches := shard, fetches
			g.Go(func() error { return dispatch(shard, fetches) })
		}
		if err := g.Wait(); err != nil {
			return Measurement{}, nil, err
		}
	} else {
		for shard, fetches := range byShard {
			if err := dispatch(shard, fetches); err != nil {
				return Measurement{}, nil, err
			}
		}
	}
	close(resultsCh)
	for rows := range resultsCh {
		results = append(results, rows...)
	}

	elapsed := time.Since(start)
	dplog.Logger.Debug().Int("shards", len(byShard)).Int("results", len(results)).Msg("query dispatched")

	measurement := Measurement{ElapsedNs: elapsed.Nanoseconds(), ResultCount: len(results)}
	o.measurements = append(o.measurements, measurement)
	return measurement, results, nil
}

// runShard performs every planned fetch against one shard's ORAM,
// in issue order (spec §5: sequential within a shard), keeping only the
// rows from real fetches whose salary satisfies the true predicate.
func (o *Orchestrator) runShard(shard uint64, fetches []plannedFetch, lo, hi uint64) ([]Row, error) {
	oram := o.shards[shard]
	var rows []Row
	for _, f := range fetches {
		payload, err := oram.Get(f.localID)
		if err != nil {
			return nil, err
		}
		if !f.real {
			continue
		}
		row := DecodeRow(f.localID, payload)
		if row.Salary >= lo && row.Salary <= hi {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func logBase(base, x float64) float64 {
	return math.Log(x) / math.Log(base)
}

func decodeID(value []byte) uint64 {
	if len(value) < 8 {
		padded := make([]byte, 8)
		copy(padded[8-len(value):], value)
		return binary.BigEndian.Uint64(padded)
	}
	return binary.BigEndian.Uint64(value)
}
