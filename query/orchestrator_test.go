package query

import (
	"testing"

	"github.com/dp-oram/dp-oram/bptree"
	"github.com/dp-oram/dp-oram/oramcrypto"
	"github.com/dp-oram/dp-oram/pathoram"
	"github.com/dp-oram/dp-oram/storage"
)

func buildTestFixture(t *testing.T, n uint64, gamma uint64) (*bptree.Tree, []*pathoram.ORAM) {
	t.Helper()

	const blockSize = 32
	shards := make([]*pathoram.ORAM, gamma)
	initial := make([][]pathoram.IDPayload, gamma)

	var treePairs []bptree.KV
	for id := uint64(0); id < n; id++ {
		salary := 10 + id%50
		shard := id % gamma
		local := id / gamma
		payload := EncodeRow(salary, []byte("row-data"))
		initial[shard] = append(initial[shard], pathoram.IDPayload{ID: local, Payload: payload})
		treePairs = append(treePairs, bptree.KV{Key: salary, Value: encodeID(id)})
	}
	// stable-sort by key, since Build requires sorted input and salaries
	// are not monotone in id.
	for i := 1; i < len(treePairs); i++ {
		for j := i; j > 0 && treePairs[j].Key < treePairs[j-1].Key; j-- {
			treePairs[j], treePairs[j-1] = treePairs[j-1], treePairs[j]
		}
	}

	treeCfg := bptree.Config{BlockSize: 64}
	treeStore := storage.NewMemory(0, treeCfg.BlockSize+1)
	tree, err := bptree.Build(treeCfg, treeStore, treePairs)
	if err != nil {
		t.Fatalf("bptree.Build() err = %v", err)
	}

	for shard := uint64(0); shard < gamma; shard++ {
		perShardCount := n / gamma
		if n%gamma != 0 {
			perShardCount++
		}
		height := uint64(4)
		for (uint64(1) << height) < perShardCount {
			height++
		}
		cfg, err := pathoram.Config{BlockSize: blockSize, BucketSize: 3, Height: height}.Validate()
		if err != nil {
			t.Fatalf("pathoram.Config.Validate() err = %v", err)
		}
		o, err := pathoram.NewInMemory(cfg)
		if err != nil {
			t.Fatalf("pathoram.NewInMemory() err = %v", err)
		}
		if err := o.Load(initial[shard]); err != nil {
			t.Fatalf("pathoram Load() err = %v", err)
		}
		shards[shard] = o
	}

	return tree, shards
}

func encodeID(id uint64) []byte {
	buf := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		buf[i] = byte(id)
		id >>= 8
	}
	return buf
}

func TestOrchestratorQueryFindsMatches(t *testing.T) {
	const n = 200
	const gamma = 4
	tree, shards := buildTestFixture(t, n, gamma)

	cfg := Config{
		Beta:    1e-5,
		Epsilon: 1.0,
		K:       4,
		Buckets: 16,
		Min:     0,
		Max:     64,
		N:       n,
	}
	orch := New(cfg, tree, shards, oramcrypto.NewSeededSource(1))

	measurement, rows, err := orch.Query(20, 30)
	if err != nil {
		t.Fatalf("Query() err = %v", err)
	}
	if measurement.ResultCount != len(rows) {
		t.Fatalf("measurement.ResultCount = %d, len(rows) = %d", measurement.ResultCount, len(rows))
	}
	for _, row := range rows {
		if row.Salary < 20 || row.Salary > 30 {
			t.Fatalf("Query(20,30) returned out-of-range salary %d", row.Salary)
		}
	}
	if len(rows) == 0 {
		t.Fatalf("Query(20,30) found no matches, expected some given dense salary distribution")
	}
}

func TestOrchestratorQueryParallelMatchesSequential(t *testing.T) {
	const n = 120
	const gamma = 3
	tree, shardsA := buildTestFixture(t, n, gamma)
	_, shardsB := buildTestFixture(t, n, gamma)

	base := Config{Beta: 1e-5, Epsilon: 1.0, K: 4, Buckets: 16, Min: 0, Max: 64, N: n}

	seqCfg := base
	seqCfg.Parallel = false
	seq := New(seqCfg, tree, shardsA, oramcrypto.NewSeededSource(2))
	_, seqRows, err := seq.Query(15, 25)
	if err != nil {
		t.Fatalf("sequential Query() err = %v", err)
	}

	parCfg := base
	parCfg.Parallel = true
	par := New(parCfg, tree, shardsB, oramcrypto.NewSeededSource(2))
	_, parRows, err := par.Query(15, 25)
	if err != nil {
		t.Fatalf("parallel Query() err = %v", err)
	}

	seqIDs := rowIDs(seqRows)
	parIDs := rowIDs(parRows)
	if len(seqIDs) != len(parIDs) {
		t.Fatalf("sequential found %d real matches, parallel found %d", len(seqIDs), len(parIDs))
	}
	for id := range seqIDs {
		if !parIDs[id] {
			t.Fatalf("id %d present in sequential results but not parallel", id)
		}
	}
}

func rowIDs(rows []Row) map[uint64]bool {
	out := make(map[uint64]bool, len(rows))
	for _, r := range rows {
		out[r.ID] = true
	}
	return out
}

func TestOrchestratorMeasurementsAccumulate(t *testing.T) {
	const n = 80
	const gamma = 2
	tree, shards := buildTestFixture(t, n, gamma)

	cfg := Config{Beta: 1e-5, Epsilon: 1.0, K: 4, Buckets: 16, Min: 0, Max: 64, N: n}
	orch := New(cfg, tree, shards, oramcrypto.NewSeededSource(3))

	if len(orch.Measurements()) != 0 {
		t.Fatalf("Measurements() before any Query() = %d entries, want 0", len(orch.Measurements()))
	}

	m1, _, err := orch.Query(10, 20)
	if err != nil {
		t.Fatalf("Query() err = %v", err)
	}
	m2, _, err := orch.Query(30, 40)
	if err != nil {
		t.Fatalf("Query() err = %v", err)
	}

	got := orch.Measurements()
	if len(got) != 2 {
		t.Fatalf("Measurements() after two queries = %d entries, want 2", len(got))
	}
	if got[0] != m1 || got[1] != m2 {
		t.Fatalf("Measurements() = %v, want [%v %v]", got, m1, m2)
	}
}

func TestOrchestratorNoShards(t *testing.T) {
	orch := New(Config{}, nil, nil, oramcrypto.CryptoSource{})
	if _, _, err := orch.Query(0, 10); err != ErrNoShards {
		t.Fatalf("Query() with no shards err = %v, want ErrNoShards", err)
	}
}
