package hnsw

import (
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/liliang-cn/hnswcore/pkg/distance"
	"github.com/liliang-cn/hnswcore/pkg/filter"
	"github.com/liliang-cn/hnswcore/pkg/point"
)

func randomVectors(n, dim int, seed int64) [][]float32 {
	r := rand.New(rand.NewSource(seed))
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for j := range v {
			v[j] = r.Float32()
		}
		out[i] = v
	}
	return out
}

func buildTestGraph(n, dim int) (*Graph[float32], [][]float32) {
	g := Build[float32](10, 25, 16, distance.L1[float32]{}, n)
	vecs := randomVectors(n, dim, 42)
	for i, v := range vecs {
		g.Insert(v, uint64(i))
	}
	return g, vecs
}

// TestEntryPointIsMaxLevel checks testable property 1.
func TestEntryPointIsMaxLevel(t *testing.T) {
	g, _ := buildTestGraph(1000, 10)

	maxLevel := uint8(0)
	g.IterateAll(func(p *point.Point[float32]) {
		if p.PID.Layer > maxLevel {
			maxLevel = p.PID.Layer
		}
	})

	ep := g.idx.EntryPoint()
	if ep.PID.Layer != maxLevel {
		t.Errorf("entry point layer = %d, want max observed layer %d", ep.PID.Layer, maxLevel)
	}
}

// TestBidirectionality checks testable property 2: every edge a graph
// records has a reverse edge on the other endpoint.
func TestBidirectionality(t *testing.T) {
	g, _ := buildTestGraph(300, 8)

	g.IterateAll(func(a *point.Point[float32]) {
		a.Mu.RLock()
		defer a.Mu.RUnlock()
		for layerNum, edges := range a.Neighbours {
			if layerNum > int(a.PID.Layer) {
				continue
			}
			for _, nb := range edges {
				b := g.idx.GetPoint(nb.PID)
				if b == nil {
					continue
				}
				b.Mu.RLock()
				found := false
				for _, be := range b.Neighbours[layerNum] {
					if be.DataID == a.DataID {
						found = true
						break
					}
				}
				b.Mu.RUnlock()
				if !found {
					t.Errorf("edge %d -> %d at layer %d has no reverse edge", a.DataID, b.DataID, layerNum)
				}
			}
		}
	})
}

// TestNeighbourCountBounds checks testable property 3.
func TestNeighbourCountBounds(t *testing.T) {
	const m = 10
	g := Build[float32](m, 25, 16, distance.L1[float32]{}, 500)
	vecs := randomVectors(500, 8, 7)
	for i, v := range vecs {
		g.Insert(v, uint64(i))
	}

	g.IterateAll(func(p *point.Point[float32]) {
		if len(p.Neighbours[0]) > 2*m {
			t.Errorf("point %d has %d layer-0 neighbours, want <= %d", p.DataID, len(p.Neighbours[0]), 2*m)
		}
		for l := 1; l < point.NBLayerMax; l++ {
			if len(p.Neighbours[l]) > m {
				t.Errorf("point %d layer %d has %d neighbours, want <= %d", p.DataID, l, len(p.Neighbours[l]), m)
			}
		}
	})
}

// TestSearchMonotonicity checks testable property 8.
func TestSearchMonotonicity(t *testing.T) {
	g, vecs := buildTestGraph(500, 8)
	res := g.Search(vecs[0], 10, 30, nil)
	for i, n := range res {
		if n.Distance < 0 {
			t.Errorf("result %d has negative distance %v", i, n.Distance)
		}
		if i > 0 && res[i-1].Distance > n.Distance {
			t.Errorf("results not sorted ascending at index %d", i)
		}
	}
}

// TestParallelSearchPreservesOrder checks testable property 9.
func TestParallelSearchPreservesOrder(t *testing.T) {
	g, vecs := buildTestGraph(300, 8)
	queries := vecs[:20]

	sequential := make([][]point.Neighbour, len(queries))
	for i, q := range queries {
		sequential[i] = g.Search(q, 5, 20, nil)
	}

	parallel := g.ParallelSearch(queries, 5, 20, nil)

	for i := range queries {
		if len(parallel[i]) != len(sequential[i]) {
			t.Fatalf("query %d: parallel len %d != sequential len %d", i, len(parallel[i]), len(sequential[i]))
		}
		for j := range sequential[i] {
			if parallel[i][j].DataID != sequential[i][j].DataID {
				t.Errorf("query %d result %d: parallel=%d sequential=%d", i, j, parallel[i][j].DataID, sequential[i][j].DataID)
			}
		}
	}
}

// TestFilterSemantics checks testable property 10.
func TestFilterSemantics(t *testing.T) {
	g, vecs := buildTestGraph(500, 8)

	allowed := filter.NewSortedList([]uint64{1, 2, 3, 4, 5, 100, 200})
	res := g.Search(vecs[0], 5, 40, allowed)

	if len(res) > 5 {
		t.Errorf("result size %d exceeds k=5", len(res))
	}
	for _, n := range res {
		if !allowed.Keep(n.DataID) {
			t.Errorf("result data id %d does not satisfy filter", n.DataID)
		}
	}
}

// TestIterateAllYieldsExactlyOnceAfterParallelInsert mirrors scenario S6 at
// the graph level (rather than the raw point-store level).
func TestIterateAllYieldsExactlyOnceAfterParallelInsert(t *testing.T) {
	g := Build[float32](10, 25, 16, distance.L1[float32]{}, 5000)
	vecs := randomVectors(5000, 10, 99)

	batch := make([]Insertion[float32], len(vecs))
	for i, v := range vecs {
		batch[i] = Insertion[float32]{V: v, DataID: uint64(i)}
	}
	g.ParallelInsert(batch)

	seen := make(map[uint64]int)
	var mu sync.Mutex
	g.IterateAll(func(p *point.Point[float32]) {
		mu.Lock()
		seen[p.DataID]++
		mu.Unlock()
	})

	if len(seen) != len(vecs) {
		t.Fatalf("iterated %d distinct points, want %d", len(seen), len(vecs))
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("data id %d yielded %d times, want 1", id, count)
		}
	}
}

func TestSearchOnEmptyIndexReturnsEmpty(t *testing.T) {
	g := Build[float32](10, 25, 16, distance.L1[float32]{}, 0)
	res := g.Search([]float32{1, 2, 3}, 5, 10, nil)
	if len(res) != 0 {
		t.Errorf("expected empty result on empty index, got %d", len(res))
	}
}

func TestBuildPanicsOnOversizedM(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for M > 256")
		}
	}()
	Build[float32](300, 25, 16, distance.L1[float32]{}, 0)
}

// TestSelectNeighboursRespectsExtendAndKeepPruned exercises the heuristic
// through Insert on a small synthetic point set with extend_candidates and
// keep_pruned switched on, and checks that a later search still returns
// results.
func TestSelectNeighboursRespectsExtendAndKeepPruned(t *testing.T) {
	g := Build[float32](4, 10, 16, distance.L2[float32]{}, 0)
	vecs := [][]float32{
		{0, 0}, {1, 0}, {0, 1}, {10, 10}, {11, 10}, {10, 11},
	}
	for i, v := range vecs {
		g.Insert(v, uint64(i))
	}

	// after insertion, layer-0 neighbour counts must respect 2*M = 8 (trivially true
	// with only 6 points) and the heuristic must not crash with extend/keep_pruned on.
	g.SetExtendCandidates(true)
	g.SetKeepPruned(true)
	g.Insert([]float32{0.5, 0.5}, 6)

	res := g.Search([]float32{0, 0}, 3, 10, nil)
	if len(res) == 0 {
		t.Fatal("expected non-empty search result")
	}
	ids := make([]uint64, len(res))
	for i, n := range res {
		ids[i] = n.DataID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
