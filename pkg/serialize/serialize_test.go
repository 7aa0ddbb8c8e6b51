package serialize

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/liliang-cn/hnswcore/pkg/distance"
	"github.com/liliang-cn/hnswcore/pkg/flatten"
	"github.com/liliang-cn/hnswcore/pkg/hnsw"
	"github.com/liliang-cn/hnswcore/pkg/point"
)

func buildSample(t *testing.T, n, dim int) *hnsw.Graph[float32] {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	g := hnsw.Build[float32](10, 25, 16, distance.L1[float32]{}, n)
	for i := 0; i < n; i++ {
		v := make([]float32, dim)
		for j := range v {
			v[j] = rng.Float32()
		}
		g.Insert(v, uint64(i))
	}
	return g
}

// TestDumpLoadRoundTrip grounds testable property 4: dumping then reloading
// with the same distance must reproduce bit-identical search results.
func TestDumpLoadRoundTrip(t *testing.T) {
	g := buildSample(t, 200, 10)
	stem := Stem(filepath.Join(t.TempDir(), "idx"))

	if err := Dump(g, "float32", "L1", 10, stem); err != nil {
		t.Fatalf("Dump: %v", err)
	}

	reloaded, err := Load[float32](stem, distance.L1[float32]{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if reloaded.NbPoint() != g.NbPoint() {
		t.Fatalf("point count mismatch: got %d want %d", reloaded.NbPoint(), g.NbPoint())
	}

	query := make([]float32, 10)
	for i := range query {
		query[i] = 0.5
	}
	want := g.Search(query, 5, 20, nil)
	got := reloaded.Search(query, 5, 20, nil)

	if len(want) != len(got) {
		t.Fatalf("result count mismatch: got %d want %d", len(got), len(want))
	}
	for i := range want {
		if want[i].DataID != got[i].DataID || want[i].Distance != got[i].Distance {
			t.Errorf("result %d mismatch: got %+v want %+v", i, got[i], want[i])
		}
	}
}

// TestLoadGraphOnlyFlattenMatches grounds testable property 5: reloading
// without the data file must still reproduce the same flattened adjacency.
func TestLoadGraphOnlyFlattenMatches(t *testing.T) {
	g := buildSample(t, 150, 8)
	stem := Stem(filepath.Join(t.TempDir(), "idx"))

	if err := Dump(g, "float32", "L1", 8, stem); err != nil {
		t.Fatalf("Dump: %v", err)
	}

	graphOnly, err := LoadGraphOnly[float32](stem)
	if err != nil {
		t.Fatalf("LoadGraphOnly: %v", err)
	}

	want := flatten.Build[float32](g)
	got := flatten.Build[float32](graphOnly)

	if len(want) != len(got) {
		t.Fatalf("flattened point count mismatch: got %d want %d", len(got), len(want))
	}
	for id, wp := range want {
		gp, ok := got[id]
		if !ok {
			t.Fatalf("missing data id %d in graph-only reload", id)
		}
		if len(wp.Neighbours) != len(gp.Neighbours) {
			t.Fatalf("data id %d: neighbour count mismatch: got %d want %d", id, len(gp.Neighbours), len(wp.Neighbours))
		}
		for i := range wp.Neighbours {
			if wp.Neighbours[i].DataID != gp.Neighbours[i].DataID || wp.Neighbours[i].Distance != gp.Neighbours[i].Distance {
				t.Errorf("data id %d neighbour %d mismatch: got %+v want %+v", id, i, gp.Neighbours[i], wp.Neighbours[i])
			}
		}
	}
}

// TestDataMapByteEquality grounds testable property 6: a vector fetched
// through the memory-mapped view must equal the vector that was written.
func TestDataMapByteEquality(t *testing.T) {
	g := buildSample(t, 50, 6)
	stem := Stem(filepath.Join(t.TempDir(), "idx"))
	if err := Dump(g, "float32", "L1", 6, stem); err != nil {
		t.Fatalf("Dump: %v", err)
	}

	dm, err := OpenDataMap[float32](stem.dataPath())
	if err != nil {
		t.Fatalf("OpenDataMap: %v", err)
	}
	defer dm.Close()

	written := make(map[uint64][]float32)
	g.IterateAll(func(p *point.Point[float32]) { written[p.DataID] = p.V })

	var checked int
	for i := uint64(0); i < 50; i++ {
		got, ok := dm.GetData(i)
		if !ok {
			t.Fatalf("data id %d missing from map", i)
		}
		if len(got) != 6 {
			t.Fatalf("data id %d: wrong dimension %d", i, len(got))
		}
		for j := range got {
			if math.Float32bits(got[j]) != math.Float32bits(written[i][j]) {
				t.Errorf("data id %d dimension %d: got %v want %v", i, j, got[j], written[i][j])
			}
		}
		checked++
	}
	if checked != 50 {
		t.Fatalf("checked %d records, want 50", checked)
	}
}

// TestStemRoundTripWithPerDimensionFingerprint is scenario S1: 1000 float32
// vectors of dimension 10 under L1, M=10, ef_construction=25, max_layer=16.
func TestStemRoundTripWithPerDimensionFingerprint(t *testing.T) {
	g := buildSample(t, 1000, 10)
	stem := Stem(filepath.Join(t.TempDir(), "s1"))

	if err := Dump(g, "float32", "L1", 10, stem); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	reloaded, err := Load[float32](stem, distance.L1[float32]{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded.NbPoint() != 1000 {
		t.Fatalf("got %d points, want 1000", reloaded.NbPoint())
	}

	g.IterateAll(func(p *point.Point[float32]) {
		rp := reloaded.GetPoint(p.PID)
		if rp == nil || rp.DataID != p.DataID || len(rp.V) != len(p.V) {
			t.Errorf("data id %d: reloaded point at %+v does not match", p.DataID, p.PID)
			return
		}
		for j := range p.V {
			if math.Float32bits(rp.V[j]) != math.Float32bits(p.V[j]) {
				t.Errorf("data id %d dimension %d: got %v want %v", p.DataID, j, rp.V[j], p.V[j])
			}
		}
	})
}
