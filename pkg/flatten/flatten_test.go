package flatten

import (
	"testing"

	"github.com/liliang-cn/hnswcore/pkg/point"
)

type fakeSource[T any] struct {
	points []*point.Point[T]
}

func (f fakeSource[T]) IterateAll(fn func(*point.Point[T])) {
	for _, p := range f.points {
		fn(p)
	}
}

func TestBuildMergesAndSorts(t *testing.T) {
	p := point.New[float32](42, point.ID{Layer: 1, Slot: 0}, []float32{1, 2})
	p.Neighbours[0] = []point.Neighbour{{DataID: 2, Distance: 3.0}, {DataID: 3, Distance: 1.0}}
	p.Neighbours[1] = []point.Neighbour{{DataID: 4, Distance: 2.0}}

	fn := Build[float32](fakeSource[float32]{points: []*point.Point[float32]{p}})

	got, ok := fn[42]
	if !ok {
		t.Fatal("expected entry for data id 42")
	}
	if len(got.Neighbours) != 3 {
		t.Fatalf("got %d neighbours, want 3", len(got.Neighbours))
	}
	for i := 1; i < len(got.Neighbours); i++ {
		if got.Neighbours[i-1].Distance > got.Neighbours[i].Distance {
			t.Fatalf("neighbours not sorted ascending: %v", got.Neighbours)
		}
	}
}
