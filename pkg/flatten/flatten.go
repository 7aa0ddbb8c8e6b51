// Package flatten turns a built graph into a flat dataId-keyed neighbour
// view, for consumers that only need topology and do not want to walk the
// layered graph themselves.
package flatten

import (
	"sort"

	"github.com/liliang-cn/hnswcore/pkg/point"
)

// FlatPoint is one entry of a FlatNeighborhood: the owning point's data id
// alongside its neighbours merged across every layer it participates in,
// sorted by ascending distance.
type FlatPoint struct {
	DataID     uint64
	Neighbours []point.Neighbour
}

// FlatNeighborhood maps a data id to its flattened, sorted neighbour list.
type FlatNeighborhood map[uint64]FlatPoint

// Source is the minimal surface flatten needs from a graph: a way to walk
// every point once.
type Source[T any] interface {
	IterateAll(fn func(*point.Point[T]))
}

// Build performs the single pass over src described by the spec: for each
// point, merge its per-layer neighbour lists into one slice and sort it by
// ascending distance.
func Build[T any](src Source[T]) FlatNeighborhood {
	out := make(FlatNeighborhood)
	src.IterateAll(func(p *point.Point[T]) {
		p.Mu.RLock()
		var merged []point.Neighbour
		for l := 0; l < point.NBLayerMax; l++ {
			merged = append(merged, p.Neighbours[l]...)
		}
		p.Mu.RUnlock()

		sort.Slice(merged, func(i, j int) bool {
			return merged[i].Distance < merged[j].Distance
		})
		out[p.DataID] = FlatPoint{DataID: p.DataID, Neighbours: merged}
	})
	return out
}
