// Package hnsw implements construction and search over a Hierarchical
// Navigable Small World graph (Malkov & Yashunin, 2016/2018): greedy descent
// through upper layers, a bounded beam search at the target layer, and
// neighbour selection with pruning.
package hnsw

import (
	"container/heap"
	"sort"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/liliang-cn/hnswcore/pkg/distance"
	"github.com/liliang-cn/hnswcore/pkg/filter"
	"github.com/liliang-cn/hnswcore/pkg/point"
)

// maxMaxNbConnection is the hard ceiling on M; exceeding it at Build time is
// a fatal programmer error.
const maxMaxNbConnection = 256

// Graph is a concurrent, layered HNSW index over points of element type T.
type Graph[T any] struct {
	dist distance.Distance[T]
	idx  *point.Indexation[T]

	m              int
	efConstruction int
	maxLayer       int

	extendCandidates atomic.Bool
	keepPruned       atomic.Bool
	searchingMode    atomic.Bool
}

// Build constructs an empty graph. It panics if maxNbConnection exceeds 256,
// per the spec's fatal-configuration contract. capacityHint is accepted but
// not used; no point list is preallocated.
func Build[T any](maxNbConnection, efConstruction, maxLayer int, d distance.Distance[T], capacityHint int) *Graph[T] {
	if maxNbConnection > maxMaxNbConnection {
		panic("hnsw: max_nb_connection exceeds 256")
	}
	g := &Graph[T]{
		dist:           d,
		idx:            point.NewIndexation[T](int64(maxNbConnection)*1000003+1, maxNbConnection, maxLayer),
		m:              maxNbConnection,
		efConstruction: efConstruction,
		maxLayer:       maxLayer,
	}
	_ = capacityHint
	return g
}

// SetSearchingMode flags that parallel search traffic is about to begin.
// The caller is responsible for not interleaving inserts and searches once
// set; this is an advisory guard, not an enforced lock.
func (g *Graph[T]) SetSearchingMode(v bool) { g.searchingMode.Store(v) }

// SetExtendCandidates toggles the layer-0-only candidate-set extension in
// select_neighbours.
func (g *Graph[T]) SetExtendCandidates(v bool) { g.extendCandidates.Store(v) }

// SetKeepPruned toggles whether select_neighbours refills from its discard
// pile when fewer than M' candidates survive the domination test.
func (g *Graph[T]) SetKeepPruned(v bool) { g.keepPruned.Store(v) }

// NbPoint returns the number of points inserted so far.
func (g *Graph[T]) NbPoint() int64 { return g.idx.NbPoint() }

// IterateAll walks every point in the graph, layer 0 first.
func (g *Graph[T]) IterateAll(fn func(*point.Point[T])) { g.idx.IterateAll(fn) }

// GetPoint returns the point at the given coordinate, or nil if out of range.
func (g *Graph[T]) GetPoint(pid point.ID) *point.Point[T] { return g.idx.GetPoint(pid) }

// EntryPointID returns the current entry point's coordinate and whether one
// exists.
func (g *Graph[T]) EntryPointID() (point.ID, bool) {
	ep := g.idx.EntryPoint()
	if ep == nil {
		return point.ID{}, false
	}
	return ep.PID, true
}

// M returns the configured max_nb_connection.
func (g *Graph[T]) M() int { return g.m }

// EfConstruction returns the configured ef_construction.
func (g *Graph[T]) EfConstruction() int { return g.efConstruction }

// MaxLayer returns the configured inclusive layer cap.
func (g *Graph[T]) MaxLayer() int { return g.maxLayer }

// Dist returns the graph's distance kernel.
func (g *Graph[T]) Dist() distance.Distance[T] { return g.dist }

// RestorePoint places a fully-formed point directly at its recorded
// coordinate. Used only by pkg/serialize when reconstructing a graph from a
// dump; it bypasses level sampling, search, and linking.
func (g *Graph[T]) RestorePoint(dataID point.DataID, pid point.ID, v []T, neighbours [point.NBLayerMax][]point.Neighbour) {
	g.idx.RestorePoint(dataID, pid, v, neighbours)
}

// SetEntryPointByID sets the entry point to the point at pid, used by
// pkg/serialize once every point of a dump has been restored.
func (g *Graph[T]) SetEntryPointByID(pid point.ID) {
	if p := g.idx.GetPoint(pid); p != nil {
		g.idx.SetEntryPointDirect(p)
	}
}

// Insert adds v under dataID following Malkov & Yashunin's Algorithm 1:
// greedy descent to find a good entry point, beam search and link from
// min(L, L_ep) down to 0, then reverse-link every new edge.
func (g *Graph[T]) Insert(v []T, dataID point.DataID) {
	q, n := g.idx.GenerateNewPoint(v, dataID)
	if n == 1 {
		g.idx.CheckEntryPoint(q)
		return
	}

	ep := g.idx.EntryPoint()
	lEp := int(ep.PID.Layer)
	l := int(q.PID.Layer)

	for layerNum := lEp; layerNum > l; layerNum-- {
		w := g.searchLayer(v, ep, 1, layerNum, nil)
		if w.Len() == 0 {
			continue
		}
		nearest := (*w)[0]
		nearestDist := -nearest.DistToRef
		if nearestDist < g.dist.Eval(v, ep.V) {
			ep = nearest.Point
		}
		q.Mu.Lock()
		q.Neighbours[layerNum] = appendBounded(q.Neighbours[layerNum], point.Neighbour{
			DataID:   nearest.Point.DataID,
			Distance: nearestDist,
			PID:      nearest.Point.PID,
		}, g.m)
		q.Mu.Unlock()
	}

	top := l
	if lEp < top {
		top = lEp
	}

	extend := g.extendCandidates.Load()
	keepPruned := g.keepPruned.Load()

	for layerNum := top; layerNum >= 0; layerNum-- {
		nbConn := g.m
		extendHere := false
		if layerNum == 0 {
			nbConn = 2 * g.m
			extendHere = extend
		}

		w := g.searchLayer(v, ep, g.efConstruction, layerNum, nil)
		selected := g.selectNeighbours(v, w, nbConn, extendHere, keepPruned)

		sort.Slice(selected, func(i, j int) bool { return selected[i].Distance < selected[j].Distance })

		q.Mu.Lock()
		q.Neighbours[layerNum] = selected
		q.Mu.Unlock()

		if len(selected) > 0 {
			nearestPt := g.idx.GetPoint(selected[0].PID)
			if nearestPt != nil {
				ep = nearestPt
			}
		}
	}

	g.reverseLink(q)
	g.idx.CheckEntryPoint(q)
}

// reverseLink walks every layer of q's freshly assigned neighbours and adds
// an edge back to q on each neighbour r, in r's list for r's own level
// (r.PID.Layer), whatever layer the forward edge was found on; when that
// list grows past its cap the farthest entry is dropped, with no matching
// removal on the dropped point. Points are handled one at a time: each target is
// locked, updated, and unlocked before the next is touched, so no two point
// write locks are ever held simultaneously.
func (g *Graph[T]) reverseLink(q *point.Point[T]) {
	for layerNum := 0; layerNum < point.NBLayerMax; layerNum++ {
		q.Mu.RLock()
		edges := append([]point.Neighbour(nil), q.Neighbours[layerNum]...)
		q.Mu.RUnlock()

		for _, nb := range edges {
			r := g.idx.GetPoint(nb.PID)
			if r == nil || r.DataID == q.DataID {
				continue
			}
			rLayer := int(r.PID.Layer)
			capLimit := g.m
			if rLayer == 0 {
				capLimit = 2 * g.m
			}

			r.Mu.Lock()
			already := false
			for _, e := range r.Neighbours[rLayer] {
				if e.DataID == q.DataID {
					already = true
					break
				}
			}
			if !already {
				r.Neighbours[rLayer] = append(r.Neighbours[rLayer], point.Neighbour{
					DataID:   q.DataID,
					Distance: nb.Distance,
					PID:      q.PID,
				})
				sort.Slice(r.Neighbours[rLayer], func(i, j int) bool {
					return r.Neighbours[rLayer][i].Distance < r.Neighbours[rLayer][j].Distance
				})
				if len(r.Neighbours[rLayer]) > capLimit {
					r.Neighbours[rLayer] = r.Neighbours[rLayer][:capLimit]
				}
			}
			r.Mu.Unlock()
		}
	}
}

// ParallelInsert inserts every (vector, dataID) pair in batch concurrently.
// The resulting topology is not deterministic: different interleavings of
// insertion produce different neighbour sets for the same point.
func (g *Graph[T]) ParallelInsert(batch []Insertion[T]) {
	var eg errgroup.Group
	for _, item := range batch {
		item := item
		eg.Go(func() error {
			g.Insert(item.V, item.DataID)
			return nil
		})
	}
	_ = eg.Wait()
}

// Insertion is one (vector, dataID) pair for ParallelInsert.
type Insertion[T any] struct {
	V      []T
	DataID point.DataID
}

// Search returns up to min(k, ef) nearest neighbours to query, ascending by
// distance. An empty index returns an empty, non-nil slice.
func (g *Graph[T]) Search(query []T, k, ef int, filt filter.Filter) []point.Neighbour {
	ep := g.idx.EntryPoint()
	if ep == nil {
		return []point.Neighbour{}
	}

	pivot := ep
	for layerNum := int(ep.PID.Layer); layerNum > 0; layerNum-- {
		pivot = g.localGreedy(query, pivot, layerNum)
	}

	beamEf := k
	if ef > beamEf {
		beamEf = ef
	}
	w := g.searchLayer(query, pivot, beamEf, 0, filt)

	out := make([]point.Neighbour, 0, w.Len())
	for _, wo := range *w {
		out = append(out, point.Neighbour{
			DataID:   wo.Point.DataID,
			Distance: -wo.DistToRef,
			PID:      wo.Point.PID,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })

	n := k
	if ef < n {
		n = ef
	}
	if len(out) < n {
		n = len(out)
	}
	return out[:n]
}

// ParallelSearch maps Search over queries concurrently, preserving the
// input order in the returned slice.
func (g *Graph[T]) ParallelSearch(queries [][]T, k, ef int, filt filter.Filter) [][]point.Neighbour {
	results := make([][]point.Neighbour, len(queries))
	var eg errgroup.Group
	for i, q := range queries {
		i, q := i, q
		eg.Go(func() error {
			results[i] = g.Search(q, k, ef, filt)
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

// localGreedy performs the purely local hill-climb used above layer 0:
// move to the closest neighbour of pivot at layerNum if it strictly
// improves on pivot's own distance to query, repeating until no improvement
// is found.
func (g *Graph[T]) localGreedy(query []T, pivot *point.Point[T], layerNum int) *point.Point[T] {
	for {
		pivot.Mu.RLock()
		edges := append([]point.Neighbour(nil), pivot.Neighbours[layerNum]...)
		pivot.Mu.RUnlock()

		best := pivot
		bestDist := g.dist.Eval(query, pivot.V)
		for _, nb := range edges {
			e := g.idx.GetPoint(nb.PID)
			if e == nil {
				continue
			}
			d := g.dist.Eval(query, e.V)
			if d < bestDist {
				best = e
				bestDist = d
			}
		}
		if best == pivot {
			return pivot
		}
		pivot = best
	}
}

// searchLayer is the bounded beam search described in the spec: candidates
// is a min-heap over real distance (nearest explored first), result is a
// max-heap over real distance realized by negating DistToRef (farthest
// peeked/popped first, so the bound can shrink as better points are found).
func (g *Graph[T]) searchLayer(query []T, entry *point.Point[T], ef int, layerNum int, filt filter.Filter) *point.Heap[T] {
	visited := map[*point.Point[T]]bool{entry: true}

	entryDist := g.dist.Eval(query, entry.V)

	candidates := &point.Heap[T]{{Point: entry, DistToRef: entryDist}}
	heap.Init(candidates)

	result := &point.Heap[T]{{Point: entry, DistToRef: -entryDist}}
	heap.Init(result)
	entryPasses := filt == nil || filt.Keep(entry.DataID)

	for candidates.Len() > 0 {
		c := heap.Pop(candidates).(point.WithOrder[T])
		cDist := c.DistToRef

		if result.Len() > 0 {
			farthestDist := -(*result)[0].DistToRef
			if cDist > farthestDist && (filt == nil || result.Len() >= ef) {
				break
			}
		}

		c.Point.Mu.RLock()
		edges := append([]point.Neighbour(nil), c.Point.Neighbours[layerNum]...)
		c.Point.Mu.RUnlock()

		for _, nb := range edges {
			e := g.idx.GetPoint(nb.PID)
			if e == nil || visited[e] {
				continue
			}
			visited[e] = true

			d := g.dist.Eval(query, e.V)

			var worstDist float32
			hasWorst := result.Len() > 0
			if hasWorst {
				worstDist = -(*result)[0].DistToRef
			}
			if !hasWorst || d < worstDist || result.Len() < ef {
				heap.Push(candidates, point.WithOrder[T]{Point: e, DistToRef: d})

				if filt == nil {
					heap.Push(result, point.WithOrder[T]{Point: e, DistToRef: -d})
				} else if filt.Keep(e.DataID) {
					if result.Len() == 1 && !entryPasses {
						*result = (*result)[:0]
						heap.Init(result)
					}
					heap.Push(result, point.WithOrder[T]{Point: e, DistToRef: -d})
				}

				if result.Len() > ef {
					heap.Pop(result)
				}
			}
		}
	}

	if filt != nil {
		kept := (*result)[:0:0]
		for _, wo := range *result {
			if filt.Keep(wo.Point.DataID) {
				kept = append(kept, wo)
			}
		}
		*result = kept
		heap.Init(result)
	}

	return result
}

// selectNeighbours implements the Navarro/Malkov neighbour-selection
// heuristic (Algorithm 4): a greedy nearest-first scan that admits a
// candidate only if no already-accepted neighbour dominates it (is at
// least as close to the candidate as the query is).
func (g *Graph[T]) selectNeighbours(query []T, candidates *point.Heap[T], mPrime int, extend bool, keepPruned bool) []point.Neighbour {
	type cand struct {
		p *point.Point[T]
		d float32
	}

	raw := make([]cand, 0, candidates.Len())
	for _, wo := range *candidates {
		raw = append(raw, cand{p: wo.Point, d: -wo.DistToRef})
	}

	if !extend && len(raw) <= mPrime {
		sort.Slice(raw, func(i, j int) bool { return raw[i].d < raw[j].d })
		out := make([]point.Neighbour, len(raw))
		for i, c := range raw {
			out[i] = point.Neighbour{DataID: c.p.DataID, Distance: c.d, PID: c.p.PID}
		}
		return out
	}

	if extend {
		present := make(map[*point.Point[T]]bool, len(raw))
		for _, c := range raw {
			present[c.p] = true
		}
		base := append([]cand(nil), raw...)
		for _, c := range base {
			c.p.Mu.RLock()
			edges := append([]point.Neighbour(nil), c.p.Neighbours[0]...)
			c.p.Mu.RUnlock()
			for _, nb := range edges {
				e := g.idx.GetPoint(nb.PID)
				if e == nil || present[e] {
					continue
				}
				present[e] = true
				raw = append(raw, cand{p: e, d: g.dist.Eval(query, e.V)})
			}
		}
	}

	sort.Slice(raw, func(i, j int) bool { return raw[i].d < raw[j].d })

	accepted := make([]cand, 0, mPrime)
	var discard []cand

	for _, c := range raw {
		if len(accepted) >= mPrime {
			break
		}
		dominated := false
		for _, r := range accepted {
			if g.dist.Eval(c.p.V, r.p.V) <= c.d {
				dominated = true
				break
			}
		}
		if !dominated {
			accepted = append(accepted, c)
		} else if keepPruned {
			discard = append(discard, c)
		}
	}

	if len(accepted) < mPrime && keepPruned {
		for _, c := range discard {
			if len(accepted) >= mPrime {
				break
			}
			accepted = append(accepted, c)
		}
	}

	out := make([]point.Neighbour, len(accepted))
	for i, c := range accepted {
		out[i] = point.Neighbour{DataID: c.p.DataID, Distance: c.d, PID: c.p.PID}
	}
	return out
}

// appendBounded appends n to list, keeping list sorted ascending by
// distance and trimmed to at most cap entries.
func appendBounded(list []point.Neighbour, n point.Neighbour, capLimit int) []point.Neighbour {
	list = append(list, n)
	sort.Slice(list, func(i, j int) bool { return list[i].Distance < list[j].Distance })
	if len(list) > capLimit {
		list = list[:capLimit]
	}
	return list
}

// Stats reports basic graph size information, grouped by layer.
func (g *Graph[T]) Stats() map[string]int {
	stats := make(map[string]int, g.maxLayer+2)
	stats["total_points"] = int(g.idx.NbPoint())
	for l := 0; l <= g.idx.MaxLayer(); l++ {
		stats["layer_"+strconv.Itoa(l)] = g.idx.LayerLen(l)
	}
	return stats
}
