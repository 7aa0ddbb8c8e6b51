// Package point owns the points of an HNSW graph: their layered storage,
// their per-point neighbour lists, and the entry-point bookkeeping shared
// across concurrent inserts and searches.
package point

import (
	"sync"
	"sync/atomic"

	"github.com/liliang-cn/hnswcore/pkg/layer"
)

// NBLayerMax is the maximum number of layers a point's coordinate can
// reference. NewIndexation replaces a max_layer outside [1, NBLayerMax)
// with NBLayerMax-1.
const NBLayerMax = 16

// DataID is the caller-supplied external identifier for a vector.
type DataID = uint64

// ID is a point's internal coordinate: the layer it lives on and its slot
// (insertion-order index) within that layer's point list. Slot -1 marks an
// uninitialized/absent point.
type ID struct {
	Layer uint8
	Slot  int32
}

// Neighbour is the externally returned triple identifying one edge of the
// graph: which external data id it points to, the distance to it, and its
// internal coordinate.
type Neighbour struct {
	DataID   DataID
	Distance float32
	PID      ID
}

// Point is an immutable vector plus a mutable, per-layer neighbour list.
// The neighbour lists are guarded by Mu so that searches (read locks) run
// concurrently with each other while serializing against updates to this
// point's own edges (write locks).
type Point[T any] struct {
	DataID DataID
	PID    ID
	V      []T

	Mu         sync.RWMutex
	Neighbours [NBLayerMax][]Neighbour
}

// New constructs a point at the given coordinate. Neighbour lists start
// empty; the caller populates them during insertion.
func New[T any](dataID DataID, pid ID, v []T) *Point[T] {
	return &Point[T]{DataID: dataID, PID: pid, V: v}
}

// WithOrder pairs a point reference with a signed distance to some implicit
// reference point. Ordering is purely by DistToRef: negate the distance to
// flip between min-heap ("nearest first when popped") and max-heap
// ("farthest first when popped") behaviour over the same container.
type WithOrder[T any] struct {
	Point     *Point[T]
	DistToRef float32
}

// Heap is a container/heap.Interface over WithOrder values, ordered
// ascending by DistToRef. Callers get max-heap behaviour by storing negated
// distances and min-heap behaviour by storing them as-is.
type Heap[T any] []WithOrder[T]

func (h Heap[T]) Len() int            { return len(h) }
func (h Heap[T]) Less(i, j int) bool  { return h[i].DistToRef < h[j].DistToRef }
func (h Heap[T]) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *Heap[T]) Push(x interface{}) { *h = append(*h, x.(WithOrder[T])) }
func (h *Heap[T]) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Indexation is the layered point store. It owns every point that has ever
// been inserted; points are never removed while the index exists.
type Indexation[T any] struct {
	maxNbConnection int
	maxLayer        int

	layersMu sync.RWMutex
	layers   [][]*Point[T]

	nbPoint atomic.Int64

	entryMu    sync.RWMutex
	entryPoint *Point[T]

	gen *layer.Generator
}

// NewIndexation builds an empty layered store for a graph with the given
// neighbour budget and layer cap. seed drives the layer generator.
func NewIndexation[T any](seed int64, maxNbConnection, maxLayer int) *Indexation[T] {
	if maxLayer <= 0 || maxLayer >= NBLayerMax {
		maxLayer = NBLayerMax - 1
	}
	layers := make([][]*Point[T], maxLayer+1)
	return &Indexation[T]{
		maxNbConnection: maxNbConnection,
		maxLayer:        maxLayer,
		layers:          layers,
		gen:             layer.New(seed, maxNbConnection, maxLayer+1),
	}
}

// MaxLayer returns the inclusive upper bound on levels this store accepts.
func (idx *Indexation[T]) MaxLayer() int { return idx.maxLayer }

// NbPoint returns the number of points inserted so far.
func (idx *Indexation[T]) NbPoint() int64 { return idx.nbPoint.Load() }

// GenerateNewPoint samples a level for v, appends it to that layer's point
// list, and returns the new point together with the post-increment total
// point count.
func (idx *Indexation[T]) GenerateNewPoint(v []T, dataID DataID) (*Point[T], int64) {
	lvl := idx.gen.Sample()

	idx.layersMu.Lock()
	slot := len(idx.layers[lvl])
	p := New(dataID, ID{Layer: uint8(lvl), Slot: int32(slot)}, v)
	idx.layers[lvl] = append(idx.layers[lvl], p)
	idx.layersMu.Unlock()

	n := idx.nbPoint.Add(1)
	return p, n
}

// CheckEntryPoint promotes newPoint to be the entry point if none exists
// yet, or if newPoint's level exceeds the current entry point's level.
func (idx *Indexation[T]) CheckEntryPoint(newPoint *Point[T]) {
	idx.entryMu.Lock()
	defer idx.entryMu.Unlock()
	if idx.entryPoint == nil || newPoint.PID.Layer > idx.entryPoint.PID.Layer {
		idx.entryPoint = newPoint
	}
}

// EntryPoint returns the current entry point, or nil if the store is empty.
func (idx *Indexation[T]) EntryPoint() *Point[T] {
	idx.entryMu.RLock()
	defer idx.entryMu.RUnlock()
	return idx.entryPoint
}

// RestorePoint places a fully-formed point directly at its recorded
// coordinate, bypassing level sampling and slot assignment. Used only when
// reconstructing an index from a dump, where every coordinate is already
// known.
func (idx *Indexation[T]) RestorePoint(dataID DataID, pid ID, v []T, neighbours [NBLayerMax][]Neighbour) *Point[T] {
	idx.layersMu.Lock()
	defer idx.layersMu.Unlock()

	for int(pid.Layer) >= len(idx.layers) {
		idx.layers = append(idx.layers, nil)
	}
	l := idx.layers[pid.Layer]
	for int(pid.Slot) >= len(l) {
		l = append(l, nil)
	}

	p := New(dataID, pid, v)
	p.Neighbours = neighbours
	l[pid.Slot] = p
	idx.layers[pid.Layer] = l
	idx.nbPoint.Add(1)
	return p
}

// SetEntryPointDirect overwrites the entry point unconditionally, used when
// reloading a dump that already recorded which point was the entry point.
func (idx *Indexation[T]) SetEntryPointDirect(p *Point[T]) {
	idx.entryMu.Lock()
	defer idx.entryMu.Unlock()
	idx.entryPoint = p
}

// GetPoint returns the point at the given coordinate, or nil if the
// coordinate is out of range for the current layer length.
func (idx *Indexation[T]) GetPoint(pid ID) *Point[T] {
	idx.layersMu.RLock()
	defer idx.layersMu.RUnlock()
	if int(pid.Layer) >= len(idx.layers) {
		return nil
	}
	layer := idx.layers[pid.Layer]
	if pid.Slot < 0 || int(pid.Slot) >= len(layer) {
		return nil
	}
	return layer[pid.Slot]
}

// IterateAll calls fn for every point, layer 0 first, holding a read lock
// over the layer store for the duration of the call. fn must not call back
// into any mutating Indexation method.
func (idx *Indexation[T]) IterateAll(fn func(*Point[T])) {
	idx.layersMu.RLock()
	defer idx.layersMu.RUnlock()
	for _, layer := range idx.layers {
		for _, p := range layer {
			fn(p)
		}
	}
}

// IterateLayer calls fn for every point on layer L, holding a read lock
// over the layer store for the duration of the call.
func (idx *Indexation[T]) IterateLayer(l int, fn func(*Point[T])) {
	idx.layersMu.RLock()
	defer idx.layersMu.RUnlock()
	if l < 0 || l >= len(idx.layers) {
		return
	}
	for _, p := range idx.layers[l] {
		fn(p)
	}
}

// LayerLen returns the number of points currently on layer L.
func (idx *Indexation[T]) LayerLen(l int) int {
	idx.layersMu.RLock()
	defer idx.layersMu.RUnlock()
	if l < 0 || l >= len(idx.layers) {
		return 0
	}
	return len(idx.layers[l])
}
