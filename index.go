package hnswcore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/liliang-cn/hnswcore/pkg/distance"
	"github.com/liliang-cn/hnswcore/pkg/filter"
	"github.com/liliang-cn/hnswcore/pkg/flatten"
	"github.com/liliang-cn/hnswcore/pkg/hnsw"
	"github.com/liliang-cn/hnswcore/pkg/point"
	"github.com/liliang-cn/hnswcore/pkg/serialize"
)

// translateSerializeErr maps pkg/serialize's own sentinels onto this
// package's, so callers can errors.Is against hnswcore.ErrReloadMismatch/
// hnswcore.ErrCorruptDump without importing pkg/serialize themselves.
func translateSerializeErr(err error) error {
	switch {
	case errors.Is(err, serialize.ErrReloadMismatch):
		return fmt.Errorf("%w: %v", ErrReloadMismatch, err)
	case errors.Is(err, serialize.ErrCorruptDump):
		return fmt.Errorf("%w: %v", ErrCorruptDump, err)
	default:
		return err
	}
}

// Index is the facade over pkg/hnsw.Graph: it adds the closed-after-Close
// guard, the dump/reload type-name bookkeeping, and logging around the
// graph's construction and search operations.
type Index[T any] struct {
	mu     sync.RWMutex
	closed bool

	g        *hnsw.Graph[T]
	logger   Logger
	typeName string
	distName string
	dim      int
}

// Build constructs an empty index. Invalid configuration (M outside
// [2, 256], non-positive ef_construction, negative max_layer, nil Dist) is
// a programmer error: Build panics with an *IndexError wrapping
// ErrInvalidConfig rather than returning an error.
func Build[T any](cfg Config[T]) *Index[T] {
	if cfg.MaxNbConnection < 2 || cfg.MaxNbConnection > 256 {
		panic(wrapError("build", fmt.Errorf("%w: max_nb_connection %d outside [2, 256]", ErrInvalidConfig, cfg.MaxNbConnection)))
	}
	if cfg.EfConstruction < 1 {
		panic(wrapError("build", fmt.Errorf("%w: ef_construction must be positive", ErrInvalidConfig)))
	}
	if cfg.MaxLayer < 0 {
		panic(wrapError("build", fmt.Errorf("%w: max_layer must be non-negative", ErrInvalidConfig)))
	}
	if cfg.Dist == nil {
		panic(wrapError("build", fmt.Errorf("%w: distance kernel is required", ErrInvalidConfig)))
	}

	logger := cfg.Logger
	if logger == nil {
		logger = NopLogger()
	}

	g := hnsw.Build[T](cfg.MaxNbConnection, cfg.EfConstruction, cfg.MaxLayer, cfg.Dist, cfg.CapacityHint)

	logger.Info("index built", "m", cfg.MaxNbConnection, "ef_construction", cfg.EfConstruction, "max_layer", cfg.MaxLayer)

	return &Index[T]{
		g:        g,
		logger:   logger,
		typeName: elementTypeName[T](),
		distName: kernelName(cfg.Dist),
	}
}

func elementTypeName[T any]() string {
	var zero T
	return fmt.Sprintf("%T", zero)
}

func kernelName[T any](d distance.Distance[T]) string {
	return fmt.Sprintf("%T", d)
}

// Insert adds one vector under dataID.
func (idx *Index[T]) Insert(v []T, dataID uint64) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return
	}
	if idx.dim == 0 {
		idx.dim = len(v)
	}
	idx.g.Insert(v, dataID)
}

// ParallelInsert adds a batch of vectors concurrently.
func (idx *Index[T]) ParallelInsert(batch []hnsw.Insertion[T]) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return
	}
	if idx.dim == 0 && len(batch) > 0 {
		idx.dim = len(batch[0].V)
	}
	idx.g.ParallelInsert(batch)
}

// Search returns up to k neighbours of query, widening the internal beam
// to ef. filt may be nil.
func (idx *Index[T]) Search(query []T, k, ef int, filt filter.Filter) []point.Neighbour {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.g.Search(query, k, ef, filt)
}

// ParallelSearch runs Search over every query concurrently, preserving
// input order in the returned slice.
func (idx *Index[T]) ParallelSearch(queries [][]T, k, ef int, filt filter.Filter) [][]point.Neighbour {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.g.ParallelSearch(queries, k, ef, filt)
}

// SetSearchingMode is the advisory guard spec.md §5 describes: set it true
// once parallel insertion has finished and before serving concurrent
// searches. It is not enforced — the caller is responsible for not
// interleaving inserts and searches once set.
func (idx *Index[T]) SetSearchingMode(v bool) { idx.g.SetSearchingMode(v) }

// SetExtendCandidates toggles Algorithm 4's candidate-set extension.
func (idx *Index[T]) SetExtendCandidates(v bool) { idx.g.SetExtendCandidates(v) }

// SetKeepPruned toggles whether select_neighbours backfills from pruned
// candidates when the accepted set is short of its target size.
func (idx *Index[T]) SetKeepPruned(v bool) { idx.g.SetKeepPruned(v) }

// NbPoint returns the number of points inserted so far.
func (idx *Index[T]) NbPoint() int64 { return idx.g.NbPoint() }

// Stats returns per-layer point counts.
func (idx *Index[T]) Stats() map[string]int { return idx.g.Stats() }

// Flatten computes the whole graph's post-hoc flattened adjacency.
func (idx *Index[T]) Flatten() flatten.FlatNeighborhood { return flatten.Build[T](idx.g) }

// Dump writes the index to the two files named by stem
// (<stem>.hnsw.graph, <stem>.hnsw.data), using a write-temp-then-rename
// sequence so a concurrent reader never observes a partial dump.
func (idx *Index[T]) Dump(stem string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return wrapError("dump", ErrClosed)
	}
	dim := idx.dim
	if err := serialize.Dump(idx.g, idx.typeName, idx.distName, dim, serialize.Stem(stem)); err != nil {
		return wrapError("dump", translateSerializeErr(err))
	}
	idx.logger.Info("index dumped", "stem", stem, "points", idx.g.NbPoint())
	return nil
}

// Load reconstructs a full index from stem, using d as the distance
// kernel. d is supplied explicitly rather than inferred from the dump's
// recorded name, since a caller's distance may carry state or closures
// that cannot round-trip through a name alone.
func Load[T any](stem string, d distance.Distance[T]) (*Index[T], error) {
	g, err := serialize.Load[T](serialize.Stem(stem), d)
	if err != nil {
		return nil, wrapError("load", translateSerializeErr(err))
	}
	return &Index[T]{
		g:        g,
		logger:   NopLogger(),
		typeName: elementTypeName[T](),
		distName: kernelName(d),
	}, nil
}

// LoadGraphOnly reconstructs a graph's topology from stem without opening
// its data file. Every point's vector is nil and its distance kernel is
// distance.NoDist, so Search panics on the result; only structural
// operations (Flatten, Stats, iteration) are valid.
func LoadGraphOnly[T any](stem string) (*Index[T], error) {
	g, err := serialize.LoadGraphOnly[T](serialize.Stem(stem))
	if err != nil {
		return nil, wrapError("load_graph_only", translateSerializeErr(err))
	}
	return &Index[T]{
		g:        g,
		logger:   NopLogger(),
		typeName: elementTypeName[T](),
		distName: "NoDist",
	}, nil
}

// MapData opens stem's data file through a memory mapping and indexes its
// records by data id. The file's bytes are copied out of the mapping once
// at open time; returned vectors are slices of that copy.
func MapData[T any](stem string) (*serialize.DataMap[T], error) {
	return serialize.OpenDataMap[T](serialize.Stem(stem).DataPath())
}

// Close marks the index closed. Further Insert/ParallelInsert calls
// become no-ops; Search remains valid since closing never frees memory.
func (idx *Index[T]) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.closed = true
	return nil
}
