// Package hnswcore is an embeddable HNSW approximate-nearest-neighbour
// index. It consumes caller-supplied numeric vectors and an explicit
// distance kernel — it never calls out to an embedding model or a
// database of its own — and exposes build/insert/search plus a
// memory-mappable two-file dump format.
//
// # Quick start
//
//	idx := hnswcore.Build(hnswcore.Config[float32]{
//	    MaxNbConnection: 16,
//	    EfConstruction:  100,
//	    MaxLayer:        16,
//	    Dist:            distance.L2[float32]{},
//	})
//
//	idx.Insert([]float32{0.1, 0.2, 0.3}, 1)
//	results := idx.Search([]float32{0.1, 0.2, 0.28}, 5, 50, nil)
//
// # Distances
//
// pkg/distance supplies the kernel library (L1, L2, Cosine, Dot, Hamming,
// Jaccard, Hellinger, Jeffreys, Jensen-Shannon, Levenshtein) plus SIMD-style
// unrolled L1/L2 paths gated on AVX2 detection.
//
// # Persistence
//
// Dump/Load/LoadGraphOnly write and read a two-file format: a graph file
// carrying topology and a data file carrying raw vector payloads in the
// host's native byte order. MapData opens the data file through a memory
// mapping, copies its bytes once, and slices vectors out of that copy
// without converting them.
//
// # Concurrency
//
// ParallelInsert and ParallelSearch fan out over golang.org/x/sync/errgroup.
// Locking is per-point (see pkg/point), not a single index-wide mutex, so
// concurrent inserts only serialize on the points they actually touch.
//
// # Scope
//
// This package implements HNSW only — no brute-force, IVF, or LSH index
// variants, no query-time re-ranking, and no storage of the source vectors
// beyond what the dump format records. Quantization (pkg/quantize) is an
// optional, stateless helper a caller may apply before calling Insert; the
// core never quantizes on its own.
package hnswcore
