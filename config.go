package hnswcore

import "github.com/liliang-cn/hnswcore/pkg/distance"

// Config is Build's parameter block. Dist, MaxNbConnection and
// EfConstruction must be set (Build panics otherwise); a nil Logger becomes
// NopLogger.
type Config[T any] struct {
	// MaxNbConnection is M: the target neighbour count per point on every
	// layer above 0 (layer 0 keeps up to 2M). Must be in [2, 256].
	MaxNbConnection int

	// EfConstruction is the beam width used while building neighbour lists
	// during Insert.
	EfConstruction int

	// MaxLayer is the inclusive upper bound on a point's sampled level.
	// Zero, or any value of point.NBLayerMax (16) or more, is treated as 15.
	MaxLayer int

	// Dist is the distance kernel new points and queries are compared with.
	Dist distance.Distance[T]

	// CapacityHint is passed through to the graph but not used: no storage
	// is preallocated from it, and it is never a limit.
	CapacityHint int

	// Logger receives Build and Dump diagnostics. Defaults to NopLogger.
	Logger Logger
}

// DefaultConfig returns the configuration used by the scenarios in
// spec.md's testable-properties suite: M=10, ef_construction=25,
// max_layer=16.
func DefaultConfig[T any](d distance.Distance[T]) Config[T] {
	return Config[T]{
		MaxNbConnection: 10,
		EfConstruction:  25,
		MaxLayer:        16,
		Dist:            d,
		Logger:          NopLogger(),
	}
}
