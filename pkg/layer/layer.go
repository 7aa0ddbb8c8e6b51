// Package layer generates the random layer assignment each new point gets
// when it is inserted into an HNSW graph.
package layer

import (
	"math"
	"math/rand"
	"sync"
)

// Generator samples layer indices from the truncated exponential
// distribution HNSW construction requires: layer = floor(-ln(u) * scale),
// resampled whenever it would reach or exceed maxLayer. A single Generator is shared
// across concurrent inserts, guarded by a mutex around the underlying
// *rand.Rand (math/rand's global functions are already safe for concurrent
// use, but a per-graph *rand.Rand with an explicit seed is not, so the
// mutex goes around that instead).
type Generator struct {
	mu       sync.Mutex
	rng      *rand.Rand
	scale    float64
	maxLayer int
}

// New builds a Generator for a graph whose neighbour budget per layer is
// maxNbConnection and whose number of layers is capped at maxLayer. scale is
// 1/ln(maxNbConnection), the standard HNSW level-multiplier.
func New(seed int64, maxNbConnection int, maxLayer int) *Generator {
	if maxNbConnection < 2 {
		maxNbConnection = 2
	}
	return &Generator{
		rng:      rand.New(rand.NewSource(seed)),
		scale:    1.0 / math.Log(float64(maxNbConnection)),
		maxLayer: maxLayer,
	}
}

// Sample draws a new layer index from the truncated exponential. When the
// draw lands at or beyond maxLayer, it resamples once, uniformly over
// [0, maxLayer), rather than redrawing from the exponential again. Callers
// never see an out-of-range layer.
func (g *Generator) Sample() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	u := g.rng.Float64()
	for u == 0 {
		u = g.rng.Float64()
	}
	lvl := int(math.Floor(-math.Log(u) * g.scale))
	if lvl < g.maxLayer {
		return lvl
	}
	if g.maxLayer <= 0 {
		return 0
	}
	return g.rng.Intn(g.maxLayer)
}
