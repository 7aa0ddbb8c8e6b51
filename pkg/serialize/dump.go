package serialize

import (
	"errors"
	"fmt"
	"os"

	"github.com/liliang-cn/hnswcore/pkg/distance"
	"github.com/liliang-cn/hnswcore/pkg/hnsw"
	"github.com/liliang-cn/hnswcore/pkg/point"
)

// ErrReloadMismatch is returned when a dump's two files disagree with each
// other or with what the caller expects (element type name, dimension, a
// missing data record).
var ErrReloadMismatch = errors.New("serialize: reload header mismatch")

// Stem names a dump's two files: "<stem>.hnsw.graph" and "<stem>.hnsw.data".
type Stem string

func (s Stem) graphPath() string { return string(s) + ".hnsw.graph" }
func (s Stem) dataPath() string  { return string(s) + ".hnsw.data" }

// GraphPath returns the topology file's path for this stem.
func (s Stem) GraphPath() string { return s.graphPath() }

// DataPath returns the vector-payload file's path for this stem.
func (s Stem) DataPath() string { return s.dataPath() }

// Dump writes g to the two files named by stem, using typeName/distName as
// the recorded type and distance names and dimension as the per-vector
// element count. Each file is written to a temporary path in the same
// directory and renamed into place, so a reader never observes a partially
// written dump.
func Dump[T any](g *hnsw.Graph[T], typeName, distName string, dimension int, stem Stem) (err error) {
	graphTmp := stem.graphPath() + ".tmp"
	dataTmp := stem.dataPath() + ".tmp"

	if err := WriteGraph(g, typeName, distName, dimension, graphTmp); err != nil {
		os.Remove(graphTmp)
		return fmt.Errorf("serialize: writing graph file: %w", err)
	}

	var points []*point.Point[T]
	g.IterateAll(func(p *point.Point[T]) { points = append(points, p) })
	if err := WriteData(points, dimension, dataTmp); err != nil {
		os.Remove(graphTmp)
		os.Remove(dataTmp)
		return fmt.Errorf("serialize: writing data file: %w", err)
	}

	if err := os.Rename(graphTmp, stem.graphPath()); err != nil {
		os.Remove(graphTmp)
		os.Remove(dataTmp)
		return err
	}
	if err := os.Rename(dataTmp, stem.dataPath()); err != nil {
		os.Remove(dataTmp)
		return err
	}
	return nil
}

// Load reconstructs a full graph from stem, attaching each point's vector
// from the data file and using d as the distance kernel (d is supplied by
// the caller rather than inferred, since distances may carry state or
// closures that cannot round-trip through a name alone).
func Load[T any](stem Stem, d distance.Distance[T]) (*hnsw.Graph[T], error) {
	desc, records, epID, hasEntry, err := ReadGraph(stem.graphPath())
	if err != nil {
		return nil, fmt.Errorf("serialize: reading graph file: %w", err)
	}

	var zero T
	if want := fmt.Sprintf("%T", zero); desc.TypeName != want {
		return nil, fmt.Errorf("%w: dump element type %q, loading as %q", ErrReloadMismatch, desc.TypeName, want)
	}

	dm, err := OpenDataMap[T](stem.dataPath())
	if err != nil {
		return nil, fmt.Errorf("serialize: opening data file: %w", err)
	}
	defer dm.Close()

	if dm.Dimension() != int(desc.Dimension) {
		return nil, fmt.Errorf("%w: graph dimension %d, data dimension %d", ErrReloadMismatch, desc.Dimension, dm.Dimension())
	}

	g := hnsw.Build[T](int(desc.MaxNbConnection), int(desc.EfConstruction), int(desc.MaxLayer), d, len(records))

	for _, rec := range records {
		v, ok := dm.GetData(rec.DataID)
		if !ok {
			return nil, fmt.Errorf("%w: no data record for data id %d", ErrReloadMismatch, rec.DataID)
		}
		cp := make([]T, len(v))
		copy(cp, v)
		g.RestorePoint(rec.DataID, rec.PID, cp, rec.Neighbours)
	}
	if hasEntry {
		g.SetEntryPointByID(epID)
	}

	return g, nil
}

// LoadGraphOnly reconstructs a graph's topology without touching the data
// file: every point's vector is left nil and the distance kernel is
// distance.NoDist, so only structural operations (IterateAll, Stats,
// flatten.Build) are valid on the result; Search panics.
func LoadGraphOnly[T any](stem Stem) (*hnsw.Graph[T], error) {
	desc, records, epID, hasEntry, err := ReadGraph(stem.graphPath())
	if err != nil {
		return nil, fmt.Errorf("serialize: reading graph file: %w", err)
	}

	g := hnsw.Build[T](int(desc.MaxNbConnection), int(desc.EfConstruction), int(desc.MaxLayer), distance.NoDist[T]{}, len(records))

	for _, rec := range records {
		g.RestorePoint(rec.DataID, rec.PID, nil, rec.Neighbours)
	}
	if hasEntry {
		g.SetEntryPointByID(epID)
	}

	return g, nil
}
