package serialize

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/liliang-cn/hnswcore/pkg/hnsw"
	"github.com/liliang-cn/hnswcore/pkg/point"
)

// WriteGraph writes g's topology (but not its vector payloads) to path in
// the two-file format's graph layout.
func WriteGraph[T any](g *hnsw.Graph[T], typeName, distName string, dimension int, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)

	desc := Description{
		MaxNbConnection: uint32(g.M()),
		EfConstruction:  uint32(g.EfConstruction()),
		MaxLayer:        uint32(g.MaxLayer()),
		TypeName:        typeName,
		DistName:        distName,
		Dimension:       uint32(dimension),
	}
	if err := writeDescription(w, desc); err != nil {
		return err
	}

	if err := binary.Write(w, binary.NativeEndian, uint64(g.NbPoint())); err != nil {
		return err
	}

	var writeErr error
	g.IterateAll(func(p *point.Point[T]) {
		if writeErr != nil {
			return
		}
		writeErr = writePointRecord(w, p)
	})
	if writeErr != nil {
		return writeErr
	}

	epID, ok := g.EntryPointID()
	if ok {
		if err := w.WriteByte(1); err != nil {
			return err
		}
		if err := writeCoordinate(w, epID); err != nil {
			return err
		}
	} else {
		if err := w.WriteByte(0); err != nil {
			return err
		}
	}

	return w.Flush()
}

func writeCoordinate(w io.Writer, pid point.ID) error {
	if err := binary.Write(w, binary.NativeEndian, pid.Layer); err != nil {
		return err
	}
	return binary.Write(w, binary.NativeEndian, pid.Slot)
}

func readCoordinate(r io.Reader) (point.ID, error) {
	var pid point.ID
	if err := binary.Read(r, binary.NativeEndian, &pid.Layer); err != nil {
		return point.ID{}, err
	}
	if err := binary.Read(r, binary.NativeEndian, &pid.Slot); err != nil {
		return point.ID{}, err
	}
	return pid, nil
}

func writePointRecord[T any](w io.Writer, p *point.Point[T]) error {
	p.Mu.RLock()
	defer p.Mu.RUnlock()

	if err := binary.Write(w, binary.NativeEndian, p.DataID); err != nil {
		return err
	}
	if err := writeCoordinate(w, p.PID); err != nil {
		return err
	}
	for l := 0; l < point.NBLayerMax; l++ {
		neighbours := p.Neighbours[l]
		if err := binary.Write(w, binary.NativeEndian, uint32(len(neighbours))); err != nil {
			return err
		}
		for _, n := range neighbours {
			if err := binary.Write(w, binary.NativeEndian, n.DataID); err != nil {
				return err
			}
			if err := writeCoordinate(w, n.PID); err != nil {
				return err
			}
			if err := binary.Write(w, binary.NativeEndian, n.Distance); err != nil {
				return err
			}
		}
	}
	return nil
}

// graphRecord is one point's topology as read back from a graph file,
// before its vector payload (if any) has been attached.
type graphRecord struct {
	DataID     point.DataID
	PID        point.ID
	Neighbours [point.NBLayerMax][]point.Neighbour
}

// ReadGraph parses a graph file into its header, per-point records, and
// entry-point coordinate (ok=false if the graph was empty).
func ReadGraph(path string) (Description, []graphRecord, point.ID, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return Description{}, nil, point.ID{}, false, err
	}
	defer f.Close()

	r := bufio.NewReader(f)

	desc, err := LoadDescription(r)
	if err != nil {
		return Description{}, nil, point.ID{}, false, err
	}

	var numPoints uint64
	if err := binary.Read(r, binary.NativeEndian, &numPoints); err != nil {
		return Description{}, nil, point.ID{}, false, err
	}

	records := make([]graphRecord, 0, numPoints)
	for i := uint64(0); i < numPoints; i++ {
		rec, err := readPointRecord(r)
		if err != nil {
			return Description{}, nil, point.ID{}, false, fmt.Errorf("serialize: reading point record %d: %w", i, err)
		}
		records = append(records, rec)
	}

	hasEntry, err := r.ReadByte()
	if err != nil {
		return Description{}, nil, point.ID{}, false, err
	}
	if hasEntry == 0 {
		return desc, records, point.ID{}, false, nil
	}
	epID, err := readCoordinate(r)
	if err != nil {
		return Description{}, nil, point.ID{}, false, err
	}
	return desc, records, epID, true, nil
}

func readPointRecord(r io.Reader) (graphRecord, error) {
	var rec graphRecord
	if err := binary.Read(r, binary.NativeEndian, &rec.DataID); err != nil {
		return rec, err
	}
	pid, err := readCoordinate(r)
	if err != nil {
		return rec, err
	}
	rec.PID = pid

	for l := 0; l < point.NBLayerMax; l++ {
		var count uint32
		if err := binary.Read(r, binary.NativeEndian, &count); err != nil {
			return rec, err
		}
		nbs := make([]point.Neighbour, count)
		for i := range nbs {
			if err := binary.Read(r, binary.NativeEndian, &nbs[i].DataID); err != nil {
				return rec, err
			}
			npid, err := readCoordinate(r)
			if err != nil {
				return rec, err
			}
			nbs[i].PID = npid
			if err := binary.Read(r, binary.NativeEndian, &nbs[i].Distance); err != nil {
				return rec, err
			}
		}
		rec.Neighbours[l] = nbs
	}
	return rec, nil
}
