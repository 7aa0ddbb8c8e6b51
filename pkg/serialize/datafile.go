package serialize

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"unsafe"

	"github.com/liliang-cn/hnswcore/pkg/point"
	"golang.org/x/exp/mmap"
)

// bytesOf reinterprets v's backing array as a byte slice in native layout,
// with no copy. T must be a fixed-size value type (the numeric scalar kinds
// distance kernels operate on); it must not contain pointers.
func bytesOf[T any](v []T) []byte {
	if len(v) == 0 {
		return nil
	}
	var zero T
	size := int(unsafe.Sizeof(zero))
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*size)
}

// sliceOf is bytesOf's inverse: it views b's backing array as a []T with no
// copy. b must outlive the returned slice.
func sliceOf[T any](b []byte) []T {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if size == 0 || len(b) < size {
		return nil
	}
	n := len(b) / size
	return unsafe.Slice((*T)(unsafe.Pointer(&b[0])), n)
}

// WriteData writes every point's raw vector payload to path, in the
// two-file format's data layout. Points are visited in the same order as
// WriteGraph so that a debugging pass over both files in step is possible,
// though lookups from the data file never depend on that order.
func WriteData[T any](points []*point.Point[T], dimension int, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.NativeEndian, MagicData); err != nil {
		return err
	}
	if err := binary.Write(w, binary.NativeEndian, uint32(dimension)); err != nil {
		return err
	}

	for _, p := range points {
		if err := binary.Write(w, binary.NativeEndian, MagicData); err != nil {
			return err
		}
		if err := binary.Write(w, binary.NativeEndian, p.DataID); err != nil {
			return err
		}
		raw := bytesOf(p.V)
		if err := binary.Write(w, binary.NativeEndian, uint64(len(raw))); err != nil {
			return err
		}
		if _, err := w.Write(raw); err != nil {
			return err
		}
	}

	return w.Flush()
}

// DataMap is a read-only view over a data file opened through a memory
// mapping. The mapped bytes are copied once into raw when the map is
// opened; vectors are sliced out of that copy, not out of the mapping.
type DataMap[T any] struct {
	ra        *mmap.ReaderAt
	raw       []byte
	dimension int
	offsets   map[point.DataID]int // byte offset of the payload within raw
	lengths   map[point.DataID]int
}

// OpenDataMap memory-maps path and indexes every record's offset by its
// data id, per original_source's DataMap construction: copy the mapped
// bytes, read the header, validate the magic, then walk the record stream
// once to build the offset table.
func OpenDataMap[T any](path string) (*DataMap[T], error) {
	ra, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}

	size := ra.Len()
	raw := make([]byte, size)
	if _, err := ra.ReadAt(raw, 0); err != nil && err != io.EOF {
		ra.Close()
		return nil, err
	}

	if len(raw) < 8 {
		ra.Close()
		return nil, fmt.Errorf("%w: data file too short", ErrCorruptDump)
	}
	magic := binary.NativeEndian.Uint32(raw[0:4])
	if magic != MagicData {
		ra.Close()
		return nil, fmt.Errorf("%w: bad data magic %#x, want %#x", ErrCorruptDump, magic, MagicData)
	}
	dimension := int(binary.NativeEndian.Uint32(raw[4:8]))

	dm := &DataMap[T]{
		ra:        ra,
		raw:       raw,
		dimension: dimension,
		offsets:   make(map[point.DataID]int),
		lengths:   make(map[point.DataID]int),
	}

	pos := 8
	for pos+4+8+8 <= len(raw) {
		recMagic := binary.NativeEndian.Uint32(raw[pos : pos+4])
		if recMagic != MagicData {
			ra.Close()
			return nil, fmt.Errorf("%w: corrupt data record at offset %d", ErrCorruptDump, pos)
		}
		pos += 4
		dataID := binary.NativeEndian.Uint64(raw[pos : pos+8])
		pos += 8
		length := binary.NativeEndian.Uint64(raw[pos : pos+8])
		pos += 8
		if pos+int(length) > len(raw) {
			ra.Close()
			return nil, fmt.Errorf("%w: truncated data record at offset %d", ErrCorruptDump, pos)
		}
		dm.offsets[dataID] = pos
		dm.lengths[dataID] = int(length)
		pos += int(length)
	}

	return dm, nil
}

// GetData returns the vector stored under dataID as a slice into the
// DataMap's in-memory copy of the file (no further copy is made), plus
// whether one was found.
func (dm *DataMap[T]) GetData(dataID point.DataID) ([]T, bool) {
	off, ok := dm.offsets[dataID]
	if !ok {
		return nil, false
	}
	length := dm.lengths[dataID]
	return sliceOf[T](dm.raw[off : off+length]), true
}

// Dimension returns the per-vector element count recorded in the data
// file's header.
func (dm *DataMap[T]) Dimension() int { return dm.dimension }

// Close releases the memory mapping.
func (dm *DataMap[T]) Close() error { return dm.ra.Close() }
