// Package filter restricts which points a search may return, without
// affecting how the graph is traversed to find them.
package filter

import "sort"

// Filter decides whether a data id may appear in a search result.
type Filter interface {
	Keep(dataID uint64) bool
}

// SortedList is a Filter backed by a sorted slice of allowed data ids,
// tested by binary search.
type SortedList []uint64

// Keep reports whether dataID is present in the sorted list.
func (s SortedList) Keep(dataID uint64) bool {
	i := sort.Search(len(s), func(i int) bool { return s[i] >= dataID })
	return i < len(s) && s[i] == dataID
}

// NewSortedList sorts ids and returns them as a SortedList. ids is not
// mutated in place; a copy is sorted instead.
func NewSortedList(ids []uint64) SortedList {
	cp := make([]uint64, len(ids))
	copy(cp, ids)
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
	return SortedList(cp)
}

// Func adapts a plain predicate to the Filter interface.
type Func func(dataID uint64) bool

// Keep calls the wrapped function.
func (f Func) Keep(dataID uint64) bool { return f(dataID) }
