// Package index holds the in-memory table of contents of an opened archive.
package index

import (
	"iter"
	"sort"
	"strings"
	"time"
)

// Entry describes one archive member.
//
// The descriptor is owned by the container: Ordinal is the member's position
// in the container's own table and is only meaningful to the container that
// produced it.
type Entry struct {
	// Path is the slash-separated internal path (e.g., "pkg/__init__.star").
	// Directory members are recorded without their trailing slash.
	Path string

	// Ordinal is the position of the member in the container table.
	Ordinal int

	// Size is the uncompressed size in bytes.
	Size uint64

	// CompressedSize is the stored size in bytes.
	CompressedSize uint64

	// Method is the container compression method.
	Method uint16

	// CRC32 is the checksum of the uncompressed content.
	CRC32 uint32

	// Encrypted reports whether a credential is needed to read the member.
	Encrypted bool

	// Dir reports whether the member is an explicit directory marker.
	Dir bool

	// ModTime is the member's modification time.
	ModTime time.Time
}

// Index provides O(log n) lookups by path.
//
// Entries are sorted by path, enabling efficient prefix scans for directory
// operations. An Index is immutable once built and safe for concurrent reads.
type Index struct {
	entries []Entry
}

// Build creates an Index from the given entries.
//
// Zip archives may list a path more than once. The member with the highest
// Ordinal, the one written last, wins; the others are returned as shadowed.
// The slice is retained and reordered; callers must not modify it afterwards.
func Build(entries []Entry) (idx *Index, shadowed []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Path != entries[j].Path {
			return entries[i].Path < entries[j].Path
		}
		return entries[i].Ordinal < entries[j].Ordinal
	})
	kept := entries[:0]
	for i, e := range entries {
		if i+1 < len(entries) && entries[i+1].Path == e.Path {
			shadowed = append(shadowed, e)
			continue
		}
		kept = append(kept, e)
	}
	return &Index{entries: kept}, shadowed
}

// Lookup returns the entry for the given path.
func (idx *Index) Lookup(path string) (Entry, bool) {
	i := idx.search(path)
	if i < len(idx.entries) && idx.entries[i].Path == path {
		return idx.entries[i], true
	}
	return Entry{}, false
}

// Has reports whether path is present.
func (idx *Index) Has(path string) bool {
	_, ok := idx.Lookup(path)
	return ok
}

// Len returns the number of entries in the index.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Entries returns an iterator over all entries in path order.
func (idx *Index) Entries() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, e := range idx.entries {
			if !yield(e) {
				return
			}
		}
	}
}

// EntriesWithPrefix returns an iterator over entries whose path starts with
// prefix, in path order.
func (idx *Index) EntriesWithPrefix(prefix string) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for i := idx.search(prefix); i < len(idx.entries); i++ {
			e := idx.entries[i]
			if !strings.HasPrefix(e.Path, prefix) {
				return
			}
			if !yield(e) {
				return
			}
		}
	}
}

func (idx *Index) search(path string) int {
	return sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].Path >= path
	})
}
