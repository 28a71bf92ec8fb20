package archive

import (
	"bytes"
	"io"
	"io/fs"
	"iter"
	"time"

	"github.com/meigma/arcimport/archive/internal/index"
)

// memFile is an fs.File over fully read entry content.
type memFile struct {
	*bytes.Reader
	info fs.FileInfo
}

func (f *memFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *memFile) Close() error               { return nil }

// fileInfo implements fs.FileInfo for archive entries.
type fileInfo struct {
	name  string
	size  int64
	mtime time.Time
}

func newFileInfo(entry *Entry) *fileInfo {
	return &fileInfo{
		name:  base(entry.Path),
		size:  int64(entry.Size), //nolint:gosec // sizes are bounded by the container
		mtime: entry.ModTime,
	}
}

func (fi *fileInfo) Name() string       { return fi.name }
func (fi *fileInfo) Size() int64        { return fi.size }
func (fi *fileInfo) Mode() fs.FileMode  { return 0o444 }
func (fi *fileInfo) ModTime() time.Time { return fi.mtime }
func (fi *fileInfo) IsDir() bool        { return false }
func (fi *fileInfo) Sys() any           { return nil }

// dirInfo implements fs.FileInfo for synthetic directories.
type dirInfo struct {
	name string
}

func (di *dirInfo) Name() string       { return di.name }
func (di *dirInfo) Size() int64        { return 0 }
func (di *dirInfo) Mode() fs.FileMode  { return fs.ModeDir | 0o555 }
func (di *dirInfo) ModTime() time.Time { return time.Time{} }
func (di *dirInfo) IsDir() bool        { return true }
func (di *dirInfo) Sys() any           { return nil }

// dirEntry implements fs.DirEntry.
type dirEntry struct {
	info fs.FileInfo
}

func (de *dirEntry) Name() string               { return de.info.Name() }
func (de *dirEntry) IsDir() bool                { return de.info.IsDir() }
func (de *dirEntry) Type() fs.FileMode          { return de.info.Mode().Type() }
func (de *dirEntry) Info() (fs.FileInfo, error) { return de.info, nil }

// openDir implements fs.File and fs.ReadDirFile for synthetic directories.
type openDir struct {
	a    *Archive
	name string
	iter *dirIter
}

func (d *openDir) Read(_ []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: fs.ErrInvalid}
}

func (d *openDir) Stat() (fs.FileInfo, error) {
	return &dirInfo{name: base(d.name)}, nil
}

func (d *openDir) Close() error {
	if d.iter != nil {
		d.iter.Close()
		d.iter = nil
	}
	return nil
}

func (d *openDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if d.iter == nil {
		d.iter = newDirIter(d.a.idx, dirPrefix(d.name))
	}

	if n <= 0 {
		entries := make([]fs.DirEntry, 0)
		for {
			entry, ok := d.iter.Next()
			if !ok {
				return entries, nil
			}
			entries = append(entries, entry)
		}
	}

	entries := make([]fs.DirEntry, 0, n)
	for len(entries) < n {
		entry, ok := d.iter.Next()
		if !ok {
			if len(entries) == 0 {
				return nil, io.EOF
			}
			return entries, nil
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// dirIter iterates over the immediate children of a prefix, synthesizing
// subdirectories from nested paths. Each child name is yielded once.
type dirIter struct {
	next   func() (index.Entry, bool)
	stop   func()
	prefix string
	seen   map[string]struct{}
	done   bool
}

func newDirIter(idx *index.Index, prefix string) *dirIter {
	next, stop := iter.Pull(idx.EntriesWithPrefix(prefix))
	return &dirIter{
		next:   next,
		stop:   stop,
		prefix: prefix,
		seen:   make(map[string]struct{}),
	}
}

// Next returns the next directory entry.
func (it *dirIter) Next() (fs.DirEntry, bool) {
	if it.done {
		return nil, false
	}
	for {
		entry, ok := it.next()
		if !ok {
			it.Close()
			return nil, false
		}

		childName, isSubDir := Child(entry.Path, it.prefix)
		if childName == "" {
			continue
		}
		if _, dup := it.seen[childName]; dup {
			continue
		}
		it.seen[childName] = struct{}{}

		if isSubDir || entry.Dir {
			return &dirEntry{info: &dirInfo{name: childName}}, true
		}
		return &dirEntry{info: newFileInfo(&entry)}, true
	}
}

// Close releases resources held by the iterator.
func (it *dirIter) Close() {
	if it.done {
		return
	}
	it.done = true
	if it.stop != nil {
		it.stop()
		it.stop = nil
	}
}
