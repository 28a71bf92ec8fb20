package archive

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/meigma/arcimport/archive/internal/container"
	"github.com/meigma/arcimport/archive/internal/index"
)

// Entry describes one archive member.
type Entry = index.Entry

// Interface compliance.
var (
	_ fs.FS         = (*Archive)(nil)
	_ fs.StatFS     = (*Archive)(nil)
	_ fs.ReadFileFS = (*Archive)(nil)
	_ fs.ReadDirFS  = (*Archive)(nil)
)

// Archive is an opened, optionally password-protected zip archive together
// with its in-memory entry index.
//
// The index is built once at construction and never rescanned: the archive
// is assumed not to change while it is open. All lookups are answered from
// the index; the container is only touched to read entry content.
//
// Archive implements fs.FS, fs.StatFS, fs.ReadFileFS, and fs.ReadDirFS.
// Directories are synthesized from entry paths.
type Archive struct {
	path             string
	password         string
	idx              *index.Index
	c                *container.Container
	maxFileSize      uint64
	maxDecoderMemory uint64
	decoderLowmem    bool
	verifyCredential bool
	closed           atomic.Bool
	logger           *slog.Logger
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Archive) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.logger
}

// Open opens the archive file at path.
//
// Open fails with ErrOpen if the file does not exist or is not a zip
// archive. A wrong password is normally only detected on the first read of
// an encrypted entry; use WithVerifyCredential to check it here instead.
func Open(path string, opts ...Option) (*Archive, error) {
	a := newArchive(path, opts)
	c, err := container.OpenFile(path, a.containerOpts()...)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: path, Err: err}
	}
	return a.init(c)
}

// New opens an archive held in r. The name is used as the archive path in
// synthetic file names and error messages.
func New(r io.ReaderAt, size int64, name string, opts ...Option) (*Archive, error) {
	a := newArchive(name, opts)
	c, err := container.New(r, size, a.containerOpts()...)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return a.init(c)
}

func newArchive(path string, opts []Option) *Archive {
	a := &Archive{
		path:             path,
		maxFileSize:      DefaultMaxFileSize,
		maxDecoderMemory: DefaultMaxDecoderMemory,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Archive) containerOpts() []container.Option {
	return []container.Option{
		container.WithPassword(a.password),
		container.WithMaxFileSize(a.maxFileSize),
		container.WithMaxDecoderMemory(a.maxDecoderMemory),
		container.WithDecoderLowmem(a.decoderLowmem),
	}
}

func (a *Archive) init(c *container.Container) (*Archive, error) {
	idx, shadowed := index.Build(c.Entries())
	for _, e := range shadowed {
		a.log().Debug("duplicate entry shadowed by a later member", "path", a.path, "entry", e.Path, "ordinal", e.Ordinal)
	}
	a.idx = idx
	a.c = c

	if a.password != "" {
		a.log().Info("password protected archive", "path", a.path)
	}
	a.log().Debug("archive opened", "path", a.path, "entries", idx.Len())

	if a.verifyCredential {
		if err := a.checkCredential(); err != nil {
			c.Close()
			return nil, err
		}
	}
	return a, nil
}

// checkCredential reads the smallest encrypted entry, if any.
func (a *Archive) checkCredential() error {
	var smallest *Entry
	for e := range a.idx.Entries() {
		if !e.Encrypted || e.Dir {
			continue
		}
		if smallest == nil || e.Size < smallest.Size {
			smallest = &e
		}
	}
	if smallest == nil {
		return nil
	}
	if _, err := a.c.Read(smallest); err != nil {
		return &fs.PathError{Op: "open", Path: a.path, Err: err}
	}
	return nil
}

// Path returns the location the archive was opened from.
func (a *Archive) Path() string {
	return a.path
}

// Len returns the number of entries in the archive.
func (a *Archive) Len() int {
	return a.idx.Len()
}

// Has reports whether the index holds an entry at path.
// It never touches the container.
func (a *Archive) Has(path string) bool {
	return a.idx.Has(path)
}

// Entry returns the descriptor for the given path.
func (a *Archive) Entry(path string) (Entry, bool) {
	return a.idx.Lookup(path)
}

// Entries returns an iterator over all entries in path order.
func (a *Archive) Entries() iter.Seq[Entry] {
	return a.idx.Entries()
}

// EntriesWithPrefix returns an iterator over entries whose path starts with
// prefix, in path order.
func (a *Archive) EntriesWithPrefix(prefix string) iter.Seq[Entry] {
	return a.idx.EntriesWithPrefix(prefix)
}

// ReadFile implements fs.ReadFileFS.
//
// ReadFile returns the uncompressed, decrypted content of the named entry.
// Existence is decided by the in-memory index: a path that is not indexed
// fails with ErrEntryNotFound without consulting the container.
// Names follow fs.ValidPath; use NormalizePath first for looser input.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrInvalid}
	}
	entry, ok := a.idx.Lookup(name)
	if !ok {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: ErrEntryNotFound}
	}
	return a.read(&entry)
}

func (a *Archive) read(entry *Entry) ([]byte, error) {
	if a.closed.Load() {
		return nil, &fs.PathError{Op: "readfile", Path: entry.Path, Err: ErrClosed}
	}
	data, err := a.c.Read(entry)
	if err != nil {
		a.log().Debug("entry read failed", "path", entry.Path, "error", err)
		return nil, &fs.PathError{Op: "readfile", Path: entry.Path, Err: err}
	}
	return data, nil
}

// Open implements fs.FS.
//
// Files are read fully into memory on open; the returned file also
// implements io.ReaderAt and io.Seeker.
func (a *Archive) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	if entry, ok := a.idx.Lookup(name); ok && !entry.Dir {
		data, err := a.read(&entry)
		if err != nil {
			return nil, err
		}
		return &memFile{Reader: bytes.NewReader(data), info: newFileInfo(&entry)}, nil
	}

	if a.isDir(name) {
		return &openDir{a: a, name: name}, nil
	}

	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// Stat implements fs.StatFS.
//
// Stat returns file info for the named entry without reading its content.
// For directories, Stat returns synthetic directory info.
func (a *Archive) Stat(name string) (fs.FileInfo, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrInvalid}
	}
	if entry, ok := a.idx.Lookup(name); ok && !entry.Dir {
		return newFileInfo(&entry), nil
	}
	if a.isDir(name) {
		return &dirInfo{name: base(name)}, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

// ReadDir implements fs.ReadDirFS.
//
// ReadDir returns directory entries for the named directory, sorted by name.
// Subdirectories are synthesized from entry paths.
func (a *Archive) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	if !a.isDir(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}

	di := newDirIter(a.idx, dirPrefix(name))
	defer di.Close()

	entries := make([]fs.DirEntry, 0)
	for {
		entry, ok := di.Next()
		if !ok {
			break
		}
		entries = append(entries, entry)
	}
	slices.SortFunc(entries, func(x, y fs.DirEntry) int {
		return strings.Compare(x.Name(), y.Name())
	})
	return entries, nil
}

// Close releases the container. Reads after Close fail with ErrClosed;
// index lookups keep working.
func (a *Archive) Close() error {
	if a.closed.Swap(true) {
		return nil
	}
	if err := a.c.Close(); err != nil {
		return fmt.Errorf("close archive %s: %w", a.path, err)
	}
	return nil
}

// isDir reports whether name is a directory: the root of a non-empty
// archive, an explicit directory entry, or a prefix of other entries.
func (a *Archive) isDir(name string) bool {
	if name == "." {
		return a.idx.Len() > 0
	}
	if entry, ok := a.idx.Lookup(name); ok && entry.Dir {
		return true
	}
	for range a.idx.EntriesWithPrefix(name + "/") {
		return true
	}
	return false
}
