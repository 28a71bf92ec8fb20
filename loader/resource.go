package loader

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"iter"
	"strings"

	"github.com/meigma/arcimport/archive"
)

// ResourceReader reads the non-code files of one package. It is a view
// over the loader's archive index scoped to the package directory.
type ResourceReader struct {
	l      *Loader
	pkg    string
	prefix string // package directory with a trailing slash
}

// NewResourceReader returns a reader scoped to the directory of pkg,
// "a.b" mapping to "a/b/". It does not check that pkg is a package.
func NewResourceReader(l *Loader, pkg string) *ResourceReader {
	return &ResourceReader{
		l:      l,
		pkg:    pkg,
		prefix: strings.ReplaceAll(pkg, ".", "/") + "/",
	}
}

// Package returns the dotted package name.
func (r *ResourceReader) Package() string {
	return r.pkg
}

// Open returns a reader over the named resource. A missing resource fails
// with ErrResourceNotFound; the content is never partial.
func (r *ResourceReader) Open(name string) (io.ReadCloser, error) {
	p := r.prefix + name
	data, err := r.l.GetData(p)
	if err != nil {
		if errors.Is(err, ErrDataNotFound) {
			return nil, &fs.PathError{Op: "open", Path: p, Err: ErrResourceNotFound}
		}
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// ResourcePath always fails with ErrNoStandalonePath: resources have no
// file system path of their own.
func (r *ResourceReader) ResourcePath(name string) (string, error) {
	return "", &fs.PathError{Op: "resourcepath", Path: r.prefix + name, Err: ErrNoStandalonePath}
}

// IsResource reports whether the named file exists in the package
// directory. Only the index is consulted.
func (r *ResourceReader) IsResource(name string) bool {
	return r.l.isFile(archive.NormalizePath(r.prefix + name))
}

// Contents yields the immediate children of the package directory, files
// and subdirectories alike, each once. Every call walks the index afresh.
// Order is not guaranteed.
func (r *ResourceReader) Contents() iter.Seq[string] {
	return func(yield func(string) bool) {
		seen := make(map[string]struct{})
		for e := range r.l.a.EntriesWithPrefix(r.prefix) {
			name, _ := archive.Child(e.Path, r.prefix)
			if name == "" {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			if !yield(name) {
				return
			}
		}
	}
}

// FS returns the package directory as a file system, for use with
// template.ParseFS and similar.
func (r *ResourceReader) FS() (fs.FS, error) {
	return fs.Sub(r.l.a, strings.TrimSuffix(r.prefix, "/"))
}
