package loader

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrModuleNotFound is returned when no search candidate for a module
	// name exists in the archive, or none of the existing ones decode.
	// Finders chained by a host treat it as "not mine".
	ErrModuleNotFound = errors.New("loader: module not found")

	// ErrNamespaceDir is returned when a module name matches a directory in
	// the archive that has no __init__ entry. Such directories are not
	// importable. It matches ErrModuleNotFound, so chained finders still
	// move on.
	ErrNamespaceDir = fmt.Errorf("loader: directory without __init__ entry: %w", ErrModuleNotFound)

	// ErrDataNotFound is returned by GetData for a path absent from the
	// archive. It matches fs.ErrNotExist.
	ErrDataNotFound = fmt.Errorf("loader: data not found: %w", fs.ErrNotExist)

	// ErrResourceNotFound is returned when a package resource does not
	// exist. It matches fs.ErrNotExist.
	ErrResourceNotFound = fmt.Errorf("loader: resource not found: %w", fs.ErrNotExist)

	// ErrNoStandalonePath is returned by ResourcePath: resources live only
	// inside the archive. Callers that need a real file must extract it.
	ErrNoStandalonePath = errors.New("loader: resource has no standalone path")
)

// Error records a failed loader operation on one module.
type Error struct {
	Op     string // "locate", "load", "read", "decode", "exec"
	Module string // dotted module name
	Path   string // internal archive path, if one was matched
	Err    error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return e.Op + " " + e.Module + ": " + e.Err.Error()
	}
	return e.Op + " " + e.Module + " (" + e.Path + "): " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func notFound(op, name string) error {
	return &Error{Op: op, Module: name, Err: ErrModuleNotFound}
}

// absent reports a module none of whose candidates exist, telling a bare
// directory apart from nothing at all.
func (l *Loader) absent(op, name, prefix string) error {
	if l.isDir(prefix) {
		return &Error{Op: op, Module: name, Path: prefix, Err: ErrNamespaceDir}
	}
	return notFound(op, name)
}
