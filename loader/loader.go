// Package loader resolves dotted module names against an archive and turns
// the matched entries into executed Starlark modules.
//
// Resolution follows a fixed candidate order (see SearchOrder). Load reads
// the first candidate present in the archive index and decodes it; when a
// precompiled or source candidate fails to decode, Load moves on to the
// next candidate and only reports ErrModuleNotFound once all have failed.
//
// Hosts use the two-phase protocol: Resolve returns the program together
// with the record metadata, the host registers a pending Record, then
// Materialize runs the body into it.
package loader

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/opencontainers/go-digest"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/meigma/arcimport/archive"
)

// Loader finds and loads modules stored in one archive.
//
// A Loader holds no mutable state after New and is safe for concurrent
// use. It imposes no locking around Execute: the host must ensure at most
// one execution per module name is in flight.
type Loader struct {
	a *archive.Archive

	sourceSuffix   string
	compiledSuffix string
	order          []SearchCandidate
	fileOptions    *syntax.FileOptions
	predeclared    starlark.StringDict
	bytecode       Decoder
	source         Decoder

	logger *slog.Logger
}

// New creates a Loader over a. The loader does not take ownership of the
// archive; closing it remains the caller's job.
func New(a *archive.Archive, opts ...Option) *Loader {
	l := &Loader{
		a:              a,
		sourceSuffix:   DefaultSourceSuffix,
		compiledSuffix: DefaultCompiledSuffix,
		bytecode:       BytecodeDecoder{},
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.fileOptions == nil {
		l.fileOptions = DefaultFileOptions()
	}
	if l.source == nil {
		l.source = SourceDecoder{Options: l.fileOptions, IsPredeclared: Predeclared(l.predeclared)}
	}
	l.order = SearchOrder(l.sourceSuffix, l.compiledSuffix)
	return l
}

// log returns the logger, falling back to a discard logger if nil.
func (l *Loader) log() *slog.Logger {
	if l.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l.logger
}

// Archive returns the archive the loader reads from.
func (l *Loader) Archive() *archive.Archive {
	return l.a
}

// SearchOrder returns the candidate list the loader uses.
func (l *Loader) SearchOrder() []SearchCandidate {
	return l.order
}

// Suffixes returns the source and precompiled suffixes.
func (l *Loader) Suffixes() (source, compiled string) {
	return l.sourceSuffix, l.compiledSuffix
}

// Locate reports whether name is a package and which internal path would
// be loaded for it, consulting only the archive index.
//
// A missing module fails with ErrModuleNotFound and logs at debug level
// only, so that several finders can be chained quietly. A directory without
// an __init__ entry fails with ErrNamespaceDir, which also matches
// ErrModuleNotFound.
func (l *Loader) Locate(name string) (isPackage bool, internalPath string, err error) {
	prefix, ok := ModulePath(name)
	if !ok {
		return false, "", notFound("locate", name)
	}
	for _, c := range l.order {
		p := prefix + c.Suffix
		if l.isFile(p) {
			return c.Package, p, nil
		}
	}
	l.log().Debug("module not in archive", "module", name, "archive", l.a.Path())
	return false, "", l.absent("locate", name, prefix)
}

// Load resolves name and decodes the first candidate that yields a program.
//
// Read failures other than decoding, such as a wrong password, are
// returned as they are. Decode failures move on to the next candidate; if
// none decodes, the error matches ErrModuleNotFound and carries the last
// decode failure.
func (l *Loader) Load(name string) (*Resolved, error) {
	prefix, ok := ModulePath(name)
	if !ok {
		return nil, notFound("load", name)
	}

	var lastErr error
	for _, c := range l.order {
		p := prefix + c.Suffix
		if !l.isFile(p) {
			continue
		}
		data, err := l.a.ReadFile(p)
		if err != nil {
			return nil, &Error{Op: "read", Module: name, Path: p, Err: err}
		}

		dec := l.source
		if c.Precompiled {
			dec = l.bytecode
		}
		prog, err := dec.Decode(data, p)
		if err != nil {
			l.log().Debug("decode failed, trying next candidate",
				"module", name, "path", p, "precompiled", c.Precompiled, "error", err)
			lastErr = &Error{Op: "decode", Module: name, Path: p, Err: err}
			continue
		}

		l.log().Debug("module loaded", "module", name, "path", p, "package", c.Package)
		return &Resolved{
			Code:      prog,
			IsPackage: c.Package,
			Path:      p,
			Digest:    digest.FromBytes(data),
		}, nil
	}

	if lastErr != nil {
		return nil, &Error{Op: "load", Module: name, Err: fmt.Errorf("%w: %w", ErrModuleNotFound, lastErr)}
	}
	l.log().Debug("module not in archive", "module", name, "archive", l.a.Path())
	return nil, l.absent("load", name, prefix)
}

// PrepareRecord computes the metadata recorded for a module before its
// body runs. File joins the archive path and the internal path with the
// platform separator. A package searches its own directory inside the
// archive and is its own package; a leaf module belongs to its parent.
func (l *Loader) PrepareRecord(name string, isPackage bool, internalPath string) Spec {
	spec := Spec{
		Name:      name,
		File:      l.syntheticPath(internalPath),
		IsPackage: isPackage,
	}
	if isPackage {
		spec.Package = name
		spec.SearchPath = []string{l.syntheticPath(path.Dir(internalPath))}
	} else {
		spec.Package = parentName(name)
	}
	return spec
}

// NewRecord returns a pending record for spec and resolved.
func (l *Loader) NewRecord(spec Spec, resolved *Resolved) *Record {
	rec := &Record{
		Spec:   spec,
		Path:   resolved.Path,
		Digest: resolved.Digest,
		Loader: l,
	}
	rec.SetState(StatePending)
	return rec
}

// Resolve loads name and prepares its record metadata: the first phase of
// the host protocol.
func (l *Loader) Resolve(name string) (*Resolved, Spec, error) {
	resolved, err := l.Load(name)
	if err != nil {
		return nil, Spec{}, err
	}
	return resolved, l.PrepareRecord(name, resolved.IsPackage, resolved.Path), nil
}

// Materialize executes resolved into rec: the second phase of the host
// protocol.
func (l *Loader) Materialize(ctx context.Context, thread *starlark.Thread, resolved *Resolved, rec *Record) error {
	return l.Execute(ctx, thread, resolved.Code, rec)
}

// Execute runs code with the record's namespace. The program sees the
// loader's predeclared names plus __name__, __file__, __package__,
// __path__ (None for leaf modules) and __loader__. On success the globals
// the body defines are frozen and stored in rec, and rec becomes ready.
//
// A failing body leaves rec failed and returns an *Error with Op "exec"
// wrapping the body's error. Removing the record from any registry is the
// host's job. Cancelling ctx cancels the thread.
func (l *Loader) Execute(ctx context.Context, thread *starlark.Thread, code *starlark.Program, rec *Record) error {
	if err := ctx.Err(); err != nil {
		rec.SetState(StateFailed)
		return &Error{Op: "exec", Module: rec.Name, Path: rec.Path, Err: err}
	}
	if thread == nil {
		thread = &starlark.Thread{Name: rec.Name}
	}
	stop := context.AfterFunc(ctx, func() {
		thread.Cancel(context.Cause(ctx).Error())
	})
	defer stop()

	globals, err := code.Init(thread, l.moduleEnv(rec))
	if err != nil {
		rec.SetState(StateFailed)
		l.log().Debug("module body failed", "module", rec.Name, "path", rec.Path, "error", err)
		return &Error{Op: "exec", Module: rec.Name, Path: rec.Path, Err: err}
	}
	globals.Freeze()
	rec.Globals = globals
	rec.SetState(StateReady)
	return nil
}

func (l *Loader) moduleEnv(rec *Record) starlark.StringDict {
	env := make(starlark.StringDict, len(l.predeclared)+len(ModuleNames))
	for k, v := range l.predeclared {
		env[k] = v
	}
	for _, name := range ModuleNames {
		if name == "__loader__" {
			continue
		}
		v, _ := rec.Attr(name)
		env[name] = v
	}
	env["__loader__"] = &loaderValue{l: l}
	return env
}

// GetData returns the bytes of the entry at p. The path may be internal
// or the synthetic form prefixed with the archive path, as found in
// __file__ and __path__.
func (l *Loader) GetData(p string) ([]byte, error) {
	key := l.internalPath(p)
	if !l.isFile(key) {
		return nil, &fs.PathError{Op: "getdata", Path: key, Err: ErrDataNotFound}
	}
	return l.a.ReadFile(key)
}

// IsPackage reports whether name is a package.
func (l *Loader) IsPackage(name string) (bool, error) {
	isPackage, _, err := l.Locate(name)
	return isPackage, err
}

// Source returns the source text of name. It reports false when the
// module exists only in precompiled form.
func (l *Loader) Source(name string) (string, bool, error) {
	isPackage, _, err := l.Locate(name)
	if err != nil {
		return "", false, err
	}
	prefix, _ := ModulePath(name)
	p := prefix + l.sourceSuffix
	if isPackage {
		p = prefix + "/" + PackageInit + l.sourceSuffix
	}
	if !l.isFile(p) {
		return "", false, nil
	}
	data, err := l.a.ReadFile(p)
	if err != nil {
		return "", false, &Error{Op: "read", Module: name, Path: p, Err: err}
	}
	return string(data), true, nil
}

// Filename returns the __file__ value name would get, which depends on
// the candidate that actually decodes.
func (l *Loader) Filename(name string) (string, error) {
	resolved, err := l.Load(name)
	if err != nil {
		return "", err
	}
	return l.syntheticPath(resolved.Path), nil
}

// ResourceReader returns the resource reader for package name. It reports
// false when name is not a package in this archive.
func (l *Loader) ResourceReader(name string) (*ResourceReader, bool) {
	isPackage, err := l.IsPackage(name)
	if err != nil || !isPackage {
		return nil, false
	}
	return NewResourceReader(l, name), true
}

// isFile reports whether the index holds a non-directory entry at p.
func (l *Loader) isFile(p string) bool {
	e, ok := l.a.Entry(p)
	return ok && !e.Dir
}

// isDir reports whether p is an explicit directory entry or a prefix of
// other entries.
func (l *Loader) isDir(p string) bool {
	if e, ok := l.a.Entry(p); ok && e.Dir {
		return true
	}
	for range l.a.EntriesWithPrefix(p + "/") {
		return true
	}
	return false
}

// syntheticPath joins the archive path and an internal path.
func (l *Loader) syntheticPath(internalPath string) string {
	return l.a.Path() + string(os.PathSeparator) + filepath.FromSlash(internalPath)
}

// internalPath strips a leading archive path and normalizes separators.
func (l *Loader) internalPath(p string) string {
	for _, prefix := range []string{l.a.Path() + string(os.PathSeparator), l.a.Path() + "/"} {
		if rest, ok := strings.CutPrefix(p, prefix); ok {
			p = rest
			break
		}
	}
	return archive.NormalizePath(p)
}

// readString is used by the __loader__ builtins.
func (l *Loader) readString(p string) (string, error) {
	data, err := l.GetData(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
