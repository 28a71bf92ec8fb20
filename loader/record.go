package loader

import (
	"sync/atomic"

	"github.com/opencontainers/go-digest"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// Resolved is the result of a successful Load. It is not cached: every
// Load reads and decodes again.
type Resolved struct {
	Code      *starlark.Program
	IsPackage bool
	Path      string        // internal path of the matched entry
	Digest    digest.Digest // sha256 of the matched entry bytes
}

// Spec is the metadata a host records for a module before executing it.
type Spec struct {
	Name       string
	File       string   // archive path + separator + internal path
	Package    string   // the module itself for packages, else its parent
	IsPackage  bool
	SearchPath []string // packages only
}

// State is the lifecycle state of a Record.
type State int32

const (
	// StatePending is a registered record whose body has not finished.
	StatePending State = iota
	// StateReady is a record whose body ran to completion.
	StateReady
	// StateFailed is a record whose body raised. It must not be reused.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Record is a module record: the metadata from Spec plus the module's
// globals once its body has run.
//
// Globals is written once by Execute and frozen; readers must check
// State first.
type Record struct {
	Spec
	Path    string
	Digest  digest.Digest
	Loader  *Loader
	Globals starlark.StringDict

	state atomic.Int32
}

// State returns the record's lifecycle state.
func (r *Record) State() State {
	return State(r.state.Load())
}

// SetState moves the record to s.
func (r *Record) SetState(s State) {
	r.state.Store(int32(s))
}

// Attr returns a module attribute: a global defined by the body, or one
// of the module names bound before it ran.
func (r *Record) Attr(name string) (starlark.Value, bool) {
	if v, ok := r.Globals[name]; ok {
		return v, true
	}
	switch name {
	case "__name__":
		return starlark.String(r.Name), true
	case "__file__":
		return starlark.String(r.File), true
	case "__package__":
		return starlark.String(r.Package), true
	case "__path__":
		return r.searchPathValue(), true
	}
	return nil, false
}

// Module returns the record as a Starlark module value, for binding a
// whole module under one name.
func (r *Record) Module() *starlarkstruct.Module {
	return &starlarkstruct.Module{Name: r.Name, Members: r.Globals}
}

func (r *Record) searchPathValue() starlark.Value {
	if !r.IsPackage {
		return starlark.None
	}
	elems := make([]starlark.Value, len(r.SearchPath))
	for i, p := range r.SearchPath {
		elems[i] = starlark.String(p)
	}
	list := starlark.NewList(elems)
	list.Freeze()
	return list
}
