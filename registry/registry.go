// Package registry keeps the modules a host has imported and runs the
// import protocol: find, register pending, execute, and either mark ready
// or roll back.
//
// A failed import never leaves a record behind: Get only returns modules
// whose body ran to completion, and the pending record of a failing body
// is removed before Import returns. A retried import runs the body again.
//
// Starlark load statements inside modules go through the same registry,
// so load("pkg.util", "helper") imports pkg.util on first use.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"go.starlark.net/starlark"
	"golang.org/x/sync/singleflight"

	"github.com/meigma/arcimport/loader"
)

// Finder resolves and executes modules. *loader.Loader implements it.
type Finder interface {
	Resolve(name string) (*loader.Resolved, loader.Spec, error)
	NewRecord(spec loader.Spec, resolved *loader.Resolved) *loader.Record
	Materialize(ctx context.Context, thread *starlark.Thread, resolved *loader.Resolved, rec *loader.Record) error
}

var _ Finder = (*loader.Loader)(nil)

// Thread-local keys carried by threads the registry creates.
const (
	stackKey   = "arcimport.stack"
	contextKey = "arcimport.context"
	taskKey    = "arcimport.task"
)

// importTask is one chain of nested imports: a top-level Import and every
// load it triggers, all run one after another. waiting names the module the
// chain is blocked on while another chain executes it. Guarded by
// Registry.mu.
type importTask struct {
	waiting string
}

// Registry maps module names to module records.
//
// Concurrent imports of the same name share one execution. Imports that
// form a cycle fail with ErrImportCycle, both within one import chain and
// when two concurrent imports would each wait for a module the other is
// executing.
type Registry struct {
	mu       sync.RWMutex
	records  map[string]*loader.Record
	inflight map[string]*importTask

	finders []Finder
	group   singleflight.Group
	print   func(string)
	logger  *slog.Logger
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		records:  make(map[string]*loader.Record),
		inflight: make(map[string]*importTask),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(r)
	}
	return r
}

// log returns the logger, falling back to a discard logger if nil.
func (r *Registry) log() *slog.Logger {
	if r.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.logger
}

// Import returns the ready record for name, importing it first if needed.
//
// A caller waiting for a concurrent import of the same name returns early
// with the context's error if ctx ends first.
func (r *Registry) Import(ctx context.Context, name string) (*loader.Record, error) {
	return r.importModule(ctx, &importTask{}, nil, name)
}

// Get returns the record for name if its body has run to completion.
func (r *Registry) Get(name string) (*loader.Record, bool) {
	r.mu.RLock()
	rec, ok := r.records[name]
	r.mu.RUnlock()
	if !ok || rec.State() != loader.StateReady {
		return nil, false
	}
	return rec, true
}

// Remove forgets name. A later Import runs its body again.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	delete(r.records, name)
	r.mu.Unlock()
}

// Names returns the names of ready modules in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.records))
	for name, rec := range r.records {
		if rec.State() == loader.StateReady {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Thread returns a thread whose load statements import through r.
func (r *Registry) Thread(ctx context.Context, name string) *starlark.Thread {
	return r.newThread(ctx, name, &importTask{}, nil)
}

// importModule imports name on behalf of task, whose running module bodies
// are stack, outermost first.
func (r *Registry) importModule(ctx context.Context, task *importTask, stack []string, name string) (*loader.Record, error) {
	if rec, ok := r.Get(name); ok {
		return rec, nil
	}
	if slices.Contains(stack, name) {
		return nil, fmt.Errorf("%w: %s", ErrImportCycle, strings.Join(append(slices.Clone(stack), name), " -> "))
	}

	owner, err := r.claim(task, stack, name)
	if err != nil {
		return nil, err
	}
	defer r.release(task, owner, name)

	ch := r.group.DoChan(name, func() (any, error) {
		// Another caller may have finished between Get and DoChan.
		if rec, ok := r.Get(name); ok {
			return rec, nil
		}
		return r.execute(ctx, task, append(slices.Clone(stack), name), name)
	})

	select {
	case res := <-ch:
		if res.Shared {
			r.log().Debug("import shared with concurrent caller", "module", name)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		rec, _ := res.Val.(*loader.Record) //nolint:errcheck // always a record when err is nil
		return rec, nil
	case <-ctx.Done():
		return nil, &loader.Error{Op: "import", Module: name, Err: context.Cause(ctx)}
	}
}

// claim records task as the executor of name, or as waiting on the task
// that already executes it. Waiting is refused with ErrImportCycle when the
// executing task is itself, directly or through other tasks, waiting on
// task: neither could ever finish. It returns the task found executing
// name, or nil if task claimed it.
func (r *Registry) claim(task *importTask, stack []string, name string) (*importTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, busy := r.inflight[name]
	if !busy {
		r.inflight[name] = task
		return nil, nil
	}
	for o, hops := owner, 0; o != nil && hops <= len(r.inflight); hops++ {
		if o == task {
			return nil, fmt.Errorf("%w: %s -> %s (%s is executing in a concurrent import that waits on this one)",
				ErrImportCycle, strings.Join(stack, " -> "), name, name)
		}
		if o.waiting == "" {
			break
		}
		o = r.inflight[o.waiting]
	}
	task.waiting = name
	return owner, nil
}

// release undoes claim.
func (r *Registry) release(task, owner *importTask, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner != nil {
		task.waiting = ""
		return
	}
	if r.inflight[name] == task {
		delete(r.inflight, name)
	}
}

// execute resolves name, registers a pending record and runs its body.
// The record is removed on every exit that does not end in success.
func (r *Registry) execute(ctx context.Context, task *importTask, stack []string, name string) (_ *loader.Record, err error) {
	finder, resolved, spec, err := r.resolve(name)
	if err != nil {
		return nil, err
	}

	rec := finder.NewRecord(spec, resolved)
	r.mu.Lock()
	r.records[name] = rec
	r.mu.Unlock()

	defer func() {
		if err == nil {
			return
		}
		rec.SetState(loader.StateFailed)
		r.mu.Lock()
		if r.records[name] == rec {
			delete(r.records, name)
		}
		r.mu.Unlock()
		r.log().Warn("module import failed", "module", name, "file", spec.File, "error", err)
	}()

	thread := r.newThread(ctx, name, task, stack)
	if err = finder.Materialize(ctx, thread, resolved, rec); err != nil {
		return nil, err
	}
	if rec.State() != loader.StateReady {
		return nil, fmt.Errorf("registry: module %s not ready after execution", name)
	}

	r.log().Info("module imported", "module", name, "file", spec.File, "digest", resolved.Digest)
	return rec, nil
}

// resolve asks each finder in turn. A not-found answer moves on to the
// next finder; any other error stops the search.
func (r *Registry) resolve(name string) (Finder, *loader.Resolved, loader.Spec, error) {
	var notFound error
	for _, f := range r.finders {
		resolved, spec, err := f.Resolve(name)
		if err == nil {
			return f, resolved, spec, nil
		}
		if !errors.Is(err, loader.ErrModuleNotFound) {
			return nil, nil, loader.Spec{}, err
		}
		if notFound == nil {
			notFound = err
		}
	}
	if notFound == nil {
		notFound = &loader.Error{Op: "import", Module: name, Err: loader.ErrModuleNotFound}
	}
	return nil, nil, loader.Spec{}, notFound
}

func (r *Registry) newThread(ctx context.Context, name string, task *importTask, stack []string) *starlark.Thread {
	thread := &starlark.Thread{
		Name: name,
		Load: r.load,
	}
	if r.print != nil {
		printFn := r.print
		thread.Print = func(_ *starlark.Thread, msg string) { printFn(msg) }
	}
	thread.SetLocal(stackKey, stack)
	thread.SetLocal(contextKey, ctx)
	thread.SetLocal(taskKey, task)
	return thread
}

// load implements starlark.Thread.Load.
func (r *Registry) load(thread *starlark.Thread, module string) (starlark.StringDict, error) {
	stack, _ := thread.Local(stackKey).([]string) //nolint:errcheck // nil stack is valid
	ctx, ok := thread.Local(contextKey).(context.Context)
	if !ok {
		ctx = context.Background()
	}
	task, ok := thread.Local(taskKey).(*importTask)
	if !ok {
		task = &importTask{}
	}
	rec, err := r.importModule(ctx, task, stack, module)
	if err != nil {
		return nil, err
	}
	return rec.Globals, nil
}
