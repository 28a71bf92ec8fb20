package registry

import "log/slog"

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets a logger for the registry.
// By default, log output is discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithFinders sets the finders asked, in order, to resolve a module.
func WithFinders(finders ...Finder) Option {
	return func(r *Registry) {
		r.finders = append(r.finders, finders...)
	}
}

// WithPrint sets the handler for the Starlark print builtin.
// By default, output goes to standard error.
func WithPrint(fn func(msg string)) Option {
	return func(r *Registry) {
		r.print = fn
	}
}
