package loader

import (
	"log/slog"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets a logger for the loader.
// By default, log output is discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithPredeclared adds names visible to every module, next to the module
// names bound by Execute.
func WithPredeclared(predeclared starlark.StringDict) Option {
	return func(l *Loader) {
		l.predeclared = predeclared
	}
}

// WithSuffixes sets the source and precompiled file suffixes
// (default ".star" and ".starc").
func WithSuffixes(source, compiled string) Option {
	return func(l *Loader) {
		l.sourceSuffix = source
		l.compiledSuffix = compiled
	}
}

// WithFileOptions sets the source dialect (default DefaultFileOptions).
func WithFileOptions(opts *syntax.FileOptions) Option {
	return func(l *Loader) {
		l.fileOptions = opts
	}
}

// WithDecoders replaces the decode strategies for precompiled and source
// candidates. A nil decoder keeps the default for that kind.
func WithDecoders(bytecode, source Decoder) Option {
	return func(l *Loader) {
		if bytecode != nil {
			l.bytecode = bytecode
		}
		if source != nil {
			l.source = source
		}
	}
}
