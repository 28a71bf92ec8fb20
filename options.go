package arcimport

import (
	"log/slog"

	"go.starlark.net/starlark"

	"github.com/meigma/arcimport/archive"
	"github.com/meigma/arcimport/loader"
	"github.com/meigma/arcimport/registry"
)

// Option configures an Importer.
type Option func(*config)

type config struct {
	password         string
	verifyCredential bool
	maxFileSize      *uint64
	predeclared      starlark.StringDict
	sourceSuffix     string
	compiledSuffix   string
	print            func(string)
	finders          []registry.Finder
	logger           *slog.Logger
}

// WithPassword sets the password used to decrypt encrypted entries.
func WithPassword(password string) Option {
	return func(c *config) {
		c.password = password
	}
}

// WithLogger sets the logger used by the archive, loader and registry.
// By default, log output is discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithPredeclared adds names visible to every module.
func WithPredeclared(predeclared starlark.StringDict) Option {
	return func(c *config) {
		c.predeclared = predeclared
	}
}

// WithVerifyCredential makes Open fail on a missing or wrong password
// instead of the first read of an encrypted entry.
func WithVerifyCredential(enabled bool) Option {
	return func(c *config) {
		c.verifyCredential = enabled
	}
}

// WithMaxFileSize limits the size of a single archive entry.
// Set limit to 0 to disable the limit.
func WithMaxFileSize(limit uint64) Option {
	return func(c *config) {
		c.maxFileSize = &limit
	}
}

// WithSuffixes sets the source and precompiled module suffixes
// (default ".star" and ".starc").
func WithSuffixes(source, compiled string) Option {
	return func(c *config) {
		c.sourceSuffix = source
		c.compiledSuffix = compiled
	}
}

// WithPrint sets the handler for the Starlark print builtin.
func WithPrint(fn func(msg string)) Option {
	return func(c *config) {
		c.print = fn
	}
}

// WithFallbackFinders adds finders consulted after the archive for
// modules it does not contain.
func WithFallbackFinders(finders ...registry.Finder) Option {
	return func(c *config) {
		c.finders = append(c.finders, finders...)
	}
}

func (c *config) archiveOptions() []archive.Option {
	opts := []archive.Option{
		archive.WithPassword(c.password),
		archive.WithVerifyCredential(c.verifyCredential),
		archive.WithLogger(c.logger),
	}
	if c.maxFileSize != nil {
		opts = append(opts, archive.WithMaxFileSize(*c.maxFileSize))
	}
	return opts
}

func (c *config) loaderOptions() []loader.Option {
	opts := []loader.Option{
		loader.WithLogger(c.logger),
		loader.WithPredeclared(c.predeclared),
	}
	if c.sourceSuffix != "" || c.compiledSuffix != "" {
		src, compiled := c.sourceSuffix, c.compiledSuffix
		if src == "" {
			src = loader.DefaultSourceSuffix
		}
		if compiled == "" {
			compiled = loader.DefaultCompiledSuffix
		}
		opts = append(opts, loader.WithSuffixes(src, compiled))
	}
	return opts
}
