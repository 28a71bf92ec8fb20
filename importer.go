package arcimport

import (
	"context"
	"fmt"

	"github.com/meigma/arcimport/archive"
	"github.com/meigma/arcimport/loader"
	"github.com/meigma/arcimport/registry"
)

// Importer imports modules from one archive.
type Importer struct {
	a   *archive.Archive
	l   *loader.Loader
	reg *registry.Registry
}

// Open opens the archive at path and prepares a loader and a registry over
// it. The archive is closed by Close.
func Open(path string, opts ...Option) (*Importer, error) {
	var cfg config
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	a, err := archive.Open(path, cfg.archiveOptions()...)
	if err != nil {
		return nil, err
	}
	return newImporter(a, &cfg), nil
}

// NewFromArchive builds an Importer over an already opened archive. Close
// closes a. Options that configure the archive itself are ignored.
func NewFromArchive(a *archive.Archive, opts ...Option) *Importer {
	var cfg config
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	return newImporter(a, &cfg)
}

func newImporter(a *archive.Archive, cfg *config) *Importer {
	l := loader.New(a, cfg.loaderOptions()...)
	finders := append([]registry.Finder{l}, cfg.finders...)
	reg := registry.New(
		registry.WithLogger(cfg.logger),
		registry.WithFinders(finders...),
		registry.WithPrint(cfg.print),
	)
	return &Importer{a: a, l: l, reg: reg}
}

// Import returns the module record for name, running the module body on
// first import.
func (imp *Importer) Import(ctx context.Context, name string) (*loader.Record, error) {
	return imp.reg.Import(ctx, name)
}

// Archive returns the opened archive.
func (imp *Importer) Archive() *archive.Archive {
	return imp.a
}

// Loader returns the archive's module loader.
func (imp *Importer) Loader() *loader.Loader {
	return imp.l
}

// Registry returns the registry holding imported modules.
func (imp *Importer) Registry() *registry.Registry {
	return imp.reg
}

// Close closes the archive. Imported modules stay usable; new imports
// that need to read the archive fail.
func (imp *Importer) Close() error {
	if err := imp.a.Close(); err != nil {
		return fmt.Errorf("arcimport: %w", err)
	}
	return nil
}
