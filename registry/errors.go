package registry

import (
	"errors"

	"github.com/meigma/arcimport/loader"
)

var (
	// ErrImportCycle is returned when a module, directly or through other
	// modules, loads itself while its body is still running.
	ErrImportCycle = errors.New("registry: import cycle")

	// ErrModuleNotFound is returned when no finder has the module.
	ErrModuleNotFound = loader.ErrModuleNotFound
)
