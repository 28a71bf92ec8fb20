package arcimport

import (
	"github.com/meigma/arcimport/archive"
	"github.com/meigma/arcimport/codec"
	"github.com/meigma/arcimport/loader"
	"github.com/meigma/arcimport/registry"
)

// Errors re-exported from archive.
var (
	// ErrOpen is returned when the archive does not exist or is not a zip file.
	ErrOpen = archive.ErrOpen

	// ErrBadCredential is returned when an encrypted entry is read without
	// a password or with a wrong one.
	ErrBadCredential = archive.ErrBadCredential

	// ErrEntryNotFound is returned when a path is not in the archive index.
	ErrEntryNotFound = archive.ErrEntryNotFound
)

// Errors re-exported from loader.
var (
	// ErrModuleNotFound is returned when no candidate entry for a module
	// exists or decodes.
	ErrModuleNotFound = loader.ErrModuleNotFound

	// ErrNamespaceDir is returned for a directory without an __init__
	// entry. It matches ErrModuleNotFound.
	ErrNamespaceDir = loader.ErrNamespaceDir

	// ErrDataNotFound is returned by GetData for a missing path.
	ErrDataNotFound = loader.ErrDataNotFound

	// ErrResourceNotFound is returned when a package resource is missing.
	ErrResourceNotFound = loader.ErrResourceNotFound

	// ErrNoStandalonePath is returned by ResourcePath.
	ErrNoStandalonePath = loader.ErrNoStandalonePath
)

// Errors re-exported from codec and registry.
var (
	// ErrBadBytecode is returned when a precompiled entry cannot be decoded.
	ErrBadBytecode = codec.ErrBadBytecode

	// ErrImportCycle is returned when a module loads itself while running.
	ErrImportCycle = registry.ErrImportCycle
)
