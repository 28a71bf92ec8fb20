package archive

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/meigma/arcimport/archive/internal/container"
)

// Sentinel errors re-exported from internal/container.
var (
	// ErrOpen is returned when the archive does not exist or is not a valid
	// container.
	ErrOpen = container.ErrOpen

	// ErrBadCredential is returned when an encrypted entry is read without a
	// password or with an incorrect one. Zip containers do not validate
	// passwords at open time, so this usually surfaces on the first read.
	ErrBadCredential = container.ErrBadCredential

	// ErrDecompression is returned when an entry cannot be decompressed.
	ErrDecompression = container.ErrDecompression

	// ErrSizeOverflow is returned when an entry exceeds the configured limits.
	ErrSizeOverflow = container.ErrSizeOverflow

	// ErrIsDir is returned when a directory entry is read as a file.
	ErrIsDir = container.ErrIsDir
)

// Sentinel errors specific to the archive package.
var (
	// ErrEntryNotFound is returned when a path is absent from the index.
	// It matches fs.ErrNotExist.
	ErrEntryNotFound = fmt.Errorf("archive: entry not found: %w", fs.ErrNotExist)

	// ErrClosed is returned when reading from a closed archive.
	ErrClosed = errors.New("archive: closed")
)
