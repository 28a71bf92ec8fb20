package container

import "errors"

// Sentinel errors shared with the archive package.
var (
	// ErrOpen is returned when the container cannot be opened or parsed.
	ErrOpen = errors.New("archive: cannot open container")

	// ErrBadCredential is returned when an encrypted member is read without a
	// password or with the wrong one.
	ErrBadCredential = errors.New("archive: missing or incorrect password")

	// ErrDecompression is returned when a member cannot be decompressed or
	// fails its checksum.
	ErrDecompression = errors.New("archive: decompression failed")

	// ErrSizeOverflow is returned when a member exceeds the configured limits.
	ErrSizeOverflow = errors.New("archive: size overflow")

	// ErrIsDir is returned when a directory marker is read as a file.
	ErrIsDir = errors.New("archive: is a directory")
)
