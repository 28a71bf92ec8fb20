package container

import (
	"io"
	"math"

	"github.com/meigma/arcimport/archive/internal/index"
)

// ValidateForRead checks that an entry is safe to read.
// It validates:
//   - The entry is not a directory marker
//   - Stored and uncompressed sizes are within maxFileSize (if limit > 0)
//   - The uncompressed size fits in an int
func ValidateForRead(entry *index.Entry, maxFileSize uint64) error {
	if entry.Dir {
		return ErrIsDir
	}
	if maxFileSize > 0 {
		if entry.Size > maxFileSize || entry.CompressedSize > maxFileSize {
			return ErrSizeOverflow
		}
	}
	if entry.Size > uint64(math.MaxInt-1) {
		return ErrSizeOverflow
	}
	return nil
}

// readAllWithLimit reads up to maxSize bytes from r.
// Returns ErrSizeOverflow if more than maxSize bytes are available.
func readAllWithLimit(r io.Reader, maxSize uint64) ([]byte, error) {
	if maxSize > uint64(math.MaxInt-1) {
		return nil, ErrSizeOverflow
	}
	lr := &io.LimitedReader{R: r, N: int64(maxSize) + 1} //nolint:gosec // checked above
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) > maxSize {
		return nil, ErrSizeOverflow
	}
	return data, nil
}
