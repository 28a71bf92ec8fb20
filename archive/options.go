package archive

import "log/slog"

const (
	// DefaultMaxFileSize is the default maximum entry size (256MB).
	DefaultMaxFileSize = 256 << 20

	// DefaultMaxDecoderMemory is the default maximum zstd decoder memory (256MB).
	DefaultMaxDecoderMemory = 256 << 20
)

// Option configures an Archive.
type Option func(*Archive)

// WithPassword sets the password used to decrypt encrypted entries.
func WithPassword(password string) Option {
	return func(a *Archive) {
		a.password = password
	}
}

// WithLogger sets a logger for the archive.
// By default, log output is discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) {
		a.logger = logger
	}
}

// WithMaxFileSize limits the maximum per-entry size (stored and uncompressed).
// Set limit to 0 to disable the limit.
func WithMaxFileSize(limit uint64) Option {
	return func(a *Archive) {
		a.maxFileSize = limit
	}
}

// WithMaxDecoderMemory limits the maximum memory used by the zstd decoder.
// Set limit to 0 to disable the limit.
//
// zstd decoders are pooled per process, not per archive: the decoder
// settings of the first archive opened apply to all archives opened later.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(a *Archive) {
		a.maxDecoderMemory = limit
	}
}

// WithDecoderLowmem sets whether the zstd decoder should use low-memory mode (default: false).
// Like WithMaxDecoderMemory, the setting is process-wide.
func WithDecoderLowmem(enabled bool) Option {
	return func(a *Archive) {
		a.decoderLowmem = enabled
	}
}

// WithVerifyCredential makes Open read the smallest encrypted entry so that a
// missing or wrong password fails construction instead of the first read.
func WithVerifyCredential(enabled bool) Option {
	return func(a *Archive) {
		a.verifyCredential = enabled
	}
}
