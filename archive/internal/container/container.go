// Package container reads members of password-protected zip archives.
//
// The container is the only code that understands the zip format. It turns
// the central directory into index entries once, and reads members by the
// ordinal recorded in those entries.
package container

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/yeka/zip"

	"github.com/meigma/arcimport/archive/internal/index"
)

// Container provides read access to zip members.
type Container struct {
	files       []*zip.File
	closer      io.Closer
	password    string
	maxFileSize uint64
}

// Option configures a Container.
type Option func(*config)

type config struct {
	password         string
	maxFileSize      uint64
	maxDecoderMemory uint64
	decoderLowmem    bool
}

// WithPassword sets the password applied to encrypted members.
func WithPassword(password string) Option {
	return func(c *config) {
		c.password = password
	}
}

// WithMaxFileSize limits the per-member size (stored and uncompressed).
// Set limit to 0 to disable the limit.
func WithMaxFileSize(limit uint64) Option {
	return func(c *config) {
		c.maxFileSize = limit
	}
}

// WithMaxDecoderMemory limits the maximum memory used by the zstd decoder.
// Decoders are shared by every container in the process; only the settings
// of the first container opened take effect.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(c *config) {
		c.maxDecoderMemory = limit
	}
}

// WithDecoderLowmem sets whether the zstd decoder should use low-memory mode.
// Like WithMaxDecoderMemory, it is process-wide and first-wins.
func WithDecoderLowmem(enabled bool) Option {
	return func(c *config) {
		c.decoderLowmem = enabled
	}
}

// OpenFile opens the zip archive at path.
func OpenFile(path string, opts ...Option) (*Container, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	c := newContainer(&rc.Reader, opts)
	c.closer = rc
	return c, nil
}

// New reads a zip archive from r.
func New(r io.ReaderAt, size int64, opts ...Option) (*Container, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	return newContainer(zr, opts), nil
}

func newContainer(zr *zip.Reader, opts []Option) *Container {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	registerZstd(cfg.maxDecoderMemory, cfg.decoderLowmem)

	// Passwords are applied once so concurrent reads never mutate members.
	if cfg.password != "" {
		for _, f := range zr.File {
			if f.IsEncrypted() {
				f.SetPassword(cfg.password)
			}
		}
	}

	return &Container{
		files:       zr.File,
		password:    cfg.password,
		maxFileSize: cfg.maxFileSize,
	}
}

var (
	zstdOnce sync.Once
	zstdPool *DecompressPool
)

// registerZstd installs the pooled zstd decompressor for both zip method ids.
// The zip package keeps decompressors process-wide and panics on a second
// registration, so the decoder settings of the first container opened in a
// process apply to every container.
func registerZstd(maxDecoderMemory uint64, lowmem bool) {
	zstdOnce.Do(func() {
		zstdPool = NewDecompressPool(maxDecoderMemory, lowmem)
		zip.RegisterDecompressor(zstd.ZipMethodWinZip, zstdPool.Decompressor())
		zip.RegisterDecompressor(zstd.ZipMethodPKWare, zstdPool.Decompressor())
	})
}

// Entries enumerates every member as an index entry.
func (c *Container) Entries() []index.Entry {
	entries := make([]index.Entry, 0, len(c.files))
	for i, f := range c.files {
		name := f.Name
		dir := strings.HasSuffix(name, "/")
		entries = append(entries, index.Entry{
			Path:           strings.TrimSuffix(name, "/"),
			Ordinal:        i,
			Size:           f.UncompressedSize64,
			CompressedSize: f.CompressedSize64,
			Method:         f.Method,
			CRC32:          f.CRC32,
			Encrypted:      f.IsEncrypted(),
			Dir:            dir,
			ModTime:        f.ModTime(),
		})
	}
	return entries
}

// Read returns the uncompressed content of the member described by entry.
func (c *Container) Read(entry *index.Entry) ([]byte, error) {
	if entry.Ordinal < 0 || entry.Ordinal >= len(c.files) {
		return nil, os.ErrNotExist
	}
	if err := ValidateForRead(entry, c.maxFileSize); err != nil {
		return nil, err
	}
	f := c.files[entry.Ordinal]
	if f.IsEncrypted() && c.password == "" {
		return nil, fmt.Errorf("%w: password required", ErrBadCredential)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, c.mapError(entry, err)
	}
	defer rc.Close()

	data, err := readAllWithLimit(rc, entry.Size)
	if err != nil {
		return nil, c.mapError(entry, err)
	}
	return data, nil
}

// Close releases the underlying file, if any.
func (c *Container) Close() error {
	if c.closer == nil {
		return nil
	}
	err := c.closer.Close()
	c.closer = nil
	return err
}

// mapError converts zip errors to the container's sentinel errors.
//
// Zip encryption schemes detect a wrong password at different points: AES
// members fail verification on open, ZipCrypto members usually surface as a
// checksum or inflate failure at the end of the stream. Every read failure on
// an encrypted member is therefore reported as a credential problem.
func (c *Container) mapError(entry *index.Entry, err error) error {
	switch {
	case errors.Is(err, ErrSizeOverflow):
		return err
	case errors.Is(err, zip.ErrPassword),
		errors.Is(err, zip.ErrDecryption),
		errors.Is(err, zip.ErrAuthentication):
		return fmt.Errorf("%w: %v", ErrBadCredential, err)
	case entry.Encrypted:
		return fmt.Errorf("%w: %v", ErrBadCredential, err)
	case errors.Is(err, zip.ErrAlgorithm):
		return fmt.Errorf("%w: unsupported method %d", ErrDecompression, entry.Method)
	default:
		return fmt.Errorf("%w: %v", ErrDecompression, err)
	}
}
