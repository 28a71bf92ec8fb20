// Package testutil builds zip archives for tests.
package testutil

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/yeka/zip"
)

// Archive member compression methods.
const (
	MethodStore   = zip.Store
	MethodDeflate = zip.Deflate
	MethodZstd    = zstd.ZipMethodWinZip
)

// zip compressors are registered process-wide and may only be registered once.
var zstdOnce sync.Once

// ZipOption configures BuildZip.
type ZipOption func(*zipConfig)

type zipConfig struct {
	password   string
	encryption zip.EncryptionMethod
	method     uint16
	dirs       []string
	appended   []member
}

type member struct {
	name string
	data []byte
}

// WithPassword encrypts every member with AES-256 and the given password.
func WithPassword(password string) ZipOption {
	return func(c *zipConfig) {
		c.password = password
		c.encryption = zip.AES256Encryption
	}
}

// WithZipCrypto encrypts every member with legacy ZipCrypto.
func WithZipCrypto(password string) ZipOption {
	return func(c *zipConfig) {
		c.password = password
		c.encryption = zip.StandardEncryption
	}
}

// WithMethod sets the compression method for unencrypted members.
func WithMethod(method uint16) ZipOption {
	return func(c *zipConfig) {
		c.method = method
	}
}

// WithDirs adds explicit directory members (written with a trailing slash).
func WithDirs(dirs ...string) ZipOption {
	return func(c *zipConfig) {
		c.dirs = append(c.dirs, dirs...)
	}
}

// WithAppended writes an extra member after all others, even if files
// already holds name. Zip allows duplicate names; readers keep the last.
func WithAppended(name string, data []byte) ZipOption {
	return func(c *zipConfig) {
		c.appended = append(c.appended, member{name: name, data: data})
	}
}

// BuildZip returns the bytes of a zip archive containing files.
// Members are written in sorted path order.
func BuildZip(tb testing.TB, files map[string][]byte, opts ...ZipOption) []byte {
	tb.Helper()

	cfg := zipConfig{method: MethodDeflate}
	for _, opt := range opts {
		opt(&cfg)
	}

	var buf bytes.Buffer
	zstdOnce.Do(func() {
		zip.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor())
	})
	w := zip.NewWriter(&buf)

	for _, dir := range cfg.dirs {
		if _, err := w.Create(strings.TrimSuffix(dir, "/") + "/"); err != nil {
			tb.Fatalf("create dir %s: %v", dir, err)
		}
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)

	members := make([]member, 0, len(names)+len(cfg.appended))
	for _, name := range names {
		members = append(members, member{name: name, data: files[name]})
	}
	members = append(members, cfg.appended...)

	for _, m := range members {
		var (
			fw  io.Writer
			err error
		)
		if cfg.password != "" {
			fw, err = w.Encrypt(m.name, cfg.password, cfg.encryption)
		} else {
			fw, err = w.CreateHeader(&zip.FileHeader{Name: m.name, Method: cfg.method})
		}
		if err != nil {
			tb.Fatalf("create %s: %v", m.name, err)
		}
		if _, err := fw.Write(m.data); err != nil {
			tb.Fatalf("write %s: %v", m.name, err)
		}
	}
	if err := w.Close(); err != nil {
		tb.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// WriteZip writes a zip archive containing files into a temporary directory
// and returns its path.
func WriteZip(tb testing.TB, files map[string][]byte, opts ...ZipOption) string {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "modules.zip")
	if err := os.WriteFile(path, BuildZip(tb, files, opts...), 0o600); err != nil {
		tb.Fatalf("write zip: %v", err)
	}
	return path
}

// Files converts string contents to the byte map BuildZip expects.
func Files(contents map[string]string) map[string][]byte {
	files := make(map[string][]byte, len(contents))
	for name, data := range contents {
		files[name] = []byte(data)
	}
	return files
}
