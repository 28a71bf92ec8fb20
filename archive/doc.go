// Package archive opens optionally password-protected zip archives and keeps
// an in-memory index of their entries.
//
// The index is the single source of truth for "does path X exist in the
// archive": it is built once when the archive is opened, is read-only
// afterwards, and answers every existence query without re-parsing the
// container. Entry content is decrypted and decompressed on read. Entries may
// be stored, deflated, or zstd-compressed.
//
// Open an archive and read an entry:
//
//	a, err := archive.Open("modules.zip", archive.WithPassword(pw))
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//	data, err := a.ReadFile("pkg/templates/index.html")
//
// The package implements fs.FS and related interfaces for stdlib
// compatibility.
package archive
