package archive

import (
	"path/filepath"
	"strings"
)

// NormalizePath converts a caller-provided path to the index form.
//
// It performs the following transformations:
//   - Converts platform separators to "/": `pkg\data.txt` → "pkg/data.txt" on Windows
//   - Strips leading slashes: "/pkg/data.txt" → "pkg/data.txt"
//   - Strips trailing slashes: "pkg/sub/" → "pkg/sub"
//   - Collapses consecutive slashes: "pkg//sub" → "pkg/sub"
//   - Converts empty string to root: "" → "."
//
// Paths containing "." or ".." elements are preserved and rejected later by
// fs.ValidPath.
func NormalizePath(p string) string {
	p = strings.Trim(filepath.ToSlash(p), "/")
	if p == "" {
		return "."
	}

	parts := strings.Split(p, "/")
	result := parts[:0]
	for _, part := range parts {
		if part != "" {
			result = append(result, part)
		}
	}
	if len(result) == 0 {
		return "."
	}
	return strings.Join(result, "/")
}

// base returns the last element of a slash-separated path.
func base(path string) string {
	if path == "" || path == "." {
		return "."
	}
	path = strings.TrimSuffix(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// dirPrefix converts a path to its directory prefix form.
// For ".", returns "" (empty prefix matches all).
func dirPrefix(name string) string {
	if name == "." || name == "" {
		return ""
	}
	return name + "/"
}

// Child extracts the immediate child name of path below prefix and reports
// whether the child is a subdirectory (has more path components).
// The result is undefined if path does not start with prefix.
func Child(path, prefix string) (name string, isSubDir bool) {
	rel := strings.TrimPrefix(path, prefix)
	if idx := strings.Index(rel, "/"); idx >= 0 {
		return rel[:idx], true
	}
	return rel, false
}
