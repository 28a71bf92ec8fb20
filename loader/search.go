package loader

import (
	"strings"
)

// Default file suffixes.
const (
	DefaultSourceSuffix   = ".star"
	DefaultCompiledSuffix = ".starc"
)

// PackageInit is the base name of the entry that marks a package.
const PackageInit = "__init__"

// SearchCandidate is one internal path form a module may take.
type SearchCandidate struct {
	Suffix      string // appended to the module path prefix
	Precompiled bool
	Package     bool
}

// SearchOrder returns the candidate list for the given suffixes.
// Earlier candidates win: a package shadows a leaf module of the same
// name, and within one kind precompiled form is preferred over source.
func SearchOrder(sourceSuffix, compiledSuffix string) []SearchCandidate {
	return []SearchCandidate{
		{Suffix: "/" + PackageInit + compiledSuffix, Precompiled: true, Package: true},
		{Suffix: "/" + PackageInit + sourceSuffix, Package: true},
		{Suffix: compiledSuffix, Precompiled: true},
		{Suffix: sourceSuffix},
	}
}

// ModulePath converts a dotted module name to its internal path prefix,
// "a.b.c" becoming "a/b/c". It reports false for names that cannot name
// an archive entry: empty names, empty components, and components
// containing a path separator.
func ModulePath(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	parts := strings.Split(name, ".")
	for _, part := range parts {
		if part == "" || strings.ContainsAny(part, `/\`) {
			return "", false
		}
	}
	return strings.Join(parts, "/"), true
}

// parentName returns the dotted name of the package containing name, or
// "" for a top-level module.
func parentName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return ""
}
