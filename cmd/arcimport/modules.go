package main

import (
	"path"
	"slices"
	"strings"

	"github.com/meigma/arcimport/loader"
)

// moduleNames returns the dotted names of every module the archive holds,
// derived from entry paths, sorted.
func moduleNames(l *loader.Loader) []string {
	source, compiled := l.Suffixes()
	seen := make(map[string]struct{})
	for e := range l.Archive().Entries() {
		if e.Dir {
			continue
		}
		var stem string
		switch {
		case strings.HasSuffix(e.Path, compiled):
			stem = strings.TrimSuffix(e.Path, compiled)
		case strings.HasSuffix(e.Path, source):
			stem = strings.TrimSuffix(e.Path, source)
		default:
			continue
		}
		if path.Base(stem) == loader.PackageInit {
			stem = path.Dir(stem)
			if stem == "." {
				continue
			}
		}
		name := strings.ReplaceAll(stem, "/", ".")
		if _, ok := loader.ModulePath(name); !ok {
			continue
		}
		seen[name] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func kind(isPackage bool) string {
	if isPackage {
		return "package"
	}
	return "module"
}
