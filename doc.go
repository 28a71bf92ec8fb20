// Package arcimport imports Starlark modules stored in a zip archive,
// optionally password protected, as if they were ordinary modules.
//
// An [Importer] ties together the three layers of the module:
//   - [archive]: the opened container and its in-memory entry index
//   - [loader]: module resolution, decoding and execution
//   - [registry]: the imported modules and the register/execute/roll back protocol
//
// # Quick Start
//
//	imp, err := arcimport.Open("modules.zip", arcimport.WithPassword("s3cret"))
//	if err != nil {
//	    return err
//	}
//	defer imp.Close()
//
//	rec, err := imp.Import(ctx, "app.config")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(rec.Globals["VERSION"])
//
// # Archive layout
//
// A module "a.b" is found, in order of preference, as a/b/__init__.starc,
// a/b/__init__.star, a/b.starc or a/b.star. Entries ending in .starc hold
// programs precompiled with [codec.Encode]; when one cannot be decoded the
// next candidate is tried.
//
// Non-code files next to a package's __init__ entry are reachable through
// [loader.ResourceReader]:
//
//	rr, ok := imp.Loader().ResourceReader("app")
//	if ok {
//	    tmpl, err := template.ParseFS(must(rr.FS()), "templates/*.html")
//	}
package arcimport
