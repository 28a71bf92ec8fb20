package loader

import (
	"slices"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/meigma/arcimport/codec"
)

// Decoder turns entry bytes into an executable program.
// The label names the entry in compile diagnostics.
type Decoder interface {
	Decode(data []byte, label string) (*starlark.Program, error)
}

// BytecodeDecoder decodes precompiled entries written by codec.Encode.
type BytecodeDecoder struct{}

// Decode implements Decoder.
func (BytecodeDecoder) Decode(data []byte, _ string) (*starlark.Program, error) {
	return codec.Decode(data)
}

// SourceDecoder compiles source entries.
type SourceDecoder struct {
	// Options controls the accepted dialect. Nil means DefaultFileOptions.
	Options *syntax.FileOptions

	// IsPredeclared reports the names the program may reference without
	// defining them. Nil means ModuleNames only.
	IsPredeclared func(name string) bool
}

// Decode implements Decoder.
func (d SourceDecoder) Decode(data []byte, label string) (*starlark.Program, error) {
	opts := d.Options
	if opts == nil {
		opts = DefaultFileOptions()
	}
	isPredeclared := d.IsPredeclared
	if isPredeclared == nil {
		isPredeclared = Predeclared(nil)
	}
	_, prog, err := starlark.SourceProgramOptions(opts, label, data, isPredeclared)
	if err != nil {
		return nil, err
	}
	return prog, nil
}

// DefaultFileOptions returns the dialect used for module source: top-level
// control flow, while loops, sets, recursion and global reassignment are
// all allowed.
func DefaultFileOptions() *syntax.FileOptions {
	return &syntax.FileOptions{
		Set:             true,
		While:           true,
		TopLevelControl: true,
		GlobalReassign:  true,
		Recursion:       true,
	}
}

// ModuleNames are the names bound in every module's predeclared
// environment by Execute.
var ModuleNames = []string{"__name__", "__file__", "__package__", "__path__", "__loader__"}

// Predeclared returns a predicate accepting ModuleNames and the keys of
// extra. Precompiled programs must be compiled with the same predicate the
// loader uses.
func Predeclared(extra starlark.StringDict) func(string) bool {
	return func(name string) bool {
		if slices.Contains(ModuleNames, name) {
			return true
		}
		return extra.Has(name)
	}
}
