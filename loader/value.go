package loader

import (
	"fmt"

	"go.starlark.net/starlark"
)

// loaderValue exposes a Loader to module code as __loader__.
type loaderValue struct {
	l *Loader
}

var _ starlark.HasAttrs = (*loaderValue)(nil)

func (v *loaderValue) String() string {
	return fmt.Sprintf("<loader %q>", v.l.a.Path())
}
func (v *loaderValue) Type() string          { return "loader" }
func (v *loaderValue) Freeze()               {}
func (v *loaderValue) Truth() starlark.Bool  { return starlark.True }
func (v *loaderValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: loader") }

func (v *loaderValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "archive":
		return starlark.String(v.l.a.Path()), nil
	case "get_data":
		return starlark.NewBuiltin("get_data", v.getData), nil
	case "is_package":
		return starlark.NewBuiltin("is_package", v.isPackage), nil
	}
	return nil, nil
}

func (v *loaderValue) AttrNames() []string {
	return []string{"archive", "get_data", "is_package"}
}

// get_data(path) returns the text of an archive entry.
func (v *loaderValue) getData(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var p string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &p); err != nil {
		return nil, err
	}
	data, err := v.l.readString(p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return starlark.String(data), nil
}

// is_package(name) reports whether a module name is a package.
func (v *loaderValue) isPackage(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &name); err != nil {
		return nil, err
	}
	ok, err := v.l.IsPackage(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return starlark.Bool(ok), nil
}
