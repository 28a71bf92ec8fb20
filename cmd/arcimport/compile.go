package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.starlark.net/starlark"

	"github.com/meigma/arcimport/codec"
	"github.com/meigma/arcimport/loader"
)

func (c *cli) compileCmd() *cobra.Command {
	var (
		legacy      bool
		label       string
		predeclared []string
	)

	cmd := &cobra.Command{
		Use:   "compile SOURCE OUTPUT",
		Short: "Write the precompiled form of one source file",
		Long: `Compile SOURCE and write it to OUTPUT behind a precompiled-module
header. Add OUTPUT to an archive next to the source to have it preferred
at import time.

Names the host predeclares must be listed with --predeclared, since a
precompiled program cannot refer to names unknown at compile time.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if label == "" {
				label = filepath.Base(args[0])
			}

			extra := make(starlark.StringDict, len(predeclared))
			for _, name := range predeclared {
				extra[name] = starlark.None
			}
			dec := loader.SourceDecoder{IsPredeclared: loader.Predeclared(extra)}
			prog, err := dec.Decode(src, label)
			if err != nil {
				return err
			}

			rev := codec.Current
			if legacy {
				rev = codec.Legacy
			}
			if err := writeCompiled(args[1], prog, rev); err != nil {
				return err
			}
			c.logger.Info("compiled", "source", args[0], "output", args[1], "header", rev)
			return nil
		},
	}
	cmd.Flags().BoolVar(&legacy, "legacy-header", false, "write the 8-byte header instead of the 12-byte one")
	cmd.Flags().StringVar(&label, "label", "", "file name used in error messages (default: base name of SOURCE)")
	cmd.Flags().StringSliceVar(&predeclared, "predeclared", nil, "names the host predeclares")
	return cmd
}

func writeCompiled(path string, prog *starlark.Program, rev codec.Revision) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(f)
	if err := codec.Encode(w, prog, rev); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return w.Flush()
}
