package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/meigma/arcimport/codec"
)

var labelStyle = lipgloss.NewStyle().Bold(true).Width(12)

func field(w io.Writer, label, value string) {
	fmt.Fprintln(w, labelStyle.Render(label)+value)
}

func (c *cli) inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect ARCHIVE MODULE",
		Short: "Show how a module resolves without running it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, closer, err := c.openLoader(args[0])
			if err != nil {
				return err
			}
			defer closer.Close()

			name := args[1]
			resolved, spec, err := l.Resolve(name)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			field(out, "module", spec.Name)
			field(out, "kind", kind(spec.IsPackage))
			field(out, "path", resolved.Path)
			field(out, "file", spec.File)
			field(out, "package", spec.Package)
			if spec.IsPackage {
				field(out, "search path", strings.Join(spec.SearchPath, ", "))
			}
			field(out, "digest", resolved.Digest.String())

			_, compiled := l.Suffixes()
			if strings.HasSuffix(resolved.Path, compiled) {
				data, err := l.GetData(resolved.Path)
				if err != nil {
					return err
				}
				if h, err := codec.ParseHeader(data); err == nil {
					field(out, "header", h.Revision.String())
				}
			}

			if src, ok, err := l.Source(name); err == nil && ok {
				field(out, "source", fmt.Sprintf("%d bytes", len(src)))
			}
			return nil
		},
	}
}
