package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (c *cli) lsCmd() *cobra.Command {
	var modules bool

	cmd := &cobra.Command{
		Use:   "ls ARCHIVE",
		Short: "List archive entries or modules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, closer, err := c.openLoader(args[0])
			if err != nil {
				return err
			}
			defer closer.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()

			if modules {
				fmt.Fprintln(w, "MODULE\tKIND\tPATH")
				for _, name := range moduleNames(l) {
					isPackage, p, err := l.Locate(name)
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", name, kind(isPackage), p)
				}
				return nil
			}

			fmt.Fprintln(w, "PATH\tSIZE\tSTORED\tMETHOD\tENCRYPTED")
			for e := range l.Archive().Entries() {
				p := e.Path
				if e.Dir {
					p += "/"
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%t\n", p, e.Size, e.CompressedSize, e.Method, e.Encrypted)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&modules, "modules", false, "list modules with their kind and matched entry")
	return cmd
}
