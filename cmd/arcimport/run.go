package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *cli) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run ARCHIVE MODULE",
		Short: "Import a module and print its globals",
		Long: `Import MODULE from ARCHIVE, running its body and the bodies of the
modules it loads, then print each global the module defines.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			imp, err := c.openImporter(cmd, args[0])
			if err != nil {
				return err
			}
			defer imp.Close()

			rec, err := imp.Import(cmd.Context(), args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, name := range rec.Globals.Keys() {
				fmt.Fprintf(out, "%s = %s\n", name, rec.Globals[name])
			}
			return nil
		},
	}
}
