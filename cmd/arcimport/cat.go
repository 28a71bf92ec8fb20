package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

func (c *cli) catCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat ARCHIVE PATH",
		Short: "Print the content of an archive entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, closer, err := c.openLoader(args[0])
			if err != nil {
				return err
			}
			defer closer.Close()

			data, err := l.GetData(args[1])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func (c *cli) resourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resources ARCHIVE PACKAGE",
		Short: "List the files next to a package's __init__ entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, closer, err := c.openLoader(args[0])
			if err != nil {
				return err
			}
			defer closer.Close()

			rr, ok := l.ResourceReader(args[1])
			if !ok {
				return fmt.Errorf("%s is not a package in %s", args[1], args[0])
			}
			for _, name := range slices.Sorted(rr.Contents()) {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
