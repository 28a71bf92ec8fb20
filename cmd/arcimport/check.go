package main

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

func (c *cli) checkCmd() *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "check ARCHIVE",
		Short: "Decode every module in an archive and report failures",
		Long: `Load every module found in ARCHIVE without running it. A module fails
the check when none of its candidate entries decodes. All failures are
reported, not only the first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, closer, err := c.openLoader(args[0])
			if err != nil {
				return err
			}
			defer closer.Close()

			names := moduleNames(l)
			results := make([]string, len(names))

			var (
				mu   sync.Mutex
				merr *multierror.Error
			)
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(max(workers, 1))
			for i, name := range names {
				g.Go(func() error {
					if err := ctx.Err(); err != nil {
						return err
					}
					resolved, err := l.Load(name)
					if err != nil {
						results[i] = failStyle.Render("FAIL") + " " + name
						mu.Lock()
						merr = multierror.Append(merr, err)
						mu.Unlock()
						return nil
					}
					results[i] = okStyle.Render("ok") + "   " + name + " " + resolved.Path
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, line := range results {
				fmt.Fprintln(out, line)
			}
			if err := merr.ErrorOrNil(); err != nil {
				return fmt.Errorf("%d of %d modules failed: %w", merr.Len(), len(names), err)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&workers, "workers", runtime.GOMAXPROCS(0), "modules decoded in parallel")
	return cmd
}
