package cli

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/utafrali/storefront/internal/app"
	"github.com/utafrali/storefront/pkg/health"
)

func (rt *runtime) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the API and local dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.runDetached(cmd, args, func(ctx context.Context, a *app.App) error {
				checks := a.Health().Check(ctx)
				overall := health.Overall(checks)
				res := health.Response{Status: overall, Checks: checks}
				if err := rt.emit(cmd, res, func(w io.Writer) {
					table(w, "CHECK\tSTATUS\tTOOK\tERROR", func(tw *tabwriter.Writer) {
						for _, name := range slices.Sorted(maps.Keys(checks)) {
							c := checks[name]
							fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, c.Status, c.Duration, c.Error)
						}
					})
					fmt.Fprintf(w, "\nOverall: %s\n", overall)
				}); err != nil {
					return err
				}
				if overall == health.StatusDown {
					return exitError(exitUnavailable, "storefront is unavailable")
				}
				return nil
			})
		},
	}
}
