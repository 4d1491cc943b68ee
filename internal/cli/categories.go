package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/utafrali/storefront/internal/app"
	"github.com/utafrali/storefront/internal/domain"
)

func (rt *runtime) newCategoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"category"},
		Short:   "Browse catalog categories",
	}
	cmd.AddCommand(rt.newCategoriesListCmd(), rt.newCategoriesShowCmd())
	return cmd
}

func (rt *runtime) newCategoriesListCmd() *cobra.Command {
	var f domain.CategoryFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				cats, err := a.Store().ListCategories(ctx, f)
				if err != nil {
					return err
				}
				return rt.emit(cmd, cats, func(w io.Writer) {
					if len(cats) == 0 {
						fmt.Fprintln(w, "No categories.")
						return
					}
					printCategories(w, cats)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&f.IncludeEmpty, "include-empty", false, "Include categories without products")
	cmd.Flags().BoolVar(&f.ParentOnly, "parent-only", false, "Only top-level categories, with their subcategories")
	return cmd
}

func (rt *runtime) newCategoriesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id-or-slug>",
		Short: "Show a category and its subcategories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				c, err := a.Store().GetCategory(ctx, args[0])
				if err != nil {
					return err
				}
				return rt.emit(cmd, c, func(w io.Writer) {
					fmt.Fprintf(w, "%s (%s)\n", c.Name, c.ID)
					if c.Description != "" {
						fmt.Fprintf(w, "  %s\n", c.Description)
					}
					fmt.Fprintf(w, "  products: %d\n", c.ProductCount)
					if len(c.Children) > 0 {
						fmt.Fprintln(w)
						printCategories(w, c.Children)
					}
				})
			})
		},
	}
}

func printCategories(w io.Writer, cats []domain.Category) {
	table(w, "ID\tNAME\tPRODUCTS", func(tw *tabwriter.Writer) {
		for _, c := range cats {
			fmt.Fprintf(tw, "%s\t%s\t%d\n", c.ID, c.Name, c.ProductCount)
			for _, child := range c.Children {
				fmt.Fprintf(tw, "%s\t  %s\t%d\n", child.ID, child.Name, child.ProductCount)
			}
		}
	})
}
