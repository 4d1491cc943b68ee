package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/utafrali/storefront/internal/app"
	"github.com/utafrali/storefront/internal/domain"
)

func (rt *runtime) newProductsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "products",
		Aliases: []string{"product"},
		Short:   "Browse the catalog",
	}
	cmd.AddCommand(rt.newProductsListCmd(), rt.newProductsShowCmd(), rt.newProductsSearchCmd())
	return cmd
}

func (rt *runtime) newProductsListCmd() *cobra.Command {
	var f domain.ProductFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				page, err := a.Store().ListProducts(ctx, f)
				if err != nil {
					return err
				}
				return rt.emit(cmd, page, func(w io.Writer) {
					printProducts(w, page.Products)
					m := page.Pagination
					fmt.Fprintf(w, "\nPage %d of %d (%d products)\n", m.Page, m.Pages, m.Total)
				})
			})
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.Search, "search", "", "Match name, description or brand")
	fl.StringVar(&f.Category, "category", "", "Category ID or name")
	fl.Float64Var(&f.MinPrice, "min-price", 0, "Minimum price")
	fl.Float64Var(&f.MaxPrice, "max-price", 0, "Maximum price")
	fl.StringVar(&f.Sort, "sort", "", "Sort by: price | name | rating | newest | popularity")
	fl.StringVar(&f.Order, "order", "", "Sort order: asc | desc")
	fl.BoolVar(&f.InStock, "in-stock", false, "Only products in stock")
	fl.IntVar(&f.Page, "page", 1, "Page number")
	fl.IntVar(&f.Limit, "limit", 10, "Products per page")
	return cmd
}

func (rt *runtime) newProductsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id-or-slug>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				p, err := a.Store().GetProduct(ctx, args[0])
				if err != nil {
					return err
				}
				inWishlist := a.Store().InWishlist(p.ID)
				return rt.emit(cmd, p, func(w io.Writer) {
					printProduct(w, *p)
					if inWishlist {
						fmt.Fprintln(w, "\n♥ In your wishlist")
					}
				})
			})
		},
	}
}

func (rt *runtime) newProductsSearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search products by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				products, err := a.Store().SearchProducts(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return rt.emit(cmd, products, func(w io.Writer) {
					if len(products) == 0 {
						fmt.Fprintf(w, "No products match %q.\n", args[0])
						return
					}
					printProducts(w, products)
				})
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum results")
	return cmd
}
