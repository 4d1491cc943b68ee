package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/utafrali/storefront/internal/app"
)

func (rt *runtime) newWishlistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wishlist",
		Short: "View and change your wishlist",
	}
	cmd.AddCommand(rt.newWishlistShowCmd(), rt.newWishlistToggleCmd())
	return cmd
}

func (rt *runtime) newWishlistShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "List wishlisted products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				s := a.Store()
				if err := requireSession(s, "see your wishlist"); err != nil {
					return err
				}
				if err := s.LoadError(); err != nil {
					return err
				}
				products := s.Wishlist()
				return rt.emit(cmd, products, func(w io.Writer) {
					if len(products) == 0 {
						fmt.Fprintln(w, "Your wishlist is empty.")
						return
					}
					printProducts(w, products)
				})
			})
		},
	}
}

func (rt *runtime) newWishlistToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <product-id>",
		Short: "Add a product to the wishlist, or remove it if already there",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				added, err := a.Store().ToggleWishlist(ctx, args[0])
				if err != nil {
					return err
				}
				result := map[string]any{"productId": args[0], "inWishlist": added}
				return rt.emit(cmd, result, func(w io.Writer) {
					if added {
						fmt.Fprintf(w, "Added %s to your wishlist.\n", args[0])
					} else {
						fmt.Fprintf(w, "Removed %s from your wishlist.\n", args[0])
					}
				})
			})
		},
	}
}
