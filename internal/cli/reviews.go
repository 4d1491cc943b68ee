package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/utafrali/storefront/internal/app"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/pagination"
)

func (rt *runtime) newReviewsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reviews",
		Aliases: []string{"review"},
		Short:   "Read and write product reviews",
	}
	cmd.AddCommand(rt.newReviewsListCmd(), rt.newReviewsAddCmd())
	return cmd
}

func (rt *runtime) newReviewsListCmd() *cobra.Command {
	var page pagination.Params
	cmd := &cobra.Command{
		Use:   "list <product>",
		Short: "List a product's reviews, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				p, err := a.Store().GetProduct(ctx, args[0])
				if err != nil {
					return err
				}
				rp, err := a.Store().ProductReviews(ctx, p.ID, page)
				if err != nil {
					return err
				}
				return rt.emit(cmd, rp, func(w io.Writer) {
					fmt.Fprintf(w, "%s: %.1f (%d reviews)\n\n", p.Name, p.AverageRating, p.ReviewCount)
					if len(rp.Reviews) == 0 {
						fmt.Fprintln(w, "No written reviews yet.")
						return
					}
					for _, rv := range rp.Reviews {
						printReview(w, rv)
					}
				})
			})
		},
	}
	cmd.Flags().IntVar(&page.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&page.Limit, "limit", 10, "Reviews per page")
	return cmd
}

func (rt *runtime) newReviewsAddCmd() *cobra.Command {
	var in domain.ReviewInput
	cmd := &cobra.Command{
		Use:   "add <product>",
		Short: "Rate a product from 1 to 5",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				p, err := a.Store().GetProduct(ctx, args[0])
				if err != nil {
					return err
				}
				in.ProductID = p.ID
				rv, err := a.Store().AddReview(ctx, in)
				if err != nil {
					return err
				}
				return rt.emit(cmd, rv, func(w io.Writer) {
					fmt.Fprintf(w, "Thanks! Your %d-star review of %s is live.\n", rv.Rating, p.Name)
				})
			})
		},
	}
	cmd.Flags().IntVar(&in.Rating, "rating", 0, "Rating from 1 to 5")
	cmd.Flags().StringVar(&in.Comment, "comment", "", "Review text")
	_ = cmd.MarkFlagRequired("rating")
	return cmd
}

func printReview(w io.Writer, rv domain.Review) {
	stars := strings.Repeat("★", rv.Rating) + strings.Repeat("☆", max(0, 5-rv.Rating))
	badge := ""
	if rv.Verified {
		badge = " (verified purchase)"
	}
	fmt.Fprintf(w, "%s  %s%s, %s\n", stars, rv.User.Name, badge, rv.CreatedAt.Format("2 Jan 2006"))
	if rv.Comment != "" {
		fmt.Fprintf(w, "  %s\n", rv.Comment)
	}
	fmt.Fprintln(w)
}
