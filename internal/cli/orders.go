package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/utafrali/storefront/internal/app"
	"github.com/utafrali/storefront/internal/domain"
)

func (rt *runtime) newOrdersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "orders",
		Aliases: []string{"order"},
		Short:   "Review and cancel your orders",
	}
	cmd.AddCommand(
		rt.newOrdersListCmd(),
		rt.newOrdersShowCmd(),
		rt.newOrdersCancelCmd(),
		rt.newOrdersPaymentCmd(),
	)
	return cmd
}

func (rt *runtime) newOrdersListCmd() *cobra.Command {
	var (
		status string
		f      domain.OrderFilter
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				if err := requireSession(a.Store(), "see your orders"); err != nil {
					return err
				}
				f.Status = domain.OrderStatus(status)
				page, err := a.Store().ListOrders(ctx, f)
				if err != nil {
					return err
				}
				return rt.emit(cmd, page, func(w io.Writer) {
					printOrders(w, page.Orders)
					if m := page.Pagination; m.Pages > 1 {
						fmt.Fprintf(w, "\nPage %d of %d (%d orders)\n", m.Page, m.Pages, m.Total)
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only orders in this status")
	cmd.Flags().IntVar(&f.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&f.Limit, "limit", 10, "Orders per page")
	return cmd
}

func (rt *runtime) newOrdersShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <order-id>",
		Short: "Show one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				if err := requireSession(a.Store(), "see your orders"); err != nil {
					return err
				}
				o, err := a.Store().GetOrder(ctx, args[0])
				if err != nil {
					return err
				}
				return rt.emit(cmd, o, func(w io.Writer) { printOrder(w, *o) })
			})
		},
	}
}

func (rt *runtime) newOrdersCancelCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "cancel <order-id>",
		Short: "Cancel a pending or processing order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				if err := requireSession(a.Store(), "cancel an order"); err != nil {
					return err
				}
				o, err := a.Store().CancelOrder(ctx, args[0], reason)
				if err != nil {
					return err
				}
				return rt.emit(cmd, o, func(w io.Writer) {
					fmt.Fprintf(w, "Order %s is %s.\n", o.OrderNumber, o.Status)
					if o.PaymentInfo.Status == domain.PaymentStatusRefunded {
						fmt.Fprintf(w, "Payment of %s will be refunded.\n", money(o.Total))
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Why the order is cancelled")
	return cmd
}

func (rt *runtime) newOrdersPaymentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "payment <order-or-payment-id>",
		Short: "Show the payment state of an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				if err := requireSession(a.Store(), "see payments"); err != nil {
					return err
				}
				info, err := a.Store().PaymentStatus(ctx, args[0])
				if err != nil {
					return err
				}
				return rt.emit(cmd, info, func(w io.Writer) {
					fmt.Fprintf(w, "Payment %s: %s\n", info.PaymentID, info.Status)
					fmt.Fprintf(w, "  amount: %s %s\n", money(info.Amount), info.Currency)
					if info.Method != "" {
						fmt.Fprintf(w, "  method: %s\n", info.Method)
					}
				})
			})
		},
	}
}
