package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/utafrali/storefront/internal/app"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/order"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func (rt *runtime) newCheckoutCmd() *cobra.Command {
	var (
		addressID string
		method    string
		notes     string
		yes       bool
	)
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the cart: address, payment method, review, place",
		Long: "Walks the checkout steps in order. Without --method the payment methods " +
			"available for the chosen address are listed and nothing is ordered.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				s := a.Store()
				c, err := s.StartCheckout(ctx)
				if err != nil {
					return err
				}

				// Address.
				if addressID != "" {
					if err := c.SelectAddress(addressID); err != nil {
						return err
					}
				}
				if err := c.Next(); err != nil {
					if _, ok := c.Address(); !ok {
						return apperrors.Validation("add a shipping address first with `storefront addresses add`", nil)
					}
					return err
				}
				addr, _ := c.Address()

				// Payment method.
				methods, err := s.LoadPaymentMethods(ctx, c)
				if err != nil {
					return err
				}
				if method == "" {
					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "Shipping to %s (%s)\n", addr.Label, formatAddress(addr))
					fmt.Fprintln(out, "Available payment methods:")
					for _, m := range methods {
						fmt.Fprintf(out, "  %s\n", m)
					}
					return apperrors.Validation("choose a payment method with --method", map[string]string{"method": "is required"})
				}
				if err := c.SelectPaymentMethod(domain.PaymentMethod(method)); err != nil {
					return err
				}
				c.SetNotes(notes)
				if err := c.Next(); err != nil {
					return err
				}

				// Review.
				snap := s.Snapshot()
				if !rt.json {
					out := cmd.OutOrStdout()
					printCart(out, snap.Cart, snap.Summary)
					fmt.Fprintf(out, "\nShip to: %s (%s)\nPay by:  %s\n", addr.Label, formatAddress(addr), c.PaymentMethod())
					if notes != "" {
						fmt.Fprintf(out, "Notes:   %s\n", notes)
					}
				}
				if !yes {
					ok, err := confirm(cmd, "Place this order?")
					if err != nil || !ok {
						return err
					}
				}

				// Place.
				att, err := s.PlaceOrder(ctx, c)
				if att != nil {
					if emitErr := rt.emit(cmd, att, func(w io.Writer) { printAttempt(w, att) }); emitErr != nil && err == nil {
						err = emitErr
					}
				}
				return err
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&addressID, "address", "", "Shipping address ID (default address when omitted)")
	f.StringVar(&method, "method", "", "Payment method: "+joinMethods(domain.PaymentMethods))
	f.StringVar(&notes, "notes", "", "Delivery notes")
	f.BoolVarP(&yes, "yes", "y", false, "Place the order without asking")
	return cmd
}

func joinMethods(ms []domain.PaymentMethod) string {
	parts := make([]string, len(ms))
	for i, m := range ms {
		parts[i] = string(m)
	}
	return strings.Join(parts, " | ")
}

func printAttempt(w io.Writer, att *order.Attempt) {
	o := att.Order
	switch att.State {
	case order.StateConfirmed:
		fmt.Fprintf(w, "\nOrder %s placed.\n", o.OrderNumber)
		fmt.Fprintf(w, "  status:  %s\n  payment: %s, %s\n  total:   %s\n",
			o.Status, o.PaymentInfo.Method, o.PaymentInfo.Status, money(o.Total))
	case order.StateFailed:
		if o != nil {
			fmt.Fprintf(w, "\nOrder %s was created but payment did not complete (%s).\n", o.OrderNumber, att.Reason)
			fmt.Fprintf(w, "It stays %s; see `storefront orders show %s`.\n", o.Status, o.ID)
		} else {
			fmt.Fprintln(w, "\nThe order was not placed.")
		}
	default:
		fmt.Fprintf(w, "\nOrder attempt is %s.\n", att.State)
	}
}
