package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/utafrali/storefront/internal/app"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/store"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func (rt *runtime) newCartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "View and change your cart",
	}
	cmd.AddCommand(
		rt.newCartShowCmd(),
		rt.newCartAddCmd(),
		rt.newCartSetCmd(),
		rt.newCartRemoveCmd(),
		rt.newCartClearCmd(),
	)
	return cmd
}

func requireSession(s *store.Store, what string) error {
	if !s.IsAuthenticated() {
		return apperrors.NotAuthenticated("sign in to " + what)
	}
	return nil
}

// showCart prints the cart as it stands after the command.
func (rt *runtime) showCart(cmd *cobra.Command, s *store.Store) error {
	snap := s.Snapshot()
	return rt.emit(cmd, snap, func(w io.Writer) {
		printCart(w, snap.Cart, snap.Summary)
	})
}

func (rt *runtime) newCartShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show cart contents and totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				s := a.Store()
				if err := requireSession(s, "see your cart"); err != nil {
					return err
				}
				if err := s.LoadError(); err != nil {
					return err
				}
				return rt.showCart(cmd, s)
			})
		},
	}
}

func parseOptions(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, apperrors.Validation("invalid --option "+strconv.Quote(p), map[string]string{"option": "must be key=value"})
		}
		out[k] = v
	}
	return out, nil
}

func parseQuantity(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, apperrors.Validation("quantity must be a whole number of at least 1", map[string]string{"quantity": "must be at least 1"})
	}
	return n, nil
}

func (rt *runtime) newCartAddCmd() *cobra.Command {
	var (
		qty     int
		options []string
	)
	cmd := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				custom, err := parseOptions(options)
				if err != nil {
					return err
				}
				if err := a.Store().AddToCart(ctx, args[0], qty, custom); err != nil {
					return err
				}
				return rt.showCart(cmd, a.Store())
			})
		},
	}
	cmd.Flags().IntVarP(&qty, "quantity", "q", 1, "Units to add")
	cmd.Flags().StringArrayVar(&options, "option", nil, "Customization as key=value (repeatable)")
	return cmd
}

func (rt *runtime) newCartSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <product-id> <quantity>",
		Short: "Change the quantity of a cart line",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				s := a.Store()
				if err := requireSession(s, "change your cart"); err != nil {
					return err
				}
				qty, err := parseQuantity(args[1])
				if err != nil {
					return err
				}

				rec := &event.Recorder{}
				unsubscribe := s.Subscribe(rec.Handle)
				defer unsubscribe()

				if err := s.SetQuantity(ctx, args[0], qty); err != nil {
					return err
				}
				if err := s.Settle(ctx); err != nil {
					return err
				}
				for _, ev := range rec.Events(event.CartSyncFailed) {
					p, ok := ev.Data.(event.CartSyncFailedPayload)
					if !ok || p.ProductID != args[0] {
						continue
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "Quantity of %s stays at %d.\n", p.ProductID, p.Restored)
					if p.Err != nil {
						return p.Err
					}
					return fmt.Errorf("update %s: %s", p.ProductID, p.Error)
				}
				return rt.showCart(cmd, s)
			})
		},
	}
}

func (rt *runtime) newCartRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <product-id>",
		Aliases: []string{"rm"},
		Short:   "Remove a line from the cart",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				s := a.Store()
				if err := requireSession(s, "change your cart"); err != nil {
					return err
				}
				if err := s.RemoveFromCart(ctx, args[0]); err != nil {
					return err
				}
				return rt.showCart(cmd, s)
			})
		},
	}
}

func (rt *runtime) newCartClearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove everything from the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				s := a.Store()
				if err := requireSession(s, "change your cart"); err != nil {
					return err
				}
				if !yes {
					ok, err := confirm(cmd, "Remove all items from your cart?")
					if err != nil || !ok {
						return err
					}
				}
				if err := s.ClearCart(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Cart cleared.")
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// confirm asks a yes/no question on stdin.
func confirm(cmd *cobra.Command, question string) (bool, error) {
	answer, err := promptLine(cmd, question+" [y/N]")
	if err != nil {
		if errors.Is(err, apperrors.ErrValidation) {
			return false, nil
		}
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Cancelled.")
	return false, nil
}
