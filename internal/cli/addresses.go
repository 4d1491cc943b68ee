package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/utafrali/storefront/internal/app"
	"github.com/utafrali/storefront/internal/domain"
)

func (rt *runtime) newAddressesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "addresses",
		Aliases: []string{"address"},
		Short:   "Manage saved shipping addresses",
	}
	cmd.AddCommand(
		rt.newAddressesListCmd(),
		rt.newAddressesAddCmd(),
		rt.newAddressesDefaultCmd(),
		rt.newAddressesDeleteCmd(),
	)
	return cmd
}

func (rt *runtime) newAddressesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				if err := requireSession(a.Store(), "see your addresses"); err != nil {
					return err
				}
				addrs, err := a.Store().ListAddresses(ctx)
				if err != nil {
					return err
				}
				return rt.emit(cmd, addrs, func(w io.Writer) { printAddresses(w, addrs) })
			})
		},
	}
}

func (rt *runtime) newAddressesAddCmd() *cobra.Command {
	var in domain.AddressInput
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Save a new address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				if err := requireSession(a.Store(), "save an address"); err != nil {
					return err
				}
				addr, err := a.Store().AddAddress(ctx, in)
				if err != nil {
					return err
				}
				return rt.emit(cmd, addr, func(w io.Writer) {
					fmt.Fprintf(w, "Saved address %s (%s): %s\n", addr.ID, addr.Label, formatAddress(*addr))
				})
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Label, "label", "Home", "Short name such as Home or Work")
	f.StringVar(&in.Street, "street", "", "Street and number")
	f.StringVar(&in.City, "city", "", "City")
	f.StringVar(&in.State, "state", "", "State or region")
	f.StringVar(&in.Country, "country", "India", "Country")
	f.StringVar(&in.PostalCode, "postal-code", "", "Postal code")
	return cmd
}

func (rt *runtime) newAddressesDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "default <address-id>",
		Short: "Use an address by default at checkout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				if err := requireSession(a.Store(), "change your addresses"); err != nil {
					return err
				}
				addr, err := a.Store().SetDefaultAddress(ctx, args[0])
				if err != nil {
					return err
				}
				return rt.emit(cmd, addr, func(w io.Writer) {
					fmt.Fprintf(w, "%s (%s) is now your default address.\n", addr.Label, addr.ID)
				})
			})
		},
	}
}

func (rt *runtime) newAddressesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <address-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved address",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				if err := requireSession(a.Store(), "change your addresses"); err != nil {
					return err
				}
				if err := a.Store().DeleteAddress(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted address %s.\n", args[0])
				return nil
			})
		},
	}
}
