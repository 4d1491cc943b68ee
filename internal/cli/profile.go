package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/utafrali/storefront/internal/app"
	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func (rt *runtime) newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "View and edit your account",
	}
	cmd.AddCommand(rt.newProfileShowCmd(), rt.newProfileUpdateCmd(), rt.newProfilePasswordCmd())
	return cmd
}

func (rt *runtime) newProfileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show your profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				u, err := a.Store().Profile(ctx)
				if err != nil {
					return err
				}
				return rt.emit(cmd, u, func(w io.Writer) { printProfile(w, *u) })
			})
		},
	}
}

func (rt *runtime) newProfileUpdateCmd() *cobra.Command {
	var in domain.ProfileUpdate
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change your name or phone number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				cur, err := a.Store().Profile(ctx)
				if err != nil {
					return err
				}
				next := domain.ProfileUpdate{Name: cur.Name, Phone: cur.Phone}
				if cmd.Flags().Changed("name") {
					next.Name = in.Name
				}
				if cmd.Flags().Changed("phone") {
					next.Phone = in.Phone
				}
				u, err := a.Store().UpdateProfile(ctx, next)
				if err != nil {
					return err
				}
				return rt.emit(cmd, u, func(w io.Writer) {
					fmt.Fprintln(w, "Profile updated.")
					printProfile(w, *u)
				})
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "Full name")
	cmd.Flags().StringVar(&in.Phone, "phone", "", "10-digit phone number")
	cmd.MarkFlagsOneRequired("name", "phone")
	return cmd
}

func (rt *runtime) newProfilePasswordCmd() *cobra.Command {
	var in domain.PasswordChange
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Change your password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := promptMissing(cmd, []prompt{
				{"Current password", &in.CurrentPassword},
				{"New password", &in.NewPassword},
			}); err != nil {
				return rt.fail(cmd, "", err)
			}
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				if err := a.Store().ChangePassword(ctx, in); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Password changed.")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.CurrentPassword, "current-password", "", "Current password (prompted when omitted)")
	cmd.Flags().StringVar(&in.NewPassword, "new-password", "", "New password (prompted when omitted)")
	return cmd
}

type prompt struct {
	label string
	dst   *string
}

// promptMissing asks for each empty value in turn, reading stdin through one
// scanner so piped input is not lost between prompts.
func promptMissing(cmd *cobra.Command, prompts []prompt) error {
	var sc *bufio.Scanner
	for _, p := range prompts {
		if *p.dst != "" {
			continue
		}
		if sc == nil {
			sc = bufio.NewScanner(cmd.InOrStdin())
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: ", p.label)
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return fmt.Errorf("read %s: %w", p.label, err)
			}
			return apperrors.Validation(p.label+" is required", nil)
		}
		*p.dst = strings.TrimSpace(sc.Text())
	}
	return nil
}

func printProfile(w io.Writer, u domain.User) {
	fmt.Fprintf(w, "%s <%s>\n", u.Name, u.Email)
	if u.Phone != "" {
		fmt.Fprintf(w, "  phone:  %s %s\n", u.CountryCode, u.Phone)
	}
	fmt.Fprintf(w, "  role:   %s\n", u.Role)
	fmt.Fprintf(w, "  member: since %s\n", u.CreatedAt.Format("Jan 2006"))
}
