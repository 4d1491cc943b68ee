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

// promptLine asks for a value on stderr and reads one line from stdin.
func promptLine(cmd *cobra.Command, label string) (string, error) {
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: ", label)
	sc := bufio.NewScanner(cmd.InOrStdin())
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", fmt.Errorf("read %s: %w", label, err)
		}
		return "", apperrors.Validation(label+" is required", nil)
	}
	return strings.TrimSpace(sc.Text()), nil
}

func (rt *runtime) newLoginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				p, err := promptLine(cmd, "Password")
				if err != nil {
					return rt.fail(cmd, "", err)
				}
				password = p
			}
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				u, err := a.Store().Login(ctx, email, password)
				if err != nil {
					return err
				}
				snap := a.Store().Snapshot()
				return rt.emit(cmd, u, func(w io.Writer) {
					fmt.Fprintf(w, "Logged in as %s <%s>.\n", u.Name, u.Email)
					fmt.Fprintf(w, "Cart: %d item(s), wishlist: %d product(s).\n", snap.CartCount, snap.WishlistCount)
				})
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (rt *runtime) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				a.Store().Logout(ctx)
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
				return nil
			})
		},
	}
}

func (rt *runtime) newRegisterCmd() *cobra.Command {
	var reg domain.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account; a verification code is sent by email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if reg.Password == "" {
				p, err := promptLine(cmd, "Password")
				if err != nil {
					return rt.fail(cmd, "", err)
				}
				reg.Password = p
			}
			if reg.ConfirmPassword == "" {
				reg.ConfirmPassword = reg.Password
			}
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				if err := a.Store().Register(ctx, reg); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Account created. Check %s for a 6-digit code and run `storefront verify-email --email=%s --otp=CODE`.\n", reg.Email, reg.Email)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&reg.Name, "name", "", "Full name")
	f.StringVar(&reg.Email, "email", "", "Email address")
	f.StringVar(&reg.Phone, "phone", "", "10-digit phone number")
	f.StringVar(&reg.CountryCode, "country-code", "+91", "Phone country code")
	f.StringVar(&reg.Password, "password", "", "Password (prompted when omitted)")
	f.StringVar(&reg.ConfirmPassword, "confirm-password", "", "Password confirmation (defaults to --password)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("phone")
	return cmd
}

func (rt *runtime) newVerifyEmailCmd() *cobra.Command {
	var email, otp string
	cmd := &cobra.Command{
		Use:   "verify-email",
		Short: "Confirm an account with the emailed code and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				u, err := a.Store().VerifyEmail(ctx, email, otp)
				if err != nil {
					return err
				}
				return rt.emit(cmd, u, func(w io.Writer) {
					fmt.Fprintf(w, "Email verified. Logged in as %s <%s>.\n", u.Name, u.Email)
				})
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&otp, "otp", "", "6-digit verification code")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("otp")
	return cmd
}

func (rt *runtime) newResendOTPCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "resend-otp",
		Short: "Send a new verification code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				if err := a.Store().ResendOTP(ctx, email); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "A new code was sent to %s.\n", email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (rt *runtime) newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.run(cmd, args, func(ctx context.Context, a *app.App) error {
				snap := a.Store().Snapshot()
				if !snap.IsAuthenticated {
					return apperrors.NotAuthenticated("not logged in")
				}
				return rt.emit(cmd, snap, func(w io.Writer) {
					u := snap.User
					fmt.Fprintf(w, "%s <%s>\n", u.Name, u.Email)
					fmt.Fprintf(w, "  role:     %s\n", u.Role)
					fmt.Fprintf(w, "  cart:     %d item(s)\n", snap.CartCount)
					fmt.Fprintf(w, "  wishlist: %d product(s)\n", snap.WishlistCount)
				})
			})
		},
	}
}
