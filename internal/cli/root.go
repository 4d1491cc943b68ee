// Package cli implements the storefront command line client.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/utafrali/storefront/internal/api"
	"github.com/utafrali/storefront/internal/app"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/order/sandbox"
	"github.com/utafrali/storefront/pkg/logger"
)

const configEnv = "STOREFRONT_CONFIG"

// Opener builds the application for one command invocation.
type Opener func(ctx context.Context, cfgPath, logLevel string, opts app.Options, logOut io.Writer) (*app.App, error)

// OpenFromConfig loads configuration from the environment and cfgPath and
// builds the application from it.
func OpenFromConfig(ctx context.Context, cfgPath, logLevel string, opts app.Options, logOut io.Writer) (*app.App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, exitError(exitConfig, "%v", err)
	}
	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	log := logger.NewWithWriter("storefront-cli", logLevel, logOut)
	a, err := app.New(ctx, cfg, log, opts)
	if err != nil {
		return nil, exitError(exitConfig, "%v", err)
	}
	return a, nil
}

type runtime struct {
	open     Opener
	cfgPath  string
	logLevel string
	outcome  string
	json     bool
}

// NewRootCmd creates the storefront command tree. open may be nil to use
// OpenFromConfig.
func NewRootCmd(version string, open Opener) *cobra.Command {
	if open == nil {
		open = OpenFromConfig
	}
	rt := &runtime{open: open}

	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Shop the storefront from your terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	root.SetVersionTemplate(fmt.Sprintf("storefront version %s\n", version))

	pf := root.PersistentFlags()
	pf.StringVar(&rt.cfgPath, "config", os.Getenv(configEnv), "YAML config file (env "+configEnv+")")
	pf.StringVar(&rt.logLevel, "log-level", "warn", "Log level: debug | info | warn | error")
	pf.StringVar(&rt.outcome, "payment-outcome", string(sandbox.Approve), "Sandbox payment result: approve | cancel | load-fail | decline | tamper")
	pf.BoolVar(&rt.json, "json", false, "Print results as JSON")

	root.AddCommand(
		rt.newLoginCmd(),
		rt.newLogoutCmd(),
		rt.newRegisterCmd(),
		rt.newVerifyEmailCmd(),
		rt.newResendOTPCmd(),
		rt.newWhoamiCmd(),
		rt.newProfileCmd(),
		rt.newProductsCmd(),
		rt.newCategoriesCmd(),
		rt.newReviewsCmd(),
		rt.newCartCmd(),
		rt.newWishlistCmd(),
		rt.newAddressesCmd(),
		rt.newCheckoutCmd(),
		rt.newOrdersCmd(),
		rt.newStatusCmd(),
	)
	return root
}

// run opens the application, restores the session, runs fn and releases
// everything. Errors are printed and converted to exit codes.
func (rt *runtime) run(cmd *cobra.Command, args []string, fn func(ctx context.Context, a *app.App) error) error {
	return rt.exec(cmd, args, true, fn)
}

// runDetached is run without restoring the session.
func (rt *runtime) runDetached(cmd *cobra.Command, args []string, fn func(ctx context.Context, a *app.App) error) error {
	return rt.exec(cmd, args, false, fn)
}

func (rt *runtime) exec(cmd *cobra.Command, args []string, bootstrap bool, fn func(ctx context.Context, a *app.App) error) error {
	line := commandLine(cmd, args)
	ctx := api.WithReturnPath(cmd.Context(), line)

	outcome, err := sandbox.ParseOutcome(rt.outcome)
	if err != nil {
		return rt.fail(cmd, line, exitError(exitConfig, "%v", err))
	}
	a, err := rt.open(ctx, rt.cfgPath, rt.logLevel, app.Options{PaymentOutcome: outcome}, cmd.ErrOrStderr())
	if err != nil {
		return rt.fail(cmd, line, err)
	}

	var runErr error
	if bootstrap {
		runErr = a.Bootstrap(ctx)
	}
	if runErr == nil {
		runErr = fn(ctx, a)
	}

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := a.Close(closeCtx); err != nil && runErr == nil {
		runErr = err
	}
	return rt.fail(cmd, line, runErr)
}

func (rt *runtime) fail(cmd *cobra.Command, line string, err error) error {
	if err == nil {
		return nil
	}
	msg := describe(err, line)
	fmt.Fprintln(cmd.ErrOrStderr(), "Error: "+msg)
	return &ExitError{Code: exitCode(err), Message: msg, Err: err}
}

// commandLine reconstructs the invocation for "run it again" hints. Secret
// flags are left out.
func commandLine(cmd *cobra.Command, args []string) string {
	parts := []string{cmd.CommandPath()}
	parts = append(parts, args...)
	cmd.Flags().Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "password", "confirm-password", "current-password", "new-password", "otp":
			return
		}
		if cmd.InheritedFlags().Lookup(f.Name) != nil {
			return
		}
		parts = append(parts, fmt.Sprintf("--%s=%s", f.Name, f.Value.String()))
	})
	return strings.Join(parts, " ")
}
