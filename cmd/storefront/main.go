package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/utafrali/storefront/internal/cli"
)

var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cli.NewRootCmd(version, nil).ExecuteContext(ctx)
	cancel()
	if err == nil {
		return
	}

	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	// The root silences cobra usage errors such as unknown flags.
	os.Stderr.WriteString("Error: " + err.Error() + "\n")
	os.Exit(1)
}
