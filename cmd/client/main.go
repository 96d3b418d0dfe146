package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/gophgate/internal/client/cli"
	"github.com/iudanet/gophgate/internal/client/iocli"
	"github.com/iudanet/gophgate/internal/logger"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	// клиентские логи только предупреждения, в stderr
	slog.SetDefault(logger.New(os.Stderr, "warn", "text"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := cli.New(iocli.NewStdio())
	root := cli.NewRootCommand(c, fmt.Sprintf("%s (built %s, commit %s)", Version, BuildDate, GitCommit))

	err := root.ExecuteContext(ctx)
	c.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
