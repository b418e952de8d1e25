package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/artpar/safebite-deploy/internal/core/domain"
	"github.com/artpar/safebite-deploy/internal/shell/store"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess           = 0
	ExitConfigError       = 1
	ExitConnectivityError = 2
	ExitTransactionError  = 3
	ExitManifestError     = 4
	ExitHistoryError      = 5
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	// Parse command line flags
	flags := flag.NewFlagSet("safebite-deploy", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprintf(stderr, "Usage: safebite-deploy [-config file] [-version] [deploy|show|history] [command flags]\n\n")
		flags.PrintDefaults()
	}
	configPath := flags.String("config", "", "Path to config file")
	showVersion := flags.Bool("version", false, "Print version and exit")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		return ExitConfigError
	}

	// Handle version flag
	if *showVersion {
		fmt.Fprintf(stdout, "safebite-deploy %s (built %s)\n", Version, BuildTime)
		return ExitSuccess
	}

	command, rest := "deploy", flags.Args()
	if len(rest) > 0 {
		command, rest = rest[0], rest[1:]
	}

	// Load configuration
	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}

	// Setup logger
	logger := SetupLogger(cfg)
	logger.Debug("starting safebite-deploy",
		"version", Version,
		"config", *configPath,
		"command", command,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "deploy":
		err = runDeploy(ctx, cfg, logger, stdout)
	case "show":
		err = runShow(cfg, rest, stdout, stderr)
	case "history":
		err = runHistory(ctx, cfg, rest, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", command)
		flags.Usage()
		return ExitConfigError
	}

	if errors.Is(err, flag.ErrHelp) {
		return ExitSuccess
	}
	if err != nil {
		logger.Error("command failed", "command", command, "error", err)
		return exitCode(err)
	}
	return ExitSuccess
}

// exitCode maps an error onto the process exit status.
func exitCode(err error) int {
	var storeErr *store.StoreError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, domain.ErrIO), errors.Is(err, domain.ErrInvalidManifest):
		return ExitManifestError
	case errors.Is(err, domain.ErrTransaction):
		return ExitTransactionError
	case errors.Is(err, domain.ErrConnectivity), errors.Is(err, context.Canceled):
		return ExitConnectivityError
	case errors.As(err, &storeErr):
		return ExitHistoryError
	default:
		return ExitConfigError
	}
}
