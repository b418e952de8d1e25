package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/artpar/safebite-deploy/internal/core/deployment"
	coremanifest "github.com/artpar/safebite-deploy/internal/core/manifest"
	"github.com/artpar/safebite-deploy/internal/shell/chain"
	"github.com/artpar/safebite-deploy/internal/shell/deploy"
	"github.com/artpar/safebite-deploy/internal/shell/manifest"
	"github.com/artpar/safebite-deploy/internal/shell/report"
	"github.com/artpar/safebite-deploy/internal/shell/store"
	"github.com/spf13/afero"
)

// =============================================================================
// deploy
// =============================================================================

func runDeploy(ctx context.Context, cfg *Config, logger *slog.Logger, stdout io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	fs := afero.NewOsFs()
	client, err := chain.Dial(ctx, chain.Config{
		RPCURL:       cfg.Network.RPCURL,
		PrivateKey:   cfg.Signer.PrivateKey,
		ArtifactsDir: cfg.Artifacts.Dir,
		Fs:           fs,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	var history deploy.History
	if cfg.History.Enabled {
		s, err := store.NewSQLiteStore(cfg.History.DSN)
		if err != nil {
			// History is best effort; the manifest file is the record of truth
			logger.Warn("deployment history unavailable", "dsn", cfg.History.DSN, "error", err)
		} else {
			defer s.Close()
			history = s
		}
	}

	runner, err := deploy.NewRunner(deploy.RunnerConfig{
		Network: deploy.Network{
			Name:            cfg.Network.Name,
			ExpectedChainID: cfg.Network.ChainID,
			Provider:        client,
		},
		Writer:       manifest.NewWriter(fs),
		ManifestPath: cfg.Deployments.ManifestPath(cfg.Network.Name),
		History:      history,
		Reporter:     report.New(stdout),
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	_, err = runner.Run(ctx)
	return err
}

// =============================================================================
// show
// =============================================================================

func runShow(cfg *Config, args []string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("show", flag.ContinueOnError)
	flags.SetOutput(stderr)
	output := flags.String("o", "", "Output format: json or yaml (default: human readable)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	name := deployment.ManifestName(cfg.Network.Name, cfg.Deployments.FileName)
	if err := deployment.ValidateManifestName(name); err != nil {
		return fmt.Errorf("invalid configuration: %v", err)
	}
	path := cfg.Deployments.ManifestPath(cfg.Network.Name)
	m, err := manifest.NewWriter(afero.NewOsFs()).Read(path)
	if errors.Is(err, manifest.ErrManifestNotFound) {
		report.New(stdout).NoManifest(path)
		return nil
	}
	if err != nil {
		return err
	}

	var data []byte
	switch *output {
	case "":
		report.New(stdout).Manifest(m, path)
		return nil
	case "json":
		data, err = coremanifest.Encode(m)
	case "yaml":
		data, err = coremanifest.EncodeYAML(m)
	default:
		return fmt.Errorf("unknown output format %q", *output)
	}
	if err != nil {
		return err
	}
	_, err = stdout.Write(data)
	return err
}

// =============================================================================
// history
// =============================================================================

func runHistory(ctx context.Context, cfg *Config, args []string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("history", flag.ContinueOnError)
	flags.SetOutput(stderr)
	limit := flags.Int("limit", store.DefaultListOptions().Limit, "Maximum number of runs to list")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if !cfg.History.Enabled {
		return errors.New("history is disabled (history.enabled=false)")
	}

	s, err := store.NewSQLiteStore(cfg.History.DSN)
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.ListRuns(ctx, cfg.Network.Name, store.ListOptions{Limit: *limit})
	if err != nil {
		return err
	}
	report.New(stdout).History(cfg.Network.Name, runs)
	return nil
}
