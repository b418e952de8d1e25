package deploy

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/artpar/safebite-deploy/internal/core/deployment"
	"github.com/artpar/safebite-deploy/internal/core/domain"
	"github.com/artpar/safebite-deploy/internal/shell/store"
	"github.com/google/uuid"
)

// =============================================================================
// Collaborators
// =============================================================================

// ManifestWriter persists a manifest, replacing any previous one at path.
type ManifestWriter interface {
	Write(m *domain.DeploymentManifest, path string) error
}

// History records successful runs.
type History interface {
	RecordRun(ctx context.Context, run *store.Run) error
}

// Reporter presents a run to the operator.
type Reporter interface {
	Observer
	Started(network string)
	Summary(m *domain.DeploymentManifest, path string)
	Failed(err error, deployed []domain.ContractDeployment)
}

// =============================================================================
// Runner
// =============================================================================

// Runner executes one full deployment run: sequence the plan, write the
// manifest, record history, report the summary.
type Runner struct {
	sequencer    *Sequencer
	network      Network
	writer       ManifestWriter
	manifestPath string
	history      History
	reporter     Reporter
	newID        func() string
	logger       *slog.Logger
}

// RunnerConfig holds configuration for a runner.
type RunnerConfig struct {
	Plan         deployment.Plan
	Network      Network
	Writer       ManifestWriter
	ManifestPath string
	History      History  // optional
	Reporter     Reporter // optional
	Now          func() time.Time
	NewID        func() string
	Logger       *slog.Logger
}

// RunResult describes a successful run.
type RunResult struct {
	ID           string
	Manifest     *domain.DeploymentManifest
	ManifestPath string
}

// NewRunner creates a runner. Writer, ManifestPath and Network.Provider are
// required.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	switch {
	case cfg.Network.Provider == nil:
		return nil, errors.New("runner requires a network provider")
	case cfg.Writer == nil:
		return nil, errors.New("runner requires a manifest writer")
	case cfg.ManifestPath == "":
		return nil, errors.New("runner requires a manifest path")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}

	var observer Observer
	if cfg.Reporter != nil {
		observer = cfg.Reporter
	}
	seq, err := NewSequencer(SequencerConfig{
		Plan:     cfg.Plan,
		Observer: observer,
		Now:      cfg.Now,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Runner{
		sequencer:    seq,
		network:      cfg.Network,
		writer:       cfg.Writer,
		manifestPath: cfg.ManifestPath,
		history:      cfg.History,
		reporter:     cfg.Reporter,
		newID:        cfg.NewID,
		logger:       cfg.Logger,
	}, nil
}

// Run performs the deployment. The manifest is written only when every step
// succeeded.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	runID := r.newID()
	logger := r.logger.With("run_id", runID, "network", r.network.Name)
	logger.Info("starting deployment run", "manifest", r.manifestPath)

	if r.reporter != nil {
		r.reporter.Started(r.network.Name)
	}

	result, err := r.sequencer.Deploy(ctx, r.network)
	if err != nil {
		logger.Error("deployment run failed", "error", err, "confirmed", len(result.Deployments))
		r.fail(err, result.Deployments)
		return nil, err
	}

	if err := r.writer.Write(result.Manifest, r.manifestPath); err != nil {
		err = wrap("WriteManifest", "", err)
		logger.Error("manifest write failed", "error", err, "path", r.manifestPath)
		r.fail(err, result.Deployments)
		return nil, err
	}
	logger.Info("manifest written", "path", r.manifestPath)

	if r.history != nil {
		run := &store.Run{ID: runID, Manifest: result.Manifest, ManifestPath: r.manifestPath}
		if err := r.history.RecordRun(ctx, run); err != nil {
			// The manifest is already durable; history is best effort
			logger.Warn("failed to record deployment history", "error", err)
		}
	}

	if r.reporter != nil {
		r.reporter.Summary(result.Manifest, r.manifestPath)
	}
	logger.Info("deployment run completed", "contracts", len(result.Manifest.Contracts))

	return &RunResult{ID: runID, Manifest: result.Manifest, ManifestPath: r.manifestPath}, nil
}

func (r *Runner) fail(err error, deployed []domain.ContractDeployment) {
	if r.reporter != nil {
		r.reporter.Failed(err, deployed)
	}
}
