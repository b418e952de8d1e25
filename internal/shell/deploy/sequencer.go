// Package deploy runs the deployment plan against a network and records the
// result.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/artpar/safebite-deploy/internal/core/deployment"
	"github.com/artpar/safebite-deploy/internal/core/domain"
)

// =============================================================================
// Collaborators
// =============================================================================

// Provider is the chain-facing side of a run: it knows the signer and can
// create contracts. DeployContract must block until the creation is mined.
type Provider interface {
	Snapshot(ctx context.Context) (domain.NetworkSnapshot, error)
	DeployContract(ctx context.Context, artifact string, args ...any) (domain.Receipt, error)
}

// Network carries everything a run needs to know about its target, in place
// of ambient connection state.
type Network struct {
	// Name is recorded in the manifest (e.g., "hardhat").
	Name string

	// ExpectedChainID guards against pointing at the wrong endpoint.
	// Zero accepts whatever chain the provider reports.
	ExpectedChainID int64

	Provider Provider
}

// Observer receives progress while a plan runs. Each call is made only after
// the data it carries exists.
type Observer interface {
	Identity(id domain.DeployerIdentity)
	Deploying(index, total int, name string)
	Deployed(d domain.ContractDeployment)
}

// =============================================================================
// Sequencer
// =============================================================================

// Sequencer deploys the steps of a plan strictly in order, feeding each
// step the addresses confirmed before it.
type Sequencer struct {
	plan     deployment.Plan
	observer Observer
	now      func() time.Time
	logger   *slog.Logger
}

// SequencerConfig holds configuration for a sequencer.
type SequencerConfig struct {
	Plan     deployment.Plan
	Observer Observer
	Now      func() time.Time
	Logger   *slog.Logger
}

// NewSequencer creates a sequencer. An empty plan means DefaultPlan.
func NewSequencer(cfg SequencerConfig) (*Sequencer, error) {
	if len(cfg.Plan) == 0 {
		cfg.Plan = deployment.DefaultPlan()
	}
	if err := deployment.ValidatePlan(cfg.Plan); err != nil {
		return nil, err
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Sequencer{
		plan:     cfg.Plan,
		observer: cfg.Observer,
		now:      cfg.Now,
		logger:   cfg.Logger,
	}, nil
}

// Result is what a sequence produced. Deployments is filled in as steps are
// confirmed, so it is meaningful even when Deploy fails.
type Result struct {
	Manifest    *domain.DeploymentManifest
	Deployments []domain.ContractDeployment
}

// Deploy runs the plan against the network. The first failing step aborts
// the sequence; no later step is attempted and no manifest is returned.
func (s *Sequencer) Deploy(ctx context.Context, network Network) (*Result, error) {
	result := &Result{}

	if network.Provider == nil {
		return result, domain.NewDeploymentError("ResolveIdentity", "", "no provider configured", domain.ErrConnectivity)
	}

	snap, err := network.Provider.Snapshot(ctx)
	if err != nil {
		return result, wrap("ResolveIdentity", "", err)
	}
	if network.ExpectedChainID != 0 && snap.ChainID != network.ExpectedChainID {
		msg := fmt.Sprintf("provider is on chain %d, expected %d", snap.ChainID, network.ExpectedChainID)
		return result, domain.NewDeploymentError("ResolveIdentity", "", msg, domain.ErrConnectivity)
	}

	s.logger.Info("deployer identity resolved",
		"network", network.Name,
		"chain_id", snap.ChainID,
		"deployer", snap.Deployer.Address.Hex(),
		"balance_wei", snap.Deployer.Balance,
	)
	if s.observer != nil {
		s.observer.Identity(snap.Deployer)
	}

	for i, step := range s.plan {
		args, err := deployment.ResolveArgs(step, result.Deployments)
		if err != nil {
			return result, wrap("ResolveArgs", step.Name, err)
		}

		if s.observer != nil {
			s.observer.Deploying(i+1, len(s.plan), step.Name)
		}
		s.logger.Info("deploying contract", "contract", step.Name, "step", i+1, "args", len(args))

		receipt, err := network.Provider.DeployContract(ctx, step.ArtifactName(), args...)
		if err != nil {
			s.logger.Error("contract deployment failed", "contract", step.Name, "error", err)
			return result, wrap("DeployContract", step.Name, err)
		}

		deployed := domain.ContractDeployment{
			Name:    step.Name,
			Address: receipt.Address.Hex(),
			TxHash:  receipt.TxHash.Hex(),
		}
		result.Deployments = append(result.Deployments, deployed)

		s.logger.Info("contract deployed", "contract", step.Name, "address", deployed.Address, "tx", deployed.TxHash)
		if s.observer != nil {
			s.observer.Deployed(deployed)
		}
	}

	result.Manifest = domain.NewManifest(network.Name, snap.ChainID, snap.Deployer, result.Deployments, s.now())
	return result, nil
}

// wrap attaches the failing operation to err, keeping the taxonomy sentinel
// reachable through errors.Is.
func wrap(op, contract string, err error) error {
	var de *domain.DeploymentError
	if errors.As(err, &de) {
		return err
	}
	return domain.NewDeploymentError(op, contract, err.Error(), err)
}
