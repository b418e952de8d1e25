// Package domain contains the value types shared by the deployment core and
// shell: deployer identity, confirmed deployments, and the manifest.
package domain

import (
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// =============================================================================
// Deployer Identity
// =============================================================================

// DeployerIdentity is the account that pays for and signs the deployment,
// captured once at the start of a run.
type DeployerIdentity struct {
	Address common.Address
	Balance *big.Int
}

// =============================================================================
// Contract Deployment
// =============================================================================

// ContractDeployment records a single confirmed contract creation.
type ContractDeployment struct {
	Name    string
	Address string
	TxHash  string
}

// =============================================================================
// Deployment Manifest
// =============================================================================

// DeploymentManifest is the durable record consumers read to locate the
// deployed contracts on a network.
type DeploymentManifest struct {
	Network    string
	ChainID    int64
	Deployer   string
	Contracts  map[string]string
	DeployedAt time.Time
}

// NewManifest assembles a manifest from confirmed deployments.
// DeployedAt is normalized to UTC with millisecond precision.
func NewManifest(network string, chainID int64, deployer DeployerIdentity, deployments []ContractDeployment, deployedAt time.Time) *DeploymentManifest {
	contracts := make(map[string]string, len(deployments))
	for _, d := range deployments {
		contracts[d.Name] = d.Address
	}
	return &DeploymentManifest{
		Network:    network,
		ChainID:    chainID,
		Deployer:   deployer.Address.Hex(),
		Contracts:  contracts,
		DeployedAt: deployedAt.UTC().Truncate(time.Millisecond),
	}
}

// Validate checks that every field consumers depend on is present.
func (m *DeploymentManifest) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: manifest is nil", ErrInvalidManifest)
	}
	if m.Network == "" {
		return fmt.Errorf("%w: network is required", ErrInvalidManifest)
	}
	if !common.IsHexAddress(m.Deployer) {
		return fmt.Errorf("%w: deployer %q is not an address", ErrInvalidManifest, m.Deployer)
	}
	if len(m.Contracts) == 0 {
		return fmt.Errorf("%w: no contracts recorded", ErrInvalidManifest)
	}
	for _, name := range m.ContractNames() {
		if !common.IsHexAddress(m.Contracts[name]) {
			return fmt.Errorf("%w: contract %s has invalid address %q", ErrInvalidManifest, name, m.Contracts[name])
		}
	}
	if m.DeployedAt.IsZero() {
		return fmt.Errorf("%w: deployedAt is required", ErrInvalidManifest)
	}
	return nil
}

// ContractNames returns the recorded contract names in sorted order.
func (m *DeploymentManifest) ContractNames() []string {
	names := make([]string, 0, len(m.Contracts))
	for name := range m.Contracts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// =============================================================================
// Network Snapshots
// =============================================================================

// NetworkSnapshot is what a run learns about the network before deploying.
type NetworkSnapshot struct {
	ChainID  int64
	Deployer DeployerIdentity
}

// Receipt is the confirmed result of a contract creation transaction.
type Receipt struct {
	Address common.Address
	TxHash  common.Hash
}
