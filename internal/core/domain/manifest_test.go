package domain

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testDeployer = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	testAccess   = common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	testSupply   = common.HexToAddress("0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB")
)

func testManifest() *DeploymentManifest {
	return NewManifest(
		"hardhat",
		1337,
		DeployerIdentity{Address: testDeployer, Balance: big.NewInt(1)},
		[]ContractDeployment{
			{Name: "SafeBiteAccessRoles", Address: testAccess.Hex()},
			{Name: "SafeBiteSupplyChain", Address: testSupply.Hex()},
		},
		time.Date(2026, 10, 19, 9, 30, 0, 123456789, time.FixedZone("CEST", 2*60*60)),
	)
}

// =============================================================================
// NewManifest Tests
// =============================================================================

func TestNewManifest_MapsDeployments(t *testing.T) {
	m := testManifest()

	assert.Equal(t, "hardhat", m.Network)
	assert.Equal(t, int64(1337), m.ChainID)
	assert.Equal(t, testDeployer.Hex(), m.Deployer)
	assert.Equal(t, map[string]string{
		"SafeBiteAccessRoles": testAccess.Hex(),
		"SafeBiteSupplyChain": testSupply.Hex(),
	}, m.Contracts)
}

func TestNewManifest_NormalizesTimestamp(t *testing.T) {
	m := testManifest()

	assert.Equal(t, time.UTC, m.DeployedAt.Location())
	assert.Equal(t, 123000000, m.DeployedAt.Nanosecond())
	assert.Equal(t, 7, m.DeployedAt.Hour())
}

// =============================================================================
// Validate Tests
// =============================================================================

func TestValidate_Valid(t *testing.T) {
	require.NoError(t, testManifest().Validate())
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *DeploymentManifest)
	}{
		{"missing network", func(m *DeploymentManifest) { m.Network = "" }},
		{"bad deployer", func(m *DeploymentManifest) { m.Deployer = "alice" }},
		{"no contracts", func(m *DeploymentManifest) { m.Contracts = map[string]string{} }},
		{"bad contract address", func(m *DeploymentManifest) { m.Contracts["SafeBiteSupplyChain"] = "0x12" }},
		{"zero timestamp", func(m *DeploymentManifest) { m.DeployedAt = time.Time{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := testManifest()
			tt.mutate(m)
			err := m.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidManifest))
		})
	}
}

func TestValidate_Nil(t *testing.T) {
	var m *DeploymentManifest
	assert.ErrorIs(t, m.Validate(), ErrInvalidManifest)
}

func TestContractNames_Sorted(t *testing.T) {
	m := testManifest()
	m.Contracts["Alpha"] = testAccess.Hex()

	assert.Equal(t, []string{"Alpha", "SafeBiteAccessRoles", "SafeBiteSupplyChain"}, m.ContractNames())
}

// =============================================================================
// DeploymentError Tests
// =============================================================================

func TestDeploymentError_FormatAndUnwrap(t *testing.T) {
	err := NewDeploymentError("DeployContract", "SafeBiteSupplyChain", "execution reverted", ErrTransaction)

	assert.Equal(t, "DeployContract SafeBiteSupplyChain: execution reverted", err.Error())
	assert.ErrorIs(t, err, ErrTransaction)

	noContract := NewDeploymentError("ResolveIdentity", "", "dial tcp: refused", ErrConnectivity)
	assert.Equal(t, "ResolveIdentity: dial tcp: refused", noContract.Error())
}
