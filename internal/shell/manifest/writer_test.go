package manifest

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/artpar/safebite-deploy/internal/core/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

func testManifest(deployedAt time.Time) *domain.DeploymentManifest {
	return domain.NewManifest(
		"hardhat",
		1337,
		domain.DeployerIdentity{
			Address: common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
			Balance: big.NewInt(0),
		},
		[]domain.ContractDeployment{
			{Name: "SafeBiteAccessRoles", Address: common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA").Hex()},
			{Name: "SafeBiteSupplyChain", Address: common.HexToAddress("0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB").Hex()},
		},
		deployedAt,
	)
}

var testTime = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

// =============================================================================
// Write Tests
// =============================================================================

func TestWrite_CreatesMissingDirectories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deployments", "hardhat.json")

	w := NewWriter(nil)
	require.NoError(t, w.Write(testManifest(testTime), path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.False(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestWrite_ExistingDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hardhat.json")

	require.NoError(t, NewWriter(nil).Write(testManifest(testTime), path))
	assert.FileExists(t, path)
}

func TestWrite_ByteIdentical(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := NewWriter(fs)
	m := testManifest(testTime)

	require.NoError(t, w.Write(m, "deployments/hardhat.json"))
	first, err := afero.ReadFile(fs, "deployments/hardhat.json")
	require.NoError(t, err)

	require.NoError(t, w.Write(m, "deployments/hardhat.json"))
	second, err := afero.ReadFile(fs, "deployments/hardhat.json")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestWrite_OverwritesPrevious(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := NewWriter(fs)

	require.NoError(t, w.Write(testManifest(testTime), "deployments/hardhat.json"))

	later := testManifest(testTime.Add(time.Hour))
	later.Contracts["SafeBiteSupplyChain"] = common.HexToAddress("0xCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCC").Hex()
	require.NoError(t, w.Write(later, "deployments/hardhat.json"))

	got, err := w.Read("deployments/hardhat.json")
	require.NoError(t, err)
	assert.Equal(t, later.Contracts, got.Contracts)
	assert.True(t, later.DeployedAt.Equal(got.DeployedAt))
}

func TestWrite_LeavesNoTempFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, NewWriter(fs).Write(testManifest(testTime), "deployments/hardhat.json"))

	entries, err := afero.ReadDir(fs, "deployments")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "hardhat.json", entries[0].Name())
}

func TestWrite_InvalidManifest(t *testing.T) {
	fs := afero.NewMemMapFs()
	m := testManifest(testTime)
	m.Network = ""

	err := NewWriter(fs).Write(m, "deployments/hardhat.json")
	assert.ErrorIs(t, err, domain.ErrInvalidManifest)

	exists, _ := afero.Exists(fs, "deployments/hardhat.json")
	assert.False(t, exists)
}

func TestWrite_UnwritableTarget(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())

	err := NewWriter(fs).Write(testManifest(testTime), "deployments/hardhat.json")
	assert.ErrorIs(t, err, domain.ErrIO)
}

func TestWrite_ParentIsAFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "deployments")
	require.NoError(t, os.WriteFile(blocker, []byte("not a dir"), 0o644))

	err := NewWriter(nil).Write(testManifest(testTime), filepath.Join(blocker, "hardhat.json"))
	assert.ErrorIs(t, err, domain.ErrIO)
}

// =============================================================================
// Read Tests
// =============================================================================

func TestRead_Missing(t *testing.T) {
	_, err := NewWriter(afero.NewMemMapFs()).Read("deployments/hardhat.json")
	assert.ErrorIs(t, err, ErrManifestNotFound)
}

func TestRead_Corrupt(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "deployments/hardhat.json", []byte("{"), 0o644))

	_, err := NewWriter(fs).Read("deployments/hardhat.json")
	assert.ErrorIs(t, err, domain.ErrInvalidManifest)
}
