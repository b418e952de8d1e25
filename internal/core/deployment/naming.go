package deployment

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/artpar/safebite-deploy/internal/core/domain"
)

// =============================================================================
// Manifest Naming Functions
// =============================================================================

// ManifestName returns the file stem of a network's manifest. An explicit
// override wins; otherwise the network name is used.
//
// Example:
//
//	ManifestName("hardhat", "")      // "hardhat"
//	ManifestName("hardhat", "local") // "local"
func ManifestName(network, override string) string {
	if name := strings.TrimSpace(override); name != "" {
		return strings.TrimSuffix(name, ".json")
	}
	return network
}

// ManifestPath returns the path of a manifest inside the deployments directory.
//
// Example:
//
//	ManifestPath("deployments", "hardhat") // "deployments/hardhat.json"
func ManifestPath(dir, name string) string {
	return filepath.Join(dir, name+".json")
}

// ValidateManifestName checks that a manifest stem names a single file
// inside the deployments directory.
func ValidateManifestName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: manifest name is empty", domain.ErrInvalidManifest)
	case name == "." || strings.Contains(name, ".."):
		return fmt.Errorf("%w: manifest name %q must not contain \"..\"", domain.ErrInvalidManifest, name)
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, filepath.Separator):
		return fmt.Errorf("%w: manifest name %q must not contain path separators", domain.ErrInvalidManifest, name)
	}
	return nil
}
