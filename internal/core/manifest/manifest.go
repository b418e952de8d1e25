// Package manifest converts deployment manifests to and from their persisted
// document form. Encoding is deterministic: the same manifest value always
// produces the same bytes.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/artpar/safebite-deploy/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// TimestampLayout is the ISO-8601 form used for deployedAt.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Document is the on-disk shape of a manifest.
type Document struct {
	Network    string            `json:"network" yaml:"network"`
	ChainID    int64             `json:"chainId" yaml:"chainId"`
	Deployer   string            `json:"deployer" yaml:"deployer"`
	Contracts  map[string]string `json:"contracts" yaml:"contracts"`
	DeployedAt string            `json:"deployedAt" yaml:"deployedAt"`
}

// ToDocument converts a manifest to its persisted shape.
func ToDocument(m *domain.DeploymentManifest) Document {
	contracts := make(map[string]string, len(m.Contracts))
	for name, addr := range m.Contracts {
		contracts[name] = addr
	}
	return Document{
		Network:    m.Network,
		ChainID:    m.ChainID,
		Deployer:   m.Deployer,
		Contracts:  contracts,
		DeployedAt: m.DeployedAt.UTC().Format(TimestampLayout),
	}
}

// FromDocument converts a persisted document back into a manifest.
func FromDocument(doc Document) (*domain.DeploymentManifest, error) {
	deployedAt, err := time.Parse(time.RFC3339Nano, doc.DeployedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: deployedAt: %v", domain.ErrInvalidManifest, err)
	}
	m := &domain.DeploymentManifest{
		Network:    doc.Network,
		ChainID:    doc.ChainID,
		Deployer:   doc.Deployer,
		Contracts:  doc.Contracts,
		DeployedAt: deployedAt.UTC(),
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Encode serializes a manifest as indented JSON with a trailing newline.
// Contract keys are emitted in sorted order.
func Encode(m *domain.DeploymentManifest) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ToDocument(m)); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses a JSON manifest document.
func Decode(data []byte) (*domain.DeploymentManifest, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidManifest, err)
	}
	return FromDocument(doc)
}

// EncodeYAML renders a manifest as YAML for operators.
func EncodeYAML(m *domain.DeploymentManifest) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(ToDocument(m)); err != nil {
		return nil, fmt.Errorf("encode manifest yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode manifest yaml: %w", err)
	}
	return buf.Bytes(), nil
}
