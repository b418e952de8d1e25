package chain

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/spf13/afero"
)

// ErrArtifactNotFound is returned when no compiled artifact exists for a contract.
var ErrArtifactNotFound = errors.New("contract artifact not found")

// Artifact is a compiled contract ready to be deployed.
type Artifact struct {
	Name     string
	ABI      abi.ABI
	Bytecode []byte
	Path     string
}

// artifactFile covers both Hardhat ("bytecode": "0x...") and Foundry
// ("bytecode": {"object": "0x..."}) output.
type artifactFile struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     json.RawMessage `json:"bytecode"`
}

// ArtifactStore resolves contract names to compiled artifacts under a
// directory.
type ArtifactStore struct {
	fs  afero.Fs
	dir string
}

// NewArtifactStore creates an artifact store rooted at dir.
func NewArtifactStore(fs afero.Fs, dir string) *ArtifactStore {
	return &ArtifactStore{fs: fs, dir: dir}
}

// Candidates returns the conventional paths tried first for a contract, in
// order. Load falls back to searching the whole directory by contract name.
func (s *ArtifactStore) Candidates(name string) []string {
	file := name + ".json"
	return []string{
		filepath.Join(s.dir, "contracts", name+".sol", file), // hardhat artifacts/
		filepath.Join(s.dir, name+".sol", file),              // foundry out/
		filepath.Join(s.dir, file),
	}
}

// Load reads and parses the artifact for a contract. A contract is found by
// name wherever its source file sits, as long as exactly one artifact
// carries that name.
func (s *ArtifactStore) Load(name string) (*Artifact, error) {
	for _, path := range s.Candidates(name) {
		art, err := s.load(name, path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		return art, err
	}

	path, err := s.search(name)
	if err != nil {
		return nil, err
	}
	return s.load(name, path)
}

func (s *ArtifactStore) load(name, path string) (*Artifact, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("read artifact %s: %w", path, err)
	}
	art, err := ParseArtifact(name, data)
	if err != nil {
		return nil, fmt.Errorf("artifact %s: %w", path, err)
	}
	art.Path = path
	return art, nil
}

// search walks the artifacts directory for <name>.json. Debug files and
// compiler build info are skipped.
func (s *ArtifactStore) search(name string) (string, error) {
	file := name + ".json"
	var matches []string

	err := afero.Walk(s.fs, s.dir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			if info.Name() == "build-info" {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Name() == file {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search artifacts in %s: %w", s.dir, err)
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s (searched %s)", ErrArtifactNotFound, name, s.dir)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("multiple artifacts named %s: %s", name, strings.Join(matches, ", "))
	}
}

// ParseArtifact decodes a compiled artifact document.
func ParseArtifact(name string, data []byte) (*Artifact, error) {
	var file artifactFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse artifact: %w", err)
	}
	if len(file.ABI) == 0 {
		return nil, errors.New("artifact has no abi")
	}

	parsed, err := abi.JSON(bytes.NewReader(file.ABI))
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}

	code, err := decodeBytecode(file.Bytecode)
	if err != nil {
		return nil, err
	}

	if file.ContractName != "" {
		name = file.ContractName
	}
	return &Artifact{Name: name, ABI: parsed, Bytecode: code}, nil
}

func decodeBytecode(raw json.RawMessage) ([]byte, error) {
	var object string
	if err := json.Unmarshal(raw, &object); err != nil {
		var nested struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(raw, &nested); err != nil {
			return nil, errors.New("artifact bytecode is neither a string nor an object")
		}
		object = nested.Object
	}

	object = strings.TrimPrefix(strings.TrimSpace(object), "0x")
	if object == "" {
		return nil, errors.New("artifact has no bytecode (abstract contract or interface?)")
	}
	if strings.Contains(object, "__") {
		return nil, errors.New("artifact bytecode has unlinked library placeholders")
	}

	code, err := hex.DecodeString(object)
	if err != nil {
		return nil, fmt.Errorf("decode bytecode: %w", err)
	}
	return code, nil
}
