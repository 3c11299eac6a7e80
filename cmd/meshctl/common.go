package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/wgmesh/meshctl/cmd/meshctl/internal/meshcfg"
	"github.com/wgmesh/meshctl/pkg/mesh"
	"github.com/wgmesh/meshctl/pkg/state"
)

// buildEngine loads the YAML document at configPath, opens an Engine rooted
// at stateDir (defaulting if empty), and replays the document through the
// Engine's Network. Host key material is persisted under
// <stateDir>/keys.
func buildEngine(configPath string) (*mesh.Engine, error) {
	doc, err := meshcfg.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	effectiveMock := mockNet || doc.MockNet
	engine, err := mesh.NewEngine(stateDir, effectiveMock)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenEngine, err)
	}

	keysDir := filepath.Join(resolvedStateDir(), "keys")
	keyStore, err := state.NewKeyStore(keysDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenEngine, err)
	}

	if err := doc.Build(engine.Network, keyStore, engine.RestartNotifier); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildConfig, err)
	}

	return engine, nil
}

// newEphemeralKeyStore returns a KeyStore rooted in a fresh temp directory,
// used by validate so a dry-run never touches the real persisted key
// material under the state directory.
func newEphemeralKeyStore() (*state.KeyStore, error) {
	dir, err := os.MkdirTemp("", "meshctl-validate-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenEngine, err)
	}
	return state.NewKeyStore(dir)
}

// resolvedStateDir mirrors the default NewEngine applies when stateDir is
// empty, so the key store lives alongside the event log it was opened
// next to.
func resolvedStateDir() string {
	if stateDir != "" {
		return stateDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return mesh.DefaultStateDir
	}
	return filepath.Join(home, mesh.DefaultStateDir)
}
