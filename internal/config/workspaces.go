package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Workspace describes one working area served by an implementation executor.
type Workspace struct {
	// Name is the workspace identifier used in subtask routing.
	Name string `yaml:"name"`
	// Responsibilities lists what the workspace's executor is accountable for.
	Responsibilities []string `yaml:"responsibilities,omitempty"`
}

// Manifest is the project workspace manifest loaded from workspaces.yaml.
type Manifest struct {
	Workspaces []Workspace `yaml:"workspaces"`
}

// Names returns the workspace names in manifest order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Workspaces))
	for _, ws := range m.Workspaces {
		names = append(names, ws.Name)
	}
	return names
}

// DefaultManifest returns the conventional two-workspace layout used when
// no manifest file is present.
func DefaultManifest() *Manifest {
	return &Manifest{
		Workspaces: []Workspace{
			{Name: "frontend", Responsibilities: []string{"UI components", "pages", "styles"}},
			{Name: "backend", Responsibilities: []string{"API endpoints", "data models", "auth"}},
		},
	}
}

// ManifestPath returns the path to a project's workspace manifest.
func ManifestPath(projectRoot string) string {
	return filepath.Join(projectRoot, "workspaces.yaml")
}

// LoadManifest reads the workspace manifest for a project. A missing file
// yields the default manifest, not an error.
func LoadManifest(projectRoot string) (*Manifest, error) {
	data, err := os.ReadFile(ManifestPath(projectRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultManifest(), nil
		}
		return nil, fmt.Errorf("read workspace manifest: %w", err)
	}

	m := &Manifest{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse workspace manifest: %w", err)
	}
	if len(m.Workspaces) == 0 {
		return nil, fmt.Errorf("workspace manifest declares no workspaces")
	}
	for i, ws := range m.Workspaces {
		if ws.Name == "" {
			return nil, fmt.Errorf("workspace %d has no name", i)
		}
	}
	return m, nil
}

// SaveManifest writes the workspace manifest for a project.
func SaveManifest(projectRoot string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal workspace manifest: %w", err)
	}
	return os.WriteFile(ManifestPath(projectRoot), data, 0644)
}
