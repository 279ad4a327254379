// Package module defines the versioned software unit that Switchyard
// deploys across a fleet of nodes.
package module

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Module is an immutable, versioned deployable unit.
type Module struct {
	Name        string            `json:"name" validate:"required"`
	Version     string            `json:"version" validate:"required"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ParsedVersion parses Version as a semantic version. The pipeline's Validate
// stage uses this to reject an unparseable version before any node is
// touched.
func (m Module) ParsedVersion() (*semver.Version, error) {
	v, err := semver.NewVersion(m.Version)
	if err != nil {
		return nil, fmt.Errorf("parsing module version %q: %w", m.Version, err)
	}
	return v, nil
}

// Validate checks that the module has the minimum fields a deployment needs.
func (m Module) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("module name must not be empty")
	}
	if _, err := m.ParsedVersion(); err != nil {
		return err
	}
	return nil
}
