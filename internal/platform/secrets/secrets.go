package secrets

import "fieldhub/internal/platform/models"

// Store seals integration credentials at rest. The sealing algorithm belongs
// to the deployment's secret-management system, not this codebase; callers
// only rely on the contract that Seal marks credentials encrypted before
// they are persisted and Open reverses it before use.
type Store interface {
	Seal(c *models.Credentials) error
	Open(c *models.Credentials) error
}

// Passthrough flags credentials as encrypted without transforming them.
// Deployments replace it with a KMS-backed implementation.
type Passthrough struct{}

func (Passthrough) Seal(c *models.Credentials) error {
	c.IsEncrypted = true
	return nil
}

func (Passthrough) Open(c *models.Credentials) error {
	return nil
}
