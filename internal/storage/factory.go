// factory.go implements the storage backend registry, mapping backend names
// (local, s3, azure, gcs) to constructor functions.
package storage

import (
	"fmt"

	"github.com/qa-dashboard/qa-dashboard/internal/config"
)

// FactoryFunc creates a storage backend from the application configuration
type FactoryFunc func(*config.Config) (Storage, error)

var factories = make(map[string]FactoryFunc)

// Register registers a storage backend factory
func Register(name string, factory FactoryFunc) {
	factories[name] = factory
}

// NewStorage creates the configured storage backend. Backend "none" yields a nil Storage,
// meaning documents are not available and callers fall back to a placeholder.
func NewStorage(cfg *config.Config) (Storage, error) {
	if cfg.Storage.Backend == "none" {
		return nil, nil
	}

	factory, ok := factories[cfg.Storage.Backend]
	if !ok {
		return nil, fmt.Errorf("unsupported storage backend: %s (must be 'none', 'local', 'azure', 's3', or 'gcs')", cfg.Storage.Backend)
	}

	return factory(cfg)
}
