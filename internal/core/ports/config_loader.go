package ports

import "go.trai.ch/mason/internal/core/domain"

// ConfigLoader defines the interface for loading the build configuration.
//
//go:generate go run go.uber.org/mock/mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load reads the buildfile from the given working directory and
	// returns the parsed manifest. An empty name selects the default
	// buildfile.
	Load(cwd, name string) (*domain.Manifest, error)
}
