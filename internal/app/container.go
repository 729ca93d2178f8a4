package app

import (
	"fmt"

	"github.com/hung319/magicstudio2api/internal/config"
	"github.com/hung319/magicstudio2api/internal/executor"
	"github.com/hung319/magicstudio2api/internal/observability"
	"github.com/hung319/magicstudio2api/internal/upstream"
)

// Container aggregates runtime dependencies for handlers.
type Container struct {
	Config        *config.Config
	Upstream      *upstream.Client
	Executor      *executor.Executor
	Observability *observability.Provider
}

// NewContainer builds a dependency container from the provided primitives.
func NewContainer(cfg *config.Config, obs *observability.Provider) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	client := upstream.New(cfg.Upstream)

	var metrics executor.Metrics
	if obs != nil {
		metrics = obs
	}

	return &Container{
		Config:        cfg,
		Upstream:      client,
		Executor:      executor.New(client, metrics),
		Observability: obs,
	}, nil
}
