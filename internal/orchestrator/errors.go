package orchestrator

import "botfleet/internal/model"

// ErrOrchestrator and ErrDeploymentFailed alias the taxonomy sentinels of
// §7 so this package doesn't need to import model for every error site.
var (
	ErrOrchestrator     = model.ErrOrchestrator
	ErrDeploymentFailed = model.ErrDeploymentFailed
)
