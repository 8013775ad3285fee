// Package orchestrator implements the Container Orchestrator Adapter
// (§4.1, §6.1): an abstract create/start/stop/delete/describe surface for
// a bot container, independent of the backend that actually runs it.
package orchestrator

import (
	"context"
	"fmt"
	"time"
)

// Status is the normalized describe-status vocabulary (§6.1). Tokens not
// in this set are mapped to Unknown and treated as in-progress.
type Status string

const (
	StatusRunning    Status = "running"
	StatusHealthy    Status = "healthy"
	StatusStarting   Status = "starting"
	StatusRestarting Status = "restarting"
	StatusUnhealthy  Status = "unhealthy"
	StatusExited     Status = "exited"
	StatusStopped    Status = "stopped"
	StatusError      Status = "error"
	StatusDegraded   Status = "degraded"
	StatusUnknown    Status = "unknown"
)

// Normalize maps an arbitrary backend status string onto the nine known
// tokens, defaulting to Unknown (§6.1).
func Normalize(raw string) Status {
	switch Status(raw) {
	case StatusRunning, StatusHealthy, StatusStarting, StatusRestarting,
		StatusUnhealthy, StatusExited, StatusStopped, StatusError, StatusDegraded:
		return Status(raw)
	default:
		return StatusUnknown
	}
}

// Adapter is the capability set every orchestrator backend must implement
// (§4.1, §6.1). Transport errors and non-2xx responses raise a
// distinguished error wrapping ErrOrchestrator; primitives never retry
// internally, retry is the caller's policy.
type Adapter interface {
	// Create provisions (but does not necessarily start) a backing
	// container for image with the given environment, optionally under a
	// caller-chosen name, and returns an opaque service id.
	Create(ctx context.Context, image string, env map[string]string, name string) (serviceID string, err error)
	Start(ctx context.Context, serviceID string) error
	Stop(ctx context.Context, serviceID string) error
	Delete(ctx context.Context, serviceID string) error
	// UpdateEnv bulk-replaces the environment of serviceID. Implementations
	// for backends without live env mutation may recreate the container in
	// place, preserving the service id's external identity.
	UpdateEnv(ctx context.Context, serviceID string, env map[string]string) error
	Describe(ctx context.Context, serviceID string) (Status, error)
	// UpdateDescription is a best-effort metadata write for observability
	// (§4.2): failure here is logged, never fatal.
	UpdateDescription(ctx context.Context, serviceID, description string) error
	// ImageFor resolves the container image for platform, per the
	// adapter's own image-selection policy (§4.1 "Image selection from
	// meeting platform is the adapter's concern").
	ImageFor(platform string) (string, error)
}

// WaitResult is the outcome of WaitForDeployment.
type WaitResult struct {
	Success bool
	Status  Status
	Err     error
}

// WaitForDeployment polls Describe every pollInterval until status settles
// (§4.1): success on {running, healthy}; immediate failure on {error,
// degraded}; {exited, stopped} fail only after gracePeriod has elapsed
// since the wait began, because image pull/extract can legitimately take
// 5-25 minutes; hard timeout at timeout.
func WaitForDeployment(ctx context.Context, a Adapter, serviceID string, timeout, gracePeriod, pollInterval time.Duration) WaitResult {
	start := time.Now()
	deadline := start.Add(timeout)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		status, err := a.Describe(ctx, serviceID)
		if err != nil {
			return WaitResult{Success: false, Status: StatusUnknown, Err: err}
		}

		switch {
		case status == StatusRunning || status == StatusHealthy:
			return WaitResult{Success: true, Status: status}
		case status == StatusError || status == StatusDegraded:
			return WaitResult{Success: false, Status: status, Err: fmt.Errorf("%w: status=%s", ErrOrchestrator, status)}
		case (status == StatusExited || status == StatusStopped) && time.Since(start) > gracePeriod:
			return WaitResult{Success: false, Status: status, Err: fmt.Errorf("%w: status=%s after grace period", ErrOrchestrator, status)}
		}

		if time.Now().After(deadline) {
			return WaitResult{Success: false, Status: status, Err: fmt.Errorf("%w: deployment wait timed out", ErrOrchestrator)}
		}

		select {
		case <-ctx.Done():
			return WaitResult{Success: false, Status: status, Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

// DeployWithRetry creates and starts (first attempt) or restarts (subsequent
// attempts) serviceID with exponential backoff capped at 30s, up to
// maxRetries. On final failure it deletes the service id and surfaces the
// last error (§4.1).
func DeployWithRetry(ctx context.Context, a Adapter, image string, env map[string]string, name string, maxRetries int, timeout, gracePeriod, pollInterval time.Duration) (serviceID string, err error) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt == 0 {
			serviceID, err = a.Create(ctx, image, env, name)
			if err == nil {
				err = a.Start(ctx, serviceID)
			}
		} else {
			err = a.Start(ctx, serviceID)
		}
		if err == nil {
			result := WaitForDeployment(ctx, a, serviceID, timeout, gracePeriod, pollInterval)
			if result.Success {
				return serviceID, nil
			}
			err = result.Err
		}

		if attempt == maxRetries-1 {
			break
		}

		select {
		case <-ctx.Done():
			return serviceID, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	if serviceID != "" {
		_ = a.Delete(context.Background(), serviceID)
	}
	return "", fmt.Errorf("%w: %v", ErrDeploymentFailed, err)
}
