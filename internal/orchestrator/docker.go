package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"botfleet/internal/config"
	"botfleet/internal/model"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

var _ Adapter = (*DockerAdapter)(nil)

// DockerAdapter is the warm-pool and ephemeral Container Orchestrator
// Adapter backed by the Docker Engine API, adapted from the reference
// layout's sandbox.Container (create/start/stop/remove/exec) and
// orchestrator.Pool (orphan adoption, labels). A slot's backing container
// keeps a placeholder main process ("tail -f /dev/null") alive across
// idle periods; the actual bot agent process is launched per-assignment
// via Exec, because Docker containers have no live environment-variable
// mutation — configure-and-start (§4.2) therefore means "exec the agent
// with fresh env", not "mutate the running container".
type DockerAdapter struct {
	client      *client.Client
	logger      *slog.Logger
	networkName string
	memLimitMB  int64
	cpuLimit    float64
	images      map[string]string

	mu          sync.Mutex
	pendingEnv  map[string]map[string]string
	descriptions map[string]string
}

func NewDockerAdapter(cli *client.Client, logger *slog.Logger, cfg config.PoolConfig, orchCfg config.OrchestratorConfig) *DockerAdapter {
	return &DockerAdapter{
		client:      cli,
		logger:      logger.With("component", "orchestrator-docker"),
		networkName: cfg.NetworkName,
		memLimitMB:  cfg.ContainerMemMB,
		cpuLimit:    cfg.ContainerCPU,
		images: map[string]string{
			"meet":  orchCfg.ImageMeet,
			"teams": orchCfg.ImageTeams,
			"zoom":  orchCfg.ImageZoom,
		},
		pendingEnv:   make(map[string]map[string]string),
		descriptions: make(map[string]string),
	}
}

func (a *DockerAdapter) ImageFor(platform string) (string, error) {
	img, ok := a.images[platform]
	if !ok || img == "" {
		return "", fmt.Errorf("%w: no image configured for platform %q", model.ErrPlatformUnsupported, platform)
	}
	return img, nil
}

func (a *DockerAdapter) Create(ctx context.Context, img string, env map[string]string, name string) (string, error) {
	if err := a.ensureImage(ctx, img); err != nil {
		return "", fmt.Errorf("%w: %v", ErrOrchestrator, err)
	}

	cfg := &container.Config{
		Image: img,
		Cmd:   []string{"tail", "-f", "/dev/null"},
		Labels: map[string]string{
			"managed_by": "botfleet",
		},
	}
	hostCfg := &container.HostConfig{
		Resources: container.Resources{
			Memory:   a.memLimitMB * 1024 * 1024,
			NanoCPUs: int64(a.cpuLimit * 1e9),
		},
	}
	var netCfg *network.NetworkingConfig
	if a.networkName != "" {
		netCfg = &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{
				a.networkName: {},
			},
		}
	}

	resp, err := a.client.ContainerCreate(ctx, cfg, hostCfg, netCfg, nil, name)
	if err != nil {
		return "", fmt.Errorf("%w: create container: %v", ErrOrchestrator, err)
	}

	a.mu.Lock()
	a.pendingEnv[resp.ID] = env
	a.mu.Unlock()

	return resp.ID, nil
}

func (a *DockerAdapter) ensureImage(ctx context.Context, img string) error {
	_, err := a.client.ImageInspect(ctx, img)
	if err == nil {
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return fmt.Errorf("inspect image: %w", err)
	}

	a.logger.Info("pulling image", "image", img)
	reader, err := a.client.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image: %w", err)
	}
	defer reader.Close()

	done := make(chan struct{})
	go func() {
		_, _ = io.Copy(io.Discard, reader)
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *DockerAdapter) Start(ctx context.Context, serviceID string) error {
	inspect, err := a.client.ContainerInspect(ctx, serviceID)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return fmt.Errorf("%w: container not found", ErrOrchestrator)
		}
		return fmt.Errorf("%w: inspect: %v", ErrOrchestrator, err)
	}

	if !inspect.State.Running {
		if err := a.client.ContainerStart(ctx, serviceID, container.StartOptions{}); err != nil {
			return fmt.Errorf("%w: start: %v", ErrOrchestrator, err)
		}
	}

	a.mu.Lock()
	env := a.pendingEnv[serviceID]
	a.mu.Unlock()

	return a.launchAgent(ctx, serviceID, env)
}

// launchAgent execs the bot agent binary inside the container with env,
// mirroring the reference layout's startAgentServer (session/worker).
func (a *DockerAdapter) launchAgent(ctx context.Context, serviceID string, env map[string]string) error {
	envPairs := make([]string, 0, len(env))
	for k, v := range env {
		envPairs = append(envPairs, fmt.Sprintf("%s=%s", k, v))
	}

	execCfg := container.ExecOptions{
		Cmd:          []string{"sh", "-c", "nohup /app/bot-agent > /tmp/agent.log 2>&1 &"},
		Env:          envPairs,
		AttachStdout: true,
		AttachStderr: true,
	}
	created, err := a.client.ContainerExecCreate(ctx, serviceID, execCfg)
	if err != nil {
		return fmt.Errorf("%w: exec create: %v", ErrOrchestrator, err)
	}

	attach, err := a.client.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return fmt.Errorf("%w: exec attach: %v", ErrOrchestrator, err)
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	_, _ = stdcopy.StdCopy(&stdout, &stderr, attach.Reader)
	return nil
}

func (a *DockerAdapter) Stop(ctx context.Context, serviceID string) error {
	timeout := 10
	if err := a.client.ContainerStop(ctx, serviceID, container.StopOptions{Timeout: &timeout}); err != nil {
		if errdefs.IsNotFound(err) {
			return fmt.Errorf("%w: container not found", ErrOrchestrator)
		}
		return fmt.Errorf("%w: stop: %v", ErrOrchestrator, err)
	}
	return nil
}

func (a *DockerAdapter) Delete(ctx context.Context, serviceID string) error {
	if err := a.client.ContainerRemove(ctx, serviceID, container.RemoveOptions{Force: true}); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("%w: remove: %v", ErrOrchestrator, err)
	}
	a.mu.Lock()
	delete(a.pendingEnv, serviceID)
	delete(a.descriptions, serviceID)
	a.mu.Unlock()
	return nil
}

func (a *DockerAdapter) UpdateEnv(ctx context.Context, serviceID string, env map[string]string) error {
	a.mu.Lock()
	a.pendingEnv[serviceID] = env
	a.mu.Unlock()
	return nil
}

func (a *DockerAdapter) Describe(ctx context.Context, serviceID string) (Status, error) {
	inspect, err := a.client.ContainerInspect(ctx, serviceID)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return StatusError, fmt.Errorf("%w: container not found", ErrOrchestrator)
		}
		return StatusUnknown, fmt.Errorf("%w: inspect: %v", ErrOrchestrator, err)
	}

	if inspect.State.Health != nil {
		switch inspect.State.Health.Status {
		case "healthy":
			return StatusHealthy, nil
		case "unhealthy":
			return StatusUnhealthy, nil
		case "starting":
			return StatusStarting, nil
		}
	}

	return Normalize(inspect.State.Status), nil
}

func (a *DockerAdapter) UpdateDescription(ctx context.Context, serviceID, description string) error {
	// Docker containers carry no mutable free-text metadata field; this is
	// a best-effort, in-memory record for observability only (§4.2).
	a.mu.Lock()
	a.descriptions[serviceID] = description
	a.mu.Unlock()
	a.logger.Debug("description updated", "service_id", serviceID, "description", description)
	return nil
}

// Description returns the last best-effort description recorded for
// serviceID, empty if none.
func (a *DockerAdapter) Description(serviceID string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.descriptions[serviceID]
}

// ListOrphans lists containers labeled managed_by=botfleet left over from
// a prior process, grounded on the reference layout's orphan-adoption logic
// in orchestrator.NewPool. It returns the ids of every such container,
// stopped ones included; it does not adopt them into the pool.
func (a *DockerAdapter) ListOrphans(ctx context.Context) ([]string, error) {
	opts := container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", "managed_by=botfleet")),
	}

	containers, err := a.client.ContainerList(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: list orphans: %v", ErrOrchestrator, err)
	}

	ids := make([]string, 0, len(containers))
	for _, c := range containers {
		ids = append(ids, c.ID)
	}
	return ids, nil
}
