package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"botfleet/internal/config"

	"github.com/google/uuid"
)

var _ Adapter = (*LocalAdapter)(nil)

// LocalAdapter runs the bot agent as a plain local process instead of a
// container, for the "local development" bypass of §4.4 step 3: no
// orchestrator backend required, one process per deployed bot.
type LocalAdapter struct {
	logger     *slog.Logger
	binaryPath string

	mu          sync.Mutex
	proc        map[string]*localProcess
	pendingEnv  map[string]map[string]string
	descriptions map[string]string
}

type localProcess struct {
	cmd    *exec.Cmd
	exited atomic.Bool
	err    error
}

func NewLocalAdapter(logger *slog.Logger, cfg config.WorkerConfig) *LocalAdapter {
	return &LocalAdapter{
		logger:       logger.With("component", "orchestrator-local"),
		binaryPath:   cfg.AgentBinaryPath,
		proc:         make(map[string]*localProcess),
		pendingEnv:   make(map[string]map[string]string),
		descriptions: make(map[string]string),
	}
}

func (a *LocalAdapter) ImageFor(platform string) (string, error) {
	return fmt.Sprintf("local:%s", platform), nil
}

// Create allocates a service id for a not-yet-started local process. image
// is ignored: the binary is fixed at a.binaryPath, selected once per
// process rather than per platform.
func (a *LocalAdapter) Create(ctx context.Context, image string, env map[string]string, name string) (string, error) {
	serviceID := name
	if serviceID == "" {
		serviceID = "local-" + uuid.New().String()
	}

	a.mu.Lock()
	a.pendingEnv[serviceID] = env
	a.mu.Unlock()

	return serviceID, nil
}

func (a *LocalAdapter) Start(ctx context.Context, serviceID string) error {
	a.mu.Lock()
	env := a.pendingEnv[serviceID]
	existing, running := a.proc[serviceID]
	a.mu.Unlock()

	if running && !existing.exited.Load() {
		return nil
	}

	envPairs := os.Environ()
	for k, v := range env {
		envPairs = append(envPairs, fmt.Sprintf("%s=%s", k, v))
	}

	cmd := exec.CommandContext(context.Background(), a.binaryPath)
	cmd.Env = envPairs
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start local process: %v", ErrOrchestrator, err)
	}

	lp := &localProcess{cmd: cmd}
	a.mu.Lock()
	a.proc[serviceID] = lp
	a.mu.Unlock()

	go func() {
		err := cmd.Wait()
		lp.err = err
		lp.exited.Store(true)
	}()

	return nil
}

func (a *LocalAdapter) Stop(ctx context.Context, serviceID string) error {
	a.mu.Lock()
	lp, ok := a.proc[serviceID]
	a.mu.Unlock()
	if !ok || lp.exited.Load() {
		return nil
	}
	if lp.cmd.Process == nil {
		return nil
	}
	if err := lp.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("%w: stop local process: %v", ErrOrchestrator, err)
	}
	return nil
}

func (a *LocalAdapter) Delete(ctx context.Context, serviceID string) error {
	if err := a.Stop(ctx, serviceID); err != nil {
		a.logger.Warn("stop during delete failed", "service_id", serviceID, "error", err)
	}
	a.mu.Lock()
	delete(a.proc, serviceID)
	delete(a.pendingEnv, serviceID)
	delete(a.descriptions, serviceID)
	a.mu.Unlock()
	return nil
}

func (a *LocalAdapter) UpdateEnv(ctx context.Context, serviceID string, env map[string]string) error {
	a.mu.Lock()
	a.pendingEnv[serviceID] = env
	a.mu.Unlock()
	return nil
}

func (a *LocalAdapter) Describe(ctx context.Context, serviceID string) (Status, error) {
	a.mu.Lock()
	lp, ok := a.proc[serviceID]
	a.mu.Unlock()
	if !ok {
		return StatusUnknown, nil
	}
	if lp.exited.Load() {
		if lp.err != nil {
			return StatusError, nil
		}
		return StatusExited, nil
	}
	return StatusRunning, nil
}

func (a *LocalAdapter) UpdateDescription(ctx context.Context, serviceID, description string) error {
	a.mu.Lock()
	a.descriptions[serviceID] = description
	a.mu.Unlock()
	return nil
}
