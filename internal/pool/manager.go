// Package pool implements the Pool Manager (§4.2): acquisition and
// release of warm container slots bounded by MAX_POOL_SIZE per platform,
// grounded on the reference layout's orchestrator.Pool lifecycle but
// backed by Postgres rows rather than an in-memory channel so acquisition
// is safe across multiple control-plane processes.
package pool

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"botfleet/internal/config"
	"botfleet/internal/model"
	"botfleet/internal/monitor"
	"botfleet/internal/orchestrator"
	"botfleet/internal/storage"
)

type Manager struct {
	slots   *storage.SlotRepository
	adapter orchestrator.Adapter
	cfg     config.PoolConfig
	logger  *slog.Logger
}

func NewManager(slots *storage.SlotRepository, adapter orchestrator.Adapter, cfg config.PoolConfig, logger *slog.Logger) *Manager {
	return &Manager{
		slots:   slots,
		adapter: adapter,
		cfg:     cfg,
		logger:  logger.With("component", "pool"),
	}
}

// Acquire implements §4.2's acquisition algorithm. A nil, nil result means
// the pool is saturated for platform and the caller should enqueue.
func (m *Manager) Acquire(ctx context.Context, platform model.Platform, botID int64, env map[string]string) (*model.Slot, error) {
	start := time.Now()
	defer func() { monitor.PoolAcquisitionLatency.Observe(time.Since(start).Seconds()) }()

	slot, err := m.slots.AcquireIdle(ctx, platform, botID)
	if err != nil {
		return nil, fmt.Errorf("acquire idle slot: %w", err)
	}
	if slot != nil {
		if err := m.configureAndStart(ctx, slot, env); err != nil {
			return nil, err
		}
		if err := m.slots.MarkBusy(ctx, slot.ID); err != nil {
			return nil, fmt.Errorf("mark slot busy: %w", err)
		}
		m.describe(ctx, slot, fmt.Sprintf("[BUSY] Bot #%d - %s", botID, time.Now().Format(time.RFC3339)))
		slot.Status = model.SlotBusy
		return slot, nil
	}

	count, err := m.slots.Count(ctx, platform)
	if err != nil {
		return nil, fmt.Errorf("count slots: %w", err)
	}
	if count >= m.cfg.MaxPoolSize {
		return nil, nil
	}

	ordinal := count + 1
	slotName := fmt.Sprintf("pool-%s-%03d", platform, ordinal)

	image, err := m.adapter.ImageFor(string(platform))
	if err != nil {
		return nil, fmt.Errorf("resolve image: %w", err)
	}

	placeholderEnv := map[string]string{"NODE_ENV": "production"}
	// New slots go through DeployWithRetry rather than a bare Create+Start:
	// a cold pull can legitimately take minutes, and a flaky first start
	// should not sink the whole slot (§4.1 exponential backoff, grace
	// period, delete-on-final-failure).
	serviceID, err := orchestrator.DeployWithRetry(ctx, m.adapter, image, placeholderEnv, slotName,
		m.cfg.MaxDeployRetries, m.cfg.DeployTimeout, m.cfg.DeployGracePeriod, m.cfg.DeployPollInterval)
	if err != nil {
		monitor.PoolOrchestratorErrorsTotal.Inc()
		return nil, fmt.Errorf("%w: create backing container: %v", orchestrator.ErrOrchestrator, err)
	}
	monitor.PoolSlotsCreatedTotal.WithLabelValues(string(platform)).Inc()

	slot, err = m.slots.CreateDeploying(ctx, slotName, platform, botID)
	if err != nil {
		return nil, fmt.Errorf("create slot row: %w", err)
	}
	if err := m.slots.SetContainerServiceID(ctx, slot.ID, serviceID); err != nil {
		return nil, fmt.Errorf("set container service id: %w", err)
	}
	slot.ContainerServiceID = serviceID

	if err := m.configureAndStart(ctx, slot, env); err != nil {
		return nil, err
	}
	if err := m.slots.MarkBusy(ctx, slot.ID); err != nil {
		return nil, fmt.Errorf("mark slot busy: %w", err)
	}
	m.describe(ctx, slot, fmt.Sprintf("[BUSY] Bot #%d - %s", botID, time.Now().Format(time.RFC3339)))
	slot.Status = model.SlotBusy

	return slot, nil
}

// ConfigureAndStart is exported for the Queue Manager's drain path, which
// reuses an already-acquired slot's configure-and-start step (§4.3 step
// 2) separately from Acquire.
func (m *Manager) ConfigureAndStart(ctx context.Context, slot *model.Slot, env map[string]string) error {
	return m.configureAndStart(ctx, slot, env)
}

func (m *Manager) configureAndStart(ctx context.Context, slot *model.Slot, env map[string]string) error {
	if err := m.adapter.UpdateEnv(ctx, slot.ContainerServiceID, env); err != nil {
		monitor.PoolOrchestratorErrorsTotal.Inc()
		return fmt.Errorf("%w: update env: %v", orchestrator.ErrOrchestrator, err)
	}
	if err := m.adapter.Start(ctx, slot.ContainerServiceID); err != nil {
		monitor.PoolOrchestratorErrorsTotal.Inc()
		return fmt.Errorf("%w: start: %v", orchestrator.ErrOrchestrator, err)
	}
	return nil
}

// Release implements §4.2's release algorithm: find the slot owned by
// botID, stop its backing container, and recycle or error it.
func (m *Manager) Release(ctx context.Context, botID int64) error {
	slot, err := m.slots.FindByBotID(ctx, botID)
	if err != nil {
		return fmt.Errorf("find slot by bot: %w", err)
	}
	if slot == nil {
		m.logger.Warn("release: no slot assigned to bot", "bot_id", botID)
		return nil
	}

	if err := m.adapter.Stop(ctx, slot.ContainerServiceID); err != nil {
		if markErr := m.slots.MarkError(ctx, slot.ID, err.Error()); markErr != nil {
			return fmt.Errorf("mark slot error after failed stop: %w", markErr)
		}
		m.describe(ctx, slot, fmt.Sprintf("[ERROR] %s - %s", err.Error(), time.Now().Format(time.RFC3339)))
		return nil
	}

	if err := m.slots.ReleaseToIdle(ctx, slot.ID); err != nil {
		return fmt.Errorf("release slot to idle: %w", err)
	}
	m.describe(ctx, slot, fmt.Sprintf("[IDLE] Available - Last used: %s", time.Now().Format(time.RFC3339)))
	return nil
}

// describe best-effort mirrors the slot's state onto the orchestrator's
// description metadata (§4.2 Observability); failure is logged, never
// fatal.
func (m *Manager) describe(ctx context.Context, slot *model.Slot, description string) {
	if err := m.adapter.UpdateDescription(ctx, slot.ContainerServiceID, description); err != nil {
		m.logger.Warn("update description failed", "slot_id", slot.ID, "error", err)
	}
}
