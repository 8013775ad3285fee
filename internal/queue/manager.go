// Package queue implements the Queue Manager (§4.3): a durable,
// priority-then-FIFO waiting set drained on the periodic queue-drain
// tick, grounded on the reference layout's
// session/cleanup.go worker-loop idiom.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"botfleet/internal/config"
	"botfleet/internal/eventbus"
	"botfleet/internal/model"
	"botfleet/internal/monitor"
	"botfleet/internal/pool"
	"botfleet/internal/storage"
)

// EnvBuilder resolves the per-bot container environment the Pool Manager
// needs to configure-and-start a slot (§6.2). botconfig.Builder
// implements it; the composition root passes it in.
type EnvBuilder interface {
	BuildEnv(ctx context.Context, bot *model.Bot) (map[string]string, error)
}

type Manager struct {
	queue      *storage.QueueRepository
	bots       *storage.BotRepository
	events     *storage.EventRepository
	pool       *pool.Manager
	bus        eventbus.EventBus
	envBuilder EnvBuilder
	cfg        config.QueueConfig
	logger     *slog.Logger
}

func NewManager(
	queue *storage.QueueRepository,
	bots *storage.BotRepository,
	events *storage.EventRepository,
	poolMgr *pool.Manager,
	bus eventbus.EventBus,
	envBuilder EnvBuilder,
	cfg config.QueueConfig,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		queue:      queue,
		bots:       bots,
		events:     events,
		pool:       poolMgr,
		bus:        bus,
		envBuilder: envBuilder,
		cfg:        cfg,
		logger:     logger.With("component", "queue"),
	}
}

// Enqueue clamps timeout to at most MaxQueueTimeout (a non-positive timeout
// becomes DefaultQueueTimeout), inserts the row, and
// sets the bot status to QUEUED (§4.3 enqueue).
func (m *Manager) Enqueue(ctx context.Context, botID int64, priority int, timeout time.Duration) (*model.QueueEntry, error) {
	clamped := model.ClampQueueTimeout(timeout)
	entry, err := m.queue.Enqueue(ctx, botID, priority, time.Now().Add(clamped))
	if err != nil {
		return nil, fmt.Errorf("enqueue: %w", err)
	}
	if _, err := m.bots.UpdateStatus(ctx, botID, model.StatusQueued, nil); err != nil {
		return nil, fmt.Errorf("set bot status queued: %w", err)
	}
	monitor.QueueEnqueuedTotal.Inc()
	return entry, nil
}

// Position returns the entry's 1-indexed position under the canonical
// ordering (§4.3 position).
func (m *Manager) Position(ctx context.Context, botID int64) (int, error) {
	return m.queue.Position(ctx, botID)
}

// EstimatedWaitMs is a coarse, purely informational estimate (§4.3
// estimatedWaitMs).
func (m *Manager) EstimatedWaitMs(position int) int64 {
	return model.EstimatedWaitMs(position)
}

// Cancel removes a still-queued bot's entry, used when a tenant cancels
// before deployment (§3 Queue Entry lifecycle (c)).
func (m *Manager) Cancel(ctx context.Context, botID int64) error {
	return m.queue.Remove(ctx, botID)
}

// DrainSummary reports the outcome of one drain pass (§4.5-style tick
// summary logging, applied here to queue drains too).
type DrainSummary struct {
	Expired  int
	Deployed bool
}

// Drain implements §4.3's drain algorithm: purge expired entries, then try
// to deploy the head entry onto a freshly acquired slot. It is run by the
// composition root's once-a-minute queue-drain task; pool.Manager.Release
// does not call it.
func (m *Manager) Drain(ctx context.Context, bot func(ctx context.Context, id int64) (*model.Bot, error)) (DrainSummary, error) {
	var summary DrainSummary

	expiredBotIDs, err := m.queue.PurgeExpired(ctx)
	if err != nil {
		return summary, fmt.Errorf("purge expired: %w", err)
	}
	for _, botID := range expiredBotIDs {
		if _, err := m.bots.UpdateStatus(ctx, botID, model.StatusFatal, strPtr("queue timeout")); err != nil {
			m.logger.Error("mark expired bot fatal failed", "bot_id", botID, "error", err)
			continue
		}
		if _, err := m.events.Append(ctx, botID, model.EventFatal, time.Now(), model.EventData{
			Description: "queue timeout",
			SubCode:     model.SubCodeQueueTimeout,
		}); err != nil {
			m.logger.Error("append queue-timeout event failed", "bot_id", botID, "error", err)
		}
		_ = m.bus.Publish(ctx, botID, eventbus.Event{Type: model.EventFatal, BotID: botID, Timestamp: time.Now()})
		monitor.QueueTimeoutsTotal.Inc()
	}
	summary.Expired = len(expiredBotIDs)

	entry, acquired, err := m.queue.TryDequeueHead(ctx, func(ctx context.Context, entry *model.QueueEntry) (bool, error) {
		b, err := bot(ctx, entry.BotID)
		if err != nil {
			return false, fmt.Errorf("load bot: %w", err)
		}

		env, err := m.envBuilder.BuildEnv(ctx, b)
		if err != nil {
			return false, fmt.Errorf("build env: %w", err)
		}

		slot, err := m.pool.Acquire(ctx, b.Meeting.Platform, b.ID, env)
		if err != nil {
			return false, fmt.Errorf("acquire slot: %w", err)
		}
		if slot == nil {
			return false, nil
		}

		if _, err := m.bots.UpdateStatus(ctx, b.ID, model.StatusJoiningCall, nil); err != nil {
			return false, fmt.Errorf("set bot status joining_call: %w", err)
		}
		if err := m.bots.UpdateDeployment(ctx, b.ID, model.DeploymentPlatformPool, slot.SlotName); err != nil {
			return false, fmt.Errorf("set deployment fields: %w", err)
		}
		return true, nil
	})
	if err != nil {
		return summary, fmt.Errorf("drain: %w", err)
	}
	if acquired {
		summary.Deployed = true
		if _, err := m.events.Append(ctx, entry.BotID, model.EventJoiningCall, time.Now(), model.EventData{}); err != nil {
			m.logger.Error("append joining_call event failed", "bot_id", entry.BotID, "error", err)
		}
		_ = m.bus.Publish(ctx, entry.BotID, eventbus.Event{Type: model.EventJoiningCall, BotID: entry.BotID, Timestamp: time.Now()})
		monitor.QueueDrainDeployedTotal.Inc()
	}

	return summary, nil
}

func strPtr(s string) *string { return &s }
