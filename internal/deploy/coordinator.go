// Package deploy implements the Deployment Coordinator (§4.4): the single
// deploy(bot-id, queueTimeoutMs?) operation that lands a bot on a warm pool
// slot, a local-development process, or the durable queue.
package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"botfleet/internal/botconfig"
	"botfleet/internal/config"
	"botfleet/internal/eventbus"
	"botfleet/internal/model"
	"botfleet/internal/monitor"
	"botfleet/internal/orchestrator"
	"botfleet/internal/pool"
	"botfleet/internal/queue"
	"botfleet/internal/storage"
)

type Coordinator struct {
	bots         *storage.BotRepository
	events       *storage.EventRepository
	pool         *pool.Manager
	queue        *queue.Manager
	envBuilder   *botconfig.Builder
	localAdapter orchestrator.Adapter
	worker       config.WorkerConfig
	queueCfg     config.QueueConfig
	bus          eventbus.EventBus
	logger       *slog.Logger
}

func NewCoordinator(
	bots *storage.BotRepository,
	events *storage.EventRepository,
	poolMgr *pool.Manager,
	queueMgr *queue.Manager,
	envBuilder *botconfig.Builder,
	localAdapter orchestrator.Adapter,
	worker config.WorkerConfig,
	queueCfg config.QueueConfig,
	bus eventbus.EventBus,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		bots:         bots,
		events:       events,
		pool:         poolMgr,
		queue:        queueMgr,
		envBuilder:   envBuilder,
		localAdapter: localAdapter,
		worker:       worker,
		queueCfg:     queueCfg,
		bus:          bus,
		logger:       logger.With("component", "deploy"),
	}
}

// Result is deploy's return value (§4.4).
type Result struct {
	Bot             *model.Bot
	Queued          bool
	QueuePosition   int
	EstimatedWaitMs int64
}

// ShouldDeployImmediately is true iff startTime is absent or within 5
// minutes of now (§4.4 auxiliary).
func ShouldDeployImmediately(startTime *time.Time) bool {
	if startTime == nil {
		return true
	}
	return time.Until(*startTime) <= 5*time.Minute
}

// Deploy implements §4.4's algorithm.
func (c *Coordinator) Deploy(ctx context.Context, botID int64, queueTimeout *time.Duration) (Result, error) {
	bot, err := c.bots.GetByID(ctx, botID)
	if err != nil {
		return Result{}, err
	}

	env, err := c.envBuilder.BuildEnv(ctx, bot)
	if err != nil {
		return Result{}, c.fail(ctx, bot, fmt.Errorf("build bot config: %w", err))
	}

	if c.worker.LocalDevelopment {
		return c.deployLocal(ctx, bot, env)
	}
	return c.deployPooled(ctx, bot, env, queueTimeout)
}

func (c *Coordinator) deployLocal(ctx context.Context, bot *model.Bot, env map[string]string) (Result, error) {
	if _, err := c.bots.UpdateStatus(ctx, bot.ID, model.StatusDeploying, nil); err != nil {
		return Result{}, c.fail(ctx, bot, fmt.Errorf("set status deploying: %w", err))
	}
	c.record(ctx, bot.ID, model.EventDeploying, model.EventData{})

	image, err := c.localAdapter.ImageFor(string(bot.Meeting.Platform))
	if err != nil {
		return Result{}, c.fail(ctx, bot, fmt.Errorf("resolve local image: %w", err))
	}
	serviceID, err := c.localAdapter.Create(ctx, image, env, fmt.Sprintf("bot-%d", bot.ID))
	if err != nil {
		return Result{}, c.fail(ctx, bot, fmt.Errorf("%w: spawn local process: %v", orchestrator.ErrOrchestrator, err))
	}
	if err := c.localAdapter.Start(ctx, serviceID); err != nil {
		return Result{}, c.fail(ctx, bot, fmt.Errorf("%w: start local process: %v", orchestrator.ErrOrchestrator, err))
	}

	if err := c.bots.UpdateDeployment(ctx, bot.ID, model.DeploymentPlatformLocal, serviceID); err != nil {
		return Result{}, c.fail(ctx, bot, fmt.Errorf("set deployment fields: %w", err))
	}
	if _, err := c.bots.UpdateStatus(ctx, bot.ID, model.StatusJoiningCall, nil); err != nil {
		return Result{}, c.fail(ctx, bot, fmt.Errorf("set status joining_call: %w", err))
	}
	c.record(ctx, bot.ID, model.EventJoiningCall, model.EventData{})
	c.publish(ctx, bot.ID, model.EventJoiningCall)
	monitor.DeployImmediateTotal.Inc()

	bot.Status = model.StatusJoiningCall
	return Result{Bot: bot, Queued: false}, nil
}

func (c *Coordinator) deployPooled(ctx context.Context, bot *model.Bot, env map[string]string, queueTimeout *time.Duration) (Result, error) {
	slot, err := c.pool.Acquire(ctx, bot.Meeting.Platform, bot.ID, env)
	if err != nil {
		return Result{}, c.fail(ctx, bot, fmt.Errorf("acquire slot: %w", err))
	}

	if slot != nil {
		if _, err := c.bots.UpdateStatus(ctx, bot.ID, model.StatusDeploying, nil); err != nil {
			return Result{}, c.fail(ctx, bot, fmt.Errorf("set status deploying: %w", err))
		}
		c.record(ctx, bot.ID, model.EventDeploying, model.EventData{})
		if err := c.bots.UpdateDeployment(ctx, bot.ID, model.DeploymentPlatformPool, slot.SlotName); err != nil {
			return Result{}, c.fail(ctx, bot, fmt.Errorf("set deployment fields: %w", err))
		}
		if _, err := c.bots.UpdateStatus(ctx, bot.ID, model.StatusJoiningCall, nil); err != nil {
			return Result{}, c.fail(ctx, bot, fmt.Errorf("set status joining_call: %w", err))
		}
		c.record(ctx, bot.ID, model.EventJoiningCall, model.EventData{})
		c.publish(ctx, bot.ID, model.EventJoiningCall)
		monitor.DeployImmediateTotal.Inc()

		bot.Status = model.StatusJoiningCall
		return Result{Bot: bot, Queued: false}, nil
	}

	timeout := c.queueCfg.DefaultTimeout
	if queueTimeout != nil {
		timeout = *queueTimeout
	}
	if _, err := c.queue.Enqueue(ctx, bot.ID, model.DefaultQueuePriority, timeout); err != nil {
		return Result{}, c.fail(ctx, bot, fmt.Errorf("enqueue: %w", err))
	}

	position, err := c.queue.Position(ctx, bot.ID)
	if err != nil {
		return Result{}, c.fail(ctx, bot, fmt.Errorf("read queue position: %w", err))
	}

	monitor.DeployQueuedTotal.Inc()
	bot.Status = model.StatusQueued
	return Result{
		Bot:             bot,
		Queued:          true,
		QueuePosition:   position,
		EstimatedWaitMs: c.queue.EstimatedWaitMs(position),
	}, nil
}

// fail marks the bot FATAL with the triggering error's message and
// re-raises it (§4.4 step 5).
func (c *Coordinator) fail(ctx context.Context, bot *model.Bot, cause error) error {
	message := cause.Error()
	if _, err := c.bots.UpdateStatus(ctx, bot.ID, model.StatusFatal, &message); err != nil {
		c.logger.Error("mark bot fatal failed", "bot_id", bot.ID, "error", err)
	}
	c.record(ctx, bot.ID, model.EventFatal, model.EventData{Description: message})
	c.publish(ctx, bot.ID, model.EventFatal)
	monitor.DeployFailedTotal.Inc()
	return cause
}

// record appends a status-class event to the durable Event Log alongside
// every control-plane-driven UpdateStatus call, so bot.status always
// equals the most recent status-class event (§8 "Status projection") even
// for transitions (DEPLOYING, JOINING_CALL, FATAL) the coordinator drives
// before the agent itself is running to report them.
func (c *Coordinator) record(ctx context.Context, botID int64, eventType model.EventType, data model.EventData) {
	if _, err := c.events.Append(ctx, botID, eventType, time.Now(), data); err != nil {
		c.logger.Error("append event failed", "bot_id", botID, "event_type", eventType, "error", err)
	}
}

func (c *Coordinator) publish(ctx context.Context, botID int64, eventType model.EventType) {
	if err := c.bus.Publish(ctx, botID, eventbus.Event{Type: eventType, BotID: botID, Timestamp: time.Now()}); err != nil {
		c.logger.Warn("publish event failed", "bot_id", botID, "error", err)
	}
}
