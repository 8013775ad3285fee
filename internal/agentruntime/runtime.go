// Package agentruntime implements the Bot Agent Runtime (§4.7): the
// single long-running, internally cooperative process that runs inside
// each deployed bot container. It is grounded on the reference layout's
// SessionTaskWorker (structured-logging-per-component, publish-on-every-
// transition shape) generalized from a one-shot container-provisioning
// task into a continuously running per-bot process with several
// cooperating sub-loops.
package agentruntime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"botfleet/internal/model"
	"botfleet/internal/platformprovider"
)

// Config parameterizes a single bot's in-container runtime, populated
// from the env vars the Pool Manager injects at deploy time (§6.2).
type Config struct {
	BotID             int64
	Token             string
	ControlPlaneURL   string
	Platform          model.Platform
	ChatEnabled       bool
	HeartbeatInterval time.Duration
	MaxDuration       time.Duration
	ChatPollInterval  time.Duration
}

// Runtime hosts the event emitter, heartbeat loop, duration monitor, chat
// queue drain, and screenshot side-channel for one bot (§4.7).
type Runtime struct {
	cfg      Config
	client   *Client
	emitter  *Emitter
	provider platformprovider.Provider
	logger   *slog.Logger

	leaveRequested chan struct{}
	leaveOnce      sync.Once
}

func NewRuntime(cfg Config, registry *platformprovider.Registry, logger *slog.Logger) (*Runtime, error) {
	provider, err := registry.For(cfg.Platform)
	if err != nil {
		return nil, err
	}

	client := NewClient(cfg.ControlPlaneURL, cfg.BotID, cfg.Token)
	logger = logger.With("component", "agent-runtime", "bot_id", cfg.BotID)

	return &Runtime{
		cfg:            cfg,
		client:         client,
		emitter:        NewEmitter(client, model.StatusDeploying, logger),
		provider:       provider,
		logger:         logger,
		leaveRequested: make(chan struct{}),
	}, nil
}

// Subscribe wires an external listener — the screenshot side-channel is
// the intended caller — to status-class transitions (§4.7). The listener
// must not block; Emit invokes subscribers synchronously and in order.
func (r *Runtime) Subscribe(s Subscriber) {
	r.emitter.Subscribe(s)
}

// Emitter exposes the runtime's event emitter so the outer orchestration
// (main.go) can report provider-observed events (participant join/leave,
// sign-in-required, captcha-detected, etc.) through the same pipeline.
func (r *Runtime) Emitter() *Emitter {
	return r.emitter
}

// Client exposes the control-plane RPC client so the outer orchestration
// can wire side-channels (the screenshot listener) that need to call the
// control plane independently of the emitter.
func (r *Runtime) Client() *Client {
	return r.client
}

// Provider exposes the resolved platform provider so the outer
// orchestration can source the screenshot side-channel's capture function
// from it.
func (r *Runtime) Provider() platformprovider.Provider {
	return r.provider
}

// requestLeave is idempotent: the heartbeat loop, the duration monitor,
// and the provider's own automatic-leave timers may all race to call it.
func (r *Runtime) requestLeave() {
	r.leaveOnce.Do(func() { close(r.leaveRequested) })
}

// Run drives every sub-component until the meeting ends or a leave is
// requested, then performs graceful shutdown (§4.7). The returned exit
// code is 0 on a clean DONE, 1 on FATAL or an uncaught failure — the
// caller (cmd/agent) is expected to os.Exit with it.
func (r *Runtime) Run(ctx context.Context) (exitCode int) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("uncaught panic in runtime", "panic", rec)
			if !r.emitter.FatalEmitted() {
				r.emitter.Emit(model.EventFatal, model.EventData{Description: fmt.Sprintf("panic: %v", rec)})
			}
			exitCode = 1
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error { r.heartbeatLoop(gctx); return nil })
	g.Go(func() error { r.durationMonitor(gctx); return nil })
	if r.cfg.ChatEnabled {
		g.Go(func() error { r.chatDrainLoop(gctx); return nil })
	}
	g.Go(func() error {
		err := r.provider.Run(gctx)
		cancel() // the provider exiting — meeting ended, join failed, leave completed — tears every other loop down
		if errors.Is(err, context.Canceled) {
			// Stopped by a requested leave or by shutdown, not a provider failure.
			return nil
		}
		return err
	})
	g.Go(func() error {
		select {
		case <-r.leaveRequested:
			leaveCtx, leaveCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer leaveCancel()
			if err := r.provider.RequestLeave(leaveCtx); err != nil {
				r.logger.Warn("request leave failed", "error", err)
			}
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	runErr := g.Wait()

	switch {
	case runErr != nil && !r.emitter.FatalEmitted():
		r.emitter.Emit(model.EventFatal, model.EventData{Description: runErr.Error()})
	case !r.emitter.FatalEmitted() && r.emitter.Status() != model.StatusDone:
		r.emitter.Emit(model.EventDone, model.EventData{})
	}

	cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cleanupCancel()
	if err := r.provider.Cleanup(cleanupCtx); err != nil {
		r.logger.Warn("provider cleanup failed", "error", err)
	}

	if r.emitter.FatalEmitted() {
		return 1
	}
	return 0
}
