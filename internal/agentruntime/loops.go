package agentruntime

import (
	"context"
	"math/rand"
	"time"

	"botfleet/internal/model"
	"botfleet/internal/rpc"
)

// heartbeatLoop implements §4.7's heartbeat sub-component: every
// HeartbeatInterval, send heartbeat(bot-id) with up to 3 retries,
// exponential backoff 1s -> 10s cap, +/-25% jitter. On exhaustion it logs
// and continues rather than crashing the bot.
func (r *Runtime) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			resp, err := r.heartbeatWithRetry(ctx)
			if err != nil {
				r.logger.Warn("heartbeat exhausted retries", "error", err)
				continue
			}
			if resp.LogLevel != nil {
				r.logger.Info("log level updated by control plane", "level", *resp.LogLevel)
			}
			if resp.ShouldLeave {
				r.logger.Info("control plane requested leave")
				r.requestLeave()
				return
			}
		}
	}
}

func (r *Runtime) heartbeatWithRetry(ctx context.Context) (*rpc.HeartbeatResponse, error) {
	wait := time.Second
	var lastErr error

	for attempt := 0; attempt <= 3; attempt++ {
		resp, err := r.client.Heartbeat(ctx)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if attempt == 3 {
			break
		}

		jittered := time.Duration(float64(wait) * (0.75 + rand.Float64()*0.5))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(jittered):
		}

		wait *= 2
		if wait > 10*time.Second {
			wait = 10 * time.Second
		}
	}
	return nil, lastErr
}

// durationMonitor implements §4.7's duration sub-component: every 60s,
// compare elapsed run time against the hard maximum; on reach, emit FATAL
// with sub_code DURATION_LIMIT_EXCEEDED and request leave.
func (r *Runtime) durationMonitor(ctx context.Context) {
	start := time.Now()
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if time.Since(start) < r.cfg.MaxDuration {
				continue
			}
			r.logger.Warn("hard duration limit reached", "max", r.cfg.MaxDuration)
			r.emitter.Emit(model.EventFatal, model.EventData{
				Description: "bot exceeded hard maximum duration",
				SubCode:     model.SubCodeDurationLimitExceeded,
			})
			r.requestLeave()
			return
		}
	}
}

// chatDrainLoop implements §4.7's chat sub-component, only started when
// the bot is chat-enabled: poll dequeueMessage every ChatPollInterval
// (default 5s); on a hit, wait a uniform 1000-6000ms rate jitter before
// dispatching to the platform provider.
func (r *Runtime) chatDrainLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.ChatPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msg, err := r.client.DequeueMessage(ctx)
			if err != nil {
				r.logger.Warn("dequeue message failed", "error", err)
				continue
			}
			if msg == nil {
				continue
			}

			jitter := time.Duration(1000+rand.Intn(5000)) * time.Millisecond
			select {
			case <-ctx.Done():
				return
			case <-time.After(jitter):
			}

			if err := r.provider.SendChatMessage(ctx, *msg); err != nil {
				r.logger.Warn("send chat message failed", "error", err)
			}
		}
	}
}
