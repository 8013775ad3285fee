package agentruntime

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"botfleet/internal/model"
)

// Subscriber receives local status transitions (§4.7): the screenshot
// side-channel is wired exactly this way, detached from event delivery.
type Subscriber func(next, prev model.BotStatus)

// Emitter is the Bot Agent Runtime's event emitter (§4.7): for
// status-class events it updates in-memory state, reports to the control
// plane fire-and-forget, and fans transitions out to local subscribers
// without letting any of that block the caller. Each report is a single
// attempt: a failed reportEvent or updateStatus call is logged and not
// retried.
type Emitter struct {
	client *Client
	logger *slog.Logger

	mu     sync.Mutex
	status model.BotStatus
	subs   []Subscriber

	fatal atomic.Bool
}

func NewEmitter(client *Client, initial model.BotStatus, logger *slog.Logger) *Emitter {
	return &Emitter{
		client: client,
		status: initial,
		logger: logger.With("component", "event-emitter"),
	}
}

func (e *Emitter) Subscribe(s Subscriber) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs = append(e.subs, s)
}

func (e *Emitter) Status() model.BotStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// FatalEmitted reports whether a FATAL event has already been sent, so
// graceful shutdown knows the correct exit code (§4.7).
func (e *Emitter) FatalEmitted() bool {
	return e.fatal.Load()
}

// Emit publishes eventType with data. Status-class events (§6.3) update the
// in-memory projection before anything else touches it, so a subscriber
// invoked synchronously below always sees the post-transition state.
func (e *Emitter) Emit(eventType model.EventType, data model.EventData) {
	next, isStatusClass := model.StatusFor(eventType)

	var prev model.BotStatus
	if isStatusClass {
		e.mu.Lock()
		prev = e.status
		e.status = next
		e.mu.Unlock()
		if eventType == model.EventFatal {
			e.fatal.Store(true)
		}
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.client.ReportEvent(ctx, eventType, data); err != nil {
			e.logger.Warn("report event failed", "event", eventType, "error", err)
		}
		if isStatusClass {
			if err := e.client.UpdateStatus(ctx, next); err != nil {
				e.logger.Warn("update status failed", "status", next, "error", err)
			}
		}
	}()

	if !isStatusClass {
		return
	}
	e.mu.Lock()
	subs := append([]Subscriber(nil), e.subs...)
	e.mu.Unlock()
	for _, s := range subs {
		s(next, prev)
	}
}
