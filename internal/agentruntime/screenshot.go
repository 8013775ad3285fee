package agentruntime

import (
	"context"
	"log/slog"
	"time"

	"botfleet/internal/model"
	"botfleet/internal/rpc"
)

// screenshotTypeFor maps a status-class transition to the screenshot type
// the side-channel should capture it as (§4.7, §6.5): fatal transitions
// get a fatal screenshot, everything else a routine state snapshot.
func screenshotTypeFor(status model.BotStatus) string {
	if status == model.StatusFatal {
		return "fatal"
	}
	return "debug"
}

// ScreenshotListener is the screenshot side-channel (§4.7): "on any
// status-class event, an external listener may capture a screenshot; the
// listener is detached from event delivery and may not block it." It is
// wired via Runtime.Subscribe, and each invocation spawns its own
// goroutine so a slow capture or upload never stalls Emit's caller.
type ScreenshotListener struct {
	client *Client
	capture func(ctx context.Context) ([]byte, error)
	logger  *slog.Logger
}

func NewScreenshotListener(client *Client, capture func(ctx context.Context) ([]byte, error), logger *slog.Logger) *ScreenshotListener {
	return &ScreenshotListener{
		client:  client,
		capture: capture,
		logger:  logger.With("component", "screenshot-listener"),
	}
}

// OnTransition is a Subscriber; register it with Runtime.Subscribe.
func (l *ScreenshotListener) OnTransition(next, prev model.BotStatus) {
	go l.captureAndUpload(next, prev)
}

func (l *ScreenshotListener) captureAndUpload(next, prev model.BotStatus) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	png, err := l.capture(ctx)
	if err != nil {
		l.logger.Warn("screenshot capture failed", "status", next, "error", err)
		return
	}

	screenshotType := screenshotTypeFor(next)
	uploaded, err := l.client.UploadScreenshot(ctx, png, screenshotType, string(next), string(prev))
	if err != nil {
		l.logger.Warn("screenshot upload failed", "status", next, "error", err)
		return
	}

	err = l.client.AddScreenshot(ctx, rpc.AddScreenshotRequest{
		Key:        uploaded.Key,
		Type:       uploaded.Type,
		State:      uploaded.State,
		Trigger:    uploaded.Trigger,
		CapturedAt: uploaded.CapturedAt,
	})
	if err != nil {
		l.logger.Warn("screenshot attach failed", "key", uploaded.Key, "error", err)
	}
}
