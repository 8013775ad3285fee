// Package callback implements the bot callback-url delivery: a best-effort
// notification POSTed to the tenant-supplied URL when a bot's status
// changes (§4.8 updateStatus "triggers callback-url POST if configured";
// §9 "fire-and-forget RPCs ... per-subscriber retry policy").
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"botfleet/internal/model"
)

// Payload is the body POSTed to a bot's callback-url (§7 "a callback-url,
// if present, receives a POST with {botId, status} on DONE"). Dispatch is
// not restricted to DONE: every status update reaches a configured
// callback, matching updateStatus's unconditional trigger.
type Payload struct {
	BotID  int64           `json:"botId"`
	Status model.BotStatus `json:"status"`
}

// Dispatcher POSTs status-change notifications to bot callback URLs.
// Delivery is fire-and-forget from the caller's perspective: Dispatch
// returns immediately and retries happen on a background goroutine.
type Dispatcher struct {
	client     *http.Client
	logger     *slog.Logger
	maxRetries uint
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger.With("component", "callback"),
		maxRetries: 3,
	}
}

// Dispatch fires a callback POST in the background if url is non-empty.
// It never blocks or returns an error to the caller; failures are logged.
func (d *Dispatcher) Dispatch(botID int64, url string, status model.BotStatus) {
	if url == "" {
		return
	}

	body, err := json.Marshal(Payload{BotID: botID, Status: status})
	if err != nil {
		d.logger.Error("marshal callback payload failed", "bot_id", botID, "error", err)
		return
	}

	go d.deliver(context.Background(), botID, url, body)
}

func (d *Dispatcher) deliver(ctx context.Context, botID int64, url string, body []byte) {
	operation := func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := d.client.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return struct{}{}, fmt.Errorf("callback endpoint returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			// Client error: retrying won't help.
			return struct{}{}, backoff.Permanent(fmt.Errorf("callback endpoint returned %d", resp.StatusCode))
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(d.maxRetries+1),
	)
	if err != nil {
		d.logger.Warn("callback delivery failed", "bot_id", botID, "url", url, "error", err)
	}
}
