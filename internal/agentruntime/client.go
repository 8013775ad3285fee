package agentruntime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"botfleet/internal/model"
	"botfleet/internal/rpc"
)

// Client is the Bot Agent Runtime's HTTP client for the agent-facing half
// of the Control-Plane RPC Surface (§4.8), grounded on the callback
// dispatcher's plain net/http usage rather than a generated RPC stub,
// since the runtime and control plane share only this package's DTOs.
type Client struct {
	baseURL    string
	botID      int64
	token      string
	httpClient *http.Client
}

func NewClient(baseURL string, botID int64, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		botID:      botID,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) url(path string) string {
	return fmt.Sprintf("%s/v1/agent/bots/%d%s", c.baseURL, c.botID, path)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Heartbeat implements "heartbeat(bot-id) -> {shouldLeave?, logLevel?}" (§4.8).
func (c *Client) Heartbeat(ctx context.Context) (*rpc.HeartbeatResponse, error) {
	var out rpc.HeartbeatResponse
	if err := c.do(ctx, http.MethodPost, "/heartbeat", rpc.HeartbeatRequest{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReportEvent implements "reportEvent(bot-id, {event-type, event-time, data?})" (§4.8).
func (c *Client) ReportEvent(ctx context.Context, eventType model.EventType, data model.EventData) error {
	return c.do(ctx, http.MethodPost, "/events", rpc.ReportEventRequest{
		EventType: eventType,
		EventTime: time.Now(),
		Data:      data,
	}, nil)
}

// UpdateStatus implements "updateStatus(bot-id, status, ...)" (§4.8).
func (c *Client) UpdateStatus(ctx context.Context, status model.BotStatus) error {
	return c.do(ctx, http.MethodPost, "/status", rpc.UpdateStatusRequest{Status: status}, nil)
}

// DequeueMessage implements "dequeueMessage(bot-id) -> {messageText}? | null" (§4.8).
func (c *Client) DequeueMessage(ctx context.Context) (*string, error) {
	var out rpc.DequeueMessageResponse
	if err := c.do(ctx, http.MethodGet, "/chat/next", nil, &out); err != nil {
		return nil, err
	}
	return out.MessageText, nil
}

// UploadScreenshot implements "uploadScreenshot(bot-id, png-bytes, {...})" (§4.8).
func (c *Client) UploadScreenshot(ctx context.Context, png []byte, screenshotType, state, trigger string) (*rpc.UploadScreenshotResponse, error) {
	var out rpc.UploadScreenshotResponse
	req := rpc.UploadScreenshotRequest{PNG: png, Type: screenshotType, State: state, Trigger: trigger}
	if err := c.do(ctx, http.MethodPost, "/screenshots", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddScreenshot implements "addScreenshot(bot-id, screenshot-record)" (§4.8).
func (c *Client) AddScreenshot(ctx context.Context, req rpc.AddScreenshotRequest) error {
	return c.do(ctx, http.MethodPost, "/screenshots/attach", req, nil)
}
