// Package botconfig builds and encodes the Bot Config Payload (§6.2)
// delivered to the agent process through its environment. Its Builder is
// the queue.EnvBuilder implementation, also held directly by the deploy
// Coordinator, for the Pool Manager's configure-and-start step.
package botconfig

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"botfleet/internal/model"
	"botfleet/internal/storage"
)

// Payload is the agent-inbound record of §6.2.
type Payload struct {
	ID                  int64              `json:"id"`
	TenantID            string             `json:"tenantId"`
	MeetingInfo         MeetingInfo        `json:"meetingInfo"`
	MeetingTitle        string             `json:"meetingTitle"`
	StartTime           *string            `json:"startTime,omitempty"`
	EndTime             *string            `json:"endTime,omitempty"`
	DisplayName         string             `json:"displayName"`
	Image               *string            `json:"image,omitempty"`
	RecordingEnabled    bool               `json:"recordingEnabled"`
	HeartbeatIntervalMs int64              `json:"heartbeatIntervalMs"`
	AutomaticLeave      model.AutomaticLeave `json:"automaticLeave"`
	CallbackURL         *string            `json:"callbackUrl,omitempty"`
	ChatEnabled         bool               `json:"chatEnabled"`
}

type MeetingInfo struct {
	Platform    model.Platform `json:"platform"`
	URL         string         `json:"url"`
	Credentials *string        `json:"credentials,omitempty"`
}

// Build maps a Bot onto its Bot Config Payload.
func Build(b *model.Bot) Payload {
	var start, end *string
	if b.ScheduledStart != nil {
		s := b.ScheduledStart.Format(rfc3339)
		start = &s
	}
	if b.ScheduledEnd != nil {
		e := b.ScheduledEnd.Format(rfc3339)
		end = &e
	}

	return Payload{
		ID:       b.ID,
		TenantID: b.TenantID,
		MeetingInfo: MeetingInfo{
			Platform:    b.Meeting.Platform,
			URL:         b.Meeting.URL,
			Credentials: b.Meeting.Credentials,
		},
		MeetingTitle:        b.MeetingTitle,
		StartTime:           start,
		EndTime:             end,
		DisplayName:         b.DisplayName,
		RecordingEnabled:    b.RecordingEnabled,
		HeartbeatIntervalMs: b.HeartbeatInterval.Milliseconds(),
		AutomaticLeave:      b.AutomaticLeave,
		CallbackURL:         b.CallbackURL,
		ChatEnabled:         b.ChatEnabled,
	}
}

const rfc3339 = "2006-01-02T15:04:05Z07:00"

// Encode base64-encodes the payload as JSON, avoiding the shell-quoting
// hazards of passing raw JSON through a container's environment (§6.2).
func Encode(p Payload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal bot config payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode reverses Encode, used by the agent runtime side.
func Decode(encoded string) (Payload, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Payload{}, fmt.Errorf("decode bot config payload: %w", err)
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("unmarshal bot config payload: %w", err)
	}
	return p, nil
}

// EnvKeys are the environment variable names the adapter injects (§4.2
// configure-and-start, §6.2).
const (
	EnvBotData            = "BOT_DATA"
	EnvAgentToken          = "BOT_AGENT_TOKEN"
	EnvControlPlaneURL     = "CONTROL_PLANE_URL"
	EnvArtifactCredentials = "ARTIFACT_STORE_CREDENTIALS"
	EnvNodeEnv             = "NODE_ENV"
)

// Builder assembles the full environment map a slot is configured with
// (§4.2 configure-and-start). It implements queue.EnvBuilder; the deploy
// Coordinator uses a *Builder directly.
type Builder struct {
	bots                *storage.BotRepository
	controlPlaneURL     string
	artifactCredentials string
}

func NewBuilder(bots *storage.BotRepository, controlPlaneURL, artifactCredentials string) *Builder {
	return &Builder{bots: bots, controlPlaneURL: controlPlaneURL, artifactCredentials: artifactCredentials}
}

func (b *Builder) BuildEnv(ctx context.Context, bot *model.Bot) (map[string]string, error) {
	encoded, err := Encode(Build(bot))
	if err != nil {
		return nil, err
	}
	token, err := b.bots.SystemToken(ctx, bot.ID)
	if err != nil {
		return nil, fmt.Errorf("load system token: %w", err)
	}
	return map[string]string{
		EnvBotData:             encoded,
		EnvAgentToken:          token,
		EnvControlPlaneURL:     b.controlPlaneURL,
		EnvArtifactCredentials: b.artifactCredentials,
		EnvNodeEnv:             "production",
	}, nil
}
