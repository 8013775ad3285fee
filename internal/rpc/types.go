// Package rpc implements the Control-Plane RPC Surface (§4.8, §6.4): the
// agent-facing and operator-facing methods exposed over HTTP via gin,
// grounded on the reference layout's api package (router/handler/error
// mapping shape), generalized from one resource (sessions) to two
// (agent self-service, operator bot administration).
package rpc

import (
	"time"

	"botfleet/internal/model"
)

type CreateBotRequest struct {
	MeetingInfo struct {
		Platform    model.Platform `json:"platform" binding:"required"`
		URL         string         `json:"url" binding:"required"`
		Credentials *string        `json:"credentials,omitempty"`
	} `json:"meetingInfo" binding:"required"`
	MeetingTitle        string                `json:"meetingTitle"`
	DisplayName         string                `json:"displayName" binding:"required"`
	ScheduledStart      *time.Time            `json:"scheduledStart,omitempty"`
	ScheduledEnd        *time.Time            `json:"scheduledEnd,omitempty"`
	RecordingEnabled    bool                  `json:"recordingEnabled"`
	ChatEnabled         bool                  `json:"chatEnabled"`
	HeartbeatIntervalMs int64                 `json:"heartbeatIntervalMs"`
	AutomaticLeave      *model.AutomaticLeave `json:"automaticLeave,omitempty"`
	CallbackURL         *string               `json:"callbackUrl,omitempty"`
	QueueTimeoutMs       *int64               `json:"queueTimeoutMs,omitempty"`
}

type BotResponse struct {
	ID                  int64            `json:"id"`
	TenantID            string           `json:"tenantId"`
	MeetingInfo         model.MeetingInfo `json:"meetingInfo"`
	MeetingTitle        string           `json:"meetingTitle"`
	DisplayName         string           `json:"displayName"`
	Status              model.BotStatus  `json:"status"`
	DeploymentPlatform  *string          `json:"deploymentPlatform,omitempty"`
	PlatformIdentifier  *string          `json:"platformIdentifier,omitempty"`
	RecordingKey        *string          `json:"recordingKey,omitempty"`
	DeploymentError      *string         `json:"deploymentError,omitempty"`
	Queued              bool             `json:"queued,omitempty"`
	QueuePosition       int              `json:"queuePosition,omitempty"`
	EstimatedWaitMs     int64            `json:"estimatedWaitMs,omitempty"`
	CreatedAt           time.Time        `json:"createdAt"`
}

func botResponse(b *model.Bot) BotResponse {
	return BotResponse{
		ID:                 b.ID,
		TenantID:           b.TenantID,
		MeetingInfo:        b.Meeting,
		MeetingTitle:       b.MeetingTitle,
		DisplayName:        b.DisplayName,
		Status:             b.Status,
		DeploymentPlatform: b.DeploymentPlatform,
		PlatformIdentifier: b.PlatformIdentifier,
		RecordingKey:       b.RecordingKey,
		DeploymentError:    b.DeploymentError,
		CreatedAt:          b.CreatedAt,
	}
}

type BotListResponse struct {
	Bots []BotResponse `json:"bots"`
}

type HeartbeatRequest struct{}

type HeartbeatResponse struct {
	ShouldLeave bool    `json:"shouldLeave,omitempty"`
	LogLevel    *string `json:"logLevel,omitempty"`
}

type ReportEventRequest struct {
	EventType model.EventType `json:"eventType" binding:"required"`
	EventTime time.Time       `json:"eventTime"`
	Data      model.EventData `json:"data,omitempty"`
}

type UpdateStatusRequest struct {
	Status            model.BotStatus `json:"status" binding:"required"`
	RecordingKey      *string         `json:"recordingKey,omitempty"`
	SpeakerTimeframes []byte          `json:"speakerTimeframes,omitempty"`
}

type DequeueMessageResponse struct {
	MessageText *string `json:"messageText,omitempty"`
}

type UploadScreenshotRequest struct {
	PNG     []byte `json:"png" binding:"required"`
	Type    string `json:"type" binding:"required"`
	State   string `json:"state" binding:"required"`
	Trigger string `json:"trigger,omitempty"`
}

type UploadScreenshotResponse struct {
	Key        string    `json:"key"`
	CapturedAt time.Time `json:"capturedAt"`
	Type       string    `json:"type"`
	State      string    `json:"state"`
	Trigger    string    `json:"trigger,omitempty"`
}

type AddScreenshotRequest struct {
	Key        string    `json:"key" binding:"required"`
	Type       string    `json:"type" binding:"required"`
	State      string    `json:"state" binding:"required"`
	Trigger    string    `json:"trigger,omitempty"`
	CapturedAt time.Time `json:"capturedAt"`
}

type SendChatMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

type SpeakerTimeframesResponse struct {
	SpeakerTimeframes []byte `json:"speakerTimeframes"`
}

type DeleteBotsRequest struct {
	BotIDs []int64 `json:"botIds" binding:"required"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type SSEEvent struct {
	Type      string `json:"type"`
	BotID     int64  `json:"botId"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp string `json:"timestamp"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
