package rpc

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"botfleet/internal/artifact"
	"botfleet/internal/auth"
	"botfleet/internal/callback"
	"botfleet/internal/chatqueue"
	"botfleet/internal/model"
	"botfleet/internal/storage"
)

// AgentHandler implements the agent-facing half of §4.8's RPC surface:
// the methods a Bot Agent Runtime calls about itself.
type AgentHandler struct {
	bots        *storage.BotRepository
	events      *storage.EventRepository
	screenshots *storage.ScreenshotRepository
	chat        *chatqueue.Queue
	artifacts   *artifact.Store
	callbacks   *callback.Dispatcher
	redis       redis.Cmdable
}

func NewAgentHandler(
	bots *storage.BotRepository,
	events *storage.EventRepository,
	screenshots *storage.ScreenshotRepository,
	chat *chatqueue.Queue,
	artifacts *artifact.Store,
	callbacks *callback.Dispatcher,
	rdb redis.Cmdable,
) *AgentHandler {
	return &AgentHandler{
		bots:        bots,
		events:      events,
		screenshots: screenshots,
		chat:        chat,
		artifacts:   artifacts,
		callbacks:   callbacks,
		redis:       rdb,
	}
}

func leaveRequestedKey(botID int64) string {
	return "bot:" + strconv.FormatInt(botID, 10) + ":leave_requested"
}

// Heartbeat implements "heartbeat(bot-id) -> {shouldLeave?, logLevel?}"
// (§4.8): stamps last-heartbeat and returns any pending operator intent.
func (h *AgentHandler) Heartbeat(c *gin.Context) {
	botID, _ := auth.BotIDFromContext(c)

	if err := h.bots.UpdateHeartbeat(c.Request.Context(), botID, time.Now()); err != nil {
		respondError(c, err)
		return
	}

	resp := HeartbeatResponse{}
	if h.redis != nil {
		n, err := h.redis.GetDel(c.Request.Context(), leaveRequestedKey(botID)).Result()
		if err == nil && n == "1" {
			resp.ShouldLeave = true
		}
	}
	c.JSON(http.StatusOK, resp)
}

// ReportEvent implements "reportEvent(bot-id, {event-type, event-time,
// data?})" (§4.8): appends to the Event Log; no idempotency key assumed.
func (h *AgentHandler) ReportEvent(c *gin.Context) {
	botID, _ := auth.BotIDFromContext(c)

	var req ReportEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	eventTime := req.EventTime
	if eventTime.IsZero() {
		eventTime = time.Now()
	}

	if _, err := h.events.Append(c.Request.Context(), botID, req.EventType, eventTime, req.Data); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// UpdateStatus implements "updateStatus(bot-id, status, recording?,
// speakerTimeframes?)" (§4.8): sets status, attaches the recording when
// present, and fires the callback-url POST if one is configured.
func (h *AgentHandler) UpdateStatus(c *gin.Context) {
	botID, _ := auth.BotIDFromContext(c)

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	ctx := c.Request.Context()

	if req.RecordingKey != nil {
		if err := h.bots.UpdateRecording(ctx, botID, *req.RecordingKey, req.SpeakerTimeframes); err != nil {
			respondError(c, err)
			return
		}
	}

	applied, err := h.bots.UpdateStatus(ctx, botID, req.Status, nil)
	if err != nil {
		respondError(c, err)
		return
	}
	if !applied {
		respondError(c, model.ErrTerminalStatus)
		return
	}

	if bot, err := h.bots.GetByID(ctx, botID); err == nil && bot.CallbackURL != nil {
		h.callbacks.Dispatch(botID, *bot.CallbackURL, req.Status)
	}

	c.Status(http.StatusOK)
}

// DequeueMessage implements "dequeueMessage(bot-id) -> {messageText}? |
// null" (§4.8): at-most-once pop of the next outbound chat message.
func (h *AgentHandler) DequeueMessage(c *gin.Context) {
	botID, _ := auth.BotIDFromContext(c)

	msg, err := h.chat.Dequeue(c.Request.Context(), botID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, DequeueMessageResponse{MessageText: msg})
}

// UploadScreenshot implements "uploadScreenshot(bot-id, png-bytes, {type,
// state, trigger?}) -> {key, capturedAt, type, state, trigger?}" (§4.8):
// stores the raw PNG in the artifact store and returns its object key.
func (h *AgentHandler) UploadScreenshot(c *gin.Context) {
	botID, _ := auth.BotIDFromContext(c)

	var req UploadScreenshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	capturedAt := time.Now()
	key := artifact.ScreenshotKey(botID, req.Type, capturedAt.UnixMilli())

	if err := h.artifacts.PutObject(key, req.PNG, "image/png"); err != nil {
		// ScreenshotUploadFailed is logged only; it never crashes the bot
		// or blocks a state transition (§7).
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, UploadScreenshotResponse{
		Key:        key,
		CapturedAt: capturedAt,
		Type:       req.Type,
		State:      req.State,
		Trigger:    req.Trigger,
	})
}

// AddScreenshot implements "addScreenshot(bot-id, screenshot-record)"
// (§4.8): attaches metadata for an already-uploaded screenshot.
func (h *AgentHandler) AddScreenshot(c *gin.Context) {
	botID, _ := auth.BotIDFromContext(c)

	var req AddScreenshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	capturedAt := req.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}

	s := model.Screenshot{
		Key:        req.Key,
		BotID:      botID,
		Type:       model.ScreenshotType(req.Type),
		State:      req.State,
		Trigger:    req.Trigger,
		CapturedAt: capturedAt,
	}
	if err := h.screenshots.Add(c.Request.Context(), s); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}
