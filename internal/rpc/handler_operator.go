package rpc

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"botfleet/internal/auth"
	"botfleet/internal/chatqueue"
	"botfleet/internal/deploy"
	"botfleet/internal/eventbus"
	"botfleet/internal/model"
	"botfleet/internal/pool"
	"botfleet/internal/queue"
	"botfleet/internal/quota"
	"botfleet/internal/storage"
)

// OperatorHandler implements the operator-facing half of §4.8's RPC
// surface: tenant-scoped bot creation, administration, and inspection.
type OperatorHandler struct {
	bots        *storage.BotRepository
	screenshots *storage.ScreenshotRepository
	tenants     *storage.TenantRepository
	gate        *quota.Gate
	coordinator *deploy.Coordinator
	poolMgr     *pool.Manager
	queueMgr    *queue.Manager
	chat        *chatqueue.Queue
	bus         eventbus.EventBus
	redis       redis.Cmdable
	logger      *slog.Logger
}

func NewOperatorHandler(
	bots *storage.BotRepository,
	screenshots *storage.ScreenshotRepository,
	tenants *storage.TenantRepository,
	gate *quota.Gate,
	coordinator *deploy.Coordinator,
	poolMgr *pool.Manager,
	queueMgr *queue.Manager,
	chat *chatqueue.Queue,
	bus eventbus.EventBus,
	rdb redis.Cmdable,
	logger *slog.Logger,
) *OperatorHandler {
	return &OperatorHandler{
		bots:        bots,
		screenshots: screenshots,
		tenants:     tenants,
		gate:        gate,
		coordinator: coordinator,
		poolMgr:     poolMgr,
		queueMgr:    queueMgr,
		chat:        chat,
		bus:         bus,
		redis:       rdb,
		logger:      logger.With("component", "rpc"),
	}
}

// CreateBot implements "createBot(config) -> bot" (§4.8): validates
// quota, persists, and may immediately invoke the Deployment Coordinator.
func (h *OperatorHandler) CreateBot(c *gin.Context) {
	identity := auth.IdentityFromContext(c)

	var req CreateBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if !req.MeetingInfo.Platform.Valid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unsupported meeting platform"})
		return
	}

	ctx := c.Request.Context()

	tenant, err := h.tenants.GetOrDefault(ctx, identity.TenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	decision, err := h.gate.ValidateAndIncrement(ctx, tenant)
	if err != nil {
		respondError(c, err)
		return
	}
	if !decision.Allowed {
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: decision.Reason})
		return
	}

	leave := model.DefaultAutomaticLeave()
	if req.AutomaticLeave != nil {
		leave = *req.AutomaticLeave
	}
	heartbeat := 10 * time.Second
	if req.HeartbeatIntervalMs > 0 {
		heartbeat = time.Duration(req.HeartbeatIntervalMs) * time.Millisecond
	}

	bot := &model.Bot{
		TenantID: identity.TenantID,
		Meeting: model.MeetingInfo{
			Platform:    req.MeetingInfo.Platform,
			URL:         req.MeetingInfo.URL,
			Credentials: req.MeetingInfo.Credentials,
		},
		MeetingTitle:      req.MeetingTitle,
		DisplayName:       req.DisplayName,
		ScheduledStart:    req.ScheduledStart,
		ScheduledEnd:      req.ScheduledEnd,
		RecordingEnabled:  req.RecordingEnabled,
		ChatEnabled:       req.ChatEnabled,
		HeartbeatInterval: heartbeat,
		AutomaticLeave:    leave,
		CallbackURL:       req.CallbackURL,
	}

	systemToken, err := generateSystemToken()
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.bots.Create(ctx, bot, systemToken); err != nil {
		respondError(c, err)
		return
	}

	resp := botResponse(bot)

	if deploy.ShouldDeployImmediately(bot.ScheduledStart) {
		var queueTimeout *time.Duration
		if req.QueueTimeoutMs != nil {
			d := time.Duration(*req.QueueTimeoutMs) * time.Millisecond
			queueTimeout = &d
		}
		result, err := h.coordinator.Deploy(ctx, bot.ID, queueTimeout)
		if err != nil {
			// The bot is already persisted as FATAL by the coordinator;
			// createBot still returns 201 with the bot's current state.
			h.logger.Warn("immediate deploy failed", "bot_id", bot.ID, "error", err)
			if current, getErr := h.bots.GetByID(ctx, bot.ID); getErr == nil {
				resp = botResponse(current)
			}
		} else {
			resp = botResponse(result.Bot)
			resp.Queued = result.Queued
			resp.QueuePosition = result.QueuePosition
			resp.EstimatedWaitMs = result.EstimatedWaitMs
		}
	}

	c.JSON(http.StatusCreated, resp)
}

// DeployBot implements "deployBot(bot-id)" (§4.8): an idempotent deploy
// trigger for a CREATED bot.
func (h *OperatorHandler) DeployBot(c *gin.Context) {
	botID, ok := parseBotID(c)
	if !ok {
		return
	}

	result, err := h.coordinator.Deploy(c.Request.Context(), botID, nil)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := botResponse(result.Bot)
	resp.Queued = result.Queued
	resp.QueuePosition = result.QueuePosition
	resp.EstimatedWaitMs = result.EstimatedWaitMs
	c.JSON(http.StatusOK, resp)
}

// CancelDeployment implements "cancelDeployment(bot-id)" (§4.8):
// transitions DEPLOYING/QUEUED -> CANCELLED, removing any queue entry and
// requesting a pool-slot stop if one was already starting.
func (h *OperatorHandler) CancelDeployment(c *gin.Context) {
	botID, ok := parseBotID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	bot, err := h.bots.GetByID(ctx, botID)
	if err != nil {
		respondError(c, err)
		return
	}
	// §4.9: CANCELLED is reachable only from CREATED, QUEUED, or
	// DEPLOYING — a bot already JOINING_CALL or further along must be
	// removed via RemoveFromCall instead.
	if !bot.CanTransitionTo(model.StatusCancelled) {
		respondError(c, model.ErrTerminalStatus)
		return
	}

	if err := h.queueMgr.Cancel(ctx, botID); err != nil {
		h.logger.Warn("cancel queue entry failed", "bot_id", botID, "error", err)
	}
	if err := h.poolMgr.Release(ctx, botID); err != nil {
		h.logger.Warn("release slot on cancel failed", "bot_id", botID, "error", err)
	}

	applied, err := h.bots.UpdateStatus(ctx, botID, model.StatusCancelled, nil)
	if err != nil {
		respondError(c, err)
		return
	}
	if !applied {
		respondError(c, model.ErrTerminalStatus)
		return
	}
	c.Status(http.StatusOK)
}

// RemoveFromCall implements "removeFromCall(bot-id)" (§4.8): requests a
// graceful leave, delivered on the bot's next heartbeat response.
func (h *OperatorHandler) RemoveFromCall(c *gin.Context) {
	botID, ok := parseBotID(c)
	if !ok {
		return
	}
	if h.redis != nil {
		if err := h.redis.Set(c.Request.Context(), leaveRequestedKey(botID), "1", time.Hour).Err(); err != nil {
			respondError(c, err)
			return
		}
	}
	c.Status(http.StatusOK)
}

// ListBots implements "listBots" (§4.8), scoped to the caller's tenant.
func (h *OperatorHandler) ListBots(c *gin.Context) {
	identity := auth.IdentityFromContext(c)

	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	bots, err := h.bots.ListByTenant(c.Request.Context(), identity.TenantID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := BotListResponse{Bots: make([]BotResponse, 0, len(bots))}
	for _, b := range bots {
		resp.Bots = append(resp.Bots, botResponse(b))
	}
	c.JSON(http.StatusOK, resp)
}

// GetBot implements "getBot" (§4.8), verifying tenant ownership.
func (h *OperatorHandler) GetBot(c *gin.Context) {
	bot, ok := h.loadOwnedBot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, botResponse(bot))
}

// DeleteBots implements "deleteBots" (§4.8): admin hard-delete, verifying
// tenant ownership of every id before deleting any of them.
func (h *OperatorHandler) DeleteBots(c *gin.Context) {
	identity := auth.IdentityFromContext(c)

	var req DeleteBotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	ctx := c.Request.Context()
	for _, id := range req.BotIDs {
		bot, err := h.bots.GetByID(ctx, id)
		if errors.Is(err, model.ErrBotNotFound) {
			continue
		}
		if err != nil {
			respondError(c, err)
			return
		}
		if bot.TenantID != identity.TenantID {
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "bot belongs to another tenant"})
			return
		}
	}

	for _, id := range req.BotIDs {
		if err := h.bots.Delete(ctx, id); err != nil {
			respondError(c, err)
			return
		}
	}
	c.Status(http.StatusOK)
}

// GetSpeakerTimeframes implements "getSpeakerTimeframes" (§4.8).
func (h *OperatorHandler) GetSpeakerTimeframes(c *gin.Context) {
	bot, ok := h.loadOwnedBot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, SpeakerTimeframesResponse{SpeakerTimeframes: bot.SpeakerTimeframes})
}

// SendChatMessage is a supplemented operator op (§1 excludes chat-message
// composition, not enqueueing operator-supplied text) that feeds the Bot
// Agent Runtime's chat queue drain (§4.7).
func (h *OperatorHandler) SendChatMessage(c *gin.Context) {
	bot, ok := h.loadOwnedBot(c)
	if !ok {
		return
	}
	if !bot.ChatEnabled {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "chat is not enabled for this bot"})
		return
	}

	var req SendChatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.chat.Enqueue(c.Request.Context(), bot.ID, req.Message); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// StreamBotEvents streams a bot's lifecycle events over SSE, grounded on
// the reference layout's StreamEvents handler (heartbeat ping, ctx-done
// teardown).
func (h *OperatorHandler) StreamBotEvents(c *gin.Context) {
	bot, ok := h.loadOwnedBot(c)
	if !ok {
		return
	}

	eventCh, err := h.bus.Subscribe(c.Request.Context(), bot.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	rc := http.NewResponseController(c.Writer)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Warn("disable sse write deadline failed", "error", err)
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-eventCh:
			if !ok {
				return false
			}
			data, err := json.Marshal(SSEEvent{
				Type:      string(event.Type),
				BotID:     event.BotID,
				Payload:   event.Payload,
				Timestamp: formatTime(event.Timestamp),
			})
			if err != nil {
				return false
			}
			c.SSEvent("message", string(data))
			return true

		case <-c.Request.Context().Done():
			return false

		case <-time.After(30 * time.Second):
			c.SSEvent("ping", "")
			return true
		}
	})
}

func (h *OperatorHandler) loadOwnedBot(c *gin.Context) (*model.Bot, bool) {
	identity := auth.IdentityFromContext(c)

	botID, ok := parseBotID(c)
	if !ok {
		return nil, false
	}

	bot, err := h.bots.GetByID(c.Request.Context(), botID)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if bot.TenantID != identity.TenantID {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "bot belongs to another tenant"})
		return nil, false
	}
	return bot, true
}

func parseBotID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid bot id"})
		return 0, false
	}
	return id, true
}
