package rpc

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"botfleet/internal/auth"
)

// NewRouter wires the Control-Plane RPC Surface's HTTP transport (§6.4),
// grounded on the reference layout's NewRouter (global middleware, a
// versioned route group per resource).
func NewRouter(
	agent *AgentHandler,
	operator *OperatorHandler,
	operatorAuth *auth.APIKeyAuthenticator,
	agentAuth *auth.BotSystemTokenAuthenticator,
	logger *slog.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(loggerMiddleware(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": formatTime(time.Now())})
	})

	v1 := r.Group("/v1")

	bots := v1.Group("/bots")
	bots.Use(auth.OperatorMiddleware(operatorAuth))
	{
		bots.POST("", operator.CreateBot)
		bots.GET("", operator.ListBots)
		bots.POST("/:id/deploy", operator.DeployBot)
		bots.POST("/:id/cancel", operator.CancelDeployment)
		bots.POST("/:id/leave", operator.RemoveFromCall)
		bots.GET("/:id", operator.GetBot)
		bots.DELETE("", operator.DeleteBots)
		bots.GET("/:id/speaker-timeframes", operator.GetSpeakerTimeframes)
		bots.POST("/:id/chat", operator.SendChatMessage)
		bots.GET("/:id/stream", operator.StreamBotEvents)
	}

	agentBots := v1.Group("/agent/bots/:botId")
	agentBots.Use(auth.AgentMiddleware(agentAuth, "botId"))
	{
		agentBots.POST("/heartbeat", agent.Heartbeat)
		agentBots.POST("/events", agent.ReportEvent)
		agentBots.POST("/status", agent.UpdateStatus)
		agentBots.GET("/chat/next", agent.DequeueMessage)
		agentBots.POST("/screenshots", agent.UploadScreenshot)
		agentBots.POST("/screenshots/attach", agent.AddScreenshot)
	}

	return r
}

func loggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		attrs := []any{"method", c.Request.Method, "path", path, "status", status, "latency", latency.String()}
		switch {
		case status >= 500:
			logger.Error("request", attrs...)
		case status >= 400:
			logger.Warn("request", attrs...)
		default:
			logger.Info("request", attrs...)
		}
	}
}
