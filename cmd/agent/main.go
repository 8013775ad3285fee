package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"botfleet/internal/agentruntime"
	"botfleet/internal/botconfig"
	"botfleet/internal/config"
	"botfleet/internal/model"
	"botfleet/internal/platformprovider"
)

// main is the Bot Agent Runtime's entrypoint (§4.7): one process per
// deployed bot container, configured entirely from the environment the
// Pool Manager injected at deploy time (§6.2).
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	agentCfg := config.LoadAgent()
	if encoded := os.Getenv(botconfig.EnvBotData); encoded != "" {
		payload, err := botconfig.Decode(encoded)
		if err != nil {
			logger.Error("invalid BOT_DATA", "error", err)
			os.Exit(1)
		}
		agentCfg.BotID = payload.ID
		agentCfg.Platform = string(payload.MeetingInfo.Platform)
		agentCfg.ChatEnabled = payload.ChatEnabled
		if payload.HeartbeatIntervalMs > 0 {
			agentCfg.HeartbeatInterval = time.Duration(payload.HeartbeatIntervalMs) * time.Millisecond
		}
	}
	if agentCfg.BotID == 0 || agentCfg.Token == "" {
		logger.Error("missing BOT_ID or BOT_AGENT_TOKEN")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := platformprovider.NewRegistry()

	runtime, err := agentruntime.NewRuntime(agentruntime.Config{
		BotID:             agentCfg.BotID,
		Token:             agentCfg.Token,
		ControlPlaneURL:   agentCfg.ControlPlaneURL,
		Platform:          model.Platform(agentCfg.Platform),
		ChatEnabled:       agentCfg.ChatEnabled,
		HeartbeatInterval: agentCfg.HeartbeatInterval,
		MaxDuration:       agentCfg.MaxDuration,
		ChatPollInterval:  agentCfg.ChatPollInterval,
	}, registry, logger)
	if err != nil {
		logger.Error("failed to build agent runtime", "error", err)
		os.Exit(1)
	}

	screenshots := agentruntime.NewScreenshotListener(runtime.Client(), runtime.Provider().Screenshot, logger)
	runtime.Subscribe(screenshots.OnTransition)

	os.Exit(runtime.Run(ctx))
}
