package auth

import (
	"context"
	"crypto/subtle"
	"fmt"

	"botfleet/internal/model"
	"botfleet/internal/storage"
)

// BotSystemTokenAuthenticator validates the bearer token an agent presents
// on its own endpoints (§6.4 "a bot-system token used only by the agent
// for its own endpoints"). The token is minted when the bot is created and
// injected into the container's BOT_AGENT_TOKEN env var at deploy time (§6.2).
type BotSystemTokenAuthenticator struct {
	bots *storage.BotRepository
}

func NewBotSystemTokenAuthenticator(bots *storage.BotRepository) *BotSystemTokenAuthenticator {
	return &BotSystemTokenAuthenticator{bots: bots}
}

// Authenticate verifies that rawToken matches the system token stored for
// botID when it was created, in constant time.
func (a *BotSystemTokenAuthenticator) Authenticate(ctx context.Context, botID int64, rawToken string) error {
	if rawToken == "" {
		return fmt.Errorf("%w: empty bot system token", model.ErrUnauthorized)
	}

	want, err := a.bots.SystemToken(ctx, botID)
	if err != nil {
		return fmt.Errorf("load bot system token: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(rawToken), []byte(want)) != 1 {
		return fmt.Errorf("%w: bot system token mismatch", model.ErrUnauthorized)
	}
	return nil
}
