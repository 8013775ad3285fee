package rpc

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// generateSystemToken mints the per-bot bearer token injected into the
// bot config payload's BOT_AGENT_TOKEN env var at deploy time (§6.2, §6.4).
func generateSystemToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate system token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
