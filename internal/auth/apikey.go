// Package auth implements the Operator RPC Surface's authentication model
// (§6.4): tenant API keys for operator endpoints and a per-bot system token
// for agent-only endpoints.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"botfleet/internal/model"
	"botfleet/internal/storage"
)

// HashAPIKey returns the SHA-256 hex digest of a raw API key. Keys are
// never stored in plaintext; only the digest is persisted.
func HashAPIKey(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// Identity is the resolved caller for an authenticated operator request.
type Identity struct {
	TenantID  string
	APIKeyID  string
	KeyPrefix string
}

// APIKeyAuthenticator validates tenant API keys against api_keys.
type APIKeyAuthenticator struct {
	keys *storage.APIKeyRepository
}

func NewAPIKeyAuthenticator(keys *storage.APIKeyRepository) *APIKeyAuthenticator {
	return &APIKeyAuthenticator{keys: keys}
}

// Authenticate hashes rawKey, looks it up, and checks revocation/expiry
// (§6.4 "checked for revocation + expiry; usage logged").
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, rawKey string) (*Identity, error) {
	if rawKey == "" {
		return nil, fmt.Errorf("%w: empty api key", model.ErrUnauthorized)
	}

	rec, err := a.keys.GetByHash(ctx, HashAPIKey(rawKey))
	if err != nil {
		return nil, fmt.Errorf("authenticate api key: %w", err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: unknown api key", model.ErrUnauthorized)
	}
	if rec.Revoked {
		return nil, fmt.Errorf("%w: api key revoked", model.ErrUnauthorized)
	}
	if rec.ExpiresAt != nil && rec.ExpiresAt.Before(time.Now()) {
		return nil, fmt.Errorf("%w: api key expired at %s", model.ErrUnauthorized, rec.ExpiresAt)
	}

	// Usage tracking is best-effort and must never slow down or fail the
	// request it authenticates.
	go func() {
		_ = a.keys.UpdateLastUsed(context.Background(), rec.ID)
	}()

	return &Identity{
		TenantID:  rec.TenantID,
		APIKeyID:  rec.ID,
		KeyPrefix: rec.KeyPrefix,
	}, nil
}
