package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pg/pg/v10"
)

// apiKeyModel mirrors the api_keys table (§6.4 operator RPC auth).
type apiKeyModel struct {
	tableName struct{} `pg:"api_keys"`

	ID         string    `pg:"id,pk"`
	TenantID   string    `pg:"tenant_id"`
	KeyHash    string    `pg:"key_hash"`
	KeyPrefix  string    `pg:"key_prefix"`
	Revoked    bool      `pg:"revoked"`
	ExpiresAt  time.Time `pg:"expires_at"`
	LastUsedAt time.Time `pg:"last_used_at"`
	CreatedAt  time.Time `pg:"created_at"`
}

// APIKeyRecord is the lookup result handed back to the authenticator.
type APIKeyRecord struct {
	ID        string
	TenantID  string
	KeyPrefix string
	Revoked   bool
	ExpiresAt *time.Time
}

type APIKeyRepository struct {
	db *pg.DB
}

func NewAPIKeyRepository(db *pg.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// GetByHash looks up an API key by its SHA-256 hex digest.
func (r *APIKeyRepository) GetByHash(ctx context.Context, hash string) (*APIKeyRecord, error) {
	m := &apiKeyModel{}
	err := r.db.ModelContext(ctx, m).
		Where("key_hash = ?", hash).
		Select()
	if err == pg.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get api key by hash: %w", err)
	}

	rec := &APIKeyRecord{
		ID:        m.ID,
		TenantID:  m.TenantID,
		KeyPrefix: m.KeyPrefix,
		Revoked:   m.Revoked,
	}
	if !m.ExpiresAt.IsZero() {
		t := m.ExpiresAt
		rec.ExpiresAt = &t
	}
	return rec, nil
}

// UpdateLastUsed stamps last_used_at; called fire-and-forget after a
// successful authentication.
func (r *APIKeyRepository) UpdateLastUsed(ctx context.Context, id string) error {
	_, err := r.db.ModelContext(ctx, (*apiKeyModel)(nil)).
		Where("id = ?", id).
		Set("last_used_at = ?", time.Now()).
		Update()
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}
