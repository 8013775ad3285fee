package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"botfleet/internal/model"

	"github.com/go-pg/pg/v10"
	"github.com/redis/go-redis/v9"
)

// botModel is the go-pg table mapping for bots, grounded on the reference
// layout's SessionModel (session/repo/types.go).
type botModel struct {
	tableName struct{} `pg:"bots"`

	ID                 int64     `pg:"id,pk"`
	TenantID           string    `pg:"tenant_id"`
	Platform           string    `pg:"platform"`
	MeetingURL         string    `pg:"meeting_url"`
	MeetingCredentials *string   `pg:"meeting_credentials"`
	MeetingTitle       string    `pg:"meeting_title"`
	DisplayName        string    `pg:"display_name"`
	ScheduledStart     *time.Time `pg:"scheduled_start"`
	ScheduledEnd       *time.Time `pg:"scheduled_end"`
	RecordingEnabled   bool      `pg:"recording_enabled"`
	ChatEnabled        bool      `pg:"chat_enabled"`
	HeartbeatIntervalMs int64    `pg:"heartbeat_interval_ms"`
	AutomaticLeave     []byte    `pg:"automatic_leave"`
	CallbackURL        *string   `pg:"callback_url"`
	Status             string    `pg:"status"`
	LastHeartbeat      *time.Time `pg:"last_heartbeat"`
	DeploymentPlatform *string   `pg:"deployment_platform"`
	PlatformIdentifier *string   `pg:"platform_identifier"`
	RecordingKey       *string   `pg:"recording_key"`
	SpeakerTimeframes  []byte    `pg:"speaker_timeframes"`
	DeploymentError    *string   `pg:"deployment_error"`
	SystemToken        string    `pg:"system_token"`
	CreatedAt          time.Time `pg:"created_at"`
	UpdatedAt          time.Time `pg:"updated_at"`
}

func botCacheKey(id int64) string {
	return fmt.Sprintf("botfleet:bot:%d", id)
}

const botCacheTTL = 30 * time.Second

// BotRepository persists Bot rows and caches reads in Redis, mirroring the
// cache-aside pattern of the reference layout's session/repo/pg.go.
type BotRepository struct {
	db    *pg.DB
	redis redis.Cmdable
}

func NewBotRepository(db *pg.DB, rdb redis.Cmdable) *BotRepository {
	return &BotRepository{db: db, redis: rdb}
}

// Create inserts a new bot together with the system token the caller
// minted for it (§6.4).
func (r *BotRepository) Create(ctx context.Context, b *model.Bot, systemToken string) error {
	leave, err := json.Marshal(b.AutomaticLeave)
	if err != nil {
		return fmt.Errorf("marshal automatic leave: %w", err)
	}

	m := &botModel{
		TenantID:            b.TenantID,
		Platform:            string(b.Meeting.Platform),
		MeetingURL:          b.Meeting.URL,
		MeetingCredentials:  b.Meeting.Credentials,
		MeetingTitle:        b.MeetingTitle,
		DisplayName:         b.DisplayName,
		ScheduledStart:      b.ScheduledStart,
		ScheduledEnd:        b.ScheduledEnd,
		RecordingEnabled:    b.RecordingEnabled,
		ChatEnabled:         b.ChatEnabled,
		HeartbeatIntervalMs: int64(b.HeartbeatInterval / time.Millisecond),
		AutomaticLeave:      leave,
		CallbackURL:         b.CallbackURL,
		Status:              string(model.StatusCreated),
		SystemToken:         systemToken,
	}

	if _, err := r.db.ModelContext(ctx, m).Insert(); err != nil {
		return fmt.Errorf("insert bot: %w", err)
	}

	b.ID = m.ID
	b.Status = model.StatusCreated
	b.CreatedAt = m.CreatedAt
	return nil
}

func (r *BotRepository) GetByID(ctx context.Context, id int64) (*model.Bot, error) {
	if r.redis != nil {
		if val, err := r.redis.Get(ctx, botCacheKey(id)).Result(); err == nil {
			var cached model.Bot
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				return &cached, nil
			}
		}
	}

	m := &botModel{ID: id}
	if err := r.db.ModelContext(ctx, m).WherePK().Select(); err != nil {
		if err == pg.ErrNoRows {
			return nil, model.ErrBotNotFound
		}
		return nil, fmt.Errorf("select bot: %w", err)
	}

	b := fromBotModel(m)

	if r.redis != nil {
		if b2, err := json.Marshal(b); err == nil {
			_ = r.redis.Set(ctx, botCacheKey(id), b2, botCacheTTL).Err()
		}
	}

	return b, nil
}

// SystemToken returns the bot-system bearer token for agent-only RPC auth
// (§6.4), read from Postgres directly: the cached model.Bot does not carry
// the token.
func (r *BotRepository) SystemToken(ctx context.Context, id int64) (string, error) {
	m := &botModel{ID: id}
	if err := r.db.ModelContext(ctx, m).Column("system_token").WherePK().Select(); err != nil {
		if err == pg.ErrNoRows {
			return "", model.ErrBotNotFound
		}
		return "", fmt.Errorf("select system token: %w", err)
	}
	return m.SystemToken, nil
}

func (r *BotRepository) invalidate(ctx context.Context, id int64) {
	if r.redis != nil {
		_ = r.redis.Del(ctx, botCacheKey(id)).Err()
	}
}

// UpdateStatus applies a status transition guarded by §4.9's transition
// graph: the row only moves if its current status is one of
// model.ValidPredecessors(status), which also enforces terminal
// monotonicity (DONE/FATAL/CANCELLED have no valid successors, so once
// reached no further write lands, §8 "Terminal monotonicity") without a
// separate read-then-write race.
func (r *BotRepository) UpdateStatus(ctx context.Context, id int64, status model.BotStatus, deploymentError *string) (bool, error) {
	preds := model.ValidPredecessors(status)
	if len(preds) == 0 {
		return false, nil
	}
	predStrs := make([]string, len(preds))
	for i, p := range preds {
		predStrs[i] = string(p)
	}

	res, err := r.db.ModelContext(ctx, (*botModel)(nil)).
		Table("bots").
		Set("status = ?, deployment_error = COALESCE(?, deployment_error), updated_at = now()", string(status), deploymentError).
		Where("id = ?", id).
		Where("status IN (?)", pg.In(predStrs)).
		Update()
	if err != nil {
		return false, fmt.Errorf("update bot status: %w", err)
	}
	r.invalidate(ctx, id)
	return res.RowsAffected() > 0, nil
}

// UpdateDeployment records where a bot landed after Deployment Coordinator
// ran (§4.4 step 4).
func (r *BotRepository) UpdateDeployment(ctx context.Context, id int64, deploymentPlatform, platformIdentifier string) error {
	_, err := r.db.ModelContext(ctx, (*botModel)(nil)).
		Table("bots").
		Set("deployment_platform = ?, platform_identifier = ?, updated_at = now()", deploymentPlatform, platformIdentifier).
		Where("id = ?", id).
		Update()
	r.invalidate(ctx, id)
	if err != nil {
		return fmt.Errorf("update bot deployment: %w", err)
	}
	return nil
}

// UpdateHeartbeat stamps last-heartbeat (§4.8 heartbeat).
func (r *BotRepository) UpdateHeartbeat(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ModelContext(ctx, (*botModel)(nil)).
		Table("bots").
		Set("last_heartbeat = ?, updated_at = now()", at).
		Where("id = ?", id).
		Update()
	r.invalidate(ctx, id)
	if err != nil {
		return fmt.Errorf("update bot heartbeat: %w", err)
	}
	return nil
}

// UpdateRecording attaches the recording key and speaker timeframes
// delivered with a DONE status update (§4.8 updateStatus).
func (r *BotRepository) UpdateRecording(ctx context.Context, id int64, recordingKey string, speakerTimeframes []byte) error {
	_, err := r.db.ModelContext(ctx, (*botModel)(nil)).
		Table("bots").
		Set("recording_key = ?, speaker_timeframes = ?, updated_at = now()", recordingKey, speakerTimeframes).
		Where("id = ?", id).
		Update()
	r.invalidate(ctx, id)
	if err != nil {
		return fmt.Errorf("update bot recording: %w", err)
	}
	return nil
}

func (r *BotRepository) ListByTenant(ctx context.Context, tenantID string, limit int) ([]*model.Bot, error) {
	var models []botModel
	err := r.db.ModelContext(ctx, &models).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(limit).
		Select()
	if err != nil {
		return nil, fmt.Errorf("list bots: %w", err)
	}
	bots := make([]*model.Bot, 0, len(models))
	for i := range models {
		bots = append(bots, fromBotModel(&models[i]))
	}
	return bots, nil
}

// Delete removes a bot row outright (§4.8 deleteBots, operator admin op).
func (r *BotRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ModelContext(ctx, &botModel{ID: id}).WherePK().Delete()
	r.invalidate(ctx, id)
	if err != nil {
		return fmt.Errorf("delete bot: %w", err)
	}
	return nil
}

// CountCreatedSince supports quota reconciliation/testing (§8 "Quota
// honor"): counts bots created by a tenant since a given instant.
func (r *BotRepository) CountCreatedSince(ctx context.Context, tenantID string, since time.Time) (int, error) {
	count, err := r.db.ModelContext(ctx, (*botModel)(nil)).
		Where("tenant_id = ?", tenantID).
		Where("created_at >= ?", since).
		Count()
	if err != nil {
		return 0, fmt.Errorf("count bots: %w", err)
	}
	return count, nil
}

func fromBotModel(m *botModel) *model.Bot {
	var leave model.AutomaticLeave
	_ = json.Unmarshal(m.AutomaticLeave, &leave)

	return &model.Bot{
		ID:       m.ID,
		TenantID: m.TenantID,
		Meeting: model.MeetingInfo{
			Platform:    model.Platform(m.Platform),
			URL:         m.MeetingURL,
			Credentials: m.MeetingCredentials,
		},
		MeetingTitle:       m.MeetingTitle,
		DisplayName:        m.DisplayName,
		ScheduledStart:      m.ScheduledStart,
		ScheduledEnd:        m.ScheduledEnd,
		RecordingEnabled:    m.RecordingEnabled,
		ChatEnabled:         m.ChatEnabled,
		HeartbeatInterval:   time.Duration(m.HeartbeatIntervalMs) * time.Millisecond,
		AutomaticLeave:      leave,
		CallbackURL:         m.CallbackURL,
		Status:              model.BotStatus(m.Status),
		LastHeartbeat:       m.LastHeartbeat,
		DeploymentPlatform:  m.DeploymentPlatform,
		PlatformIdentifier:  m.PlatformIdentifier,
		RecordingKey:        m.RecordingKey,
		SpeakerTimeframes:   m.SpeakerTimeframes,
		DeploymentError:     m.DeploymentError,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}
