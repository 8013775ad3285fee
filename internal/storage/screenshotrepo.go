package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pg/pg/v10"

	"botfleet/internal/model"
)

// screenshotModel is the go-pg mapping for attached diagnostic captures
// (§4.8 addScreenshot), insert-only like the Event Log.
type screenshotModel struct {
	tableName struct{} `pg:"screenshots"`

	Key        string    `pg:"key,pk"`
	BotID      int64     `pg:"bot_id"`
	Type       string    `pg:"type"`
	State      string    `pg:"state"`
	Trigger    string    `pg:"trigger"`
	CapturedAt time.Time `pg:"captured_at"`
}

type ScreenshotRepository struct {
	db *pg.DB
}

func NewScreenshotRepository(db *pg.DB) *ScreenshotRepository {
	return &ScreenshotRepository{db: db}
}

// Add records a screenshot's metadata once its bytes have been persisted
// to the artifact store (§4.8 "addScreenshot(bot-id, screenshot-record)").
func (r *ScreenshotRepository) Add(ctx context.Context, s model.Screenshot) error {
	m := &screenshotModel{
		Key:        s.Key,
		BotID:      s.BotID,
		Type:       string(s.Type),
		State:      s.State,
		Trigger:    s.Trigger,
		CapturedAt: s.CapturedAt,
	}
	if _, err := r.db.ModelContext(ctx, m).Insert(); err != nil {
		return fmt.Errorf("insert screenshot: %w", err)
	}
	return nil
}

// ListForBot returns every screenshot recorded for a bot, most recent first.
func (r *ScreenshotRepository) ListForBot(ctx context.Context, botID int64) ([]model.Screenshot, error) {
	var models []screenshotModel
	err := r.db.ModelContext(ctx, &models).
		Where("bot_id = ?", botID).
		Order("captured_at DESC").
		Select()
	if err != nil {
		return nil, fmt.Errorf("list screenshots: %w", err)
	}

	out := make([]model.Screenshot, 0, len(models))
	for _, m := range models {
		out = append(out, model.Screenshot{
			Key:        m.Key,
			BotID:      m.BotID,
			Type:       model.ScreenshotType(m.Type),
			State:      m.State,
			Trigger:    m.Trigger,
			CapturedAt: m.CapturedAt,
		})
	}
	return out, nil
}
