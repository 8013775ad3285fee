package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"botfleet/internal/model"

	"github.com/go-pg/pg/v10"
	"github.com/google/uuid"
)

// EventRepository is the append-only Event Log (§3 "insert-only; no
// updates").
type EventRepository struct {
	db *pg.DB
}

func NewEventRepository(db *pg.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Append(ctx context.Context, botID int64, eventType model.EventType, eventTime time.Time, data model.EventData) (*model.Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal event data: %w", err)
	}

	m := &eventModel{
		ID:        uuid.New().String(),
		BotID:     botID,
		EventType: string(eventType),
		EventTime: eventTime,
		Data:      payload,
	}
	if _, err := r.db.ModelContext(ctx, m).Insert(); err != nil {
		return nil, fmt.Errorf("append event: %w", err)
	}

	return &model.Event{
		ID:        m.ID,
		BotID:     botID,
		Type:      eventType,
		EventTime: eventTime,
		Data:      data,
	}, nil
}

// ListForBot returns every event for a bot in event-time order (§3, §5
// "Event Log appends preserve per-bot event-time order at query time").
func (r *EventRepository) ListForBot(ctx context.Context, botID int64) ([]*model.Event, error) {
	var models []eventModel
	err := r.db.ModelContext(ctx, &models).
		Where("bot_id = ?", botID).
		Order("event_time ASC").
		Select()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	events := make([]*model.Event, 0, len(models))
	for _, m := range models {
		var data model.EventData
		_ = json.Unmarshal(m.Data, &data)
		events = append(events, &model.Event{
			ID:        m.ID,
			BotID:     m.BotID,
			Type:      model.EventType(m.EventType),
			EventTime: m.EventTime,
			Data:      data,
		})
	}
	return events, nil
}

// LatestStatusEvent returns the most recent status-class event for a bot,
// used to verify the status-projection invariant (§8 "Status
// projection").
func (r *EventRepository) LatestStatusEvent(ctx context.Context, botID int64, statusClassTypes []model.EventType) (*model.Event, error) {
	typeStrings := make([]string, len(statusClassTypes))
	for i, t := range statusClassTypes {
		typeStrings[i] = string(t)
	}

	var m eventModel
	err := r.db.ModelContext(ctx, &m).
		Where("bot_id = ?", botID).
		Where("event_type IN (?)", pg.In(typeStrings)).
		Order("event_time DESC").
		Limit(1).
		Select()
	if err == pg.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest status event: %w", err)
	}

	var data model.EventData
	_ = json.Unmarshal(m.Data, &data)
	return &model.Event{
		ID:        m.ID,
		BotID:     m.BotID,
		Type:      model.EventType(m.EventType),
		EventTime: m.EventTime,
		Data:      data,
	}, nil
}

type eventModel struct {
	tableName struct{} `pg:"events"`

	ID        string    `pg:"id,pk"`
	BotID     int64     `pg:"bot_id"`
	EventType string    `pg:"event_type"`
	EventTime time.Time `pg:"event_time"`
	Data      []byte    `pg:"data"`
}
