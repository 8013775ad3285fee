package storage

import (
	"context"
	"fmt"
	"time"

	"botfleet/internal/model"

	"github.com/go-pg/pg/v10"
)

// QueueRepository implements the durable, priority-then-FIFO waiting set
// of §4.3, using the same select-for-update-skip-locked discipline as the
// Pool Manager so concurrent drain() callers never race on the same head
// entry (§5 "Queue rows: same pattern for dequeue").
type QueueRepository struct {
	db *pg.DB
}

func NewQueueRepository(db *pg.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

func (r *QueueRepository) Enqueue(ctx context.Context, botID int64, priority int, timeoutAt time.Time) (*model.QueueEntry, error) {
	m := &queueModel{
		BotID:     botID,
		Priority:  priority,
		QueuedAt:  time.Now(),
		TimeoutAt: timeoutAt,
	}
	if _, err := r.db.ModelContext(ctx, m).Insert(); err != nil {
		return nil, fmt.Errorf("enqueue: %w", err)
	}
	return fromQueueModel(m), nil
}

// Position returns the 1-indexed position of botID under the canonical
// (priority ASC, queued-at ASC, id ASC) ordering (§4.3, §8 "Queue
// ordering").
func (r *QueueRepository) Position(ctx context.Context, botID int64) (int, error) {
	var entry queueModel
	err := r.db.ModelContext(ctx, &entry).Where("bot_id = ?", botID).Select()
	if err == pg.ErrNoRows {
		return 0, model.ErrQueueEntryNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("find queue entry: %w", err)
	}

	count, err := r.db.ModelContext(ctx, (*queueModel)(nil)).
		WhereGroup(func(q *pg.Query) (*pg.Query, error) {
			q = q.Where("priority < ?", entry.Priority).
				WhereOr("priority = ? AND queued_at < ?", entry.Priority, entry.QueuedAt).
				WhereOr("priority = ? AND queued_at = ? AND id < ?", entry.Priority, entry.QueuedAt, entry.ID)
			return q, nil
		}).
		Count()
	if err != nil {
		return 0, fmt.Errorf("count ahead: %w", err)
	}
	return count + 1, nil
}

// PurgeExpired deletes every entry whose deadline has passed and returns
// the bot ids that must be transitioned to FATAL (§4.3 drain step 1).
func (r *QueueRepository) PurgeExpired(ctx context.Context) ([]int64, error) {
	var rows []queueModel
	_, err := r.db.QueryContext(ctx, &rows, `
		DELETE FROM queue_entries WHERE timeout_at < now()
		RETURNING id, bot_id, priority, queued_at, timeout_at
	`)
	if err != nil {
		return nil, fmt.Errorf("purge expired queue entries: %w", err)
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.BotID)
	}
	return ids, nil
}

// TryDequeueHead locks the queue's head entry (skipping any row a
// concurrent drainer already holds), invokes attempt with it, and either
// commits the entry's removal (attempt returned true) or rolls back,
// leaving the entry queued for the next drain (§4.3 drain step 2).
func (r *QueueRepository) TryDequeueHead(ctx context.Context, attempt func(ctx context.Context, entry *model.QueueEntry) (bool, error)) (*model.QueueEntry, bool, error) {
	var dequeued *model.QueueEntry
	var acquired bool

	err := r.db.RunInTransaction(ctx, func(tx *pg.Tx) error {
		var head queueModel
		err := tx.Model(&head).
			Order("priority ASC", "queued_at ASC", "id ASC").
			For("UPDATE SKIP LOCKED").
			Limit(1).
			Select()
		if err == pg.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("lock queue head: %w", err)
		}

		entry := fromQueueModel(&head)
		ok, attemptErr := attempt(ctx, entry)
		if attemptErr != nil {
			return attemptErr
		}
		if !ok {
			// Rolling back (returning nil here with no changes made keeps
			// the row; we explicitly avoid deleting it).
			return nil
		}

		if _, err := tx.Model(&head).WherePK().Delete(); err != nil {
			return fmt.Errorf("remove dequeued entry: %w", err)
		}
		dequeued = entry
		acquired = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return dequeued, acquired, nil
}

// Remove deletes a queue entry outright, used when a tenant cancels a
// queued bot (§3 Queue Entry lifecycle (c)).
func (r *QueueRepository) Remove(ctx context.Context, botID int64) error {
	_, err := r.db.ModelContext(ctx, (*queueModel)(nil)).Where("bot_id = ?", botID).Delete()
	if err != nil {
		return fmt.Errorf("remove queue entry: %w", err)
	}
	return nil
}

type queueModel struct {
	tableName struct{} `pg:"queue_entries"`

	ID        int64     `pg:"id,pk"`
	BotID     int64     `pg:"bot_id"`
	Priority  int       `pg:"priority"`
	QueuedAt  time.Time `pg:"queued_at"`
	TimeoutAt time.Time `pg:"timeout_at"`
}

func fromQueueModel(m *queueModel) *model.QueueEntry {
	return &model.QueueEntry{
		ID:        m.ID,
		BotID:     m.BotID,
		Priority:  m.Priority,
		QueuedAt:  m.QueuedAt,
		TimeoutAt: m.TimeoutAt,
	}
}
