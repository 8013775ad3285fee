package storage

import (
	"context"
	"fmt"
	"time"

	"botfleet/internal/model"

	"github.com/go-pg/pg/v10"
)

// SlotRepository is the sole mutator of pool_slots rows (§4.2 "Ownership
// and concurrency"), implementing the atomic primitives §5 requires:
// single-writer-per-transaction via "select for update skip locked".
type SlotRepository struct {
	db *pg.DB
}

func NewSlotRepository(db *pg.DB) *SlotRepository {
	return &SlotRepository{db: db}
}

// AcquireIdle atomically selects one idle slot for platform (tie-break:
// oldest last-used-at), marks it busy and assigned to botID, skipping any
// row held by a concurrent acquirer. Returns (nil, nil) if none is free —
// the caller proceeds to capacity-check-then-create (§4.2 step 1-2).
func (r *SlotRepository) AcquireIdle(ctx context.Context, platform model.Platform, botID int64) (*model.Slot, error) {
	var s slotModel
	_, err := r.db.QueryOneContext(ctx, &s, `
		UPDATE pool_slots SET
			status = 'busy',
			assigned_bot_id = ?,
			last_used_at = now()
		WHERE id = (
			SELECT id FROM pool_slots
			WHERE platform = ? AND status = 'idle'
			ORDER BY last_used_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, slot_name, container_service_id, platform, status,
			assigned_bot_id, last_used_at, recovery_attempts, error_message, created_at
	`, botID, string(platform))
	if err == pg.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("acquire idle slot: %w", err)
	}
	return fromSlotModel(&s), nil
}

// Count returns the number of slots currently tracked for platform,
// against which the MAX_POOL_SIZE cap (§4.2, §8) is enforced.
func (r *SlotRepository) Count(ctx context.Context, platform model.Platform) (int, error) {
	count, err := r.db.ModelContext(ctx, (*slotModel)(nil)).
		Where("platform = ?", string(platform)).
		Count()
	if err != nil {
		return 0, fmt.Errorf("count slots: %w", err)
	}
	return count, nil
}

// CreateDeploying inserts a brand-new slot row in status=deploying,
// pre-assigned to botID (§4.2 step 3).
func (r *SlotRepository) CreateDeploying(ctx context.Context, slotName string, platform model.Platform, botID int64) (*model.Slot, error) {
	m := &slotModel{
		SlotName:      slotName,
		Platform:      string(platform),
		Status:        string(model.SlotDeploying),
		AssignedBotID: &botID,
		LastUsedAt:    time.Now(),
	}
	if _, err := r.db.ModelContext(ctx, m).Insert(); err != nil {
		return nil, fmt.Errorf("create slot: %w", err)
	}
	return fromSlotModel(m), nil
}

// SetContainerServiceID records the orchestrator-assigned service id on a
// newly created slot, before configure-and-start (§4.2 step 3).
func (r *SlotRepository) SetContainerServiceID(ctx context.Context, id int64, serviceID string) error {
	_, err := r.db.ModelContext(ctx, (*slotModel)(nil)).
		Where("id = ?", id).
		Set("container_service_id = ?", serviceID).
		Update()
	if err != nil {
		return fmt.Errorf("set slot container service id: %w", err)
	}
	return nil
}

// MarkBusy transitions status=deploying -> busy after configure-and-start
// succeeds for a freshly created slot.
func (r *SlotRepository) MarkBusy(ctx context.Context, id int64) error {
	_, err := r.db.ModelContext(ctx, (*slotModel)(nil)).
		Where("id = ?", id).
		Set("status = ?, last_used_at = now()", string(model.SlotBusy)).
		Update()
	if err != nil {
		return fmt.Errorf("mark slot busy: %w", err)
	}
	return nil
}

// FindByBotID finds the slot assigned to botID, used by Release (§4.2).
func (r *SlotRepository) FindByBotID(ctx context.Context, botID int64) (*model.Slot, error) {
	m := &slotModel{}
	err := r.db.ModelContext(ctx, m).Where("assigned_bot_id = ?", botID).Select()
	if err == pg.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find slot by bot: %w", err)
	}
	return fromSlotModel(m), nil
}

// ReleaseToIdle resets a slot to idle after a successful orchestrator stop
// (§4.2 Release step 3).
func (r *SlotRepository) ReleaseToIdle(ctx context.Context, id int64) error {
	_, err := r.db.ModelContext(ctx, (*slotModel)(nil)).
		Where("id = ?", id).
		Set("status = ?, assigned_bot_id = NULL, last_used_at = now(), error_message = NULL, recovery_attempts = 0",
			string(model.SlotIdle)).
		Update()
	if err != nil {
		return fmt.Errorf("release slot to idle: %w", err)
	}
	return nil
}

// MarkError records a failed stop during release (§4.2 Release step 4),
// or an orchestrator failure observed elsewhere.
func (r *SlotRepository) MarkError(ctx context.Context, id int64, message string) error {
	_, err := r.db.ModelContext(ctx, (*slotModel)(nil)).
		Where("id = ?", id).
		Set("status = ?, error_message = ?", string(model.SlotError), message).
		Update()
	if err != nil {
		return fmt.Errorf("mark slot error: %w", err)
	}
	return nil
}

// ForRecovery selects slots in status=error, or stuck in status=deploying
// past staleThreshold (§4.5 step 1).
func (r *SlotRepository) ForRecovery(ctx context.Context, staleThreshold time.Duration) ([]*model.Slot, error) {
	var models []slotModel
	cutoff := time.Now().Add(-staleThreshold)
	err := r.db.ModelContext(ctx, &models).
		WhereGroup(func(q *pg.Query) (*pg.Query, error) {
			q = q.WhereOr("status = ?", string(model.SlotError)).
				WhereOr("status = ? AND last_used_at < ?", string(model.SlotDeploying), cutoff)
			return q, nil
		}).
		Select()
	if err != nil {
		return nil, fmt.Errorf("select slots for recovery: %w", err)
	}
	slots := make([]*model.Slot, 0, len(models))
	for i := range models {
		slots = append(slots, fromSlotModel(&models[i]))
	}
	return slots, nil
}

// ResetAfterRecovery clears a slot's error state once adapter.stop
// succeeds during a recovery tick (§4.5 step 2).
func (r *SlotRepository) ResetAfterRecovery(ctx context.Context, id int64) error {
	_, err := r.db.ModelContext(ctx, (*slotModel)(nil)).
		Where("id = ?", id).
		Set("status = ?, error_message = NULL, recovery_attempts = 0, last_used_at = now()", string(model.SlotIdle)).
		Update()
	if err != nil {
		return fmt.Errorf("reset slot after recovery: %w", err)
	}
	return nil
}

// IncrementRecoveryAttempts bumps the retry counter on a failed recovery
// attempt (§4.5 step 2).
func (r *SlotRepository) IncrementRecoveryAttempts(ctx context.Context, id int64) (int, error) {
	var attempts int
	_, err := r.db.QueryOneContext(ctx, pg.Scan(&attempts), `
		UPDATE pool_slots SET recovery_attempts = recovery_attempts + 1
		WHERE id = ?
		RETURNING recovery_attempts
	`, id)
	if err != nil {
		return 0, fmt.Errorf("increment recovery attempts: %w", err)
	}
	return attempts, nil
}

// Delete permanently removes a slot row after the retry budget is
// exhausted (§3, §4.5 step 2).
func (r *SlotRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ModelContext(ctx, (*slotModel)(nil)).Where("id = ?", id).Delete()
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	return nil
}

// UpdateErrorMessage overwrites the diagnostic message without changing
// status, used by best-effort observability updates (§4.2).
func (r *SlotRepository) UpdateErrorMessage(ctx context.Context, id int64, message *string) error {
	_, err := r.db.ModelContext(ctx, (*slotModel)(nil)).
		Where("id = ?", id).
		Set("error_message = ?", message).
		Update()
	if err != nil {
		return fmt.Errorf("update slot error message: %w", err)
	}
	return nil
}

type slotModel struct {
	tableName struct{} `pg:"pool_slots"`

	ID                 int64      `pg:"id,pk"`
	SlotName           string     `pg:"slot_name"`
	ContainerServiceID string     `pg:"container_service_id"`
	Platform           string     `pg:"platform"`
	Status             string     `pg:"status"`
	AssignedBotID      *int64     `pg:"assigned_bot_id"`
	LastUsedAt         time.Time  `pg:"last_used_at"`
	RecoveryAttempts   int        `pg:"recovery_attempts"`
	ErrorMessage       *string    `pg:"error_message"`
	CreatedAt          time.Time  `pg:"created_at"`
}

func fromSlotModel(m *slotModel) *model.Slot {
	return &model.Slot{
		ID:                 m.ID,
		SlotName:           m.SlotName,
		ContainerServiceID: m.ContainerServiceID,
		Platform:           model.Platform(m.Platform),
		Status:             model.SlotStatus(m.Status),
		AssignedBotID:      m.AssignedBotID,
		LastUsedAt:         m.LastUsedAt,
		RecoveryAttempts:   m.RecoveryAttempts,
		ErrorMessage:       m.ErrorMessage,
		CreatedAt:          m.CreatedAt,
	}
}
