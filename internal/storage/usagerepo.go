package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pg/pg/v10"
)

// UsageRepository implements the Tenant Daily Usage Counter (§3), with a
// single conditional UPDATE that performs check-and-increment atomically
// (§4.6, §5 "Daily-usage counter: single conditional UPDATE with limit
// predicate"; §9 Open Question d mandates this over the separate-calls
// pattern).
type UsageRepository struct {
	db *pg.DB
}

func NewUsageRepository(db *pg.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// TryIncrement atomically increments today's counter for tenantID iff the
// result would not exceed limit, and returns the post-increment count and
// whether the increment was admitted. limit == nil means unlimited: the
// row is still upserted (for observability) and always admitted.
func (r *UsageRepository) TryIncrement(ctx context.Context, tenantID string, date string, limit *int) (count int, admitted bool, err error) {
	if limit == nil {
		var c int
		_, err = r.db.QueryOneContext(ctx, pg.Scan(&c), `
			INSERT INTO tenant_daily_usage (tenant_id, usage_date, count)
			VALUES (?, ?, 1)
			ON CONFLICT (tenant_id, usage_date)
			DO UPDATE SET count = tenant_daily_usage.count + 1
			RETURNING count
		`, tenantID, date)
		if err != nil {
			return 0, false, fmt.Errorf("increment unlimited usage: %w", err)
		}
		return c, true, nil
	}

	// The UPDATE...WHERE predicate makes the read (current count) and the
	// write (increment) a single atomic statement: no other transaction's
	// concurrent increment can slip between them (§5 suspension points).
	// The INSERT itself is gated on limit > 0 too (via the SELECT...WHERE
	// in place of VALUES), so a zero limit denies even the very first bot
	// of the day instead of admitting it through the no-existing-row path.
	var c int
	_, err = r.db.QueryOneContext(ctx, pg.Scan(&c), `
		INSERT INTO tenant_daily_usage (tenant_id, usage_date, count)
		SELECT ?, ?, 1 WHERE ? > 0
		ON CONFLICT (tenant_id, usage_date) DO UPDATE
			SET count = tenant_daily_usage.count + 1
			WHERE tenant_daily_usage.count < ?
		RETURNING count
	`, tenantID, date, *limit, *limit)
	if err == pg.ErrNoRows {
		// The conflicting row existed but its count was already >= limit,
		// so the DO UPDATE's WHERE clause suppressed the write and
		// RETURNING produced nothing.
		current, readErr := r.Count(ctx, tenantID, date)
		if readErr != nil {
			return 0, false, readErr
		}
		return current, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("increment usage: %w", err)
	}
	return c, true, nil
}

// Count reads today's counter without mutating it.
func (r *UsageRepository) Count(ctx context.Context, tenantID string, date string) (int, error) {
	var c int
	_, err := r.db.QueryOneContext(ctx, pg.Scan(&c), `
		SELECT count FROM tenant_daily_usage WHERE tenant_id = ? AND usage_date = ?
	`, tenantID, date)
	if err == pg.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read usage: %w", err)
	}
	return c, nil
}

// TodayIn formats "now" as a calendar date in the tenant's time zone
// (§4.6 "Reads the tenant daily usage counter for today (in the tenant's
// time zone)").
func TodayIn(timeZone string) string {
	loc, err := time.LoadLocation(timeZone)
	if err != nil || timeZone == "" {
		loc = time.UTC
	}
	return time.Now().In(loc).Format("2006-01-02")
}
