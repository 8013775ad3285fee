// Package quota implements the Quota Gate (§4.6): tenant daily bot-creation
// limits enforced through a single atomic conditional UPDATE so concurrent
// create-bot requests cannot burst over the limit.
package quota

import (
	"context"
	"fmt"

	"botfleet/internal/model"
	"botfleet/internal/monitor"
	"botfleet/internal/storage"
)

type Gate struct {
	usage *storage.UsageRepository
}

func NewGate(usage *storage.UsageRepository) *Gate {
	return &Gate{usage: usage}
}

// Decision is the result of validateBotCreation (§4.6).
type Decision struct {
	Allowed bool
	Limit   *int
	Usage   int
	Reason  string
}

// Validate reads today's usage (in the tenant's time zone) against the
// plan-derived limit without mutating anything (§4.6 validateBotCreation).
func (g *Gate) Validate(ctx context.Context, tenant model.Tenant) (Decision, error) {
	limit := model.DailyLimitFor(tenant.Plan, tenant.CustomLimit)
	date := storage.TodayIn(tenant.TimeZone)

	usage, err := g.usage.Count(ctx, tenant.ID, date)
	if err != nil {
		return Decision{}, fmt.Errorf("read usage: %w", err)
	}

	if limit != nil && usage >= *limit {
		monitor.QuotaDeniedTotal.Inc()
		return Decision{Allowed: false, Limit: limit, Usage: usage, Reason: "daily bot limit reached"}, nil
	}
	monitor.QuotaAllowedTotal.Inc()
	return Decision{Allowed: true, Limit: limit, Usage: usage}, nil
}

// ValidateAndIncrement performs validate-then-increment as a single atomic
// section (§4.6 "MUST call validate-then-increment under a single atomic
// section to prevent burst over-approval"): the conditional UPDATE itself
// is the check, so no separate read-then-write race window exists.
func (g *Gate) ValidateAndIncrement(ctx context.Context, tenant model.Tenant) (Decision, error) {
	limit := model.DailyLimitFor(tenant.Plan, tenant.CustomLimit)
	date := storage.TodayIn(tenant.TimeZone)

	count, admitted, err := g.usage.TryIncrement(ctx, tenant.ID, date, limit)
	if err != nil {
		return Decision{}, fmt.Errorf("validate and increment usage: %w", err)
	}
	if !admitted {
		monitor.QuotaDeniedTotal.Inc()
		return Decision{Allowed: false, Limit: limit, Usage: count, Reason: "daily bot limit reached"}, nil
	}
	monitor.QuotaAllowedTotal.Inc()
	return Decision{Allowed: true, Limit: limit, Usage: count}, nil
}
