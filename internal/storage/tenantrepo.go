package storage

import (
	"context"
	"fmt"

	"botfleet/internal/model"

	"github.com/go-pg/pg/v10"
)

// TenantRepository stores the minimal subscription record the Quota Gate
// consults (§4.6).
type TenantRepository struct {
	db *pg.DB
}

func NewTenantRepository(db *pg.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

type tenantModel struct {
	tableName struct{} `pg:"tenants"`

	ID          string `pg:"id,pk"`
	Plan        string `pg:"plan"`
	CustomLimit *int   `pg:"custom_limit"`
	TimeZone    string `pg:"time_zone"`
}

// GetOrDefault returns the tenant's subscription row, or a FREE-plan
// default if the tenant has never been provisioned explicitly.
func (r *TenantRepository) GetOrDefault(ctx context.Context, tenantID string) (model.Tenant, error) {
	m := &tenantModel{ID: tenantID}
	err := r.db.ModelContext(ctx, m).WherePK().Select()
	if err == pg.ErrNoRows {
		return model.Tenant{ID: tenantID, Plan: model.PlanFree, TimeZone: "UTC"}, nil
	}
	if err != nil {
		return model.Tenant{}, fmt.Errorf("select tenant: %w", err)
	}
	return model.Tenant{
		ID:          m.ID,
		Plan:        model.SubscriptionPlan(m.Plan),
		CustomLimit: m.CustomLimit,
		TimeZone:    m.TimeZone,
	}, nil
}

// Upsert creates or updates a tenant's subscription record.
func (r *TenantRepository) Upsert(ctx context.Context, t model.Tenant) error {
	m := &tenantModel{ID: t.ID, Plan: string(t.Plan), CustomLimit: t.CustomLimit, TimeZone: t.TimeZone}
	_, err := r.db.ModelContext(ctx, m).
		OnConflict("(id) DO UPDATE").
		Set("plan = EXCLUDED.plan, custom_limit = EXCLUDED.custom_limit, time_zone = EXCLUDED.time_zone").
		Insert()
	if err != nil {
		return fmt.Errorf("upsert tenant: %w", err)
	}
	return nil
}
