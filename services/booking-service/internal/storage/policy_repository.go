package storage

import (
	"context"

	"github.com/slotsync/slotsync/libs/db"
	"github.com/slotsync/slotsync/services/booking-service/internal/model"
)

// PolicyRepository reads the per-business and per-service booking
// configuration maintained by the admin surface.
type PolicyRepository struct {
	pool *db.Pool
}

func NewPolicyRepository(pool *db.Pool) *PolicyRepository {
	return &PolicyRepository{pool: pool}
}

// BusinessPolicy falls back to the platform defaults when the business has
// not customized its settings yet.
func (r *PolicyRepository) BusinessPolicy(ctx context.Context, businessID string) (model.BusinessPolicy, error) {
	pol := model.DefaultBusinessPolicy(businessID)
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(timezone, 'UTC'), min_advance_hours, max_advance_days,
			cancellation_hours, slot_granularity_mins, auto_confirm
		FROM business_policies
		WHERE business_id = $1
	`, businessID).Scan(
		&pol.Timezone,
		&pol.MinAdvanceHours,
		&pol.MaxAdvanceDays,
		&pol.CancellationHours,
		&pol.SlotGranularityMins,
		&pol.AutoConfirm,
	)
	if err != nil {
		if IsNotFound(err) {
			return model.DefaultBusinessPolicy(businessID), nil
		}
		return model.BusinessPolicy{}, err
	}
	return pol, nil
}

func (r *PolicyRepository) ServicePolicy(ctx context.Context, serviceID string) (model.ServicePolicy, error) {
	pol := model.ServicePolicy{ServiceID: serviceID}
	err := r.pool.QueryRow(ctx, `
		SELECT duration_mins, buffer_before_mins, buffer_after_mins
		FROM service_policies
		WHERE service_id = $1 AND active
	`, serviceID).Scan(&pol.DurationMins, &pol.BufferBefore, &pol.BufferAfter)
	if err != nil {
		return model.ServicePolicy{}, err
	}
	return pol, nil
}
