package storage

import (
	"context"
	"time"

	"github.com/slotsync/slotsync/libs/db"
	"github.com/slotsync/slotsync/services/booking-service/internal/model"
)

// RulesRepository reads availability rules. Rules are authored through the
// business admin surface; this service never writes them.
type RulesRepository struct {
	pool *db.Pool
}

func NewRulesRepository(pool *db.Pool) *RulesRepository {
	return &RulesRepository{pool: pool}
}

func (r *RulesRepository) ListRules(ctx context.Context, professionalID string) ([]model.AvailabilityRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, professional_id::text, weekday, COALESCE(to_char(rule_date, 'YYYY-MM-DD'), ''),
			start_minute, end_minute, available, COALESCE(notes, ''),
			created_at, updated_at, deleted_at, active
		FROM availability_rules
		WHERE professional_id = $1 AND deleted_at IS NULL
		ORDER BY rule_date NULLS FIRST, weekday, start_minute
	`, professionalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []model.AvailabilityRule
	for rows.Next() {
		var rule model.AvailabilityRule
		var weekday *int
		if err := rows.Scan(
			&rule.ID,
			&rule.ProfessionalID,
			&weekday,
			&rule.Date,
			&rule.StartMinute,
			&rule.EndMinute,
			&rule.Available,
			&rule.Notes,
			&rule.Audit.CreatedAt,
			&rule.Audit.UpdatedAt,
			&rule.Audit.DeletedAt,
			&rule.Audit.Active,
		); err != nil {
			return nil, err
		}
		if weekday != nil {
			wd := time.Weekday(*weekday)
			rule.Weekday = &wd
		}
		rules = append(rules, rule)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return rules, nil
}
