// Package subscriptions holds the subscription state transitions and their
// side effects (outbox events), shared by webhook, API, and reconcile flows.
package subscriptions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/slotsync/slotsync/services/billing-service/internal/entitlements"
	"github.com/slotsync/slotsync/services/billing-service/internal/outbox"
	"github.com/slotsync/slotsync/services/billing-service/internal/storage"
)

const (
	EventActivated = "billing.subscription.activated.v1"
	EventCanceled  = "billing.subscription.canceled.v1"
)

type Service struct {
	repo       *storage.Repository
	outboxRepo *outbox.Repository
}

func New(repo *storage.Repository, outboxRepo *outbox.Repository) *Service {
	return &Service{repo: repo, outboxRepo: outboxRepo}
}

func (s *Service) ApplyActivated(ctx context.Context, tx pgx.Tx, businessID, tier string, activatedAt time.Time, provider, stripeCustomerID, stripeSubscriptionID string, periodStart, periodEnd *time.Time) error {
	existing, ok, err := s.repo.GetSubscriptionForUpdate(ctx, tx, businessID)
	if err != nil {
		return err
	}

	if err := s.repo.UpsertSubscription(ctx, tx, storage.Subscription{
		BusinessID:           businessID,
		Tier:                 tier,
		Status:               "active",
		Provider:             provider,
		StripeCustomerID:     stripeCustomerID,
		StripeSubscriptionID: stripeSubscriptionID,
		CurrentPeriodStart:   periodStart,
		CurrentPeriodEnd:     periodEnd,
	}); err != nil {
		return err
	}

	// Only fan out when the effective entitlement changes. Provider ID
	// refreshes alone are not worth an event.
	if ok && existing.Status == "active" && existing.Tier == tier {
		return nil
	}

	limits := entitlements.LimitsForTier(tier)
	payload, err := json.Marshal(map[string]any{
		"business_id":          businessID,
		"tier":                 limits.Tier,
		"max_professionals":    limits.MaxProfessionals,
		"max_monthly_bookings": limits.MaxMonthlyBookings,
		"activated_at":         activatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	return s.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "subscription",
		AggregateID:   businessID,
		EventType:     EventActivated,
		Payload:       payload,
	})
}

func (s *Service) ApplyCanceled(ctx context.Context, tx pgx.Tx, businessID string, canceledAt time.Time, provider, stripeCustomerID, stripeSubscriptionID string, periodStart, periodEnd *time.Time) error {
	existing, ok, err := s.repo.GetSubscriptionForUpdate(ctx, tx, businessID)
	if err != nil {
		return err
	}

	// The row keeps its last paid tier for reporting; the canceled status
	// is what revokes entitlements downstream.
	tier := "starter"
	if ok && existing.Tier != "" {
		tier = existing.Tier
	}

	if err := s.repo.UpsertSubscription(ctx, tx, storage.Subscription{
		BusinessID:           businessID,
		Tier:                 tier,
		Status:               "canceled",
		Provider:             provider,
		StripeCustomerID:     stripeCustomerID,
		StripeSubscriptionID: stripeSubscriptionID,
		CurrentPeriodStart:   periodStart,
		CurrentPeriodEnd:     periodEnd,
	}); err != nil {
		return err
	}

	if ok && existing.Status == "canceled" {
		return nil
	}

	limits := entitlements.LimitsForTier(tier)
	payload, err := json.Marshal(map[string]any{
		"business_id":          businessID,
		"tier":                 limits.Tier,
		"max_professionals":    limits.MaxProfessionals,
		"max_monthly_bookings": limits.MaxMonthlyBookings,
		"canceled_at":          canceledAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	return s.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "subscription",
		AggregateID:   businessID,
		EventType:     EventCanceled,
		Payload:       payload,
	})
}
