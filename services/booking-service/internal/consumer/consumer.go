// Package consumer subscribes to billing subscription events and keeps the
// local entitlements projection current.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/slotsync/slotsync/libs/db"
	"github.com/slotsync/slotsync/libs/kafkax"
	"github.com/slotsync/slotsync/services/booking-service/internal/inbox"
	"github.com/slotsync/slotsync/services/booking-service/internal/storage"
)

type Consumer struct {
	reader *kafka.Reader
	logger *slog.Logger
	inbox  *inbox.Repository
	pool   *db.Pool
	repo   *storage.BookingRepository
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
}

func New(logger *slog.Logger, inboxRepo *inbox.Repository, pool *db.Pool, repo *storage.BookingRepository, cfg Config) *Consumer {
	brokers := kafkax.SplitBrokers(cfg.Brokers)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{
		reader: reader,
		logger: logger,
		inbox:  inboxRepo,
		pool:   pool,
		repo:   repo,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			time.Sleep(1 * time.Second)
			continue
		}

		ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
		ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination", msg.Topic),
			),
		)

		meta := kafkax.ExtractEventMeta(msg)

		ok, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType)
		if err != nil {
			c.logger.Error("inbox record failed", "err", err)
			span.RecordError(err)
			span.End()
			continue
		}
		if !ok {
			c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
			span.End()
			continue
		}

		if err := c.applySubscriptionEvent(ctxSpan, meta.EventType, msg.Value); err != nil {
			c.logger.Error("apply subscription event failed", "err", err, "event_id", meta.EventID)
			span.RecordError(err)
			span.End()
			continue
		}
		span.End()
	}
}

type subscriptionEvent struct {
	BusinessID         string `json:"business_id"`
	Tier               string `json:"tier"`
	MaxMonthlyBookings int    `json:"max_monthly_bookings"`
	MaxProfessionals   int    `json:"max_professionals"`
}

func (c *Consumer) applySubscriptionEvent(ctx context.Context, eventType string, payload []byte) error {
	var evt subscriptionEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return fmt.Errorf("decode subscription event: %w", err)
	}
	if evt.BusinessID == "" {
		return fmt.Errorf("subscription event without business id")
	}

	ent := storage.BusinessEntitlements{
		BusinessID:         evt.BusinessID,
		Tier:               evt.Tier,
		MaxMonthlyBookings: evt.MaxMonthlyBookings,
		MaxProfessionals:   evt.MaxProfessionals,
		Active:             eventType == "billing.subscription.activated.v1",
	}
	err := db.InTx(ctx, c.pool, func(tx pgx.Tx) error {
		return c.repo.UpsertBusinessEntitlements(ctx, tx, ent)
	})
	if err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "entitlements updated",
		"business_id", ent.BusinessID,
		"tier", ent.Tier,
		"active", ent.Active)
	return nil
}
