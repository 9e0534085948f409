package kafkax

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// EventMeta is the metadata envelope carried on every message between
// services: a stable event id (for inbox dedupe) and the event type.
type EventMeta struct {
	EventID   string
	EventType string
}

func ExtractEventMeta(msg kafka.Message) EventMeta {
	eventID := HeaderValue(msg.Headers, "event_id")
	eventType := HeaderValue(msg.Headers, "event_type")
	if eventID == "" {
		eventID = string(msg.Key)
	}
	if eventType == "" {
		eventType = msg.Topic
	}
	return EventMeta{EventID: eventID, EventType: eventType}
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func ReadyCheck(brokers string) func(context.Context) error {
	return func(ctx context.Context) error {
		list := SplitBrokers(brokers)
		if len(list) == 0 {
			return errors.New("kafka brokers not configured")
		}
		dialer := kafka.Dialer{Timeout: 2 * time.Second}
		conn, err := dialer.DialContext(ctx, "tcp", list[0])
		if err != nil {
			return err
		}
		_ = conn.Close()
		return nil
	}
}
