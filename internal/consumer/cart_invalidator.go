// Package consumer reads the storefront's own outbox topic.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jinto-ag/emart/internal/domain"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type CartEvictor interface {
	Delete(ctx context.Context, userID int64) error
}

// CartInvalidator evicts a user's cached cart once an order.created event
// for them is seen. Checkout already evicts synchronously; this covers the
// case where that eviction failed or another instance still holds the cart.
type CartInvalidator struct {
	reader  MessageReader
	cache   CartEvictor
	backoff time.Duration
	log     zerolog.Logger
}

func NewKafkaReader(topic string, brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  "storefront-cart-cache",
		MaxBytes: 10e6, // 10MB
	})
}

func NewCartInvalidator(reader MessageReader, cache CartEvictor, log zerolog.Logger) *CartInvalidator {
	return &CartInvalidator{
		reader:  reader,
		cache:   cache,
		backoff: time.Second,
		log:     log.With().Str("component", "cart_invalidator").Logger(),
	}
}

func (c *CartInvalidator) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.processMessage(ctx); err != nil && ctx.Err() == nil {
			c.log.Error().Err(err).Msg("failed to process message")
			select {
			case <-time.After(c.backoff):
			case <-ctx.Done():
			}
		}
	}
}

func (c *CartInvalidator) Close() error {
	return c.reader.Close()
}

type orderCreated struct {
	UserID int64 `json:"user_id"`
}

// processMessage handles one message. The offset is committed only after the
// eviction succeeded, so a failed eviction is seen again.
func (c *CartInvalidator) processMessage(ctx context.Context) error {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	if eventType(m) == domain.EventOrderCreated {
		var event orderCreated
		if err := json.Unmarshal(m.Value, &event); err != nil || event.UserID <= 0 {
			// malformed events are skipped, retrying cannot fix them
			c.log.Warn().Err(err).Str("key", string(m.Key)).Msg("skipping malformed order event")
		} else if err := c.cache.Delete(ctx, event.UserID); err != nil {
			return err
		}
	}

	return c.reader.CommitMessages(ctx, m)
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
