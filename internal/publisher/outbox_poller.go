// Package publisher relays outbox events written by checkout and payment
// confirmation to Kafka.
package publisher

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jinto-ag/emart/internal/domain"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const batchSize = 100

type EventStore interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id uuid.UUID) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type OutboxPoller struct {
	timeout   time.Duration
	eventTick time.Duration
	store     EventStore
	writer    MessageWriter
	log       zerolog.Logger
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func NewOutboxPoller(store EventStore, writer MessageWriter, log zerolog.Logger) *OutboxPoller {
	return &OutboxPoller{
		timeout:   5 * time.Second,
		eventTick: time.Second,
		store:     store,
		writer:    writer,
		log:       log.With().Str("component", "outbox").Logger(),
	}
}

// Run polls until ctx is done.
func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.eventTick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Close flushes and closes the writer.
func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

// processUnpublishedEvents publishes one batch. An event that fails to
// publish stays pending and is retried on the next tick; the remaining events
// of the batch are still attempted.
func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) int {
	events, err := p.store.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		p.log.Error().Err(err).Msg("failed to fetch outbox events")
		return 0
	}

	published := 0
	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			p.log.Error().Err(err).
				Str("event_id", event.ID.String()).
				Str("event_type", event.EventType).
				Msg("failed to publish event")
			continue
		}

		if err := p.store.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.log.Error().Err(err).Str("event_id", event.ID.String()).Msg("failed to mark event as processed")
			continue
		}
		published++
	}
	return published
}

func (p *OutboxPoller) publish(ctx context.Context, event *domain.OutboxEvent) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		// order id keeps every event of one order on one partition
		Key:   []byte(event.AggregateID),
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.ID.String())},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
