package kafka

import (
	"context"
	"fmt"

	"github.com/andreyxaxa/catalog-ingest/internal/entity"
	"github.com/andreyxaxa/catalog-ingest/pkg/kafka/producer"
	"github.com/segmentio/kafka-go"
)

const (
	headerEventID   = "event_id"
	headerEventType = "event_type"
)

// EventProducer publishes outbox events keyed by their aggregate, so every
// event of one catalog record lands on the same partition in order.
type EventProducer struct {
	*producer.Producer
	topic string
}

func NewEventProducer(producer *producer.Producer, topic string) *EventProducer {
	return &EventProducer{
		producer,
		topic,
	}
}

func (ep *EventProducer) SendEvents(ctx context.Context, events []*entity.OutboxEvent) error {
	msgsToSend := make([]kafka.Message, 0, len(events))

	for _, event := range events {
		msgsToSend = append(msgsToSend, EventMessage(ep.topic, event))
	}

	if len(msgsToSend) == 0 {
		return nil
	}

	err := ep.Writer.WriteMessages(ctx, msgsToSend...)
	if err != nil {
		return fmt.Errorf("EventProducer - SendEvents - ep.Writer.WriteMessages: %w", err)
	}

	return nil
}

// EventMessage maps an outbox event to its wire message.
func EventMessage(topic string, event *entity.OutboxEvent) kafka.Message {
	return kafka.Message{
		Topic: topic,
		Key:   []byte(event.AggregateID.String()),
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: headerEventID, Value: []byte(event.ID.String())},
			{Key: headerEventType, Value: []byte(event.EventType)},
		},
	}
}

func (ep *EventProducer) Close() error {
	err := ep.Producer.Close()
	if err != nil {
		return fmt.Errorf("EventProducer - Close: %w", err)
	}

	return nil
}
