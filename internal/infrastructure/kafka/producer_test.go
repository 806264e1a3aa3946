package kafka

import (
	"testing"

	"github.com/andreyxaxa/catalog-ingest/internal/entity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestEventMessage(t *testing.T) {
	event := &entity.OutboxEvent{
		ID:          uuid.New(),
		AggregateID: uuid.New(),
		EventType:   entity.EventRecordPublished,
		Payload:     []byte(`{"external_id":"A1"}`),
	}

	msg := EventMessage("catalog.events", event)

	assert.Equal(t, "catalog.events", msg.Topic)
	assert.Equal(t, event.AggregateID.String(), string(msg.Key))
	assert.Equal(t, event.Payload, msg.Value)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, headerEventType, msg.Headers[1].Key)
	assert.Equal(t, entity.EventRecordPublished, string(msg.Headers[1].Value))
}
