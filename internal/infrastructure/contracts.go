package infrastructure

import (
	"context"

	"github.com/andreyxaxa/catalog-ingest/internal/entity"
	"github.com/segmentio/kafka-go"
)

type (
	EventsSender interface {
		SendEvents(ctx context.Context, events []*entity.OutboxEvent) error
		Close() error
	}

	CommandsReader interface {
		ReadCommand(ctx context.Context) (kafka.Message, error)
		CommitCommand(ctx context.Context, msg kafka.Message) error
		Close() error
	}
)
