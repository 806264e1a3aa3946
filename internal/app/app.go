package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andreyxaxa/catalog-ingest/config"
	kafkactrl "github.com/andreyxaxa/catalog-ingest/internal/controller/kafka"
	"github.com/andreyxaxa/catalog-ingest/internal/controller/restapi"
	"github.com/andreyxaxa/catalog-ingest/internal/controller/worker/outbox"
	"github.com/andreyxaxa/catalog-ingest/internal/controller/worker/scheduler"
	infrakafka "github.com/andreyxaxa/catalog-ingest/internal/infrastructure/kafka"
	"github.com/andreyxaxa/catalog-ingest/internal/repo/persistent"
	"github.com/andreyxaxa/catalog-ingest/internal/usecase/catalog"
	"github.com/andreyxaxa/catalog-ingest/internal/usecase/ingestion"
	"github.com/andreyxaxa/catalog-ingest/internal/usecase/publishing"
	"github.com/andreyxaxa/catalog-ingest/migrations"
	"github.com/andreyxaxa/catalog-ingest/pkg/httpserver"
	"github.com/andreyxaxa/catalog-ingest/pkg/kafka/consumer"
	"github.com/andreyxaxa/catalog-ingest/pkg/kafka/producer"
	"github.com/andreyxaxa/catalog-ingest/pkg/logger"
	"github.com/andreyxaxa/catalog-ingest/pkg/postgres"
	"github.com/andreyxaxa/catalog-ingest/pkg/s3client"
	"github.com/segmentio/kafka-go"
)

func Run(cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Logger
	l := logger.New(cfg.Log.Level)

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - cfg.Scheduler.Location: %w", err))
	}

	// Repository

	// postgres
	pg, err := postgres.New(cfg.PG.URL, postgres.MaxPoolSize(cfg.PG.PoolMax))
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - postgres.New: %w", err))
	}
	defer pg.Close()

	if cfg.PG.Migrate {
		version, err := postgres.Migrate(cfg.PG.URL, migrations.FS, ".")
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - postgres.Migrate: %w", err))
		}
		l.Info("app - Run - schema at version %d", version)
	}

	// s3
	s3Ctx, s3Cancel := context.WithTimeout(ctx, cfg.S3.CfgLoadTimeout)
	defer s3Cancel()
	s3c, err := s3client.New(s3Ctx, cfg.S3.Endpoint, cfg.S3.AccessKey, cfg.S3.SecretKey,
		s3client.Region(cfg.S3.Region),
		s3client.UsePathStyle(cfg.S3.UsePathStyle),
	)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - s3client.New: %w", err))
	}
	if cfg.S3.CreateBucket {
		err = s3c.EnsureBucket(ctx, cfg.S3.Bucket)
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - s3c.EnsureBucket: %w", err))
		}
	}

	catalogRepo := persistent.NewCatalogRepo(pg)
	categoryRepo := persistent.NewCategoryRepo(pg)
	outboxRepo := persistent.NewOutboxRepo(pg)
	objectStorage := persistent.NewObjectStorage(s3c, cfg.S3.Bucket, l,
		persistent.PublicRead(cfg.S3.PublicRead),
		persistent.SignedURLTTL(cfg.S3.SignedURLTTL),
		persistent.PartConcurrency(cfg.S3.PartWorkers),
	)

	// Use-Case

	// ingestion use-case
	ingestionUseCase := ingestion.New(
		catalogRepo,
		categoryRepo,
		outboxRepo,
		objectStorage,
		pg,
		l,
		ingestion.Workers(cfg.Ingestion.Workers),
		ingestion.ItemTimeout(cfg.Ingestion.ItemTimeout),
		ingestion.Folder(cfg.Ingestion.Folder),
		ingestion.RequirePrimary(cfg.Ingestion.RequirePrimary),
		ingestion.Location(loc),
	)

	// publishing use-case
	publishingUseCase := publishing.New(
		catalogRepo,
		outboxRepo,
		pg,
		l,
		publishing.BatchSize(cfg.Scheduler.BatchSize),
		publishing.Location(loc),
	)

	// catalog use-case
	catalogUseCase := catalog.New(
		catalogRepo,
		outboxRepo,
		objectStorage,
		l,
		catalog.SignedURLTTL(cfg.S3.SignedURLTTL),
		catalog.CacheSize(cfg.S3.PresignCache),
		catalog.OutboxRetention(cfg.OutboxRelay.Retention),
	)

	// Kafka Producer
	producerOpts := []producer.Option{}
	if cfg.Kafka.CompressEvents {
		producerOpts = append(producerOpts, producer.Compression(kafka.Snappy))
	}
	kafkaProducer, err := producer.New(ctx, cfg.Kafka.Brokers, producerOpts...)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - producer.New: %w", err))
	}
	if cfg.Kafka.CreateTopics {
		err = kafkaProducer.EnsureTopics(ctx, cfg.Kafka.TopicPartitions, cfg.Kafka.TopicReplication,
			cfg.Kafka.EventsTopic, cfg.Kafka.CommandsTopic)
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - kafkaProducer.EnsureTopics: %w", err))
		}
	}

	// Outbox Relay Worker
	outboxRelayWorker := outbox.New(
		catalogUseCase,
		infrakafka.NewEventProducer(kafkaProducer, cfg.Kafka.EventsTopic),
		l,
		outbox.Config{
			PollInterval:        cfg.OutboxRelay.PollInterval,
			CleanupInterval:     cfg.OutboxRelay.CleanupInterval,
			MarkFailedInterval:  cfg.OutboxRelay.MarkFailedInterval,
			ProcessBatchTimeout: cfg.OutboxRelay.ProcessBatchTimeout,
			BatchSize:           cfg.OutboxRelay.BatchSize,
			MaxRetries:          cfg.OutboxRelay.MaxRetries,
		},
	)

	// Kafka Consumer
	kafkaConsumer, err := consumer.New(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.CommandsTopic,
		consumer.MaxWait(cfg.Kafka.ConsumerMaxWait),
	)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - consumer.New: %w", err))
	}

	// Kafka as Controller
	kafkaController := kafkactrl.New(
		publishingUseCase,
		infrakafka.NewCommandConsumer(kafkaConsumer),
		l,
		cfg.KafkaController.CommitTimeout,
		cfg.KafkaController.ProcessTimeout,
		cfg.KafkaController.Workers,
		cfg.KafkaController.Retries,
		cfg.KafkaController.RetryBackoff,
	)

	// Publish Scheduler
	publishScheduler := scheduler.New(
		publishingUseCase,
		l,
		cfg.Scheduler.Spec,
		cfg.Scheduler.SweepTimeout,
		loc,
	)

	// HTTP Server
	httpServer := httpserver.New(l,
		httpserver.Port(cfg.HTTP.Port),
		httpserver.Prefork(cfg.HTTP.UsePreforkMode),
		httpserver.ReadTimeout(cfg.HTTP.ReadTimeout),
		httpserver.WriteTimeout(cfg.HTTP.WriteTimeout),
		httpserver.BodyLimit(int(cfg.Ingestion.MaxBatchBytes)+_multipartOverhead),
	)
	restapi.NewRouter(httpServer.App, cfg, ingestionUseCase, publishingUseCase, catalogUseCase, l)

	// Start Components
	err = outboxRelayWorker.Start(ctx)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - outboxRelayWorker.Start: %w", err))
	}
	err = kafkaController.Start(ctx)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - kafkaController.Start: %w", err))
	}
	if cfg.Scheduler.Enabled {
		err = publishScheduler.Start(ctx)
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - publishScheduler.Start: %w", err))
		}
	}
	httpServer.Start()

	// Waiting Signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case s := <-interrupt:
		l.Info("app - Run - signal: %s", s.String())
	case err = <-httpServer.Notify():
		l.Error(fmt.Errorf("app - Run - httpServer.Notify: %w", err))
	}

	// Shutdown
	err = httpServer.Shutdown()
	if err != nil {
		l.Error(fmt.Errorf("app - Run - httpServer.Shutdown: %w", err))
	}

	// a sweep in flight finishes before anything it writes to goes away
	psShutdownCtx, psShutdownCancel := context.WithTimeout(ctx, cfg.Scheduler.ShutdownTimeout)
	defer psShutdownCancel()
	err = publishScheduler.Shutdown(psShutdownCtx)
	if err != nil {
		l.Error(fmt.Errorf("app - Run - publishScheduler.Shutdown: %w", err))
	}

	kcShutdownCtx, kcShutdownCancel := context.WithTimeout(ctx, cfg.KafkaController.ShutdownTimeout)
	defer kcShutdownCancel()
	err = kafkaController.Shutdown(kcShutdownCtx)
	if err != nil {
		l.Error(fmt.Errorf("app - Run - kafkaController.Shutdown: %w", err))
	}

	orlShutdownCtx, orlShutdownCancel := context.WithTimeout(ctx, cfg.OutboxRelay.ShutdownTimeout)
	defer orlShutdownCancel()
	err = outboxRelayWorker.Shutdown(orlShutdownCtx)
	if err != nil {
		l.Error(fmt.Errorf("app - Run - outboxRelayWorker.Shutdown: %w", err))
	}
}

// room for multipart boundaries, part headers and the manifest field
const _multipartOverhead = 16 * 1024 * 1024
