package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type (
	Config struct {
		HTTP            HTTP
		Log             Log
		PG              PG
		S3              S3
		Ingestion       Ingestion
		Scheduler       Scheduler
		OutboxRelay     OutboxRelay
		Kafka           Kafka
		KafkaController KafkaController
		Swagger         Swagger
		Metrics         Metrics
	}

	HTTP struct {
		Port           string        `env:"HTTP_PORT,required"`
		UsePreforkMode bool          `env:"HTTP_USE_PREFORK_MODE" envDefault:"false"`
		ReadTimeout    time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"1m"`
		WriteTimeout   time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"10m"` // bulk ingestion answers after every item is done
	}

	Log struct {
		Level string `env:"LOG_LEVEL,required"`
	}

	PG struct {
		PoolMax int    `env:"PG_POOL_MAX,required"`
		URL     string `env:"PG_URL,required"`
		Migrate bool   `env:"PG_MIGRATE" envDefault:"true"`
	}

	S3 struct {
		Endpoint       string        `env:"S3_ENDPOINT,required"`
		AccessKey      string        `env:"S3_ACCESS_KEY,required"`
		SecretKey      string        `env:"S3_SECRET_KEY,required"`
		Bucket         string        `env:"S3_BUCKET,required"`
		Region         string        `env:"S3_REGION" envDefault:"us-east-1"`
		UsePathStyle   bool          `env:"S3_USE_PATH_STYLE" envDefault:"true"`
		CfgLoadTimeout time.Duration `env:"S3_LOAD_CFG_TIMEOUT" envDefault:"10s"`
		PublicRead     bool          `env:"S3_PUBLIC_READ" envDefault:"true"`
		SignedURLTTL   time.Duration `env:"S3_SIGNED_URL_TTL" envDefault:"24h"`
		PresignCache   int           `env:"S3_PRESIGN_CACHE_SIZE" envDefault:"4096"`
		PartWorkers    int           `env:"S3_MULTIPART_CONCURRENCY" envDefault:"0"` // 0 - every part at once
		CreateBucket   bool          `env:"S3_CREATE_BUCKET" envDefault:"false"`
	}

	Ingestion struct {
		Workers        int           `env:"INGESTION_WORKERS" envDefault:"0"` // 0 - runtime.NumCPU()
		ItemTimeout    time.Duration `env:"INGESTION_ITEM_TIMEOUT" envDefault:"2m"`
		MaxFileSize    int64         `env:"INGESTION_MAX_FILE_SIZE" envDefault:"104857600"`
		MaxBatchBytes  int64         `env:"INGESTION_MAX_BATCH_BYTES" envDefault:"1073741824"`
		RequirePrimary bool          `env:"INGESTION_REQUIRE_PRIMARY" envDefault:"true"`
		Folder         string        `env:"INGESTION_FOLDER" envDefault:"products"`
	}

	Scheduler struct {
		Enabled      bool          `env:"SCHEDULER_ENABLED" envDefault:"true"`
		Spec         string        `env:"SCHEDULER_SPEC" envDefault:"@every 1m"`
		SweepTimeout time.Duration `env:"SCHEDULER_SWEEP_TIMEOUT" envDefault:"50s"`
		BatchSize    int           `env:"SCHEDULER_BATCH_SIZE" envDefault:"500"`
		Timezone     string        `env:"SCHEDULER_TIMEZONE" envDefault:"UTC"`

		// ShutdownTimeout bounds the wait for an in-flight sweep.
		ShutdownTimeout time.Duration `env:"SCHEDULER_SHUTDOWN_TIMEOUT" envDefault:"55s"`
	}

	Kafka struct {
		Brokers       []string `env:"KAFKA_BROKERS,required"`
		GroupID       string   `env:"KAFKA_GROUP_ID,required"`
		EventsTopic   string   `env:"KAFKA_EVENTS_TOPIC,required"`
		CommandsTopic string   `env:"KAFKA_COMMANDS_TOPIC,required"`

		CreateTopics     bool          `env:"KAFKA_CREATE_TOPICS" envDefault:"false"`
		TopicPartitions  int           `env:"KAFKA_TOPIC_PARTITIONS" envDefault:"3"`
		TopicReplication int           `env:"KAFKA_TOPIC_REPLICATION" envDefault:"1"`
		CompressEvents   bool          `env:"KAFKA_COMPRESS_EVENTS" envDefault:"false"`
		ConsumerMaxWait  time.Duration `env:"KAFKA_CONSUMER_MAX_WAIT" envDefault:"500ms"`
	}

	OutboxRelay struct {
		PollInterval        time.Duration `env:"OUTBOX_RELAY_POLL_INTERVAL" envDefault:"2s"`
		MarkFailedInterval  time.Duration `env:"OUTBOX_RELAY_MARK_FAILED_INTERVAL" envDefault:"2m"`
		CleanupInterval     time.Duration `env:"OUTBOX_RELAY_CLEANUP_INTERVAL" envDefault:"24h"`
		Retention           time.Duration `env:"OUTBOX_RELAY_RETENTION" envDefault:"24h"`
		ProcessBatchTimeout time.Duration `env:"OUTBOX_RELAY_PROCESS_BATCH_TIMEOUT" envDefault:"15s"`
		ShutdownTimeout     time.Duration `env:"OUTBOX_RELAY_SHUTDOWN_TIMEOUT" envDefault:"5s"`
		BatchSize           int           `env:"OUTBOX_RELAY_BATCH_SIZE" envDefault:"100"`
		MaxRetries          int           `env:"OUTBOX_RELAY_MAX_RETRIES" envDefault:"3"`
	}

	KafkaController struct {
		CommitTimeout   time.Duration `env:"KAFKA_CONTROLLER_COMMIT_TIMEOUT" envDefault:"2s"`
		ProcessTimeout  time.Duration `env:"KAFKA_CONTROLLER_PROCESS_TIMEOUT" envDefault:"15s"` // one command, database included
		Workers         int           `env:"KAFKA_CONTROLLER_WORKERS" envDefault:"4"`
		Retries         int           `env:"KAFKA_CONTROLLER_RETRIES" envDefault:"5"`
		RetryBackoff    time.Duration `env:"KAFKA_CONTROLLER_RETRY_BACKOFF" envDefault:"200ms"`
		ShutdownTimeout time.Duration `env:"KAFKA_CONTROLLER_SHUTDOWN_TIMEOUT" envDefault:"5s"`
	}

	Swagger struct {
		Enabled bool `env:"SWAGGER_ENABLED" envDefault:"false"`
	}

	Metrics struct {
		Enabled bool `env:"METRICS_ENABLED" envDefault:"true"`
	}
)

func New() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	return cfg, nil
}

// Location resolves SCHEDULER_TIMEZONE.
func (s Scheduler) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config error: SCHEDULER_TIMEZONE: %w", err)
	}

	return loc, nil
}
