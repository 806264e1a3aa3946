package producer

import (
	"time"

	"github.com/segmentio/kafka-go"
)

type Option func(*Producer)

func ConnAttempts(attempts int) Option {
	return func(p *Producer) {
		p.connAttempts = attempts
	}
}

func ConnTimeout(timeout time.Duration) Option {
	return func(p *Producer) {
		p.connTimeout = timeout
	}
}

func BatchTimeout(timeout time.Duration) Option {
	return func(p *Producer) {
		p.batchTimeout = timeout
	}
}

// Compression sets the codec for produced batches. Events are small JSON
// documents, so the default is none.
func Compression(codec kafka.Compression) Option {
	return func(p *Producer) {
		p.compression = codec
	}
}
