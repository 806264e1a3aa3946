package kafka

import (
	"context"
	"fmt"
	"sync"

	"github.com/andreyxaxa/catalog-ingest/pkg/kafka/consumer"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// CommandConsumer reads commands for a pool of workers. Workers finish out of
// order, but a partition's offset only moves past a message once it and every
// message fetched before it on that partition are done. A command still in
// flight when the process dies is therefore redelivered.
type CommandConsumer struct {
	r messageReader

	mu      sync.Mutex
	pending map[int]*partitionMarks
}

// partitionMarks tracks fetched offsets of one partition, ascending.
type partitionMarks struct {
	fetched []int64
	done    map[int64]kafka.Message
}

func NewCommandConsumer(c *consumer.Consumer) *CommandConsumer {
	return newCommandConsumer(c.Reader)
}

func newCommandConsumer(r messageReader) *CommandConsumer {
	return &CommandConsumer{
		r:       r,
		pending: make(map[int]*partitionMarks),
	}
}

func (cc *CommandConsumer) ReadCommand(ctx context.Context) (kafka.Message, error) {
	msg, err := cc.r.FetchMessage(ctx)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("CommandConsumer - ReadCommand - cc.r.FetchMessage: %w", err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()

	p, ok := cc.pending[msg.Partition]
	// an offset going backwards means the partition was reassigned and
	// replayed from the committed offset; older marks are void
	if !ok || (len(p.fetched) > 0 && msg.Offset <= p.fetched[len(p.fetched)-1]) {
		p = &partitionMarks{done: make(map[int64]kafka.Message)}
		cc.pending[msg.Partition] = p
	}
	p.fetched = append(p.fetched, msg.Offset)

	return msg, nil
}

// CommitCommand marks msg done and commits the longest finished prefix of its
// partition. Nothing is committed while an earlier message is in flight.
func (cc *CommandConsumer) CommitCommand(ctx context.Context, msg kafka.Message) error {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	p, ok := cc.pending[msg.Partition]
	// a mark voided by a replay
	if !ok || len(p.fetched) == 0 || msg.Offset < p.fetched[0] {
		return nil
	}
	p.done[msg.Offset] = msg

	var (
		last    kafka.Message
		advance bool
	)
	for len(p.fetched) > 0 {
		m, ok := p.done[p.fetched[0]]
		if !ok {
			break
		}
		delete(p.done, p.fetched[0])
		p.fetched = p.fetched[1:]
		last, advance = m, true
	}
	if !advance {
		return nil
	}

	// under the lock so commits of one partition never go backwards
	err := cc.r.CommitMessages(ctx, last)
	if err != nil {
		return fmt.Errorf("CommandConsumer - CommitCommand - cc.r.CommitMessages offset=%d: %w", last.Offset, err)
	}

	return nil
}

func (cc *CommandConsumer) Close() error {
	err := cc.r.Close()
	if err != nil {
		return fmt.Errorf("CommandConsumer - Close: %w", err)
	}

	return nil
}
