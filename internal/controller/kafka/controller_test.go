package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/andreyxaxa/catalog-ingest/internal/dto"
	"github.com/andreyxaxa/catalog-ingest/internal/entity"
	"github.com/andreyxaxa/catalog-ingest/pkg/logger"
	"github.com/andreyxaxa/catalog-ingest/pkg/types/errs"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []int64
	closed    bool
}

func (r *fakeReader) ReadCommand(ctx context.Context) (kafka.Message, error) {
	select {
	case msg := <-r.msgs:
		return msg, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitCommand(_ context.Context, msg kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msg.Offset)
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type fakePublishing struct {
	mu       sync.Mutex
	executed []dto.ScheduleCommand
	results  map[string]error

	// failTimes fails an id transiently that many times before results apply
	failTimes map[string]int
}

func (p *fakePublishing) Execute(_ context.Context, cmd dto.ScheduleCommand) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.executed = append(p.executed, cmd)
	if p.failTimes[cmd.ExternalID] > 0 {
		p.failTimes[cmd.ExternalID]--
		return errors.New("connection reset by peer")
	}
	return p.results[cmd.ExternalID]
}

func (p *fakePublishing) executions(externalID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, cmd := range p.executed {
		if cmd.ExternalID == externalID {
			n++
		}
	}
	return n
}

func (p *fakePublishing) Schedule(context.Context, string, dto.ScheduleRequest) (*entity.CatalogRecord, error) {
	return nil, nil
}
func (p *fakePublishing) Publish(context.Context, string) (*entity.CatalogRecord, error) {
	return nil, nil
}
func (p *fakePublishing) Cancel(context.Context, string) (*entity.CatalogRecord, error) {
	return nil, nil
}
func (p *fakePublishing) Sweep(context.Context) (dto.SweepResult, error) {
	return dto.SweepResult{}, nil
}

func TestControllerCommitPolicy(t *testing.T) {
	reader := &fakeReader{msgs: make(chan kafka.Message, 8)}
	pub := &fakePublishing{results: map[string]error{
		"GONE":  errs.ErrRecordNotFound,
		"FLAKY": errors.New("connection reset by peer"),
	}}

	c := New(pub, reader, logger.New("disabled"), time.Second, time.Second, 2, 2, 10*time.Millisecond)
	require.NoError(t, c.Start(context.Background()))
	assert.Error(t, c.Start(context.Background()))

	reader.msgs <- kafka.Message{Offset: 1, Value: []byte(`{"command":"publish","external_id":"A1"}`)}
	reader.msgs <- kafka.Message{Offset: 2, Value: []byte(`{"command":"publish","external_id":"GONE"}`)}
	reader.msgs <- kafka.Message{Offset: 3, Value: []byte(`{"command":"publish","external_id":"FLAKY"}`)}
	reader.msgs <- kafka.Message{Offset: 4, Value: []byte(`{"command":"publish","externalId":"A1"}`)}
	reader.msgs <- kafka.Message{Offset: 5, Value: []byte(`not json`)}

	assert.Eventually(t, func() bool {
		return len(reader.commits()) == 5
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Shutdown(context.Background()))

	assert.ElementsMatch(t, []int64{1, 2, 3, 4, 5}, reader.commits())
	assert.True(t, reader.closed)

	// permanent failures run once, a transient one until the retries run out
	assert.Equal(t, 1, pub.executions("A1"))
	assert.Equal(t, 1, pub.executions("GONE"))
	assert.Equal(t, 3, pub.executions("FLAKY"))
}

func TestControllerRetriesTransientFailure(t *testing.T) {
	reader := &fakeReader{msgs: make(chan kafka.Message, 1)}
	pub := &fakePublishing{failTimes: map[string]int{"B1": 2}}

	c := New(pub, reader, logger.New("disabled"), time.Second, time.Second, 1, 5, 10*time.Millisecond)
	require.NoError(t, c.Start(context.Background()))

	reader.msgs <- kafka.Message{Offset: 7, Value: []byte(`{"command":"publish","external_id":"B1"}`)}

	assert.Eventually(t, func() bool {
		return len(reader.commits()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, c.Shutdown(context.Background()))

	assert.Equal(t, []int64{7}, reader.commits())
	assert.Equal(t, 3, pub.executions("B1"))
}

func TestControllerShutdownLeavesRetryUncommitted(t *testing.T) {
	reader := &fakeReader{msgs: make(chan kafka.Message, 1)}
	pub := &fakePublishing{failTimes: map[string]int{"B2": 100}}

	c := New(pub, reader, logger.New("disabled"), time.Second, time.Second, 1, 100, time.Hour)
	require.NoError(t, c.Start(context.Background()))

	reader.msgs <- kafka.Message{Offset: 9, Value: []byte(`{"command":"publish","external_id":"B2"}`)}

	assert.Eventually(t, func() bool {
		return pub.executions("B2") == 1
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Shutdown(ctx))

	assert.Empty(t, reader.commits())
}

func TestDecodeCommand(t *testing.T) {
	cmd, err := decodeCommand([]byte(`{"command":"schedule","external_id":"A1","scheduled_date":"2027-01-01","scheduled_time":"10:00"}`))
	require.NoError(t, err)
	assert.Equal(t, dto.ScheduleCommand{
		Command:       "schedule",
		ExternalID:    "A1",
		ScheduledDate: "2027-01-01",
		ScheduledTime: "10:00",
	}, cmd)

	_, err = decodeCommand([]byte(`{"command":"schedule","extra":true}`))
	assert.ErrorIs(t, err, errs.ErrValidation)
}
