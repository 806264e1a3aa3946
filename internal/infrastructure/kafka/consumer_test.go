package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReader struct {
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	msg := r.queue[0]
	r.queue = r.queue[1:]
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *stubReader) Close() error {
	r.closed = true
	return nil
}

func offsets(msgs []kafka.Message) []int64 {
	out := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Offset)
	}
	return out
}

func TestCommandConsumerCommitsInOrder(t *testing.T) {
	ctx := context.Background()
	r := &stubReader{queue: []kafka.Message{
		{Partition: 0, Offset: 10},
		{Partition: 0, Offset: 11},
		{Partition: 1, Offset: 5},
		{Partition: 0, Offset: 12},
	}}
	cc := newCommandConsumer(r)

	var msgs []kafka.Message
	for range 4 {
		msg, err := cc.ReadCommand(ctx)
		require.NoError(t, err)
		msgs = append(msgs, msg)
	}

	// 11 and 12 finish while 10 is still running
	require.NoError(t, cc.CommitCommand(ctx, msgs[1]))
	require.NoError(t, cc.CommitCommand(ctx, msgs[3]))
	assert.Empty(t, r.committed)

	// other partitions are independent
	require.NoError(t, cc.CommitCommand(ctx, msgs[2]))
	assert.Equal(t, []int64{5}, offsets(r.committed))

	require.NoError(t, cc.CommitCommand(ctx, msgs[0]))
	assert.Equal(t, []int64{5, 12}, offsets(r.committed))

	require.NoError(t, cc.Close())
	assert.True(t, r.closed)
}

func TestCommandConsumerReplayResetsMarks(t *testing.T) {
	ctx := context.Background()
	r := &stubReader{queue: []kafka.Message{
		{Partition: 0, Offset: 10},
		{Partition: 0, Offset: 11},
		{Partition: 0, Offset: 10},
	}}
	cc := newCommandConsumer(r)

	first, err := cc.ReadCommand(ctx)
	require.NoError(t, err)
	_, err = cc.ReadCommand(ctx)
	require.NoError(t, err)

	// replay after reassignment starts at 10 again
	replayed, err := cc.ReadCommand(ctx)
	require.NoError(t, err)

	require.NoError(t, cc.CommitCommand(ctx, replayed))
	assert.Equal(t, []int64{10}, offsets(r.committed))

	// a late commit of the void mark is harmless
	require.NoError(t, cc.CommitCommand(ctx, first))
	assert.Equal(t, []int64{10}, offsets(r.committed))
}
