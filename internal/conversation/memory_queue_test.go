package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueueSendReceive(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()

	require.NoError(t, q.Send(ctx, "one"))
	require.NoError(t, q.Send(ctx, "two"))

	messages, err := q.Receive(ctx, 10, 1)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "one", messages[0].Body)
	assert.Equal(t, "two", messages[1].Body)
	assert.NotEmpty(t, messages[0].ID)
}

func TestMemoryQueueReceiveRespectsBatchSize(t *testing.T) {
	q := NewMemoryQueue(8)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Send(ctx, "x"))
	}

	messages, err := q.Receive(ctx, 3, 1)
	require.NoError(t, err)
	assert.Len(t, messages, 3)
}

func TestMemoryQueueReceiveTimesOutEmpty(t *testing.T) {
	q := NewMemoryQueue(1)

	start := time.Now()
	messages, err := q.Receive(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Nil(t, messages)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestMemoryQueueReceiveHonorsContext(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Receive(ctx, 1, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEncodePayloadAssignsID(t *testing.T) {
	payload, body, err := encodePayload(queuePayload{Kind: jobTypeTurn, SessionID: "s-1", Text: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, payload.ID)
	assert.Contains(t, body, `"kind":"turn"`)
	assert.Contains(t, body, `"session_id":"s-1"`)
}
