package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"SpinPull/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type spinPayload struct {
	Number int `json:"number"`
}

type testJob struct {
	calls atomic.Int32
	last  atomic.Int32
	err   error
}

func (j *testJob) Name() string { return "test-job" }
func (j *testJob) Type() string { return "spin.ingest" }
func (j *testJob) Handle(_ context.Context, payload json.RawMessage) error {
	p, err := ParsePayload[spinPayload](payload)
	if err != nil {
		return err
	}
	j.calls.Add(1)
	j.last.Store(int32(p.Number))
	return j.err
}

func newClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestQueueDeliversToRegisteredJob(t *testing.T) {
	client, _ := newClient(t)
	job := &testJob{}
	q := NewRedisConsumer(logger.NewNop(), Config{Workers: 2}, client, []Job{job}, WithKeyPrefix("t:queue"))
	require.NoError(t, q.Start())
	defer q.Stop(context.Background())

	_, err := q.Enqueue(context.Background(), "spin.ingest", spinPayload{Number: 17})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return job.calls.Load() == 1 }, 3*time.Second, 20*time.Millisecond)
	assert.EqualValues(t, 17, job.last.Load())
}

func TestQueueMovesExhaustedMessageToDeadLetter(t *testing.T) {
	client, _ := newClient(t)
	job := &testJob{err: errors.New("boom")}
	q := NewRedisConsumer(logger.NewNop(), Config{Workers: 1, RetryLimit: 0}, client, []Job{job})
	require.NoError(t, q.Start())
	defer q.Stop(context.Background())

	require.NoError(t, q.PublishMessage(context.Background(), "spin.ingest", spinPayload{Number: 3}))

	require.Eventually(t, func() bool {
		_, _, dead, err := q.Depth(context.Background())
		return err == nil && dead == 1
	}, 3*time.Second, 20*time.Millisecond)
}

func TestQueueSchedulesRetry(t *testing.T) {
	client, _ := newClient(t)
	job := &testJob{err: errors.New("boom")}
	q := NewRedisConsumer(logger.NewNop(), Config{Workers: 1, RetryLimit: 3, RetryDelay: time.Hour}, client, []Job{job})
	require.NoError(t, q.Start())
	defer q.Stop(context.Background())

	_, err := q.Enqueue(context.Background(), "spin.ingest", spinPayload{Number: 8})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, retrying, _, err := q.Depth(context.Background())
		return err == nil && retrying == 1
	}, 3*time.Second, 20*time.Millisecond)
}

func TestPublisherOnlyEnqueuesAnyType(t *testing.T) {
	client, _ := newClient(t)
	p, err := NewRedisPublisher(logger.NewNop(), client)
	require.NoError(t, err)
	defer p.Stop(context.Background())

	_, err = p.Enqueue(context.Background(), "spin.ingest", spinPayload{Number: 0})
	require.NoError(t, err)

	queued, _, _, err := p.Depth(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, queued)
}

func TestEnqueueUnknownTypeRejected(t *testing.T) {
	client, _ := newClient(t)
	q := NewRedisConsumer(logger.NewNop(), Config{}, client, nil)
	require.NoError(t, q.Start())
	defer q.Stop(context.Background())

	_, err := q.Enqueue(context.Background(), "other", nil)
	assert.Error(t, err)
}

func TestParsePayloadEmpty(t *testing.T) {
	_, err := ParsePayload[spinPayload](nil)
	assert.Error(t, err)
}
