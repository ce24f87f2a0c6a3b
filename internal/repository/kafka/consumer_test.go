package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// chanReader serves queued messages, then blocks until ctx is done.
type chanReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	fetchErrs []error
	committed []int64
}

func (r *chanReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.fetchErrs) > 0 {
		err := r.fetchErrs[0]
		r.fetchErrs = r.fetchErrs[1:]
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *chanReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *chanReader) Close() error { return nil }

func (r *chanReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func TestConsumer_CommitsWhateverTheOutcome(t *testing.T) {
	r := &chanReader{
		fetchErrs: []error{errors.New("broker not available")},
		msgs: []kafka.Message{
			{Topic: "checks", Offset: 1, Value: []byte("ok")},
			{Topic: "checks", Offset: 2, Value: []byte("fail")},
			{Topic: "checks", Offset: 3, Value: []byte("panic")},
		},
	}
	c := newConsumer(r, ConsumerConfig{Topic: "checks", HandlerTimeout: time.Second, Logger: zaptest.NewLogger(t)})
	c.backoff = retryNow{}

	var mu sync.Mutex
	var seen []string
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- c.Consume(ctx, func(ctx context.Context, _, value []byte) error {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			mu.Lock()
			seen = append(seen, string(value))
			mu.Unlock()
			switch string(value) {
			case "fail":
				return errors.New("tracker down")
			case "panic":
				panic("boom")
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool { return len(r.commits()) == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
	assert.Equal(t, []int64{1, 2, 3}, r.commits())
	assert.Equal(t, []string{"ok", "fail", "panic"}, seen)
}

type retryNow struct{}

func (retryNow) Next(int) time.Duration { return 0 }
