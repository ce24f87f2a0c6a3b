package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/NordCoder/Pricewatch/internal/domain/outbox"
)

type memWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error {
	w.closed = true
	return nil
}

func TestAlertEventsKafka_Publish(t *testing.T) {
	w := &memWriter{}
	ev := NewAlertEventsKafka(newProducer(w, "pricewatch.alerts"))
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	err := ev.PublishAlertCreated(context.Background(), outbox.AlertEvent{
		AlertID: "a1", UserID: "u1", ItemID: "i1", Type: "price_drop", Priority: "medium",
		Status: "pending", Price: 80, OccurredAt: at,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("i1"), w.msgs[0].Key)
	hs := w.msgs[0].Headers
	assert.Equal(t, EventAlertCreated, headers{hs: &hs}.Get(HeaderEvent))
	assert.Contains(t, headers{hs: &hs}.Get(HeaderContentType), "google.protobuf.Struct")

	var got structpb.Struct
	require.NoError(t, proto.Unmarshal(w.msgs[0].Value, &got))
	f := got.GetFields()
	assert.Equal(t, EventAlertCreated, f["event"].GetStringValue())
	assert.Equal(t, "a1", f["alert_id"].GetStringValue())
	assert.Equal(t, 80.0, f["price"].GetNumberValue())
	assert.Equal(t, "2024-03-01T12:00:00Z", f["occurred_at"].GetStringValue())
}

func TestProducer_WriteError(t *testing.T) {
	w := &memWriter{err: errors.New("leader not available")}
	p := newProducer(w, "t")
	err := p.Publish(context.Background(), "k", EventAlertResolved, &structpb.Struct{})
	assert.EqualError(t, err, "leader not available")
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestCheckRequestFromStruct(t *testing.T) {
	s, _ := structpb.NewStruct(map[string]any{"item_id": "i1"})
	req, err := CheckRequestFromStruct(s)
	require.NoError(t, err)
	assert.Equal(t, "i1", req.ItemID)

	both, _ := structpb.NewStruct(map[string]any{"item_id": "i1", "user_id": "u1"})
	_, err = CheckRequestFromStruct(both)
	assert.Error(t, err)

	_, err = CheckRequestFromStruct(&structpb.Struct{})
	assert.Error(t, err)
}

func TestProtoHandler_BadPayload(t *testing.T) {
	called := false
	h := ProtoHandler(func() *structpb.Struct { return &structpb.Struct{} },
		func(context.Context, []byte, *structpb.Struct) error { called = true; return nil })
	assert.ErrorIs(t, h(context.Background(), nil, []byte{0xff, 0xff}), ErrBadPayload)
	assert.False(t, called)
}

func TestHeaders_SetReplaces(t *testing.T) {
	var hs []kafka.Header
	h := headers{hs: &hs}
	h.Set("traceparent", "a")
	h.Set("traceparent", "b")
	h.Set("baggage", "x")

	assert.Len(t, hs, 2)
	assert.Equal(t, "b", h.Get("traceparent"))
	assert.Equal(t, "", h.Get("missing"))
	assert.ElementsMatch(t, []string{"traceparent", "baggage"}, h.Keys())
}

func TestTopicSpecs(t *testing.T) {
	specs := TopicSpecs([]string{"pricewatch.alerts", "", "pricewatch.checks.request"}, 3, 1, time.Second)
	require.Len(t, specs, 2)
	assert.Equal(t, TopicSpec{Name: "pricewatch.alerts", NumPartitions: 3, ReplicationFactor: 1, MaxWait: time.Second}, specs[0])
	assert.Equal(t, "pricewatch.checks.request", specs[1].Name)
}
