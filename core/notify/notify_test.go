package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaNotifier(t *testing.T) {
	w := &fakeWriter{}
	n := &KafkaNotifier{writer: w}

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	err := n.Notify(context.Background(), Event{
		Resource:  ResourceHiker,
		Operation: OperationCreate,
		Key:       "h@x.com",
		Payload:   json.RawMessage(`{"name":"Al"}`),
		Timestamp: ts,
	})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "hiker:h@x.com", string(msg.Key))
	assert.Equal(t, ts, msg.Time)
	assert.Equal(t, []kafka.Header{{Key: "operation", Value: []byte("create")}}, msg.Headers)

	var event Event
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, ResourceHiker, event.Resource)
	assert.Equal(t, OperationCreate, event.Operation)
	assert.JSONEq(t, `{"name":"Al"}`, string(event.Payload))

	require.NoError(t, n.Close())
	assert.True(t, w.closed)
}

func TestKafkaNotifierSetsTimestamp(t *testing.T) {
	w := &fakeWriter{}
	n := &KafkaNotifier{writer: w}
	require.NoError(t, n.Notify(context.Background(), Event{Resource: ResourceClub, Operation: OperationDelete, Key: "c@x.com"}))
	require.Len(t, w.messages, 1)
	assert.False(t, w.messages[0].Time.IsZero())
}

func TestKafkaNotifierPropagatesWriteError(t *testing.T) {
	n := &KafkaNotifier{writer: &fakeWriter{err: errors.New("no leader")}}
	assert.EqualError(t, n.Notify(context.Background(), Event{Resource: ResourceClub, Key: "c"}), "no leader")
}

func TestNewKafkaParsesBrokers(t *testing.T) {
	n := NewKafka(" localhost:9092, ,other:9092", "")
	w, ok := n.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, DefaultTopic, w.Topic)
	assert.Contains(t, w.Addr.String(), "localhost:9092")
	assert.Contains(t, w.Addr.String(), "other:9092")
	assert.NotContains(t, w.Addr.String(), " ")
}

func TestNoop(t *testing.T) {
	var n Notifier = Noop{}
	assert.NoError(t, n.Notify(context.Background(), Event{}))
	assert.NoError(t, n.Close())
}
