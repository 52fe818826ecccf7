// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package notify publishes change events for hikers and clubs.

Events are sent after the change has been committed. A failure to publish is
logged by the caller and never undoes the change.
*/
package notify

import (
	"context"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
)

// Operation represents a modifying operation
type Operation string

// all notified operations
const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// all notified resources
const (
	ResourceHiker = "hiker"
	ResourceClub  = "club"
	ResourceAll   = "all"
)

// Event is a change notification
type Event struct {
	Resource  string          `json:"resource"`
	Operation Operation       `json:"operation"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Notifier is an interface to publish change events
type Notifier interface {
	Notify(ctx context.Context, event Event) error
	Close() error
}

// Noop discards all events
type Noop struct{}

// Notify implements Notifier
func (Noop) Notify(context.Context, Event) error { return nil }

// Close implements Notifier
func (Noop) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes events to a kafka topic. The event key is the message key,
// so all events for one hiker or club end up in the same partition.
type KafkaNotifier struct {
	writer messageWriter
}

// DefaultTopic is the topic events are published to
const DefaultTopic = "hikingclubs.changes"

// NewKafka returns a notifier for the given comma separated list of brokers
func NewKafka(brokers string, topic string) *KafkaNotifier {
	if topic == "" {
		topic = DefaultTopic
	}
	var addrs []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			addrs = append(addrs, b)
		}
	}
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(addrs...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		},
	}
}

// Notify implements Notifier
func (k *KafkaNotifier) Notify(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Resource + ":" + event.Key),
		Value: value,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "operation", Value: []byte(event.Operation)},
		},
	})
}

// Close flushes pending messages and closes the writer
func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}
