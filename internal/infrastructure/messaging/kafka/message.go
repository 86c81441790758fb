// Package kafka carries raw count documents in and consolidated counts out
// over Kafka topics.
package kafka

import (
	"context"
	"time"
)

// Message is a record fetched from a topic.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// ProducerMessage is a record to publish.  A zero Timestamp is stamped at
// publish time.
type ProducerMessage struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// MessageHandler processes one message.  A nil return commits it.
type MessageHandler func(ctx context.Context, msg *Message) error

// BatchItemError is one failed message of a batch.  Index is -1 when the
// whole batch failed.
type BatchItemError struct {
	Index int
	Topic string
	Error error
}

// BatchPublishResult summarises a PublishBatch call.
type BatchPublishResult struct {
	Succeeded int
	Failed    int
	Errors    []BatchItemError
}
