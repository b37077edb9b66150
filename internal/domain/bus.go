package domain

import (
	"context"
)

// EventBus is the interface for event-driven notifications.
// Backed by Go channels (default) or NATS.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string `json:"id"`
	Topic     string `json:"topic"`
	Payload   []byte `json:"payload"`
	Timestamp int64  `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings
	ChannelBufferSize int

	// NATS settings
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Standard topic names.
const (
	TopicBatchScored   = "kestrel.batch.scored"
	TopicHighRiskAlert = "kestrel.alert.high_risk"
)

// BatchScoredEvent is the payload published on TopicBatchScored after every
// batch run.
type BatchScoredEvent struct {
	BatchID      string  `json:"batchId"`
	TotalRecords int     `json:"totalRecords"`
	HighRisk     int     `json:"highRisk"`
	MeanScore    float64 `json:"meanScore"`
	DurationMs   int64   `json:"durationMs"`
}

// HighRiskAlertEvent is published on TopicHighRiskAlert once per record that
// lands in the highest category. Alerts are observability only; they never
// feed back into scoring.
type HighRiskAlertEvent struct {
	BatchID  string `json:"batchId"`
	TxnID    string `json:"txnId"`
	Score    int    `json:"score"`
	Category string `json:"category"`
	Corridor string `json:"corridor"`
}
