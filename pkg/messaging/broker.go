package messaging

import (
	"context"
	"encoding/json"
)

// Message is one outbox event on its way to a broker. Key is the aggregate
// id, so events of one appointment stay ordered on partitioned transports.
type Message struct {
	Topic   string          `json:"-"`
	Key     string          `json:"key"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}
