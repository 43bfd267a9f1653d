package entity

import (
	"net/http"
	"time"
)

// Subscription describes a webhook endpoint. Empty Exchanges or Queues, or a "*" entry, match everything.
type Subscription struct {
	URL         string            `json:"url"`
	Name        string            `json:"name,omitempty"`
	Exchanges   []string          `json:"exchanges,omitempty"`
	Queues      []string          `json:"queues,omitempty"`
	SinkType    string            `json:"sink_type,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	MaxAttempts uint              `json:"max_attempts,omitempty"`
	BaseDelay   time.Duration     `json:"base_delay,omitempty"`
	Timeout     time.Duration     `json:"timeout,omitempty"`
}

// Delivery is one event formatted for one subscription.
type Delivery struct {
	Handle  string
	URL     string
	Headers http.Header
	Body    []byte
	Event   LifecycleEvent
}

type SubscriptionStats struct {
	Sent      uint64    `json:"sent"`
	Failed    uint64    `json:"failed"`
	LastSent  time.Time `json:"last_sent,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

type DeliveryError struct {
	Timestamp time.Time `json:"timestamp"`
	Handle    string    `json:"handle"`
	URL       string    `json:"url"`
	EventID   string    `json:"event_id"`
	Attempts  uint      `json:"attempts"`
	Error     string    `json:"error"`
}
