package entity

import "time"

const (
	ExchangeCampaign  = "campaign"
	ExchangeOperation = "operation"
	ExchangeAgent     = "agent"
)

// QueueErrorRecorded carries error records. Transitions to the error status use the "error" queue.
const QueueErrorRecorded = "error_recorded"

// LifecycleEvent is immutable once emitted. ID lets at-least-once receivers de-duplicate.
type LifecycleEvent struct {
	ID         string                 `json:"id"`
	Exchange   string                 `json:"exchange"`
	Queue      string                 `json:"queue"`
	CampaignID string                 `json:"campaign_id"`
	Data       map[string]interface{} `json:"data"`
	Timestamp  time.Time              `json:"timestamp"`
}

// BackendEvent is a notification emitted by the execution backend and consumed from kafka.
type BackendEvent struct {
	Name       string                 `json:"name"`
	CampaignID string                 `json:"campaign_id"`
	Payload    map[string]interface{} `json:"payload"`
	Metadata   map[string]interface{} `json:"metadata"`
}
