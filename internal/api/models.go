package api

import (
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/entity"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Revision string `json:"revision"`
}

type CampaignList struct {
	Total     int               `json:"total"`
	Campaigns []entity.Campaign `json:"campaigns"`
}

type TransitionRequest struct {
	To entity.CampaignStatus `json:"to"`
}

type AddOperationRequest struct {
	OperationID string `json:"operation_id"`
	Name        string `json:"name"`
}

type UpdateOperationRequest struct {
	Status string `json:"status"`
}

type AddErrorRequest struct {
	Phase    string          `json:"phase"`
	Message  string          `json:"message"`
	Severity entity.Severity `json:"severity"`
}

type SetReportsRequest struct {
	Reports map[string]string `json:"reports"`
}

type CampaignAgents struct {
	CampaignID  string         `json:"campaign_id"`
	TotalAgents int            `json:"total_agents"`
	Agents      []entity.Agent `json:"agents"`
}

// WebhookRequest durations are in seconds.
type WebhookRequest struct {
	URL           string            `json:"url"`
	Name          string            `json:"name"`
	Exchanges     []string          `json:"exchanges"`
	Queues        []string          `json:"queues"`
	SinkType      string            `json:"sink_type"`
	Headers       map[string]string `json:"headers"`
	RetryAttempts uint              `json:"retry_attempts"`
	RetryDelay    float64           `json:"retry_delay"`
	Timeout       float64           `json:"timeout"`
}

type WebhookHandle struct {
	Handle string `json:"handle"`
}

type EnrollmentList struct {
	Total    int                        `json:"total"`
	Limit    int                        `json:"limit"`
	Requests []entity.EnrollmentRequest `json:"requests"`
}
