package entity

import (
	"regexp"
	"slices"
	"time"
)

type CampaignStatus string

const (
	CampaignStatusCreated    CampaignStatus = "created"
	CampaignStatusPlanning   CampaignStatus = "planning"
	CampaignStatusEnrolling  CampaignStatus = "enrolling"
	CampaignStatusRunning    CampaignStatus = "running"
	CampaignStatusCompleting CampaignStatus = "completing"
	CampaignStatusCompleted  CampaignStatus = "completed"
	CampaignStatusStopped    CampaignStatus = "stopped"
	CampaignStatusError      CampaignStatus = "error"
)

// Campaign ids travel in agent tags and bootstrap command lines.
var campaignIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

func ValidCampaignID(id string) bool {
	return campaignIDPattern.MatchString(id)
}

// OperationStatusQueued is the status of an operation until the execution backend reports on it.
const OperationStatusQueued = "queued"

type CampaignMode string

const (
	CampaignModeTest       CampaignMode = "test"
	CampaignModeProduction CampaignMode = "production"
	CampaignModeSimulation CampaignMode = "simulation"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

type Campaign struct {
	ID         string            `json:"id" yaml:"id"`
	Name       string            `json:"name" yaml:"name"`
	Mode       CampaignMode      `json:"mode" yaml:"mode"`
	Status     CampaignStatus    `json:"status" yaml:"status"`
	Operations []OperationRef    `json:"operations" yaml:"operations"`
	Agents     []AgentRef        `json:"agents" yaml:"agents"`
	Timeline   []TimelineEvent   `json:"timeline" yaml:"timeline"`
	Errors     []ErrorRecord     `json:"errors" yaml:"errors"`
	Reports    map[string]string `json:"reports,omitempty" yaml:"reports,omitempty"`
	Tags       []string          `json:"tags,omitempty" yaml:"tags,omitempty"`
	CreatedAt  time.Time         `json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at" yaml:"updated_at"`
}

type OperationRef struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Status    string    `json:"status,omitempty" yaml:"status,omitempty"`
	AddedAt   time.Time `json:"added_at" yaml:"added_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

type AgentRef struct {
	Paw        string    `json:"paw" yaml:"paw"`
	Hostname   string    `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	Platform   string    `json:"platform,omitempty" yaml:"platform,omitempty"`
	EnrolledAt time.Time `json:"enrolled_at" yaml:"enrolled_at"`
}

// TimelineEvent Status is only set for status transitions.
type TimelineEvent struct {
	Timestamp   time.Time              `json:"timestamp" yaml:"timestamp"`
	Description string                 `json:"description" yaml:"description"`
	Status      CampaignStatus         `json:"status,omitempty" yaml:"status,omitempty"`
	Payload     map[string]interface{} `json:"payload,omitempty" yaml:"payload,omitempty"`
}

type ErrorRecord struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Phase     string    `json:"phase" yaml:"phase"`
	Message   string    `json:"message" yaml:"message"`
	Severity  Severity  `json:"severity" yaml:"severity"`
}

func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	default:
		return false
	}
}

func (m CampaignMode) Valid() bool {
	switch m {
	case CampaignModeTest, CampaignModeProduction, CampaignModeSimulation:
		return true
	default:
		return false
	}
}

// Clone returns a deep copy, safe to hand out to readers.
func (c Campaign) Clone() Campaign {
	ret := c

	ret.Operations = slices.Clone(c.Operations)
	ret.Agents = slices.Clone(c.Agents)
	ret.Errors = slices.Clone(c.Errors)
	ret.Tags = slices.Clone(c.Tags)

	ret.Timeline = slices.Clone(c.Timeline)
	for i := range ret.Timeline {
		ret.Timeline[i].Payload = CopyPayload(ret.Timeline[i].Payload)
	}

	if c.Reports != nil {
		ret.Reports = make(map[string]string, len(c.Reports))
		for k, v := range c.Reports {
			ret.Reports[k] = v
		}
	}

	return ret
}

// HasAgent reports whether an agent with this paw is already attached.
func (c Campaign) HasAgent(paw string) bool {
	for _, agent := range c.Agents {
		if agent.Paw == paw {
			return true
		}
	}

	return false
}

// CopyPayload deep copies nested maps and slices; leaves are shared.
func CopyPayload(payload map[string]interface{}) map[string]interface{} {
	if payload == nil {
		return nil
	}

	ret := make(map[string]interface{}, len(payload))

	for k, v := range payload {
		ret[k] = copyValue(v)
	}

	return ret
}

func copyValue(v interface{}) interface{} {
	switch typed := v.(type) {
	case map[string]interface{}:
		return CopyPayload(typed)
	case []interface{}:
		ret := make([]interface{}, len(typed))
		for i := range typed {
			ret[i] = copyValue(typed[i])
		}

		return ret
	case []string:
		return slices.Clone(typed)
	default:
		return v
	}
}
