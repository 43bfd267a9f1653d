package entity

import (
	"slices"
	"time"
)

type Platform string

const (
	PlatformWindows Platform = "windows"
	PlatformLinux   Platform = "linux"
	PlatformDarwin  Platform = "darwin"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformWindows, PlatformLinux, PlatformDarwin:
		return true
	default:
		return false
	}
}

type EnrollmentStatus string

const (
	EnrollmentStatusPending   EnrollmentStatus = "pending"
	EnrollmentStatusConnected EnrollmentStatus = "connected"
	EnrollmentStatusFailed    EnrollmentStatus = "failed"
)

func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusPending, EnrollmentStatusConnected, EnrollmentStatusFailed:
		return true
	default:
		return false
	}
}

type EnrollmentRequest struct {
	ID               string           `json:"id" yaml:"id"`
	Platform         Platform         `json:"platform" yaml:"platform"`
	CampaignID       string           `json:"campaign_id,omitempty" yaml:"campaign_id,omitempty"`
	Tags             []string         `json:"tags" yaml:"tags"`
	Hostname         string           `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	Contact          string           `json:"contact" yaml:"contact"`
	Status           EnrollmentStatus `json:"status" yaml:"status"`
	CreatedAt        time.Time        `json:"created_at" yaml:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
	BootstrapCommand string           `json:"bootstrap_command" yaml:"bootstrap_command"`
	DownloadURL      string           `json:"download_url" yaml:"download_url"`
	ServerURL        string           `json:"server_url" yaml:"server_url"`
	AgentPaw         string           `json:"agent_paw,omitempty" yaml:"agent_paw,omitempty"`
}

func (r EnrollmentRequest) Clone() EnrollmentRequest {
	ret := r
	ret.Tags = slices.Clone(r.Tags)

	return ret
}

// Agent is the execution backend view of an enrolled worker.
type Agent struct {
	Paw      string    `json:"paw"`
	Hostname string    `json:"hostname"`
	Platform string    `json:"platform"`
	Group    string    `json:"group"`
	Tags     []string  `json:"tags"`
	LastSeen time.Time `json:"last_seen"`
}

func (a Agent) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}

	return false
}
