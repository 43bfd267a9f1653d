package siem

import "time"

const envelopeVersion = "1.0"

// Generic webhook envelope

type Envelope struct {
	Source    string           `json:"source"`
	Version   string           `json:"version"`
	Timestamp time.Time        `json:"timestamp"`
	Event     EnvelopeEvent    `json:"event"`
	Metadata  EnvelopeMetadata `json:"metadata"`
}

type EnvelopeEvent struct {
	ID       string                 `json:"id"`
	Exchange string                 `json:"exchange"`
	Queue    string                 `json:"queue"`
	Data     map[string]interface{} `json:"data"`
}

type EnvelopeMetadata struct {
	CampaignID string `json:"campaign_id,omitempty"`
}

// Elastic Common Schema document.
// The document is a map because the source specific context is keyed by the configured source name.

type ElasticEvent struct {
	ID       string   `json:"id"`
	Kind     string   `json:"kind"`
	Category []string `json:"category"`
	Type     []string `json:"type"`
	Action   string   `json:"action"`
	Dataset  string   `json:"dataset"`
}

type ElasticContext struct {
	Exchange   string                 `json:"exchange"`
	Queue      string                 `json:"queue"`
	CampaignID string                 `json:"campaign_id,omitempty"`
	Data       map[string]interface{} `json:"data"`
}

// Splunk HTTP Event Collector

type SplunkEvent struct {
	Time       float64                `json:"time"`
	Host       string                 `json:"host,omitempty"`
	Source     string                 `json:"source"`
	SourceType string                 `json:"sourcetype"`
	Index      string                 `json:"index,omitempty"`
	Event      map[string]interface{} `json:"event"`
}
