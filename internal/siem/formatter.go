package siem

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/config"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/entity"
)

const (
	FormatWebhook = "webhook"
	FormatElastic = "elastic"
	FormatSplunk  = "splunk"
)

// Formatter turns a lifecycle event into the json body expected by a sink. It must not mutate the event.
type Formatter func(event entity.LifecycleEvent) (interface{}, error)

// Registry maps sink types to formatters. An empty sink type resolves to the webhook envelope.
type Registry struct {
	lock       sync.RWMutex
	formatters map[string]Formatter
}

// NewRegistry returns a registry with the webhook, elastic and splunk formatters registered.
func NewRegistry(conf config.SIEM) *Registry {
	ret := &Registry{
		formatters: map[string]Formatter{},
	}

	ret.Register(FormatWebhook, WebhookFormatter(conf))
	ret.Register(FormatElastic, ElasticFormatter(conf))
	ret.Register(FormatSplunk, SplunkFormatter(conf))

	return ret
}

// Register adds or replaces the formatter of a sink type.
func (r *Registry) Register(sinkType string, formatter Formatter) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.formatters[sinkType] = formatter
}

func (r *Registry) Get(sinkType string) (Formatter, error) {
	if sinkType == "" {
		sinkType = FormatWebhook
	}

	r.lock.RLock()
	defer r.lock.RUnlock()

	formatter, ok := r.formatters[sinkType]
	if !ok {
		return nil, fmt.Errorf("unknown sink type %q", sinkType)
	}

	return formatter, nil
}

// SinkTypes lists the registered sink types, sorted.
func (r *Registry) SinkTypes() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()

	ret := make([]string, 0, len(r.formatters))
	for name := range r.formatters {
		ret = append(ret, name)
	}

	sort.Strings(ret)

	return ret
}

func WebhookFormatter(conf config.SIEM) Formatter {
	return func(event entity.LifecycleEvent) (interface{}, error) {
		return Envelope{
			Source:    conf.Source,
			Version:   envelopeVersion,
			Timestamp: event.Timestamp.UTC(),
			Event: EnvelopeEvent{
				ID:       event.ID,
				Exchange: event.Exchange,
				Queue:    event.Queue,
				Data:     dataOrEmpty(event.Data),
			},
			Metadata: EnvelopeMetadata{
				CampaignID: event.CampaignID,
			},
		}, nil
	}
}

func ElasticFormatter(conf config.SIEM) Formatter {
	return func(event entity.LifecycleEvent) (interface{}, error) {
		if conf.Source == "" {
			return nil, errors.New("elastic format requires a source name")
		}

		tags := append([]string{}, conf.Tags...)

		return map[string]interface{}{
			"@timestamp": event.Timestamp.UTC(),
			"event": ElasticEvent{
				ID:       event.ID,
				Kind:     "event",
				Category: []string{"security"},
				Type:     []string{event.Queue},
				Action:   event.Exchange + "." + event.Queue,
				Dataset:  conf.Dataset,
			},
			conf.Source: ElasticContext{
				Exchange:   event.Exchange,
				Queue:      event.Queue,
				CampaignID: event.CampaignID,
				Data:       dataOrEmpty(event.Data),
			},
			"tags": tags,
		}, nil
	}
}

// SplunkFormatter flattens the event data next to the routing fields. Routing fields win on key collision.
func SplunkFormatter(conf config.SIEM) Formatter {
	return func(event entity.LifecycleEvent) (interface{}, error) {
		body := make(map[string]interface{}, len(event.Data)+4)

		for k, v := range entity.CopyPayload(event.Data) {
			body[k] = v
		}

		body["event_id"] = event.ID
		body["exchange"] = event.Exchange
		body["queue"] = event.Queue
		body["campaign_id"] = event.CampaignID

		return SplunkEvent{
			Time:       float64(event.Timestamp.UnixMilli()) / 1000,
			Host:       conf.Host,
			Source:     conf.Source,
			SourceType: conf.Source + ":" + event.Exchange,
			Index:      conf.Index,
			Event:      body,
		}, nil
	}
}

func dataOrEmpty(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return map[string]interface{}{}
	}

	return entity.CopyPayload(data)
}
