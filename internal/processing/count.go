package processing

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/entity"
	"github.com/purpleteam-labs/campaign-orchestrator/pkg/pipeline"
)

type CountData struct {
	counter *prometheus.CounterVec
	inner   pipeline.Processing[entity.BackendEvent]
}

func NewCountData(p pipeline.Processing[entity.BackendEvent], registry prometheus.Registerer, config pipeline.MetricsConfig) (pipeline.Processing[entity.BackendEvent], error) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Name:      "data_total",
		Help:      "Backend event counter by event name.",
	}, []string{"name"})

	err := registry.Register(counter)
	if err != nil {
		return nil, fmt.Errorf("failed to register metric: %w", err)
	}

	ret := CountData{
		counter: counter,
		inner:   p,
	}

	return ret, nil
}

func (p CountData) Process(ctx context.Context, event entity.BackendEvent) error {
	defer p.counter.WithLabelValues(eventLabel(event.Name)).Inc()

	return p.inner.Process(ctx, event)
}

// eventLabel bounds the label cardinality to the known event names.
func eventLabel(name string) string {
	switch name {
	case EventOperationCreated, EventOperationUpdated, EventAgentConnected, EventCampaignError:
		return name
	default:
		return "other"
	}
}
