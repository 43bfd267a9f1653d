package factory

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/api"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/config"
)

func CreateAPIServer(conf config.API, service api.Orchestrator, registry prometheus.Registerer, logger logr.Logger) (*http.Server, error) {
	server, err := api.NewServer(service, api.Config{
		MaxBodyBytes:     conf.MaxBodyBytes,
		MetricsNamespace: metricsNamespace,
	}, registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create api server: %w", err)
	}

	ret := &http.Server{
		Addr:              fmt.Sprintf(":%v", conf.Port),
		Handler:           server.WithLogger(logger).Handler(),
		ReadTimeout:       conf.ReadTimeout,
		ReadHeaderTimeout: conf.ReadTimeout,
		WriteTimeout:      conf.WriteTimeout,
		IdleTimeout:       30 * time.Second,
	}

	return ret, nil
}
