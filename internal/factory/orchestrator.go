package factory

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/campaign"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/common"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/config"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/entity"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/repo"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/repo/agent"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/repo/deliveryfailure"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/repo/document"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/enrollment"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/orchestrator"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/siem"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/webhook"
)

const metricsNamespace = "orchestrator"

// Orchestrator gathers what the serve command runs.
type Orchestrator struct {
	Service     *orchestrator.Service
	Campaigns   *campaign.Store
	Enrollments *enrollment.Tracker
}

type storages struct {
	campaigns   repo.DocumentStore[entity.Campaign]
	enrollments repo.DocumentStore[entity.EnrollmentRequest]
	closers     []common.CloseFunc
}

func CreateOrchestrator(ctx context.Context, conf config.Config, registry prometheus.Registerer, logger logr.Logger) (Orchestrator, error) {
	ret := Orchestrator{}

	docs, err := createStorages(ctx, conf.Storage, logger)
	if err != nil {
		return ret, fmt.Errorf("failed to create storages: %w", err)
	}

	agents, err := createAgentRegistry(conf.Agents, logger)
	if err != nil {
		return ret, fmt.Errorf("failed to create agent registry: %w", err)
	}

	publisher, err := createPublisher(ctx, conf, registry, logger)
	if err != nil {
		return ret, fmt.Errorf("failed to create webhook publisher: %w", err)
	}

	bootstrap, err := enrollment.NewBootstrap(enrollment.BootstrapConfig{
		ServerURL:    conf.Enrollment.ServerURL,
		DownloadPath: conf.Enrollment.DownloadPath,
		Group:        conf.Enrollment.Group,
	})
	if err != nil {
		return ret, fmt.Errorf("failed to create bootstrap renderer: %w", err)
	}

	ret.Campaigns = campaign.NewStore(docs.campaigns, publisher).WithLogger(logger.WithName("campaigns"))
	ret.Enrollments = enrollment.NewTracker(docs.enrollments, agents, bootstrap, conf.Enrollment.Contact).WithLogger(logger.WithName("enrollments"))
	ret.Service = orchestrator.NewService(ret.Campaigns, publisher, ret.Enrollments, docs.closers...).WithLogger(logger.WithName("orchestrator"))

	err = ret.Service.Load(ctx)
	if err != nil {
		return ret, fmt.Errorf("failed to load persisted state: %w", err)
	}

	return ret, nil
}

func createStorages(ctx context.Context, conf config.Storage, logger logr.Logger) (storages, error) {
	switch conf.Backend {
	case config.StorageBackendValkey:
		client, closer, err := CreateValkeyClient(ctx, conf.Valkey)
		if err != nil {
			return storages{}, err
		}

		return storages{
			campaigns:   document.NewValkeyStore[entity.Campaign](client, conf.Valkey.CampaignsKey),
			enrollments: document.NewValkeyStore[entity.EnrollmentRequest](client, conf.Valkey.EnrollmentsKey),
			closers:     []common.CloseFunc{closer},
		}, nil
	default:
		campaigns, err := document.NewFileStore[entity.Campaign](conf.CampaignsFile)
		if err != nil {
			return storages{}, fmt.Errorf("failed to create campaign store: %w", err)
		}

		enrollments, err := document.NewFileStore[entity.EnrollmentRequest](conf.EnrollmentsFile)
		if err != nil {
			return storages{}, fmt.Errorf("failed to create enrollment store: %w", err)
		}

		return storages{
			campaigns:   campaigns.WithLogger(logger.WithName("documents")),
			enrollments: enrollments.WithLogger(logger.WithName("documents")),
			closers:     []common.CloseFunc{campaigns.Close, enrollments.Close},
		}, nil
	}
}

func createAgentRegistry(conf config.Agents, logger logr.Logger) (repo.AgentRegistry, error) {
	switch conf.Registry {
	case config.AgentRegistryKubernetes:
		client, err := CreateKubernetesClient(conf.Kubernetes)
		if err != nil {
			return nil, err
		}

		return agent.NewKubernetesRegistry(client, conf.Kubernetes.Namespace, conf.Kubernetes.LabelSelector, conf.Kubernetes.TagsAnnotation), nil
	default:
		client := &http.Client{Timeout: conf.HTTP.Timeout}

		return agent.NewHTTPRegistry(client, conf.HTTP.URL, conf.HTTP.Creds.APIKey).WithLogger(logger.WithName("agents")), nil
	}
}

func createPublisher(ctx context.Context, conf config.Config, registry prometheus.Registerer, logger logr.Logger) (*webhook.Publisher, error) {
	sender := webhook.NewHTTPSender(&http.Client{}, conf.Webhooks.UserAgent)

	ret, err := webhook.NewPublisher(webhook.Config{
		BufferSize:       conf.Webhooks.BufferSize,
		MaxConcurrency:   conf.Webhooks.MaxConcurrency,
		RecentErrors:     conf.Webhooks.RecentErrors,
		Timeout:          conf.Webhooks.Timeout,
		MaxAttempts:      conf.Webhooks.RetryAttempts,
		BaseDelay:        conf.Webhooks.RetryDelay,
		MetricsNamespace: metricsNamespace,
	}, siem.NewRegistry(conf.SIEM), sender, registry)
	if err != nil {
		return nil, err
	}

	ret = ret.WithLogger(logger.WithName("webhooks"))

	if conf.Webhooks.DeadLetter.Bucket != "" {
		s3Client, err := CreateS3Client(ctx, conf.Webhooks.DeadLetter)
		if err != nil {
			return nil, fmt.Errorf("failed to create dead letter s3 client: %w", err)
		}

		ret = ret.WithDeadLetter(deliveryfailure.NewS3Writer(s3Client, conf.Webhooks.DeadLetter.Bucket, conf.Webhooks.DeadLetter.KeyPrefix))
	}

	for _, sub := range conf.Webhooks.Subscriptions {
		handle, err := ret.Register(entity.Subscription{
			URL:         sub.URL,
			Name:        sub.Name,
			Exchanges:   sub.Exchanges,
			Queues:      sub.Queues,
			SinkType:    sub.SinkType,
			Headers:     sub.Headers,
			MaxAttempts: sub.RetryAttempts,
			BaseDelay:   sub.RetryDelay,
			Timeout:     sub.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to register webhook %s: %w", sub.URL, err)
		}

		logger.V(1).Info("Webhook registered from config", "handle", handle, "url", sub.URL)
	}

	return ret, nil
}
