package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/campaign"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/common"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/entity"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/enrollment"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/webhook"
)

// WebhookOverview is the subscription list along with the aggregated delivery statistics.
type WebhookOverview struct {
	Webhooks []webhook.SubscriptionInfo `json:"webhooks"`
	Stats    webhook.Stats              `json:"stats"`
}

// Service drives the campaign store, the webhook publisher and the enrollment tracker.
type Service struct {
	campaigns   *campaign.Store
	publisher   *webhook.Publisher
	enrollments *enrollment.Tracker

	closers []common.CloseFunc

	logger *logr.Logger
}

// NewService takes ownership of the storage closers, called on Shutdown once the publisher is drained.
func NewService(campaigns *campaign.Store, publisher *webhook.Publisher, enrollments *enrollment.Tracker, closers ...common.CloseFunc) *Service {
	return &Service{
		campaigns:   campaigns,
		publisher:   publisher,
		enrollments: enrollments,
		closers:     closers,
	}
}

func (s *Service) WithLogger(logger logr.Logger) *Service {
	s.logger = &logger

	return s
}

// Load reads the persisted campaigns and enrollment requests.
func (s *Service) Load(ctx context.Context) error {
	err := s.campaigns.Load(ctx)
	if err != nil {
		return err
	}

	return s.enrollments.Load(ctx)
}

// Campaigns

func (s *Service) CreateCampaign(ctx context.Context, req campaign.CreateRequest) (entity.Campaign, error) {
	return s.campaigns.Create(ctx, req)
}

func (s *Service) GetCampaign(id string) (entity.Campaign, error) {
	return s.campaigns.Get(id)
}

func (s *Service) ListCampaigns() []entity.Campaign {
	return s.campaigns.List()
}

func (s *Service) TransitionCampaign(ctx context.Context, id string, to entity.CampaignStatus) (entity.Campaign, error) {
	ret, err := s.campaigns.Transition(ctx, id, to)
	if err != nil {
		return ret, err
	}

	s.logInfo(0, "Campaign transitioned", "campaignID", id, "status", to)

	return ret, nil
}

func (s *Service) AddOperation(ctx context.Context, id string, operationID string, name string) (entity.Campaign, error) {
	return s.campaigns.AddOperation(ctx, id, operationID, name)
}

func (s *Service) UpdateOperation(ctx context.Context, id string, operationID string, status string) (entity.Campaign, error) {
	return s.campaigns.UpdateOperation(ctx, id, operationID, status)
}

func (s *Service) AddAgent(ctx context.Context, id string, agent entity.AgentRef) (entity.Campaign, error) {
	return s.campaigns.AddAgent(ctx, id, agent)
}

func (s *Service) AddError(ctx context.Context, id string, phase string, message string, severity entity.Severity) (entity.Campaign, error) {
	return s.campaigns.AddError(ctx, id, phase, message, severity)
}

func (s *Service) SetReports(ctx context.Context, id string, reports map[string]string) (entity.Campaign, error) {
	return s.campaigns.SetReports(ctx, id, reports)
}

// CampaignAgents lists the agents the execution backend reports for an existing campaign.
func (s *Service) CampaignAgents(ctx context.Context, id string) ([]entity.Agent, error) {
	_, err := s.campaigns.Get(id)
	if err != nil {
		return nil, err
	}

	return s.enrollments.AgentsForCampaign(ctx, id)
}

// Webhooks

func (s *Service) RegisterWebhook(sub entity.Subscription) (string, error) {
	return s.publisher.Register(sub)
}

func (s *Service) UnregisterWebhook(handle string) error {
	return s.publisher.Unregister(handle)
}

func (s *Service) Webhooks() WebhookOverview {
	return WebhookOverview{
		Webhooks: s.publisher.List(),
		Stats:    s.publisher.Stats(),
	}
}

// Enrollments

func (s *Service) CreateEnrollment(ctx context.Context, req enrollment.CreateRequest) (entity.EnrollmentRequest, error) {
	return s.enrollments.Create(ctx, req)
}

func (s *Service) GetEnrollment(id string) (entity.EnrollmentRequest, error) {
	return s.enrollments.Get(id)
}

func (s *Service) ListEnrollments(filter enrollment.ListFilter) []entity.EnrollmentRequest {
	return s.enrollments.List(filter)
}

func (s *Service) UpdateEnrollmentStatus(ctx context.Context, id string, status entity.EnrollmentStatus, agentPaw string) (entity.EnrollmentRequest, error) {
	return s.enrollments.UpdateStatus(ctx, id, status, agentPaw)
}

// Shutdown drains the webhook deliveries within ctx then closes the storages.
// Storages are closed even when the drain times out.
func (s *Service) Shutdown(ctx context.Context) error {
	var errs []error

	err := s.publisher.Shutdown(ctx)
	if err != nil {
		s.logError(err, "Webhook deliveries abandoned")

		errs = append(errs, err)
	}

	err = common.CloseAll(context.WithoutCancel(ctx), s.closers...)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to close storage: %w", err))
	}

	return errors.Join(errs...)
}

func (s *Service) logInfo(level int, msg string, keysAndValues ...any) {
	if s.logger == nil {
		return
	}

	s.logger.V(level).Info(msg, keysAndValues...)
}

func (s *Service) logError(err error, msg string, keysAndValues ...any) {
	if s.logger == nil {
		return
	}

	s.logger.Error(err, msg, keysAndValues...)
}
