package processing

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/common"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/entity"
	"github.com/purpleteam-labs/campaign-orchestrator/pkg/pipeline"
)

var errUnknownEvent = errors.New("unknown event name")

const (
	EventOperationCreated = "OperationCreated"
	EventOperationUpdated = "OperationUpdated"
	EventAgentConnected   = "AgentConnected"
	EventCampaignError    = "CampaignError"
)

const (
	categoryUnknownName = "unknown_name"
	categoryStorage     = "storage"
	categoryRejected    = "rejected"
)

// Campaigns is the subset of the campaign store fed by the execution backend.
type Campaigns interface {
	AddOperation(ctx context.Context, id string, operationID string, name string) (entity.Campaign, error)
	UpdateOperation(ctx context.Context, id string, operationID string, status string) (entity.Campaign, error)
	AddAgent(ctx context.Context, id string, agent entity.AgentRef) (entity.Campaign, error)
	AddError(ctx context.Context, id string, phase string, message string, severity entity.Severity) (entity.Campaign, error)
}

type Enrollments interface {
	UpdateStatus(ctx context.Context, id string, status entity.EnrollmentStatus, agentPaw string) (entity.EnrollmentRequest, error)
}

// Main applies execution backend notifications to campaigns and enrollment requests.
type Main struct {
	campaigns   Campaigns
	enrollments Enrollments

	logger *logr.Logger
}

func NewMain(campaigns Campaigns, enrollments Enrollments) Main {
	return Main{
		campaigns:   campaigns,
		enrollments: enrollments,
	}
}

func (m Main) WithLogger(logger logr.Logger) Main {
	m.logger = &logger

	return m
}

func (m Main) Process(ctx context.Context, event entity.BackendEvent) error {
	switch event.Name {
	case EventOperationCreated:
		return m.processOperationCreated(ctx, event)
	case EventOperationUpdated:
		return m.processOperationUpdated(ctx, event)
	case EventAgentConnected:
		return m.processAgentConnected(ctx, event)
	case EventCampaignError:
		return m.processCampaignError(ctx, event)
	default:
		return pipeline.NewErrProcessingError(fmt.Errorf("%w: %q", errUnknownEvent, event.Name), categoryUnknownName, nil)
	}
}

// wrapDomainError makes storage failures retryable. Anything else is a rejection the backend cannot fix by resending.
func wrapDomainError(err error, reason string, args ...interface{}) error {
	if errors.Is(err, common.ErrStorageFailure) {
		return common.NewRetryableErrProcessingError(err, categoryStorage, nil, reason, args...)
	}

	return common.NewErrProcessingError(err, categoryRejected, nil, reason, args...)
}

func (m Main) logInfo(level int, msg string, keysAndValues ...any) {
	if m.logger == nil {
		return
	}

	m.logger.V(level).Info(msg, keysAndValues...)
}
