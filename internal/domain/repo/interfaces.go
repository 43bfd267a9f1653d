package repo

import (
	"context"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/entity"
	"github.com/purpleteam-labs/campaign-orchestrator/pkg/pipeline"
)

//go:generate mockgen -source=interfaces.go -package=mock -destination=./mock/mock_repo.go

type ProcessingErrorWriter interface {
	WriteProcessingError(ctx context.Context, pErr pipeline.ErrProcessingError) error
}

type DeliveryFailureWriter interface {
	WriteDeliveryFailure(ctx context.Context, failure entity.DeliveryError, delivery entity.Delivery) error
}

// DocumentStore persists a whole collection of records keyed by id.
// Put must be durable before returning.
type DocumentStore[T any] interface {
	LoadAll(ctx context.Context) (map[string]T, error)
	Put(ctx context.Context, id string, doc T) error
	Close(ctx context.Context) error
}

// AgentRegistry is the execution backend view of enrolled agents.
type AgentRegistry interface {
	ListAgents(ctx context.Context) ([]entity.Agent, error)
}
