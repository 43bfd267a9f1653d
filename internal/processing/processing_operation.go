package processing

import (
	"context"
	"errors"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/common"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/entity"
)

const categoryErrInvalidOperationEvent = "invalid_operation_event"

func (m Main) processOperationCreated(ctx context.Context, event entity.BackendEvent) error {
	campaignID, err := ExtractCampaignID(event)
	if err != nil {
		return common.NewErrProcessingError(err, categoryErrInvalidOperationEvent, nil, "failed to extract campaign_id")
	}

	operationID, err := ExtractString(event.Payload, "operation_id")
	if err != nil {
		return common.NewErrProcessingError(err, categoryErrInvalidOperationEvent, nil, "failed to extract operation_id")
	}

	// name is optional
	name, _ := ExtractString(event.Payload, "name")

	_, err = m.campaigns.AddOperation(ctx, campaignID, operationID, name)
	if errors.Is(err, common.ErrAlreadyExists) {
		// Redelivered message
		m.logInfo(1, "Operation already attached", "campaignID", campaignID, "operationID", operationID)

		return nil
	}

	if err != nil {
		return wrapDomainError(err, "failed to add operation %s to campaign %s", operationID, campaignID)
	}

	return nil
}

func (m Main) processOperationUpdated(ctx context.Context, event entity.BackendEvent) error {
	campaignID, err := ExtractCampaignID(event)
	if err != nil {
		return common.NewErrProcessingError(err, categoryErrInvalidOperationEvent, nil, "failed to extract campaign_id")
	}

	operationID, err := ExtractString(event.Payload, "operation_id")
	if err != nil {
		return common.NewErrProcessingError(err, categoryErrInvalidOperationEvent, nil, "failed to extract operation_id")
	}

	status, err := ExtractString(event.Payload, "status")
	if err != nil {
		return common.NewErrProcessingError(err, categoryErrInvalidOperationEvent, nil, "failed to extract status")
	}

	_, err = m.campaigns.UpdateOperation(ctx, campaignID, operationID, status)
	if err != nil {
		return wrapDomainError(err, "failed to update operation %s of campaign %s", operationID, campaignID)
	}

	return nil
}
