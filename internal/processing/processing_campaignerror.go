package processing

import (
	"context"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/common"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/entity"
)

const (
	categoryErrInvalidCampaignError = "invalid_campaign_error"

	defaultErrorPhase = "execution"
)

func (m Main) processCampaignError(ctx context.Context, event entity.BackendEvent) error {
	campaignID, err := ExtractCampaignID(event)
	if err != nil {
		return common.NewErrProcessingError(err, categoryErrInvalidCampaignError, nil, "failed to extract campaign_id")
	}

	message, err := ExtractString(event.Payload, "message")
	if err != nil {
		return common.NewErrProcessingError(err, categoryErrInvalidCampaignError, nil, "failed to extract message")
	}

	phase, err := ExtractString(event.Payload, "phase")
	if err != nil {
		phase = defaultErrorPhase
	}

	// Empty severity defaults to error in the store
	severity, _ := ExtractString(event.Payload, "severity")

	_, err = m.campaigns.AddError(ctx, campaignID, phase, message, entity.Severity(severity))
	if err != nil {
		return wrapDomainError(err, "failed to record error on campaign %s", campaignID)
	}

	return nil
}
