package processing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/common"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/entity"
)

const (
	categoryErrInvalidAgentEvent = "invalid_agent_event"

	campaignTagPrefix   = "campaign:"
	enrollmentTagPrefix = "enrollment:"
)

var errNoTarget = errors.New("agent carries neither a campaign nor an enrollment tag")

func (m Main) processAgentConnected(ctx context.Context, event entity.BackendEvent) error {
	paw, err := ExtractString(event.Payload, "paw")
	if err != nil {
		return common.NewErrProcessingError(err, categoryErrInvalidAgentEvent, nil, "failed to extract paw")
	}

	tags, err := ExtractStringSlice(event.Payload, "tags")
	if err != nil && !errors.Is(err, errMissingKey) {
		return common.NewErrProcessingError(err, categoryErrInvalidAgentEvent, nil, "failed to extract tags")
	}

	campaignIDs, enrollmentIDs := splitTags(tags)

	// An explicit campaign_id is honored even without the matching tag
	if event.CampaignID != "" && !slices.Contains(campaignIDs, event.CampaignID) {
		campaignIDs = append(campaignIDs, event.CampaignID)
	}

	if len(campaignIDs) == 0 && len(enrollmentIDs) == 0 {
		return common.NewErrProcessingError(errNoTarget, categoryErrInvalidAgentEvent, nil, "failed to route agent %s", paw)
	}

	hostname, _ := ExtractString(event.Payload, "hostname")
	platform, _ := ExtractString(event.Payload, "platform")

	agent := entity.AgentRef{
		Paw:      paw,
		Hostname: hostname,
		Platform: platform,
	}

	// Every target is updated even when another one fails
	errs := []error{}

	for _, id := range enrollmentIDs {
		_, err = m.enrollments.UpdateStatus(ctx, id, entity.EnrollmentStatusConnected, paw)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to mark enrollment request %s as connected: %w", id, err))
		}
	}

	for _, id := range campaignIDs {
		_, err = m.campaigns.AddAgent(ctx, id, agent)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to add agent %s to campaign %s: %w", paw, id, err))
		}
	}

	err = errors.Join(errs...)
	if err != nil {
		return wrapDomainError(err, "failed to route agent %s", paw)
	}

	m.logInfo(1, "Agent connected", "paw", paw, "campaigns", campaignIDs, "enrollments", enrollmentIDs)

	return nil
}

// splitTags extracts the ids carried by campaign:{id} and enrollment:{id} tags, in order and without duplicates.
func splitTags(tags []string) ([]string, []string) {
	campaigns := []string{}
	enrollments := []string{}

	for _, tag := range tags {
		tag = strings.TrimSpace(tag)

		switch {
		case strings.HasPrefix(tag, campaignTagPrefix):
			id := strings.TrimPrefix(tag, campaignTagPrefix)
			if id != "" && !slices.Contains(campaigns, id) {
				campaigns = append(campaigns, id)
			}
		case strings.HasPrefix(tag, enrollmentTagPrefix):
			id := strings.TrimPrefix(tag, enrollmentTagPrefix)
			if id != "" && !slices.Contains(enrollments, id) {
				enrollments = append(enrollments, id)
			}
		}
	}

	return campaigns, enrollments
}
