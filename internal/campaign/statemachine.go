package campaign

import (
	"fmt"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/common"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/entity"
)

// lifecycle is the happy path, each status may only move to the next one.
var lifecycle = []entity.CampaignStatus{
	entity.CampaignStatusCreated,
	entity.CampaignStatusPlanning,
	entity.CampaignStatusEnrolling,
	entity.CampaignStatusRunning,
	entity.CampaignStatusCompleting,
	entity.CampaignStatusCompleted,
}

func IsTerminal(status entity.CampaignStatus) bool {
	switch status {
	case entity.CampaignStatusCompleted, entity.CampaignStatusStopped, entity.CampaignStatusError:
		return true
	default:
		return false
	}
}

func IsKnownStatus(status entity.CampaignStatus) bool {
	switch status {
	case entity.CampaignStatusStopped, entity.CampaignStatusError:
		return true
	default:
		return lifecycleIndex(status) >= 0
	}
}

// ValidateTransition returns nil when from -> to is an edge of the state graph.
// Unknown target statuses are ErrInvalidArgument, forbidden edges ErrInvalidTransition.
func ValidateTransition(from, to entity.CampaignStatus) error {
	if !IsKnownStatus(to) {
		return common.NewInvalidArgumentError("unknown campaign status %q", to)
	}

	if IsTerminal(from) {
		return fmt.Errorf("%w: campaign is %s, no further transition is accepted", common.ErrInvalidTransition, from)
	}

	if to == entity.CampaignStatusStopped || to == entity.CampaignStatusError {
		return nil
	}

	current := lifecycleIndex(from)
	if current >= 0 && current+1 < len(lifecycle) && lifecycle[current+1] == to {
		return nil
	}

	return fmt.Errorf("%w: %s -> %s", common.ErrInvalidTransition, from, to)
}

// Next returns the status following current on the happy path, if any.
func Next(current entity.CampaignStatus) (entity.CampaignStatus, bool) {
	i := lifecycleIndex(current)
	if i < 0 || i+1 >= len(lifecycle) {
		return "", false
	}

	return lifecycle[i+1], true
}

func lifecycleIndex(status entity.CampaignStatus) int {
	for i, s := range lifecycle {
		if s == status {
			return i
		}
	}

	return -1
}
