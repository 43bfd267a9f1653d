package campaign_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/campaign"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/common"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/entity"
)

func TestValidateTransition(t *testing.T) {
	t.Parallel()

	all := []entity.CampaignStatus{"created", "planning", "enrolling", "running", "completing", "completed", "stopped", "error"}

	allowed := map[entity.CampaignStatus][]entity.CampaignStatus{
		"created":    {"planning", "stopped", "error"},
		"planning":   {"enrolling", "stopped", "error"},
		"enrolling":  {"running", "stopped", "error"},
		"running":    {"completing", "stopped", "error"},
		"completing": {"completed", "stopped", "error"},
	}

	for _, from := range all {
		for _, to := range all {
			err := campaign.ValidateTransition(from, to)

			if contains(allowed[from], to) {
				assert.NoError(t, err, "%s -> %s", from, to)
			} else {
				assert.ErrorIs(t, err, common.ErrInvalidTransition, "%s -> %s", from, to)
			}
		}

		assert.ErrorIs(t, campaign.ValidateTransition(from, "archived"), common.ErrInvalidArgument)
	}
}

func TestNext(t *testing.T) {
	t.Parallel()

	next, ok := campaign.Next(entity.CampaignStatusRunning)
	assert.True(t, ok)
	assert.Equal(t, entity.CampaignStatusCompleting, next)

	_, ok = campaign.Next(entity.CampaignStatusCompleted)
	assert.False(t, ok)

	_, ok = campaign.Next(entity.CampaignStatusStopped)
	assert.False(t, ok)
}

func contains(statuses []entity.CampaignStatus, status entity.CampaignStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}

	return false
}
