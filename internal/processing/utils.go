package processing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/entity"
)

var (
	errMissingKey       = errors.New("missing key")
	errFieldInvalidType = errors.New("field type was not the expected one")
	errEmptyValue       = errors.New("empty value")
)

// ExtractCampaignID prefers the event level campaign id over the payload one.
func ExtractCampaignID(event entity.BackendEvent) (string, error) {
	if event.CampaignID != "" {
		return event.CampaignID, nil
	}

	return ExtractString(event.Payload, "campaign_id")
}

func ExtractString(payload map[string]interface{}, key string) (string, error) {
	value, present := payload[key]
	if !present {
		return "", errMissingKey
	}

	ret, ok := value.(string)
	if !ok {
		return "", errFieldInvalidType
	}

	if ret == "" {
		return "", errEmptyValue
	}

	return ret, nil
}

// ExtractStringSlice accepts a JSON array of strings or a comma separated string.
func ExtractStringSlice(payload map[string]interface{}, key string) ([]string, error) {
	value, present := payload[key]
	if !present || value == nil {
		return nil, errMissingKey
	}

	switch v := value.(type) {
	case string:
		if v == "" {
			return []string{}, nil
		}

		return strings.Split(v, ","), nil
	case []string:
		return v, nil
	case []interface{}:
		ret := make([]string, 0, len(v))

		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: item %d of %s", errFieldInvalidType, i, key)
			}

			ret = append(ret, s)
		}

		return ret, nil
	default:
		return nil, errFieldInvalidType
	}
}
