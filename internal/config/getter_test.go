package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")

	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err, "failed to write config file")

	return path
}

func TestParseDefaults(t *testing.T) {
	conf, err := config.Parse("")
	require.NoError(t, err, "failed to parse default config")

	assert.Equal(t, config.EncoderTypeConsole, conf.Logs.Encoder)
	assert.Equal(t, config.StorageBackendFile, conf.Storage.Backend)
	assert.Equal(t, 1000, conf.Webhooks.BufferSize)
	assert.Equal(t, uint(3), conf.Webhooks.RetryAttempts)
	assert.Equal(t, 5*time.Second, conf.Webhooks.RetryDelay)
	assert.Equal(t, 10*time.Second, conf.Webhooks.Timeout)
	assert.Equal(t, "red", conf.Enrollment.Group)
	assert.Equal(t, config.AgentRegistryHTTP, conf.Agents.Registry)
	assert.False(t, conf.Ingest.Enabled)
}

func TestParseFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
logs:
  encoder: json
storage:
  campaignsFile: /tmp/campaigns.yaml
webhooks:
  retryDelay: 250ms
  subscriptions:
    - url: https://siem.example/hook
      sinkType: splunk
      exchanges: [campaign]
      retryAttempts: 6
      retryDelay: 2s
      timeout: 30s
    - url: https://hooks.example/plain
`)

	t.Setenv("ORCHESTRATOR_WEBHOOKS_RETRYATTEMPTS", "5")

	conf, err := config.Parse(path)
	require.NoError(t, err, "failed to parse config")

	assert.Equal(t, config.EncoderTypeJson, conf.Logs.Encoder)
	assert.Equal(t, "/tmp/campaigns.yaml", conf.Storage.CampaignsFile)
	assert.Equal(t, 250*time.Millisecond, conf.Webhooks.RetryDelay)
	assert.Equal(t, uint(5), conf.Webhooks.RetryAttempts, "env should override defaults")

	require.Len(t, conf.Webhooks.Subscriptions, 2)
	assert.Equal(t, "splunk", conf.Webhooks.Subscriptions[0].SinkType)
	assert.Equal(t, []string{"campaign"}, conf.Webhooks.Subscriptions[0].Exchanges)
	assert.Equal(t, uint(6), conf.Webhooks.Subscriptions[0].RetryAttempts)
	assert.Equal(t, 2*time.Second, conf.Webhooks.Subscriptions[0].RetryDelay)
	assert.Equal(t, 30*time.Second, conf.Webhooks.Subscriptions[0].Timeout)
	assert.Zero(t, conf.Webhooks.Subscriptions[1].Timeout, "unset values fall back to the publisher defaults")
}

func TestParseInvalid(t *testing.T) {
	testcases := []struct {
		name    string
		content string
	}{
		{
			name:    "unknown encoder",
			content: "logs:\n  encoder: xml\n",
		},
		{
			name:    "unknown storage backend",
			content: "storage:\n  backend: tape\n",
		},
		{
			name:    "valkey without url",
			content: "storage:\n  backend: valkey\n",
		},
		{
			name:    "zero webhook timeout",
			content: "webhooks:\n  timeout: 0s\n",
		},
		{
			name:    "negative webhook timeout",
			content: "webhooks:\n  timeout: -1s\n",
		},
		{
			name:    "negative subscription timeout",
			content: "webhooks:\n  subscriptions:\n    - url: https://hooks.example\n      timeout: -5s\n",
		},
		{
			name:    "ingest without topic",
			content: "ingest:\n  enabled: true\n  kafka:\n    broker:\n      urls: localhost:9092\n",
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Parse(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestSecretsAreHidden(t *testing.T) {
	assert.Equal(t, "password set", config.ValkeyCreds{Password: "secret"}.String())
	assert.Equal(t, "no creds", config.AWSCreds{AccessKeyID: "id"}.String())
	assert.Equal(t, "api key set", config.APIKeyCreds{APIKey: "k"}.String())
	assert.NotContains(t, config.KafkaCreds{User: "u", Password: "secret", Mechanism: "SCRAM-SHA-512"}.String(), "secret")
}
