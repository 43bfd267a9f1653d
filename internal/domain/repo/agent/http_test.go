package agent_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/repo/agent"
)

const agentsJSON = `[
  {"paw": "abc123", "host": "web-01", "platform": "linux", "group": "red", "tags": ["campaign:c1", "web"], "last_seen": "2025-03-03T10:00:00Z"},
  {"paw": "def456", "host": "dc-01", "platform": "windows", "group": "red", "tags": ["campaign:c2"], "last_seen": "2025-03-03T11:00:00Z"}
]`

func TestHTTPRegistryListAgents(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/agents", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("KEY"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(agentsJSON))
	}))
	defer server.Close()

	registry := agent.NewHTTPRegistry(server.Client(), server.URL+"/", "secret")

	agents, err := registry.ListAgents(context.Background())
	require.NoError(t, err)

	require.Len(t, agents, 2)
	assert.Equal(t, "abc123", agents[0].Paw)
	assert.Equal(t, "web-01", agents[0].Hostname)
	assert.Equal(t, []string{"campaign:c1", "web"}, agents[0].Tags)
	assert.Equal(t, time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC), agents[0].LastSeen)
}

func TestHTTPRegistryRetriesServerErrors(t *testing.T) {
	t.Parallel()

	calls := atomic.Int32{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)

			return
		}

		_, _ = w.Write([]byte(agentsJSON))
	}))
	defer server.Close()

	registry := agent.NewHTTPRegistry(server.Client(), server.URL, "").WithRetryDelay(time.Millisecond)

	agents, err := registry.ListAgents(context.Background())
	require.NoError(t, err)

	assert.Len(t, agents, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPRegistryDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	calls := atomic.Int32{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	registry := agent.NewHTTPRegistry(server.Client(), server.URL, "wrong").WithRetryDelay(time.Millisecond)

	_, err := registry.ListAgents(context.Background())
	require.Error(t, err)

	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), calls.Load())
}
