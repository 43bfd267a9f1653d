package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/api"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/campaign"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/config"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/entity"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/repo/document"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/repo/mock"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/enrollment"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/orchestrator"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/siem"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/webhook"
)

// Helper

type testAPI struct {
	server *httptest.Server
	agents *mock.MockAgentRegistry
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	dir := t.TempDir()
	ctrl := gomock.NewController(t)
	registry := prometheus.NewRegistry()

	campaignDocs, err := document.NewFileStore[entity.Campaign](filepath.Join(dir, "campaigns.json"))
	require.NoError(t, err)

	enrollmentDocs, err := document.NewFileStore[entity.EnrollmentRequest](filepath.Join(dir, "enrollments.json"))
	require.NoError(t, err)

	publisher, err := webhook.NewPublisher(webhook.Config{
		BufferSize:     100,
		MaxConcurrency: 4,
		RecentErrors:   10,
		Timeout:        time.Second,
		MaxAttempts:    1,
		BaseDelay:      time.Millisecond,
	}, siem.NewRegistry(config.SIEM{Source: "caldera"}), webhook.NewHTTPSender(http.DefaultClient, "test"), registry)
	require.NoError(t, err)

	bootstrap, err := enrollment.NewBootstrap(enrollment.BootstrapConfig{
		ServerURL:    "http://caldera.lab:8888",
		DownloadPath: "/file/download",
		Group:        "red",
	})
	require.NoError(t, err)

	agents := mock.NewMockAgentRegistry(ctrl)

	service := orchestrator.NewService(
		campaign.NewStore(campaignDocs, publisher),
		publisher,
		enrollment.NewTracker(enrollmentDocs, agents, bootstrap, "http"),
		campaignDocs.Close,
		enrollmentDocs.Close,
	)
	require.NoError(t, service.Load(context.Background()))

	server, err := api.NewServer(service, api.Config{MaxBodyBytes: 4096}, registry)
	require.NoError(t, err)

	ret := &testAPI{
		server: httptest.NewServer(server.Handler()),
		agents: agents,
	}

	t.Cleanup(func() {
		ret.server.Close()
		assert.NoError(t, service.Shutdown(context.Background()))
	})

	return ret
}

func (a *testAPI) do(t *testing.T, method string, path string, body any, out any) int {
	t.Helper()

	var reader *bytes.Reader

	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)

		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}

	return resp.StatusCode
}

// Test

func TestHealth(t *testing.T) {
	a := newTestAPI(t)

	out := api.HealthResponse{}
	code := a.do(t, http.MethodGet, "/health", nil, &out)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", out.Status)
}

func TestCampaignLifecycle(t *testing.T) {
	a := newTestAPI(t)

	created := entity.Campaign{}
	code := a.do(t, http.MethodPost, "/campaigns", campaign.CreateRequest{ID: "c1", Name: "web tier"}, &created)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, entity.CampaignStatusCreated, created.Status)
	assert.Equal(t, entity.CampaignModeTest, created.Mode)

	for _, to := range []entity.CampaignStatus{"planning", "enrolling", "running"} {
		out := entity.Campaign{}
		code = a.do(t, http.MethodPost, "/campaigns/c1/transition", api.TransitionRequest{To: to}, &out)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, to, out.Status)
	}

	code = a.do(t, http.MethodPost, "/campaigns/c1/operations", api.AddOperationRequest{OperationID: "op-1", Name: "discovery"}, nil)
	assert.Equal(t, http.StatusCreated, code)

	out := entity.Campaign{}
	code = a.do(t, http.MethodPut, "/campaigns/c1/operations/op-1", api.UpdateOperationRequest{Status: "finished"}, &out)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, out.Operations, 1)
	assert.Equal(t, "finished", out.Operations[0].Status)

	code = a.do(t, http.MethodPost, "/campaigns/c1/errors", api.AddErrorRequest{Phase: "execution", Message: "agent lost", Severity: entity.SeverityWarning}, nil)
	assert.Equal(t, http.StatusCreated, code)

	out = entity.Campaign{}
	code = a.do(t, http.MethodPut, "/campaigns/c1/reports", api.SetReportsRequest{Reports: map[string]string{"pdf": "s3://reports/c1.pdf"}}, &out)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "s3://reports/c1.pdf", out.Reports["pdf"])

	got := entity.Campaign{}
	code = a.do(t, http.MethodGet, "/campaigns/c1", nil, &got)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, entity.CampaignStatusRunning, got.Status)
	assert.Len(t, got.Errors, 1)

	list := api.CampaignList{}
	code = a.do(t, http.MethodGet, "/campaigns", nil, &list)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, list.Total)
}

func TestErrorMapping(t *testing.T) {
	a := newTestAPI(t)

	require.Equal(t, http.StatusCreated, a.do(t, http.MethodPost, "/campaigns", campaign.CreateRequest{ID: "c1", Name: "web tier"}, nil))

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		code   int
	}{
		{name: "unknown campaign", method: http.MethodGet, path: "/campaigns/nope", code: http.StatusNotFound},
		{name: "duplicate id", method: http.MethodPost, path: "/campaigns", body: campaign.CreateRequest{ID: "c1", Name: "again"}, code: http.StatusConflict},
		{name: "empty name", method: http.MethodPost, path: "/campaigns", body: campaign.CreateRequest{}, code: http.StatusBadRequest},
		{name: "skipping a state", method: http.MethodPost, path: "/campaigns/c1/transition", body: api.TransitionRequest{To: "running"}, code: http.StatusConflict},
		{name: "unknown status", method: http.MethodPost, path: "/campaigns/c1/transition", body: api.TransitionRequest{To: "paused"}, code: http.StatusBadRequest},
		{name: "malformed body", method: http.MethodPost, path: "/campaigns", body: "{", code: http.StatusBadRequest},
		{name: "body too large", method: http.MethodPost, path: "/campaigns", body: `{"name":"` + strings.Repeat("a", 8192) + `"}`, code: http.StatusRequestEntityTooLarge},
		{name: "unknown operation", method: http.MethodPut, path: "/campaigns/c1/operations/op-9", body: api.UpdateOperationRequest{Status: "running"}, code: http.StatusNotFound},
		{name: "unknown webhook", method: http.MethodDelete, path: "/webhooks/nope", code: http.StatusNotFound},
		{name: "invalid webhook url", method: http.MethodPost, path: "/webhooks", body: api.WebhookRequest{URL: "ftp://siem"}, code: http.StatusBadRequest},
		{name: "unknown enrollment", method: http.MethodGet, path: "/enrollments/nope", code: http.StatusNotFound},
		{name: "invalid limit", method: http.MethodGet, path: "/enrollments?limit=zero", code: http.StatusBadRequest},
		{name: "no route", method: http.MethodGet, path: "/operations", code: http.StatusNotFound},
		{name: "wrong method", method: http.MethodPatch, path: "/campaigns", code: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := api.ErrorResponse{}
			code := a.do(t, tt.method, tt.path, tt.body, &out)

			assert.Equal(t, tt.code, code)
			assert.NotEmpty(t, out.Error)
		})
	}
}

func TestWebhookRegistration(t *testing.T) {
	a := newTestAPI(t)

	received := make(chan struct{}, 10)
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- struct{}{}
	}))
	t.Cleanup(receiver.Close)

	handle := api.WebhookHandle{}
	code := a.do(t, http.MethodPost, "/webhooks", api.WebhookRequest{
		URL:           receiver.URL,
		Exchanges:     []string{"campaign"},
		RetryAttempts: 2,
		RetryDelay:    0.5,
		Timeout:       3,
	}, &handle)
	require.Equal(t, http.StatusCreated, code)
	require.NotEmpty(t, handle.Handle)

	overview := orchestrator.WebhookOverview{}
	code = a.do(t, http.MethodGet, "/webhooks", nil, &overview)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, overview.Webhooks, 1)
	assert.Equal(t, uint(2), overview.Webhooks[0].Subscription.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, overview.Webhooks[0].Subscription.BaseDelay)
	assert.Equal(t, 3*time.Second, overview.Webhooks[0].Subscription.Timeout)

	require.Equal(t, http.StatusCreated, a.do(t, http.MethodPost, "/campaigns", campaign.CreateRequest{ID: "c1", Name: "web tier"}, nil))

	select {
	case <-received:
	case <-time.After(5 * time.Second):
		t.Fatal("webhook not delivered")
	}

	assert.Equal(t, http.StatusNoContent, a.do(t, http.MethodDelete, "/webhooks/"+handle.Handle, nil, nil))
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodDelete, "/webhooks/"+handle.Handle, nil, nil))
}

func TestEnrollments(t *testing.T) {
	a := newTestAPI(t)

	created := entity.EnrollmentRequest{}
	code := a.do(t, http.MethodPost, "/enrollments", enrollment.CreateRequest{Platform: entity.PlatformLinux, CampaignID: "c1", Tags: []string{"web"}}, &created)
	require.Equal(t, http.StatusCreated, code)
	assert.Contains(t, created.BootstrapCommand, "-tags web,campaign:c1,enrollment:"+created.ID)

	code = a.do(t, http.MethodPost, "/enrollments", enrollment.CreateRequest{Platform: entity.PlatformWindows}, nil)
	require.Equal(t, http.StatusCreated, code)

	got := entity.EnrollmentRequest{}
	code = a.do(t, http.MethodGet, "/enrollments/"+created.ID, nil, &got)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, created.ID, got.ID)

	list := api.EnrollmentList{}
	code = a.do(t, http.MethodGet, "/enrollments?campaign_id=c1", nil, &list)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, enrollment.DefaultListLimit, list.Limit)

	list = api.EnrollmentList{}
	code = a.do(t, http.MethodGet, "/enrollments?limit=1", nil, &list)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, 1, list.Limit)

	code = a.do(t, http.MethodPost, "/enrollments", enrollment.CreateRequest{Platform: "solaris"}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCampaignAgents(t *testing.T) {
	a := newTestAPI(t)

	require.Equal(t, http.StatusCreated, a.do(t, http.MethodPost, "/campaigns", campaign.CreateRequest{ID: "c1", Name: "web tier"}, nil))

	a.agents.EXPECT().ListAgents(gomock.Any()).Return([]entity.Agent{
		{Paw: "abc", Hostname: "web-01", Tags: []string{"campaign:c1"}},
		{Paw: "def", Hostname: "db-01", Tags: []string{"campaign:c2"}},
	}, nil)

	out := api.CampaignAgents{}
	code := a.do(t, http.MethodGet, "/campaigns/c1/agents", nil, &out)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "c1", out.CampaignID)
	assert.Equal(t, 1, out.TotalAgents)
	assert.Equal(t, "abc", out.Agents[0].Paw)

	a.agents.EXPECT().ListAgents(gomock.Any()).Return(nil, errors.New("connection refused"))

	code = a.do(t, http.MethodGet, "/campaigns/c1/agents", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, code)

	code = a.do(t, http.MethodGet, "/campaigns/c9/agents", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
}
