package e2e_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/api"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/entity"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/siem"
	"github.com/purpleteam-labs/campaign-orchestrator/test/e2e"
)

// Helper

type receiver struct {
	server *httptest.Server

	lock      sync.Mutex
	envelopes []siem.Envelope
}

func newReceiver() *receiver {
	ret := &receiver{}

	ret.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		envelope := siem.Envelope{}
		if json.Unmarshal(body, &envelope) == nil {
			ret.lock.Lock()
			ret.envelopes = append(ret.envelopes, envelope)
			ret.lock.Unlock()
		}

		w.WriteHeader(http.StatusNoContent)
	}))

	return ret
}

func (r *receiver) Queues() []string {
	r.lock.Lock()
	defer r.lock.Unlock()

	ret := []string{}
	for _, envelope := range r.envelopes {
		ret = append(ret, envelope.Event.Exchange+"/"+envelope.Event.Queue)
	}

	return ret
}

// Test Case

var _ = Describe("Running a campaign through the REST API", func() {
	var (
		tc      *e2e.TestContext
		hook    *receiver
		dataDir string
	)

	BeforeEach(func(ctx SpecContext) {
		dataDir = GinkgoT().TempDir()

		hook = newReceiver()
		DeferCleanup(hook.server.Close)

		tc = startOrchestrator(ctx, dataDir)
	}, NodeTimeout(time.Minute))

	It("streams every transition to the webhook and persists the campaign", func(ctx SpecContext) {
		handle := api.WebhookHandle{}
		code, err := tc.Do(ctx, http.MethodPost, "/webhooks", api.WebhookRequest{URL: hook.server.URL, Exchanges: []string{"campaign", "operation"}}, &handle)
		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(http.StatusCreated))

		code, err = tc.Do(ctx, http.MethodPost, "/campaigns", map[string]any{"id": "c1", "name": "web tier"}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(http.StatusCreated))

		for _, to := range []string{"planning", "enrolling", "running"} {
			code, err = tc.Do(ctx, http.MethodPost, "/campaigns/c1/transition", map[string]any{"to": to}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(http.StatusOK))
		}

		code, err = tc.Do(ctx, http.MethodPost, "/campaigns/c1/operations", map[string]any{"operation_id": "op-1", "name": "discovery"}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(http.StatusCreated))

		Eventually(hook.Queues).Should(ConsistOf(
			"campaign/created",
			"campaign/planning",
			"campaign/enrolling",
			"campaign/running",
			"operation/added",
		))

		Eventually(func(g Gomega) {
			families, err := tc.Metrics(ctx)
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(e2e.CounterValue(families, "orchestrator_webhook_deliveries_total", "result", "sent")).To(BeEquivalentTo(5))
			g.Expect(e2e.CounterValue(families, "orchestrator_api_requests_total", "code", "201")).To(BeNumerically(">=", 3))
		}).Should(Succeed())

		overview := map[string]any{}
		code, err = tc.Do(ctx, http.MethodGet, "/webhooks", nil, &overview)
		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(http.StatusOK))
		Expect(overview).To(HaveKeyWithValue("stats", HaveKeyWithValue("sent", BeEquivalentTo(5))))

		// Restart on the same data directory
		Expect(tc.Stop()).To(Succeed())

		tc = startOrchestrator(ctx, dataDir)

		c := entity.Campaign{}
		code, err = tc.Do(ctx, http.MethodGet, "/campaigns/c1", nil, &c)
		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(http.StatusOK))
		Expect(c.Status).To(Equal(entity.CampaignStatusRunning))
		Expect(c.Operations).To(HaveLen(1))
		Expect(c.Timeline).To(HaveLen(5))
	}, NodeTimeout(2*time.Minute))

	It("creates enrollment requests scoped to a campaign", func(ctx SpecContext) {
		created := entity.EnrollmentRequest{}
		code, err := tc.Do(ctx, http.MethodPost, "/enrollments", map[string]any{"platform": "linux", "campaign_id": "c1", "tags": []string{"web"}}, &created)
		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(http.StatusCreated))
		Expect(created.Status).To(Equal(entity.EnrollmentStatusPending))
		Expect(created.BootstrapCommand).To(ContainSubstring("campaign:c1"))

		list := api.EnrollmentList{}
		code, err = tc.Do(ctx, http.MethodGet, "/enrollments?campaign_id=c1", nil, &list)
		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(http.StatusOK))
		Expect(list.Requests).To(HaveLen(1))
	}, NodeTimeout(time.Minute))
})
