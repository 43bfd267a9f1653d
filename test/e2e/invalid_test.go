package e2e_test

import (
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/api"
	"github.com/purpleteam-labs/campaign-orchestrator/test/e2e"
)

var _ = Describe("Sending invalid requests", func() {
	var tc *e2e.TestContext

	BeforeEach(func(ctx SpecContext) {
		tc = startOrchestrator(ctx, GinkgoT().TempDir())

		code, err := tc.Do(ctx, http.MethodPost, "/campaigns", map[string]any{"id": "c1", "name": "web tier"}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(http.StatusCreated))
	}, NodeTimeout(time.Minute))

	DescribeTable("maps domain errors to status codes",
		func(ctx SpecContext, method string, path string, body any, expected int) {
			out := api.ErrorResponse{}

			code, err := tc.Do(ctx, method, path, body, &out)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(expected))
			Expect(out.Error).NotTo(BeEmpty())
		},
		Entry("skipping a state", http.MethodPost, "/campaigns/c1/transition", map[string]any{"to": "completed"}, http.StatusConflict),
		Entry("duplicate id", http.MethodPost, "/campaigns", map[string]any{"id": "c1", "name": "again"}, http.StatusConflict),
		Entry("unknown campaign", http.MethodGet, "/campaigns/c9", nil, http.StatusNotFound),
		Entry("unknown status", http.MethodPost, "/campaigns/c1/transition", map[string]any{"to": "archived"}, http.StatusBadRequest),
		Entry("invalid webhook", http.MethodPost, "/webhooks", map[string]any{"url": "not a url"}, http.StatusBadRequest),
		Entry("invalid platform", http.MethodPost, "/enrollments", map[string]any{"platform": "plan9"}, http.StatusBadRequest),
	)

	It("keeps the campaign untouched after a rejected transition", func(ctx SpecContext) {
		code, err := tc.Do(ctx, http.MethodPost, "/campaigns/c1/transition", map[string]any{"to": "running"}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(http.StatusConflict))

		out := map[string]any{}
		code, err = tc.Do(ctx, http.MethodGet, "/campaigns/c1", nil, &out)
		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(Equal(http.StatusOK))
		Expect(out).To(HaveKeyWithValue("status", "created"))
	}, NodeTimeout(time.Minute))
})
