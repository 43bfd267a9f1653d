package webhook_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/mock/gomock"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/campaign"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/common"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/config"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/entity"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/repo/mock"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/siem"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/webhook"
)

// Helper

// recordingTimer never sleeps, it only keeps track of the requested delays.
type recordingTimer struct {
	lock   sync.Mutex
	delays []time.Duration
}

func (r *recordingTimer) After(d time.Duration) <-chan time.Time {
	r.lock.Lock()
	r.delays = append(r.delays, d)
	r.lock.Unlock()

	ret := make(chan time.Time, 1)
	ret <- time.Now()

	return ret
}

func (r *recordingTimer) Delays() []time.Duration {
	r.lock.Lock()
	defer r.lock.Unlock()

	return append([]time.Duration(nil), r.delays...)
}

// endpoint is a webhook receiver answering with a configurable status code.
type endpoint struct {
	server *httptest.Server

	status   atomic.Int32
	requests atomic.Int32
	// failFirst requests are answered 503 whatever status is
	failFirst atomic.Int32
	release   chan struct{}

	lock    sync.Mutex
	bodies  [][]byte
	headers []http.Header
}

func newEndpoint(status int) *endpoint {
	ret := &endpoint{}
	ret.status.Store(int32(status))

	ret.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := ret.requests.Add(1)

		body, _ := io.ReadAll(r.Body)

		ret.lock.Lock()
		ret.bodies = append(ret.bodies, body)
		ret.headers = append(ret.headers, r.Header.Clone())
		release := ret.release
		ret.lock.Unlock()

		if release != nil {
			select {
			case <-release:
			case <-r.Context().Done():
				return
			}
		}

		if n <= ret.failFirst.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		w.WriteHeader(int(ret.status.Load()))
	}))

	return ret
}

// block makes every request wait until the returned function is called.
func (e *endpoint) block() func() {
	release := make(chan struct{})

	e.lock.Lock()
	e.release = release
	e.lock.Unlock()

	return sync.OnceFunc(func() { close(release) })
}

func (e *endpoint) Bodies() [][]byte {
	e.lock.Lock()
	defer e.lock.Unlock()

	return append([][]byte(nil), e.bodies...)
}

func (e *endpoint) Headers() []http.Header {
	e.lock.Lock()
	defer e.lock.Unlock()

	return append([]http.Header(nil), e.headers...)
}

func (e *endpoint) URL() string {
	return e.server.URL + "/hook"
}

var publisherConf = webhook.Config{
	BufferSize:       1000,
	MaxConcurrency:   8,
	RecentErrors:     10,
	Timeout:          2 * time.Second,
	MaxAttempts:      3,
	BaseDelay:        5 * time.Second,
	MetricsNamespace: "test",
}

func newPublisher(conf webhook.Config, timer *recordingTimer) *webhook.Publisher {
	formatters := siem.NewRegistry(config.SIEM{Source: "caldera", Index: "caldera-events", Dataset: "caldera.operations"})
	sender := webhook.NewHTTPSender(http.DefaultClient, "campaign-orchestrator-webhook/1.0")

	publisher, err := webhook.NewPublisher(conf, formatters, sender, prometheus.NewRegistry())
	Expect(err).ToNot(HaveOccurred())

	return publisher.WithTimer(timer)
}

func newEvent(exchange, queue string) entity.LifecycleEvent {
	return entity.LifecycleEvent{
		ID:         "event-" + exchange + "-" + queue,
		Exchange:   exchange,
		Queue:      queue,
		CampaignID: "c1",
		Data:       map[string]interface{}{"status": queue},
		Timestamp:  time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC),
	}
}

type memoryDocs struct {
	lock sync.Mutex
	docs map[string]entity.Campaign
}

func (m *memoryDocs) LoadAll(ctx context.Context) (map[string]entity.Campaign, error) {
	return map[string]entity.Campaign{}, nil
}

func (m *memoryDocs) Put(ctx context.Context, id string, doc entity.Campaign) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.docs[id] = doc

	return nil
}

func (m *memoryDocs) Close(ctx context.Context) error {
	return nil
}

// Test

func TestWebhookPublisher(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Webhook publisher test suite")
}

var _ = Describe("Publishing campaign transitions", func() {
	var (
		receiver  *endpoint
		timer     *recordingTimer
		publisher *webhook.Publisher
		store     *campaign.Store
	)

	BeforeEach(func() {
		receiver = newEndpoint(http.StatusOK)
		timer = &recordingTimer{}
		publisher = newPublisher(publisherConf, timer)
		store = campaign.NewStore(&memoryDocs{docs: map[string]entity.Campaign{}}, publisher)

		DeferCleanup(func() {
			Expect(publisher.Shutdown(context.Background())).To(Succeed())
			receiver.server.Close()
		})
	})

	When("a campaign moves through 2 states", func() {
		It("delivers one webhook per transition", func(ctx SpecContext) {
			_, err := store.Create(ctx, campaign.CreateRequest{ID: "c1", Name: "web tier"})
			Expect(err).ToNot(HaveOccurred())

			_, err = publisher.Register(entity.Subscription{
				URL:       receiver.URL(),
				Exchanges: []string{"campaign"},
				Queues:    []string{"*"},
			})
			Expect(err).ToNot(HaveOccurred())

			_, err = store.Transition(ctx, "c1", entity.CampaignStatusPlanning)
			Expect(err).ToNot(HaveOccurred())

			_, err = store.Transition(ctx, "c1", entity.CampaignStatusEnrolling)
			Expect(err).ToNot(HaveOccurred())

			Eventually(func() uint64 { return publisher.Stats().Sent }).Should(Equal(uint64(2)))
			Consistently(func() uint64 { return publisher.Stats().Sent }, 200*time.Millisecond).Should(Equal(uint64(2)))

			stats := publisher.Stats()
			Expect(stats.Failed).To(BeZero())
			Expect(stats.LastSent).ToNot(BeNil())

			queues := []string{}
			for _, body := range receiver.Bodies() {
				envelope := siem.Envelope{}
				Expect(json.Unmarshal(body, &envelope)).To(Succeed())
				Expect(envelope.Metadata.CampaignID).To(Equal("c1"))

				queues = append(queues, envelope.Event.Queue)
			}

			Expect(queues).To(ConsistOf("planning", "enrolling"))
		})
	})
})

var _ = Describe("Delivering to an endpoint", func() {
	var (
		timer     *recordingTimer
		publisher *webhook.Publisher
	)

	BeforeEach(func() {
		timer = &recordingTimer{}
		publisher = newPublisher(publisherConf, timer)
	})

	When("the endpoint always answers 500", func() {
		It("counts one failure after exactly 3 attempts with doubling delays", func() {
			receiver := newEndpoint(http.StatusInternalServerError)
			defer receiver.server.Close()

			handle, err := publisher.Register(entity.Subscription{URL: receiver.URL()})
			Expect(err).ToNot(HaveOccurred())

			publisher.Publish(newEvent("campaign", "running"))

			Eventually(func() uint64 { return publisher.Stats().Failed }).Should(Equal(uint64(1)))
			Expect(publisher.Shutdown(context.Background())).To(Succeed())

			stats := publisher.Stats()
			Expect(stats.Sent).To(BeZero())
			Expect(stats.LastError).To(ContainSubstring("HTTP 500"))
			Expect(stats.Subscriptions[handle].Failed).To(Equal(uint64(1)))
			Expect(receiver.requests.Load()).To(Equal(int32(3)))
			Expect(timer.Delays()).To(Equal([]time.Duration{5 * time.Second, 10 * time.Second}))

			Expect(stats.RecentErrors).To(HaveLen(1))
			Expect(stats.RecentErrors[0].Attempts).To(Equal(uint(3)))
			Expect(stats.RecentErrors[0].EventID).To(Equal("event-campaign-running"))
		})

		It("honors the retry policy of the subscription", func() {
			receiver := newEndpoint(http.StatusBadGateway)
			defer receiver.server.Close()

			_, err := publisher.Register(entity.Subscription{URL: receiver.URL(), MaxAttempts: 5, BaseDelay: time.Second})
			Expect(err).ToNot(HaveOccurred())

			publisher.Publish(newEvent("campaign", "running"))

			Eventually(func() uint64 { return publisher.Stats().Failed }).Should(Equal(uint64(1)))
			Expect(receiver.requests.Load()).To(Equal(int32(5)))
			Expect(timer.Delays()).To(Equal([]time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}))
		})
	})

	When("the endpoint recovers before the last attempt", func() {
		It("counts a single success", func() {
			receiver := newEndpoint(http.StatusNoContent)
			defer receiver.server.Close()

			receiver.failFirst.Store(2)

			_, err := publisher.Register(entity.Subscription{URL: receiver.URL()})
			Expect(err).ToNot(HaveOccurred())

			publisher.Publish(newEvent("campaign", "running"))

			Eventually(func() uint64 { return publisher.Stats().Sent }).Should(Equal(uint64(1)))
			Expect(publisher.Stats().Failed).To(BeZero())
			Expect(receiver.requests.Load()).To(Equal(int32(3)))
		})
	})

	When("one subscriber is failing", func() {
		It("does not affect the other subscribers", func() {
			failing := newEndpoint(http.StatusInternalServerError)
			defer failing.server.Close()

			healthy := newEndpoint(http.StatusOK)
			defer healthy.server.Close()

			failingHandle, err := publisher.Register(entity.Subscription{URL: failing.URL()})
			Expect(err).ToNot(HaveOccurred())

			healthyHandle, err := publisher.Register(entity.Subscription{URL: healthy.URL()})
			Expect(err).ToNot(HaveOccurred())

			publisher.Publish(newEvent("campaign", "running"))

			Eventually(func() uint64 { return publisher.Stats().Failed }).Should(Equal(uint64(1)))
			Eventually(func() uint64 { return publisher.Stats().Sent }).Should(Equal(uint64(1)))

			stats := publisher.Stats()
			Expect(stats.Subscriptions[failingHandle]).To(And(
				HaveField("Sent", BeZero()),
				HaveField("Failed", Equal(uint64(1))),
			))
			Expect(stats.Subscriptions[healthyHandle]).To(And(
				HaveField("Sent", Equal(uint64(1))),
				HaveField("Failed", BeZero()),
				HaveField("LastError", BeEmpty()),
			))
		})
	})

	When("the endpoint hangs", func() {
		It("returns from Publish before any delivery completes", func() {
			receiver := newEndpoint(http.StatusOK)
			defer receiver.server.Close()

			release := receiver.block()
			defer release()

			_, err := publisher.Register(entity.Subscription{URL: receiver.URL()})
			Expect(err).ToNot(HaveOccurred())

			for i := 0; i < 20; i++ {
				publisher.Publish(newEvent("campaign", "running"))
			}

			Eventually(receiver.requests.Load).Should(BeNumerically(">=", 1))
			Expect(publisher.Stats().Sent).To(BeZero())

			release()

			Eventually(func() uint64 { return publisher.Stats().Sent }).Should(Equal(uint64(20)))
		})

		It("abandons in-flight deliveries when the shutdown grace period expires", func() {
			receiver := newEndpoint(http.StatusOK)
			defer receiver.server.Close()

			release := receiver.block()
			defer release()

			_, err := publisher.Register(entity.Subscription{URL: receiver.URL()})
			Expect(err).ToNot(HaveOccurred())

			publisher.Publish(newEvent("campaign", "running"))
			Eventually(receiver.requests.Load).Should(Equal(int32(1)))

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			err = publisher.Shutdown(ctx)
			Expect(err).To(MatchError(context.DeadlineExceeded))

			stats := publisher.Stats()
			Expect(stats.Sent).To(BeZero())
			Expect(stats.Failed).To(Equal(uint64(1)))

			publisher.Publish(newEvent("campaign", "stopped"))
			Consistently(receiver.requests.Load, 100*time.Millisecond).Should(Equal(int32(1)))
		})
	})
})

var _ = Describe("Subscriptions", func() {
	var publisher *webhook.Publisher

	BeforeEach(func() {
		publisher = newPublisher(publisherConf, &recordingTimer{})

		DeferCleanup(func() {
			Expect(publisher.Shutdown(context.Background())).To(Succeed())
		})
	})

	It("only receive events matching their filter", func() {
		receiver := newEndpoint(http.StatusOK)
		defer receiver.server.Close()

		_, err := publisher.Register(entity.Subscription{URL: receiver.URL(), Exchanges: []string{"operation"}, Queues: []string{"added", "finished"}})
		Expect(err).ToNot(HaveOccurred())

		publisher.Publish(newEvent("campaign", "running"))
		publisher.Publish(newEvent("operation", "running"))
		publisher.Publish(newEvent("operation", "added"))

		Eventually(func() uint64 { return publisher.Stats().Sent }).Should(Equal(uint64(1)))
		Consistently(receiver.requests.Load, 100*time.Millisecond).Should(Equal(int32(1)))
	})

	It("are independent when registered twice", func() {
		receiver := newEndpoint(http.StatusOK)
		defer receiver.server.Close()

		sub := entity.Subscription{URL: receiver.URL(), Exchanges: []string{"campaign"}}

		first, err := publisher.Register(sub)
		Expect(err).ToNot(HaveOccurred())

		second, err := publisher.Register(sub)
		Expect(err).ToNot(HaveOccurred())
		Expect(second).ToNot(Equal(first))

		publisher.Publish(newEvent("campaign", "running"))

		Eventually(func() uint64 { return publisher.Stats().Sent }).Should(Equal(uint64(2)))
		Expect(publisher.Stats().Subscriptions[first].Sent).To(Equal(uint64(1)))
		Expect(publisher.Stats().Subscriptions[second].Sent).To(Equal(uint64(1)))

		Expect(publisher.Unregister(first)).To(Succeed())
		Expect(publisher.List()).To(HaveLen(1))
		Expect(publisher.List()[0].Handle).To(Equal(second))

		publisher.Publish(newEvent("campaign", "stopped"))

		Eventually(func() uint64 { return publisher.Stats().Sent }).Should(Equal(uint64(3)))
		Expect(publisher.Stats().Subscriptions[second].Sent).To(Equal(uint64(2)))
	})

	It("send custom headers and the sink format", func() {
		receiver := newEndpoint(http.StatusOK)
		defer receiver.server.Close()

		_, err := publisher.Register(entity.Subscription{
			URL:      receiver.URL(),
			Name:     "elastic",
			SinkType: siem.FormatElastic,
			Headers:  map[string]string{"Authorization": "ApiKey secret"},
		})
		Expect(err).ToNot(HaveOccurred())

		publisher.Publish(newEvent("campaign", "running"))

		Eventually(func() uint64 { return publisher.Stats().Sent }).Should(Equal(uint64(1)))

		headers := receiver.Headers()[0]
		Expect(headers.Get("Authorization")).To(Equal("ApiKey secret"))
		Expect(headers.Get("Content-Type")).To(Equal("application/json"))
		Expect(headers.Get("User-Agent")).To(Equal("campaign-orchestrator-webhook/1.0"))

		body := map[string]interface{}{}
		Expect(json.Unmarshal(receiver.Bodies()[0], &body)).To(Succeed())
		Expect(body).To(HaveKey("@timestamp"))
		Expect(body).To(HaveKeyWithValue("event", HaveKeyWithValue("action", "campaign.running")))
	})

	It("are rejected when invalid", func() {
		_, err := publisher.Register(entity.Subscription{URL: "not a url"})
		Expect(err).To(MatchError(common.ErrInvalidArgument))

		_, err = publisher.Register(entity.Subscription{URL: "ftp://example.com/hook"})
		Expect(err).To(MatchError(common.ErrInvalidArgument))

		_, err = publisher.Register(entity.Subscription{URL: "https://example.com/hook", SinkType: "graylog"})
		Expect(err).To(MatchError(common.ErrInvalidArgument))

		Expect(publisher.Unregister("unknown")).To(MatchError(common.ErrNotFound))
		Expect(publisher.List()).To(BeEmpty())
	})

	It("apply the publisher defaults", func() {
		handle, err := publisher.Register(entity.Subscription{URL: "https://example.com/hook"})
		Expect(err).ToNot(HaveOccurred())

		list := publisher.List()
		Expect(list).To(HaveLen(1))
		Expect(list[0].Handle).To(Equal(handle))
		Expect(list[0].Subscription).To(And(
			HaveField("Name", Equal("https://example.com/hook")),
			HaveField("MaxAttempts", Equal(uint(3))),
			HaveField("BaseDelay", Equal(5*time.Second)),
			HaveField("Timeout", Equal(2*time.Second)),
		))
	})
})

var _ = Describe("The recent events buffer", func() {
	It("overwrites the oldest event when full", func() {
		conf := publisherConf
		conf.BufferSize = 2

		publisher := newPublisher(conf, &recordingTimer{})

		publisher.Publish(newEvent("campaign", "planning"))
		publisher.Publish(newEvent("campaign", "enrolling"))
		publisher.Publish(newEvent("campaign", "running"))

		stats := publisher.Stats()
		Expect(stats.Dropped).To(Equal(uint64(1)))
		Expect(stats.Buffered).To(Equal(2))
		Expect(stats.BufferCapacity).To(Equal(2))

		queues := []string{}
		for _, event := range publisher.Events() {
			queues = append(queues, event.Queue)
		}

		Expect(queues).To(Equal([]string{"enrolling", "running"}))
		Expect(publisher.Shutdown(context.Background())).To(Succeed())
	})
})

var _ = Describe("Dead letters", func() {
	It("keep deliveries which exhausted their attempts", func() {
		ctrl := gomock.NewController(GinkgoT())

		receiver := newEndpoint(http.StatusInternalServerError)
		defer receiver.server.Close()

		writer := mock.NewMockDeliveryFailureWriter(ctrl)
		writer.EXPECT().
			WriteDeliveryFailure(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, failure entity.DeliveryError, delivery entity.Delivery) error {
				Expect(failure.Attempts).To(Equal(uint(3)))
				Expect(delivery.Event.ID).To(Equal("event-campaign-running"))
				Expect(delivery.Body).ToNot(BeEmpty())

				return nil
			}).
			Times(1)

		publisher := newPublisher(publisherConf, &recordingTimer{}).WithDeadLetter(writer)

		_, err := publisher.Register(entity.Subscription{URL: receiver.URL()})
		Expect(err).ToNot(HaveOccurred())

		publisher.Publish(newEvent("campaign", "running"))

		Expect(publisher.Shutdown(context.Background())).To(Succeed())
		Expect(publisher.Stats().Failed).To(Equal(uint64(1)))
	})
})
