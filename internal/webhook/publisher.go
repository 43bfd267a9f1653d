package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/semaphore"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/common"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/entity"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/repo"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/siem"
	"github.com/purpleteam-labs/campaign-orchestrator/pkg/pipeline"
)

type Config struct {
	// BufferSize is the capacity of the recent events ring.
	BufferSize int
	// MaxConcurrency bounds the deliveries in flight across every subscription.
	MaxConcurrency int
	RecentErrors   int

	// Defaults for subscriptions which do not set their own policy.
	Timeout     time.Duration
	MaxAttempts uint
	BaseDelay   time.Duration

	MetricsNamespace string
}

type Stats struct {
	Sent           uint64                              `json:"sent"`
	Failed         uint64                              `json:"failed"`
	LastSent       *time.Time                          `json:"last_sent"`
	LastError      string                              `json:"last_error,omitempty"`
	Dropped        uint64                              `json:"dropped"`
	Buffered       int                                 `json:"buffered"`
	BufferCapacity int                                 `json:"buffer_capacity"`
	Subscriptions  map[string]entity.SubscriptionStats `json:"subscriptions"`
	RecentErrors   []entity.DeliveryError              `json:"recent_errors"`
}

type SubscriptionInfo struct {
	Handle       string                   `json:"handle"`
	Subscription entity.Subscription      `json:"subscription"`
	Stats        entity.SubscriptionStats `json:"stats"`
}

type subscription struct {
	handle    string
	target    entity.Subscription
	filter    Filter
	formatter siem.Formatter
	headers   http.Header

	// guarded by Publisher.lock
	stats entity.SubscriptionStats
}

type metrics struct {
	deliveries *prometheus.CounterVec
	attempts   prometheus.Counter
	dropped    prometheus.Counter
}

// Publisher fans lifecycle events out to webhook subscriptions.
// Publish only enqueues: every delivery runs on its own goroutine, retried with exponential backoff.
type Publisher struct {
	conf       Config
	formatters *siem.Registry
	sender     pipeline.Processing[entity.Delivery]
	deadLetter repo.DeliveryFailureWriter
	clock      clockwork.Clock
	timer      retry.Timer

	lock          sync.Mutex
	events        *Ring[entity.LifecycleEvent]
	recentErrors  *Ring[entity.DeliveryError]
	subscriptions map[string]*subscription
	order         []string
	totals        entity.SubscriptionStats
	dropped       uint64
	closed        bool

	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	metrics metrics

	logger *logr.Logger
}

func NewPublisher(conf Config, formatters *siem.Registry, sender pipeline.Processing[entity.Delivery], registry prometheus.Registerer) (*Publisher, error) {
	m, err := newMetrics(conf.MetricsNamespace, registry)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Publisher{
		conf:          conf,
		formatters:    formatters,
		sender:        sender,
		clock:         clockwork.NewRealClock(),
		events:        NewRing[entity.LifecycleEvent](conf.BufferSize),
		recentErrors:  NewRing[entity.DeliveryError](conf.RecentErrors),
		subscriptions: map[string]*subscription{},
		sem:           semaphore.NewWeighted(int64(max(conf.MaxConcurrency, 1))),
		ctx:           ctx,
		cancel:        cancel,
		metrics:       m,
	}, nil
}

func newMetrics(namespace string, registry prometheus.Registerer) (metrics, error) {
	ret := metrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Webhook deliveries by final result.",
		}, []string{"result"}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_delivery_attempts_total",
			Help:      "HTTP attempts made to deliver webhooks, retries included.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_buffer_overflow_total",
			Help:      "Events overwritten in the recent events buffer.",
		}),
	}

	for _, collector := range []prometheus.Collector{ret.deliveries, ret.attempts, ret.dropped} {
		err := registry.Register(collector)
		if err != nil {
			return metrics{}, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return ret, nil
}

func (p *Publisher) WithLogger(logger logr.Logger) *Publisher {
	p.logger = &logger

	return p
}

func (p *Publisher) WithClock(clock clockwork.Clock) *Publisher {
	p.clock = clock

	return p
}

// WithTimer replaces the wall clock used between retries.
func (p *Publisher) WithTimer(timer retry.Timer) *Publisher {
	p.timer = timer

	return p
}

// WithDeadLetter keeps deliveries which exhausted their attempts.
func (p *Publisher) WithDeadLetter(writer repo.DeliveryFailureWriter) *Publisher {
	p.deadLetter = writer

	return p
}

// Register adds a subscription. Registering the same subscription twice yields two independent handles.
func (p *Publisher) Register(sub entity.Subscription) (string, error) {
	target, err := url.ParseRequestURI(sub.URL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return "", common.NewInvalidArgumentError("invalid webhook url %q", sub.URL)
	}

	formatter, err := p.formatters.Get(sub.SinkType)
	if err != nil {
		return "", common.NewInvalidArgumentError("%v", err)
	}

	if sub.MaxAttempts == 0 {
		sub.MaxAttempts = p.conf.MaxAttempts
	}

	if sub.BaseDelay <= 0 {
		sub.BaseDelay = p.conf.BaseDelay
	}

	if sub.Timeout <= 0 {
		sub.Timeout = p.conf.Timeout
	}

	if sub.Name == "" {
		sub.Name = sub.URL
	}

	headers := http.Header{}
	for key, value := range sub.Headers {
		headers.Set(key, value)
	}

	s := &subscription{
		handle:    uuid.NewString(),
		target:    sub,
		filter:    NewFilter(sub.Exchanges, sub.Queues),
		formatter: formatter,
		headers:   headers,
	}

	p.lock.Lock()
	p.subscriptions[s.handle] = s
	p.order = append(p.order, s.handle)
	p.lock.Unlock()

	p.logInfo(0, "Webhook registered", "handle", s.handle, "name", sub.Name, "url", sub.URL, "sinkType", sub.SinkType)

	return s.handle, nil
}

// Unregister removes a subscription. Deliveries already in flight complete.
func (p *Publisher) Unregister(handle string) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	_, ok := p.subscriptions[handle]
	if !ok {
		return common.NewNotFoundError("webhook", handle)
	}

	delete(p.subscriptions, handle)

	for i, h := range p.order {
		if h == handle {
			p.order = append(p.order[:i], p.order[i+1:]...)

			break
		}
	}

	p.logInfo(0, "Webhook unregistered", "handle", handle)

	return nil
}

// Publish never blocks on network I/O and never fails.
func (p *Publisher) Publish(event entity.LifecycleEvent) {
	p.lock.Lock()

	if p.closed {
		p.lock.Unlock()
		p.logInfo(1, "Publisher is shut down, event ignored", "eventID", event.ID)

		return
	}

	overflow := p.events.Push(event)
	if overflow {
		p.dropped++
	}

	targets := make([]*subscription, 0, len(p.order))

	for _, handle := range p.order {
		s := p.subscriptions[handle]
		if s.filter.Match(event) {
			targets = append(targets, s)
		}
	}

	p.wg.Add(len(targets))
	p.lock.Unlock()

	if overflow {
		p.metrics.dropped.Inc()
		p.logInfo(1, "Event buffer is full, oldest event overwritten", "capacity", p.events.Cap())
	}

	for _, s := range targets {
		go p.dispatch(s, event)
	}
}

func (p *Publisher) dispatch(s *subscription, event entity.LifecycleEvent) {
	defer p.wg.Done()

	delivery := entity.Delivery{
		Handle:  s.handle,
		URL:     s.target.URL,
		Headers: s.headers,
		Event:   event,
	}

	err := p.sem.Acquire(p.ctx, 1)
	if err != nil {
		p.recordFailure(s, delivery, 0, fmt.Errorf("delivery abandoned: %w", err))

		return
	}

	defer p.sem.Release(1)

	payload, err := s.formatter(event)
	if err == nil {
		delivery.Body, err = json.Marshal(payload)
	}

	if err != nil {
		p.recordFailure(s, delivery, 0, fmt.Errorf("failed to format event: %w", err))

		return
	}

	attempts := uint(0)

	send := pipeline.ProcessingFunc[entity.Delivery](func(ctx context.Context, d entity.Delivery) error {
		attempts++
		p.metrics.attempts.Inc()

		ctx, cancel := context.WithTimeout(ctx, s.target.Timeout)
		defer cancel()

		return p.sender.Process(ctx, d)
	})

	processing := pipeline.NewPanicHandlerProcessing(
		pipeline.NewRetryProcessing[entity.Delivery](send, pipeline.RetryConfig{
			MaxAttempt: s.target.MaxAttempts,
			Delay:      s.target.BaseDelay,
			Backoff:    true,
			Timer:      p.timer,
			OnRetry: func(attempt uint, err error) {
				p.logInfo(2, "Webhook delivery failed, retrying", "handle", s.handle, "eventID", event.ID, "attempt", attempt+1, "error", err.Error())
			},
		}),
	)

	err = processing.Process(p.ctx, delivery)
	if err != nil {
		p.recordFailure(s, delivery, attempts, err)

		return
	}

	p.recordSuccess(s, event)
}

func (p *Publisher) recordSuccess(s *subscription, event entity.LifecycleEvent) {
	now := p.clock.Now().UTC()

	p.lock.Lock()
	s.stats.Sent++
	s.stats.LastSent = now
	p.totals.Sent++
	p.totals.LastSent = now
	p.lock.Unlock()

	p.metrics.deliveries.WithLabelValues("sent").Inc()

	p.logInfo(2, "Webhook delivered", "handle", s.handle, "eventID", event.ID)
}

func (p *Publisher) recordFailure(s *subscription, delivery entity.Delivery, attempts uint, err error) {
	failure := entity.DeliveryError{
		Timestamp: p.clock.Now().UTC(),
		Handle:    s.handle,
		URL:       s.target.URL,
		EventID:   delivery.Event.ID,
		Attempts:  attempts,
		Error:     err.Error(),
	}

	p.lock.Lock()
	s.stats.Failed++
	s.stats.LastError = failure.Error
	p.totals.Failed++
	p.totals.LastError = failure.Error
	p.recentErrors.Push(failure)
	p.lock.Unlock()

	p.metrics.deliveries.WithLabelValues("failed").Inc()

	p.logError(fmt.Errorf("%w: %w", common.ErrDeliveryFailure, err), "Webhook delivery failed", "handle", s.handle, "eventID", delivery.Event.ID, "attempts", attempts)

	if p.deadLetter == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.target.Timeout)
	defer cancel()

	dlqErr := p.deadLetter.WriteDeliveryFailure(ctx, failure, delivery)
	if dlqErr != nil {
		p.logError(dlqErr, "Failed to write delivery failure", "handle", s.handle, "eventID", delivery.Event.ID)
	}
}

// Stats returns a snapshot of the delivery statistics.
func (p *Publisher) Stats() Stats {
	p.lock.Lock()
	defer p.lock.Unlock()

	ret := Stats{
		Sent:           p.totals.Sent,
		Failed:         p.totals.Failed,
		LastError:      p.totals.LastError,
		Dropped:        p.dropped,
		Buffered:       p.events.Len(),
		BufferCapacity: p.events.Cap(),
		Subscriptions:  make(map[string]entity.SubscriptionStats, len(p.subscriptions)),
		RecentErrors:   p.recentErrors.Items(),
	}

	if !p.totals.LastSent.IsZero() {
		lastSent := p.totals.LastSent
		ret.LastSent = &lastSent
	}

	for handle, s := range p.subscriptions {
		ret.Subscriptions[handle] = s.stats
	}

	return ret
}

// List returns the registered subscriptions in registration order.
func (p *Publisher) List() []SubscriptionInfo {
	p.lock.Lock()
	defer p.lock.Unlock()

	ret := make([]SubscriptionInfo, 0, len(p.order))

	for _, handle := range p.order {
		s := p.subscriptions[handle]

		ret = append(ret, SubscriptionInfo{
			Handle:       handle,
			Subscription: s.target,
			Stats:        s.stats,
		})
	}

	return ret
}

// Events returns the buffered events, oldest first.
func (p *Publisher) Events() []entity.LifecycleEvent {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.events.Items()
}

// Shutdown stops accepting events and waits for in-flight deliveries.
// When ctx is done first, pending deliveries are cancelled and abandoned at their next retry.
func (p *Publisher) Shutdown(ctx context.Context) error {
	p.lock.Lock()
	p.closed = true
	p.lock.Unlock()

	done := make(chan struct{})

	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()

		return nil
	case <-ctx.Done():
		p.cancel()
		<-done

		return fmt.Errorf("failed to drain webhook deliveries: %w", ctx.Err())
	}
}

func (p *Publisher) logInfo(level int, msg string, keysAndValues ...any) {
	if p.logger == nil {
		return
	}

	p.logger.V(level).Info(msg, keysAndValues...)
}

func (p *Publisher) logError(err error, msg string, keysAndValues ...any) {
	if p.logger == nil {
		return
	}

	p.logger.Error(err, msg, keysAndValues...)
}
