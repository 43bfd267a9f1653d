package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/campaign"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/common"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/entity"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/enrollment"
	"github.com/purpleteam-labs/campaign-orchestrator/internal/orchestrator"
)

// Orchestrator is what the REST facade needs from the orchestration service.
type Orchestrator interface {
	CreateCampaign(ctx context.Context, req campaign.CreateRequest) (entity.Campaign, error)
	GetCampaign(id string) (entity.Campaign, error)
	ListCampaigns() []entity.Campaign
	TransitionCampaign(ctx context.Context, id string, to entity.CampaignStatus) (entity.Campaign, error)
	AddOperation(ctx context.Context, id string, operationID string, name string) (entity.Campaign, error)
	UpdateOperation(ctx context.Context, id string, operationID string, status string) (entity.Campaign, error)
	AddError(ctx context.Context, id string, phase string, message string, severity entity.Severity) (entity.Campaign, error)
	SetReports(ctx context.Context, id string, reports map[string]string) (entity.Campaign, error)
	CampaignAgents(ctx context.Context, id string) ([]entity.Agent, error)

	RegisterWebhook(sub entity.Subscription) (string, error)
	UnregisterWebhook(handle string) error
	Webhooks() orchestrator.WebhookOverview

	CreateEnrollment(ctx context.Context, req enrollment.CreateRequest) (entity.EnrollmentRequest, error)
	GetEnrollment(id string) (entity.EnrollmentRequest, error)
	ListEnrollments(filter enrollment.ListFilter) []entity.EnrollmentRequest
}

type Config struct {
	MaxBodyBytes     int64
	MetricsNamespace string
}

type Server struct {
	service Orchestrator
	conf    Config

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec

	logger *logr.Logger
}

func NewServer(service Orchestrator, conf Config, registry prometheus.Registerer) (*Server, error) {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: conf.MetricsNamespace,
		Name:      "api_requests_total",
		Help:      "REST requests by method and status code.",
	}, []string{"method", "code"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: conf.MetricsNamespace,
		Name:      "api_request_duration_seconds",
		Help:      "Time taken to serve REST requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	for _, collector := range []prometheus.Collector{requests, duration} {
		err := registry.Register(collector)
		if err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return &Server{
		service:  service,
		conf:     conf,
		requests: requests,
		duration: duration,
	}, nil
}

func (s *Server) WithLogger(logger logr.Logger) *Server {
	s.logger = &logger

	return s
}

// Handler returns the router serving the REST API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequest)

	if s.conf.MaxBodyBytes > 0 {
		r.Use(middleware.RequestSize(s.conf.MaxBodyBytes))
	}

	r.Get("/health", s.health)

	r.Route("/campaigns", func(r chi.Router) {
		r.Post("/", s.createCampaign)
		r.Get("/", s.listCampaigns)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getCampaign)
			r.Post("/transition", s.transitionCampaign)
			r.Post("/operations", s.addOperation)
			r.Put("/operations/{operationID}", s.updateOperation)
			r.Post("/errors", s.addError)
			r.Put("/reports", s.setReports)
			r.Get("/agents", s.campaignAgents)
		})
	})

	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/", s.registerWebhook)
		r.Get("/", s.listWebhooks)
		r.Delete("/{handle}", s.unregisterWebhook)
	})

	r.Route("/enrollments", func(r chi.Router) {
		r.Post("/", s.createEnrollment)
		r.Get("/", s.listEnrollments)
		r.Get("/{id}", s.getEnrollment)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "no route for "+r.Method+" "+r.URL.Path)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "method "+r.Method+" not allowed on "+r.URL.Path)
	})

	return promhttp.InstrumentHandlerDuration(s.duration, promhttp.InstrumentHandlerCounter(s.requests, r))
}

func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logInfo(1, "Request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"requestID", middleware.GetReqID(r.Context()),
		)
	})
}

// Helpers

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeJSONError sends {"error": message} with the given status code.
func writeJSONError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, ErrorResponse{Error: message})
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrInvalidTransition), errors.Is(err, common.ErrAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusCode(err)
	if code == http.StatusInternalServerError {
		s.logError(err, "Request failed", "method", r.Method, "path", r.URL.Path, "requestID", middleware.GetReqID(r.Context()))
	}

	writeJSONError(w, code, err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}

	maxBytesErr := &http.MaxBytesError{}
	if errors.As(err, &maxBytesErr) {
		writeJSONError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body larger than %d bytes", maxBytesErr.Limit))

		return false
	}

	writeJSONError(w, http.StatusBadRequest, "invalid request body: "+err.Error())

	return false
}

func (s *Server) logInfo(level int, msg string, keysAndValues ...any) {
	if s.logger == nil {
		return
	}

	s.logger.V(level).Info(msg, keysAndValues...)
}

func (s *Server) logError(err error, msg string, keysAndValues ...any) {
	if s.logger == nil {
		return
	}

	s.logger.Error(err, msg, keysAndValues...)
}
