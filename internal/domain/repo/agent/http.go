package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/go-logr/logr"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/entity"
)

const (
	agentsPath   = "/api/v2/agents"
	apiKeyHeader = "KEY"

	maxAttempts = 3
	retryDelay  = 200 * time.Millisecond
)

// errTransient marks failures worth another attempt: transport errors and 5xx.
var errTransient = errors.New("transient agent registry error")

// HTTPRegistry lists agents through the execution backend REST API.
type HTTPRegistry struct {
	client  *http.Client
	baseURL string
	apiKey  string

	retryDelay time.Duration

	logger *logr.Logger
}

func NewHTTPRegistry(client *http.Client, baseURL string, apiKey string) HTTPRegistry {
	return HTTPRegistry{
		client:     client,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		retryDelay: retryDelay,
	}
}

func (r HTTPRegistry) WithLogger(logger logr.Logger) HTTPRegistry {
	r.logger = &logger

	return r
}

func (r HTTPRegistry) WithRetryDelay(delay time.Duration) HTTPRegistry {
	r.retryDelay = delay

	return r
}

type httpAgent struct {
	Paw      string    `json:"paw"`
	Host     string    `json:"host"`
	Platform string    `json:"platform"`
	Group    string    `json:"group"`
	Tags     []string  `json:"tags"`
	LastSeen time.Time `json:"last_seen"`
}

func (r HTTPRegistry) ListAgents(ctx context.Context) ([]entity.Agent, error) {
	var agents []httpAgent

	err := retry.Do(
		func() error {
			ret, err := r.fetch(ctx)
			if err != nil {
				return err
			}

			agents = ret

			return nil
		},
		retry.Context(ctx),
		retry.Attempts(maxAttempts),
		retry.Delay(r.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, errTransient)
		}),
		retry.OnRetry(func(n uint, err error) {
			r.logInfo(1, "Agent registry call failed", "attempt", n+1, "error", err.Error())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}

	ret := make([]entity.Agent, 0, len(agents))

	for _, a := range agents {
		ret = append(ret, mapToEntity(a))
	}

	return ret, nil
}

func (r HTTPRegistry) fetch(ctx context.Context) ([]httpAgent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+agentsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if r.apiKey != "" {
		req.Header.Set(apiKeyHeader, r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to call agent registry: %w", errTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil, fmt.Errorf("%w: unexpected status %d", errTransient, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	ret := []httpAgent{}

	err = json.NewDecoder(resp.Body).Decode(&ret)
	if err != nil {
		return nil, fmt.Errorf("failed to decode agents: %w", err)
	}

	return ret, nil
}

func mapToEntity(a httpAgent) entity.Agent {
	return entity.Agent{
		Paw:      a.Paw,
		Hostname: a.Host,
		Platform: a.Platform,
		Group:    a.Group,
		Tags:     a.Tags,
		LastSeen: a.LastSeen,
	}
}

func (r HTTPRegistry) logInfo(level int, msg string, keysAndValues ...any) {
	if r.logger == nil {
		return
	}

	r.logger.V(level).Info(msg, keysAndValues...)
}
