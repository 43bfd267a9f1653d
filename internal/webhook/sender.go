package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/entity"
	"github.com/purpleteam-labs/campaign-orchestrator/pkg/pipeline"
)

const maxErrorBodySize = 200

// HTTPSender POSTs a delivery once. Transport errors and non 2xx answers are retryable.
type HTTPSender struct {
	client    *http.Client
	userAgent string
}

func NewHTTPSender(client *http.Client, userAgent string) HTTPSender {
	return HTTPSender{
		client:    client,
		userAgent: userAgent,
	}
}

func (s HTTPSender) Process(ctx context.Context, delivery entity.Delivery) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, delivery.URL, bytes.NewReader(delivery.Body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)

	for key, values := range delivery.Headers {
		req.Header.Del(key)

		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return pipeline.NewErrRetryableError(fmt.Errorf("failed to post event: %w", err))
	}

	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

	return pipeline.NewErrRetryableError(fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(body)))
}
