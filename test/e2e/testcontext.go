package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	promdto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/vladimirvivien/gexe/exec"
)

type TestConfig struct {
	Binary  string
	DataDir string

	APIPort     int
	MetricsPort int
}

// TestContext runs one orchestrator process against a private data directory.
type TestContext struct {
	Config TestConfig

	client *http.Client

	proc   *exec.Proc
	output *syncBuffer
}

func CreateTestConfig(binary string, dataDir string) (TestConfig, error) {
	apiPort, err := freePort()
	if err != nil {
		return TestConfig{}, err
	}

	metricsPort, err := freePort()
	if err != nil {
		return TestConfig{}, err
	}

	return TestConfig{
		Binary:      binary,
		DataDir:     dataDir,
		APIPort:     apiPort,
		MetricsPort: metricsPort,
	}, nil
}

func CreateTestContext(conf TestConfig) TestContext {
	return TestContext{
		Config: conf,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (tc *TestContext) env() []string {
	return append(os.Environ(),
		fmt.Sprintf("ORCHESTRATOR_API_PORT=%d", tc.Config.APIPort),
		fmt.Sprintf("ORCHESTRATOR_METRICS_PORT=%d", tc.Config.MetricsPort),
		"ORCHESTRATOR_STORAGE_CAMPAIGNSFILE="+filepath.Join(tc.Config.DataDir, "campaigns.json"),
		"ORCHESTRATOR_STORAGE_ENROLLMENTSFILE="+filepath.Join(tc.Config.DataDir, "enrollment_requests.yaml"),
		"ORCHESTRATOR_WEBHOOKS_RETRYDELAY=100ms",
		"ORCHESTRATOR_GRACEFULDURATION=5s",
		"ORCHESTRATOR_LOGS_ENCODER=json",
	)
}

// Start launches the orchestrator and waits for its health endpoint.
func (tc *TestContext) Start(ctx context.Context) error {
	tc.output = &syncBuffer{}

	tc.proc = exec.NewProc(tc.Config.Binary + " serve")
	tc.proc.Command().Env = tc.env()
	tc.proc.Command().Stdout = tc.output
	tc.proc.Command().Stderr = tc.output

	tc.proc.Start()

	err := tc.proc.Err()
	if err != nil {
		return fmt.Errorf("failed to start orchestrator: %w", err)
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		code, err := tc.Do(ctx, http.MethodGet, "/health", nil, nil)
		if err == nil && code == http.StatusOK {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("orchestrator not ready (%w): %s", ctx.Err(), tc.Output())
		case <-ticker.C:
		}
	}
}

// Stop sends SIGTERM and waits for the process to exit.
func (tc *TestContext) Stop() error {
	if tc.proc == nil {
		return nil
	}

	process := tc.proc.Command().Process
	if process == nil {
		return errors.New("orchestrator not started")
	}

	err := process.Signal(syscall.SIGTERM)
	if err != nil {
		return fmt.Errorf("failed to signal orchestrator: %w", err)
	}

	tc.proc.Wait()
	tc.proc = nil

	return nil
}

func (tc *TestContext) Output() string {
	if tc.output == nil {
		return ""
	}

	return tc.output.String()
}

func (tc *TestContext) APIURL() string {
	return fmt.Sprintf("http://localhost:%d", tc.Config.APIPort)
}

// Do sends body as JSON and decodes the response into out when set.
func (tc *TestContext) Do(ctx context.Context, method string, path string, body any, out any) (int, error) {
	var reader io.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal body: %w", err)
		}

		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, tc.APIURL()+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}

	defer resp.Body.Close()

	if out != nil {
		err = json.NewDecoder(resp.Body).Decode(out)
		if err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return resp.StatusCode, nil
}

// Metrics scrapes the metrics endpoint.
func (tc *TestContext) Metrics(ctx context.Context) (map[string]*promdto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://localhost:%d/metrics", tc.Config.MetricsPort), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics: %w", err)
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read metrics: %w", err)
	}

	parser := expfmt.TextParser{}

	ret, err := parser.TextToMetricFamilies(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse metrics: %w", err)
	}

	return ret, nil
}

// CounterValue sums the counter samples matching the label.
func CounterValue(families map[string]*promdto.MetricFamily, name string, label string, value string) float64 {
	family, ok := families[name]
	if !ok {
		return 0
	}

	ret := 0.0

	for _, metric := range family.GetMetric() {
		for _, pair := range metric.GetLabel() {
			if pair.GetName() == label && pair.GetValue() == value {
				ret += metric.GetCounter().GetValue()
			}
		}
	}

	return ret
}

func freePort() (int, error) {
	listener, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return 0, fmt.Errorf("failed to find a free port: %w", err)
	}

	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port, nil
}
