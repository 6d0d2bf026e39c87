package dependency

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// RemoteExecutor executes commands via HTTP API calls to a deps-service container that has
// ffmpeg installed and shares OutputDir with this process.
type RemoteExecutor struct {
	config     ExecutorConfig
	httpClient *http.Client
}

// NewRemoteExecutor creates a new RemoteExecutor with the given configuration.
func NewRemoteExecutor(config ExecutorConfig) *RemoteExecutor {
	return &RemoteExecutor{
		config: config,
		httpClient: &http.Client{
			// HTTP timeout should be slightly larger than command timeout
			Timeout: config.DefaultTimeout + 10*time.Second,
		},
	}
}

// Mode implements DependencyExecutor.
func (e *RemoteExecutor) Mode() ExecutionMode { return ModeRemote }

// ExecuteCommand executes a command remotely via HTTP POST /api/v1/execute.
func (e *RemoteExecutor) ExecuteCommand(ctx context.Context, req CommandRequest) (CommandResponse, error) {
	if req.Timeout == 0 {
		req.Timeout = e.config.DefaultTimeout
	}
	reqBody, err := json.Marshal(req)
	if err != nil {
		return CommandResponse{}, fmt.Errorf("failed to serialize request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/execute", e.config.ServiceURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return CommandResponse{}, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return CommandResponse{}, fmt.Errorf("failed to call dependency service (network error): %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return CommandResponse{}, fmt.Errorf("failed to read response: %w", err)
	}

	var resp CommandResponse
	if err := json.Unmarshal(bodyBytes, &resp); err != nil {
		slog.Debug("deps-service returned non-JSON body", "status", httpResp.StatusCode, "body", string(bodyBytes))
		return CommandResponse{}, fmt.Errorf("failed to parse response (HTTP %d): %w", httpResp.StatusCode, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return resp, fmt.Errorf("dependency service returned error (HTTP %d): %s", httpResp.StatusCode, resp.Stderr)
	}

	if resp.DurationMs == 0 {
		resp.DurationMs = time.Since(start).Milliseconds()
	}

	return resp, nil
}

// HealthCheck verifies that the remote dependency service is reachable and healthy.
func (e *RemoteExecutor) HealthCheck(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/v1/health", e.config.ServiceURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dependency service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dependency service unhealthy (HTTP %d)", resp.StatusCode)
	}

	return nil
}
