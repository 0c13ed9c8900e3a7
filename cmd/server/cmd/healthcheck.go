package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var (
	healthcheckTimeout    int
	healthcheckURL        string
	healthcheckRetries    int
	healthcheckRetryDelay time.Duration
	healthcheckFormat     string
)

func newHealthcheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check if the server is healthy",
		Long: `Performs a health check by calling the /health endpoint.

Used by container HEALTHCHECK directives. Exits 0 when the server reports
"healthy" and non-zero otherwise.

Examples:
  server healthcheck
  server healthcheck --url http://eventhost.internal:8080/health --retries 3
  server healthcheck --format json`,
		Args: cobra.NoArgs,
		RunE: runHealthcheck,
	}
	cmd.Flags().IntVar(&healthcheckTimeout, "timeout", 5, "timeout in seconds per attempt")
	cmd.Flags().StringVar(&healthcheckURL, "url", "", "health check URL (default: http://localhost:{SERVER_PORT}/health)")
	cmd.Flags().IntVar(&healthcheckRetries, "retries", 0, "additional attempts after a failure")
	cmd.Flags().DurationVar(&healthcheckRetryDelay, "retry-delay", 2*time.Second, "delay between attempts")
	cmd.Flags().StringVar(&healthcheckFormat, "format", "simple", "output format (simple, json)")
	return cmd
}

// HealthResponse mirrors the body served by GET /health.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	GitCommit string                 `json:"git_commit,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Timestamp string                 `json:"timestamp,omitempty"`
}

type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthCheckResult is one probe of a health endpoint.
type HealthCheckResult struct {
	URL        string          `json:"url"`
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code,omitempty"`
	IsHealthy  bool            `json:"is_healthy"`
	LatencyMs  int64           `json:"latency_ms"`
	RetryCount int             `json:"retry_count,omitempty"`
	Error      string          `json:"error,omitempty"`
	Response   *HealthResponse `json:"response,omitempty"`
}

func runHealthcheck(cmd *cobra.Command, args []string) error {
	url := healthcheckURL
	if url == "" {
		url = defaultHealthURL()
	}

	result := performHealthCheckWithRetries(url)
	if err := writeHealthResult(cmd.OutOrStdout(), result, healthcheckFormat); err != nil {
		return err
	}
	if !result.IsHealthy {
		return fmt.Errorf("server unhealthy: %s", result.Status)
	}
	return nil
}

func defaultHealthURL() string {
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	return fmt.Sprintf("http://localhost:%s/health", port)
}

func performHealthCheckWithRetries(url string) HealthCheckResult {
	result := performHealthCheck(url)
	for attempt := 1; attempt <= healthcheckRetries && !result.IsHealthy; attempt++ {
		time.Sleep(healthcheckRetryDelay)
		result = performHealthCheck(url)
		result.RetryCount = attempt
	}
	return result
}

func performHealthCheck(url string) HealthCheckResult {
	result := HealthCheckResult{URL: url, Status: "unknown"}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(healthcheckTimeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Error = fmt.Sprintf("create request: %v", err)
		return result
	}

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	result.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		result.Status = "unreachable"
		result.Error = err.Error()
		return result
	}
	defer func() { _ = resp.Body.Close() }()
	result.StatusCode = resp.StatusCode

	var body HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		result.Status = "invalid_response"
		result.Error = fmt.Sprintf("decode response: %v", err)
		return result
	}
	result.Response = &body
	result.Status = body.Status
	result.IsHealthy = resp.StatusCode == http.StatusOK && body.Status == "healthy"
	return result
}

func writeHealthResult(w io.Writer, result HealthCheckResult, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "simple", "":
		fmt.Fprintf(w, "%s: %s (%dms)\n", result.URL, result.Status, result.LatencyMs)
		if result.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", result.Error)
		}
		if result.Response != nil {
			names := make([]string, 0, len(result.Response.Checks))
			for name := range result.Response.Checks {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				check := result.Response.Checks[name]
				fmt.Fprintf(w, "  %s: %s\n", name, check.Status)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q (use simple or json)", format)
	}
}
