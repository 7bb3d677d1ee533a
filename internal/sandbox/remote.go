package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/replicode-ai/replicode/internal/config"
)

// ErrMissingAPIKey is returned at construction when the remote executor has no
// credential. This is a configuration error and is never retried.
var ErrMissingAPIKey = errors.New("sandbox api key is required (set REPLICODE_SANDBOX_API_KEY)")

// Remote executes code through an HTTP code-interpreter service that
// provisions an ephemeral sandbox per request.
type Remote struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	execTimeout time.Duration
}

// NewRemote builds a remote executor from sandbox config. The credential is
// validated here so a misconfigured daemon fails at startup, not mid-run.
func NewRemote(cfg config.SandboxConfig) (*Remote, error) {
	apiKey := strings.TrimSpace(os.ExpandEnv(cfg.APIKey))
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("sandbox base url is required")
	}

	execTimeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if execTimeout <= 0 {
		execTimeout = 60 * time.Second
	}
	provisionTimeout := time.Duration(cfg.ProvisionTimeoutSeconds) * time.Second
	if provisionTimeout <= 0 {
		provisionTimeout = 60 * time.Second
	}

	return &Remote{
		// The request covers sandbox provisioning plus code execution.
		client:      &http.Client{Timeout: provisionTimeout + execTimeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      apiKey,
		execTimeout: execTimeout,
	}, nil
}

type remoteExecRequest struct {
	Language       string `json:"language"`
	Code           string `json:"code"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type remoteExecResponse struct {
	Result string       `json:"result,omitempty"`
	Stdout string       `json:"stdout,omitempty"`
	Stderr string       `json:"stderr,omitempty"`
	Error  *remoteFault `json:"error,omitempty"`
}

type remoteFault struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Traceback string `json:"traceback,omitempty"`
}

// Execute submits the code for one ephemeral sandbox run. Structured runtime
// faults come back as Failure results; transport and non-2xx responses are
// returned as errors for the caller to fold into its retry policy.
func (r *Remote) Execute(ctx context.Context, code, language string) (Result, error) {
	if strings.TrimSpace(code) == "" {
		return Result{}, errors.New("code is required")
	}

	payload, err := json.Marshal(remoteExecRequest{
		Language:       NormalizeLanguage(language),
		Code:           code,
		TimeoutSeconds: int(r.execTimeout.Seconds()),
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/executions", bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)

	res, err := r.client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("sandbox request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return Result{}, fmt.Errorf("sandbox api: status %d: %s", res.StatusCode, string(b))
	}

	var resp remoteExecResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return Result{}, fmt.Errorf("decode sandbox response: %w", err)
	}

	if resp.Error != nil {
		return Failure(formatFault(resp.Error)), nil
	}

	// Prefer the primary structured result over raw streams.
	if strings.TrimSpace(resp.Result) != "" {
		return Success(resp.Result), nil
	}
	return Success(combineStreams(resp.Stdout, resp.Stderr)), nil
}

func formatFault(f *remoteFault) string {
	var b strings.Builder
	b.WriteString(f.Name)
	if f.Value != "" {
		b.WriteString(": ")
		b.WriteString(f.Value)
	}
	if strings.TrimSpace(f.Traceback) != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimRight(f.Traceback, "\n"))
	}
	return b.String()
}

// New selects an executor implementation from config.
func New(cfg config.SandboxConfig) (Executor, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", "subprocess":
		return NewSubprocess(cfg)
	case "http":
		return NewRemote(cfg)
	default:
		return nil, fmt.Errorf("unknown sandbox type %q", cfg.Type)
	}
}
