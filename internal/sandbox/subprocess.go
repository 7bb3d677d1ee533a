package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/replicode-ai/replicode/internal/config"
)

// Subprocess executes generated code in a throwaway working directory on the
// local machine. Each call provisions a fresh temp dir and discards it after
// the run, so no state leaks between attempts.
type Subprocess struct {
	pythonBin string
	timeout   time.Duration
}

// NewSubprocess builds a local executor from sandbox config.
func NewSubprocess(cfg config.SandboxConfig) (*Subprocess, error) {
	bin := strings.TrimSpace(cfg.PythonBinary)
	if bin == "" {
		bin = "python3"
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Subprocess{pythonBin: bin, timeout: timeout}, nil
}

// Execute writes the code to an ephemeral directory and runs it under the
// configured timeout. Runtime faults and timeouts come back as Failure
// results; only environment provisioning problems return an error.
func (s *Subprocess) Execute(ctx context.Context, code, language string) (Result, error) {
	if strings.TrimSpace(code) == "" {
		return Result{}, errors.New("code is required")
	}

	dir, err := os.MkdirTemp("", "replicode-run-")
	if err != nil {
		return Result{}, fmt.Errorf("provision sandbox dir: %w", err)
	}
	defer os.RemoveAll(dir)

	var bin string
	var args []string
	switch NormalizeLanguage(language) {
	case "bash":
		script := filepath.Join(dir, "main.sh")
		if err := os.WriteFile(script, []byte(code), 0o600); err != nil {
			return Result{}, fmt.Errorf("write script: %w", err)
		}
		bin, args = "bash", []string{script}
	default:
		script := filepath.Join(dir, "main.py")
		if err := os.WriteFile(script, []byte(code), 0o600); err != nil {
			return Result{}, fmt.Errorf("write script: %w", err)
		}
		bin, args = s.pythonBin, []string{script}
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, bin, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if runCtx.Err() == context.DeadlineExceeded {
		return Failure(fmt.Sprintf("execution timed out after %s", s.timeout)), nil
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return Failure(formatExitFailure(exitErr.ExitCode(), stdout.String(), stderr.String())), nil
		}
		return Failure(fmt.Sprintf("start %s: %v", bin, runErr)), nil
	}

	return Success(combineStreams(stdout.String(), stderr.String())), nil
}

func formatExitFailure(code int, stdout, stderr string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "process exited with code %d", code)
	if s := strings.TrimSpace(stderr); s != "" {
		b.WriteString("\n")
		b.WriteString(s)
	}
	if s := strings.TrimSpace(stdout); s != "" {
		b.WriteString("\nstdout:\n")
		b.WriteString(s)
	}
	return b.String()
}

func combineStreams(stdout, stderr string) string {
	stdout = strings.TrimRight(stdout, "\n")
	stderr = strings.TrimRight(stderr, "\n")
	switch {
	case stdout != "" && stderr != "":
		return stdout + "\n" + stderr
	case stderr != "":
		return stderr
	default:
		return stdout
	}
}
