package sandbox

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/replicode-ai/replicode/internal/config"
)

func TestNormalizeLanguage(t *testing.T) {
	require.Equal(t, "python", NormalizeLanguage("python3"))
	require.Equal(t, "python", NormalizeLanguage("py"))
	require.Equal(t, "python", NormalizeLanguage("  Python 3.11  "))
	require.Equal(t, "bash", NormalizeLanguage("bash"))
	require.Equal(t, "bash", NormalizeLanguage("sh"))
	require.Equal(t, "python", NormalizeLanguage(""))
	require.Equal(t, "python", NormalizeLanguage("golang"))
}

func TestResultVariants(t *testing.T) {
	ok := Success("report")
	require.False(t, ok.Failed())
	require.Equal(t, "report", ok.Output)
	require.Empty(t, ok.Error)

	empty := Success("")
	require.False(t, empty.Failed())
	require.Equal(t, NoOutput, empty.Output)

	bad := Failure("boom")
	require.True(t, bad.Failed())
	require.Empty(t, bad.Output)
	require.Equal(t, "boom", bad.Error)
}

func TestSubprocessCapturesOutput(t *testing.T) {
	s, err := NewSubprocess(config.SandboxConfig{TimeoutSeconds: 30})
	require.NoError(t, err)

	res, err := s.Execute(context.Background(), "echo REPLICATION REPORT", "bash")
	require.NoError(t, err)
	require.False(t, res.Failed())
	require.Contains(t, res.Output, "REPLICATION REPORT")
}

func TestSubprocessReportsNoOutputPlaceholder(t *testing.T) {
	s, err := NewSubprocess(config.SandboxConfig{TimeoutSeconds: 30})
	require.NoError(t, err)

	res, err := s.Execute(context.Background(), "true", "bash")
	require.NoError(t, err)
	require.False(t, res.Failed())
	require.Equal(t, NoOutput, res.Output)
}

func TestSubprocessFormatsRuntimeFailure(t *testing.T) {
	s, err := NewSubprocess(config.SandboxConfig{TimeoutSeconds: 30})
	require.NoError(t, err)

	res, err := s.Execute(context.Background(), "echo oops >&2; exit 3", "bash")
	require.NoError(t, err)
	require.True(t, res.Failed())
	require.Contains(t, res.Error, "exited with code 3")
	require.Contains(t, res.Error, "oops")
	require.Empty(t, res.Output)
}

func TestSubprocessEnforcesTimeout(t *testing.T) {
	s, err := NewSubprocess(config.SandboxConfig{TimeoutSeconds: 1})
	require.NoError(t, err)

	res, err := s.Execute(context.Background(), "sleep 5", "bash")
	require.NoError(t, err)
	require.True(t, res.Failed())
	require.Contains(t, res.Error, "timed out")
}

func TestSubprocessRunsPython(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not installed")
	}

	s, err := NewSubprocess(config.SandboxConfig{TimeoutSeconds: 30})
	require.NoError(t, err)

	res, err := s.Execute(context.Background(), "print('seed=42')", "python3")
	require.NoError(t, err)
	require.False(t, res.Failed())
	require.Contains(t, res.Output, "seed=42")
}

func TestSubprocessRejectsEmptyCode(t *testing.T) {
	s, err := NewSubprocess(config.SandboxConfig{TimeoutSeconds: 30})
	require.NoError(t, err)

	_, err = s.Execute(context.Background(), "   ", "python")
	require.Error(t, err)
}
