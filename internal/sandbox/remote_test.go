package sandbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/replicode-ai/replicode/internal/config"
)

func remoteConfig(url string) config.SandboxConfig {
	return config.SandboxConfig{
		Type:                    "http",
		BaseURL:                 url,
		APIKey:                  "sk-test",
		TimeoutSeconds:          60,
		ProvisionTimeoutSeconds: 60,
	}
}

func TestNewRemoteRequiresAPIKey(t *testing.T) {
	_, err := NewRemote(config.SandboxConfig{BaseURL: "https://sandbox.example.com"})
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestRemotePrefersStructuredResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/executions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req remoteExecRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "python", req.Language)
		require.Equal(t, 60, req.TimeoutSeconds)

		json.NewEncoder(w).Encode(remoteExecResponse{
			Result: "42",
			Stdout: "ignored when result is present",
		})
	}))
	defer srv.Close()

	rem, err := NewRemote(remoteConfig(srv.URL))
	require.NoError(t, err)

	res, err := rem.Execute(context.Background(), "print(42)", "py")
	require.NoError(t, err)
	require.False(t, res.Failed())
	require.Equal(t, "42", res.Output)
}

func TestRemoteFallsBackToStreams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(remoteExecResponse{Stdout: "out\n", Stderr: "warn\n"})
	}))
	defer srv.Close()

	rem, err := NewRemote(remoteConfig(srv.URL))
	require.NoError(t, err)

	res, err := rem.Execute(context.Background(), "print('x')", "python")
	require.NoError(t, err)
	require.Equal(t, "out\nwarn", res.Output)
}

func TestRemoteEmptyStreamsBecomeNoOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(remoteExecResponse{})
	}))
	defer srv.Close()

	rem, err := NewRemote(remoteConfig(srv.URL))
	require.NoError(t, err)

	res, err := rem.Execute(context.Background(), "pass", "python")
	require.NoError(t, err)
	require.Equal(t, NoOutput, res.Output)
}

func TestRemoteFormatsStructuredFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(remoteExecResponse{
			Error: &remoteFault{
				Name:      "NameError",
				Value:     "name 'x' is not defined",
				Traceback: "Traceback (most recent call last):\n  File \"main.py\", line 1\n",
			},
		})
	}))
	defer srv.Close()

	rem, err := NewRemote(remoteConfig(srv.URL))
	require.NoError(t, err)

	res, err := rem.Execute(context.Background(), "print(x)", "python")
	require.NoError(t, err)
	require.True(t, res.Failed())
	require.Contains(t, res.Error, "NameError: name 'x' is not defined")
	require.Contains(t, res.Error, "Traceback")
}

func TestRemoteSurfacesProvisioningError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no capacity", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	rem, err := NewRemote(remoteConfig(srv.URL))
	require.NoError(t, err)

	_, err = rem.Execute(context.Background(), "print(1)", "python")
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 503")
}

func TestNewSelectsExecutorByType(t *testing.T) {
	exec, err := New(config.SandboxConfig{Type: "subprocess", TimeoutSeconds: 10})
	require.NoError(t, err)
	require.IsType(t, &Subprocess{}, exec)

	_, err = New(config.SandboxConfig{Type: "http", TimeoutSeconds: 10})
	require.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = New(config.SandboxConfig{Type: "firecracker"})
	require.Error(t, err)
}
