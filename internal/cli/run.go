package cli

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/bufbuild/connect-go"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"

	"github.com/replicode-ai/replicode/internal/rpc"
	"github.com/replicode-ai/replicode/internal/rpc/connectjson"
	replicationrpc "github.com/replicode-ai/replicode/internal/rpc/replication"
)

// NewRunCmd wires the run command to stream replication events from the daemon.
func NewRunCmd(opts *Options) *cobra.Command {
	var paperFile string
	var methodFile string
	var maxIterations int
	var language string
	var modelOverride string
	var generatorModel string
	var judgeModel string
	var noJudge bool

	cmd := &cobra.Command{
		Use:   "run \"<task>\"",
		Short: "Start a replication run and stream its progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			task := args[0]
			if strings.TrimSpace(task) == "" {
				return fmt.Errorf("task cannot be empty")
			}

			paperText, err := readOptionalFile(paperFile)
			if err != nil {
				return err
			}
			methodText, err := readOptionalFile(methodFile)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			reqBody := rpc.ReplicateRequest{
				RunID:           uuid.NewString(),
				Task:            task,
				PaperText:       paperText,
				MethodText:      methodText,
				DefaultLanguage: language,
				Model:           modelOverride,
				GeneratorModel:  generatorModel,
				JudgeModel:      judgeModel,
			}
			if cmd.Flags().Changed("max-iterations") {
				reqBody.MaxIterations = &maxIterations
			}
			if noJudge {
				f := false
				reqBody.RequireSufficientOutput = &f
			}

			baseURL := daemonURL(cfg.Server.Addr)
			switch strings.ToLower(strings.TrimSpace(cfg.Server.Transport)) {
			case "ndjson":
				return runNDJSON(ctx, cmd, baseURL+"/replication/run/stream", reqBody)
			default:
				return runConnect(ctx, cmd, baseURL+replicationrpc.ConnectReplicateProcedure, reqBody)
			}
		},
	}

	cmd.Flags().StringVar(&paperFile, "paper", "", "Path to a file with the paper text")
	cmd.Flags().StringVar(&methodFile, "method", "", "Path to a file with a method summary")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Override the iteration budget for this run")
	cmd.Flags().StringVar(&language, "language", "", "Default execution language when the model gives none")
	cmd.Flags().StringVar(&modelOverride, "model", "", "Override the model id for all roles in this run")
	cmd.Flags().StringVar(&generatorModel, "generator-model", "", "Override the generator model id")
	cmd.Flags().StringVar(&judgeModel, "judge-model", "", "Override the judge model id")
	cmd.Flags().BoolVar(&noJudge, "no-judge", false, "Accept the first successful execution without a sufficiency verdict")
	return cmd
}

func readOptionalFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func daemonURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func runNDJSON(ctx context.Context, cmd *cobra.Command, url string, reqBody rpc.ReplicateRequest) error {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var evt rpc.ReplicateEvent
		if err := json.Unmarshal(scanner.Bytes(), &evt); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		if err := renderEvent(cmd, evt); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func runConnect(ctx context.Context, cmd *cobra.Command, url string, reqBody rpc.ReplicateRequest) error {
	client := connect.NewClient[rpc.ReplicateStreamRequest, rpc.ReplicateEvent](buildH2CClient(), url, connect.WithCodec(connectjson.Codec{}))
	stream := client.CallBidiStream(ctx)

	if err := stream.Send(&rpc.ReplicateStreamRequest{Run: &reqBody}); err != nil {
		return err
	}

	// propagate cancellation to the daemon.
	go func() {
		<-ctx.Done()
		_ = stream.Send(&rpc.ReplicateStreamRequest{Cancel: true, RunID: reqBody.RunID})
		_ = stream.CloseRequest()
	}()

	for {
		evt, err := stream.Receive()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if err := renderEvent(cmd, *evt); err != nil {
			return err
		}
	}
	_ = stream.CloseRequest()
	return stream.CloseResponse()
}

func renderEvent(cmd *cobra.Command, evt rpc.ReplicateEvent) error {
	out := cmd.OutOrStdout()
	switch evt.Type {
	case "suggestion":
		fmt.Fprintf(out, "[iteration %d] generated %s program (%d bytes)\n",
			evt.Iteration, orDefault(evt.Suggestion.Language, "default-language"), len(evt.Suggestion.Code))
		if evt.Suggestion.Explanation != "" {
			fmt.Fprintf(out, "  %s\n", evt.Suggestion.Explanation)
		}
	case "execution":
		if evt.Execution.Error != "" {
			fmt.Fprintf(out, "[iteration %d] execution failed: %s\n", evt.Iteration, evt.Execution.Error)
		} else {
			fmt.Fprintf(out, "[iteration %d] execution output:\n%s\n", evt.Iteration, evt.Execution.Output)
		}
	case "assessment":
		verdict := "insufficient"
		if evt.Assessment.Sufficient {
			verdict = "sufficient"
		}
		fmt.Fprintf(out, "[iteration %d] judge: %s", evt.Iteration, verdict)
		if evt.Assessment.Rationale != "" {
			fmt.Fprintf(out, " (%s)", evt.Assessment.Rationale)
		}
		fmt.Fprintln(out)
		for _, m := range evt.Assessment.Missing {
			fmt.Fprintf(out, "  missing: %s\n", m)
		}
	case "result":
		if evt.Result == nil {
			return nil
		}
		if evt.Result.Success {
			fmt.Fprintf(out, "[done] replication succeeded after %d iteration(s)\n", len(evt.Result.Steps))
		} else {
			fmt.Fprintf(out, "[done] replication failed: %s\n", evt.Result.LastError)
		}
	case "error":
		return fmt.Errorf("daemon error: %s", evt.Error)
	}
	return nil
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func buildH2CClient() *http.Client {
	return &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}
