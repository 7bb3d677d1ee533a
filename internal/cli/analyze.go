package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/replicode-ai/replicode/internal/rpc"
)

// NewAnalyzeCmd groups the pre-replication analysis commands.
func NewAnalyzeCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run pre-replication analysis on a paper",
	}
	cmd.AddCommand(newAnalyzeSubCmd(opts, "feasibility", "Ask whether the paper can be replicated offline", "/analysis/feasibility"))
	cmd.AddCommand(newAnalyzeSubCmd(opts, "method", "Distill the paper into an implementable method summary", "/analysis/method"))
	return cmd
}

func newAnalyzeSubCmd(opts *Options, use, short, path string) *cobra.Command {
	var paperFile string
	var model string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			paperText, err := readOptionalFile(paperFile)
			if err != nil {
				return err
			}
			if strings.TrimSpace(paperText) == "" {
				return fmt.Errorf("--paper is required")
			}

			return postAnalysis(cmd.Context(), cmd, daemonURL(cfg.Server.Addr)+path, rpc.AnalyzeRequest{
				PaperText: paperText,
				Model:     model,
			})
		},
	}

	cmd.Flags().StringVar(&paperFile, "paper", "", "Path to a file with the paper text")
	cmd.Flags().StringVar(&model, "model", "", "Override the analysis model id")
	return cmd
}

func postAnalysis(ctx context.Context, cmd *cobra.Command, url string, reqBody rpc.AnalyzeRequest) error {
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

	var body bytes.Buffer
	if _, err := body.ReadFrom(resp.Body); err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("daemon returned status %d: %s", resp.StatusCode, strings.TrimSpace(body.String()))
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body.Bytes(), "", "  "); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
	return nil
}
