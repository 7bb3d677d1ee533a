package replication

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/replicode-ai/replicode/internal/config"
	"github.com/replicode-ai/replicode/internal/replication"
	"github.com/replicode-ai/replicode/internal/rpc"
)

// Runner executes a replication run and yields streamed events.
type Runner interface {
	Run(ctx context.Context, req rpc.ReplicateRequest) (<-chan rpc.ReplicateEvent, error)
}

// Metrics is the slice of observability the runner needs.
type Metrics interface {
	RecordRun(outcome string, duration time.Duration, iterations int)
	RecordModelUsage(role, model string)
	RecordModelFailure(role, model string)
}

// LoopRunner bridges the replication loop to RPC events.
type LoopRunner struct {
	Loop     *replication.Loop
	Strategy *replication.StrategyEngine
	Metrics  Metrics
	Cfg      config.ReplicationConfig
	Logger   *zap.Logger
}

// Run validates the request, fills defaults from config, and drives the loop
// in a goroutine that feeds the returned event channel.
func (r *LoopRunner) Run(ctx context.Context, req rpc.ReplicateRequest) (<-chan rpc.ReplicateEvent, error) {
	if r.Loop == nil {
		return nil, errors.New("replication loop unavailable")
	}
	if strings.TrimSpace(req.Task) == "" {
		return nil, errors.New("task is required")
	}

	params, err := r.Params(req)
	if err != nil {
		return nil, err
	}

	out := make(chan rpc.ReplicateEvent, 16)
	go func() {
		defer close(out)
		start := time.Now()

		loop := r.Loop.WithObserver(&stepEmitter{runID: params.RunID, ctx: ctx, out: out})
		res, err := loop.Run(ctx, params)
		if err != nil {
			r.recordFatal(params, err)
			if r.Metrics != nil {
				r.Metrics.RecordRun("fatal", time.Since(start), 0)
			}
			send(ctx, out, rpc.ReplicateEvent{
				Type:  "error",
				RunID: params.RunID,
				Error: err.Error(),
				Done:  true,
			})
			return
		}

		outcome := "failure"
		if res.Success {
			outcome = "success"
		}
		if r.Metrics != nil {
			r.Metrics.RecordRun(outcome, time.Since(start), len(res.Steps))
		}
		r.logger().Info("replication run finished",
			zap.String("run_id", params.RunID),
			zap.String("outcome", outcome),
			zap.Int("iterations", len(res.Steps)))

		send(ctx, out, rpc.ReplicateEvent{
			Type:   "result",
			RunID:  params.RunID,
			Result: &res,
			Done:   true,
		})
	}()
	return out, nil
}

// Params resolves request fields against configuration and strategy.
func (r *LoopRunner) Params(req rpc.ReplicateRequest) (replication.Params, error) {
	p := replication.Params{
		RunID:                   strings.TrimSpace(req.RunID),
		Task:                    req.Task,
		PaperText:               req.PaperText,
		MethodText:              req.MethodText,
		MaxIterations:           r.Cfg.MaxIterations,
		DefaultLanguage:         r.Cfg.DefaultLanguage,
		RequireSufficientOutput: r.Cfg.RequireSufficientOutput,
	}
	if p.RunID == "" {
		p.RunID = uuid.NewString()
	}
	if req.MaxIterations != nil {
		if *req.MaxIterations < 0 {
			return replication.Params{}, fmt.Errorf("max_iterations must be non-negative")
		}
		p.MaxIterations = *req.MaxIterations
	}
	if strings.TrimSpace(req.DefaultLanguage) != "" {
		p.DefaultLanguage = req.DefaultLanguage
	}
	if req.RequireSufficientOutput != nil {
		p.RequireSufficientOutput = *req.RequireSufficientOutput
	}

	expensiveUsed := 0
	p.GeneratorModel = r.selectModel("generator", firstNonEmpty(req.GeneratorModel, req.Model), &expensiveUsed)
	p.JudgeModel = r.selectModel("judge", firstNonEmpty(req.JudgeModel, req.Model), &expensiveUsed)
	return p, nil
}

func (r *LoopRunner) selectModel(role, override string, expensiveUsed *int) string {
	if r.Strategy == nil {
		return override
	}
	_, _, chosen, isExp, err := r.Strategy.PickWithBudget(role, override, *expensiveUsed)
	if err != nil || chosen == "" {
		return override
	}
	if isExp {
		*expensiveUsed++
	}
	if r.Metrics != nil {
		r.Metrics.RecordModelUsage(role, chosen)
	}
	return chosen
}

func (r *LoopRunner) recordFatal(p replication.Params, err error) {
	var genErr *replication.GenerationError
	var judgeErr *replication.JudgmentError
	switch {
	case errors.As(err, &genErr):
		if r.Metrics != nil {
			r.Metrics.RecordModelFailure("generator", p.GeneratorModel)
		}
	case errors.As(err, &judgeErr):
		if r.Metrics != nil {
			r.Metrics.RecordModelFailure("judge", p.JudgeModel)
		}
	}
	r.logger().Error("replication run aborted",
		zap.String("run_id", p.RunID),
		zap.Error(err))
}

func (r *LoopRunner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// stepEmitter forwards loop steps as progress events.
type stepEmitter struct {
	runID string
	ctx   context.Context
	out   chan<- rpc.ReplicateEvent
}

func (e *stepEmitter) OnStep(step replication.Step) {
	suggestion := step.Suggestion
	run := step.Run
	send(e.ctx, e.out, rpc.ReplicateEvent{
		Type:       "suggestion",
		RunID:      e.runID,
		Iteration:  step.Iteration,
		Suggestion: &suggestion,
	})
	send(e.ctx, e.out, rpc.ReplicateEvent{
		Type:      "execution",
		RunID:     e.runID,
		Iteration: step.Iteration,
		Execution: &run,
	})
	if step.Assessment != nil {
		send(e.ctx, e.out, rpc.ReplicateEvent{
			Type:       "assessment",
			RunID:      e.runID,
			Iteration:  step.Iteration,
			Assessment: step.Assessment,
		})
	}
}

func send(ctx context.Context, out chan<- rpc.ReplicateEvent, ev rpc.ReplicateEvent) {
	select {
	case <-ctx.Done():
	case out <- ev:
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
