package replication

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/replicode-ai/replicode/internal/config"
	"github.com/replicode-ai/replicode/internal/sandbox"
)

const exhaustionMessage = "max iterations reached without a successful replication"

// Loop is the replication orchestrator: a bounded generate → execute → judge
// cycle that carries the previous suggestion and last error between
// iterations and records every step.
type Loop struct {
	generator SuggestionSource
	executor  sandbox.Executor
	judge     OutputJudge
	cfg       config.ReplicationConfig
	logger    *zap.Logger
	observer  Observer
}

// NewLoop assembles an orchestrator. Logger and observer may be nil.
func NewLoop(generator SuggestionSource, executor sandbox.Executor, judge OutputJudge, cfg config.ReplicationConfig, logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		generator: generator,
		executor:  executor,
		judge:     judge,
		cfg:       cfg,
		logger:    logger,
	}
}

// WithObserver returns a copy of the loop that reports each recorded step.
func (l *Loop) WithObserver(obs Observer) *Loop {
	clone := *l
	clone.observer = obs
	return &clone
}

// Run executes the replication loop. Generation and judgment failures are
// fatal and propagate as errors; execution failures and insufficient verdicts
// are folded into the next iteration's context until the budget is exhausted.
func (l *Loop) Run(ctx context.Context, p Params) (Result, error) {
	steps := make([]Step, 0, p.MaxIterations)

	var previous *Suggestion
	lastError := ""

	for iteration := 0; iteration < p.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		suggestion, err := l.generator.Suggest(ctx, SuggestInput{
			Task:       p.Task,
			PaperText:  p.PaperText,
			MethodText: p.MethodText,
			Previous:   previous,
			LastError:  lastError,
			Iteration:  iteration,
			Model:      p.GeneratorModel,
		})
		if err != nil {
			// Deliberately not retried: a broken prompt, schema or
			// credential fails the run instead of burning iterations.
			return Result{}, err
		}

		language := suggestion.Language
		if language == "" {
			language = p.DefaultLanguage
		}

		runResult, execErr := l.executor.Execute(ctx, suggestion.Code, language)
		if execErr != nil {
			runResult = sandbox.Failure(fmt.Sprintf("sandbox: %v", execErr))
		}

		if runResult.Failed() {
			l.record(&steps, Step{Iteration: iteration, Suggestion: suggestion, Run: runResult})
			l.logger.Info("execution failed",
				zap.String("run_id", p.RunID),
				zap.Int("iteration", iteration))
			previous = &suggestion
			lastError = runResult.Error
			continue
		}

		if !p.RequireSufficientOutput {
			l.record(&steps, Step{Iteration: iteration, Suggestion: suggestion, Run: runResult})
			return Result{
				RunID:       p.RunID,
				Success:     true,
				Steps:       steps,
				FinalOutput: runResult.Output,
			}, nil
		}

		// The successful execution is part of the step history before the
		// judge is consulted, so a fatal judgment error cannot erase it.
		steps = append(steps, Step{Iteration: iteration, Suggestion: suggestion, Run: runResult})

		assessment, err := l.judge.Assess(ctx, AssessInput{
			Task:       p.Task,
			PaperText:  p.PaperText,
			MethodText: p.MethodText,
			Output:     runResult.Output,
			Model:      p.JudgeModel,
		})
		if err != nil {
			// Same asymmetry as generation: a judge that cannot evaluate an
			// already-successful execution is a meta-failure, not a retry.
			l.notify(steps[len(steps)-1])
			return Result{}, err
		}

		steps[len(steps)-1].Assessment = &assessment
		l.notify(steps[len(steps)-1])

		if assessment.Sufficient {
			return Result{
				RunID:           p.RunID,
				Success:         true,
				Steps:           steps,
				FinalOutput:     runResult.Output,
				FinalAssessment: &assessment,
			}, nil
		}

		l.logger.Info("output judged insufficient",
			zap.String("run_id", p.RunID),
			zap.Int("iteration", iteration),
			zap.Strings("missing", assessment.Missing))
		previous = &suggestion
		lastError = insufficiencyContext(assessment, runResult.Output, l.cfg.SnippetCharBudget)
	}

	if lastError == "" {
		lastError = exhaustionMessage
	}
	return Result{
		RunID:     p.RunID,
		Success:   false,
		Steps:     steps,
		LastError: lastError,
	}, nil
}

func (l *Loop) record(steps *[]Step, step Step) {
	*steps = append(*steps, step)
	l.notify(step)
}

// notify reports a step to the observer exactly once, after its assessment
// (when one was requested) is known.
func (l *Loop) notify(step Step) {
	if l.observer != nil {
		l.observer.OnStep(step)
	}
}
