// Package pipeline turns a question into SQL, runs it and asks the model to
// explain the rows.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopqa/shopqa/internal/llm"
	"github.com/shopqa/shopqa/internal/observability"
	"github.com/shopqa/shopqa/internal/query"
	"github.com/shopqa/shopqa/internal/schema"
)

type Executor interface {
	Execute(ctx context.Context, sql string) query.Result
}

// Recorder receives every outcome. Failures are logged and ignored.
type Recorder interface {
	Record(ctx context.Context, outcome Outcome) error
}

type Deps struct {
	Generator llm.Generator
	Executor  Executor
	// Schema defaults to schema.Description.
	Schema   func() string
	Recorder Recorder
	Logger   *slog.Logger
}

type Options struct {
	// FailOnQueryError ends the question with an error when the generated SQL
	// fails, instead of asking the model to describe the failure.
	FailOnQueryError bool
	// PromptTokenBudget caps the estimated size of the answer prompt. Rows are
	// dropped from the prompt, not from the Outcome, until it fits. Zero
	// disables the cap.
	PromptTokenBudget int
	Now               func() time.Time
}

type Pipeline struct {
	deps Deps
	opts Options
	// the model is only safe for sequential use
	mu sync.Mutex
}

func New(deps Deps, opts Options) (*Pipeline, error) {
	if deps.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if deps.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if deps.Schema == nil {
		deps.Schema = schema.Description
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{deps: deps, opts: opts}, nil
}

func (p *Pipeline) Ask(ctx context.Context, question string) Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.opts.Now()
	outcome := p.ask(ctx, question)
	outcome.StartedAt = start.UTC()
	outcome.Duration = p.opts.Now().Sub(start)

	observability.ObserveQuestion(outcome.Status(), outcome.Duration)
	logger := p.deps.Logger.With(slog.String("trace_id", observability.TraceIDFromContext(ctx)))
	if outcome.Failed() {
		logger.WarnContext(ctx, "question_failed",
			slog.String("question", question),
			slog.String("error", outcome.Err.Error()),
			slog.String("duration", outcome.Duration.String()),
		)
	} else {
		logger.InfoContext(ctx, "question_answered",
			slog.String("question", question),
			slog.Bool("query_failed", outcome.Results.Failed()),
			slog.Int("rows", len(outcome.Results.Rows)),
			slog.String("duration", outcome.Duration.String()),
		)
	}

	if p.deps.Recorder != nil {
		if err := p.deps.Recorder.Record(ctx, outcome); err != nil {
			observability.IncrementArchiveFailure()
			logger.ErrorContext(ctx, "outcome_record_failed", slog.String("error", err.Error()))
		}
	}
	return outcome
}

func (p *Pipeline) ask(ctx context.Context, question string) Outcome {
	fail := func(err error) Outcome {
		return Outcome{Question: question, Err: fmt.Errorf("error processing question: %w", err)}
	}
	logger := p.deps.Logger

	sqlPromptText, err := render(sqlPrompt, sqlPromptData{Question: question, Schema: p.deps.Schema()})
	if err != nil {
		return fail(err)
	}
	generated, err := p.generate(ctx, observability.StageSQL, sqlPromptText)
	if err != nil {
		return fail(err)
	}
	sqlQuery := llm.StripMarkdownSQL(generated)
	logger.DebugContext(ctx, "sql_generated", slog.String("sql", sqlQuery))

	results := p.deps.Executor.Execute(ctx, sqlQuery)
	if results.Failed() && p.opts.FailOnQueryError {
		return fail(results.Err)
	}
	answerPromptText, err := p.answerPrompt(question, results)
	if err != nil {
		return fail(err)
	}
	answer, err := p.generate(ctx, observability.StageAnswer, answerPromptText)
	if err != nil {
		return fail(err)
	}

	return Outcome{
		Question: question,
		SQLQuery: sqlQuery,
		Results:  results,
		Answer:   answer,
	}
}

// answerPrompt renders the answer prompt with as many leading rows as fit the
// token budget. At least one row is always kept.
func (p *Pipeline) answerPrompt(question string, results query.Result) (string, error) {
	text, err := render(answerPrompt, answerPromptData{Question: question, SQLResults: query.FormatResult(results)})
	budget := p.opts.PromptTokenBudget
	if err != nil || budget <= 0 || results.Failed() {
		return text, err
	}

	keep := len(results.Rows)
	for tokens := llm.EstimateTokens(text); tokens > budget && keep > 1; tokens = llm.EstimateTokens(text) {
		next := keep * budget / tokens
		if next >= keep {
			next = keep - 1
		}
		keep = max(next, 1)

		formatted := query.FormatResult(query.Succeeded(results.Columns, results.Rows[:keep]))
		formatted += fmt.Sprintf("\n(%d more rows not shown)", len(results.Rows)-keep)
		text, err = render(answerPrompt, answerPromptData{Question: question, SQLResults: formatted})
		if err != nil {
			return "", err
		}
	}
	if keep < len(results.Rows) {
		p.deps.Logger.Debug("answer_rows_trimmed", slog.Int("rows", len(results.Rows)), slog.Int("kept", keep))
	}
	return text, nil
}

func (p *Pipeline) generate(ctx context.Context, stage, prompt string) (string, error) {
	start := time.Now()
	text, err := p.deps.Generator.Generate(ctx, prompt)
	observability.ObserveGeneration(stage, time.Since(start), err)
	if err != nil {
		return "", &GenerationError{Stage: stage, Err: err}
	}
	return text, nil
}
