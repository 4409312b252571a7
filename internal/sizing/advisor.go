// Package sizing decides whether a proposed request fits in one unit of work
// and proposes a split when it does not.
package sizing

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/uara/dashboard/internal/llm"
	"github.com/uara/dashboard/internal/model"
	"github.com/uara/dashboard/pkg/logger"
	"github.com/uara/dashboard/pkg/metrics"
	"github.com/uara/dashboard/pkg/tracing"
)

const (
	// MinSubtasks and MaxSubtasks bound a proposed split.
	MinSubtasks = 2
	MaxSubtasks = 5

	// DefaultTimeout bounds one analysis.
	DefaultTimeout = 30 * time.Second
)

// Advisor analyzes a proposed request. Analyze never fails; when no verdict
// can be reached it returns Fallback().
type Advisor interface {
	Analyze(ctx context.Context, title, description string) model.RequestSplitResult
}

// Fallback is the verdict returned when analysis is unavailable.
func Fallback() model.RequestSplitResult {
	return model.RequestSplitResult{
		IsTooBig:   false,
		Reasoning:  "Unable to analyze request size at this time.",
		Subtasks:   []model.Subtask{},
		Suggestion: "Please proceed with your request as is. If it seems complex, consider breaking it down manually.",
	}
}

// RightSized is the verdict for requests the heuristic clears.
func RightSized() model.RequestSplitResult {
	return model.RequestSplitResult{
		IsTooBig:   false,
		Reasoning:  "This request appears to be appropriately sized.",
		Subtasks:   []model.Subtask{},
		Suggestion: "This looks like a perfect size request! I can get this done in 2-3 days.",
	}
}

// LLMAdvisor asks a structured generator for a verdict.
type LLMAdvisor struct {
	gen     llm.StructuredGenerator
	timeout time.Duration
	logger  *logger.Logger
}

// NewLLMAdvisor creates a new LLMAdvisor. A nil gen always yields Fallback().
func NewLLMAdvisor(gen llm.StructuredGenerator, timeout time.Duration, log *logger.Logger) *LLMAdvisor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &LLMAdvisor{gen: gen, timeout: timeout, logger: log}
}

type generation struct {
	result model.RequestSplitResult
	err    error
}

// Analyze returns the generator's verdict, or Fallback() if the generator
// fails, exceeds the timeout, or proposes an unusable split.
func (a *LLMAdvisor) Analyze(ctx context.Context, title, description string) model.RequestSplitResult {
	ctx, span := tracing.Start(ctx, "sizing.Analyze", attribute.Int("description.length", len(description)))
	defer span.End()

	if a.gen == nil {
		return a.fallback("unconfigured", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	// The generator may ignore ctx; the select still honours the deadline.
	done := make(chan generation, 1)
	go func() {
		var out model.RequestSplitResult
		err := a.gen.GenerateStructured(ctx, buildPrompt(title, description), &out)
		done <- generation{result: out, err: err}
	}()

	var g generation
	select {
	case g = <-done:
	case <-ctx.Done():
		g.err = ctx.Err()
	}

	if g.err != nil {
		switch {
		case errors.Is(g.err, context.DeadlineExceeded):
			return a.fallback("timeout", g.err)
		case errors.Is(g.err, context.Canceled):
			return a.fallback("canceled", g.err)
		case errors.Is(g.err, llm.ErrMalformedResponse):
			return a.fallback("malformed", g.err)
		default:
			return a.fallback("error", g.err)
		}
	}

	result, ok := normalize(g.result)
	if !ok {
		return a.fallback("invalid_split", nil)
	}

	metrics.RecordSizing("analyze", result.IsTooBig)
	span.SetAttributes(
		attribute.Bool("sizing.too_big", result.IsTooBig),
		attribute.Int("sizing.subtasks", len(result.Subtasks)),
	)
	return result
}

func (a *LLMAdvisor) fallback(reason string, err error) model.RequestSplitResult {
	metrics.RecordSizingFallback(reason)
	fields := []zap.Field{zap.String("reason", reason)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	a.logger.Warn("request sizing fell back", fields...)
	return Fallback()
}

// normalize tidies a generated verdict. It reports false when an oversized
// verdict does not carry enough usable subtasks.
func normalize(r model.RequestSplitResult) (model.RequestSplitResult, bool) {
	r.Reasoning = strings.TrimSpace(r.Reasoning)
	r.Suggestion = strings.TrimSpace(r.Suggestion)

	if !r.IsTooBig {
		r.Subtasks = []model.Subtask{}
		return r, true
	}

	subtasks := make([]model.Subtask, 0, len(r.Subtasks))
	for _, st := range r.Subtasks {
		st.Title = strings.TrimSpace(st.Title)
		st.Description = strings.TrimSpace(st.Description)
		if st.Title == "" {
			continue
		}
		if st.Description == "" {
			st.Description = st.Title
		}
		subtasks = append(subtasks, st)
	}
	if len(subtasks) < MinSubtasks {
		return r, false
	}
	if len(subtasks) > MaxSubtasks {
		subtasks = subtasks[:MaxSubtasks]
	}
	r.Subtasks = subtasks
	return r, true
}

// Service runs the quick check and, when it flags a request, the advisor.
type Service struct {
	advisor Advisor
	logger  *logger.Logger
}

// NewService creates a new Service.
func NewService(advisor Advisor, log *logger.Logger) *Service {
	return &Service{advisor: advisor, logger: log}
}

// Assess runs the quick check and consults the advisor only when the check
// flags the request. It never fails.
func (s *Service) Assess(ctx context.Context, title, description string) model.SizeAssessment {
	quick := QuickSizeCheck(title, description)
	metrics.RecordSizing("quick", quick)

	if !quick {
		return model.SizeAssessment{RequestSplitResult: RightSized(), QuickCheck: true}
	}

	result := s.advisor.Analyze(ctx, title, description)
	s.logger.Info("request sized",
		zap.Int("score", Score(title, description)),
		zap.Bool("too_big", result.IsTooBig),
		zap.Int("subtasks", len(result.Subtasks)),
	)
	return model.SizeAssessment{RequestSplitResult: result}
}

// Analyze consults the advisor regardless of the quick check.
func (s *Service) Analyze(ctx context.Context, title, description string) model.RequestSplitResult {
	return s.advisor.Analyze(ctx, title, description)
}
