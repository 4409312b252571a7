package sizing

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uara/dashboard/internal/llm"
	"github.com/uara/dashboard/internal/model"
	"github.com/uara/dashboard/pkg/logger"
)

type fakeGenerator struct {
	result model.RequestSplitResult
	err    error
	block  chan struct{}
	calls  atomic.Int32
	prompt string
}

func (f *fakeGenerator) GenerateStructured(_ context.Context, prompt string, out any) error {
	f.calls.Add(1)
	f.prompt = prompt
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return f.err
	}
	*out.(*model.RequestSplitResult) = f.result
	return nil
}

func subtasks(n int) []model.Subtask {
	out := make([]model.Subtask, n)
	for i := range out {
		out[i] = model.Subtask{Title: fmt.Sprintf("Part %d", i+1), Description: fmt.Sprintf("Deliver part %d", i+1)}
	}
	return out
}

func tooBig(n int) model.RequestSplitResult {
	return model.RequestSplitResult{
		IsTooBig:   true,
		Reasoning:  "Several pages and integrations.",
		Subtasks:   subtasks(n),
		Suggestion: "This is too big for one request, here's a faster breakdown.",
	}
}

func TestLLMAdvisor_ReturnsSplit(t *testing.T) {
	gen := &fakeGenerator{result: tooBig(3)}
	a := NewLLMAdvisor(gen, time.Second, logger.Nop())

	got := a.Analyze(context.Background(), "Website", "Homepage, pricing and checkout")

	assert.True(t, got.IsTooBig)
	assert.Len(t, got.Subtasks, 3)
	assert.Contains(t, gen.prompt, "Title: Website")
	assert.Contains(t, gen.prompt, "Description: Homepage, pricing and checkout")
}

func TestLLMAdvisor_FallsBack(t *testing.T) {
	tests := []struct {
		name string
		gen  llm.StructuredGenerator
	}{
		{"no generator", nil},
		{"backend error", &fakeGenerator{err: errors.New("401 invalid api key")}},
		{"malformed reply", &fakeGenerator{err: llm.ErrMalformedResponse}},
		{"too big with one subtask", &fakeGenerator{result: tooBig(1)}},
		{"too big with blank subtasks", &fakeGenerator{result: model.RequestSplitResult{
			IsTooBig: true,
			Subtasks: []model.Subtask{{Title: "  "}, {Title: ""}},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewLLMAdvisor(tt.gen, time.Second, logger.Nop())
			assert.Equal(t, Fallback(), a.Analyze(context.Background(), "t", "d"))
		})
	}
}

func TestLLMAdvisor_TimeoutFallsBackWithinBudget(t *testing.T) {
	gen := &fakeGenerator{result: tooBig(3), block: make(chan struct{})}
	t.Cleanup(func() { close(gen.block) })

	a := NewLLMAdvisor(gen, 20*time.Millisecond, logger.Nop())

	start := time.Now()
	got := a.Analyze(context.Background(), "Website", "everything")

	assert.Equal(t, Fallback(), got)
	assert.Less(t, time.Since(start), time.Second)
}

func TestLLMAdvisor_Normalizes(t *testing.T) {
	t.Run("caps subtasks", func(t *testing.T) {
		a := NewLLMAdvisor(&fakeGenerator{result: tooBig(7)}, time.Second, logger.Nop())
		got := a.Analyze(context.Background(), "t", "d")
		require.Len(t, got.Subtasks, MaxSubtasks)
		assert.Equal(t, "Part 1", got.Subtasks[0].Title)
	})

	t.Run("clears subtasks when not too big", func(t *testing.T) {
		res := tooBig(2)
		res.IsTooBig = false
		a := NewLLMAdvisor(&fakeGenerator{result: res}, time.Second, logger.Nop())
		got := a.Analyze(context.Background(), "t", "d")
		assert.False(t, got.IsTooBig)
		assert.NotNil(t, got.Subtasks)
		assert.Empty(t, got.Subtasks)
	})

	t.Run("drops untitled subtasks", func(t *testing.T) {
		res := tooBig(2)
		res.Subtasks = append(res.Subtasks, model.Subtask{Title: " ", Description: "orphan"})
		res.Subtasks[1].Description = ""
		a := NewLLMAdvisor(&fakeGenerator{result: res}, time.Second, logger.Nop())
		got := a.Analyze(context.Background(), "t", "d")
		require.Len(t, got.Subtasks, 2)
		assert.Equal(t, "Part 2", got.Subtasks[1].Description)
	})
}

func TestService_Assess(t *testing.T) {
	t.Run("well scoped request skips the advisor", func(t *testing.T) {
		gen := &fakeGenerator{result: tooBig(3)}
		svc := NewService(NewLLMAdvisor(gen, time.Second, logger.Nop()), logger.Nop())

		got := svc.Assess(context.Background(), "Fix button", "Change color to blue")

		assert.True(t, got.QuickCheck)
		assert.Equal(t, RightSized(), got.RequestSplitResult)
		assert.Zero(t, gen.calls.Load())
	})

	t.Run("oversized request is split", func(t *testing.T) {
		gen := &fakeGenerator{result: tooBig(4)}
		svc := NewService(NewLLMAdvisor(gen, time.Second, logger.Nop()), logger.Nop())

		got := svc.Assess(context.Background(), "Website",
			"Build a full website including a homepage, pricing page, contact form with Stripe payment, Supabase database, and authentication")

		assert.False(t, got.QuickCheck)
		assert.True(t, got.IsTooBig)
		assert.Len(t, got.Subtasks, 4)
		assert.Equal(t, int32(1), gen.calls.Load())
	})

	t.Run("backend failure never surfaces", func(t *testing.T) {
		gen := &fakeGenerator{err: context.DeadlineExceeded}
		svc := NewService(NewLLMAdvisor(gen, time.Second, logger.Nop()), logger.Nop())

		got := svc.Assess(context.Background(), "Full website", "comprehensive, with auth and email")

		assert.False(t, got.QuickCheck)
		assert.Equal(t, Fallback(), got.RequestSplitResult)
	})
}

func TestService_AnalyzeIgnoresQuickCheck(t *testing.T) {
	gen := &fakeGenerator{result: model.RequestSplitResult{Reasoning: "fine", Suggestion: "go"}}
	svc := NewService(NewLLMAdvisor(gen, time.Second, logger.Nop()), logger.Nop())

	got := svc.Analyze(context.Background(), "Fix button", "Change color to blue")

	assert.Equal(t, int32(1), gen.calls.Load())
	assert.Equal(t, "fine", got.Reasoning)
}
