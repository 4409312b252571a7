package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/uara/dashboard/pkg/logger"
	"github.com/uara/dashboard/pkg/metrics"
)

// ErrMalformedResponse is returned when a reply holds no decodable JSON object.
var ErrMalformedResponse = errors.New("llm: malformed structured response")

// StructuredGenerator fills out from a model reply to prompt.
type StructuredGenerator interface {
	GenerateStructured(ctx context.Context, prompt string, out any) error
}

const structuredSystem = "Reply with a single JSON object and nothing else. Do not wrap it in markdown."

// JSONGenerator asks a Client for JSON and decodes the reply.
type JSONGenerator struct {
	client    Client
	model     string
	maxTokens int
	logger    *logger.Logger
}

// NewJSONGenerator creates a new JSONGenerator. An empty model uses the
// provider default.
func NewJSONGenerator(client Client, model string, log *logger.Logger) *JSONGenerator {
	return &JSONGenerator{
		client:    client,
		model:     model,
		maxTokens: 2048,
		logger:    log,
	}
}

// GenerateStructured sends prompt and decodes the JSON object in the reply
// into out.
func (g *JSONGenerator) GenerateStructured(ctx context.Context, prompt string, out any) error {
	provider := g.client.Name()
	start := time.Now()

	resp, err := g.client.Complete(ctx, &CompletionRequest{
		Model:       g.model,
		System:      structuredSystem,
		Messages:    []ChatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   g.maxTokens,
		Temperature: 0.2,
		JSON:        true,
	})
	if err != nil {
		metrics.RecordLLMCall(provider, "error", time.Since(start).Seconds(), 0, 0)
		return fmt.Errorf("%s completion: %w", provider, err)
	}

	raw, ok := ExtractJSONObject(resp.Content)
	if !ok {
		metrics.RecordLLMCall(provider, "malformed", time.Since(start).Seconds(), resp.TokensIn, resp.TokensOut)
		g.logger.Warn("structured reply held no JSON object",
			zap.String("provider", provider),
			zap.String("stop_reason", resp.StopReason),
		)
		return ErrMalformedResponse
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		metrics.RecordLLMCall(provider, "malformed", time.Since(start).Seconds(), resp.TokensIn, resp.TokensOut)
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	metrics.RecordLLMCall(provider, "ok", time.Since(start).Seconds(), resp.TokensIn, resp.TokensOut)
	g.logger.Debug("structured reply decoded",
		zap.String("provider", provider),
		zap.String("model", resp.Model),
		zap.Int("tokens_in", resp.TokensIn),
		zap.Int("tokens_out", resp.TokensOut),
		zap.Int64("latency_ms", resp.LatencyMs),
	)
	return nil
}

// ExtractJSONObject returns the first balanced top-level JSON object in s,
// skipping any prose or code fences around it.
func ExtractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
