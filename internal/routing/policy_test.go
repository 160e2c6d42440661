package routing

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayhub/relay-gateway/internal/catalog"
	"github.com/relayhub/relay-gateway/internal/metrics"
	"github.com/relayhub/relay-gateway/internal/provider"
)

// stubClassifier returns a canned response or error and records the request.
type stubClassifier struct {
	content string
	err     error
	noReply bool
	lastReq *provider.ChatRequest
}

func (s *stubClassifier) ChatCompletion(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	if s.noReply {
		return &provider.ChatResponse{}, nil
	}
	return &provider.ChatResponse{
		Choices: []provider.Choice{{Message: provider.Message{Role: "assistant", Content: s.content}}},
	}, nil
}

func testPolicy(t *testing.T, stub *stubClassifier) *Policy {
	t.Helper()
	return NewPolicy(stub, "", catalog.Reference(), slog.Default())
}

func TestRouteReturnsClassifierDecisionUnchanged(t *testing.T) {
	stub := &stubClassifier{content: `{"model":"openai/gpt-5-mini","reasoning":"Simple greeting, cheapest model suffices."}`}
	p := testPolicy(t, stub)

	d := p.Route(context.Background(), "hello")
	assert.Equal(t, "openai/gpt-5-mini", d.Model)
	assert.Equal(t, "Simple greeting, cheapest model suffices.", d.Reasoning)
}

func TestRouteInvalidJSONFallsBack(t *testing.T) {
	stub := &stubClassifier{content: "not json"}
	p := testPolicy(t, stub)

	d := p.Route(context.Background(), "hello")
	assert.Equal(t, catalog.Reference().Default().ID, d.Model)
	assert.Equal(t, ParseFailureReasoning, d.Reasoning)
}

func TestRouteMissingModelFallsBack(t *testing.T) {
	stub := &stubClassifier{content: `{"reasoning":"no model field"}`}
	p := testPolicy(t, stub)

	d := p.Route(context.Background(), "hello")
	assert.Equal(t, catalog.Reference().Default().ID, d.Model)
	assert.Equal(t, ParseFailureReasoning, d.Reasoning)
}

func TestRouteNoContentFallsBack(t *testing.T) {
	stub := &stubClassifier{noReply: true}
	p := testPolicy(t, stub)

	d := p.Route(context.Background(), "hello")
	assert.Equal(t, catalog.Reference().Default().ID, d.Model)
	assert.Equal(t, FallbackReasoning, d.Reasoning)
}

func TestRouteClassifierErrorFallsBack(t *testing.T) {
	stub := &stubClassifier{err: errors.New("connection refused")}
	p := testPolicy(t, stub)

	d := p.Route(context.Background(), "hello")
	assert.Equal(t, catalog.Reference().Default().ID, d.Model)
	assert.Equal(t, FallbackReasoning, d.Reasoning)
}

func TestRouteMissingReasoningGetsDefault(t *testing.T) {
	stub := &stubClassifier{content: `{"model":"qwen/qwen3-coder"}`}
	p := testPolicy(t, stub)

	d := p.Route(context.Background(), "write a function")
	assert.Equal(t, "qwen/qwen3-coder", d.Model)
	assert.Equal(t, FallbackReasoning, d.Reasoning)
}

func TestRouteUnknownModelPassedThrough(t *testing.T) {
	stub := &stubClassifier{content: `{"model":"acme/unheard-of","reasoning":"whatever"}`}
	p := testPolicy(t, stub)

	d := p.Route(context.Background(), "hello")
	assert.Equal(t, "acme/unheard-of", d.Model)
}

func TestRouteUnknownModelMetricLabelBounded(t *testing.T) {
	stub := &stubClassifier{content: `{"model":"acme/unheard-of","reasoning":"whatever"}`}
	p := testPolicy(t, stub)

	before := testutil.ToFloat64(metrics.RoutingDecisions.WithLabelValues("unknown", "none"))
	p.Route(context.Background(), "hello")
	after := testutil.ToFloat64(metrics.RoutingDecisions.WithLabelValues("unknown", "none"))
	assert.Equal(t, before+1, after)

	// The raw classifier id must never become a label value.
	assert.Zero(t, testutil.ToFloat64(metrics.RoutingDecisions.WithLabelValues("acme/unheard-of", "none")))
}

func TestRouteClassifierCallShape(t *testing.T) {
	stub := &stubClassifier{content: `{"model":"openai/gpt-5-mini","reasoning":"ok"}`}
	p := testPolicy(t, stub)

	p.Route(context.Background(), "hello")
	require.NotNil(t, stub.lastReq)
	assert.Equal(t, DefaultClassifierModel, stub.lastReq.Model)
	assert.Equal(t, classifierMaxTokens, stub.lastReq.MaxTokens)
	require.NotNil(t, stub.lastReq.ResponseFormat)
	assert.Equal(t, "json_object", stub.lastReq.ResponseFormat.Type)
	require.NotNil(t, stub.lastReq.Temperature)
	assert.Equal(t, 0.0, *stub.lastReq.Temperature)
}

func TestBuildPrompt(t *testing.T) {
	p := testPolicy(t, &stubClassifier{})
	prompt := p.BuildPrompt("write a function to reverse a list")

	// All catalog models are enumerated.
	for _, e := range catalog.Reference().Entries() {
		assert.Contains(t, prompt, e.ID)
	}

	// Coding outranks reasoning outranks default.
	coding := strings.Index(prompt, "Coding intent")
	reasoning := strings.Index(prompt, "Complex reasoning intent")
	fallback := strings.Index(prompt, "Anything else")
	require.True(t, coding >= 0 && reasoning >= 0 && fallback >= 0)
	assert.Less(t, coding, reasoning)
	assert.Less(t, reasoning, fallback)

	// The user message is fenced as data.
	assert.Contains(t, prompt, "\"\"\"\nwrite a function to reverse a list\n\"\"\"")
	assert.Contains(t, prompt, "valid JSON only")
}

func TestBuildPromptEmptyMessage(t *testing.T) {
	p := testPolicy(t, &stubClassifier{})
	prompt := p.BuildPrompt("")
	assert.Contains(t, prompt, "\"\"\"\n\n\"\"\"")
}
