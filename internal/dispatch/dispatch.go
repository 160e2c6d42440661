package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/relayhub/relay-gateway/internal/catalog"
	"github.com/relayhub/relay-gateway/internal/metrics"
	"github.com/relayhub/relay-gateway/internal/provider"
	"github.com/relayhub/relay-gateway/internal/sanitize"
)

// FailureReply is the user-facing text every boundary shows when the
// downstream completion call fails.
const FailureReply = "Sorry, the model could not be reached. Please try again."

// Performance merges the catalog's static figures with the measured wall
// clock for one assistant turn. Immutable after creation.
type Performance struct {
	Throughput             string `json:"throughput"`
	TimeToFirstToken       string `json:"timeToFirstToken"`
	TokensPerSecond        string `json:"tokensPerSecond"`
	Cost                   string `json:"cost"`
	ActualTimeToFirstToken string `json:"actualTimeToFirstToken"`
}

// Result is the outcome of one completed dispatch.
type Result struct {
	Reply       string
	Model       string
	Elapsed     time.Duration
	Performance Performance
}

// Dispatcher sends the routed message to the chosen model, measures latency
// and conditionally cleans the reply. Routing has already committed to a
// choice: a failing completion call is surfaced, never retried on a
// different model.
type Dispatcher struct {
	completions provider.ChatCaller
	catalog     *catalog.Catalog
	cleaner     *sanitize.Cleaner
	logger      *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(completions provider.ChatCaller, cat *catalog.Catalog, cleaner *sanitize.Cleaner, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		completions: completions,
		catalog:     cat,
		cleaner:     cleaner,
		logger:      logger,
	}
}

// Dispatch invokes the downstream model with the message as the entire
// conversation. A model id outside the catalog is substituted with the
// default entry before the call. An empty provider reply is a valid result,
// not an error; a failed call is returned as an error so the boundary can
// tell the two apart.
func (d *Dispatcher) Dispatch(ctx context.Context, model, message string) (*Result, error) {
	entry, ok := d.catalog.Lookup(model)
	if !ok {
		entry = d.catalog.Default()
		d.logger.Warn("model not in catalog, substituting default",
			"requested", model, "model", entry.ID)
		model = entry.ID
	}

	start := time.Now()
	resp, err := d.completions.ChatCompletion(ctx, &provider.ChatRequest{
		Model:    model,
		Messages: []provider.Message{{Role: "user", Content: message}},
	})
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("completion call for %s failed: %w", model, err)
	}
	metrics.CompletionLatency.Observe(elapsed.Seconds())

	reply := resp.Content()
	if entry.ArtifactProne && reply != "" {
		reply = d.cleanReply(reply)
	}

	return &Result{
		Reply:       reply,
		Model:       model,
		Elapsed:     elapsed,
		Performance: snapshot(entry, elapsed),
	}, nil
}

// cleanReply runs the sanitizer and, when artifacts survive the first pass,
// the answer-marker recovery pass. Residual artifacts are reported but never
// block the response.
func (d *Dispatcher) cleanReply(raw string) string {
	reply := d.cleaner.Clean(raw)
	if reply != raw {
		d.logger.Info("response cleaned", "raw_length", len(raw), "cleaned_length", len(reply))
		metrics.SanitizerOutcomes.WithLabelValues("cleaned").Inc()
	}

	if !d.cleaner.HasArtifacts(reply) {
		return reply
	}

	if recovered, ok := d.cleaner.RecoverAnswer(reply); ok {
		d.logger.Info("fallback cleaning applied", "recovered_length", len(recovered))
		metrics.SanitizerOutcomes.WithLabelValues("recovered").Inc()
		reply = recovered
	}

	if d.cleaner.HasArtifacts(reply) {
		d.logger.Warn("artifacts still present after cleaning", "length", len(reply))
		metrics.SanitizerOutcomes.WithLabelValues("residual").Inc()
	}
	return reply
}

// snapshot builds the performance block. Static fields fall back to "N/A"
// when the entry is empty, so a measured latency is always reported.
func snapshot(entry catalog.Entry, elapsed time.Duration) Performance {
	if elapsed < 0 {
		elapsed = 0
	}
	return Performance{
		Throughput:             orNA(entry.Throughput),
		TimeToFirstToken:       orNA(entry.TimeToFirstToken),
		TokensPerSecond:        orNA(entry.TokensPerSecond),
		Cost:                   orNA(entry.Cost),
		ActualTimeToFirstToken: fmt.Sprintf("%dms", elapsed.Milliseconds()),
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
