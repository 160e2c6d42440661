package sanitize

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/relayhub/relay-gateway/internal/metrics"
)

const (
	// minViableLength is the shortest cleaned reply we trust. Anything
	// shorter is assumed to be an over-aggressive strip, not a legitimate
	// short answer, and cleaning is reverted.
	minViableLength = 10

	// minRecoveredLength is the bar for the answer-marker recovery pass.
	// Truncating at a marker is deliberate, so a shorter result is still
	// acceptable.
	minRecoveredLength = 5
)

// Pattern is one artifact removal rule: everything the expression matches is
// replaced, surrounding text is preserved.
type Pattern struct {
	Match   *regexp.Regexp
	Replace string
}

// DefaultPatterns is the empirically grown list of artifact tokens the
// reasoning model is known to leak into its raw replies. The list is
// configuration, not control flow: new failure modes get a new row here.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{Match: regexp.MustCompile(`(?i)\banalysis\b`)},
		{Match: regexp.MustCompile(`(?i)\bassistantfinal\b`)},
		{Match: regexp.MustCompile(`(?i)\bthe user (?:is asking|wants|wrote|said)\b[^.?!:]*[.?!:]?`)},
		{Match: regexp.MustCompile(`(?i)\bso the answer:`)},
		{Match: regexp.MustCompile(`(?i)\bso answer:`)},
		{Match: regexp.MustCompile(`(?i)\bjust answer:`)},
		{Match: regexp.MustCompile(`(?i)\bshort\.`)},
	}
}

// DefaultAnswerMarkers is the ordered list of phrases the recovery pass scans
// for. The first marker found wins; text before and including the marker is
// discarded.
func DefaultAnswerMarkers() []string {
	return []string{
		"final answer:",
		"the answer is",
		"answer:",
	}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// leadingRemnants are punctuation fragments a removal can leave at the start
// of the text. Trailing trims keep terminal sentence punctuation intact.
const (
	leadingRemnants  = " \t:;,.-"
	trailingRemnants = " \t:;,-"
)

// Cleaner strips known training artifacts from raw model replies. Cleaning is
// deterministic and total: the worst case is returning the input unchanged.
type Cleaner struct {
	patterns []Pattern
	markers  []string
	logger   *slog.Logger
}

// NewCleaner creates a cleaner with the given pattern table and answer
// markers. Nil slices select the defaults.
func NewCleaner(patterns []Pattern, markers []string, logger *slog.Logger) *Cleaner {
	if patterns == nil {
		patterns = DefaultPatterns()
	}
	if markers == nil {
		markers = DefaultAnswerMarkers()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{patterns: patterns, markers: markers, logger: logger}
}

// Clean removes artifact patterns, collapses whitespace and strips removal
// remnants. If the result drops below the minimum viable length the original
// input is returned instead.
func (c *Cleaner) Clean(raw string) string {
	if raw == "" {
		return raw
	}
	cleaned := c.strip(raw)
	if len(cleaned) < minViableLength {
		if cleaned != raw {
			c.logger.Info("cleaning reverted, result too short",
				"cleaned_length", len(cleaned),
				"original_length", len(raw))
			metrics.SanitizerOutcomes.WithLabelValues("reverted").Inc()
		}
		return raw
	}
	return cleaned
}

// HasArtifacts reports whether any artifact pattern still matches the text.
func (c *Cleaner) HasArtifacts(text string) bool {
	for _, p := range c.patterns {
		if p.Match.MatchString(text) {
			return true
		}
	}
	return false
}

// RecoverAnswer is the second-stage fallback: it scans for an answer marker,
// discards the preamble through the marker and re-applies artifact removal.
// It reports false when no marker is found or the recovered text is too short
// to be an answer.
func (c *Cleaner) RecoverAnswer(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, marker := range c.markers {
		idx := strings.Index(lower, marker)
		if idx < 0 {
			continue
		}
		candidate := c.strip(text[idx+len(marker):])
		if len(candidate) >= minRecoveredLength {
			c.logger.Info("answer recovered from marker", "marker", marker)
			return candidate, true
		}
	}
	return "", false
}

// strip applies the pattern table and normalizes the remains, without the
// minimum-length gate.
func (c *Cleaner) strip(text string) string {
	for _, p := range c.patterns {
		text = p.Match.ReplaceAllString(text, p.Replace)
	}
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	text = strings.TrimLeft(text, leadingRemnants)
	text = strings.TrimRight(text, trailingRemnants)
	return strings.TrimSpace(text)
}
