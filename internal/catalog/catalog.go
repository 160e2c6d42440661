package catalog

import "fmt"

// Entry describes one downstream model: its provider-qualified id, a short
// natural-language description used in the routing prompt, and the static
// performance figures surfaced to the UI.
type Entry struct {
	ID               string
	Description      string
	Throughput       string
	TimeToFirstToken string
	TokensPerSecond  string
	Cost             string
	ArtifactProne    bool
}

// Catalog is the read-only set of downstream models. It is built once at
// startup and never mutated, so concurrent readers need no locking.
type Catalog struct {
	entries   []Entry
	byID      map[string]Entry
	defaultID string
}

// New creates a catalog from the given entries. The default id must name one
// of the entries.
func New(entries []Entry, defaultID string) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog requires at least one entry")
	}
	byID := make(map[string]Entry, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("catalog entry with empty id")
		}
		if _, dup := byID[e.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog entry %s", e.ID)
		}
		byID[e.ID] = e
	}
	if _, ok := byID[defaultID]; !ok {
		return nil, fmt.Errorf("default model %s not in catalog", defaultID)
	}
	return &Catalog{entries: entries, byID: byID, defaultID: defaultID}, nil
}

// Default returns the entry used when routing cannot commit to a model.
func (c *Catalog) Default() Entry {
	return c.byID[c.defaultID]
}

// Lookup returns the entry for a model id.
func (c *Catalog) Lookup(id string) (Entry, bool) {
	e, ok := c.byID[id]
	return e, ok
}

// Entries returns the catalog entries in declaration order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Reference returns the stock three-model catalog used when no models are
// configured.
func Reference() *Catalog {
	c, err := New([]Entry{
		{
			ID:               "openai/gpt-5-mini",
			Description:      "Fast general-purpose model. Best for simple questions, chit-chat and short factual answers. Cheapest option.",
			Throughput:       "High",
			TimeToFirstToken: "~0.4s",
			TokensPerSecond:  "~180 tok/s",
			Cost:             "$0.25/M in, $2.00/M out",
		},
		{
			ID:               "qwen/qwen3-coder",
			Description:      "Specialized coding model. Best for writing, reviewing and debugging code. Mid-range cost.",
			Throughput:       "Medium",
			TimeToFirstToken: "~0.7s",
			TokensPerSecond:  "~90 tok/s",
			Cost:             "$0.90/M in, $3.50/M out",
		},
		{
			ID:               "deepseek/deepseek-r1",
			Description:      "Deep reasoning model. Best for multi-step analysis, math and planning. Slowest and most expensive; raw output may leak reasoning preamble.",
			Throughput:       "Low",
			TimeToFirstToken: "~2.5s",
			TokensPerSecond:  "~40 tok/s",
			Cost:             "$1.35/M in, $5.40/M out",
			ArtifactProne:    true,
		},
	}, "openai/gpt-5-mini")
	if err != nil {
		panic(err)
	}
	return c
}
