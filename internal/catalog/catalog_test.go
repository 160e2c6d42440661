package catalog

import "testing"

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, "x"); err == nil {
		t.Error("Expected error for empty catalog")
	}
	if _, err := New([]Entry{{ID: "a"}}, "b"); err == nil {
		t.Error("Expected error for unknown default")
	}
	if _, err := New([]Entry{{ID: "a"}, {ID: "a"}}, "a"); err == nil {
		t.Error("Expected error for duplicate entry")
	}
}

func TestLookup(t *testing.T) {
	c, err := New([]Entry{{ID: "a", Throughput: "High"}, {ID: "b"}}, "a")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	e, ok := c.Lookup("a")
	if !ok || e.Throughput != "High" {
		t.Errorf("Lookup(a) = %+v, %v", e, ok)
	}
	if _, ok := c.Lookup("missing"); ok {
		t.Error("Expected miss for unknown id")
	}
	if c.Default().ID != "a" {
		t.Errorf("Default = %s, want a", c.Default().ID)
	}
}

func TestReference(t *testing.T) {
	c := Reference()
	if len(c.Entries()) != 3 {
		t.Fatalf("Expected 3 reference entries, got %d", len(c.Entries()))
	}
	if c.Default().ID != "openai/gpt-5-mini" {
		t.Errorf("Expected gpt-5-mini default, got %s", c.Default().ID)
	}
	prone := 0
	for _, e := range c.Entries() {
		if e.ArtifactProne {
			prone++
		}
	}
	if prone != 1 {
		t.Errorf("Expected exactly one artifact-prone entry, got %d", prone)
	}
}
