package sim

import (
	"strings"
	"testing"
)

func TestContextWindowFoldsOverflowIntoSummary(t *testing.T) {
	// GIVEN a small window of 4 items
	c := NewContextManager(4)
	for _, content := range []string{"a", "b", "c", "d", "e"} {
		c.Record("inbound", content)
	}

	// THEN the overflow folded head and tail into the summary and
	// halved the window
	if c.Len() != 2 {
		t.Fatalf("expected window halved to 2 items, got %d", c.Len())
	}
	lines := c.BuildContext()
	if !strings.HasPrefix(lines[0], "summary: ") {
		t.Fatalf("expected a summary line first, got %q", lines[0])
	}
	if !strings.Contains(lines[0], "a | b | c") {
		t.Errorf("expected the head folded into the summary, got %q", lines[0])
	}
	if lines[len(lines)-1] != "inbound: e" {
		t.Errorf("expected the newest item last, got %q", lines[len(lines)-1])
	}
}

func TestContextLinesCarryDirection(t *testing.T) {
	c := NewContextManager(0)
	c.Record("inbound", "question about fractions")
	c.Record("outbound", "my answer")

	lines := c.BuildContext()
	if lines[0] != "inbound: question about fractions" || lines[1] != "outbound: my answer" {
		t.Errorf("unexpected context lines: %v", lines)
	}
}

func TestContextSeedBecomesSummary(t *testing.T) {
	c := NewContextManager(0)
	c.Seed([]string{"old one", "old two"})

	lines := c.BuildContext()
	if len(lines) != 1 || lines[0] != "summary: old one | old two" {
		t.Errorf("unexpected seeded context: %v", lines)
	}
}
