package sim

import "strings"

const defaultContextItems = 12

type contextItem struct {
	direction string // "inbound" or "outbound"
	content   string
}

// ContextManager keeps a bounded rolling window of an agent's recent
// conversation, compressing overflow into a running summary instead of
// discarding it.
type ContextManager struct {
	maxItems int
	summary  []string
	items    []contextItem
}

// NewContextManager creates a context window. maxItems <= 0 uses the
// default of 12.
func NewContextManager(maxItems int) *ContextManager {
	if maxItems <= 0 {
		maxItems = defaultContextItems
	}
	return &ContextManager{maxItems: maxItems}
}

// Seed installs a summary line built from persisted memory, so a
// restarted agent resumes with some of its history.
func (c *ContextManager) Seed(contents []string) {
	if len(contents) == 0 {
		return
	}
	c.summary = append(c.summary, strings.Join(contents, " | "))
}

// Record appends one exchange. When the window overflows, the head and
// tail of the window are folded into the summary and the window is
// halved.
func (c *ContextManager) Record(direction, content string) {
	c.items = append(c.items, contextItem{direction: direction, content: content})
	if len(c.items) <= c.maxItems {
		return
	}
	var folded []string
	for _, item := range c.items[:3] {
		folded = append(folded, item.content)
	}
	for _, item := range c.items[len(c.items)-3:] {
		folded = append(folded, item.content)
	}
	c.summary = append(c.summary, strings.Join(folded, " | "))
	keep := c.maxItems / 2
	c.items = append([]contextItem(nil), c.items[len(c.items)-keep:]...)
}

// BuildContext renders the window as prompt lines: summary lines first,
// then each exchange prefixed with its direction.
func (c *ContextManager) BuildContext() []string {
	var lines []string
	for _, s := range c.summary {
		lines = append(lines, "summary: "+s)
	}
	for _, item := range c.items {
		lines = append(lines, item.direction+": "+item.content)
	}
	return lines
}

// Len reports the number of live (unsummarized) items.
func (c *ContextManager) Len() int {
	return len(c.items)
}
