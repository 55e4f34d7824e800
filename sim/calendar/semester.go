package calendar

import "fmt"

// Event is one schedule-produced occurrence the orchestrator turns into
// bus traffic. Type doubles as the payload "type" field.
type Event struct {
	Type    string
	Payload map[string]any
}

// RuleWhen is the condition block of one semester rule. All present
// fields must match; absent fields match anything.
type RuleWhen struct {
	Week      *int     `yaml:"week"`
	Weeks     []int    `yaml:"weeks"`
	WeekRange []int    `yaml:"week_range"`
	Weekday   string   `yaml:"weekday"`
	Weekdays  []string `yaml:"weekdays"`
	Time      string   `yaml:"time"`
	Date      string   `yaml:"date"`
	Dates     []string `yaml:"dates"`
	WeekType  string   `yaml:"week_type"`
	WeekMode  string   `yaml:"week_mode"`
}

// SetWeekType labels a week (exam, review, A/B, ...) when its rule
// matches.
type SetWeekType struct {
	Name  string `yaml:"name"`
	Label string `yaml:"label"`
	Mode  string `yaml:"mode"`
}

// SemesterRule is one DSL rule: a condition plus either a week-type
// assignment, an event emission, or both.
type SemesterRule struct {
	ID          string         `yaml:"id"`
	When        RuleWhen       `yaml:"when"`
	SetWeekType *SetWeekType   `yaml:"set_week_type"`
	Emit        map[string]any `yaml:"emit"`
}

// WeekInfo is the resolved labeling of one semester week.
type WeekInfo struct {
	Name  string
	Label string
	Mode  string
}

// Moment is the full time coordinate a rule is evaluated against.
type Moment struct {
	Week      int
	Weekday   string
	ClockTime string
	Date      string
	WeekType  string
	WeekMode  string
}

// SemesterEvents evaluates the semester rule DSL. Week typing follows
// last-match-wins so later rules can override broad earlier ones; event
// emission collects every matching rule.
type SemesterEvents struct {
	rules []SemesterRule
}

// NewSemesterEvents assigns default ids ("rule_1", ...) to unnamed
// rules and keeps declaration order.
func NewSemesterEvents(rules []SemesterRule) *SemesterEvents {
	out := make([]SemesterRule, len(rules))
	copy(out, rules)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = fmt.Sprintf("rule_%d", i+1)
		}
	}
	return &SemesterEvents{rules: out}
}

// HasRules reports whether any DSL rule is configured. Safe on a nil
// receiver.
func (s *SemesterEvents) HasRules() bool {
	return s != nil && len(s.rules) > 0
}

// WeekInfoFor resolves the type of a 1-based week. Every set_week_type
// rule whose week condition matches is applied in order, so the last
// matching rule wins.
func (s *SemesterEvents) WeekInfoFor(week int) (WeekInfo, bool) {
	var info WeekInfo
	found := false
	for _, rule := range s.rules {
		if rule.SetWeekType == nil || !matchesWeek(rule.When, week) {
			continue
		}
		info = WeekInfo{
			Name:  rule.SetWeekType.Name,
			Label: rule.SetWeekType.Label,
			Mode:  rule.SetWeekType.Mode,
		}
		found = true
	}
	return info, found
}

// EventsForTime collects every emit rule matching the moment. The event
// type defaults to "announcement"; the rule id rides along in the
// payload for traceability.
func (s *SemesterEvents) EventsForTime(moment Moment) []Event {
	var events []Event
	for _, rule := range s.rules {
		if rule.Emit == nil || !matchesMoment(rule.When, moment) {
			continue
		}
		payload := make(map[string]any, len(rule.Emit)+1)
		for k, v := range rule.Emit {
			payload[k] = v
		}
		eventType := "announcement"
		if t, ok := payload["type"].(string); ok && t != "" {
			eventType = t
		}
		payload["type"] = eventType
		payload["rule_id"] = rule.ID
		events = append(events, Event{Type: eventType, Payload: payload})
	}
	return events
}

func matchesWeek(when RuleWhen, week int) bool {
	if when.Week != nil && *when.Week != week {
		return false
	}
	if len(when.Weeks) > 0 {
		hit := false
		for _, w := range when.Weeks {
			if w == week {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	if len(when.WeekRange) == 2 {
		if week < when.WeekRange[0] || week > when.WeekRange[1] {
			return false
		}
	}
	return true
}

func matchesMoment(when RuleWhen, moment Moment) bool {
	if !matchesWeek(when, moment.Week) {
		return false
	}
	if when.Weekday != "" && when.Weekday != moment.Weekday {
		return false
	}
	if len(when.Weekdays) > 0 && !containsString(when.Weekdays, moment.Weekday) {
		return false
	}
	if when.Time != "" && when.Time != moment.ClockTime {
		return false
	}
	if when.Date != "" && when.Date != moment.Date {
		return false
	}
	if len(when.Dates) > 0 && !containsString(when.Dates, moment.Date) {
		return false
	}
	if when.WeekType != "" && when.WeekType != moment.WeekType {
		return false
	}
	if when.WeekMode != "" && when.WeekMode != moment.WeekMode {
		return false
	}
	return true
}

func containsString(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
