package calendar

import (
	"math/rand"
	"testing"

	"github.com/chuanyeli/simclass/sim/curriculum"
)

func generatorFixture(rules []SemesterRule, patterns []WeekPattern) *Generator {
	clock := NewClock(ClockConfig{StartDay: "Monday", StartTime: "08:00", MinutesPerTick: 5, DayMinutes: 1440})
	timetable := NewTimetable([]TimetableEntry{
		{Weekday: "Monday", StartTime: "08:00", CourseID: "math", Course: "Mathematics",
			TeacherID: "t1", Group: "class-a", Topic: ""},
	}, clock)
	routine := NewDailyRoutine(RoutineConfig{Enabled: true}, clock)
	academic := NewAcademicCalendar(AcademicConfig{
		StartDate: "2025-09-01",
		Holidays:  []string{"2025-09-02"},
	})
	tracker := curriculum.NewTracker(curriculum.Config{
		Courses: []curriculum.Course{{
			ID:   "math",
			Name: "Mathematics",
			Units: []curriculum.Unit{{
				ID:   "u1",
				Name: "Algebra",
				Lessons: []curriculum.Lesson{
					{ID: "l1", Title: "Linear equations", Concepts: []curriculum.Concept{{Name: "linear_equations"}}},
					{ID: "l2", Title: "Inequalities", Concepts: []curriculum.Concept{{Name: "inequalities"}}},
				},
			}},
		}},
	})
	var semester *SemesterEvents
	if rules != nil {
		semester = NewSemesterEvents(rules)
	}
	return NewGenerator(clock, timetable, routine, academic, semester, nil, patterns,
		tracker, rand.New(rand.NewSource(1)))
}

func findEvent(events []Event, eventType string) (Event, bool) {
	for _, event := range events {
		if event.Type == eventType {
			return event, true
		}
	}
	return Event{}, false
}

func TestGeneratorEmitsEnrichedClassSession(t *testing.T) {
	// GIVEN a Monday 08:00 math slot (tick 1)
	g := generatorFixture(nil, nil)

	events := g.EventsForTick(1)
	session, ok := findEvent(events, EventClassSession)
	if !ok {
		t.Fatalf("expected a class_session at tick 1, got %+v", events)
	}

	// THEN the payload carries timetable and lesson plan fields
	if session.Payload["teacher_id"] != "t1" || session.Payload["group"] != "class-a" {
		t.Errorf("missing timetable fields: %+v", session.Payload)
	}
	if session.Payload["lesson_title"] != "Linear equations" || session.Payload["unit_id"] != "u1" {
		t.Errorf("missing lesson enrichment: %+v", session.Payload)
	}
	if session.Payload["topic"] != "Linear equations" {
		t.Errorf("expected empty topic backfilled from the lesson, got %v", session.Payload["topic"])
	}
	if session.Payload["date"] != "2025-09-01" {
		t.Errorf("expected academic date, got %v", session.Payload["date"])
	}
}

func TestGeneratorAdvancesCurriculumCursor(t *testing.T) {
	// GIVEN two Mondays a week apart (tick 1 and tick 1 + 7 days)
	g := generatorFixture(nil, nil)
	ticksPerDay := 1440 / 5

	first, _ := findEvent(g.EventsForTick(1), EventClassSession)
	second, _ := findEvent(g.EventsForTick(1+7*ticksPerDay), EventClassSession)

	if first.Payload["lesson_id"] != "l1" || second.Payload["lesson_id"] != "l2" {
		t.Errorf("expected cursor to advance l1 -> l2, got %v then %v",
			first.Payload["lesson_id"], second.Payload["lesson_id"])
	}
}

func hasHolidayNotice(events []Event) bool {
	for _, event := range events {
		if event.Type == EventAnnouncement && event.Payload["holiday"] == true {
			return true
		}
	}
	return false
}

func TestGeneratorHolidayAnnouncedOnce(t *testing.T) {
	// GIVEN Tuesday 2025-09-02 is a holiday (day index 1)
	g := generatorFixture(nil, nil)
	ticksPerDay := 1440 / 5

	firstTick := 1 + ticksPerDay // Tuesday 08:00
	events := g.EventsForTick(firstTick)
	if !hasHolidayNotice(events) {
		t.Fatalf("expected a holiday announcement, got %+v", events)
	}
	if _, ok := findEvent(events, EventClassSession); ok {
		t.Error("expected no classes on a holiday")
	}

	// AND the daily routine still runs on the holiday
	morning := false
	for _, event := range events {
		if event.Payload["action"] == ActionMorningClasses {
			morning = true
		}
	}
	if !morning {
		t.Errorf("expected the morning routine despite the holiday, got %+v", events)
	}

	// AND later ticks on the same day repeat no holiday notice
	if later := g.EventsForTick(firstTick + 1); hasHolidayNotice(later) {
		t.Errorf("expected the holiday announced once, got %+v", later)
	}
}

func TestGeneratorRoutineAndTestEvents(t *testing.T) {
	// GIVEN ticks landing on the morning break (08:40) and test start (11:00)
	g := generatorFixture(nil, nil)
	breakTick := 1 + 40/5
	testTick := 1 + (3*60)/5

	review, ok := findEvent(g.EventsForTick(breakTick), EventReview)
	if !ok {
		t.Fatal("expected a review event at the first break")
	}
	if review.Payload["intensity"] != 0.04 {
		t.Errorf("expected break intensity 0.04, got %v", review.Payload["intensity"])
	}

	events := g.EventsForTick(testTick)
	if _, ok := findEvent(events, EventDailyTest); !ok {
		t.Errorf("expected a daily_test at 11:00, got %+v", events)
	}
}

func TestGeneratorWeekTypeFallbacks(t *testing.T) {
	// DSL takes priority, then academic exam weeks, then A/B alternation.
	g := generatorFixture([]SemesterRule{
		{When: RuleWhen{Week: intPtr(2)}, SetWeekType: &SetWeekType{Name: "project", Mode: "group"}},
	}, nil)

	if name, mode := g.WeekTypeFor(2); name != "project" || mode != "group" {
		t.Errorf("expected DSL week type, got %s/%s", name, mode)
	}
	if name, _ := g.WeekTypeFor(1); name != "A" {
		t.Errorf("expected odd weeks to default to A, got %s", name)
	}
	if name, _ := g.WeekTypeFor(4); name != "B" {
		t.Errorf("expected even weeks to default to B, got %s", name)
	}
}

func TestGeneratorLegacyWeekPatterns(t *testing.T) {
	// GIVEN a pattern pinned to Monday 08:00 on A weeks
	g := generatorFixture(nil, []WeekPattern{
		{WeekType: "A", Weekday: "Monday", Time: "08:00", Event: map[string]any{"content": "flag ceremony"}},
	})

	events := g.EventsForTick(1) // week 1 is an A week
	found := false
	for _, event := range events {
		if event.Payload["content"] == "flag ceremony" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected the week pattern to fire, got %+v", events)
	}
}

func TestGeneratorSemesterRulesReplaceWeekPatterns(t *testing.T) {
	// GIVEN an emit rule and a legacy pattern pinned to the same moment
	g := generatorFixture([]SemesterRule{
		{ID: "assembly", When: RuleWhen{Weekday: "Monday", Time: "08:00"},
			Emit: map[string]any{"content": "school assembly"}},
	}, []WeekPattern{
		{Weekday: "Monday", Time: "08:00", Event: map[string]any{"content": "flag ceremony"}},
	})

	events := g.EventsForTick(1)
	var assembly, flag bool
	for _, event := range events {
		switch event.Payload["content"] {
		case "school assembly":
			assembly = true
		case "flag ceremony":
			flag = true
		}
	}
	if !assembly {
		t.Errorf("expected the semester rule to fire, got %+v", events)
	}
	if flag {
		t.Error("expected legacy patterns suppressed once rules are configured")
	}
}
