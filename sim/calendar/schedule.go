package calendar

import (
	"math/rand"
	"strings"

	"github.com/chuanyeli/simclass/sim/curriculum"
)

// Schedule event types the generator can produce.
const (
	EventClassSession = "class_session"
	EventAnnouncement = "announcement"
	EventReview       = "review"
	EventDailyTest    = "daily_test"
)

// Review intensities: how much a single review action moves mastery.
const (
	reviewBreakIntensity = 0.04
	reviewHomeIntensity  = 0.06
)

// WeekPattern is the legacy (pre-DSL) way to attach extra events to an
// exact weekday and clock time, optionally gated on a week type.
type WeekPattern struct {
	WeekType string         `yaml:"week_type"`
	Weekday  string         `yaml:"weekday"`
	Time     string         `yaml:"time"`
	Event    map[string]any `yaml:"event"`
}

// Generator composes clock, timetable, routine, academic calendar,
// semester DSL, and curriculum into the per-tick event stream. It is
// stateful: the curriculum cursor advances as classes fire and holiday
// announcements are made once per day.
type Generator struct {
	clock        *Clock
	timetable    *Timetable
	routine      *DailyRoutine
	academic     *AcademicCalendar
	semester     *SemesterEvents
	weekPlan     []string
	weekPatterns []WeekPattern
	tracker      *curriculum.Tracker
	rng          *rand.Rand

	announcedHoliday map[int]bool
}

// NewGenerator wires the generator. semester, tracker, and rng may be
// nil; weekPlan and weekPatterns may be empty.
func NewGenerator(clock *Clock, timetable *Timetable, routine *DailyRoutine, academic *AcademicCalendar,
	semester *SemesterEvents, weekPlan []string, weekPatterns []WeekPattern,
	tracker *curriculum.Tracker, rng *rand.Rand) *Generator {
	return &Generator{
		clock:            clock,
		timetable:        timetable,
		routine:          routine,
		academic:         academic,
		semester:         semester,
		weekPlan:         weekPlan,
		weekPatterns:     weekPatterns,
		tracker:          tracker,
		rng:              rng,
		announcedHoliday: make(map[int]bool),
	}
}

// Clock exposes the generator's clock for status reporting.
func (g *Generator) Clock() *Clock { return g.clock }

// TimeForTick delegates to the clock.
func (g *Generator) TimeForTick(tick int) TimeInfo {
	return g.clock.TimeForTick(tick)
}

// DayInfoForTick resolves the academic day a tick falls on.
func (g *Generator) DayInfoForTick(tick int) DayInfo {
	info := g.clock.TimeForTick(tick)
	return g.academic.DayInfoFor(info.DayIndex, info.Weekday)
}

// WeekTypeFor resolves a week's type and mode. The semester DSL has
// priority; without a matching rule the academic exam/review weeks
// apply, then the week plan cycle, then plain A/B alternation.
func (g *Generator) WeekTypeFor(week int) (string, string) {
	if g.semester != nil {
		if info, ok := g.semester.WeekInfoFor(week); ok {
			return info.Name, info.Mode
		}
	}
	if g.academic.IsExamWeek(week) {
		return "exam", ""
	}
	if g.academic.IsReviewWeek(week) {
		return "review", ""
	}
	if len(g.weekPlan) > 0 {
		return g.weekPlan[(week-1)%len(g.weekPlan)], ""
	}
	if week%2 == 1 {
		return "A", ""
	}
	return "B", ""
}

// EventsForTick produces every scheduled event landing on this tick.
func (g *Generator) EventsForTick(tick int) []Event {
	timeInfo := g.clock.TimeForTick(tick)
	dayInfo := g.academic.DayInfoFor(timeInfo.DayIndex, timeInfo.Weekday)
	weekType, weekMode := g.WeekTypeFor(dayInfo.WeekIndex)

	var events []Event
	if dayInfo.Holiday && !g.announcedHoliday[timeInfo.DayIndex] {
		g.announcedHoliday[timeInfo.DayIndex] = true
		events = append(events, Event{Type: EventAnnouncement, Payload: map[string]any{
			"type":    EventAnnouncement,
			"content": "No classes today, enjoy the holiday",
			"holiday": true,
			"date":    dayInfo.Date,
		}})
	}

	if g.routine != nil {
		for _, action := range g.routine.ActionsAt(timeInfo.Weekday, timeInfo.SimMinute) {
			events = append(events, g.routineEvent(action))
		}
		if g.routine.IsTestStart(timeInfo.Weekday, timeInfo.SimMinute) {
			events = append(events, Event{Type: EventDailyTest, Payload: map[string]any{
				"type":    EventDailyTest,
				"weekday": timeInfo.Weekday,
				"date":    dayInfo.Date,
			}})
		}
	}

	if dayInfo.SchoolDay && g.timetable != nil {
		for _, entry := range g.timetable.EntriesAt(timeInfo.Weekday, timeInfo.SimMinute) {
			events = append(events, g.classSession(entry, timeInfo, dayInfo, weekType, weekMode))
		}
	}

	moment := Moment{
		Week:      dayInfo.WeekIndex,
		Weekday:   timeInfo.Weekday,
		ClockTime: timeInfo.ClockTime,
		Date:      dayInfo.Date,
		WeekType:  weekType,
		WeekMode:  weekMode,
	}
	// The DSL owns extra events once any rule is configured; the week
	// patterns are the legacy fallback.
	if g.semester.HasRules() {
		events = append(events, g.semester.EventsForTime(moment)...)
		return events
	}
	for _, pattern := range g.weekPatterns {
		if pattern.Weekday != moment.Weekday || pattern.Time != moment.ClockTime {
			continue
		}
		if pattern.WeekType != "" && pattern.WeekType != weekType {
			continue
		}
		payload := make(map[string]any, len(pattern.Event)+1)
		for k, v := range pattern.Event {
			payload[k] = v
		}
		eventType := EventAnnouncement
		if t, ok := payload["type"].(string); ok && t != "" {
			eventType = t
		}
		payload["type"] = eventType
		events = append(events, Event{Type: eventType, Payload: payload})
	}
	return events
}

// routineEvent maps one routine action to its event: review actions
// become review events carrying their intensity, everything else an
// announcement carrying the action name.
func (g *Generator) routineEvent(action string) Event {
	switch action {
	case ActionReviewBreak:
		return Event{Type: EventReview, Payload: map[string]any{
			"type":      EventReview,
			"action":    action,
			"intensity": reviewBreakIntensity,
		}}
	case ActionReviewHome:
		return Event{Type: EventReview, Payload: map[string]any{
			"type":      EventReview,
			"action":    action,
			"intensity": reviewHomeIntensity,
		}}
	default:
		return Event{Type: EventAnnouncement, Payload: map[string]any{
			"type":    EventAnnouncement,
			"action":  action,
			"content": strings.ReplaceAll(action, "_", " "),
		}}
	}
}

// classSession builds the class_session payload, enriched with the next
// lesson plan when the curriculum knows the course.
func (g *Generator) classSession(entry TimetableEntry, timeInfo TimeInfo, dayInfo DayInfo, weekType, weekMode string) Event {
	payload := map[string]any{
		"type":        EventClassSession,
		"teacher_id":  entry.TeacherID,
		"group":       entry.Group,
		"topic":       entry.Topic,
		"course_id":   entry.CourseID,
		"course_name": entry.Course,
		"week_type":   weekType,
		"mode":        weekMode,
		"weekday":     timeInfo.Weekday,
		"clock_time":  timeInfo.ClockTime,
		"date":        dayInfo.Date,
	}
	if g.tracker != nil && entry.CourseID != "" && g.tracker.HasCourse(entry.CourseID) {
		if plan, ok := g.tracker.NextPlan(entry.CourseID); ok {
			payload["unit_id"] = plan.UnitID
			payload["lesson_id"] = plan.LessonID
			payload["lesson_title"] = plan.LessonTitle
			payload["concepts"] = plan.Concepts
			payload["lesson_plan"] = plan.Summary()
			if payload["topic"] == "" {
				payload["topic"] = plan.LessonTitle
			}
		}
	}
	return Event{Type: EventClassSession, Payload: payload}
}
