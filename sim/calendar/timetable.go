package calendar

// TimetableEntry is one recurring class slot on the weekly grid.
type TimetableEntry struct {
	Weekday   string `yaml:"weekday"`
	StartTime string `yaml:"start_time"`
	CourseID  string `yaml:"course_id"`
	Course    string `yaml:"course"`
	TeacherID string `yaml:"teacher_id"`
	Group     string `yaml:"group"`
	Topic     string `yaml:"topic"`
}

type timetableKey struct {
	weekday   string
	simMinute int
}

// Timetable indexes class slots by (weekday, start sim-minute) so the
// generator can answer "which classes start right now" in one lookup.
type Timetable struct {
	slots map[timetableKey][]TimetableEntry
}

// NewTimetable indexes entries using the clock's compressed minutes.
// Entries with an unparseable start time land on minute 0.
func NewTimetable(entries []TimetableEntry, clock *Clock) *Timetable {
	t := &Timetable{slots: make(map[timetableKey][]TimetableEntry)}
	for _, entry := range entries {
		key := timetableKey{
			weekday:   Weekdays[weekdayIndex(entry.Weekday)],
			simMinute: clock.ToSimMinutes(entry.StartTime),
		}
		t.slots[key] = append(t.slots[key], entry)
	}
	return t
}

// EntriesAt returns the class slots starting at this weekday and sim
// minute, in declaration order.
func (t *Timetable) EntriesAt(weekday string, simMinute int) []TimetableEntry {
	return t.slots[timetableKey{weekday: weekday, simMinute: simMinute}]
}
