package calendar

import "time"

const dateLayout = "2006-01-02"

// AcademicConfig anchors the simulation to real semester dates.
// Holidays suppress the school day; makeup days override holidays and
// weekends both (a Saturday makeup day is a school day).
type AcademicConfig struct {
	StartDate   string   `yaml:"start_date"`
	Weeks       int      `yaml:"weeks"`
	Holidays    []string `yaml:"holidays"`
	MakeupDays  []string `yaml:"makeup_days"`
	SchoolDays  []string `yaml:"school_days"`
	ExamWeeks   []int    `yaml:"exam_weeks"`
	ReviewWeeks []int    `yaml:"review_weeks"`
}

// DayInfo describes one simulated day on the academic calendar.
type DayInfo struct {
	Date      string
	WeekIndex int
	Weekday   string
	Holiday   bool
	SchoolDay bool
}

// AcademicCalendar maps day indexes to semester dates and school-day
// status.
type AcademicCalendar struct {
	start       time.Time
	hasStart    bool
	weeks       int
	holidays    map[string]bool
	makeup      map[string]bool
	schoolDays  map[string]bool
	examWeeks   map[int]bool
	reviewWeeks map[int]bool
}

// NewAcademicCalendar parses the config. An unparseable or missing
// start date disables date resolution; school-day logic still works
// from weekdays alone.
func NewAcademicCalendar(config AcademicConfig) *AcademicCalendar {
	c := &AcademicCalendar{
		weeks:       config.Weeks,
		holidays:    stringSet(config.Holidays),
		makeup:      stringSet(config.MakeupDays),
		schoolDays:  make(map[string]bool),
		examWeeks:   intSet(config.ExamWeeks),
		reviewWeeks: intSet(config.ReviewWeeks),
	}
	if c.weeks <= 0 {
		c.weeks = 16
	}
	days := config.SchoolDays
	if len(days) == 0 {
		days = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}
	}
	for _, weekday := range days {
		c.schoolDays[Weekdays[weekdayIndex(weekday)]] = true
	}
	if config.StartDate != "" {
		if parsed, err := time.Parse(dateLayout, config.StartDate); err == nil {
			c.start = parsed
			c.hasStart = true
		}
	}
	return c
}

// Weeks returns the semester length in weeks.
func (c *AcademicCalendar) Weeks() int { return c.weeks }

// IsExamWeek reports whether a 1-based week index is an exam week.
func (c *AcademicCalendar) IsExamWeek(week int) bool { return c.examWeeks[week] }

// IsReviewWeek reports whether a 1-based week index is a review week.
func (c *AcademicCalendar) IsReviewWeek(week int) bool { return c.reviewWeeks[week] }

// DayInfoFor resolves one day index (0-based from the semester start).
func (c *AcademicCalendar) DayInfoFor(dayIndex int, weekday string) DayInfo {
	info := DayInfo{
		WeekIndex: dayIndex/7 + 1,
		Weekday:   weekday,
	}
	if c.hasStart {
		info.Date = c.start.AddDate(0, 0, dayIndex).Format(dateLayout)
	}
	makeup := info.Date != "" && c.makeup[info.Date]
	info.Holiday = info.Date != "" && c.holidays[info.Date] && !makeup
	switch {
	case makeup:
		info.SchoolDay = true
	case info.Holiday:
		info.SchoolDay = false
	default:
		info.SchoolDay = c.schoolDays[weekday]
	}
	return info
}

func stringSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

func intSet(items []int) map[int]bool {
	set := make(map[int]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
