package calendar

import "testing"

func TestAcademicDates(t *testing.T) {
	// GIVEN a semester starting Monday 2025-09-01
	cal := NewAcademicCalendar(AcademicConfig{StartDate: "2025-09-01", Weeks: 16})

	info := cal.DayInfoFor(0, "Monday")
	if info.Date != "2025-09-01" || info.WeekIndex != 1 {
		t.Errorf("unexpected day 0: %+v", info)
	}
	info = cal.DayInfoFor(9, "Wednesday")
	if info.Date != "2025-09-10" || info.WeekIndex != 2 {
		t.Errorf("unexpected day 9: %+v", info)
	}
}

func TestHolidayAndMakeupResolution(t *testing.T) {
	cal := NewAcademicCalendar(AcademicConfig{
		StartDate:  "2025-09-01",
		Holidays:   []string{"2025-09-03"},
		MakeupDays: []string{"2025-09-06"},
	})

	// A listed holiday suppresses the school day.
	info := cal.DayInfoFor(2, "Wednesday")
	if !info.Holiday || info.SchoolDay {
		t.Errorf("expected holiday on 2025-09-03, got %+v", info)
	}

	// A makeup Saturday is a school day despite the weekday.
	info = cal.DayInfoFor(5, "Saturday")
	if info.Holiday || !info.SchoolDay {
		t.Errorf("expected makeup school day on 2025-09-06, got %+v", info)
	}

	// A plain Sunday is neither.
	info = cal.DayInfoFor(6, "Sunday")
	if info.Holiday || info.SchoolDay {
		t.Errorf("expected an ordinary Sunday, got %+v", info)
	}
}

func TestNoStartDateStillResolvesWeekdays(t *testing.T) {
	cal := NewAcademicCalendar(AcademicConfig{})

	info := cal.DayInfoFor(3, "Thursday")
	if info.Date != "" {
		t.Errorf("expected no date without a start date, got %q", info.Date)
	}
	if !info.SchoolDay {
		t.Error("expected Thursday to be a school day")
	}
}

func TestExamAndReviewWeeks(t *testing.T) {
	cal := NewAcademicCalendar(AcademicConfig{ExamWeeks: []int{8, 16}, ReviewWeeks: []int{7}})

	if !cal.IsExamWeek(8) || cal.IsExamWeek(9) {
		t.Error("unexpected exam week resolution")
	}
	if !cal.IsReviewWeek(7) {
		t.Error("expected week 7 to be a review week")
	}
}
