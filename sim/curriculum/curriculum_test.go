package curriculum

import (
	"math/rand"
	"testing"
)

func trackerFixture() *Tracker {
	return NewTracker(Config{
		Courses: []Course{{
			ID:   "math",
			Name: "Mathematics",
			Units: []Unit{
				{ID: "u1", Name: "Algebra", Lessons: []Lesson{
					{ID: "l1", Title: "Linear equations", Concepts: []Concept{{Name: "linear_equations"}, {Name: "variables"}}},
					{ID: "l2", Title: "Inequalities", Concepts: []Concept{{Name: "inequalities"}}},
				}},
				{ID: "u2", Name: "Geometry", Lessons: []Lesson{
					{ID: "l3", Title: "Triangles", Concepts: []Concept{{Name: "triangles"}}},
				}},
			},
		}},
		QuestionBank: map[string][]string{
			"triangles": {"What is the angle sum of a triangle?"},
		},
	})
}

func TestCursorWalksUnitsInOrder(t *testing.T) {
	tracker := trackerFixture()

	// WHEN advancing through every lesson
	var ids []string
	for i := 0; i < 3; i++ {
		plan, ok := tracker.NextPlan("math")
		if !ok {
			t.Fatal("expected a plan")
		}
		ids = append(ids, plan.LessonID)
	}

	// THEN lessons come out unit by unit
	want := []string{"l1", "l2", "l3"}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("lesson %d: expected %s, got %s", i, want[i], ids[i])
		}
	}
}

func TestCursorClampsAtFinalLesson(t *testing.T) {
	tracker := trackerFixture()
	for i := 0; i < 5; i++ {
		tracker.NextPlan("math")
	}

	// THEN a finished course re-teaches its last lesson
	plan, ok := tracker.CurrentPlan("math")
	if !ok || plan.LessonID != "l3" {
		t.Errorf("expected cursor clamped at l3, got %+v", plan)
	}
}

func TestPlanCarriesUnitAndCourseNames(t *testing.T) {
	tracker := trackerFixture()

	plan, _ := tracker.CurrentPlan("math")
	if plan.CourseName != "Mathematics" || plan.UnitName != "Algebra" {
		t.Errorf("missing names: %+v", plan)
	}
	if plan.DurationMinutes != 40 || plan.Activity != "lecture" {
		t.Errorf("unexpected plan defaults: %+v", plan)
	}
	if plan.Summary() != "Algebra / Linear equations: linear_equations, variables" {
		t.Errorf("unexpected summary: %q", plan.Summary())
	}
}

func TestCourseForConcept(t *testing.T) {
	tracker := trackerFixture()

	if courseID, ok := tracker.CourseForConcept("triangles"); !ok || courseID != "math" {
		t.Errorf("expected triangles -> math, got %q ok=%v", courseID, ok)
	}
	if _, ok := tracker.CourseForConcept("philosophy"); ok {
		t.Error("expected unknown concept to resolve to nothing")
	}
}

func TestQuestionBankFallback(t *testing.T) {
	tracker := trackerFixture()
	rng := rand.New(rand.NewSource(1))

	if q := tracker.QuestionFor("triangles", rng); q != "What is the angle sum of a triangle?" {
		t.Errorf("expected bank question, got %q", q)
	}
	if q := tracker.QuestionFor("variables", rng); q != "Explain the idea of variables in your own words" {
		t.Errorf("expected synthesized question, got %q", q)
	}
}

func TestUnknownCourseHasNoPlan(t *testing.T) {
	tracker := trackerFixture()

	if _, ok := tracker.CurrentPlan("history"); ok {
		t.Error("expected no plan for an unknown course")
	}
	if tracker.HasCourse("history") {
		t.Error("expected history to be unknown")
	}
}
