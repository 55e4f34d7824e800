// Package curriculum holds the teaching material: courses broken into
// units and lessons, a per-course progress cursor, and a question bank
// keyed by concept. The schedule generator asks it for the next lesson
// plan whenever a timetable slot fires.
package curriculum

import (
	"fmt"
	"math/rand"
	"strings"
)

// Concept is one teachable idea inside a lesson.
type Concept struct {
	Name      string   `yaml:"name"`
	Examples  []string `yaml:"examples"`
	Exercises []string `yaml:"exercises"`
}

// Lesson is one timetable slot's worth of material.
type Lesson struct {
	ID       string    `yaml:"id"`
	Title    string    `yaml:"title"`
	Concepts []Concept `yaml:"concepts"`
}

// Unit groups consecutive lessons.
type Unit struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Lessons []Lesson `yaml:"lessons"`
}

// Course is one subject's full semester material.
type Course struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Units []Unit `yaml:"units"`
}

// Config is the scenario curriculum section.
type Config struct {
	Courses      []Course            `yaml:"courses"`
	QuestionBank map[string][]string `yaml:"question_bank"`
}

// LessonPlan is the resolved material for one class session.
type LessonPlan struct {
	CourseID        string
	CourseName      string
	UnitID          string
	UnitName        string
	LessonID        string
	LessonTitle     string
	Concepts        []string
	DurationMinutes int
	Activity        string
}

// Summary renders a one-line description of the plan for lecture
// content.
func (p LessonPlan) Summary() string {
	return fmt.Sprintf("%s / %s: %s", p.UnitName, p.LessonTitle, strings.Join(p.Concepts, ", "))
}

// flatLesson pairs a lesson with its unit for cursor arithmetic.
type flatLesson struct {
	unit   Unit
	lesson Lesson
}

// Tracker owns the courses and one progress cursor per course. The
// cursor clamps at the last lesson rather than wrapping, so a finished
// course keeps re-teaching its final material.
type Tracker struct {
	courses   map[string]Course
	flattened map[string][]flatLesson
	cursor    map[string]int
	bank      map[string][]string
	byConcept map[string]string
}

// NewTracker indexes the config. Lessons are ordered unit by unit in
// declaration order.
func NewTracker(config Config) *Tracker {
	t := &Tracker{
		courses:   make(map[string]Course),
		flattened: make(map[string][]flatLesson),
		cursor:    make(map[string]int),
		bank:      config.QuestionBank,
		byConcept: make(map[string]string),
	}
	for _, course := range config.Courses {
		t.courses[course.ID] = course
		for _, unit := range course.Units {
			for _, lesson := range unit.Lessons {
				t.flattened[course.ID] = append(t.flattened[course.ID], flatLesson{unit: unit, lesson: lesson})
				for _, concept := range lesson.Concepts {
					if _, taken := t.byConcept[concept.Name]; !taken {
						t.byConcept[concept.Name] = course.ID
					}
				}
			}
		}
	}
	return t
}

// HasCourse reports whether a course id is known.
func (t *Tracker) HasCourse(courseID string) bool {
	_, ok := t.courses[courseID]
	return ok
}

// CurrentPlan returns the lesson plan at the course's cursor.
func (t *Tracker) CurrentPlan(courseID string) (LessonPlan, bool) {
	lessons := t.flattened[courseID]
	if len(lessons) == 0 {
		return LessonPlan{}, false
	}
	index := t.cursor[courseID]
	if index >= len(lessons) {
		index = len(lessons) - 1
	}
	entry := lessons[index]
	course := t.courses[courseID]
	plan := LessonPlan{
		CourseID:        course.ID,
		CourseName:      course.Name,
		UnitID:          entry.unit.ID,
		UnitName:        entry.unit.Name,
		LessonID:        entry.lesson.ID,
		LessonTitle:     entry.lesson.Title,
		DurationMinutes: 40,
		Activity:        "lecture",
	}
	for _, concept := range entry.lesson.Concepts {
		plan.Concepts = append(plan.Concepts, concept.Name)
	}
	return plan, true
}

// NextPlan returns the current plan and advances the cursor, clamping
// at the final lesson.
func (t *Tracker) NextPlan(courseID string) (LessonPlan, bool) {
	plan, ok := t.CurrentPlan(courseID)
	if !ok {
		return plan, false
	}
	if t.cursor[courseID] < len(t.flattened[courseID])-1 {
		t.cursor[courseID]++
	}
	return plan, true
}

// CurrentConcepts lists the concepts at the course's cursor.
func (t *Tracker) CurrentConcepts(courseID string) []string {
	plan, ok := t.CurrentPlan(courseID)
	if !ok {
		return nil
	}
	return plan.Concepts
}

// CourseForConcept maps a concept back to the course that teaches it.
func (t *Tracker) CourseForConcept(concept string) (string, bool) {
	courseID, ok := t.byConcept[concept]
	return courseID, ok
}

// QuestionFor picks a quiz question for a concept. With no bank entry,
// a generic prompt is synthesized so quizzes never come up empty.
func (t *Tracker) QuestionFor(concept string, rng *rand.Rand) string {
	questions := t.bank[concept]
	if len(questions) == 0 {
		return fmt.Sprintf("Explain the idea of %s in your own words", concept)
	}
	return questions[rng.Intn(len(questions))]
}
