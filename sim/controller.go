package sim

import (
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Class phase event types, emitted in order over a registered session.
const (
	EventPhaseLecture    = "phase_lecture"
	EventPhaseQuestions  = "phase_questions"
	EventGroupDiscussion = "group_discussion"
	EventPhaseSummary    = "phase_summary"
)

// ClassControllerConfig sets how many ticks each class phase lasts.
type ClassControllerConfig struct {
	LectureTicks  int `yaml:"lecture_ticks"`
	QuestionTicks int `yaml:"question_ticks"`
	GroupTicks    int `yaml:"group_ticks"`
}

func (c ClassControllerConfig) withDefaults() ClassControllerConfig {
	if c.LectureTicks <= 0 {
		c.LectureTicks = 2
	}
	if c.QuestionTicks <= 0 {
		c.QuestionTicks = 2
	}
	if c.GroupTicks <= 0 {
		c.GroupTicks = 2
	}
	return c
}

// ScheduledPhase is one pending phase event with its due tick.
type ScheduledPhase struct {
	Tick  int
	Event SystemEvent
}

// ClassController turns a registered class session into a timed sequence
// of phase events: lecture at the start tick, then questions, group
// discussion, and a summary at cumulative offsets. Only the orchestrator
// touches it, so it carries no lock.
type ClassController struct {
	config  ClassControllerConfig
	pending []ScheduledPhase
	logger  *logrus.Entry
}

// NewClassController creates a controller with the given phase lengths.
func NewClassController(config ClassControllerConfig) *ClassController {
	return &ClassController{
		config: config.withDefaults(),
		logger: logrus.WithField("component", "class_controller"),
	}
}

// Register schedules the phase sequence for one class session starting
// at startTick. The session payload is copied into every phase event,
// and all four events share one generated session id.
func (c *ClassController) Register(startTick int, sessionPayload map[string]any) {
	sessionID := uuid.New().String()
	offsets := []struct {
		event string
		tick  int
	}{
		{EventPhaseLecture, startTick},
		{EventPhaseQuestions, startTick + c.config.LectureTicks},
		{EventGroupDiscussion, startTick + c.config.LectureTicks + c.config.QuestionTicks},
		{EventPhaseSummary, startTick + c.config.LectureTicks + c.config.QuestionTicks + c.config.GroupTicks},
	}
	for _, phase := range offsets {
		payload := make(map[string]any, len(sessionPayload)+2)
		for k, v := range sessionPayload {
			payload[k] = v
		}
		payload["session_id"] = sessionID
		payload["phase"] = phase.event
		c.pending = append(c.pending, ScheduledPhase{
			Tick:  phase.tick,
			Event: SystemEvent{EventType: phase.event, Payload: payload},
		})
	}
	sort.SliceStable(c.pending, func(i, j int) bool { return c.pending[i].Tick < c.pending[j].Tick })
	c.logger.Debugf("registered class session %s at tick %d", sessionID, startTick)
}

// DueEvents pops every phase event due exactly at tick. Events scheduled
// for earlier ticks that were never collected stay pending; the
// orchestrator calls this once per tick so nothing is skipped in a
// normal run.
func (c *ClassController) DueEvents(tick int) []SystemEvent {
	var due []SystemEvent
	var remaining []ScheduledPhase
	for _, phase := range c.pending {
		if phase.Tick == tick {
			due = append(due, phase.Event)
		} else {
			remaining = append(remaining, phase)
		}
	}
	c.pending = remaining
	return due
}

// PendingCount reports how many phase events are still scheduled.
func (c *ClassController) PendingCount() int {
	return len(c.pending)
}
