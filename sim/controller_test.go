package sim

import "testing"

func TestControllerSchedulesCumulativePhases(t *testing.T) {
	// GIVEN a session registered at tick 5 with 1/2/3 phase lengths
	c := NewClassController(ClassControllerConfig{LectureTicks: 1, QuestionTicks: 2, GroupTicks: 3})
	c.Register(5, map[string]any{"group": "class-a"})

	// THEN phases fire at cumulative offsets
	expect := map[int]string{
		5:  EventPhaseLecture,
		6:  EventPhaseQuestions,
		8:  EventGroupDiscussion,
		11: EventPhaseSummary,
	}
	for tick := 0; tick <= 12; tick++ {
		due := c.DueEvents(tick)
		want, scheduled := expect[tick]
		if !scheduled {
			if len(due) != 0 {
				t.Errorf("tick %d: expected nothing, got %d events", tick, len(due))
			}
			continue
		}
		if len(due) != 1 || due[0].EventType != want {
			t.Errorf("tick %d: expected %s, got %+v", tick, want, due)
		}
	}
	if c.PendingCount() != 0 {
		t.Errorf("expected no pending phases, got %d", c.PendingCount())
	}
}

func TestControllerPhasesShareSessionID(t *testing.T) {
	// GIVEN one registered session
	c := NewClassController(ClassControllerConfig{})
	c.Register(1, map[string]any{"topic": "fractions"})

	// WHEN collecting all phases
	var sessionIDs []string
	for tick := 1; tick <= 10; tick++ {
		for _, event := range c.DueEvents(tick) {
			sessionIDs = append(sessionIDs, payloadString(event.Payload, "session_id", ""))
			if payloadString(event.Payload, "topic", "") != "fractions" {
				t.Errorf("expected session payload carried into %s", event.EventType)
			}
		}
	}

	// THEN all four phases carry the same non-empty id
	if len(sessionIDs) != 4 {
		t.Fatalf("expected 4 phases, got %d", len(sessionIDs))
	}
	for _, id := range sessionIDs[1:] {
		if id == "" || id != sessionIDs[0] {
			t.Errorf("expected shared session id, got %v", sessionIDs)
		}
	}
}

func TestControllerKeepsSessionsIndependent(t *testing.T) {
	// GIVEN two overlapping sessions
	c := NewClassController(ClassControllerConfig{LectureTicks: 1, QuestionTicks: 1, GroupTicks: 1})
	c.Register(1, map[string]any{"group": "class-a"})
	c.Register(2, map[string]any{"group": "class-b"})

	// WHEN both fire at tick 2 (questions for a, lecture for b)
	due := c.DueEvents(2)
	if len(due) != 2 {
		t.Fatalf("expected 2 events at tick 2, got %d", len(due))
	}

	// THEN they carry distinct session ids
	idA := payloadString(due[0].Payload, "session_id", "")
	idB := payloadString(due[1].Payload, "session_id", "")
	if idA == idB {
		t.Error("expected distinct session ids for distinct registrations")
	}
}
