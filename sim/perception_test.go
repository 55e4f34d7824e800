package sim

import (
	"strings"
	"testing"

	"github.com/chuanyeli/simclass/sim/world"
)

// scriptedRNG replays a fixed sequence of rolls.
type scriptedRNG struct {
	rolls []float64
	index int
}

func (s *scriptedRNG) Float64() float64 {
	if s.index >= len(s.rolls) {
		return 0
	}
	v := s.rolls[s.index]
	s.index++
	return v
}

func perceptionFixture(t *testing.T, cfg PerceptionConfig, rolls ...float64) (*PerceptionEngine, *world.Model) {
	t.Helper()
	directory := NewAgentDirectory([]AgentProfile{
		{AgentID: "s1", Role: RoleStudent, Group: "class-a"},
		{AgentID: "s2", Role: RoleStudent, Group: "class-a"},
		{AgentID: "t1", Role: RoleTeacher, Group: "class-a"},
	})
	model := world.NewModel(nil, world.NewLayout(world.LayoutConfig{Rows: 1, Cols: 3}), nil)
	model.AssignSeats([]string{"s1", "s2", "t1"}, "classroom")
	cfg.Enabled = true
	engine := NewPerceptionEngine(cfg, directory, model, &scriptedRNG{rolls: rolls}, nil)
	return engine, model
}

func TestBypassTopicPassesUnchanged(t *testing.T) {
	// GIVEN a bypass topic and a roll that would otherwise veto
	engine, _ := perceptionFixture(t, PerceptionConfig{
		BypassTopics: []string{"announcement"},
	}, 0.99)

	// WHEN the message is filtered
	msg := NewMessage("s1", "s2", "announcement", "school assembly")
	out, ok := engine.FilterMessage(msg, "s2")

	// THEN it passes untouched
	if !ok || out.Content != msg.Content || out.SenderID != "s1" {
		t.Fatalf("expected bypass to pass unchanged, got %+v ok=%v", out, ok)
	}
}

func TestLinearDecayAndVeto(t *testing.T) {
	// GIVEN hearing range 2 and seats one apart: prob = 1 - 1/2 = 0.5
	cfg := PerceptionConfig{HearingRange: 2}

	// WHEN the roll is below the probability
	engine, _ := perceptionFixture(t, cfg, 0.4)
	msg := NewMessage("s1", "s2", "chatter", "did you finish the homework")
	if _, ok := engine.FilterMessage(msg, "s2"); !ok {
		t.Error("expected roll 0.4 <= prob 0.5 to be perceived")
	}

	// AND a roll above it vetoes delivery
	engine, _ = perceptionFixture(t, cfg, 0.6)
	if _, ok := engine.FilterMessage(msg, "s2"); ok {
		t.Error("expected roll 0.6 > prob 0.5 to veto")
	}
}

func TestDegradedContentShapes(t *testing.T) {
	// GIVEN a low-probability delivery (distance 2, range 2.5 => 0.2)
	cfg := PerceptionConfig{HearingRange: 2.5, DegradeThreshold: 0.35}

	// WHEN content carries key=value parts
	engine, _ := perceptionFixture(t, cfg, 0.1)
	msg := NewMessage("s1", "t1", "chatter", "topic=algebra;rest=hidden details")
	out, ok := engine.FilterMessage(msg, "t1")
	if !ok {
		t.Fatal("expected delivery")
	}
	if out.Content != "topic=algebra;..." {
		t.Errorf("expected prefix degrade, got %q", out.Content)
	}

	// AND long plain content is truncated
	engine, _ = perceptionFixture(t, cfg, 0.1)
	long := strings.Repeat("x", 40)
	out, _ = engine.FilterMessage(NewMessage("s1", "t1", "chatter", long), "t1")
	if out.Content != long[:24]+"..." {
		t.Errorf("expected 24-char preview, got %q", out.Content)
	}

	// AND short plain content becomes unclear
	engine, _ = perceptionFixture(t, cfg, 0.1)
	out, _ = engine.FilterMessage(NewMessage("s1", "t1", "chatter", "psst"), "t1")
	if out.Content != "unclear" {
		t.Errorf("expected unclear, got %q", out.Content)
	}
}

func TestNoiseToTeacherIsMasked(t *testing.T) {
	// GIVEN noise configured as a masked suspicion topic
	cfg := PerceptionConfig{
		HearingRange:     4,
		SuspicionTopics:  []string{"noise"},
		MaskSenderTopics: []string{"noise"},
	}
	engine, _ := perceptionFixture(t, cfg, 0.1)

	// WHEN a student's noise reaches the teacher (distance 2, prob 0.5)
	msg := NewMessage("s1", "t1", "noise", "whispering in the back")
	out, ok := engine.FilterMessage(msg, "t1")
	if !ok {
		t.Fatal("expected delivery")
	}

	// THEN the sender is anonymized and the content carries the clue
	if out.SenderID != "unknown" {
		t.Errorf("expected masked sender, got %q", out.SenderID)
	}
	if out.Content != "suspect_row=0;suspicion=0.50;noise=detected" {
		t.Errorf("unexpected masked content: %q", out.Content)
	}
}

func TestNoiseToStudentKeepsSender(t *testing.T) {
	// GIVEN the same noise config
	cfg := PerceptionConfig{
		HearingRange:     4,
		SuspicionTopics:  []string{"noise"},
		MaskSenderTopics: []string{"noise"},
	}
	engine, _ := perceptionFixture(t, cfg, 0.1)

	// WHEN noise reaches a fellow student
	msg := NewMessage("s1", "s2", "noise", "whispering")
	out, ok := engine.FilterMessage(msg, "s2")
	if !ok {
		t.Fatal("expected delivery")
	}

	// THEN masking never applies; students hear who made the noise
	if out.SenderID != "s1" {
		t.Errorf("expected the true sender, got %q", out.SenderID)
	}
	if out.Content != "whispering" {
		t.Errorf("expected the content untouched, got %q", out.Content)
	}
}

func TestDisabledEngineIsTransparent(t *testing.T) {
	// GIVEN a disabled engine
	directory := NewAgentDirectory([]AgentProfile{{AgentID: "a"}, {AgentID: "b"}})
	engine := NewPerceptionEngine(PerceptionConfig{Enabled: false}, directory, nil, &scriptedRNG{}, nil)

	// THEN every message passes untouched
	msg := NewMessage("a", "b", "anything", "hello")
	out, ok := engine.FilterMessage(msg, "b")
	if !ok || out.Content != "hello" {
		t.Error("expected disabled engine to pass everything")
	}
}

func TestObserverOverhearsWithChance(t *testing.T) {
	// GIVEN an observing teacher two seats from the speakers
	cfg := PerceptionConfig{
		HearingRange: 6,
		Observer: ObserverConfig{
			Enabled: true,
			Chance:  0.4,
			Topics:  []string{"peer_comment"},
		},
	}
	// rolls: perception 0.5 <= prob 0.67, then chance 0.3 <= 0.4
	engine, _ := perceptionFixture(t, cfg, 0.5, 0.3)

	msg := NewMessage("s1", "s2", "peer_comment", "look at this")
	extras := engine.ObserverMessages(msg, "s2")
	if len(extras) != 1 {
		t.Fatalf("expected one overheard message, got %d", len(extras))
	}
	if extras[0].ReceiverID != "t1" {
		t.Errorf("expected teacher observer, got %s", extras[0].ReceiverID)
	}
	if extras[0].Topic != "overheard" {
		t.Errorf("expected default observer topic, got %s", extras[0].Topic)
	}
	if extras[0].Content != "from=s1;topic=peer_comment;content=look at this" {
		t.Errorf("unexpected overheard content: %q", extras[0].Content)
	}

	// AND a failed chance roll overhears nothing
	engine, _ = perceptionFixture(t, cfg, 0.5, 0.9)
	if extras := engine.ObserverMessages(msg, "s2"); len(extras) != 0 {
		t.Errorf("expected no overhearing on chance roll 0.9, got %d", len(extras))
	}
}

func TestObserverOutOfRangeNeverOverhears(t *testing.T) {
	// GIVEN a guaranteed chance but a hearing range shorter than the
	// observer's distance to the speaker
	cfg := PerceptionConfig{
		HearingRange: 0.5,
		Observer: ObserverConfig{
			Enabled: true,
			Chance:  1.0,
			Topics:  []string{"peer_comment"},
		},
	}
	engine, _ := perceptionFixture(t, cfg, 0.5, 0.0)

	// THEN the perception roll alone blocks the overhear
	msg := NewMessage("s1", "s2", "peer_comment", "look at this")
	if extras := engine.ObserverMessages(msg, "s2"); len(extras) != 0 {
		t.Errorf("expected no overhearing out of range, got %d", len(extras))
	}
}

func TestObserverIgnoresOffTopicTraffic(t *testing.T) {
	cfg := PerceptionConfig{
		Observer: ObserverConfig{Enabled: true, Topics: []string{"peer_comment"}},
	}
	engine, _ := perceptionFixture(t, cfg, 0.0)

	msg := NewMessage("s1", "s2", "question", "what is x")
	if extras := engine.ObserverMessages(msg, "s2"); len(extras) != 0 {
		t.Errorf("expected off-topic traffic to be ignored, got %d extras", len(extras))
	}
}

func TestProbabilityDropsWithDistance(t *testing.T) {
	// GIVEN hearing range 2 on a 1x3 grid: s2 is one seat from s1, t1 two
	engine, _ := perceptionFixture(t, PerceptionConfig{HearingRange: 2})

	near := engine.evaluate("s1", "s2", "chatter")
	far := engine.evaluate("s1", "t1", "chatter")

	// THEN probability is monotone in distance
	if near.probability <= far.probability {
		t.Errorf("expected nearer receiver to hear more: near=%.2f far=%.2f",
			near.probability, far.probability)
	}
	// AND linear decay is exactly zero at the range boundary
	if far.probability != 0 {
		t.Errorf("expected probability 0 at distance == range, got %.2f", far.probability)
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestRolePerceptionOverrides(t *testing.T) {
	// GIVEN a tight teacher hearing range overlaid on a generous default
	cfg := PerceptionConfig{
		HearingRange: 6,
		Roles: map[string]AgentPerception{
			string(RoleTeacher): {HearingRange: floatPtr(2)},
		},
	}
	engine, _ := perceptionFixture(t, cfg)

	// WHEN the same speaker is evaluated against both roles
	student := engine.evaluate("s1", "s2", "chatter")
	teacher := engine.evaluate("s1", "t1", "chatter")

	// THEN only the teacher is bound by the role range
	if student.probability <= 0.8 {
		t.Errorf("expected the student on the default range, got %.2f", student.probability)
	}
	if teacher.probability != 0 {
		t.Errorf("expected nothing at distance == role range, got %.2f", teacher.probability)
	}
}

func TestAgentOverrideBeatsRoleOverride(t *testing.T) {
	// GIVEN a role range of 2 and an agent range of 4 for the same teacher
	cfg := PerceptionConfig{
		HearingRange: 6,
		Roles: map[string]AgentPerception{
			string(RoleTeacher): {HearingRange: floatPtr(2)},
		},
		Agents: map[string]AgentPerception{"t1": {HearingRange: floatPtr(4)}},
	}
	engine, _ := perceptionFixture(t, cfg)

	// THEN the agent layer wins: prob = 1 - 2/4
	result := engine.evaluate("s1", "t1", "chatter")
	if result.probability != 0.5 {
		t.Errorf("expected the agent range to apply, got %.2f", result.probability)
	}
}

func TestRoleDecayOverride(t *testing.T) {
	// GIVEN students decaying exponentially while the default is linear
	cfg := PerceptionConfig{
		HearingRange: 4,
		Roles: map[string]AgentPerception{
			string(RoleStudent): {Decay: DecayExponential, Alpha: floatPtr(0.5)},
		},
	}
	engine, _ := perceptionFixture(t, cfg)

	// WHEN two adjacent pairs are evaluated in both directions
	student := engine.evaluate("t1", "s2", "chatter")
	teacher := engine.evaluate("s2", "t1", "chatter")

	// THEN the student hears exp(-0.5) and the teacher 1 - 1/4
	if student.probability < 0.60 || student.probability > 0.61 {
		t.Errorf("expected exponential decay for the student, got %.3f", student.probability)
	}
	if teacher.probability != 0.75 {
		t.Errorf("expected linear decay for the teacher, got %.2f", teacher.probability)
	}
}

func TestDeliveryRecordsObserverAudit(t *testing.T) {
	// GIVEN observer audit logging over peer comments
	directory := NewAgentDirectory([]AgentProfile{
		{AgentID: "s1", Role: RoleStudent, Group: "class-a"},
		{AgentID: "s2", Role: RoleStudent, Group: "class-a"},
		{AgentID: "t1", Role: RoleTeacher, Group: "class-a"},
	})
	model := world.NewModel(nil, world.NewLayout(world.LayoutConfig{Rows: 1, Cols: 3}), nil)
	model.AssignSeats([]string{"s1", "s2", "t1"}, "classroom")
	store := &memoryFake{}
	engine := NewPerceptionEngine(PerceptionConfig{
		Enabled:      true,
		HearingRange: 6,
		Observer: ObserverConfig{
			Enabled:      true,
			LogObservers: true,
			Topics:       []string{"peer_comment"},
		},
	}, directory, model, &scriptedRNG{rolls: []float64{0.1}}, store)

	// WHEN a peer comment is delivered between students
	msg := NewMessage("s1", "s2", "peer_comment", "check my answer")
	if _, ok := engine.FilterMessage(msg, "s2"); !ok {
		t.Fatal("expected delivery")
	}

	// THEN the teacher's would-have-heard view is recorded, undelivered
	audits := store.messageEvents(EventObserverPerception)
	if len(audits) != 1 {
		t.Fatalf("expected one audit record, got %d", len(audits))
	}
	if audits[0].ReceiverID != "t1" || audits[0].SenderID != "s1" {
		t.Errorf("expected the teacher's view of s1, got %+v", audits[0])
	}
}

func TestOcclusionLowersVisionProbability(t *testing.T) {
	// GIVEN a vision topic and s2's view of seat r1c1 blocked
	cfg := PerceptionConfig{
		VisionRange:     3,
		VisionTopics:    []string{"gesture"},
		OcclusionFactor: 0.5,
		Agents:          map[string]AgentPerception{"s2": {OccludedSeats: []string{"r1c1"}}},
	}
	engine, _ := perceptionFixture(t, cfg)

	// WHEN two equidistant senders signal s2
	occluded := engine.evaluate("s1", "s2", "gesture")
	clear := engine.evaluate("t1", "s2", "gesture")

	// THEN the occluded sender is strictly harder to see
	if occluded.probability >= clear.probability {
		t.Errorf("expected occlusion to lower probability: occluded=%.2f clear=%.2f",
			occluded.probability, clear.probability)
	}
}
