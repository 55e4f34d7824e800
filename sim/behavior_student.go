// Implements the student behavior: how one student reacts to lectures,
// quizzes, peers, routine shifts, and the slow decay of what they
// learned.

package sim

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/chuanyeli/simclass/sim/calendar"
	"github.com/chuanyeli/simclass/sim/world"
)

const (
	phoneUseProb       = 0.12
	knowledgeBlendOld  = 0.4
	knowledgeBlendNew  = 0.6
	lowMasteryLevel    = 0.5
	highMasteryLevel   = 0.85
	dailyDecayFactor   = 0.97
	maxFatiguePenalty  = 0.3
	quizAttemptBase    = 0.85
	worldEventInteract = "seat_interact"
	worldEventPhoneUse = "phone_use"
)

// StudentBehavior drives one student. All collaborators except bus
// wiring are optional: without a world there is no phone use or seat
// bias, without a social graph partner picks are uniform, without a
// responder content comes from templates.
type StudentBehavior struct {
	profile   AgentProfile
	config    BehaviorConfig
	state     *AgentState
	knowledge map[string]float64
	rng       *rand.Rand

	directory *AgentDirectory
	world     *world.Model
	social    *SocialGraph
	store     MemoryStore
	responder Responder
	logger    *logrus.Entry

	tick int
}

// NewStudentBehavior wires a student. world, social, store, and
// responder may be nil.
func NewStudentBehavior(profile AgentProfile, config BehaviorConfig, rng *rand.Rand,
	directory *AgentDirectory, model *world.Model, social *SocialGraph,
	store MemoryStore, responder Responder) *StudentBehavior {
	return &StudentBehavior{
		profile:   profile,
		config:    config.withDefaults(),
		state:     NewAgentState(),
		knowledge: make(map[string]float64),
		rng:       rng,
		directory: directory,
		world:     model,
		social:    social,
		store:     store,
		responder: responder,
		logger:    logrus.WithField("student", profile.AgentID),
	}
}

// State exposes the student's condition for tests and status reporting.
func (s *StudentBehavior) State() *AgentState { return s.state }

// Knowledge returns the mastery level for one topic.
func (s *StudentBehavior) Knowledge(topic string) float64 { return s.knowledge[topic] }

// SeedKnowledge restores persisted mastery levels.
func (s *StudentBehavior) SeedKnowledge(records []KnowledgeRecord) {
	for _, record := range records {
		s.knowledge[record.Topic] = record.Level
	}
}

// OnMessage reacts to one inbound message by topic.
func (s *StudentBehavior) OnMessage(msg Message) []OutboundMessage {
	switch msg.Topic {
	case "lecture":
		return s.onLecture(msg)
	case "quiz":
		return s.onQuiz(msg)
	case "quiz_score":
		return s.onQuizScore(msg)
	case "answer":
		return []OutboundMessage{{ReceiverID: msg.SenderID, Topic: "thanks", Content: "Thanks, that makes sense now"}}
	case "cold_call":
		return s.answerColdCall(msg)
	case "office_hours":
		if s.roll(scaleProb(s.config.OfficeHoursProb, s.state, s.profile.Persona, false)) {
			return []OutboundMessage{{ReceiverID: msg.SenderID, Topic: "question",
				Content: s.compose("ask a question during office hours", "Could we go over "+s.weakestTopic()+" again?")}}
		}
	case "peer_comment", "overheard":
		if msg.Topic == "peer_comment" && s.roll(scaleProb(s.config.PeerReplyProb, s.state, s.profile.Persona, true)) {
			return []OutboundMessage{{ReceiverID: msg.SenderID, Topic: "peer_reply",
				Content: s.compose("reply to a classmate", "Yeah, I was thinking the same thing")}}
		}
	case "discipline":
		s.state.Attention = clamp(s.state.Attention+0.15, 0, 1)
		s.state.Stress = clamp(s.state.Stress+0.05, 0, 1)
	}
	return nil
}

func (s *StudentBehavior) onLecture(msg Message) []OutboundMessage {
	topic := extractTopic(msg.Content)
	var replies []OutboundMessage
	replies = append(replies, OutboundMessage{ReceiverID: msg.SenderID, Topic: "ack",
		Content: "Taking notes on " + fallbackTopic(topic)})
	if s.roll(scaleProb(s.config.QuestionProb, s.state, s.profile.Persona, false)) {
		replies = append(replies, OutboundMessage{ReceiverID: msg.SenderID, Topic: "question",
			Content: s.compose("ask the teacher about "+fallbackTopic(topic),
				fmt.Sprintf("[%s] Could you explain that part again?", fallbackTopic(topic)))})
	}
	noiseProb := clamp(s.config.NoiseProb*(1.2-s.state.Attention)*(0.8+0.4*s.state.Stress), 0.02, 0.3)
	if s.roll(noiseProb) {
		replies = append(replies, OutboundMessage{ReceiverID: msg.SenderID, Topic: "noise",
			Content: "whispering with a neighbor"})
	}
	if s.world != nil && s.roll(phoneUseProb) {
		if s.world.UseObject("phone."+s.profile.AgentID, s.profile.AgentID) {
			s.recordWorldEvent(worldEventPhoneUse, "object=phone."+s.profile.AgentID)
			replies = append(replies, OutboundMessage{ReceiverID: msg.SenderID, Topic: "noise",
				Content: "tapping on a phone under the desk"})
		}
	}
	return replies
}

func (s *StudentBehavior) onQuiz(msg Message) []OutboundMessage {
	if !s.roll(scaleProb(quizAttemptBase, s.state, s.profile.Persona, false)) {
		return nil
	}
	topic := extractTopic(msg.Content)
	attempt := s.compose("answer a quiz question about "+fallbackTopic(topic),
		"I think it comes down to "+fallbackTopic(topic))
	if topic != "" {
		attempt += ";topic=" + topic
	}
	return []OutboundMessage{{ReceiverID: msg.SenderID, Topic: "quiz_answer", Content: attempt}}
}

func (s *StudentBehavior) answerColdCall(msg Message) []OutboundMessage {
	topic := extractTopic(msg.Content)
	return []OutboundMessage{{ReceiverID: msg.SenderID, Topic: "answer",
		Content: s.compose("answer when called on about "+fallbackTopic(topic),
			"I believe it has to do with "+fallbackTopic(topic))}}
}

// onQuizScore blends the teacher's score into the mastery level and
// reports the extremes back as feedback.
func (s *StudentBehavior) onQuizScore(msg Message) []OutboundMessage {
	topic := extractTopic(msg.Content)
	if topic == "" {
		return nil
	}
	score, ok := contentFloat(msg.Content, "score")
	if !ok {
		return nil
	}
	level := clamp(s.knowledge[topic]*knowledgeBlendOld+score*knowledgeBlendNew, 0.05, 0.95)
	s.knowledge[topic] = level
	s.upsertKnowledge(topic, level)

	var band string
	switch {
	case level < lowMasteryLevel:
		band = "low"
	case level > highMasteryLevel:
		band = "high"
	default:
		return nil
	}
	course, _ := contentValue(msg.Content, "course")
	content := fmt.Sprintf("topic=%s;level=%s;score=%.2f", topic, band, score)
	if course != "" {
		content += ";course=" + course
	}
	return []OutboundMessage{{ReceiverID: msg.SenderID, Topic: "feedback", Content: content}}
}

// OnEvent reacts to system events: class phases, review, routine shifts,
// and day transitions.
func (s *StudentBehavior) OnEvent(event SystemEvent) []OutboundMessage {
	switch event.EventType {
	case "student_discuss":
		if s.roll(scaleProb(s.config.DiscussProb, s.state, s.profile.Persona, false)) {
			return []OutboundMessage{{ReceiverID: s.teacherFor(event.Payload), Topic: "student_comment",
				Content: s.compose("share a thought with the class", "I noticed this connects to what we did last week")}}
		}
	case EventPhaseQuestions:
		if s.roll(scaleProb(s.config.QuestionProb, s.state, s.profile.Persona, false)) {
			return []OutboundMessage{{ReceiverID: s.teacherFor(event.Payload), Topic: "question",
				Content: s.compose("ask a question in the question phase",
					"Could you walk through "+fallbackTopic(payloadString(event.Payload, "topic", ""))+" once more?")}}
		}
	case EventGroupDiscussion:
		return s.onGroupDiscussion(event)
	case calendar.EventReview:
		s.applyReview(event)
	case "routine":
		s.applyRoutine(payloadString(event.Payload, "action", ""))
	case "day_transition":
		s.applyForgetting(payloadFloat(event.Payload, "days", 1))
	}
	return nil
}

// onGroupDiscussion picks a partner, preferring seat neighbors, then
// social affinity, then a uniform draw.
func (s *StudentBehavior) onGroupDiscussion(event SystemEvent) []OutboundMessage {
	peers := s.peersInGroup()
	if len(peers) == 0 {
		return nil
	}
	partner := ""
	if s.world != nil {
		if picked, ok := s.world.PickPeerWithBias(s.profile.AgentID, peers, s.rng, s.config.PeerDiscussBias); ok {
			partner = picked
		}
	}
	if partner == "" && s.social != nil {
		if picked, ok := s.social.PickPartner(s.profile.AgentID, peers, s.rng); ok {
			partner = picked
		}
	}
	if partner == "" {
		partner = peers[s.rng.Intn(len(peers))]
	}
	s.recordWorldEvent(worldEventInteract, "partner="+partner)
	topic := payloadString(event.Payload, "topic", "")
	return []OutboundMessage{{ReceiverID: partner, Topic: "peer_comment",
		Content: s.compose("discuss "+fallbackTopic(topic)+" with a classmate",
			"How did you approach "+fallbackTopic(topic)+"?")}}
}

func (s *StudentBehavior) applyReview(event SystemEvent) {
	intensity := payloadFloat(event.Payload, "intensity", 0)
	if intensity <= 0 {
		return
	}
	gain := intensity * (0.6 + 0.4*personaValue(s.profile.Persona, "motivation", s.state.Motivation)) *
		(0.6 + 0.4*s.state.Attention)
	for _, topic := range payloadStrings(event.Payload, "concepts") {
		level := clamp(s.knowledge[topic]+gain, 0, 0.95)
		s.knowledge[topic] = level
		s.upsertKnowledge(topic, level)
	}
}

// applyRoutine shifts the student's condition along the school day.
func (s *StudentBehavior) applyRoutine(action string) {
	switch action {
	case "wake":
		s.state.Energy = clamp(0.85-s.state.SleepDebt, 0.2, 1)
		s.state.Attention = 0.6
		s.state.Stress = clamp(s.state.Stress-0.05, 0, 1)
		s.state.Mood = "fresh"
	case "breakfast_end":
		s.state.Energy = clamp(s.state.Energy+0.1, 0, 1)
	case "morning_classes", "afternoon_classes":
		s.state.Attention = clamp(s.state.Attention+0.1, 0, 1)
	case "lunch_end":
		s.state.Energy = clamp(s.state.Energy+0.15, 0, 1)
		s.state.Stress = clamp(s.state.Stress-0.05, 0, 1)
	case "test_start":
		s.state.Stress = clamp(s.state.Stress+0.15, 0, 1)
	case "test_end":
		s.state.Stress = clamp(s.state.Stress-0.1, 0, 1)
	case "school_end":
		s.state.Energy = clamp(s.state.Energy-0.15, 0, 1)
		s.state.Stress = clamp(s.state.Stress-0.1, 0, 1)
		s.state.SleepDebt = clamp(s.state.SleepDebt+0.05, 0, 0.5)
		s.state.Mood = "tired"
	}
}

// applyForgetting decays every mastery level, faster for sleep-deprived
// students.
func (s *StudentBehavior) applyForgetting(days float64) {
	if days <= 0 {
		days = 1
	}
	fatigue := 1 - math.Min(maxFatiguePenalty, s.state.SleepDebt)
	decay := math.Pow(dailyDecayFactor, days) * fatigue
	for topic, level := range s.knowledge {
		next := clamp(level*decay, 0, 0.95)
		s.knowledge[topic] = next
		s.upsertKnowledge(topic, next)
	}
}

func (s *StudentBehavior) peersInGroup() []string {
	if s.directory == nil {
		return nil
	}
	var peers []string
	for _, agentID := range s.directory.GroupMembers(s.profile.Group, RoleStudent) {
		if agentID != s.profile.AgentID {
			peers = append(peers, agentID)
		}
	}
	return peers
}

// teacherFor resolves the reply target: the event's teacher when named,
// otherwise the group's first teacher.
func (s *StudentBehavior) teacherFor(payload map[string]any) string {
	if teacherID := payloadString(payload, "teacher_id", ""); teacherID != "" {
		return teacherID
	}
	if s.directory != nil {
		if teachers := s.directory.GroupMembers(s.profile.Group, RoleTeacher); len(teachers) > 0 {
			return teachers[0]
		}
	}
	return ""
}

// weakestTopic names the topic with the lowest mastery, for office-hour
// questions.
func (s *StudentBehavior) weakestTopic() string {
	best := ""
	level := math.Inf(1)
	for topic, l := range s.knowledge {
		if l < level {
			best, level = topic, l
		}
	}
	return fallbackTopic(best)
}

// compose asks the responder for content, falling back to the template.
func (s *StudentBehavior) compose(intent, fallback string) string {
	if s.responder == nil {
		return fallback
	}
	prompt := fmt.Sprintf("You are %s, a student. Intent: %s. Reply in one short sentence.", s.profile.Name, intent)
	content, err := s.responder.Respond(context.Background(), "", prompt)
	if err != nil || content == "" {
		return fallback
	}
	return content
}

func (s *StudentBehavior) roll(probability float64) bool {
	return s.rng.Float64() < probability
}

func (s *StudentBehavior) upsertKnowledge(topic string, level float64) {
	if s.store != nil {
		s.store.UpsertKnowledge(s.profile.AgentID, topic, level)
	}
}

func (s *StudentBehavior) recordWorldEvent(eventType, detail string) {
	if s.store != nil {
		s.store.RecordWorldEvent(eventType, s.profile.AgentID+";"+detail, s.tick)
	}
}

func fallbackTopic(topic string) string {
	if topic == "" {
		return "the material"
	}
	return topic
}
