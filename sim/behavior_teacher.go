// Implements the teacher behavior: lecturing, cold calls, grading quiz
// answers, adapting the teaching strategy to feedback, and chasing down
// classroom noise it can only partially localize.

package sim

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/chuanyeli/simclass/sim/calendar"
	"github.com/chuanyeli/simclass/sim/curriculum"
	"github.com/chuanyeli/simclass/sim/world"
)

const (
	coldCallProb           = 0.25
	overheardDirectProb    = 0.5
	overheardBroadcastProb = 0.3
	noiseColdCallProb      = 0.45
	noiseBroadcastProb     = 0.4
	noiseIgnoreHiddenProb  = 0.6
	summaryQuizConcepts    = 2
)

// TeachingStrategy is the teacher's current pacing, adapted from
// student feedback.
type TeachingStrategy struct {
	Mode     string // basic, normal, advanced
	Pace     string // slow, steady, fast
	Examples string // more, some
}

type feedbackStats struct {
	low        int
	high       int
	count      int
	totalScore float64
}

// TeacherBehavior drives one teacher agent.
type TeacherBehavior struct {
	profile AgentProfile
	rng     *rand.Rand

	directory *AgentDirectory
	world     *world.Model
	tracker   *curriculum.Tracker
	store     MemoryStore
	responder Responder
	logger    *logrus.Entry

	strategy    TeachingStrategy
	feedback    feedbackStats
	suspicion   map[int]float64
	assessments map[string][]float64
	tick        int
}

// NewTeacherBehavior wires a teacher. world, tracker, store, and
// responder may be nil.
func NewTeacherBehavior(profile AgentProfile, rng *rand.Rand, directory *AgentDirectory,
	model *world.Model, tracker *curriculum.Tracker, store MemoryStore, responder Responder) *TeacherBehavior {
	return &TeacherBehavior{
		profile:     profile,
		rng:         rng,
		directory:   directory,
		world:       model,
		tracker:     tracker,
		store:       store,
		responder:   responder,
		logger:      logrus.WithField("teacher", profile.AgentID),
		strategy:    TeachingStrategy{Mode: "normal", Pace: "steady", Examples: "some"},
		suspicion:   make(map[int]float64),
		assessments: make(map[string][]float64),
	}
}

// Strategy exposes the current teaching strategy.
func (t *TeacherBehavior) Strategy() TeachingStrategy { return t.strategy }

// SuspicionFor reports the accumulated suspicion for a seat row.
func (t *TeacherBehavior) SuspicionFor(row int) float64 { return t.suspicion[row] }

// OnMessage reacts to one inbound message by topic.
func (t *TeacherBehavior) OnMessage(msg Message) []OutboundMessage {
	switch msg.Topic {
	case "question", "student_comment":
		return []OutboundMessage{{ReceiverID: msg.SenderID, Topic: "answer",
			Content: t.compose("answer a student question: "+msg.Content,
				"Good question. "+fallbackTopic(extractTopic(msg.Content))+" works like this: start from the definition")}}
	case "feedback":
		t.applyFeedback(msg)
	case "overheard":
		return t.onOverheard(msg)
	case "noise":
		return t.onNoise(msg)
	case "quiz_answer":
		return t.gradeQuizAnswer(msg)
	}
	return nil
}

// applyFeedback accumulates the class's self-reported mastery bands and
// re-derives the teaching strategy.
func (t *TeacherBehavior) applyFeedback(msg Message) {
	band, _ := contentValue(msg.Content, "level")
	score, _ := contentFloat(msg.Content, "score")
	t.feedback.count++
	t.feedback.totalScore += score
	switch band {
	case "low":
		t.feedback.low++
	case "high":
		t.feedback.high++
	}
	count := float64(t.feedback.count)
	switch {
	case float64(t.feedback.low)/count > 0.5:
		t.strategy = TeachingStrategy{Mode: "basic", Pace: "slow", Examples: "more"}
	case float64(t.feedback.high)/count > 0.5:
		t.strategy = TeachingStrategy{Mode: "advanced", Pace: "fast", Examples: "some"}
	default:
		t.strategy = TeachingStrategy{Mode: "normal", Pace: "steady", Examples: "some"}
	}
	t.logger.Debugf("strategy now %s/%s after %d feedback messages", t.strategy.Mode, t.strategy.Pace, t.feedback.count)
}

// onOverheard disciplines overheard chatter: directly when the speaker
// was recognizable, as a general warning otherwise.
func (t *TeacherBehavior) onOverheard(msg Message) []OutboundMessage {
	speaker, _ := contentValue(msg.Content, "from")
	if speaker != "" && speaker != "unknown" {
		if t.roll(overheardDirectProb) {
			return []OutboundMessage{{ReceiverID: speaker, Topic: "discipline",
				Content: "I heard that. Eyes on the board, please"}}
		}
		return nil
	}
	if t.roll(overheardBroadcastProb) {
		return t.broadcastToStudents("discipline", "Less chatting back there, please")
	}
	return nil
}

// onNoise handles noise reports. Anonymous noise only carries a
// suspected row, so the teacher cold-calls into the row or warns the
// room; recognizable noise from a hidden student is often let slide.
func (t *TeacherBehavior) onNoise(msg Message) []OutboundMessage {
	if msg.SenderID == "unknown" {
		if score, ok := contentFloat(msg.Content, "suspicion"); ok {
			if rowValue, rowOK := contentFloat(msg.Content, "suspect_row"); rowOK {
				row := int(rowValue)
				t.suspicion[row] += score
				if t.roll(noiseColdCallProb) {
					if target := t.randomStudentInRow(row); target != "" {
						return []OutboundMessage{{ReceiverID: target, Topic: "cold_call",
							Content: "You in that row: what did I just say?"}}
					}
				}
			}
		}
		if t.roll(noiseBroadcastProb) {
			return t.broadcastToStudents("discipline", "Whoever that was, settle down")
		}
		return nil
	}
	if t.world != nil && !t.world.IsVisible(msg.SenderID) && t.roll(noiseIgnoreHiddenProb) {
		return nil
	}
	return []OutboundMessage{{ReceiverID: msg.SenderID, Topic: "discipline",
		Content: "Quiet down, please"}}
}

// gradeQuizAnswer scores an answer heuristically: keyword coverage of
// the concept plus a length component, then reports the score back.
func (t *TeacherBehavior) gradeQuizAnswer(msg Message) []OutboundMessage {
	topic := extractTopic(msg.Content)
	if topic == "" {
		return nil
	}
	score := clamp(0.2+0.6*keywordRatio(topic, msg.Content)+0.2*lengthComponent(msg.Content), 0.05, 0.95)
	t.assessments[topic] = append(t.assessments[topic], score)

	course := ""
	if t.tracker != nil {
		course, _ = t.tracker.CourseForConcept(topic)
	}
	remark := "keep practicing"
	if score >= 0.7 {
		remark = "well done"
	}
	content := fmt.Sprintf("topic=%s;course=%s;score=%.2f;feedback=%s", topic, course, score, remark)
	return []OutboundMessage{{ReceiverID: msg.SenderID, Topic: "quiz_score", Content: content}}
}

// OnEvent drives the teacher through class phases and tests.
func (t *TeacherBehavior) OnEvent(event SystemEvent) []OutboundMessage {
	switch event.EventType {
	case "lecture", EventPhaseLecture:
		return t.lecture(event)
	case "office_hours":
		return t.broadcastToStudents("office_hours", "My door is open this afternoon if anything is unclear")
	case EventPhaseSummary:
		return t.summarize(event)
	case calendar.EventDailyTest:
		return t.runTest(event)
	}
	return nil
}

// lecture addresses the whole group and usually cold-calls one student
// to keep the room awake.
func (t *TeacherBehavior) lecture(event SystemEvent) []OutboundMessage {
	topic := payloadString(event.Payload, "topic", "")
	plan := payloadString(event.Payload, "lesson_plan", "")
	body := t.compose("deliver a lecture on "+fallbackTopic(topic)+" at a "+t.strategy.Pace+" pace",
		"Today we cover "+fallbackTopic(topic))
	if plan != "" {
		body += " (" + plan + ")"
	}
	replies := t.broadcastToStudents("lecture", fmt.Sprintf("[%s] %s", fallbackTopic(topic), body))
	if len(replies) > 0 && t.roll(coldCallProb) {
		students := t.students()
		target := students[t.rng.Intn(len(students))]
		replies = append(replies, OutboundMessage{ReceiverID: target, Topic: "cold_call",
			Content: fmt.Sprintf("[%s] Can you give us an example?", fallbackTopic(topic))})
	}
	return replies
}

// summarize closes the session and quizzes the weakest concepts seen so
// far.
func (t *TeacherBehavior) summarize(event SystemEvent) []OutboundMessage {
	topic := payloadString(event.Payload, "topic", "")
	replies := t.broadcastToStudents("summary",
		t.compose("summarize the lesson on "+fallbackTopic(topic),
			"To wrap up: the key points of "+fallbackTopic(topic)+" are on the board"))
	for _, concept := range t.weakestConcepts(summaryQuizConcepts) {
		replies = append(replies, t.quizOn(concept)...)
	}
	return replies
}

// runTest quizzes every concept named in the test payload.
func (t *TeacherBehavior) runTest(event SystemEvent) []OutboundMessage {
	var replies []OutboundMessage
	for _, concept := range payloadStrings(event.Payload, "concepts") {
		replies = append(replies, t.quizOn(concept)...)
	}
	return replies
}

func (t *TeacherBehavior) quizOn(concept string) []OutboundMessage {
	question := "Explain " + concept
	course := ""
	if t.tracker != nil {
		question = t.tracker.QuestionFor(concept, t.rng)
		course, _ = t.tracker.CourseForConcept(concept)
	}
	content := fmt.Sprintf("%s;topic=%s;course=%s", question, concept, course)
	return t.broadcastToStudents("quiz", content)
}

// weakestConcepts sorts assessed concepts by mean score, ascending.
func (t *TeacherBehavior) weakestConcepts(limit int) []string {
	type avg struct {
		concept string
		score   float64
	}
	var averages []avg
	for concept, scores := range t.assessments {
		total := 0.0
		for _, s := range scores {
			total += s
		}
		averages = append(averages, avg{concept: concept, score: total / float64(len(scores))})
	}
	sort.Slice(averages, func(i, j int) bool {
		if averages[i].score != averages[j].score {
			return averages[i].score < averages[j].score
		}
		return averages[i].concept < averages[j].concept
	})
	var out []string
	for i := 0; i < len(averages) && i < limit; i++ {
		out = append(out, averages[i].concept)
	}
	return out
}

func (t *TeacherBehavior) students() []string {
	if t.directory == nil {
		return nil
	}
	return t.directory.GroupMembers(t.profile.Group, RoleStudent)
}

func (t *TeacherBehavior) broadcastToStudents(topic, content string) []OutboundMessage {
	var out []OutboundMessage
	for _, studentID := range t.students() {
		out = append(out, OutboundMessage{ReceiverID: studentID, Topic: topic, Content: content})
	}
	return out
}

func (t *TeacherBehavior) randomStudentInRow(row int) string {
	if t.world == nil {
		return ""
	}
	var candidates []string
	for _, studentID := range t.students() {
		if loc, ok := t.world.LocationFor(studentID); ok && loc.Seated && loc.Row == row {
			candidates = append(candidates, studentID)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	return candidates[t.rng.Intn(len(candidates))]
}

func (t *TeacherBehavior) compose(intent, fallback string) string {
	if t.responder == nil {
		return fallback
	}
	prompt := fmt.Sprintf("You are %s, a teacher. Intent: %s. Reply in one or two sentences.", t.profile.Name, intent)
	content, err := t.responder.Respond(context.Background(), "", prompt)
	if err != nil || content == "" {
		return fallback
	}
	return content
}

func (t *TeacherBehavior) roll(probability float64) bool {
	return t.rng.Float64() < probability
}

// keywordRatio measures how much of the concept's vocabulary appears in
// the answer.
func keywordRatio(concept, answer string) float64 {
	words := strings.FieldsFunc(concept, func(r rune) bool { return r == '_' || r == ' ' })
	if len(words) == 0 {
		return 0
	}
	lower := strings.ToLower(answer)
	hits := 0
	for _, word := range words {
		if strings.Contains(lower, strings.ToLower(word)) {
			hits++
		}
	}
	return float64(hits) / float64(len(words))
}

func lengthComponent(answer string) float64 {
	return clamp((float64(len(answer))-10)/60, 0, 1)
}
