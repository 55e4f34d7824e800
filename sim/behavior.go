// Shared behavior plumbing: the probability knobs, mutable agent state,
// and the small content conventions (topic markers, key=value payloads)
// both student and teacher behaviors speak.

package sim

import (
	"context"
	"math"
	"strconv"
	"strings"
)

// BehaviorConfig holds the base probabilities behaviors scale by agent
// state before rolling.
type BehaviorConfig struct {
	QuestionProb    float64 `yaml:"question_prob"`
	OfficeHoursProb float64 `yaml:"office_hours_prob"`
	DiscussProb     float64 `yaml:"discuss_prob"`
	PeerDiscussBias float64 `yaml:"peer_discuss_bias"`
	PeerReplyProb   float64 `yaml:"peer_reply_prob"`
	NoiseProb       float64 `yaml:"noise_prob"`
}

func (c BehaviorConfig) withDefaults() BehaviorConfig {
	if c.QuestionProb == 0 {
		c.QuestionProb = 0.7
	}
	if c.OfficeHoursProb == 0 {
		c.OfficeHoursProb = 0.7
	}
	if c.DiscussProb == 0 {
		c.DiscussProb = 0.5
	}
	if c.PeerDiscussBias == 0 {
		c.PeerDiscussBias = 0.6
	}
	if c.PeerReplyProb == 0 {
		c.PeerReplyProb = 0.5
	}
	if c.NoiseProb == 0 {
		c.NoiseProb = 0.08
	}
	return c
}

// AgentState is a student's slow-moving condition, shifted by routine
// actions and read by every probability roll.
type AgentState struct {
	Energy     float64
	Attention  float64
	Stress     float64
	Motivation float64
	SleepDebt  float64
	Mood       string
}

// NewAgentState returns the baseline condition.
func NewAgentState() *AgentState {
	return &AgentState{
		Energy:     0.6,
		Attention:  0.6,
		Stress:     0.2,
		Motivation: 0.6,
		Mood:       "neutral",
	}
}

// systemBehavior backs system-role agents: scripted broadcasters and
// other scenario fixtures. It listens and never replies; its traffic is
// still recorded by the agent runtime.
type systemBehavior struct{}

func (systemBehavior) OnMessage(msg Message) []OutboundMessage { return nil }

func (systemBehavior) OnEvent(event SystemEvent) []OutboundMessage { return nil }

// Responder generates message content from a prompt, typically backed
// by an LLM. Behaviors treat it as optional and fall back to template
// content when it is nil or fails.
type Responder interface {
	Respond(ctx context.Context, systemPrompt, prompt string) (string, error)
}

// scaleProb modulates a base probability by the agent's condition and
// persona. The peer flag switches the trait factor from confidence
// (speaking up to the teacher) to collaboration (talking to peers).
func scaleProb(base float64, state *AgentState, persona map[string]float64, peer bool) float64 {
	trait := personaValue(persona, "confidence", 0.5)
	if peer {
		trait = personaValue(persona, "collaboration", 0.5)
	}
	factor := (0.35 + 0.4*personaValue(persona, "engagement", 0.5) + 0.15*personaValue(persona, "motivation", state.Motivation)) *
		(0.6 + 0.4*state.Energy) *
		(0.6 + 0.4*state.Attention) *
		(1 - math.Min(0.4, state.Stress)) *
		(0.6 + 0.4*trait)
	return clamp(base*factor, 0.05, 0.95)
}

func personaValue(persona map[string]float64, key string, fallback float64) float64 {
	if v, ok := persona[key]; ok {
		return v
	}
	return fallback
}

// extractTopic pulls the topic marker out of message content: either a
// leading "[topic]" bracket or a "topic=" key=value part.
func extractTopic(content string) string {
	if strings.HasPrefix(content, "[") {
		if end := strings.Index(content, "]"); end > 1 {
			return content[1:end]
		}
	}
	if v, ok := contentValue(content, "topic"); ok {
		return v
	}
	return ""
}

// contentValue reads one key from ";"-joined key=value content.
func contentValue(content, key string) (string, bool) {
	for _, part := range strings.Split(content, ";") {
		if k, v, found := strings.Cut(part, "="); found && k == key {
			return v, true
		}
	}
	return "", false
}

func contentFloat(content, key string) (float64, bool) {
	raw, ok := contentValue(content, key)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
