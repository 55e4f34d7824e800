// Core value types shared by every component of the simulation: agent
// profiles, messages, and system events. All of them are treated as
// immutable once constructed; the perception engine produces a fresh
// Message whenever it rewrites sender or content.

package sim

import (
	"time"

	"github.com/google/uuid"
)

// AgentRole classifies an agent within the classroom.
type AgentRole string

const (
	RoleStudent AgentRole = "student"
	RoleTeacher AgentRole = "teacher"
	RoleSystem  AgentRole = "system"
)

// AgentProfile is the static identity of an agent, created once at
// scenario load and never mutated afterwards.
type AgentProfile struct {
	AgentID string
	Name    string
	Role    AgentRole
	Group   string
	// Persona holds free-form traits (engagement, confidence, ...).
	// Missing keys are resolved to explicit defaults at the call site.
	Persona map[string]float64
}

// Message is one directed communication between agents.
// ReceiverID is empty only on a broadcast template that has not been
// targeted yet; a direct Send with an empty ReceiverID is a contract
// violation.
type Message struct {
	MessageID  string
	SenderID   string
	ReceiverID string
	Topic      string
	Content    string
	Timestamp  float64 // unix seconds
}

// NewMessage builds a Message with a freshly generated id.
func NewMessage(senderID, receiverID, topic, content string) Message {
	return Message{
		MessageID:  uuid.New().String(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Topic:      topic,
		Content:    content,
		Timestamp:  unixNow(),
	}
}

// SystemEvent is a broadcast control signal (tick, shutdown, phase
// changes, routine actions). Payload is read-only for consumers.
type SystemEvent struct {
	EventType string
	Payload   map[string]any
}

// Payload is an item deliverable through a mailbox: either a Message or
// a SystemEvent.
type Payload interface {
	payload()
}

func (Message) payload()     {}
func (SystemEvent) payload() {}

// OutboundMessage is a behavior's intent to send. An empty ReceiverID is
// silently dropped by the agent's dispatch step.
type OutboundMessage struct {
	ReceiverID string
	Topic      string
	Content    string
}

func unixNow() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// payloadString reads a string key from an event payload, with a default
// for missing or mistyped values.
func payloadString(payload map[string]any, key, fallback string) string {
	if v, ok := payload[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}

// payloadFloat reads a numeric key from an event payload.
func payloadFloat(payload map[string]any, key string, fallback float64) float64 {
	switch v := payload[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return fallback
	}
}

// payloadStrings reads a list-of-strings key from an event payload.
func payloadStrings(payload map[string]any, key string) []string {
	switch v := payload[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
