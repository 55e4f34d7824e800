// Implements the Agent runtime: the goroutine body that drains one
// mailbox and delegates every message and event to a pluggable Behavior.
// The agent owns no domain logic itself; it only records context and
// persists traffic around the behavior calls.

package sim

import (
	"context"

	"github.com/sirupsen/logrus"
)

const memorySeedLimit = 8

// EventShutdown tells every agent to drain and exit its run loop.
const EventShutdown = "shutdown"

// Behavior reacts to inbound traffic on behalf of one agent. Both hooks
// return the messages the agent should send in response; returning nil
// means stay silent.
type Behavior interface {
	OnMessage(msg Message) []OutboundMessage
	OnEvent(event SystemEvent) []OutboundMessage
}

// KnowledgeSeeder is implemented by behaviors that track per-topic
// mastery and want it restored from the store at startup.
type KnowledgeSeeder interface {
	SeedKnowledge(records []KnowledgeRecord)
}

// Agent binds one profile to a behavior and a mailbox. It satisfies
// Runnable so the supervisor can launch and restart it.
type Agent struct {
	profile  AgentProfile
	bus      *AsyncMessageBus
	behavior Behavior
	store    MemoryStore // optional
	context  *ContextManager
	logger   *logrus.Entry

	tick int
}

// NewAgent wires an agent. store may be nil.
func NewAgent(profile AgentProfile, bus *AsyncMessageBus, behavior Behavior, store MemoryStore) *Agent {
	return &Agent{
		profile:  profile,
		bus:      bus,
		behavior: behavior,
		store:    store,
		context:  NewContextManager(0),
		logger:   logrus.WithField("agent", profile.AgentID),
	}
}

// ID returns the agent's id.
func (a *Agent) ID() string { return a.profile.AgentID }

// Run registers the mailbox, restores persisted state, then drains the
// mailbox until shutdown or cancellation. It is safe to call again after
// a restart; registration is idempotent and the context window survives
// on the Agent value.
func (a *Agent) Run(ctx context.Context) error {
	mailbox := a.bus.Register(a.profile.AgentID)
	a.restore()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload := <-mailbox.Receive():
			switch item := payload.(type) {
			case Message:
				a.handleMessage(item)
			case SystemEvent:
				if item.EventType == EventShutdown {
					a.logger.Debug("shutdown received")
					return nil
				}
				a.handleEvent(item)
			}
		}
	}
}

// restore seeds the context window from recent memory (oldest first) and
// hands persisted knowledge back to the behavior.
func (a *Agent) restore() {
	if a.store == nil {
		return
	}
	records, err := a.store.LoadRecentMemory(a.profile.AgentID, memorySeedLimit)
	if err != nil {
		a.logger.Warnf("memory restore failed: %v", err)
	} else if len(records) > 0 {
		contents := make([]string, 0, len(records))
		for i := len(records) - 1; i >= 0; i-- {
			contents = append(contents, records[i].Content)
		}
		a.context.Seed(contents)
	}
	if seeder, ok := a.behavior.(KnowledgeSeeder); ok {
		knowledge, err := a.store.LoadKnowledge(a.profile.AgentID)
		if err != nil {
			a.logger.Warnf("knowledge restore failed: %v", err)
		} else if len(knowledge) > 0 {
			seeder.SeedKnowledge(knowledge)
		}
	}
}

func (a *Agent) handleMessage(msg Message) {
	a.record("inbound", msg.Topic, msg.Content)
	a.dispatch(a.behavior.OnMessage(msg))
}

func (a *Agent) handleEvent(event SystemEvent) {
	if event.EventType == "tick" {
		a.tick = int(payloadFloat(event.Payload, "tick", float64(a.tick)))
	}
	a.dispatch(a.behavior.OnEvent(event))
}

// dispatch sends the behavior's replies. Replies without a receiver are
// dropped silently; behaviors use that to express "no reply".
func (a *Agent) dispatch(replies []OutboundMessage) {
	for _, reply := range replies {
		if reply.ReceiverID == "" {
			continue
		}
		msg := NewMessage(a.profile.AgentID, reply.ReceiverID, reply.Topic, reply.Content)
		a.record("outbound", msg.Topic, msg.Content)
		if err := a.bus.Send(msg); err != nil {
			a.logger.Warnf("send failed: %v", err)
		}
	}
}

func (a *Agent) record(direction, topic, content string) {
	a.context.Record(direction, content)
	if a.store != nil {
		a.store.RecordMemory(a.profile.AgentID, direction, topic, content, a.tick)
	}
}

// Context exposes the agent's rolling context window, mainly for the
// LLM responder's prompt assembly.
func (a *Agent) Context() *ContextManager { return a.context }
