package sim

// MemoryRecord is one persisted exchange loaded back for context seeding.
type MemoryRecord struct {
	Direction string
	Topic     string
	Content   string
	Tick      int
}

// KnowledgeRecord is one persisted mastery level.
type KnowledgeRecord struct {
	Topic string
	Level float64
}

// MemoryStore persists the simulation's durable state: message traffic,
// per-agent memory and knowledge, dead letters, and world events. All
// implementations must tolerate concurrent calls; every component
// treats the store as optional and nil-checks before writing.
type MemoryStore interface {
	RecordMessageEvent(msg Message, eventType, detail string)
	RecordMemory(agentID, direction, topic, content string, tick int)
	RecordDeadLetter(msg Message, reason string)
	UpsertKnowledge(agentID, topic string, level float64)
	RecordWorldEvent(eventType, detail string, tick int)
	SetLastTick(tick int)
	LoadRecentMemory(agentID string, limit int) ([]MemoryRecord, error)
	LoadKnowledge(agentID string) ([]KnowledgeRecord, error)
	Close() error
}
