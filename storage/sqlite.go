// Package storage persists simulation traffic to SQLite: perception
// events, agent memory and knowledge, dead letters, world events, and
// the last completed tick for resumption.
package storage

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/chuanyeli/simclass/sim"
)

const schema = `
CREATE TABLE IF NOT EXISTS message_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id TEXT NOT NULL,
	sender_id TEXT NOT NULL,
	receiver_id TEXT NOT NULL,
	topic TEXT NOT NULL,
	event_type TEXT NOT NULL,
	detail TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS agent_memory (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_id TEXT NOT NULL,
	direction TEXT NOT NULL,
	topic TEXT NOT NULL,
	content TEXT NOT NULL,
	tick INTEGER NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_agent_memory_agent ON agent_memory(agent_id, id);
CREATE TABLE IF NOT EXISTS dead_letters (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id TEXT NOT NULL,
	sender_id TEXT NOT NULL,
	receiver_id TEXT NOT NULL,
	topic TEXT NOT NULL,
	content TEXT NOT NULL,
	reason TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS agent_knowledge (
	agent_id TEXT NOT NULL,
	topic TEXT NOT NULL,
	level REAL NOT NULL,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(agent_id, topic)
);
CREATE TABLE IF NOT EXISTS world_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	detail TEXT NOT NULL,
	tick INTEGER NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS sim_state (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// SQLiteStore implements sim.MemoryStore on one SQLite database. Write
// failures are logged and swallowed: persistence never takes the
// simulation down.
type SQLiteStore struct {
	mu     sync.Mutex
	db     *sql.DB
	logger *logrus.Entry
}

// Open creates or opens the database at path (":memory:" works) and
// applies the schema.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The driver is safe for concurrent use but sqlite writes serialize
	// anyway; a single connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{
		db:     db,
		logger: logrus.WithField("component", "storage"),
	}, nil
}

func (s *SQLiteStore) exec(query string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(query, args...); err != nil {
		s.logger.Warnf("write failed: %v", err)
	}
}

// RecordMessageEvent stores one perception decision about a message.
func (s *SQLiteStore) RecordMessageEvent(msg sim.Message, eventType, detail string) {
	s.exec(`INSERT INTO message_events (message_id, sender_id, receiver_id, topic, event_type, detail)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.MessageID, msg.SenderID, msg.ReceiverID, msg.Topic, eventType, detail)
}

// RecordMemory stores one exchange of an agent's conversation.
func (s *SQLiteStore) RecordMemory(agentID, direction, topic, content string, tick int) {
	s.exec(`INSERT INTO agent_memory (agent_id, direction, topic, content, tick)
		VALUES (?, ?, ?, ?, ?)`,
		agentID, direction, topic, content, tick)
}

// RecordDeadLetter stores an undeliverable message.
func (s *SQLiteStore) RecordDeadLetter(msg sim.Message, reason string) {
	s.exec(`INSERT INTO dead_letters (message_id, sender_id, receiver_id, topic, content, reason)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.MessageID, msg.SenderID, msg.ReceiverID, msg.Topic, msg.Content, reason)
}

// UpsertKnowledge stores an agent's mastery level for one topic.
func (s *SQLiteStore) UpsertKnowledge(agentID, topic string, level float64) {
	s.exec(`INSERT INTO agent_knowledge (agent_id, topic, level) VALUES (?, ?, ?)
		ON CONFLICT(agent_id, topic) DO UPDATE SET level = excluded.level, updated_at = CURRENT_TIMESTAMP`,
		agentID, topic, level)
}

// RecordWorldEvent stores a spatial interaction (phone use, seat talk).
func (s *SQLiteStore) RecordWorldEvent(eventType, detail string, tick int) {
	s.exec(`INSERT INTO world_events (event_type, detail, tick) VALUES (?, ?, ?)`,
		eventType, detail, tick)
}

// SetLastTick stores the last completed tick.
func (s *SQLiteStore) SetLastTick(tick int) {
	s.exec(`INSERT INTO sim_state (key, value) VALUES ('last_tick', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		fmt.Sprintf("%d", tick))
}

// LastTick reads the last completed tick, 0 when none was stored.
func (s *SQLiteStore) LastTick() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var value int
	err := s.db.QueryRow(`SELECT value FROM sim_state WHERE key = 'last_tick'`).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return value, nil
}

// LoadRecentMemory returns an agent's most recent exchanges, newest
// first.
func (s *SQLiteStore) LoadRecentMemory(agentID string, limit int) ([]sim.MemoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`SELECT direction, topic, content, tick FROM agent_memory
		WHERE agent_id = ? ORDER BY id DESC LIMIT ?`, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("load memory: %w", err)
	}
	defer rows.Close()
	var records []sim.MemoryRecord
	for rows.Next() {
		var record sim.MemoryRecord
		if err := rows.Scan(&record.Direction, &record.Topic, &record.Content, &record.Tick); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// LoadKnowledge returns every mastery level stored for an agent.
func (s *SQLiteStore) LoadKnowledge(agentID string) ([]sim.KnowledgeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query(`SELECT topic, level FROM agent_knowledge WHERE agent_id = ?`, agentID)
	if err != nil {
		return nil, fmt.Errorf("load knowledge: %w", err)
	}
	defer rows.Close()
	var records []sim.KnowledgeRecord
	for rows.Next() {
		var record sim.KnowledgeRecord
		if err := rows.Scan(&record.Topic, &record.Level); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// DeadLetterCount reports how many messages were dropped.
func (s *SQLiteStore) DeadLetterCount() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM dead_letters`).Scan(&count)
	return count, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
