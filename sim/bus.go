// Implements the AsyncMessageBus: per-agent bounded mailboxes with
// retry/backoff/drop semantics and pluggable filter/observer hooks.
//
// The bus knows nothing about what the hooks do. The perception engine
// supplies the filter and the observer; the storage layer supplies the
// drop handler. A full mailbox is never an error for the caller: after
// the retry budget is exhausted the message is routed to the drop
// handler and the send completes.

package sim

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrNoReceiver is returned by Send when the message carries no
// receiver id. This is a programmer error, not a runtime condition,
// so it is raised immediately rather than routed to the drop handler.
var ErrNoReceiver = errors.New("receiver_id required for direct send")

var errEnqueueTimeout = errors.New("enqueue timed out")

// DropReasonMissingQueue is the drop reason for an unregistered receiver.
const DropReasonMissingQueue = "missing_queue"

// MessageFilter may veto a delivery (ok=false) or rewrite the message
// before it is enqueued. It sees the intended receiver.
type MessageFilter func(msg Message, receiverID string) (Message, bool)

// MessageObserver may synthesize additional messages after a successful
// enqueue (eavesdropping). The synthesized messages are delivered with
// filtering and observation disabled.
type MessageObserver func(msg Message, receiverID string) []Message

// DropHandler receives messages that could not be delivered, together
// with a reason string ("missing_queue", "queue_full:<err>").
type DropHandler func(msg Message, reason string)

// Mailbox is one agent's bounded FIFO delivery queue. Once created it
// lives for the whole simulation; mailboxes are never removed mid-run.
type Mailbox struct {
	ch chan Payload
}

// Receive exposes the consumption side of the mailbox.
func (m *Mailbox) Receive() <-chan Payload {
	return m.ch
}

// Len returns the number of queued items.
func (m *Mailbox) Len() int {
	return len(m.ch)
}

// BusConfig carries the bus tuning knobs.
type BusConfig struct {
	QueueMaxSize int           // mailbox capacity (default 100)
	SendTimeout  time.Duration // per-attempt enqueue timeout (default 200ms)
	SendRetries  int           // retries after the first attempt (default 2)
	RetryBackoff time.Duration // backoff unit, scaled linearly by attempt (default 200ms)
}

func (c BusConfig) withDefaults() BusConfig {
	if c.QueueMaxSize <= 0 {
		c.QueueMaxSize = 100
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 200 * time.Millisecond
	}
	if c.SendRetries < 0 {
		c.SendRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 200 * time.Millisecond
	}
	return c
}

// AsyncMessageBus routes messages and system events to per-agent
// mailboxes. The registry is guarded by a single lock for
// create-or-fetch; delivery itself only reads the registry.
type AsyncMessageBus struct {
	mu        sync.RWMutex
	mailboxes map[string]*Mailbox

	config   BusConfig
	onDrop   DropHandler
	filter   MessageFilter
	observer MessageObserver
	logger   *logrus.Entry
}

// NewAsyncMessageBus creates a bus with the given tuning knobs.
func NewAsyncMessageBus(config BusConfig) *AsyncMessageBus {
	return &AsyncMessageBus{
		mailboxes: make(map[string]*Mailbox),
		config:    config.withDefaults(),
		logger:    logrus.WithField("component", "bus"),
	}
}

// SetDropHandler installs the dead-letter hook.
func (b *AsyncMessageBus) SetDropHandler(handler DropHandler) {
	b.onDrop = handler
}

// SetMessageFilter installs the delivery filter hook.
func (b *AsyncMessageBus) SetMessageFilter(filter MessageFilter) {
	b.filter = filter
}

// SetMessageObserver installs the post-enqueue observer hook.
func (b *AsyncMessageBus) SetMessageObserver(observer MessageObserver) {
	b.observer = observer
}

// Register creates the agent's mailbox if it does not exist yet and
// returns it. Idempotent: a second registration returns the same mailbox.
func (b *AsyncMessageBus) Register(agentID string) *Mailbox {
	b.mu.Lock()
	defer b.mu.Unlock()
	mb, ok := b.mailboxes[agentID]
	if !ok {
		mb = &Mailbox{ch: make(chan Payload, b.config.QueueMaxSize)}
		b.mailboxes[agentID] = mb
	}
	return mb
}

func (b *AsyncMessageBus) mailbox(agentID string) (*Mailbox, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	mb, ok := b.mailboxes[agentID]
	return mb, ok
}

// Send delivers a message to its single receiver, applying the filter
// and observer hooks.
func (b *AsyncMessageBus) Send(msg Message) error {
	if msg.ReceiverID == "" {
		return ErrNoReceiver
	}
	b.deliver(msg, msg.ReceiverID, true, true)
	return nil
}

// Broadcast delivers a per-recipient copy of the message. When the
// template carries no receiver id, each copy gets the recipient as its
// receiver; message ids are regenerated per copy so every delivery stays
// globally unique.
func (b *AsyncMessageBus) Broadcast(msg Message, recipients []string) {
	for _, agentID := range recipients {
		if _, ok := b.mailbox(agentID); !ok {
			b.handleDrop(msg, DropReasonMissingQueue)
			continue
		}
		outbound := msg
		if msg.ReceiverID == "" {
			outbound = NewMessage(msg.SenderID, agentID, msg.Topic, msg.Content)
			outbound.Timestamp = msg.Timestamp
		}
		b.deliver(outbound, agentID, true, true)
	}
}

// EmitSystem fans a system event out to the recipients. System events
// are best-effort: no retry, no filtering, and unregistered ids are
// silently skipped.
func (b *AsyncMessageBus) EmitSystem(event SystemEvent, recipients []string) {
	for _, agentID := range recipients {
		mb, ok := b.mailbox(agentID)
		if !ok {
			continue
		}
		timer := time.NewTimer(b.config.SendTimeout)
		select {
		case mb.ch <- event:
			timer.Stop()
		case <-timer.C:
			b.logger.Debugf("system event %s skipped for %s: mailbox full", event.EventType, agentID)
		}
	}
}

// WaitForAgents blocks until every id has a registered mailbox or the
// timeout elapses, polling at the given interval. Returns true when all
// agents registered in time.
func (b *AsyncMessageBus) WaitForAgents(agentIDs []string, timeout, interval time.Duration) bool {
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if b.allRegistered(agentIDs) {
			return true
		}
		time.Sleep(interval)
	}
	return b.allRegistered(agentIDs)
}

func (b *AsyncMessageBus) allRegistered(agentIDs []string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, agentID := range agentIDs {
		if _, ok := b.mailboxes[agentID]; !ok {
			return false
		}
	}
	return true
}

// deliver applies the filter, enqueues with retry, then lets the
// observer synthesize extra deliveries. Observer-synthesized messages
// are delivered with filtering disabled (they were already perceived)
// and observation disabled (no recursive fan-out).
func (b *AsyncMessageBus) deliver(msg Message, receiverID string, applyFilter, applyObserver bool) {
	original := msg
	outbound := msg
	if applyFilter && b.filter != nil {
		filtered, ok := b.filter(msg, receiverID)
		if !ok {
			return
		}
		outbound = filtered
	}
	mb, ok := b.mailbox(receiverID)
	if !ok {
		b.handleDrop(outbound, DropReasonMissingQueue)
		return
	}
	b.putWithRetry(mb, outbound)
	if applyObserver && b.observer != nil {
		for _, extra := range b.observer(original, receiverID) {
			if extra.ReceiverID == "" {
				continue
			}
			b.deliver(extra, extra.ReceiverID, false, false)
		}
	}
}

// putWithRetry attempts a timed enqueue, retrying with linearly
// increasing backoff. Exhausting the budget demotes the message to a
// reported drop; the failure never reaches the caller.
func (b *AsyncMessageBus) putWithRetry(mb *Mailbox, msg Message) {
	var lastErr error
	for attempt := 0; attempt <= b.config.SendRetries; attempt++ {
		timer := time.NewTimer(b.config.SendTimeout)
		select {
		case mb.ch <- msg:
			timer.Stop()
			return
		case <-timer.C:
			lastErr = errEnqueueTimeout
		}
		if attempt < b.config.SendRetries {
			time.Sleep(b.config.RetryBackoff * time.Duration(attempt+1))
		}
	}
	b.handleDrop(msg, fmt.Sprintf("queue_full:%v", lastErr))
}

func (b *AsyncMessageBus) handleDrop(msg Message, reason string) {
	b.logger.Warnf("drop message %s (%s)", msg.MessageID, reason)
	if b.onDrop != nil {
		b.onDrop(msg, reason)
	}
}
