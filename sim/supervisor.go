// Implements the AgentSupervisor: a minimal supervision tree over a
// fixed set of agent tasks. Each agent runs in its own goroutine; a
// failed task is relaunched after a fixed delay until its restart
// budget is spent, after which the agent is permanently abandoned and
// the simulation continues without it.

package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Runnable is one supervised agent task. A nil error (or a context
// cancellation) is a clean shutdown; anything else triggers a restart.
type Runnable interface {
	Run(ctx context.Context) error
}

type taskExit struct {
	agentID string
	err     error
}

// AgentSupervisor launches one goroutine per registered agent and
// monitors the set until it is empty.
type AgentSupervisor struct {
	restartLimit int
	restartDelay time.Duration

	mu       sync.Mutex
	agents   map[string]Runnable
	order    []string
	restarts map[string]int

	exits  chan taskExit
	logger *logrus.Entry
}

// NewAgentSupervisor creates a supervisor with the given restart policy.
func NewAgentSupervisor(restartLimit int, restartDelay time.Duration) *AgentSupervisor {
	return &AgentSupervisor{
		restartLimit: restartLimit,
		restartDelay: restartDelay,
		agents:       make(map[string]Runnable),
		restarts:     make(map[string]int),
		logger:       logrus.WithField("component", "supervisor"),
	}
}

// Add registers an agent task. Must be called before Start. Agents are
// never removed from this table, even after abandonment, so they stay
// visible to introspection.
func (s *AgentSupervisor) Add(agentID string, agent Runnable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.agents[agentID]; !exists {
		s.order = append(s.order, agentID)
	}
	s.agents[agentID] = agent
	if _, ok := s.restarts[agentID]; !ok {
		s.restarts[agentID] = 0
	}
}

// RestartCount reports how many times an agent has been restarted.
func (s *AgentSupervisor) RestartCount(agentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts[agentID]
}

// KnownAgents returns every registered agent id, abandoned ones included.
func (s *AgentSupervisor) KnownAgents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Start launches all registered agents and blocks monitoring them until
// every task has either shut down cleanly or been abandoned.
func (s *AgentSupervisor) Start(ctx context.Context) {
	s.mu.Lock()
	ids := append([]string(nil), s.order...)
	s.exits = make(chan taskExit, len(ids))
	s.mu.Unlock()

	active := 0
	for _, agentID := range ids {
		s.launch(ctx, agentID)
		active++
	}
	s.monitor(ctx, active)
}

func (s *AgentSupervisor) launch(ctx context.Context, agentID string) {
	s.mu.Lock()
	agent := s.agents[agentID]
	s.mu.Unlock()
	go func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("agent panic: %v", r)
			}
			s.exits <- taskExit{agentID: agentID, err: err}
		}()
		err = agent.Run(ctx)
	}()
}

// monitor waits for task exits and applies the restart policy. It
// returns once the active-task set is empty.
func (s *AgentSupervisor) monitor(ctx context.Context, active int) {
	for active > 0 {
		exit := <-s.exits
		active--
		if exit.err == nil || errors.Is(exit.err, context.Canceled) {
			continue
		}
		s.mu.Lock()
		s.restarts[exit.agentID]++
		count := s.restarts[exit.agentID]
		s.mu.Unlock()
		if count > s.restartLimit {
			s.logger.Errorf("agent %s exceeded restart limit", exit.agentID)
			continue
		}
		s.logger.Warnf("restarting agent %s after error: %v", exit.agentID, exit.err)
		time.Sleep(s.restartDelay)
		s.launch(ctx, exit.agentID)
		active++
	}
}
