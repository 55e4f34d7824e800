// Package sim provides the agent kernel for simclass.
//
// # Reading Guide
//
// Start with these three files to understand the kernel:
//   - bus.go: the async mailbox bus, delivery retries, and the filter/observer hooks
//   - agent.go: the agent run loop, memory restore, and behavior dispatch
//   - simulation.go: the tick orchestrator that turns calendar events into bus traffic
//
// # Architecture
//
// The sim package owns the runtime (bus, supervisor, agents, perception,
// behaviors); supporting models live in sub-packages:
//   - sim/world/: scenes, the seat grid, objects, and agent locations
//   - sim/calendar/: the simulated clock, daily routine, timetable, academic
//     calendar, and semester event rules
//   - sim/curriculum/: courses, lesson plans, and the teaching cursor
//
// Storage, the LLM responder, and the HTTP control surface sit outside sim
// and plug in through small interfaces (MemoryStore, Responder).
//
// # Key Interfaces
//
// The extension points are single-method or small interfaces:
//   - Behavior: per-role reaction to messages and system events
//   - MemoryStore: event logging, agent memory, and knowledge persistence
//   - Responder: free-text generation for agent utterances
//   - MessageFilter / MessageObserver: the perception hooks on the bus
//   - Runnable: anything the supervisor can run and restart
package sim
