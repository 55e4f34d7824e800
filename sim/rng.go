package sim

import (
	"hash/fnv"
	"math/rand"
	"sync"
)

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible simulation run.
// Two simulations with the same SimulationKey and identical scenario
// MUST produce bit-for-bit identical results.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// === Subsystem Constants ===

const (
	// SubsystemSimulation is the RNG subsystem for orchestrator decisions
	// (patrol rows, tie breaks). Uses the master seed directly.
	SubsystemSimulation = "simulation"

	// SubsystemPerception is the RNG subsystem for perception sampling.
	SubsystemPerception = "perception"

	// SubsystemSchedule is the RNG subsystem for schedule generation.
	SubsystemSchedule = "schedule"
)

// SubsystemAgent returns the subsystem name for one agent's private RNG,
// so agent decisions stay isolated from each other and from the
// orchestrator's stream.
func SubsystemAgent(agentID string) string {
	return "agent:" + agentID
}

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem.
//
// Derivation formula:
//   - For SubsystemSimulation: uses the master seed directly
//   - For all other subsystems: masterSeed XOR fnv1a64(subsystemName)
//
// Thread-safety: NOT thread-safe. Each returned *rand.Rand must be used
// from a single goroutine; subsystem derivation happens once at startup.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
// Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}

	var derivedSeed int64
	if name == SubsystemSimulation {
		derivedSeed = int64(p.key)
	} else {
		derivedSeed = int64(p.key) ^ fnv1a64(name)
	}

	rng := rand.New(rand.NewSource(derivedSeed))
	p.subsystems[name] = rng
	return rng
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// === lockedSource ===

// lockedSource serializes draws from one *rand.Rand so a subsystem
// stream can be shared across goroutines. The draw order, and with it
// the exact result of a run, depends on goroutine interleaving; the
// stream itself stays the subsystem's own.
type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newLockedSource(rng *rand.Rand) *lockedSource {
	return &lockedSource{rng: rng}
}

func (l *lockedSource) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Float64()
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
