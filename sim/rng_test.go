package sim

import (
	"sync"
	"testing"
)

func TestSubsystemStreamsAreDeterministic(t *testing.T) {
	// GIVEN two PartitionedRNGs with the same key
	a := NewPartitionedRNG(NewSimulationKey(42))
	b := NewPartitionedRNG(NewSimulationKey(42))

	// THEN every subsystem produces identical streams
	for _, name := range []string{SubsystemSimulation, SubsystemPerception, SubsystemAgent("s1")} {
		rngA := a.ForSubsystem(name)
		rngB := b.ForSubsystem(name)
		for i := 0; i < 10; i++ {
			if rngA.Int63() != rngB.Int63() {
				t.Fatalf("subsystem %s diverged at draw %d", name, i)
			}
		}
	}
}

func TestSubsystemStreamsAreIsolated(t *testing.T) {
	rng := NewPartitionedRNG(NewSimulationKey(42))

	first := rng.ForSubsystem(SubsystemPerception).Int63()
	second := NewPartitionedRNG(NewSimulationKey(42)).ForSubsystem(SubsystemSchedule).Int63()
	if first == second {
		t.Error("expected different subsystems to draw from different streams")
	}
}

func TestSubsystemInstanceIsCached(t *testing.T) {
	rng := NewPartitionedRNG(NewSimulationKey(7))

	if rng.ForSubsystem("x") != rng.ForSubsystem("x") {
		t.Error("expected the same instance per subsystem name")
	}
	if rng.Key() != NewSimulationKey(7) {
		t.Error("expected the key to round-trip")
	}
}

func TestAgentSubsystemNames(t *testing.T) {
	if SubsystemAgent("s1") != "agent:s1" {
		t.Errorf("unexpected agent subsystem name %q", SubsystemAgent("s1"))
	}
}

func TestLockedSourceConcurrentDraws(t *testing.T) {
	// GIVEN one subsystem stream shared by many goroutines
	source := newLockedSource(NewPartitionedRNG(NewSimulationKey(9)).ForSubsystem(SubsystemPerception))

	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				if v := source.Float64(); v < 0 || v >= 1 {
					t.Errorf("draw out of range: %f", v)
					return
				}
			}
		}()
	}
	wg.Wait()
}
