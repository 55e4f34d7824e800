package world

import (
	"math/rand"
	"sync"
	"testing"
)

func newTestModel() *Model {
	layout := NewLayout(LayoutConfig{Rows: 2, Cols: 2})
	return NewModel(nil, layout, nil)
}

func TestAssignSeatsZipsAgentsInOrder(t *testing.T) {
	// GIVEN four seats and three agents
	m := newTestModel()

	// WHEN seats are assigned
	m.AssignSeats([]string{"s1", "s2", "s3"}, "classroom")

	// THEN agents occupy the first seats in grid order
	loc, ok := m.LocationFor("s1")
	if !ok || loc.SeatID != "r1c1" {
		t.Fatalf("expected s1 at r1c1, got %+v ok=%v", loc, ok)
	}
	loc, _ = m.LocationFor("s3")
	if loc.SeatID != "r2c1" {
		t.Errorf("expected s3 at r2c1, got %s", loc.SeatID)
	}
}

func TestAssignSeatsOverflowStaysUnseated(t *testing.T) {
	// GIVEN one seat and two agents
	m := NewModel(nil, NewLayout(LayoutConfig{Rows: 1, Cols: 1}), nil)

	// WHEN seats are assigned
	m.AssignSeats([]string{"s1", "s2"}, "classroom")

	// THEN the overflow agent has no location entry
	if _, ok := m.LocationFor("s2"); ok {
		t.Error("expected s2 to remain unseated")
	}
}

func TestMovePreservesSeat(t *testing.T) {
	// GIVEN a seated agent
	m := newTestModel()
	m.AssignSeats([]string{"s1"}, "classroom")

	// WHEN the agent moves scenes
	m.MoveAgent("s1", "cafeteria")

	// THEN the scene changes but the seat does not
	loc, _ := m.LocationFor("s1")
	if loc.SceneID != "cafeteria" {
		t.Errorf("expected scene cafeteria, got %s", loc.SceneID)
	}
	if loc.SeatID != "r1c1" || !loc.Seated {
		t.Errorf("expected seat preserved across move, got %+v", loc)
	}
}

func TestObjectLifecycle(t *testing.T) {
	// GIVEN a world with personal objects
	m := newTestModel()
	m.EnsurePersonalObjects([]string{"s1"}, []string{"phone", "notebook"})

	// WHEN the phone is used and then returned
	if !m.UseObject("phone.s1", "s1") {
		t.Fatal("expected use to succeed")
	}
	obj, _ := m.ObjectByID("phone.s1")
	if obj.State != ObjectUsed || obj.HolderID != "s1" {
		t.Errorf("expected used by s1, got %+v", obj)
	}
	if !m.ReturnObject("phone.s1") {
		t.Fatal("expected return to succeed")
	}
	obj, _ = m.ObjectByID("phone.s1")
	if obj.State != ObjectAvailable || obj.HolderID != "" {
		t.Errorf("expected available with no holder, got %+v", obj)
	}

	// AND unknown objects report failure
	if m.UseObject("phone.ghost", "s1") {
		t.Error("expected use of unknown object to fail")
	}
}

func TestBorrowReassignsOwner(t *testing.T) {
	// GIVEN s1's notebook
	m := newTestModel()
	m.EnsurePersonalObjects([]string{"s1"}, []string{"notebook"})

	// WHEN s2 borrows it from s1
	if !m.BorrowObject("notebook.s1", "s2", "s1") {
		t.Fatal("expected borrow to succeed")
	}

	// THEN the holder and owner are recorded
	obj, _ := m.ObjectByID("notebook.s1")
	if obj.State != ObjectBorrowed || obj.HolderID != "s2" || obj.OwnerID != "s1" {
		t.Errorf("unexpected object state: %+v", obj)
	}
}

func TestPatrolVisibility(t *testing.T) {
	// GIVEN seated agents and a patrol row
	m := newTestModel()
	m.AssignSeats([]string{"s1", "s2", "s3"}, "classroom")

	// WHEN no patrol row is set, nobody is visible
	if m.IsVisible("s1") {
		t.Error("expected nobody visible without a patrol row")
	}

	// WHEN the teacher patrols row 0
	m.SetPatrolRow(0)

	// THEN only agents in that row are visible
	if !m.IsVisible("s1") {
		t.Error("expected s1 (row 0) to be visible")
	}
	if m.IsVisible("s3") {
		t.Error("expected s3 (row 1) to be hidden")
	}
}

func TestPickPeerWithBiasPrefersNeighbors(t *testing.T) {
	// GIVEN s1 seated at r1c1 with one adjacent peer and one far peer
	m := NewModel(nil, NewLayout(LayoutConfig{Rows: 1, Cols: 3}), nil)
	m.AssignSeats([]string{"s1", "near", "far"}, "classroom")
	rng := rand.New(rand.NewSource(7))

	// WHEN picking many partners with full bias
	nearCount := 0
	for i := 0; i < 200; i++ {
		peer, ok := m.PickPeerWithBias("s1", []string{"near", "far"}, rng, 1.0)
		if !ok {
			t.Fatal("expected a peer")
		}
		if peer == "near" {
			nearCount++
		}
	}

	// THEN the adjacent peer is always chosen
	if nearCount != 200 {
		t.Errorf("expected bias 1.0 to always pick the neighbor, got %d/200", nearCount)
	}
}

func TestPickPeerUnseatedFallsBackToUniform(t *testing.T) {
	// GIVEN an agent with no seat
	m := newTestModel()
	rng := rand.New(rand.NewSource(1))

	// WHEN picking a peer
	peer, ok := m.PickPeerWithBias("ghost", []string{"a", "b"}, rng, 1.0)

	// THEN a peer is still returned
	if !ok || (peer != "a" && peer != "b") {
		t.Errorf("expected uniform pick among peers, got %q ok=%v", peer, ok)
	}

	// AND an empty peer list yields nothing
	if _, ok := m.PickPeerWithBias("ghost", nil, rng, 1.0); ok {
		t.Error("expected no peer from an empty list")
	}
}

func TestSnapshotIsDeterministic(t *testing.T) {
	// GIVEN a populated world
	m := newTestModel()
	m.AssignSeats([]string{"b", "a"}, "classroom")
	m.EnsurePersonalObjects([]string{"a"}, []string{"phone"})
	m.SetPatrolRow(1)

	// WHEN snapshotting twice
	first := m.Snapshot()
	second := m.Snapshot()

	// THEN ordering is stable and the patrol row is carried
	if len(first.Agents) != 2 || first.Agents[0].AgentID != "a" {
		t.Errorf("expected agents sorted by id, got %+v", first.Agents)
	}
	if first.PatrolRow == nil || *first.PatrolRow != 1 {
		t.Error("expected patrol row 1 in snapshot")
	}
	if len(first.Objects) != len(second.Objects) || first.Agents[1].AgentID != second.Agents[1].AgentID {
		t.Error("expected snapshots to be identical")
	}
}

func TestModelSurvivesConcurrentAccess(t *testing.T) {
	// GIVEN movers, patrollers, object users, and snapshotters sharing
	// one model
	m := newTestModel()
	m.AssignSeats([]string{"a", "b", "c"}, "classroom")
	m.EnsurePersonalObjects([]string{"a"}, []string{"phone"})

	var wg sync.WaitGroup
	for worker := 0; worker < 4; worker++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				switch n {
				case 0:
					m.MoveAll([]string{"a", "b"}, "cafeteria")
					m.MoveAgent("c", "classroom")
				case 1:
					m.SetPatrolRow(i % 2)
					m.IsVisible("a")
					m.ClearPatrolRow()
				case 2:
					m.UseObject("phone.a", "a")
					m.ReturnObject("phone.a")
				case 3:
					m.Snapshot()
					m.LocationFor("b")
					m.ObjectByID("phone.a")
				}
			}
		}(worker)
	}
	wg.Wait()

	// THEN the model is still coherent
	if _, ok := m.LocationFor("a"); !ok {
		t.Error("expected agent a to keep a location")
	}
}
