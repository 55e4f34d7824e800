package world

import (
	"math/rand"
	"sort"
	"sync"
)

// Object states. Transitions are total functions: borrow/use always
// succeed when the object exists, regardless of prior state
// (last-writer-wins, not a strict state machine).
const (
	ObjectAvailable = "available"
	ObjectBorrowed  = "borrowed"
	ObjectUsed      = "used"
)

// Location is one agent's position: a scene plus an optional seat. The
// Model is the sole writer; locations are overwritten on move.
type Location struct {
	SceneID string
	SeatID  string
	Row     int
	Col     int
	Seated  bool
}

// Scene is one named place agents can occupy (classroom, cafeteria, ...).
type Scene struct {
	SceneID   string `yaml:"id"`
	SceneType string `yaml:"type"`
}

// Object is a mutable world item (a phone, a notebook). The Model owns
// the object table; behaviors mutate objects only through Model methods.
type Object struct {
	ObjectID   string `yaml:"id"`
	ObjectType string `yaml:"type"`
	SceneID    string `yaml:"scene_id"`
	State      string `yaml:"state"`
	HolderID   string `yaml:"-"`
	OwnerID    string `yaml:"-"`
}

// Model owns agent locations, scenes, objects, and the patrol row.
// Agent goroutines, the orchestrator, and the control surface all touch
// it concurrently; every method takes the model lock. The scene table
// and the layout are immutable after construction.
type Model struct {
	mu        sync.RWMutex
	scenes    map[string]Scene
	layout    *Layout
	objects   map[string]*Object
	locations map[string]Location
	patrolRow int
	patrolSet bool
}

// NewModel builds a world from scenes, an optional layout, and the
// initial object set. With no scenes configured, a single "classroom"
// scene is assumed.
func NewModel(scenes []Scene, layout *Layout, objects []Object) *Model {
	m := &Model{
		scenes:    make(map[string]Scene),
		layout:    layout,
		objects:   make(map[string]*Object),
		locations: make(map[string]Location),
	}
	for _, scene := range scenes {
		if scene.SceneID == "" {
			continue
		}
		if scene.SceneType == "" {
			scene.SceneType = "classroom"
		}
		m.scenes[scene.SceneID] = scene
	}
	if len(m.scenes) == 0 {
		m.scenes["classroom"] = Scene{SceneID: "classroom", SceneType: "classroom"}
	}
	for _, obj := range objects {
		if obj.ObjectID == "" {
			continue
		}
		copied := obj
		if copied.State == "" {
			copied.State = ObjectAvailable
		}
		if copied.SceneID == "" {
			copied.SceneID = "classroom"
		}
		m.objects[copied.ObjectID] = &copied
	}
	return m
}

// Layout returns the seat grid, or nil when the world has none.
func (m *Model) Layout() *Layout { return m.layout }

// HasScene reports whether a scene id is known.
func (m *Model) HasScene(sceneID string) bool {
	_, ok := m.scenes[sceneID]
	return ok
}

// AssignSeats zips agent ids to available seats in iteration order:
// first come, first seated. Agents beyond the seat count stay unseated.
func (m *Model) AssignSeats(agentIDs []string, sceneID string) {
	if m.layout == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	seats := m.layout.AvailableSeats()
	for i, agentID := range agentIDs {
		if i >= len(seats) {
			break
		}
		pos, _ := m.layout.SeatPosition(seats[i])
		m.locations[agentID] = Location{
			SceneID: sceneID,
			SeatID:  seats[i],
			Row:     pos.Row,
			Col:     pos.Col,
			Seated:  true,
		}
	}
}

// EnsurePersonalObjects creates one object of each type per agent
// (id "<type>.<agent>") unless it already exists.
func (m *Model) EnsurePersonalObjects(agentIDs []string, types []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, agentID := range agentIDs {
		for _, objType := range types {
			objectID := objType + "." + agentID
			if _, exists := m.objects[objectID]; exists {
				continue
			}
			m.objects[objectID] = &Object{
				ObjectID:   objectID,
				ObjectType: objType,
				SceneID:    "classroom",
				State:      ObjectAvailable,
				OwnerID:    agentID,
			}
		}
	}
}

// LocationFor returns an agent's location.
func (m *Model) LocationFor(agentID string) (Location, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.locations[agentID]
	return loc, ok
}

// MoveAgent changes an agent's scene while preserving its seat.
func (m *Model) MoveAgent(agentID, sceneID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.move(agentID, sceneID)
}

// MoveAll moves a set of agents to one scene.
func (m *Model) MoveAll(agentIDs []string, sceneID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, agentID := range agentIDs {
		m.move(agentID, sceneID)
	}
}

// move requires the model lock.
func (m *Model) move(agentID, sceneID string) {
	current := m.locations[agentID]
	current.SceneID = sceneID
	m.locations[agentID] = current
}

// AdjacentSeats proxies the layout's 4-neighborhood.
func (m *Model) AdjacentSeats(seatID string) []string {
	if m.layout == nil {
		return nil
	}
	return m.layout.AdjacentSeats(seatID)
}

// AreAdjacent proxies the layout's adjacency test.
func (m *Model) AreAdjacent(seatA, seatB string) bool {
	if m.layout == nil {
		return false
	}
	return m.layout.AreAdjacent(seatA, seatB)
}

// PickPeerWithBias selects a discussion partner. An unseated agent picks
// uniformly; a seated one picks among seat-adjacent peers with
// probability bias, otherwise uniformly among all peers.
func (m *Model) PickPeerWithBias(agentID string, peers []string, rng *rand.Rand, bias float64) (string, bool) {
	if len(peers) == 0 {
		return "", false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	location, ok := m.locations[agentID]
	if !ok || !location.Seated {
		return peers[rng.Intn(len(peers))], true
	}
	var adjacent []string
	for _, peerID := range peers {
		peerLoc, ok := m.locations[peerID]
		if ok && peerLoc.Seated && m.AreAdjacent(location.SeatID, peerLoc.SeatID) {
			adjacent = append(adjacent, peerID)
		}
	}
	if len(adjacent) > 0 && rng.Float64() < bias {
		return adjacent[rng.Intn(len(adjacent))], true
	}
	return peers[rng.Intn(len(peers))], true
}

// SetPatrolRow marks the row the teacher is currently watching.
func (m *Model) SetPatrolRow(row int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patrolRow = row
	m.patrolSet = true
}

// ClearPatrolRow removes the patrol marker.
func (m *Model) ClearPatrolRow() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patrolSet = false
}

// IsVisible reports whether an agent sits in the patrolled row. With no
// patrol row set, nobody is visible.
func (m *Model) IsVisible(agentID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.patrolSet {
		return false
	}
	location, ok := m.locations[agentID]
	if !ok || !location.Seated {
		return false
	}
	return location.Row == m.patrolRow
}

// ObjectsByType lists copies of objects of one type, sorted by id for
// determinism.
func (m *Model) ObjectsByType(objectType string) []Object {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Object
	for _, obj := range m.objects {
		if obj.ObjectType == objectType {
			out = append(out, *obj)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObjectID < out[j].ObjectID })
	return out
}

// ObjectByID returns a copy of a single object.
func (m *Model) ObjectByID(objectID string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[objectID]
	if !ok {
		return Object{}, false
	}
	return *obj, true
}

// BorrowObject marks the object borrowed by the actor, optionally
// reassigning its owner. Returns false only when the object is unknown.
func (m *Model) BorrowObject(objectID, actorID, fromID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[objectID]
	if !ok {
		return false
	}
	obj.State = ObjectBorrowed
	obj.HolderID = actorID
	if fromID != "" {
		obj.OwnerID = fromID
	}
	return true
}

// UseObject marks the object in use by the actor.
func (m *Model) UseObject(objectID, actorID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[objectID]
	if !ok {
		return false
	}
	obj.State = ObjectUsed
	obj.HolderID = actorID
	return true
}

// ReturnObject resets the object to available and clears its holder.
func (m *Model) ReturnObject(objectID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[objectID]
	if !ok {
		return false
	}
	obj.State = ObjectAvailable
	obj.HolderID = ""
	return true
}

// AgentSnapshot is one row of the world snapshot.
type AgentSnapshot struct {
	AgentID string `json:"agent_id"`
	SceneID string `json:"scene_id"`
	SeatID  string `json:"seat_id,omitempty"`
	Row     int    `json:"row"`
	Col     int    `json:"col"`
	Seated  bool   `json:"seated"`
}

// ObjectSnapshot is one object row of the world snapshot.
type ObjectSnapshot struct {
	ObjectID string `json:"id"`
	Type     string `json:"type"`
	State    string `json:"state"`
	HolderID string `json:"holder_id,omitempty"`
	OwnerID  string `json:"owner_id,omitempty"`
	SceneID  string `json:"scene_id,omitempty"`
}

// Snapshot captures the whole world for the control surface.
type Snapshot struct {
	Scenes    []Scene          `json:"scenes"`
	Agents    []AgentSnapshot  `json:"agents"`
	Objects   []ObjectSnapshot `json:"objects"`
	PatrolRow *int             `json:"patrol_row,omitempty"`
}

// Snapshot returns a deterministic copy of the world state.
func (m *Model) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var snap Snapshot
	for _, scene := range m.scenes {
		snap.Scenes = append(snap.Scenes, scene)
	}
	sort.Slice(snap.Scenes, func(i, j int) bool { return snap.Scenes[i].SceneID < snap.Scenes[j].SceneID })
	for agentID, loc := range m.locations {
		snap.Agents = append(snap.Agents, AgentSnapshot{
			AgentID: agentID,
			SceneID: loc.SceneID,
			SeatID:  loc.SeatID,
			Row:     loc.Row,
			Col:     loc.Col,
			Seated:  loc.Seated,
		})
	}
	sort.Slice(snap.Agents, func(i, j int) bool { return snap.Agents[i].AgentID < snap.Agents[j].AgentID })
	for _, obj := range m.objects {
		snap.Objects = append(snap.Objects, ObjectSnapshot{
			ObjectID: obj.ObjectID,
			Type:     obj.ObjectType,
			State:    obj.State,
			HolderID: obj.HolderID,
			OwnerID:  obj.OwnerID,
			SceneID:  obj.SceneID,
		})
	}
	sort.Slice(snap.Objects, func(i, j int) bool { return snap.Objects[i].ObjectID < snap.Objects[j].ObjectID })
	if m.patrolSet {
		row := m.patrolRow
		snap.PatrolRow = &row
	}
	return snap
}
