package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chuanyeli/simclass/sim"
)

func testSimulation(t *testing.T) *sim.Simulation {
	t.Helper()
	scenario, err := sim.ParseScenario([]byte(`
simulation:
  ticks: 5
agents:
  - id: t1
    role: teacher
  - id: s1
    role: student
`))
	if err != nil {
		t.Fatal(err)
	}
	return sim.NewSimulation(scenario, nil, nil)
}

func TestStatusEndpoint(t *testing.T) {
	server := NewServer("127.0.0.1:0", testSimulation(t))

	recorder := httptest.NewRecorder()
	server.handleStatus(recorder, httptest.NewRequest(http.MethodGet, "/status", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var status map[string]any
	if err := json.NewDecoder(recorder.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status["agent_count"] != float64(2) {
		t.Errorf("expected 2 agents, got %v", status["agent_count"])
	}
	if status["running"] != false {
		t.Errorf("expected not running before start, got %v", status["running"])
	}
}

func TestPauseResumeEndpoints(t *testing.T) {
	simulation := testSimulation(t)
	server := NewServer("127.0.0.1:0", simulation)

	recorder := httptest.NewRecorder()
	server.handlePause(recorder, httptest.NewRequest(http.MethodPost, "/pause", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if simulation.Status()["paused"] != true {
		t.Error("expected the simulation paused")
	}

	server.handleResume(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/resume", nil))
	if simulation.Status()["paused"] != false {
		t.Error("expected the simulation resumed")
	}
}

func TestWorldEndpoint(t *testing.T) {
	server := NewServer("127.0.0.1:0", testSimulation(t))

	recorder := httptest.NewRecorder()
	server.handleWorld(recorder, httptest.NewRequest(http.MethodGet, "/world", nil))

	var snapshot struct {
		Agents []struct {
			AgentID string `json:"agent_id"`
		} `json:"agents"`
	}
	if err := json.NewDecoder(recorder.Body).Decode(&snapshot); err != nil {
		t.Fatal(err)
	}
	// Only the student is seated; the teacher has no location yet.
	if len(snapshot.Agents) != 1 || snapshot.Agents[0].AgentID != "s1" {
		t.Errorf("expected the seated student in the snapshot, got %+v", snapshot.Agents)
	}
}
