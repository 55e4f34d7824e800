// Implements the Simulation orchestrator: builds every component from a
// scenario, drives the tick loop, and fans scheduled, scripted, and
// class-phase events out onto the bus.

package sim

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chuanyeli/simclass/sim/calendar"
	"github.com/chuanyeli/simclass/sim/curriculum"
	"github.com/chuanyeli/simclass/sim/world"
)

const (
	agentReadyTimeout  = 1500 * time.Millisecond
	agentReadyInterval = 20 * time.Millisecond
	reviewConceptSpan  = 3
)

var personalObjectTypes = []string{"phone", "snack", "notebook", "paper_note"}

// sceneForAction maps routine actions to the scene students move to.
var sceneForAction = map[string]string{
	calendar.ActionBreakfastStart:   "cafeteria",
	calendar.ActionLunchStart:       "cafeteria",
	calendar.ActionMorningClasses:   "classroom",
	calendar.ActionAfternoonClasses: "classroom",
	calendar.ActionTestStart:        "classroom",
	calendar.ActionSchoolEnd:        "corridor",
}

// Simulation owns one run: the bus, the supervised agents, the world,
// and the tick loop that stitches the schedule into agent traffic.
type Simulation struct {
	scenario   *Scenario
	rng        *PartitionedRNG
	directory  *AgentDirectory
	world      *world.Model
	social     *SocialGraph
	bus        *AsyncMessageBus
	perception *PerceptionEngine
	supervisor *AgentSupervisor
	controller *ClassController
	generator  *calendar.Generator
	tracker    *curriculum.Tracker
	store      MemoryStore // optional
	logger     *logrus.Entry

	gate   *gate
	cancel context.CancelFunc

	mu            sync.Mutex
	tick          int
	running       bool
	lastDayIndex  int
	taught        map[string][]string
	conceptsByDay map[int]map[string][]string
}

// NewSimulation builds a run from a scenario. store may be nil;
// responders maps agent ids to optional LLM responders.
func NewSimulation(scenario *Scenario, store MemoryStore, responders map[string]Responder) *Simulation {
	rng := NewPartitionedRNG(NewSimulationKey(scenario.Simulation.RNGSeed))
	directory := NewAgentDirectory(scenario.Profiles())

	layoutConfig := world.LayoutConfig{Rows: 4, Cols: 5}
	if scenario.ClassroomLayout != nil {
		layoutConfig = *scenario.ClassroomLayout
	}
	model := world.NewModel(scenario.Scenes, world.NewLayout(layoutConfig), scenario.Objects)
	students := directory.GroupMembers("all", RoleStudent)
	model.AssignSeats(students, "classroom")
	model.EnsurePersonalObjects(students, personalObjectTypes)

	social := NewSocialGraph(scenario.SocialGraph, directory.AllAgents())
	tracker := curriculum.NewTracker(scenario.Curriculum)

	bus := NewAsyncMessageBus(scenario.Runtime.BusConfig())
	if store != nil {
		bus.SetDropHandler(store.RecordDeadLetter)
	}
	perception := NewPerceptionEngine(scenario.Perception, directory, model,
		newLockedSource(rng.ForSubsystem(SubsystemPerception)), store)
	perception.Install(bus)

	clock := calendar.NewClock(scenario.Calendar)
	generator := calendar.NewGenerator(
		clock,
		calendar.NewTimetable(scenario.Timetable, clock),
		calendar.NewDailyRoutine(scenario.Routine, clock),
		calendar.NewAcademicCalendar(scenario.AcademicCalendar),
		calendar.NewSemesterEvents(scenario.SemesterEvents),
		scenario.WeekPlan,
		scenario.WeekPatterns,
		tracker,
		rng.ForSubsystem(SubsystemSchedule),
	)

	s := &Simulation{
		scenario:      scenario,
		rng:           rng,
		directory:     directory,
		world:         model,
		social:        social,
		bus:           bus,
		perception:    perception,
		supervisor:    NewAgentSupervisor(scenario.Runtime.RestartLimitOrDefault(), scenario.Runtime.RestartDelay()),
		controller:    NewClassController(scenario.ClassController),
		generator:     generator,
		tracker:       tracker,
		store:         store,
		logger:        logrus.WithField("component", "simulation"),
		gate:          newGate(),
		lastDayIndex:  0,
		taught:        make(map[string][]string),
		conceptsByDay: make(map[int]map[string][]string),
	}

	for _, agentID := range directory.AllAgents() {
		p, _ := directory.Profile(agentID)
		agentRNG := rng.ForSubsystem(SubsystemAgent(p.AgentID))
		var behavior Behavior
		switch p.Role {
		case RoleTeacher:
			behavior = NewTeacherBehavior(p, agentRNG, directory, model, tracker, store, responders[p.AgentID])
		case RoleSystem:
			behavior = systemBehavior{}
		default:
			behavior = NewStudentBehavior(p, scenario.Behavior, agentRNG, directory, model, social, store, responders[p.AgentID])
		}
		s.supervisor.Add(p.AgentID, NewAgent(p, bus, behavior, store))
	}
	return s
}

// World exposes the world model for the control surface.
func (s *Simulation) World() *world.Model { return s.world }

// Run executes the whole simulation and blocks until it finishes. The
// context cancels the run early; Stop does the same from another
// goroutine.
func (s *Simulation) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()
	defer cancel()

	supervisorDone := make(chan struct{})
	go func() {
		s.supervisor.Start(runCtx)
		close(supervisorDone)
	}()

	all := s.directory.AllAgents()
	if !s.bus.WaitForAgents(all, agentReadyTimeout, agentReadyInterval) {
		s.logger.Warn("not all agents registered in time")
	}

	tickDelay := time.Duration(s.scenario.Simulation.TickSeconds * float64(time.Second))
	for tick := 1; tick <= s.scenario.Simulation.Ticks; tick++ {
		if !s.gate.Wait(runCtx) {
			break
		}
		if runCtx.Err() != nil {
			break
		}
		s.mu.Lock()
		s.tick = tick
		s.mu.Unlock()
		s.dispatchTick(tick)
		if s.store != nil {
			s.store.SetLastTick(tick)
		}
		if tickDelay > 0 {
			select {
			case <-time.After(tickDelay):
			case <-runCtx.Done():
			}
		}
	}

	s.bus.EmitSystem(SystemEvent{EventType: EventShutdown}, all)
	select {
	case <-supervisorDone:
	case <-time.After(2 * time.Second):
		cancel()
		<-supervisorDone
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warnf("store close: %v", err)
		}
	}
	return ctx.Err()
}

// dispatchTick emits everything tied to one tick: the tick signal,
// scheduled events, scripted events, and due class phases.
func (s *Simulation) dispatchTick(tick int) {
	all := s.directory.AllAgents()
	students := s.directory.GroupMembers("all", RoleStudent)
	s.bus.EmitSystem(SystemEvent{EventType: "tick", Payload: map[string]any{"tick": tick}}, all)

	timeInfo := s.generator.TimeForTick(tick)
	if timeInfo.DayIndex != s.lastDayIndex {
		days := timeInfo.DayIndex - s.lastDayIndex
		s.lastDayIndex = timeInfo.DayIndex
		s.bus.EmitSystem(SystemEvent{EventType: "day_transition", Payload: map[string]any{
			"days": days, "weekday": timeInfo.Weekday,
		}}, students)
	}

	for _, event := range s.generator.EventsForTick(tick) {
		s.dispatchScheduled(tick, timeInfo, event)
	}
	for _, scripted := range s.scenario.EventsForTick(tick) {
		s.dispatchScripted(scripted)
	}
	for _, phase := range s.controller.DueEvents(tick) {
		s.dispatchPhase(phase)
	}
}

func (s *Simulation) dispatchScheduled(tick int, timeInfo calendar.TimeInfo, event calendar.Event) {
	students := s.directory.GroupMembers("all", RoleStudent)
	switch event.Type {
	case calendar.EventClassSession:
		s.controller.Register(tick, event.Payload)
		if rows := s.world.Layout().Rows(); rows > 0 {
			s.world.SetPatrolRow(s.rng.ForSubsystem(SubsystemSimulation).Intn(rows))
		}
		s.recordConcepts(timeInfo.DayIndex, payloadString(event.Payload, "group", "all"),
			payloadStrings(event.Payload, "concepts"))
	case calendar.EventReview:
		for group, concepts := range s.taught {
			recent := lastN(concepts, reviewConceptSpan)
			payload := map[string]any{
				"action":    payloadString(event.Payload, "action", ""),
				"intensity": event.Payload["intensity"],
				"concepts":  recent,
			}
			s.bus.EmitSystem(SystemEvent{EventType: calendar.EventReview, Payload: payload},
				s.directory.GroupMembers(group, RoleStudent))
		}
	case calendar.EventDailyTest:
		s.dispatchDailyTest(timeInfo, event)
	default: // announcement, activity
		content := payloadString(event.Payload, "content", "")
		if content != "" {
			s.bus.Broadcast(Message{SenderID: "system", Topic: "announcement", Content: content, Timestamp: unixNow()},
				s.directory.AllAgents())
		}
		if action := payloadString(event.Payload, "action", ""); action != "" {
			if scene, ok := sceneForAction[action]; ok && s.world.HasScene(scene) {
				s.world.MoveAll(students, scene)
			}
			s.bus.EmitSystem(SystemEvent{EventType: "routine", Payload: map[string]any{"action": action}}, students)
		}
	}
}

// dispatchDailyTest hands the previous day's concepts to each group's
// teacher to run the test.
func (s *Simulation) dispatchDailyTest(timeInfo calendar.TimeInfo, event calendar.Event) {
	prevDay := s.conceptsByDay[timeInfo.DayIndex-1]
	for group := range s.taught {
		concepts := prevDay[group]
		if len(concepts) == 0 {
			concepts = lastN(s.taught[group], reviewConceptSpan)
		}
		if len(concepts) == 0 {
			continue
		}
		teachers := s.directory.GroupMembers(group, RoleTeacher)
		if len(teachers) == 0 {
			continue
		}
		payload := map[string]any{"concepts": concepts, "date": event.Payload["date"]}
		s.bus.EmitSystem(SystemEvent{EventType: calendar.EventDailyTest, Payload: payload}, teachers[:1])
	}
}

func (s *Simulation) dispatchScripted(scripted ScriptedEvent) {
	payload := scripted.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	switch scripted.Type {
	case "announcement":
		content := payloadString(payload, "content", "")
		s.bus.Broadcast(Message{SenderID: "system", Topic: "announcement", Content: content, Timestamp: unixNow()},
			s.directory.AllAgents())
	case calendar.EventClassSession:
		s.controller.Register(scripted.Tick, payload)
	case "student_discuss", EventGroupDiscussion:
		group := payloadString(payload, "group", "all")
		s.bus.EmitSystem(SystemEvent{EventType: scripted.Type, Payload: payload},
			s.directory.GroupMembers(group, RoleStudent))
	default:
		recipients := s.directory.AllAgents()
		if teacherID := payloadString(payload, "teacher_id", ""); teacherID != "" {
			recipients = []string{teacherID}
		}
		s.bus.EmitSystem(SystemEvent{EventType: scripted.Type, Payload: payload}, recipients)
	}
}

// dispatchPhase routes controller output: discussion and question
// phases go to the group's students, lecture and summary to its teacher.
func (s *Simulation) dispatchPhase(phase SystemEvent) {
	group := payloadString(phase.Payload, "group", "all")
	switch phase.EventType {
	case EventGroupDiscussion, EventPhaseQuestions:
		s.bus.EmitSystem(phase, s.directory.GroupMembers(group, RoleStudent))
	default:
		recipients := s.directory.GroupMembers(group, RoleTeacher)
		if teacherID := payloadString(phase.Payload, "teacher_id", ""); teacherID != "" {
			recipients = []string{teacherID}
		}
		s.bus.EmitSystem(phase, recipients)
	}
}

func (s *Simulation) recordConcepts(dayIndex int, group string, concepts []string) {
	if len(concepts) == 0 {
		return
	}
	s.taught[group] = append(s.taught[group], concepts...)
	if s.conceptsByDay[dayIndex] == nil {
		s.conceptsByDay[dayIndex] = make(map[string][]string)
	}
	s.conceptsByDay[dayIndex][group] = append(s.conceptsByDay[dayIndex][group], concepts...)
}

// Pause halts the tick loop before the next tick. Agents keep draining
// their mailboxes.
func (s *Simulation) Pause() { s.gate.Pause() }

// Resume releases a paused tick loop.
func (s *Simulation) Resume() { s.gate.Resume() }

// Stop ends the run early. Safe to call from any goroutine.
func (s *Simulation) Stop() {
	s.gate.Resume()
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Status reports the run's current position for the control surface.
func (s *Simulation) Status() map[string]any {
	s.mu.Lock()
	tick := s.tick
	running := s.running
	s.mu.Unlock()
	status := map[string]any{
		"tick":        tick,
		"running":     running,
		"paused":      s.gate.Paused(),
		"agent_count": len(s.directory.AllAgents()),
		"ticks_total": s.scenario.Simulation.Ticks,
	}
	if tick > 0 {
		timeInfo := s.generator.TimeForTick(tick)
		dayInfo := s.generator.DayInfoForTick(tick)
		status["sim_time"] = map[string]any{
			"weekday":    timeInfo.Weekday,
			"clock_time": timeInfo.ClockTime,
			"day_index":  timeInfo.DayIndex,
			"date":       dayInfo.Date,
			"week":       dayInfo.WeekIndex,
			"school_day": dayInfo.SchoolDay,
		}
	}
	return status
}

func lastN(items []string, n int) []string {
	if len(items) <= n {
		return append([]string(nil), items...)
	}
	return append([]string(nil), items[len(items)-n:]...)
}
