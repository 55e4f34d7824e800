// Scenario loading: the YAML document that declares everything a run
// needs, from agents and seats to timetables and the perception model.

package sim

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chuanyeli/simclass/sim/calendar"
	"github.com/chuanyeli/simclass/sim/curriculum"
	"github.com/chuanyeli/simclass/sim/world"
)

// SimulationSection is the top-level run control.
type SimulationSection struct {
	Ticks       int     `yaml:"ticks"`
	TickSeconds float64 `yaml:"tick_seconds"`
	RNGSeed     int64   `yaml:"rng_seed"`
}

// AgentLLMConfig enables LLM-generated content for one agent.
type AgentLLMConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	Prompt  string `yaml:"prompt"`
}

// AgentConfig declares one agent.
type AgentConfig struct {
	ID      string             `yaml:"id"`
	Name    string             `yaml:"name"`
	Role    string             `yaml:"role"`
	Group   string             `yaml:"group"`
	Persona map[string]float64 `yaml:"persona"`
	LLM     AgentLLMConfig     `yaml:"llm"`
}

// ScriptedEvent is one hand-written event pinned to a tick.
type ScriptedEvent struct {
	Tick    int            `yaml:"tick"`
	Type    string         `yaml:"type"`
	Payload map[string]any `yaml:"payload"`
}

// RuntimeConfig tunes bus and supervisor behavior. Durations are
// fractional seconds in YAML.
type RuntimeConfig struct {
	QueueMaxSize        int     `yaml:"queue_maxsize"`
	SendTimeoutSeconds  float64 `yaml:"send_timeout"`
	SendRetries         int     `yaml:"send_retries"`
	RetryBackoffSeconds float64 `yaml:"retry_backoff"`
	RestartLimit        int     `yaml:"restart_limit"`
	RestartDelaySeconds float64 `yaml:"restart_delay"`
}

// BusConfig converts the runtime section into bus tuning knobs.
func (r RuntimeConfig) BusConfig() BusConfig {
	return BusConfig{
		QueueMaxSize: r.QueueMaxSize,
		SendTimeout:  secondsToDuration(r.SendTimeoutSeconds),
		SendRetries:  r.SendRetries,
		RetryBackoff: secondsToDuration(r.RetryBackoffSeconds),
	}
}

// RestartLimitOrDefault returns the supervisor restart budget.
func (r RuntimeConfig) RestartLimitOrDefault() int {
	if r.RestartLimit <= 0 {
		return 3
	}
	return r.RestartLimit
}

// RestartDelay returns the supervisor restart delay.
func (r RuntimeConfig) RestartDelay() time.Duration {
	if r.RestartDelaySeconds <= 0 {
		return 500 * time.Millisecond
	}
	return secondsToDuration(r.RestartDelaySeconds)
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// LLMConfig is the run-wide LLM backend configuration; per-agent
// settings can enable it selectively.
type LLMConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// APIConfig enables the HTTP control surface.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// Addr renders the listen address.
func (c APIConfig) Addr() string {
	host := c.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := c.Port
	if port == 0 {
		port = 8600
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// StorageConfig enables the SQLite store.
type StorageConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Scenario is the full parsed scenario document.
type Scenario struct {
	Simulation       SimulationSection         `yaml:"simulation"`
	Agents           []AgentConfig             `yaml:"agents"`
	Events           []ScriptedEvent           `yaml:"events"`
	Runtime          RuntimeConfig             `yaml:"runtime"`
	Behavior         BehaviorConfig            `yaml:"behavior"`
	ClassController  ClassControllerConfig     `yaml:"class_controller"`
	Calendar         calendar.ClockConfig      `yaml:"calendar"`
	Routine          calendar.RoutineConfig    `yaml:"routine"`
	Timetable        []calendar.TimetableEntry `yaml:"timetable"`
	AcademicCalendar calendar.AcademicConfig   `yaml:"academic_calendar"`
	WeekPatterns     []calendar.WeekPattern    `yaml:"week_patterns"`
	WeekPlan         []string                  `yaml:"week_plan"`
	SemesterEvents   []calendar.SemesterRule   `yaml:"semester_events"`
	Scenes           []world.Scene             `yaml:"scenes"`
	ClassroomLayout  *world.LayoutConfig       `yaml:"classroom_layout"`
	Objects          []world.Object            `yaml:"objects"`
	Curriculum       curriculum.Config         `yaml:"curriculum"`
	SocialGraph      SocialGraphConfig         `yaml:"social_graph"`
	Perception       PerceptionConfig          `yaml:"perception"`
	LLM              LLMConfig                 `yaml:"llm"`
	API              APIConfig                 `yaml:"api"`
	Storage          StorageConfig             `yaml:"storage"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := scenario.validate(); err != nil {
		return nil, err
	}
	scenario.applyDefaults()
	return &scenario, nil
}

func (s *Scenario) validate() error {
	if len(s.Agents) == 0 {
		return fmt.Errorf("scenario declares no agents")
	}
	seen := make(map[string]bool, len(s.Agents))
	for i, agent := range s.Agents {
		if agent.ID == "" {
			return fmt.Errorf("agent %d has no id", i)
		}
		if seen[agent.ID] {
			return fmt.Errorf("duplicate agent id %q", agent.ID)
		}
		seen[agent.ID] = true
		switch AgentRole(agent.Role) {
		case RoleStudent, RoleTeacher, RoleSystem:
		default:
			return fmt.Errorf("agent %q has unsupported role %q", agent.ID, agent.Role)
		}
	}
	for i, event := range s.Events {
		if event.Tick <= 0 {
			return fmt.Errorf("scripted event %d has non-positive tick %d", i, event.Tick)
		}
		if event.Type == "" {
			return fmt.Errorf("scripted event %d has no type", i)
		}
	}
	return nil
}

func (s *Scenario) applyDefaults() {
	if s.Simulation.Ticks <= 0 {
		s.Simulation.Ticks = 20
	}
	if s.Simulation.TickSeconds < 0 {
		s.Simulation.TickSeconds = 0
	}
	if s.Simulation.RNGSeed == 0 {
		s.Simulation.RNGSeed = 1
	}
	for i := range s.Agents {
		if s.Agents[i].Name == "" {
			s.Agents[i].Name = s.Agents[i].ID
		}
		if s.Agents[i].Group == "" {
			s.Agents[i].Group = "class-a"
		}
	}
}

// Profiles converts the agent section into runtime profiles.
func (s *Scenario) Profiles() []AgentProfile {
	profiles := make([]AgentProfile, 0, len(s.Agents))
	for _, agent := range s.Agents {
		profiles = append(profiles, AgentProfile{
			AgentID: agent.ID,
			Name:    agent.Name,
			Role:    AgentRole(agent.Role),
			Group:   agent.Group,
			Persona: agent.Persona,
		})
	}
	return profiles
}

// EventsForTick returns the scripted events pinned to one tick.
func (s *Scenario) EventsForTick(tick int) []ScriptedEvent {
	var out []ScriptedEvent
	for _, event := range s.Events {
		if event.Tick == tick {
			out = append(out, event)
		}
	}
	return out
}
