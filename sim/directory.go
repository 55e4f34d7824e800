package sim

// AgentDirectory is a read-only index of agent profiles by id and by
// (group, role). It is built once at startup; the synthetic group "all"
// always contains every agent.
type AgentDirectory struct {
	profiles map[string]AgentProfile
	groups   map[string][]string
	order    []string
}

// NewAgentDirectory indexes the given profiles. Insertion order is
// preserved so that seat assignment and broadcasts are deterministic.
func NewAgentDirectory(profiles []AgentProfile) *AgentDirectory {
	d := &AgentDirectory{
		profiles: make(map[string]AgentProfile, len(profiles)),
		groups:   make(map[string][]string),
	}
	for _, profile := range profiles {
		if _, exists := d.profiles[profile.AgentID]; exists {
			continue
		}
		d.profiles[profile.AgentID] = profile
		d.groups[profile.Group] = append(d.groups[profile.Group], profile.AgentID)
		d.order = append(d.order, profile.AgentID)
	}
	d.groups["all"] = append([]string(nil), d.order...)
	return d
}

// AllAgents returns every agent id in registration order.
func (d *AgentDirectory) AllAgents() []string {
	return append([]string(nil), d.order...)
}

// Profile looks up an agent's profile.
func (d *AgentDirectory) Profile(agentID string) (AgentProfile, bool) {
	profile, ok := d.profiles[agentID]
	return profile, ok
}

// GroupMembers returns the member ids of a group, optionally filtered by
// role (empty role means no filter).
func (d *AgentDirectory) GroupMembers(group string, role AgentRole) []string {
	members := d.groups[group]
	if role == "" {
		return append([]string(nil), members...)
	}
	var out []string
	for _, agentID := range members {
		if d.profiles[agentID].Role == role {
			out = append(out, agentID)
		}
	}
	return out
}
