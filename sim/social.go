package sim

import "math/rand"

// SocialGraphConfig declares relationship pairs. Pairs are symmetric;
// entries naming unknown agents are dropped at build time.
type SocialGraphConfig struct {
	Friends   [][]string `yaml:"friends"`
	Conflicts [][]string `yaml:"conflicts"`
	Seatmates [][]string `yaml:"seatmates"`
}

// SocialGraph scores pairwise affinity between agents and supports
// affinity-weighted partner selection. Weights are computed on demand:
// base 1.0, +1.0 for friends, +0.5 for seatmates, then scaled by 0.4
// for conflicting pairs.
type SocialGraph struct {
	friends   map[string]map[string]bool
	conflicts map[string]map[string]bool
	seatmates map[string]map[string]bool
}

// NewSocialGraph builds the graph from config, keeping only pairs whose
// both ends appear in knownIDs.
func NewSocialGraph(cfg SocialGraphConfig, knownIDs []string) *SocialGraph {
	known := make(map[string]bool, len(knownIDs))
	for _, id := range knownIDs {
		known[id] = true
	}
	g := &SocialGraph{
		friends:   buildPairSet(cfg.Friends, known),
		conflicts: buildPairSet(cfg.Conflicts, known),
		seatmates: buildPairSet(cfg.Seatmates, known),
	}
	return g
}

func buildPairSet(pairs [][]string, known map[string]bool) map[string]map[string]bool {
	set := make(map[string]map[string]bool)
	link := func(a, b string) {
		if set[a] == nil {
			set[a] = make(map[string]bool)
		}
		set[a][b] = true
	}
	for _, pair := range pairs {
		if len(pair) != 2 {
			continue
		}
		a, b := pair[0], pair[1]
		if a == b || !known[a] || !known[b] {
			continue
		}
		link(a, b)
		link(b, a)
	}
	return set
}

// Weight returns the affinity between two agents.
func (g *SocialGraph) Weight(a, b string) float64 {
	weight := 1.0
	if g.friends[a][b] {
		weight += 1.0
	}
	if g.seatmates[a][b] {
		weight += 0.5
	}
	if g.conflicts[a][b] {
		weight *= 0.4
	}
	return weight
}

// PickPartner chooses a partner among candidates with probability
// proportional to affinity. A non-positive total falls back to a
// uniform pick; an empty candidate list yields no partner.
func (g *SocialGraph) PickPartner(agentID string, candidates []string, rng *rand.Rand) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	weights := make([]float64, len(candidates))
	total := 0.0
	for i, candidateID := range candidates {
		weights[i] = g.Weight(agentID, candidateID)
		total += weights[i]
	}
	if total <= 0 {
		return candidates[rng.Intn(len(candidates))], true
	}
	threshold := rng.Float64() * total
	cumulative := 0.0
	for i, candidateID := range candidates {
		cumulative += weights[i]
		if cumulative >= threshold {
			return candidateID, true
		}
	}
	return candidates[len(candidates)-1], true
}
