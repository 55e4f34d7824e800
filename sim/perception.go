// Implements the PerceptionEngine: the bus filter that decides whether
// a receiver actually perceives a message, and in what shape. Delivery
// probability decays with seat distance; low-probability deliveries
// arrive degraded, and noise reaching a teacher arrives masked, carrying
// only a suspected row and a suspicion score instead of the sender.

package sim

import (
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/chuanyeli/simclass/sim/world"
)

// Perception channels. The channel picks which range applies and
// whether occlusion can attenuate the signal.
const (
	ChannelHearing = "hearing"
	ChannelVision  = "vision"
	ChannelBypass  = "bypass"
)

// Message event types recorded around perception decisions.
const (
	EventTrue               = "true_event"
	EventPerceived          = "perceived_event"
	EventSuspicionUpdate    = "suspicion_update"
	EventObserverPerception = "observer_perception"
)

const degradePreview = 24

// DecayLinear and DecayExponential select the distance falloff model.
const (
	DecayLinear      = "linear"
	DecayExponential = "exponential"
)

// AgentPerception overrides perception parameters for one agent or one
// role. Unset fields fall through to the next layer.
type AgentPerception struct {
	VisionRange     *float64 `yaml:"vision_range"`
	HearingRange    *float64 `yaml:"hearing_range"`
	Decay           string   `yaml:"decay"`
	Alpha           *float64 `yaml:"alpha"`
	OcclusionFactor *float64 `yaml:"occlusion_factor"`
	OccludedSeats   []string `yaml:"occluded_seats"`
}

// ObserverConfig tunes third-party eavesdropping on direct messages.
type ObserverConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Topic        string   `yaml:"topic"`
	Chance       float64  `yaml:"chance"`
	Roles        []string `yaml:"roles"`
	Topics       []string `yaml:"topics"`
	LogObservers bool     `yaml:"log_observers"`
}

// PerceptionConfig is the scenario-level perception section.
type PerceptionConfig struct {
	Enabled          bool                       `yaml:"enabled"`
	VisionRange      float64                    `yaml:"vision_range"`
	HearingRange     float64                    `yaml:"hearing_range"`
	Decay            string                     `yaml:"decay"`
	Alpha            float64                    `yaml:"alpha"`
	OcclusionFactor  float64                    `yaml:"occlusion_factor"`
	DegradeThreshold float64                    `yaml:"degrade_threshold"`
	BypassTopics     []string                   `yaml:"bypass_topics"`
	VisionTopics     []string                   `yaml:"vision_topics"`
	SuspicionTopics  []string                   `yaml:"suspicion_topics"`
	MaskSenderTopics []string                   `yaml:"mask_sender_topics"`
	Observer         ObserverConfig             `yaml:"observer"`
	Roles            map[string]AgentPerception `yaml:"roles"`
	Agents           map[string]AgentPerception `yaml:"agents"`
}

func (c PerceptionConfig) withDefaults() PerceptionConfig {
	if c.VisionRange == 0 {
		c.VisionRange = 5.0
	}
	if c.HearingRange == 0 {
		c.HearingRange = 6.0
	}
	if c.Decay == "" {
		c.Decay = DecayLinear
	}
	if c.Alpha == 0 {
		c.Alpha = 0.6
	}
	if c.OcclusionFactor == 0 {
		c.OcclusionFactor = 0.5
	}
	if c.DegradeThreshold == 0 {
		c.DegradeThreshold = 0.35
	}
	if c.Observer.Topic == "" {
		c.Observer.Topic = "overheard"
	}
	if c.Observer.Chance == 0 {
		c.Observer.Chance = 0.4
	}
	if len(c.Observer.Roles) == 0 {
		c.Observer.Roles = []string{string(RoleTeacher)}
	}
	return c
}

// perceptionResult is one evaluated sender-to-receiver signal.
type perceptionResult struct {
	probability float64
	distance    *int
	channel     string
}

// PerceptionEngine evaluates delivery probability and rewrites or
// vetoes messages accordingly. It is installed on the bus as the
// MessageFilter and MessageObserver.
type PerceptionEngine struct {
	config    PerceptionConfig
	directory *AgentDirectory
	world     *world.Model
	rng       rngSource
	store     MemoryStore // optional
	logger    *logrus.Entry

	bypass    map[string]bool
	vision    map[string]bool
	suspicion map[string]bool
	mask      map[string]bool
	obsTopics map[string]bool
	obsRoles  map[string]bool
}

// rngSource is the slice of *rand.Rand the engine actually uses, kept
// narrow so tests can drive decisions deterministically.
type rngSource interface {
	Float64() float64
}

// NewPerceptionEngine wires the engine. store may be nil.
func NewPerceptionEngine(config PerceptionConfig, directory *AgentDirectory, model *world.Model, rng rngSource, store MemoryStore) *PerceptionEngine {
	cfg := config.withDefaults()
	return &PerceptionEngine{
		config:    cfg,
		directory: directory,
		world:     model,
		rng:       rng,
		store:     store,
		logger:    logrus.WithField("component", "perception"),
		bypass:    stringSet(cfg.BypassTopics),
		vision:    stringSet(cfg.VisionTopics),
		suspicion: stringSet(cfg.SuspicionTopics),
		mask:      stringSet(cfg.MaskSenderTopics),
		obsTopics: stringSet(cfg.Observer.Topics),
		obsRoles:  stringSet(cfg.Observer.Roles),
	}
}

func stringSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

// Install registers the engine's hooks on the bus.
func (e *PerceptionEngine) Install(bus *AsyncMessageBus) {
	bus.SetMessageFilter(e.FilterMessage)
	if e.config.Observer.Enabled {
		bus.SetMessageObserver(e.ObserverMessages)
	}
}

// FilterMessage is the bus filter hook. It may pass the message through
// unchanged, rewrite it (masked or degraded), or veto it entirely.
func (e *PerceptionEngine) FilterMessage(msg Message, receiverID string) (Message, bool) {
	if !e.config.Enabled {
		return msg, true
	}
	receiver, ok := e.directory.Profile(receiverID)
	if !ok {
		return msg, true
	}
	if e.bypass[msg.Topic] {
		result := perceptionResult{probability: 1.0, channel: ChannelBypass}
		e.logEvent(msg, EventTrue, result)
		e.logEvent(msg, EventPerceived, result)
		return msg, true
	}
	result := e.evaluate(msg.SenderID, receiverID, msg.Topic)
	e.logEvent(msg, EventTrue, result)
	if e.rng.Float64() > result.probability {
		return msg, false
	}

	outbound := msg
	masked := false
	var suspectRow *int
	var suspicionScore *float64
	if receiver.Role == RoleTeacher && e.suspicion[msg.Topic] {
		if loc, ok := e.senderLocation(msg.SenderID); ok {
			row := loc.Row
			suspectRow = &row
		}
		score := math.Round(math.Max(0.1, 1-result.probability)*100) / 100
		suspicionScore = &score
		masked = e.mask[msg.Topic]
	}
	switch {
	case masked:
		outbound.SenderID = "unknown"
		outbound.Content = maskedContent(suspectRow, suspicionScore)
	case result.probability < e.config.DegradeThreshold:
		outbound.Content = degradeContent(msg.Content)
	}
	e.logEvent(outbound, EventPerceived, result)
	if suspicionScore != nil {
		e.logEvent(outbound, EventSuspicionUpdate, result)
	}
	e.auditObservers(msg)
	return outbound, true
}

// auditObservers records what each configured observer would have
// perceived of a delivered message. Nothing is delivered; the record is
// the point.
func (e *PerceptionEngine) auditObservers(msg Message) {
	if !e.config.Observer.Enabled || !e.config.Observer.LogObservers {
		return
	}
	if len(e.obsTopics) > 0 && !e.obsTopics[msg.Topic] {
		return
	}
	for _, agentID := range e.directory.AllAgents() {
		if agentID == msg.SenderID || agentID == msg.ReceiverID {
			continue
		}
		profile, ok := e.directory.Profile(agentID)
		if !ok || !e.obsRoles[string(profile.Role)] {
			continue
		}
		result := e.evaluate(msg.SenderID, agentID, msg.Topic)
		audit := msg
		audit.ReceiverID = agentID
		e.logEvent(audit, EventObserverPerception, result)
	}
}

// ObserverMessages is the bus observer hook: third parties near the
// exchange may overhear a direct message.
func (e *PerceptionEngine) ObserverMessages(msg Message, receiverID string) []Message {
	if !e.config.Enabled || !e.config.Observer.Enabled {
		return nil
	}
	if len(e.obsTopics) > 0 && !e.obsTopics[msg.Topic] {
		return nil
	}
	var overheard []Message
	for _, agentID := range e.directory.AllAgents() {
		if agentID == msg.SenderID || agentID == receiverID {
			continue
		}
		profile, ok := e.directory.Profile(agentID)
		if !ok || !e.obsRoles[string(profile.Role)] {
			continue
		}
		result := e.evaluate(msg.SenderID, agentID, msg.Topic)
		if e.rng.Float64() > result.probability {
			continue
		}
		if e.rng.Float64() > e.config.Observer.Chance {
			continue
		}
		sender, content := msg.SenderID, msg.Content
		if result.probability < e.config.DegradeThreshold {
			sender = "unknown"
			content = degradeContent(content)
		}
		extra := NewMessage(msg.SenderID, agentID, e.config.Observer.Topic,
			fmt.Sprintf("from=%s;topic=%s;content=%s", sender, msg.Topic, content))
		if e.config.Observer.LogObservers {
			e.logEvent(extra, EventPerceived, result)
		}
		overheard = append(overheard, extra)
	}
	return overheard
}

// evaluate computes the delivery probability of a signal on the topic's
// channel. Missing location data means full delivery.
func (e *PerceptionEngine) evaluate(senderID, receiverID, topic string) perceptionResult {
	channel := ChannelHearing
	if e.vision[topic] {
		channel = ChannelVision
	}
	result := perceptionResult{probability: 1.0, channel: channel}
	distance, ok := e.distanceBetween(senderID, receiverID)
	if !ok {
		return result
	}
	result.distance = &distance

	profile := e.profileFor(receiverID)
	rng := profile.hearingRange
	if channel == ChannelVision {
		rng = profile.visionRange
	}
	if rng <= 0 {
		result.probability = 0
		return result
	}
	d := float64(distance)
	var prob float64
	if profile.decay == DecayExponential {
		prob = math.Exp(-profile.alpha * d)
	} else {
		prob = math.Max(0, 1-d/rng)
	}
	if channel == ChannelVision && e.isOccluded(profile, senderID) {
		prob *= profile.occlusionFactor
	}
	result.probability = clamp(prob, 0, 1)
	return result
}

// perceptionProfile is the resolved parameter set for one receiver:
// global defaults, then the role overlay, then the agent overlay.
type perceptionProfile struct {
	visionRange     float64
	hearingRange    float64
	decay           string
	alpha           float64
	occlusionFactor float64
	occludedSeats   []string
}

func (e *PerceptionEngine) profileFor(receiverID string) perceptionProfile {
	resolved := perceptionProfile{
		visionRange:     e.config.VisionRange,
		hearingRange:    e.config.HearingRange,
		decay:           e.config.Decay,
		alpha:           e.config.Alpha,
		occlusionFactor: e.config.OcclusionFactor,
	}
	if profile, ok := e.directory.Profile(receiverID); ok {
		resolved.overlay(e.config.Roles[string(profile.Role)])
	}
	resolved.overlay(e.config.Agents[receiverID])
	return resolved
}

func (p *perceptionProfile) overlay(o AgentPerception) {
	if o.VisionRange != nil {
		p.visionRange = *o.VisionRange
	}
	if o.HearingRange != nil {
		p.hearingRange = *o.HearingRange
	}
	if o.Decay != "" {
		p.decay = o.Decay
	}
	if o.Alpha != nil {
		p.alpha = *o.Alpha
	}
	if o.OcclusionFactor != nil {
		p.occlusionFactor = *o.OcclusionFactor
	}
	if len(o.OccludedSeats) > 0 {
		p.occludedSeats = o.OccludedSeats
	}
}

// isOccluded reports whether the sender's seat is hidden from the
// receiver's line of sight.
func (e *PerceptionEngine) isOccluded(profile perceptionProfile, senderID string) bool {
	senderLoc, ok := e.senderLocation(senderID)
	if !ok {
		return false
	}
	for _, seatID := range profile.occludedSeats {
		if seatID == senderLoc.SeatID {
			return true
		}
	}
	return false
}

func (e *PerceptionEngine) senderLocation(agentID string) (world.Location, bool) {
	if e.world == nil {
		return world.Location{}, false
	}
	loc, ok := e.world.LocationFor(agentID)
	if !ok || !loc.Seated {
		return world.Location{}, false
	}
	return loc, true
}

// distanceBetween returns the seat distance, or false when either agent
// is unseated, off-grid, or in a different scene.
func (e *PerceptionEngine) distanceBetween(senderID, receiverID string) (int, bool) {
	if e.world == nil || e.world.Layout() == nil {
		return 0, false
	}
	senderLoc, okA := e.senderLocation(senderID)
	receiverLoc, okB := e.senderLocation(receiverID)
	if !okA || !okB || senderLoc.SceneID != receiverLoc.SceneID {
		return 0, false
	}
	return e.world.Layout().Distance(senderLoc.SeatID, receiverLoc.SeatID)
}

func (e *PerceptionEngine) logEvent(msg Message, eventType string, result perceptionResult) {
	distance := "none"
	if result.distance != nil {
		distance = fmt.Sprintf("%d", *result.distance)
	}
	detail := fmt.Sprintf("topic=%s;prob=%.2f;distance=%s;channel=%s",
		msg.Topic, result.probability, distance, result.channel)
	e.logger.WithFields(logrus.Fields{
		"event":    eventType,
		"sender":   msg.SenderID,
		"receiver": msg.ReceiverID,
	}).Debug(detail)
	if e.store != nil {
		e.store.RecordMessageEvent(msg, eventType, detail)
	}
}

// maskedContent renders what a teacher perceives of anonymous noise:
// a suspected row, a suspicion score, and the fact of the noise itself.
func maskedContent(suspectRow *int, suspicion *float64) string {
	var parts []string
	if suspectRow != nil {
		parts = append(parts, fmt.Sprintf("suspect_row=%d", *suspectRow))
	}
	if suspicion != nil {
		parts = append(parts, fmt.Sprintf("suspicion=%.2f", *suspicion))
	}
	parts = append(parts, "noise=detected")
	return strings.Join(parts, ";")
}

// degradeContent keeps only the leading fragment of a weakly perceived
// message.
func degradeContent(content string) string {
	if idx := strings.Index(content, ";"); idx >= 0 {
		return content[:idx] + ";..."
	}
	if len(content) > degradePreview {
		return content[:degradePreview] + "..."
	}
	return "unclear"
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
