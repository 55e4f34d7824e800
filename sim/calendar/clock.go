// Package calendar turns the simulation's abstract tick counter into
// school time: a compressed day clock, weekday timetables, a daily
// routine, the academic calendar, and a small rule DSL for semester
// events. The schedule generator at the top composes all of them into
// the events the orchestrator dispatches each tick.
package calendar

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Weekdays in calendar order. Indexes into this slice are the canonical
// weekday representation everywhere in the package.
var Weekdays = []string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

const realDayMinutes = 1440

// ClockConfig tunes the compressed simulation clock. DayMinutes is the
// length of one simulated day in sim minutes; with DayMinutes < 1440
// the whole school day fits into fewer ticks while clock labels still
// read as wall time.
type ClockConfig struct {
	StartDay       string `yaml:"start_day"`
	StartTime      string `yaml:"start_time"`
	MinutesPerTick int    `yaml:"minutes_per_tick"`
	DayMinutes     int    `yaml:"day_minutes"`
}

func (c ClockConfig) withDefaults() ClockConfig {
	if c.StartDay == "" {
		c.StartDay = "Monday"
	}
	if c.StartTime == "" {
		c.StartTime = "08:00"
	}
	if c.MinutesPerTick <= 0 {
		c.MinutesPerTick = 5
	}
	if c.DayMinutes <= 0 {
		c.DayMinutes = realDayMinutes
	}
	return c
}

// TimeInfo locates one tick in school time.
type TimeInfo struct {
	Tick      int
	DayIndex  int
	SimMinute int
	Weekday   string
	ClockTime string
}

// Clock maps ticks to compressed school time. Tick 1 lands exactly on
// the configured start time.
type Clock struct {
	config         ClockConfig
	startDayIndex  int
	startSimMinute int
}

// NewClock builds a clock; unknown start days fall back to Monday and a
// malformed start time falls back to 08:00.
func NewClock(config ClockConfig) *Clock {
	cfg := config.withDefaults()
	c := &Clock{config: cfg}
	c.startDayIndex = weekdayIndex(cfg.StartDay)
	c.startSimMinute = c.ToSimMinutes(cfg.StartTime)
	return c
}

// MinutesPerTick returns the sim-minute length of one tick.
func (c *Clock) MinutesPerTick() int { return c.config.MinutesPerTick }

// DayMinutes returns the sim-minute length of one day.
func (c *Clock) DayMinutes() int { return c.config.DayMinutes }

// ToSimMinutes converts a wall-clock "HH:MM" label to compressed sim
// minutes since day start. Malformed input maps to sim minute 0.
func (c *Clock) ToSimMinutes(clockTime string) int {
	wall, ok := parseHHMM(clockTime)
	if !ok {
		return 0
	}
	return int(math.Round(float64(wall) * float64(c.config.DayMinutes) / realDayMinutes))
}

// ToClockTime converts a sim minute back to a wall-clock label. The
// conversion is rounded, so round-tripping through a compressed day may
// shift a label by a minute.
func (c *Clock) ToClockTime(simMinute int) string {
	wall := int(math.Round(float64(simMinute)*realDayMinutes/float64(c.config.DayMinutes))) % realDayMinutes
	if wall < 0 {
		wall += realDayMinutes
	}
	return fmt.Sprintf("%02d:%02d", wall/60, wall%60)
}

// ScaleMinutes converts a wall-clock duration to compressed sim minutes.
func (c *Clock) ScaleMinutes(wallMinutes int) int {
	return int(math.Round(float64(wallMinutes) * float64(c.config.DayMinutes) / realDayMinutes))
}

// TimeForTick locates tick (1-based) in school time.
func (c *Clock) TimeForTick(tick int) TimeInfo {
	simTotal := c.startSimMinute + (tick-1)*c.config.MinutesPerTick
	dayIndex := simTotal / c.config.DayMinutes
	simMinute := simTotal % c.config.DayMinutes
	weekday := Weekdays[(c.startDayIndex+dayIndex)%len(Weekdays)]
	return TimeInfo{
		Tick:      tick,
		DayIndex:  dayIndex,
		SimMinute: simMinute,
		Weekday:   weekday,
		ClockTime: c.ToClockTime(simMinute),
	}
}

func weekdayIndex(name string) int {
	for i, weekday := range Weekdays {
		if strings.EqualFold(weekday, name) {
			return i
		}
	}
	return 0
}

func parseHHMM(s string) (int, bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	hour, err1 := strconv.Atoi(parts[0])
	minute, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}
