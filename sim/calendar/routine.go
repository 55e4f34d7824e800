package calendar

// Routine action names, emitted in school-day order.
const (
	ActionWake             = "wake"
	ActionBreakfastStart   = "breakfast_start"
	ActionBreakfastEnd     = "breakfast_end"
	ActionMorningClasses   = "morning_classes"
	ActionTestStart        = "test_start"
	ActionTestEnd          = "test_end"
	ActionLunchStart       = "lunch_start"
	ActionLunchEnd         = "lunch_end"
	ActionAfternoonClasses = "afternoon_classes"
	ActionSchoolEnd        = "school_end"
	ActionReviewBreak      = "review_break"
	ActionReviewHome       = "review_home"
)

// routineActions is the fixed set of clock-anchored actions.
var routineActions = []string{
	ActionWake, ActionBreakfastStart, ActionBreakfastEnd, ActionMorningClasses,
	ActionTestStart, ActionTestEnd, ActionLunchStart, ActionLunchEnd,
	ActionAfternoonClasses, ActionSchoolEnd,
}

// RoutineConfig describes the daily rhythm. Times are wall-clock "HH:MM"
// labels keyed by action name; durations are wall minutes and get
// compressed through the clock like everything else.
type RoutineConfig struct {
	Enabled              bool              `yaml:"enabled"`
	Times                map[string]string `yaml:"times"`
	MorningClassCount    int               `yaml:"morning_class_count"`
	AfternoonClassCount  int               `yaml:"afternoon_class_count"`
	ClassDurationMinutes int               `yaml:"class_duration_minutes"`
	BreakMinutes         int               `yaml:"break_minutes"`
	ReviewHomeOffset     int               `yaml:"review_home_offset_minutes"`
	SchoolWeekdays       []string          `yaml:"school_weekdays"`
}

func (c RoutineConfig) withDefaults() RoutineConfig {
	if c.Times == nil {
		c.Times = map[string]string{}
	}
	defaults := map[string]string{
		ActionWake:             "07:00",
		ActionBreakfastStart:   "07:20",
		ActionBreakfastEnd:     "07:50",
		ActionMorningClasses:   "08:00",
		ActionTestStart:        "11:00",
		ActionTestEnd:          "11:40",
		ActionLunchStart:       "12:00",
		ActionLunchEnd:         "13:00",
		ActionAfternoonClasses: "13:30",
		ActionSchoolEnd:        "17:00",
	}
	for action, clockTime := range defaults {
		if _, ok := c.Times[action]; !ok {
			c.Times[action] = clockTime
		}
	}
	if c.MorningClassCount <= 0 {
		c.MorningClassCount = 3
	}
	if c.AfternoonClassCount <= 0 {
		c.AfternoonClassCount = 2
	}
	if c.ClassDurationMinutes <= 0 {
		c.ClassDurationMinutes = 40
	}
	if c.BreakMinutes <= 0 {
		c.BreakMinutes = 10
	}
	if c.ReviewHomeOffset <= 0 {
		c.ReviewHomeOffset = 120
	}
	if len(c.SchoolWeekdays) == 0 {
		c.SchoolWeekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}
	}
	return c
}

// DailyRoutine resolves which routine actions fall on a given sim
// minute of a school day. Non-school weekdays have no routine at all.
type DailyRoutine struct {
	config     RoutineConfig
	clock      *Clock
	actionAt   map[int][]string
	testStart  int
	testEnd    int
	schoolDays map[string]bool
}

// NewDailyRoutine precomputes the action timeline once; lookups per
// tick are map hits.
func NewDailyRoutine(config RoutineConfig, clock *Clock) *DailyRoutine {
	cfg := config.withDefaults()
	r := &DailyRoutine{
		config:     cfg,
		clock:      clock,
		actionAt:   make(map[int][]string),
		schoolDays: make(map[string]bool),
	}
	for _, weekday := range cfg.SchoolWeekdays {
		r.schoolDays[Weekdays[weekdayIndex(weekday)]] = true
	}
	for _, action := range routineActions {
		minute := clock.ToSimMinutes(cfg.Times[action])
		r.actionAt[minute] = append(r.actionAt[minute], action)
	}
	r.testStart = clock.ToSimMinutes(cfg.Times[ActionTestStart])
	r.testEnd = clock.ToSimMinutes(cfg.Times[ActionTestEnd])

	// Review breaks fall between consecutive classes of each block; the
	// last class of a block has no trailing break.
	duration := clock.ScaleMinutes(cfg.ClassDurationMinutes)
	pause := clock.ScaleMinutes(cfg.BreakMinutes)
	addBreaks := func(blockStart, count int) {
		for i := 0; i < count-1; i++ {
			classStart := blockStart + i*(duration+pause)
			r.actionAt[classStart+duration] = append(r.actionAt[classStart+duration], ActionReviewBreak)
		}
	}
	addBreaks(clock.ToSimMinutes(cfg.Times[ActionMorningClasses]), cfg.MorningClassCount)
	addBreaks(clock.ToSimMinutes(cfg.Times[ActionAfternoonClasses]), cfg.AfternoonClassCount)

	homeMinute := clock.ToSimMinutes(cfg.Times[ActionSchoolEnd]) + clock.ScaleMinutes(cfg.ReviewHomeOffset)
	r.actionAt[homeMinute] = append(r.actionAt[homeMinute], ActionReviewHome)
	return r
}

// Enabled reports whether the routine is active at all.
func (r *DailyRoutine) Enabled() bool { return r.config.Enabled }

// IsSchoolWeekday reports whether the routine runs on this weekday.
func (r *DailyRoutine) IsSchoolWeekday(weekday string) bool {
	return r.schoolDays[weekday]
}

// ActionsAt lists the routine actions landing exactly on this sim
// minute. Weekends and other non-school days are silent.
func (r *DailyRoutine) ActionsAt(weekday string, simMinute int) []string {
	if !r.config.Enabled || !r.schoolDays[weekday] {
		return nil
	}
	return r.actionAt[simMinute]
}

// IsTestStart reports whether the daily test begins at this moment.
func (r *DailyRoutine) IsTestStart(weekday string, simMinute int) bool {
	return r.config.Enabled && r.schoolDays[weekday] && simMinute == r.testStart
}

// IsTestWindow reports whether this moment falls inside the daily test.
// Both endpoints count.
func (r *DailyRoutine) IsTestWindow(weekday string, simMinute int) bool {
	return r.config.Enabled && r.schoolDays[weekday] &&
		simMinute >= r.testStart && simMinute <= r.testEnd
}
