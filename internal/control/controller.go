package control

import (
	"fmt"
	"sync"

	"uvchamber/internal/hal"
	"uvchamber/internal/logger"
	"uvchamber/internal/models"
	"uvchamber/internal/profile"

	"github.com/google/uuid"
)

// SystemState is the controller's run state.
type SystemState string

const (
	StateIdle    SystemState = "IDLE"
	StateRunning SystemState = "RUNNING"
	StatePaused  SystemState = "PAUSED"
	StateFault   SystemState = "FAULT"
)

// Mode selects how runs are started: a fixed time-and-intensity standard
// run, or a loaded custom profile.
type Mode string

const (
	ModeStandard Mode = "STANDARD"
	ModeCustom   Mode = "CUSTOM"
)

// PauseReason distinguishes a user pause from an interlock lockout. Only
// interlock pauses auto-resume when the lid closes again.
type PauseReason string

const (
	PauseNone      PauseReason = ""
	PauseUser      PauseReason = "USER"
	PauseInterlock PauseReason = "INTERLOCK_OPEN"
)

// Indicator is the visual contract for the front panel light.
type Indicator string

const (
	IndicatorReady  Indicator = "READY"       // steady: closed, idle or paused
	IndicatorActive Indicator = "ACTIVE"      // run in progress
	IndicatorAlarm  Indicator = "ALARM_BLINK" // lid open or fault
	IndicatorDone   Indicator = "DONE_BLINK"  // run completed, not yet dismissed
)

// Event is one observable state-machine occurrence. Events are collected
// under the controller lock and handed to the sink after it is released.
type Event struct {
	Type    string
	Message string
	AtMs    uint32
}

// EventSink receives events in order. It runs outside the controller lock,
// so implementations may persist, push or beep freely.
type EventSink func(events []Event)

// Reject is a refused command: the state machine cannot take the requested
// transition from where it is. Code is machine-readable for the API layer.
type Reject struct {
	Code string
	Msg  string
}

func (r *Reject) Error() string { return r.Msg }

// Reject codes.
const (
	RejectNotIdle       = "not_idle"
	RejectNotActive     = "not_active"
	RejectNotPaused     = "not_paused"
	RejectNotFault      = "not_fault"
	RejectNoProfile     = "no_profile"
	RejectInterlockOpen = "interlock_open"
	RejectInvalidMode   = "invalid_mode"
	RejectModeMismatch  = "mode_profile_mismatch"
)

func rejectf(code, format string, args ...any) *Reject {
	return &Reject{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Status is the tuple pushed to every status consumer once per tick or on
// demand.
type Status struct {
	State       SystemState    `json:"state"`
	Mode        Mode           `json:"mode"`
	Interlock   InterlockState `json:"interlock"`
	PauseReason PauseReason    `json:"pause_reason,omitempty"`
	Indicator   Indicator      `json:"indicator"`
	Intensity   float64        `json:"intensity_pct"`
	ElapsedMs   int64          `json:"elapsed_ms"`
	RemainingMs int64          `json:"remaining_ms"` // -1 while a manual-stop profile runs
	RunID       string         `json:"run_id,omitempty"`
	Profile     string         `json:"profile,omitempty"`
	Segment     string         `json:"segment,omitempty"` // cursor position, e.g. "L1/3 S2/5"
	DoseMJ      float64        `json:"dose_mj_cm2"`
	Fault       string         `json:"fault,omitempty"`
}

// Config carries the owned hardware handles and tuning for a Controller.
type Config struct {
	Clock      Clock
	Door       hal.DoorSensor
	PWM        hal.PWMOutput
	Log        *logger.Logger
	DebounceMs uint32
	// IrradianceMWcm2 is panel irradiance at 100% intensity, for dose
	// accounting.
	IrradianceMWcm2 float64
	Sink            EventSink
}

// Controller is the top-level orchestrator: it validates and loads
// profiles, owns the run state machine, and on every tick arbitrates the
// profile engine's requested intensity against the interlock before
// anything reaches the panel. All methods are safe for concurrent use; one
// mutex serializes commands against the tick path.
type Controller struct {
	mu   sync.Mutex
	sink EventSink

	clock     Clock
	door      hal.DoorSensor
	interlock *Interlock
	pwm       *PWMFront
	dose      *DoseMeter

	state       SystemState
	mode        Mode
	pauseReason PauseReason
	prof        *profile.Profile
	profName    string
	runID       string
	engine      *Engine
	intensity   float64
	lastTickMs  uint32
	doneBlink   bool
	faultMsg    string
}

func NewController(cfg Config) *Controller {
	return &Controller{
		sink:       cfg.Sink,
		clock:      cfg.Clock,
		door:       cfg.Door,
		interlock:  NewInterlock(cfg.DebounceMs),
		pwm:        NewPWMFront(cfg.PWM, cfg.Log),
		dose:       NewDoseMeter(cfg.IrradianceMWcm2),
		state:      StateIdle,
		mode:       ModeStandard,
		lastTickMs: cfg.Clock.NowMs(),
	}
}

func (c *Controller) emit(evs []Event) {
	if c.sink != nil && len(evs) > 0 {
		c.sink(evs)
	}
}

func (c *Controller) event(eventType, format string, args ...any) Event {
	return Event{Type: eventType, Message: fmt.Sprintf(format, args...), AtMs: c.clock.NowMs()}
}

// -------- Commands --------

// SelectMode switches between standard and custom runs. Allowed only while
// idle; drops any loaded profile.
func (c *Controller) SelectMode(m Mode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m != ModeStandard && m != ModeCustom {
		return rejectf(RejectInvalidMode, "unknown mode %q", m)
	}
	if c.state != StateIdle {
		return rejectf(RejectNotIdle, "mode can only change while idle, state is %s", c.state)
	}
	c.mode = m
	c.prof = nil
	c.profName = ""
	c.engine = nil
	c.doneBlink = false
	return nil
}

// LoadProfile validates and stages a custom profile for the next run. The
// profile is treated as read-only from here on.
func (c *Controller) LoadProfile(p *profile.Profile) error {
	c.mu.Lock()
	evs, err := c.loadProfileLocked(p)
	c.mu.Unlock()
	c.emit(evs)
	return err
}

func (c *Controller) loadProfileLocked(p *profile.Profile) ([]Event, error) {
	if c.state != StateIdle {
		return nil, rejectf(RejectNotIdle, "profile can only load while idle, state is %s", c.state)
	}
	if c.mode != ModeCustom {
		return nil, rejectf(RejectModeMismatch, "loading a profile requires custom mode")
	}
	if err := profile.Validate(p); err != nil {
		ev := c.event(models.EventValidationDrop, "profile %q rejected: %v", p.Name, err)
		return []Event{ev}, err
	}
	c.prof = p
	c.profName = p.Name
	c.engine = nil
	c.doneBlink = false
	return nil, nil
}

// Start begins the loaded custom profile run.
func (c *Controller) Start() error {
	c.mu.Lock()
	evs, err := c.startLocked()
	c.mu.Unlock()
	c.emit(evs)
	return err
}

func (c *Controller) startLocked() ([]Event, error) {
	if c.state != StateIdle {
		return nil, rejectf(RejectNotIdle, "start requires idle, state is %s", c.state)
	}
	if c.mode != ModeCustom {
		return nil, rejectf(RejectModeMismatch, "standard mode runs start with time and intensity parameters")
	}
	if c.prof == nil {
		return nil, rejectf(RejectNoProfile, "no profile loaded")
	}
	return c.beginRunLocked(c.prof)
}

// StartStandard begins a fixed-intensity run of durationMs at intensityPct.
// It implies standard mode.
func (c *Controller) StartStandard(durationMs int64, intensityPct float64) error {
	c.mu.Lock()
	evs, err := c.startStandardLocked(durationMs, intensityPct)
	c.mu.Unlock()
	c.emit(evs)
	return err
}

func (c *Controller) startStandardLocked(durationMs int64, intensityPct float64) ([]Event, error) {
	if c.state != StateIdle {
		return nil, rejectf(RejectNotIdle, "start requires idle, state is %s", c.state)
	}
	p := profile.Standard(durationMs, intensityPct)
	evs, err := c.beginRunLocked(&p)
	if err == nil {
		c.mode = ModeStandard
	}
	return evs, err
}

// beginRunLocked compiles and starts a run. The lid must be closed: a run
// that would lock out on its first tick is refused up front instead.
func (c *Controller) beginRunLocked(p *profile.Profile) ([]Event, error) {
	if !c.interlock.IsSafeToEmit() {
		return nil, rejectf(RejectInterlockOpen, "lid is open")
	}
	engine, err := Compile(p)
	if err != nil {
		ev := c.event(models.EventValidationDrop, "profile %q rejected: %v", p.Name, err)
		return []Event{ev}, err
	}

	c.prof = p
	c.profName = p.Name
	c.runID = uuid.NewString()
	c.engine = engine
	c.dose.Reset()
	c.state = StateRunning
	c.pauseReason = PauseNone
	c.doneBlink = false

	total := p.TotalDurationMs()
	if total == profile.Unbounded {
		return []Event{c.event(models.EventStart, "profile %q started, runs until stopped", p.Name)}, nil
	}
	return []Event{c.event(models.EventStart, "profile %q started, %dms declared", p.Name, total)}, nil
}

// Pause suspends a running profile. Elapsed time freezes; the panel goes
// dark until resume.
func (c *Controller) Pause() error {
	c.mu.Lock()
	evs, err := c.pauseLocked()
	c.mu.Unlock()
	c.emit(evs)
	return err
}

func (c *Controller) pauseLocked() ([]Event, error) {
	if c.state != StateRunning {
		return nil, rejectf(RejectNotActive, "pause requires a running profile, state is %s", c.state)
	}
	if err := c.pwm.EmergencyOff(); err != nil {
		evs := c.faultLocked(nil, "panel off failed: %v", err)
		return evs, fmt.Errorf("hardware fault: %s", c.faultMsg)
	}
	c.intensity = 0
	c.state = StatePaused
	c.pauseReason = PauseUser
	return []Event{c.event(models.EventPause, "paused by user")}, nil
}

// Resume continues a paused run. Refused while the lid is open.
func (c *Controller) Resume() error {
	c.mu.Lock()
	evs, err := c.resumeLocked()
	c.mu.Unlock()
	c.emit(evs)
	return err
}

func (c *Controller) resumeLocked() ([]Event, error) {
	if c.state != StatePaused {
		return nil, rejectf(RejectNotPaused, "resume requires a paused profile, state is %s", c.state)
	}
	if !c.interlock.IsSafeToEmit() {
		return nil, rejectf(RejectInterlockOpen, "lid is open")
	}
	c.state = StateRunning
	c.pauseReason = PauseNone
	return []Event{c.event(models.EventResume, "resumed by user")}, nil
}

// Stop aborts the current run and discards its cursor.
func (c *Controller) Stop() error {
	c.mu.Lock()
	evs, err := c.stopLocked()
	c.mu.Unlock()
	c.emit(evs)
	return err
}

func (c *Controller) stopLocked() ([]Event, error) {
	if c.state != StateRunning && c.state != StatePaused {
		return nil, rejectf(RejectNotActive, "no run in progress, state is %s", c.state)
	}
	if err := c.pwm.EmergencyOff(); err != nil {
		evs := c.faultLocked(nil, "panel off failed: %v", err)
		return evs, fmt.Errorf("hardware fault: %s", c.faultMsg)
	}
	c.intensity = 0
	c.state = StateIdle
	c.pauseReason = PauseNone
	c.engine = nil
	c.doneBlink = false
	return []Event{c.event(models.EventStop, "run aborted by user")}, nil
}

// AcknowledgeFault clears a latched fault and returns the controller to
// idle.
func (c *Controller) AcknowledgeFault() error {
	c.mu.Lock()
	evs, err := c.ackLocked()
	c.mu.Unlock()
	c.emit(evs)
	return err
}

func (c *Controller) ackLocked() ([]Event, error) {
	if c.state != StateFault {
		return nil, rejectf(RejectNotFault, "no fault latched, state is %s", c.state)
	}
	c.state = StateIdle
	c.pauseReason = PauseNone
	c.engine = nil
	c.faultMsg = ""
	return []Event{c.event(models.EventFaultAck, "fault acknowledged")}, nil
}

// -------- Tick path --------

// Tick runs one control-loop update: poll and debounce the lid, then
// arbitrate the profile engine's output against the interlock. The
// interlock check always completes before any panel write.
func (c *Controller) Tick() {
	c.mu.Lock()
	evs := c.tickLocked()
	c.mu.Unlock()
	c.emit(evs)
}

func (c *Controller) tickLocked() []Event {
	var evs []Event

	now := c.clock.NowMs()
	var delta uint32
	if d := TicksDiff(now, c.lastTickMs); d > 0 {
		delta = uint32(d)
	}
	c.lastTickMs = now

	sample := c.door.Sample()
	before := c.interlock.State()
	after := c.interlock.Poll(sample, now)
	if after != before {
		if after == InterlockOpen {
			evs = append(evs, c.event(models.EventInterlockOpen, "lid open"))
		} else {
			evs = append(evs, c.event(models.EventInterlockClosed, "lid closed"))
		}
	}

	// A sensor read fault is fatal to the run in progress. Outside a run
	// the fail-safe Open state already refuses starts.
	if sample.Fault && (c.state == StateRunning || c.state == StatePaused) {
		return c.faultLocked(evs, "door sensor read fault")
	}

	switch c.state {
	case StateRunning:
		if after != InterlockClosed {
			if err := c.pwm.EmergencyOff(); err != nil {
				return c.faultLocked(evs, "panel off failed: %v", err)
			}
			c.intensity = 0
			c.state = StatePaused
			c.pauseReason = PauseInterlock
			return append(evs, c.event(models.EventPause, "interlock open"))
		}

		intensity, done := c.engine.Tick(delta)
		if done {
			if err := c.pwm.EmergencyOff(); err != nil {
				return c.faultLocked(evs, "panel off failed: %v", err)
			}
			c.intensity = 0
			c.state = StateIdle
			c.pauseReason = PauseNone
			c.doneBlink = true
			return append(evs, c.event(models.EventComplete,
				"profile %q complete, dose %.1f mJ/cm2", c.profName, c.dose.DoseMJ()))
		}
		if err := c.pwm.SetIntensity(intensity); err != nil {
			return c.faultLocked(evs, "panel write failed: %v", err)
		}
		c.intensity = c.pwm.LastIntensity()
		c.dose.Accumulate(c.intensity, delta)

	case StatePaused:
		// Engine time stays frozen. Interlock pauses resume on their
		// own once the lid closes; user pauses wait for the user.
		if c.pauseReason == PauseInterlock && after == InterlockClosed {
			c.state = StateRunning
			c.pauseReason = PauseNone
			return append(evs, c.event(models.EventResume, "lid closed"))
		}
	}
	return evs
}

// faultLocked latches the fault state. The panel off command is best
// effort here: the fault may well be the panel refusing writes.
func (c *Controller) faultLocked(evs []Event, format string, args ...any) []Event {
	_ = c.pwm.EmergencyOff()
	c.intensity = 0
	c.state = StateFault
	c.pauseReason = PauseNone
	c.doneBlink = false
	c.faultMsg = fmt.Sprintf(format, args...)
	return append(evs, c.event(models.EventFault, "%s", c.faultMsg))
}

// -------- Status --------

// Status snapshots the controller for the output surface.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		State:       c.state,
		Mode:        c.mode,
		Interlock:   c.interlock.State(),
		PauseReason: c.pauseReason,
		Indicator:   c.indicatorLocked(),
		Intensity:   c.intensity,
		RunID:       c.runID,
		Profile:     c.profName,
		DoseMJ:      c.dose.DoseMJ(),
		Fault:       c.faultMsg,
	}
	if c.engine != nil {
		st.ElapsedMs = c.engine.ElapsedMs()
		st.RemainingMs = c.engine.RemainingMs()
		st.Segment = c.engine.SegmentPath()
	}
	return st
}

func (c *Controller) indicatorLocked() Indicator {
	switch {
	case c.state == StateFault:
		return IndicatorAlarm
	case c.interlock.State() == InterlockOpen:
		return IndicatorAlarm
	case c.state == StateRunning:
		return IndicatorActive
	case c.doneBlink:
		return IndicatorDone
	default:
		return IndicatorReady
	}
}
