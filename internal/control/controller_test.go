package control

import (
	"errors"
	"math"
	"testing"

	"uvchamber/internal/hal"
	"uvchamber/internal/models"
	"uvchamber/internal/profile"
)

type fakeDoor struct {
	sample hal.DoorSample
}

func (f *fakeDoor) Sample() hal.DoorSample { return f.sample }

// harness wires a controller to fakes with a 25ms tick and a 50ms debounce
// window. The sink records every emitted event.
type harness struct {
	t      *testing.T
	clock  *ManualClock
	door   *fakeDoor
	panel  *fakePanel
	ctrl   *Controller
	events []Event
}

const tickMs = 25

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		clock: NewManualClock(0),
		door:  &fakeDoor{sample: hal.DoorSample{Closed: true}},
		panel: &fakePanel{},
	}
	h.ctrl = NewController(Config{
		Clock:           h.clock,
		Door:            h.door,
		PWM:             h.panel,
		Log:             quietLogger(),
		DebounceMs:      50,
		IrradianceMWcm2: 100,
		Sink:            func(evs []Event) { h.events = append(h.events, evs...) },
	})

	// Let the closed lid pass the debounce window.
	h.tickN(3)
	if st := h.ctrl.Status(); st.Interlock != InterlockClosed {
		t.Fatalf("setup: interlock = %s, want CLOSED", st.Interlock)
	}
	h.events = nil
	return h
}

func (h *harness) tick() {
	h.clock.Advance(tickMs)
	h.ctrl.Tick()
}

func (h *harness) tickN(n int) {
	for i := 0; i < n; i++ {
		h.tick()
	}
}

func (h *harness) eventTypes() []string {
	out := make([]string, 0, len(h.events))
	for _, e := range h.events {
		out = append(out, e.Type)
	}
	return out
}

func (h *harness) wantEvent(eventType string) {
	h.t.Helper()
	for _, e := range h.events {
		if e.Type == eventType {
			return
		}
	}
	h.t.Fatalf("no %s event, got %v", eventType, h.eventTypes())
}

func wantReject(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatal("expected a reject, got nil")
	}
	var rej *Reject
	if !errors.As(err, &rej) {
		t.Fatalf("error = %v (%T), want *Reject", err, err)
	}
	if rej.Code != code {
		t.Fatalf("reject code = %s, want %s (msg %q)", rej.Code, code, rej.Msg)
	}
}

func rampProfile() profile.Profile {
	return profile.Profile{
		Name: "ramp-80",
		Entries: []profile.Node{
			{Kind: profile.KindRamp, StartIntensity: 0, EndIntensity: 80, DurationMs: 5000},
		},
	}
}

func TestController_StartRejectedWhileLidOpen(t *testing.T) {
	h := newHarness(t)

	h.door.sample = hal.DoorSample{Closed: false}
	h.tickN(3) // debounced open

	err := h.ctrl.StartStandard(1000, 50)
	wantReject(t, err, RejectInterlockOpen)
	if st := h.ctrl.Status(); st.State != StateIdle {
		t.Fatalf("state = %s, want IDLE", st.State)
	}
}

func TestController_StandardRunToCompletion(t *testing.T) {
	h := newHarness(t)

	if err := h.ctrl.StartStandard(1000, 50); err != nil {
		t.Fatalf("StartStandard: %v", err)
	}
	h.wantEvent(models.EventStart)
	if st := h.ctrl.Status(); st.State != StateRunning || st.Indicator != IndicatorActive {
		t.Fatalf("state %s indicator %s, want RUNNING/ACTIVE", st.State, st.Indicator)
	}

	h.tickN(10)
	if h.panel.duty != 500 {
		t.Fatalf("duty mid-run = %d, want 500", h.panel.duty)
	}
	if st := h.ctrl.Status(); st.ElapsedMs != 250 || st.RemainingMs != 750 {
		t.Fatalf("elapsed/remaining = %d/%d, want 250/750", st.ElapsedMs, st.RemainingMs)
	}
	if st := h.ctrl.Status(); st.RunID == "" || st.Segment != "S1/1" {
		t.Fatalf("run id %q segment %q, want an id and S1/1", st.RunID, st.Segment)
	}

	// 40 ticks consume the declared 1000ms; the next tick completes.
	h.tickN(30)
	h.tick()
	h.wantEvent(models.EventComplete)

	st := h.ctrl.Status()
	if st.State != StateIdle {
		t.Fatalf("state = %s, want IDLE", st.State)
	}
	if st.Indicator != IndicatorDone {
		t.Fatalf("indicator = %s, want DONE_BLINK", st.Indicator)
	}
	if h.panel.duty != 0 || h.panel.offCalls == 0 {
		t.Fatalf("panel duty %d offCalls %d, want dark after completion", h.panel.duty, h.panel.offCalls)
	}
	if st.ElapsedMs != 1000 {
		t.Fatalf("elapsed = %d, want 1000", st.ElapsedMs)
	}
	if math.Abs(st.DoseMJ-50) > 1e-9 {
		t.Fatalf("dose = %v, want 50 mJ/cm²", st.DoseMJ)
	}
	if st.Segment != "" {
		t.Fatalf("segment after completion = %q, want empty", st.Segment)
	}

	// Selecting a mode dismisses the done blink.
	if err := h.ctrl.SelectMode(ModeStandard); err != nil {
		t.Fatal(err)
	}
	if got := h.ctrl.Status().Indicator; got != IndicatorReady {
		t.Fatalf("indicator = %s, want READY", got)
	}
}

func TestController_InterlockFreezesAndAutoResumes(t *testing.T) {
	h := newHarness(t)

	if err := h.ctrl.SelectMode(ModeCustom); err != nil {
		t.Fatal(err)
	}
	p := rampProfile()
	if err := h.ctrl.LoadProfile(&p); err != nil {
		t.Fatal(err)
	}
	if err := h.ctrl.Start(); err != nil {
		t.Fatal(err)
	}

	h.tickN(100) // 2500ms into the ramp
	if h.panel.duty != 400 {
		t.Fatalf("duty at 2500ms = %d, want 400", h.panel.duty)
	}

	// Lid opens. The debounce window lets two more ticks through, then
	// the interlock pauses the run.
	h.door.sample = hal.DoorSample{Closed: false}
	h.tickN(3)
	h.wantEvent(models.EventInterlockOpen)
	h.wantEvent(models.EventPause)

	st := h.ctrl.Status()
	if st.State != StatePaused || st.PauseReason != PauseInterlock {
		t.Fatalf("state %s reason %s, want PAUSED/INTERLOCK_OPEN", st.State, st.PauseReason)
	}
	if h.panel.duty != 0 {
		t.Fatalf("duty while open = %d, want 0", h.panel.duty)
	}
	frozen := st.ElapsedMs
	if frozen != 2550 {
		t.Fatalf("frozen elapsed = %d, want 2550 (two in-window ticks past 2500)", frozen)
	}

	// Time passes with the lid open; elapsed must not move.
	h.tickN(40)
	if got := h.ctrl.Status().ElapsedMs; got != frozen {
		t.Fatalf("elapsed drifted to %d while open, want %d", got, frozen)
	}
	if got := h.ctrl.Status().Indicator; got != IndicatorAlarm {
		t.Fatalf("indicator while open = %s, want ALARM_BLINK", got)
	}

	// Lid closes: debounce, then the run resumes on its own from the
	// exact frozen point.
	h.door.sample = hal.DoorSample{Closed: true}
	h.tickN(3)
	h.wantEvent(models.EventInterlockClosed)
	h.wantEvent(models.EventResume)
	if st := h.ctrl.Status(); st.State != StateRunning || st.ElapsedMs != frozen {
		t.Fatalf("after resume: state %s elapsed %d, want RUNNING at %d", st.State, st.ElapsedMs, frozen)
	}

	// First advancing tick lands at 2575ms: 41.2% of the ramp.
	h.tick()
	if h.panel.duty != 412 {
		t.Fatalf("duty after resume = %d, want 412", h.panel.duty)
	}

	// Run out the rest; total engine time must be exactly 5000ms.
	for h.ctrl.Status().State == StateRunning {
		h.tick()
	}
	h.wantEvent(models.EventComplete)
	if got := h.ctrl.Status().ElapsedMs; got != 5000 {
		t.Fatalf("final elapsed = %d, want exactly 5000", got)
	}
}

func TestController_UserPauseDoesNotAutoResume(t *testing.T) {
	h := newHarness(t)

	if err := h.ctrl.StartStandard(10_000, 60); err != nil {
		t.Fatal(err)
	}
	h.tickN(10)

	if err := h.ctrl.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	h.wantEvent(models.EventPause)
	st := h.ctrl.Status()
	if st.State != StatePaused || st.PauseReason != PauseUser {
		t.Fatalf("state %s reason %s, want PAUSED/USER", st.State, st.PauseReason)
	}
	if h.panel.duty != 0 {
		t.Fatalf("duty while paused = %d, want 0", h.panel.duty)
	}
	frozen := st.ElapsedMs

	// Lid stays closed; a user pause must wait for the user.
	h.tickN(20)
	if st := h.ctrl.Status(); st.State != StatePaused || st.ElapsedMs != frozen {
		t.Fatalf("state %s elapsed %d, want still PAUSED at %d", st.State, st.ElapsedMs, frozen)
	}

	if err := h.ctrl.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	h.wantEvent(models.EventResume)
	h.tick()
	if got := h.ctrl.Status().ElapsedMs; got != frozen+tickMs {
		t.Fatalf("elapsed after resume tick = %d, want %d", got, frozen+tickMs)
	}
}

func TestController_ResumeRefusedWhileLidOpen(t *testing.T) {
	h := newHarness(t)

	if err := h.ctrl.StartStandard(10_000, 60); err != nil {
		t.Fatal(err)
	}
	h.tickN(4)
	if err := h.ctrl.Pause(); err != nil {
		t.Fatal(err)
	}

	h.door.sample = hal.DoorSample{Closed: false}
	h.tickN(3)

	wantReject(t, h.ctrl.Resume(), RejectInterlockOpen)
	if st := h.ctrl.Status(); st.State != StatePaused || st.PauseReason != PauseUser {
		t.Fatalf("state %s reason %s, want PAUSED/USER", st.State, st.PauseReason)
	}

	// Closing the lid does not auto-resume a user pause.
	h.door.sample = hal.DoorSample{Closed: true}
	h.tickN(4)
	if st := h.ctrl.Status(); st.State != StatePaused {
		t.Fatalf("state = %s, want PAUSED until user resumes", st.State)
	}
	if err := h.ctrl.Resume(); err != nil {
		t.Fatalf("Resume after close: %v", err)
	}
}

func TestController_StopAbortsRun(t *testing.T) {
	h := newHarness(t)

	if err := h.ctrl.StartStandard(10_000, 60); err != nil {
		t.Fatal(err)
	}
	h.tickN(8)

	if err := h.ctrl.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	h.wantEvent(models.EventStop)
	st := h.ctrl.Status()
	if st.State != StateIdle || st.ElapsedMs != 0 {
		t.Fatalf("state %s elapsed %d, want IDLE with discarded cursor", st.State, st.ElapsedMs)
	}
	if h.panel.duty != 0 {
		t.Fatalf("duty after stop = %d, want 0", h.panel.duty)
	}

	wantReject(t, h.ctrl.Stop(), RejectNotActive)
}

func TestController_ValidationRejectLeavesIdle(t *testing.T) {
	h := newHarness(t)

	if err := h.ctrl.SelectMode(ModeCustom); err != nil {
		t.Fatal(err)
	}

	bad := profile.Profile{
		Name: "bad",
		Entries: []profile.Node{
			{Kind: profile.KindConstant, StartIntensity: 50, DurationMs: 0},
		},
	}
	err := h.ctrl.LoadProfile(&bad)
	var verr *profile.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v (%T), want *profile.ValidationError", err, err)
	}
	h.wantEvent(models.EventValidationDrop)
	if st := h.ctrl.Status(); st.State != StateIdle || st.Profile != "" {
		t.Fatalf("state %s profile %q, want untouched IDLE", st.State, st.Profile)
	}

	wantReject(t, h.ctrl.Start(), RejectNoProfile)

	good := rampProfile()
	if err := h.ctrl.LoadProfile(&good); err != nil {
		t.Fatalf("LoadProfile(good): %v", err)
	}
	if err := h.ctrl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if st := h.ctrl.Status(); st.State != StateRunning || st.Profile != "ramp-80" {
		t.Fatalf("state %s profile %q, want RUNNING ramp-80", st.State, st.Profile)
	}
}

func TestController_ModeRules(t *testing.T) {
	h := newHarness(t)

	wantReject(t, h.ctrl.SelectMode("TURBO"), RejectInvalidMode)

	p := rampProfile()
	wantReject(t, h.ctrl.LoadProfile(&p), RejectModeMismatch)
	wantReject(t, h.ctrl.Start(), RejectModeMismatch)

	if err := h.ctrl.SelectMode(ModeCustom); err != nil {
		t.Fatal(err)
	}
	if err := h.ctrl.LoadProfile(&p); err != nil {
		t.Fatal(err)
	}

	// Switching modes drops the staged profile.
	if err := h.ctrl.SelectMode(ModeStandard); err != nil {
		t.Fatal(err)
	}
	if err := h.ctrl.SelectMode(ModeCustom); err != nil {
		t.Fatal(err)
	}
	wantReject(t, h.ctrl.Start(), RejectNoProfile)

	if err := h.ctrl.LoadProfile(&p); err != nil {
		t.Fatal(err)
	}
	if err := h.ctrl.Start(); err != nil {
		t.Fatal(err)
	}
	wantReject(t, h.ctrl.SelectMode(ModeStandard), RejectNotIdle)
	wantReject(t, h.ctrl.LoadProfile(&p), RejectNotIdle)
}

func TestController_SensorFaultDuringRunLatchesFault(t *testing.T) {
	h := newHarness(t)

	if err := h.ctrl.StartStandard(10_000, 60); err != nil {
		t.Fatal(err)
	}
	h.tickN(5)

	h.door.sample = hal.DoorSample{Fault: true}
	h.tick()
	h.wantEvent(models.EventFault)

	st := h.ctrl.Status()
	if st.State != StateFault {
		t.Fatalf("state = %s, want FAULT", st.State)
	}
	if st.Fault == "" {
		t.Fatal("fault message empty")
	}
	if h.panel.duty != 0 {
		t.Fatalf("duty in fault = %d, want 0", h.panel.duty)
	}
	if st.Indicator != IndicatorAlarm {
		t.Fatalf("indicator = %s, want ALARM_BLINK", st.Indicator)
	}

	// Only acknowledgement leaves the fault state.
	wantReject(t, h.ctrl.StartStandard(1000, 50), RejectNotIdle)
	wantReject(t, h.ctrl.Resume(), RejectNotPaused)
	h.tickN(5)
	if h.ctrl.Status().State != StateFault {
		t.Fatal("fault state cleared without acknowledgement")
	}

	if err := h.ctrl.AcknowledgeFault(); err != nil {
		t.Fatalf("AcknowledgeFault: %v", err)
	}
	h.wantEvent(models.EventFaultAck)
	st = h.ctrl.Status()
	if st.State != StateIdle || st.Fault != "" {
		t.Fatalf("state %s fault %q, want clean IDLE", st.State, st.Fault)
	}

	// The sensor is still broken: fail-safe open refuses the next start.
	h.tick()
	wantReject(t, h.ctrl.StartStandard(1000, 50), RejectInterlockOpen)

	// Sensor heals, lid debounces closed, runs start again.
	h.door.sample = hal.DoorSample{Closed: true}
	h.tickN(3)
	if err := h.ctrl.StartStandard(1000, 50); err != nil {
		t.Fatalf("StartStandard after recovery: %v", err)
	}
}

func TestController_PanelWriteFailureLatchesFault(t *testing.T) {
	h := newHarness(t)

	if err := h.ctrl.StartStandard(10_000, 60); err != nil {
		t.Fatal(err)
	}
	h.tickN(5)

	h.panel.setErr = errors.New("bus stuck")
	h.tick()
	h.wantEvent(models.EventFault)

	st := h.ctrl.Status()
	if st.State != StateFault {
		t.Fatalf("state = %s, want FAULT", st.State)
	}
	if st.Fault == "" || st.Intensity != 0 {
		t.Fatalf("fault %q intensity %v, want message and dark panel", st.Fault, st.Intensity)
	}

	if err := h.ctrl.AcknowledgeFault(); err != nil {
		t.Fatalf("AcknowledgeFault: %v", err)
	}
	if got := h.ctrl.Status().State; got != StateIdle {
		t.Fatalf("state after ack = %s, want IDLE", got)
	}
}

func TestController_AckRequiresFault(t *testing.T) {
	h := newHarness(t)
	wantReject(t, h.ctrl.AcknowledgeFault(), RejectNotFault)
}

// TestController_OpenAlwaysMeansDark drives a pulsing run while the lid
// flips every few ticks and checks the central safety invariant: whenever
// the reported interlock is open, the panel duty is zero on that same tick.
func TestController_OpenAlwaysMeansDark(t *testing.T) {
	h := newHarness(t)

	if err := h.ctrl.SelectMode(ModeCustom); err != nil {
		t.Fatal(err)
	}
	p := profile.Profile{
		Name:       "soak",
		ManualStop: true,
		Entries: []profile.Node{
			{Kind: profile.KindLoop, RepeatCount: profile.RepeatUntilStopped, Body: []profile.Node{
				{Kind: profile.KindPulse, StartIntensity: 100, OnMs: 50, OffMs: 50, PulseCount: 4},
			}},
		},
	}
	if err := h.ctrl.LoadProfile(&p); err != nil {
		t.Fatal(err)
	}
	if err := h.ctrl.Start(); err != nil {
		t.Fatal(err)
	}

	closed := true
	for i := 1; i <= 500; i++ {
		if i%7 == 0 {
			closed = !closed
			h.door.sample = hal.DoorSample{Closed: closed}
		}
		h.tick()
		if h.ctrl.Status().Interlock == InterlockOpen && h.panel.duty != 0 {
			t.Fatalf("tick %d: interlock OPEN with duty %d", i, h.panel.duty)
		}
	}
}
