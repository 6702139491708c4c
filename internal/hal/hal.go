// Package hal abstracts the chamber hardware: the UV panel PWM stage, the
// lid switch and the annunciator buzzer. The real implementation talks to
// the driver board over a serial line; the simulated one models a chamber in
// memory so the service runs on a bench without hardware.
package hal

// DoorSample is one raw read of the lid switch. Fault means the read itself
// failed (sensor disconnected, stale link) and the lid position is unknown.
type DoorSample struct {
	Closed bool
	Fault  bool
}

// DoorSensor reads the lid switch. Sample must not block; it reports the
// most recent known state of the input.
type DoorSensor interface {
	Sample() DoorSample
}

// PWMOutput drives the UV panel power stage.
// Duty runs 0 (dark) to MaxDuty (full power).
type PWMOutput interface {
	// SetDuty sets the panel duty cycle.
	SetDuty(duty uint16) error

	// Off forces the panel dark. It is the emergency path and must work
	// regardless of the last SetDuty call.
	Off() error

	// MaxDuty returns the duty value for full power (hardware resolution).
	MaxDuty() uint16
}

// Pattern names a buzzer pattern the driver board knows how to play.
type Pattern string

const (
	PatternConfirm Pattern = "CONFIRM" // short acknowledge chirp
	PatternStart   Pattern = "START"   // run started
	PatternDone    Pattern = "DONE"    // triple beep on completion
	PatternAlarm   Pattern = "ALARM"   // fault / interlock alarm
)

// Annunciator plays audible feedback patterns.
type Annunciator interface {
	Play(p Pattern) error
}

// SilentAnnunciator discards every pattern. Used when the buzzer is disabled
// in configuration and as the default in tests.
type SilentAnnunciator struct{}

func (SilentAnnunciator) Play(Pattern) error { return nil }

var _ Annunciator = SilentAnnunciator{}
