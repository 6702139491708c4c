// Package simhw simulates the chamber driver board in memory: a 16-bit PWM
// panel stage, a lid switch that tests and the dev API can flip, a buzzer
// that records the last pattern, and a first-order thermal model of the
// chamber air so status screens show something alive on a bench.
package simhw

import (
	"sync"
	"time"

	"github.com/chewxy/math32"

	"uvchamber/internal/hal"
)

// maxDuty matches the 16-bit PWM resolution of the real driver board.
const maxDuty uint16 = 0xffff

// Config tunes the simulated chamber. Zero values fall back to defaults.
type Config struct {
	AmbientC  float32 // resting air temperature
	HeatRiseC float32 // steady-state rise above ambient at full power
	TauS      float32 // thermal time constant, seconds
	StepMs    int     // model update period
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.AmbientC == 0 {
		out.AmbientC = 24
	}
	if out.HeatRiseC == 0 {
		out.HeatRiseC = 18
	}
	if out.TauS == 0 {
		out.TauS = 90
	}
	if out.StepMs == 0 {
		out.StepMs = 100
	}
	return out
}

// Status is a point-in-time snapshot of the simulated hardware.
type Status struct {
	DoorClosed  bool        `json:"door_closed"`
	SensorFault bool        `json:"sensor_fault"`
	Duty        uint16      `json:"duty"`
	DutyPct     float64     `json:"duty_pct"`
	TempC       float32     `json:"temp_c"`
	LastPattern hal.Pattern `json:"last_pattern,omitempty"`
}

// Chamber is the simulated driver board. It implements hal.DoorSensor,
// hal.PWMOutput and hal.Annunciator.
type Chamber struct {
	mu          sync.RWMutex
	cfg         Config
	duty        uint16
	doorClosed  bool
	sensorFault bool
	lastPattern hal.Pattern
	tempC       float32

	done      chan struct{}
	closeOnce sync.Once
}

var (
	_ hal.DoorSensor  = (*Chamber)(nil)
	_ hal.PWMOutput   = (*Chamber)(nil)
	_ hal.Annunciator = (*Chamber)(nil)
)

// New builds a simulated chamber with the lid closed and the panel dark, and
// starts the thermal model.
func New(cfg Config) *Chamber {
	c := &Chamber{
		cfg:        cfg.withDefaults(),
		doorClosed: true,
		done:       make(chan struct{}),
	}
	c.tempC = c.cfg.AmbientC
	go c.run()
	return c
}

// Close stops the thermal model goroutine.
func (c *Chamber) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// Sample implements hal.DoorSensor.
func (c *Chamber) Sample() hal.DoorSample {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return hal.DoorSample{Closed: c.doorClosed, Fault: c.sensorFault}
}

// SetDuty implements hal.PWMOutput.
func (c *Chamber) SetDuty(duty uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.duty = duty
	return nil
}

// Off implements hal.PWMOutput.
func (c *Chamber) Off() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.duty = 0
	return nil
}

// MaxDuty implements hal.PWMOutput.
func (c *Chamber) MaxDuty() uint16 { return maxDuty }

// Play implements hal.Annunciator.
func (c *Chamber) Play(p hal.Pattern) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPattern = p
	return nil
}

// SetDoor opens or closes the simulated lid.
func (c *Chamber) SetDoor(closed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.doorClosed = closed
}

// SetSensorFault makes lid reads report a sensor fault until cleared.
func (c *Chamber) SetSensorFault(fault bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sensorFault = fault
}

// Status returns a snapshot of the simulated hardware.
func (c *Chamber) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{
		DoorClosed:  c.doorClosed,
		SensorFault: c.sensorFault,
		Duty:        c.duty,
		DutyPct:     float64(c.duty) / float64(maxDuty) * 100,
		TempC:       c.tempC,
		LastPattern: c.lastPattern,
	}
}

func (c *Chamber) run() {
	ticker := time.NewTicker(time.Duration(c.cfg.StepMs) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.step(float32(c.cfg.StepMs) / 1000)
		}
	}
}

// step advances the first-order thermal model by dt seconds: the air trends
// toward ambient plus a rise proportional to panel duty.
func (c *Chamber) step(dt float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	target := c.cfg.AmbientC + c.cfg.HeatRiseC*float32(c.duty)/float32(maxDuty)
	alpha := 1 - math32.Exp(-dt/c.cfg.TauS)
	c.tempC += (target - c.tempC) * alpha
}
