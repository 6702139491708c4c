package control

import (
	"fmt"
	"math"

	"uvchamber/internal/hal"
	"uvchamber/internal/logger"
)

// PWMFront maps requested intensity percent onto the panel's duty range.
// It is the only path the kernel writes hardware through.
type PWMFront struct {
	out     hal.PWMOutput
	log     *logger.Logger
	lastPct float64
}

func NewPWMFront(out hal.PWMOutput, log *logger.Logger) *PWMFront {
	return &PWMFront{out: out, log: log}
}

// SetIntensity applies pct of full panel power. Out-of-range requests are
// clamped to [0,100] and logged rather than refused; the panel holds the
// written duty until the next write.
func (f *PWMFront) SetIntensity(pct float64) error {
	switch {
	case math.IsNaN(pct), pct < 0:
		f.log.Warnf("pwm: clamping out-of-range intensity %.2f%%", pct)
		pct = 0
	case pct > 100:
		f.log.Warnf("pwm: clamping out-of-range intensity %.2f%%", pct)
		pct = 100
	}
	duty := uint16(math.Round(pct / 100 * float64(f.out.MaxDuty())))
	if err := f.out.SetDuty(duty); err != nil {
		return fmt.Errorf("failed to write panel duty: %w", err)
	}
	f.lastPct = pct
	return nil
}

// EmergencyOff forces the panel dark. It bypasses intensity mapping and is
// the only write permitted while the interlock is open.
func (f *PWMFront) EmergencyOff() error {
	f.lastPct = 0
	if err := f.out.Off(); err != nil {
		return fmt.Errorf("failed to force panel off: %w", err)
	}
	return nil
}

// LastIntensity returns the most recently commanded percent.
func (f *PWMFront) LastIntensity() float64 { return f.lastPct }
