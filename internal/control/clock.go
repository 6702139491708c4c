package control

import "time"

// Clock is the monotonic millisecond time source the kernel runs on. The
// counter wraps after ~49.7 days of uptime; every duration comparison in
// this package goes through TicksDiff so wrap is harmless.
type Clock interface {
	NowMs() uint32
}

// TicksDiff returns the signed difference a-b between two tick counts,
// correct across wraparound for spans under half the counter range.
func TicksDiff(a, b uint32) int32 {
	return int32(a - b)
}

// WallClock derives monotonic milliseconds from the runtime clock.
type WallClock struct {
	start time.Time
}

func NewWallClock() *WallClock {
	return &WallClock{start: time.Now()}
}

func (c *WallClock) NowMs() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}

// ManualClock is a hand-driven Clock for tests.
type ManualClock struct {
	now uint32
}

func NewManualClock(start uint32) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) NowMs() uint32 { return c.now }

// Advance moves the clock forward by ms.
func (c *ManualClock) Advance(ms uint32) { c.now += ms }

var (
	_ Clock = (*WallClock)(nil)
	_ Clock = (*ManualClock)(nil)
)
