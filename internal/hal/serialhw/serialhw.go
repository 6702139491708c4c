// Package serialhw drives the chamber's MCU board over a serial line.
//
// The board speaks a line protocol. Inbound it reports the lid switch:
//
//	D 0        lid open
//	D 1        lid closed
//
// Outbound the service commands the panel and the buzzer:
//
//	V <duty>   set panel duty, 0..65535
//	X          panel off, emergency path
//	B <name>   play buzzer pattern
//
// The board repeats its door line a few times a second. If no report
// arrives within the staleness window the sensor is treated as faulted,
// which the interlock layer turns into an immediate lockout.
package serialhw

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"

	"uvchamber/internal/hal"
	"uvchamber/internal/logger"
)

const (
	// DefaultBaudRate is the rate the MCU firmware configures.
	DefaultBaudRate = 115200
	// DefaultStaleAfter is how long a door report stays trustworthy.
	DefaultStaleAfter = 500 * time.Millisecond
)

// Config selects and tunes the serial link.
type Config struct {
	Port       string
	BaudRate   int
	StaleAfter time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.BaudRate == 0 {
		out.BaudRate = DefaultBaudRate
	}
	if out.StaleAfter == 0 {
		out.StaleAfter = DefaultStaleAfter
	}
	return out
}

// Link is a connection to the MCU board. It implements hal.DoorSensor,
// hal.PWMOutput and hal.Annunciator.
type Link struct {
	cfg Config
	log *logger.Logger

	writeMu sync.Mutex
	conn    io.ReadWriteCloser

	// Door state maintained by the reader goroutine. lastSeen is unix
	// nanoseconds of the latest report, 0 before the first one.
	doorClosed atomic.Bool
	lastSeen   atomic.Int64

	done      chan struct{}
	closeOnce sync.Once
}

var (
	_ hal.DoorSensor  = (*Link)(nil)
	_ hal.PWMOutput   = (*Link)(nil)
	_ hal.Annunciator = (*Link)(nil)
)

// Open connects to the MCU board and starts the reader goroutine.
func Open(cfg Config, log *logger.Logger) (*Link, error) {
	cfg = cfg.withDefaults()
	conn, err := serial.Open(cfg.Port, &serial.Mode{BaudRate: cfg.BaudRate})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Port, err)
	}
	return newLink(cfg, conn, log), nil
}

// newLink wires a link over an established connection. Split from Open so
// tests can run the protocol over an in-memory pipe.
func newLink(cfg Config, conn io.ReadWriteCloser, log *logger.Logger) *Link {
	l := &Link{
		cfg:  cfg,
		log:  log,
		conn: conn,
		done: make(chan struct{}),
	}
	go l.readLoop()
	return l
}

// Close stops the reader and closes the port.
func (l *Link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.conn.Close()
	})
	return err
}

// Sample implements hal.DoorSensor. It reports a fault before the first
// door report and whenever reports stop arriving.
func (l *Link) Sample() hal.DoorSample {
	last := l.lastSeen.Load()
	if last == 0 || time.Since(time.Unix(0, last)) > l.cfg.StaleAfter {
		return hal.DoorSample{Fault: true}
	}
	return hal.DoorSample{Closed: l.doorClosed.Load()}
}

// SetDuty implements hal.PWMOutput.
func (l *Link) SetDuty(duty uint16) error {
	return l.writeLine(fmt.Sprintf("V %d", duty))
}

// Off implements hal.PWMOutput.
func (l *Link) Off() error {
	return l.writeLine("X")
}

// MaxDuty implements hal.PWMOutput.
func (l *Link) MaxDuty() uint16 { return 0xffff }

// Play implements hal.Annunciator.
func (l *Link) Play(p hal.Pattern) error {
	return l.writeLine(fmt.Sprintf("B %s", p))
}

func (l *Link) writeLine(line string) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if _, err := l.conn.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("failed to write %q to MCU: %w", line, err)
	}
	return nil
}

func (l *Link) readLoop() {
	scanner := bufio.NewScanner(l.conn)
	for scanner.Scan() {
		select {
		case <-l.done:
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := l.handleLine(line); err != nil {
			l.log.Warnf("serial: dropping line %q: %v", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		select {
		case <-l.done:
			// Close tore down the port under the scanner.
		default:
			l.log.Errorf("serial: read loop stopped: %v", err)
		}
	}
	// No further reports will arrive; Sample goes stale on its own.
}

func (l *Link) handleLine(line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "D":
		if len(fields) != 2 || (fields[1] != "0" && fields[1] != "1") {
			return fmt.Errorf("malformed door report")
		}
		l.doorClosed.Store(fields[1] == "1")
		l.lastSeen.Store(time.Now().UnixNano())
		return nil
	default:
		// Firmware debug chatter is expected; keep it visible at debug.
		l.log.Debugf("serial: ignoring line %q", line)
		return nil
	}
}
