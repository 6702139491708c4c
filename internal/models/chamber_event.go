package models

import "time"

// Event types recorded in the chamber log.
const (
	EventStart           = "START"
	EventStop            = "STOP"
	EventPause           = "PAUSE"
	EventResume          = "RESUME"
	EventComplete        = "COMPLETE"
	EventFault           = "FAULT"
	EventFaultAck        = "FAULT_ACK"
	EventInterlockOpen   = "INTERLOCK_OPEN"
	EventInterlockClosed = "INTERLOCK_CLOSED"
	EventValidationDrop  = "VALIDATION_REJECT"
)

// ChamberEvent is a single log entry.
type ChamberEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // START | STOP | PAUSE | RESUME | COMPLETE | FAULT | ...
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
