package timer

import "time"

// EventType defines the type of timer event.
type EventType string

const (
	EventStateChange EventType = "state_change"
	EventTick        EventType = "tick"
	EventCommitError EventType = "commit_error"
)

// Event is a timer update for observers.
type Event struct {
	Type           EventType
	Status         Status
	ElapsedSeconds int64
	Message        string
	At             time.Time
}
