package process

import "time"

// State represents the current state of a managed process.
type State string

// Process states.
const (
	StateIdle     State = "idle"     // Not started yet
	StateRunning  State = "running"  // Active
	StateStopping State = "stopping" // Stop requested, waiting for exit
	StateExited   State = "exited"   // Exited with code 0 or after Stop
	StateError    State = "error"    // Failed to start or exited non-zero on its own
)

// Info is a snapshot of a managed process.
type Info struct {
	ID        string
	State     State
	PID       int
	StartedAt time.Time
	ExitCode  int
	LastError error
}
