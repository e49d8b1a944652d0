package session

// Phase represents the session lifecycle phase.
type Phase int

const (
	PhaseInitializing Phase = iota // Widget initialization in flight
	PhaseReady                     // Widget ready
	PhaseFailed                    // Widget initialization failed or timed out
	PhaseClosed                    // Session has been closed
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseInitializing:
		return "initializing"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "failed"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}
