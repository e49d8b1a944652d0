// Package playback provides the playback controller: the state machine that
// reconciles the queue, the player adapter and user commands.
package playback

// State represents the controller state.
type State int

const (
	StateIdle    State = iota // No track selected, stopped, or queue exhausted
	StateLoading              // Cue in flight; commands are buffered
	StatePaused               // Track ready, not playing
	StatePlaying              // Track playing
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}
