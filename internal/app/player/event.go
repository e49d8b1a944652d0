package player

// PlayerState is the widget-reported playback state.
type PlayerState int

const (
	StateUnstarted PlayerState = iota // Media cued but never started
	StateBuffering                    // Fetching media
	StatePlaying                      // Playing
	StatePaused                       // Paused
	StateEnded                        // Reached the end of the media
)

// String returns the string representation of the player state.
func (s PlayerState) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateBuffering:
		return "buffering"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// EventType represents an adapter event type.
type EventType int

const (
	EventReady       EventType = iota // The loaded track is cued and accepts commands
	EventStateChange                  // Widget playback state changed
	EventTimeUpdate                   // Playback position advanced
	EventError                        // Widget failed to cue or play the track
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventReady:
		return "ready"
	case EventStateChange:
		return "state_change"
	case EventTimeUpdate:
		return "time_update"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is pushed by the adapter to its single subscriber.
type Event struct {
	Type     EventType
	TrackID  string      // Track the event belongs to
	State    PlayerState // EventStateChange only
	Time     float64     // Position in seconds (EventTimeUpdate, EventReady)
	Duration float64     // Media duration in seconds, 0 when unknown
	Code     int         // EventError only
}
