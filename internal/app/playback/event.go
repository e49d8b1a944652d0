package playback

import (
	"fmt"

	"github.com/osa030/tubebox/internal/domain/track"
)

// Snapshot is a read-only view of playback state.
// Queue shares the controller's track slice and must not be modified.
type Snapshot struct {
	Seq          uint64       // Monotonic publish sequence
	State        State        // Controller state
	IsPlaying    bool         // True while the track is playing
	CurrentTime  float64      // Seconds, >= 0
	Duration     float64      // Seconds, >= 0
	Volume       int          // 0..100
	CurrentTrack *track.Track // nil when the queue is empty
	CurrentIndex int          // -1 when the queue is empty
	Queue        []track.Track
	Error        string // Last load error description, empty when none
}

// HasNext reports whether Next would move the cursor.
func (s Snapshot) HasNext() bool {
	return s.CurrentIndex+1 < len(s.Queue)
}

// HasPrevious reports whether Previous would move the cursor.
func (s Snapshot) HasPrevious() bool {
	return s.CurrentIndex > 0
}

// commandType represents a user command buffered while loading.
type commandType int

const (
	cmdPlay commandType = iota
	cmdPause
	cmdSeek
	cmdVolume
)

// String returns the string representation of the command type.
func (c commandType) String() string {
	switch c {
	case cmdPlay:
		return "play"
	case cmdPause:
		return "pause"
	case cmdSeek:
		return "seek"
	case cmdVolume:
		return "volume"
	default:
		return "unknown"
	}
}

// command is a buffered user command.
type command struct {
	Type    commandType
	Seconds float64 // cmdSeek
	Volume  int     // cmdVolume
}

func (c command) String() string {
	switch c.Type {
	case cmdSeek:
		return fmt.Sprintf("seek(%.1f)", c.Seconds)
	case cmdVolume:
		return fmt.Sprintf("volume(%d)", c.Volume)
	default:
		return c.Type.String()
	}
}
