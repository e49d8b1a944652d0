// Package player isolates the externally owned media widget behind a narrow,
// event-driven Adapter.
package player

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/tubebox/internal/domain/track"
)

// Errors
var (
	ErrWidgetOwned        = errors.New("widget is already owned by another adapter")
	ErrAlreadySubscribed  = errors.New("adapter already has a subscriber")
	ErrAdapterClosed      = errors.New("adapter is closed")
	ErrWidgetInitTimedOut = errors.New("widget did not become ready")
)

// Adapter is the surface the playback controller drives.
// Implementations deliver events to exactly one subscriber, in order, on a
// goroutine other than the caller's.
type Adapter interface {
	// Initialize prepares the widget inside host. Concurrent and repeated
	// calls share a single initialization.
	Initialize(ctx context.Context, host string) error
	// LoadTrack cues t. A later call supersedes an unsettled earlier one.
	LoadTrack(t track.Track)
	Play()
	Pause()
	// SeekTo clamps seconds into [0, duration].
	SeekTo(seconds float64)
	// SetVolume clamps percent into [0, 100].
	SetVolume(percent int)
	Subscribe(fn func(Event)) error
	Close() error
}

// Widget state codes, as reported by the embeddable player.
const (
	WidgetUnstarted = -1
	WidgetEnded     = 0
	WidgetPlaying   = 1
	WidgetPaused    = 2
	WidgetBuffering = 3
	WidgetCued      = 5
)

// Media identifies what the widget should cue.
type Media struct {
	ID     string
	Length time.Duration // Hint; 0 when unknown
}

// Callbacks are registered with the widget once, at Init.
// The widget may invoke them from any goroutine.
type Callbacks struct {
	OnReady       func()
	OnStateChange func(mediaID string, code int)
	OnTimeUpdate  func(mediaID string, current, duration float64)
	OnError       func(mediaID string, code int)
}

// Widget is the third-party embeddable player. It initializes asynchronously
// and reports readiness through Callbacks.OnReady.
type Widget interface {
	Init(host string, cb Callbacks) error
	Cue(m Media)
	Play()
	Pause()
	Seek(seconds float64)
	SetVolume(percent int)
	Destroy()
}

// Widget error codes.
const (
	ErrCodeInvalidParam   = 2
	ErrCodeHTML5          = 5
	ErrCodeNotFound       = 100
	ErrCodeNotEmbeddable  = 101
	ErrCodeNotEmbeddable2 = 150
)

// ErrorDescription returns a human readable description of a widget error code.
func ErrorDescription(code int) string {
	switch code {
	case ErrCodeInvalidParam:
		return "invalid media id"
	case ErrCodeHTML5:
		return "media cannot be played in this player"
	case ErrCodeNotFound:
		return "media not found or removed"
	case ErrCodeNotEmbeddable, ErrCodeNotEmbeddable2:
		return "owner does not allow embedded playback"
	default:
		return fmt.Sprintf("player error %d", code)
	}
}

// LoadError reports a track the widget failed to cue or play.
type LoadError struct {
	TrackID string
	Code    int
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load track %s: %s", e.TrackID, ErrorDescription(e.Code))
}

// ClampVolume clamps percent into [0, 100].
func ClampVolume(percent int) int {
	switch {
	case percent < 0:
		return 0
	case percent > 100:
		return 100
	default:
		return percent
	}
}

// ClampSeek clamps seconds into [0, duration]. An unknown duration (<= 0)
// only bounds the lower end.
func ClampSeek(seconds, duration float64) float64 {
	if seconds < 0 {
		return 0
	}
	if duration > 0 && seconds > duration {
		return duration
	}
	return seconds
}
