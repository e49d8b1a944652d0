package player

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tubebox/internal/domain/track"
)

// owners records which widgets are bound to an adapter.
var owners sync.Map // Widget -> *WidgetAdapter

type initAttempt struct {
	once sync.Once
	done chan struct{}
	err  error
}

func (ia *initAttempt) finish(err error) {
	ia.once.Do(func() {
		ia.err = err
		close(ia.done)
	})
}

// WidgetAdapter drives a Widget and translates its callbacks into Events.
// A widget can be bound to at most one adapter at a time.
type WidgetAdapter struct {
	widget Widget

	// cmdMu serializes calls into the widget.
	cmdMu sync.Mutex

	mu       sync.Mutex
	init     *initAttempt
	ready    bool    // widget signalled readiness
	target   string  // track id of the most recent LoadTrack
	pending  *Media  // cue requested but not yet sent to the widget
	loading  bool    // target has not settled yet
	duration float64 // seconds, for the target
	closed   bool

	// Event pump
	evMu       sync.Mutex
	events     []Event
	subscriber func(Event)
	wake       chan struct{}
	stop       chan struct{}
	done       chan struct{}
}

var _ Adapter = (*WidgetAdapter)(nil)

// NewWidgetAdapter binds w to a new adapter.
// Widgets must be comparable (pointer types in practice).
func NewWidgetAdapter(w Widget) (*WidgetAdapter, error) {
	a := &WidgetAdapter{
		widget: w,
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	if _, loaded := owners.LoadOrStore(w, a); loaded {
		return nil, ErrWidgetOwned
	}

	go a.dispatchLoop()
	return a, nil
}

// Initialize starts the widget and waits for its readiness signal.
func (a *WidgetAdapter) Initialize(ctx context.Context, host string) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrAdapterClosed
	}
	if a.ready {
		a.mu.Unlock()
		return nil
	}

	attempt := a.init
	start := attempt == nil
	if start {
		attempt = &initAttempt{done: make(chan struct{})}
		a.init = attempt
	}
	a.mu.Unlock()

	if start {
		zlog.Debug().Msgf("player: initializing widget: host=%s", host)
		if err := a.widget.Init(host, a.callbacks()); err != nil {
			a.mu.Lock()
			if a.init == attempt {
				a.init = nil
			}
			a.mu.Unlock()
			attempt.finish(errors.Wrap(err, "init widget"))
			<-attempt.done
			return attempt.err
		}
	}

	select {
	case <-attempt.done:
		return attempt.err
	case <-ctx.Done():
		return errors.Wrap(ErrWidgetInitTimedOut, ctx.Err().Error())
	}
}

// LoadTrack cues t, superseding any unsettled load.
// Before the widget is ready only the latest request is kept.
func (a *WidgetAdapter) LoadTrack(t track.Track) {
	m := Media{ID: t.ID, Length: t.Length()}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	if a.loading && a.target != t.ID {
		zlog.Debug().Msgf("player: load superseded: old=%s new=%s", a.target, t.ID)
	}
	a.target = t.ID
	a.loading = true
	a.duration = m.Length.Seconds()
	a.pending = &m
	a.mu.Unlock()

	a.cueLatest()
}

// Play resumes the loaded track. No-op until the load settles.
func (a *WidgetAdapter) Play() {
	if !a.accepting() {
		return
	}
	a.cmdMu.Lock()
	defer a.cmdMu.Unlock()
	a.widget.Play()
}

// Pause pauses the loaded track. No-op until the load settles.
func (a *WidgetAdapter) Pause() {
	if !a.accepting() {
		return
	}
	a.cmdMu.Lock()
	defer a.cmdMu.Unlock()
	a.widget.Pause()
}

// SeekTo moves the position, clamped into [0, duration].
func (a *WidgetAdapter) SeekTo(seconds float64) {
	a.mu.Lock()
	seconds = ClampSeek(seconds, a.duration)
	a.mu.Unlock()

	if !a.accepting() {
		return
	}
	a.cmdMu.Lock()
	defer a.cmdMu.Unlock()
	a.widget.Seek(seconds)
}

// SetVolume sets the volume, clamped into [0, 100].
func (a *WidgetAdapter) SetVolume(percent int) {
	percent = ClampVolume(percent)

	a.mu.Lock()
	ok := a.ready && !a.closed
	a.mu.Unlock()
	if !ok {
		return
	}
	a.cmdMu.Lock()
	defer a.cmdMu.Unlock()
	a.widget.SetVolume(percent)
}

// Subscribe registers the single event subscriber.
// fn runs on the adapter's dispatch goroutine and must not call Close.
func (a *WidgetAdapter) Subscribe(fn func(Event)) error {
	a.evMu.Lock()
	defer a.evMu.Unlock()

	if a.subscriber != nil {
		return ErrAlreadySubscribed
	}
	a.subscriber = fn
	return nil
}

// Close stops event delivery, destroys the widget and releases it.
func (a *WidgetAdapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	attempt := a.init
	ready := a.ready
	a.init = nil
	a.mu.Unlock()

	if attempt != nil && !ready {
		attempt.finish(ErrAdapterClosed)
	}

	close(a.stop)
	<-a.done

	a.cmdMu.Lock()
	a.widget.Destroy()
	a.cmdMu.Unlock()

	owners.Delete(a.widget)
	return nil
}

func (a *WidgetAdapter) accepting() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready && !a.loading && !a.closed && a.target != ""
}

// cueLatest sends the most recent pending cue, if the widget can take it.
func (a *WidgetAdapter) cueLatest() {
	a.cmdMu.Lock()
	defer a.cmdMu.Unlock()

	a.mu.Lock()
	m := a.pending
	if m == nil || !a.ready || a.closed {
		a.mu.Unlock()
		return
	}
	a.pending = nil
	a.mu.Unlock()

	zlog.Debug().Msgf("player: cueing media: id=%s", m.ID)
	a.widget.Cue(*m)
}

func (a *WidgetAdapter) callbacks() Callbacks {
	return Callbacks{
		OnReady:       a.onWidgetReady,
		OnStateChange: a.onWidgetStateChange,
		OnTimeUpdate:  a.onWidgetTimeUpdate,
		OnError:       a.onWidgetError,
	}
}

func (a *WidgetAdapter) onWidgetReady() {
	a.mu.Lock()
	if a.ready || a.closed {
		a.mu.Unlock()
		return
	}
	a.ready = true
	attempt := a.init
	a.mu.Unlock()

	zlog.Debug().Msg("player: widget ready")
	if attempt != nil {
		attempt.finish(nil)
	}
	// The widget may hold cmdMu while calling back.
	go a.cueLatest()
}

func (a *WidgetAdapter) onWidgetStateChange(mediaID string, code int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || mediaID != a.target {
		return
	}

	if a.loading {
		switch code {
		case WidgetCued, WidgetPlaying, WidgetPaused:
			a.loading = false
			a.emit(Event{Type: EventReady, TrackID: mediaID, Duration: a.duration})
		default:
			return
		}
	}

	var state PlayerState
	switch code {
	case WidgetCued:
		return
	case WidgetUnstarted:
		state = StateUnstarted
	case WidgetBuffering:
		state = StateBuffering
	case WidgetPlaying:
		state = StatePlaying
	case WidgetPaused:
		state = StatePaused
	case WidgetEnded:
		state = StateEnded
	default:
		zlog.Debug().Msgf("player: ignoring unknown widget state: code=%d", code)
		return
	}
	a.emit(Event{Type: EventStateChange, TrackID: mediaID, State: state, Duration: a.duration})
}

func (a *WidgetAdapter) onWidgetTimeUpdate(mediaID string, current, duration float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || a.loading || mediaID != a.target {
		return
	}
	if duration > 0 {
		a.duration = duration
	}
	a.emit(Event{Type: EventTimeUpdate, TrackID: mediaID, Time: current, Duration: a.duration})
}

func (a *WidgetAdapter) onWidgetError(mediaID string, code int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if mediaID == "" {
		mediaID = a.target
	}
	if a.closed || mediaID != a.target {
		return
	}
	a.loading = false
	zlog.Debug().Msgf("player: widget error: id=%s code=%d", mediaID, code)
	a.emit(Event{Type: EventError, TrackID: mediaID, Code: code})
}

// emit appends e to the delivery FIFO. It never blocks.
func (a *WidgetAdapter) emit(e Event) {
	a.evMu.Lock()
	a.events = append(a.events, e)
	a.evMu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
}

func (a *WidgetAdapter) dispatchLoop() {
	defer close(a.done)

	for {
		select {
		case <-a.stop:
			return
		case <-a.wake:
		}

		for {
			a.evMu.Lock()
			if len(a.events) == 0 {
				a.evMu.Unlock()
				break
			}
			e := a.events[0]
			a.events = a.events[1:]
			fn := a.subscriber
			a.evMu.Unlock()

			if fn != nil {
				fn(e)
			}

			select {
			case <-a.stop:
				return
			default:
			}
		}
	}
}
