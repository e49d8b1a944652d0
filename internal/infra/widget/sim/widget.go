// Package sim provides a simulated media widget. It plays media against the
// wall clock so the daemon can run headless and tests can drive the full
// playback stack.
package sim

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tubebox/internal/app/player"
)

// Defaults
const (
	DefaultTick          = 250 * time.Millisecond
	DefaultLength        = 3 * time.Minute
	DefaultFailCode      = player.ErrCodeNotEmbeddable2
	commandBufferSize    = 64
	initialVolumePercent = 100
)

// ErrAlreadyInitialized is returned when Init is called twice.
var ErrAlreadyInitialized = errors.New("widget already initialized")

// Config configures the simulation.
type Config struct {
	ReadyDelay    time.Duration // Delay before OnReady fires
	Tick          time.Duration // Time update interval while playing
	Speed         float64       // Playback rate; 1 is real time
	DefaultLength time.Duration // Used when the media carries no length
	FailIDs       []string      // Media IDs that fail to cue
	FailCode      int           // Error code reported for FailIDs
}

// Widget is a player.Widget that simulates playback.
// Callbacks fire on the widget's own goroutine.
type Widget struct {
	cfg  Config
	fail map[string]struct{}

	mu      sync.Mutex
	started bool
	cmds    chan func()
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once

	// Owned by the run goroutine
	cb       player.Callbacks
	media    player.Media
	cued     bool
	state    int
	position float64
	length   float64
	volume   int
	last     time.Time
}

var _ player.Widget = (*Widget)(nil)

// New creates a simulated widget.
func New(cfg Config) *Widget {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 1
	}
	if cfg.DefaultLength <= 0 {
		cfg.DefaultLength = DefaultLength
	}
	if cfg.FailCode == 0 {
		cfg.FailCode = DefaultFailCode
	}

	fail := make(map[string]struct{}, len(cfg.FailIDs))
	for _, id := range cfg.FailIDs {
		fail[id] = struct{}{}
	}
	return &Widget{
		cfg:    cfg,
		fail:   fail,
		cmds:   make(chan func(), commandBufferSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		state:  player.WidgetUnstarted,
		volume: initialVolumePercent,
	}
}

// Init starts the simulation. OnReady fires after ReadyDelay.
func (w *Widget) Init(host string, cb player.Callbacks) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyInitialized
	}
	select {
	case <-w.stop:
		return errors.New("widget destroyed")
	default:
	}
	w.started = true
	w.cb = cb

	zlog.Debug().Msgf("sim: widget starting in %q", host)
	go w.run()
	return nil
}

// Cue loads m paused at position zero.
func (w *Widget) Cue(m player.Media) {
	w.send(func() { w.cue(m) })
}

// Play starts or resumes the cued media.
func (w *Widget) Play() {
	w.send(w.play)
}

// Pause pauses playback.
func (w *Widget) Pause() {
	w.send(w.pause)
}

// Seek moves the playback position.
func (w *Widget) Seek(seconds float64) {
	w.send(func() { w.seek(seconds) })
}

// SetVolume sets the volume.
func (w *Widget) SetVolume(percent int) {
	w.send(func() { w.volume = player.ClampVolume(percent) })
}

// Destroy stops the simulation and waits for its goroutine to exit.
func (w *Widget) Destroy() {
	w.once.Do(func() { close(w.stop) })

	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if started {
		<-w.done
	}
}

func (w *Widget) send(fn func()) {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if !started {
		return
	}
	select {
	case w.cmds <- fn:
	case <-w.stop:
	}
}

func (w *Widget) run() {
	defer close(w.done)

	if w.cfg.ReadyDelay > 0 {
		select {
		case <-w.stop:
			return
		case <-time.After(w.cfg.ReadyDelay):
		}
	}
	if w.cb.OnReady != nil {
		w.cb.OnReady()
	}

	ticker := time.NewTicker(w.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case fn := <-w.cmds:
			fn()
		case now := <-ticker.C:
			w.advance(now)
		}
	}
}

func (w *Widget) cue(m player.Media) {
	if _, ok := w.fail[m.ID]; ok {
		zlog.Debug().Msgf("sim: failing media %s", m.ID)
		w.cued = false
		w.state = player.WidgetUnstarted
		w.notifyError(m.ID, w.cfg.FailCode)
		return
	}

	length := m.Length
	if length <= 0 {
		length = w.cfg.DefaultLength
	}
	w.media = m
	w.cued = true
	w.position = 0
	w.length = length.Seconds()
	w.setState(player.WidgetCued)
}

func (w *Widget) play() {
	if !w.cued || w.state == player.WidgetPlaying {
		return
	}
	if w.state == player.WidgetEnded {
		w.position = 0
	}
	w.last = time.Now()
	w.setState(player.WidgetPlaying)
}

func (w *Widget) pause() {
	if !w.cued || w.state != player.WidgetPlaying {
		return
	}
	w.advance(time.Now())
	if w.state == player.WidgetPlaying {
		w.setState(player.WidgetPaused)
	}
}

func (w *Widget) seek(seconds float64) {
	if !w.cued {
		return
	}
	w.position = player.ClampSeek(seconds, w.length)
	w.last = time.Now()
	if w.state == player.WidgetEnded && w.position < w.length {
		w.setState(player.WidgetPaused)
	}
	w.notifyTime()
}

// advance moves the playhead by the elapsed wall time while playing.
func (w *Widget) advance(now time.Time) {
	if !w.cued || w.state != player.WidgetPlaying {
		return
	}
	w.position += now.Sub(w.last).Seconds() * w.cfg.Speed
	w.last = now

	if w.position >= w.length {
		w.position = w.length
		w.notifyTime()
		w.setState(player.WidgetEnded)
		return
	}
	w.notifyTime()
}

func (w *Widget) setState(code int) {
	w.state = code
	if w.cb.OnStateChange != nil {
		w.cb.OnStateChange(w.media.ID, code)
	}
}

func (w *Widget) notifyTime() {
	if w.cb.OnTimeUpdate != nil {
		w.cb.OnTimeUpdate(w.media.ID, w.position, w.length)
	}
}

func (w *Widget) notifyError(id string, code int) {
	if w.cb.OnError != nil {
		w.cb.OnError(id, code)
	}
}
