package playback

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tubebox/internal/app/notification"
	"github.com/osa030/tubebox/internal/app/player"
	"github.com/osa030/tubebox/internal/app/queue"
	"github.com/osa030/tubebox/internal/app/sleeptimer"
	"github.com/osa030/tubebox/internal/domain/track"
)

// DefaultVolume is the volume used when Config.InitialVolume is unset.
const DefaultVolume = 100

// Config holds controller configuration.
type Config struct {
	InitialVolume        int           // 0..100, 0 means DefaultVolume
	SleepTimerResolution time.Duration // Wall-clock poll interval of the sleep timer
}

// Controller is the playback state machine. It owns the queue and the adapter,
// consumes adapter events and user commands, and publishes Snapshots.
// All transitions are serialized by mu; snapshots are published after mu is
// released, in sequence order.
type Controller struct {
	mu sync.Mutex

	adapter player.Adapter
	queue   *queue.Queue
	tracks  []track.Track // Immutable view of the queue, shared with snapshots

	state     State
	autoplay  bool      // Auto-play intent of the in-flight load
	pending   []command // Commands issued while loading
	loadingID string    // Track the adapter is on; events for others are stale

	isPlaying   bool
	currentTime float64
	duration    float64
	volume      int
	loadErr     *player.LoadError

	timer    *sleeptimer.Timer
	notifier *notification.Manager[Snapshot]
	last     Snapshot
}

// NewController creates a controller and binds it as the adapter's subscriber.
func NewController(adapter player.Adapter, config Config) (*Controller, error) {
	volume := config.InitialVolume
	if volume == 0 {
		volume = DefaultVolume
	}

	c := &Controller{
		adapter:  adapter,
		queue:    queue.New(),
		state:    StateIdle,
		volume:   player.ClampVolume(volume),
		notifier: notification.NewManager[Snapshot](),
	}
	c.timer = sleeptimer.New(config.SleepTimerResolution, c.onSleepTimerFired)

	if err := adapter.Subscribe(c.handleEvent); err != nil {
		return nil, errors.Wrap(err, "subscribe to player adapter")
	}

	c.mu.Lock()
	c.last = c.snapshotLocked()
	c.mu.Unlock()
	return c, nil
}

// Initialize initializes the adapter's widget inside host. It blocks until the
// widget is ready; callers that must not block run it on its own goroutine.
func (c *Controller) Initialize(ctx context.Context, host string) error {
	return c.adapter.Initialize(ctx, host)
}

// SetQueue replaces the queue and starts loading the track at start with
// auto-play intent. Buffered commands are discarded.
func (c *Controller) SetQueue(tracks []track.Track, start int) {
	c.setQueue(tracks, start, true)
}

// CueQueue replaces the queue like SetQueue without auto-play intent.
func (c *Controller) CueQueue(tracks []track.Track, start int) {
	c.setQueue(tracks, start, false)
}

func (c *Controller) setQueue(tracks []track.Track, start int, autoplay bool) {
	c.mu.Lock()
	c.queue.Set(tracks, start)
	c.tracks = c.queue.Tracks()
	c.discardPendingLocked()

	zlog.Debug().Msgf("playback: queue replaced: size=%d start=%d autoplay=%v", len(tracks), start, autoplay)

	if _, ok := c.queue.Current(); ok {
		c.beginLoadLocked(autoplay)
	} else {
		c.stopLocked()
		c.loadingID = ""
		c.currentTime = 0
		c.duration = 0
		c.loadErr = nil
	}
	snap := c.commitLocked()
	c.mu.Unlock()

	c.publish(snap)
}

// PlayTrack moves the cursor to index and loads it with auto-play intent.
// Returns false if index is out of range.
func (c *Controller) PlayTrack(index int) bool {
	c.mu.Lock()
	if !c.queue.JumpTo(index) {
		c.mu.Unlock()
		return false
	}
	c.discardPendingLocked()
	c.beginLoadLocked(true)
	snap := c.commitLocked()
	c.mu.Unlock()

	c.publish(snap)
	return true
}

// Play starts or resumes playback. While loading the command is buffered.
// After a failed load, or once the queue is exhausted, the current track is
// loaded again with auto-play intent.
func (c *Controller) Play() {
	c.mu.Lock()
	changed := c.playLocked()
	snap := c.commitIfLocked(changed)
	c.mu.Unlock()

	c.publish(snap)
}

// Pause pauses playback. While loading the command is buffered.
// Pausing while paused or idle does nothing.
func (c *Controller) Pause() {
	c.mu.Lock()
	changed := c.pauseLocked()
	snap := c.commitIfLocked(changed)
	c.mu.Unlock()

	c.publish(snap)
}

// Next advances the queue. Returns false at the last track.
func (c *Controller) Next() bool {
	return c.move(c.queue.Next, "next")
}

// Previous moves the queue back. Returns false at the first track.
func (c *Controller) Previous() bool {
	return c.move(c.queue.Previous, "previous")
}

func (c *Controller) move(step func() bool, name string) bool {
	c.mu.Lock()
	wasPlaying := c.isPlaying
	if c.state == StateLoading {
		wasPlaying = c.autoplay
	}
	if !step() {
		index := c.queue.CurrentIndex()
		c.mu.Unlock()
		zlog.Debug().Msgf("playback: %s at queue boundary: index=%d", name, index)
		return false
	}
	c.discardPendingLocked()
	c.beginLoadLocked(wasPlaying)
	snap := c.commitLocked()
	c.mu.Unlock()

	c.publish(snap)
	return true
}

// SeekTo moves the playback position, clamped into [0, duration].
// Ignored while idle; buffered while loading.
func (c *Controller) SeekTo(seconds float64) {
	c.mu.Lock()
	changed := false
	switch c.state {
	case StateIdle:
	case StateLoading:
		c.bufferLocked(command{Type: cmdSeek, Seconds: seconds})
	default:
		c.seekLocked(seconds)
		changed = true
	}
	snap := c.commitIfLocked(changed)
	c.mu.Unlock()

	c.publish(snap)
}

// SetVolume sets the volume, clamped into [0, 100]. The snapshot reflects the
// new volume at once; the adapter receives it after any in-flight load.
func (c *Controller) SetVolume(percent int) {
	c.mu.Lock()
	c.volume = player.ClampVolume(percent)
	if c.state == StateLoading {
		c.bufferLocked(command{Type: cmdVolume, Volume: c.volume})
	} else {
		c.adapter.SetVolume(c.volume)
	}
	snap := c.commitLocked()
	c.mu.Unlock()

	c.publish(snap)
}

// Stop stops playback, discards buffered commands and returns to idle.
// The queue and cursor are kept.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.discardPendingLocked()
	changed := c.state != StateIdle
	c.stopLocked()
	snap := c.commitIfLocked(changed)
	c.mu.Unlock()

	c.publish(snap)
}

// Retry loads the current track again with auto-play intent.
// Returns false if the queue is empty.
func (c *Controller) Retry() bool {
	c.mu.Lock()
	if _, ok := c.queue.Current(); !ok {
		c.mu.Unlock()
		return false
	}
	c.discardPendingLocked()
	c.beginLoadLocked(true)
	snap := c.commitLocked()
	c.mu.Unlock()

	c.publish(snap)
	return true
}

// StartSleepTimer pauses playback after d. Restarting replaces the schedule.
// Returns false once the controller is closed.
func (c *Controller) StartSleepTimer(d time.Duration) bool {
	return c.timer.Start(d)
}

// CancelSleepTimer aborts a pending sleep timer. No-op when inactive.
func (c *Controller) CancelSleepTimer() {
	c.timer.Cancel()
}

// SleepTimer returns the sleep timer state.
func (c *Controller) SleepTimer() sleeptimer.State {
	return c.timer.State()
}

// Snapshot returns the latest snapshot.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Subscribe registers a listener for snapshot updates and delivers the
// current snapshot to it. The returned function unsubscribes.
func (c *Controller) Subscribe(listener func(Snapshot)) func() {
	id := c.notifier.Subscribe(listener)

	c.mu.Lock()
	snap := c.last
	c.mu.Unlock()
	c.notifier.Send(id, snap.Seq, snap)

	return func() {
		c.notifier.Unsubscribe(id)
	}
}

// Close stops the sleep timer, the subscriptions and the adapter.
func (c *Controller) Close() error {
	c.timer.Close()
	c.notifier.Close()
	return c.adapter.Close()
}

func (c *Controller) onSleepTimerFired() {
	zlog.Debug().Msg("playback: sleep timer fired, pausing")
	c.Pause()
}

// handleEvent consumes adapter events. Events for a track other than the
// one the adapter was last asked to load are dropped.
func (c *Controller) handleEvent(e player.Event) {
	c.mu.Lock()
	if e.TrackID != c.loadingID {
		c.mu.Unlock()
		zlog.Debug().Msgf("playback: dropping stale event: type=%s track=%s", e.Type, e.TrackID)
		return
	}

	changed := false
	switch e.Type {
	case player.EventReady:
		changed = c.onReadyLocked(e)
	case player.EventStateChange:
		changed = c.onStateChangeLocked(e)
	case player.EventTimeUpdate:
		changed = c.onTimeUpdateLocked(e)
	case player.EventError:
		changed = c.onErrorLocked(e)
	}
	snap := c.commitIfLocked(changed)
	c.mu.Unlock()

	c.publish(snap)
}

func (c *Controller) onReadyLocked(e player.Event) bool {
	if c.state != StateLoading {
		return false
	}
	if e.Duration > 0 {
		c.duration = e.Duration
	}

	c.adapter.SetVolume(c.volume)
	if c.autoplay {
		c.adapter.Play()
		c.state = StatePlaying
		c.isPlaying = true
	} else {
		c.state = StatePaused
		c.isPlaying = false
	}
	zlog.Debug().Msgf("playback: track ready: track=%s state=%s buffered=%d", e.TrackID, c.state, len(c.pending))

	pending := c.pending
	c.pending = nil
	for _, cmd := range pending {
		zlog.Debug().Msgf("playback: replaying buffered command: %s", cmd)
		c.applyLocked(cmd)
	}
	return true
}

// onStateChangeLocked follows the widget. A track in error stays paused
// until Play or Retry reloads it.
func (c *Controller) onStateChangeLocked(e player.Event) bool {
	if c.state == StateLoading || c.state == StateIdle {
		return false
	}
	if c.loadErr != nil {
		zlog.Debug().Msgf("playback: ignoring state change in error: track=%s state=%s", e.TrackID, e.State)
		return false
	}
	if e.Duration > 0 {
		c.duration = e.Duration
	}

	switch e.State {
	case player.StatePlaying:
		c.state = StatePlaying
		c.isPlaying = true
	case player.StatePaused:
		c.state = StatePaused
		c.isPlaying = false
	case player.StateEnded:
		c.onEndedLocked()
	default:
		return false
	}
	return true
}

func (c *Controller) onEndedLocked() {
	if c.queue.Next() {
		zlog.Debug().Msgf("playback: track ended, advancing: index=%d", c.queue.CurrentIndex())
		c.beginLoadLocked(true)
		return
	}

	zlog.Debug().Msgf("playback: queue exhausted: index=%d", c.queue.CurrentIndex())
	c.state = StateIdle
	c.isPlaying = false
	c.currentTime = c.duration
}

func (c *Controller) onTimeUpdateLocked(e player.Event) bool {
	if c.state != StatePlaying && c.state != StatePaused {
		return false
	}
	if e.Duration > 0 {
		c.duration = e.Duration
	}
	c.currentTime = player.ClampSeek(e.Time, c.duration)
	return true
}

func (c *Controller) onErrorLocked(e player.Event) bool {
	if c.state == StateIdle {
		return false
	}

	c.loadErr = &player.LoadError{TrackID: e.TrackID, Code: e.Code}
	zlog.Debug().Msgf("playback: load error: %v", c.loadErr)

	c.discardPendingLocked()
	c.state = StatePaused
	c.isPlaying = false
	return true
}

func (c *Controller) playLocked() bool {
	switch {
	case c.state == StateLoading:
		c.bufferLocked(command{Type: cmdPlay})
		return false
	case c.loadErr != nil, c.state == StateIdle:
		if _, ok := c.queue.Current(); !ok {
			zlog.Debug().Msg("playback: play ignored, nothing queued")
			return false
		}
		c.beginLoadLocked(true)
		return true
	case c.state == StatePlaying:
		return false
	default:
		c.adapter.Play()
		c.state = StatePlaying
		c.isPlaying = true
		return true
	}
}

func (c *Controller) pauseLocked() bool {
	switch c.state {
	case StateLoading:
		c.bufferLocked(command{Type: cmdPause})
		return false
	case StatePlaying:
		c.adapter.Pause()
		c.state = StatePaused
		c.isPlaying = false
		return true
	default:
		return false
	}
}

func (c *Controller) seekLocked(seconds float64) {
	c.currentTime = player.ClampSeek(seconds, c.duration)
	c.adapter.SeekTo(c.currentTime)
}

// applyLocked runs a buffered command against the now-ready track.
func (c *Controller) applyLocked(cmd command) {
	switch cmd.Type {
	case cmdPlay:
		c.playLocked()
	case cmdPause:
		c.pauseLocked()
	case cmdSeek:
		c.seekLocked(cmd.Seconds)
	case cmdVolume:
		c.adapter.SetVolume(cmd.Volume)
	}
}

func (c *Controller) bufferLocked(cmd command) {
	zlog.Debug().Msgf("playback: buffering command while loading: %s", cmd)
	c.pending = append(c.pending, cmd)
}

// discardPendingLocked drops buffered commands that targeted the current
// load. The volume is not lost: every ready transition applies c.volume.
func (c *Controller) discardPendingLocked() {
	if len(c.pending) > 0 {
		zlog.Debug().Msgf("playback: discarding %d buffered commands", len(c.pending))
	}
	c.pending = nil
}

// beginLoadLocked enters Loading for the queue's current track.
func (c *Controller) beginLoadLocked(autoplay bool) {
	t, _ := c.queue.Current()

	c.state = StateLoading
	c.autoplay = autoplay
	c.loadingID = t.ID
	c.isPlaying = false
	c.currentTime = 0
	c.duration = t.Length().Seconds()
	c.loadErr = nil

	zlog.Debug().Msgf("playback: loading track: index=%d track=%s autoplay=%v", c.queue.CurrentIndex(), t.ID, autoplay)
	c.adapter.LoadTrack(t)
}

func (c *Controller) stopLocked() {
	if c.state == StatePlaying {
		c.adapter.Pause()
	}
	c.state = StateIdle
	c.isPlaying = false
	c.autoplay = false
}

// commitLocked records a new snapshot with the next sequence number.
func (c *Controller) commitLocked() *Snapshot {
	c.last = c.snapshotLocked()
	snap := c.last
	return &snap
}

func (c *Controller) commitIfLocked(changed bool) *Snapshot {
	if !changed {
		return nil
	}
	return c.commitLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Seq:          c.notifier.NextSequenceNo(),
		State:        c.state,
		IsPlaying:    c.isPlaying,
		CurrentTime:  c.currentTime,
		Duration:     c.duration,
		Volume:       c.volume,
		CurrentIndex: c.queue.CurrentIndex(),
		Queue:        c.tracks,
	}
	if t, ok := c.queue.Current(); ok {
		snap.CurrentTrack = &t
	}
	if c.loadErr != nil {
		snap.Error = c.loadErr.Error()
	}
	return snap
}

func (c *Controller) publish(snap *Snapshot) {
	if snap == nil {
		return
	}
	c.notifier.Broadcast(snap.Seq, *snap)
}
