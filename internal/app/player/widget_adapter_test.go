package player

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/osa030/tubebox/internal/domain/track"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeWidget records commands and lets tests fire callbacks by hand.
type fakeWidget struct {
	mu        sync.Mutex
	cb        Callbacks
	host      string
	initCalls int
	initErr   error
	cues      []Media
	plays     int
	pauses    int
	seeks     []float64
	volumes   []int
	destroyed bool
}

func (w *fakeWidget) Init(host string, cb Callbacks) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.initCalls++
	if w.initErr != nil {
		return w.initErr
	}
	w.host = host
	w.cb = cb
	return nil
}

func (w *fakeWidget) Cue(m Media) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cues = append(w.cues, m)
}

func (w *fakeWidget) Play() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.plays++
}

func (w *fakeWidget) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pauses++
}

func (w *fakeWidget) Seek(seconds float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seeks = append(w.seeks, seconds)
}

func (w *fakeWidget) SetVolume(percent int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.volumes = append(w.volumes, percent)
}

func (w *fakeWidget) Destroy() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.destroyed = true
}

func (w *fakeWidget) callbacks() Callbacks {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cb
}

func (w *fakeWidget) cueIDs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	ids := make([]string, len(w.cues))
	for i, m := range w.cues {
		ids[i] = m.ID
	}
	return ids
}

func (w *fakeWidget) counts() (initCalls, plays, pauses int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.initCalls, w.plays, w.pauses
}

// recorder collects delivered events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func newTestAdapter(t *testing.T) (*WidgetAdapter, *fakeWidget, *recorder) {
	t.Helper()
	w := &fakeWidget{}
	a, err := NewWidgetAdapter(w)
	require.NoError(t, err)
	rec := &recorder{}
	require.NoError(t, a.Subscribe(rec.handle))
	t.Cleanup(func() { _ = a.Close() })
	return a, w, rec
}

// readyAdapter returns an adapter whose widget has signalled readiness.
func readyAdapter(t *testing.T) (*WidgetAdapter, *fakeWidget, *recorder) {
	t.Helper()
	a, w, rec := newTestAdapter(t)

	errCh := make(chan error, 1)
	go func() { errCh <- a.Initialize(context.Background(), "host") }()
	require.Eventually(t, func() bool {
		n, _, _ := w.counts()
		return n == 1
	}, time.Second, 5*time.Millisecond)
	w.callbacks().OnReady()
	require.NoError(t, <-errCh)
	return a, w, rec
}

func TestWidgetAdapter_InitializeCollapsesConcurrentCalls(t *testing.T) {
	a, w, _ := newTestAdapter(t)

	const callers = 5
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = a.Initialize(context.Background(), "host")
		}(i)
	}

	require.Eventually(t, func() bool {
		n, _, _ := w.counts()
		return n == 1
	}, time.Second, 5*time.Millisecond)
	w.callbacks().OnReady()
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	n, _, _ := w.counts()
	assert.Equal(t, 1, n)

	// Already ready: returns immediately without touching the widget.
	require.NoError(t, a.Initialize(context.Background(), "host"))
	n, _, _ = w.counts()
	assert.Equal(t, 1, n)
}

func TestWidgetAdapter_InitializeTimeout(t *testing.T) {
	a, _, _ := newTestAdapter(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := a.Initialize(ctx, "host")
	assert.True(t, errors.Is(err, ErrWidgetInitTimedOut))
}

func TestWidgetAdapter_InitializeErrorAllowsRetry(t *testing.T) {
	a, w, _ := newTestAdapter(t)
	w.initErr = errors.New("no host")

	err := a.Initialize(context.Background(), "host")
	require.Error(t, err)

	w.mu.Lock()
	w.initErr = nil
	w.mu.Unlock()

	errCh := make(chan error, 1)
	go func() { errCh <- a.Initialize(context.Background(), "host") }()
	require.Eventually(t, func() bool {
		n, _, _ := w.counts()
		return n == 2
	}, time.Second, 5*time.Millisecond)
	w.callbacks().OnReady()
	assert.NoError(t, <-errCh)
}

func TestWidgetAdapter_LoadBeforeReadyKeepsLatest(t *testing.T) {
	a, w, _ := newTestAdapter(t)

	errCh := make(chan error, 1)
	go func() { errCh <- a.Initialize(context.Background(), "host") }()
	require.Eventually(t, func() bool {
		n, _, _ := w.counts()
		return n == 1
	}, time.Second, 5*time.Millisecond)

	a.LoadTrack(track.Track{ID: "a"})
	a.LoadTrack(track.Track{ID: "b"})
	assert.Empty(t, w.cueIDs())

	w.callbacks().OnReady()
	require.NoError(t, <-errCh)

	require.Eventually(t, func() bool {
		return len(w.cueIDs()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"b"}, w.cueIDs())
}

func TestWidgetAdapter_SupersededLoadEventsDropped(t *testing.T) {
	a, w, rec := readyAdapter(t)
	cb := w.callbacks()

	a.LoadTrack(track.Track{ID: "a"})
	a.LoadTrack(track.Track{ID: "b", Duration: "2:00"})
	assert.Equal(t, []string{"a", "b"}, w.cueIDs())

	cb.OnStateChange("a", WidgetCued)
	cb.OnTimeUpdate("a", 3, 200)
	cb.OnError("a", ErrCodeNotFound)
	cb.OnStateChange("b", WidgetCued)

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	events := rec.snapshot()
	assert.Equal(t, EventReady, events[0].Type)
	assert.Equal(t, "b", events[0].TrackID)
	assert.Equal(t, 120.0, events[0].Duration)
}

func TestWidgetAdapter_PlayPauseOnlyWhenSettled(t *testing.T) {
	a, w, rec := readyAdapter(t)

	a.Play()
	a.Pause()
	_, plays, pauses := w.counts()
	assert.Zero(t, plays)
	assert.Zero(t, pauses)

	a.LoadTrack(track.Track{ID: "a"})
	a.Play()
	_, plays, _ = w.counts()
	assert.Zero(t, plays, "loading track must not accept play")

	w.callbacks().OnStateChange("a", WidgetCued)
	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	a.Play()
	a.Pause()
	_, plays, pauses = w.counts()
	assert.Equal(t, 1, plays)
	assert.Equal(t, 1, pauses)
}

func TestWidgetAdapter_SeekAndVolumeClamp(t *testing.T) {
	a, w, rec := readyAdapter(t)

	a.LoadTrack(track.Track{ID: "a", Duration: "1:00"})
	w.callbacks().OnStateChange("a", WidgetCued)
	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	a.SeekTo(100)
	a.SeekTo(-5)
	a.SeekTo(30.5)
	a.SetVolume(150)
	a.SetVolume(-20)
	a.SetVolume(42)

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Equal(t, []float64{60, 0, 30.5}, w.seeks)
	assert.Equal(t, []int{100, 0, 42}, w.volumes)
}

func TestWidgetAdapter_EventVocabulary(t *testing.T) {
	a, w, rec := readyAdapter(t)
	cb := w.callbacks()

	a.LoadTrack(track.Track{ID: "a"})
	cb.OnStateChange("a", WidgetBuffering) // dropped while loading
	cb.OnStateChange("a", WidgetPlaying)   // settles the load
	cb.OnTimeUpdate("a", 12.5, 180)
	cb.OnStateChange("a", WidgetPaused)
	cb.OnStateChange("a", 42) // unknown code
	cb.OnStateChange("a", WidgetEnded)

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 5
	}, time.Second, 5*time.Millisecond)

	events := rec.snapshot()
	assert.Equal(t, EventReady, events[0].Type)
	assert.Equal(t, EventStateChange, events[1].Type)
	assert.Equal(t, StatePlaying, events[1].State)
	assert.Equal(t, EventTimeUpdate, events[2].Type)
	assert.Equal(t, 12.5, events[2].Time)
	assert.Equal(t, 180.0, events[2].Duration)
	assert.Equal(t, StatePaused, events[3].State)
	assert.Equal(t, StateEnded, events[4].State)
	assert.Equal(t, 180.0, events[4].Duration)
}

func TestWidgetAdapter_ErrorEvent(t *testing.T) {
	a, w, rec := readyAdapter(t)

	a.LoadTrack(track.Track{ID: "a"})
	w.callbacks().OnError("", ErrCodeNotEmbeddable2)

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	e := rec.snapshot()[0]
	assert.Equal(t, EventError, e.Type)
	assert.Equal(t, "a", e.TrackID)
	assert.Equal(t, ErrCodeNotEmbeddable2, e.Code)

	// The failed load is settled, so commands reach the widget again.
	a.Play()
	_, plays, _ := w.counts()
	assert.Equal(t, 1, plays)
}

func TestWidgetAdapter_Ownership(t *testing.T) {
	w := &fakeWidget{}
	a, err := NewWidgetAdapter(w)
	require.NoError(t, err)

	_, err = NewWidgetAdapter(w)
	assert.ErrorIs(t, err, ErrWidgetOwned)

	require.NoError(t, a.Subscribe(func(Event) {}))
	assert.ErrorIs(t, a.Subscribe(func(Event) {}), ErrAlreadySubscribed)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.True(t, w.destroyed)
	assert.ErrorIs(t, a.Initialize(context.Background(), "host"), ErrAdapterClosed)

	b, err := NewWidgetAdapter(w)
	require.NoError(t, err)
	require.NoError(t, b.Close())
}

func TestWidgetAdapter_CloseReleasesInitWaiters(t *testing.T) {
	w := &fakeWidget{}
	a, err := NewWidgetAdapter(w)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- a.Initialize(context.Background(), "host") }()
	require.Eventually(t, func() bool {
		n, _, _ := w.counts()
		return n == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, a.Close())
	assert.ErrorIs(t, <-errCh, ErrAdapterClosed)
}

func TestClampVolume(t *testing.T) {
	tests := []struct {
		in, expected int
	}{
		{-20, 0},
		{0, 0},
		{55, 55},
		{100, 100},
		{150, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, ClampVolume(tt.in), "input %d", tt.in)
	}
}

func TestClampSeek(t *testing.T) {
	tests := []struct {
		name     string
		seconds  float64
		duration float64
		expected float64
	}{
		{name: "negative", seconds: -1, duration: 60, expected: 0},
		{name: "inside", seconds: 30, duration: 60, expected: 30},
		{name: "past end", seconds: 90, duration: 60, expected: 60},
		{name: "unknown duration", seconds: 90, duration: 0, expected: 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClampSeek(tt.seconds, tt.duration))
		})
	}
}

func TestLoadError(t *testing.T) {
	err := &LoadError{TrackID: "abc", Code: ErrCodeNotFound}
	assert.Equal(t, "load track abc: media not found or removed", err.Error())
	assert.Equal(t, "player error 7", ErrorDescription(7))
	assert.Equal(t, ErrorDescription(ErrCodeNotEmbeddable), ErrorDescription(ErrCodeNotEmbeddable2))
}
