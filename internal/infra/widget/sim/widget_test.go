package sim

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/osa030/tubebox/internal/app/player"
	"github.com/osa030/tubebox/internal/domain/track"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stateChange struct {
	id   string
	code int
}

type recorder struct {
	mu     sync.Mutex
	ready  int
	states []stateChange
	times  []float64
	errors []int
}

func (r *recorder) callbacks() player.Callbacks {
	return player.Callbacks{
		OnReady: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.ready++
		},
		OnStateChange: func(id string, code int) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.states = append(r.states, stateChange{id, code})
		},
		OnTimeUpdate: func(_ string, current, _ float64) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.times = append(r.times, current)
		},
		OnError: func(_ string, code int) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errors = append(r.errors, code)
		},
	}
}

func (r *recorder) isReady() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready == 1
}

func (r *recorder) hasState(code int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.states {
		if s.code == code {
			return true
		}
	}
	return false
}

func (r *recorder) lastTime() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.times) == 0 {
		return -1
	}
	return r.times[len(r.times)-1]
}

func startWidget(t *testing.T, cfg Config) (*Widget, *recorder) {
	t.Helper()
	w := New(cfg)
	r := &recorder{}
	require.NoError(t, w.Init("test", r.callbacks()))
	t.Cleanup(w.Destroy)
	require.Eventually(t, r.isReady, time.Second, time.Millisecond)
	return w, r
}

func TestWidget_ReadyAfterDelay(t *testing.T) {
	w := New(Config{ReadyDelay: 30 * time.Millisecond})
	r := &recorder{}
	require.NoError(t, w.Init("host", r.callbacks()))
	defer w.Destroy()

	assert.False(t, r.isReady())
	require.Eventually(t, r.isReady, time.Second, time.Millisecond)

	assert.ErrorIs(t, w.Init("host", r.callbacks()), ErrAlreadyInitialized)
}

func TestWidget_PlaysToEnd(t *testing.T) {
	w, r := startWidget(t, Config{Tick: 5 * time.Millisecond, Speed: 20})

	w.Cue(player.Media{ID: "a", Length: time.Second})
	require.Eventually(t, func() bool { return r.hasState(player.WidgetCued) }, time.Second, time.Millisecond)

	w.Play()
	require.Eventually(t, func() bool { return r.hasState(player.WidgetPlaying) }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return r.hasState(player.WidgetEnded) }, 2*time.Second, time.Millisecond)
	assert.InDelta(t, 1.0, r.lastTime(), 0.001)
}

func TestWidget_PauseAndSeek(t *testing.T) {
	w, r := startWidget(t, Config{Tick: 5 * time.Millisecond})

	w.Cue(player.Media{ID: "a", Length: time.Minute})
	w.Play()
	w.Pause()
	require.Eventually(t, func() bool { return r.hasState(player.WidgetPaused) }, time.Second, time.Millisecond)

	w.Seek(42)
	require.Eventually(t, func() bool { return r.lastTime() == 42 }, time.Second, time.Millisecond)

	w.Seek(1000)
	require.Eventually(t, func() bool { return r.lastTime() == 60 }, time.Second, time.Millisecond)
}

func TestWidget_FailIDs(t *testing.T) {
	w, r := startWidget(t, Config{FailIDs: []string{"bad"}})

	w.Cue(player.Media{ID: "bad"})
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.errors) == 1
	}, time.Second, time.Millisecond)

	r.mu.Lock()
	assert.Equal(t, []int{player.ErrCodeNotEmbeddable2}, r.errors)
	r.mu.Unlock()

	// Play without a cued track does nothing
	w.Play()
	assert.Never(t, func() bool { return r.hasState(player.WidgetPlaying) }, 30*time.Millisecond, 5*time.Millisecond)
}

func TestWidget_CommandsBeforeInitAreDropped(t *testing.T) {
	w := New(Config{})
	w.Cue(player.Media{ID: "a"})
	w.Play()
	w.Destroy()
	w.Destroy()
}

func TestWidget_WithAdapter(t *testing.T) {
	w := New(Config{Tick: 5 * time.Millisecond, Speed: 50})
	a, err := player.NewWidgetAdapter(w)
	require.NoError(t, err)
	defer a.Close()

	var mu sync.Mutex
	var events []player.Event
	require.NoError(t, a.Subscribe(func(e player.Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, a.Initialize(ctx, "host"))

	a.LoadTrack(track.Track{ID: "a", Duration: "0:02"})
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) > 0 && events[0].Type == player.EventReady
	}, time.Second, time.Millisecond)

	a.Play()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e.Type == player.EventStateChange && e.State == player.StateEnded {
				return true
			}
		}
		return false
	}, 2*time.Second, time.Millisecond)
}
