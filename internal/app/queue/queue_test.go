package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tubebox/internal/domain/track"
)

func tracks(ids ...string) []track.Track {
	result := make([]track.Track, len(ids))
	for i, id := range ids {
		result[i] = track.Track{ID: id, Title: "Title " + id}
	}
	return result
}

func TestQueue_Empty(t *testing.T) {
	q := New()

	assert.Equal(t, -1, q.CurrentIndex())
	assert.Equal(t, 0, q.Len())
	assert.False(t, q.Next())
	assert.False(t, q.Previous())
	assert.False(t, q.JumpTo(0))

	cur, ok := q.Current()
	assert.False(t, ok)
	assert.Equal(t, track.Track{}, cur)
	assert.Equal(t, -1, q.CurrentIndex())
}

func TestQueue_Set(t *testing.T) {
	tests := []struct {
		name          string
		tracks        []track.Track
		start         int
		expectedIndex int
	}{
		{name: "first", tracks: tracks("a", "b", "c"), start: 0, expectedIndex: 0},
		{name: "middle", tracks: tracks("a", "b", "c"), start: 1, expectedIndex: 1},
		{name: "last", tracks: tracks("a", "b", "c"), start: 2, expectedIndex: 2},
		{name: "past end", tracks: tracks("a", "b", "c"), start: 3, expectedIndex: -1},
		{name: "negative", tracks: tracks("a", "b"), start: -1, expectedIndex: -1},
		{name: "empty", tracks: nil, start: 0, expectedIndex: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New()
			q.Set(tt.tracks, tt.start)

			assert.Equal(t, tt.expectedIndex, q.CurrentIndex())
			assert.Equal(t, len(tt.tracks), q.Len())

			cur, ok := q.Current()
			if tt.expectedIndex < 0 {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.tracks[tt.start], cur)
		})
	}
}

func TestQueue_SetCopiesInput(t *testing.T) {
	in := tracks("a", "b")
	q := New()
	q.Set(in, 0)

	in[0].Title = "mutated"
	cur, _ := q.Current()
	assert.Equal(t, "Title a", cur.Title)

	out := q.Tracks()
	out[1].Title = "mutated"
	assert.Equal(t, "Title b", q.Tracks()[1].Title)
}

func TestQueue_SetReplacesWholesale(t *testing.T) {
	q := New()
	q.Set(tracks("a", "b", "c"), 2)
	q.Set(tracks("x"), 0)

	assert.Equal(t, 1, q.Len())
	assert.Equal(t, 0, q.CurrentIndex())
	assert.False(t, q.Next())
}

func TestQueue_NextPrevious(t *testing.T) {
	q := New()
	q.Set(tracks("a", "b", "c"), 0)

	assert.False(t, q.HasPrevious())
	assert.False(t, q.Previous())
	assert.Equal(t, 0, q.CurrentIndex())

	assert.True(t, q.Next())
	assert.True(t, q.Next())
	assert.Equal(t, 2, q.CurrentIndex())

	// No wraparound at the end.
	assert.False(t, q.HasNext())
	assert.False(t, q.Next())
	assert.Equal(t, 2, q.CurrentIndex())

	assert.True(t, q.Previous())
	cur, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, "b", cur.ID)
}

func TestQueue_JumpTo(t *testing.T) {
	q := New()
	q.Set(tracks("a", "b", "c"), 0)

	assert.True(t, q.JumpTo(2))
	assert.Equal(t, 2, q.CurrentIndex())
	assert.False(t, q.JumpTo(3))
	assert.False(t, q.JumpTo(-1))
	assert.Equal(t, 2, q.CurrentIndex())
}
