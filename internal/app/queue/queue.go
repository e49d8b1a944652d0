// Package queue provides the ordered, replaceable track list with a cursor.
package queue

import "github.com/osa030/tubebox/internal/domain/track"

// Queue is an ordered list of tracks plus a cursor.
// currentIndex is -1 when the queue is empty, otherwise a valid index.
// Queue is not safe for concurrent use; the playback controller serializes access.
type Queue struct {
	tracks       []track.Track
	currentIndex int
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{currentIndex: -1}
}

// Set replaces the whole sequence. The cursor moves to start when it is a
// valid index into the new sequence, otherwise to -1.
func (q *Queue) Set(tracks []track.Track, start int) {
	q.tracks = make([]track.Track, len(tracks))
	copy(q.tracks, tracks)

	if start >= 0 && start < len(q.tracks) {
		q.currentIndex = start
	} else {
		q.currentIndex = -1
	}
}

// JumpTo moves the cursor to index. Returns false if index is out of range.
func (q *Queue) JumpTo(index int) bool {
	if index < 0 || index >= len(q.tracks) {
		return false
	}
	q.currentIndex = index
	return true
}

// Next advances the cursor. No wraparound.
func (q *Queue) Next() bool {
	if !q.HasNext() {
		return false
	}
	q.currentIndex++
	return true
}

// Previous moves the cursor back. No wraparound.
func (q *Queue) Previous() bool {
	if !q.HasPrevious() {
		return false
	}
	q.currentIndex--
	return true
}

// HasNext returns true if there's a track after the current one.
func (q *Queue) HasNext() bool {
	return q.currentIndex+1 < len(q.tracks)
}

// HasPrevious returns true if there's a track before the current one.
func (q *Queue) HasPrevious() bool {
	return q.currentIndex > 0
}

// Current returns the track under the cursor.
func (q *Queue) Current() (track.Track, bool) {
	if q.currentIndex < 0 || q.currentIndex >= len(q.tracks) {
		return track.Track{}, false
	}
	return q.tracks[q.currentIndex], true
}

// CurrentIndex returns the cursor (-1 if none).
func (q *Queue) CurrentIndex() int {
	return q.currentIndex
}

// Len returns the number of tracks.
func (q *Queue) Len() int {
	return len(q.tracks)
}

// Tracks returns a copy of the sequence.
func (q *Queue) Tracks() []track.Track {
	result := make([]track.Track, len(q.tracks))
	copy(result, q.tracks)
	return result
}
