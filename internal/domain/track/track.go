// Package track provides the Track domain entity.
package track

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrInvalidDuration is returned when a display duration cannot be parsed.
var ErrInvalidDuration = errors.New("invalid duration")

// Thumbnail is a single preview image variant.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Thumbnails holds the three preview image variants of a media item.
type Thumbnails struct {
	Default Thumbnail `json:"default"`
	Medium  Thumbnail `json:"medium"`
	High    Thumbnail `json:"high"`
}

// Track represents a playable media item.
// Tracks are immutable values; the queue holds copies.
type Track struct {
	ID           string     // Catalog identifier (video ID)
	Title        string     // Display title
	ChannelTitle string     // Channel / artist name
	Thumbnails   Thumbnails // Preview images
	Duration     string     // Display duration ("3:45", "1:02:03")
	PublishedAt  string     // Display publish date
}

// Thumbnail returns the best available thumbnail URL, preferring larger variants.
func (t Track) Thumbnail() string {
	switch {
	case t.Thumbnails.High.URL != "":
		return t.Thumbnails.High.URL
	case t.Thumbnails.Medium.URL != "":
		return t.Thumbnails.Medium.URL
	default:
		return t.Thumbnails.Default.URL
	}
}

// Length parses the display duration. Unknown or empty durations yield 0.
func (t Track) Length() time.Duration {
	d, err := ParseDuration(t.Duration)
	if err != nil {
		return 0
	}
	return d
}

// ParseDuration parses a "m:ss" or "h:mm:ss" display duration.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.Wrap(ErrInvalidDuration, "empty duration")
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, errors.Wrapf(ErrInvalidDuration, "%q", s)
	}

	var total int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, errors.Wrapf(ErrInvalidDuration, "%q", s)
		}
		if i > 0 && n >= 60 {
			return 0, errors.Wrapf(ErrInvalidDuration, "%q", s)
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second, nil
}

// FormatDuration renders a duration the way ParseDuration reads it.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d.Round(time.Second).Seconds())
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// Liked is a track the user marked as liked.
type Liked struct {
	Track
	LikedAt time.Time
}
